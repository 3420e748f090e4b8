package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/gl-mapper/internal/schema"
	"github.com/dvloznov/gl-mapper/internal/table"
)

type MockSink struct {
	SaveFunc func(ctx context.Context, t *table.Table, dest string) error
}

func (m *MockSink) Save(ctx context.Context, t *table.Table, dest string) error {
	return m.SaveFunc(ctx, t, dest)
}

type MockWarehouse struct {
	ExportTableFunc func(ctx context.Context, tableID, runID string, s *schema.TargetSchema, t *table.Table) error
}

func (m *MockWarehouse) ExportTable(ctx context.Context, tableID, runID string, s *schema.TargetSchema, t *table.Table) error {
	return m.ExportTableFunc(ctx, tableID, runID, s, t)
}

func testPayload(t *testing.T) (*table.Table, *schema.TargetSchema) {
	t.Helper()
	tbl, err := table.FromRecords([]string{"Account"}, [][]string{{"Cash"}})
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}
	s, err := schema.New([]schema.Attribute{{Name: "Account", DataType: schema.TypeString}})
	if err != nil {
		t.Fatalf("schema.New() error = %v", err)
	}
	return tbl, s
}

func TestExportHandler_Storage(t *testing.T) {
	tbl, _ := testPayload(t)
	var gotDest string
	h := &ExportHandler{Sink: &MockSink{SaveFunc: func(ctx context.Context, got *table.Table, dest string) error {
		if got != tbl {
			t.Error("handler did not pass the job table")
		}
		gotDest = dest
		return nil
	}}}

	job := &ExportJob{JobID: "j", Type: JobTypeExportStorage, Destination: "gs://ledgers/exports/run.csv", Table: tbl}
	if err := h.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if gotDest != "gs://ledgers/exports/run.csv" {
		t.Errorf("dest = %q", gotDest)
	}
}

func TestExportHandler_Warehouse(t *testing.T) {
	tbl, s := testPayload(t)
	var gotTable, gotRun string
	h := &ExportHandler{Warehouse: &MockWarehouse{ExportTableFunc: func(ctx context.Context, tableID, runID string, _ *schema.TargetSchema, _ *table.Table) error {
		gotTable, gotRun = tableID, runID
		return nil
	}}}

	job := &ExportJob{JobID: "j", Type: JobTypeExportWarehouse, RunID: "run-1", Destination: "normalized_ledger", Table: tbl, Schema: s}
	if err := h.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if gotTable != "normalized_ledger" || gotRun != "run-1" {
		t.Errorf("ExportTable(%q, %q)", gotTable, gotRun)
	}
}

func TestExportHandler_Errors(t *testing.T) {
	tbl, s := testPayload(t)
	failing := &MockSink{SaveFunc: func(context.Context, *table.Table, string) error {
		return errors.New("bucket gone")
	}}

	tests := []struct {
		name    string
		handler *ExportHandler
		job     *ExportJob
		wantErr string
	}{
		{"no table", &ExportHandler{}, &ExportJob{Type: JobTypeExportStorage}, "has no table"},
		{"storage not configured", &ExportHandler{}, &ExportJob{Type: JobTypeExportStorage, Table: tbl}, "storage export not configured"},
		{"warehouse not configured", &ExportHandler{}, &ExportJob{Type: JobTypeExportWarehouse, Table: tbl, Schema: s}, "warehouse export not configured"},
		{"unknown type", &ExportHandler{}, &ExportJob{Type: "fax", Table: tbl}, "unknown job type"},
		{"sink failure", &ExportHandler{Sink: failing}, &ExportJob{Type: JobTypeExportStorage, Table: tbl}, "bucket gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.handler.Handle(context.Background(), tt.job)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Handle() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
