package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	bq "github.com/dvloznov/gl-mapper/internal/bigquery"
	"github.com/dvloznov/gl-mapper/internal/ingest"
	"github.com/dvloznov/gl-mapper/internal/mapping"
	"github.com/dvloznov/gl-mapper/internal/pipeline"
	"github.com/dvloznov/gl-mapper/internal/schema"
	"github.com/dvloznov/gl-mapper/internal/table"
)

// MockTableSource is a mock implementation of TableSource for testing.
type MockTableSource struct {
	LoadFunc func(ctx context.Context, source string) (*ingest.Result, error)
}

func (m *MockTableSource) Load(ctx context.Context, source string) (*ingest.Result, error) {
	return m.LoadFunc(ctx, source)
}

// MockTableSink records saved tables.
type MockTableSink struct {
	Saved map[string]*table.Table
}

func (m *MockTableSink) Save(ctx context.Context, t *table.Table, dest string) error {
	if m.Saved == nil {
		m.Saved = make(map[string]*table.Table)
	}
	m.Saved[dest] = t
	return nil
}

// MockProposer is a mock implementation of MappingProposer for testing.
type MockProposer struct {
	ProposeFunc func(ctx context.Context, inputColumns []string, s *schema.TargetSchema) ([]mapping.Candidate, error)
	Calls       int
}

func (m *MockProposer) Propose(ctx context.Context, inputColumns []string, s *schema.TargetSchema) ([]mapping.Candidate, error) {
	m.Calls++
	return m.ProposeFunc(ctx, inputColumns, s)
}

// MockIssueSink collects logged issues.
type MockIssueSink struct {
	Logged []string
	Err    error
}

func (m *MockIssueSink) Log(issues []string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Logged = append(m.Logged, issues...)
	return nil
}

// MockRunRepository is a mock implementation of RunRepository for testing.
type MockRunRepository struct {
	Started   []*bq.TransformationRunRow
	Failed    map[string]error
	Succeeded map[string]bq.RunStats
}

func (m *MockRunRepository) StartRun(ctx context.Context, row *bq.TransformationRunRow) error {
	m.Started = append(m.Started, row)
	return nil
}

func (m *MockRunRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	if m.Failed == nil {
		m.Failed = make(map[string]error)
	}
	m.Failed[runID] = runErr
}

func (m *MockRunRepository) MarkRunSucceeded(ctx context.Context, runID string, stats bq.RunStats) error {
	if m.Succeeded == nil {
		m.Succeeded = make(map[string]bq.RunStats)
	}
	m.Succeeded[runID] = stats
	return nil
}

func (m *MockRunRepository) ListRuns(ctx context.Context, limit int) ([]*bq.TransformationRunRow, error) {
	return m.Started, nil
}

// MockExporter records warehouse exports.
type MockExporter struct {
	Tables map[string]*table.Table
}

func (m *MockExporter) ExportTable(ctx context.Context, tableID, runID string, s *schema.TargetSchema, t *table.Table) error {
	if m.Tables == nil {
		m.Tables = make(map[string]*table.Table)
	}
	m.Tables[tableID+"/"+runID] = t
	return nil
}

func newSessionFixture(t *testing.T) (*pipeline.Session, *MockProposer, *MockIssueSink) {
	t.Helper()

	s, err := schema.New([]schema.Attribute{
		{Name: "date", DataType: schema.TypeDateTime},
		{Name: "amount", DataType: schema.TypeDecimal},
		{Name: "account", DataType: schema.TypeString},
	})
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}

	source := &MockTableSource{
		LoadFunc: func(ctx context.Context, src string) (*ingest.Result, error) {
			tbl, err := table.FromRecords([]string{"Txn_Date", "Amt", "Acct"}, [][]string{{"2024-01-01", "100.50", "1000"}})
			if err != nil {
				return nil, err
			}
			return &ingest.Result{Table: tbl, Encoding: "utf-8"}, nil
		},
	}
	proposer := &MockProposer{
		ProposeFunc: func(ctx context.Context, cols []string, s *schema.TargetSchema) ([]mapping.Candidate, error) {
			return []mapping.Candidate{
				{InputField: "Txn_Date", MappedTo: "date", Confidence: 95},
				{InputField: "Amt", MappedTo: "amount", Confidence: 92},
				{InputField: "Acct", Confidence: 40},
			}, nil
		},
	}
	issues := &MockIssueSink{}

	return &pipeline.Session{
		Schema:   s,
		Source:   source,
		Proposer: proposer,
		Issues:   issues,
		Log:      zerolog.Nop(),
	}, proposer, issues
}

func TestSession_RunWithProposals(t *testing.T) {
	session, proposer, issues := newSessionFixture(t)
	sink := &MockTableSink{}
	runs := &MockRunRepository{}
	exporter := &MockExporter{}
	session.Sink = sink
	session.Runs = runs
	session.Warehouse = exporter
	session.ExportTable = "normalized_ledger"

	state, err := session.Run(context.Background(), pipeline.Request{Source: "in.csv", OutputPath: "out.csv"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if proposer.Calls != 1 {
		t.Errorf("proposer called %d times, want 1", proposer.Calls)
	}
	if state.RunID == "" {
		t.Error("RunID is empty")
	}

	wantIssues := []string{"Missing or empty field: account"}
	if len(issues.Logged) != 1 || issues.Logged[0] != wantIssues[0] {
		t.Errorf("logged issues = %v, want %v", issues.Logged, wantIssues)
	}

	if sink.Saved["out.csv"] != state.Output {
		t.Error("normalized table was not saved to the output path")
	}
	if exporter.Tables["normalized_ledger/"+state.RunID] != state.Output {
		t.Error("normalized table was not exported to the warehouse")
	}

	if len(runs.Started) != 1 || runs.Started[0].RunID != state.RunID {
		t.Fatalf("run not started: %+v", runs.Started)
	}
	stats, ok := runs.Succeeded[state.RunID]
	if !ok {
		t.Fatal("run not marked succeeded")
	}
	if stats.InputRows != 1 || stats.InputColumns != 3 || stats.IssueCount != 1 || stats.OutputURI != "out.csv" {
		t.Errorf("run stats = %+v", stats)
	}

	if got := state.Summary.Unmapped; len(got) != 1 || got[0] != "Acct" {
		t.Errorf("summary unmapped = %v, want [Acct]", got)
	}
}

func TestSession_RunWithSuppliedMapping(t *testing.T) {
	session, proposer, issues := newSessionFixture(t)

	approved := mapping.NewApprovedMapping()
	approved.Set("Txn_Date", "date")
	approved.Set("Amt", "amount")
	approved.Set("Acct", "account")

	state, err := session.Run(context.Background(), pipeline.Request{Source: "in.csv", Approved: approved})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if proposer.Calls != 0 {
		t.Errorf("proposer called %d times, want 0", proposer.Calls)
	}
	if len(state.Issues) != 0 || len(issues.Logged) != 0 {
		t.Errorf("unexpected issues: %v", state.Issues)
	}

	want := [][]string{{"2024-01-01T00:00:00", "100.50", "1000"}}
	got := state.Output.Records()
	if len(got) != 1 || len(got[0]) != 3 || got[0][0] != want[0][0] || got[0][1] != want[0][1] || got[0][2] != want[0][2] {
		t.Errorf("output records = %v, want %v", got, want)
	}
}

func TestSession_ApproverEditsMapping(t *testing.T) {
	session, _, _ := newSessionFixture(t)

	var seen []mapping.Candidate
	session.Approve = func(ctx context.Context, cols []string, candidates []mapping.Candidate) (*mapping.ApprovedMapping, error) {
		seen = candidates
		m := mapping.FromCandidates(candidates)
		m.Set("Acct", "account")
		return m, nil
	}

	state, err := session.Run(context.Background(), pipeline.Request{Source: "in.csv"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(seen) != 3 {
		t.Errorf("approver saw %d candidates, want 3", len(seen))
	}
	if len(state.Issues) != 0 {
		t.Errorf("issues = %v, want none", state.Issues)
	}
}

func TestSession_HardErrorsStopTheRun(t *testing.T) {
	t.Run("malformed model reply", func(t *testing.T) {
		session, proposer, issues := newSessionFixture(t)
		runs := &MockRunRepository{}
		session.Runs = runs
		proposer.ProposeFunc = func(ctx context.Context, cols []string, s *schema.TargetSchema) ([]mapping.Candidate, error) {
			return mapping.ParseResponse("not json at all")
		}

		state, err := session.Run(context.Background(), pipeline.Request{Source: "in.csv"})

		var rfe *mapping.ResponseFormatError
		if !errors.As(err, &rfe) {
			t.Fatalf("Run() error = %v, want ResponseFormatError", err)
		}
		if rfe.Raw != "not json at all" {
			t.Errorf("Raw = %q", rfe.Raw)
		}
		if state.Output != nil || len(issues.Logged) != 0 {
			t.Error("run continued after a hard error")
		}
		if _, ok := runs.Failed[state.RunID]; !ok {
			t.Error("run not marked failed")
		}
	})

	t.Run("ingestion failure", func(t *testing.T) {
		session, proposer, _ := newSessionFixture(t)
		session.Source = &MockTableSource{
			LoadFunc: func(ctx context.Context, src string) (*ingest.Result, error) {
				return nil, &ingest.IngestionError{Source: src, Err: errors.New("no such file")}
			},
		}

		_, err := session.Run(context.Background(), pipeline.Request{Source: "missing.csv"})

		var ie *ingest.IngestionError
		if !errors.As(err, &ie) {
			t.Fatalf("Run() error = %v, want IngestionError", err)
		}
		if proposer.Calls != 0 {
			t.Error("proposer called after ingestion failed")
		}
	})

	t.Run("issue log failure", func(t *testing.T) {
		session, _, issues := newSessionFixture(t)
		issues.Err = errors.New("disk full")

		_, err := session.Run(context.Background(), pipeline.Request{Source: "in.csv"})
		if err == nil {
			t.Fatal("Run() error = nil, want issue log failure")
		}
	})
}

func TestSession_RequiresProposerOrMapping(t *testing.T) {
	session, _, _ := newSessionFixture(t)
	session.Proposer = nil

	if _, err := session.Run(context.Background(), pipeline.Request{Source: "in.csv"}); err == nil {
		t.Error("Run() error = nil without proposer or mapping")
	}
}

func TestSession_UsesRequestedRunID(t *testing.T) {
	session, _, _ := newSessionFixture(t)

	state, err := session.Run(context.Background(), pipeline.Request{RunID: "run-fixed", Source: "in.csv"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.RunID != "run-fixed" {
		t.Errorf("RunID = %q, want run-fixed", state.RunID)
	}
}
