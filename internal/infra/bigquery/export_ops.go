package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/googleapi"

	"github.com/dvloznov/gl-mapper/internal/logger"
	"github.com/dvloznov/gl-mapper/internal/schema"
	"github.com/dvloznov/gl-mapper/internal/table"
)

const (
	runIDField     = "run_id"
	rowNumberField = "row_number"

	insertBatchSize = 500
)

// TableSchema maps the target schema to BigQuery columns. Every export row also
// carries run_id and row_number. Attributes whose column names collide, which
// BigQuery compares case-insensitively, are an error.
func TableSchema(s *schema.TargetSchema) (bigquery.Schema, error) {
	out := bigquery.Schema{
		{Name: runIDField, Type: bigquery.StringFieldType, Required: true},
		{Name: rowNumberField, Type: bigquery.IntegerFieldType, Required: true},
	}
	owners := map[string]string{
		runIDField:     runIDField,
		rowNumberField: rowNumberField,
	}
	for _, attr := range s.Attributes() {
		name := FieldName(attr.Name)
		key := strings.ToLower(name)
		if other, ok := owners[key]; ok {
			return nil, fmt.Errorf("TableSchema: attributes %q and %q both map to column %q", other, attr.Name, name)
		}
		owners[key] = attr.Name
		out = append(out, &bigquery.FieldSchema{
			Name: name,
			Type: fieldType(attr.DataType),
		})
	}
	return out, nil
}

func fieldType(dt schema.DataType) bigquery.FieldType {
	switch dt {
	case schema.TypeDecimal:
		return bigquery.BigNumericFieldType
	case schema.TypeDateTime:
		return bigquery.DateTimeFieldType
	default:
		return bigquery.StringFieldType
	}
}

// FieldName turns an attribute name into a valid BigQuery column name.
func FieldName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || unicode.IsDigit(rune(out[0])) {
		out = "_" + out
	}
	return out
}

// exportRows converts t into savers ready for streaming insert. Insert IDs are
// derived from the run and row so a retried batch is deduplicated.
func exportRows(runID string, bqSchema bigquery.Schema, t *table.Table) []*bigquery.ValuesSaver {
	rows := make([]*bigquery.ValuesSaver, t.NumRows())
	for r := range rows {
		cells := t.Row(r)
		values := make([]bigquery.Value, 0, len(cells)+2)
		values = append(values, runID, int64(r+1))
		for _, v := range cells {
			values = append(values, bigQueryValue(v))
		}
		rows[r] = &bigquery.ValuesSaver{
			Schema:   bqSchema,
			InsertID: fmt.Sprintf("%s-%d", runID, r+1),
			Row:      values,
		}
	}
	return rows
}

func bigQueryValue(v table.Value) bigquery.Value {
	switch v.Kind() {
	case table.KindDecimal:
		return v.Rat()
	case table.KindDateTime:
		return civil.DateTimeOf(v.Time())
	case table.KindString:
		return v.String()
	default:
		return nil
	}
}

// EnsureTableWithClient creates tableID with the given schema unless it exists.
func EnsureTableWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, tableID string, bqSchema bigquery.Schema) error {
	ref := client.DatasetInProject(ds.ProjectID, ds.DatasetID).Table(tableID)

	_, err := ref.Metadata(ctx)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("EnsureTable: reading metadata of %s: %w", tableID, err)
	}

	if err := ref.Create(ctx, &bigquery.TableMetadata{Schema: bqSchema}); err != nil {
		return fmt.Errorf("EnsureTable: creating %s: %w", tableID, err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("table", tableID).Msg("Created export table")
	return nil
}

// ExportTableWithClient streams the rows of t into tableID, creating it first
// if needed.
func ExportTableWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, tableID, runID string, s *schema.TargetSchema, t *table.Table) error {
	bqSchema, err := TableSchema(s)
	if err != nil {
		return fmt.Errorf("ExportTable: %w", err)
	}
	if err := EnsureTableWithClient(ctx, client, ds, tableID, bqSchema); err != nil {
		return fmt.Errorf("ExportTable: %w", err)
	}

	inserter := client.DatasetInProject(ds.ProjectID, ds.DatasetID).Table(tableID).Inserter()
	rows := exportRows(runID, bqSchema, t)
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("ExportTable: inserting rows %d-%d: %w", start+1, end, err)
		}
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("table", tableID).
		Str("run_id", runID).
		Int("rows", len(rows)).
		Msg("Exported normalized rows")
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
