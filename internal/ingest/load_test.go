package ingest

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/gl-mapper/internal/table"
)

type mockStorage struct {
	objects  map[string][]byte
	uploaded map[string]string
	fetchErr error
}

func (m *mockStorage) Get(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	data, ok := m.objects[gcsURI]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (m *mockStorage) Put(ctx context.Context, gcsURI string, data []byte, contentType string) error {
	if m.objects == nil {
		m.objects = make(map[string][]byte)
		m.uploaded = make(map[string]string)
	}
	m.objects[gcsURI] = data
	m.uploaded[gcsURI] = contentType
	return nil
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatFromPath("ledger.csv"))
	assert.Equal(t, FormatXLSX, FormatFromPath("gs://b/Ledger.XLSX"))
	assert.Equal(t, FormatCSV, FormatFromPath("ledger"))
}

func TestLoader_LoadLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n"), 0o644))

	l := &Loader{}
	res, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1"}}, res.Table.Records())
}

func TestLoader_LoadErrorsAreIngestionErrors(t *testing.T) {
	l := &Loader{Storage: &mockStorage{fetchErr: errors.New("permission denied")}}

	tests := []struct {
		name   string
		source string
	}{
		{"missing local file", filepath.Join(t.TempDir(), "nope.csv")},
		{"gcs failure", "gs://bucket/in.csv"},
	}

	wide := filepath.Join(t.TempDir(), "wide.csv")
	require.NoError(t, os.WriteFile(wide, []byte("a,b\n1,2,3\n"), 0o644))
	tests = append(tests, struct {
		name   string
		source string
	}{"row wider than header", wide})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := l.Load(context.Background(), tt.source)
			assert.Nil(t, res)
			var ie *IngestionError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.source, ie.Source)
		})
	}
}

func TestLoader_GCSRoundTrip(t *testing.T) {
	store := &mockStorage{}
	l := &Loader{Storage: store}
	ctx := context.Background()

	tbl, err := table.FromRecords([]string{"a"}, [][]string{{"1"}, {"2"}})
	require.NoError(t, err)

	require.NoError(t, l.Save(ctx, tbl, "gs://bucket/out/ledger.csv"))
	assert.Equal(t, "text/csv", store.uploaded["gs://bucket/out/ledger.csv"])

	res, err := l.Load(ctx, "gs://bucket/out/ledger.csv")
	require.NoError(t, err)
	assert.True(t, tbl.Equal(res.Table))
}

func TestLoader_SaveLocalCreatesDirectory(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out", "ledger.csv")
	tbl, err := table.FromRecords([]string{"a"}, [][]string{{"1"}})
	require.NoError(t, err)

	require.NoError(t, (&Loader{}).Save(context.Background(), tbl, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", string(data))
}

func TestXLSX_RoundTrip(t *testing.T) {
	tbl := table.New()
	require.NoError(t, tbl.AddColumn("Account", []table.Value{table.String("Cash"), table.Null()}))
	require.NoError(t, tbl.AddColumn("Amount", []table.Value{table.Decimal(big.NewRat(201, 2), 2), table.Decimal(big.NewRat(7, 1), 0)}))
	require.NoError(t, tbl.AddColumn("Date", []table.Value{
		table.DateTime(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)),
		table.Null(),
	}))

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, tbl))

	res, err := ReadXLSX(&buf)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", res.Encoding)
	assert.Equal(t, []string{"Account", "Amount", "Date"}, res.Table.ColumnNames())
	assert.Equal(t, [][]string{
		{"Cash", "100.5", "2024-01-05T00:00:00"},
		{"", "7", ""},
	}, res.Table.Records())
}
