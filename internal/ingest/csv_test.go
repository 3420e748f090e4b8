package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/gl-mapper/internal/table"
)

func TestReadCSV_Basic(t *testing.T) {
	in := "Txn Date,Amount,Memo\n2024-01-05,100.50,rent\n2024-01-06,,\n"

	res, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, "utf-8", res.Encoding)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{"Txn Date", "Amount", "Memo"}, res.Table.ColumnNames())
	assert.Equal(t, 2, res.Table.NumRows())

	amount, ok := res.Table.Column("Amount")
	require.True(t, ok)
	assert.Equal(t, table.String("100.50"), amount.Values[0])
	assert.True(t, amount.Values[1].IsNull())
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	res, err := ReadCSV(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Table.NumRows())
	assert.Equal(t, []string{"a", "b"}, res.Table.ColumnNames())
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestReadCSV_ShortRowsArePadded(t *testing.T) {
	in := "a,b,c\n1,2\n1,2,3\n"

	res, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 2, res.Warnings[0].Row)
	assert.Contains(t, res.Warnings[0].Message, "padding")

	assert.Equal(t, [][]string{{"1", "2", ""}, {"1", "2", "3"}}, res.Table.Records())
}

func TestReadCSV_WideRowFails(t *testing.T) {
	// An unquoted thousands separator shifts every later cell.
	in := "Txn_Date,Amt,Acct\n2024-01-01,1,000.50,1000\n"

	res, err := ReadCSV(strings.NewReader(in))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "row 2 has 4 columns, expected 3")
}

func TestReadCSV_HeaderNormalization(t *testing.T) {
	in := " Amount ,Amount,,Cafe\u0301,Amount.1\n1,2,3,4,5\n"

	res, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"Amount", "Amount.1", "Unnamed: 2", "Caf\u00e9", "Amount.1.1"}, res.Table.ColumnNames())
}

func TestReadCSV_Encodings(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		wantEncoding string
	}{
		{
			name:         "utf-8 bom",
			data:         append([]byte{0xEF, 0xBB, 0xBF}, []byte("Memo\ncafé\n")...),
			wantEncoding: "utf-8-bom",
		},
		{
			name:         "latin-1",
			data:         []byte("Memo\ncaf\xe9\n"),
			wantEncoding: "latin-1",
		},
		{
			name:         "utf-16le",
			data:         []byte{0xFF, 0xFE, 'M', 0, 'e', 0, 'm', 0, 'o', 0, '\n', 0, 'c', 0, 'a', 0, 'f', 0, 0xE9, 0, '\n', 0},
			wantEncoding: "utf-16le",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ReadCSV(bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantEncoding, res.Encoding)
			assert.Equal(t, []string{"Memo"}, res.Table.ColumnNames())
			assert.Equal(t, [][]string{{"café"}}, res.Table.Records())
		})
	}
}

func TestWriteCSV(t *testing.T) {
	tbl, err := table.FromRecords([]string{"a", "b"}, [][]string{{"1", ""}, {"x,y", "2"}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, "a,b\n1,\n\"x,y\",2\n", buf.String())
}
