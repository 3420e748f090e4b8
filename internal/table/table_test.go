package table

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_String(t *testing.T) {
	amount, _ := new(big.Rat).SetString("100.50")

	tests := []struct {
		name  string
		value Value
		want  string
		empty bool
	}{
		{"null", Null(), "", true},
		{"empty string", String(""), "", true},
		{"string", String("1000"), "1000", false},
		{"decimal keeps scale", Decimal(amount, 2), "100.50", false},
		{"decimal integral", Decimal(big.NewRat(42, 1), 0), "42", false},
		{"datetime", DateTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), "2024-01-01T00:00:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.String())
			assert.Equal(t, tt.empty, tt.value.IsEmpty())
		})
	}
}

func TestValue_DecimalIsCopied(t *testing.T) {
	r := big.NewRat(5, 1)
	v := Decimal(r, 0)
	r.SetInt64(7)

	assert.Equal(t, "5", v.String())

	out := v.Rat()
	out.SetInt64(9)
	assert.Equal(t, "5", v.String())
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, Null().Equal(Value{}))
	assert.True(t, Decimal(big.NewRat(1, 2), 1).Equal(Decimal(big.NewRat(2, 4), 1)))
	assert.False(t, Decimal(big.NewRat(1, 2), 1).Equal(Decimal(big.NewRat(1, 2), 2)))
	assert.False(t, String("").Equal(Null()))
}

func TestFromRecords(t *testing.T) {
	tbl, err := FromRecords(
		[]string{"Txn_Date", "Amt", "Acct"},
		[][]string{{"2024-01-01", "100.50", "1000"}, {"2024-01-02", "", "1001"}},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"Txn_Date", "Amt", "Acct"}, tbl.ColumnNames())
	assert.Equal(t, 2, tbl.NumRows())

	amt, ok := tbl.Column("Amt")
	require.True(t, ok)
	assert.True(t, amt.Values[1].IsNull())
	assert.Equal(t, KindString, amt.Values[0].Kind())

	_, err = FromRecords([]string{"a", "b"}, [][]string{{"1"}})
	assert.Error(t, err)
}

func TestTable_AddColumn(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.AddColumn("a", []Value{String("x")}))
	assert.Error(t, tbl.AddColumn("a", []Value{String("y")}))
	assert.Error(t, tbl.AddColumn("b", []Value{String("y"), String("z")}))
}

func TestTable_HeadAndRecords(t *testing.T) {
	tbl, err := FromRecords([]string{"a"}, [][]string{{"1"}, {"2"}, {"3"}})
	require.NoError(t, err)

	head := tbl.Head(2)
	assert.Equal(t, [][]string{{"1"}, {"2"}}, head.Records())
	assert.Equal(t, 3, tbl.Head(10).NumRows())
}

func TestTable_MarshalJSON(t *testing.T) {
	tbl, err := FromRecords([]string{"a", "b"}, [][]string{{"1", ""}})
	require.NoError(t, err)

	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":["a","b"],"rows":[["1",null]]}`, string(data))
}
