package table

import (
	"encoding/json"
	"math/big"
	"time"
)

// DateTimeLayout is how datetime cells are rendered.
const DateTimeLayout = "2006-01-02T15:04:05"

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindDecimal
	KindDateTime
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindDecimal:
		return "decimal"
	case KindDateTime:
		return "datetime"
	default:
		return "unknown"
	}
}

// Value is a single table cell: null, string, decimal or datetime.
// The zero Value is null.
type Value struct {
	kind  Kind
	str   string
	dec   *big.Rat
	scale int
	ts    time.Time
}

// Null returns an empty cell.
func Null() Value {
	return Value{}
}

// String returns a text cell.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Decimal returns an exact numeric cell. scale is the number of fractional
// digits used when the value is rendered.
func Decimal(r *big.Rat, scale int) Value {
	if r == nil {
		return Null()
	}
	if scale < 0 {
		scale = 0
	}
	return Value{kind: KindDecimal, dec: new(big.Rat).Set(r), scale: scale}
}

// DateTime returns a date/time cell.
func DateTime(t time.Time) Value {
	return Value{kind: KindDateTime, ts: t}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether v is the null variant.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// IsEmpty reports whether v is null or an empty string.
func (v Value) IsEmpty() bool {
	return v.kind == KindNull || (v.kind == KindString && v.str == "")
}

// Text returns the raw text of a string cell and "" for other kinds.
func (v Value) Text() string {
	if v.kind != KindString {
		return ""
	}
	return v.str
}

// Rat returns a copy of the decimal, or nil for non-decimal cells.
func (v Value) Rat() *big.Rat {
	if v.kind != KindDecimal {
		return nil
	}
	return new(big.Rat).Set(v.dec)
}

// Scale returns the rendering scale of a decimal cell.
func (v Value) Scale() int {
	return v.scale
}

// Time returns the datetime of a datetime cell and the zero time otherwise.
func (v Value) Time() time.Time {
	if v.kind != KindDateTime {
		return time.Time{}
	}
	return v.ts
}

// String renders the cell the way it is written to CSV.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindDecimal:
		return v.dec.FloatString(v.scale)
	case KindDateTime:
		return v.ts.Format(DateTimeLayout)
	default:
		return ""
	}
}

// Equal reports whether two cells hold the same variant and value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindDecimal:
		return v.scale == o.scale && v.dec.Cmp(o.dec) == 0
	case KindDateTime:
		return v.ts.Equal(o.ts)
	default:
		return true
	}
}

// MarshalJSON renders null cells as JSON null and everything else as its text.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNull {
		return []byte("null"), nil
	}
	return json.Marshal(v.String())
}
