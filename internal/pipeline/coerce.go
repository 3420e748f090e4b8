package pipeline

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dvloznov/gl-mapper/internal/schema"
	"github.com/dvloznov/gl-mapper/internal/table"
)

// dateTimeLayouts are tried in order. Values carrying a zone are converted to UTC.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-1-2",
	"2006/1/2",
	"2006/1/2 15:04:05",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDateTime parses s with the first matching layout.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("ParseDateTime: unrecognized date/time %q", s)
}

// ParseDecimal parses a plain decimal such as "-1234.50" or "1.5e3" exactly.
// The returned scale is the number of fractional digits to render.
func ParseDecimal(s string) (*big.Rat, int, error) {
	s = strings.TrimSpace(s)
	mantissa, exp, ok := splitDecimal(s)
	if !ok {
		return nil, 0, fmt.Errorf("ParseDecimal: not a decimal number %q", s)
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, 0, fmt.Errorf("ParseDecimal: not a decimal number %q", s)
	}

	scale := 0
	if i := strings.IndexByte(mantissa, '.'); i != -1 {
		scale = len(mantissa) - i - 1
	}
	scale -= exp
	if scale < 0 {
		scale = 0
	}
	return r, scale, nil
}

// splitDecimal checks s against [+-]digits[.digits][(e|E)[+-]digits] and
// returns the mantissa and exponent.
func splitDecimal(s string) (string, int, bool) {
	mantissa, expPart := s, ""
	if i := strings.IndexAny(s, "eE"); i != -1 {
		mantissa, expPart = s[:i], s[i+1:]
		if expPart == "" {
			return "", 0, false
		}
	}

	body := strings.TrimLeft(mantissa, "+-")
	if len(mantissa)-len(body) > 1 {
		return "", 0, false
	}
	digits := 0
	dots := 0
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return "", 0, false
		}
	}
	if digits == 0 || dots > 1 {
		return "", 0, false
	}

	exp := 0
	if expPart != "" {
		sign := 1
		switch expPart[0] {
		case '+':
			expPart = expPart[1:]
		case '-':
			sign = -1
			expPart = expPart[1:]
		}
		if expPart == "" || len(expPart) > 4 {
			return "", 0, false
		}
		for i := 0; i < len(expPart); i++ {
			c := expPart[i]
			if c < '0' || c > '9' {
				return "", 0, false
			}
			exp = exp*10 + int(c-'0')
		}
		exp *= sign
	}
	return mantissa, exp, true
}

// coerceValues converts every cell to dataType. Cells that cannot be converted
// become null; failed counts them. Unknown data types are copied unchanged.
func coerceValues(values []table.Value, dataType schema.DataType) (out []table.Value, failed int) {
	typed := dataType == schema.TypeDateTime || dataType == schema.TypeDecimal

	out = make([]table.Value, len(values))
	for i, v := range values {
		if v.IsNull() || (typed && v.IsEmpty()) {
			out[i] = table.Null()
			continue
		}

		switch dataType {
		case schema.TypeDateTime:
			if v.Kind() == table.KindDateTime {
				out[i] = v
				continue
			}
			ts, err := ParseDateTime(v.String())
			if err != nil {
				out[i] = table.Null()
				failed++
				continue
			}
			out[i] = table.DateTime(ts)

		case schema.TypeDecimal:
			if v.Kind() == table.KindDecimal {
				out[i] = table.Decimal(v.Rat(), v.Scale())
				continue
			}
			r, scale, err := ParseDecimal(v.String())
			if err != nil {
				out[i] = table.Null()
				failed++
				continue
			}
			out[i] = table.Decimal(r, scale)

		default:
			out[i] = v
		}
	}
	return out, failed
}
