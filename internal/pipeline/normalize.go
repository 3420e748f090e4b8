package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/gl-mapper/internal/mapping"
	"github.com/dvloznov/gl-mapper/internal/schema"
	"github.com/dvloznov/gl-mapper/internal/table"
)

// Normalizer reshapes an input table into the target schema.
type Normalizer struct {
	log zerolog.Logger
}

// NewNormalizer returns a Normalizer that reports soft conditions to log.
func NewNormalizer(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Normalize builds one output column per schema attribute, in schema order.
// Each column is copied from the earliest-inserted input field approved for
// that attribute and coerced to its declared type. Missing sources and
// failed coercions leave nulls and are reported in Diagnostics; they never
// change the output shape.
func (n *Normalizer) Normalize(input *table.Table, s *schema.TargetSchema, approved *mapping.ApprovedMapping) (*table.Table, Diagnostics) {
	var diag Diagnostics
	if approved == nil {
		approved = mapping.NewApprovedMapping()
	}

	rows := input.NumRows()
	out := table.New()

	for _, attr := range s.Attributes() {
		values := nullColumn(rows)

		source, mapped := approved.SourceFor(attr.Name)
		switch {
		case !mapped:
			n.log.Info().Str("attribute", attr.Name).Msg("No mapping found for target field, leaving it empty")

		default:
			col, ok := input.Column(source)
			if !ok {
				msg := fmt.Sprintf("Source field '%s' not found in input data", source)
				n.log.Warn().Str("attribute", attr.Name).Str("source", source).Msg(msg)
				diag.add(Warning{Kind: FieldLookupWarning, Attribute: attr.Name, Source: source, Message: msg})
				break
			}
			copy(values, col.Values)
			n.log.Debug().Str("attribute", attr.Name).Str("source", source).Msg("Mapped source field")
		}

		coerced, failed := coerceValues(values, attr.DataType)
		if failed > 0 {
			msg := fmt.Sprintf("%d value(s) of '%s' could not be converted to %s and were set to null", failed, attr.Name, attr.DataType)
			n.log.Warn().Str("attribute", attr.Name).Int("failed", failed).Msg(msg)
			diag.add(Warning{Kind: CoercionWarning, Attribute: attr.Name, Source: source, Count: failed, Message: msg})
		}

		// Attribute names are unique and every column has len rows.
		if err := out.AddColumn(attr.Name, coerced); err != nil {
			panic(fmt.Sprintf("Normalize: %v", err))
		}
	}

	return out, diag
}

func nullColumn(rows int) []table.Value {
	values := make([]table.Value, rows)
	for i := range values {
		values[i] = table.Null()
	}
	return values
}
