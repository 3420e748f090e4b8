package pipeline

import (
	"github.com/dvloznov/gl-mapper/internal/mapping"
	"github.com/dvloznov/gl-mapper/internal/schema"
	"github.com/dvloznov/gl-mapper/internal/table"
)

// FieldMapping is one approved input field and its target.
type FieldMapping struct {
	InputField string `json:"input_field"`
	Target     string `json:"target"`
}

// Summary describes what a transformation did with each field.
type Summary struct {
	// Mapped lists approved decisions that name a target, in approval order.
	Mapped []FieldMapping `json:"mapped"`
	// Unmapped lists input columns without a target, in input order.
	Unmapped []string `json:"unmapped"`
	// EmptyTargets lists target attributes with no data, in schema order.
	EmptyTargets []string `json:"empty_targets"`
	Rows         int      `json:"rows"`
}

// Summarize reports mapped, unmapped and empty fields of a finished run.
func Summarize(inputColumns []string, approved *mapping.ApprovedMapping, out *table.Table, s *schema.TargetSchema) Summary {
	if approved == nil {
		approved = mapping.NewApprovedMapping()
	}

	sum := Summary{
		Mapped:       []FieldMapping{},
		Unmapped:     []string{},
		EmptyTargets: []string{},
		Rows:         out.NumRows(),
	}

	for _, d := range approved.Decisions() {
		if d.Target != "" {
			sum.Mapped = append(sum.Mapped, FieldMapping{InputField: d.InputField, Target: d.Target})
		}
	}

	for _, c := range inputColumns {
		if target, ok := approved.Get(c); !ok || target == "" {
			sum.Unmapped = append(sum.Unmapped, c)
		}
	}

	for _, name := range s.Names() {
		col, ok := out.Column(name)
		if !ok || allEmpty(col.Values) {
			sum.EmptyTargets = append(sum.EmptyTargets, name)
		}
	}
	return sum
}
