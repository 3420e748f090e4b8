package pipeline

import (
	"fmt"

	"github.com/dvloznov/gl-mapper/internal/schema"
	"github.com/dvloznov/gl-mapper/internal/table"
)

// Validate returns one issue per attribute whose column is absent from t or
// has no non-empty cell, in schema order.
func Validate(t *table.Table, s *schema.TargetSchema) []string {
	var issues []string
	for _, name := range s.Names() {
		col, ok := t.Column(name)
		if !ok || allEmpty(col.Values) {
			issues = append(issues, fmt.Sprintf("Missing or empty field: %s", name))
		}
	}
	return issues
}

func allEmpty(values []table.Value) bool {
	for _, v := range values {
		if !v.IsEmpty() {
			return false
		}
	}
	return true
}
