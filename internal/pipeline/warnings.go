package pipeline

import "fmt"

// WarningKind classifies a recoverable condition met during normalization.
type WarningKind string

const (
	// FieldLookupWarning: the approved source column is not in the input table.
	FieldLookupWarning WarningKind = "field_lookup"
	// CoercionWarning: some cells of a column could not be converted to the
	// declared type and were nulled.
	CoercionWarning WarningKind = "coercion"
)

// Warning is a soft condition. It never stops the pipeline.
type Warning struct {
	Kind      WarningKind `json:"kind"`
	Attribute string      `json:"attribute"`
	Source    string      `json:"source,omitempty"`
	Count     int         `json:"count,omitempty"`
	Message   string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}

// Diagnostics collects the warnings of one normalization.
type Diagnostics struct {
	Warnings []Warning `json:"warnings"`
}

func (d *Diagnostics) add(w Warning) {
	d.Warnings = append(d.Warnings, w)
}

// Messages returns the warning messages in the order they occurred.
func (d Diagnostics) Messages() []string {
	out := make([]string, len(d.Warnings))
	for i, w := range d.Warnings {
		out[i] = w.Message
	}
	return out
}
