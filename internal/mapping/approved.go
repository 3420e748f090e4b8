package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/gl-mapper/internal/schema"
)

// Decision is one approved input field and its target. An empty Target means
// the field is deliberately left unmapped.
type Decision struct {
	InputField string
	Target     string
}

// ApprovedMapping is the human-finalized input field -> target mapping. It keeps
// insertion order; re-setting a field updates it in place.
type ApprovedMapping struct {
	decisions []Decision
	index     map[string]int
}

// NewApprovedMapping returns an empty mapping.
func NewApprovedMapping() *ApprovedMapping {
	return &ApprovedMapping{index: make(map[string]int)}
}

// FromCandidates pre-fills a mapping from proposer output, in candidate order.
func FromCandidates(candidates []Candidate) *ApprovedMapping {
	m := NewApprovedMapping()
	for _, c := range candidates {
		m.Set(c.InputField, c.MappedTo)
	}
	return m
}

// Set records target for inputField. An empty target marks it unmapped.
func (m *ApprovedMapping) Set(inputField, target string) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[inputField]; ok {
		m.decisions[i].Target = target
		return
	}
	m.index[inputField] = len(m.decisions)
	m.decisions = append(m.decisions, Decision{InputField: inputField, Target: target})
}

// Clear marks inputField as unmapped.
func (m *ApprovedMapping) Clear(inputField string) {
	m.Set(inputField, "")
}

// Get returns the target for inputField and whether the field has a decision.
func (m *ApprovedMapping) Get(inputField string) (string, bool) {
	i, ok := m.index[inputField]
	if !ok {
		return "", false
	}
	return m.decisions[i].Target, true
}

// Len returns the number of decisions.
func (m *ApprovedMapping) Len() int {
	return len(m.decisions)
}

// Decisions returns a copy of the decisions in insertion order.
func (m *ApprovedMapping) Decisions() []Decision {
	return append([]Decision(nil), m.decisions...)
}

// SourceFor returns the earliest-inserted input field mapped to target.
func (m *ApprovedMapping) SourceFor(target string) (string, bool) {
	if target == "" {
		return "", false
	}
	for _, d := range m.decisions {
		if d.Target == target {
			return d.InputField, true
		}
	}
	return "", false
}

// UnknownTargets lists targets, in first-use order, that s does not define.
func (m *ApprovedMapping) UnknownTargets(s *schema.TargetSchema) []string {
	var unknown []string
	seen := make(map[string]bool)
	for _, d := range m.decisions {
		if d.Target == "" || seen[d.Target] || s.Has(d.Target) {
			continue
		}
		seen[d.Target] = true
		unknown = append(unknown, d.Target)
	}
	return unknown
}

// MarshalJSON renders {"input": "target" | null, ...} in insertion order.
func (m *ApprovedMapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range m.decisions {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(d.InputField)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if d.Target == "" {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(d.Target)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of string or null values, keeping key order.
func (m *ApprovedMapping) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("approved mapping: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("approved mapping: expected object")
	}

	out := NewApprovedMapping()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("approved mapping: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("approved mapping: expected string key")
		}

		var target *string
		if err := dec.Decode(&target); err != nil {
			return fmt.Errorf("approved mapping: value for %q: %w", key, err)
		}
		if target == nil {
			out.Set(key, "")
		} else {
			out.Set(key, *target)
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("approved mapping: %w", err)
	}

	*m = *out
	return nil
}
