package mapping

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ConfidenceThreshold is the minimum confidence at which a proposed target is kept.
const ConfidenceThreshold = 90

// ResponseFormatError means the model reply was not valid JSON of the expected
// shape. Raw holds the reply verbatim.
type ResponseFormatError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *ResponseFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed mapping response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed mapping response: %s", e.Reason)
}

func (e *ResponseFormatError) Unwrap() error {
	return e.Err
}

// ParseResponse decodes a model reply into confidence-gated candidates, one per
// reply entry in reply order. Any shape violation fails the whole reply.
func ParseResponse(raw string) ([]Candidate, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, &ResponseFormatError{Raw: raw, Reason: "empty response"}
	}

	dec := json.NewDecoder(strings.NewReader(clean))
	dec.UseNumber()

	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil, &ResponseFormatError{Raw: raw, Reason: "invalid JSON", Err: err}
	}
	if dec.More() {
		return nil, &ResponseFormatError{Raw: raw, Reason: "trailing data after JSON value"}
	}

	root, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, &ResponseFormatError{Raw: raw, Reason: "top-level value is not an object"}
	}
	list, ok := root["mappings"].([]interface{})
	if !ok {
		return nil, &ResponseFormatError{Raw: raw, Reason: `"mappings" is missing or not an array`}
	}

	candidates := make([]Candidate, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, &ResponseFormatError{Raw: raw, Reason: fmt.Sprintf("mappings[%d] is not an object", i)}
		}

		inputField, ok := entry["input_field"].(string)
		if !ok || inputField == "" {
			return nil, &ResponseFormatError{Raw: raw, Reason: fmt.Sprintf(`mappings[%d].input_field is missing or not a non-empty string`, i)}
		}

		rawTarget, present := entry["mapped_to"]
		if !present {
			return nil, &ResponseFormatError{Raw: raw, Reason: fmt.Sprintf(`mappings[%d].mapped_to is missing`, i)}
		}
		var target string
		switch v := rawTarget.(type) {
		case nil:
		case string:
			target = v
		default:
			return nil, &ResponseFormatError{Raw: raw, Reason: fmt.Sprintf(`mappings[%d].mapped_to is not a string or null`, i)}
		}

		var confidenceText string
		switch v := entry["confidence"].(type) {
		case nil:
		case string:
			confidenceText = v
		case json.Number:
			confidenceText = v.String()
		default:
			return nil, &ResponseFormatError{Raw: raw, Reason: fmt.Sprintf(`mappings[%d].confidence is not a string or number`, i)}
		}

		confidence := ParseConfidence(confidenceText)
		if confidence < ConfidenceThreshold {
			target = ""
		}

		candidates = append(candidates, Candidate{
			InputField: inputField,
			MappedTo:   target,
			Confidence: confidence,
		})
	}

	return candidates, nil
}

// ParseConfidence reads a percentage such as "95%" or "95". Trailing percent
// signs are dropped; anything left that is not all ASCII digits yields 0.
func ParseConfidence(text string) int {
	s := strings.TrimRight(text, "%")
	if s == "" {
		return 0
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Only overflow is possible here.
		return math.MaxInt
	}
	return n
}

// cleanModelJSON strips Markdown fences and any prose around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = s[start : end+1]
		}
	}

	return s
}
