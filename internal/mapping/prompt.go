package mapping

import (
	"encoding/json"
	"fmt"

	"github.com/dvloznov/gl-mapper/internal/schema"
)

// BuildPrompt renders the single instruction sent to the model. Column and
// attribute names are embedded verbatim as JSON string lists.
func BuildPrompt(inputColumns []string, s *schema.TargetSchema) (string, error) {
	cols, err := json.Marshal(nonNil(inputColumns))
	if err != nil {
		return "", fmt.Errorf("BuildPrompt: encode input columns: %w", err)
	}
	targets, err := json.Marshal(nonNil(s.Names()))
	if err != nil {
		return "", fmt.Errorf("BuildPrompt: encode target attributes: %w", err)
	}

	prompt :=
		"You map the columns of a general-ledger export onto a fixed target schema.\n\n" +
			"Input fields: " + string(cols) + "\n" +
			"Target schema attributes: " + string(targets) + "\n\n" +
			"Rules:\n" +
			"- Produce one entry per input field.\n" +
			"- \"mapped_to\" must be exactly one of the target schema attribute names.\n" +
			"- \"confidence\" is a percentage from 0 to 100, e.g. \"95%\".\n" +
			fmt.Sprintf("- Leave \"mapped_to\" blank if you are less than %d%% confident in the mapping.\n\n", ConfidenceThreshold) +
			"Respond with valid JSON only, in this format:\n" +
			`{"mappings": [{"input_field": "field_name", "mapped_to": "target_field_name", "confidence": "percentage"}]}` + "\n" +
			"Do NOT wrap the response in code fences or add any other text.\n"

	return prompt, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
