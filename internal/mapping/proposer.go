// Package mapping proposes column-to-attribute mappings with a language model
// and holds the human-approved result.
package mapping

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/gl-mapper/internal/logger"
	"github.com/dvloznov/gl-mapper/internal/schema"
)

// Candidate is one proposed association of an input column to a target
// attribute. MappedTo is empty when the model was not confident enough.
type Candidate struct {
	InputField string
	MappedTo   string
	Confidence int
}

type candidateJSON struct {
	InputField string  `json:"input_field"`
	MappedTo   *string `json:"mapped_to"`
	Confidence int     `json:"confidence"`
}

// MarshalJSON renders an unmapped candidate with "mapped_to": null.
func (c Candidate) MarshalJSON() ([]byte, error) {
	out := candidateJSON{InputField: c.InputField, Confidence: c.Confidence}
	if c.MappedTo != "" {
		out.MappedTo = &c.MappedTo
	}
	return json.Marshal(out)
}

// Proposer builds the prompt, calls the model once and gates the reply.
type Proposer struct {
	Model Model
}

// NewProposer returns a Proposer using m.
func NewProposer(m Model) *Proposer {
	return &Proposer{Model: m}
}

// Propose returns one candidate per entry of the model reply. Columns the model
// leaves out are simply absent. A malformed reply is a *ResponseFormatError.
func (p *Proposer) Propose(ctx context.Context, inputColumns []string, s *schema.TargetSchema) ([]Candidate, error) {
	log := logger.FromContext(ctx)

	prompt, err := BuildPrompt(inputColumns, s)
	if err != nil {
		return nil, fmt.Errorf("Propose: %w", err)
	}

	log.Debug().Int("input_columns", len(inputColumns)).Int("attributes", s.Len()).Msg("Requesting mapping proposal")

	raw, err := p.Model.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("Propose: %w", err)
	}

	candidates, err := ParseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("Propose: %w", err)
	}

	mapped := 0
	for _, c := range candidates {
		if c.MappedTo != "" {
			mapped++
		}
		if c.Confidence == 0 {
			log.Debug().Str("input_field", c.InputField).Msg("Confidence missing or not numeric, treated as 0")
		}
	}
	log.Info().Int("candidates", len(candidates)).Int("mapped", mapped).Msg("Mapping proposal received")

	return candidates, nil
}
