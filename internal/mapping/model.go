package mapping

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for mapping proposals.
const DefaultModelName = "gemini-2.5-flash"

// Model sends one prompt to a language model and returns its text reply.
// Implementations make a single call with no retry.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiConfig selects the Gemini backend and credentials.
type GeminiConfig struct {
	APIKey    string
	UseVertex bool
	Project   string
	Location  string
	ModelName string
}

// GeminiModel is the Model backed by the Gemini API or Vertex AI.
type GeminiModel struct {
	client    *genai.Client
	modelName string
}

// NewGeminiModel creates a genai client for cfg.
func NewGeminiModel(ctx context.Context, cfg GeminiConfig) (*GeminiModel, error) {
	cc := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	if cfg.UseVertex {
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	} else {
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("NewGeminiModel: create genai client: %w", err)
	}

	name := cfg.ModelName
	if name == "" {
		name = DefaultModelName
	}
	return &GeminiModel{client: client, modelName: name}, nil
}

// Generate sends prompt as a single user turn at temperature 0.
func (m *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.modelName, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", fmt.Errorf("GeminiModel.Generate: generate content: %w", err)
	}
	return resp.Text(), nil
}

var _ Model = (*GeminiModel)(nil)
