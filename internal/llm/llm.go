// Package llm wraps generative model providers behind a structured-output interface.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"alcyxob/meal-planner/internal/config"
)

var (
	// ErrUnavailable means the provider could not be reached or refused the call.
	ErrUnavailable = errors.New("generative model unavailable")
	// ErrMalformedOutput means the provider answered without a usable tool call.
	ErrMalformedOutput = errors.New("generative model returned malformed output")
)

// Schema is a JSON-schema subset understood by every provider's tool calling.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Tool is the single function the model is forced to call.
type Tool struct {
	Name        string
	Description string
	Parameters  *Schema
}

type StructuredRequest struct {
	Prompt string
	Tool   Tool
}

// TokenUsage tracks the tokens consumed by a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// StructuredResponse carries the raw tool-call arguments. Callers validate them.
type StructuredResponse struct {
	Arguments json.RawMessage
	Usage     TokenUsage
}

// StructuredGenerator produces arguments for a forced tool call.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, req StructuredRequest) (StructuredResponse, error)
}

// Closer is implemented by generators holding network resources.
type Closer interface {
	Close() error
}

// NewGenerator builds the provider selected in configuration.
func NewGenerator(ctx context.Context, cfg config.LLMConfig) (StructuredGenerator, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiGenerator(ctx, cfg)
	case "groq":
		return NewGroqGenerator(cfg), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
