package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"alcyxob/meal-planner/internal/config"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// geminiGenerator forces a function call on the Google Gemini API.
type geminiGenerator struct {
	client      *genai.Client
	modelName   string
	temperature float32
}

// NewGeminiGenerator creates a new Gemini API client.
func NewGeminiGenerator(ctx context.Context, cfg config.LLMConfig) (StructuredGenerator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini api key is not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiGenerator{
		client:      client,
		modelName:   cfg.GeminiModel,
		temperature: cfg.Temperature,
	}, nil
}

func (g *geminiGenerator) GenerateStructured(ctx context.Context, req StructuredRequest) (StructuredResponse, error) {
	// a fresh model per call, GenerativeModel fields are not safe to share between jobs
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(g.temperature)
	model.Tools = []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        req.Tool.Name,
			Description: req.Tool.Description,
			Parameters:  toGenaiSchema(req.Tool.Parameters),
		}},
	}}
	model.ToolConfig = &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingAny,
			AllowedFunctionNames: []string{req.Tool.Name},
		},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return StructuredResponse{}, fmt.Errorf("%w: gemini: %v", ErrUnavailable, err)
	}

	out := StructuredResponse{Usage: TokenUsage{Model: g.modelName}}
	if md := resp.UsageMetadata; md != nil {
		out.Usage.PromptTokens = int(md.PromptTokenCount)
		out.Usage.CompletionTokens = int(md.CandidatesTokenCount)
		out.Usage.TotalTokens = int(md.TotalTokenCount)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			call, ok := part.(genai.FunctionCall)
			if !ok || call.Name != req.Tool.Name {
				continue
			}
			args, err := json.Marshal(call.Args)
			if err != nil {
				return out, fmt.Errorf("%w: encoding function args: %v", ErrMalformedOutput, err)
			}
			out.Arguments = args
			return out, nil
		}
	}
	return out, fmt.Errorf("%w: gemini returned no %s call", ErrMalformedOutput, req.Tool.Name)
}

// Close closes the underlying Gemini client.
func (g *geminiGenerator) Close() error {
	return g.client.Close()
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Enum) > 0 {
		out.Format = "enum"
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = toGenaiSchema(p)
		}
	}
	return out
}

func genaiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	}
	return genai.TypeUnspecified
}
