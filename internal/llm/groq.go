package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alcyxob/meal-planner/internal/config"
)

// groqGenerator talks to Groq's OpenAI-compatible chat completions endpoint.
type groqGenerator struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float32
	httpClient  *http.Client
}

// NewGroqGenerator creates a new Groq API client.
func NewGroqGenerator(cfg config.LLMConfig) StructuredGenerator {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &groqGenerator{
		apiKey:      cfg.GroqAPIKey,
		baseURL:     strings.TrimRight(cfg.GroqBaseURL, "/"),
		model:       cfg.GroqModel,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type groqFunction struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

type groqTool struct {
	Type     string       `json:"type"`
	Function groqFunction `json:"function"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	Tools       []groqTool    `json:"tools"`
	ToolChoice  any           `json:"tool_choice"`
}

type groqResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *groqGenerator) GenerateStructured(ctx context.Context, req StructuredRequest) (StructuredResponse, error) {
	body := groqRequest{
		Model:       c.model,
		Messages:    []groqMessage{{Role: "user", Content: req.Prompt}},
		Temperature: c.temperature,
		Tools: []groqTool{{
			Type: "function",
			Function: groqFunction{
				Name:        req.Tool.Name,
				Description: req.Tool.Description,
				Parameters:  req.Tool.Parameters,
			},
		}},
		ToolChoice: map[string]any{
			"type":     "function",
			"function": map[string]string{"name": req.Tool.Name},
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return StructuredResponse{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return StructuredResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return StructuredResponse{}, fmt.Errorf("%w: groq: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		// Groq rejects tool calls that do not match the schema with 400 tool_use_failed.
		if resp.StatusCode == http.StatusBadRequest && bytes.Contains(bodyBytes, []byte("tool_use_failed")) {
			return StructuredResponse{}, fmt.Errorf("%w: groq: %s", ErrMalformedOutput, bodyBytes)
		}
		return StructuredResponse{}, fmt.Errorf("%w: groq api error: status=%d body=%s", ErrUnavailable, resp.StatusCode, bodyBytes)
	}

	var groqResp groqResponse
	if err := json.NewDecoder(resp.Body).Decode(&groqResp); err != nil {
		return StructuredResponse{}, fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}

	out := StructuredResponse{Usage: TokenUsage{
		PromptTokens:     groqResp.Usage.PromptTokens,
		CompletionTokens: groqResp.Usage.CompletionTokens,
		TotalTokens:      groqResp.Usage.TotalTokens,
		Model:            c.model,
	}}
	for _, choice := range groqResp.Choices {
		for _, call := range choice.Message.ToolCalls {
			if call.Function.Name != req.Tool.Name {
				continue
			}
			if !json.Valid([]byte(call.Function.Arguments)) {
				return out, fmt.Errorf("%w: groq arguments are not valid JSON", ErrMalformedOutput)
			}
			out.Arguments = json.RawMessage(call.Function.Arguments)
			return out, nil
		}
	}
	return out, fmt.Errorf("%w: groq returned no %s call", ErrMalformedOutput, req.Tool.Name)
}
