package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	zen "github.com/sacenox/go-opencode-ai-zen-sdk"

	"github.com/xonecas/symb-core/internal/message"
	"github.com/xonecas/symb-core/internal/retry"
	"github.com/xonecas/symb-core/internal/streaming"
)

// ZenProvider adapts the multi-backend zen SDK client to the raw-text
// Stream contract. It never declares tool schemas on the upstream request
// — tool invocation is carried in-band as <tool_use> XML, normalized and
// extracted downstream by C2/C3 — so only content text deltas are
// forwarded; native tool_use / functionCall events from whichever
// underlying dialect the endpoint speaks are ignored.
type ZenProvider struct {
	name        string
	client      *zen.Client
	model       string
	temperature float64
}

func NewZen(name, apiKey, baseURL, model string, temperature float64) (*ZenProvider, error) {
	cfg := zen.Config{APIKey: apiKey, BaseURL: baseURL}
	client, err := zen.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ZenProvider{name: name, client: client, model: model, temperature: temperature}, nil
}

func (p *ZenProvider) Name() string { return p.name }

func (p *ZenProvider) Stream(ctx context.Context, messages []message.Message, systemPrompts []string, tools []ToolDescriptor, maxTokens int) (<-chan streaming.Chunk, error) {
	req := zen.NormalizedRequest{
		Model:    p.model,
		System:   strings.Join(systemPrompts, "\n\n"),
		Messages: toZenMessages(messages),
		Stream:   true,
	}
	if p.temperature > 0 {
		req.Temperature = &p.temperature
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}

	events, errs, err := p.client.UnifiedStreamNormalized(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan streaming.Chunk)
	go func() {
		defer close(ch)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				text, done := extractText(ev)
				if done {
					return
				}
				if text == "" {
					continue
				}
				select {
				case ch <- streaming.Chunk{Text: text}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-errs:
				if ok && err != nil {
					var apiErr *zen.APIError
					if errors.As(err, &apiErr) {
						log.Error().Int("status", apiErr.StatusCode).Str("body", string(apiErr.Body)).Msg("zen: stream API error")
						err = &retry.ProviderError{Status: apiErr.StatusCode, Message: err.Error()}
					}
					select {
					case ch <- streaming.Chunk{Err: err}:
					case <-ctx.Done():
					}
				}
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func toZenMessages(messages []message.Message) []zen.NormalizedMessage {
	out := make([]zen.NormalizedMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case message.RoleUser:
			out = append(out, zen.NormalizedMessage{Role: "user", Content: m.Text})
		case message.RoleAssistant:
			out = append(out, zen.NormalizedMessage{Role: "assistant", Content: m.AssistantText})
		case message.RoleTool:
			out = append(out, zen.NormalizedMessage{Role: "user", Content: m.Result, ToolCallID: m.ToolCallID})
		}
	}
	return out
}

// extractText pulls only the visible text-content delta out of one
// unified SSE event, across whichever of the zen SDK's normalized
// dialects the upstream endpoint speaks. done is true on the terminal
// [DONE] marker.
func extractText(ev zen.UnifiedEvent) (text string, done bool) {
	data := ev.Data
	if len(data) == 0 || string(data) == "[DONE]" {
		return "", true
	}

	var chunk map[string]any
	if err := json.Unmarshal(data, &chunk); err != nil {
		return "", false
	}

	switch ev.Endpoint {
	case zen.EndpointMessages:
		if ev.Event != "content_block_delta" {
			return "", false
		}
		delta, _ := chunk["delta"].(map[string]any)
		if getStringOrEmpty(delta, "type") == "text_delta" {
			return getStringOrEmpty(delta, "text"), false
		}
		return "", false

	case zen.EndpointModels:
		candidates, _ := chunk["candidates"].([]any)
		if len(candidates) == 0 {
			return "", false
		}
		candidate, _ := candidates[0].(map[string]any)
		content, _ := candidate["content"].(map[string]any)
		parts, _ := content["parts"].([]any)
		var out strings.Builder
		for _, raw := range parts {
			part, _ := raw.(map[string]any)
			out.WriteString(getStringOrEmpty(part, "text"))
		}
		return out.String(), false

	case zen.EndpointResponses:
		if ev.Event == "response.output_text.delta" {
			return getStringOrEmpty(chunk, "delta"), false
		}
		return "", false

	default: // chat completions dialect
		if choices, _ := chunk["choices"].([]any); len(choices) > 0 {
			choice, _ := choices[0].(map[string]any)
			delta, _ := choice["delta"].(map[string]any)
			return getStringOrEmpty(delta, "content"), false
		}
		if delta, _ := chunk["delta"].(map[string]any); delta != nil {
			return getStringOrEmpty(delta, "content"), false
		}
		return "", false
	}
}

func getStringOrEmpty(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

type ZenFactory struct {
	name    string
	apiKey  string
	baseURL string
}

func NewZenFactory(name, apiKey, baseURL string) *ZenFactory {
	return &ZenFactory{name: name, apiKey: apiKey, baseURL: baseURL}
}

func (f *ZenFactory) Name() string { return f.name }

func (f *ZenFactory) Create(opts Options) (Provider, error) {
	baseURL := f.baseURL
	if baseURL == "" {
		baseURL = "https://opencode.ai/zen/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	log.Info().
		Str("factory", f.name).
		Str("model", opts.Model).
		Bool("has_api_key", f.apiKey != "").
		Str("base_url", baseURL).
		Msg("ZenFactory.Create")

	return NewZen(f.name, f.apiKey, baseURL, opts.Model, opts.Temperature)
}
