package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// AnthropicProvider uses Claude models through the Messages API.
type AnthropicProvider struct {
	apiKey   string
	model    string
	sampling Sampling
	client   *anthropic.Client
}

func NewAnthropicProvider(apiKey, model string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicProvider{
		apiKey:   apiKey,
		model:    model,
		sampling: DefaultSampling,
		client:   anthropic.NewClient(apiKey),
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) SetSampling(s Sampling) { p.sampling = s.withDefaults() }

// SetBaseURL points the client at another endpoint, such as a proxy.
func (p *AnthropicProvider) SetBaseURL(url string) {
	p.client = anthropic.NewClient(p.apiKey, anthropic.WithBaseURL(url))
}

func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.sampling.MaxTokens,
	}
	req.SetTemperature(p.sampling.Temperature)

	var system []string
	for _, m := range messages {
		content := []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)}
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			req.Messages = append(req.Messages, anthropic.Message{Role: anthropic.RoleAssistant, Content: content})
		default:
			req.Messages = append(req.Messages, anthropic.Message{Role: anthropic.RoleUser, Content: content})
		}
	}
	req.System = strings.Join(system, "\n\n")

	resp, err := p.client.CreateMessages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText {
			out.WriteString(block.GetText())
		}
	}
	return &Response{
		Content: out.String(),
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
