package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaHost is used when no base URL is configured.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaProvider runs a local model, so interviews can stay on the
// interviewee's own machine.
type OllamaProvider struct {
	client   *api.Client
	model    string
	sampling Sampling
}

func NewOllamaProvider(baseURL, model string) (*OllamaProvider, error) {
	if model == "" {
		model = "llama3.2"
	}
	if baseURL == "" {
		baseURL = DefaultOllamaHost
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	uri, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", baseURL, err)
	}
	return &OllamaProvider{
		client:   api.NewClient(uri, http.DefaultClient),
		model:    model,
		sampling: DefaultSampling,
	}, nil
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) SetSampling(s Sampling) { p.sampling = s.withDefaults() }

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	stream := false
	req := &api.ChatRequest{
		Model:  p.model,
		Stream: &stream,
		Options: map[string]any{
			"temperature": p.sampling.Temperature,
			"num_predict": p.sampling.MaxTokens,
		},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, api.Message{Role: m.Role, Content: m.Content})
	}

	var out strings.Builder
	var usage Usage
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		if resp.Done {
			usage = Usage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat with %s failed: %w", p.model, err)
	}
	return &Response{Content: out.String(), Usage: usage}, nil
}
