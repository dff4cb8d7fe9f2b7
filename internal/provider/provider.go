package provider

import (
	"context"
	"fmt"
	"strings"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response represents the output from the model.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for text-generation backends.
type Provider interface {
	// Chat sends a list of messages to the model and returns a response.
	Chat(ctx context.Context, messages []Message) (*Response, error)

	// Name returns the provider identifier (e.g., "stub", "openai").
	Name() string
}

// Complete runs a single system+user exchange and returns the trimmed text.
func Complete(ctx context.Context, p Provider, system, user string) (string, error) {
	var msgs []Message
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	msgs = append(msgs, Message{Role: "user", Content: user})

	resp, err := p.Chat(ctx, msgs)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("%s returned an empty response", p.Name())
	}
	return text, nil
}

// Sampling tunes generation. Zero fields fall back to DefaultSampling.
type Sampling struct {
	Temperature float32
	MaxTokens   int
}

// DefaultSampling keeps questions varied without drifting, and leaves room
// for a memoir chapter.
var DefaultSampling = Sampling{Temperature: 0.7, MaxTokens: 1024}

func (s Sampling) withDefaults() Sampling {
	if s.Temperature <= 0 {
		s.Temperature = DefaultSampling.Temperature
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultSampling.MaxTokens
	}
	return s
}

// Tunable providers accept sampling settings after construction.
type Tunable interface {
	SetSampling(Sampling)
}

// Options configures New.
type Options struct {
	Name     string
	Model    string
	APIKey   string
	BaseURL  string
	Sampling Sampling
	// Binary and Args are used by the cli provider.
	Binary string
	Args   []string
}

// New builds a provider by name.
func New(opts Options) (Provider, error) {
	p, err := build(opts)
	if err != nil {
		return nil, err
	}
	if t, ok := p.(Tunable); ok {
		t.SetSampling(opts.Sampling)
	}
	return p, nil
}

func build(opts Options) (Provider, error) {
	switch opts.Name {
	case "", "stub":
		return NewStubProvider(), nil
	case "openai", "openrouter":
		return NewOpenAIProvider(opts.APIKey, opts.BaseURL, opts.Model)
	case "ollama":
		return NewOllamaProvider(opts.BaseURL, opts.Model)
	case "gemini":
		return NewGeminiProvider(opts.APIKey, opts.Model)
	case "anthropic", "claude":
		p, err := NewAnthropicProvider(opts.APIKey, opts.Model)
		if err != nil {
			return nil, err
		}
		if opts.BaseURL != "" {
			p.SetBaseURL(opts.BaseURL)
		}
		return p, nil
	case "cli":
		return NewCLIProvider(opts.Binary, opts.Args)
	default:
		return nil, fmt.Errorf("unknown provider %q; valid providers: stub, openai, openrouter, ollama, gemini, anthropic, cli", opts.Name)
	}
}
