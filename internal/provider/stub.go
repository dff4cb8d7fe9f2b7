package provider

import (
	"context"
	"sync"
)

// StubProvider replays canned responses. It is used by tests and as the
// offline default, where the engine falls back to its local templates.
type StubProvider struct {
	mu        sync.Mutex
	Responses []Response
	// Err, when set, is returned by every call.
	Err error
	// Fallback is returned once Responses run out.
	Fallback string
	calls    [][]Message
}

func NewStubProvider(responses ...string) *StubProvider {
	p := &StubProvider{}
	for _, r := range responses {
		p.Responses = append(p.Responses, Response{Content: r})
	}
	return p
}

func (m *StubProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]Message(nil), messages...))
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return &Response{Content: m.Fallback}, nil
	}

	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return &resp, nil
}

// Calls returns the message lists received so far.
func (m *StubProvider) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Message(nil), m.calls...)
}

func (m *StubProvider) Name() string {
	return "stub"
}
