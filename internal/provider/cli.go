package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// CLIProvider runs a locally installed model command, such as `llm` or
// `claude -p`, with the whole exchange as its final argument. Only stdout
// is taken as the reply.
type CLIProvider struct {
	binaryPath string
	args       []string
	timeout    time.Duration
}

func NewCLIProvider(binaryPath string, args []string) (*CLIProvider, error) {
	if binaryPath == "" {
		return nil, errors.New("binary path is required for CLI provider")
	}
	return &CLIProvider{binaryPath: binaryPath, args: args, timeout: 2 * time.Minute}, nil
}

func (p *CLIProvider) Name() string {
	return "cli-" + filepath.Base(p.binaryPath)
}

// prompt flattens messages: instructions first, then the labelled turns.
func prompt(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		switch m.Role {
		case "system":
			b.WriteString(m.Content)
		case "assistant":
			b.WriteString("Interviewer: " + m.Content)
		default:
			b.WriteString("Input: " + m.Content)
		}
	}
	return b.String()
}

func (p *CLIProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := append(append([]string(nil), p.args...), prompt(messages))
	cmd := exec.CommandContext(ctx, p.binaryPath, args...) // #nosec G204
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timed out after %s: %w", p.Name(), p.timeout, err)
		}
		return nil, fmt.Errorf("%s failed: %w: %s", p.Name(), err, strings.TrimSpace(stderr.String()))
	}

	out := stdout.String()
	return &Response{Content: out, Usage: Usage{TotalTokens: len(strings.Fields(out))}}, nil
}
