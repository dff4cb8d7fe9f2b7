package memoir

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/felixgeelhaar/memoir/internal/interview"
	"github.com/felixgeelhaar/memoir/internal/provider"
)

const (
	recapMessages = 10
	recapRunes    = 2000
	highlightLen  = 160
)

// Recap is what an interview summary is written from.
type Recap struct {
	Profile interview.Profile
	// Discussed lists narrated topics in the order they were first told.
	Discussed []interview.TopicID
	// Remaining lists configured topics nobody has talked about yet.
	Remaining []interview.TopicID
	// Recent holds the interviewee's latest answers, oldest first.
	Recent []string
}

// Summarizer writes a short interview summary. Composers may implement it.
type Summarizer interface {
	Summarize(ctx context.Context, r Recap) (string, error)
}

// Summary describes the interview so far: what was discussed, what stood out
// and where to pick up next time. If the composer fails, the local summary
// is returned together with the error.
func (w *Writer) Summary(ctx context.Context, messages []interview.Message, p interview.Profile) (string, error) {
	r := w.recap(messages, p)
	s, ok := w.composer.(Summarizer)
	if !ok {
		return TemplateSummary(r), nil
	}
	text, err := s.Summarize(ctx, r)
	if err != nil {
		return TemplateSummary(r), interview.Unavailable("summarize", err)
	}
	return text, nil
}

func (w *Writer) recap(messages []interview.Message, p interview.Profile) Recap {
	seg := Segment(messages, w.shallow)
	r := Recap{Profile: p, Discussed: seg.Topics()}

	told := make(map[interview.TopicID]bool, len(r.Discussed))
	for _, id := range r.Discussed {
		told[id] = true
	}
	for _, id := range w.cfg.Topics() {
		if !told[id] {
			r.Remaining = append(r.Remaining, id)
		}
	}

	var recent []string
	budget := recapRunes
	for i := len(messages) - 1; i >= 0 && len(recent) < recapMessages; i-- {
		m := messages[i]
		text := strings.TrimSpace(m.Text)
		if m.Role != interview.RoleUser || text == "" || m.Topic == "" {
			continue
		}
		n := utf8.RuneCountInString(text)
		if n > budget {
			break
		}
		budget -= n
		recent = append(recent, text)
	}
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	r.Recent = recent
	return r
}

// TemplateSummary writes a summary without a language model.
func TemplateSummary(r Recap) string {
	var b strings.Builder
	name := r.Profile.Name
	if name == "" {
		name = "the storyteller"
	}
	fmt.Fprintf(&b, "Interview with %s.\n", name)

	if len(r.Discussed) == 0 {
		b.WriteString("Topics discussed: none yet.\n")
	} else {
		fmt.Fprintf(&b, "Topics discussed: %s.\n", titles(r.Discussed))
	}

	if h := highlight(r.Recent); h != "" {
		fmt.Fprintf(&b, "Stood out: %q\n", h)
	}

	switch {
	case len(r.Remaining) == 0:
		b.WriteString("Next time: every topic has been covered; go deeper on any of them.")
	case len(r.Remaining) > 3:
		fmt.Fprintf(&b, "Next time: %s.", titles(r.Remaining[:3]))
	default:
		fmt.Fprintf(&b, "Next time: %s.", titles(r.Remaining))
	}
	return b.String()
}

// highlight picks the longest recent answer, cut to a readable length.
func highlight(recent []string) string {
	best := ""
	for _, s := range recent {
		if utf8.RuneCountInString(s) > utf8.RuneCountInString(best) {
			best = s
		}
	}
	if r := []rune(best); len(r) > highlightLen {
		return strings.TrimSpace(string(r[:highlightLen])) + "..."
	}
	return best
}

func titles(ids []interview.TopicID) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Title())
	}
	return strings.Join(out, ", ")
}

const summarySystemPrompt = "You summarise one session of a life-story interview for the interviewer's notes. " +
	"Reply in under 200 words with three short parts: the topics discussed, what stood out, " +
	"and what to explore next time. Use only what the interviewee said."

// Summarize asks the model for an interview summary.
func (c *ProviderComposer) Summarize(ctx context.Context, r Recap) (string, error) {
	var b strings.Builder
	name := r.Profile.Name
	if name == "" {
		name = "unknown"
	}
	fmt.Fprintf(&b, "Interviewee: %s\n", name)
	if len(r.Discussed) > 0 {
		fmt.Fprintf(&b, "Topics covered: %s\n", titles(r.Discussed))
	}
	if len(r.Remaining) > 0 {
		fmt.Fprintf(&b, "Not yet covered: %s\n", titles(r.Remaining))
	}
	b.WriteString("\nWhat they said recently:\n")
	for _, s := range r.Recent {
		fmt.Fprintf(&b, "- %s\n", s)
	}

	text, err := provider.Complete(ctx, c.Provider, summarySystemPrompt, b.String())
	if err != nil {
		return "", fmt.Errorf("summarize interview: %w", err)
	}
	return text, nil
}
