package memoir

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/felixgeelhaar/memoir/internal/interview"
	"github.com/felixgeelhaar/memoir/internal/provider"
)

// TemplateComposer writes sections offline from the interviewee's own words.
type TemplateComposer struct{}

var literaryLeads = map[interview.TopicID]string{
	interview.TopicChildhood:       "Some memories never fade, and the ones from my childhood are among them.",
	interview.TopicFamily:          "Family was the ground I stood on.",
	interview.TopicSchoolYears:     "My school years come back to me in small, bright pieces.",
	interview.TopicYouth:           "When I was young, the whole world seemed to be waiting for me.",
	interview.TopicLoveAndMarriage: "Love came into my life in its own time.",
	interview.TopicCareer:          "Work gave shape to my days for many years.",
	interview.TopicHardships:       "There were hard times too, and I will not pretend otherwise.",
	interview.TopicHistoricalTimes: "I lived through years that the history books now describe.",
	interview.TopicRaisingChildren: "Raising children taught me more than anything else ever did.",
	interview.TopicRetirement:      "When my working years ended, a quieter kind of life began.",
	interview.TopicLifeLessons:     "Looking back now, this is what I have come to understand.",
}

func (TemplateComposer) Compose(_ context.Context, ch Chapter) (string, error) {
	passages := make([]string, 0, len(ch.Passages))
	for _, p := range ch.Passages {
		passages = append(passages, sentence(p))
	}

	switch ch.Style {
	case interview.StyleLiterary:
		lead := literaryLeads[ch.Topic]
		if lead == "" {
			lead = "I remember " + strings.ToLower(ch.Topic.Title()) + " well."
		}
		return lead + " " + strings.Join(passages, " "), nil
	case interview.StyleLetter:
		recipient := ch.Recipient
		if recipient == "" {
			recipient = "you"
		}
		return fmt.Sprintf("I want you, %s, to know about %s. %s",
			recipient, strings.ToLower(ch.Topic.Title()), strings.Join(passages, "\n\n")), nil
	default:
		return strings.Join(passages, "\n\n"), nil
	}
}

// sentence trims s and makes sure it ends with terminal punctuation.
func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	last := r[len(r)-1]
	if unicode.IsPunct(last) {
		return s
	}
	for _, c := range r {
		if unicode.Is(unicode.Han, c) {
			return s + "。"
		}
	}
	return s + "."
}

var styleGuides = map[interview.Style]string{
	interview.StyleFactual:  "Write plainly and factually in chronological order. Restate what they said with minimal embellishment.",
	interview.StyleLiterary: "Write as literary prose with descriptive language and scene-setting, keeping the first-person voice.",
	interview.StyleLetter:   "Write as a letter to %s: warm, addressing them directly as \"you\", passing on what was learned.",
}

// ProviderComposer writes sections with a language model.
type ProviderComposer struct {
	Provider provider.Provider
}

// NewProviderComposer wraps p.
func NewProviderComposer(p provider.Provider) *ProviderComposer {
	return &ProviderComposer{Provider: p}
}

func (c *ProviderComposer) Compose(ctx context.Context, ch Chapter) (string, error) {
	guide := styleGuides[ch.Style]
	if ch.Style == interview.StyleLetter {
		recipient := ch.Recipient
		if recipient == "" {
			recipient = "their descendants"
		}
		guide = fmt.Sprintf(guide, recipient)
	}
	system := "You are a professional memoir writer turning interview answers into one chapter of a memoir. " +
		"Narrate in the first person as the interviewee. Keep their own phrases and tone. " +
		"Use only facts present in the answers. " + guide +
		" Reply with the chapter body only, without a heading."

	var b strings.Builder
	if facts := ch.Profile.Map(); len(facts) > 0 {
		b.WriteString("About the interviewee:\n")
		for _, f := range interview.Fields() {
			if v, ok := facts[string(f)]; ok {
				fmt.Fprintf(&b, "- %s: %s\n", strings.ReplaceAll(string(f), "_", " "), v)
			}
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Chapter topic: %s\n\nWhat they said:\n", ch.Topic.Title())
	for _, p := range ch.Passages {
		fmt.Fprintf(&b, "- %s\n", p)
	}

	text, err := provider.Complete(ctx, c.Provider, system, b.String())
	if err != nil {
		return "", fmt.Errorf("compose %s chapter: %w", ch.Topic, err)
	}
	return text, nil
}
