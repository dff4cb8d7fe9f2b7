package question

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/memoir/internal/interview"
	"github.com/felixgeelhaar/memoir/internal/provider"
)

// Prompt is everything a Phraser may draw on. Draft is the built-in wording
// and is always a usable question on its own.
type Prompt struct {
	Kind      Kind
	Topic     interview.TopicID
	Field     interview.Field
	Profile   interview.Profile
	Recent    []interview.Message
	LifeStage LifeStage
	Decade    int
	Draft     string
}

// Phraser words a question. Implementations may be slow and may fail.
type Phraser interface {
	Phrase(ctx context.Context, p Prompt) (string, error)
}

// LifeStage is a coarse age bracket used to pitch questions.
type LifeStage string

const (
	LifeStageUnknown   LifeStage = ""
	LifeStageChildhood LifeStage = "childhood"
	LifeStageYouth     LifeStage = "youth"
	LifeStageAdulthood LifeStage = "adulthood"
	LifeStageSenior    LifeStage = "senior"
)

// LifeStageAt maps a birth year to the interviewee's current life stage.
func LifeStageAt(birthYear int, now time.Time) LifeStage {
	if birthYear == 0 {
		return LifeStageUnknown
	}
	switch age := now.Year() - birthYear; {
	case age <= 12:
		return LifeStageChildhood
	case age <= 25:
		return LifeStageYouth
	case age <= 50:
		return LifeStageAdulthood
	default:
		return LifeStageSenior
	}
}

// Decade returns the decade of a birth year, or zero when unknown.
func Decade(birthYear int) int {
	if birthYear == 0 {
		return 0
	}
	return birthYear / 10 * 10
}

const phraseSystemPrompt = `You are a warm, patient oral-history interviewer helping an older person record their life story.
Ask exactly one open question at a time, in a kind and respectful tone, like a grandchild asking a grandparent.
Invite concrete scenes, people and feelings. Never ask a yes/no question. Keep it under 50 words.
Reply with the message to say and nothing else.`

// ProviderPhraser rewords draft questions with a language model.
type ProviderPhraser struct {
	Provider provider.Provider
	// History limits how many recent messages are quoted to the model.
	History int
}

// NewProviderPhraser wraps p.
func NewProviderPhraser(p provider.Provider) *ProviderPhraser {
	return &ProviderPhraser{Provider: p, History: 5}
}

func (pp *ProviderPhraser) Phrase(ctx context.Context, p Prompt) (string, error) {
	text, err := provider.Complete(ctx, pp.Provider, phraseSystemPrompt, pp.userPrompt(p))
	if err != nil {
		return "", fmt.Errorf("phrase %s question: %w", p.Kind, err)
	}
	return text, nil
}

func (pp *ProviderPhraser) userPrompt(p Prompt) string {
	var b strings.Builder

	if facts := p.Profile.Map(); len(facts) > 0 {
		b.WriteString("About the interviewee:\n")
		for _, f := range interview.Fields() {
			if v, ok := facts[string(f)]; ok {
				fmt.Fprintf(&b, "- %s: %s\n", strings.ReplaceAll(string(f), "_", " "), v)
			}
		}
	}
	if p.LifeStage != LifeStageUnknown {
		fmt.Fprintf(&b, "Current life stage: %s\n", p.LifeStage)
	}
	if p.Decade != 0 {
		fmt.Fprintf(&b, "Born in the %ds.\n", p.Decade)
	}

	recent := p.Recent
	if pp.History > 0 && len(recent) > pp.History {
		recent = recent[len(recent)-pp.History:]
	}
	if len(recent) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, m := range recent {
			speaker := "Interviewer"
			if m.Role == interview.RoleUser {
				speaker = "Interviewee"
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, truncate(m.Text, 200))
		}
	}

	b.WriteString("\n")
	switch p.Kind {
	case KindGreeting:
		b.WriteString("Write a short, warm opening that explains we will chat to record their life story.")
	case KindProfile:
		fmt.Fprintf(&b, "Naturally ask for their %s, without sounding like a form.", strings.ReplaceAll(string(p.Field), "_", " "))
	case KindDeep:
		fmt.Fprintf(&b, "Ask one deep question about the topic %q.", p.Topic.Title())
	case KindFollowUp:
		fmt.Fprintf(&b, "Their last answer about %q was brief. Briefly acknowledge it, then gently ask for one more concrete detail.", p.Topic.Title())
	case KindClosing:
		b.WriteString("Thank them sincerely for sharing today and say we can continue another time.")
	}
	fmt.Fprintf(&b, "\nA plain version of the message would be: %s", p.Draft)
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
