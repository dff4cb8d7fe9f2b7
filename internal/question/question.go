// Package question decides what the interviewer asks next. Field priority,
// topic weighting and the follow-up bound are computed here; a Phraser may
// reword the chosen question.
package question

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/memoir/internal/config"
	"github.com/felixgeelhaar/memoir/internal/interview"
)

// Kind classifies a generated question.
type Kind string

const (
	KindGreeting Kind = "greeting"
	KindProfile  Kind = "profile"
	KindDeep     Kind = "deep"
	KindFollowUp Kind = "follow_up"
	KindClosing  Kind = "closing"
	// KindProfileComplete carries no text: every mandatory field is known.
	KindProfileComplete Kind = "profile_complete"
	// KindExhausted means every topic is covered. Text nudges the user toward
	// the memoir without forcing it.
	KindExhausted Kind = "exhausted"
)

// Request is the generator input.
type Request struct {
	Stage         interview.Stage
	Profile       interview.Profile
	TopicsCovered []interview.TopicID
	FollowedUp    []interview.TopicID
	CurrentTopic  interview.TopicID
	Recent        []interview.Message
}

// Question is the generator output.
type Question struct {
	Kind  Kind
	Text  string
	Topic interview.TopicID
	Field interview.Field
}

// Sentinel reports whether q signals a state change rather than a prompt to
// ask.
func (q Question) Sentinel() bool {
	return q.Kind == KindProfileComplete || q.Kind == KindExhausted
}

// Generator picks the next question.
type Generator struct {
	mandatory []interview.Field
	order     []interview.TopicID
	shallow   interview.ShallowDetector
	phraser   Phraser

	// Now supplies the clock used for life-stage context.
	Now func() time.Time
}

// New builds a Generator from cfg. A nil phraser keeps the built-in wording.
func New(cfg config.Config, phraser Phraser) *Generator {
	order := cfg.Topics()
	if len(order) == 0 {
		order = interview.TopicIDs()
	}
	return &Generator{
		mandatory: cfg.Mandatory(),
		order:     order,
		shallow:   cfg.Shallow(),
		phraser:   phraser,
		Now:       time.Now,
	}
}

// Mandatory returns the mandatory fields in priority order.
func (g *Generator) Mandatory() []interview.Field {
	return append([]interview.Field(nil), g.mandatory...)
}

// Order returns the topic priority order.
func (g *Generator) Order() []interview.TopicID {
	return append([]interview.TopicID(nil), g.order...)
}

// PendingField is the field the next profile question asks for.
func (g *Generator) PendingField(p interview.Profile) (interview.Field, bool) {
	missing := p.Missing(g.mandatory)
	if len(missing) == 0 {
		return "", false
	}
	return missing[0], true
}

// Next returns the question to ask for req.
func (g *Generator) Next(ctx context.Context, req Request) (Question, error) {
	switch req.Stage {
	case interview.StageGreeting, interview.StageProfileCollection:
		return g.profileQuestion(ctx, req)
	case interview.StageDeepInterview, interview.StageMemoirReady:
		return g.deepQuestion(ctx, req)
	default:
		return Question{}, fmt.Errorf("no question for stage %s", req.Stage)
	}
}

func (g *Generator) profileQuestion(ctx context.Context, req Request) (Question, error) {
	missing := req.Profile.Missing(g.mandatory)
	if len(missing) == 0 {
		return Question{Kind: KindProfileComplete}, nil
	}
	f := missing[0]
	q := Question{Kind: KindProfile, Field: f}

	// A single missing field gets its fixed prompt; otherwise the phraser may
	// fold the question into the conversation.
	if len(missing) == 1 || g.phraser == nil {
		q.Text = fieldPrompt(f)
		return q, nil
	}
	text, err := g.phrase(ctx, g.prompt(req, q, fieldPrompt(f)))
	if err != nil {
		return Question{}, err
	}
	q.Text = text
	return q, nil
}

func (g *Generator) deepQuestion(ctx context.Context, req Request) (Question, error) {
	if g.wantsFollowUp(req) {
		q := Question{Kind: KindFollowUp, Topic: req.CurrentTopic}
		text, err := g.phrase(ctx, g.prompt(req, q, followUpTemplate(req.CurrentTopic)))
		if err != nil {
			return Question{}, err
		}
		q.Text = text
		return q, nil
	}

	id, ok := g.pickTopic(req.Profile, req.TopicsCovered)
	if !ok {
		return Question{Kind: KindExhausted, Text: exhaustedText}, nil
	}
	q := Question{Kind: KindDeep, Topic: id}
	text, err := g.phrase(ctx, g.prompt(req, q, deepTemplate(id, req.Profile)))
	if err != nil {
		return Question{}, err
	}
	q.Text = text
	return q, nil
}

// wantsFollowUp allows one follow-up per topic, and only after a shallow
// answer to that topic.
func (g *Generator) wantsFollowUp(req Request) bool {
	if req.CurrentTopic == "" || contains(req.FollowedUp, req.CurrentTopic) {
		return false
	}
	last, ok := lastUser(req.Recent)
	if !ok || last.Topic != req.CurrentTopic {
		return false
	}
	return g.shallow.IsShallow(last.Text)
}

// Relevance scores topic t for profile p. Every known related field adds a
// point to the base weight of one.
func Relevance(t interview.Topic, p interview.Profile) int {
	score := 1
	for _, f := range t.Related {
		if p.Has(f) {
			score++
		}
	}
	return score
}

// pickTopic returns the most relevant uncovered topic. Ties go to the topic
// that comes first in the priority order.
func (g *Generator) pickTopic(p interview.Profile, covered []interview.TopicID) (interview.TopicID, bool) {
	var best interview.TopicID
	bestScore := 0
	for _, id := range g.order {
		if contains(covered, id) {
			continue
		}
		t, ok := interview.LookupTopic(id)
		if !ok {
			continue
		}
		if s := Relevance(t, p); s > bestScore {
			best, bestScore = id, s
		}
	}
	return best, bestScore > 0
}

// Greeting returns the opening message, which ends with the first profile
// question when one is pending.
func (g *Generator) Greeting(ctx context.Context, p interview.Profile) (Question, error) {
	q := Question{Kind: KindGreeting}
	draft := greetingText
	if f, ok := g.PendingField(p); ok {
		q.Field = f
		draft += " " + fieldPrompt(f)
	}
	text, err := g.phrase(ctx, g.prompt(Request{Stage: interview.StageGreeting, Profile: p}, q, draft))
	if err != nil {
		return Question{}, err
	}
	q.Text = text
	return q, nil
}

// Closing returns the farewell message for a session with the given number of
// exchanges.
func (g *Generator) Closing(ctx context.Context, p interview.Profile, exchanges int) (string, error) {
	q := Question{Kind: KindClosing}
	return g.phrase(ctx, g.prompt(Request{Stage: interview.StageClosed, Profile: p}, q, closingText(p, exchanges)))
}

func (g *Generator) phrase(ctx context.Context, pr Prompt) (string, error) {
	if g.phraser == nil {
		return pr.Draft, nil
	}
	text, err := g.phraser.Phrase(ctx, pr)
	if err != nil {
		return "", interview.Unavailable("phrase "+string(pr.Kind), err)
	}
	return text, nil
}

func (g *Generator) prompt(req Request, q Question, draft string) Prompt {
	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}
	return Prompt{
		Kind:      q.Kind,
		Topic:     q.Topic,
		Field:     q.Field,
		Profile:   req.Profile,
		Recent:    req.Recent,
		LifeStage: LifeStageAt(req.Profile.BirthYear, now),
		Decade:    Decade(req.Profile.BirthYear),
		Draft:     draft,
	}
}

func lastUser(msgs []interview.Message) (interview.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == interview.RoleUser {
			return msgs[i], true
		}
	}
	return interview.Message{}, false
}

func contains(ids []interview.TopicID, id interview.TopicID) bool {
	for _, t := range ids {
		if t == id {
			return true
		}
	}
	return false
}
