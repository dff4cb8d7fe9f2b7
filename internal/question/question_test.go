package question

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/memoir/internal/config"
	"github.com/felixgeelhaar/memoir/internal/interview"
	"github.com/felixgeelhaar/memoir/internal/provider"
)

type recordingPhraser struct {
	prompts []Prompt
	err     error
}

func (r *recordingPhraser) Phrase(_ context.Context, p Prompt) (string, error) {
	r.prompts = append(r.prompts, p)
	if r.err != nil {
		return "", r.err
	}
	return "phrased: " + p.Draft, nil
}

func newGenerator(phraser Phraser) *Generator {
	g := New(config.Default(), phraser)
	g.Now = func() time.Time { return time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC) }
	return g
}

func TestGenerator_ProfileQuestions(t *testing.T) {
	g := newGenerator(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		profile interview.Profile
		kind    Kind
		field   interview.Field
	}{
		{"Empty", interview.Profile{}, KindProfile, interview.FieldName},
		{"Name Known", interview.Profile{Name: "Li Hua"}, KindProfile, interview.FieldBirthYear},
		{"Year Known", interview.Profile{BirthYear: 1951}, KindProfile, interview.FieldName},
		{"Complete", interview.Profile{Name: "Li Hua", BirthYear: 1951}, KindProfileComplete, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := g.Next(ctx, Request{Stage: interview.StageProfileCollection, Profile: tt.profile})
			if err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			if q.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, q.Kind)
			}
			if q.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, q.Field)
			}
			if tt.kind == KindProfile && q.Text != fieldPrompt(tt.field) {
				t.Errorf("Expected fixed prompt, got %q", q.Text)
			}
			if q.Sentinel() != (tt.kind == KindProfileComplete) {
				t.Errorf("Unexpected sentinel flag for %s", q.Kind)
			}
		})
	}
}

func TestGenerator_ProfilePhrasing(t *testing.T) {
	ph := &recordingPhraser{}
	g := newGenerator(ph)

	q, _ := g.Next(context.Background(), Request{Stage: interview.StageProfileCollection})
	if !strings.HasPrefix(q.Text, "phrased: ") {
		t.Errorf("Expected phrased question with two fields missing, got %q", q.Text)
	}

	q, _ = g.Next(context.Background(), Request{Stage: interview.StageProfileCollection, Profile: interview.Profile{Name: "Li Hua"}})
	if q.Text != fieldPrompt(interview.FieldBirthYear) {
		t.Errorf("Expected fixed prompt for the last missing field, got %q", q.Text)
	}
	if len(ph.prompts) != 1 {
		t.Errorf("Expected 1 phraser call, got %d", len(ph.prompts))
	}
}

func TestGenerator_TopicSelection(t *testing.T) {
	g := newGenerator(nil)
	ctx := context.Background()
	base := interview.Profile{Name: "Li Hua", BirthYear: 1951}

	t.Run("Canonical Order On Ties", func(t *testing.T) {
		q, _ := g.Next(ctx, Request{Stage: interview.StageDeepInterview, Profile: base})
		if q.Topic != interview.TopicChildhood {
			t.Errorf("Expected childhood, got %s", q.Topic)
		}
		q, _ = g.Next(ctx, Request{Stage: interview.StageDeepInterview, Profile: base, TopicsCovered: []interview.TopicID{interview.TopicChildhood}})
		if q.Topic != interview.TopicFamily {
			t.Errorf("Expected family, got %s", q.Topic)
		}
	})

	t.Run("Occupation Raises Career", func(t *testing.T) {
		p := base
		p.Occupation = "teacher"
		q, _ := g.Next(ctx, Request{Stage: interview.StageDeepInterview, Profile: p})
		if q.Topic != interview.TopicCareer {
			t.Errorf("Expected career, got %s", q.Topic)
		}
		if !strings.Contains(q.Text, "teacher") {
			t.Errorf("Expected personalised question, got %q", q.Text)
		}
	})

	t.Run("Configured Order", func(t *testing.T) {
		cfg := config.Default()
		cfg.TopicOrder = []string{"life_lessons", "childhood"}
		g := New(cfg, nil)
		q, _ := g.Next(ctx, Request{Stage: interview.StageDeepInterview, Profile: base})
		if q.Topic != interview.TopicLifeLessons {
			t.Errorf("Expected life_lessons, got %s", q.Topic)
		}
	})
}

func TestGenerator_NeverRepeatsCoveredTopic(t *testing.T) {
	g := newGenerator(nil)
	ctx := context.Background()
	req := Request{
		Stage:   interview.StageDeepInterview,
		Profile: interview.Profile{Name: "Li Hua", BirthYear: 1951, Hometown: "Suzhou", Occupation: "teacher"},
	}

	seen := make(map[interview.TopicID]bool)
	for i := 0; i < len(interview.TopicIDs()); i++ {
		q, err := g.Next(ctx, req)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if q.Kind != KindDeep {
			t.Fatalf("Expected deep question at step %d, got %s", i, q.Kind)
		}
		if seen[q.Topic] {
			t.Fatalf("Topic %s returned twice", q.Topic)
		}
		seen[q.Topic] = true
		req.TopicsCovered = append(req.TopicsCovered, q.Topic)
		req.CurrentTopic = q.Topic
	}

	q, _ := g.Next(ctx, req)
	if q.Kind != KindExhausted || !q.Sentinel() {
		t.Errorf("Expected exhausted sentinel, got %s", q.Kind)
	}
	if q.Text == "" {
		t.Error("Expected exhausted nudge text")
	}
}

func TestGenerator_FollowUpBound(t *testing.T) {
	g := newGenerator(nil)
	ctx := context.Background()
	shallow := interview.Message{Role: interview.RoleUser, Text: "I don't remember.", Topic: interview.TopicChildhood}

	req := Request{
		Stage:         interview.StageDeepInterview,
		Profile:       interview.Profile{Name: "Li Hua", BirthYear: 1951},
		TopicsCovered: []interview.TopicID{interview.TopicChildhood},
		CurrentTopic:  interview.TopicChildhood,
		Recent:        []interview.Message{shallow},
	}

	q, _ := g.Next(ctx, req)
	if q.Kind != KindFollowUp || q.Topic != interview.TopicChildhood {
		t.Fatalf("Expected follow-up on childhood, got %s/%s", q.Kind, q.Topic)
	}

	// Same shallow answer again: the follow-up budget is spent.
	req.FollowedUp = []interview.TopicID{interview.TopicChildhood}
	req.Recent = append(req.Recent, interview.Message{Role: interview.RoleAssistant, Text: q.Text, Topic: q.Topic}, shallow)
	q, _ = g.Next(ctx, req)
	if q.Kind != KindDeep || q.Topic != interview.TopicFamily {
		t.Errorf("Expected to advance to family, got %s/%s", q.Kind, q.Topic)
	}

	t.Run("Rich Answer Advances", func(t *testing.T) {
		rich := interview.Message{Role: interview.RoleUser, Topic: interview.TopicChildhood,
			Text: "We lived by the canal and my mother sold steamed buns every morning before dawn."}
		q, _ := g.Next(ctx, Request{
			Stage:         interview.StageDeepInterview,
			TopicsCovered: []interview.TopicID{interview.TopicChildhood},
			CurrentTopic:  interview.TopicChildhood,
			Recent:        []interview.Message{rich},
		})
		if q.Kind != KindDeep {
			t.Errorf("Expected deep question, got %s", q.Kind)
		}
	})
}

func TestGenerator_PhraserFailure(t *testing.T) {
	g := newGenerator(&recordingPhraser{err: errors.New("rate limited")})
	_, err := g.Next(context.Background(), Request{Stage: interview.StageDeepInterview})
	if !errors.Is(err, interview.ErrCollaboratorUnavailable) {
		t.Errorf("Expected ErrCollaboratorUnavailable, got %v", err)
	}
}

func TestGenerator_GreetingAndClosing(t *testing.T) {
	g := newGenerator(nil)
	q, err := g.Greeting(context.Background(), interview.Profile{})
	if err != nil {
		t.Fatalf("Greeting failed: %v", err)
	}
	if q.Field != interview.FieldName || !strings.HasSuffix(q.Text, fieldPrompt(interview.FieldName)) {
		t.Errorf("Expected greeting to ask for the name, got %q", q.Text)
	}

	text, err := g.Closing(context.Background(), interview.Profile{Name: "Li Hua"}, 7)
	if err != nil {
		t.Fatalf("Closing failed: %v", err)
	}
	if !strings.Contains(text, "Li Hua") || !strings.Contains(text, "7 exchanges") {
		t.Errorf("Unexpected closing %q", text)
	}
}

func TestLifeStage(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		year int
		want LifeStage
	}{
		{0, LifeStageUnknown},
		{2020, LifeStageChildhood},
		{2005, LifeStageYouth},
		{1990, LifeStageAdulthood},
		{1951, LifeStageSenior},
	}
	for _, tt := range tests {
		if got := LifeStageAt(tt.year, now); got != tt.want {
			t.Errorf("LifeStageAt(%d) expected %q, got %q", tt.year, tt.want, got)
		}
	}
	if Decade(1957) != 1950 {
		t.Errorf("Expected 1950, got %d", Decade(1957))
	}
}

func TestProviderPhraser(t *testing.T) {
	stub := provider.NewStubProvider("What did the canal look like in spring?")
	g := newGenerator(NewProviderPhraser(stub))

	q, err := g.Next(context.Background(), Request{
		Stage:   interview.StageDeepInterview,
		Profile: interview.Profile{Name: "Li Hua", BirthYear: 1951, Hometown: "Suzhou"},
	})
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if q.Text != "What did the canal look like in spring?" {
		t.Errorf("Expected provider wording, got %q", q.Text)
	}

	calls := stub.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 provider call, got %d", len(calls))
	}
	user := calls[0][1].Content
	for _, want := range []string{"Born in the 1950s", "life stage: senior", "hometown: Suzhou", "Childhood"} {
		if !strings.Contains(user, want) {
			t.Errorf("Expected prompt to contain %q, got:\n%s", want, user)
		}
	}
}
