package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/memoir/internal/interview"
	"github.com/felixgeelhaar/memoir/internal/provider"
)

const extractSystemPrompt = `You extract facts about a person from one thing they said in a life-story interview.
Reply with a single JSON object and nothing else. Use only these keys, and omit any key the text does not state outright:
"name", "birth_year" (a four-digit number), "hometown", "occupation", "education", "correction" (true only if the speaker is correcting something they said earlier).`

// ProviderExtractor asks a language model for the facts in an utterance. A
// value is only accepted when it literally appears in the utterance, so the
// model cannot invent facts.
type ProviderExtractor struct {
	Provider provider.Provider
	Now      func() time.Time
}

// NewProviderExtractor wires p with the wall clock.
func NewProviderExtractor(p provider.Provider) *ProviderExtractor {
	return &ProviderExtractor{Provider: p, Now: time.Now}
}

type extraction struct {
	Name       string          `json:"name"`
	BirthYear  json.RawMessage `json:"birth_year"`
	Hometown   string          `json:"hometown"`
	Occupation string          `json:"occupation"`
	Education  string          `json:"education"`
	Correction bool            `json:"correction"`
}

func (e *ProviderExtractor) Extract(ctx context.Context, p interview.Profile, text string) (Update, error) {
	if strings.TrimSpace(text) == "" {
		return Update{Profile: p}, nil
	}

	user := "Text: " + text
	if f, ok := Expected(ctx); ok {
		user = fmt.Sprintf("The interviewer had just asked for the %s.\n%s", strings.ReplaceAll(string(f), "_", " "), user)
	}
	out, err := provider.Complete(ctx, e.Provider, extractSystemPrompt, user)
	if err != nil {
		return Update{}, fmt.Errorf("profile extraction: %w", err)
	}

	ex, err := parseExtraction(out)
	if err != nil {
		return Update{}, fmt.Errorf("profile extraction: %w", err)
	}

	candidates := make(map[interview.Field]Candidate)
	add := func(f interview.Field, v string) {
		v = strings.TrimSpace(v)
		at := indexFold(text, v)
		if v == "" || at < 0 {
			return
		}
		start, end := sentenceBounds(text, at, at+len(v))
		if thirdParty.MatchString(text[start : at+len(v)]) {
			return
		}
		candidates[f] = Candidate{
			Value:      v,
			Correcting: ex.Correction || IsCorrection(text[start:end]),
		}
	}
	add(interview.FieldName, ex.Name)
	add(interview.FieldBirthYear, rawYear(ex.BirthYear))
	add(interview.FieldHometown, ex.Hometown)
	add(interview.FieldOccupation, ex.Occupation)
	add(interview.FieldEducation, ex.Education)

	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}
	return Merge(p, candidates, now), nil
}

// parseExtraction tolerates prose or code fences around the JSON object.
func parseExtraction(s string) (extraction, error) {
	var ex extraction
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ex, fmt.Errorf("no JSON object in model output %q", s)
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &ex); err != nil {
		return ex, fmt.Errorf("invalid JSON in model output: %w", err)
	}
	return ex, nil
}

func rawYear(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.Itoa(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// indexFold finds needle in haystack ignoring ASCII case. Lowering keeps
// byte offsets only for ASCII letters, which is all the folding needed here.
func indexFold(haystack, needle string) int {
	if needle == "" {
		return -1
	}
	return strings.Index(asciiLower(haystack), asciiLower(needle))
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
