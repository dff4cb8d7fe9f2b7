// Package profile pulls structured facts about the interviewee out of free
// text and merges them into an interview.Profile.
package profile

import (
	"context"
	"strings"
	"time"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

// Extractor finds profile facts in one utterance.
type Extractor interface {
	// Extract returns the profile updated from text. Fields that fail
	// validation are reported in Update.Dropped and leave p unchanged.
	Extract(ctx context.Context, p interview.Profile, text string) (Update, error)
}

// Update is the result of an extraction.
type Update struct {
	Profile interview.Profile
	Changed []interview.Field
	// Dropped holds *interview.MalformedFieldError values.
	Dropped []error
}

type expectedKey struct{}

// WithExpected marks ctx with the field the last question asked for, so a
// bare answer like "1951" can be attributed to it.
func WithExpected(ctx context.Context, f interview.Field) context.Context {
	return context.WithValue(ctx, expectedKey{}, f)
}

// Expected returns the field set by WithExpected, if any.
func Expected(ctx context.Context) (interview.Field, bool) {
	f, ok := ctx.Value(expectedKey{}).(interview.Field)
	return f, ok && f != ""
}

var correctionMarkers = []string{
	"actually", "correction", "i meant", "i mean,", "no,", "sorry,", "let me correct",
	"其实", "更正", "不对", "说错了", "纠正",
}

// IsCorrection reports whether text carries a marker saying it corrects an
// earlier answer.
func IsCorrection(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, m := range correctionMarkers {
		if !isASCII(m) {
			if strings.Contains(lower, m) {
				return true
			}
			continue
		}
		if strings.HasPrefix(lower, m) || strings.Contains(lower, " "+m) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// Merge applies candidate values to p. A populated field is only replaced by
// a candidate marked Correcting. Merging the same candidates twice yields the
// same profile as merging them once.
func Merge(p interview.Profile, candidates map[interview.Field]Candidate, now time.Time) Update {
	up := Update{Profile: p}
	for _, f := range interview.Fields() {
		c, ok := candidates[f]
		if !ok {
			continue
		}
		if up.Profile.Has(f) && !c.Correcting {
			continue
		}
		value, err := interview.NormalizeField(f, c.Value, now)
		if err != nil {
			up.Dropped = append(up.Dropped, err)
			continue
		}
		if cur, _ := up.Profile.Get(f); cur == value {
			continue
		}
		// NormalizeField already validated value.
		_ = up.Profile.Set(f, value, now)
		up.Changed = append(up.Changed, f)
	}
	return up
}
