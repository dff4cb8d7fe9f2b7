package engine

import (
	"time"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

// Summary describes a session at a glance.
type Summary struct {
	ID            string
	Stage         interview.Stage
	StartedAt     time.Time
	Duration      time.Duration
	Messages      int
	Exchanges     int
	TopicsCovered []interview.TopicID
	FollowUps     int
	Profile       interview.Profile
	Missing       []interview.Field
}

// Summarize reports progress on s. mandatory lists the fields still wanted.
func Summarize(s *interview.Session, mandatory []interview.Field) Summary {
	return Summary{
		ID:            s.ID,
		Stage:         s.Stage,
		StartedAt:     s.CreatedAt,
		Duration:      s.UpdatedAt.Sub(s.CreatedAt),
		Messages:      len(s.Messages),
		Exchanges:     s.Exchanges(),
		TopicsCovered: append([]interview.TopicID(nil), s.TopicsCovered...),
		FollowUps:     len(s.FollowedUp),
		Profile:       s.Profile,
		Missing:       s.Profile.Missing(mandatory),
	}
}

// Summarize reports progress on s against the engine's mandatory fields.
func (e *Engine) Summarize(s *interview.Session) Summary {
	return Summarize(s, e.questions.Mandatory())
}
