package interview

import (
	"fmt"
	"time"
)

// Role is the speaker of a message.
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Message is one utterance in the transcript.
type Message struct {
	Role      Role
	Text      string
	Timestamp time.Time
	// StageAtTime is the stage the session was in when the message was produced.
	StageAtTime Stage
	// Topic is the deep-interview topic the message belongs to, if any.
	Topic TopicID
}

// Session is one interview. It exclusively owns its profile and transcript.
type Session struct {
	ID            string
	Stage         Stage
	Profile       Profile
	Messages      []Message
	TopicsCovered []TopicID
	// FollowedUp lists topics that already received their single follow-up.
	FollowedUp []TopicID
	// CurrentTopic is the topic of the most recent deep question.
	CurrentTopic TopicID
	// ProfileTurns counts user turns handled in profile collection.
	ProfileTurns int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSession returns a session in the greeting stage.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Stage:     StageGreeting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Closed reports whether the session reached its terminal stage.
func (s *Session) Closed() bool {
	return s.Stage == StageClosed
}

// Transition moves the session along an edge of the stage graph.
func (s *Session) Transition(to Stage) error {
	if !CanTransition(s.Stage, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, to)
	}
	s.Stage = to
	return nil
}

// Append adds m to the transcript. Timestamps are forced to be strictly
// increasing so ordering survives coarse clocks.
func (s *Session) Append(m Message) {
	if n := len(s.Messages); n > 0 {
		last := s.Messages[n-1].Timestamp
		if !m.Timestamp.After(last) {
			m.Timestamp = last.Add(time.Nanosecond)
		}
	}
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = m.Timestamp
}

// Covered reports whether id was already asked about.
func (s *Session) Covered(id TopicID) bool {
	return containsTopic(s.TopicsCovered, id)
}

// MarkCovered records id in TopicsCovered; the set only grows.
func (s *Session) MarkCovered(id TopicID) {
	if id != "" && !s.Covered(id) {
		s.TopicsCovered = append(s.TopicsCovered, id)
	}
}

// HasFollowedUp reports whether id already used its follow-up.
func (s *Session) HasFollowedUp(id TopicID) bool {
	return containsTopic(s.FollowedUp, id)
}

// MarkFollowedUp records that id received its follow-up.
func (s *Session) MarkFollowedUp(id TopicID) {
	if id != "" && !s.HasFollowedUp(id) {
		s.FollowedUp = append(s.FollowedUp, id)
	}
}

// Exchanges counts user messages.
func (s *Session) Exchanges() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Recent returns a copy of the last n messages.
func (s *Session) Recent(n int) []Message {
	start := 0
	if n > 0 && len(s.Messages) > n {
		start = len(s.Messages) - n
	}
	out := make([]Message, len(s.Messages)-start)
	copy(out, s.Messages[start:])
	return out
}

// Clone returns a deep copy that shares nothing with s.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	cp.TopicsCovered = append([]TopicID(nil), s.TopicsCovered...)
	cp.FollowedUp = append([]TopicID(nil), s.FollowedUp...)
	return &cp
}

func containsTopic(ids []TopicID, id TopicID) bool {
	for _, t := range ids {
		if t == id {
			return true
		}
	}
	return false
}
