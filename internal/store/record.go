package store

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

// Record is the persistence form of a session.
type Record struct {
	SessionID     string            `json:"session_id"`
	Stage         string            `json:"stage"`
	Profile       map[string]string `json:"profile"`
	Messages      []MessageRecord   `json:"messages"`
	TopicsCovered []string          `json:"topics_covered"`
	FollowedUp    []string          `json:"followed_up,omitempty"`
	CurrentTopic  string            `json:"current_topic,omitempty"`
	ProfileTurns  int               `json:"profile_turns"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// MessageRecord is the persistence form of a message.
type MessageRecord struct {
	Role        string    `json:"role"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	StageAtTime string    `json:"stage_at_time"`
	Topic       string    `json:"topic,omitempty"`
}

// FromSession snapshots s into a record that shares no memory with it.
func FromSession(s *interview.Session) *Record {
	rec := &Record{
		SessionID:     s.ID,
		Stage:         string(s.Stage),
		Profile:       s.Profile.Map(),
		Messages:      make([]MessageRecord, 0, len(s.Messages)),
		TopicsCovered: topicStrings(s.TopicsCovered),
		FollowedUp:    topicStrings(s.FollowedUp),
		CurrentTopic:  string(s.CurrentTopic),
		ProfileTurns:  s.ProfileTurns,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	for _, m := range s.Messages {
		rec.Messages = append(rec.Messages, MessageRecord{
			Role:        string(m.Role),
			Text:        m.Text,
			Timestamp:   m.Timestamp,
			StageAtTime: string(m.StageAtTime),
			Topic:       string(m.Topic),
		})
	}
	return rec
}

// Session rebuilds the session, validating every enumerated value.
func (r *Record) Session() (*interview.Session, error) {
	stage, err := interview.ParseStage(r.Stage)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", r.SessionID, err)
	}
	profile, err := interview.ProfileFromMap(r.Profile)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", r.SessionID, err)
	}
	s := &interview.Session{
		ID:           r.SessionID,
		Stage:        stage,
		Profile:      profile,
		ProfileTurns: r.ProfileTurns,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if s.TopicsCovered, err = parseTopics(r.TopicsCovered); err != nil {
		return nil, fmt.Errorf("session %s: %w", r.SessionID, err)
	}
	if s.FollowedUp, err = parseTopics(r.FollowedUp); err != nil {
		return nil, fmt.Errorf("session %s: %w", r.SessionID, err)
	}
	if r.CurrentTopic != "" {
		if s.CurrentTopic, err = interview.ParseTopic(r.CurrentTopic); err != nil {
			return nil, fmt.Errorf("session %s: %w", r.SessionID, err)
		}
	}
	for i, m := range r.Messages {
		msg, err := m.message()
		if err != nil {
			return nil, fmt.Errorf("session %s message %d: %w", r.SessionID, i, err)
		}
		s.Messages = append(s.Messages, msg)
	}
	return s, nil
}

func (m MessageRecord) message() (interview.Message, error) {
	role := interview.Role(m.Role)
	if role != interview.RoleAssistant && role != interview.RoleUser {
		return interview.Message{}, fmt.Errorf("unknown role %q", m.Role)
	}
	stage, err := interview.ParseStage(m.StageAtTime)
	if err != nil {
		return interview.Message{}, err
	}
	msg := interview.Message{Role: role, Text: m.Text, Timestamp: m.Timestamp, StageAtTime: stage}
	if m.Topic != "" {
		if msg.Topic, err = interview.ParseTopic(m.Topic); err != nil {
			return interview.Message{}, err
		}
	}
	return msg, nil
}

// Summary returns the listing entry for r.
func (r *Record) Summary() Summary {
	return Summary{
		ID:        r.SessionID,
		Stage:     r.Stage,
		Name:      r.Profile[string(interview.FieldName)],
		Messages:  len(r.Messages),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// clone deep-copies r so stores never alias caller memory.
func (r *Record) clone() *Record {
	cp := *r
	cp.Profile = make(map[string]string, len(r.Profile))
	for k, v := range r.Profile {
		cp.Profile[k] = v
	}
	cp.Messages = append([]MessageRecord(nil), r.Messages...)
	cp.TopicsCovered = append([]string(nil), r.TopicsCovered...)
	cp.FollowedUp = append([]string(nil), r.FollowedUp...)
	return &cp
}

func topicStrings(ids []interview.TopicID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

func parseTopics(ss []string) ([]interview.TopicID, error) {
	var out []interview.TopicID
	for _, s := range ss {
		id, err := interview.ParseTopic(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
