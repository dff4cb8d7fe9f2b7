package interview

import (
	"testing"
	"time"
)

func TestSession_AppendKeepsTimestampsIncreasing(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession("s1", now)

	s.Append(Message{Role: RoleAssistant, Text: "hello", Timestamp: now})
	s.Append(Message{Role: RoleUser, Text: "hi", Timestamp: now})
	s.Append(Message{Role: RoleAssistant, Text: "earlier clock", Timestamp: now.Add(-time.Second)})

	for i := 1; i < len(s.Messages); i++ {
		if !s.Messages[i].Timestamp.After(s.Messages[i-1].Timestamp) {
			t.Fatalf("message %d timestamp not after previous", i)
		}
	}
	if !s.UpdatedAt.Equal(s.Messages[2].Timestamp) {
		t.Error("UpdatedAt should follow the last message")
	}
}

func TestSession_CloneIsIndependent(t *testing.T) {
	s := NewSession("s1", time.Now())
	s.Append(Message{Role: RoleUser, Text: "one"})
	s.MarkCovered(TopicChildhood)

	cp := s.Clone()
	cp.Append(Message{Role: RoleUser, Text: "two"})
	cp.MarkCovered(TopicCareer)
	cp.MarkFollowedUp(TopicCareer)
	cp.Profile.Name = "changed"

	if len(s.Messages) != 1 || len(s.TopicsCovered) != 1 || len(s.FollowedUp) != 0 || s.Profile.Name != "" {
		t.Errorf("clone mutation leaked into original: %+v", s)
	}
}

func TestSession_MarkCoveredIsSet(t *testing.T) {
	s := NewSession("s1", time.Now())
	s.MarkCovered(TopicCareer)
	s.MarkCovered(TopicCareer)
	s.MarkCovered("")
	if len(s.TopicsCovered) != 1 {
		t.Errorf("expected 1 covered topic, got %v", s.TopicsCovered)
	}
}

func TestSession_Recent(t *testing.T) {
	s := NewSession("s1", time.Now())
	for _, text := range []string{"a", "b", "c"} {
		s.Append(Message{Role: RoleUser, Text: text})
	}
	recent := s.Recent(2)
	if len(recent) != 2 || recent[0].Text != "b" || recent[1].Text != "c" {
		t.Errorf("unexpected recent messages: %+v", recent)
	}
	if len(s.Recent(0)) != 3 {
		t.Error("Recent(0) should return the whole transcript")
	}
	if s.Exchanges() != 3 {
		t.Errorf("expected 3 exchanges, got %d", s.Exchanges())
	}
}

func TestTopicCatalogue(t *testing.T) {
	ids := TopicIDs()
	for i, id := range ids {
		if id.Ordinal() != i {
			t.Errorf("%s ordinal = %d, want %d", id, id.Ordinal(), i)
		}
		if id.Title() == "" {
			t.Errorf("%s has no title", id)
		}
	}
	if _, err := ParseTopic("space_travel"); err == nil {
		t.Error("expected error for unknown topic")
	}
}
