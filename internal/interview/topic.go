package interview

import "fmt"

// TopicID identifies a deep-interview subject.
type TopicID string

const (
	TopicChildhood       TopicID = "childhood"
	TopicFamily          TopicID = "family"
	TopicSchoolYears     TopicID = "school_years"
	TopicYouth           TopicID = "youth"
	TopicLoveAndMarriage TopicID = "love_and_marriage"
	TopicCareer          TopicID = "career"
	TopicHardships       TopicID = "hardships"
	TopicHistoricalTimes TopicID = "historical_times"
	TopicRaisingChildren TopicID = "raising_children"
	TopicRetirement      TopicID = "retirement"
	TopicLifeLessons     TopicID = "life_lessons"
)

// Topic describes one subject in the catalogue.
type Topic struct {
	ID    TopicID
	Title string
	// Related fields make the topic more relevant once they are known.
	Related []Field
	// Era topics draw on the birth decade when it is known.
	Era bool
	// Reflective topics look back over the whole life.
	Reflective bool
}

// catalogue is kept in life-chronological order; the index is the default
// priority used to break ties.
var catalogue = []Topic{
	{ID: TopicChildhood, Title: "Childhood", Related: []Field{FieldHometown}},
	{ID: TopicFamily, Title: "Family", Related: []Field{FieldHometown}},
	{ID: TopicSchoolYears, Title: "School Years", Related: []Field{FieldEducation}},
	{ID: TopicYouth, Title: "Youth", Related: []Field{FieldEducation}},
	{ID: TopicLoveAndMarriage, Title: "Love and Marriage"},
	{ID: TopicCareer, Title: "Career", Related: []Field{FieldOccupation}},
	{ID: TopicHardships, Title: "Hard Times"},
	{ID: TopicHistoricalTimes, Title: "Living Through History", Era: true},
	{ID: TopicRaisingChildren, Title: "Raising Children"},
	{ID: TopicRetirement, Title: "Retirement", Related: []Field{FieldOccupation}},
	{ID: TopicLifeLessons, Title: "Life Lessons", Reflective: true},
}

// Topics returns the catalogue in canonical order.
func Topics() []Topic {
	out := make([]Topic, len(catalogue))
	copy(out, catalogue)
	return out
}

// TopicIDs returns the canonical topic ordering.
func TopicIDs() []TopicID {
	ids := make([]TopicID, len(catalogue))
	for i, t := range catalogue {
		ids[i] = t.ID
	}
	return ids
}

// LookupTopic finds a topic by id.
func LookupTopic(id TopicID) (Topic, bool) {
	for _, t := range catalogue {
		if t.ID == id {
			return t, true
		}
	}
	return Topic{}, false
}

// Ordinal is the position of id in the canonical ordering, or -1.
func (id TopicID) Ordinal() int {
	for i, t := range catalogue {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Title returns the human title for id, falling back to the id itself.
func (id TopicID) Title() string {
	if t, ok := LookupTopic(id); ok {
		return t.Title
	}
	return string(id)
}

// ParseTopic converts a configured or persisted topic id.
func ParseTopic(s string) (TopicID, error) {
	id := TopicID(s)
	if id.Ordinal() < 0 {
		return "", fmt.Errorf("unknown topic %q", s)
	}
	return id, nil
}
