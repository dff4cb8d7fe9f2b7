package interview

import (
	"fmt"
	"strings"
	"time"
)

// Style selects how a memoir is written.
type Style string

const (
	StyleFactual  Style = "factual"
	StyleLiterary Style = "literary"
	StyleLetter   Style = "letter"
)

// Styles returns the supported styles.
func Styles() []Style {
	return []Style{StyleFactual, StyleLiterary, StyleLetter}
}

var styleAliases = map[string]Style{
	"factual":  StyleFactual,
	"纪实":       StyleFactual,
	"literary": StyleLiterary,
	"文学":       StyleLiterary,
	"letter":   StyleLetter,
	"家书":       StyleLetter,
}

// ParseStyle accepts a style name; an empty name selects factual.
func ParseStyle(s string) (Style, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StyleFactual, nil
	}
	if st, ok := styleAliases[s]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q (use factual, literary or letter)", ErrUnknownStyle, s)
}

// Section is one titled part of a memoir.
type Section struct {
	Topic TopicID
	Title string
	Body  string
}

// Document is a synthesized memoir. It is built from a snapshot and never
// observes later changes to its source session.
type Document struct {
	SourceSessionID string
	Style           Style
	Title           string
	// Profile is the snapshot the memoir was written from.
	Profile Profile
	// Preamble holds profile-derived content; it is not a section.
	Preamble    string
	Sections    []Section
	Closing     string
	GeneratedAt time.Time
}
