// Package memoir turns an interview transcript into a styled document. The
// section skeleton and its order are computed here; a Composer only writes
// the prose inside each section.
package memoir

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/memoir/internal/config"
	"github.com/felixgeelhaar/memoir/internal/interview"
)

// Chapter is the input to a Composer for one section.
type Chapter struct {
	Style     interview.Style
	Topic     interview.TopicID
	Title     string
	Profile   interview.Profile
	Recipient string
	// Passages are the interviewee's own words on the topic, in order.
	Passages []string
}

// Composer writes the body of one section.
type Composer interface {
	Compose(ctx context.Context, ch Chapter) (string, error)
}

// ProgressFunc is called after each section is composed.
type ProgressFunc func(done, total int)

// Writer builds memoir documents.
type Writer struct {
	cfg      config.Config
	composer Composer
	shallow  interview.ShallowDetector

	// Now stamps GeneratedAt.
	Now func() time.Time
}

// New returns a Writer. A nil composer uses the local TemplateComposer.
func New(cfg config.Config, composer Composer) *Writer {
	if composer == nil {
		composer = TemplateComposer{}
	}
	return &Writer{
		cfg:      cfg,
		composer: composer,
		shallow:  cfg.Shallow(),
		Now:      time.Now,
	}
}

// Write builds a document from a snapshot of the transcript and profile.
func (w *Writer) Write(ctx context.Context, sessionID string, messages []interview.Message, p interview.Profile, style interview.Style) (*interview.Document, error) {
	return w.WriteWithProgress(ctx, sessionID, messages, p, style, nil)
}

// WriteWithProgress is Write with a per-section progress callback.
func (w *Writer) WriteWithProgress(ctx context.Context, sessionID string, messages []interview.Message, p interview.Profile, style interview.Style, progress ProgressFunc) (*interview.Document, error) {
	style, err := interview.ParseStyle(string(style))
	if err != nil {
		return nil, err
	}
	tmpl := w.cfg.Template(style)
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}

	doc := &interview.Document{
		SourceSessionID: sessionID,
		Style:           style,
		Title:           w.fill(tmpl.Title, p, 0, ""),
		Profile:         p,
		Preamble:        w.preamble(tmpl, p, style),
		Closing:         w.fill(tmpl.Closing, p, 0, ""),
		GeneratedAt:     now,
	}
	if p.Name == "" && strings.Contains(tmpl.Title, "{name}") {
		doc.Title = "My Life Story"
	}

	segments := Segment(messages, w.shallow)
	order := SectionOrder(segments, style)
	for i, id := range order {
		title := w.fill(tmpl.SectionTitle, p, i+1, id.Title())
		if title == "" {
			title = id.Title()
		}
		body, err := w.composer.Compose(ctx, Chapter{
			Style:     style,
			Topic:     id,
			Title:     title,
			Profile:   p,
			Recipient: w.cfg.LetterRecipient,
			Passages:  segments.Passages(id),
		})
		if err != nil {
			return nil, interview.Unavailable("compose "+string(id), err)
		}
		doc.Sections = append(doc.Sections, interview.Section{Topic: id, Title: title, Body: body})
		if progress != nil {
			progress(i+1, len(order))
		}
	}
	return doc, nil
}

func (w *Writer) fill(tmpl string, p interview.Profile, n int, title string) string {
	name := p.Name
	if name == "" {
		name = "the storyteller"
	}
	r := strings.NewReplacer(
		"{name}", name,
		"{recipient}", w.cfg.LetterRecipient,
		"{n}", strconv.Itoa(n),
		"{title}", title,
	)
	return r.Replace(tmpl)
}

// preamble renders the profile-derived opening. Missing fields are left out.
func (w *Writer) preamble(tmpl config.StyleTemplate, p interview.Profile, style interview.Style) string {
	var parts []string
	if opening := w.fill(tmpl.Opening, p, 0, ""); opening != "" {
		parts = append(parts, opening)
	}
	if facts := profileSentences(p, style); facts != "" {
		parts = append(parts, facts)
	}
	return strings.Join(parts, "\n\n")
}

func profileSentences(p interview.Profile, style interview.Style) string {
	if p.Empty() {
		return ""
	}
	firstPerson := style != interview.StyleFactual
	subject := p.Name
	if firstPerson || subject == "" {
		subject = "I"
	}

	var sentences []string
	if firstPerson && p.Name != "" {
		sentences = append(sentences, "My name is "+p.Name+".")
	}

	born := ""
	if p.BirthYear != 0 {
		born = " in " + strconv.Itoa(p.BirthYear)
	}
	if p.Hometown != "" {
		born += " in " + p.Hometown
	}
	if born != "" {
		sentences = append(sentences, subject+" was born"+born+".")
	}
	if p.Occupation != "" {
		sentences = append(sentences, subject+" worked as "+article(p.Occupation)+".")
	}
	if p.Education != "" {
		sentences = append(sentences, subject+" studied at "+p.Education+".")
	}
	return strings.Join(sentences, " ")
}

func article(noun string) string {
	if noun == "" {
		return noun
	}
	if strings.ContainsRune("aeiouAEIOU", rune(noun[0])) {
		return "an " + noun
	}
	if noun[0] < 0x80 {
		return "a " + noun
	}
	return noun
}

// Segments maps each topic to the narrative messages told under it, and
// remembers the order in which topics were first narrated.
type Segments struct {
	byTopic map[interview.TopicID][]string
	first   []interview.TopicID
}

// Passages returns the narrative for id.
func (s Segments) Passages(id interview.TopicID) []string {
	return append([]string(nil), s.byTopic[id]...)
}

// Topics returns the narrated topics in order of first narration.
func (s Segments) Topics() []interview.TopicID {
	return append([]interview.TopicID(nil), s.first...)
}

// Segment keeps user messages from the deep interview that carry a topic.
// Assistant prompts and bare deflections hold no narrative and are dropped.
func Segment(messages []interview.Message, shallow interview.ShallowDetector) Segments {
	seg := Segments{byTopic: make(map[interview.TopicID][]string)}
	for _, m := range messages {
		if m.Role != interview.RoleUser || m.Topic == "" {
			continue
		}
		if m.StageAtTime != interview.StageDeepInterview && m.StageAtTime != interview.StageMemoirReady {
			continue
		}
		text := strings.TrimSpace(m.Text)
		if text == "" || (shallow.IsShallow(text) && shallow.IsDeflection(text)) {
			continue
		}
		if _, ok := seg.byTopic[m.Topic]; !ok {
			seg.first = append(seg.first, m.Topic)
		}
		seg.byTopic[m.Topic] = append(seg.byTopic[m.Topic], text)
	}
	return seg
}

// SectionOrder fixes the section order for style. Factual and letter
// memoirs run chronologically through the topic catalogue; literary memoirs
// follow the order stories were told, with reflective topics last.
func SectionOrder(seg Segments, style interview.Style) []interview.TopicID {
	order := seg.Topics()
	switch style {
	case interview.StyleLiterary:
		sort.SliceStable(order, func(i, j int) bool {
			return !reflective(order[i]) && reflective(order[j])
		})
	default:
		sort.SliceStable(order, func(i, j int) bool {
			return order[i].Ordinal() < order[j].Ordinal()
		})
	}
	return order
}

func reflective(id interview.TopicID) bool {
	t, ok := interview.LookupTopic(id)
	return ok && t.Reflective
}
