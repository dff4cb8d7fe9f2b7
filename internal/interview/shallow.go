package interview

import (
	"strings"
	"unicode/utf8"
)

// ShallowDetector judges whether an answer carries little narrative content.
type ShallowDetector struct {
	MinRunes    int
	Deflections []string
}

// IsShallow reports whether text is shorter than MinRunes or deflects.
func (d ShallowDetector) IsShallow(text string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < d.MinRunes {
		return true
	}
	return d.IsDeflection(text)
}

// IsDeflection reports whether text contains a configured deflection phrase.
func (d ShallowDetector) IsDeflection(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range d.Deflections {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
