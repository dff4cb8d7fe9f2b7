package guard

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/felixgeelhaar/memoir/internal/config"
)

// Policy defines the input and export limits for an interview.
type Policy struct {
	MaxUtteranceRunes int      `json:"max_utterance_runes"`
	MaxSessionTurns   int      `json:"max_session_turns"`
	ExportGlobs       []string `json:"export_globs"`
}

// DefaultPolicy provides safe defaults.
var DefaultPolicy = Policy{
	MaxUtteranceRunes: 4000,
	MaxSessionTurns:   60,
	ExportGlobs:       []string{"**/*.md", "**/*.txt"},
}

// FromConfig builds a policy from the guard section of cfg. Zero values keep
// the defaults.
func FromConfig(cfg config.GuardConfig) Policy {
	p := DefaultPolicy
	if cfg.MaxUtteranceRunes > 0 {
		p.MaxUtteranceRunes = cfg.MaxUtteranceRunes
	}
	if cfg.MaxSessionTurns > 0 {
		p.MaxSessionTurns = cfg.MaxSessionTurns
	}
	if len(cfg.ExportGlobs) > 0 {
		p.ExportGlobs = append([]string(nil), cfg.ExportGlobs...)
	}
	return p
}

// Violation represents a specific breach of policy.
type Violation struct {
	Rule    string
	Message string
	Fatal   bool
}

func (v *Violation) Error() string {
	return v.Rule + ": " + v.Message
}

// Guard enforces the policy.
type Guard struct {
	policy Policy
}

func New(p Policy) *Guard {
	return &Guard{policy: p}
}

// Policy returns the guard's current policy configuration.
func (g *Guard) Policy() Policy {
	return g.policy
}

// CheckUtterance rejects oversized input before it reaches any collaborator.
func (g *Guard) CheckUtterance(text string) *Violation {
	if g.policy.MaxUtteranceRunes <= 0 {
		return nil
	}
	if n := utf8.RuneCountInString(text); n > g.policy.MaxUtteranceRunes {
		return &Violation{
			Rule:    "max_utterance_runes",
			Message: fmt.Sprintf("utterance has %d characters, limit is %d", n, g.policy.MaxUtteranceRunes),
			Fatal:   true,
		}
	}
	return nil
}

// CheckTurns reports when a session has used up its user turns. It is not
// fatal: the interview stops asking new questions but the memoir can still
// be written.
func (g *Guard) CheckTurns(exchanges int) *Violation {
	if g.policy.MaxSessionTurns > 0 && exchanges >= g.policy.MaxSessionTurns {
		return &Violation{Rule: "max_session_turns", Message: "Session turn limit reached"}
	}
	return nil
}

// CheckExport verifies that an export path stays relative and matches one of
// the allowed globs.
func (g *Guard) CheckExport(path string) *Violation {
	if v := g.CheckDangerousPath(path); v != nil {
		return v
	}
	clean := filepath.ToSlash(filepath.Clean(path))
	for _, pattern := range g.policy.ExportGlobs {
		match, err := doublestar.Match(pattern, clean)
		if err == nil && match {
			return nil
		}
	}
	return &Violation{Rule: "export_globs", Message: "Export path not allowed: " + path, Fatal: true}
}

// CheckDangerousPath prevents absolute paths and escapes from the working
// directory.
func (g *Guard) CheckDangerousPath(path string) *Violation {
	if filepath.IsAbs(path) {
		return &Violation{Rule: "relative_path", Message: "Absolute export path not allowed: " + path, Fatal: true}
	}
	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return &Violation{Rule: "relative_path", Message: "Export path escapes the working directory: " + path, Fatal: true}
	}
	return nil
}
