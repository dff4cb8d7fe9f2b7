// Package config holds the interview configuration object consumed by the
// engine and the presentation-side settings used to wire collaborators.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

// Config is supplied once, at engine construction.
type Config struct {
	MandatoryFields     []string                 `json:"mandatory_fields" yaml:"mandatory_fields" toml:"mandatory_fields"`
	MaxProfileTurns     int                      `json:"max_profile_turns" yaml:"max_profile_turns" toml:"max_profile_turns"`
	FollowUp            FollowUpConfig           `json:"follow_up" yaml:"follow_up" toml:"follow_up"`
	TopicOrder          []string                 `json:"topic_order" yaml:"topic_order" toml:"topic_order"`
	Triggers            TriggerConfig            `json:"triggers" yaml:"triggers" toml:"triggers"`
	Styles              map[string]StyleTemplate `json:"styles" yaml:"styles" toml:"styles"`
	LetterRecipient     string                   `json:"letter_recipient" yaml:"letter_recipient" toml:"letter_recipient"`
	CollaboratorTimeout string                   `json:"collaborator_timeout" yaml:"collaborator_timeout" toml:"collaborator_timeout"`
	RecentMessages      int                      `json:"recent_messages" yaml:"recent_messages" toml:"recent_messages"`
	// IdleTimeout closes a session that has had no message for this long.
	// Empty or "0" never closes.
	IdleTimeout string `json:"idle_timeout" yaml:"idle_timeout" toml:"idle_timeout"`

	Provider ProviderConfig `json:"provider" yaml:"provider" toml:"provider"`
	Store    StoreConfig    `json:"store" yaml:"store" toml:"store"`
	Guard    GuardConfig    `json:"guard" yaml:"guard" toml:"guard"`
}

// FollowUpConfig decides when an answer earns a follow-up question.
type FollowUpConfig struct {
	MinRunes    int      `json:"min_runes" yaml:"min_runes" toml:"min_runes"`
	Deflections []string `json:"deflections" yaml:"deflections" toml:"deflections"`
}

// TriggerConfig lists free-text phrases that act like commands.
type TriggerConfig struct {
	Memoir   []string `json:"memoir" yaml:"memoir" toml:"memoir"`
	Continue []string `json:"continue" yaml:"continue" toml:"continue"`
}

// StyleTemplate shapes the fixed text around a memoir. Placeholders:
// {name}, {recipient}, {n} (section number) and {title} (topic title).
type StyleTemplate struct {
	Title        string `json:"title" yaml:"title" toml:"title"`
	Opening      string `json:"opening" yaml:"opening" toml:"opening"`
	SectionTitle string `json:"section_title" yaml:"section_title" toml:"section_title"`
	Closing      string `json:"closing" yaml:"closing" toml:"closing"`
}

// ProviderConfig selects the text-generation backend.
type ProviderConfig struct {
	Name       string `json:"name" yaml:"name" toml:"name"`
	Model      string `json:"model" yaml:"model" toml:"model"`
	BaseURL    string `json:"base_url" yaml:"base_url" toml:"base_url"`
	PluginPath string `json:"plugin_path" yaml:"plugin_path" toml:"plugin_path"`
	// Temperature and MaxTokens tune generation; zero keeps the provider
	// defaults.
	Temperature float32 `json:"temperature,omitempty" yaml:"temperature,omitempty" toml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" toml:"max_tokens,omitempty"`
}

// StoreConfig selects the session store.
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver" toml:"driver"`
	Path   string `json:"path" yaml:"path" toml:"path"`
}

// GuardConfig mirrors guard.Policy.
type GuardConfig struct {
	MaxUtteranceRunes int      `json:"max_utterance_runes" yaml:"max_utterance_runes" toml:"max_utterance_runes"`
	MaxSessionTurns   int      `json:"max_session_turns" yaml:"max_session_turns" toml:"max_session_turns"`
	ExportGlobs       []string `json:"export_globs" yaml:"export_globs" toml:"export_globs"`
}

// ValidationResult represents the outcome of a validation pass.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// Default returns the built-in configuration.
func Default() Config {
	order := make([]string, 0, len(interview.TopicIDs()))
	for _, id := range interview.TopicIDs() {
		order = append(order, string(id))
	}
	return Config{
		MandatoryFields: []string{string(interview.FieldName), string(interview.FieldBirthYear)},
		MaxProfileTurns: 5,
		FollowUp: FollowUpConfig{
			MinRunes: 20,
			Deflections: []string{
				"i don't know", "i dont know", "don't remember", "dont remember",
				"not sure", "nothing much", "no idea", "can't recall",
				"不知道", "不记得", "没什么", "记不清",
			},
		},
		TopicOrder: order,
		Triggers: TriggerConfig{
			Memoir:   []string{"write my memoir", "write the memoir", "生成回忆录"},
			Continue: []string{"continue", "keep going", "let's continue", "继续"},
		},
		Styles: map[string]StyleTemplate{
			string(interview.StyleFactual): {
				Title:        "The Life of {name}",
				SectionTitle: "{title}",
				Closing:      "Recorded from conversations with {name}.",
			},
			string(interview.StyleLiterary): {
				Title:        "{name}: A Memoir",
				SectionTitle: "Chapter {n}: {title}",
				Closing:      "These are the days I carry with me.",
			},
			string(interview.StyleLetter): {
				Title:        "A Letter to {recipient}",
				Opening:      "To {recipient},",
				SectionTitle: "About {title}",
				Closing:      "With all my love,\n{name}",
			},
		},
		LetterRecipient:     "my dear grandchildren",
		CollaboratorTimeout: "60s",
		RecentMessages:      10,
		IdleTimeout:         "168h",
		Provider: ProviderConfig{
			Name: "stub",
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Guard: GuardConfig{
			MaxUtteranceRunes: 4000,
			MaxSessionTurns:   60,
			ExportGlobs:       []string{"**/*.md", "**/*.txt"},
		},
	}
}

// Load reads a configuration file (JSON, YAML or TOML) over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to unmarshal JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to unmarshal YAML config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to unmarshal TOML config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s (use .json, .yaml or .toml)", ext)
	}

	return cfg, nil
}

// Validate checks the configuration for completeness and consistency.
func Validate(cfg Config) ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}
	fail := func(format string, args ...any) {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}

	if len(cfg.MandatoryFields) == 0 {
		res.Warnings = append(res.Warnings, "No mandatory profile fields; the interview will skip straight to deep questions")
	}
	for _, f := range cfg.MandatoryFields {
		if _, err := interview.ParseField(f); err != nil {
			fail("mandatory_fields: %v", err)
		}
	}

	if cfg.MaxProfileTurns < 1 {
		fail("max_profile_turns must be at least 1")
	}
	if cfg.FollowUp.MinRunes < 0 {
		fail("follow_up.min_runes cannot be negative")
	}

	seen := make(map[string]bool)
	for _, t := range cfg.TopicOrder {
		if _, err := interview.ParseTopic(t); err != nil {
			fail("topic_order: %v", err)
		}
		if seen[t] {
			fail("topic_order: %q listed twice", t)
		}
		seen[t] = true
	}
	if len(cfg.TopicOrder) == 0 {
		fail("topic_order must list at least one topic")
	} else if len(cfg.TopicOrder) < len(interview.TopicIDs()) {
		res.Warnings = append(res.Warnings, "topic_order omits some topics; they will never be asked")
	}

	for name := range cfg.Styles {
		if _, err := interview.ParseStyle(name); err != nil {
			fail("styles: %v", err)
		}
	}

	if _, err := time.ParseDuration(cfg.CollaboratorTimeout); cfg.CollaboratorTimeout != "" && err != nil {
		fail("collaborator_timeout: %v", err)
	}
	if d, err := time.ParseDuration(cfg.IdleTimeout); cfg.IdleTimeout != "" && err != nil {
		fail("idle_timeout: %v", err)
	} else if d > 0 && d < time.Minute {
		res.Warnings = append(res.Warnings, "idle_timeout under a minute will close sessions mid-answer")
	}

	if t := cfg.Provider.Temperature; t < 0 || t > 2 {
		fail("provider.temperature must be between 0 and 2")
	}
	if cfg.Provider.MaxTokens < 0 {
		fail("provider.max_tokens cannot be negative")
	}

	switch cfg.Store.Driver {
	case "", "sqlite", "file", "memory":
	default:
		fail("store.driver: unsupported driver %q (use sqlite, file or memory)", cfg.Store.Driver)
	}

	return res
}

// Mandatory returns the parsed mandatory field list, skipping unknown names.
func (c Config) Mandatory() []interview.Field {
	var out []interview.Field
	for _, name := range c.MandatoryFields {
		if f, err := interview.ParseField(name); err == nil {
			out = append(out, f)
		}
	}
	return out
}

// Topics returns the parsed topic priority order, skipping unknown ids.
func (c Config) Topics() []interview.TopicID {
	var out []interview.TopicID
	for _, name := range c.TopicOrder {
		if id, err := interview.ParseTopic(name); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// Shallow builds the answer-depth detector.
func (c Config) Shallow() interview.ShallowDetector {
	return interview.ShallowDetector{
		MinRunes:    c.FollowUp.MinRunes,
		Deflections: append([]string(nil), c.FollowUp.Deflections...),
	}
}

// Timeout is the per-turn collaborator deadline; zero means none.
func (c Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.CollaboratorTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Idle returns the parsed idle timeout, or 0 when sessions never idle out.
func (c Config) Idle() time.Duration {
	d, err := time.ParseDuration(c.IdleTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Template returns the template for style, falling back to the defaults.
func (c Config) Template(style interview.Style) StyleTemplate {
	if t, ok := c.Styles[string(style)]; ok {
		return t
	}
	return Default().Styles[string(style)]
}

// MatchesTrigger reports whether text equals one of phrases, ignoring case
// and surrounding punctuation.
func MatchesTrigger(text string, phrases []string) bool {
	norm := strings.ToLower(strings.Trim(strings.TrimSpace(text), ".!?。！？"))
	for _, p := range phrases {
		if norm == strings.ToLower(strings.TrimSpace(p)) {
			return true
		}
	}
	return false
}
