package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

func TestConfig_Load(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "config-test-*")
	defer os.RemoveAll(tmpDir)

	yamlPath := filepath.Join(tmpDir, "memoir.yaml")
	os.WriteFile(yamlPath, []byte("max_profile_turns: 3\nfollow_up:\n  min_runes: 12\nletter_recipient: Lily\n"), 0600)

	jsonPath := filepath.Join(tmpDir, "memoir.json")
	os.WriteFile(jsonPath, []byte(`{"mandatory_fields": ["name"], "collaborator_timeout": "5s"}`), 0600)

	tomlPath := filepath.Join(tmpDir, "memoir.toml")
	os.WriteFile(tomlPath, []byte("topic_order = [\"career\", \"childhood\"]\n[store]\ndriver = \"file\"\npath = \"/tmp/sessions\"\n"), 0600)

	txtPath := filepath.Join(tmpDir, "memoir.txt")
	os.WriteFile(txtPath, []byte("nothing"), 0600)

	t.Run("YAML", func(t *testing.T) {
		cfg, err := Load(yamlPath)
		if err != nil {
			t.Fatalf("Failed to load YAML: %v", err)
		}
		if cfg.MaxProfileTurns != 3 {
			t.Errorf("Expected 3, got %d", cfg.MaxProfileTurns)
		}
		if cfg.FollowUp.MinRunes != 12 {
			t.Errorf("Expected 12, got %d", cfg.FollowUp.MinRunes)
		}
		if cfg.LetterRecipient != "Lily" {
			t.Errorf("Expected 'Lily', got '%s'", cfg.LetterRecipient)
		}
		if len(cfg.FollowUp.Deflections) == 0 {
			t.Error("Expected default deflections to survive a partial file")
		}
	})

	t.Run("JSON", func(t *testing.T) {
		cfg, err := Load(jsonPath)
		if err != nil {
			t.Fatalf("Failed to load JSON: %v", err)
		}
		if len(cfg.Mandatory()) != 1 || cfg.Mandatory()[0] != interview.FieldName {
			t.Errorf("Expected [name], got %v", cfg.Mandatory())
		}
		if cfg.Timeout() != 5*time.Second {
			t.Errorf("Expected 5s, got %v", cfg.Timeout())
		}
	})

	t.Run("TOML", func(t *testing.T) {
		cfg, err := Load(tomlPath)
		if err != nil {
			t.Fatalf("Failed to load TOML: %v", err)
		}
		topics := cfg.Topics()
		if len(topics) != 2 || topics[0] != interview.TopicCareer {
			t.Errorf("Expected [career childhood], got %v", topics)
		}
		if cfg.Store.Driver != "file" || cfg.Store.Path != "/tmp/sessions" {
			t.Errorf("Unexpected store config: %+v", cfg.Store)
		}
	})

	t.Run("Invalid Extension", func(t *testing.T) {
		if _, err := Load(txtPath); err == nil {
			t.Error("Expected error for .txt extension")
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		if _, err := Load(filepath.Join(tmpDir, "absent.yaml")); err == nil {
			t.Error("Expected error for missing file")
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		res := Validate(Default())
		if !res.Valid {
			t.Errorf("Expected valid, got invalid: %v", res.Errors)
		}
		if len(res.Warnings) != 0 {
			t.Errorf("Expected no warnings, got %v", res.Warnings)
		}
	})

	t.Run("Unknown Field", func(t *testing.T) {
		cfg := Default()
		cfg.MandatoryFields = []string{"name", "shoe_size"}
		if res := Validate(cfg); res.Valid {
			t.Error("Expected invalid for unknown field")
		}
	})

	t.Run("Duplicate Topic", func(t *testing.T) {
		cfg := Default()
		cfg.TopicOrder = []string{"career", "career"}
		res := Validate(cfg)
		if res.Valid {
			t.Error("Expected invalid for duplicate topic")
		}
		if len(res.Warnings) == 0 {
			t.Error("Expected warning for partial topic order")
		}
	})

	t.Run("Bad Timeout", func(t *testing.T) {
		cfg := Default()
		cfg.CollaboratorTimeout = "soon"
		if res := Validate(cfg); res.Valid {
			t.Error("Expected invalid for unparseable timeout")
		}
	})

	t.Run("Idle Timeout", func(t *testing.T) {
		cfg := Default()
		if cfg.Idle() != 168*time.Hour {
			t.Errorf("Expected 168h default, got %v", cfg.Idle())
		}
		cfg.IdleTimeout = "0"
		if res := Validate(cfg); !res.Valid || cfg.Idle() != 0 {
			t.Errorf("Expected '0' to disable idle close, got %v (%v)", cfg.Idle(), res.Errors)
		}
		cfg.IdleTimeout = "30s"
		if res := Validate(cfg); !res.Valid || len(res.Warnings) != 1 {
			t.Errorf("Expected one warning for a short idle timeout, got %+v", res)
		}
		cfg.IdleTimeout = "a while"
		if res := Validate(cfg); res.Valid {
			t.Error("Expected invalid for unparseable idle timeout")
		}
	})

	t.Run("Sampling", func(t *testing.T) {
		cfg := Default()
		cfg.Provider.Temperature = 2.5
		cfg.Provider.MaxTokens = -1
		if res := Validate(cfg); len(res.Errors) != 2 {
			t.Errorf("Expected 2 errors, got %v", res.Errors)
		}
	})

	t.Run("Bad Style And Driver", func(t *testing.T) {
		cfg := Default()
		cfg.Styles["haiku"] = StyleTemplate{Title: "x"}
		cfg.Store.Driver = "postgres"
		res := Validate(cfg)
		if len(res.Errors) != 2 {
			t.Errorf("Expected 2 errors, got %v", res.Errors)
		}
	})

	t.Run("No Mandatory Fields", func(t *testing.T) {
		cfg := Default()
		cfg.MandatoryFields = nil
		res := Validate(cfg)
		if !res.Valid || len(res.Warnings) == 0 {
			t.Errorf("Expected valid with warning, got %+v", res)
		}
	})
}

func TestMatchesTrigger(t *testing.T) {
	phrases := Default().Triggers.Memoir
	tests := []struct {
		text string
		want bool
	}{
		{"write my memoir", true},
		{"  Write My Memoir! ", true},
		{"生成回忆录。", true},
		{"please write my memoir when you can", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := MatchesTrigger(tt.text, phrases); got != tt.want {
			t.Errorf("MatchesTrigger(%q) expected %v, got %v", tt.text, tt.want, got)
		}
	}
}

func TestConfig_Template(t *testing.T) {
	cfg := Default()
	delete(cfg.Styles, string(interview.StyleLetter))
	if got := cfg.Template(interview.StyleLetter); got.Opening == "" {
		t.Error("Expected fallback to default letter template")
	}
}
