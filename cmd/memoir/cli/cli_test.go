package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/memoir/internal/config"
	"github.com/felixgeelhaar/memoir/internal/credential"
	"github.com/felixgeelhaar/memoir/internal/store"
)

func resetFlags() {
	configPath, storeDir, storeDriver, providerName, modelName = "", "", "", "", ""
	verbose, ciMode = false, false
	resumeID, scriptPath, useTUI = "", "", false
	writeStyle, writeOut, writeRender = "factual", "", false
	sessionMatch, revealSecret = "", false
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(append([]string{"--data-dir", dir, "--ci"}, args...))
	err := RootCmd.Execute()
	return out.String(), err
}

func onlySession(t *testing.T, dir string) store.Summary {
	t.Helper()
	st, err := store.Open("sqlite", dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()
	list, err := st.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(list))
	}
	return list[0]
}

func TestCLI_Root(t *testing.T) {
	want := map[string]bool{"interview": false, "write": false, "sessions": false, "show": false, "config": false, "version": false, "artifact": false}
	for _, cmd := range RootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected %s command to be registered", name)
		}
	}
}

func TestCLI_Version(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "memoir "+Version) {
		t.Errorf("Expected version line, got %q", out)
	}
}

func TestCLI_ScriptedInterview(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)

	script := filepath.Join(dir, "answers.txt")
	lines := []string{
		"My name is Li Hua.",
		"1951",
		"We lived in a small house by the canal and I fished with my brothers every summer.",
		"/help",
		"/memoir",
		"/exit",
	}
	os.WriteFile(script, []byte(strings.Join(lines, "\n")+"\n"), 0600)

	out, err := run(t, dir, "interview", "--script", script)
	if err != nil {
		t.Fatalf("interview failed: %v\n%s", err, out)
	}
	for _, want := range []string{
		"What would you like me to call you?",
		"you> 1951",
		"-- deep interview --",
		"/memoir [style]",
		"# The Life of Li Hua",
		"closed.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	sum := onlySession(t, dir)
	if sum.Name != "Li Hua" || sum.Stage != "closed" {
		t.Errorf("Expected closed session for Li Hua, got %+v", sum)
	}

	t.Run("Sessions", func(t *testing.T) {
		out, err := run(t, dir, "sessions", "--match", "LI*")
		if err != nil {
			t.Fatalf("sessions failed: %v", err)
		}
		if !strings.Contains(out, sum.ID) {
			t.Errorf("Expected session in listing, got %q", out)
		}
		out, _ = run(t, dir, "sessions", "--match", "zhang*")
		if !strings.Contains(out, "No sessions found.") {
			t.Errorf("Expected empty listing, got %q", out)
		}
	})

	t.Run("Show", func(t *testing.T) {
		out, err := run(t, dir, "show", sum.ID)
		if err != nil {
			t.Fatalf("show failed: %v", err)
		}
		for _, want := range []string{"Stage:     closed", "birth_year: 1951", "Childhood", "Memoir:", "Summary:", "Interview with Li Hua.", "fished with my brothers", "Next time:"} {
			if !strings.Contains(out, want) {
				t.Errorf("Expected %q in summary, got:\n%s", want, out)
			}
		}
	})

	t.Run("Write", func(t *testing.T) {
		out, err := run(t, dir, "write", sum.ID, "--style", "letter", "--out", "letter.md")
		if err != nil {
			t.Fatalf("write failed: %v\n%s", err, out)
		}
		data, err := os.ReadFile(filepath.Join(dir, "letter.md"))
		if err != nil {
			t.Fatalf("Expected letter.md: %v", err)
		}
		if !strings.Contains(string(data), "To my dear grandchildren,") {
			t.Errorf("Expected letter opening, got:\n%s", data)
		}
	})

	t.Run("Write Rejects Absolute Path", func(t *testing.T) {
		if _, err := run(t, dir, "write", sum.ID, "--out", filepath.Join(dir, "x.md")); err == nil {
			t.Error("Expected error for absolute export path")
		}
	})

	t.Run("Resume Closed", func(t *testing.T) {
		if _, err := run(t, dir, "interview", "--resume", sum.ID, "--script", script); err == nil {
			t.Error("Expected error resuming a closed session")
		}
	})
}

func TestCLI_ResumeOpenSession(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	first := filepath.Join(dir, "first.txt")
	os.WriteFile(first, []byte("My name is Li Hua.\n"), 0600)
	out, err := run(t, dir, "interview", "--script", first)
	if err != nil {
		t.Fatalf("interview failed: %v", err)
	}
	if !strings.Contains(out, "Resume with: memoir interview --resume") {
		t.Errorf("Expected resume hint, got:\n%s", out)
	}
	id := onlySession(t, dir).ID

	second := filepath.Join(dir, "second.txt")
	os.WriteFile(second, []byte("1951\n"), 0600)
	out, err = run(t, dir, "interview", "--resume", id, "--script", second)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if !strings.Contains(out, "Resuming session "+id) {
		t.Errorf("Expected resume banner, got:\n%s", out)
	}
	if sum := onlySession(t, dir); sum.Stage != "deep_interview" {
		t.Errorf("Expected deep interview after resume, got %s", sum.Stage)
	}
}

func TestCLI_Config(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	out, err := run(t, dir, "config", "set", "openai.api_key", "sk-abcdef123456")
	if err != nil || !strings.Contains(out, "Configuration saved: openai.api_key") {
		t.Fatalf("config set failed: %v %q", err, out)
	}

	out, _ = run(t, dir, "config", "get", "openai.api_key")
	if strings.TrimSpace(out) != "sk-a...3456" {
		t.Errorf("Expected masked key, got %q", out)
	}
	out, _ = run(t, dir, "config", "get", "openai.api_key", "--reveal")
	if strings.TrimSpace(out) != "sk-abcdef123456" {
		t.Errorf("Expected full key, got %q", out)
	}
	out, _ = run(t, dir, "config", "get", "gemini.api_key")
	if strings.TrimSpace(out) != "(not set)" {
		t.Errorf("Expected '(not set)', got %q", out)
	}

	st, err := store.Open("sqlite", dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()
	raw, _ := st.GetConfig("openai.api_key")
	if !credential.IsEncrypted(raw) {
		t.Errorf("Expected key to be stored encrypted, got %q", raw)
	}
}

func TestCLI_ConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if !strings.Contains(out, path) {
		t.Errorf("Expected path in output, got %q", out)
	}
	if _, err := run(t, dir, "config", "init"); err == nil {
		t.Error("Expected error when config already exists")
	}

	out, err = run(t, dir, "config", "validate", path)
	if err != nil || !strings.Contains(out, "is valid") {
		t.Errorf("Expected default config to validate, got %v %q", err, out)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("topic_order: [astrology]\n"), 0600)
	if _, err := run(t, dir, "config", "validate", bad); err == nil {
		t.Error("Expected error for unknown topic")
	}
}

func TestFilterSessions(t *testing.T) {
	list := []store.Summary{
		{ID: "2f3c-aaaa", Name: "Li Hua"},
		{ID: "9b1d-bbbb", Name: "Zhang Wei"},
		{ID: "77aa-cccc"},
	}

	got, err := filterSessions(list, "")
	if err != nil || len(got) != 3 {
		t.Errorf("Expected all sessions, got %v (%v)", got, err)
	}
	got, _ = filterSessions(list, "2f3c*")
	if len(got) != 1 || got[0].Name != "Li Hua" {
		t.Errorf("Expected id match, got %v", got)
	}
	got, _ = filterSessions(list, "*wei")
	if len(got) != 1 || got[0].ID != "9b1d-bbbb" {
		t.Errorf("Expected case-insensitive name match, got %v", got)
	}
	if _, err := filterSessions(list, "[a-"); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestResolveProvider(t *testing.T) {
	resetFlags()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	st := store.NewMemoryStore()
	cfg := config.Default()

	p, _, err := resolveProvider(cfg, st)
	if err != nil || p.Name() != "stub" {
		t.Fatalf("Expected stub provider, got %v (%v)", p, err)
	}

	st.SetConfig("provider.name", "openai")
	if _, _, err := resolveProvider(cfg, st); err == nil {
		t.Error("Expected error for openai without a key")
	}

	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	p, _, err = resolveProvider(cfg, st)
	if err != nil || p.Name() != "openai" {
		t.Errorf("Expected openai provider from env key, got %v (%v)", p, err)
	}

	st.SetConfig("provider.name", "ollama")
	p, _, err = resolveProvider(cfg, st)
	if err != nil || p.Name() != "ollama" {
		t.Errorf("Expected ollama provider, got %v (%v)", p, err)
	}

	cfg.Provider.Name = "plugin"
	providerName = "plugin"
	defer resetFlags()
	if _, _, err := resolveProvider(cfg, st); err == nil {
		t.Error("Expected error for plugin without a path")
	}
}

func TestLoadConfig_Flags(t *testing.T) {
	resetFlags()
	defer resetFlags()
	storeDir = t.TempDir()
	storeDriver = "file"
	modelName = "llama3"

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Store.Driver != "file" || cfg.Provider.Model != "llama3" {
		t.Errorf("Expected flag overrides, got %+v %+v", cfg.Store, cfg.Provider)
	}
	if got := dataDir(cfg); got != storeDir {
		t.Errorf("Expected data dir %s, got %s", storeDir, got)
	}
	if cfg.Timeout() != 60*time.Second {
		t.Errorf("Expected default timeout, got %s", cfg.Timeout())
	}
}
