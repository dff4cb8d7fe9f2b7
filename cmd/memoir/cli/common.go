package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/memoir/internal/config"
	"github.com/felixgeelhaar/memoir/internal/credential"
	"github.com/felixgeelhaar/memoir/internal/engine"
	"github.com/felixgeelhaar/memoir/internal/guard"
	"github.com/felixgeelhaar/memoir/internal/interview"
	"github.com/felixgeelhaar/memoir/internal/memoir"
	"github.com/felixgeelhaar/memoir/internal/observe"
	"github.com/felixgeelhaar/memoir/internal/plugin"
	"github.com/felixgeelhaar/memoir/internal/profile"
	"github.com/felixgeelhaar/memoir/internal/provider"
	"github.com/felixgeelhaar/memoir/internal/question"
	"github.com/felixgeelhaar/memoir/internal/store"
)

// envKeys maps a provider to the environment variable holding its key.
var envKeys = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"claude":     "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

// app is everything a command needs, built from flags and the config file.
type app struct {
	cfg      config.Config
	dir      string
	store    store.Storage
	obs      *observe.Observer
	bus      *engine.EventBus
	guard    *guard.Guard
	provider provider.Provider
	engine   *engine.Engine
	writer   *memoir.Writer

	closers []func()
}

// dataDir resolves where sessions and settings live.
func dataDir(cfg config.Config) string {
	if storeDir != "" {
		return storeDir
	}
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".memoir")
}

// loadConfig reads --config, then <data dir>/config.yaml, then the defaults.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		candidate := filepath.Join(dataDir(config.Default()), "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if storeDriver != "" {
		cfg.Store.Driver = storeDriver
	}
	if providerName != "" {
		cfg.Provider.Name = providerName
	}
	if modelName != "" {
		cfg.Provider.Model = modelName
	}

	res := config.Validate(cfg)
	if !res.Valid {
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(res.Errors, "; "))
	}
	return cfg, nil
}

func newObserver() *observe.Observer {
	if ciMode {
		return observe.NewJSON(os.Stderr, verbose)
	}
	return observe.New(os.Stderr, verbose)
}

// openStore opens the configured backend without wiring any collaborators.
func openStore() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dir := dataDir(cfg)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	st, err := store.Open(cfg.Store.Driver, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}
	a := &app{
		cfg:   cfg,
		dir:   dir,
		store: st,
		obs:   newObserver(),
		bus:   engine.NewEventBus(),
		guard: guard.New(guard.FromConfig(cfg.Guard)),
	}
	a.closers = append(a.closers, func() { _ = st.Close() })
	return a, nil
}

// newApp opens the store and builds the engine with the selected provider.
func newApp() (*app, error) {
	a, err := openStore()
	if err != nil {
		return nil, err
	}
	p, stop, err := resolveProvider(a.cfg, a.store)
	if err != nil {
		a.Close()
		return nil, err
	}
	if stop != nil {
		a.closers = append(a.closers, stop)
	}
	a.provider = p

	deps := engine.Deps{
		Store:    a.store,
		Guard:    a.guard,
		Observer: a.obs,
		Bus:      a.bus,
		NewID:    uuid.NewString,
	}
	// The stub speaks no JSON, so it keeps the deterministic built-ins.
	if p.Name() != "stub" {
		deps.Extractor = profile.NewProviderExtractor(p)
		deps.Questions = question.New(a.cfg, question.NewProviderPhraser(p))
		deps.Writer = memoir.New(a.cfg, memoir.NewProviderComposer(p))
	} else {
		deps.Writer = memoir.New(a.cfg, nil)
	}
	a.writer = deps.Writer

	if a.engine, err = engine.New(a.cfg, deps); err != nil {
		a.Close()
		return nil, err
	}
	a.obs.Log().Debug().Str("provider", p.Name()).Str("store", a.cfg.Store.Driver).Str("dir", a.dir).Msg("memoir ready")
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.obs.Close()
}

// resolveProvider picks the text-generation backend. Keys come from the
// settings store first and the environment second.
func resolveProvider(cfg config.Config, settings store.Storage) (provider.Provider, func(), error) {
	name := providerFor(cfg, settings)
	switch name {
	case "plugin":
		path := cfg.Provider.PluginPath
		if path == "" {
			path, _ = settings.GetConfig("provider.plugin.path")
		}
		fields := strings.Fields(path)
		if len(fields) == 0 {
			return nil, nil, errors.New("plugin provider needs provider.plugin_path")
		}
		return plugin.Launch(fields[0], fields[1:]...)
	case "cli":
		p, err := detectCLIProvider(settings)
		return p, nil, err
	}

	opts := provider.Options{
		Name:    name,
		Model:   cfg.Provider.Model,
		BaseURL: cfg.Provider.BaseURL,
	}
	opts.Sampling = provider.Sampling{
		Temperature: cfg.Provider.Temperature,
		MaxTokens:   cfg.Provider.MaxTokens,
	}
	if opts.Model == "" {
		opts.Model, _ = settings.GetConfig(name + ".model")
	}
	if opts.BaseURL == "" {
		opts.BaseURL, _ = settings.GetConfig(name + ".base_url")
	}
	switch name {
	case "ollama":
		if opts.BaseURL == "" {
			opts.BaseURL = os.Getenv("OLLAMA_HOST")
		}
	case "openrouter":
		if opts.BaseURL == "" {
			opts.BaseURL = provider.OpenRouterBaseURL
		}
	}
	if env, ok := envKeys[name]; ok {
		key, err := apiKey(settings, name, env)
		if err != nil {
			return nil, nil, err
		}
		opts.APIKey = key
	}

	p, err := provider.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize provider: %w", err)
	}
	return p, nil, nil
}

// providerFor names the provider: --provider, then the stored
// provider.name setting, then the config file.
func providerFor(cfg config.Config, settings store.Storage) string {
	if providerName != "" {
		return providerName
	}
	if v, _ := settings.GetConfig("provider.name"); v != "" {
		return v
	}
	return cfg.Provider.Name
}

func apiKey(settings store.Storage, name, env string) (string, error) {
	m, err := credential.NewManager()
	if err != nil {
		return "", err
	}
	key, err := m.Get(settings, name+".api_key")
	if err != nil {
		return "", fmt.Errorf("failed to read %s.api_key: %w", name, err)
	}
	if key == "" {
		key = os.Getenv(env)
	}
	return key, nil
}

func detectCLIProvider(s store.Storage) (provider.Provider, error) {
	if cliPath, _ := s.GetConfig("provider.cli.path"); cliPath != "" {
		fields := strings.Fields(cliPath)
		return provider.NewCLIProvider(fields[0], fields[1:])
	}

	for _, t := range []string{"claude", "codex", "gemini", "llm"} {
		if path, err := exec.LookPath(t); err == nil {
			return provider.NewCLIProvider(path, nil)
		}
	}
	return nil, fmt.Errorf("no local CLI model detected (tried claude, codex, gemini, llm)")
}

// exportMemoir stores the Markdown rendering of doc as an artifact.
func exportMemoir(ctx context.Context, st store.Storage, doc *interview.Document) (*store.Artifact, string, error) {
	md := memoir.Markdown(doc)
	id := uuid.NewString()
	a := &store.Artifact{
		ID:        id,
		SessionID: doc.SourceSessionID,
		Path:      filepath.Join(doc.SourceSessionID, id+".md"),
		Type:      "memoir_markdown",
		Style:     string(doc.Style),
		CreatedAt: time.Now().UTC(),
		Digest:    memoir.Digest(md),
	}
	if err := st.SaveArtifact(ctx, a, []byte(md)); err != nil {
		return nil, md, fmt.Errorf("failed to save memoir: %w", err)
	}
	return a, md, nil
}
