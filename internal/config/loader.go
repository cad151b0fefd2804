package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultAllowedIPs is the admin allow-list applied when app.yaml does not
// configure one: loopback plus the RFC 1918 private ranges.
var DefaultAllowedIPs = []string{
	"127.0.0.1/32",
	"192.168.0.0/16",
	"10.0.0.0/8",
	"172.16.0.0/12",
}

// DefaultQuality returns the compiled generation parameter table. Levels the
// operator does not override in model.yaml use these values.
func DefaultQuality() map[string]GenParams {
	return map[string]GenParams{
		"fast":     {Temperature: 0.7, TopP: 0.9, NumBeams: 1, DoSample: true, MaxNewTokens: 128},
		"standard": {Temperature: 0.5, TopP: 0.85, NumBeams: 1, DoSample: true, MaxNewTokens: 256},
		"high":     {Temperature: 0.3, TopP: 0.8, NumBeams: 4, DoSample: false, MaxNewTokens: 512, EarlyStopping: true},
	}
}

// Default returns a Config populated entirely from compiled defaults.
func Default() *Config {
	return &Config{
		App: App{
			Server:        ServerConfig{ListenAddr: ":8080"},
			MaxTextLength: 10000,
			Queue:         QueueConfig{MaxConcurrent: 100, MaxQueueSize: 100},
			Translation:   TranslationConfig{TimeoutSeconds: 120},
			AdminAccess:   AdminAccessConfig{AllowedIPs: append([]string(nil), DefaultAllowedIPs...)},
			Shutdown:      ShutdownConfig{TimeoutSeconds: 120},
			Log:           LogConfig{Level: LogInfo, Format: LogFormatText},
		},
		Model: Model{
			Provider:  ProviderConfig{Type: ProviderLocal, TimeoutSeconds: 120, MaxRetries: 2},
			ModelsDir: "models",
			Switching: SwitchingConfig{Policy: SwitchLazy},
			Prompts:   PromptsConfig{FormatType: FormatTemplate},
			Quality:   DefaultQuality(),
		},
		Languages: Languages{
			Languages: []LanguageEntry{
				{Code: "zh-TW", Name: "繁體中文", NameEN: "Traditional Chinese", Enabled: true, SortOrder: 1},
				{Code: "zh-CN", Name: "简体中文", NameEN: "Simplified Chinese", Enabled: true, SortOrder: 2},
				{Code: "en", Name: "English", NameEN: "English", Enabled: true, SortOrder: 3},
				{Code: "ja", Name: "日本語", NameEN: "Japanese", Enabled: true, SortOrder: 4},
				{Code: "ko", Name: "한국어", NameEN: "Korean", Enabled: true, SortOrder: 5},
			},
			Defaults: LanguageDefaults{SourceLanguage: "auto", TargetLanguage: "zh-TW"},
		},
	}
}

// Load reads app.yaml, model.yaml, and languages.yaml from dir and returns a
// validated [Config]. A missing document falls back to compiled defaults
// with a warning; a present but malformed document is a hard error.
func Load(dir string) (*Config, error) {
	cfg := Default()

	if err := loadDocument(filepath.Join(dir, "app.yaml"), &cfg.App); err != nil {
		return nil, err
	}
	if err := loadDocument(filepath.Join(dir, "model.yaml"), &cfg.Model); err != nil {
		return nil, err
	}
	if err := loadDocument(filepath.Join(dir, "languages.yaml"), &cfg.Languages); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDocument decodes one YAML document over the pre-populated defaults in
// out. Unknown keys are rejected.
func loadDocument(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("config document missing; using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	if err := decodeYAML(f, out); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

func decodeYAML(r io.Reader, out any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadFromReaders decodes the three documents from readers instead of files.
// Nil readers keep the compiled defaults. Useful in tests where configs are
// constructed from string literals.
func LoadFromReaders(app, model, languages io.Reader) (*Config, error) {
	cfg := Default()
	if app != nil {
		if err := decodeYAML(app, &cfg.App); err != nil {
			return nil, fmt.Errorf("config: decode app yaml: %w", err)
		}
	}
	if model != nil {
		if err := decodeYAML(model, &cfg.Model); err != nil {
			return nil, fmt.Errorf("config: decode model yaml: %w", err)
		}
	}
	if languages != nil {
		if err := decodeYAML(languages, &cfg.Languages); err != nil {
			return nil, fmt.Errorf("config: decode languages yaml: %w", err)
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. Hard problems
// are returned as a joined error; recoverable ones are clamped back to
// defaults with a warning.
func Validate(cfg *Config) error {
	var errs []error
	def := Default()

	// App
	if cfg.App.Log.Level != "" && !cfg.App.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("app.log.level %q is invalid; valid values: debug, info, warn, error", cfg.App.Log.Level))
	}
	if cfg.App.Log.Format != "" && !cfg.App.Log.Format.IsValid() {
		errs = append(errs, fmt.Errorf("app.log.format %q is invalid; valid values: text, json", cfg.App.Log.Format))
	}
	clampPositive(&cfg.App.MaxTextLength, def.App.MaxTextLength, "app.max_text_length")
	clampPositive(&cfg.App.Queue.MaxConcurrent, def.App.Queue.MaxConcurrent, "app.queue.max_concurrent")
	if cfg.App.Queue.MaxQueueSize < 0 {
		slog.Warn("config value out of range; using default",
			"key", "app.queue.max_queue_size",
			"value", cfg.App.Queue.MaxQueueSize,
			"default", def.App.Queue.MaxQueueSize)
		cfg.App.Queue.MaxQueueSize = def.App.Queue.MaxQueueSize
	}
	clampPositive(&cfg.App.Translation.TimeoutSeconds, def.App.Translation.TimeoutSeconds, "app.translation.timeout_seconds")
	clampPositive(&cfg.App.Shutdown.TimeoutSeconds, def.App.Shutdown.TimeoutSeconds, "app.shutdown.timeout_seconds")
	if len(cfg.App.AdminAccess.AllowedIPs) == 0 {
		slog.Warn("app.admin_access.allowed_ips is empty; using loopback and private ranges")
		cfg.App.AdminAccess.AllowedIPs = append([]string(nil), DefaultAllowedIPs...)
	}

	// Model
	if !cfg.Model.Provider.Type.IsValid() {
		errs = append(errs, fmt.Errorf("model.provider.type %q is invalid; valid values: local, openai, huggingface", cfg.Model.Provider.Type))
	}
	if cfg.Model.Provider.Type != ProviderLocal && cfg.Model.Provider.BaseURL == "" {
		errs = append(errs, fmt.Errorf("model.provider.base_url is required for provider type %q", cfg.Model.Provider.Type))
	}
	if !cfg.Model.Switching.Policy.IsValid() {
		errs = append(errs, fmt.Errorf("model.switching.policy %q is invalid; valid values: lazy, explicit", cfg.Model.Switching.Policy))
	}
	if !cfg.Model.Prompts.FormatType.IsValid() {
		errs = append(errs, fmt.Errorf("model.prompts.format_type %q is invalid; valid values: template, chat", cfg.Model.Prompts.FormatType))
	}
	clampPositive(&cfg.Model.Provider.TimeoutSeconds, def.Model.Provider.TimeoutSeconds, "model.provider.timeout_seconds")
	if cfg.Model.Provider.MaxRetries < 0 {
		slog.Warn("config value out of range; using default",
			"key", "model.provider.max_retries",
			"value", cfg.Model.Provider.MaxRetries,
			"default", def.Model.Provider.MaxRetries)
		cfg.Model.Provider.MaxRetries = def.Model.Provider.MaxRetries
	}

	// Quality levels: fill missing levels from defaults, sanitise the rest.
	if cfg.Model.Quality == nil {
		cfg.Model.Quality = DefaultQuality()
	}
	for name, p := range DefaultQuality() {
		if _, ok := cfg.Model.Quality[name]; !ok {
			cfg.Model.Quality[name] = p
		}
	}
	for name, p := range cfg.Model.Quality {
		if p.MaxNewTokens <= 0 {
			p.MaxNewTokens = DefaultQuality()["standard"].MaxNewTokens
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			slog.Warn("quality temperature out of range; using standard default", "level", name, "value", p.Temperature)
			p.Temperature = DefaultQuality()["standard"].Temperature
		}
		if p.TopP <= 0 || p.TopP > 1 {
			p.TopP = DefaultQuality()["standard"].TopP
		}
		if p.NumBeams < 1 {
			p.NumBeams = 1
		}
		// Beam search and sampling are mutually exclusive.
		if p.NumBeams > 1 && p.DoSample {
			slog.Warn("num_beams > 1 disables sampling", "level", name)
			p.DoSample = false
		}
		if p.NumBeams > 1 {
			p.EarlyStopping = true
		}
		cfg.Model.Quality[name] = p
	}

	// Languages
	seen := make(map[string]int, len(cfg.Languages.Languages))
	enabled := 0
	for i, l := range cfg.Languages.Languages {
		prefix := fmt.Sprintf("languages[%d]", i)
		if l.Code == "" {
			errs = append(errs, fmt.Errorf("%s.code is required", prefix))
			continue
		}
		if prev, ok := seen[l.Code]; ok {
			errs = append(errs, fmt.Errorf("%s.code %q is a duplicate of languages[%d]", prefix, l.Code, prev))
		}
		seen[l.Code] = i
		if l.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		errs = append(errs, errors.New("languages: at least one enabled language is required"))
	}
	if cfg.Languages.Defaults.SourceLanguage == "" {
		cfg.Languages.Defaults.SourceLanguage = "auto"
	}
	if cfg.Languages.Defaults.TargetLanguage == "" {
		cfg.Languages.Defaults.TargetLanguage = def.Languages.Defaults.TargetLanguage
	}

	return errors.Join(errs...)
}

// clampPositive resets *v to fallback when it is not strictly positive.
func clampPositive(v *int, fallback int, key string) {
	if *v <= 0 {
		slog.Warn("config value out of range; using default", "key", key, "value", *v, "default", fallback)
		*v = fallback
	}
}
