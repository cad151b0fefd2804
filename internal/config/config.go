// Package config provides the configuration schema and loader for the
// translation gateway.
//
// Configuration lives in three YAML documents inside a single directory:
// app.yaml (service limits and access control), model.yaml (inference
// provider and prompt settings), and languages.yaml (the language registry).
// All three are read once at startup into an immutable [Config]; there is no
// hot reload.
package config

// LogLevel controls log verbosity for the gateway.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler used for process logs.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// ProviderType selects the inference backend.
type ProviderType string

const (
	// ProviderLocal runs models from the local models directory through a
	// managed llama.cpp-style runtime.
	ProviderLocal ProviderType = "local"

	// ProviderOpenAI talks to an OpenAI-compatible /completions endpoint.
	ProviderOpenAI ProviderType = "openai"

	// ProviderHuggingFace talks to a Hugging Face inference endpoint.
	ProviderHuggingFace ProviderType = "huggingface"
)

// IsValid reports whether p is a recognised provider type.
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderLocal, ProviderOpenAI, ProviderHuggingFace:
		return true
	}
	return false
}

// SwitchPolicy controls what happens when a translate request names a model
// other than the active one.
type SwitchPolicy string

const (
	// SwitchLazy switches to the requested model on demand.
	SwitchLazy SwitchPolicy = "lazy"

	// SwitchExplicit rejects the request and directs the caller to the
	// switch endpoint.
	SwitchExplicit SwitchPolicy = "explicit"
)

// IsValid reports whether s is a recognised switching policy.
func (s SwitchPolicy) IsValid() bool {
	return s == SwitchLazy || s == SwitchExplicit
}

// PromptFormat selects how prompts are handed to the provider.
type PromptFormat string

const (
	// FormatTemplate renders a single instruction-block string.
	FormatTemplate PromptFormat = "template"

	// FormatChat produces role-tagged messages for chat-template models.
	FormatChat PromptFormat = "chat"
)

// IsValid reports whether f is a recognised prompt format.
func (f PromptFormat) IsValid() bool {
	return f == FormatTemplate || f == FormatChat
}

// Config is the merged view over the three configuration documents.
type Config struct {
	App       App       `yaml:"app"`
	Model     Model     `yaml:"model"`
	Languages Languages `yaml:"languages"`
}

// App holds service limits, logging, and admin access control (app.yaml).
type App struct {
	// Server is the HTTP listener configuration.
	Server ServerConfig `yaml:"server"`

	// MaxTextLength is the maximum accepted source text length in runes.
	MaxTextLength int `yaml:"max_text_length"`

	// Queue bounds concurrent and waiting translation requests.
	Queue QueueConfig `yaml:"queue"`

	// Translation holds per-request pipeline settings.
	Translation TranslationConfig `yaml:"translation"`

	// AdminAccess restricts the /api/v1/admin/ surface by client IP.
	AdminAccess AdminAccessConfig `yaml:"admin_access"`

	// Shutdown configures the graceful drain on SIGINT/SIGTERM.
	Shutdown ShutdownConfig `yaml:"shutdown"`

	// Log configures process logging.
	Log LogConfig `yaml:"log"`
}

// ServerConfig holds network settings for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`
}

// QueueConfig bounds the admission queue.
type QueueConfig struct {
	// MaxConcurrent is the number of requests translated in parallel.
	MaxConcurrent int `yaml:"max_concurrent"`

	// MaxQueueSize is the number of requests allowed to wait for a slot.
	// Requests beyond this are rejected immediately.
	MaxQueueSize int `yaml:"max_queue_size"`
}

// TranslationConfig holds per-request pipeline settings.
type TranslationConfig struct {
	// TimeoutSeconds bounds a single model generation call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// AdminAccessConfig restricts admin endpoints to an IP allow-list.
type AdminAccessConfig struct {
	// AllowedIPs lists CIDR blocks permitted to call /api/v1/admin/.
	// Malformed entries are skipped with a warning; an empty effective list
	// denies all admin access.
	AllowedIPs []string `yaml:"allowed_ips"`
}

// ShutdownConfig configures the graceful drain.
type ShutdownConfig struct {
	// TimeoutSeconds is how long the gateway waits for in-flight requests
	// to finish before forcing shutdown.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// LogConfig configures process logging.
type LogConfig struct {
	// Level controls verbosity.
	Level LogLevel `yaml:"level"`

	// Format selects the slog handler: text or json.
	Format LogFormat `yaml:"format"`

	// File, when set, additionally writes logs to this path with size-based
	// rotation (50 MiB per file, 30 generations kept).
	File string `yaml:"file"`
}

// Model holds inference provider and prompt settings (model.yaml).
type Model struct {
	// Provider selects and configures the inference backend.
	Provider ProviderConfig `yaml:"provider"`

	// ModelsDir is the directory scanned for local model subdirectories.
	ModelsDir string `yaml:"models_dir"`

	// Switching controls model switch behaviour.
	Switching SwitchingConfig `yaml:"switching"`

	// Prompts controls prompt construction.
	Prompts PromptsConfig `yaml:"prompts"`

	// Quality maps quality level names (fast, standard, high) to generation
	// parameters. Missing levels use compiled defaults.
	Quality map[string]GenParams `yaml:"quality"`
}

// ProviderConfig configures the inference backend.
type ProviderConfig struct {
	// Type selects the backend: local, openai, or huggingface.
	Type ProviderType `yaml:"type"`

	// Name is the model name sent to remote backends, or the default local
	// model directory name.
	Name string `yaml:"name"`

	// BaseURL is the remote endpoint (or local runtime address).
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates remote requests. Unused for local.
	APIKey string `yaml:"api_key"`

	// TimeoutSeconds bounds one provider call.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// MaxRetries is the retry budget for transient remote failures.
	MaxRetries int `yaml:"max_retries"`

	// ForceCPU disables GPU use for the local backend.
	ForceCPU bool `yaml:"force_cpu"`
}

// SwitchingConfig controls model switch behaviour.
type SwitchingConfig struct {
	// Policy is lazy (switch on demand) or explicit (reject and point at
	// the switch endpoint).
	Policy SwitchPolicy `yaml:"policy"`
}

// PromptsConfig controls prompt construction.
type PromptsConfig struct {
	// FormatType selects template or chat prompt construction.
	FormatType PromptFormat `yaml:"format_type"`

	// ForceOutputOnly appends extra single-line-output constraints to the
	// instruction block.
	ForceOutputOnly bool `yaml:"force_output_only"`
}

// GenParams are the generation parameters for one quality level.
type GenParams struct {
	Temperature       float64 `yaml:"temperature"`
	TopP              float64 `yaml:"top_p"`
	NumBeams          int     `yaml:"num_beams"`
	DoSample          bool    `yaml:"do_sample"`
	MaxNewTokens      int     `yaml:"max_new_tokens"`
	MinNewTokens      int     `yaml:"min_new_tokens"`
	RepetitionPenalty float64 `yaml:"repetition_penalty"`
	EarlyStopping     bool    `yaml:"early_stopping"`
}

// Languages holds the language registry document (languages.yaml).
type Languages struct {
	Languages []LanguageEntry  `yaml:"languages"`
	Defaults  LanguageDefaults `yaml:"defaults"`
}

// LanguageEntry is one registry row.
type LanguageEntry struct {
	// Code is the BCP 47 style language code (e.g., "zh-TW").
	Code string `yaml:"code"`

	// Name is the native display name.
	Name string `yaml:"name"`

	// NameEN is the English display name.
	NameEN string `yaml:"name_en"`

	// Enabled controls whether the language is offered.
	Enabled bool `yaml:"enabled"`

	// SortOrder controls display ordering (ascending).
	SortOrder int `yaml:"sort_order"`
}

// LanguageDefaults are the pair defaults applied when a request omits them.
type LanguageDefaults struct {
	SourceLanguage string `yaml:"source_language"`
	TargetLanguage string `yaml:"target_language"`
}
