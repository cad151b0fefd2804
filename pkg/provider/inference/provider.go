// Package inference defines the Provider interface for translation model
// backends.
//
// A provider wraps either a locally managed inference runtime or a remote
// API (an OpenAI-compatible /completions endpoint or a Hugging Face
// inference endpoint) and exposes a uniform interface for the translation
// pipeline to load models, generate text, and report load progress without
// coupling to any specific SDK.
//
// Implementors must be safe for concurrent use.
package inference

import "context"

// Mode values reported by [Provider.Mode]. Local backends report the device
// the weights run on; remote backends always report [ModeRemote].
const (
	ModeGPU    = "gpu"
	ModeCPU    = "cpu"
	ModeRemote = "remote"
)

// Message is one turn of a chat-style prompt.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// Prompt is a closed variant type: a prompt is either a [Plain] instruction
// string or a [Chat] message list. Providers type-switch on it.
type Prompt interface {
	isPrompt()
}

// Plain is a fully rendered single-string prompt.
type Plain string

func (Plain) isPrompt() {}

// Chat is a role-tagged prompt for chat-template models. The language pair
// and raw text travel alongside the messages so dialect-aware backends
// (e.g., translategemma models) can re-encode the user turn.
type Chat struct {
	Messages []Message

	// SourceLang and TargetLang are the request language codes.
	SourceLang string
	TargetLang string

	// Text is the sanitized source text.
	Text string
}

func (Chat) isPrompt() {}

// GenParams are the generation parameters for one call. Zero values mean
// "provider default" except DoSample, which is explicit.
type GenParams struct {
	Temperature       float64
	TopP              float64
	NumBeams          int
	DoSample          bool
	MaxNewTokens      int
	MinNewTokens      int
	RepetitionPenalty float64
	EarlyStopping     bool
}

// LoadState describes where a provider is in its load lifecycle.
type LoadState string

const (
	StateNotLoaded LoadState = "not_loaded"
	StateLoading   LoadState = "loading"
	StateLoaded    LoadState = "loaded"
	StateError     LoadState = "error"
)

// LoadProgress is a point-in-time view of model loading.
type LoadProgress struct {
	// State is the current lifecycle state.
	State LoadState

	// Percent is the load progress in [0, 100]. Remote providers jump
	// straight to 100 on a successful load.
	Percent float64

	// Err holds the failure when State is [StateError].
	Err error
}

// Provider is the abstraction over any translation model backend.
//
// Implementations must be safe for concurrent use from multiple goroutines
// and must propagate context cancellation promptly.
type Provider interface {
	// Name returns the model identifier this provider serves (a local model
	// directory name or a remote model name).
	Name() string

	// Mode reports the execution mode: [ModeGPU], [ModeCPU], or
	// [ModeRemote].
	Mode() string

	// Load makes the model ready for generation. For local backends this
	// resolves weights and starts the runtime; for remote backends it
	// verifies reachability. Load is idempotent once the model is ready.
	Load(ctx context.Context) error

	// Unload releases the model. Generate calls after Unload fail until
	// the next Load.
	Unload(ctx context.Context) error

	// Loaded reports whether the model is ready for generation.
	Loaded() bool

	// Progress returns the current load progress snapshot.
	Progress() LoadProgress

	// Generate produces text for prompt under params. The returned string
	// is the raw model output; post-processing is the caller's concern.
	Generate(ctx context.Context, prompt Prompt, params GenParams) (string, error)
}
