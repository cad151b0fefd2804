// Package mock provides a test double for the inference.Provider interface.
//
// Use Provider in unit tests to feed controlled model outputs without a
// live backend. All configurable fields are safe to set before calling any
// method; mutating them during a concurrent call is the caller's
// responsibility.
//
// Example:
//
//	p := &mock.Provider{ModelName: "test", Outputs: []string{"你好"}}
//	out, err := p.Generate(ctx, inference.Plain("..."), inference.GenParams{})
package mock

import (
	"context"
	"sync"

	"github.com/lexigate/lexigate/pkg/provider/inference"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Prompt is the prompt passed to Generate.
	Prompt inference.Prompt
	// Params are the generation parameters passed to Generate.
	Params inference.GenParams
}

// Provider is a mock implementation of inference.Provider. The zero value
// reports itself unloaded and generates empty strings; set fields to shape
// behaviour.
type Provider struct {
	mu sync.Mutex

	// --- Configurable behaviour ---

	// ModelName is returned by Name.
	ModelName string

	// ExecutionMode is returned by Mode. Defaults to "cpu" when empty.
	ExecutionMode string

	// Outputs is the sequence of strings returned by successive Generate
	// calls. The last entry repeats once the sequence is exhausted.
	Outputs []string

	// GenerateFunc, if non-nil, overrides Outputs entirely.
	GenerateFunc func(ctx context.Context, p inference.Prompt, params inference.GenParams) (string, error)

	// GenerateErr, if non-nil, is returned by every Generate call.
	GenerateErr error

	// LoadErr, if non-nil, is returned by Load and leaves the provider
	// unloaded in the error state.
	LoadErr error

	// UnloadErr, if non-nil, is returned by Unload.
	UnloadErr error

	// PreLoaded makes the zero-value provider start in the loaded state.
	PreLoaded bool

	// --- Call records (read after test) ---

	// GenerateCalls records every invocation of Generate in order.
	GenerateCalls []GenerateCall

	// LoadCalls and UnloadCalls count invocations.
	LoadCalls   int
	UnloadCalls int

	loaded     bool
	stateInit  bool
	loadFailed bool
	genIndex   int
}

// initLocked applies PreLoaded the first time any lifecycle method runs.
func (p *Provider) initLocked() {
	if !p.stateInit {
		p.loaded = p.PreLoaded
		p.stateInit = true
	}
}

// Name returns ModelName.
func (p *Provider) Name() string { return p.ModelName }

// Mode returns ExecutionMode, defaulting to cpu.
func (p *Provider) Mode() string {
	if p.ExecutionMode == "" {
		return inference.ModeCPU
	}
	return p.ExecutionMode
}

// Load marks the provider loaded, or returns LoadErr.
func (p *Provider) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initLocked()
	p.LoadCalls++
	if p.LoadErr != nil {
		p.loadFailed = true
		p.loaded = false
		return p.LoadErr
	}
	p.loaded = true
	p.loadFailed = false
	return nil
}

// Unload marks the provider unloaded, or returns UnloadErr.
func (p *Provider) Unload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initLocked()
	p.UnloadCalls++
	if p.UnloadErr != nil {
		return p.UnloadErr
	}
	p.loaded = false
	return nil
}

// Loaded reports the current load state.
func (p *Provider) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initLocked()
	return p.loaded
}

// Progress reflects the current load state.
func (p *Provider) Progress() inference.LoadProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initLocked()
	switch {
	case p.loadFailed:
		return inference.LoadProgress{State: inference.StateError, Err: p.LoadErr}
	case p.loaded:
		return inference.LoadProgress{State: inference.StateLoaded, Percent: 100}
	}
	return inference.LoadProgress{State: inference.StateNotLoaded}
}

// Generate records the call and returns the next configured output.
func (p *Provider) Generate(ctx context.Context, prompt inference.Prompt, params inference.GenParams) (string, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Prompt: prompt, Params: params})
	fn := p.GenerateFunc
	err := p.GenerateErr
	var out string
	if fn == nil && err == nil {
		if len(p.Outputs) > 0 {
			i := p.genIndex
			if i >= len(p.Outputs) {
				i = len(p.Outputs) - 1
			}
			out = p.Outputs[i]
			p.genIndex++
		}
	}
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, params)
	}
	if err != nil {
		return "", err
	}
	return out, nil
}

// Reset clears all recorded calls and the output cursor. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = nil
	p.LoadCalls = 0
	p.UnloadCalls = 0
	p.genIndex = 0
}

// Ensure Provider implements inference.Provider at compile time.
var _ inference.Provider = (*Provider)(nil)
