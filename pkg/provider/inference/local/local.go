// Package local provides an inference.Provider backed by a llama.cpp-style
// runtime serving one model from the local models directory.
//
// The runtime exposes the llama.cpp server HTTP surface: GET /health reports
// load state and POST /completion generates text. Load resolves the weights
// file for the model directory, then polls /health until the runtime reports
// ready, publishing coarse progress checkpoints that a background smoother
// fills in between.
//
// Typical usage:
//
//	p, err := local.New("my-model", "/models/my-model",
//	    local.WithBaseURL("http://localhost:8081"),
//	    local.WithTimeout(120*time.Second),
//	)
//	if err := p.Load(ctx); err != nil { ... }
//	out, err := p.Generate(ctx, prompt, params)
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lexigate/lexigate/pkg/provider/inference"
)

// Compile-time interface assertion.
var _ inference.Provider = (*Provider)(nil)

const (
	defaultBaseURL = "http://localhost:8081"
	defaultTimeout = 120 * time.Second

	healthEndpoint     = "/health"
	completionEndpoint = "/completion"

	// healthPollInterval is how often Load re-reads /health while the
	// runtime loads the model.
	healthPollInterval = 500 * time.Millisecond
)

// Option is a functional option for configuring a local Provider.
type Option func(*Provider)

// WithBaseURL sets the runtime base URL. Defaults to http://localhost:8081.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout sets the per-request HTTP timeout for generation calls.
// Defaults to 120 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// WithForceCPU skips GPU probing and selects full precision weights.
func WithForceCPU(force bool) Option {
	return func(p *Provider) {
		p.forceCPU = force
	}
}

// WithVRAMProbe overrides how available GPU memory is detected. Used in
// tests; the default probe shells out to nvidia-smi.
func WithVRAMProbe(probe func(ctx context.Context) (mib int, ok bool)) Option {
	return func(p *Provider) {
		p.vramProbe = probe
	}
}

// Provider implements inference.Provider against a llama.cpp-style runtime.
// It is safe for concurrent use.
type Provider struct {
	modelID    string
	modelDir   string
	baseURL    string
	httpClient *http.Client
	forceCPU   bool
	vramProbe  func(ctx context.Context) (int, bool)

	mu       sync.Mutex
	loaded   bool
	weights  weightsFile
	device   string
	progress inference.LoadProgress
	smoother *smoother
}

// New creates a Provider for the model in modelDir. modelID is the catalog
// identifier reported by Name.
func New(modelID, modelDir string, opts ...Option) (*Provider, error) {
	if modelID == "" {
		return nil, errors.New("local: modelID must not be empty")
	}
	p := &Provider{
		modelID:    modelID,
		modelDir:   modelDir,
		baseURL:    defaultBaseURL,
		vramProbe:  probeVRAM,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name returns the catalog model identifier.
func (p *Provider) Name() string { return p.modelID }

// Mode reports the device the weights run on, decided when the weights are
// resolved during Load. Defaults to cpu before the first load.
func (p *Provider) Mode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == "" {
		return inference.ModeCPU
	}
	return p.device
}

// Loaded reports whether the runtime finished loading the model.
func (p *Provider) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// Progress returns the current load progress including smoothed percent.
func (p *Provider) Progress() inference.LoadProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr := p.progress
	if p.smoother != nil {
		pr.Percent = p.smoother.percent()
	}
	return pr
}

// healthResponse mirrors the llama.cpp server /health body.
type healthResponse struct {
	Status          string `json:"status"`
	SlotsIdle       int    `json:"slots_idle"`
	SlotsProcessing int    `json:"slots_processing"`
}

// completionRequest mirrors the llama.cpp server /completion body, limited
// to the fields generation uses.
type completionRequest struct {
	Prompt        string   `json:"prompt"`
	Temperature   float64  `json:"temperature,omitempty"`
	TopP          float64  `json:"top_p,omitempty"`
	NPredict      int      `json:"n_predict,omitempty"`
	RepeatPenalty float64  `json:"repeat_penalty,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	CachePrompt   bool     `json:"cache_prompt"`
	Stream        bool     `json:"stream"`
}

// completionResponse carries the fields of the /completion reply that
// generation reads.
type completionResponse struct {
	Content      string `json:"content"`
	Stop         bool   `json:"stop"`
	StoppedLimit bool   `json:"stopped_limit"`
	Timings      struct {
		PromptN     int64   `json:"prompt_n"`
		PredictedN  int64   `json:"predicted_n"`
		PredictedMS float64 `json:"predicted_ms"`
	} `json:"timings"`
}

// Load resolves the weights file for the model directory and waits for the
// runtime to report ready. Progress moves through fixed checkpoints; a
// smoother advances the published percent between them.
func (p *Provider) Load(ctx context.Context) error {
	p.mu.Lock()
	if p.loaded {
		p.mu.Unlock()
		return nil
	}
	if p.progress.State == inference.StateLoading {
		p.mu.Unlock()
		return errors.New("local: load already in progress")
	}
	p.progress = inference.LoadProgress{State: inference.StateLoading}
	p.smoother = newSmoother()
	p.mu.Unlock()

	err := p.load(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.smoother.stop()
	p.smoother = nil
	if err != nil {
		p.progress = inference.LoadProgress{State: inference.StateError, Err: err}
		return err
	}
	p.loaded = true
	p.progress = inference.LoadProgress{State: inference.StateLoaded, Percent: 100}
	return nil
}

func (p *Provider) load(ctx context.Context) error {
	p.checkpoint(checkpointStart)

	weights, device, err := resolveWeights(ctx, p.modelDir, p.forceCPU, p.vramProbe)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.weights = weights
	p.device = device
	p.mu.Unlock()
	slog.Info("model weights resolved",
		"model", p.modelID, "file", weights.Name, "precision", weights.Precision, "device", device)
	p.checkpoint(checkpointWeights)
	p.checkpoint(checkpointProbe)

	// First contact with the runtime.
	first := true
	sawLoading := false
	for {
		h, err := p.health(ctx)
		switch {
		case err != nil:
			// Runtime not up yet; keep polling under the caller's deadline.
		case first:
			p.checkpoint(checkpointContact)
			first = false
		}
		if err == nil {
			switch h.Status {
			case "ok":
				p.checkpoint(checkpointReady)
				return p.warmup(ctx)
			case "loading model":
				if !sawLoading {
					sawLoading = true
					p.checkpoint(checkpointLoading)
				}
			case "error":
				return fmt.Errorf("local: runtime reported load error for %s", p.modelID)
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("local: waiting for runtime: %w", ctx.Err())
		case <-time.After(healthPollInterval):
		}
	}
}

// warmup issues a one-token completion so the first user request does not
// pay graph compilation cost.
func (p *Provider) warmup(ctx context.Context) error {
	p.checkpoint(checkpointWarmup)
	_, err := p.complete(ctx, completionRequest{Prompt: "Hi", NPredict: 1, CachePrompt: true})
	if err != nil {
		return fmt.Errorf("local: warmup: %w", err)
	}
	return nil
}

// Unload marks the provider unloaded. The runtime keeps running; the next
// Load re-attaches to it.
func (p *Provider) Unload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = false
	p.progress = inference.LoadProgress{State: inference.StateNotLoaded}
	p.smoother = nil
	return nil
}

// Generate renders prompt for the model family and runs one completion.
func (p *Provider) Generate(ctx context.Context, prompt inference.Prompt, params inference.GenParams) (string, error) {
	p.mu.Lock()
	loaded := p.loaded
	p.mu.Unlock()
	if !loaded {
		return "", errors.New("local: model is not loaded")
	}

	req := completionRequest{
		Prompt:        renderPrompt(p.modelID, prompt),
		NPredict:      params.MaxNewTokens,
		TopP:          params.TopP,
		RepeatPenalty: params.RepetitionPenalty,
		Stop:          []string{"</s>", "[INST]"},
		CachePrompt:   true,
	}
	if params.DoSample {
		req.Temperature = params.Temperature
	}

	msg, err := p.complete(ctx, req)
	if err != nil {
		return "", err
	}
	slog.Debug("local completion",
		"model", p.modelID,
		"prompt_tokens", msg.Timings.PromptN,
		"generated_tokens", msg.Timings.PredictedN,
		"generation_ms", msg.Timings.PredictedMS,
		"truncated", msg.StoppedLimit)
	return msg.Content, nil
}

func (p *Provider) complete(ctx context.Context, data completionRequest) (*completionResponse, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("local: marshal completion request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+completionEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("local: create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local: POST %s: %w", completionEndpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local: POST %s returned status %d", completionEndpoint, resp.StatusCode)
	}

	var msg completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("local: decode completion response: %w", err)
	}
	return &msg, nil
}

func (p *Provider) health(ctx context.Context) (*healthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+healthEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("local: create health request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local: GET %s: %w", healthEndpoint, err)
	}
	defer resp.Body.Close()

	// The runtime answers 503 while loading, with a body describing the
	// state, so the status code is deliberately not checked here.
	var msg healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("local: decode health response: %w", err)
	}
	return &msg, nil
}

func (p *Provider) checkpoint(c checkpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress.Percent = float64(c)
	if p.smoother != nil {
		p.smoother.advance(c)
	}
}
