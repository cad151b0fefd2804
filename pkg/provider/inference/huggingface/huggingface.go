// Package huggingface provides an inference.Provider backed by the Hugging
// Face text-generation inference API.
//
// Requests are plain HTTP POSTs with the standard {inputs, parameters}
// body. The API returns either a bare object or a one-element array, both
// carrying generated_text; both shapes are accepted.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lexigate/lexigate/internal/errcode"
	"github.com/lexigate/lexigate/internal/resilience"
	"github.com/lexigate/lexigate/pkg/provider/inference"
)

// Compile-time interface assertion.
var _ inference.Provider = (*Provider)(nil)

const (
	defaultBaseURL = "https://api-inference.huggingface.co/models"
	defaultTimeout = 120 * time.Second
	defaultRetries = 2
)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithBaseURL overrides the inference API base URL, e.g. for a self-hosted
// text-generation-inference server.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 120 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// WithMaxRetries bounds transient-failure retries per Generate call.
// Defaults to 2.
func WithMaxRetries(n int) Option {
	return func(p *Provider) {
		p.retries = n
	}
}

// Provider implements inference.Provider against the Hugging Face inference
// API. It is safe for concurrent use.
type Provider struct {
	model      string
	apiKey     string
	baseURL    string
	retries    int
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	loaded     atomic.Bool
}

// New constructs a Provider for the named model repository.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("huggingface: model must not be empty")
	}
	p := &Provider{
		model:      model,
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		retries:    defaultRetries,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	p.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "huggingface:" + model})
	return p, nil
}

// Name returns the remote model name.
func (p *Provider) Name() string { return p.model }

// Mode reports remote execution.
func (p *Provider) Mode() string { return inference.ModeRemote }

// Load marks the provider ready; the model lives on the remote service.
func (p *Provider) Load(ctx context.Context) error {
	p.loaded.Store(true)
	return nil
}

// Unload marks the provider not ready.
func (p *Provider) Unload(ctx context.Context) error {
	p.loaded.Store(false)
	return nil
}

// Loaded reports the flag set by Load.
func (p *Provider) Loaded() bool { return p.loaded.Load() }

// Progress reflects the binary remote load state.
func (p *Provider) Progress() inference.LoadProgress {
	if p.loaded.Load() {
		return inference.LoadProgress{State: inference.StateLoaded, Percent: 100}
	}
	return inference.LoadProgress{State: inference.StateNotLoaded}
}

// generateRequest is the {inputs, parameters} body of the text-generation
// API.
type generateRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters generateParameters `json:"parameters"`
}

type generateParameters struct {
	MaxNewTokens      int     `json:"max_new_tokens,omitempty"`
	Temperature       float64 `json:"temperature,omitempty"`
	TopP              float64 `json:"top_p,omitempty"`
	DoSample          bool    `json:"do_sample"`
	NumBeams          int     `json:"num_beams,omitempty"`
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty"`
	ReturnFullText    bool    `json:"return_full_text"`
}

// generateResponse is one element of the API reply.
type generateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Generate runs one text generation call, retrying transient transport
// failures.
func (p *Provider) Generate(ctx context.Context, prompt inference.Prompt, params inference.GenParams) (string, error) {
	body := generateRequest{
		Inputs: inference.Flatten(prompt),
		Parameters: generateParameters{
			MaxNewTokens:      params.MaxNewTokens,
			DoSample:          params.DoSample,
			NumBeams:          params.NumBeams,
			RepetitionPenalty: params.RepetitionPenalty,
			ReturnFullText:    false,
		},
	}
	if params.DoSample {
		body.Parameters.Temperature = params.Temperature
		body.Parameters.TopP = params.TopP
	}

	var out string
	err := p.breaker.Execute(func() error {
		return resilience.Retry(ctx, resilience.RetryConfig{MaxRetries: p.retries}, func() error {
			text, err := p.generate(ctx, body)
			if err != nil {
				return err
			}
			out = text
			return nil
		})
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", errcode.Wrap(errcode.NetworkError, err)
	}
	if err != nil {
		return "", err
	}
	return out, nil
}

func (p *Provider) generate(ctx context.Context, body generateRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("huggingface: marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+p.model, bytes.NewReader(data))
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("huggingface: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", errcode.Wrap(errcode.NetworkError, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusServiceUnavailable, resp.StatusCode >= 500:
		// 503 covers cold-start model loading on the hosted API; retryable.
		return "", errcode.Wrap(errcode.NetworkError,
			fmt.Errorf("huggingface: status %d", resp.StatusCode))
	default:
		return "", resilience.Permanent(errcode.Wrap(errcode.Internal,
			fmt.Errorf("huggingface: status %d", resp.StatusCode)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errcode.Wrap(errcode.NetworkError, err)
	}
	return parseGenerated(raw)
}

// parseGenerated accepts both reply shapes: a one-element array of
// {generated_text} or a bare {generated_text} object.
func parseGenerated(raw []byte) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var arr []generateResponse
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return "", resilience.Permanent(fmt.Errorf("huggingface: decode response: %w", err))
		}
		if len(arr) == 0 {
			return "", resilience.Permanent(errors.New("huggingface: empty response array"))
		}
		return arr[0].GeneratedText, nil
	}
	var one generateResponse
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return "", resilience.Permanent(fmt.Errorf("huggingface: decode response: %w", err))
	}
	return one.GeneratedText, nil
}
