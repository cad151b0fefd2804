// Package openai provides an inference.Provider backed by an
// OpenAI-compatible completions API.
//
// The provider targets the legacy text completion surface (POST
// /completions) because translation prompts are fully rendered before they
// reach the backend; no chat template negotiation is needed. Point it at
// any server speaking that dialect with WithBaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/lexigate/lexigate/internal/errcode"
	"github.com/lexigate/lexigate/internal/resilience"
	"github.com/lexigate/lexigate/pkg/provider/inference"
)

// Compile-time interface assertion.
var _ inference.Provider = (*Provider)(nil)

const (
	defaultTimeout = 120 * time.Second
	defaultRetries = 2
)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
	retries int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL points the client at an OpenAI-compatible server instead of
// the default OpenAI API endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout. Defaults to 120 s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries bounds transient-failure retries per Generate call.
// Defaults to 2.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.retries = n
	}
}

// Provider implements inference.Provider against an OpenAI-compatible
// completions API. Remote models have no load lifecycle; Load and Unload
// only flip the reported state.
type Provider struct {
	client  oai.Client
	model   string
	retries int
	breaker *resilience.CircuitBreaker
	loaded  atomic.Bool
}

// New constructs a Provider for the named remote model.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{timeout: defaultTimeout, retries: defaultRetries}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		// The SDK retries internally as well; resilience.Retry owns the
		// retry budget so the SDK's own is disabled.
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client:  oai.NewClient(reqOpts...),
		model:   model,
		retries: cfg.retries,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "openai:" + model}),
	}, nil
}

// Name returns the remote model name.
func (p *Provider) Name() string { return p.model }

// Mode reports remote execution.
func (p *Provider) Mode() string { return inference.ModeRemote }

// Load marks the provider ready. Remote models are always resident on the
// backend.
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

// Generate runs one completion, retrying transient transport failures.
func (p *Provider) Generate(ctx context.Context, prompt inference.Prompt, params inference.GenParams) (string, error) {
	body := oai.CompletionNewParams{
		Model:  oai.CompletionNewParamsModel(p.model),
		Prompt: oai.CompletionNewParamsPromptUnion{OfString: param.NewOpt(inference.Flatten(prompt))},
		N:      param.NewOpt(int64(1)),
	}
	if params.MaxNewTokens > 0 {
		body.MaxTokens = param.NewOpt(int64(params.MaxNewTokens))
	}
	if params.DoSample {
		body.Temperature = param.NewOpt(params.Temperature)
		if params.TopP > 0 {
			body.TopP = param.NewOpt(params.TopP)
		}
	} else {
		body.Temperature = param.NewOpt(0.0)
	}

	var out string
	err := p.breaker.Execute(func() error {
		return resilience.Retry(ctx, resilience.RetryConfig{MaxRetries: p.retries}, func() error {
			resp, err := p.client.Completions.New(ctx, body)
			if err != nil {
				return classify(err)
			}
			if len(resp.Choices) == 0 {
				return resilience.Permanent(errcode.Newf(errcode.Internal, "空的模型回應"))
			}
			out = resp.Choices[0].Text
			return nil
		})
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", errcode.Wrap(errcode.NetworkError, err)
	}
	if err != nil {
		return "", fmt.Errorf("openai: completion: %w", err)
	}
	return out, nil
}

// classify maps SDK failures onto the error taxonomy. Transport-level
// failures become NETWORK_ERROR and stay retryable; API rejections are
// permanent.
func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errcode.Wrap(errcode.NetworkError, err)
	}
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 500 {
			return errcode.Wrap(errcode.NetworkError, err)
		}
		return resilience.Permanent(errcode.Wrap(errcode.Internal, err))
	}
	return errcode.Wrap(errcode.NetworkError, err)
}
