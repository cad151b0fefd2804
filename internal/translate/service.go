// Package translate implements the translation pipeline: validation,
// admission, language detection, prompt construction, generation, and
// output post-processing.
package translate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexigate/lexigate/internal/catalog"
	"github.com/lexigate/lexigate/internal/config"
	"github.com/lexigate/lexigate/internal/errcode"
	"github.com/lexigate/lexigate/internal/language"
	"github.com/lexigate/lexigate/internal/observe"
	"github.com/lexigate/lexigate/internal/prompt"
	"github.com/lexigate/lexigate/internal/queue"
	"github.com/lexigate/lexigate/internal/stats"
	"github.com/lexigate/lexigate/pkg/provider/inference"
)

// Request is one translation job.
type Request struct {
	// Text is the source text.
	Text string

	// SourceLang is a language code or "auto". Empty uses the configured
	// default.
	SourceLang string

	// TargetLang is a concrete language code. Empty uses the configured
	// default.
	TargetLang string

	// ModelID optionally names a model other than the active one.
	ModelID string

	// Quality selects a generation parameter level (fast, standard, high).
	// Empty means standard.
	Quality string
}

// Result statuses. A completed result carries the translation; a pending
// result carries the queue position and the client polls the status
// endpoint.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
)

// Result is the outcome of one translation request.
type Result struct {
	RequestID      string  `json:"request_id"`
	Status         string  `json:"status"`
	TranslatedText string  `json:"translated_text,omitempty"`
	SourceLang     string  `json:"source_language,omitempty"`
	DetectedLang   string  `json:"detected_language,omitempty"`
	Confidence     float64 `json:"confidence_score,omitempty"`
	TargetLang     string  `json:"target_language,omitempty"`
	ProcessingMS   float64 `json:"processing_time_ms,omitempty"`
	ModelName      string  `json:"model_name,omitempty"`
	ExecutionMode  string  `json:"execution_mode,omitempty"`

	// Pending-only fields.
	QueuePosition        int `json:"queue_position,omitempty"`
	EstimatedWaitSeconds int `json:"estimated_wait_seconds,omitempty"`
}

// retryParams are the conservative overrides used for the single implausible
// output retry.
var retryParams = inference.GenParams{
	MinNewTokens:      5,
	MaxNewTokens:      64,
	NumBeams:          1,
	DoSample:          true,
	Temperature:       0.5,
	TopP:              0.9,
	RepetitionPenalty: 1.1,
}

// Service runs the translation pipeline. All methods are safe for
// concurrent use.
type Service struct {
	cfg      *config.Config
	registry *language.Registry
	builder  *prompt.Builder
	queue    *queue.Queue
	manager  *catalog.Manager
	window   *stats.Window
	metrics  *observe.Metrics
}

// NewService wires the pipeline.
func NewService(cfg *config.Config, registry *language.Registry, builder *prompt.Builder,
	q *queue.Queue, manager *catalog.Manager, window *stats.Window, metrics *observe.Metrics) *Service {
	return &Service{
		cfg:      cfg,
		registry: registry,
		builder:  builder,
		queue:    q,
		manager:  manager,
		window:   window,
		metrics:  metrics,
	}
}

// Queue exposes the admission queue for status lookups and health checks.
func (s *Service) Queue() *queue.Queue { return s.queue }

// Translate runs one request through the full pipeline. Validation and
// model resolution happen before admission; admission never blocks. A
// request that lands on the wait list gets a pending result immediately and
// the caller polls the status endpoint. Once a slot is acquired the outcome
// is recorded in the statistics window and the slot is released on every
// path.
func (s *Service) Translate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "translate")
	defer span.End()

	id := uuid.NewString()

	text := req.Text
	if strings.TrimSpace(text) == "" {
		return nil, errcode.New(errcode.ValidationEmptyText)
	}
	if len([]rune(text)) > s.cfg.App.MaxTextLength {
		return nil, errcode.New(errcode.ValidationTextTooLong)
	}

	source := req.SourceLang
	if source == "" {
		source = s.cfg.Languages.Defaults.SourceLanguage
	}
	target := req.TargetLang
	if target == "" {
		target = s.cfg.Languages.Defaults.TargetLanguage
	}
	if err := s.registry.ValidatePair(source, target); err != nil {
		return nil, err
	}

	provider, err := s.manager.Resolve(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}

	ticket, err := s.queue.Acquire(id)
	if err != nil {
		return nil, err
	}
	if ticket.Status == queue.StatusQueued {
		return &Result{
			RequestID:            id,
			Status:               StatusPending,
			QueuePosition:        ticket.Position,
			EstimatedWaitSeconds: int(ticket.EstimatedWait.Seconds()),
		}, nil
	}

	start := time.Now()
	res, err := s.run(ctx, provider, id, source, target, text, req)

	elapsed := time.Since(start)
	s.queue.Release(id)
	status := "success"
	if err != nil {
		status = "failure"
	}
	s.window.Record(err == nil, elapsed)
	s.metrics.RecordTranslation(ctx, status, target, elapsed)

	if err != nil {
		return nil, err
	}
	res.ProcessingMS = float64(elapsed.Milliseconds())
	return res, nil
}

// run executes the model-facing part of the pipeline while the request
// holds a processing slot.
func (s *Service) run(ctx context.Context, provider inference.Provider, id, source, target, text string, req Request) (*Result, error) {
	res := &Result{
		RequestID:     id,
		Status:        StatusCompleted,
		SourceLang:    source,
		TargetLang:    target,
		ModelName:     provider.Name(),
		ExecutionMode: provider.Mode(),
	}

	if source == language.Auto {
		det := s.detect(ctx, provider, text)
		if det.Code == target {
			return nil, errcode.New(errcode.ValidationSameLanguage)
		}
		source = det.Code
		res.SourceLang = det.Code
		res.DetectedLang = det.Code
		res.Confidence = det.Confidence
	}

	params := s.params(req.Quality)
	p := s.builder.Build(prompt.Request{SourceLang: source, TargetLang: target, Text: text})

	raw, err := s.generate(ctx, provider, p, params)
	if err != nil {
		return nil, err
	}
	out := cleanOutput(raw)

	if !plausible(out, target) {
		observe.Logger(ctx).Debug("implausible output, retrying once",
			"request_id", id, "target", target, "output_len", len(out))
		if retried := s.retryOnce(ctx, provider, source, target, text); retried != "" && plausible(retried, target) {
			out = retried
		}
	}
	out = bestLine(out, target)
	if !strings.Contains(text, "\n") {
		out = firstNonEmptyLine(out)
	}

	res.TranslatedText = out
	return res, nil
}

// retryOnce reruns generation with the force-output-only prompt variant and
// conservative parameters. The retry is kept only when it passes the
// plausibility check; it reuses the slot the request already holds.
func (s *Service) retryOnce(ctx context.Context, provider inference.Provider, source, target, text string) string {
	p := s.builder.Build(prompt.Request{
		SourceLang:      source,
		TargetLang:      target,
		Text:            text,
		ForceOutputOnly: true,
	})
	raw, err := s.generate(ctx, provider, p, retryParams)
	if err != nil {
		return ""
	}
	return cleanOutput(raw)
}

// generate calls the provider under the translation timeout and maps
// timeout and transport failures onto the error taxonomy.
func (s *Service) generate(ctx context.Context, provider inference.Provider, p inference.Prompt, params inference.GenParams) (string, error) {
	ctx, span := observe.StartSpan(ctx, "generate")
	defer span.End()

	timeout := time.Duration(s.cfg.App.Translation.TimeoutSeconds) * time.Second
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := provider.Generate(genCtx, p, params)
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, provider.Name(), "error")
		if errors.Is(err, context.DeadlineExceeded) {
			return "", errcode.Wrap(errcode.TranslationTimeout, err)
		}
		var ce *errcode.Error
		if errors.As(err, &ce) {
			return "", err
		}
		return "", errcode.Wrap(errcode.Internal, err)
	}
	s.metrics.RecordProviderRequest(ctx, provider.Name(), "success")
	return out, nil
}

// detect asks the model for the source language and falls back to script
// detection when the answer is unusable.
func (s *Service) detect(ctx context.Context, provider inference.Provider, text string) language.Detection {
	p := s.builder.BuildDetect(text)
	raw, err := s.generate(ctx, provider, p, inference.GenParams{
		MaxNewTokens: detectGenLimit,
		Temperature:  0.1,
		TopP:         0.9,
	})
	if err == nil {
		if det, ok := parseDetection(raw, s.registry); ok {
			return det
		}
	} else {
		slog.Debug("model language detection failed; falling back to script detection", "error", err)
	}
	return language.DetectByScript(text)
}

// params resolves a quality level name to generation parameters.
func (s *Service) params(quality string) inference.GenParams {
	if quality == "" {
		quality = "standard"
	}
	q, ok := s.cfg.Model.Quality[quality]
	if !ok {
		q = s.cfg.Model.Quality["standard"]
	}
	return inference.GenParams{
		Temperature:       q.Temperature,
		TopP:              q.TopP,
		NumBeams:          q.NumBeams,
		DoSample:          q.DoSample,
		MaxNewTokens:      q.MaxNewTokens,
		MinNewTokens:      q.MinNewTokens,
		RepetitionPenalty: q.RepetitionPenalty,
		EarlyStopping:     q.EarlyStopping,
	}
}

// Status returns the public queue view for a request id.
func (s *Service) Status(id string) (queue.Snapshot, bool) {
	return s.queue.Lookup(id)
}

// TestTranslate runs a one-shot smoke translation through the active
// provider, bypassing the queue. Used by the admin model test endpoint.
func (s *Service) TestTranslate(ctx context.Context, text, source, target string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		text = "Hello, world."
	}
	if source == "" {
		source = "en"
	}
	if target == "" {
		target = s.cfg.Languages.Defaults.TargetLanguage
	}
	provider, err := s.manager.Resolve(ctx, "")
	if err != nil {
		return nil, err
	}
	start := time.Now()
	p := s.builder.Build(prompt.Request{SourceLang: source, TargetLang: target, Text: text})
	raw, err := s.generate(ctx, provider, p, s.params("fast"))
	if err != nil {
		return nil, err
	}
	return &Result{
		RequestID:      uuid.NewString(),
		Status:         StatusCompleted,
		TranslatedText: cleanOutput(raw),
		SourceLang:     source,
		TargetLang:     target,
		ProcessingMS:   float64(time.Since(start).Milliseconds()),
		ModelName:      provider.Name(),
		ExecutionMode:  provider.Mode(),
	}, nil
}
