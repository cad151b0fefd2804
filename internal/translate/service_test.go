package translate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/lexigate/lexigate/internal/catalog"
	"github.com/lexigate/lexigate/internal/config"
	"github.com/lexigate/lexigate/internal/errcode"
	"github.com/lexigate/lexigate/internal/language"
	"github.com/lexigate/lexigate/internal/observe"
	"github.com/lexigate/lexigate/internal/prompt"
	"github.com/lexigate/lexigate/internal/queue"
	"github.com/lexigate/lexigate/internal/stats"
	"github.com/lexigate/lexigate/pkg/provider/inference"
	"github.com/lexigate/lexigate/pkg/provider/inference/mock"
)

type serviceParts struct {
	svc    *Service
	window *stats.Window
	queue  *queue.Queue
}

func newTestService(t *testing.T, p inference.Provider, mutate func(*config.Config)) serviceParts {
	t.Helper()
	cfg := config.Default()
	cfg.App.Queue.MaxConcurrent = 2
	cfg.App.Queue.MaxQueueSize = 2
	if mutate != nil {
		mutate(cfg)
	}

	var langs []language.Language
	for _, l := range cfg.Languages.Languages {
		langs = append(langs, language.Language{
			Code: l.Code, Name: l.Name, NameEN: l.NameEN,
			Enabled: l.Enabled, SortOrder: l.SortOrder,
		})
	}
	reg := language.New(langs)
	builder := prompt.NewBuilder(reg, cfg.Model.Prompts)
	q := queue.New(cfg.App.Queue.MaxConcurrent, cfg.App.Queue.MaxQueueSize)
	window := stats.New()
	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatal(err)
	}

	mgr := catalog.NewManager(cfg.Model, nil, q.Pending)
	if p != nil {
		mgr.SetInitial(p, p.Name())
	}
	return serviceParts{
		svc:    NewService(cfg, reg, builder, q, mgr, window, metrics),
		window: window,
		queue:  q,
	}
}

func wantCode(t *testing.T, err error, code errcode.Code) {
	t.Helper()
	var ce *errcode.Error
	if !errors.As(err, &ce) || ce.Code != code {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}

func TestTranslateValidation(t *testing.T) {
	p := &mock.Provider{ModelName: "m", PreLoaded: true, Outputs: []string{"你好"}}
	parts := newTestService(t, p, func(c *config.Config) { c.App.MaxTextLength = 10 })

	t.Run("empty text", func(t *testing.T) {
		_, err := parts.svc.Translate(context.Background(), Request{Text: "   ", TargetLang: "zh-TW"})
		wantCode(t, err, errcode.ValidationEmptyText)
	})
	t.Run("too long", func(t *testing.T) {
		_, err := parts.svc.Translate(context.Background(), Request{
			Text: strings.Repeat("a", 11), SourceLang: "en", TargetLang: "zh-TW",
		})
		wantCode(t, err, errcode.ValidationTextTooLong)
	})
	t.Run("same language", func(t *testing.T) {
		_, err := parts.svc.Translate(context.Background(), Request{
			Text: "hello", SourceLang: "en", TargetLang: "en",
		})
		wantCode(t, err, errcode.ValidationSameLanguage)
	})
	t.Run("unknown target", func(t *testing.T) {
		_, err := parts.svc.Translate(context.Background(), Request{
			Text: "hello", SourceLang: "en", TargetLang: "tlh",
		})
		wantCode(t, err, errcode.ValidationInvalidLanguage)
	})

	if s := parts.window.Snapshot(); s.TotalRequests != 0 {
		t.Errorf("validation failures recorded in stats: %+v", s)
	}
}

func TestTranslateHappyPath(t *testing.T) {
	p := &mock.Provider{ModelName: "opus-en-zh", PreLoaded: true, Outputs: []string{"你好，世界。"}}
	parts := newTestService(t, p, nil)

	res, err := parts.svc.Translate(context.Background(), Request{
		Text: "Hello, world.", SourceLang: "en", TargetLang: "zh-TW",
	})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if res.TranslatedText != "你好，世界。" {
		t.Errorf("TranslatedText = %q", res.TranslatedText)
	}
	if res.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", res.Status, StatusCompleted)
	}
	if res.ModelName != "opus-en-zh" || res.ExecutionMode != inference.ModeCPU {
		t.Errorf("model info = %s/%s", res.ModelName, res.ExecutionMode)
	}
	if res.QueuePosition != 0 {
		t.Errorf("QueuePosition = %d on a completed result, want 0", res.QueuePosition)
	}
	if res.RequestID == "" {
		t.Error("empty RequestID")
	}
	if res.SourceLang != "en" || res.TargetLang != "zh-TW" {
		t.Errorf("languages = %s/%s", res.SourceLang, res.TargetLang)
	}

	s := parts.window.Snapshot()
	if s.TotalRequests != 1 || s.SuccessRequests != 1 {
		t.Errorf("stats = %+v, want one success", s)
	}
	if a, w := parts.queue.Counts(); a != 0 || w != 0 {
		t.Errorf("queue counts after completion = %d/%d, want 0/0", a, w)
	}
}

func TestTranslateAutoDetection(t *testing.T) {
	p := &mock.Provider{ModelName: "m", PreLoaded: true}
	p.GenerateFunc = func(ctx context.Context, pr inference.Prompt, params inference.GenParams) (string, error) {
		if plain, ok := pr.(inference.Plain); ok && strings.Contains(string(plain), "語言偵測器") {
			return "en:0.92", nil
		}
		return "你好世界", nil
	}
	parts := newTestService(t, p, nil)

	res, err := parts.svc.Translate(context.Background(), Request{
		Text: "Hello over there", SourceLang: "auto", TargetLang: "zh-TW",
	})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if res.DetectedLang != "en" || res.Confidence != 0.92 {
		t.Errorf("detection = %s/%v, want en/0.92", res.DetectedLang, res.Confidence)
	}
	if res.SourceLang != "en" {
		t.Errorf("SourceLang = %q, want detected code", res.SourceLang)
	}
}

func TestTranslateAutoDetectsTargetLanguage(t *testing.T) {
	p := &mock.Provider{ModelName: "m", PreLoaded: true, Outputs: []string{"zh-TW:0.9"}}
	parts := newTestService(t, p, nil)

	_, err := parts.svc.Translate(context.Background(), Request{
		Text: "這已經是中文了", SourceLang: "auto", TargetLang: "zh-TW",
	})
	wantCode(t, err, errcode.ValidationSameLanguage)

	if s := parts.window.Snapshot(); s.FailedRequests != 1 {
		t.Errorf("stats = %+v, want one recorded failure", s)
	}
}

func TestTranslateDetectionFallsBackToScript(t *testing.T) {
	p := &mock.Provider{ModelName: "m", PreLoaded: true}
	p.GenerateFunc = func(ctx context.Context, pr inference.Prompt, params inference.GenParams) (string, error) {
		if plain, ok := pr.(inference.Plain); ok && strings.Contains(string(plain), "語言偵測器") {
			return "no idea, sorry", nil
		}
		return "你好世界", nil
	}
	parts := newTestService(t, p, nil)

	res, err := parts.svc.Translate(context.Background(), Request{
		Text: "This is clearly English text", SourceLang: "auto", TargetLang: "zh-TW",
	})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if res.DetectedLang != "en" || res.Confidence != 0.6 {
		t.Errorf("fallback detection = %s/%v, want en/0.6", res.DetectedLang, res.Confidence)
	}
}

func TestTranslateQueueFull(t *testing.T) {
	block := make(chan struct{})
	p := &mock.Provider{ModelName: "m", PreLoaded: true}
	p.GenerateFunc = func(ctx context.Context, pr inference.Prompt, params inference.GenParams) (string, error) {
		<-block
		return "你好", nil
	}
	parts := newTestService(t, p, func(c *config.Config) {
		c.App.Queue.MaxConcurrent = 1
		c.App.Queue.MaxQueueSize = 0
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		parts.svc.Translate(context.Background(), Request{
			Text: "first", SourceLang: "en", TargetLang: "zh-TW",
		})
	}()

	// Wait for the first request to occupy the only slot.
	for {
		if a, _ := parts.queue.Counts(); a == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	_, err := parts.svc.Translate(context.Background(), Request{
		Text: "second", SourceLang: "en", TargetLang: "zh-TW",
	})
	wantCode(t, err, errcode.QueueFull)

	close(block)
	<-done
}

func TestTranslateQueuedReturnsPending(t *testing.T) {
	block := make(chan struct{})
	p := &mock.Provider{ModelName: "m", PreLoaded: true}
	p.GenerateFunc = func(ctx context.Context, pr inference.Prompt, params inference.GenParams) (string, error) {
		<-block
		return "你好", nil
	}
	parts := newTestService(t, p, func(c *config.Config) {
		c.App.Queue.MaxConcurrent = 1
		c.App.Queue.MaxQueueSize = 2
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		parts.svc.Translate(context.Background(), Request{
			Text: "first", SourceLang: "en", TargetLang: "zh-TW",
		})
	}()
	for {
		if a, _ := parts.queue.Counts(); a == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// The second request must come back immediately with a pending result,
	// not wait for the slot.
	res, err := parts.svc.Translate(context.Background(), Request{
		Text: "second", SourceLang: "en", TargetLang: "zh-TW",
	})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if res.Status != StatusPending {
		t.Fatalf("Status = %q, want %q", res.Status, StatusPending)
	}
	if res.QueuePosition != 1 || res.EstimatedWaitSeconds != 3 {
		t.Errorf("pending result = position %d / wait %ds, want 1/3",
			res.QueuePosition, res.EstimatedWaitSeconds)
	}
	if res.TranslatedText != "" || res.RequestID == "" {
		t.Errorf("pending result carries text %q / id %q", res.TranslatedText, res.RequestID)
	}
	if snap, ok := parts.svc.Status(res.RequestID); !ok || snap.Status != queue.StatusQueued {
		t.Errorf("Status(%s) = %+v/%v, want queued", res.RequestID, snap, ok)
	}

	close(block)
	<-done
}

func TestTranslateResolvesModelBeforeAdmission(t *testing.T) {
	block := make(chan struct{})
	p := &mock.Provider{ModelName: "m", PreLoaded: true}
	p.GenerateFunc = func(ctx context.Context, pr inference.Prompt, params inference.GenParams) (string, error) {
		<-block
		return "你好", nil
	}
	parts := newTestService(t, p, func(c *config.Config) {
		c.App.Queue.MaxConcurrent = 1
		c.App.Queue.MaxQueueSize = 0
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		parts.svc.Translate(context.Background(), Request{
			Text: "first", SourceLang: "en", TargetLang: "zh-TW",
		})
	}()
	for {
		if a, _ := parts.queue.Counts(); a == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// With the queue full, a bad model id still reports the model problem,
	// not QUEUE_FULL.
	_, err := parts.svc.Translate(context.Background(), Request{
		Text: "second", SourceLang: "en", TargetLang: "zh-TW", ModelID: "no-such-model",
	})
	wantCode(t, err, errcode.ModelNotFound)

	close(block)
	<-done
}

func TestTranslateRetriesImplausibleOutput(t *testing.T) {
	p := &mock.Provider{
		ModelName: "m", PreLoaded: true,
		Outputs: []string{"sorry, here is some English", "你好世界"},
	}
	parts := newTestService(t, p, nil)

	res, err := parts.svc.Translate(context.Background(), Request{
		Text: "Hello world", SourceLang: "en", TargetLang: "zh-TW",
	})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if res.TranslatedText != "你好世界" {
		t.Errorf("TranslatedText = %q, want retried output", res.TranslatedText)
	}
	if len(p.GenerateCalls) != 2 {
		t.Fatalf("GenerateCalls = %d, want 2", len(p.GenerateCalls))
	}
	retry := p.GenerateCalls[1].Params
	if retry.MaxNewTokens != 64 || retry.NumBeams != 1 || !retry.DoSample || retry.Temperature != 0.5 {
		t.Errorf("retry params = %+v", retry)
	}

	// The retry prompt carries the extra output-only constraints the first
	// prompt does not.
	first, _ := p.GenerateCalls[0].Prompt.(inference.Plain)
	second, _ := p.GenerateCalls[1].Prompt.(inference.Plain)
	if strings.Contains(string(first), "只輸出一行譯文") {
		t.Errorf("first prompt already constrained: %q", first)
	}
	if !strings.Contains(string(second), "只輸出一行譯文") {
		t.Errorf("retry prompt = %q, want output-only constraints", second)
	}
}

func TestTranslateKeepsOriginalWhenRetryImplausible(t *testing.T) {
	p := &mock.Provider{
		ModelName: "m", PreLoaded: true,
		Outputs: []string{"first english answer", "second english answer"},
	}
	parts := newTestService(t, p, nil)

	res, err := parts.svc.Translate(context.Background(), Request{
		Text: "Hello world", SourceLang: "en", TargetLang: "zh-TW",
	})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if res.TranslatedText != "first english answer" {
		t.Errorf("TranslatedText = %q, want original output kept", res.TranslatedText)
	}
}

func TestTranslateSingleLineRule(t *testing.T) {
	p := &mock.Provider{ModelName: "m", PreLoaded: true, Outputs: []string{"你好世界\n\n補充說明文字"}}
	parts := newTestService(t, p, nil)

	res, err := parts.svc.Translate(context.Background(), Request{
		Text: "single line input", SourceLang: "en", TargetLang: "zh-TW",
	})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if res.TranslatedText != "你好世界" {
		t.Errorf("TranslatedText = %q, want first line only", res.TranslatedText)
	}
}

func TestTranslateTimeoutMapsToTaxonomy(t *testing.T) {
	p := &mock.Provider{ModelName: "m", PreLoaded: true, GenerateErr: context.DeadlineExceeded}
	parts := newTestService(t, p, nil)

	_, err := parts.svc.Translate(context.Background(), Request{
		Text: "hello", SourceLang: "en", TargetLang: "zh-TW",
	})
	wantCode(t, err, errcode.TranslationTimeout)
}

func TestTranslateNoModelLoaded(t *testing.T) {
	parts := newTestService(t, nil, nil)
	_, err := parts.svc.Translate(context.Background(), Request{
		Text: "hello", SourceLang: "en", TargetLang: "zh-TW",
	})
	wantCode(t, err, errcode.ModelNotLoaded)
}

func TestTestTranslateBypassesQueue(t *testing.T) {
	p := &mock.Provider{ModelName: "m", PreLoaded: true, Outputs: []string{"你好世界"}}
	parts := newTestService(t, p, func(c *config.Config) {
		c.App.Queue.MaxConcurrent = 0
	})

	res, err := parts.svc.TestTranslate(context.Background(), "", "", "")
	if err != nil {
		t.Fatalf("TestTranslate error: %v", err)
	}
	if res.TranslatedText != "你好世界" {
		t.Errorf("TranslatedText = %q", res.TranslatedText)
	}
	if len(p.GenerateCalls) != 1 {
		t.Fatalf("GenerateCalls = %d, want 1", len(p.GenerateCalls))
	}
	// The smoke test uses the fast quality level.
	if got := p.GenerateCalls[0].Params.MaxNewTokens; got != 128 {
		t.Errorf("MaxNewTokens = %d, want 128", got)
	}
}

func TestStatusUnknownID(t *testing.T) {
	parts := newTestService(t, nil, nil)
	if _, ok := parts.svc.Status("missing"); ok {
		t.Error("Status for unknown id reported found")
	}
}
