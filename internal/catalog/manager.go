package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lexigate/lexigate/internal/config"
	"github.com/lexigate/lexigate/internal/errcode"
	"github.com/lexigate/lexigate/pkg/provider/inference"
)

// Factory constructs a provider for the given model id. The provider is
// returned unloaded.
type Factory func(modelID string) (inference.Provider, error)

// Manager owns the single active provider slot. Exactly one model serves
// translations at a time; switches swap the slot atomically so no request
// ever observes a half-switched provider.
//
// All methods are safe for concurrent use.
type Manager struct {
	factory   Factory
	modelsDir string
	policy    config.SwitchPolicy
	localOnly bool

	// inFlight reports requests currently admitted by the queue. Switches
	// without force are rejected while it is non-zero.
	inFlight func() int

	mu        sync.Mutex
	active    inference.Provider
	activeID  string
	switching bool
}

// NewManager creates a Manager. inFlight is consulted by [Manager.Switch];
// localOnly enables catalog existence checks (remote backends have no
// models directory).
func NewManager(cfg config.Model, factory Factory, inFlight func() int) *Manager {
	return &Manager{
		factory:   factory,
		modelsDir: cfg.ModelsDir,
		policy:    cfg.Switching.Policy,
		localOnly: cfg.Provider.Type == config.ProviderLocal,
		inFlight:  inFlight,
	}
}

// SetInitial installs the startup provider without loading it. Called once
// during application wiring.
func (m *Manager) SetInitial(p inference.Provider, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = p
	m.activeID = id
}

// Active returns the current provider and its model id. The provider may
// be nil when a switch failed and nothing has been loaded since.
func (m *Manager) Active() (inference.Provider, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.activeID
}

// ActiveID returns the active model id, or "" when no provider is active.
func (m *Manager) ActiveID() string {
	_, id := m.Active()
	return id
}

// Switching reports whether a model switch is in progress.
func (m *Manager) Switching() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.switching
}

// Progress returns the load progress of the active provider.
func (m *Manager) Progress() inference.LoadProgress {
	p, _ := m.Active()
	if p == nil {
		return inference.LoadProgress{State: inference.StateNotLoaded}
	}
	return p.Progress()
}

// Exists reports whether id is present in the local catalog. Always true
// for remote backends, which have no catalog to consult.
func (m *Manager) Exists(id string) bool {
	if !m.localOnly {
		return true
	}
	for _, mdl := range Scan(m.modelsDir) {
		if mdl.ID == id {
			return true
		}
	}
	return false
}

// Switch replaces the active model with id. Without force the switch is
// rejected while requests are in flight. On failure the slot is left empty
// so callers see MODEL_NOT_LOADED rather than a stale model.
func (m *Manager) Switch(ctx context.Context, id string, force bool) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if !m.Exists(id) {
		return errcode.New(errcode.ModelNotFound)
	}

	m.mu.Lock()
	if m.switching {
		m.mu.Unlock()
		return errcode.New(errcode.ModelSwitchInProgress)
	}
	if !force && m.inFlight() > 0 {
		m.mu.Unlock()
		return errcode.New(errcode.ModelSwitchRejected)
	}
	old := m.active
	oldID := m.activeID
	m.switching = true
	m.mu.Unlock()

	err := m.doSwitch(ctx, old, oldID, id)

	m.mu.Lock()
	m.switching = false
	m.mu.Unlock()
	return err
}

func (m *Manager) doSwitch(ctx context.Context, old inference.Provider, oldID, id string) error {
	if old != nil {
		if err := old.Unload(ctx); err != nil {
			slog.Warn("unloading previous model failed", "model", oldID, "error", err)
		}
	}
	// The old provider is gone either way; clear the slot before loading
	// so a failed load leaves no stale model behind.
	m.mu.Lock()
	m.active = nil
	m.activeID = ""
	m.mu.Unlock()

	next, err := m.factory(id)
	if err != nil {
		return errcode.Wrap(errcode.ModelSwitchFailed, fmt.Errorf("constructing provider for %q: %w", id, err))
	}
	if err := next.Load(ctx); err != nil {
		return errcode.Wrap(errcode.ModelSwitchFailed, fmt.Errorf("loading %q: %w", id, err))
	}

	m.mu.Lock()
	m.active = next
	m.activeID = id
	m.mu.Unlock()
	slog.Info("model switch complete", "model", id)
	return nil
}

// Resolve returns the provider that should serve a request for modelID
// (empty means "the active model"). Unknown ids fail with MODEL_NOT_FOUND;
// lazy policy switches on demand; explicit policy rejects mismatches with
// MODEL_SWITCH_REJECTED. A load in progress fails closed with
// MODEL_NOT_LOADED rather than queueing behind the load.
func (m *Manager) Resolve(ctx context.Context, modelID string) (inference.Provider, error) {
	m.mu.Lock()
	if m.switching {
		m.mu.Unlock()
		return nil, errcode.New(errcode.ModelNotLoaded)
	}
	active := m.active
	activeID := m.activeID
	m.mu.Unlock()

	if modelID != "" && modelID != activeID {
		if !m.Exists(modelID) {
			return nil, errcode.New(errcode.ModelNotFound)
		}
		if m.policy == config.SwitchExplicit {
			return nil, errcode.New(errcode.ModelSwitchRejected)
		}
		if err := m.Switch(ctx, modelID, false); err != nil {
			return nil, err
		}
		active, _ = m.Active()
		if active == nil {
			return nil, errcode.New(errcode.ModelNotLoaded)
		}
		return active, nil
	}

	if active == nil {
		return nil, errcode.New(errcode.ModelNotLoaded)
	}
	if !active.Loaded() {
		if active.Progress().State == inference.StateLoading {
			return nil, errcode.New(errcode.ModelNotLoaded)
		}
		if err := active.Load(ctx); err != nil {
			return nil, errcode.Wrap(errcode.ModelNotLoaded, err)
		}
	}
	return active, nil
}

// EnsureLoaded starts loading the active provider in the background if it
// is not loaded yet. It reports whether the model was already loaded.
func (m *Manager) EnsureLoaded(ctx context.Context) (alreadyLoaded bool, err error) {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()

	if active == nil {
		return false, errcode.New(errcode.ModelNotLoaded)
	}
	if active.Loaded() {
		return true, nil
	}
	if active.Progress().State == inference.StateLoading {
		return false, nil
	}
	go func() {
		if err := active.Load(context.WithoutCancel(ctx)); err != nil {
			slog.Error("background model load failed", "model", m.ActiveID(), "error", err)
		}
	}()
	return false, nil
}

// Unload releases the active model but keeps it in the slot so a later
// load or EnsureLoaded can bring it back.
func (m *Manager) Unload(ctx context.Context) error {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if active == nil {
		return nil
	}
	return active.Unload(ctx)
}
