package host

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/bbernstein/mirusuite-bridge/internal/database/repositories"
	"github.com/bbernstein/mirusuite-bridge/internal/miru"
	"github.com/bbernstein/mirusuite-bridge/internal/services/autolearn"
	"github.com/bbernstein/mirusuite-bridge/internal/services/catalog"
	"github.com/bbernstein/mirusuite-bridge/internal/services/events"
	"github.com/bbernstein/mirusuite-bridge/internal/services/preview"
	"github.com/bbernstein/mirusuite-bridge/internal/services/pubsub"
	"github.com/bbernstein/mirusuite-bridge/internal/services/status"
)

var (
	// ErrUnknownAction is returned for an action id that is not registered.
	ErrUnknownAction = errors.New("unknown action")
	// ErrUnknownFeedback is returned for a feedback id that is not registered.
	ErrUnknownFeedback = errors.New("unknown feedback")
	// ErrHandlerPanic is returned when a handler panicked.
	ErrHandlerPanic = errors.New("handler panicked")
)

// Backend is the MiruSuite API used by the instance.
type Backend interface {
	catalog.Source
	FaceImage(ctx context.Context, faceID int) ([]byte, error)
	SetDirector(ctx context.Context, device *miru.Device, enabled *bool) error
	SetShotSize(ctx context.Context, device *miru.Device, size miru.ShotSize) error
	SetTrackingMode(ctx context.Context, device *miru.Device, mode miru.TrackingMode, faceID int) error
	LearnTargetFace(ctx context.Context, device *miru.Device) error
	PlayPreset(ctx context.Context, presetID int) error
	OverwritePreset(ctx context.Context, presetID int) error
	ReapplyActivePreset(ctx context.Context, deviceID int) error
	TriggerRandomMove(ctx context.Context, deviceID int) error
	TriggerPresetMove(ctx context.Context, deviceID int) error
	StopAutoMove(ctx context.Context, deviceID int) error
	ReturnToHome(ctx context.Context, deviceID int) error
	ExitSteadyMode(ctx context.Context, deviceID int) error
	SetAutoCut(ctx context.Context, running bool) error
	CutTo(ctx context.Context, input string) error
}

// Config is the connection configuration edited in the host.
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

// BackendFactory creates a backend for a configuration.
type BackendFactory func(cfg Config, tracker *status.Tracker) Backend

// NewMiruBackend is the BackendFactory for a real MiruSuite server.
func NewMiruBackend(timeout time.Duration) BackendFactory {
	return func(cfg Config, tracker *status.Tracker) Backend {
		return miru.NewClient(miru.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  timeout,
		}, tracker)
	}
}

// EventsConfig enables the event stream listener.
type EventsConfig struct {
	Path           string
	ReconnectDelay time.Duration
}

// Deps are the collaborators of an instance.
type Deps struct {
	Banks      *repositories.BankRepository
	Variables  *repositories.VariableRepository
	Tracker    *status.Tracker
	PubSub     *pubsub.PubSub
	NewBackend BackendFactory
	Events     *EventsConfig // nil disables the event listener
	LogoPath   string
}

// Instance is one configured connection to a MiruSuite server.
type Instance struct {
	// mu serializes host events, event stream updates and lifecycle calls.
	mu sync.Mutex

	cfg        Config
	newBackend BackendFactory
	backendMu  sync.RWMutex
	backend    Backend

	tracker   *status.Tracker
	bus       *pubsub.PubSub
	catalog   *catalog.Store
	bindings  *autolearn.Bindings
	resolver  *autolearn.Resolver
	learner   *autolearn.Controller
	variables *repositories.VariableRepository
	previews  *preview.Service

	eventsCfg    *EventsConfig
	eventsCancel context.CancelFunc

	defsMu    sync.RWMutex
	actions   map[string]ActionDefinition
	feedbacks map[string]FeedbackDefinition
	presets   []ButtonPreset

	unsubscribeStatus func()
}

// NewInstance creates an instance. Init must be called before use.
func NewInstance(deps Deps) *Instance {
	tracker := deps.Tracker
	if tracker == nil {
		tracker = status.NewTracker()
	}
	bus := deps.PubSub
	if bus == nil {
		bus = pubsub.New()
	}
	newBackend := deps.NewBackend
	if newBackend == nil {
		newBackend = NewMiruBackend(0)
	}

	i := &Instance{
		newBackend: newBackend,
		tracker:    tracker,
		bus:        bus,
		catalog:    catalog.NewStore(nil),
		bindings:   autolearn.NewBindings(deps.Banks),
		variables:  deps.Variables,
		eventsCfg:  deps.Events,
		actions:    make(map[string]ActionDefinition),
		feedbacks:  make(map[string]FeedbackDefinition),
	}
	i.resolver = autolearn.NewResolver(i.bindings, i.catalog)
	i.learner = autolearn.NewController(i.bindings)
	i.learner.OnChange(i.onLearningChange)
	i.previews = preview.NewService(faceSource{i})
	if err := i.previews.LoadLogo(deps.LogoPath); err != nil {
		log.Printf("Warning: %v", err)
	}
	i.unsubscribeStatus = tracker.Subscribe(func(s status.Snapshot) {
		bus.PublishAll(pubsub.TopicStatus, StatusMessage{Type: "status", Status: s})
	})
	return i
}

// faceSource reads face images from whichever backend is current.
type faceSource struct{ i *Instance }

func (f faceSource) FaceImage(ctx context.Context, faceID int) ([]byte, error) {
	b := f.i.currentBackend()
	if b == nil {
		return nil, miru.ErrNotInitialized
	}
	return b.FaceImage(ctx, faceID)
}

func (i *Instance) currentBackend() Backend {
	i.backendMu.RLock()
	defer i.backendMu.RUnlock()
	return i.backend
}

// Log writes a host log line.
func (i *Instance) Log(level, format string, args ...any) {
	log.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}

// Catalog returns the catalog store.
func (i *Instance) Catalog() *catalog.Store {
	return i.catalog
}

// Learner returns the learning mode controller.
func (i *Instance) Learner() *autolearn.Controller {
	return i.learner
}

// Resolver returns the preset resolver.
func (i *Instance) Resolver() *autolearn.Resolver {
	return i.resolver
}

// Tracker returns the connection status tracker.
func (i *Instance) Tracker() *status.Tracker {
	return i.tracker
}

// PubSub returns the bus carrying feedback, variable and status updates.
func (i *Instance) PubSub() *pubsub.PubSub {
	return i.bus
}

// Config returns the current connection configuration.
func (i *Instance) Config() Config {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cfg
}

// Init connects to the server described by cfg and loads the catalog. A
// failed load leaves the instance running in offline mode.
func (i *Instance) Init(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.init(ctx, cfg)
	return nil
}

func (i *Instance) init(ctx context.Context, cfg Config) {
	i.Log("debug", "Initializing")
	i.stopEvents()

	i.cfg = cfg
	backend := i.newBackend(cfg, i.tracker)
	i.backendMu.Lock()
	i.backend = backend
	i.backendMu.Unlock()
	i.catalog.SetSource(backend)
	i.previews.Invalidate()

	i.updateConfiguration(ctx)
	i.startEvents()
}

// ConfigUpdated applies an edited configuration. The instance reconnects
// only when connection settings changed.
func (i *Instance) ConfigUpdated(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Log("debug", "Config updated")
	if cfg == i.cfg && i.currentBackend() != nil {
		return nil
	}
	i.init(ctx, cfg)
	return nil
}

// UpdateConfiguration reloads the catalog, resets learning mode and
// re-registers every definition.
func (i *Instance) UpdateConfiguration(ctx context.Context) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.updateConfiguration(ctx)
}

func (i *Instance) updateConfiguration(ctx context.Context) {
	i.Log("debug", "Updating configuration with host %s and port %d", i.cfg.Host, i.cfg.Port)
	offline := false
	if err := i.catalog.Refresh(ctx); err != nil {
		i.Log("error", "Error fetching available fields - %v", err)
		offline = true
		i.Log("warn", "Running in offline mode")
		i.tracker.Set(status.StatusConnectionFailure, err.Error())
	} else {
		i.tracker.Set(status.StatusOK, "")
	}
	i.tracker.SetOffline(offline)

	i.SetVariableValues(ctx, map[string]string{
		VariableOfflineMode: fmt.Sprint(offline),
	})
	// Reset notifies the learning mode listener, which publishes the
	// learningMode variable.
	i.learner.Reset()
	i.updateAutoConfiguredButtons(ctx)

	i.rebuildDefinitions()
	i.CheckFeedbacks(allFeedbacks...)
}

// Destroy stops the event listener and releases subscriptions.
func (i *Instance) Destroy() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Log("debug", "Destroying module")
	i.stopEvents()
	if i.unsubscribeStatus != nil {
		i.unsubscribeStatus()
		i.unsubscribeStatus = nil
	}
}

func (i *Instance) startEvents() {
	if i.eventsCfg == nil {
		return
	}
	dispatcher := events.NewDispatcher(i.catalog, i.onCatalogRefresh)
	listener := events.NewListener(events.Config{
		Host:           i.cfg.Host,
		Port:           i.cfg.Port,
		Path:           i.eventsCfg.Path,
		Username:       i.cfg.Username,
		Password:       i.cfg.Password,
		ReconnectDelay: i.eventsCfg.ReconnectDelay,
	}, func(ctx context.Context, ev events.Event) {
		i.HandleEvent(ctx, dispatcher, ev)
	})

	ctx, cancel := context.WithCancel(context.Background())
	i.eventsCancel = cancel
	go listener.Run(ctx)
}

func (i *Instance) stopEvents() {
	if i.eventsCancel == nil {
		return
	}
	i.eventsCancel()
	i.eventsCancel = nil
}

// HandleEvent applies one event stream update.
func (i *Instance) HandleEvent(ctx context.Context, d *events.Dispatcher, ev events.Event) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := d.Handle(ctx, ev); err != nil {
		i.Log("warn", "%v", err)
	}
}

// onCatalogRefresh rechecks the feedbacks that depend on refreshed data.
func (i *Instance) onCatalogRefresh(kind events.Kind) {
	switch kind {
	case events.KindDevices:
		i.rebuildDefinitions()
		i.CheckFeedbacks(FeedbackEnabledDirector, FeedbackDirectorStatus, FeedbackTrackingMode,
			FeedbackShotSize, FeedbackLiveDevice, FeedbackAutoPreset)
	case events.KindPresets:
		i.rebuildDefinitions()
		i.updateAutoConfiguredButtons(context.Background())
		i.CheckFeedbacks(FeedbackActivePreset, FeedbackAutoPreset, FeedbackLearnMode)
	case events.KindLiveInputs:
		i.CheckFeedbacks(FeedbackLiveDevice, FeedbackLiveInput, FeedbackAutoPreset)
	case events.KindAutoCut:
		i.CheckFeedbacks(FeedbackAutoCut)
	}
}

func (i *Instance) onLearningChange(mode string) {
	ctx := context.Background()
	i.SetVariableValues(ctx, map[string]string{VariableLearningMode: mode})
	i.updateAutoConfiguredButtons(ctx)
	i.CheckFeedbacks(FeedbackLearnMode, FeedbackAutoPreset)
}

// CheckFeedbacks asks the host to re-render every button using the given
// feedbacks.
func (i *Instance) CheckFeedbacks(ids ...string) {
	if len(ids) == 0 {
		return
	}
	i.bus.PublishAll(pubsub.TopicCheckFeedbacks, CheckFeedbacksMessage{Type: "checkFeedbacks", Feedbacks: ids})
}

// guard runs fn and converts a panic into an error.
func guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Error: %s panicked: %v", name, r)
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, name, r)
		}
	}()
	return fn()
}

// RunAction runs an action for a button press. Handler errors are logged
// and returned; they never propagate as panics.
func (i *Instance) RunAction(ctx context.Context, actionID string, ev ActionEvent) error {
	i.defsMu.RLock()
	def, ok := i.actions[actionID]
	i.defsMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, actionID)
	}
	if ev.Options == nil {
		ev.Options = Options{}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	err := guard("action "+actionID, func() error {
		return def.Callback(ctx, ev)
	})
	if err != nil {
		i.Log("error", "Action %s failed: %v", actionID, err)
	}
	return err
}

// RunFeedback renders a feedback for a button.
func (i *Instance) RunFeedback(ctx context.Context, feedbackID string, ev FeedbackEvent) (FeedbackResult, error) {
	i.defsMu.RLock()
	def, ok := i.feedbacks[feedbackID]
	i.defsMu.RUnlock()
	if !ok {
		return FeedbackResult{}, fmt.Errorf("%w: %s", ErrUnknownFeedback, feedbackID)
	}
	if ev.Options == nil {
		ev.Options = Options{}
	}

	var result FeedbackResult
	err := guard("feedback "+feedbackID, func() error {
		var err error
		result, err = def.Callback(ctx, ev)
		return err
	})
	if err != nil {
		i.Log("error", "Feedback %s failed: %v", feedbackID, err)
		return FeedbackResult{}, err
	}
	return result, nil
}

func (i *Instance) rebuildDefinitions() {
	actions := make(map[string]ActionDefinition)
	for _, def := range i.actionDefinitions() {
		actions[def.ID] = def
	}
	feedbacks := make(map[string]FeedbackDefinition)
	for _, def := range i.feedbackDefinitions() {
		feedbacks[def.ID] = def
	}
	presets := i.buttonPresets()

	i.defsMu.Lock()
	i.actions = actions
	i.feedbacks = feedbacks
	i.presets = presets
	i.defsMu.Unlock()

	i.bus.PublishAll(pubsub.TopicDefinitions, DefinitionsMessage{Type: "definitions"})
}

// Actions returns the registered action definitions.
func (i *Instance) Actions() []ActionDefinition {
	i.defsMu.RLock()
	defer i.defsMu.RUnlock()
	return sortedValues(i.actions)
}

// Feedbacks returns the registered feedback definitions.
func (i *Instance) Feedbacks() []FeedbackDefinition {
	i.defsMu.RLock()
	defer i.defsMu.RUnlock()
	return sortedValues(i.feedbacks)
}

// Presets returns the registered button presets.
func (i *Instance) Presets() []ButtonPreset {
	i.defsMu.RLock()
	defer i.defsMu.RUnlock()
	out := make([]ButtonPreset, len(i.presets))
	copy(out, i.presets)
	return out
}

func sortedValues[T any](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[k])
	}
	return out
}

// CheckFeedbacksMessage asks clients to re-render feedbacks.
type CheckFeedbacksMessage struct {
	Type      string   `json:"type"`
	Feedbacks []string `json:"feedbacks"`
}

// VariablesMessage carries changed variable values.
type VariablesMessage struct {
	Type   string            `json:"type"`
	Values map[string]string `json:"values"`
}

// StatusMessage carries a connection status change.
type StatusMessage struct {
	Type   string          `json:"type"`
	Status status.Snapshot `json:"status"`
}

// DefinitionsMessage tells clients to reload definitions.
type DefinitionsMessage struct {
	Type string `json:"type"`
}
