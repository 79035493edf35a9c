// Package app wires the control loop together: camera frames go through the
// hand detector and arbiter into the gesture engine, and confirmed targets
// are recorded and handed to the action dispatcher.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/handcontrol/internal/arbiter"
	"github.com/ayusman/handcontrol/internal/capture"
	"github.com/ayusman/handcontrol/internal/detector"
	"github.com/ayusman/handcontrol/internal/gesture"
	"github.com/ayusman/handcontrol/internal/plugin"
	"github.com/ayusman/handcontrol/internal/store"
)

// Loop timing defaults.
const (
	DefaultTickInterval = 33 * time.Millisecond
	DefaultIdleInterval = 200 * time.Millisecond

	DefaultHold       = 200 * time.Millisecond
	DefaultPressDepth = 50.0
)

// Config holds the collaborators and settings the App runs with.
type Config struct {
	Engine gesture.Config
	// Clock stamps every tick. Defaults to gesture.SystemClock.
	Clock gesture.Clock

	Camera   capture.Camera
	Detector detector.Detector
	// Motion gates the loop to IdleInterval while no hand is tracked.
	// Nil disables gating.
	Motion *capture.MotionDetector
	Store  *store.Store

	// Run performs confirmed-target actions off the tick goroutine.
	Run       plugin.RunFunc
	QueueSize int

	MinConfidence float64
	// Width and Height are the screen the palm is projected onto.
	Width, Height float64

	TickInterval time.Duration
	IdleInterval time.Duration

	// DefaultHold and DefaultPressDepth fill in targets stored without them.
	DefaultHold       time.Duration
	DefaultPressDepth float64
}

// Status is a read-only view of the running controller.
type Status struct {
	gesture.Snapshot
	Hand           arbiter.Hand `json:"hand"`
	Frozen         bool         `json:"frozen"`
	Enabled        bool         `json:"enabled"`
	Active         bool         `json:"active"`
	LastTarget     string       `json:"last_target,omitempty"`
	LastAt         *time.Time   `json:"last_at,omitempty"`
	PendingActions int          `json:"pending_actions"`
}

// Notice is an engine event with the target's display name attached.
type Notice struct {
	gesture.Event
	TargetName string       `json:"target_name,omitempty"`
	Hand       arbiter.Hand `json:"hand"`
}

// App is the controller. The engine and arbiter are only touched with mu
// held; notices are published after mu is released.
type App struct {
	cfg        Config
	clock      gesture.Clock
	dispatcher *plugin.Dispatcher
	noisy      zerolog.Logger

	mu      sync.Mutex
	engine  *gesture.Engine
	arbiter *arbiter.Arbiter
	layout  map[string]*store.Target
	pending []Notice
	hand    arbiter.Hand
	frozen  bool
	active  bool
	last    string
	lastAt  time.Time

	enabled atomic.Bool

	subsMu sync.RWMutex
	subs   []func(Notice)

	runMu  sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

// New builds the App, seeds the default layout on first run, and loads
// the stored targets and enabled flag.
func New(cfg Config) (*App, error) {
	if cfg.Camera == nil || cfg.Detector == nil || cfg.Store == nil {
		return nil, errors.New("app needs a camera, a detector and a store")
	}
	if cfg.Run == nil {
		return nil, errors.New("app needs an action runner")
	}
	if cfg.Clock == nil {
		cfg.Clock = gesture.SystemClock{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.IdleInterval < cfg.TickInterval {
		cfg.IdleInterval = max(DefaultIdleInterval, cfg.TickInterval)
	}
	if cfg.DefaultHold <= 0 {
		cfg.DefaultHold = DefaultHold
	}
	if cfg.DefaultPressDepth <= 0 {
		cfg.DefaultPressDepth = DefaultPressDepth
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		w, h := cfg.Camera.Size()
		cfg.Width, cfg.Height = float64(w), float64(h)
	}

	engine, err := gesture.NewEngine(cfg.Engine, gesture.WithClock(cfg.Clock))
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		clock:   cfg.Clock,
		engine:  engine,
		arbiter: arbiter.New(cfg.MinConfidence),
		layout:  make(map[string]*store.Target),
		noisy:   log.Sample(&zerolog.BurstSampler{Burst: 1, Period: 5 * time.Second}),
	}

	engine.Subscribe(a.onEngineEvent)
	engine.OnEngagementStart(func() { a.frozen = true })
	engine.OnEngagementEnd(func() { a.frozen = false })

	a.dispatcher, err = plugin.NewDispatcher(cfg.Run, cfg.QueueSize, a.actionDone)
	if err != nil {
		return nil, err
	}

	if err := SeedDefaults(cfg.Store, cfg.DefaultHold); err != nil {
		return nil, fmt.Errorf("seed layout: %w", err)
	}
	if err := a.ReloadLayout(); err != nil {
		return nil, err
	}

	enabled, err := cfg.Store.Settings().GetBool(store.SettingEnabled, true)
	if err != nil {
		return nil, fmt.Errorf("load enabled flag: %w", err)
	}
	a.enabled.Store(enabled)

	return a, nil
}

// Subscribe registers fn for every notice. fn runs on the tick goroutine
// and must not block.
func (a *App) Subscribe(fn func(Notice)) {
	if fn == nil {
		return
	}
	a.subsMu.Lock()
	defer a.subsMu.Unlock()
	a.subs = append(a.subs, fn)
}

// SetEnabled turns the controller on or off and persists the choice.
// Disabling drops any engagement in progress.
func (a *App) SetEnabled(enabled bool) {
	if a.enabled.Swap(enabled) == enabled {
		return
	}
	if err := a.cfg.Store.Settings().SetBool(store.SettingEnabled, enabled); err != nil {
		log.Error().Err(err).Msg("failed to persist enabled flag")
	}

	if !enabled {
		if a.cfg.Motion != nil {
			a.cfg.Motion.Reset()
		}
		a.mu.Lock()
		a.arbiter.Reset()
		a.hand = arbiter.None
		a.engine.HandLost()
		notices := a.takePending()
		a.mu.Unlock()
		a.publish(notices)
	}

	log.Info().Bool("enabled", enabled).Msg("hand control toggled")
}

// IsEnabled reports whether the control loop processes frames.
func (a *App) IsEnabled() bool {
	return a.enabled.Load()
}

// Status copies the controller state.
func (a *App) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := Status{
		Snapshot:       a.engine.Snapshot(),
		Hand:           a.hand,
		Frozen:         a.frozen,
		Enabled:        a.IsEnabled(),
		Active:         a.active,
		LastTarget:     a.last,
		PendingActions: a.dispatcher.Pending(),
	}
	if !a.lastAt.IsZero() {
		at := a.lastAt
		st.LastAt = &at
	}
	return st
}

// Start opens the camera and runs the control loop in the background.
func (a *App) Start() error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if err := a.cfg.Camera.Open(); err != nil {
		return err
	}
	a.cfg.Camera.SetFPS(int(time.Second / a.cfg.TickInterval))

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.run(a.stopCh, a.done)

	log.Info().
		Dur("tick", a.cfg.TickInterval).
		Dur("idle", a.cfg.IdleInterval).
		Msg("control loop started")
	return nil
}

// Stop ends the control loop, drains queued actions until ctx expires,
// and releases the camera and detector.
func (a *App) Stop(ctx context.Context) error {
	a.runMu.Lock()
	if a.stopCh != nil {
		close(a.stopCh)
		<-a.done
		a.stopCh = nil
	}
	a.runMu.Unlock()

	var errs []error
	if err := a.dispatcher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain actions: %w", err))
	}
	if err := a.cfg.Camera.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}
	if a.cfg.Motion != nil {
		a.cfg.Motion.Close()
	}
	if err := a.cfg.Detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}

	log.Info().Msg("control loop stopped")
	return errors.Join(errs...)
}

// onEngineEvent runs inside engine calls, with mu held.
func (a *App) onEngineEvent(ev gesture.Event) {
	n := Notice{Event: ev, Hand: a.hand}
	if t, ok := a.layout[ev.TargetID]; ok {
		n.TargetName = t.Name
	}

	switch ev.Kind {
	case gesture.EventStateChanged:
		log.Debug().Stringer("from", ev.From).Stringer("to", ev.To).Msg("state changed")
	case gesture.EventTargetConfirmed:
		a.last = n.TargetName
		a.lastAt = ev.Time
		log.Info().Str("target", n.TargetName).Stringer("hand", a.hand).Msg("target confirmed")
	}

	a.pending = append(a.pending, n)
}

// takePending must be called with mu held.
func (a *App) takePending() []Notice {
	out := a.pending
	a.pending = nil
	return out
}

// publish runs actions for confirmations and fans notices out to
// subscribers. It must be called without mu held.
func (a *App) publish(notices []Notice) {
	if len(notices) == 0 {
		return
	}

	for _, n := range notices {
		if n.Kind == gesture.EventTargetConfirmed {
			a.mu.Lock()
			t := a.layout[n.TargetID]
			a.mu.Unlock()
			if t != nil {
				a.dispatch(t, n.Time)
			}
		}
	}

	a.subsMu.RLock()
	subs := a.subs
	a.subsMu.RUnlock()

	for _, n := range notices {
		for _, fn := range subs {
			fn(n)
		}
	}
}
