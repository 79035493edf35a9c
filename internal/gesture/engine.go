package gesture

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDuplicateTarget is returned when a target id is registered twice.
	ErrDuplicateTarget = errors.New("duplicate target")
	// ErrUnknownTarget is returned for operations on an unregistered id.
	ErrUnknownTarget = errors.New("unknown target")
)

// EngagementState is the top-level state of the engine.
type EngagementState int

const (
	// NoHand means no hand is tracked.
	NoHand EngagementState = iota
	// Standby means a hand is tracked but has not reached forward and held still.
	Standby
	// WaitingForFix means the hand is fixating; FixProgress reports how far along.
	WaitingForFix
	// Engaged means targets are shown and fed the live position.
	Engaged
	// Activated means a target fired and the hand is still over it.
	Activated
)

func (s EngagementState) String() string {
	switch s {
	case NoHand:
		return "no_hand"
	case Standby:
		return "standby"
	case WaitingForFix:
		return "waiting_for_fix"
	case Engaged:
		return "engaged"
	case Activated:
		return "activated"
	default:
		return fmt.Sprintf("EngagementState(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s EngagementState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s EngagementState) engaged() bool {
	return s == Engaged || s == Activated
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock sets the clock used by Tick and HandLost. Defaults to SystemClock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// Engine is the engagement state machine. It owns one trajectory and the
// target set, and turns per-tick hand positions into target confirmations.
type Engine struct {
	cfg   Config
	clock Clock

	trajectory  *Trajectory
	state       EngagementState
	fix         Sample
	anchor      Point
	fixProgress float64

	targets      []*Target
	current      string
	activated    string
	outsideSince time.Time

	handlers []Handler
}

// NewEngine creates an Engine in the NoHand state.
func NewEngine(cfg Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		clock:      SystemClock{},
		trajectory: NewTrajectory(cfg.BufferSize),
		state:      NoHand,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Subscribe registers h for every event the engine emits.
func (e *Engine) Subscribe(h Handler) {
	if h == nil {
		return
	}
	e.handlers = append(e.handlers, h)
}

// OnEngagementStart registers fn to run whenever engagement starts.
func (e *Engine) OnEngagementStart(fn func()) {
	e.Subscribe(func(ev Event) {
		if ev.Kind == EventEngagementStarted {
			fn()
		}
	})
}

// OnEngagementEnd registers fn to run whenever engagement ends.
func (e *Engine) OnEngagementEnd(fn func()) {
	e.Subscribe(func(ev Event) {
		if ev.Kind == EventEngagementEnded {
			fn()
		}
	})
}

// RegisterTarget adds a target. region is relative to the anchor set when
// the engine engages. onConfirm and onRelease may be nil.
func (e *Engine) RegisterTarget(id string, region Region, policy ConfirmPolicy, onConfirm, onRelease func()) error {
	if id == "" {
		return fmt.Errorf("%w: empty target id", ErrInvalidConfig)
	}
	if region == nil {
		return fmt.Errorf("%w: target %q has no region", ErrInvalidConfig, id)
	}
	if err := region.Validate(); err != nil {
		return fmt.Errorf("%w: target %q: %v", ErrInvalidConfig, id, err)
	}
	if policy == nil {
		return fmt.Errorf("%w: target %q has no confirm policy", ErrInvalidConfig, id)
	}
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("%w: target %q: %v", ErrInvalidConfig, id, err)
	}
	if e.target(id) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateTarget, id)
	}

	e.targets = append(e.targets, newTarget(id, region, policy, onConfirm, onRelease))
	return nil
}

// RemoveTarget removes a target. If the engine is Activated on it, the
// engine drops back to Engaged.
func (e *Engine) RemoveTarget(id string) error {
	for i, t := range e.targets {
		if t.id != id {
			continue
		}
		if e.state == Activated && e.activated == id {
			e.setState(Engaged, e.clock.Now())
		}
		if e.current == id {
			e.current = ""
		}
		e.targets = append(e.targets[:i], e.targets[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownTarget, id)
}

// ClearTargets drops the whole target set. An engaged engine falls back to
// Standby first, so a rebuilt layout is only shown after a fresh fixation.
func (e *Engine) ClearTargets() {
	if e.state.engaged() {
		e.setState(Standby, e.clock.Now())
	}
	e.targets = nil
	e.current = ""
	e.activated = ""
}

// Tick feeds a position stamped with the engine clock.
func (e *Engine) Tick(pos2D Point, pos3D Vec3) {
	e.FeedPosition(pos2D, pos3D, e.clock.Now())
}

// Feed feeds a prepared sample.
func (e *Engine) Feed(s Sample) {
	e.FeedPosition(s.Pos2D, s.Pos3D, s.Time)
}

// FeedPosition consumes one tracked-hand observation and advances the
// state machine.
func (e *Engine) FeedPosition(pos2D Point, pos3D Vec3, now time.Time) {
	e.trajectory.Push(Sample{Time: now, Pos2D: pos2D, Pos3D: pos3D})
	cur := e.trajectory.Newest()

	if e.state == NoHand {
		e.setState(Standby, cur.Time)
	}

	if e.state == Standby && e.reachesForward(cur) &&
		e.trajectory.IsStableFor(e.cfg.PreFixDuration, e.cfg.MoveThreshold) {
		e.setState(WaitingForFix, cur.Time)
	}

	if e.state == WaitingForFix {
		if !e.reachesForward(cur) {
			// Fixation only counts while reaching forward.
			e.fix = cur
			e.fixProgress = 0
		} else if e.fix.Pos2D.DistanceTo(cur.Pos2D) > e.cfg.MoveThreshold {
			e.setState(Standby, cur.Time)
		} else {
			e.fixProgress = float64(cur.Time.Sub(e.fix.Time)) / float64(e.cfg.FixDuration)
			if e.fixProgress > 1 {
				e.setState(Engaged, cur.Time)
			}
		}
	}

	switch e.state {
	case Engaged:
		if e.retreated(cur) {
			return
		}
		e.updateEngaged(cur)
	case Activated:
		if e.retreated(cur) {
			return
		}
		e.updateActivated(cur)
	}
}

// HandLost forces NoHand from any state, clearing the trajectory and all
// target progress.
func (e *Engine) HandLost() {
	if e.state == NoHand {
		e.trajectory.Clear()
		return
	}
	e.setState(NoHand, e.clock.Now())
}

func (e *Engine) reachesForward(s Sample) bool {
	return s.Pos3D.Z < -e.cfg.ForwardDistance
}

// retreated applies the retreat policy and reports whether it moved the
// engine out of engagement.
func (e *Engine) retreated(cur Sample) bool {
	if e.cfg.Retreat == RetreatIgnore || e.reachesForward(cur) {
		return false
	}
	if e.cfg.Retreat == RetreatToWaitingForFix {
		e.setState(WaitingForFix, cur.Time)
	} else {
		e.setState(Standby, cur.Time)
	}
	return true
}

func (e *Engine) updateEngaged(cur Sample) {
	rel := cur.Pos2D.Sub(e.anchor)

	if e.current != "" {
		if t := e.target(e.current); t == nil || !t.region.Contains(rel) {
			e.current = ""
		}
	}
	if e.current == "" {
		for _, t := range e.targets {
			if t.region.Contains(rel) {
				e.current = t.id
				break
			}
		}
	}

	var confirmed string
	for _, t := range e.targets {
		if e.apply(t, t.id == e.current, cur) == transitionConfirmed {
			confirmed = t.id
		}
	}

	if e.current == "" {
		if e.outsideSince.IsZero() {
			e.outsideSince = cur.Time
		} else if e.cfg.ExitGrace > 0 && cur.Time.Sub(e.outsideSince) > e.cfg.ExitGrace {
			e.setState(Standby, cur.Time)
			return
		}
	} else {
		e.outsideSince = time.Time{}
	}

	if confirmed != "" {
		e.activated = confirmed
		e.setState(Activated, cur.Time)
	}
}

func (e *Engine) updateActivated(cur Sample) {
	t := e.target(e.activated)
	if t == nil {
		e.setState(Engaged, cur.Time)
		return
	}

	inside := t.region.Contains(cur.Pos2D.Sub(e.anchor))
	e.apply(t, inside, cur)
	if !inside {
		e.current = ""
		e.setState(Engaged, cur.Time)
	}
}

// apply runs one target update and fans out its callbacks and events.
func (e *Engine) apply(t *Target, inside bool, cur Sample) transition {
	tr := t.update(inside, cur.Pos3D.Z, cur.Time, e.cfg.ReleaseOnExit)
	switch tr {
	case transitionConfirmed:
		if t.onConfirm != nil {
			t.onConfirm()
		}
		e.emit(Event{Kind: EventTargetConfirmed, Time: cur.Time, From: e.state, To: e.state, TargetID: t.id})
	case transitionReleased:
		if t.onRelease != nil {
			t.onRelease()
		}
		e.emit(Event{Kind: EventTargetReleased, Time: cur.Time, From: e.state, To: e.state, TargetID: t.id})
	}
	return tr
}

// setState is the only place the engagement state changes. It runs the
// entry actions of the new state and emits the matching events.
func (e *Engine) setState(to EngagementState, now time.Time) {
	from := e.state
	if from == to {
		return
	}

	ending := from.engaged() && !to.engaged()
	if ending {
		e.releaseTargets(now)
	}

	e.state = to

	switch to {
	case NoHand:
		e.trajectory.Clear()
		e.fix = Sample{}
		e.fixProgress = 0
	case Standby:
		e.fixProgress = 0
	case WaitingForFix:
		e.fix = e.trajectory.Newest()
		e.fixProgress = 0
	case Engaged:
		e.fix = e.trajectory.Newest()
		e.current = ""
		e.activated = ""
		e.outsideSince = time.Time{}
		if !from.engaged() {
			e.anchor = e.fix.Pos2D.Add(e.cfg.TargetOffset)
			for _, t := range e.targets {
				t.reset()
			}
		}
	case Activated:
		e.fix = e.trajectory.Newest()
	}

	e.emit(Event{Kind: EventStateChanged, Time: now, From: from, To: to})
	if to == Engaged && !from.engaged() {
		e.emit(Event{Kind: EventEngagementStarted, Time: now, From: from, To: to})
	}
	if ending {
		e.emit(Event{Kind: EventEngagementEnded, Time: now, From: from, To: to})
	}
}

// releaseTargets resets every target when engagement ends, firing release
// for targets that already fired when ReleaseOnExit is set.
func (e *Engine) releaseTargets(now time.Time) {
	for _, t := range e.targets {
		if t.state == TargetOutside {
			continue
		}
		e.apply(t, false, Sample{Time: now})
	}
	e.current = ""
	e.activated = ""
	e.outsideSince = time.Time{}
}

func (e *Engine) emit(ev Event) {
	for _, h := range e.handlers {
		h(ev)
	}
}

func (e *Engine) target(id string) *Target {
	for _, t := range e.targets {
		if t.id == id {
			return t
		}
	}
	return nil
}

// State returns the current engagement state.
func (e *Engine) State() EngagementState {
	return e.state
}

// Progress returns the confirmation progress of a target.
func (e *Engine) Progress(id string) (float64, bool) {
	t := e.target(id)
	if t == nil {
		return 0, false
	}
	return t.progress, true
}

// TargetState returns the confirmation state of a target.
func (e *Engine) TargetState(id string) (TargetState, bool) {
	t := e.target(id)
	if t == nil {
		return TargetOutside, false
	}
	return t.state, true
}

// FixProgress returns fixation progress in [0, 1] while WaitingForFix, and
// zero otherwise.
func (e *Engine) FixProgress() float64 {
	if e.state != WaitingForFix {
		return 0
	}
	return clamp01(e.fixProgress)
}

// FixReference returns the sample the engine anchored on. It is only valid
// while Engaged or Activated.
func (e *Engine) FixReference() (Sample, bool) {
	if !e.state.engaged() {
		return Sample{}, false
	}
	return e.fix, true
}

// Anchor returns the screen position targets are laid out around. It is
// only meaningful while Engaged or Activated.
func (e *Engine) Anchor() Point {
	return e.anchor
}

// CurrentTarget returns the target the hand is over, if any.
func (e *Engine) CurrentTarget() (string, bool) {
	if !e.state.engaged() || e.current == "" {
		return "", false
	}
	return e.current, true
}

// TrajectoryLen returns the number of buffered samples.
func (e *Engine) TrajectoryLen() int {
	return e.trajectory.Len()
}

// Snapshot is a read-only view of the engine for rendering and the API.
type Snapshot struct {
	State         EngagementState `json:"state"`
	FixProgress   float64         `json:"fix_progress"`
	Anchor        *Point          `json:"anchor,omitempty"`
	CurrentTarget string          `json:"current_target,omitempty"`
	Targets       []TargetView    `json:"targets"`
	Samples       int             `json:"samples"`
}

// Snapshot copies the engine state. It never mutates the engine.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		State:       e.state,
		FixProgress: e.FixProgress(),
		Targets:     make([]TargetView, 0, len(e.targets)),
		Samples:     e.trajectory.Len(),
	}
	if e.state.engaged() {
		anchor := e.anchor
		snap.Anchor = &anchor
		snap.CurrentTarget = e.current
	}
	for _, t := range e.targets {
		snap.Targets = append(snap.Targets, t.view())
	}
	return snap
}
