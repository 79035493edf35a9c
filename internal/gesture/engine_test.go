package gesture

import (
	"errors"
	"testing"
	"time"
)

const (
	tickInterval = 25 * time.Millisecond
	reachZ       = -400.0
)

type harness struct {
	t      *testing.T
	engine *Engine
	clock  *ManualClock
	events []Event
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	clock := NewManualClock(testEpoch)
	e, err := NewEngine(cfg, WithClock(clock))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	h := &harness{t: t, engine: e, clock: clock}
	e.Subscribe(func(ev Event) {
		h.events = append(h.events, ev)
	})
	return h
}

// feed advances the clock by one tick and feeds a position.
func (h *harness) feed(p Point, z float64) {
	h.clock.Advance(tickInterval)
	h.engine.Tick(p, Vec3{X: p.X, Y: p.Y, Z: z})
}

// engage holds the hand still at p until the engine engages.
func (h *harness) engage(p Point) {
	h.t.Helper()
	for i := 0; i < 200; i++ {
		h.feed(p, reachZ)
		if h.engine.State() == Engaged {
			return
		}
	}
	h.t.Fatalf("engine did not engage, state = %v", h.engine.State())
}

func (h *harness) count(kind EventKind) int {
	n := 0
	for _, ev := range h.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero move threshold", func(c *Config) { c.MoveThreshold = 0 }},
		{"negative move threshold", func(c *Config) { c.MoveThreshold = -1 }},
		{"negative forward distance", func(c *Config) { c.ForwardDistance = -1 }},
		{"zero pre-fix duration", func(c *Config) { c.PreFixDuration = 0 }},
		{"negative fix duration", func(c *Config) { c.FixDuration = -time.Second }},
		{"tiny buffer", func(c *Config) { c.BufferSize = 1 }},
		{"negative exit grace", func(c *Config) { c.ExitGrace = -time.Second }},
		{"unknown retreat policy", func(c *Config) { c.Retreat = RetreatPolicy(42) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			_, err := NewEngine(cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewEngine() error = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if _, err := NewEngine(DefaultConfig()); err != nil {
		t.Errorf("NewEngine(DefaultConfig()) error = %v", err)
	}
}

func TestEngine_RegisterTarget(t *testing.T) {
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	circle := Circle{Radius: 10}
	hold := TimeBased{Hold: time.Second}

	if err := e.RegisterTarget("next", circle, hold, nil, nil); err != nil {
		t.Fatalf("RegisterTarget() error = %v", err)
	}
	if err := e.RegisterTarget("next", circle, hold, nil, nil); !errors.Is(err, ErrDuplicateTarget) {
		t.Errorf("duplicate RegisterTarget() error = %v, want ErrDuplicateTarget", err)
	}
	if err := e.RegisterTarget("", circle, hold, nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("empty id error = %v, want ErrInvalidConfig", err)
	}
	if err := e.RegisterTarget("bad-region", Circle{}, hold, nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("bad region error = %v, want ErrInvalidConfig", err)
	}
	if err := e.RegisterTarget("bad-policy", circle, DepthBased{}, nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("bad policy error = %v, want ErrInvalidConfig", err)
	}
	if err := e.RegisterTarget("nil-policy", circle, nil, nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("nil policy error = %v, want ErrInvalidConfig", err)
	}

	if p, ok := e.Progress("next"); !ok || p != 0 {
		t.Errorf("Progress(next) = %v, %v; want 0, true", p, ok)
	}
	if _, ok := e.Progress("missing"); ok {
		t.Error("Progress(missing) should report false")
	}

	if err := e.RemoveTarget("next"); err != nil {
		t.Errorf("RemoveTarget() error = %v", err)
	}
	if err := e.RemoveTarget("next"); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("second RemoveTarget() error = %v, want ErrUnknownTarget", err)
	}
}

func TestEngine_FirstSampleYieldsStandby(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	if h.engine.State() != NoHand {
		t.Fatalf("initial state = %v, want NoHand", h.engine.State())
	}

	h.feed(Point{X: 100, Y: 100}, 0)

	if h.engine.State() != Standby {
		t.Errorf("state after first sample = %v, want Standby", h.engine.State())
	}
	if h.engine.TrajectoryLen() != 1 {
		t.Errorf("TrajectoryLen() = %d, want 1", h.engine.TrajectoryLen())
	}
}

func TestEngine_HandLostFromEveryState(t *testing.T) {
	drive := map[EngagementState]func(h *harness){
		NoHand: func(h *harness) {},
		Standby: func(h *harness) {
			h.feed(Point{X: 100, Y: 100}, 0)
		},
		WaitingForFix: func(h *harness) {
			for h.engine.State() != WaitingForFix {
				h.feed(Point{X: 100, Y: 100}, reachZ)
			}
		},
		Engaged: func(h *harness) {
			h.engage(Point{X: 100, Y: 100})
		},
		Activated: func(h *harness) {
			h.engage(Point{X: 100, Y: 100})
			for h.engine.State() != Activated {
				h.feed(Point{X: 180, Y: 100}, reachZ)
			}
		},
	}

	for state, setup := range drive {
		t.Run(state.String(), func(t *testing.T) {
			h := newHarness(t, DefaultConfig())
			if err := h.engine.RegisterTarget("next", Circle{Center: Point{X: 80}, Radius: 40}, TimeBased{Hold: 200 * time.Millisecond}, nil, nil); err != nil {
				t.Fatalf("RegisterTarget() error = %v", err)
			}

			setup(h)
			if h.engine.State() != state {
				t.Fatalf("setup reached %v, want %v", h.engine.State(), state)
			}

			h.engine.HandLost()

			if h.engine.State() != NoHand {
				t.Errorf("state after HandLost = %v, want NoHand", h.engine.State())
			}
			if h.engine.TrajectoryLen() != 0 {
				t.Errorf("TrajectoryLen() after HandLost = %d, want 0", h.engine.TrajectoryLen())
			}
			if p, _ := h.engine.Progress("next"); p != 0 {
				t.Errorf("target progress after HandLost = %v, want 0", p)
			}
			if _, ok := h.engine.FixReference(); ok {
				t.Error("FixReference should be unavailable after HandLost")
			}

			wantEnded := 0
			if state == Engaged || state == Activated {
				wantEnded = 1
			}
			if got := h.count(EventEngagementEnded); got != wantEnded {
				t.Errorf("EngagementEnded events = %d, want %d", got, wantEnded)
			}
		})
	}
}

func TestEngine_EngageScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ForwardDistance = 250
	cfg.PreFixDuration = 100 * time.Millisecond
	cfg.FixDuration = 500 * time.Millisecond
	cfg.TargetOffset = Point{X: 0, Y: -60}

	h := newHarness(t, cfg)
	jitter := func(i int) Point {
		return Point{X: 300 + float64(i%3)*2, Y: 200 + float64(i%2)*2}
	}

	// Ten samples within 5px of each other spanning 150ms.
	for i := 0; i < 10; i++ {
		now := testEpoch.Add(time.Duration(i) * 150 * time.Millisecond / 9)
		p := jitter(i)
		h.engine.FeedPosition(p, Vec3{X: p.X, Y: p.Y, Z: reachZ}, now)
	}
	if h.engine.State() != WaitingForFix {
		t.Fatalf("state after 150ms of stillness = %v, want WaitingForFix", h.engine.State())
	}
	if p := h.engine.FixProgress(); p <= 0 || p >= 1 {
		t.Errorf("FixProgress() = %v, want in (0, 1)", p)
	}

	h.clock.Set(testEpoch.Add(150 * time.Millisecond))
	var last Point
	for i := 10; h.engine.State() == WaitingForFix && i < 100; i++ {
		last = jitter(i)
		h.feed(last, reachZ)
	}

	if h.engine.State() != Engaged {
		t.Fatalf("state after fixation = %v, want Engaged", h.engine.State())
	}
	if elapsed := h.clock.Now().Sub(testEpoch); elapsed <= 600*time.Millisecond {
		t.Errorf("engaged after %v, want more than pre-fix + fix duration", elapsed)
	}

	want := last.Add(cfg.TargetOffset)
	if got := h.engine.Anchor(); got != want {
		t.Errorf("Anchor() = %+v, want %+v", got, want)
	}
	ref, ok := h.engine.FixReference()
	if !ok || ref.Pos2D != last {
		t.Errorf("FixReference() = %+v, %v; want position %+v", ref, ok, last)
	}
	if got := h.count(EventEngagementStarted); got != 1 {
		t.Errorf("EngagementStarted events = %d, want 1", got)
	}
	if h.engine.FixProgress() != 0 {
		t.Error("FixProgress should read zero outside WaitingForFix")
	}
}

func TestEngine_ConfirmScenario(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	var confirms, releases int
	err := h.engine.RegisterTarget("next",
		Circle{Center: Point{X: 80}, Radius: 40},
		TimeBased{Hold: 500 * time.Millisecond},
		func() { confirms++ },
		func() { releases++ },
	)
	if err != nil {
		t.Fatalf("RegisterTarget() error = %v", err)
	}
	if err := h.engine.RegisterTarget("previous", Circle{Center: Point{X: -80}, Radius: 40}, TimeBased{Hold: 500 * time.Millisecond}, nil, nil); err != nil {
		t.Fatalf("RegisterTarget() error = %v", err)
	}

	origin := Point{X: 320, Y: 240}
	h.engage(origin)

	over := origin.Add(Point{X: 80})
	h.feed(over, reachZ)
	if id, ok := h.engine.CurrentTarget(); !ok || id != "next" {
		t.Fatalf("CurrentTarget() = %q, %v; want next", id, ok)
	}

	// 500ms inside at 25ms ticks: the entry tick plus 20 more.
	for i := 0; i < 19; i++ {
		h.feed(over, reachZ)
	}
	if confirms != 0 {
		t.Fatalf("confirmed after 475ms, want 500ms")
	}
	h.feed(over, reachZ)

	if confirms != 1 {
		t.Fatalf("confirm callback ran %d times, want 1", confirms)
	}
	if h.engine.State() != Activated {
		t.Fatalf("state after confirm = %v, want Activated", h.engine.State())
	}
	if got := h.count(EventTargetConfirmed); got != 1 {
		t.Errorf("TargetConfirmed events = %d, want 1", got)
	}

	for i := 0; i < 40; i++ {
		h.feed(over, reachZ)
	}
	if confirms != 1 {
		t.Errorf("confirm callback ran %d times while held, want 1", confirms)
	}
	if h.engine.State() != Activated {
		t.Errorf("state while held = %v, want Activated", h.engine.State())
	}

	h.feed(origin, reachZ)
	if h.engine.State() != Engaged {
		t.Errorf("state after leaving target = %v, want Engaged", h.engine.State())
	}
	if releases != 1 {
		t.Errorf("release callback ran %d times, want 1", releases)
	}
	if s, _ := h.engine.TargetState("next"); s != TargetOutside {
		t.Errorf("target state after leaving = %v, want outside", s)
	}
}

func TestEngine_ExitBeforeHoldNeverFires(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	var confirms int
	if err := h.engine.RegisterTarget("next", Circle{Center: Point{X: 80}, Radius: 40}, TimeBased{Hold: 500 * time.Millisecond}, func() { confirms++ }, nil); err != nil {
		t.Fatalf("RegisterTarget() error = %v", err)
	}

	origin := Point{X: 320, Y: 240}
	h.engage(origin)

	for round := 0; round < 5; round++ {
		for i := 0; i < 15; i++ {
			h.feed(origin.Add(Point{X: 80}), reachZ)
		}
		// One boundary-crossing tick cancels the dwell.
		h.feed(origin, reachZ)
		if p, _ := h.engine.Progress("next"); p != 0 {
			t.Fatalf("progress after exit = %v, want 0", p)
		}
	}

	if confirms != 0 {
		t.Errorf("confirm callback ran %d times, want 0", confirms)
	}
	if h.engine.State() != Engaged {
		t.Errorf("state = %v, want Engaged", h.engine.State())
	}
}

func TestEngine_FirstMatchingTargetWins(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	overlap := Circle{Center: Point{X: 100}, Radius: 50}
	for _, id := range []string{"first", "second"} {
		if err := h.engine.RegisterTarget(id, overlap, TimeBased{Hold: 100 * time.Millisecond}, nil, nil); err != nil {
			t.Fatalf("RegisterTarget(%s) error = %v", id, err)
		}
	}

	origin := Point{X: 0, Y: 0}
	h.engage(origin)

	for i := 0; i < 3; i++ {
		h.feed(Point{X: 100}, reachZ)
	}

	if id, _ := h.engine.CurrentTarget(); id != "first" {
		t.Errorf("CurrentTarget() = %q, want first", id)
	}
	if s, _ := h.engine.TargetState("second"); s != TargetOutside {
		t.Errorf("second target state = %v, want outside", s)
	}
}

func TestEngine_MovingDuringFixationRevertsToStandby(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	p := Point{X: 100, Y: 100}
	for h.engine.State() != WaitingForFix {
		h.feed(p, reachZ)
	}

	h.feed(p.Add(Point{X: 26}), reachZ)

	if h.engine.State() != Standby {
		t.Errorf("state after moving past threshold = %v, want Standby", h.engine.State())
	}
	if h.engine.FixProgress() != 0 {
		t.Errorf("FixProgress() = %v, want 0", h.engine.FixProgress())
	}
}

func TestEngine_NoFixationWithoutForwardReach(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	for i := 0; i < 100; i++ {
		h.feed(Point{X: 100, Y: 100}, -200)
	}

	if h.engine.State() != Standby {
		t.Errorf("state = %v, want Standby", h.engine.State())
	}
}

func TestEngine_IdenticalSamplesNeverRegress(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	p := Point{X: 200, Y: 200}
	h.engage(p)

	for i := 0; i < 400; i++ {
		h.feed(p, reachZ)
		if h.engine.State() != Engaged {
			t.Fatalf("tick %d: state = %v, want Engaged", i, h.engine.State())
		}
	}
}

func TestEngine_RetreatPolicy(t *testing.T) {
	tests := []struct {
		policy RetreatPolicy
		want   EngagementState
	}{
		{RetreatIgnore, Engaged},
		{RetreatToStandby, Standby},
		{RetreatToWaitingForFix, WaitingForFix},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Retreat = tt.policy
			h := newHarness(t, cfg)

			p := Point{X: 200, Y: 200}
			h.engage(p)
			h.feed(p, -100)

			if h.engine.State() != tt.want {
				t.Errorf("state after retreat = %v, want %v", h.engine.State(), tt.want)
			}

			wantEnded := 1
			if tt.want == Engaged {
				wantEnded = 0
			}
			if got := h.count(EventEngagementEnded); got != wantEnded {
				t.Errorf("EngagementEnded events = %d, want %d", got, wantEnded)
			}
		})
	}
}

func TestEngine_RetreatToWaitingForFixHoldsWhileRetracted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retreat = RetreatToWaitingForFix
	h := newHarness(t, cfg)

	p := Point{X: 200, Y: 200}
	h.engage(p)

	// 3s retracted and still.
	for i := 0; i < 120; i++ {
		h.feed(p, -100)
	}

	if h.engine.State() != WaitingForFix {
		t.Errorf("state while retracted = %v, want WaitingForFix", h.engine.State())
	}
	if h.engine.FixProgress() != 0 {
		t.Errorf("FixProgress() while retracted = %v, want 0", h.engine.FixProgress())
	}
	if got := h.count(EventEngagementEnded); got != 1 {
		t.Errorf("EngagementEnded events = %d, want 1", got)
	}
	if got := h.count(EventEngagementStarted); got != 1 {
		t.Errorf("EngagementStarted events = %d, want 1", got)
	}

	h.engage(p)
	if got := h.count(EventEngagementStarted); got != 2 {
		t.Errorf("EngagementStarted events after reaching again = %d, want 2", got)
	}
}

func TestEngine_RemoveActivatedTarget(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	if err := h.engine.RegisterTarget("next", Circle{Center: Point{X: 80}, Radius: 40}, TimeBased{Hold: 200 * time.Millisecond}, nil, nil); err != nil {
		t.Fatalf("RegisterTarget() error = %v", err)
	}

	origin := Point{X: 100, Y: 100}
	h.engage(origin)
	for i := 0; i < 100 && h.engine.State() != Activated; i++ {
		h.feed(origin.Add(Point{X: 80}), reachZ)
	}
	if h.engine.State() != Activated {
		t.Fatalf("state = %v, want Activated", h.engine.State())
	}

	if err := h.engine.RemoveTarget("next"); err != nil {
		t.Fatalf("RemoveTarget() error = %v", err)
	}

	if h.engine.State() != Engaged {
		t.Errorf("state after removing activated target = %v, want Engaged", h.engine.State())
	}
	if id, ok := h.engine.CurrentTarget(); ok {
		t.Errorf("CurrentTarget() = %q, want none", id)
	}
	if len(h.engine.Snapshot().Targets) != 0 {
		t.Error("Snapshot should list no targets")
	}
	if got := h.count(EventEngagementEnded); got != 0 {
		t.Errorf("EngagementEnded events = %d, want 0", got)
	}

	h.feed(origin.Add(Point{X: 80}), reachZ)
	if h.engine.State() != Engaged {
		t.Errorf("state on next tick = %v, want Engaged", h.engine.State())
	}
}

func TestEngine_ExitGrace(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExitGrace = 300 * time.Millisecond
	h := newHarness(t, cfg)

	if err := h.engine.RegisterTarget("next", Circle{Center: Point{X: 80}, Radius: 40}, TimeBased{Hold: time.Second}, nil, nil); err != nil {
		t.Fatalf("RegisterTarget() error = %v", err)
	}

	p := Point{X: 200, Y: 200}
	h.engage(p)

	// 12 ticks = 300ms outside every target: still inside the grace window.
	for i := 0; i < 12; i++ {
		h.feed(p, reachZ)
	}
	if h.engine.State() != Engaged {
		t.Fatalf("state within grace = %v, want Engaged", h.engine.State())
	}

	h.feed(p, reachZ)
	if h.engine.State() != Standby {
		t.Errorf("state after grace = %v, want Standby", h.engine.State())
	}
}

func TestEngine_DepthTargetConfirms(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	var confirms int
	if err := h.engine.RegisterTarget("push", Circle{Center: Point{X: 80}, Radius: 40}, DepthBased{PressDepth: 50}, func() { confirms++ }, nil); err != nil {
		t.Fatalf("RegisterTarget() error = %v", err)
	}

	origin := Point{X: 320, Y: 240}
	h.engage(origin)

	over := origin.Add(Point{X: 80})
	h.feed(over, -400)
	h.feed(over, -430)
	if confirms != 0 {
		t.Fatalf("confirmed after 30 of 50")
	}
	h.feed(over, -455)

	if confirms != 1 {
		t.Errorf("confirm callback ran %d times, want 1", confirms)
	}
	if h.engine.State() != Activated {
		t.Errorf("state = %v, want Activated", h.engine.State())
	}
}

func TestEngine_HandLostReleasesFiredTarget(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	var releases int
	if err := h.engine.RegisterTarget("next", Circle{Center: Point{X: 80}, Radius: 40}, TimeBased{Hold: 100 * time.Millisecond}, nil, func() { releases++ }); err != nil {
		t.Fatalf("RegisterTarget() error = %v", err)
	}

	origin := Point{X: 320, Y: 240}
	h.engage(origin)
	for h.engine.State() != Activated {
		h.feed(origin.Add(Point{X: 80}), reachZ)
	}

	h.engine.HandLost()

	if releases != 1 {
		t.Errorf("release callback ran %d times, want 1", releases)
	}
	if h.engine.State() != NoHand {
		t.Errorf("state = %v, want NoHand", h.engine.State())
	}
}

func TestEngine_EngagementCallbacks(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	var frozen bool
	h.engine.OnEngagementStart(func() { frozen = true })
	h.engine.OnEngagementEnd(func() { frozen = false })

	h.engage(Point{X: 10, Y: 10})
	if !frozen {
		t.Error("OnEngagementStart callback did not run")
	}

	h.engine.HandLost()
	if frozen {
		t.Error("OnEngagementEnd callback did not run")
	}
}

func TestEngine_ClearTargetsWhileEngaged(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	if err := h.engine.RegisterTarget("next", Circle{Center: Point{X: 80}, Radius: 40}, TimeBased{Hold: time.Second}, nil, nil); err != nil {
		t.Fatalf("RegisterTarget() error = %v", err)
	}

	h.engage(Point{X: 10, Y: 10})
	h.engine.ClearTargets()

	if h.engine.State() != Standby {
		t.Errorf("state after ClearTargets = %v, want Standby", h.engine.State())
	}
	if len(h.engine.Snapshot().Targets) != 0 {
		t.Error("Snapshot should list no targets after ClearTargets")
	}
}

func TestEngine_SnapshotDoesNotMutate(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	if err := h.engine.RegisterTarget("next", Circle{Center: Point{X: 80}, Radius: 40}, TimeBased{Hold: time.Second}, nil, nil); err != nil {
		t.Fatalf("RegisterTarget() error = %v", err)
	}
	h.engage(Point{X: 10, Y: 10})

	before := h.engine.State()
	events := len(h.events)
	for i := 0; i < 5; i++ {
		snap := h.engine.Snapshot()
		if snap.State != before || snap.Anchor == nil || len(snap.Targets) != 1 {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
		h.engine.Progress("next")
		h.engine.CurrentTarget()
	}

	if h.engine.State() != before || len(h.events) != events {
		t.Error("queries must not change engine state or emit events")
	}
}

func TestEngine_StateEvents(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.engage(Point{X: 10, Y: 10})

	var path []EngagementState
	for _, ev := range h.events {
		if ev.Kind == EventStateChanged {
			path = append(path, ev.To)
		}
	}

	want := []EngagementState{Standby, WaitingForFix, Engaged}
	if len(path) != len(want) {
		t.Fatalf("state path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("state path[%d] = %v, want %v", i, path[i], want[i])
		}
	}
}
