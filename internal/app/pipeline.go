package app

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/handcontrol/internal/arbiter"
	"github.com/ayusman/handcontrol/internal/gesture"
)

// run drives Tick until stop is closed. Each tick schedules the next one
// at the interval Tick returns.
func (a *App) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			timer.Reset(a.Tick())
		}
	}
}

// Tick runs one pass of the control loop and returns the delay before the
// next one:
//
//  1. read a frame (disabled or unreadable: idle interval)
//  2. while no hand is tracked, skip detection until the motion gate opens
//  3. detect hands and split them into left/right candidates
//  4. let the arbiter pick a hand and feed it to the engine
//  5. publish the resulting notices and queue confirmed actions
func (a *App) Tick() time.Duration {
	if !a.IsEnabled() {
		return a.cfg.IdleInterval
	}

	frame, err := a.cfg.Camera.ReadFrame()
	if err != nil {
		a.noisy.Warn().Err(err).Msg("frame read failed")
		a.lose()
		return a.cfg.IdleInterval
	}
	defer frame.Close()

	now := a.clock.Now()

	active := true
	if a.cfg.Motion != nil {
		active = a.cfg.Motion.Active(frame, now)
	}

	a.mu.Lock()
	a.active = active
	idle := !active && a.engine.State() == gesture.NoHand
	a.mu.Unlock()
	if idle {
		return a.cfg.IdleInterval
	}

	hands, err := a.cfg.Detector.Detect(frame)
	if err != nil {
		a.noisy.Warn().Err(err).Msg("hand detection failed")
		hands = nil
	}
	left, right := arbiter.Candidates(hands, a.cfg.Width, a.cfg.Height)

	a.mu.Lock()
	// Set before Drive so notices emitted during the tick carry the new hand.
	if hand := a.arbiter.Select(left, right); hand != a.hand {
		log.Debug().Stringer("from", a.hand).Stringer("to", hand).Msg("controlling hand changed")
		a.hand = hand
	}
	a.arbiter.Drive(a.engine, left, right, now)
	notices := a.takePending()
	a.mu.Unlock()

	a.publish(notices)
	return a.cfg.TickInterval
}

// lose treats the tick as having no hand at all.
func (a *App) lose() {
	a.mu.Lock()
	a.arbiter.Drive(a.engine, arbiter.Candidate{}, arbiter.Candidate{}, a.clock.Now())
	a.hand = arbiter.None
	notices := a.takePending()
	a.mu.Unlock()
	a.publish(notices)
}
