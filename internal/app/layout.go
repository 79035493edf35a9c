package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/handcontrol/internal/gesture"
	"github.com/ayusman/handcontrol/internal/store"
)

// DefaultTargets is the slide-control layout: "next" to the right of the
// anchor and "previous" to the left, each 60x60 and centred vertically.
func DefaultTargets(hold time.Duration) []*store.Target {
	button := func(id string, x float64, key string, position int) *store.Target {
		return &store.Target{
			ID:         id,
			Name:       id,
			Shape:      store.ShapeRect,
			X:          x,
			Y:          -30,
			Width:      60,
			Height:     60,
			Policy:     store.PolicyTime,
			Hold:       hold,
			PluginName: "keyboard",
			ActionName: "keystroke",
			Config:     json.RawMessage(fmt.Sprintf(`{"key":%q}`, key)),
			Position:   position,
			Enabled:    true,
		}
	}
	return []*store.Target{
		button("next", 50, "pagedown", 0),
		button("previous", -110, "pageup", 1),
	}
}

// SeedDefaults stores DefaultTargets the first time it runs against an
// empty database. Deleting the defaults later does not bring them back.
func SeedDefaults(s *store.Store, hold time.Duration) error {
	settings := s.Settings()

	seeded, err := settings.GetBool(store.SettingSeeded, false)
	if err != nil {
		return err
	}
	if seeded {
		return nil
	}

	n, err := s.Targets().Count()
	if err != nil {
		return err
	}
	if n == 0 {
		for _, t := range DefaultTargets(hold) {
			if err := s.Targets().Create(t); err != nil {
				return fmt.Errorf("create %s: %w", t.Name, err)
			}
		}
		log.Info().Msg("seeded default target layout")
	}

	return settings.SetBool(store.SettingSeeded, true)
}

// Region converts a stored target's shape into an anchor-relative region.
func Region(t *store.Target) (gesture.Region, error) {
	switch t.Shape {
	case store.ShapeCircle:
		return gesture.Circle{Center: gesture.Point{X: t.X, Y: t.Y}, Radius: t.Radius}, nil
	case store.ShapeRect:
		return gesture.Rect{Min: gesture.Point{X: t.X, Y: t.Y}, Width: t.Width, Height: t.Height}, nil
	default:
		return nil, fmt.Errorf("unknown shape %q", t.Shape)
	}
}

// Policy converts a stored target's confirmation settings, filling in
// hold and depth defaults where the target leaves them zero.
func Policy(t *store.Target, hold time.Duration, depth float64) (gesture.ConfirmPolicy, error) {
	switch t.Policy {
	case store.PolicyTime:
		if t.Hold > 0 {
			hold = t.Hold
		}
		return gesture.TimeBased{Hold: hold}, nil
	case store.PolicyDepth:
		if t.PressDepth > 0 {
			depth = t.PressDepth
		}
		return gesture.DepthBased{PressDepth: depth}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q", t.Policy)
	}
}

// ReloadLayout replaces the engine's targets with the enabled targets in
// the store. An engaged engine falls back to Standby. Targets the engine
// rejects are skipped and logged.
func (a *App) ReloadLayout() error {
	targets, err := a.cfg.Store.Targets().List()
	if err != nil {
		return fmt.Errorf("load targets: %w", err)
	}

	a.mu.Lock()
	a.engine.ClearTargets()
	a.layout = make(map[string]*store.Target, len(targets))

	for _, t := range targets {
		if !t.Enabled {
			continue
		}
		if err := a.register(t); err != nil {
			log.Warn().Err(err).Str("target", t.Name).Msg("skipping target")
			continue
		}
		a.layout[t.ID] = t
	}
	count := len(a.layout)
	notices := a.takePending()
	a.mu.Unlock()

	a.publish(notices)
	log.Info().Int("targets", count).Msg("layout loaded")
	return nil
}

// register must be called with mu held.
func (a *App) register(t *store.Target) error {
	region, err := Region(t)
	if err != nil {
		return err
	}
	policy, err := Policy(t, a.cfg.DefaultHold, a.cfg.DefaultPressDepth)
	if err != nil {
		return err
	}
	return a.engine.RegisterTarget(t.ID, region, policy, nil, nil)
}
