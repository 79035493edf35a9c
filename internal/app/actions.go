package app

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/handcontrol/internal/plugin"
	"github.com/ayusman/handcontrol/internal/store"
)

// dispatch records an activation for t and queues its action. It never
// blocks on the action itself.
func (a *App) dispatch(t *store.Target, at time.Time) {
	act := &store.Activation{
		TargetID:    t.ID,
		TargetName:  t.Name,
		ConfirmedAt: at,
	}
	if t.PluginName == "" || t.ActionName == "" {
		act.Status = store.StatusNoAction
	}

	activations := a.cfg.Store.Activations()
	if err := activations.Record(act); err != nil {
		log.Error().Err(err).Str("target", t.Name).Msg("failed to record activation")
		return
	}
	if act.Status == store.StatusNoAction {
		return
	}

	err := a.dispatcher.Submit(plugin.Job{
		ActivationID: act.ID,
		TargetID:     t.ID,
		TargetName:   t.Name,
		Plugin:       t.PluginName,
		Action:       t.ActionName,
		Params:       t.Config,
	})

	switch {
	case err == nil:
	case errors.Is(err, plugin.ErrQueueFull):
		a.setStatus(act.ID, store.StatusDropped, err)
	default:
		a.setStatus(act.ID, store.StatusFailed, err)
	}
}

// actionDone runs on the dispatcher worker once a job has finished.
func (a *App) actionDone(job plugin.Job, err error) {
	if err != nil {
		a.setStatus(job.ActivationID, store.StatusFailed, err)
		return
	}
	a.setStatus(job.ActivationID, store.StatusDone, nil)
}

func (a *App) setStatus(id string, status store.ActivationStatus, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := a.cfg.Store.Activations().SetStatus(id, status, msg); err != nil {
		log.Error().Err(err).Str("activation", id).Msg("failed to update activation")
	}
}
