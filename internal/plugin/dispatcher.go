package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultQueueSize is the dispatch queue capacity.
const DefaultQueueSize = 16

var (
	// ErrQueueFull is returned by Submit when the queue has no room.
	ErrQueueFull = errors.New("dispatch queue full")
	// ErrDispatcherClosed is returned by Submit after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

// Job is one confirmed target's action.
type Job struct {
	ActivationID string
	TargetID     string
	TargetName   string
	Plugin       string
	Action       string
	Params       json.RawMessage
}

// RunFunc performs a job.
type RunFunc func(ctx context.Context, job Job) error

// ResultFunc receives the outcome of every job that ran.
type ResultFunc func(job Job, err error)

// Dispatcher runs jobs on a single worker goroutine behind a bounded
// queue. Submit never blocks: when the queue is full the job is dropped
// and counted.
type Dispatcher struct {
	run      RunFunc
	onResult ResultFunc

	queue  chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	queueSize  metric.Int64ObservableGauge
	dispatched metric.Int64Counter
	dropped    metric.Int64Counter
	failed     metric.Int64Counter
}

// NewDispatcher creates a Dispatcher and starts its worker.
// Uses the global OTel meter for metrics (no-op if not configured).
// onResult may be nil.
func NewDispatcher(run RunFunc, size int, onResult ResultFunc) (*Dispatcher, error) {
	if run == nil {
		return nil, errors.New("dispatcher needs a run function")
	}
	if size <= 0 {
		size = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		run:      run,
		onResult: onResult,
		queue:    make(chan Job, size),
		ctx:      ctx,
		cancel:   cancel,
	}

	if err := d.initMetrics(); err != nil {
		cancel()
		return nil, err
	}

	d.wg.Add(1)
	go d.worker()

	return d, nil
}

func (d *Dispatcher) initMetrics() error {
	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"actions.queue.size",
		metric.WithDescription("Current number of actions waiting to run"),
	)
	if err != nil {
		return fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(d.queueSize, int64(len(d.queue)))
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return fmt.Errorf("registering queue callback: %w", err)
	}

	d.dispatched, err = m.Int64Counter(
		"actions.dispatched",
		metric.WithDescription("Total actions run"),
	)
	if err != nil {
		return fmt.Errorf("creating dispatched counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"actions.dropped",
		metric.WithDescription("Total actions dropped due to full queue"),
	)
	if err != nil {
		return fmt.Errorf("creating dropped counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"actions.failed",
		metric.WithDescription("Total actions that returned an error"),
	)
	if err != nil {
		return fmt.Errorf("creating failed counter: %w", err)
	}

	return nil
}

// Submit queues job without blocking.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- job:
		return nil
	default:
		d.dropped.Add(context.Background(), 1, metric.WithAttributes(jobAttrs(job)...))
		log.Warn().Str("target", job.TargetName).Str("plugin", job.Plugin).Msg("action dropped, queue full")
		return ErrQueueFull
	}
}

// Pending returns the number of queued jobs.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting jobs, lets queued jobs finish, and waits for the
// worker. A job still running when ctx expires is cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for job := range d.queue {
		err := d.run(d.ctx, job)

		attrs := metric.WithAttributes(jobAttrs(job)...)
		d.dispatched.Add(context.Background(), 1, attrs)
		if err != nil {
			d.failed.Add(context.Background(), 1, attrs)
			log.Error().Err(err).Str("target", job.TargetName).Str("plugin", job.Plugin).Str("action", job.Action).Msg("action failed")
		} else {
			log.Debug().Str("target", job.TargetName).Str("plugin", job.Plugin).Str("action", job.Action).Msg("action done")
		}

		if d.onResult != nil {
			d.onResult(job, err)
		}
	}
}

func jobAttrs(job Job) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("plugin", job.Plugin),
		attribute.String("action", job.Action),
	}
}

// NewRunner returns a RunFunc that resolves the job's plugin through m
// and executes it with e. A plugin reporting failure yields an error.
func NewRunner(m *Manager, e *Executor) RunFunc {
	return func(ctx context.Context, job Job) error {
		p, err := m.Resolve(job.Plugin, job.Action)
		if err != nil {
			return err
		}

		resp, err := e.Execute(ctx, p, &Request{
			Action: job.Action,
			Target: job.TargetName,
			Params: job.Params,
		})
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("plugin %s: %s", job.Plugin, resp.Error)
		}
		return nil
	}
}
