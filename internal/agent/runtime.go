// Package agent wires the alert store, dispatcher, reviewer, and memory
// store into one runtime and owns the two periodic cadences. The runtime
// is constructed explicitly by the host; there is no process-wide
// singleton, so tests can run isolated instances side by side.
package agent

import (
	"context"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/praxislegal/sentinel/internal/alert"
	"github.com/praxislegal/sentinel/internal/config"
	"github.com/praxislegal/sentinel/internal/dispatch"
	"github.com/praxislegal/sentinel/internal/memory"
	"github.com/praxislegal/sentinel/internal/review"
	"github.com/praxislegal/sentinel/internal/store"
)

type Runtime struct {
	cfg        *config.Config
	alerts     *alert.Store
	memory     *memory.Store
	dispatcher *dispatch.Dispatcher
	reviewer   *review.Reviewer

	mu   sync.Mutex
	cron *rcron.Cron
}

// New builds a runtime over an open store. The notifier and completer are
// the two external collaborators; everything else is owned here.
func New(cfg *config.Config, db *store.Store, notifier dispatch.Notifier, completer review.Completer) *Runtime {
	d := dispatch.New(db, notifier, cfg.Agent.DispatchDelay(), cfg.Agent.MaxFailedDispatches)
	alerts := alert.NewStore(db)
	alerts.OnEnqueue = d.Send
	mem := memory.NewStore(db)
	rev := review.NewReviewer(alerts, completer, mem, cfg.Agent.MaxAlertsPerReview, cfg.Agent.ReviewBackoff())

	return &Runtime{
		cfg:        cfg,
		alerts:     alerts,
		memory:     mem,
		dispatcher: d,
		reviewer:   rev,
	}
}

// Start fires one immediate review cycle and one immediate retry sweep,
// then arms the two periodic timers. Calling Start while running is a
// no-op. The returned function is Stop.
func (r *Runtime) Start() (stop func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		log.Printf("[scheduler] already running, start ignored")
		return r.Stop
	}

	go r.reviewCycle()
	go r.retrySweep()

	c := rcron.New()
	c.Schedule(rcron.Every(r.cfg.Agent.ReviewInterval()), rcron.FuncJob(r.reviewCycle))
	c.Schedule(rcron.Every(r.cfg.Agent.RetryInterval()), rcron.FuncJob(r.retrySweep))
	c.Start()
	r.cron = c

	log.Printf("[scheduler] started (review every %s, retry every %s)",
		r.cfg.Agent.ReviewInterval(), r.cfg.Agent.RetryInterval())
	return r.Stop
}

// Stop cancels future cycles. In-flight work runs to completion; Stop is
// idempotent and safe to call before Start.
func (r *Runtime) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return
	}

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Printf("[scheduler] stop timeout waiting for running cycles")
	}
	log.Printf("[scheduler] stopped")
}

func (r *Runtime) reviewCycle() {
	if err := r.reviewer.ReviewAlerts(context.Background()); err != nil {
		log.Printf("[scheduler] review cycle: %v", err)
	}
}

func (r *Runtime) retrySweep() {
	r.dispatcher.RetryFailed(context.Background(), r.cfg.Agent.RetryBatchLimit)
}

// Enqueue captures a runtime event into the alert queue and triggers
// best-effort delivery.
func (r *Runtime) Enqueue(a alert.Alert) alert.Alert {
	return r.alerts.Enqueue(a)
}

// Alerts returns the persisted alert collection.
func (r *Runtime) Alerts() ([]alert.Alert, error) {
	return r.alerts.ReadAlerts()
}

// Memory returns a read-only snapshot of the agent memory.
func (r *Runtime) Memory() (memory.AgentMemory, error) {
	return r.memory.Memory()
}

// ResetMemory restores the agent memory to its default value.
func (r *Runtime) ResetMemory() error {
	return r.memory.Reset()
}

// UpdateConsents merges a partial consent update; revoking preference
// memory resets the stored state.
func (r *Runtime) UpdateConsents(u memory.ConsentUpdate) error {
	return r.memory.UpdateConsents(u)
}
