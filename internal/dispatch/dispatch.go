// Package dispatch owns outbound alert delivery and the persisted
// failed-dispatch collection.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/praxislegal/sentinel/internal/alert"
	"github.com/praxislegal/sentinel/internal/store"
)

// Notifier delivers one alert payload to a human-facing channel.
type Notifier interface {
	Deliver(ctx context.Context, p Payload) error
}

// Payload is the delivery form of an alert: the fields a notification
// channel renders, nothing more.
type Payload struct {
	AlertID   string    `json:"alertId"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func PayloadFrom(a alert.Alert) Payload {
	return Payload{
		AlertID:   a.ID,
		Type:      a.Type,
		Severity:  a.Severity,
		Title:     a.Title,
		Message:   a.Message,
		URL:       a.Details.URL,
		CreatedAt: a.CreatedAt,
	}
}

// FailedDispatch is a payload whose last delivery attempt did not succeed
// and has not yet been retried successfully.
type FailedDispatch struct {
	Payload       Payload   `json:"payload"`
	FailureReason string    `json:"failureReason"`
	FailureTime   time.Time `json:"failureTime"`
}

// Dispatcher serializes delivery of alert payloads through a single queue
// goroutine, throttled by a fixed inter-item delay.
type Dispatcher struct {
	db        *store.Store
	notifier  Notifier
	delay     time.Duration
	maxFailed int

	mu      sync.Mutex
	queue   []Payload
	running bool

	// failedMu serializes all read-modify-write access to the
	// failed-dispatch collection, so the queue goroutine and the retry
	// sweep never interleave on the same key.
	failedMu sync.Mutex
}

// New creates a Dispatcher. delay is the pause between deliveries (rate
// limit courtesy to the downstream channel); maxFailed bounds the failed
// collection, oldest evicted first.
func New(db *store.Store, notifier Notifier, delay time.Duration, maxFailed int) *Dispatcher {
	return &Dispatcher{db: db, notifier: notifier, delay: delay, maxFailed: maxFailed}
}

// Send enqueues the alert's payload and starts the queue goroutine if it is
// not already running. Overlapping calls are no-ops beyond enqueueing.
func (d *Dispatcher) Send(a alert.Alert) {
	d.mu.Lock()
	d.queue = append(d.queue, PayloadFrom(a))
	if !d.running {
		d.running = true
		go d.processQueue()
	}
	d.mu.Unlock()
}

func (d *Dispatcher) processQueue() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.running = false
			d.mu.Unlock()
			return
		}
		p := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		if err := d.notifier.Deliver(context.Background(), p); err != nil {
			log.Printf("[dispatch] deliver %s failed: %v", p.AlertID, err)
			d.recordFailure(p, err)
		}

		time.Sleep(d.delay)
	}
}

func (d *Dispatcher) recordFailure(p Payload, cause error) {
	d.failedMu.Lock()
	defer d.failedMu.Unlock()

	failed, err := d.readFailed()
	if err != nil {
		log.Printf("[dispatch] read failed collection: %v", err)
		failed = nil
	}
	failed = append(failed, FailedDispatch{
		Payload:       p,
		FailureReason: cause.Error(),
		FailureTime:   time.Now().UTC(),
	})
	if d.maxFailed > 0 && len(failed) > d.maxFailed {
		failed = failed[len(failed)-d.maxFailed:]
	}
	if err := d.writeFailed(failed); err != nil {
		log.Printf("[dispatch] persist failed collection: %v", err)
	}
}

// RetryFailed attempts redelivery for at most limit entries of the failed
// collection, in stored order. Entries that succeed are removed; the rest
// keep their original relative order. Returns the number resent. Safe to
// call against an empty collection.
func (d *Dispatcher) RetryFailed(ctx context.Context, limit int) int {
	d.failedMu.Lock()
	defer d.failedMu.Unlock()

	failed, err := d.readFailed()
	if err != nil {
		log.Printf("[dispatch] read failed collection: %v", err)
		return 0
	}
	if len(failed) == 0 {
		return 0
	}
	if limit <= 0 || limit > len(failed) {
		limit = len(failed)
	}

	remaining := make([]FailedDispatch, 0, len(failed))
	resent := 0
	for i, f := range failed {
		if i >= limit {
			remaining = append(remaining, f)
			continue
		}
		if err := d.notifier.Deliver(ctx, f.Payload); err != nil {
			log.Printf("[dispatch] retry %s failed: %v", f.Payload.AlertID, err)
			remaining = append(remaining, f)
			continue
		}
		resent++
	}

	if resent > 0 {
		if err := d.writeFailed(remaining); err != nil {
			log.Printf("[dispatch] persist failed collection after retry: %v", err)
		}
		log.Printf("[dispatch] retry sweep resent %d of %d attempted", resent, limit)
	}
	return resent
}

// FailedCount reports the current size of the failed collection.
func (d *Dispatcher) FailedCount() (int, error) {
	d.failedMu.Lock()
	defer d.failedMu.Unlock()

	failed, err := d.readFailed()
	if err != nil {
		return 0, err
	}
	return len(failed), nil
}

func (d *Dispatcher) readFailed() ([]FailedDispatch, error) {
	data, ok, err := d.db.Read(store.KeyFailedDispatch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var failed []FailedDispatch
	if err := json.Unmarshal(data, &failed); err != nil {
		return nil, fmt.Errorf("decode failed collection: %w", err)
	}
	return failed, nil
}

func (d *Dispatcher) writeFailed(failed []FailedDispatch) error {
	data, err := json.Marshal(failed)
	if err != nil {
		return err
	}
	return d.db.Write(store.KeyFailedDispatch, data)
}
