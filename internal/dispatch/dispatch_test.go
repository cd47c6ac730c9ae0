package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/praxislegal/sentinel/internal/alert"
	"github.com/praxislegal/sentinel/internal/store"
)

type mockNotifier struct {
	mu        sync.Mutex
	delivered []Payload
	failIDs   map[string]bool

	inFlight    int32
	maxInFlight int32
}

func (m *mockNotifier) Deliver(ctx context.Context, p Payload) error {
	cur := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		max := atomic.LoadInt32(&m.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&m.maxInFlight, max, cur) {
			break
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[p.AlertID] {
		return errors.New("simulated delivery failure")
	}
	m.delivered = append(m.delivered, p)
	return nil
}

func (m *mockNotifier) deliveredIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.delivered))
	for i, p := range m.delivered {
		ids[i] = p.AlertID
	}
	return ids
}

func newTestDispatcher(t *testing.T, n Notifier, maxFailed int) *Dispatcher {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "sentinel.db"), 0)
	if err != nil {
		t.Fatalf("store.Open error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, n, time.Millisecond, maxFailed)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSendDeliversQueuedAlerts(t *testing.T) {
	n := &mockNotifier{}
	d := newTestDispatcher(t, n, 50)

	for i := 0; i < 3; i++ {
		d.Send(alert.Alert{ID: fmt.Sprintf("a%d", i), Title: "t", Severity: alert.SeverityHigh})
	}

	waitFor(t, func() bool { return len(n.deliveredIDs()) == 3 })

	if got := n.deliveredIDs(); got[0] != "a0" || got[1] != "a1" || got[2] != "a2" {
		t.Errorf("delivery order = %v, want [a0 a1 a2]", got)
	}
	if max := atomic.LoadInt32(&n.maxInFlight); max > 1 {
		t.Errorf("max in-flight deliveries = %d, want 1 (queue must not run reentrantly)", max)
	}
}

func TestFailedDeliveryRecorded(t *testing.T) {
	n := &mockNotifier{failIDs: map[string]bool{"bad": true}}
	d := newTestDispatcher(t, n, 50)

	d.Send(alert.Alert{ID: "bad", Title: "down"})
	d.Send(alert.Alert{ID: "good", Title: "up"})

	waitFor(t, func() bool {
		count, _ := d.FailedCount()
		return count == 1 && len(n.deliveredIDs()) == 1
	})

	failed, err := d.readFailed()
	if err != nil {
		t.Fatalf("readFailed error: %v", err)
	}
	if failed[0].Payload.AlertID != "bad" {
		t.Errorf("failed payload = %q, want bad", failed[0].Payload.AlertID)
	}
	if failed[0].FailureReason == "" {
		t.Error("failureReason should be recorded")
	}
	if failed[0].FailureTime.IsZero() {
		t.Error("failureTime should be recorded")
	}
}

func TestFailedCollectionBounded(t *testing.T) {
	n := &mockNotifier{failIDs: map[string]bool{}}
	d := newTestDispatcher(t, n, 3)

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("f%d", i)
		n.mu.Lock()
		n.failIDs[id] = true
		n.mu.Unlock()
		d.Send(alert.Alert{ID: id})
	}

	// The collection hits 3 entries before f3 and f4 are processed, so wait
	// for the last failure to land rather than for the count alone.
	waitFor(t, func() bool {
		failed, err := d.readFailed()
		return err == nil && len(failed) == 3 && failed[2].Payload.AlertID == "f4"
	})

	failed, _ := d.readFailed()
	// Oldest evicted first: f0 and f1 are gone.
	want := []string{"f2", "f3", "f4"}
	for i, f := range failed {
		if f.Payload.AlertID != want[i] {
			t.Errorf("failed[%d] = %q, want %q", i, f.Payload.AlertID, want[i])
		}
	}
}

func seedFailed(t *testing.T, d *Dispatcher, ids ...string) {
	t.Helper()
	failed := make([]FailedDispatch, len(ids))
	for i, id := range ids {
		failed[i] = FailedDispatch{
			Payload:       Payload{AlertID: id},
			FailureReason: "seeded",
			FailureTime:   time.Now().UTC(),
		}
	}
	if err := d.writeFailed(failed); err != nil {
		t.Fatalf("writeFailed error: %v", err)
	}
}

func TestRetryFailedBoundedSweep(t *testing.T) {
	n := &mockNotifier{}
	d := newTestDispatcher(t, n, 50)
	seedFailed(t, d, "r0", "r1", "r2", "r3", "r4")

	resent := d.RetryFailed(context.Background(), 2)
	if resent != 2 {
		t.Errorf("resent = %d, want 2", resent)
	}

	failed, _ := d.readFailed()
	want := []string{"r2", "r3", "r4"}
	if len(failed) != len(want) {
		t.Fatalf("len(failed) = %d, want %d", len(failed), len(want))
	}
	for i, f := range failed {
		if f.Payload.AlertID != want[i] {
			t.Errorf("failed[%d] = %q, want %q (relative order must be preserved)", i, f.Payload.AlertID, want[i])
		}
	}
}

func TestRetryFailedPartialSuccess(t *testing.T) {
	n := &mockNotifier{failIDs: map[string]bool{"r0": true}}
	d := newTestDispatcher(t, n, 50)
	seedFailed(t, d, "r0", "r1", "r2")

	resent := d.RetryFailed(context.Background(), 2)
	if resent != 1 {
		t.Errorf("resent = %d, want 1", resent)
	}

	failed, _ := d.readFailed()
	want := []string{"r0", "r2"}
	if len(failed) != len(want) {
		t.Fatalf("len(failed) = %d, want %d", len(failed), len(want))
	}
	for i, f := range failed {
		if f.Payload.AlertID != want[i] {
			t.Errorf("failed[%d] = %q, want %q", i, f.Payload.AlertID, want[i])
		}
	}
}

func TestRetryFailedEmptyCollection(t *testing.T) {
	n := &mockNotifier{}
	d := newTestDispatcher(t, n, 50)

	if resent := d.RetryFailed(context.Background(), 10); resent != 0 {
		t.Errorf("resent = %d, want 0", resent)
	}
}
