package alert

import (
	"encoding/json"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/praxislegal/sentinel/internal/store"
)

// Store owns the persisted alert collection. Reads and writes are
// whole-collection read-modify-write against a single store key; the
// reviewer and the enqueue path are the only writers.
type Store struct {
	db *store.Store
	mu sync.Mutex

	// OnEnqueue is invoked asynchronously after each successful enqueue,
	// typically to hand the alert to the dispatcher.
	OnEnqueue func(Alert)
}

func NewStore(db *store.Store) *Store {
	return &Store{db: db}
}

// Enqueue appends an alert to the collection. Missing identity and
// timestamp fields are filled in; the alert is never rejected. Delivery is
// triggered asynchronously via OnEnqueue.
func (s *Store) Enqueue(a Alert) Alert {
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Severity == "" {
		a.Severity = SeverityMedium
	}
	if a.Status == "" {
		a.Status = StatusOpen
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	s.mu.Lock()
	alerts, err := s.ReadAlerts()
	if err != nil {
		// Persisting now would replace the stored collection with just this
		// alert. Leave the stored bytes untouched; delivery still proceeds.
		log.Printf("[alerts] read before enqueue failed, alert not persisted: %v", err)
	} else {
		alerts = append(alerts, a)
		s.WriteAlerts(alerts)
	}
	s.mu.Unlock()

	if s.OnEnqueue != nil {
		go s.OnEnqueue(a)
	}
	return a
}

// ReadAlerts returns the persisted collection. An absent key is an empty
// collection, not an error.
func (s *Store) ReadAlerts() ([]Alert, error) {
	data, ok, err := s.db.Read(store.KeyAlerts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var alerts []Alert
	if err := json.Unmarshal(data, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// WriteAlerts persists the whole collection. On storage-quota exhaustion it
// performs exactly one remediation attempt: drop the single oldest alert by
// created_at (or empty the list if only one remained) and retry. A second
// failure abandons the write with a diagnostic; failures never propagate.
func (s *Store) WriteAlerts(alerts []Alert) {
	if err := s.write(alerts); err == nil {
		return
	} else if !errors.Is(err, store.ErrQuotaExceeded) {
		log.Printf("[alerts] write failed: %v", err)
		return
	}

	pruned := pruneOldest(alerts)
	log.Printf("[alerts] store quota exceeded, pruned oldest alert (%d -> %d)", len(alerts), len(pruned))
	if err := s.write(pruned); err != nil {
		log.Printf("[alerts] write abandoned after prune retry: %v", err)
	}
}

func (s *Store) write(alerts []Alert) error {
	data, err := json.Marshal(alerts)
	if err != nil {
		return err
	}
	return s.db.Write(store.KeyAlerts, data)
}

// pruneOldest returns the list without its earliest-created entry. A
// single-element list becomes empty.
func pruneOldest(alerts []Alert) []Alert {
	if len(alerts) <= 1 {
		return []Alert{}
	}
	sorted := make([]Alert, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted[1:]
}
