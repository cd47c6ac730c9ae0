package memory

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/praxislegal/sentinel/internal/store"
)

// Store owns all writes to the persisted AgentMemory singleton.
type Store struct {
	db *store.Store
	mu sync.Mutex
}

func NewStore(db *store.Store) *Store {
	return &Store{db: db}
}

// Memory returns a read-only snapshot of the persisted state. An absent
// record reads as the default value.
func (s *Store) Memory() (AgentMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mem, err := s.load()
	if err != nil {
		return AgentMemory{}, err
	}
	return mem.clone(), nil
}

// UpdateFromLearnings merges accepted signals from one extraction into the
// persisted memory. It is a complete no-op when the candidate is nil or
// preference memory is not consented.
func (s *Store) UpdateFromLearnings(c *LearningsCandidate) error {
	if c == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mem, err := s.load()
	if err != nil {
		return err
	}
	if !mem.Consents.RememberPreferences {
		log.Printf("[memory] learnings dropped: preference memory not consented")
		return nil
	}

	for _, pref := range c.ObservedPreferences {
		if pref.DurabilityDays < DurabilityThresholdDays {
			continue
		}
		applyPreference(&mem, pref)
	}

	for _, task := range c.RepeatedTasks {
		upsertShortcut(&mem, task)
	}

	if len(c.Corrections) > 0 {
		entry := time.Now().UTC().Format("2006-01-02") + ": " + strings.Join(c.Corrections, "; ")
		mem.HistoryDigest = append(mem.HistoryDigest, entry)
		if len(mem.HistoryDigest) > HistoryDigestCap {
			mem.HistoryDigest = mem.HistoryDigest[len(mem.HistoryDigest)-HistoryDigestCap:]
		}
	}

	return s.persist(mem)
}

// ConsentUpdate is a partial merge into Consents; nil fields are untouched.
type ConsentUpdate struct {
	RememberPreferences *bool
	StoreEmails         *bool
}

// UpdateConsents merges the partial update. Revoking remember_preferences
// discards all preferences, shortcuts, and history immediately (a
// right-to-be-forgotten action) while keeping the merged consent flags.
func (s *Store) UpdateConsents(u ConsentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, err := s.load()
	if err != nil {
		return err
	}

	if u.RememberPreferences != nil {
		mem.Consents.RememberPreferences = *u.RememberPreferences
	}
	if u.StoreEmails != nil {
		mem.Consents.StoreEmails = *u.StoreEmails
	}

	if !mem.Consents.RememberPreferences {
		consents := mem.Consents
		mem = DefaultMemory()
		mem.Consents = consents
		log.Printf("[memory] preference memory revoked, state reset")
	}

	return s.persist(mem)
}

// Reset restores AgentMemory to its default value and persists.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(DefaultMemory())
}

func applyPreference(mem *AgentMemory, pref ObservedPreference) {
	ns, sub, ok := strings.Cut(pref.Key, ".")
	if !ok {
		return
	}
	switch ns {
	case "defaults":
		mem.Defaults[sub] = asString(pref.Value)
	case "persona":
		switch sub {
		case "tone":
			tone := asString(pref.Value)
			if tone == ToneConcise || tone == ToneVerbose || tone == ToneBalanced {
				mem.Persona.Tone = tone
			}
		case "prefers_no_filler":
			if b, ok := asBool(pref.Value); ok {
				mem.Persona.PrefersNoFiller = b
			}
		case "confirmation_threshold":
			if f, ok := asFloat(pref.Value); ok && f >= 0 && f <= 1 {
				mem.Persona.ConfirmationThreshold = f
			}
		}
	default:
		// Unknown namespaces are ignored, not an error.
	}
}

func upsertShortcut(mem *AgentMemory, task Shortcut) {
	if task.Name == "" {
		return
	}
	for i := range mem.Shortcuts {
		if mem.Shortcuts[i].Name != task.Name {
			continue
		}
		mem.Shortcuts[i].Steps = append([]string(nil), task.Steps...)
		mem.Shortcuts[i].TriggerPhrases = unionPhrases(mem.Shortcuts[i].TriggerPhrases, task.TriggerPhrases)
		return
	}
	mem.Shortcuts = append(mem.Shortcuts, Shortcut{
		Name:           task.Name,
		TriggerPhrases: unionPhrases(nil, task.TriggerPhrases),
		Steps:          append([]string(nil), task.Steps...),
	})
}

// unionPhrases merges new phrases into existing ones, preserving existing
// order and dropping duplicates.
func unionPhrases(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, p := range existing {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range incoming {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprint(v)
	}
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(t)
		return b, err == nil
	default:
		return false, false
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (s *Store) load() (AgentMemory, error) {
	data, ok, err := s.db.Read(store.KeyAgentMemory)
	if err != nil {
		return AgentMemory{}, err
	}
	if !ok {
		return DefaultMemory(), nil
	}
	mem := DefaultMemory()
	if err := json.Unmarshal(data, &mem); err != nil {
		return AgentMemory{}, fmt.Errorf("decode agent memory: %w", err)
	}
	if mem.Defaults == nil {
		mem.Defaults = DefaultMemory().Defaults
	}
	return mem, nil
}

func (s *Store) persist(mem AgentMemory) error {
	mem.LastUpdatedISO = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(mem)
	if err != nil {
		return err
	}
	if err := s.db.Write(store.KeyAgentMemory, data); err != nil {
		return fmt.Errorf("persist agent memory: %w", err)
	}
	return nil
}
