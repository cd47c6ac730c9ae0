package memory

// Persona tone values.
const (
	ToneConcise  = "concise"
	ToneVerbose  = "verbose"
	ToneBalanced = "balanced"
)

// DefaultExportFormat is the documented default for defaults.export_format.
const DefaultExportFormat = "PDF"

// DurabilityThresholdDays is the minimum claimed relevance period an
// observed preference must declare before it is persisted. Signals below
// it are treated as one-off and dropped.
const DurabilityThresholdDays = 30

// HistoryDigestCap bounds the rolling history digest, oldest evicted first.
const HistoryDigestCap = 10

// Persona captures how the agent should talk to this user.
type Persona struct {
	Tone                  string  `json:"tone"`
	PrefersNoFiller       bool    `json:"prefers_no_filler"`
	ConfirmationThreshold float64 `json:"confirmation_threshold"`
}

// Shortcut is a named repeatable task template.
type Shortcut struct {
	Name           string   `json:"name"`
	TriggerPhrases []string `json:"trigger_phrases"`
	Steps          []string `json:"steps"`
}

// Consents gates what the agent is allowed to remember. When
// RememberPreferences is false the whole memory is held at its default
// value via reset, not by suppressing reads.
type Consents struct {
	RememberPreferences bool `json:"remember_preferences"`
	StoreEmails         bool `json:"store_emails"`
}

// AgentMemory is the durable cross-session preference state, a singleton
// per store.
type AgentMemory struct {
	Persona        Persona           `json:"persona"`
	Defaults       map[string]string `json:"defaults"`
	Shortcuts      []Shortcut        `json:"shortcuts,omitempty"`
	Avoid          []string          `json:"avoid,omitempty"`
	Blacklist      []string          `json:"blacklist,omitempty"`
	Consents       Consents          `json:"consents"`
	HistoryDigest  []string          `json:"history_digest,omitempty"`
	LastUpdatedISO string            `json:"last_updated_iso,omitempty"`
}

// DefaultMemory returns the documented default value of AgentMemory.
func DefaultMemory() AgentMemory {
	return AgentMemory{
		Persona: Persona{
			Tone:                  ToneBalanced,
			ConfirmationThreshold: 0.5,
		},
		Defaults: map[string]string{
			"export_format": DefaultExportFormat,
		},
		Consents: Consents{
			RememberPreferences: true,
		},
	}
}

// clone returns a deep copy so snapshots handed to callers cannot alias
// the stored maps and slices.
func (m AgentMemory) clone() AgentMemory {
	out := m
	out.Defaults = make(map[string]string, len(m.Defaults))
	for k, v := range m.Defaults {
		out.Defaults[k] = v
	}
	out.Shortcuts = make([]Shortcut, len(m.Shortcuts))
	for i, s := range m.Shortcuts {
		out.Shortcuts[i] = Shortcut{
			Name:           s.Name,
			TriggerPhrases: append([]string(nil), s.TriggerPhrases...),
			Steps:          append([]string(nil), s.Steps...),
		}
	}
	out.Avoid = append([]string(nil), m.Avoid...)
	out.Blacklist = append([]string(nil), m.Blacklist...)
	out.HistoryDigest = append([]string(nil), m.HistoryDigest...)
	return out
}

// ObservedPreference is one preference signal extracted from an AI
// response. Key is dot-namespaced, e.g. "defaults.export_format" or
// "persona.tone".
type ObservedPreference struct {
	Key            string `json:"key"`
	Value          any    `json:"value"`
	DurabilityDays int    `json:"durability_days"`
}

// LearningsCandidate is the structured block extracted from one AI
// response. It is ephemeral: accepted signals are merged into AgentMemory,
// the candidate itself is never persisted.
type LearningsCandidate struct {
	ObservedPreferences []ObservedPreference `json:"observed_preferences,omitempty"`
	Corrections         []string             `json:"corrections,omitempty"`
	RepeatedTasks       []Shortcut           `json:"repeated_tasks,omitempty"`
	FailuresAndFixes    []string             `json:"failures_and_fixes,omitempty"`
	SuggestionsToLockIn []string             `json:"suggestions_to_lock_in,omitempty"`
	// RedactNotes is collected for parity with the extraction contract but
	// not yet acted on; retroactive scrubbing of persisted history is an
	// open question upstream.
	RedactNotes []string `json:"redact_notes,omitempty"`
}
