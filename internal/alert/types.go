package alert

import "time"

// Severity of a captured runtime event.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Display-facing lifecycle status. Resolution is driven by a human in the
// host application's UI, never by this agent.
const (
	StatusOpen          = "open"
	StatusInvestigating = "investigating"
	StatusResolved      = "resolved"
	StatusDismissed     = "dismissed"
)

// AIReview state. Completed is terminal: once a review completes, no
// component may move the alert back to pending or failed.
const (
	ReviewPending   = "pending"
	ReviewCompleted = "completed"
	ReviewFailed    = "failed"
)

// Details is the opaque structured payload captured with an alert.
type Details struct {
	URL       string         `json:"url,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Stack     string         `json:"stack,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Note is one entry in an alert's append-only note list.
type Note struct {
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// AIReview records the outcome of the reviewer's diagnostic pass over one
// alert. The reviewer is the only writer of this field.
type AIReview struct {
	Status      string    `json:"status"`
	Provider    string    `json:"provider,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	LastAttempt time.Time `json:"lastAttempt,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Alert is an observed runtime event awaiting triage.
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Details   Details   `json:"details"`
	Status    string    `json:"status"`
	Notes     []Note    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	AIReview  *AIReview `json:"aiReview,omitempty"`
}

// AppendNote adds a note to the alert and bumps updated_at.
func (a *Alert) AppendNote(text, author string, now time.Time) {
	a.Notes = append(a.Notes, Note{Text: text, Author: author, Timestamp: now})
	a.UpdatedAt = now
}
