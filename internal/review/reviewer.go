// Package review implements the bounded-batch AI diagnostic pass over
// pending alerts.
package review

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/praxislegal/sentinel/internal/alert"
	"github.com/praxislegal/sentinel/internal/memory"
)

const diagnosticPrompt = `You are the on-call diagnostic assistant for a legal-practice web application.
Analyze the runtime alert below. Explain the likely root cause and the next
investigative step, in a few short sentences.

If the alert reveals a durable user or operator preference, append after your
answer a line containing exactly %s followed by a JSON object:
{"observed_preferences":[{"key":"defaults.<name>","value":...,"durability_days":N}],
"corrections":[...],"repeated_tasks":[{"name":...,"trigger_phrases":[...],"steps":[...]}],
"failures_and_fixes":[...],"suggestions_to_lock_in":[...],"redact_notes":[...]}
Omit the block entirely when there is nothing durable to record.

Alert:
%s`

// NoteAuthor is recorded on notes the reviewer appends.
const NoteAuthor = "sentinel"

// ShouldRetryReview decides whether an alert is eligible for (re)review.
// Pure policy:
//   - never reviewed: eligible
//   - completed: never eligible again
//   - pending/failed with no recorded attempt: eligible
//   - otherwise: eligible once the flat backoff window has elapsed
func ShouldRetryReview(r *alert.AIReview, now time.Time, backoff time.Duration) bool {
	if r == nil {
		return true
	}
	if r.Status == alert.ReviewCompleted {
		return false
	}
	if r.LastAttempt.IsZero() {
		return true
	}
	return now.Sub(r.LastAttempt) > backoff
}

// Reviewer runs diagnostic batches against the alert store. One instance
// reviews at a time; an overlapping invocation is a logged skip, not an
// error.
type Reviewer struct {
	alerts    *alert.Store
	completer Completer
	memory    *memory.Store

	maxPerReview int
	backoff      time.Duration

	reviewing atomic.Bool
}

func NewReviewer(alerts *alert.Store, completer Completer, mem *memory.Store, maxPerReview int, backoff time.Duration) *Reviewer {
	return &Reviewer{
		alerts:       alerts,
		completer:    completer,
		memory:       mem,
		maxPerReview: maxPerReview,
		backoff:      backoff,
	}
}

// ReviewAlerts runs one review cycle: filter eligible alerts, diagnose up
// to the batch cap, and persist the collection once afterwards. A single
// alert's failure never aborts the batch.
func (r *Reviewer) ReviewAlerts(ctx context.Context) error {
	if !r.reviewing.CompareAndSwap(false, true) {
		log.Printf("[review] cycle already in progress, skipping")
		return nil
	}
	defer r.reviewing.Store(false)

	alerts, err := r.alerts.ReadAlerts()
	if err != nil {
		return fmt.Errorf("read alerts: %w", err)
	}

	reviewed := 0
	for i := range alerts {
		if reviewed >= r.maxPerReview {
			break
		}
		if !ShouldRetryReview(alerts[i].AIReview, time.Now(), r.backoff) {
			continue
		}
		reviewed++
		r.reviewOne(ctx, &alerts[i])
	}

	if reviewed > 0 {
		r.alerts.WriteAlerts(alerts)
		log.Printf("[review] cycle reviewed %d alert(s)", reviewed)
	}
	return nil
}

func (r *Reviewer) reviewOne(ctx context.Context, a *alert.Alert) {
	now := time.Now().UTC()
	a.AIReview = &alert.AIReview{Status: alert.ReviewPending, LastAttempt: now}

	comp, err := r.completer.Complete(ctx, buildPrompt(*a))
	if err != nil {
		log.Printf("[review] alert %s diagnostic failed: %v", a.ID, err)
		a.AIReview = &alert.AIReview{
			Status:      alert.ReviewFailed,
			LastAttempt: now,
			Error:       err.Error(),
		}
		return
	}

	cleaned := memory.CleanResponse(comp.Text)
	a.AIReview = &alert.AIReview{
		Status:      alert.ReviewCompleted,
		Provider:    comp.Provider,
		Summary:     cleaned,
		LastAttempt: now,
	}
	a.AppendNote("[AI Review] "+cleaned, NoteAuthor, now)

	if cand := memory.ExtractLearnings(comp.Text); cand != nil {
		if err := r.memory.UpdateFromLearnings(cand); err != nil {
			log.Printf("[review] learnings merge failed: %v", err)
		}
	}
}

func buildPrompt(a alert.Alert) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "title: %s\nseverity: %s\nmessage: %s\n", a.Title, a.Severity, a.Message)
	if a.Details.URL != "" {
		fmt.Fprintf(&sb, "url: %s\n", a.Details.URL)
	}
	if a.Details.UserAgent != "" {
		fmt.Fprintf(&sb, "user-agent: %s\n", a.Details.UserAgent)
	}
	if a.Details.Stack != "" {
		fmt.Fprintf(&sb, "stack:\n%s\n", a.Details.Stack)
	}
	return fmt.Sprintf(diagnosticPrompt, memory.LearningsMarker, sb.String())
}
