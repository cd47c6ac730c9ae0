package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Agent.ReviewIntervalMs != DefaultReviewIntervalMs {
		t.Errorf("ReviewIntervalMs = %d, want %d", cfg.Agent.ReviewIntervalMs, DefaultReviewIntervalMs)
	}
	if cfg.Agent.MaxFailedDispatches != 50 {
		t.Errorf("MaxFailedDispatches = %d, want 50", cfg.Agent.MaxFailedDispatches)
	}
	if cfg.Agent.RetryBatchLimit != 10 {
		t.Errorf("RetryBatchLimit = %d, want 10", cfg.Agent.RetryBatchLimit)
	}
	if cfg.Store.QuotaBytes != DefaultStoreQuotaBytes {
		t.Errorf("QuotaBytes = %d, want %d", cfg.Store.QuotaBytes, DefaultStoreQuotaBytes)
	}
}

func TestApplyDefaultsBackfillsZeroes(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Agent.ReviewIntervalMs != DefaultReviewIntervalMs {
		t.Errorf("ReviewIntervalMs = %d, want %d", cfg.Agent.ReviewIntervalMs, DefaultReviewIntervalMs)
	}
	if cfg.Agent.ReviewBackoffMs != DefaultReviewBackoffMs {
		t.Errorf("ReviewBackoffMs = %d, want %d", cfg.Agent.ReviewBackoffMs, DefaultReviewBackoffMs)
	}
	if cfg.Provider.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", cfg.Provider.Model, DefaultModel)
	}
	if cfg.Store.Path == "" {
		t.Error("Store.Path should be backfilled")
	}
}

func TestIntervalHelpers(t *testing.T) {
	a := AgentConfig{ReviewIntervalMs: 1500, RetryIntervalMs: 250, ReviewBackoffMs: 60000, DispatchDelayMs: 1000}
	if got := a.ReviewInterval().Milliseconds(); got != 1500 {
		t.Errorf("ReviewInterval = %dms, want 1500", got)
	}
	if got := a.RetryInterval().Milliseconds(); got != 250 {
		t.Errorf("RetryInterval = %dms, want 250", got)
	}
	if got := a.ReviewBackoff().Minutes(); got != 1 {
		t.Errorf("ReviewBackoff = %vmin, want 1", got)
	}
	if got := a.DispatchDelay().Seconds(); got != 1 {
		t.Errorf("DispatchDelay = %vs, want 1", got)
	}
}
