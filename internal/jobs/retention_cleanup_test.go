package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCleaner struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakeCleaner) DeleteIdleBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

func TestRetentionCleanupJob_CutoffRespectsRetentionDays(t *testing.T) {
	cleaner := &fakeCleaner{deleted: 3}
	job := NewRetentionCleanupJob(cleaner, 30)

	before := time.Now().UTC().AddDate(0, 0, -30)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	after := time.Now().UTC().AddDate(0, 0, -30)

	if cleaner.cutoff.Before(before) || cleaner.cutoff.After(after) {
		t.Errorf("cutoff %v not within expected 30-day window [%v, %v]", cleaner.cutoff, before, after)
	}
}

func TestRetentionCleanupJob_PropagatesError(t *testing.T) {
	cleaner := &fakeCleaner{err: errors.New("mongo down")}
	job := NewRetentionCleanupJob(cleaner, 7)

	if err := job.Run(context.Background()); err == nil {
		t.Error("expected cleanup error to propagate")
	}
}
