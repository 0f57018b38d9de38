package jobs

import (
	"context"
	"log"
	"time"
)

// ChatCleaner deletes conversations idle since before a cutoff.
type ChatCleaner interface {
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionCleanupJob deletes conversations that have been idle longer than
// the configured retention window, together with their cached web context.
type RetentionCleanupJob struct {
	chats         ChatCleaner
	retentionDays int
}

// NewRetentionCleanupJob creates the cleanup job.
func NewRetentionCleanupJob(chats ChatCleaner, retentionDays int) *RetentionCleanupJob {
	return &RetentionCleanupJob{
		chats:         chats,
		retentionDays: retentionDays,
	}
}

// Run deletes all chats whose last update predates the retention window.
func (j *RetentionCleanupJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -j.retentionDays)
	log.Printf("[RETENTION] Deleting chats idle since before %s", cutoff.Format(time.RFC3339))

	deleted, err := j.chats.DeleteIdleBefore(ctx, cutoff)
	if err != nil {
		log.Printf("[RETENTION] Cleanup failed: %v", err)
		return err
	}

	log.Printf("[RETENTION] Deleted %d idle chats", deleted)
	return nil
}
