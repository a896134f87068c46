// Package store persists policies, profiles, score snapshots, and
// notifications in Postgres.
package store

import (
	"context"
	"time"

	"github.com/covergrid/portfolio-cli/internal/model"
)

// Store defines the persistence interface for the scoring engine. Snapshot
// and notification writes are append-only; no update or delete is exposed.
type Store interface {
	// Policies and profiles (owned by the CRM; read-only here, plus bulk import)
	ListScoringUserIDs(ctx context.Context) ([]string, error)
	ListActivePolicies(ctx context.Context, userID string) ([]model.PolicyRecord, error)
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	ListProfiles(ctx context.Context, userIDs []string) (map[string]model.UserProfile, error)
	ImportPolicies(ctx context.Context, policies []model.PolicyRecord) (int64, error)
	ImportProfiles(ctx context.Context, profiles []model.UserProfile) (int64, error)

	// Snapshots
	AppendSnapshot(ctx context.Context, snap *model.PerformanceSnapshot) error
	LatestSnapshotBefore(ctx context.Context, userID string, before time.Time) (*model.PerformanceSnapshot, error)
	LatestSnapshotPerUser(ctx context.Context) (map[string]model.PerformanceSnapshot, error)

	// Notifications
	NotificationExistsWithinWindow(ctx context.Context, userID string, typ model.NotificationType, dedupKey string, windowDays int) (bool, error)
	AppendNotification(ctx context.Context, event *model.NotificationEvent) error

	// Batch run log
	StartRun(ctx context.Context) (int64, error)
	CompleteRun(ctx context.Context, runID int64, result model.BatchResult) error
	FailRun(ctx context.Context, runID int64, cause error) error
	RecentRuns(ctx context.Context, limit int) ([]RunEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// RunEntry is one row of the batch run log.
type RunEntry struct {
	ID             int64      `json:"id"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	UsersProcessed int        `json:"users_processed"`
	AlertsCreated  int        `json:"alerts_created"`
	UsersSkipped   int        `json:"users_skipped"`
	UsersFailed    int        `json:"users_failed"`
	Error          string     `json:"error,omitempty"`
}
