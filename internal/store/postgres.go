package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/covergrid/portfolio-cli/internal/config"
	"github.com/covergrid/portfolio-cli/internal/db"
	"github.com/covergrid/portfolio-cli/internal/model"
)

// Postgres implements Store using pgxpool.
type Postgres struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot batch-path operations.
var preparedStatements = map[string]string{
	"list_active_policies": `SELECT id, user_id, type, provider, premium, coverage, status, start_date, end_date FROM policies WHERE user_id = $1 AND status = 'active'`,
	"get_profile":          `SELECT user_id, date_of_birth FROM profiles WHERE user_id = $1`,
	"insert_snapshot":      `INSERT INTO snapshots (id, user_id, score, rating, premium_score, coverage_score, policy_score, total_premium, total_coverage, policy_count, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"latest_before":        `SELECT id, user_id, score, rating, premium_score, coverage_score, policy_score, total_premium, total_coverage, policy_count, created_at FROM snapshots WHERE user_id = $1 AND created_at < $2 ORDER BY created_at DESC LIMIT 1`,
	"notif_exists":         `SELECT EXISTS (SELECT 1 FROM notifications WHERE user_id = $1 AND type = $2 AND dedup_key = $3 AND created_at > $4)`,
	"insert_notification":  `INSERT INTO notifications (id, user_id, type, priority, title, message, target_link, dedup_key, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
}

// NewPostgres creates a Postgres store with a connection pool.
func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*Postgres, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Pool sizing from config with sensible defaults. The batch worker pool
	// is bounded separately; the connection cap is the hard limit.
	maxConns := int32(10)
	minConns := int32(2)
	if cfg.MaxConns > 0 {
		maxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		minConns = cfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &Postgres{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS policies (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL,
	type       TEXT NOT NULL,
	provider   TEXT NOT NULL DEFAULT '',
	premium    DOUBLE PRECISION NOT NULL,
	coverage   DOUBLE PRECISION NOT NULL,
	status     TEXT NOT NULL DEFAULT 'active',
	start_date TIMESTAMPTZ NOT NULL,
	end_date   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id       TEXT PRIMARY KEY,
	date_of_birth TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id        TEXT NOT NULL,
	score          INTEGER NOT NULL,
	rating         TEXT NOT NULL,
	premium_score  DOUBLE PRECISION NOT NULL,
	coverage_score DOUBLE PRECISION NOT NULL,
	policy_score   DOUBLE PRECISION NOT NULL,
	total_premium  DOUBLE PRECISION NOT NULL,
	total_coverage DOUBLE PRECISION NOT NULL,
	policy_count   INTEGER NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id     TEXT NOT NULL,
	type        TEXT NOT NULL,
	priority    TEXT NOT NULL,
	title       TEXT NOT NULL,
	message     TEXT NOT NULL,
	target_link TEXT NOT NULL DEFAULT '',
	dedup_key   TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS score_runs (
	id              BIGSERIAL PRIMARY KEY,
	status          TEXT NOT NULL DEFAULT 'running',
	started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at    TIMESTAMPTZ,
	users_processed INTEGER NOT NULL DEFAULT 0,
	alerts_created  INTEGER NOT NULL DEFAULT 0,
	users_skipped   INTEGER NOT NULL DEFAULT 0,
	users_failed    INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_policies_user_status ON policies(user_id, status);
CREATE INDEX IF NOT EXISTS idx_snapshots_user_created ON snapshots(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_dedup ON notifications(user_id, type, dedup_key, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_score_runs_started ON score_runs(started_at DESC);
`

func (s *Postgres) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *Postgres) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// ListScoringUserIDs returns the distinct users holding at least one
// non-cancelled policy, the eligible population for a batch pass.
func (s *Postgres) ListScoringUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT user_id FROM policies WHERE status <> 'cancelled' ORDER BY user_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scoring user ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan user id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate user ids")
	}
	return ids, nil
}

func (s *Postgres) ListActivePolicies(ctx context.Context, userID string) ([]model.PolicyRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, type, provider, premium, coverage, status, start_date, end_date FROM policies WHERE user_id = $1 AND status = 'active'`,
		userID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list active policies for %s", userID)
	}
	defer rows.Close()

	var policies []model.PolicyRecord
	for rows.Next() {
		var p model.PolicyRecord
		if err := rows.Scan(&p.ID, &p.UserID, &p.Type, &p.Provider, &p.Premium, &p.Coverage, &p.Status, &p.StartDate, &p.EndDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan policy")
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate policies")
	}
	return policies, nil
}

func (s *Postgres) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var p model.UserProfile
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, date_of_birth FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.DateOfBirth)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("profile not found: %s", userID)
		}
		return nil, eris.Wrapf(err, "postgres: get profile %s", userID)
	}
	return &p, nil
}

// ListProfiles fetches profiles for the given users. Missing users are
// simply absent from the result map.
func (s *Postgres) ListProfiles(ctx context.Context, userIDs []string) (map[string]model.UserProfile, error) {
	if len(userIDs) == 0 {
		return map[string]model.UserProfile{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, date_of_birth FROM profiles WHERE user_id = ANY($1)`,
		userIDs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list profiles")
	}
	defer rows.Close()

	out := make(map[string]model.UserProfile, len(userIDs))
	for rows.Next() {
		var p model.UserProfile
		if err := rows.Scan(&p.UserID, &p.DateOfBirth); err != nil {
			return nil, eris.Wrap(err, "postgres: scan profile")
		}
		out[p.UserID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate profiles")
	}
	return out, nil
}

// ImportPolicies bulk-loads policy records via COPY.
func (s *Postgres) ImportPolicies(ctx context.Context, policies []model.PolicyRecord) (int64, error) {
	rows := make([][]any, len(policies))
	for i, p := range policies {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows[i] = []any{id, p.UserID, string(p.Type), p.Provider, p.Premium, p.Coverage, string(p.Status), p.StartDate, p.EndDate}
	}
	return db.CopyFrom(ctx, s.pool, "policies",
		[]string{"id", "user_id", "type", "provider", "premium", "coverage", "status", "start_date", "end_date"},
		rows)
}

// ImportProfiles bulk-upserts profiles keyed by user id.
func (s *Postgres) ImportProfiles(ctx context.Context, profiles []model.UserProfile) (int64, error) {
	rows := make([][]any, len(profiles))
	for i, p := range profiles {
		rows[i] = []any{p.UserID, p.DateOfBirth}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "profiles",
		Columns:      []string{"user_id", "date_of_birth"},
		ConflictKeys: []string{"user_id"},
	}, rows)
}

// AppendSnapshot inserts a new snapshot. ID and CreatedAt are assigned here
// when unset; existing snapshots are never touched.
func (s *Postgres) AppendSnapshot(ctx context.Context, snap *model.PerformanceSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, user_id, score, rating, premium_score, coverage_score, policy_score, total_premium, total_coverage, policy_count, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		snap.ID, snap.UserID, snap.Score, string(snap.Rating),
		snap.PremiumScore, snap.CoverageScore, snap.PolicyScore,
		snap.TotalPremium, snap.TotalCoverage, snap.PolicyCount, snap.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: append snapshot for %s", snap.UserID)
	}
	return nil
}

// LatestSnapshotBefore returns the most recent snapshot strictly before the
// given instant, or nil when the user has no prior snapshot.
func (s *Postgres) LatestSnapshotBefore(ctx context.Context, userID string, before time.Time) (*model.PerformanceSnapshot, error) {
	var snap model.PerformanceSnapshot
	var rating string
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, score, rating, premium_score, coverage_score, policy_score, total_premium, total_coverage, policy_count, created_at FROM snapshots WHERE user_id = $1 AND created_at < $2 ORDER BY created_at DESC LIMIT 1`,
		userID, before,
	).Scan(&snap.ID, &snap.UserID, &snap.Score, &rating,
		&snap.PremiumScore, &snap.CoverageScore, &snap.PolicyScore,
		&snap.TotalPremium, &snap.TotalCoverage, &snap.PolicyCount, &snap.CreatedAt)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: latest snapshot before for %s", userID)
	}
	snap.Rating = model.Rating(rating)
	return &snap, nil
}

// LatestSnapshotPerUser returns the chronologically latest snapshot for
// every user that has at least one.
func (s *Postgres) LatestSnapshotPerUser(ctx context.Context) (map[string]model.PerformanceSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (user_id) id, user_id, score, rating, premium_score, coverage_score, policy_score, total_premium, total_coverage, policy_count, created_at
		 FROM snapshots
		 ORDER BY user_id, created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest snapshot per user")
	}
	defer rows.Close()

	out := make(map[string]model.PerformanceSnapshot)
	for rows.Next() {
		var snap model.PerformanceSnapshot
		var rating string
		if err := rows.Scan(&snap.ID, &snap.UserID, &snap.Score, &rating,
			&snap.PremiumScore, &snap.CoverageScore, &snap.PolicyScore,
			&snap.TotalPremium, &snap.TotalCoverage, &snap.PolicyCount, &snap.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan latest snapshot")
		}
		snap.Rating = model.Rating(rating)
		out[snap.UserID] = snap
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate latest snapshots")
	}
	return out, nil
}

func (s *Postgres) NotificationExistsWithinWindow(ctx context.Context, userID string, typ model.NotificationType, dedupKey string, windowDays int) (bool, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE user_id = $1 AND type = $2 AND dedup_key = $3 AND created_at > $4)`,
		userID, string(typ), dedupKey, cutoff,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: notification exists for %s", userID)
	}
	return exists, nil
}

func (s *Postgres) AppendNotification(ctx context.Context, event *model.NotificationEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, type, priority, title, message, target_link, dedup_key, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.UserID, string(event.Type), string(event.Priority),
		event.Title, event.Message, event.TargetLink, event.DedupKey, event.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: append notification for %s", event.UserID)
	}
	return nil
}
