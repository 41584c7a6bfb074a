package core

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/3cpo-dev/xbuild/pkg/api"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed history of build runs.
type Store struct{ db *sql.DB }

//go:embed migrations/*.sql
var migrationFS embed.FS

// Fixed width so that timestamps sort lexically.
const storeTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one orchestrated batch as recorded in the history.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Metadata   BuildMetadata
	Outcomes   []BuildOutcome
}

func NewStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("db not initialized")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error { return s.db.Close() }

// RecordRun writes run and its outcomes in one transaction. A zero ID is
// replaced by a fresh one, which is returned.
func (s *Store) RecordRun(ctx context.Context, run Run) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	md := run.Metadata
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, date_stamp, revision_hash, toolchain_version, program_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.StartedAt.UTC().Format(storeTimeLayout), run.FinishedAt.UTC().Format(storeTimeLayout),
		md.DateStamp, md.RevisionHash, md.ToolchainVersion, md.ProgramVersion,
	); err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}

	for i, o := range run.Outcomes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outcomes (run_id, seq, platform, arch, status, artifact, error, duration_ms, size, sha256)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID.String(), i, o.Target.Platform, o.Target.Arch, string(o.Status),
			o.Artifact, o.Reason(), o.Duration.Milliseconds(), o.Size, o.SHA256,
		); err != nil {
			return uuid.Nil, fmt.Errorf("insert outcome %s: %w", o.Target, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns up to limit runs, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]api.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.finished_at, r.revision_hash, r.toolchain_version, r.program_version,
		       COALESCE(SUM(CASE WHEN o.status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN o.status = ? THEN 1 ELSE 0 END), 0)
		FROM runs r LEFT JOIN outcomes o ON o.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT ?`, string(api.BuildSucceeded), string(api.BuildFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []api.RunSummary
	for rows.Next() {
		var r api.RunSummary
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.RevisionHash, &r.ToolchainVersion,
			&r.ProgramVersion, &r.Succeeded, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunOutcomes returns the outcomes of run id in build order.
func (s *Store) RunOutcomes(ctx context.Context, id string) ([]api.OutcomeSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT platform, arch, status, artifact, error, duration_ms, size, sha256
		FROM outcomes WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []api.OutcomeSummary
	for rows.Next() {
		var o api.OutcomeSummary
		var status string
		if err := rows.Scan(&o.Platform, &o.Arch, &status, &o.Artifact, &o.Error, &o.DurationMS, &o.Size, &o.SHA256); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = api.BuildStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}
