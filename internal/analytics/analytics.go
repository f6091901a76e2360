// Package analytics implements the optional Postgres manifest mirror
// behind QueryEncounter (§6 "QueryEncounter(encounter_id, sql-like) →
// rows — thin wrapper around the columnar reader"). The columnar archive
// remains the source of truth for event-level data; this mirror only
// indexes per-encounter manifests (outcome, bosses, start and end times)
// so a query can find the right archive file without scanning
// every one on disk.
//
// Grounded on the teacher's scripts/import_cards.go: pgxpool connection
// setup, batched transactions, and a count-then-import idiom, generalized
// from a one-shot CSV loader into a long-lived ingest-and-query store.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// EncounterRecord is one row of the manifest mirror.
type EncounterRecord struct {
	EncounterID string
	SessionID   string
	AreaID      string
	StartedAt   time.Time
	EndedAt     time.Time
	Outcome     string
	BossIDs     []int64
	ArchivePath string
}

// Store wraps a pgxpool connection pool for the manifest mirror.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open connects to dsn and ensures the manifest table exists.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect analytics database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping analytics database: %w", err)
	}

	s := &Store{pool: pool, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS encounter_manifests (
			encounter_id TEXT PRIMARY KEY,
			session_id   TEXT NOT NULL,
			area_id      TEXT NOT NULL,
			started_at   TIMESTAMPTZ NOT NULL,
			ended_at     TIMESTAMPTZ NOT NULL,
			outcome      TEXT NOT NULL,
			boss_ids     BIGINT[] NOT NULL DEFAULT '{}',
			archive_path TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure encounter_manifests schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Ingest upserts a batch of encounter records in one transaction, the
// same batched-transaction shape as the teacher's card import.
func (s *Store) Ingest(ctx context.Context, records []EncounterRecord) (imported, failed int, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, len(records), fmt.Errorf("begin ingest transaction: %w", err)
	}

	for _, r := range records {
		_, execErr := tx.Exec(ctx, `
			INSERT INTO encounter_manifests
				(encounter_id, session_id, area_id, started_at, ended_at, outcome, boss_ids, archive_path)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (encounter_id) DO UPDATE SET
				ended_at = EXCLUDED.ended_at,
				outcome = EXCLUDED.outcome,
				boss_ids = EXCLUDED.boss_ids,
				archive_path = EXCLUDED.archive_path
		`, r.EncounterID, r.SessionID, r.AreaID, r.StartedAt, r.EndedAt, r.Outcome, r.BossIDs, r.ArchivePath)
		if execErr != nil {
			failed++
			if s.logger != nil {
				s.logger.Warn("failed to ingest encounter manifest", zap.String("encounter", r.EncounterID), zap.Error(execErr))
			}
			continue
		}
		imported++
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return imported, failed, fmt.Errorf("commit ingest transaction: %w", err)
	}
	return imported, failed, nil
}

// QueryEncounter returns the manifest row for one encounter id — the
// "thin wrapper" half of §6's QueryEncounter; callers needing row-level
// data open the encounter's own archive file by ArchivePath.
func (s *Store) QueryEncounter(ctx context.Context, encounterID string) (EncounterRecord, error) {
	var r EncounterRecord
	row := s.pool.QueryRow(ctx, `
		SELECT encounter_id, session_id, area_id, started_at, ended_at, outcome, boss_ids, archive_path
		FROM encounter_manifests WHERE encounter_id = $1
	`, encounterID)
	if err := row.Scan(&r.EncounterID, &r.SessionID, &r.AreaID, &r.StartedAt, &r.EndedAt, &r.Outcome, &r.BossIDs, &r.ArchivePath); err != nil {
		return EncounterRecord{}, fmt.Errorf("query encounter %s: %w", encounterID, err)
	}
	return r, nil
}

// QueryByArea returns every encounter manifest recorded for an area,
// most recent first — the common "how did my last ten pulls go" query.
func (s *Store) QueryByArea(ctx context.Context, areaID string, limit int) ([]EncounterRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT encounter_id, session_id, area_id, started_at, ended_at, outcome, boss_ids, archive_path
		FROM encounter_manifests WHERE area_id = $1
		ORDER BY started_at DESC LIMIT $2
	`, areaID, limit)
	if err != nil {
		return nil, fmt.Errorf("query encounters for area %s: %w", areaID, err)
	}
	defer rows.Close()

	var out []EncounterRecord
	for rows.Next() {
		var r EncounterRecord
		if err := rows.Scan(&r.EncounterID, &r.SessionID, &r.AreaID, &r.StartedAt, &r.EndedAt, &r.Outcome, &r.BossIDs, &r.ArchivePath); err != nil {
			return nil, fmt.Errorf("scan encounter row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
