package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/types"
	dbpkg "github.com/adiprasetyo/biolock/internal/db"
)

type AccessEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessEventStore(db *sql.DB, writer *dbpkg.Worker) *AccessEventStore {
	return &AccessEventStore{db: db, writer: writer}
}

func (s *AccessEventStore) Record(ctx context.Context, ev types.AccessEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	var identityID any
	if ev.IdentityID != nil {
		identityID = *ev.IdentityID
	}
	var success int
	if ev.Success {
		success = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_events(identity_id, method, ts_ms, success, message, image_path)
VALUES (?, ?, ?, ?, ?, ?);
`,
			identityID, ev.Method, ev.Timestamp.UTC().UnixMilli(),
			success, ev.Message, ev.ImagePath,
		); err != nil {
			return fmt.Errorf("Record insert: %w", err)
		}
		return nil
	})
}

func (s *AccessEventStore) Recent(ctx context.Context, limit int) ([]types.AccessEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, identity_id, method, ts_ms, success, message, image_path
FROM access_events
ORDER BY ts_ms DESC, id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("Recent query: %w", err)
	}
	defer rows.Close()

	var out []types.AccessEvent
	for rows.Next() {
		var (
			ev         types.AccessEvent
			identityID sql.NullInt64
			tsMs       int64
			success    int
		)
		if err := rows.Scan(&ev.ID, &identityID, &ev.Method, &tsMs, &success, &ev.Message, &ev.ImagePath); err != nil {
			return nil, fmt.Errorf("Recent scan: %w", err)
		}
		if identityID.Valid {
			id := identityID.Int64
			ev.IdentityID = &id
		}
		ev.Timestamp = time.UnixMilli(tsMs).UTC()
		ev.Success = success == 1
		out = append(out, ev)
	}
	return out, rows.Err()
}

type UnknownCaptureStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewUnknownCaptureStore(db *sql.DB, writer *dbpkg.Worker) *UnknownCaptureStore {
	return &UnknownCaptureStore{db: db, writer: writer}
}

func (s *UnknownCaptureStore) Record(ctx context.Context, cap types.UnknownCapture) error {
	if cap.Timestamp.IsZero() {
		cap.Timestamp = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO unknown_captures(ts_ms, image_path, note)
VALUES (?, ?, ?);
`, cap.Timestamp.UTC().UnixMilli(), cap.ImagePath, cap.Note); err != nil {
			return fmt.Errorf("Record insert: %w", err)
		}
		return nil
	})
}

func (s *UnknownCaptureStore) Recent(ctx context.Context, limit int) ([]types.UnknownCapture, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, ts_ms, image_path, note
FROM unknown_captures
ORDER BY ts_ms DESC, id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("Recent query: %w", err)
	}
	defer rows.Close()

	var out []types.UnknownCapture
	for rows.Next() {
		var (
			cap  types.UnknownCapture
			tsMs int64
		)
		if err := rows.Scan(&cap.ID, &tsMs, &cap.ImagePath, &cap.Note); err != nil {
			return nil, fmt.Errorf("Recent scan: %w", err)
		}
		cap.Timestamp = time.UnixMilli(tsMs).UTC()
		out = append(out, cap)
	}
	return out, rows.Err()
}

// PruneOlderThan deletes capture rows older than cutoff, returning the
// image paths of the removed rows so the caller can delete the files.
func (s *UnknownCaptureStore) PruneOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var paths []string
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT image_path FROM unknown_captures WHERE ts_ms < ? AND image_path != '';
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan select: %w", err)
		}
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return fmt.Errorf("PruneOlderThan scan: %w", err)
			}
			paths = append(paths, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx, `
DELETE FROM unknown_captures WHERE ts_ms < ?;
`, cutoffMs); err != nil {
			return fmt.Errorf("PruneOlderThan delete: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
