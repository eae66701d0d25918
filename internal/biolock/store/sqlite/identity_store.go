package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/store"
	"github.com/adiprasetyo/biolock/internal/biolock/types"
	dbpkg "github.com/adiprasetyo/biolock/internal/db"
)

type IdentityStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewIdentityStore(db *sql.DB, writer *dbpkg.Worker) *IdentityStore {
	return &IdentityStore{db: db, writer: writer}
}

const identityColumns = `id, name, finger_template_id, access_level, created_at_ms, last_access_ms`

func scanIdentity(row interface{ Scan(...any) error }) (types.Identity, error) {
	var (
		ident      types.Identity
		templateID sql.NullInt64
		createdMs  int64
		lastMs     sql.NullInt64
	)
	if err := row.Scan(&ident.ID, &ident.Name, &templateID, &ident.AccessLevel, &createdMs, &lastMs); err != nil {
		return types.Identity{}, err
	}
	if templateID.Valid {
		t := int(templateID.Int64)
		ident.FingerTemplateID = &t
	}
	ident.CreatedAt = time.UnixMilli(createdMs).UTC()
	if lastMs.Valid {
		la := time.UnixMilli(lastMs.Int64).UTC()
		ident.LastAccess = &la
	}
	return ident, nil
}

func (s *IdentityStore) LookupByTemplate(ctx context.Context, templateID int) (types.Identity, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+identityColumns+`
FROM identities
WHERE finger_template_id = ?;
`, templateID)

	ident, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return types.Identity{}, false, nil
	}
	if err != nil {
		return types.Identity{}, false, fmt.Errorf("LookupByTemplate query: %w", err)
	}
	return ident, true, nil
}

func (s *IdentityStore) GetByID(ctx context.Context, id int64) (types.Identity, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+identityColumns+`
FROM identities
WHERE id = ?;
`, id)

	ident, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return types.Identity{}, false, nil
	}
	if err != nil {
		return types.Identity{}, false, fmt.Errorf("GetByID query: %w", err)
	}
	return ident, true, nil
}

func (s *IdentityStore) List(ctx context.Context) ([]types.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+identityColumns+`
FROM identities
ORDER BY id;
`)
	if err != nil {
		return nil, fmt.Errorf("List query: %w", err)
	}
	defer rows.Close()

	var out []types.Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("List scan: %w", err)
		}
		out = append(out, ident)
	}
	return out, rows.Err()
}

func (s *IdentityStore) Create(ctx context.Context, n store.NewIdentity) (types.Identity, error) {
	name := strings.TrimSpace(n.Name)
	if n.AccessLevel <= 0 {
		n.AccessLevel = 1
	}
	now := time.Now().UTC()

	var created types.Identity
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if n.TemplateID != nil {
			var existing int64
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM identities WHERE finger_template_id = ?;`,
				*n.TemplateID,
			).Scan(&existing)
			if err == nil {
				return store.ErrDuplicateTemplate
			}
			if err != sql.ErrNoRows {
				return fmt.Errorf("Create template check: %w", err)
			}
		}

		var templateID any
		if n.TemplateID != nil {
			templateID = *n.TemplateID
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO identities(name, finger_template_id, access_level, created_at_ms)
VALUES (?, ?, ?, ?);
`, name, templateID, n.AccessLevel, now.UnixMilli())
		if err != nil {
			return fmt.Errorf("Create insert: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("Create last insert id: %w", err)
		}

		created = types.Identity{
			ID:               id,
			Name:             name,
			FingerTemplateID: n.TemplateID,
			AccessLevel:      n.AccessLevel,
			CreatedAt:        now,
		}
		return nil
	})
	if err != nil {
		return types.Identity{}, err
	}
	return created, nil
}

func (s *IdentityStore) TouchLastAccess(ctx context.Context, id int64, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE identities SET last_access_ms = ? WHERE id = ?;
`, ms, id); err != nil {
			return fmt.Errorf("TouchLastAccess update: %w", err)
		}
		return nil
	})
}
