package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SeedDevOptions struct {
	// AdminName is the display name for the seeded dev identity.
	AdminName string
	// TemplateID is the fingerprint sensor slot bound to the dev identity.
	TemplateID int
}

// SeedDev inserts a starter identity so a fresh dev database has
// something to match against. Safe to run repeatedly.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	if opt.AdminName == "" {
		opt.AdminName = "Admin"
	}
	if opt.TemplateID <= 0 {
		opt.TemplateID = 1
	}
	now := time.Now().UTC().UnixMilli()

	if _, err := db.ExecContext(ctx, `
INSERT INTO identities(name, finger_template_id, access_level, created_at_ms)
SELECT ?, ?, 2, ?
WHERE NOT EXISTS (SELECT 1 FROM identities WHERE finger_template_id = ?);
`, opt.AdminName, opt.TemplateID, now, opt.TemplateID); err != nil {
		return fmt.Errorf("seed identity %q: %w", opt.AdminName, err)
	}

	return nil
}
