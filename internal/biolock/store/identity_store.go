package store

import (
	"context"
	"errors"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

// ErrDuplicateTemplate is returned when a create would reuse a
// fingerprint template id already bound to another identity.
var ErrDuplicateTemplate = errors.New("fingerprint template id already enrolled")

// NewIdentity carries the fields for creating an identity. TemplateID is
// optional — identities can exist face-only until a finger is enrolled.
type NewIdentity struct {
	Name        string
	TemplateID  *int
	AccessLevel int
}

// IdentityStore is the identity directory: read-mostly lookups keyed by
// fingerprint template id, plus the thin CRUD the enrollment tooling needs.
type IdentityStore interface {
	LookupByTemplate(ctx context.Context, templateID int) (types.Identity, bool, error)
	GetByID(ctx context.Context, id int64) (types.Identity, bool, error)
	List(ctx context.Context) ([]types.Identity, error)
	Create(ctx context.Context, n NewIdentity) (types.Identity, error)
	TouchLastAccess(ctx context.Context, id int64, t time.Time) error
}
