package types

import "time"

// Identity is an enrolled person. FingerTemplateID is the slot id stored on
// the fingerprint sensor; it is unique across identities when present.
type Identity struct {
	ID               int64
	Name             string
	FingerTemplateID *int
	AccessLevel      int
	CreatedAt        time.Time
	LastAccess       *time.Time
}

// HasFingerprint reports whether the identity has an enrolled template.
func (id Identity) HasFingerprint() bool { return id.FingerTemplateID != nil }
