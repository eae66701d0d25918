package types

import "time"

// Access methods recorded in the audit trail.
const (
	MethodFingerprint    = "fingerprint"
	MethodFace           = "face"
	MethodFaceEnrollment = "face_enrollment"
)

// AccessEvent is one append-only audit record. IdentityID is nil for
// attempts that never resolved to an enrolled identity.
type AccessEvent struct {
	ID         int64
	IdentityID *int64
	Method     string
	Timestamp  time.Time
	Success    bool
	Message    string
	ImagePath  string
}

// UnknownCapture records an evidence image saved for an unresolved
// identity attempt. ImagePath may be empty when no frame was available
// at capture time.
type UnknownCapture struct {
	ID        int64
	Timestamp time.Time
	ImagePath string
	Note      string
}
