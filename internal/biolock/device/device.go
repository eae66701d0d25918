// Package device defines the hardware collaborator contracts the
// controller depends on, plus no-op stand-ins used when a peripheral is
// absent at startup (degraded mode).
package device

import (
	"context"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

// ScanResult is one fingerprint sensor read. OK=false with a nil error
// means the sensor completed a scan but matched no stored template.
type ScanResult struct {
	TemplateID int
	OK         bool
}

// FingerprintSensor is the enroll/scan surface of the fingerprint module.
// Scan blocks until a finger is read or ctx is cancelled.
type FingerprintSensor interface {
	Scan(ctx context.Context) (ScanResult, error)
	Enroll(ctx context.Context, templateID int) error
	Close() error
}

// Camera produces frames. ReadFrame blocks until a frame is available or
// ctx is cancelled.
type Camera interface {
	ReadFrame(ctx context.Context) (types.Frame, error)
	Close() error
}

// Embedder is the black-box face model: locate a face in the frame and
// produce its embedding. ok=false means no face was found or processing
// failed — callers treat that as inconclusive, never as an error.
type Embedder interface {
	DetectAndEmbed(ctx context.Context, frame types.Frame) (types.Embedding, bool)
}

// Lock drives the door actuator. Unlock energizes the solenoid for the
// given duration and must return promptly (the pulse runs on its own).
type Lock interface {
	Unlock(d time.Duration)
}

// Display is the two-line character display at the door.
type Display interface {
	Show(line1, line2 string)
}
