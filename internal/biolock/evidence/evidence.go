// Package evidence saves capture images for unresolved identity
// attempts. Writes are fire-and-forget from the controller's point of
// view: a failed save is logged by the caller and never blocks the
// state machine.
package evidence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

// Saver persists one frame and returns the stored path.
type Saver interface {
	SaveImage(frame types.Frame) (string, error)
}

// Dir writes frames as timestamped JPEG files under a directory, the
// same layout the capture tooling expects (data/unknown/unknown_*.jpg).
type Dir struct {
	path string
}

func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir evidence dir: %w", err)
	}
	return &Dir{path: path}, nil
}

func (d *Dir) SaveImage(frame types.Frame) (string, error) {
	if frame.Empty() {
		return "", fmt.Errorf("empty frame")
	}
	name := fmt.Sprintf("unknown_%s.jpg", frame.CapturedAt.UTC().Format("20060102_150405.000"))
	path := filepath.Join(d.path, name)
	if err := os.WriteFile(path, frame.Data, 0o644); err != nil {
		return "", fmt.Errorf("write evidence image: %w", err)
	}
	return path, nil
}

// Discard is a Saver that stores nothing. Used when no evidence
// directory is configured.
type Discard struct{}

func (Discard) SaveImage(types.Frame) (string, error) { return "", nil }
