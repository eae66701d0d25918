package store

import (
	"context"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

// AccessEventStore persists access decisions as an append-only audit log.
// Records are never mutated or deleted by the controller.
type AccessEventStore interface {
	Record(ctx context.Context, ev types.AccessEvent) error
	Recent(ctx context.Context, limit int) ([]types.AccessEvent, error)
}

// UnknownCaptureStore persists evidence records for attempts that never
// resolved to an enrolled identity. Append-only, same as the audit log;
// retention is handled by the evidence pruner, not by callers.
type UnknownCaptureStore interface {
	Record(ctx context.Context, cap types.UnknownCapture) error
	Recent(ctx context.Context, limit int) ([]types.UnknownCapture, error)

	// PruneOlderThan deletes capture rows older than cutoff and returns
	// the image paths of the deleted rows so the caller can remove the
	// files as well.
	PruneOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}
