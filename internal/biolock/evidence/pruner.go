package evidence

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/store"
)

// Pruner periodically deletes unknown-capture rows older than a
// configurable retention period, along with their evidence images.  It
// runs as a background goroutine and is safe to stop via its context or
// the Stop method.
//
// A retention of 0 disables pruning entirely.
type Pruner struct {
	store     store.UnknownCaptureStore
	retention time.Duration
	interval  time.Duration
	logger    *log.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// PrunerConfig holds the parameters for NewPruner.
type PrunerConfig struct {
	// RetentionDays is how many days of capture history to keep.
	// 0 means keep everything (pruner will not start).
	RetentionDays int

	// IntervalHours is how often the pruner runs.  Defaults to 6.
	IntervalHours int
}

// NewPruner creates a pruner but does not start it.
// Call Start to begin the background loop.
func NewPruner(s store.UnknownCaptureStore, cfg PrunerConfig, logger *log.Logger) *Pruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	return &Pruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins the background pruning loop.  It runs an immediate prune
// on startup, then repeats on the configured interval.  The loop exits
// when ctx is cancelled or Stop is called.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Printf("capture pruner disabled (retention=0)")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.Printf("capture pruner started (retention=%dd, interval=%dh)",
		int(p.retention.Hours()/24), int(p.interval.Hours()))
}

// Stop signals the pruner to exit and waits for it to finish.
func (p *Pruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *Pruner) loop(ctx context.Context) {
	defer close(p.done)

	// Run immediately on startup to clean up any backlog.
	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.retention)
	paths, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Printf("capture prune error: %v", err)
		return
	}
	if len(paths) == 0 {
		return
	}

	removed := 0
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.logger.Printf("capture prune: remove %s: %v", path, err)
			continue
		}
		removed++
	}

	p.logger.Printf("capture prune: deleted %d rows (%d images) older than %s",
		len(paths), removed, cutoff.Format(time.RFC3339))
}
