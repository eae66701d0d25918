// Package acquire runs the two input producers: the fingerprint poller
// and the frame poller. Producers only ever push events through their
// callbacks — they never read or write session state, and any blocking
// I/O stays confined here.
package acquire

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/device"
	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

const (
	// DefaultScanInterval matches the original sensor cadence.
	DefaultScanInterval = 500 * time.Millisecond

	// DefaultFrameInterval is ~15 fps.
	DefaultFrameInterval = 66 * time.Millisecond
)

// readErrorBackoff is how long a poller waits after a transient device
// failure before retrying. Variable so tests can shorten it.
var readErrorBackoff = time.Second

// FingerprintPoller reads the sensor in a loop and reports every
// completed scan (matched or not) through OnResult.
type FingerprintPoller struct {
	Sensor   device.FingerprintSensor
	Interval time.Duration
	Logger   *log.Logger
	OnResult func(res device.ScanResult, at time.Time)
}

// Run blocks until ctx is cancelled.
func (p *FingerprintPoller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultScanInterval
	}

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := p.Sensor.Scan(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return
		case err != nil:
			// Transient sensor failure: log, retry, produce no event.
			p.Logger.Printf("fingerprint scan error: %v", err)
			if !sleep(ctx, readErrorBackoff) {
				return
			}
			continue
		}

		p.OnResult(res, time.Now().UTC())

		if !sleep(ctx, interval) {
			return
		}
	}
}

// FramePoller reads camera frames at a fixed cadence and reports each
// through OnFrame.
type FramePoller struct {
	Camera   device.Camera
	Interval time.Duration
	Logger   *log.Logger
	OnFrame  func(frame types.Frame)
}

// Run blocks until ctx is cancelled.
func (p *FramePoller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}

	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := p.Camera.ReadFrame(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return
		case err != nil:
			p.Logger.Printf("frame read error: %v", err)
			if !sleep(ctx, readErrorBackoff) {
				return
			}
			continue
		}

		if frame.CapturedAt.IsZero() {
			frame.CapturedAt = time.Now().UTC()
		}
		p.OnFrame(frame)

		if !sleep(ctx, interval) {
			return
		}
	}
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
