package device

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

// ErrUnavailable is returned by no-op sources so pollers back off
// instead of spinning.
var ErrUnavailable = errors.New("device unavailable")

// NoopLock ignores unlock commands.
type NoopLock struct{}

func (NoopLock) Unlock(time.Duration) {}

// NoopDisplay ignores display updates.
type NoopDisplay struct{}

func (NoopDisplay) Show(string, string) {}

// NoopSensor never produces a scan; it blocks until ctx is done.
type NoopSensor struct{}

func (NoopSensor) Scan(ctx context.Context) (ScanResult, error) {
	<-ctx.Done()
	return ScanResult{}, ctx.Err()
}

func (NoopSensor) Enroll(context.Context, int) error { return ErrUnavailable }
func (NoopSensor) Close() error                      { return nil }

// NoopCamera never produces a frame; it blocks until ctx is done.
type NoopCamera struct{}

func (NoopCamera) ReadFrame(ctx context.Context) (types.Frame, error) {
	<-ctx.Done()
	return types.Frame{}, ctx.Err()
}

func (NoopCamera) Close() error { return nil }

// NoopEmbedder never finds a face. Frames processed through it stay
// inconclusive, so a session can only end by timeout.
type NoopEmbedder struct{}

func (NoopEmbedder) DetectAndEmbed(context.Context, types.Frame) (types.Embedding, bool) {
	return nil, false
}

// LogDisplay writes display lines to the logger. Used for headless runs
// and dev environments without the LCD attached.
type LogDisplay struct {
	Logger *log.Logger
}

func (d LogDisplay) Show(line1, line2 string) {
	d.Logger.Printf("display: %q / %q", line1, line2)
}

// DegradeLock substitutes a no-op when the actuator is missing. The
// degraded state is logged once here, not per command.
func DegradeLock(l Lock, logger *log.Logger) Lock {
	if l != nil {
		return l
	}
	logger.Printf("door actuator unavailable; unlock commands will be ignored")
	return NoopLock{}
}

// DegradeDisplay substitutes a no-op when the display is missing.
func DegradeDisplay(d Display, logger *log.Logger) Display {
	if d != nil {
		return d
	}
	logger.Printf("display unavailable; status messages will be dropped")
	return NoopDisplay{}
}

// DegradeSensor substitutes a blocking no-op when the sensor is missing.
func DegradeSensor(s FingerprintSensor, logger *log.Logger) FingerprintSensor {
	if s != nil {
		return s
	}
	logger.Printf("fingerprint sensor unavailable; no scans will be produced")
	return NoopSensor{}
}

// DegradeCamera substitutes a blocking no-op when the camera is missing.
func DegradeCamera(c Camera, logger *log.Logger) Camera {
	if c != nil {
		return c
	}
	logger.Printf("camera unavailable; no frames will be produced")
	return NoopCamera{}
}

// DegradeEmbedder substitutes an inconclusive no-op when no face model
// is loaded.
func DegradeEmbedder(e Embedder, logger *log.Logger) Embedder {
	if e != nil {
		return e
	}
	logger.Printf("face model unavailable; frames will not be matched")
	return NoopEmbedder{}
}
