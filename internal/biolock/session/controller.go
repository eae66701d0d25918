// Package session implements the biometric session controller: the
// single authority over session state, timers, and the grant/deny
// decision. Fingerprint and frame producers feed one ordered queue; the
// controller consumes it from a single goroutine and is the only code
// that ever touches session fields.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/device"
	"github.com/adiprasetyo/biolock/internal/biolock/embeddings"
	"github.com/adiprasetyo/biolock/internal/biolock/evidence"
	"github.com/adiprasetyo/biolock/internal/biolock/policy"
	"github.com/adiprasetyo/biolock/internal/biolock/store"
	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

// State is the controller's session state.
type State int

const (
	// StateIdle: no live session, waiting for a fingerprint.
	StateIdle State = iota
	// StateAwaitingFace: fingerprint resolved, face window open.
	StateAwaitingFace
	// StateUnknownGrace: unresolved fingerprint, evidence grace window open.
	StateUnknownGrace
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingFace:
		return "awaiting_face"
	case StateUnknownGrace:
		return "unknown_grace"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Display strings, sized for the door's two-line character display.
const (
	msgIdle1 = "Place Finger"
	msgIdle2 = "On Sensor"

	msgVerify2 = "Look at Camera"

	msgUnknown1 = "Unknown Finger"
	msgUnknown2 = "Not Recognized"

	msgGranted1 = "Access Granted"
	msgGranted2 = "Welcome!"

	msgTimeout1 = "Timeout"
	msgTimeout2 = "Try Again"

	msgNoFace1 = "No Face Data"
	msgNoFace2 = "Enroll Face"
)

// Config is the controller's tuning surface.
type Config struct {
	FaceTimeout    time.Duration // face window length (default 10s)
	UnknownGrace   time.Duration // unknown-capture delay (default 2s)
	UnlockDuration time.Duration // solenoid pulse length (default 5s)
	MatchThreshold float64       // face similarity threshold (default 0.6)

	// Now is the clock; defaults to time.Now. Overridden in tests.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.FaceTimeout <= 0 {
		c.FaceTimeout = 10 * time.Second
	}
	if c.UnknownGrace <= 0 {
		c.UnknownGrace = 2 * time.Second
	}
	if c.UnlockDuration <= 0 {
		c.UnlockDuration = 5 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Deps are the controller's collaborators. All side effects go out
// through these; none of them feed back into session state except by
// submitting new events.
type Deps struct {
	Identities store.IdentityStore
	Embeddings embeddings.Store
	Embedder   device.Embedder
	Lock       device.Lock
	Display    device.Display
	Events     store.AccessEventStore
	Captures   store.UnknownCaptureStore
	Evidence   evidence.Saver
	Logger     *log.Logger
}

// liveSession is the state of one fingerprint-to-face attempt. Owned
// exclusively by the controller goroutine.
type liveSession struct {
	state     State
	startedAt time.Time
	candidate *types.Identity
	bestScore float64
	deadline  time.Time
}

// Snapshot is a read-only view of the controller's state for tests and
// the admin API.
type Snapshot struct {
	State     State
	Candidate *types.Identity
	BestScore float64
	Deadline  time.Time
}

// Controller is the biometric session controller.
type Controller struct {
	cfg      Config
	deps     Deps
	verifier *policy.Verifier
	q        *queue

	// Everything below is touched only by the consumer goroutine.
	sess      *liveSession
	lastFrame types.Frame
	deferred  []FingerprintEvent
}

// New builds a controller. Run must be called for queued events to be
// consumed; tests may instead drive Process directly.
func New(cfg Config, deps Deps) *Controller {
	cfg.applyDefaults()
	return &Controller{
		cfg:      cfg,
		deps:     deps,
		verifier: policy.NewVerifier(cfg.MatchThreshold),
		q:        newQueue(),
	}
}

// Submit enqueues an event. Safe for concurrent use; never blocks.
func (c *Controller) Submit(ev Event) {
	c.q.push(ev)
}

// Run consumes the queue until ctx is cancelled. Deadlines are enforced
// by converting timer expiry into TickEvents handled in the same loop —
// the controller never sleeps while holding session state.
func (c *Controller) Run(ctx context.Context) error {
	c.deps.Display.Show(msgIdle1, msgIdle2)

	for {
		if ev, ok := c.q.pop(); ok {
			c.Process(ev)
			continue
		}

		var timerC <-chan time.Time
		var timer *time.Timer
		if c.sess != nil {
			wait := c.sess.deadline.Sub(c.cfg.Now())
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-c.q.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC:
			c.Process(TickEvent{At: c.cfg.Now()})
		}
	}
}

// Process applies one event to the state machine. It must only be
// called from the consumer goroutine; Run does this for every queued
// event, and tests call it directly for deterministic stepping.
func (c *Controller) Process(ev Event) {
	switch e := ev.(type) {
	case FingerprintEvent:
		c.onFingerprint(e)
	case FrameEvent:
		c.onFrame(e)
	case TickEvent:
		c.onTick(e)
	case AbortEvent:
		c.onAbort(e)
	default:
		c.deps.Logger.Printf("dropping unknown event %T", ev)
	}
}

// Snapshot returns the current state. Must be called from the consumer
// goroutine (or while Run is not executing), same as Process.
func (c *Controller) Snapshot() Snapshot {
	if c.sess == nil {
		return Snapshot{State: StateIdle}
	}
	return Snapshot{
		State:     c.sess.state,
		Candidate: c.sess.candidate,
		BestScore: c.sess.bestScore,
		Deadline:  c.sess.deadline,
	}
}

// ── Event handlers ──────────────────────────────────────────────────────────

func (c *Controller) onFingerprint(ev FingerprintEvent) {
	if c.sess != nil {
		// Sessions are never pre-empted mid-flight: park the scan and
		// replay it once the current session reaches a terminal state.
		c.deferred = append(c.deferred, ev)
		return
	}
	c.openSession(ev)
}

func (c *Controller) openSession(ev FingerprintEvent) {
	if c.sess != nil {
		// Unreachable by construction; overwriting a live session is the
		// exact defect this controller exists to prevent.
		panic("session: second live session opened before terminal transition")
	}

	now := c.cfg.Now()

	if ev.OK {
		ident, found, err := c.deps.Identities.LookupByTemplate(context.Background(), ev.TemplateID)
		if err != nil {
			c.deps.Logger.Printf("identity lookup for template %d failed: %v", ev.TemplateID, err)
			// Treat as unresolved: the person is standing at the door and
			// must not be granted on a broken directory.
			found = false
		}
		if found {
			c.sess = &liveSession{
				state:     StateAwaitingFace,
				startedAt: now,
				candidate: &ident,
				deadline:  now.Add(c.cfg.FaceTimeout),
			}
			c.deps.Display.Show("Hello, "+ident.Name, msgVerify2)
			c.record(types.AccessEvent{
				IdentityID: &ident.ID,
				Method:     types.MethodFingerprint,
				Timestamp:  now,
				Success:    true,
				Message:    fmt.Sprintf("fingerprint template %d resolved", ev.TemplateID),
			})
			c.deps.Logger.Printf("face window open for %q (template %d), deadline %s",
				ident.Name, ev.TemplateID, c.sess.deadline.Format(time.RFC3339))
			return
		}
	}

	// Sensor reported no match, the template resolved to nothing, or the
	// directory errored: open the evidence grace window.
	c.sess = &liveSession{
		state:     StateUnknownGrace,
		startedAt: now,
		deadline:  now.Add(c.cfg.UnknownGrace),
	}
	c.deps.Display.Show(msgUnknown1, msgUnknown2)
	c.deps.Logger.Printf("unknown fingerprint (template %d, ok=%v); grace window open", ev.TemplateID, ev.OK)
}

func (c *Controller) onFrame(ev FrameEvent) {
	// The newest frame is retained in every state so an expiring grace
	// window has evidence to attach.
	if !ev.Frame.Empty() {
		c.lastFrame = ev.Frame
	}

	if c.sess == nil || c.sess.state != StateAwaitingFace {
		return
	}

	// A frame landing after the deadline must expire the session, never
	// extend it — a grant past the deadline would break the window bound.
	if now := c.cfg.Now(); !now.Before(c.sess.deadline) {
		c.onTick(TickEvent{At: now})
		return
	}

	ident := c.sess.candidate
	if ident == nil {
		// Defensive: AwaitingFace always has a candidate by construction,
		// but a missing one must degrade to the unknown branch, not panic.
		c.deps.Logger.Printf("face window without candidate identity; closing as unknown")
		c.captureUnknown("face window lost candidate identity")
		c.closeSession()
		return
	}

	refs, err := c.deps.Embeddings.References(context.Background(), ident.ID)
	if err != nil {
		c.deps.Logger.Printf("reference embeddings for identity %d unavailable: %v", ident.ID, err)
		return
	}
	if len(refs) == 0 {
		// Distinct terminal cause, not a non-match: the operator needs to
		// know a face must be enrolled.
		c.deps.Display.Show(msgNoFace1, msgNoFace2)
		c.record(types.AccessEvent{
			IdentityID: &ident.ID,
			Method:     types.MethodFace,
			Timestamp:  c.cfg.Now(),
			Success:    false,
			Message:    "no reference face data",
		})
		c.closeSession()
		return
	}

	probe, ok := c.deps.Embedder.DetectAndEmbed(context.Background(), ev.Frame)
	if !ok {
		// No face found or extraction failed: inconclusive, window stays open.
		return
	}

	dec, err := c.verifier.Verify(refs, probe)
	if errors.Is(err, policy.ErrNoReferenceData) {
		// Races with a concurrent enrollment rewrite; same terminal cause
		// as the empty-set check above.
		c.deps.Display.Show(msgNoFace1, msgNoFace2)
		c.record(types.AccessEvent{
			IdentityID: &ident.ID,
			Method:     types.MethodFace,
			Timestamp:  c.cfg.Now(),
			Success:    false,
			Message:    "no reference face data",
		})
		c.closeSession()
		return
	}
	if err != nil {
		c.deps.Logger.Printf("face verify for identity %d failed: %v", ident.ID, err)
		return
	}

	if !dec.Matched {
		if dec.BestScore > c.sess.bestScore {
			c.sess.bestScore = dec.BestScore
		}
		return
	}

	c.grant(ident, dec.BestScore)
}

func (c *Controller) grant(ident *types.Identity, score float64) {
	now := c.cfg.Now()

	c.deps.Lock.Unlock(c.cfg.UnlockDuration)
	c.deps.Display.Show(msgGranted1, msgGranted2)
	c.record(types.AccessEvent{
		IdentityID: &ident.ID,
		Method:     types.MethodFace,
		Timestamp:  now,
		Success:    true,
		Message:    fmt.Sprintf("face match (score %.4f, threshold %.2f)", score, c.verifier.Threshold()),
	})
	if err := c.deps.Identities.TouchLastAccess(context.Background(), ident.ID, now); err != nil {
		c.deps.Logger.Printf("touch last access for identity %d: %v", ident.ID, err)
	}
	c.deps.Logger.Printf("access granted to %q (score %.4f)", ident.Name, score)
	c.closeSession()
}

func (c *Controller) onTick(ev TickEvent) {
	if c.sess == nil {
		// Stale tick after the session already closed. Idempotent no-op.
		return
	}
	if ev.At.Before(c.sess.deadline) {
		return
	}

	switch c.sess.state {
	case StateAwaitingFace:
		ident := c.sess.candidate
		if ident == nil {
			c.deps.Logger.Printf("face window timed out without candidate identity")
			c.captureUnknown("face window lost candidate identity")
		} else {
			c.deps.Display.Show(msgTimeout1, msgTimeout2)
			c.record(types.AccessEvent{
				IdentityID: &ident.ID,
				Method:     types.MethodFace,
				Timestamp:  c.cfg.Now(),
				Success:    false,
				Message:    fmt.Sprintf("timeout (best score %.4f)", c.sess.bestScore),
			})
			c.deps.Logger.Printf("face window for %q timed out (best score %.4f)", ident.Name, c.sess.bestScore)
		}
	case StateUnknownGrace:
		c.captureUnknown("unknown fingerprint")
		c.record(types.AccessEvent{
			Method:    types.MethodFingerprint,
			Timestamp: c.cfg.Now(),
			Success:   false,
			Message:   "unknown fingerprint",
		})
	}

	c.closeSession()
}

func (c *Controller) onAbort(ev AbortEvent) {
	if c.sess == nil {
		return
	}

	var identityID *int64
	method := types.MethodFingerprint
	if c.sess.state == StateAwaitingFace && c.sess.candidate != nil {
		identityID = &c.sess.candidate.ID
		method = types.MethodFace
	}
	c.record(types.AccessEvent{
		IdentityID: identityID,
		Method:     method,
		Timestamp:  c.cfg.Now(),
		Success:    false,
		Message:    "aborted: " + ev.Reason,
	})
	c.deps.Logger.Printf("session aborted: %s", ev.Reason)
	c.closeSession()
}

// captureUnknown saves the most recent frame (if any) as evidence and
// records the capture. Failures are logged and swallowed: evidence is
// fire-and-forget with respect to the state machine.
func (c *Controller) captureUnknown(note string) {
	now := c.cfg.Now()

	var path string
	if !c.lastFrame.Empty() {
		var err error
		path, err = c.deps.Evidence.SaveImage(c.lastFrame)
		if err != nil {
			c.deps.Logger.Printf("evidence image save failed: %v", err)
			path = ""
		}
	}

	if err := c.deps.Captures.Record(context.Background(), types.UnknownCapture{
		Timestamp: now,
		ImagePath: path,
		Note:      note,
	}); err != nil {
		c.deps.Logger.Printf("unknown capture record failed: %v", err)
	}
}

// closeSession is every terminal transition's tail: drop the session,
// restore the idle display, and replay any fingerprint scan that
// arrived while the session was live.
func (c *Controller) closeSession() {
	c.sess = nil
	c.deps.Display.Show(msgIdle1, msgIdle2)

	for len(c.deferred) > 0 && c.sess == nil {
		next := c.deferred[0]
		c.deferred = c.deferred[1:]
		c.openSession(next)
	}
}

// record persists an audit event. Errors are logged, not returned — a
// failed audit write must not block the door decision, mirroring the
// append-only-log contract.
func (c *Controller) record(ev types.AccessEvent) {
	if err := c.deps.Events.Record(context.Background(), ev); err != nil {
		c.deps.Logger.Printf("audit record failed: %v", err)
	}
}
