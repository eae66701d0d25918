package session_test

import (
	"context"
	"io"
	"log"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/embeddings"
	"github.com/adiprasetyo/biolock/internal/biolock/session"
	"github.com/adiprasetyo/biolock/internal/biolock/store/memory"
	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

// ── Fakes ────────────────────────────────────────────────────────────────────

type fakeLock struct {
	mu      sync.Mutex
	unlocks []time.Duration
}

func (l *fakeLock) Unlock(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlocks = append(l.unlocks, d)
}

func (l *fakeLock) Unlocks() []time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]time.Duration, len(l.unlocks))
	copy(out, l.unlocks)
	return out
}

type fakeDisplay struct {
	mu    sync.Mutex
	lines [][2]string
}

func (d *fakeDisplay) Show(line1, line2 string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, [2]string{line1, line2})
}

func (d *fakeDisplay) Last() [2]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.lines) == 0 {
		return [2]string{}
	}
	return d.lines[len(d.lines)-1]
}

// fakeEmbedder returns a fixed embedding for every frame, or ok=false
// when Probe is nil (no face found).
type fakeEmbedder struct {
	Probe types.Embedding
}

func (e *fakeEmbedder) DetectAndEmbed(_ context.Context, _ types.Frame) (types.Embedding, bool) {
	if e.Probe == nil {
		return nil, false
	}
	return e.Probe, true
}

type fakeEvidence struct {
	saved []types.Frame
}

func (f *fakeEvidence) SaveImage(frame types.Frame) (string, error) {
	f.saved = append(f.saved, frame)
	return "data/unknown/fake.jpg", nil
}

// ── Harness ──────────────────────────────────────────────────────────────────

type harness struct {
	ctrl     *session.Controller
	clock    *time.Time
	ids      *memory.IdentityStore
	events   *memory.AccessEventStore
	captures *memory.UnknownCaptureStore
	refs     embeddings.Static
	lock     *fakeLock
	display  *fakeDisplay
	embedder *fakeEmbedder
	evidence *fakeEvidence
}

func (h *harness) advance(d time.Duration) {
	*h.clock = h.clock.Add(d)
}

// tick delivers a deadline-check at the fake clock's current time.
func (h *harness) tick() {
	h.ctrl.Process(session.TickEvent{At: *h.clock})
}

func (h *harness) faceEvents() []types.AccessEvent {
	var out []types.AccessEvent
	for _, ev := range h.events.Events() {
		if ev.Method == types.MethodFace {
			out = append(out, ev)
		}
	}
	return out
}

func newHarness(t *testing.T, cfg session.Config) *harness {
	t.Helper()

	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	clock := &start
	cfg.Now = func() time.Time { return *clock }

	h := &harness{
		clock:    clock,
		ids:      memory.NewIdentityStore(),
		events:   memory.NewAccessEventStore(),
		captures: memory.NewUnknownCaptureStore(),
		refs:     embeddings.Static{},
		lock:     &fakeLock{},
		display:  &fakeDisplay{},
		embedder: &fakeEmbedder{},
		evidence: &fakeEvidence{},
	}
	h.ctrl = session.New(cfg, session.Deps{
		Identities: h.ids,
		Embeddings: h.refs,
		Embedder:   h.embedder,
		Lock:       h.lock,
		Display:    h.display,
		Events:     h.events,
		Captures:   h.captures,
		Evidence:   h.evidence,
		Logger:     log.New(io.Discard, "", 0),
	})
	return h
}

// probeScoring returns reference and probe unit vectors whose cosine
// similarity is exactly score.
func probeScoring(score float64) (ref, probe types.Embedding) {
	ref = types.Embedding{1, 0}
	probe = types.Embedding{float32(score), float32(math.Sqrt(1 - score*score))}
	return ref, probe
}

// ── Scenario A: fingerprint → face match → grant ────────────────────────────

func TestGrant_FingerprintThenFaceMatch(t *testing.T) {
	h := newHarness(t, session.Config{MatchThreshold: 0.6})
	alice := h.ids.MustCreate("alice", 7, 1)

	ref, probe := probeScoring(0.72)
	h.refs[alice.ID] = []types.Embedding{ref}
	h.embedder.Probe = probe

	h.ctrl.Process(session.FingerprintEvent{TemplateID: 7, OK: true, At: *h.clock})
	if snap := h.ctrl.Snapshot(); snap.State != session.StateAwaitingFace {
		t.Fatalf("expected awaiting_face after fingerprint, got %s", snap.State)
	}

	h.advance(3 * time.Second)
	h.ctrl.Process(session.FrameEvent{Frame: types.Frame{Data: []byte("jpeg"), CapturedAt: *h.clock}})

	if snap := h.ctrl.Snapshot(); snap.State != session.StateIdle {
		t.Fatalf("expected idle after grant, got %s", snap.State)
	}

	unlocks := h.lock.Unlocks()
	if len(unlocks) != 1 || unlocks[0] != 5*time.Second {
		t.Errorf("expected one 5s unlock, got %v", unlocks)
	}

	face := h.faceEvents()
	if len(face) != 1 {
		t.Fatalf("expected exactly one face event, got %d", len(face))
	}
	if !face[0].Success {
		t.Error("expected face event success=true")
	}
	if face[0].IdentityID == nil || *face[0].IdentityID != alice.ID {
		t.Errorf("expected face event for alice (%d), got %v", alice.ID, face[0].IdentityID)
	}

	if got := h.display.Last(); got[0] != "Place Finger" {
		t.Errorf("expected idle display restored, got %v", got)
	}
}

// ── Scenario B: unresolved fingerprint → grace window → evidence ────────────

func TestUnknownFingerprint_GraceThenCapture(t *testing.T) {
	h := newHarness(t, session.Config{})

	h.ctrl.Process(session.FingerprintEvent{TemplateID: 99, OK: true, At: *h.clock})
	if snap := h.ctrl.Snapshot(); snap.State != session.StateUnknownGrace {
		t.Fatalf("expected unknown_grace for unresolved template, got %s", snap.State)
	}

	h.advance(2 * time.Second)
	h.tick()

	if snap := h.ctrl.Snapshot(); snap.State != session.StateIdle {
		t.Fatalf("expected idle after grace expiry, got %s", snap.State)
	}

	caps := h.captures.Captures()
	if len(caps) != 1 {
		t.Fatalf("expected one unknown capture, got %d", len(caps))
	}
	if caps[0].ImagePath != "" {
		t.Errorf("no frame was ever delivered; expected empty image path, got %q", caps[0].ImagePath)
	}

	events := h.events.Events()
	if len(events) != 1 {
		t.Fatalf("expected one access event, got %d", len(events))
	}
	if events[0].Method != types.MethodFingerprint || events[0].Success {
		t.Errorf("expected failed fingerprint event, got %+v", events[0])
	}
	if events[0].IdentityID != nil {
		t.Error("expected nil identity on unknown fingerprint event")
	}
}

func TestUnknownFingerprint_UsesMostRecentFrameAsEvidence(t *testing.T) {
	h := newHarness(t, session.Config{})

	// A frame seen while idle must still be usable as evidence.
	h.ctrl.Process(session.FrameEvent{Frame: types.Frame{Data: []byte("idle frame"), CapturedAt: *h.clock}})

	h.ctrl.Process(session.FingerprintEvent{TemplateID: 99, OK: true, At: *h.clock})
	h.advance(2 * time.Second)
	h.tick()

	caps := h.captures.Captures()
	if len(caps) != 1 || caps[0].ImagePath == "" {
		t.Fatalf("expected capture with evidence image, got %+v", caps)
	}
	if len(h.evidence.saved) != 1 || string(h.evidence.saved[0].Data) != "idle frame" {
		t.Errorf("expected the retained idle frame to be saved, got %v", h.evidence.saved)
	}
}

func TestSensorNoMatch_OpensGraceWindow(t *testing.T) {
	h := newHarness(t, session.Config{})

	h.ctrl.Process(session.FingerprintEvent{OK: false, At: *h.clock})
	if snap := h.ctrl.Snapshot(); snap.State != session.StateUnknownGrace {
		t.Fatalf("expected unknown_grace when sensor reports no match, got %s", snap.State)
	}
}

// ── Scenario C: empty reference set is an immediate, distinct terminal ───────

func TestEmptyReferenceSet_ImmediateTerminal(t *testing.T) {
	h := newHarness(t, session.Config{MatchThreshold: 0.6})
	bob := h.ids.MustCreate("bob", 3, 1)
	// No embeddings enrolled for bob.
	h.embedder.Probe = types.Embedding{1, 0}

	h.ctrl.Process(session.FingerprintEvent{TemplateID: 3, OK: true, At: *h.clock})
	h.ctrl.Process(session.FrameEvent{Frame: types.Frame{Data: []byte("f"), CapturedAt: *h.clock}})

	// No 10s wait: the first frame terminates the session.
	if snap := h.ctrl.Snapshot(); snap.State != session.StateIdle {
		t.Fatalf("expected immediate idle for empty reference set, got %s", snap.State)
	}

	face := h.faceEvents()
	if len(face) != 1 || face[0].Success {
		t.Fatalf("expected one failed face event, got %+v", face)
	}
	if face[0].Message != "no reference face data" {
		t.Errorf("expected the distinct no-reference-data cause, got %q", face[0].Message)
	}
	if face[0].IdentityID == nil || *face[0].IdentityID != bob.ID {
		t.Errorf("expected event for bob, got %v", face[0].IdentityID)
	}
	if len(h.lock.Unlocks()) != 0 {
		t.Error("no unlock may happen without a face match")
	}
	if got := h.display.Last(); got[0] != "Place Finger" {
		t.Errorf("expected idle display restored, got %v", got)
	}
}

// ── Scenario D: persistent low scores → timeout, no unlock ──────────────────

func TestFaceWindow_TimesOutOnLowScores(t *testing.T) {
	h := newHarness(t, session.Config{MatchThreshold: 0.6})
	alice := h.ids.MustCreate("alice", 7, 1)

	ref, probe := probeScoring(0.4)
	h.refs[alice.ID] = []types.Embedding{ref}
	h.embedder.Probe = probe

	h.ctrl.Process(session.FingerprintEvent{TemplateID: 7, OK: true, At: *h.clock})

	// Frames every 300ms, all scoring ~0.4: the window stays open.
	for i := 0; i < 30; i++ {
		h.advance(300 * time.Millisecond)
		h.ctrl.Process(session.FrameEvent{Frame: types.Frame{Data: []byte("f"), CapturedAt: *h.clock}})
	}

	snap := h.ctrl.Snapshot()
	if snap.State != session.StateAwaitingFace {
		t.Fatalf("window must stay open on sub-threshold scores, got %s", snap.State)
	}
	if math.Abs(snap.BestScore-0.4) > 1e-6 {
		t.Errorf("expected best score ~0.4 tracked, got %f", snap.BestScore)
	}

	// Past the 10s deadline even a frame must expire the window, not
	// extend it.
	h.advance(2 * time.Second)
	h.ctrl.Process(session.FrameEvent{Frame: types.Frame{Data: []byte("f"), CapturedAt: *h.clock}})

	if snap := h.ctrl.Snapshot(); snap.State != session.StateIdle {
		t.Fatalf("expected idle after timeout, got %s", snap.State)
	}
	if len(h.lock.Unlocks()) != 0 {
		t.Error("expected no unlock on timeout")
	}

	face := h.faceEvents()
	if len(face) != 1 || face[0].Success {
		t.Fatalf("expected exactly one failed face event, got %+v", face)
	}
	if want := "timeout"; !strings.Contains(face[0].Message, want) {
		t.Errorf("expected message containing %q, got %q", want, face[0].Message)
	}
}

// ── Unusable frames ─────────────────────────────────────────────────────────

func TestUnusableFrame_IsNoOp(t *testing.T) {
	h := newHarness(t, session.Config{MatchThreshold: 0.6})
	alice := h.ids.MustCreate("alice", 7, 1)
	h.refs[alice.ID] = []types.Embedding{{1, 0}}
	h.embedder.Probe = nil // no face found in any frame

	h.ctrl.Process(session.FingerprintEvent{TemplateID: 7, OK: true, At: *h.clock})
	h.ctrl.Process(session.FrameEvent{Frame: types.Frame{Data: []byte("f"), CapturedAt: *h.clock}})

	snap := h.ctrl.Snapshot()
	if snap.State != session.StateAwaitingFace {
		t.Fatalf("unusable frame must not change state, got %s", snap.State)
	}
	if snap.BestScore != 0 {
		t.Errorf("unusable frame must not touch best score, got %f", snap.BestScore)
	}
	if len(h.faceEvents()) != 0 {
		t.Error("unusable frame must not be audited")
	}
}

// ── At most one live session ────────────────────────────────────────────────

func TestSecondFingerprint_DeferredUntilTerminal(t *testing.T) {
	h := newHarness(t, session.Config{MatchThreshold: 0.6})
	alice := h.ids.MustCreate("alice", 7, 1)
	bob := h.ids.MustCreate("bob", 8, 1)
	h.refs[alice.ID] = []types.Embedding{{1, 0}}
	h.refs[bob.ID] = []types.Embedding{{0, 1}}
	h.embedder.Probe = nil

	h.ctrl.Process(session.FingerprintEvent{TemplateID: 7, OK: true, At: *h.clock})
	h.ctrl.Process(session.FingerprintEvent{TemplateID: 8, OK: true, At: *h.clock})

	// Bob's scan must not pre-empt alice's live session.
	snap := h.ctrl.Snapshot()
	if snap.State != session.StateAwaitingFace {
		t.Fatalf("expected alice's window still open, got %s", snap.State)
	}
	if snap.Candidate == nil || snap.Candidate.ID != alice.ID {
		t.Fatalf("expected candidate alice, got %+v", snap.Candidate)
	}

	// Alice times out; bob's deferred scan opens the next session.
	h.advance(11 * time.Second)
	h.tick()

	snap = h.ctrl.Snapshot()
	if snap.State != session.StateAwaitingFace {
		t.Fatalf("expected bob's window open after alice's terminal, got %s", snap.State)
	}
	if snap.Candidate == nil || snap.Candidate.ID != bob.ID {
		t.Fatalf("expected candidate bob, got %+v", snap.Candidate)
	}
}

// ── Idempotent timeout ──────────────────────────────────────────────────────

func TestDuplicateTick_NoDoubleLogging(t *testing.T) {
	h := newHarness(t, session.Config{})

	h.ctrl.Process(session.FingerprintEvent{TemplateID: 99, OK: true, At: *h.clock})
	h.advance(3 * time.Second)
	h.tick()
	h.tick() // duplicate delivery of the same expiry

	if got := len(h.events.Events()); got != 1 {
		t.Errorf("duplicate tick double-logged: %d events", got)
	}
	if got := len(h.captures.Captures()); got != 1 {
		t.Errorf("duplicate tick double-captured: %d captures", got)
	}
}

func TestEarlyTick_DoesNotExpire(t *testing.T) {
	h := newHarness(t, session.Config{})

	h.ctrl.Process(session.FingerprintEvent{TemplateID: 99, OK: true, At: *h.clock})
	h.advance(time.Second) // grace is 2s
	h.tick()

	if snap := h.ctrl.Snapshot(); snap.State != session.StateUnknownGrace {
		t.Fatalf("tick before deadline must not expire the session, got %s", snap.State)
	}
}

// ── Abort ───────────────────────────────────────────────────────────────────

func TestAbort_ClosesLiveSession(t *testing.T) {
	h := newHarness(t, session.Config{MatchThreshold: 0.6})
	alice := h.ids.MustCreate("alice", 7, 1)
	h.refs[alice.ID] = []types.Embedding{{1, 0}}

	h.ctrl.Process(session.FingerprintEvent{TemplateID: 7, OK: true, At: *h.clock})
	h.ctrl.Process(session.AbortEvent{Reason: "operator reset", At: *h.clock})

	if snap := h.ctrl.Snapshot(); snap.State != session.StateIdle {
		t.Fatalf("expected idle after abort, got %s", snap.State)
	}

	face := h.faceEvents()
	if len(face) != 1 || face[0].Success || !strings.Contains(face[0].Message, "operator reset") {
		t.Fatalf("expected failed face event carrying the abort reason, got %+v", face)
	}
}

func TestAbort_WithoutSessionIsNoOp(t *testing.T) {
	h := newHarness(t, session.Config{})
	h.ctrl.Process(session.AbortEvent{Reason: "spurious", At: *h.clock})
	if got := len(h.events.Events()); got != 0 {
		t.Errorf("abort without a session must not audit, got %d events", got)
	}
}

// ── Run loop ────────────────────────────────────────────────────────────────

func TestRun_ConsumesSubmittedEvents(t *testing.T) {
	h := newHarness(t, session.Config{MatchThreshold: 0.6})
	alice := h.ids.MustCreate("alice", 7, 1)
	ref, probe := probeScoring(0.9)
	h.refs[alice.ID] = []types.Embedding{ref}
	h.embedder.Probe = probe

	// Real clock for the run loop.
	h.ctrl = session.New(session.Config{MatchThreshold: 0.6}, session.Deps{
		Identities: h.ids,
		Embeddings: h.refs,
		Embedder:   h.embedder,
		Lock:       h.lock,
		Display:    h.display,
		Events:     h.events,
		Captures:   h.captures,
		Evidence:   h.evidence,
		Logger:     log.New(io.Discard, "", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.ctrl.Run(ctx)
	}()

	h.ctrl.Submit(session.FingerprintEvent{TemplateID: 7, OK: true, At: time.Now().UTC()})
	h.ctrl.Submit(session.FrameEvent{Frame: types.Frame{Data: []byte("f"), CapturedAt: time.Now().UTC()}})

	deadline := time.After(2 * time.Second)
	for len(h.lock.Unlocks()) == 0 {
		select {
		case <-deadline:
			t.Fatal("run loop never granted access")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

