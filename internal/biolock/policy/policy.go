// Package policy implements the face match decision: cosine similarity
// against every reference embedding for a candidate identity, best score
// wins, inclusive threshold.
package policy

import (
	"errors"
	"math"

	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

// DefaultThreshold is the stock decision threshold. Deployments running
// in poor lighting have been operated down at 0.55.
const DefaultThreshold = 0.6

// ErrNoReferenceData indicates the candidate identity has no enrolled
// face embeddings. Callers must treat this as its own terminal cause so
// the operator can be told to enroll a face, not as a plain non-match.
var ErrNoReferenceData = errors.New("no reference face data for identity")

// Similarity returns the cosine similarity of a and b clamped to [0, 1].
// A zero-norm vector (or mismatched lengths) scores 0.
func Similarity(a, b types.Embedding) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// Decision is the outcome of verifying one probe embedding.
type Decision struct {
	BestScore float64
	Matched   bool
}

// Verifier applies the best-of-N match policy with a configured threshold.
type Verifier struct {
	threshold float64
}

// NewVerifier clamps out-of-range thresholds back to the default rather
// than failing: a misconfigured threshold must not brick the door.
func NewVerifier(threshold float64) *Verifier {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Verifier{threshold: threshold}
}

// Threshold returns the active decision threshold.
func (v *Verifier) Threshold() float64 { return v.threshold }

// Verify scores the probe against every reference embedding and reports
// the maximum. Ties at the threshold count as a match. An empty reference
// set returns ErrNoReferenceData.
func (v *Verifier) Verify(refs []types.Embedding, probe types.Embedding) (Decision, error) {
	if len(refs) == 0 {
		return Decision{}, ErrNoReferenceData
	}
	var best float64
	for _, ref := range refs {
		if s := Similarity(probe, ref); s > best {
			best = s
		}
	}
	return Decision{BestScore: best, Matched: best >= v.threshold}, nil
}
