package types

import "time"

// Embedding is a fixed-length face vector produced by the external
// detect-and-embed model. The controller never inspects individual
// components; it only hands embeddings to the match policy.
type Embedding []float32

// Frame is one camera capture. The image bytes are opaque to the
// controller — only the embedder and the evidence recorder look inside.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
}

// Empty reports whether the frame carries no image data.
func (f Frame) Empty() bool { return len(f.Data) == 0 }
