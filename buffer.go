package ffms

import "github.com/valyala/bytebufferpool"

// ScratchBuffer is a reusable byte buffer for packet reads and decode output.
// Its capacity only grows; the content length is set by each Resize.
type ScratchBuffer struct {
	bb bytebufferpool.ByteBuffer
}

// Resize sets the length to n, growing the capacity when needed, and returns
// the buffer contents. Previous contents are kept up to min(old len, n).
func (b *ScratchBuffer) Resize(n int) []byte {
	if n > cap(b.bb.B) {
		grown := make([]byte, n, growCap(cap(b.bb.B), n))
		copy(grown, b.bb.B)
		b.bb.B = grown
	}
	b.bb.B = b.bb.B[:n]
	return b.bb.B
}

// Append adds p to the contents.
func (b *ScratchBuffer) Append(p []byte) {
	_, _ = b.bb.Write(p)
}

// Reset empties the buffer and keeps its capacity.
func (b *ScratchBuffer) Reset() { b.bb.Reset() }

// Bytes returns the current contents.
func (b *ScratchBuffer) Bytes() []byte { return b.bb.B }

// Len returns the content length.
func (b *ScratchBuffer) Len() int { return b.bb.Len() }

// Cap returns the allocated capacity.
func (b *ScratchBuffer) Cap() int { return cap(b.bb.B) }

func growCap(old, need int) int {
	c := old * 2
	if c < need {
		c = need
	}
	return c
}
