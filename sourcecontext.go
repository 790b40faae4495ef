package ffms

import (
	"sync"
)

// SourceContext owns the demuxer of one source file. A VideoSource and an
// AudioSource opened on the same context take turns with it; a source that
// finds the demuxer moved by another source repositions before reading.
type SourceContext struct {
	mu      sync.Mutex
	path    string
	index   *MediaIndex
	backend Backend
	demux   Demuxer
	owner   any
	closed  bool
}

// OpenSourceContext opens path through the backend that produced idx.
func OpenSourceContext(reg *DecoderRegistry, path string, idx *MediaIndex) (*SourceContext, error) {
	if idx == nil {
		return nil, newError(KindInvalidArgument, "OpenSource", "nil index")
	}
	b, ok := reg.Lookup(idx.Decoder)
	if !ok {
		return nil, newErrorf(KindDecoderMismatch, "OpenSource", "no %s backend registered", idx.Decoder)
	}
	d, err := b.Open(path, idx)
	if err != nil {
		return nil, wrapError(KindDemux, "OpenSource", err, "cannot open source file")
	}
	return &SourceContext{path: path, index: idx, backend: b, demux: d}, nil
}

// Path returns the source file name.
func (c *SourceContext) Path() string { return c.path }

// Index returns the index the context was opened with.
func (c *SourceContext) Index() *MediaIndex { return c.index }

// Backend returns the backend serving the file.
func (c *SourceContext) Backend() Backend { return c.backend }

// acquire locks the demuxer for owner and reports whether another owner
// used it since owner last did. Release with release.
func (c *SourceContext) acquire(owner any) (Demuxer, bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, false, newError(KindInvalidArgument, "SourceContext", "use of closed source")
	}
	moved := c.owner != owner
	c.owner = owner
	return c.demux, moved, nil
}

func (c *SourceContext) release() { c.mu.Unlock() }

// forget clears owner so a later source with a reused address cannot
// inherit its position.
func (c *SourceContext) forget(owner any) {
	c.mu.Lock()
	if c.owner == owner {
		c.owner = nil
	}
	c.mu.Unlock()
}

// Close releases the demuxer. Sources using the context fail afterwards.
func (c *SourceContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.demux.Close()
}
