package ffms

import (
	"container/list"
	"sort"
)

// DefaultAudioCacheBlocks is the number of decoded blocks an AudioSource keeps.
const DefaultAudioCacheBlocks = 50

type cacheBlock struct {
	start   int64
	samples int64
	data    []byte
}

// SampleCache keeps decoded audio blocks keyed by their first sample.
// New blocks are inserted at the front and the oldest insertion is evicted
// from the back; reading a block does not refresh it.
// A SampleCache is owned by one AudioSource and is not safe for concurrent use.
type SampleCache struct {
	bytesPerSample int64
	maxEntries     int
	blocks         *list.List // of *cacheBlock, newest first
}

// NewSampleCache returns a configured cache.
func NewSampleCache(bytesPerSampleFrame, maxEntries int) *SampleCache {
	c := &SampleCache{}
	c.Configure(bytesPerSampleFrame, maxEntries)
	return c
}

// Configure sets the frame size and bound, dropping all cached blocks.
func (c *SampleCache) Configure(bytesPerSampleFrame, maxEntries int) {
	c.bytesPerSample = int64(bytesPerSampleFrame)
	c.maxEntries = maxEntries
	c.blocks = list.New()
}

// Len returns the number of cached blocks.
func (c *SampleCache) Len() int { return c.blocks.Len() }

// Clear drops every block.
func (c *SampleCache) Clear() { c.blocks.Init() }

// Insert caches count samples starting at start. data is copied.
func (c *SampleCache) Insert(start, count int64, data []byte) {
	if count <= 0 || c.maxEntries <= 0 {
		return
	}
	for e := c.blocks.Front(); e != nil; e = e.Next() {
		if e.Value.(*cacheBlock).start == start {
			c.blocks.Remove(e)
			break
		}
	}

	n := count * c.bytesPerSample
	if n > int64(len(data)) {
		// Short buffers are truncated to whole sample frames.
		count = int64(len(data)) / c.bytesPerSample
		n = count * c.bytesPerSample
		if count == 0 {
			return
		}
	}
	b := &cacheBlock{start: start, samples: count, data: make([]byte, n)}
	copy(b.data, data[:n])
	c.blocks.PushFront(b)

	for c.blocks.Len() > c.maxEntries {
		c.blocks.Remove(c.blocks.Back())
	}
}

// FillRequest copies every cached sample of [start, start+count) into dst,
// which must hold count sample frames. It returns the first sample past the
// unbroken run of cached samples that begins exactly at start, capped at
// start+count; start itself means the first sample is not cached.
func (c *SampleCache) FillRequest(start, count int64, dst []byte) int64 {
	end := start + count
	var used []*cacheBlock
	for e := c.blocks.Front(); e != nil; e = e.Next() {
		b := e.Value.(*cacheBlock)
		bEnd := b.start + b.samples
		if b.start >= end || bEnd <= start {
			continue
		}
		from := max(b.start, start)
		to := min(bEnd, end)
		copy(dst[(from-start)*c.bytesPerSample:(to-start)*c.bytesPerSample],
			b.data[(from-b.start)*c.bytesPerSample:(to-b.start)*c.bytesPerSample])
		used = append(used, b)
	}

	sort.Slice(used, func(i, j int) bool { return used[i].start < used[j].start })
	reached := start
	for _, b := range used {
		if b.start > reached {
			break
		}
		reached = max(reached, b.start+b.samples)
	}
	return min(reached, end)
}
