package ffms

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// TrackType is the kind of elementary stream a TrackIndex describes.
type TrackType int

const (
	TrackTypeOther TrackType = iota
	TrackTypeVideo
	TrackTypeAudio
)

func (t TrackType) String() string {
	switch t {
	case TrackTypeVideo:
		return "video"
	case TrackTypeAudio:
		return "audio"
	default:
		return "other"
	}
}

// FrameRecord describes one coded packet of a track.
type FrameRecord struct {
	DTS            int64
	SampleStart    int64 // valid when HasSampleStart
	HasSampleStart bool
	SampleCount    uint32
	FilePos        int64
	Size           uint32
	KeyFrame       bool
	// DecodeFailed marks a record whose packet could not be decoded while
	// indexing. SampleStart was carried forward unchanged.
	DecodeFailed bool
}

// TimeBase converts timestamps to milliseconds: ms = ts * Num / Den.
type TimeBase struct {
	Num int64
	Den int64
}

// Milliseconds converts ts using the time base.
func (tb TimeBase) Milliseconds(ts int64) float64 {
	if tb.Den == 0 {
		return 0
	}
	return float64(ts) * float64(tb.Num) / float64(tb.Den)
}

// TrackIndex is the ordered record list of one track. Records are in decode
// order. A TrackIndex is not modified once the Indexer returns it.
type TrackIndex struct {
	Type     TrackType
	TimeBase TimeBase
	Records  []FrameRecord
}

// NewTrackIndex returns an empty track.
func NewTrackIndex(typ TrackType, tb TimeBase) *TrackIndex {
	return &TrackIndex{Type: typ, TimeBase: tb}
}

// Len returns the number of records.
func (t *TrackIndex) Len() int { return len(t.Records) }

// FindClosestKeyFrame returns the last key frame at or before n, or 0.
func (t *TrackIndex) FindClosestKeyFrame(n int) int {
	if n >= len(t.Records) {
		n = len(t.Records) - 1
	}
	for i := n; i > 0; i-- {
		if t.Records[i].KeyFrame {
			return i
		}
	}
	return 0
}

// FrameFromTimestamp returns the first record whose DTS equals ts.
func (t *TrackIndex) FrameFromTimestamp(ts int64) (int, bool) {
	for i := range t.Records {
		if t.Records[i].DTS == ts {
			return i, true
		}
	}
	return -1, false
}

// ClosestFrameFromTimestamp returns the record whose DTS is nearest to ts.
// Ties resolve to the earlier record. Returns 0 for an empty track.
func (t *TrackIndex) ClosestFrameFromTimestamp(ts int64) int {
	best := 0
	var bestDist uint64
	for i := range t.Records {
		d := absDiff(t.Records[i].DTS, ts)
		if i == 0 || d < bestDist {
			best, bestDist = i, d
		}
		if d == 0 {
			break
		}
	}
	return best
}

// FindClosestAudioKeyFrame returns the last key frame whose SampleStart is at
// or before sample, or 0.
func (t *TrackIndex) FindClosestAudioKeyFrame(sample int64) int {
	n := sort.Search(len(t.Records), func(i int) bool {
		return t.Records[i].SampleStart > sample
	}) - 1
	for i := n; i > 0; i-- {
		if t.Records[i].KeyFrame {
			return i
		}
	}
	return 0
}

// NumSamples returns the total number of decoded samples of an audio track.
func (t *TrackIndex) NumSamples() int64 {
	if len(t.Records) == 0 {
		return 0
	}
	last := t.Records[len(t.Records)-1]
	return last.SampleStart + int64(last.SampleCount)
}

// HasSampleStarts reports whether the track was decoded while indexing.
func (t *TrackIndex) HasSampleStarts() bool {
	return len(t.Records) > 0 && t.Records[0].HasSampleStart
}

// KeyFrames returns the indexes of all key frames.
func (t *TrackIndex) KeyFrames() []int {
	var out []int
	for i := range t.Records {
		if t.Records[i].KeyFrame {
			out = append(out, i)
		}
	}
	return out
}

// Milliseconds converts a DTS of this track to milliseconds.
func (t *TrackIndex) Milliseconds(ts int64) float64 {
	return t.TimeBase.Milliseconds(ts)
}

// WriteTimecodes writes a v2 timecode file.
func (t *TrackIndex) WriteTimecodes(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("# timecode format v2\n"); err != nil {
		return errors.Wrap(err, "write timecodes")
	}
	for i := range t.Records {
		if _, err := fmt.Fprintf(bw, "%.2f\n", t.Milliseconds(t.Records[i].DTS)); err != nil {
			return errors.Wrap(err, "write timecodes")
		}
	}
	return errors.Wrap(bw.Flush(), "write timecodes")
}

// WriteTimecodesFile writes a v2 timecode file to path.
func (t *TrackIndex) WriteTimecodesFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return wrapError(KindIO, "WriteTimecodes", err, "cannot create timecode file")
	}
	if err := t.WriteTimecodes(f); err != nil {
		f.Close()
		return wrapError(KindIO, "WriteTimecodes", err, "")
	}
	return wrapError(KindIO, "WriteTimecodes", f.Close(), "")
}

// WriteKeyFrames writes one key frame index per line after a format header.
func (t *TrackIndex) WriteKeyFrames(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("# keyframe format v1\nfps 0\n"); err != nil {
		return errors.Wrap(err, "write keyframes")
	}
	for _, k := range t.KeyFrames() {
		if _, err := fmt.Fprintf(bw, "%d\n", k); err != nil {
			return errors.Wrap(err, "write keyframes")
		}
	}
	return errors.Wrap(bw.Flush(), "write keyframes")
}

func absDiff(a, b int64) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}
