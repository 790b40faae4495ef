package ffms

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// DecoderID identifies the backend that produced an index.
type DecoderID int32

const (
	DecoderLavf     DecoderID = 0
	DecoderMatroska DecoderID = 1

	// AnyDecoder disables the decoder check of ReadIndex.
	AnyDecoder DecoderID = -1
)

func (d DecoderID) String() string {
	switch d {
	case DecoderLavf:
		return "lavf"
	case DecoderMatroska:
		return "matroska"
	case AnyDecoder:
		return "any"
	default:
		return "unknown"
	}
}

const (
	indexMagic   uint32 = 0x53920873
	indexVersion uint32 = 3
)

// record flag bits in the serialized form
const (
	recKeyFrame byte = 1 << iota
	recHasSampleStart
	recDecodeFailed
)

// MediaIndex holds one TrackIndex per demuxed stream.
type MediaIndex struct {
	Decoder  DecoderID
	FileSize int64
	Digest   [DigestSize]byte
	Tracks   []*TrackIndex
}

// NumTracks returns the number of tracks.
func (idx *MediaIndex) NumTracks() int { return len(idx.Tracks) }

// Track returns track n.
func (idx *MediaIndex) Track(n int) (*TrackIndex, error) {
	if n < 0 || n >= len(idx.Tracks) {
		return nil, newErrorf(KindInvalidArgument, "Track", "invalid track number %d", n)
	}
	return idx.Tracks[n], nil
}

// FirstTrackOfType returns the number of the first track of type typ that
// has records.
func (idx *MediaIndex) FirstTrackOfType(typ TrackType) (int, error) {
	for i, t := range idx.Tracks {
		if t.Type == typ && t.Len() > 0 {
			return i, nil
		}
	}
	return -1, newErrorf(KindNoFrames, "FirstTrackOfType", "no %s track found", typ)
}

// Matches reports whether the index was built from the file at path.
func (idx *MediaIndex) Matches(path string) (bool, error) {
	size, digest, err := FileDigest(path)
	if err != nil {
		return false, err
	}
	return size == idx.FileSize && digest == idx.Digest, nil
}

// Write stores the index at path, replacing any existing file.
func (idx *MediaIndex) Write(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return wrapError(KindIO, "WriteIndex", err, "cannot create index file")
	}
	defer os.Remove(tmp.Name())

	if _, err := idx.WriteTo(tmp); err != nil {
		tmp.Close()
		return wrapError(KindIO, "WriteIndex", err, "")
	}
	if err := tmp.Close(); err != nil {
		return wrapError(KindIO, "WriteIndex", err, "")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return wrapError(KindIO, "WriteIndex", err, "cannot replace index file")
	}
	return nil
}

// WriteTo serializes the index.
func (idx *MediaIndex) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], indexMagic)
	binary.LittleEndian.PutUint32(hdr[4:], indexVersion)
	if _, err := cw.Write(hdr[:]); err != nil {
		return cw.n, errors.Wrap(err, "write index header")
	}

	zw := zlib.NewWriter(cw)
	bw := bufio.NewWriter(zw)
	enc := indexEncoder{w: bw}
	enc.int(int64(idx.Decoder))
	enc.int(idx.FileSize)
	enc.raw(idx.Digest[:])
	enc.uint(uint64(len(idx.Tracks)))
	for _, t := range idx.Tracks {
		enc.uint(uint64(t.Type))
		enc.int(t.TimeBase.Num)
		enc.int(t.TimeBase.Den)
		enc.uint(uint64(len(t.Records)))
		var prev FrameRecord
		for _, r := range t.Records {
			var flags byte
			if r.KeyFrame {
				flags |= recKeyFrame
			}
			if r.HasSampleStart {
				flags |= recHasSampleStart
			}
			if r.DecodeFailed {
				flags |= recDecodeFailed
			}
			enc.raw([]byte{flags})
			enc.int(r.DTS - prev.DTS)
			enc.int(r.SampleStart - prev.SampleStart)
			enc.uint(uint64(r.SampleCount))
			enc.int(r.FilePos - prev.FilePos)
			enc.uint(uint64(r.Size))
			prev = r
		}
	}
	if enc.err != nil {
		return cw.n, errors.Wrap(enc.err, "write index body")
	}
	if err := bw.Flush(); err != nil {
		return cw.n, errors.Wrap(err, "write index body")
	}
	if err := zw.Close(); err != nil {
		return cw.n, errors.Wrap(err, "write index body")
	}
	return cw.n, nil
}

// ReadIndex loads an index file. expected is the backend the caller intends
// to use it with, or AnyDecoder.
func ReadIndex(path string, expected DecoderID) (*MediaIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapError(KindIO, "ReadIndex", err, "cannot open index file")
	}
	defer f.Close()
	return ReadIndexFrom(bufio.NewReader(f), expected)
}

// ReadIndexFrom decodes an index written by WriteTo.
func ReadIndexFrom(r io.Reader, expected DecoderID) (*MediaIndex, error) {
	const op = "ReadIndex"
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, wrapError(KindIO, op, err, "cannot read index header")
	}
	if binary.LittleEndian.Uint32(hdr[0:]) != indexMagic {
		return nil, newError(KindVersionMismatch, op, "not an index file")
	}
	if v := binary.LittleEndian.Uint32(hdr[4:]); v != indexVersion {
		return nil, newErrorf(KindVersionMismatch, op, "index version %d, want %d", v, indexVersion)
	}

	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, wrapError(KindIO, op, err, "corrupt index body")
	}
	defer zr.Close()
	dec := indexDecoder{r: bufio.NewReader(zr)}

	idx := &MediaIndex{}
	idx.Decoder = DecoderID(dec.int())
	if dec.err == nil && expected != AnyDecoder && idx.Decoder != expected {
		return nil, newErrorf(KindDecoderMismatch, op, "index made by %s, want %s", idx.Decoder, expected)
	}
	idx.FileSize = dec.int()
	dec.raw(idx.Digest[:])
	ntracks := dec.count()
	for i := 0; i < ntracks && dec.err == nil; i++ {
		t := &TrackIndex{}
		t.Type = TrackType(dec.uint())
		t.TimeBase.Num = dec.int()
		t.TimeBase.Den = dec.int()
		n := dec.count()
		if n > 0 {
			// The count is untrusted until the records are read.
			t.Records = make([]FrameRecord, 0, min(n, maxPreallocRecords))
		}
		var prev FrameRecord
		var flags [1]byte
		for j := 0; j < n && dec.err == nil; j++ {
			dec.raw(flags[:])
			rec := FrameRecord{
				KeyFrame:       flags[0]&recKeyFrame != 0,
				HasSampleStart: flags[0]&recHasSampleStart != 0,
				DecodeFailed:   flags[0]&recDecodeFailed != 0,
			}
			rec.DTS = prev.DTS + dec.int()
			rec.SampleStart = prev.SampleStart + dec.int()
			rec.SampleCount = uint32(dec.uint())
			rec.FilePos = prev.FilePos + dec.int()
			rec.Size = uint32(dec.uint())
			t.Records = append(t.Records, rec)
			prev = rec
		}
		idx.Tracks = append(idx.Tracks, t)
	}
	if dec.err != nil {
		return nil, wrapError(KindIO, op, dec.err, "truncated index")
	}
	return idx, nil
}

type indexEncoder struct {
	w   io.Writer
	buf [binary.MaxVarintLen64]byte
	err error
}

func (e *indexEncoder) raw(p []byte) {
	if e.err == nil {
		_, e.err = e.w.Write(p)
	}
}

func (e *indexEncoder) int(v int64) {
	n := binary.PutVarint(e.buf[:], v)
	e.raw(e.buf[:n])
}

func (e *indexEncoder) uint(v uint64) {
	n := binary.PutUvarint(e.buf[:], v)
	e.raw(e.buf[:n])
}

// maxPreallocRecords bounds the record slice reserved from a length prefix.
const maxPreallocRecords = 1 << 16

type indexDecoder struct {
	r   *bufio.Reader
	err error
}

func (d *indexDecoder) raw(p []byte) {
	if d.err == nil {
		_, d.err = io.ReadFull(d.r, p)
	}
}

func (d *indexDecoder) int() int64 {
	if d.err != nil {
		return 0
	}
	v, err := binary.ReadVarint(d.r)
	d.err = err
	return v
}

func (d *indexDecoder) uint() uint64 {
	if d.err != nil {
		return 0
	}
	v, err := binary.ReadUvarint(d.r)
	d.err = err
	return v
}

// count reads a length prefix and rejects values no real file could hold.
func (d *indexDecoder) count() int {
	v := d.uint()
	if v > 1<<31 {
		if d.err == nil {
			d.err = errors.Errorf("implausible element count %d", v)
		}
		return 0
	}
	return int(v)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Equal reports whether two indexes carry identical contents.
func (idx *MediaIndex) Equal(other *MediaIndex) bool {
	if idx.Decoder != other.Decoder || idx.FileSize != other.FileSize ||
		idx.Digest != other.Digest || len(idx.Tracks) != len(other.Tracks) {
		return false
	}
	for i, t := range idx.Tracks {
		o := other.Tracks[i]
		if t.Type != o.Type || t.TimeBase != o.TimeBase || len(t.Records) != len(o.Records) {
			return false
		}
		for j := range t.Records {
			if t.Records[j] != o.Records[j] {
				return false
			}
		}
	}
	return true
}
