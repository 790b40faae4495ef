package ffms

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// AudioSink receives decoded interleaved audio during indexing.
type AudioSink interface {
	WriteSamples(data []byte, samples int) error
	Close() error
}

// AudioSinkFactory creates the sink for a dumped track. delayMs is the
// track's first timestamp in milliseconds.
type AudioSinkFactory func(track int, format AudioFormat, delayMs int64) (AudioSink, error)

// AudioNameFunc names the dump file of a track.
type AudioNameFunc func(track int, delayMs int64) string

// DefaultAudioName returns the naming scheme <base>.<track>.delay.<ms>.w64.
func DefaultAudioName(base string) AudioNameFunc {
	return func(track int, delayMs int64) string {
		return fmt.Sprintf("%s.%02d.delay.%d.w64", base, track, delayMs)
	}
}

// Wave64FileSinks returns a factory writing each track to a Wave64 file
// named by name.
func Wave64FileSinks(name AudioNameFunc) AudioSinkFactory {
	return func(track int, format AudioFormat, delayMs int64) (AudioSink, error) {
		return CreateWave64File(name(track, delayMs), format)
	}
}

var (
	w64GUIDRiff = [16]byte{'r', 'i', 'f', 'f', 0x2E, 0x91, 0xCF, 0x11, 0xA5, 0xD6, 0x28, 0xDB, 0x04, 0xC1, 0x00, 0x00}
	w64GUIDWave = [16]byte{'w', 'a', 'v', 'e', 0xF3, 0xAC, 0xD3, 0x11, 0x8C, 0xD1, 0x00, 0xC0, 0x4F, 0x8E, 0xDB, 0x8A}
	w64GUIDFmt  = [16]byte{'f', 'm', 't', ' ', 0xF3, 0xAC, 0xD3, 0x11, 0x8C, 0xD1, 0x00, 0xC0, 0x4F, 0x8E, 0xDB, 0x8A}
	w64GUIDData = [16]byte{'d', 'a', 't', 'a', 0xF3, 0xAC, 0xD3, 0x11, 0x8C, 0xD1, 0x00, 0xC0, 0x4F, 0x8E, 0xDB, 0x8A}
)

const (
	w64HeaderSize = 112
	w64FmtSize    = 48
	w64ChunkHdr   = 24

	waveFormatPCM   = 1
	waveFormatFloat = 3
)

// Wave64Writer writes Sony Wave64 audio. Chunk sizes are patched in by Close.
type Wave64Writer struct {
	w       io.WriteSeeker
	closer  io.Closer
	format  AudioFormat
	written uint64
	closed  bool
}

// NewWave64Writer writes a header for format to w.
func NewWave64Writer(w io.WriteSeeker, format AudioFormat) (*Wave64Writer, error) {
	if format.BytesPerFrame() == 0 || format.SampleRate <= 0 {
		return nil, newErrorf(KindInvalidArgument, "NewWave64Writer", "cannot write audio format %+v", format)
	}
	ww := &Wave64Writer{w: w, format: format}
	if err := ww.writeHeader(true); err != nil {
		return nil, err
	}
	return ww, nil
}

// CreateWave64File creates path and writes a header for format.
func CreateWave64File(path string, format AudioFormat) (*Wave64Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, wrapError(KindIO, "CreateWave64File", err, "cannot create audio dump")
	}
	ww, err := NewWave64Writer(f, format)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	ww.closer = f
	return ww, nil
}

func (ww *Wave64Writer) writeHeader(initial bool) error {
	var h [w64HeaderSize]byte
	le := binary.LittleEndian
	copy(h[0:], w64GUIDRiff[:])
	copy(h[24:], w64GUIDWave[:])
	copy(h[40:], w64GUIDFmt[:])
	le.PutUint64(h[56:], w64FmtSize)

	f := ww.format
	tag := uint16(waveFormatPCM)
	if f.SampleFormat.IsFloat() {
		tag = waveFormatFloat
	}
	blockAlign := f.BytesPerFrame()
	le.PutUint16(h[64:], tag)
	le.PutUint16(h[66:], uint16(f.Channels))
	le.PutUint32(h[68:], uint32(f.SampleRate))
	le.PutUint32(h[72:], uint32(f.SampleRate*blockAlign))
	le.PutUint16(h[76:], uint16(blockAlign))
	le.PutUint16(h[78:], uint16(f.SampleFormat.BytesPerSample()*8))
	// cbSize and padding stay zero.

	copy(h[88:], w64GUIDData[:])
	if initial {
		le.PutUint64(h[16:], 0x7F00000000000000)
		le.PutUint64(h[104:], 0x7E00000000000000)
	} else {
		le.PutUint64(h[16:], ww.written+w64HeaderSize)
		le.PutUint64(h[104:], ww.written+w64ChunkHdr)
	}
	if _, err := ww.w.Write(h[:]); err != nil {
		return wrapError(KindIO, "Wave64", errors.Wrap(err, "write header"), "")
	}
	return nil
}

// WriteSamples appends interleaved samples.
func (ww *Wave64Writer) WriteSamples(data []byte, samples int) error {
	n := samples * ww.format.BytesPerFrame()
	if n > len(data) {
		return newErrorf(KindInvalidArgument, "Wave64", "%d samples need %d bytes, have %d", samples, n, len(data))
	}
	if _, err := ww.w.Write(data[:n]); err != nil {
		return wrapError(KindIO, "Wave64", errors.Wrap(err, "write samples"), "")
	}
	ww.written += uint64(n)
	return nil
}

// Written returns the number of sample bytes written.
func (ww *Wave64Writer) Written() uint64 { return ww.written }

// Close rewrites the header with the final sizes and closes the file the
// writer created.
func (ww *Wave64Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	_, err := ww.w.Seek(0, io.SeekStart)
	if err == nil {
		err = ww.writeHeader(false)
	} else {
		err = wrapError(KindIO, "Wave64", err, "cannot seek to header")
	}
	if ww.closer != nil {
		if cerr := ww.closer.Close(); err == nil && cerr != nil {
			err = wrapError(KindIO, "Wave64", cerr, "")
		}
	}
	return err
}
