package ffms

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// PacketSource reads the payload of an indexed packet straight from the file.
type PacketSource interface {
	// ReadFrame returns the payload stored at [pos, pos+size). The returned
	// slice aliases buf and stays valid until buf is reused.
	ReadFrame(pos int64, size int, buf *ScratchBuffer) ([]byte, error)
}

// RawPacketSource returns stored bytes unchanged.
type RawPacketSource struct {
	r io.ReaderAt
}

// NewRawPacketSource reads from r.
func NewRawPacketSource(r io.ReaderAt) *RawPacketSource {
	return &RawPacketSource{r: r}
}

// ReadFrame implements PacketSource.
func (s *RawPacketSource) ReadFrame(pos int64, size int, buf *ScratchBuffer) ([]byte, error) {
	if size < 0 || pos < 0 {
		return nil, newErrorf(KindInvalidArgument, "ReadFrame", "bad frame location %d+%d", pos, size)
	}
	p := buf.Resize(size)
	if _, err := s.r.ReadAt(p, pos); err != nil {
		return nil, wrapError(KindDemux, "ReadFrame", err, "short read")
	}
	return p, nil
}

// CompressionAlgorithm is how a stored payload was transformed.
// Values follow Matroska's ContentCompAlgo.
type CompressionAlgorithm int

const (
	CompressionZlib        CompressionAlgorithm = 0
	CompressionHeaderStrip CompressionAlgorithm = 3
)

// CompressedPacketSource undoes per-frame content compression on top of a
// raw read.
type CompressedPacketSource struct {
	raw       *RawPacketSource
	algorithm CompressionAlgorithm
	settings  []byte
	stored    ScratchBuffer
}

// NewCompressedPacketSource reads from r and decompresses with algorithm.
// For header stripping, settings holds the stripped prefix.
func NewCompressedPacketSource(r io.ReaderAt, algorithm CompressionAlgorithm, settings []byte) (*CompressedPacketSource, error) {
	switch algorithm {
	case CompressionZlib, CompressionHeaderStrip:
	default:
		return nil, newErrorf(KindUnsupported, "NewCompressedPacketSource", "unsupported content compression %d", algorithm)
	}
	return &CompressedPacketSource{
		raw:       NewRawPacketSource(r),
		algorithm: algorithm,
		settings:  append([]byte(nil), settings...),
	}, nil
}

// ReadFrame implements PacketSource.
func (s *CompressedPacketSource) ReadFrame(pos int64, size int, buf *ScratchBuffer) ([]byte, error) {
	stored, err := s.raw.ReadFrame(pos, size, &s.stored)
	if err != nil {
		return nil, err
	}
	return s.Decompress(stored, buf)
}

// Decompress expands one stored frame into buf.
func (s *CompressedPacketSource) Decompress(stored []byte, buf *ScratchBuffer) ([]byte, error) {
	buf.Reset()
	switch s.algorithm {
	case CompressionHeaderStrip:
		buf.Append(s.settings)
		buf.Append(stored)
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(stored))
		if err != nil {
			return nil, wrapError(KindDecode, "ReadFrame", err, "bad zlib frame")
		}
		defer zr.Close()
		if _, err := io.Copy(scratchWriter{buf}, zr); err != nil {
			return nil, wrapError(KindDecode, "ReadFrame", errors.Wrap(err, "inflate"), "bad zlib frame")
		}
	}
	return buf.Bytes(), nil
}

type scratchWriter struct{ b *ScratchBuffer }

func (w scratchWriter) Write(p []byte) (int, error) {
	w.b.Append(p)
	return len(p), nil
}
