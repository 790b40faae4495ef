package matroska

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// Element IDs the scanner handles itself. Everything else inside the
// header elements is decoded by ebml-go.
const (
	idEBML           = 0x1A45DFA3
	idSegment        = 0x18538067
	idInfo           = 0x1549A966
	idTracks         = 0x1654AE6B
	idCluster        = 0x1F43B675
	idClusterTime    = 0xE7
	idSimpleBlock    = 0xA3
	idBlockGroup     = 0xA0
	idBlock          = 0xA1
	idReferenceBlock = 0xFB
)

// unknownSize marks an element whose size field is all ones.
const unknownSize = -1

var errUnknownSize = errors.New("element of unknown size cannot be skipped")

// elementHeader is an element's ID and data size, with the offsets of the
// header and the data.
type elementHeader struct {
	ID        uint32
	Size      int64
	Offset    int64
	DataStart int64
}

// End returns the offset just past the element, or -1 for unknown size.
func (h elementHeader) End() int64 {
	if h.Size == unknownSize {
		return unknownSize
	}
	return h.DataStart + h.Size
}

// reader walks EBML elements sequentially and tracks the file offset.
type reader struct {
	br  *bufio.Reader
	pos int64
}

func newReader(r io.Reader, pos int64) *reader {
	return &reader{br: bufio.NewReaderSize(r, 1<<16), pos: pos}
}

func (r *reader) readByte() (byte, error) {
	b, err := r.br.ReadByte()
	if err == nil {
		r.pos++
	}
	return b, err
}

// vint reads a variable length integer. With keepMarker the length marker
// bit stays in the value, as element IDs are written. allOnes reports a
// value whose payload bits are all set, which marks an unknown size.
func (r *reader) vint(keepMarker bool) (v uint64, allOnes bool, err error) {
	first, err := r.readByte()
	if err != nil {
		return 0, false, err
	}
	n := 1
	for mask := byte(0x80); first&mask == 0; mask >>= 1 {
		if mask == 1 {
			return 0, false, errors.New("invalid EBML variable length integer")
		}
		n++
	}
	payload := byte(0xFF >> n)
	v = uint64(first)
	if !keepMarker {
		v &= uint64(payload)
	}
	allOnes = first&payload == payload
	for i := 1; i < n; i++ {
		b, err := r.readByte()
		if err != nil {
			return 0, false, unexpected(err)
		}
		v = v<<8 | uint64(b)
		allOnes = allOnes && b == 0xFF
	}
	return v, allOnes, nil
}

func (r *reader) header() (elementHeader, error) {
	h := elementHeader{Offset: r.pos}
	id, _, err := r.vint(true)
	if err != nil {
		return h, err
	}
	size, allOnes, err := r.vint(false)
	if err != nil {
		return h, unexpected(err)
	}
	h.ID = uint32(id)
	h.Size = int64(size)
	if allOnes {
		h.Size = unknownSize
	}
	h.DataStart = r.pos
	return h, nil
}

func (r *reader) skip(n int64) error {
	if n == unknownSize {
		return errUnknownSize
	}
	got, err := r.br.Discard(int(n))
	r.pos += int64(got)
	if err != nil {
		return unexpected(err)
	}
	return nil
}

func (r *reader) bytes(n int64) ([]byte, error) {
	if n == unknownSize {
		return nil, errUnknownSize
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(r.br, buf)
	r.pos += int64(got)
	if err != nil {
		return nil, unexpected(err)
	}
	return buf, nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// readUint decodes a big-endian unsigned integer element body.
func readUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
