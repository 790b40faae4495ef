package matroska

import (
	"bytes"
	"io"

	"github.com/at-wat/ebml-go"
	"github.com/pkg/errors"
)

type ebmlHeader struct {
	EBMLVersion        uint64 `ebml:"EBMLVersion,omitempty"`
	EBMLReadVersion    uint64 `ebml:"EBMLReadVersion,omitempty"`
	EBMLMaxIDLength    uint64 `ebml:"EBMLMaxIDLength,omitempty"`
	EBMLMaxSizeLength  uint64 `ebml:"EBMLMaxSizeLength,omitempty"`
	DocType            string `ebml:"EBMLDocType"`
	DocTypeVersion     uint64 `ebml:"EBMLDocTypeVersion,omitempty"`
	DocTypeReadVersion uint64 `ebml:"EBMLDocTypeReadVersion,omitempty"`
}

type segmentInfo struct {
	TimecodeScale uint64  `ebml:"TimecodeScale,omitempty"`
	Duration      float64 `ebml:"Duration,omitempty"`
	MuxingApp     string  `ebml:"MuxingApp,omitempty"`
	WritingApp    string  `ebml:"WritingApp,omitempty"`
}

type trackList struct {
	TrackEntry []trackEntry `ebml:"TrackEntry"`
}

type trackEntry struct {
	TrackNumber      uint64            `ebml:"TrackNumber"`
	TrackUID         uint64            `ebml:"TrackUID,omitempty"`
	TrackType        uint64            `ebml:"TrackType"`
	Name             string            `ebml:"Name,omitempty"`
	CodecID          string            `ebml:"CodecID"`
	CodecPrivate     []byte            `ebml:"CodecPrivate,omitempty"`
	DefaultDuration  uint64            `ebml:"DefaultDuration,omitempty"`
	Video            *videoSettings    `ebml:"Video,omitempty"`
	Audio            *audioSettings    `ebml:"Audio,omitempty"`
	ContentEncodings *contentEncodings `ebml:"ContentEncodings,omitempty"`
}

type videoSettings struct {
	PixelWidth  uint64 `ebml:"PixelWidth"`
	PixelHeight uint64 `ebml:"PixelHeight"`
}

type audioSettings struct {
	SamplingFrequency float64 `ebml:"SamplingFrequency"`
	Channels          uint64  `ebml:"Channels"`
	BitDepth          uint64  `ebml:"BitDepth,omitempty"`
}

type contentEncodings struct {
	ContentEncoding []contentEncoding `ebml:"ContentEncoding"`
}

type contentEncoding struct {
	ContentEncodingOrder uint64              `ebml:"ContentEncodingOrder,omitempty"`
	ContentEncodingScope uint64              `ebml:"ContentEncodingScope,omitempty"`
	ContentEncodingType  uint64              `ebml:"ContentEncodingType,omitempty"`
	ContentCompression   *contentCompression `ebml:"ContentCompression,omitempty"`
}

type contentCompression struct {
	ContentCompAlgo     uint64 `ebml:"ContentCompAlgo"`
	ContentCompSettings []byte `ebml:"ContentCompSettings,omitempty"`
}

// Matroska TrackType values.
const (
	trackTypeVideo = 1
	trackTypeAudio = 2
)

// defaultTimecodeScale is one millisecond in nanoseconds.
const defaultTimecodeScale = 1000000

// decodeElement unmarshals one complete element (header included) into the
// field named by the ebml tag of wrapper.
func decodeElement(raw []byte, wrapper any) error {
	err := ebml.Unmarshal(bytes.NewReader(raw), wrapper, ebml.WithIgnoreUnknown(true))
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// header is what the scanner learns before the first cluster.
type header struct {
	DocType      string
	Info         segmentInfo
	Tracks       []trackEntry
	SegmentEnd   int64 // -1 when the segment size is unknown
	FirstCluster int64
}

// readHeader parses the file up to the first cluster.
func readHeader(r io.Reader) (*header, error) {
	rd := newReader(r, 0)
	h := &header{Info: segmentInfo{TimecodeScale: defaultTimecodeScale}}

	el, err := rd.header()
	if err != nil {
		return nil, errors.Wrap(err, "cannot read EBML header")
	}
	if el.ID != idEBML {
		return nil, errors.New("not an EBML file")
	}
	raw, err := rd.rawElement(el)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Header ebmlHeader `ebml:"EBML"`
	}
	if err := decodeElement(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "bad EBML header")
	}
	h.DocType = doc.Header.DocType
	if h.DocType != "matroska" && h.DocType != "webm" {
		return nil, errors.Errorf("unsupported document type %q", h.DocType)
	}

	for {
		el, err = rd.header()
		if err != nil {
			return nil, errors.Wrap(err, "no segment found")
		}
		if el.ID == idSegment {
			break
		}
		if err := rd.skip(el.Size); err != nil {
			return nil, err
		}
	}
	h.SegmentEnd = el.End()

	for {
		el, err = rd.header()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "cannot read segment")
		}
		switch el.ID {
		case idCluster:
			h.FirstCluster = el.Offset
			if h.Tracks == nil {
				return nil, errors.New("no track list before first cluster")
			}
			return h, nil
		case idInfo:
			raw, err := rd.rawElement(el)
			if err != nil {
				return nil, err
			}
			var seg struct {
				Info segmentInfo `ebml:"Info"`
			}
			if err := decodeElement(raw, &seg); err != nil {
				return nil, errors.Wrap(err, "bad segment info")
			}
			h.Info = seg.Info
			if h.Info.TimecodeScale == 0 {
				h.Info.TimecodeScale = defaultTimecodeScale
			}
		case idTracks:
			raw, err := rd.rawElement(el)
			if err != nil {
				return nil, err
			}
			var seg struct {
				Tracks trackList `ebml:"Tracks"`
			}
			if err := decodeElement(raw, &seg); err != nil {
				return nil, errors.Wrap(err, "bad track list")
			}
			h.Tracks = seg.Tracks.TrackEntry
			if h.Tracks == nil {
				h.Tracks = []trackEntry{}
			}
		default:
			if err := rd.skip(el.Size); err != nil {
				return nil, err
			}
		}
	}
	if h.Tracks == nil {
		return nil, errors.New("no track list found")
	}
	h.FirstCluster = -1
	return h, nil
}

// rawElement returns the element re-encoded with its header so ebml-go can
// decode it standalone.
func (r *reader) rawElement(el elementHeader) ([]byte, error) {
	body, err := r.bytes(el.Size)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	writeID(&buf, el.ID)
	writeSize(&buf, uint64(len(body)))
	buf.Write(body)
	return buf.Bytes(), nil
}

func writeID(buf *bytes.Buffer, id uint32) {
	switch {
	case id > 0xFFFFFF:
		buf.Write([]byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)})
	case id > 0xFFFF:
		buf.Write([]byte{byte(id >> 16), byte(id >> 8), byte(id)})
	case id > 0xFF:
		buf.Write([]byte{byte(id >> 8), byte(id)})
	default:
		buf.WriteByte(byte(id))
	}
}

// writeSize always uses the 8 byte form.
func writeSize(buf *bytes.Buffer, n uint64) {
	buf.WriteByte(0x01)
	for shift := 48; shift >= 0; shift -= 8 {
		buf.WriteByte(byte(n >> uint(shift)))
	}
}
