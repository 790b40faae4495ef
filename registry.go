package ffms

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// StreamInfo describes one demuxed stream.
type StreamInfo struct {
	Type      TrackType
	TimeBase  TimeBase
	CodecName string
	Width     int
	Height    int
	// SampleRate and Channels are set for audio streams when the container
	// declares them.
	SampleRate int
	Channels   int
}

// Packet is one coded packet read from a Demuxer.
type Packet struct {
	Track    int
	DTS      int64
	PTS      int64
	FilePos  int64
	Size     int
	KeyFrame bool
	// Data is the coded payload. It may alias demuxer memory and is only
	// valid until the next ReadPacket.
	Data []byte
	// Frames holds laced sub-frames when the container stores several coded
	// frames in one block.
	Frames [][]byte
	// Native carries the backend's own packet handle for its decoder.
	Native any
}

// Payloads returns the coded frames carried by the packet.
func (p *Packet) Payloads() [][]byte {
	if len(p.Frames) > 0 {
		return p.Frames
	}
	return [][]byte{p.Data}
}

// SampleFormat is an interleaved PCM sample layout.
type SampleFormat int

const (
	SampleFormatNone SampleFormat = iota
	SampleFormatU8
	SampleFormatS16
	SampleFormatS32
	SampleFormatFloat
	SampleFormatDouble
)

// BytesPerSample returns the size of one sample of one channel.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatU8:
		return 1
	case SampleFormatS16:
		return 2
	case SampleFormatS32, SampleFormatFloat:
		return 4
	case SampleFormatDouble:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether samples are IEEE floating point.
func (f SampleFormat) IsFloat() bool {
	return f == SampleFormatFloat || f == SampleFormatDouble
}

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatU8:
		return "u8"
	case SampleFormatS16:
		return "s16"
	case SampleFormatS32:
		return "s32"
	case SampleFormatFloat:
		return "flt"
	case SampleFormatDouble:
		return "dbl"
	default:
		return "none"
	}
}

// AudioFormat is the decoded output layout of an audio decoder.
type AudioFormat struct {
	SampleRate   int
	Channels     int
	SampleFormat SampleFormat
}

// BytesPerFrame returns the size of one sample across all channels.
func (f AudioFormat) BytesPerFrame() int {
	return f.Channels * f.SampleFormat.BytesPerSample()
}

// DecodedFrame is one unit of decoder output. Data is owned by the decoder
// and valid until its next Decode call.
type DecodedFrame struct {
	PTS         int64
	KeyFrame    bool
	Width       int
	Height      int
	PixelFormat int
	// Data holds a packed picture or interleaved audio samples.
	Data []byte
	// Samples is the number of audio sample frames in Data.
	Samples int
}

// Decoder turns packets of one track into frames.
type Decoder interface {
	// Decode feeds pkt and returns the next frame, or nil when the decoder
	// needs more input. A nil pkt drains delayed output.
	Decode(pkt *Packet) (*DecodedFrame, error)
	Flush()
	// HasDelay reports whether output may lag input and can be drained.
	HasDelay() bool
	AudioFormat() AudioFormat
	Close() error
}

// Demuxer reads packets from a container.
type Demuxer interface {
	Streams() []StreamInfo
	FormatName() string
	// ReadPacket returns the next packet or io.EOF.
	ReadPacket() (*Packet, error)
	// Seek positions the demuxer at or before ts of track, landing on a key
	// frame.
	Seek(track int, ts int64) error
	Position() int64
	Size() int64
	NewDecoder(track int) (Decoder, error)
	Close() error
}

// Capabilities tune the sources for a backend.
type Capabilities struct {
	// ExtraAudioPreRoll is added to the audio pre-roll after a seek.
	ExtraAudioPreRoll int
	// ResyncAfterSeek means a seek may land away from the requested packet,
	// so the position must be derived from the first packet read.
	ResyncAfterSeek bool
}

// Backend opens files of one container family.
type Backend interface {
	ID() DecoderID
	Name() string
	// Probe reports whether the backend wants path. mime may be nil when
	// detection failed.
	Probe(path string, mime *mimetype.MIME) bool
	// Open returns a demuxer. idx is nil while indexing; a backend may use
	// it to read packets directly.
	Open(path string, idx *MediaIndex) (Demuxer, error)
	Capabilities() Capabilities
}

// DecoderRegistry holds the available backends in probe order.
type DecoderRegistry struct {
	backends []Backend
}

// NewDecoderRegistry returns a registry with backends registered in order.
// Duplicate ids are ignored after the first.
func NewDecoderRegistry(backends ...Backend) *DecoderRegistry {
	r := &DecoderRegistry{}
	for _, b := range backends {
		_ = r.Register(b)
	}
	return r
}

// Register appends b. It fails when a backend with the same id exists.
func (r *DecoderRegistry) Register(b Backend) error {
	if b == nil {
		return newError(KindInvalidArgument, "Register", "nil backend")
	}
	if _, ok := r.Lookup(b.ID()); ok {
		return newErrorf(KindInvalidArgument, "Register", "backend %s already registered", b.ID())
	}
	r.backends = append(r.backends, b)
	return nil
}

// Lookup returns the backend with id.
func (r *DecoderRegistry) Lookup(id DecoderID) (Backend, bool) {
	for _, b := range r.backends {
		if b.ID() == id {
			return b, true
		}
	}
	return nil, false
}

// Backends returns the registered backends in probe order.
func (r *DecoderRegistry) Backends() []Backend {
	return append([]Backend(nil), r.backends...)
}

// Select returns the first backend whose Probe accepts path.
func (r *DecoderRegistry) Select(path string) (Backend, error) {
	if len(r.backends) == 0 {
		return nil, newError(KindInvalidArgument, "Select", "no backends registered")
	}
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, wrapError(KindOpen, "Select", err, "cannot read source file")
	}
	for _, b := range r.backends {
		if b.Probe(path, mime) {
			return b, nil
		}
	}
	return nil, newErrorf(KindUnsupported, "Select", "no backend accepts %s", filepath.Base(path))
}

// HasExtension reports whether path ends in one of exts, case-insensitively.
// exts include the dot.
func HasExtension(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
