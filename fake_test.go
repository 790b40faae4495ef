package ffms

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakePayload is what a fake packet carries for the fake decoders.
type fakePayload struct {
	frame       int // position within its track
	samples     int
	sampleStart int64
	fail        bool
}

type fakeTrack struct {
	info    StreamInfo
	step    int64 // DTS distance between packets
	keys    func(i int) bool
	samples int
	fail    map[int]bool
	count   int
	group   int // packets sharing each DTS, as laced frames do
}

func videoTrack(count, gop int) fakeTrack {
	return fakeTrack{
		info:  StreamInfo{Type: TrackTypeVideo, TimeBase: TimeBase{Num: 1, Den: 1}, CodecName: "fake", Width: 4, Height: 2},
		step:  40,
		keys:  func(i int) bool { return i%gop == 0 },
		count: count,
	}
}

func audioTrack(count, samples int, fail ...int) fakeTrack {
	t := fakeTrack{
		info:    StreamInfo{Type: TrackTypeAudio, TimeBase: TimeBase{Num: 1, Den: 1}, CodecName: "fake", SampleRate: 48000, Channels: 1},
		step:    21,
		keys:    func(int) bool { return true },
		samples: samples,
		fail:    map[int]bool{},
		count:   count,
	}
	for _, f := range fail {
		t.fail[f] = true
	}
	return t
}

// fakeMedia is an interleaved packet list shared by every demuxer opened on
// a fake backend.
type fakeMedia struct {
	streams []StreamInfo
	packets []*Packet
}

func newFakeMedia(tracks ...fakeTrack) *fakeMedia {
	m := &fakeMedia{}
	for ti, t := range tracks {
		m.streams = append(m.streams, t.info)
		var sample int64
		for i := 0; i < t.count; i++ {
			p := &fakePayload{frame: i, fail: t.fail[i]}
			if t.info.Type == TrackTypeAudio {
				p.samples = t.samples
				p.sampleStart = sample
				if !p.fail {
					sample += int64(t.samples)
				}
			}
			m.packets = append(m.packets, &Packet{
				Track:    ti,
				DTS:      int64(i/max(t.group, 1)) * t.step,
				PTS:      int64(i/max(t.group, 1)) * t.step,
				Size:     8,
				KeyFrame: t.keys(i),
				Native:   p,
			})
		}
	}
	sort.SliceStable(m.packets, func(i, j int) bool {
		return m.packets[i].DTS < m.packets[j].DTS
	})
	for i, p := range m.packets {
		p.FilePos = int64(i) * 8
	}
	return m
}

type fakeBackend struct {
	id    DecoderID
	caps  Capabilities
	media *fakeMedia
	probe bool

	videoDelay int
	// shiftAfterSeek adds to the DTS of the first packet read after a seek.
	shiftAfterSeek int64
	// seekSkew lands seeks that many track packets past the key frame.
	seekSkew int
	// readFailures fails audio packets by track position after indexing.
	readFailures map[int]bool

	demuxers []*fakeDemuxer
}

func newFakeBackend(m *fakeMedia) *fakeBackend {
	return &fakeBackend{id: DecoderLavf, media: m, probe: true}
}

func (b *fakeBackend) ID() DecoderID { return b.id }
func (b *fakeBackend) Name() string { return "fake" }
func (b *fakeBackend) Probe(string, *mimetype.MIME) bool { return b.probe }
func (b *fakeBackend) Capabilities() Capabilities { return b.caps }
func (b *fakeBackend) last() *fakeDemuxer { return b.demuxers[len(b.demuxers)-1] }
func (b *fakeBackend) Open(string, *MediaIndex) (Demuxer, error) {
	d := &fakeDemuxer{b: b}
	b.demuxers = append(b.demuxers, d)
	return d, nil
}

type fakeDemuxer struct {
	b        *fakeBackend
	pos      int
	seeks    []int64
	shifting bool
	decodes  int
	closed   bool
}

func (d *fakeDemuxer) Streams() []StreamInfo { return d.b.media.streams }
func (d *fakeDemuxer) FormatName() string { return "fake" }
func (d *fakeDemuxer) Position() int64 { return int64(d.pos) * 8 }
func (d *fakeDemuxer) Size() int64 { return int64(len(d.b.media.packets)) * 8 }
func (d *fakeDemuxer) Close() error { d.closed = true; return nil }

func (d *fakeDemuxer) ReadPacket() (*Packet, error) {
	if d.pos >= len(d.b.media.packets) {
		return nil, io.EOF
	}
	p := *d.b.media.packets[d.pos]
	d.pos++
	if d.shifting {
		p.DTS += d.b.shiftAfterSeek
		d.shifting = false
	}
	return &p, nil
}

func (d *fakeDemuxer) Seek(track int, ts int64) error {
	d.seeks = append(d.seeks, ts)
	target := -1
	for i, p := range d.b.media.packets {
		if p.Track == track && p.DTS <= ts && p.KeyFrame {
			target = i
		}
	}
	if target < 0 {
		return errors.Errorf("no key frame before %d", ts)
	}
	for i := target - 1; i >= 0; i-- {
		if p := d.b.media.packets[i]; p.Track == track {
			if p.DTS != d.b.media.packets[target].DTS {
				break
			}
			target = i
		}
	}
	for skew := d.b.seekSkew; skew > 0; {
		target++
		if target >= len(d.b.media.packets) {
			break
		}
		if d.b.media.packets[target].Track == track {
			skew--
		}
	}
	d.pos = target
	d.shifting = d.b.shiftAfterSeek != 0
	return nil
}

func (d *fakeDemuxer) NewDecoder(track int) (Decoder, error) {
	if track < 0 || track >= len(d.b.media.streams) {
		return nil, errors.New("no such track")
	}
	if d.b.media.streams[track].Type == TrackTypeAudio {
		return &fakeAudioDecoder{d: d}, nil
	}
	return &fakeVideoDecoder{d: d, delay: d.b.videoDelay}, nil
}

type fakeVideoDecoder struct {
	d     *fakeDemuxer
	delay int
	queue []*DecodedFrame
}

func (v *fakeVideoDecoder) Decode(pkt *Packet) (*DecodedFrame, error) {
	if pkt == nil {
		if len(v.queue) == 0 {
			return nil, nil
		}
		f := v.queue[0]
		v.queue = v.queue[1:]
		return f, nil
	}
	v.d.decodes++
	p := pkt.Native.(*fakePayload)
	if p.fail {
		return nil, errors.New("corrupt packet")
	}
	v.queue = append(v.queue, &DecodedFrame{
		PTS: pkt.PTS, KeyFrame: pkt.KeyFrame, Width: 4, Height: 2,
		Data: []byte{byte(p.frame), byte(p.frame >> 8)},
	})
	if len(v.queue) <= v.delay {
		return nil, nil
	}
	f := v.queue[0]
	v.queue = v.queue[1:]
	return f, nil
}

func (v *fakeVideoDecoder) Flush() { v.queue = nil }
func (v *fakeVideoDecoder) HasDelay() bool { return v.delay > 0 }
func (v *fakeVideoDecoder) AudioFormat() AudioFormat { return AudioFormat{} }
func (v *fakeVideoDecoder) Close() error { return nil }

// fakeAudioDecoder emits mono s16 where each sample holds its own position.
type fakeAudioDecoder struct {
	d   *fakeDemuxer
	buf []byte
}

var fakeAudioFormat = AudioFormat{SampleRate: 48000, Channels: 1, SampleFormat: SampleFormatS16}

func (a *fakeAudioDecoder) Decode(pkt *Packet) (*DecodedFrame, error) {
	if pkt == nil {
		return nil, nil
	}
	a.d.decodes++
	p := pkt.Native.(*fakePayload)
	if p.fail || a.d.b.readFailures[p.frame] {
		return nil, errors.New("corrupt audio packet")
	}
	a.buf = make([]byte, p.samples*2)
	for i := 0; i < p.samples; i++ {
		binary.LittleEndian.PutUint16(a.buf[i*2:], uint16(p.sampleStart+int64(i)))
	}
	return &DecodedFrame{PTS: pkt.PTS, KeyFrame: true, Data: a.buf, Samples: p.samples}, nil
}

func (a *fakeAudioDecoder) Flush() {}
func (a *fakeAudioDecoder) HasDelay() bool { return false }
func (a *fakeAudioDecoder) AudioFormat() AudioFormat { return fakeAudioFormat }
func (a *fakeAudioDecoder) Close() error { return nil }

// fakeSourceFile writes a small file the indexer can digest.
func fakeSourceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.bin")
	require.NoError(t, os.WriteFile(path, []byte("fake media source file"), 0o644))
	return path
}

// indexFake runs the indexer over b and returns the index.
func indexFake(t *testing.T, b *fakeBackend, opts ...IndexerOption) *MediaIndex {
	t.Helper()
	opts = append([]IndexerOption{WithBackend(b)}, opts...)
	idx, err := NewIndexer(NewDecoderRegistry(b), opts...).Run(context.Background(), fakeSourceFile(t))
	require.NoError(t, err)
	return idx
}

// openFake indexes b and opens a SourceContext on it.
func openFake(t *testing.T, b *fakeBackend, opts ...IndexerOption) *SourceContext {
	t.Helper()
	idx := indexFake(t, b, opts...)
	ctx, err := OpenSourceContext(NewDecoderRegistry(b), "source.bin", idx)
	require.NoError(t, err)
	t.Cleanup(func() { ctx.Close() })
	return ctx
}

func sampleAt(buf []byte, i int64) uint16 {
	return binary.LittleEndian.Uint16(buf[i*2:])
}
