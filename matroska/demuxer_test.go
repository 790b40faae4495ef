package matroska

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/at-wat/ebml-go"
	"github.com/klauspost/compress/zlib"
	"github.com/obinnaokechukwu/ffms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBlockGroup struct {
	Block          ebml.Block `ebml:"Block"`
	ReferenceBlock []int64    `ebml:"ReferenceBlock,omitempty"`
}

type testCluster struct {
	Timecode    uint64           `ebml:"Timecode"`
	SimpleBlock []ebml.Block     `ebml:"SimpleBlock,omitempty"`
	BlockGroup  []testBlockGroup `ebml:"BlockGroup,omitempty"`
}

type testSegment struct {
	Info    segmentInfo   `ebml:"Info"`
	Tracks  trackList     `ebml:"Tracks"`
	Cluster []testCluster `ebml:"Cluster"`
}

type testFile struct {
	Header  ebmlHeader  `ebml:"EBML"`
	Segment testSegment `ebml:"Segment"`
}

var (
	stripPrefix = []byte{0xAA, 0xBB}
	flacFrame   = bytes.Repeat([]byte("flac frame "), 8)
)

func zlibBytes(t *testing.T, p []byte) []byte {
	var b bytes.Buffer
	zw := zlib.NewWriter(&b)
	_, err := zw.Write(p)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return b.Bytes()
}

// writeFixture builds a file with four tracks:
//
//	1 video, 40 ms frames, key frames at 0 and 120
//	2 PCM audio, fixed lacing in the second cluster
//	3 subtitles with header stripping
//	4 FLAC audio with zlib compression
//
// plus a block for track 9, which does not exist.
func writeFixture(t *testing.T) string {
	t.Helper()
	video := func(tc int16, key bool, tag byte) ebml.Block {
		return ebml.Block{TrackNumber: 1, Timecode: tc, Keyframe: key, Data: [][]byte{{tag, tag, tag, tag, tag}}}
	}
	f := testFile{
		Header: ebmlHeader{EBMLVersion: 1, EBMLReadVersion: 1, EBMLMaxIDLength: 4, EBMLMaxSizeLength: 8, DocType: "matroska", DocTypeVersion: 4, DocTypeReadVersion: 2},
		Segment: testSegment{
			Info: segmentInfo{TimecodeScale: 1000000, MuxingApp: "test", WritingApp: "test"},
			Tracks: trackList{TrackEntry: []trackEntry{
				{TrackNumber: 1, TrackUID: 1, TrackType: trackTypeVideo, CodecID: "V_MPEG4/ISO/ASP", Video: &videoSettings{PixelWidth: 64, PixelHeight: 48}},
				{TrackNumber: 2, TrackUID: 2, TrackType: trackTypeAudio, CodecID: "A_PCM/INT/LIT", Audio: &audioSettings{SamplingFrequency: 48000, Channels: 2, BitDepth: 16}},
				{TrackNumber: 3, TrackUID: 3, TrackType: 17, CodecID: "S_TEXT/UTF8", ContentEncodings: &contentEncodings{
					ContentEncoding: []contentEncoding{{ContentCompression: &contentCompression{ContentCompAlgo: 3, ContentCompSettings: stripPrefix}}},
				}},
				{TrackNumber: 4, TrackUID: 4, TrackType: trackTypeAudio, CodecID: "A_FLAC", Audio: &audioSettings{SamplingFrequency: 44100, Channels: 1}, ContentEncodings: &contentEncodings{
					ContentEncoding: []contentEncoding{{ContentCompression: &contentCompression{ContentCompAlgo: 0}}},
				}},
			}},
			Cluster: []testCluster{
				{
					Timecode: 0,
					SimpleBlock: []ebml.Block{
						video(0, true, 'a'),
						{TrackNumber: 2, Timecode: 0, Keyframe: true, Data: [][]byte{{1, 2, 3, 4}}},
						video(40, false, 'b'),
						{TrackNumber: 9, Timecode: 40, Keyframe: true, Data: [][]byte{{9}}},
						{TrackNumber: 3, Timecode: 50, Keyframe: true, Data: [][]byte{[]byte("hello")}},
					},
					BlockGroup: []testBlockGroup{
						{Block: ebml.Block{TrackNumber: 1, Timecode: 80, Data: [][]byte{{'c', 'c', 'c', 'c', 'c'}}}, ReferenceBlock: []int64{-40}},
					},
				},
				{
					Timecode: 120,
					SimpleBlock: []ebml.Block{
						video(0, true, 'd'),
						{TrackNumber: 2, Timecode: 0, Keyframe: true, Lacing: ebml.LacingFixed, Data: [][]byte{{5, 5, 5, 5}, {6, 6, 6, 6}, {7, 7, 7, 7}}},
						{TrackNumber: 4, Timecode: 10, Keyframe: true, Data: [][]byte{zlibBytes(t, flacFrame)}},
						video(40, false, 'e'),
					},
					BlockGroup: []testBlockGroup{
						{Block: ebml.Block{TrackNumber: 1, Timecode: 80, Data: [][]byte{{'f', 'f', 'f', 'f', 'f'}}}},
					},
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, ebml.Marshal(&f, &buf))
	path := filepath.Join(t.TempDir(), "fixture.mkv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func readAll(t *testing.T, d *Demuxer) []ffms.Packet {
	t.Helper()
	var out []ffms.Packet
	for {
		pkt, err := d.ReadPacket()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		p := *pkt
		p.Data = append([]byte(nil), pkt.Data...)
		out = append(out, p)
	}
}

func TestReadHeader(t *testing.T) {
	f, err := os.Open(writeFixture(t))
	require.NoError(t, err)
	defer f.Close()

	h, err := readHeader(f)
	require.NoError(t, err)
	assert.Equal(t, "matroska", h.DocType)
	assert.Equal(t, uint64(1000000), h.Info.TimecodeScale)
	require.Len(t, h.Tracks, 4)
	assert.Equal(t, "V_MPEG4/ISO/ASP", h.Tracks[0].CodecID)
	assert.Equal(t, uint64(64), h.Tracks[0].Video.PixelWidth)
	assert.Equal(t, stripPrefix, h.Tracks[2].ContentEncodings.ContentEncoding[0].ContentCompression.ContentCompSettings)
	assert.Greater(t, h.FirstCluster, int64(0))
}

func TestReadHeaderRejectsOtherDocTypes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ebml.Marshal(&struct {
		Header ebmlHeader `ebml:"EBML"`
	}{Header: ebmlHeader{DocType: "notmkv"}}, &buf))
	_, err := readHeader(&buf)
	assert.Error(t, err)

	_, err = readHeader(bytes.NewReader([]byte("RIFF....WAVE")))
	assert.Error(t, err)
}

func TestStreams(t *testing.T) {
	d, err := Open(writeFixture(t), nil)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, "matroska", d.FormatName())
	s := d.Streams()
	require.Len(t, s, 4)
	assert.Equal(t, ffms.TrackTypeVideo, s[0].Type)
	assert.Equal(t, "mpeg4", s[0].CodecName)
	assert.Equal(t, 64, s[0].Width)
	assert.Equal(t, 48, s[0].Height)
	assert.Equal(t, ffms.TimeBase{Num: 1000000, Den: 1000000}, s[0].TimeBase)

	assert.Equal(t, ffms.TrackTypeAudio, s[1].Type)
	assert.Equal(t, "pcm_s16le", s[1].CodecName)
	assert.Equal(t, 48000, s[1].SampleRate)
	assert.Equal(t, 2, s[1].Channels)

	assert.Equal(t, ffms.TrackTypeOther, s[2].Type)
	assert.Equal(t, "S_TEXT/UTF8", s[2].CodecName)
	assert.Equal(t, "flac", s[3].CodecName)
}

func TestScanPackets(t *testing.T) {
	path := writeFixture(t)
	d, err := Open(path, nil)
	require.NoError(t, err)
	defer d.Close()

	pkts := readAll(t, d)
	var tracks []int
	var dts []int64
	for _, p := range pkts {
		tracks = append(tracks, p.Track)
		dts = append(dts, p.DTS)
	}
	assert.Equal(t, []int{0, 1, 0, 2, 0, 0, 1, 1, 1, 3, 0, 0}, tracks)
	assert.Equal(t, []int64{0, 0, 40, 50, 80, 120, 120, 120, 120, 130, 160, 200}, dts)

	video := []ffms.Packet{}
	for _, p := range pkts {
		if p.Track == 0 {
			video = append(video, p)
		}
	}
	require.Len(t, video, 6)
	var keys []bool
	for _, p := range video {
		keys = append(keys, p.KeyFrame)
	}
	assert.Equal(t, []bool{true, false, false, true, false, true}, keys, "a block group without references is a key frame")

	assert.Equal(t, []byte("\xAA\xBBhello"), pkts[3].Data)
	assert.Equal(t, flacFrame, pkts[9].Data)
	assert.Equal(t, []byte{6, 6, 6, 6}, pkts[7].Data)
	assert.Equal(t, d.Size(), d.Position())
}

func TestScanPositionsPointAtStoredBytes(t *testing.T) {
	path := writeFixture(t)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	d, err := Open(path, nil)
	require.NoError(t, err)
	defer d.Close()

	for _, p := range readAll(t, d) {
		stored := raw[p.FilePos : p.FilePos+int64(p.Size)]
		switch p.Track {
		case 2:
			assert.Equal(t, p.Data[len(stripPrefix):], stored)
		case 3:
			assert.Equal(t, zlibBytes(t, flacFrame), stored)
		default:
			assert.Equal(t, p.Data, stored, "track %d at %d", p.Track, p.FilePos)
		}
	}
}

func TestSeekNeedsIndex(t *testing.T) {
	d, err := Open(writeFixture(t), nil)
	require.NoError(t, err)
	defer d.Close()
	assert.Error(t, d.Seek(0, 100))
}

// indexOf records scanned packets the way the indexer does.
func indexOf(t *testing.T, path string) (*ffms.MediaIndex, []ffms.Packet) {
	d, err := Open(path, nil)
	require.NoError(t, err)
	defer d.Close()

	idx := &ffms.MediaIndex{Decoder: ffms.DecoderMatroska, FileSize: d.Size()}
	for _, s := range d.Streams() {
		idx.Tracks = append(idx.Tracks, ffms.NewTrackIndex(s.Type, s.TimeBase))
	}
	pkts := readAll(t, d)
	for _, p := range pkts {
		tr := idx.Tracks[p.Track]
		tr.Records = append(tr.Records, ffms.FrameRecord{DTS: p.DTS, FilePos: p.FilePos, Size: uint32(p.Size), KeyFrame: p.KeyFrame})
	}
	return idx, pkts
}

func TestIndexedReadMatchesScan(t *testing.T) {
	path := writeFixture(t)
	idx, scanned := indexOf(t, path)

	d, err := Open(path, idx)
	require.NoError(t, err)
	defer d.Close()

	indexed := readAll(t, d)
	require.Len(t, indexed, len(scanned))
	for i := range scanned {
		assert.Equal(t, scanned[i].Track, indexed[i].Track)
		assert.Equal(t, scanned[i].DTS, indexed[i].DTS)
		assert.Equal(t, scanned[i].KeyFrame, indexed[i].KeyFrame)
		assert.Equal(t, scanned[i].Data, indexed[i].Data, "packet %d", i)
	}
	assert.Equal(t, d.Size(), d.Position())
}

func TestIndexedSeek(t *testing.T) {
	path := writeFixture(t)
	idx, _ := indexOf(t, path)
	d, err := Open(path, idx)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Seek(0, 150))
	pkt, err := d.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, 0, pkt.Track)
	assert.Equal(t, int64(120), pkt.DTS)
	assert.True(t, pkt.KeyFrame)

	require.NoError(t, d.Seek(0, 10))
	pkt, err = d.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pkt.DTS)

	assert.Error(t, d.Seek(7, 0))
}

func TestIndexedSeekIntoLacedBlock(t *testing.T) {
	path := writeFixture(t)
	idx, _ := indexOf(t, path)
	d, err := Open(path, idx)
	require.NoError(t, err)
	defer d.Close()

	for _, ts := range []int64{120, 125} {
		require.NoError(t, d.Seek(1, ts))
		var got [][]byte
		for len(got) < 3 {
			pkt, err := d.ReadPacket()
			require.NoError(t, err)
			if pkt.Track == 1 {
				assert.Equal(t, int64(120), pkt.DTS)
				got = append(got, append([]byte(nil), pkt.Data...))
			}
		}
		assert.Equal(t, [][]byte{{5, 5, 5, 5}, {6, 6, 6, 6}, {7, 7, 7, 7}}, got, "seek to %d", ts)
	}
}

func TestIndexTrackCountMismatch(t *testing.T) {
	path := writeFixture(t)
	idx, _ := indexOf(t, path)
	idx.Tracks = idx.Tracks[:2]
	_, err := Open(path, idx)
	assert.Error(t, err)
}

func TestVint(t *testing.T) {
	cases := []struct {
		in      []byte
		keep    bool
		want    uint64
		allOnes bool
	}{
		{[]byte{0x81}, false, 1, false},
		{[]byte{0x40, 0x02}, false, 2, false},
		{[]byte{0xFF}, false, 0x7F, true},
		{[]byte{0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, false, 1<<56 - 1, true},
		{[]byte{0x1A, 0x45, 0xDF, 0xA3}, true, idEBML, false},
	}
	for _, c := range cases {
		r := newReader(bytes.NewReader(c.in), 10)
		v, allOnes, err := r.vint(c.keep)
		require.NoError(t, err)
		assert.Equal(t, c.want, v)
		assert.Equal(t, c.allOnes, allOnes)
		assert.Equal(t, int64(10+len(c.in)), r.pos)
	}

	_, _, err := newReader(bytes.NewReader([]byte{0x00}), 0).vint(false)
	assert.Error(t, err)
	_, _, err = newReader(bytes.NewReader([]byte{0x40}), 0).vint(false)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestUnknownSizeCannotBeSkipped(t *testing.T) {
	r := newReader(bytes.NewReader([]byte{0xEC, 0xFF}), 0)
	el, err := r.header()
	require.NoError(t, err)
	assert.Equal(t, int64(unknownSize), el.Size)
	assert.Equal(t, int64(unknownSize), el.End())
	assert.ErrorIs(t, r.skip(el.Size), errUnknownSize)
}
