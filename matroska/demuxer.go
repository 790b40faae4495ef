// Package matroska is a backend with its own Matroska and WebM parser.
// Frames are decoded by libavcodec; indexed files are read by seeking
// straight to the recorded frame positions.
package matroska

import (
	"bytes"
	"io"
	"os"
	"sort"

	"github.com/at-wat/ebml-go"
	"github.com/obinnaokechukwu/ffms"
	"github.com/pkg/errors"
)

// track is one TrackEntry with what the reader derives from it. checkIDR
// marks H.264 tracks with 4 byte NAL lengths, whose key frame flag is
// confirmed from the bitstream.
type track struct {
	entry     trackEntry
	info      ffms.StreamInfo
	decoder   string // empty when FFmpeg has no mapping for CodecID
	comp      *ffms.CompressedPacketSource
	checkIDR  bool
	extradata []byte
}

// entry locates one indexed frame in file order.
type entry struct {
	track int
	rec   int
	pos   int64
}

// Demuxer reads Matroska and WebM files. Opened without an index it scans
// clusters in file order; with an index it reads frames directly from the
// recorded positions.
type Demuxer struct {
	f        *os.File
	size     int64
	hdr      *header
	tracks   []track
	byNumber map[uint64]int

	// scanning
	rd          *reader
	clusterTime int64
	queue       []ffms.Packet

	// indexed reading
	idx    *ffms.MediaIndex
	order  []entry
	cursor int
	raw    *ffms.RawPacketSource
	buf    ffms.ScratchBuffer

	out ffms.Packet
}

// Open parses the header of path. idx selects indexed reading.
func Open(path string, idx *ffms.MediaIndex) (*Demuxer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open file")
	}
	d, err := newDemuxer(f, idx)
	if err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

func newDemuxer(f *os.File, idx *ffms.MediaIndex) (*Demuxer, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "cannot stat file")
	}
	hdr, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	d := &Demuxer{
		f:        f,
		size:     st.Size(),
		hdr:      hdr,
		byNumber: make(map[uint64]int),
		raw:      ffms.NewRawPacketSource(f),
	}
	for i := range hdr.Tracks {
		t, err := newTrack(f, &hdr.Tracks[i], hdr.Info.TimecodeScale)
		if err != nil {
			return nil, errors.Wrapf(err, "track %d", hdr.Tracks[i].TrackNumber)
		}
		d.byNumber[hdr.Tracks[i].TrackNumber] = i
		d.tracks = append(d.tracks, t)
	}

	if idx != nil {
		if err := d.useIndex(idx); err != nil {
			return nil, err
		}
		return d, nil
	}
	if hdr.FirstCluster >= 0 {
		if _, err := f.Seek(hdr.FirstCluster, io.SeekStart); err != nil {
			return nil, errors.Wrap(err, "cannot seek to first cluster")
		}
		d.rd = newReader(f, hdr.FirstCluster)
	}
	return d, nil
}

func newTrack(f *os.File, te *trackEntry, timecodeScale uint64) (track, error) {
	t := track{entry: *te}
	t.info.TimeBase = ffms.TimeBase{Num: int64(timecodeScale), Den: 1000000}
	t.info.CodecName = te.CodecID
	switch te.TrackType {
	case trackTypeVideo:
		t.info.Type = ffms.TrackTypeVideo
		if te.Video != nil {
			t.info.Width = int(te.Video.PixelWidth)
			t.info.Height = int(te.Video.PixelHeight)
		}
	case trackTypeAudio:
		t.info.Type = ffms.TrackTypeAudio
		if te.Audio != nil {
			t.info.SampleRate = int(te.Audio.SamplingFrequency)
			t.info.Channels = int(te.Audio.Channels)
		}
	default:
		t.info.Type = ffms.TrackTypeOther
	}

	if name, err := decoderName(te); err == nil {
		t.decoder = name
		t.info.CodecName = name
	}
	t.extradata = te.CodecPrivate
	switch t.decoder {
	case "aac":
		conf, raw, err := aacConfig(te)
		if err != nil {
			return t, err
		}
		t.extradata = raw
		t.info.SampleRate = conf.SampleRate
		t.info.Channels = conf.ChannelCount
	case "h264":
		t.checkIDR = avcLengthSize(te.CodecPrivate) == 4
	}

	if te.ContentEncodings != nil {
		encs := te.ContentEncodings.ContentEncoding
		if len(encs) > 1 {
			return t, errors.New("multiple content encodings are not supported")
		}
		if len(encs) == 1 {
			enc := encs[0]
			if enc.ContentEncodingType != 0 || enc.ContentCompression == nil {
				return t, errors.New("encrypted tracks are not supported")
			}
			comp, err := ffms.NewCompressedPacketSource(f,
				ffms.CompressionAlgorithm(enc.ContentCompression.ContentCompAlgo),
				enc.ContentCompression.ContentCompSettings)
			if err != nil {
				return t, err
			}
			t.comp = comp
		}
	}
	return t, nil
}

func (d *Demuxer) useIndex(idx *ffms.MediaIndex) error {
	if idx.NumTracks() != len(d.tracks) {
		return errors.Errorf("index has %d tracks, file has %d", idx.NumTracks(), len(d.tracks))
	}
	d.idx = idx
	for ti, t := range idx.Tracks {
		for ri := range t.Records {
			d.order = append(d.order, entry{track: ti, rec: ri, pos: t.Records[ri].FilePos})
		}
	}
	sort.SliceStable(d.order, func(i, j int) bool { return d.order[i].pos < d.order[j].pos })
	return nil
}

// Streams implements ffms.Demuxer.
func (d *Demuxer) Streams() []ffms.StreamInfo {
	out := make([]ffms.StreamInfo, len(d.tracks))
	for i, t := range d.tracks {
		out[i] = t.info
	}
	return out
}

// FormatName implements ffms.Demuxer.
func (d *Demuxer) FormatName() string { return d.hdr.DocType }

// ReadPacket implements ffms.Demuxer.
func (d *Demuxer) ReadPacket() (*ffms.Packet, error) {
	if d.idx != nil {
		return d.readIndexed()
	}
	for len(d.queue) == 0 {
		if err := d.scan(); err != nil {
			return nil, err
		}
	}
	d.out = d.queue[0]
	d.queue = d.queue[1:]
	return &d.out, nil
}

func (d *Demuxer) readIndexed() (*ffms.Packet, error) {
	if d.cursor >= len(d.order) {
		return nil, io.EOF
	}
	e := d.order[d.cursor]
	d.cursor++
	rec := &d.idx.Tracks[e.track].Records[e.rec]

	var src ffms.PacketSource = d.raw
	if c := d.tracks[e.track].comp; c != nil {
		src = c
	}
	data, err := src.ReadFrame(rec.FilePos, int(rec.Size), &d.buf)
	if err != nil {
		return nil, err
	}
	d.out = ffms.Packet{
		Track:    e.track,
		DTS:      rec.DTS,
		PTS:      rec.DTS,
		FilePos:  rec.FilePos,
		Size:     int(rec.Size),
		KeyFrame: rec.KeyFrame,
		Data:     data,
	}
	return &d.out, nil
}

// scan reads one element of the segment and queues the frames of a block.
func (d *Demuxer) scan() error {
	if d.rd == nil {
		return io.EOF
	}
	if end := d.hdr.SegmentEnd; end >= 0 && d.rd.pos >= end {
		return io.EOF
	}
	el, err := d.rd.header()
	if err == io.EOF {
		return io.EOF
	}
	if err != nil {
		return errors.Wrap(err, "cannot read element")
	}
	switch el.ID {
	case idCluster:
		// Descend: the children follow.
		return nil
	case idClusterTime:
		b, err := d.rd.bytes(el.Size)
		if err != nil {
			return err
		}
		d.clusterTime = int64(readUint(b))
		return nil
	case idSimpleBlock:
		raw, err := d.rd.bytes(el.Size)
		if err != nil {
			return err
		}
		return d.queueBlock(raw, el.DataStart, nil)
	case idBlockGroup:
		raw, err := d.rd.bytes(el.Size)
		if err != nil {
			return err
		}
		return d.queueGroup(raw, el.DataStart)
	default:
		return d.rd.skip(el.Size)
	}
}

func (d *Demuxer) queueGroup(raw []byte, start int64) error {
	rd := newReader(bytes.NewReader(raw), start)
	var block []byte
	var blockStart int64
	referenced := false
	for rd.pos < start+int64(len(raw)) {
		el, err := rd.header()
		if err != nil {
			return errors.Wrap(err, "bad block group")
		}
		switch el.ID {
		case idBlock:
			blockStart = el.DataStart
			if block, err = rd.bytes(el.Size); err != nil {
				return err
			}
		case idReferenceBlock:
			referenced = true
			if err := rd.skip(el.Size); err != nil {
				return err
			}
		default:
			if err := rd.skip(el.Size); err != nil {
				return err
			}
		}
	}
	if block == nil {
		return nil
	}
	key := !referenced
	return d.queueBlock(block, blockStart, &key)
}

// queueBlock splits a (Simple)Block into frames. Laced frames are stored
// back to back at the end of the block, which gives their file positions.
func (d *Demuxer) queueBlock(raw []byte, start int64, key *bool) error {
	blk, err := ebml.UnmarshalBlock(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return errors.Wrap(err, "bad block")
	}
	ti, ok := d.byNumber[blk.TrackNumber]
	if !ok {
		return nil
	}
	t := &d.tracks[ti]
	dts := d.clusterTime + int64(blk.Timecode)
	keyFrame := blk.Keyframe
	if key != nil {
		keyFrame = *key
	}

	positions := make([]int64, len(blk.Data))
	pos := start + int64(len(raw))
	for i := len(blk.Data) - 1; i >= 0; i-- {
		pos -= int64(len(blk.Data[i]))
		positions[i] = pos
	}
	for i, frame := range blk.Data {
		payload := frame
		if t.comp != nil {
			var sb ffms.ScratchBuffer
			if payload, err = t.comp.Decompress(frame, &sb); err != nil {
				return err
			}
		}
		kf := keyFrame
		if t.checkIDR && !kf {
			kf = containsIDR(payload)
		}
		d.queue = append(d.queue, ffms.Packet{
			Track:    ti,
			DTS:      dts,
			PTS:      dts,
			FilePos:  positions[i],
			Size:     len(frame),
			KeyFrame: kf,
			Data:     payload,
		})
	}
	return nil
}

// Seek implements ffms.Demuxer. It needs an index: the reader lands on the
// last key frame of track at or before ts, or on the first frame sharing
// its timestamp.
func (d *Demuxer) Seek(track int, ts int64) error {
	if d.idx == nil {
		return errors.New("seeking requires an index")
	}
	if track < 0 || track >= d.idx.NumTracks() {
		return errors.Errorf("invalid track %d", track)
	}
	recs := d.idx.Tracks[track].Records
	target := -1
	for i := range recs {
		if recs[i].KeyFrame && recs[i].DTS <= ts {
			target = i
		}
	}
	if target < 0 {
		d.cursor = 0
		return nil
	}
	// Laced frames share a DTS; land on the first of the block.
	for target > 0 && recs[target-1].DTS == recs[target].DTS {
		target--
	}
	pos := recs[target].FilePos
	d.cursor = sort.Search(len(d.order), func(i int) bool { return d.order[i].pos >= pos })
	return nil
}

// Position implements ffms.Demuxer.
func (d *Demuxer) Position() int64 {
	if d.idx != nil {
		if d.cursor < len(d.order) {
			return d.order[d.cursor].pos
		}
		return d.size
	}
	if d.rd == nil {
		return d.size
	}
	return d.rd.pos
}

// Size implements ffms.Demuxer.
func (d *Demuxer) Size() int64 { return d.size }

// Close implements ffms.Demuxer.
func (d *Demuxer) Close() error {
	return d.f.Close()
}
