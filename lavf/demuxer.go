//go:build !ios && !android && (amd64 || arm64)

package lavf

import (
	"io"
	"unsafe"

	"github.com/obinnaokechukwu/ffms"
	"github.com/obinnaokechukwu/ffms/avcodec"
	"github.com/obinnaokechukwu/ffms/avformat"
	"github.com/obinnaokechukwu/ffms/avutil"
	"github.com/pkg/errors"
)

// Demuxer reads packets through libavformat.
type Demuxer struct {
	fmt     avformat.FormatContext
	pkt     avcodec.Packet
	streams []ffms.StreamInfo
	size    int64
	out     ffms.Packet
}

// OpenDemuxer opens path and probes its streams.
func OpenDemuxer(path string) (*Demuxer, error) {
	var fmtCtx avformat.FormatContext
	if err := avformat.OpenInput(&fmtCtx, path); err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", path)
	}
	if err := avformat.FindStreamInfo(fmtCtx); err != nil {
		avformat.CloseInput(&fmtCtx)
		return nil, errors.Wrap(err, "cannot read stream info")
	}
	d := &Demuxer{
		fmt:  fmtCtx,
		pkt:  avcodec.PacketAlloc(),
		size: avformat.IOSize(avformat.GetIOContext(fmtCtx)),
	}
	if d.pkt == nil {
		d.Close()
		return nil, errors.New("cannot allocate packet")
	}
	for i := 0; i < avformat.GetNumStreams(fmtCtx); i++ {
		d.streams = append(d.streams, streamInfo(avformat.GetStream(fmtCtx, i)))
	}
	return d, nil
}

// streamInfo converts the stream time base to milliseconds per tick.
func streamInfo(st avformat.Stream) ffms.StreamInfo {
	par := avformat.GetStreamCodecPar(st)
	tb := avformat.GetStreamTimeBase(st)
	info := ffms.StreamInfo{
		TimeBase:  ffms.TimeBase{Num: int64(tb.Num) * 1000, Den: int64(tb.Den)},
		CodecName: avcodec.GetParCodecID(par).String(),
	}
	switch avcodec.GetParCodecType(par) {
	case avutil.MediaTypeVideo:
		info.Type = ffms.TrackTypeVideo
		info.Width = int(avcodec.GetParWidth(par))
		info.Height = int(avcodec.GetParHeight(par))
	case avutil.MediaTypeAudio:
		info.Type = ffms.TrackTypeAudio
		info.SampleRate = int(avcodec.GetParSampleRate(par))
	default:
		info.Type = ffms.TrackTypeOther
	}
	return info
}

// Streams implements ffms.Demuxer.
func (d *Demuxer) Streams() []ffms.StreamInfo { return d.streams }

// FormatName implements ffms.Demuxer.
func (d *Demuxer) FormatName() string { return avformat.GetFormatName(d.fmt) }

// ReadPacket implements ffms.Demuxer. The returned packet is reused by the
// next call.
func (d *Demuxer) ReadPacket() (*ffms.Packet, error) {
	avcodec.PacketUnref(d.pkt)
	if err := avformat.ReadFrame(d.fmt, d.pkt); err != nil {
		if avutil.IsEOF(err) {
			return nil, io.EOF
		}
		return nil, err
	}
	dts := avcodec.GetPacketDTS(d.pkt)
	pts := avcodec.GetPacketPTS(d.pkt)
	if dts == avutil.NoPTSValue {
		dts = pts
	}
	size := int(avcodec.GetPacketSize(d.pkt))
	var data []byte
	if ptr := avcodec.GetPacketData(d.pkt); ptr != nil && size > 0 {
		data = unsafe.Slice((*byte)(ptr), size)
	}
	d.out = ffms.Packet{
		Track:    int(avcodec.GetPacketStreamIndex(d.pkt)),
		DTS:      dts,
		PTS:      pts,
		FilePos:  avcodec.GetPacketPos(d.pkt),
		Size:     size,
		KeyFrame: avcodec.GetPacketFlags(d.pkt)&avcodec.PacketFlagKey != 0,
		Data:     data,
		Native:   d.pkt,
	}
	return &d.out, nil
}

// Seek implements ffms.Demuxer.
func (d *Demuxer) Seek(track int, ts int64) error {
	if track < 0 || track >= len(d.streams) {
		return errors.Errorf("invalid track %d", track)
	}
	return avformat.SeekFrame(d.fmt, int32(track), ts, avformat.SeekFlagBackward)
}

// Position implements ffms.Demuxer.
func (d *Demuxer) Position() int64 {
	return avformat.IOPosition(avformat.GetIOContext(d.fmt))
}

// Size implements ffms.Demuxer.
func (d *Demuxer) Size() int64 { return d.size }

// NewDecoder implements ffms.Demuxer.
func (d *Demuxer) NewDecoder(track int) (ffms.Decoder, error) {
	st := avformat.GetStream(d.fmt, track)
	if st == nil {
		return nil, errors.Errorf("invalid track %d", track)
	}
	return OpenDecoder(DecoderConfig{Parameters: avformat.GetStreamCodecPar(st)})
}

// Close implements ffms.Demuxer.
func (d *Demuxer) Close() error {
	avcodec.PacketFree(&d.pkt)
	avformat.CloseInput(&d.fmt)
	return nil
}
