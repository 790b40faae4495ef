//go:build !ios && !android && (amd64 || arm64)

package lavf

import (
	"unsafe"

	"github.com/obinnaokechukwu/ffms"
	"github.com/obinnaokechukwu/ffms/avcodec"
	"github.com/obinnaokechukwu/ffms/avutil"
	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

// DecoderConfig selects and configures an FFmpeg decoder. Parameters wins
// over CodecName, which wins over CodecID.
type DecoderConfig struct {
	Parameters avcodec.Parameters
	CodecName  string
	CodecID    avcodec.CodecID

	// Container-declared values for decoders opened without Parameters.
	Extradata  []byte
	Width      int
	Height     int
	SampleRate int
	Channels   int

	// Threads is the decoder thread count. Zero means one thread, which
	// keeps output timestamps in step with input.
	Threads int
}

// CodecDecoder drives an FFmpeg decoder through the send/receive API.
// Video output is queued frame by frame; the samples an audio packet yields
// are concatenated into one frame.
type CodecDecoder struct {
	ctx   avcodec.Context
	frame avutil.Frame
	pkt   avcodec.Packet
	video bool

	queue    []*ffms.DecodedFrame
	current  *bytebufferpool.ByteBuffer
	pending  []*bytebufferpool.ByteBuffer
	draining bool
	format   ffms.AudioFormat
	audio    bytebufferpool.ByteBuffer
}

var framePool bytebufferpool.Pool

// OpenDecoder finds, configures and opens a decoder.
func OpenDecoder(cfg DecoderConfig) (*CodecDecoder, error) {
	var codec avcodec.Codec
	var what string
	switch {
	case cfg.Parameters != nil:
		id := avcodec.GetParCodecID(cfg.Parameters)
		codec, what = avcodec.FindDecoder(id), id.String()
	case cfg.CodecName != "":
		codec, what = avcodec.FindDecoderByName(cfg.CodecName), cfg.CodecName
	default:
		codec, what = avcodec.FindDecoder(cfg.CodecID), cfg.CodecID.String()
	}
	if codec == nil {
		return nil, errors.Errorf("no decoder available for codec %s", what)
	}

	ctx := avcodec.AllocContext3(codec)
	if ctx == nil {
		return nil, errors.New("cannot allocate codec context")
	}
	fail := func(err error, msg string) (*CodecDecoder, error) {
		avcodec.FreeContext(&ctx)
		return nil, errors.Wrap(err, msg)
	}

	if cfg.Parameters != nil {
		if err := avcodec.ParametersToContext(ctx, cfg.Parameters); err != nil {
			return fail(err, "cannot copy stream parameters")
		}
	} else {
		if err := avcodec.SetCtxExtradata(ctx, cfg.Extradata); err != nil {
			return fail(err, "cannot set codec private data")
		}
		if cfg.Width > 0 && cfg.Height > 0 {
			avcodec.SetCtxDimensions(ctx, int32(cfg.Width), int32(cfg.Height))
		}
		if cfg.SampleRate > 0 {
			avcodec.SetCtxSampleRate(ctx, int32(cfg.SampleRate))
		}
		if cfg.Channels > 0 {
			if err := avcodec.SetCtxChannels(ctx, int32(cfg.Channels)); err != nil {
				return fail(err, "cannot set channel layout")
			}
		}
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = 1
	}
	if err := avcodec.SetCtxThreads(ctx, threads); err != nil {
		return fail(err, "cannot set decoder threads")
	}
	if err := avcodec.Open2(ctx, codec); err != nil {
		return fail(err, "cannot open decoder "+what)
	}

	d := &CodecDecoder{
		ctx:   ctx,
		frame: avutil.FrameAlloc(),
		pkt:   avcodec.PacketAlloc(),
		video: avcodec.GetCodecType(codec) == avutil.MediaTypeVideo,
	}
	if d.frame == nil || d.pkt == nil {
		d.Close()
		return nil, errors.New("cannot allocate decoder buffers")
	}
	if !d.video {
		d.format = ffms.AudioFormat{
			SampleRate:   int(avcodec.GetCtxSampleRate(ctx)),
			Channels:     int(avcodec.GetCtxChannels(ctx)),
			SampleFormat: sampleFormat(avcodec.GetCtxSampleFmt(ctx)),
		}
	}
	return d, nil
}

// Decode implements ffms.Decoder.
func (d *CodecDecoder) Decode(pkt *ffms.Packet) (*ffms.DecodedFrame, error) {
	d.recycle()
	if pkt == nil {
		return d.drain()
	}
	d.audio.Reset()
	samples := 0

	if native, ok := pkt.Native.(avcodec.Packet); ok && native != nil {
		n, err := d.send(native)
		if err != nil {
			return nil, err
		}
		samples += n
	} else {
		for _, payload := range pkt.Payloads() {
			if err := avcodec.PacketFromBytes(d.pkt, payload); err != nil {
				return nil, err
			}
			avcodec.SetPacketDTS(d.pkt, pkt.DTS)
			avcodec.SetPacketPTS(d.pkt, pkt.PTS)
			if pkt.KeyFrame {
				avcodec.SetPacketFlags(d.pkt, avcodec.PacketFlagKey)
			}
			n, err := d.send(d.pkt)
			avcodec.PacketUnref(d.pkt)
			if err != nil {
				return nil, err
			}
			samples += n
		}
	}

	if !d.video {
		if samples == 0 {
			return nil, nil
		}
		return &ffms.DecodedFrame{PTS: pkt.PTS, KeyFrame: true, Data: d.audio.B, Samples: samples}, nil
	}
	return d.pop(), nil
}

// send feeds one packet and collects everything the decoder emits. It returns
// the number of audio samples appended.
func (d *CodecDecoder) send(pkt avcodec.Packet) (int, error) {
	samples := 0
	for {
		err := avcodec.SendPacket(d.ctx, pkt)
		if err == nil {
			break
		}
		if !avutil.IsAgain(err) {
			return 0, err
		}
		// Output is full: empty it, then resend.
		n, rerr := d.receive()
		samples += n
		if rerr != nil {
			return samples, rerr
		}
	}
	n, err := d.receive()
	return samples + n, err
}

func (d *CodecDecoder) receive() (int, error) {
	samples := 0
	for {
		err := avcodec.ReceiveFrame(d.ctx, d.frame)
		if avutil.IsAgain(err) || avutil.IsEOF(err) {
			return samples, nil
		}
		if err != nil {
			return samples, err
		}
		if d.video {
			err = d.queueVideo()
		} else {
			var n int
			n, err = d.appendAudio()
			samples += n
		}
		avutil.FrameUnref(d.frame)
		if err != nil {
			return samples, err
		}
	}
}

func (d *CodecDecoder) queueVideo() error {
	format := avutil.PixelFormat(avutil.GetFrameFormat(d.frame))
	w, h := avutil.GetFrameWidth(d.frame), avutil.GetFrameHeight(d.frame)
	size, err := avutil.ImageBufferSize(format, w, h, 1)
	if err != nil {
		return err
	}
	bb := framePool.Get()
	if cap(bb.B) < size {
		bb.B = make([]byte, size)
	}
	bb.B = bb.B[:size]
	if _, err := avutil.ImageCopyToBuffer(bb.B, d.frame, 1); err != nil {
		framePool.Put(bb)
		return err
	}
	pts := avutil.GetFrameBestEffortTimestamp(d.frame)
	if pts == avutil.NoPTSValue {
		pts = avutil.GetFramePTS(d.frame)
	}
	d.queue = append(d.queue, &ffms.DecodedFrame{
		PTS:         pts,
		KeyFrame:    avutil.GetFrameKeyFrame(d.frame) != 0,
		Width:       int(w),
		Height:      int(h),
		PixelFormat: int(format),
		Data:        bb.B,
	})
	d.pending = append(d.pending, bb)
	return nil
}

func (d *CodecDecoder) appendAudio() (int, error) {
	raw := avutil.SampleFormat(avutil.GetFrameFormat(d.frame))
	format := ffms.AudioFormat{
		SampleRate:   int(avutil.GetFrameSampleRate(d.frame)),
		Channels:     int(avcodec.GetCtxChannels(d.ctx)),
		SampleFormat: sampleFormat(raw),
	}
	if format.BytesPerFrame() == 0 {
		return 0, errors.Errorf("unsupported sample format %d", raw)
	}
	d.format = format

	n := int(avutil.GetFrameNbSamples(d.frame))
	bps := format.SampleFormat.BytesPerSample()
	if !avutil.IsPlanar(raw) {
		src := avutil.GetFrameExtendedPlane(d.frame, 0)
		d.audio.B = append(d.audio.B, unsafe.Slice((*byte)(src), n*format.BytesPerFrame())...)
		return n, nil
	}
	planes := make([][]byte, format.Channels)
	for c := range planes {
		planes[c] = unsafe.Slice((*byte)(avutil.GetFrameExtendedPlane(d.frame, c)), n*bps)
	}
	for i := 0; i < n; i++ {
		for c := range planes {
			d.audio.B = append(d.audio.B, planes[c][i*bps:(i+1)*bps]...)
		}
	}
	return n, nil
}

func (d *CodecDecoder) drain() (*ffms.DecodedFrame, error) {
	if !d.draining {
		d.draining = true
		if err := avcodec.SendPacket(d.ctx, nil); err != nil && !avutil.IsEOF(err) {
			return nil, err
		}
		d.audio.Reset()
		samples, err := d.receive()
		if err != nil {
			return nil, err
		}
		if !d.video && samples > 0 {
			return &ffms.DecodedFrame{PTS: avutil.NoPTSValue, KeyFrame: true, Data: d.audio.B, Samples: samples}, nil
		}
	}
	return d.pop(), nil
}

// pop returns the oldest queued picture. Its buffer is reclaimed on the next
// Decode call.
func (d *CodecDecoder) pop() *ffms.DecodedFrame {
	if len(d.queue) == 0 {
		return nil
	}
	f := d.queue[0]
	d.queue = d.queue[1:]
	d.current, d.pending = d.pending[0], d.pending[1:]
	return f
}

func (d *CodecDecoder) recycle() {
	if d.current != nil {
		framePool.Put(d.current)
		d.current = nil
	}
}

// Flush implements ffms.Decoder.
func (d *CodecDecoder) Flush() {
	avcodec.FlushBuffers(d.ctx)
	d.recycle()
	for _, bb := range d.pending {
		framePool.Put(bb)
	}
	d.queue, d.pending = nil, nil
	d.draining = false
}

// HasDelay implements ffms.Decoder.
func (d *CodecDecoder) HasDelay() bool { return true }

// AudioFormat implements ffms.Decoder.
func (d *CodecDecoder) AudioFormat() ffms.AudioFormat { return d.format }

// Close implements ffms.Decoder.
func (d *CodecDecoder) Close() error {
	d.Flush()
	avutil.FrameFree(&d.frame)
	avcodec.PacketFree(&d.pkt)
	avcodec.FreeContext(&d.ctx)
	return nil
}

func sampleFormat(f avutil.SampleFormat) ffms.SampleFormat {
	switch f.Packed() {
	case avutil.SampleFormatU8:
		return ffms.SampleFormatU8
	case avutil.SampleFormatS16:
		return ffms.SampleFormatS16
	case avutil.SampleFormatS32:
		return ffms.SampleFormatS32
	case avutil.SampleFormatFlt:
		return ffms.SampleFormatFloat
	case avutil.SampleFormatDbl:
		return ffms.SampleFormatDouble
	default:
		return ffms.SampleFormatNone
	}
}
