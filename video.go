package ffms

import (
	"io"

	"github.com/sirupsen/logrus"
)

// VideoState is the seek state of a VideoSource.
type VideoState int

const (
	// VideoIdle: no frame has been requested yet.
	VideoIdle VideoState = iota
	// VideoDecoding: the decoder position is known.
	VideoDecoding
	// VideoSeekPending: a seek was issued and the position is not resolved.
	VideoSeekPending
)

func (s VideoState) String() string {
	switch s {
	case VideoIdle:
		return "idle"
	case VideoDecoding:
		return "decoding"
	case VideoSeekPending:
		return "seek pending"
	default:
		return "unknown"
	}
}

// VideoFrame is a decoded picture. Data is owned by the VideoSource and is
// overwritten by the next Frame call that decodes.
type VideoFrame struct {
	Number      int
	PTS         int64
	KeyFrame    bool
	Width       int
	Height      int
	PixelFormat int
	Data        []byte
}

// VideoSource delivers frames of one video track by frame number.
type VideoSource struct {
	ctx     *SourceContext
	track   int
	index   *TrackIndex
	info    StreamInfo
	decoder Decoder
	mode    SeekMode
	tun     Tunables
	log     logrus.FieldLogger

	state        VideoState
	currentFrame int
	eof          bool
	last         *VideoFrame
	buf          ScratchBuffer
	decodeErrors int
}

// NewVideoSource opens track of the context's file for frame access.
func NewVideoSource(ctx *SourceContext, track int, opts ...SourceOption) (*VideoSource, error) {
	const op = "NewVideoSource"
	o, err := buildSourceOptions(opts)
	if err != nil {
		return nil, err
	}
	t, err := ctx.index.Track(track)
	if err != nil {
		return nil, newError(KindInvalidArgument, op, "invalid video track number")
	}
	if t.Type != TrackTypeVideo {
		return nil, newError(KindInvalidArgument, op, "selected track is not video")
	}
	if t.Len() == 0 {
		return nil, newError(KindNoFrames, op, "video track contains no frames")
	}

	ctx.mu.Lock()
	if ctx.closed {
		ctx.mu.Unlock()
		return nil, newError(KindInvalidArgument, op, "use of closed source")
	}
	dec, err := ctx.demux.NewDecoder(track)
	streams := ctx.demux.Streams()
	ctx.mu.Unlock()
	if err != nil {
		return nil, wrapError(KindUnsupported, op, err, "cannot open video decoder")
	}

	v := &VideoSource{
		ctx:     ctx,
		track:   track,
		index:   t,
		decoder: dec,
		mode:    o.SeekMode,
		tun:     o.Tunables,
		log:     o.Logger.WithFields(logrus.Fields{"track": track, "type": "video"}),
	}
	if track < len(streams) {
		v.info = streams[track]
	}
	return v, nil
}

// Track returns the track number.
func (v *VideoSource) Track() int { return v.track }

// Index returns the track's records.
func (v *VideoSource) Index() *TrackIndex { return v.index }

// Info returns the stream description reported by the demuxer.
func (v *VideoSource) Info() StreamInfo { return v.info }

// NumFrames returns the number of frames in the track.
func (v *VideoSource) NumFrames() int { return v.index.Len() }

// State returns the seek state.
func (v *VideoSource) State() VideoState { return v.state }

// CurrentFrame returns the number of the frame the decoder produces next.
func (v *VideoSource) CurrentFrame() int { return v.currentFrame }

// SeekMode returns the configured mode.
func (v *VideoSource) SeekMode() SeekMode { return v.mode }

// DecodeErrors returns how many packets failed to decode and were skipped.
func (v *VideoSource) DecodeErrors() int { return v.decodeErrors }

// FrameTime returns the timestamp of frame n in milliseconds.
func (v *VideoSource) FrameTime(n int) (float64, error) {
	if n < 0 || n >= v.index.Len() {
		return 0, newErrorf(KindInvalidArgument, "FrameTime", "frame %d out of range", n)
	}
	return v.index.Milliseconds(v.index.Records[n].DTS), nil
}

// Frame decodes and returns frame n.
func (v *VideoSource) Frame(n int) (*VideoFrame, error) {
	const op = "Frame"
	if n < 0 || n >= v.index.Len() {
		return nil, newErrorf(KindInvalidArgument, op, "frame %d out of range [0, %d)", n, v.index.Len())
	}
	if v.last != nil && v.last.Number == n && v.state != VideoSeekPending {
		return v.last, nil
	}

	d, moved, err := v.ctx.acquire(v)
	if err != nil {
		return nil, err
	}
	defer v.ctx.release()

	if v.mode == SeekLinearNoRewind && n < v.currentFrame {
		return nil, newErrorf(KindNonLinearAccessDenied, op,
			"frame %d requested after frame %d in linear mode", n, v.currentFrame-1)
	}

	seekFrame := v.seekTarget(n, moved)
	if seekFrame >= 0 {
		if err := v.seek(d, seekFrame); err != nil {
			return nil, err
		}
	}

	var out *DecodedFrame
	// A pending seek leaves currentFrame stale until the first packet
	// resolves it.
	for v.state == VideoSeekPending || v.currentFrame <= n {
		f, dts, ok, err := v.decodeNext(d)
		if err != nil {
			return nil, err
		}
		if v.state == VideoSeekPending {
			pos, err := v.resolve(dts, ok)
			if err != nil {
				return nil, err
			}
			if pos > n && seekFrame > 0 {
				// Landed past the target; back off one key frame.
				seekFrame = v.index.FindClosestKeyFrame(seekFrame - 1)
				v.log.WithFields(logrus.Fields{"frame": n, "landed": pos}).Warn("seek overshoot, retrying earlier")
				if err := v.seek(d, seekFrame); err != nil {
					return nil, err
				}
				continue
			}
			v.currentFrame = pos
			v.state = VideoDecoding
			if pos > n {
				return nil, newErrorf(KindDecode, op, "frame %d not produced, decoding starts at %d", n, pos)
			}
		}
		v.currentFrame++
		out = f
	}
	if out == nil {
		return nil, newErrorf(KindDecode, op, "frame %d not produced", n)
	}

	v.buf.Resize(len(out.Data))
	copy(v.buf.Bytes(), out.Data)
	v.last = &VideoFrame{
		Number:      n,
		PTS:         out.PTS,
		KeyFrame:    v.index.Records[n].KeyFrame,
		Width:       out.Width,
		Height:      out.Height,
		PixelFormat: out.PixelFormat,
		Data:        v.buf.Bytes(),
	}
	return v.last, nil
}

// seekTarget returns the frame whose DTS to seek to before decoding n, or -1
// to continue decoding from the current position.
func (v *VideoSource) seekTarget(n int, moved bool) int {
	cur := v.currentFrame
	pending := v.state == VideoSeekPending
	switch v.mode {
	case SeekLinearNoRewind:
		if moved || pending {
			return v.index.FindClosestKeyFrame(cur)
		}
		return -1
	case SeekLinear:
		if n < cur || moved || pending {
			return 0
		}
		return -1
	}

	kf := v.index.FindClosestKeyFrame(n)
	target := -1
	if moved || pending || n < cur || kf > cur+v.tun.SeekSlack {
		target = kf
	}
	if v.mode == SeekAggressive && n > cur+v.tun.SeekSlack {
		target = n
	}
	return target
}

func (v *VideoSource) seek(d Demuxer, frame int) error {
	dts := v.index.Records[frame].DTS
	v.log.WithFields(logrus.Fields{"frame": frame, "dts": dts}).Debug("seeking")
	if err := d.Seek(v.track, dts); err != nil {
		return wrapError(KindDemux, "Frame", err, "video seek failed")
	}
	v.decoder.Flush()
	v.eof = false
	v.last = nil
	if v.mode == SeekLinear {
		// A backward seek to the first record cannot land anywhere else.
		v.currentFrame = 0
		v.state = VideoDecoding
		return nil
	}
	v.state = VideoSeekPending
	return nil
}

// resolve maps the first DTS read after a seek to a frame number.
func (v *VideoSource) resolve(dts int64, ok bool) (int, error) {
	if ok {
		if v.mode.strict() {
			if pos, found := v.index.FrameFromTimestamp(dts); found {
				return pos, nil
			}
		} else {
			return v.index.ClosestFrameFromTimestamp(dts), nil
		}
	}
	return 0, newError(KindFrameAccurateSeekImpossible, "Frame",
		"frame accurate seeking is not possible in this file")
}

// decodeNext reads packets of the track until the decoder emits a frame. It
// returns the DTS of the first packet of the track it read.
func (v *VideoSource) decodeNext(d Demuxer) (*DecodedFrame, int64, bool, error) {
	var firstDTS int64
	var haveDTS bool
	for !v.eof {
		pkt, err := d.ReadPacket()
		if err == io.EOF {
			v.eof = true
			break
		}
		if err != nil {
			return nil, 0, false, wrapError(KindDemux, "Frame", err, "cannot read packet")
		}
		if pkt.Track != v.track {
			continue
		}
		if !haveDTS {
			firstDTS, haveDTS = pkt.DTS, true
		}
		f, err := v.decoder.Decode(pkt)
		if err != nil {
			v.decodeErrors++
			v.log.WithError(err).WithField("dts", pkt.DTS).Debug("skipping undecodable packet")
			continue
		}
		if f != nil {
			return f, firstDTS, haveDTS, nil
		}
	}
	if v.decoder.HasDelay() {
		f, err := v.decoder.Decode(nil)
		if err == nil && f != nil {
			return f, firstDTS, haveDTS, nil
		}
	}
	return nil, 0, false, newError(KindDecode, "Frame", "insufficient packets to decode video frame")
}

// Close releases the decoder. The SourceContext stays open.
func (v *VideoSource) Close() error {
	v.ctx.forget(v)
	return v.decoder.Close()
}
