package ffms

import (
	"io"

	"github.com/sirupsen/logrus"
)

// AudioSource reads sample ranges of one audio track. Decoded blocks are kept
// in a SampleCache so neighbouring requests do not decode again.
type AudioSource struct {
	ctx     *SourceContext
	track   int
	index   *TrackIndex
	info    StreamInfo
	decoder Decoder
	format  AudioFormat
	tun     Tunables
	caps    Capabilities
	log     logrus.FieldLogger

	cache         *SampleCache
	currentSample int64
	currentBlock  int
	resync        bool
	decodeErrors  int
}

// NewAudioSource opens track of the context's file for sample access. The
// track must have been decoded while indexing.
func NewAudioSource(ctx *SourceContext, track int, opts ...SourceOption) (*AudioSource, error) {
	const op = "NewAudioSource"
	o, err := buildSourceOptions(opts)
	if err != nil {
		return nil, err
	}
	t, err := ctx.index.Track(track)
	if err != nil {
		return nil, newError(KindInvalidArgument, op, "invalid audio track number")
	}
	if t.Type != TrackTypeAudio {
		return nil, newError(KindInvalidArgument, op, "selected track is not audio")
	}
	if t.Len() == 0 || !t.HasSampleStarts() {
		return nil, newError(KindNoFrames, op, "audio track contains no frames, was it indexed properly?")
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
		return nil, wrapError(KindUnsupported, op, err, "cannot open audio decoder")
	}
	format := dec.AudioFormat()
	if format.BytesPerFrame() == 0 {
		dec.Close()
		return nil, newErrorf(KindUnsupported, op, "unsupported audio format %+v", format)
	}

	a := &AudioSource{
		ctx:           ctx,
		track:         track,
		index:         t,
		decoder:       dec,
		format:        format,
		tun:           o.Tunables,
		caps:          ctx.backend.Capabilities(),
		log:           o.Logger.WithFields(logrus.Fields{"track": track, "type": "audio"}),
		cache:         NewSampleCache(format.BytesPerFrame(), o.Tunables.AudioCacheBlocks),
		currentSample: -1,
	}
	if track < len(streams) {
		a.info = streams[track]
	}
	return a, nil
}

// Track returns the track number.
func (a *AudioSource) Track() int { return a.track }

// Index returns the track's records.
func (a *AudioSource) Index() *TrackIndex { return a.index }

// Info returns the stream description reported by the demuxer.
func (a *AudioSource) Info() StreamInfo { return a.info }

// Format returns the layout of the samples GetAudio writes.
func (a *AudioSource) Format() AudioFormat { return a.format }

// NumSamples returns the length of the track in sample frames.
func (a *AudioSource) NumSamples() int64 { return a.index.NumSamples() }

// DecodeErrors returns how many packets failed to decode while reading.
func (a *AudioSource) DecodeErrors() int { return a.decodeErrors }

// CacheLen returns the number of cached blocks.
func (a *AudioSource) CacheLen() int { return a.cache.Len() }

func (a *AudioSource) extraPreRoll() int {
	if a.tun.ExtraAudioPreRoll < 0 {
		return a.caps.ExtraAudioPreRoll
	}
	return a.tun.ExtraAudioPreRoll
}

// GetAudio writes count sample frames starting at start into dst, which must
// hold count*Format().BytesPerFrame() bytes. Samples the track cannot provide
// are left silent.
func (a *AudioSource) GetAudio(dst []byte, start, count int64) error {
	const op = "GetAudio"
	if start < 0 || count < 0 {
		return newErrorf(KindInvalidArgument, op, "invalid range %d+%d", start, count)
	}
	bps := int64(a.format.BytesPerFrame())
	if int64(len(dst)) < count*bps {
		return newErrorf(KindInvalidArgument, op, "buffer of %d bytes cannot hold %d samples", len(dst), count)
	}
	dst = dst[:count*bps]
	silence := byte(0)
	if a.format.SampleFormat == SampleFormatU8 {
		silence = 127
	}
	for i := range dst {
		dst[i] = silence
	}
	if count == 0 {
		return nil
	}
	end := start + count

	d, moved, err := a.ctx.acquire(a)
	if err != nil {
		return err
	}
	defer a.ctx.release()
	if moved {
		a.currentSample = -1
	}

	cacheEnd := a.cache.FillRequest(start, count, dst)
	if cacheEnd == end || cacheEnd >= a.index.NumSamples() {
		return nil
	}

	records := a.index.Records
	block := a.currentBlock
	kf, preRoll := 0, 0
	if a.currentSample != cacheEnd {
		kf = a.index.FindClosestAudioKeyFrame(cacheEnd)
		block = max(kf-a.tun.AudioPreRoll-a.extraPreRoll(), 0)
		preRoll = min(a.tun.AudioPreRoll, kf-block)
		a.log.WithFields(logrus.Fields{"sample": cacheEnd, "block": block, "dts": records[block].DTS}).Debug("seeking")
		if err := d.Seek(a.track, records[block].DTS); err != nil {
			return wrapError(KindDemux, op, err, "audio seek failed")
		}
		a.decoder.Flush()
		a.resync = a.caps.ResyncAfterSeek
	}

	for cacheEnd < end && block < len(records) {
		f, dts, failed, err := a.decodePacket(d)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if a.resync {
			if pos, ok := a.index.FrameFromTimestamp(dts); ok {
				block = pos
			} else {
				block = a.index.ClosestFrameFromTimestamp(dts)
			}
			preRoll = max(min(a.tun.AudioPreRoll, kf-block), 0)
			a.resync = false
		}

		if preRoll > 0 {
			preRoll--
		} else if rec := records[block]; f != nil && f.Samples > 0 && !rec.DecodeFailed {
			a.cache.Insert(rec.SampleStart, int64(f.Samples), f.Data)
			cacheEnd = a.cache.FillRequest(cacheEnd, end-cacheEnd, dst[(cacheEnd-start)*bps:])
		} else if failed && rec.SampleStart <= cacheEnd && cacheEnd < rec.SampleStart+int64(rec.SampleCount) {
			// The block decoded while indexing but not now. Its span
			// stays silent and is not cached.
			a.log.WithFields(logrus.Fields{"block": block, "samples": rec.SampleCount}).Warn("audio block lost, leaving silence")
			cacheEnd = min(rec.SampleStart+int64(rec.SampleCount), end)
			if cacheEnd < end {
				cacheEnd = a.cache.FillRequest(cacheEnd, end-cacheEnd, dst[(cacheEnd-start)*bps:])
			}
		}

		block++
		if block < len(records) {
			a.currentSample = records[block].SampleStart
		} else {
			a.currentSample = a.index.NumSamples()
		}
	}
	a.currentBlock = block
	return nil
}

// decodePacket decodes the next packet of the track. A packet that fails to
// decode yields a nil frame and failed.
func (a *AudioSource) decodePacket(d Demuxer) (*DecodedFrame, int64, bool, error) {
	for {
		pkt, err := d.ReadPacket()
		if err == io.EOF {
			return nil, 0, false, io.EOF
		}
		if err != nil {
			return nil, 0, false, wrapError(KindDemux, "GetAudio", err, "cannot read packet")
		}
		if pkt.Track != a.track {
			continue
		}
		f, err := a.decoder.Decode(pkt)
		if err != nil {
			a.decodeErrors++
			a.log.WithError(err).WithField("dts", pkt.DTS).Debug("audio packet failed to decode")
			return nil, pkt.DTS, true, nil
		}
		return f, pkt.DTS, false, nil
	}
}

// Close releases the decoder. The SourceContext stays open.
func (a *AudioSource) Close() error {
	a.ctx.forget(a)
	return a.decoder.Close()
}
