package ffms

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// ErrorHandling selects what the Indexer does when an audio packet fails to
// decode.
type ErrorHandling int

const (
	// ErrorHandlingAbort fails the run.
	ErrorHandlingAbort ErrorHandling = iota
	// ErrorHandlingClearTrack drops every record of the track and stops
	// indexing it.
	ErrorHandlingClearTrack
	// ErrorHandlingStopTrack keeps the records so far and stops indexing the
	// track.
	ErrorHandlingStopTrack
	// ErrorHandlingIgnore keeps the record, marks it DecodeFailed and
	// continues.
	ErrorHandlingIgnore
)

func (e ErrorHandling) String() string {
	switch e {
	case ErrorHandlingAbort:
		return "abort"
	case ErrorHandlingClearTrack:
		return "clear"
	case ErrorHandlingStopTrack:
		return "stop"
	case ErrorHandlingIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// ParseErrorHandling maps abort, clear, stop and ignore to a mode.
func ParseErrorHandling(s string) (ErrorHandling, error) {
	for _, e := range []ErrorHandling{ErrorHandlingAbort, ErrorHandlingClearTrack, ErrorHandlingStopTrack, ErrorHandlingIgnore} {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, newErrorf(KindInvalidArgument, "ParseErrorHandling", "unknown error handling %q", s)
}

// ProgressFunc is called per packet with the demuxer position and file size.
// Returning false cancels indexing.
type ProgressFunc func(current, total int64) bool

// IndexerOptions configures an Indexer.
type IndexerOptions struct {
	AudioTrackMask int64
	DumpMask       int64
	DumpSinks      AudioSinkFactory
	Progress       ProgressFunc
	ErrorHandling  ErrorHandling
	Backend        Backend
	Logger         logrus.FieldLogger
}

// IndexerOption is a functional option for NewIndexer.
type IndexerOption func(*IndexerOptions)

// WithAudioTracks selects the audio tracks decoded for sample positions.
// Bit n selects track n; -1 selects all.
func WithAudioTracks(mask int64) IndexerOption {
	return func(o *IndexerOptions) {
		o.AudioTrackMask = mask
	}
}

// WithAudioDump writes the decoded audio of the tracks in mask to sinks
// made by factory. Dumped tracks are decoded even when not in the audio mask.
func WithAudioDump(mask int64, factory AudioSinkFactory) IndexerOption {
	return func(o *IndexerOptions) {
		o.DumpMask = mask
		o.DumpSinks = factory
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) IndexerOption {
	return func(o *IndexerOptions) {
		o.Progress = fn
	}
}

// WithErrorHandling sets the decode error policy. The default is
// ErrorHandlingIgnore.
func WithErrorHandling(e ErrorHandling) IndexerOption {
	return func(o *IndexerOptions) {
		o.ErrorHandling = e
	}
}

// WithBackend skips probing and indexes with b.
func WithBackend(b Backend) IndexerOption {
	return func(o *IndexerOptions) {
		o.Backend = b
	}
}

// WithIndexerLogger sets the logger.
func WithIndexerLogger(l logrus.FieldLogger) IndexerOption {
	return func(o *IndexerOptions) {
		o.Logger = l
	}
}

// Indexer builds a MediaIndex in one pass over a file.
type Indexer struct {
	reg  *DecoderRegistry
	opts IndexerOptions
	log  logrus.FieldLogger
}

// NewIndexer returns an indexer drawing backends from reg.
func NewIndexer(reg *DecoderRegistry, opts ...IndexerOption) *Indexer {
	o := IndexerOptions{ErrorHandling: ErrorHandlingIgnore}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = Logger()
	}
	return &Indexer{reg: reg, opts: o, log: o.Logger}
}

// audioTrackState is the per-track decode state of a run.
type audioTrackState struct {
	decoder Decoder
	format  AudioFormat // fixed by the first decoded frame
	samples int64
	active  bool
	cleared bool
	sink    AudioSink
	dump    bool
}

func maskHas(mask int64, track int) bool {
	return mask == -1 || (track < 63 && mask&(1<<uint(track)) != 0)
}

// Run indexes path.
func (ix *Indexer) Run(ctx context.Context, path string) (*MediaIndex, error) {
	const op = "Index"
	b := ix.opts.Backend
	if b == nil {
		var err error
		if b, err = ix.reg.Select(path); err != nil {
			return nil, err
		}
	}
	log := ix.log.WithFields(logrus.Fields{"backend": b.Name(), "file": path})

	size, digest, err := FileDigest(path)
	if err != nil {
		return nil, err
	}
	d, err := b.Open(path, nil)
	if err != nil {
		return nil, wrapError(KindDemux, op, err, "cannot open container")
	}
	defer d.Close()

	streams := d.Streams()
	idx := &MediaIndex{Decoder: b.ID(), FileSize: size, Digest: digest}
	idx.Tracks = make([]*TrackIndex, len(streams))
	audio := make([]*audioTrackState, len(streams))
	defer func() {
		for _, st := range audio {
			if st != nil {
				st.close()
			}
		}
	}()
	for i, s := range streams {
		idx.Tracks[i] = NewTrackIndex(s.Type, s.TimeBase)
		if s.Type != TrackTypeAudio {
			continue
		}
		dump := maskHas(ix.opts.DumpMask, i) && ix.opts.DumpSinks != nil
		if !maskHas(ix.opts.AudioTrackMask, i) && !dump {
			continue
		}
		dec, err := d.NewDecoder(i)
		if err != nil {
			return nil, wrapError(KindUnsupported, op, err, "cannot open audio decoder")
		}
		audio[i] = &audioTrackState{decoder: dec, active: true, dump: dump}
	}
	log.WithField("tracks", len(streams)).Debug("indexing")

	for {
		if err := ctx.Err(); err != nil {
			return nil, wrapError(KindCancelled, op, err, "cancelled by user")
		}
		pkt, err := d.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Treat a damaged tail as the end of the file.
			log.WithError(err).Warn("demuxing stopped early")
			break
		}
		if ix.opts.Progress != nil && !ix.opts.Progress(d.Position(), d.Size()) {
			return nil, newError(KindCancelled, op, "cancelled by user")
		}
		if pkt.Track < 0 || pkt.Track >= len(idx.Tracks) {
			continue
		}
		t := idx.Tracks[pkt.Track]
		rec := FrameRecord{DTS: pkt.DTS, FilePos: pkt.FilePos, Size: uint32(pkt.Size), KeyFrame: pkt.KeyFrame}

		st := audio[pkt.Track]
		if t.Type != TrackTypeAudio || st == nil {
			if t.Type != TrackTypeOther {
				t.Records = append(t.Records, rec)
			}
			continue
		}
		if !st.active {
			continue
		}
		if err := ix.indexAudioPacket(idx, pkt, rec, st, log); err != nil {
			return nil, err
		}
	}

	for _, st := range audio {
		if st != nil {
			if err := st.close(); err != nil {
				return nil, err
			}
		}
	}

	indexed := false
	for i, t := range idx.Tracks {
		if t.Len() > 0 {
			indexed = true
		}
		if st := audio[i]; st != nil && !st.cleared && maskHas(ix.opts.AudioTrackMask, i) && t.Len() == 0 {
			return nil, newErrorf(KindNoFrames, op, "audio track %d contains no audio frames", i)
		}
	}
	if !indexed {
		return nil, newError(KindNoFrames, op, "no frames found")
	}
	return idx, nil
}

func (ix *Indexer) indexAudioPacket(idx *MediaIndex, pkt *Packet, rec FrameRecord, st *audioTrackState, log logrus.FieldLogger) error {
	t := idx.Tracks[pkt.Track]
	rec.SampleStart = st.samples
	rec.HasSampleStart = true

	f, err := st.decoder.Decode(pkt)
	if err != nil {
		log := log.WithFields(logrus.Fields{"track": pkt.Track, "dts": pkt.DTS})
		switch ix.opts.ErrorHandling {
		case ErrorHandlingAbort:
			return wrapError(KindDecode, "Index", err, "audio decoding error")
		case ErrorHandlingClearTrack:
			log.WithError(err).Warn("audio decoding error, clearing track")
			t.Records = nil
			st.active = false
			st.cleared = true
		case ErrorHandlingStopTrack:
			log.WithError(err).Warn("audio decoding error, stopping track")
			st.active = false
		default:
			log.WithError(err).Debug("audio decoding error, ignored")
			rec.DecodeFailed = true
			t.Records = append(t.Records, rec)
		}
		return nil
	}

	if f != nil && f.Samples > 0 {
		format := st.decoder.AudioFormat()
		if st.format.BytesPerFrame() == 0 {
			st.format = format
		} else if format != st.format {
			return newErrorf(KindUnsupported, "Index", "audio format change detected on track %d", pkt.Track)
		}
		rec.SampleCount = uint32(f.Samples)
		st.samples += int64(f.Samples)

		if st.dump {
			if st.sink == nil {
				delay := int64(t.Milliseconds(firstDTS(t, pkt.DTS)))
				if st.sink, err = ix.opts.DumpSinks(pkt.Track, st.format, delay); err != nil {
					return wrapError(KindIO, "Index", err, "cannot create audio dump")
				}
			}
			if err := st.sink.WriteSamples(f.Data, f.Samples); err != nil {
				return wrapError(KindIO, "Index", err, "audio dump failed")
			}
		}
	}
	t.Records = append(t.Records, rec)
	return nil
}

// firstDTS returns the DTS of the track's first record, or dts when empty.
func firstDTS(t *TrackIndex, dts int64) int64 {
	if t.Len() > 0 {
		return t.Records[0].DTS
	}
	return dts
}

func (st *audioTrackState) close() error {
	var err error
	if st.sink != nil {
		err = st.sink.Close()
		st.sink = nil
	}
	if st.decoder != nil {
		st.decoder.Close()
		st.decoder = nil
	}
	return err
}
