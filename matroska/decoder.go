//go:build !ios && !android && (amd64 || arm64)

package matroska

import (
	"github.com/obinnaokechukwu/ffms"
	"github.com/obinnaokechukwu/ffms/lavf"
	"github.com/pkg/errors"
)

// NewDecoder implements ffms.Demuxer. Matroska carries no FFmpeg codec
// parameters, so the decoder is configured from the track entry.
func (d *Demuxer) NewDecoder(track int) (ffms.Decoder, error) {
	if track < 0 || track >= len(d.tracks) {
		return nil, errors.Errorf("invalid track %d", track)
	}
	t := &d.tracks[track]
	if t.decoder == "" {
		return nil, errors.Errorf("unsupported codec %s", t.entry.CodecID)
	}
	return lavf.OpenDecoder(lavf.DecoderConfig{
		CodecName:  t.decoder,
		Extradata:  t.extradata,
		Width:      t.info.Width,
		Height:     t.info.Height,
		SampleRate: t.info.SampleRate,
		Channels:   t.info.Channels,
	})
}
