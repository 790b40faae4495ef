//go:build !ios && !android && (amd64 || arm64)

// Package lavf is the general purpose backend: libavformat demuxes any
// container FFmpeg knows and libavcodec decodes it.
package lavf

import (
	"github.com/gabriel-vasile/mimetype"
	"github.com/obinnaokechukwu/ffms"
	"github.com/obinnaokechukwu/ffms/internal/bindings"
	"github.com/pkg/errors"
)

// Backend implements ffms.Backend on top of libavformat.
type Backend struct{}

// New returns the lavf backend.
func New() *Backend { return &Backend{} }

// ID implements ffms.Backend.
func (*Backend) ID() ffms.DecoderID { return ffms.DecoderLavf }

// Name implements ffms.Backend.
func (*Backend) Name() string { return "lavf" }

// Probe accepts every file; libavformat decides when opening.
func (*Backend) Probe(string, *mimetype.MIME) bool { return true }

// Open implements ffms.Backend.
func (*Backend) Open(path string, _ *ffms.MediaIndex) (ffms.Demuxer, error) {
	if err := bindings.Load(); err != nil {
		return nil, errors.Wrap(err, "lavf backend unavailable")
	}
	return OpenDemuxer(path)
}

// Capabilities implements ffms.Backend. Seeking lands on the key frame
// before the target, and audio codecs may need packets before it to settle.
func (*Backend) Capabilities() ffms.Capabilities {
	return ffms.Capabilities{ExtraAudioPreRoll: 20, ResyncAfterSeek: true}
}
