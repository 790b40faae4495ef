//go:build !ios && !android && (amd64 || arm64)

package matroska

import (
	"github.com/gabriel-vasile/mimetype"
	"github.com/obinnaokechukwu/ffms"
	"github.com/obinnaokechukwu/ffms/internal/bindings"
	"github.com/pkg/errors"
)

var matroskaTypes = []string{"video/x-matroska", "audio/x-matroska", "video/webm", "audio/webm"}

// Backend implements ffms.Backend with the native Matroska parser and
// libavcodec decoders.
type Backend struct{}

// New returns the Matroska backend.
func New() *Backend { return &Backend{} }

// ID implements ffms.Backend.
func (*Backend) ID() ffms.DecoderID { return ffms.DecoderMatroska }

// Name implements ffms.Backend.
func (*Backend) Name() string { return "matroska" }

// Probe accepts files detected as Matroska or WebM, falling back to the
// extension.
func (*Backend) Probe(path string, mime *mimetype.MIME) bool {
	if mime != nil {
		for _, t := range matroskaTypes {
			if mime.Is(t) {
				return true
			}
		}
	}
	return ffms.HasExtension(path, ".mkv", ".mka", ".mks", ".webm")
}

// Open implements ffms.Backend.
func (*Backend) Open(path string, idx *ffms.MediaIndex) (ffms.Demuxer, error) {
	if err := bindings.Load(); err != nil {
		return nil, errors.Wrap(err, "matroska backend unavailable")
	}
	return Open(path, idx)
}

// Capabilities implements ffms.Backend. Indexed seeks land exactly on the
// recorded key frame.
func (*Backend) Capabilities() ffms.Capabilities {
	return ffms.Capabilities{ExtraAudioPreRoll: 0, ResyncAfterSeek: true}
}
