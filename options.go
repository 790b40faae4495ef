package ffms

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// SeekMode selects how a VideoSource may move through a track.
type SeekMode int

const (
	// SeekLinearNoRewind never seeks backward; earlier frames are refused.
	SeekLinearNoRewind SeekMode = -1
	// SeekLinear rewinds to the first frame and decodes forward.
	SeekLinear SeekMode = 0
	// SeekNormal seeks to key frames and requires exact timestamps after a seek.
	SeekNormal SeekMode = 1
	// SeekUnsafe seeks like SeekNormal and accepts the nearest timestamp.
	SeekUnsafe SeekMode = 2
	// SeekAggressive also seeks straight to the requested frame's timestamp.
	SeekAggressive SeekMode = 3
)

func (m SeekMode) String() string {
	switch m {
	case SeekLinearNoRewind:
		return "linear-no-rewind"
	case SeekLinear:
		return "linear"
	case SeekNormal:
		return "normal"
	case SeekUnsafe:
		return "unsafe"
	case SeekAggressive:
		return "aggressive"
	default:
		return fmt.Sprintf("seekmode(%d)", int(m))
	}
}

// Valid reports whether m is a known mode.
func (m SeekMode) Valid() bool {
	return m >= SeekLinearNoRewind && m <= SeekAggressive
}

// strict reports whether a post-seek timestamp must match a record exactly.
func (m SeekMode) strict() bool {
	return m == SeekNormal || m == SeekLinearNoRewind
}

// Tunables are the heuristics of the sources.
type Tunables struct {
	// SeekSlack is how far ahead of the cursor a key frame may be before a
	// VideoSource seeks instead of decoding through.
	SeekSlack int
	// AudioPreRoll is the number of packets decoded and discarded before the
	// key frame an AudioSource seeks to.
	AudioPreRoll int
	// ExtraAudioPreRoll is added to AudioPreRoll. -1 takes the backend's
	// Capabilities value.
	ExtraAudioPreRoll int
	// AudioCacheBlocks bounds the SampleCache. It must be at least 1.
	AudioCacheBlocks int
}

// DefaultTunables returns the standard settings.
func DefaultTunables() Tunables {
	return Tunables{
		SeekSlack:         10,
		AudioPreRoll:      15,
		ExtraAudioPreRoll: -1,
		AudioCacheBlocks:  DefaultAudioCacheBlocks,
	}
}

func (t Tunables) validate() error {
	if t.SeekSlack < 0 || t.AudioPreRoll < 0 || t.ExtraAudioPreRoll < -1 {
		return newErrorf(KindInvalidArgument, "Tunables", "negative tunable in %+v", t)
	}
	if t.AudioCacheBlocks < 1 {
		return newErrorf(KindInvalidArgument, "Tunables", "audio cache needs at least one block, got %d", t.AudioCacheBlocks)
	}
	return nil
}

// SourceOptions configures VideoSource and AudioSource.
type SourceOptions struct {
	SeekMode SeekMode
	Tunables Tunables
	Logger   logrus.FieldLogger
}

// SourceOption is a functional option for sources.
type SourceOption func(*SourceOptions)

// WithSeekMode sets the video seek mode. The default is SeekNormal.
func WithSeekMode(m SeekMode) SourceOption {
	return func(o *SourceOptions) {
		o.SeekMode = m
	}
}

// WithTunables replaces the default heuristics.
func WithTunables(t Tunables) SourceOption {
	return func(o *SourceOptions) {
		o.Tunables = t
	}
}

// WithLogger sets the source logger.
func WithLogger(l logrus.FieldLogger) SourceOption {
	return func(o *SourceOptions) {
		o.Logger = l
	}
}

func buildSourceOptions(opts []SourceOption) (*SourceOptions, error) {
	o := &SourceOptions{SeekMode: SeekNormal, Tunables: DefaultTunables()}
	for _, opt := range opts {
		opt(o)
	}
	if !o.SeekMode.Valid() {
		return nil, newErrorf(KindInvalidArgument, "NewSource", "invalid seek mode %d", int(o.SeekMode))
	}
	if err := o.Tunables.validate(); err != nil {
		return nil, err
	}
	if o.Logger == nil {
		o.Logger = Logger()
	}
	return o, nil
}
