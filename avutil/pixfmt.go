//go:build !ios && !android && (amd64 || arm64)

package avutil

// PixelFormat is an AVPixelFormat value.
type PixelFormat int32

const (
	PixelFormatNone    PixelFormat = -1
	PixelFormatYUV420P PixelFormat = 0
	PixelFormatYUYV422 PixelFormat = 1
	PixelFormatRGB24   PixelFormat = 2
	PixelFormatBGR24   PixelFormat = 3
	PixelFormatYUV422P PixelFormat = 4
	PixelFormatYUV444P PixelFormat = 5
	PixelFormatGray8   PixelFormat = 8
	PixelFormatNV12    PixelFormat = 23
	PixelFormatRGBA    PixelFormat = 26
	PixelFormatBGRA    PixelFormat = 28
)

// MediaType is an AVMediaType value.
type MediaType int32

const (
	MediaTypeUnknown    MediaType = -1
	MediaTypeVideo      MediaType = 0
	MediaTypeAudio      MediaType = 1
	MediaTypeData       MediaType = 2
	MediaTypeSubtitle   MediaType = 3
	MediaTypeAttachment MediaType = 4
)

// SampleFormat is an AVSampleFormat value.
type SampleFormat int32

const (
	SampleFormatNone SampleFormat = -1
	SampleFormatU8   SampleFormat = 0
	SampleFormatS16  SampleFormat = 1
	SampleFormatS32  SampleFormat = 2
	SampleFormatFlt  SampleFormat = 3
	SampleFormatDbl  SampleFormat = 4
	SampleFormatU8P  SampleFormat = 5
	SampleFormatS16P SampleFormat = 6
	SampleFormatS32P SampleFormat = 7
	SampleFormatFltP SampleFormat = 8
	SampleFormatDblP SampleFormat = 9
	SampleFormatS64  SampleFormat = 10
	SampleFormatS64P SampleFormat = 11
)

// Packed returns the interleaved counterpart of a planar format.
func (f SampleFormat) Packed() SampleFormat {
	switch f {
	case SampleFormatU8P:
		return SampleFormatU8
	case SampleFormatS16P:
		return SampleFormatS16
	case SampleFormatS32P:
		return SampleFormatS32
	case SampleFormatFltP:
		return SampleFormatFlt
	case SampleFormatDblP:
		return SampleFormatDbl
	case SampleFormatS64P:
		return SampleFormatS64
	}
	return f
}

// Log levels for LogSetLevel.
const (
	LogQuiet   int32 = -8
	LogPanic   int32 = 0
	LogFatal   int32 = 8
	LogError   int32 = 16
	LogWarning int32 = 24
	LogInfo    int32 = 32
	LogVerbose int32 = 40
	LogDebug   int32 = 48
	LogTrace   int32 = 56
)
