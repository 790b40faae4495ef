//go:build !ios && !android && (amd64 || arm64)

// Package avutil binds the parts of libavutil the backends use: frames,
// sample formats, picture copies, options, logging and error strings.
package avutil

import (
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/ffms/internal/bindings"
)

// Frame is an opaque AVFrame pointer.
type Frame = unsafe.Pointer

var (
	avFrameAlloc func() unsafe.Pointer
	avFrameFree  func(frame *unsafe.Pointer)
	avFrameUnref func(frame unsafe.Pointer)

	avMalloc func(size uintptr) unsafe.Pointer
	avFree   func(ptr unsafe.Pointer)

	avStrerror func(errnum int32, errbuf unsafe.Pointer, errbufSize uintptr) int32

	avGetBytesPerSample func(sampleFmt int32) int32
	avSampleFmtIsPlanar func(sampleFmt int32) int32

	avImageGetBufferSize func(pixFmt, width, height, align int32) int32
	avImageCopyToBuffer  func(dst unsafe.Pointer, dstSize int32, srcData unsafe.Pointer, srcLinesize unsafe.Pointer,
		pixFmt, width, height, align int32) int32

	avOptSetInt func(obj unsafe.Pointer, name string, val int64, searchFlags int32) int32

	avLogSetLevel func(level int32)
	avLogGetLevel func() int32

	avChannelLayoutDefault func(layout unsafe.Pointer, nbChannels int32)

	bindingsRegistered bool
)

func init() {
	registerBindings()
}

func registerBindings() {
	if bindingsRegistered {
		return
	}
	if err := bindings.Load(); err != nil {
		return // calls report ErrNotLoaded
	}
	lib := bindings.LibAVUtil()
	if lib == 0 {
		return
	}

	purego.RegisterLibFunc(&avFrameAlloc, lib, "av_frame_alloc")
	purego.RegisterLibFunc(&avFrameFree, lib, "av_frame_free")
	purego.RegisterLibFunc(&avFrameUnref, lib, "av_frame_unref")

	purego.RegisterLibFunc(&avMalloc, lib, "av_malloc")
	purego.RegisterLibFunc(&avFree, lib, "av_free")

	purego.RegisterLibFunc(&avStrerror, lib, "av_strerror")

	purego.RegisterLibFunc(&avGetBytesPerSample, lib, "av_get_bytes_per_sample")
	purego.RegisterLibFunc(&avSampleFmtIsPlanar, lib, "av_sample_fmt_is_planar")

	purego.RegisterLibFunc(&avImageGetBufferSize, lib, "av_image_get_buffer_size")
	purego.RegisterLibFunc(&avImageCopyToBuffer, lib, "av_image_copy_to_buffer")

	purego.RegisterLibFunc(&avOptSetInt, lib, "av_opt_set_int")

	purego.RegisterLibFunc(&avLogSetLevel, lib, "av_log_set_level")
	purego.RegisterLibFunc(&avLogGetLevel, lib, "av_log_get_level")

	purego.RegisterLibFunc(&avChannelLayoutDefault, lib, "av_channel_layout_default")

	bindingsRegistered = true
}

// FrameAlloc allocates an AVFrame. Free it with FrameFree.
func FrameAlloc() Frame {
	if avFrameAlloc == nil {
		return nil
	}
	return avFrameAlloc()
}

// FrameFree frees frame and sets it to nil. Safe on nil.
func FrameFree(frame *Frame) {
	if frame == nil || *frame == nil || avFrameFree == nil {
		return
	}
	avFrameFree(frame)
	*frame = nil
}

// FrameUnref drops the buffers referenced by frame.
func FrameUnref(frame Frame) {
	if frame == nil || avFrameUnref == nil {
		return
	}
	avFrameUnref(frame)
}

// NoPTSValue marks an unset timestamp (AV_NOPTS_VALUE).
const NoPTSValue int64 = -9223372036854775808

// AVFrame field offsets for FFmpeg 6.x (avutil 58).
const (
	offsetData         = 0   // uint8_t *data[8]
	offsetLinesize     = 64  // int linesize[8]
	offsetExtendedData = 96  // uint8_t **extended_data
	offsetWidth        = 104 // int width
	offsetHeight       = 108 // int height
	offsetNbSamples    = 112 // int nb_samples
	offsetFormat       = 116 // int format
	offsetKeyFrame     = 120 // int key_frame
	offsetPts          = 136 // int64_t pts
	offsetBestEffortTS = 200 // int64_t best_effort_timestamp
	offsetSampleRate   = 216 // int sample_rate
)

func frameInt32(frame Frame, off uintptr) int32 {
	if frame == nil {
		return 0
	}
	return *(*int32)(unsafe.Add(frame, off))
}

// GetFrameWidth returns the picture width.
func GetFrameWidth(frame Frame) int32 { return frameInt32(frame, offsetWidth) }

// GetFrameHeight returns the picture height.
func GetFrameHeight(frame Frame) int32 { return frameInt32(frame, offsetHeight) }

// GetFrameNbSamples returns the number of audio samples per channel.
func GetFrameNbSamples(frame Frame) int32 { return frameInt32(frame, offsetNbSamples) }

// GetFrameSampleRate returns the audio sample rate.
func GetFrameSampleRate(frame Frame) int32 { return frameInt32(frame, offsetSampleRate) }

// GetFrameKeyFrame returns 1 for a key frame.
func GetFrameKeyFrame(frame Frame) int32 { return frameInt32(frame, offsetKeyFrame) }

// GetFrameFormat returns the pixel or sample format, or -1 for nil.
func GetFrameFormat(frame Frame) int32 {
	if frame == nil {
		return -1
	}
	return frameInt32(frame, offsetFormat)
}

// GetFramePTS returns the presentation timestamp.
func GetFramePTS(frame Frame) int64 {
	if frame == nil {
		return NoPTSValue
	}
	return *(*int64)(unsafe.Add(frame, offsetPts))
}

// GetFrameBestEffortTimestamp returns the decoder's guess of the frame time.
func GetFrameBestEffortTimestamp(frame Frame) int64 {
	if frame == nil {
		return NoPTSValue
	}
	return *(*int64)(unsafe.Add(frame, offsetBestEffortTS))
}

// GetFrameData returns the first eight plane pointers.
func GetFrameData(frame Frame) [8]unsafe.Pointer {
	if frame == nil {
		return [8]unsafe.Pointer{}
	}
	return *(*[8]unsafe.Pointer)(unsafe.Add(frame, offsetData))
}

// GetFrameLinesize returns the first eight line sizes.
func GetFrameLinesize(frame Frame) [8]int32 {
	if frame == nil {
		return [8]int32{}
	}
	return *(*[8]int32)(unsafe.Add(frame, offsetLinesize))
}

// GetFrameExtendedPlane returns plane i of extended_data, which holds one
// pointer per channel for planar audio even beyond eight channels.
func GetFrameExtendedPlane(frame Frame, i int) unsafe.Pointer {
	if frame == nil || i < 0 {
		return nil
	}
	ext := *(*unsafe.Pointer)(unsafe.Add(frame, offsetExtendedData))
	if ext == nil {
		return nil
	}
	return *(*unsafe.Pointer)(unsafe.Add(ext, uintptr(i)*unsafe.Sizeof(uintptr(0))))
}

// Malloc allocates memory with FFmpeg's allocator.
func Malloc(size uintptr) unsafe.Pointer {
	if avMalloc == nil {
		return nil
	}
	return avMalloc(size)
}

// Free releases memory from Malloc.
func Free(ptr unsafe.Pointer) {
	if ptr == nil || avFree == nil {
		return
	}
	avFree(ptr)
}

// ErrorString returns FFmpeg's message for errnum.
func ErrorString(errnum int32) string {
	if avStrerror == nil {
		return "unknown error (FFmpeg not loaded)"
	}
	buf := make([]byte, 256)
	avStrerror(errnum, unsafe.Pointer(&buf[0]), uintptr(len(buf)))
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// BytesPerSample returns the size of one sample of format.
func BytesPerSample(format SampleFormat) int {
	if avGetBytesPerSample == nil {
		return 0
	}
	return int(avGetBytesPerSample(int32(format)))
}

// IsPlanar reports whether format stores channels in separate planes.
func IsPlanar(format SampleFormat) bool {
	if avSampleFmtIsPlanar == nil {
		return format >= SampleFormatU8P && format <= SampleFormatDblP || format == SampleFormatS64P
	}
	return avSampleFmtIsPlanar(int32(format)) != 0
}

// ImageBufferSize returns the bytes needed for a packed picture.
func ImageBufferSize(format PixelFormat, width, height, align int32) (int, error) {
	if avImageGetBufferSize == nil {
		return 0, bindings.ErrNotLoaded
	}
	n := avImageGetBufferSize(int32(format), width, height, align)
	if n < 0 {
		return 0, NewError(n, "av_image_get_buffer_size")
	}
	return int(n), nil
}

// ImageCopyToBuffer packs the planes of frame into dst.
func ImageCopyToBuffer(dst []byte, frame Frame, align int32) (int, error) {
	if avImageCopyToBuffer == nil {
		return 0, bindings.ErrNotLoaded
	}
	if len(dst) == 0 || frame == nil {
		return 0, NewError(AVERROR_EINVAL, "av_image_copy_to_buffer")
	}
	n := avImageCopyToBuffer(unsafe.Pointer(&dst[0]), int32(len(dst)),
		unsafe.Add(frame, offsetData), unsafe.Add(frame, offsetLinesize),
		GetFrameFormat(frame), GetFrameWidth(frame), GetFrameHeight(frame), align)
	if n < 0 {
		return 0, NewError(n, "av_image_copy_to_buffer")
	}
	return int(n), nil
}

// OptSearchChildren makes option lookups recurse into child objects.
const OptSearchChildren int32 = 1

// OptSetInt sets an integer AVOption on obj.
func OptSetInt(obj unsafe.Pointer, name string, val int64) error {
	if avOptSetInt == nil {
		return bindings.ErrNotLoaded
	}
	if ret := avOptSetInt(obj, name, val, OptSearchChildren); ret < 0 {
		return NewError(ret, "av_opt_set_int "+name)
	}
	return nil
}

// LogSetLevel sets the FFmpeg log level.
func LogSetLevel(level int32) error {
	if avLogSetLevel == nil {
		return bindings.ErrNotLoaded
	}
	avLogSetLevel(level)
	return nil
}

// LogGetLevel returns the FFmpeg log level.
func LogGetLevel() int32 {
	if avLogGetLevel == nil {
		return 0
	}
	return avLogGetLevel()
}

// ChannelLayoutDefault fills the AVChannelLayout at layout with the default
// layout for nbChannels.
func ChannelLayoutDefault(layout unsafe.Pointer, nbChannels int32) error {
	if avChannelLayoutDefault == nil {
		return bindings.ErrNotLoaded
	}
	if layout == nil || nbChannels <= 0 {
		return NewError(AVERROR_EINVAL, "av_channel_layout_default")
	}
	avChannelLayoutDefault(layout, nbChannels)
	return nil
}
