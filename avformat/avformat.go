//go:build !ios && !android && (amd64 || arm64)

// Package avformat binds the demuxing half of libavformat.
package avformat

import (
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/ffms/avcodec"
	"github.com/obinnaokechukwu/ffms/avutil"
	"github.com/obinnaokechukwu/ffms/internal/bindings"
)

// FormatContext is an opaque AVFormatContext pointer.
type FormatContext = unsafe.Pointer

// Stream is an opaque AVStream pointer.
type Stream = unsafe.Pointer

// IOContext is an opaque AVIOContext pointer.
type IOContext = unsafe.Pointer

var (
	avformatOpenInput      func(ctx *unsafe.Pointer, url string, fmt unsafe.Pointer, options unsafe.Pointer) int32
	avformatCloseInput     func(ctx *unsafe.Pointer)
	avformatFindStreamInfo func(ctx unsafe.Pointer, options unsafe.Pointer) int32
	avReadFrame            func(ctx, pkt unsafe.Pointer) int32
	avSeekFrame            func(ctx unsafe.Pointer, streamIndex int32, timestamp int64, flags int32) int32
	avioSize               func(pb unsafe.Pointer) int64
	avioSeek               func(pb unsafe.Pointer, offset int64, whence int32) int64

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
		return
	}
	lib := bindings.LibAVFormat()
	if lib == 0 {
		return
	}

	purego.RegisterLibFunc(&avformatOpenInput, lib, "avformat_open_input")
	purego.RegisterLibFunc(&avformatCloseInput, lib, "avformat_close_input")
	purego.RegisterLibFunc(&avformatFindStreamInfo, lib, "avformat_find_stream_info")
	purego.RegisterLibFunc(&avReadFrame, lib, "av_read_frame")
	purego.RegisterLibFunc(&avSeekFrame, lib, "av_seek_frame")
	purego.RegisterLibFunc(&avioSize, lib, "avio_size")
	purego.RegisterLibFunc(&avioSeek, lib, "avio_seek")

	bindingsRegistered = true
}

// OpenInput opens url with format probing.
func OpenInput(ctx *FormatContext, url string) error {
	if avformatOpenInput == nil {
		return bindings.ErrNotLoaded
	}
	ret := avformatOpenInput(ctx, url, nil, nil)
	runtime.KeepAlive(url)
	return avutil.NewError(ret, "avformat_open_input")
}

// CloseInput closes the input and sets ctx to nil.
func CloseInput(ctx *FormatContext) {
	if ctx == nil || *ctx == nil || avformatCloseInput == nil {
		return
	}
	avformatCloseInput(ctx)
	*ctx = nil
}

// FindStreamInfo reads ahead to fill in codec parameters.
func FindStreamInfo(ctx FormatContext) error {
	if avformatFindStreamInfo == nil {
		return bindings.ErrNotLoaded
	}
	return avutil.NewError(avformatFindStreamInfo(ctx, nil), "avformat_find_stream_info")
}

// ReadFrame reads the next packet of any stream.
func ReadFrame(ctx FormatContext, pkt avcodec.Packet) error {
	if avReadFrame == nil {
		return bindings.ErrNotLoaded
	}
	return avutil.NewError(avReadFrame(ctx, pkt), "av_read_frame")
}

// Seek flags for SeekFrame.
const (
	SeekFlagBackward = 1
	SeekFlagByte     = 2
	SeekFlagAny      = 4
	SeekFlagFrame    = 8
)

// SeekFrame seeks streamIndex to timestamp in that stream's time base.
func SeekFrame(ctx FormatContext, streamIndex int32, timestamp int64, flags int32) error {
	if avSeekFrame == nil {
		return bindings.ErrNotLoaded
	}
	return avutil.NewError(avSeekFrame(ctx, streamIndex, timestamp, flags), "av_seek_frame")
}

// AVFormatContext offsets for FFmpeg 6.x (avformat 60).
const (
	offsetIformat    = 8
	offsetIOContext  = 32
	offsetNumStreams = 44
	offsetStreams    = 48
	offsetDuration   = 72
)

// GetNumStreams returns nb_streams.
func GetNumStreams(ctx FormatContext) int {
	if ctx == nil {
		return 0
	}
	return int(*(*uint32)(unsafe.Add(ctx, offsetNumStreams)))
}

// GetStream returns stream index, or nil when out of range.
func GetStream(ctx FormatContext, index int) Stream {
	if ctx == nil || index < 0 || index >= GetNumStreams(ctx) {
		return nil
	}
	streams := *(*unsafe.Pointer)(unsafe.Add(ctx, offsetStreams))
	if streams == nil {
		return nil
	}
	return *(*unsafe.Pointer)(unsafe.Add(streams, uintptr(index)*unsafe.Sizeof(uintptr(0))))
}

// GetDuration returns the duration in AV_TIME_BASE units.
func GetDuration(ctx FormatContext) int64 {
	if ctx == nil {
		return 0
	}
	return *(*int64)(unsafe.Add(ctx, offsetDuration))
}

// GetFormatName returns the short name of the detected input format.
func GetFormatName(ctx FormatContext) string {
	if ctx == nil {
		return ""
	}
	iformat := *(*unsafe.Pointer)(unsafe.Add(ctx, offsetIformat))
	if iformat == nil {
		return ""
	}
	return goString(*(*unsafe.Pointer)(iformat))
}

func goString(ptr unsafe.Pointer) string {
	if ptr == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(ptr, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(ptr), n))
}

// GetIOContext returns the byte stream of ctx.
func GetIOContext(ctx FormatContext) IOContext {
	if ctx == nil {
		return nil
	}
	return *(*unsafe.Pointer)(unsafe.Add(ctx, offsetIOContext))
}

const seekCur = 1

// IOSize returns the size of the byte stream, or -1 when unknown.
func IOSize(pb IOContext) int64 {
	if pb == nil || avioSize == nil {
		return -1
	}
	return avioSize(pb)
}

// IOPosition returns the current byte offset of the stream.
func IOPosition(pb IOContext) int64 {
	if pb == nil || avioSeek == nil {
		return -1
	}
	return avioSeek(pb, 0, seekCur)
}

// AVStream offsets for FFmpeg 6.x.
const (
	offsetStreamIndex    = 8
	offsetStreamCodecPar = 16
	offsetStreamTimeBase = 32
)

// GetStreamIndex returns the index of stream within its context.
func GetStreamIndex(stream Stream) int32 {
	if stream == nil {
		return -1
	}
	return *(*int32)(unsafe.Add(stream, offsetStreamIndex))
}

// GetStreamCodecPar returns the codec parameters of stream.
func GetStreamCodecPar(stream Stream) avcodec.Parameters {
	if stream == nil {
		return nil
	}
	return *(*unsafe.Pointer)(unsafe.Add(stream, offsetStreamCodecPar))
}

// GetStreamTimeBase returns the time base of stream.
func GetStreamTimeBase(stream Stream) avutil.Rational {
	if stream == nil {
		return avutil.Rational{}
	}
	return avutil.ReadRational(unsafe.Add(stream, offsetStreamTimeBase))
}
