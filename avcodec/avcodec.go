//go:build !ios && !android && (amd64 || arm64)

// Package avcodec binds the decoding half of libavcodec: codec lookup,
// contexts, packets and the send/receive loop.
package avcodec

import (
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/ffms/avutil"
	"github.com/obinnaokechukwu/ffms/internal/bindings"
)

// Codec is an opaque AVCodec pointer.
type Codec = unsafe.Pointer

// Context is an opaque AVCodecContext pointer.
type Context = unsafe.Pointer

// Packet is an opaque AVPacket pointer.
type Packet = unsafe.Pointer

// Parameters is an opaque AVCodecParameters pointer.
type Parameters = unsafe.Pointer

// InputBufferPadding is AV_INPUT_BUFFER_PADDING_SIZE.
const InputBufferPadding = 64

var (
	avcodecFindDecoder       func(id int32) uintptr
	avcodecFindDecoderByName func(name string) uintptr
	avcodecAllocContext3     func(codec uintptr) uintptr
	avcodecFreeContext       func(ctx *unsafe.Pointer)
	avcodecOpen2             func(ctx, codec uintptr, options *unsafe.Pointer) int32
	avcodecSendPacket        func(ctx, pkt uintptr) int32
	avcodecReceiveFrame      func(ctx, frame uintptr) int32
	avcodecFlushBuffers      func(ctx uintptr)
	avcodecParametersToCtx   func(ctx, par uintptr) int32

	avPacketAlloc func() uintptr
	avPacketFree  func(pkt *unsafe.Pointer)
	avPacketUnref func(pkt uintptr)
	avNewPacket   func(pkt uintptr, size int32) int32

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
	lib := bindings.LibAVCodec()
	if lib == 0 {
		return
	}

	purego.RegisterLibFunc(&avcodecFindDecoder, lib, "avcodec_find_decoder")
	purego.RegisterLibFunc(&avcodecFindDecoderByName, lib, "avcodec_find_decoder_by_name")
	purego.RegisterLibFunc(&avcodecAllocContext3, lib, "avcodec_alloc_context3")
	purego.RegisterLibFunc(&avcodecFreeContext, lib, "avcodec_free_context")
	purego.RegisterLibFunc(&avcodecOpen2, lib, "avcodec_open2")
	purego.RegisterLibFunc(&avcodecSendPacket, lib, "avcodec_send_packet")
	purego.RegisterLibFunc(&avcodecReceiveFrame, lib, "avcodec_receive_frame")
	purego.RegisterLibFunc(&avcodecFlushBuffers, lib, "avcodec_flush_buffers")
	purego.RegisterLibFunc(&avcodecParametersToCtx, lib, "avcodec_parameters_to_context")

	purego.RegisterLibFunc(&avPacketAlloc, lib, "av_packet_alloc")
	purego.RegisterLibFunc(&avPacketFree, lib, "av_packet_free")
	purego.RegisterLibFunc(&avPacketUnref, lib, "av_packet_unref")
	purego.RegisterLibFunc(&avNewPacket, lib, "av_new_packet")

	bindingsRegistered = true
}

// FindDecoder finds a decoder by codec ID.
func FindDecoder(id CodecID) Codec {
	if avcodecFindDecoder == nil {
		return nil
	}
	return unsafe.Pointer(avcodecFindDecoder(int32(id)))
}

// FindDecoderByName finds a decoder by its FFmpeg name.
func FindDecoderByName(name string) Codec {
	if avcodecFindDecoderByName == nil {
		return nil
	}
	codec := unsafe.Pointer(avcodecFindDecoderByName(name))
	runtime.KeepAlive(name)
	return codec
}

// AVCodec offsets.
const (
	offsetCodecName = 0
	offsetCodecType = 16
)

// GetCodecType returns the media type codec handles.
func GetCodecType(codec Codec) avutil.MediaType {
	if codec == nil {
		return avutil.MediaTypeUnknown
	}
	return avutil.MediaType(*(*int32)(unsafe.Add(codec, offsetCodecType)))
}

// GetCodecName returns the short name of codec.
func GetCodecName(codec Codec) string {
	if codec == nil {
		return ""
	}
	return goString(*(*unsafe.Pointer)(unsafe.Add(codec, offsetCodecName)))
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

// AllocContext3 allocates a codec context for codec.
func AllocContext3(codec Codec) Context {
	if avcodecAllocContext3 == nil {
		return nil
	}
	return unsafe.Pointer(avcodecAllocContext3(uintptr(codec)))
}

// FreeContext frees ctx and sets it to nil.
func FreeContext(ctx *Context) {
	if ctx == nil || *ctx == nil || avcodecFreeContext == nil {
		return
	}
	// Stage the pointer in FFmpeg memory; some libffi builds abort when
	// handed a pointer into the Go heap.
	if tmp := avutil.Malloc(unsafe.Sizeof(uintptr(0))); tmp != nil {
		*(*unsafe.Pointer)(tmp) = *ctx
		avcodecFreeContext((*unsafe.Pointer)(tmp))
		avutil.Free(tmp)
		*ctx = nil
		return
	}
	avcodecFreeContext(ctx)
	*ctx = nil
}

// Open2 opens ctx with codec and no options.
func Open2(ctx Context, codec Codec) error {
	if avcodecOpen2 == nil {
		return bindings.ErrNotLoaded
	}
	return avutil.NewError(avcodecOpen2(uintptr(ctx), uintptr(codec), nil), "avcodec_open2")
}

// SendPacket feeds pkt to the decoder. A nil pkt enters draining mode.
func SendPacket(ctx Context, pkt Packet) error {
	if avcodecSendPacket == nil {
		return bindings.ErrNotLoaded
	}
	return avutil.NewError(avcodecSendPacket(uintptr(ctx), uintptr(pkt)), "avcodec_send_packet")
}

// ReceiveFrame pulls a decoded frame. EAGAIN and EOF are reported as errors
// checked with avutil.IsAgain and avutil.IsEOF.
func ReceiveFrame(ctx Context, frame avutil.Frame) error {
	if avcodecReceiveFrame == nil {
		return bindings.ErrNotLoaded
	}
	return avutil.NewError(avcodecReceiveFrame(uintptr(ctx), uintptr(frame)), "avcodec_receive_frame")
}

// FlushBuffers resets the decoder after a seek.
func FlushBuffers(ctx Context) {
	if ctx == nil || avcodecFlushBuffers == nil {
		return
	}
	avcodecFlushBuffers(uintptr(ctx))
}

// ParametersToContext copies stream parameters into ctx.
func ParametersToContext(ctx Context, par Parameters) error {
	if avcodecParametersToCtx == nil {
		return bindings.ErrNotLoaded
	}
	return avutil.NewError(avcodecParametersToCtx(uintptr(ctx), uintptr(par)), "avcodec_parameters_to_context")
}

// AVCodecParameters offsets.
const (
	offsetParCodecType     = 0
	offsetParCodecID       = 4
	offsetParExtradata     = 16
	offsetParExtradataSize = 24
	offsetParWidth         = 56
	offsetParHeight        = 60
	offsetParSampleRate    = 116
)

func parInt32(par Parameters, off uintptr) int32 {
	if par == nil {
		return 0
	}
	return *(*int32)(unsafe.Add(par, off))
}

// GetParWidth returns the declared picture width.
func GetParWidth(par Parameters) int32 { return parInt32(par, offsetParWidth) }

// GetParHeight returns the declared picture height.
func GetParHeight(par Parameters) int32 { return parInt32(par, offsetParHeight) }

// GetParSampleRate returns the declared sample rate.
func GetParSampleRate(par Parameters) int32 { return parInt32(par, offsetParSampleRate) }

// GetParCodecType returns the media type of par.
func GetParCodecType(par Parameters) avutil.MediaType {
	if par == nil {
		return avutil.MediaTypeUnknown
	}
	return avutil.MediaType(*(*int32)(unsafe.Add(par, offsetParCodecType)))
}

// GetParCodecID returns the codec of par.
func GetParCodecID(par Parameters) CodecID {
	if par == nil {
		return CodecIDNone
	}
	return CodecID(*(*int32)(unsafe.Add(par, offsetParCodecID)))
}

// GetParExtradata returns a copy of the codec private data.
func GetParExtradata(par Parameters) []byte {
	if par == nil {
		return nil
	}
	ptr := *(*unsafe.Pointer)(unsafe.Add(par, offsetParExtradata))
	size := *(*int32)(unsafe.Add(par, offsetParExtradataSize))
	if ptr == nil || size <= 0 {
		return nil
	}
	return append([]byte(nil), unsafe.Slice((*byte)(ptr), size)...)
}

// PacketAlloc allocates an empty packet.
func PacketAlloc() Packet {
	if avPacketAlloc == nil {
		return nil
	}
	return unsafe.Pointer(avPacketAlloc())
}

// PacketFree frees pkt and sets it to nil.
func PacketFree(pkt *Packet) {
	if pkt == nil || *pkt == nil || avPacketFree == nil {
		return
	}
	avPacketFree(pkt)
	*pkt = nil
}

// PacketUnref drops the payload of pkt.
func PacketUnref(pkt Packet) {
	if pkt == nil || avPacketUnref == nil {
		return
	}
	avPacketUnref(uintptr(pkt))
}

// PacketFromBytes replaces the payload of pkt with a padded copy of data.
func PacketFromBytes(pkt Packet, data []byte) error {
	if avNewPacket == nil {
		return bindings.ErrNotLoaded
	}
	PacketUnref(pkt)
	if ret := avNewPacket(uintptr(pkt), int32(len(data))); ret < 0 {
		return avutil.NewError(ret, "av_new_packet")
	}
	if len(data) > 0 {
		copy(unsafe.Slice((*byte)(GetPacketData(pkt)), len(data)), data)
	}
	return nil
}

// AVPacket offsets for FFmpeg 6.x/7.x.
const (
	offsetPacketPts         = 8
	offsetPacketDts         = 16
	offsetPacketData        = 24
	offsetPacketSize        = 32
	offsetPacketStreamIndex = 36
	offsetPacketFlags       = 40
	offsetPacketPos         = 72
)

// PacketFlagKey is AV_PKT_FLAG_KEY.
const PacketFlagKey = 0x0001

// GetPacketPTS returns the presentation timestamp.
func GetPacketPTS(pkt Packet) int64 {
	if pkt == nil {
		return avutil.NoPTSValue
	}
	return *(*int64)(unsafe.Add(pkt, offsetPacketPts))
}

// SetPacketPTS sets the presentation timestamp.
func SetPacketPTS(pkt Packet, pts int64) {
	if pkt != nil {
		*(*int64)(unsafe.Add(pkt, offsetPacketPts)) = pts
	}
}

// GetPacketDTS returns the decoding timestamp.
func GetPacketDTS(pkt Packet) int64 {
	if pkt == nil {
		return avutil.NoPTSValue
	}
	return *(*int64)(unsafe.Add(pkt, offsetPacketDts))
}

// SetPacketDTS sets the decoding timestamp.
func SetPacketDTS(pkt Packet, dts int64) {
	if pkt != nil {
		*(*int64)(unsafe.Add(pkt, offsetPacketDts)) = dts
	}
}

// GetPacketData returns the payload pointer.
func GetPacketData(pkt Packet) unsafe.Pointer {
	if pkt == nil {
		return nil
	}
	return *(*unsafe.Pointer)(unsafe.Add(pkt, offsetPacketData))
}

// GetPacketSize returns the payload size.
func GetPacketSize(pkt Packet) int32 {
	if pkt == nil {
		return 0
	}
	return *(*int32)(unsafe.Add(pkt, offsetPacketSize))
}

// GetPacketBytes returns a copy of the payload.
func GetPacketBytes(pkt Packet) []byte {
	data, size := GetPacketData(pkt), GetPacketSize(pkt)
	if data == nil || size <= 0 {
		return nil
	}
	return append([]byte(nil), unsafe.Slice((*byte)(data), size)...)
}

// GetPacketStreamIndex returns the stream the packet belongs to.
func GetPacketStreamIndex(pkt Packet) int32 {
	if pkt == nil {
		return -1
	}
	return *(*int32)(unsafe.Add(pkt, offsetPacketStreamIndex))
}

// GetPacketFlags returns the AV_PKT_FLAG bits.
func GetPacketFlags(pkt Packet) int32 {
	if pkt == nil {
		return 0
	}
	return *(*int32)(unsafe.Add(pkt, offsetPacketFlags))
}

// SetPacketFlags sets the AV_PKT_FLAG bits.
func SetPacketFlags(pkt Packet, flags int32) {
	if pkt != nil {
		*(*int32)(unsafe.Add(pkt, offsetPacketFlags)) = flags
	}
}

// GetPacketPos returns the byte position in the file, or -1.
func GetPacketPos(pkt Packet) int64 {
	if pkt == nil {
		return -1
	}
	return *(*int64)(unsafe.Add(pkt, offsetPacketPos))
}

// AVCodecContext offsets for FFmpeg 6.x (avcodec 60).
const (
	offsetCtxExtradata     = 88
	offsetCtxExtradataSize = 96
	offsetCtxWidth         = 116
	offsetCtxHeight        = 120
	offsetCtxPixFmt        = 136
	offsetCtxSampleRate    = 352
	offsetCtxSampleFmt     = 360
	offsetCtxChLayout      = 912
)

func ctxInt32(ctx Context, off uintptr) int32 {
	if ctx == nil {
		return 0
	}
	return *(*int32)(unsafe.Add(ctx, off))
}

func setCtxInt32(ctx Context, off uintptr, v int32) {
	if ctx != nil {
		*(*int32)(unsafe.Add(ctx, off)) = v
	}
}

// GetCtxWidth returns the coded picture width.
func GetCtxWidth(ctx Context) int32 { return ctxInt32(ctx, offsetCtxWidth) }

// GetCtxHeight returns the coded picture height.
func GetCtxHeight(ctx Context) int32 { return ctxInt32(ctx, offsetCtxHeight) }

// SetCtxDimensions sets the picture size for decoders that cannot parse it.
func SetCtxDimensions(ctx Context, width, height int32) {
	setCtxInt32(ctx, offsetCtxWidth, width)
	setCtxInt32(ctx, offsetCtxHeight, height)
}

// GetCtxPixFmt returns the decoder pixel format.
func GetCtxPixFmt(ctx Context) int32 { return ctxInt32(ctx, offsetCtxPixFmt) }

// GetCtxSampleRate returns the audio sample rate.
func GetCtxSampleRate(ctx Context) int32 { return ctxInt32(ctx, offsetCtxSampleRate) }

// SetCtxSampleRate sets the audio sample rate.
func SetCtxSampleRate(ctx Context, rate int32) { setCtxInt32(ctx, offsetCtxSampleRate, rate) }

// GetCtxSampleFmt returns the decoder sample format.
func GetCtxSampleFmt(ctx Context) avutil.SampleFormat {
	if ctx == nil {
		return avutil.SampleFormatNone
	}
	return avutil.SampleFormat(ctxInt32(ctx, offsetCtxSampleFmt))
}

// GetCtxChannels returns ch_layout.nb_channels.
func GetCtxChannels(ctx Context) int32 { return ctxInt32(ctx, offsetCtxChLayout+4) }

// SetCtxChannels installs the default layout for n channels.
func SetCtxChannels(ctx Context, n int32) error {
	if ctx == nil {
		return avutil.NewError(avutil.AVERROR_EINVAL, "set channels")
	}
	return avutil.ChannelLayoutDefault(unsafe.Add(ctx, offsetCtxChLayout), n)
}

// SetCtxExtradata copies codec private data into ctx. The decoder frees it.
func SetCtxExtradata(ctx Context, data []byte) error {
	if ctx == nil {
		return avutil.NewError(avutil.AVERROR_EINVAL, "set extradata")
	}
	if len(data) == 0 {
		return nil
	}
	buf := avutil.Malloc(uintptr(len(data) + InputBufferPadding))
	if buf == nil {
		return avutil.NewError(avutil.AVERROR_ENOMEM, "set extradata")
	}
	dst := unsafe.Slice((*byte)(buf), len(data)+InputBufferPadding)
	copy(dst, data)
	clear(dst[len(data):])
	*(*unsafe.Pointer)(unsafe.Add(ctx, offsetCtxExtradata)) = buf
	setCtxInt32(ctx, offsetCtxExtradataSize, int32(len(data)))
	return nil
}

// SetCtxThreads sets the decoder thread count.
func SetCtxThreads(ctx Context, n int) error {
	return avutil.OptSetInt(ctx, "threads", int64(n))
}
