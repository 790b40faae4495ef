//go:build !ios && !android && (amd64 || arm64)

package avcodec

import (
	"os"
	"testing"

	"github.com/obinnaokechukwu/ffms/avutil"
	"github.com/obinnaokechukwu/ffms/internal/bindings"
)

var ffmpegAvailable bool

func TestMain(m *testing.M) {
	if err := bindings.Load(); err == nil {
		ffmpegAvailable = true
	}
	os.Exit(m.Run())
}

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if !ffmpegAvailable {
		t.Skip("FFmpeg not available")
	}
}

func TestFindDecoder(t *testing.T) {
	skipIfNoFFmpeg(t)
	codec := FindDecoder(CodecIDH264)
	if codec == nil {
		t.Fatal("FindDecoder(H264) returned nil")
	}
	if name := GetCodecName(codec); name != "h264" {
		t.Errorf("GetCodecName = %q, want h264", name)
	}
	if FindDecoderByName("pcm_s16le") == nil {
		t.Error("pcm_s16le decoder missing")
	}
	if FindDecoderByName("no-such-decoder") != nil {
		t.Error("unknown decoder name should return nil")
	}
}

func TestDecoderContext(t *testing.T) {
	skipIfNoFFmpeg(t)
	codec := FindDecoder(CodecIDPCMS16LE)
	ctx := AllocContext3(codec)
	if ctx == nil {
		t.Fatal("AllocContext3 returned nil")
	}
	defer FreeContext(&ctx)

	SetCtxSampleRate(ctx, 44100)
	if err := SetCtxChannels(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := SetCtxExtradata(ctx, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := Open2(ctx, codec); err != nil {
		t.Fatal(err)
	}
	if GetCtxSampleRate(ctx) != 44100 || GetCtxChannels(ctx) != 2 {
		t.Errorf("got %d Hz %d ch", GetCtxSampleRate(ctx), GetCtxChannels(ctx))
	}
	if GetCtxSampleFmt(ctx) != avutil.SampleFormatS16 {
		t.Errorf("sample format = %d", GetCtxSampleFmt(ctx))
	}

	pkt := PacketAlloc()
	defer PacketFree(&pkt)
	if err := PacketFromBytes(pkt, []byte{0, 1, 0, 2, 0, 3, 0, 4}); err != nil {
		t.Fatal(err)
	}
	if got := GetPacketBytes(pkt); len(got) != 8 || got[7] != 4 {
		t.Errorf("packet payload = %v", got)
	}
	if err := SendPacket(ctx, pkt); err != nil {
		t.Fatal(err)
	}
	frame := avutil.FrameAlloc()
	defer avutil.FrameFree(&frame)
	if err := ReceiveFrame(ctx, frame); err != nil {
		t.Fatal(err)
	}
	if avutil.GetFrameNbSamples(frame) != 2 {
		t.Errorf("nb_samples = %d, want 2", avutil.GetFrameNbSamples(frame))
	}
	if err := ReceiveFrame(ctx, frame); !avutil.IsAgain(err) {
		t.Errorf("expected EAGAIN, got %v", err)
	}
}

func TestCodecID(t *testing.T) {
	if CodecIDH264.String() != "h264" || CodecID(-5).String() != "unknown" {
		t.Error("String mismatch")
	}
	if !CodecIDVP9.IsVideo() || CodecIDVP9.IsAudio() {
		t.Error("VP9 is video")
	}
	if !CodecIDOPUS.IsAudio() || CodecIDOPUS.IsVideo() {
		t.Error("Opus is audio")
	}
}

func TestNilSafety(t *testing.T) {
	var ctx Context
	FreeContext(&ctx)
	FlushBuffers(nil)
	if GetPacketStreamIndex(nil) != -1 || GetPacketBytes(nil) != nil {
		t.Error("nil packet getters")
	}
	if GetParCodecType(nil) != avutil.MediaTypeUnknown {
		t.Error("nil parameters")
	}
}
