//go:build !ios && !android && (amd64 || arm64)

package avformat

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/obinnaokechukwu/ffms/avcodec"
	"github.com/obinnaokechukwu/ffms/avutil"
	"github.com/obinnaokechukwu/ffms/internal/bindings"
)

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if err := bindings.Load(); err != nil {
		t.Skipf("FFmpeg not available: %v", err)
	}
}

// createTestVideo renders one second of video and audio with the ffmpeg CLI.
func createTestVideo(t *testing.T) string {
	t.Helper()
	skipIfNoFFmpeg(t)

	testFile := filepath.Join(t.TempDir(), "test.mkv")
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "testsrc=duration=1:size=320x240:rate=25",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=1",
		"-c:v", "mpeg4", "-g", "10",
		"-c:a", "pcm_s16le",
		testFile)
	if err := cmd.Run(); err != nil {
		t.Skipf("ffmpeg not available or failed: %v", err)
	}
	if _, err := os.Stat(testFile); err != nil {
		t.Skipf("test file not created: %v", err)
	}
	return testFile
}

func TestOpenInputMissing(t *testing.T) {
	skipIfNoFFmpeg(t)
	var ctx FormatContext
	if err := OpenInput(&ctx, filepath.Join(t.TempDir(), "missing.mkv")); err == nil {
		CloseInput(&ctx)
		t.Fatal("expected error for a missing file")
	}
}

func TestStreams(t *testing.T) {
	testFile := createTestVideo(t)

	var ctx FormatContext
	if err := OpenInput(&ctx, testFile); err != nil {
		t.Fatalf("OpenInput failed: %v", err)
	}
	defer CloseInput(&ctx)
	if err := FindStreamInfo(ctx); err != nil {
		t.Fatalf("FindStreamInfo failed: %v", err)
	}

	if n := GetNumStreams(ctx); n != 2 {
		t.Fatalf("streams = %d, want 2", n)
	}
	if name := GetFormatName(ctx); name == "" {
		t.Error("empty format name")
	}
	video := GetStream(ctx, 0)
	if avcodec.GetParCodecType(GetStreamCodecPar(video)) != avutil.MediaTypeVideo {
		t.Error("stream 0 should be video")
	}
	if tb := GetStreamTimeBase(video); tb.IsZero() {
		t.Error("zero time base")
	}
	if GetStream(ctx, 2) != nil {
		t.Error("out of range stream should be nil")
	}
	if IOSize(GetIOContext(ctx)) <= 0 {
		t.Error("unknown file size")
	}
}

func TestReadAndSeek(t *testing.T) {
	testFile := createTestVideo(t)

	var ctx FormatContext
	if err := OpenInput(&ctx, testFile); err != nil {
		t.Fatalf("OpenInput failed: %v", err)
	}
	defer CloseInput(&ctx)

	pkt := avcodec.PacketAlloc()
	defer avcodec.PacketFree(&pkt)

	count := 0
	for {
		err := ReadFrame(ctx, pkt)
		if avutil.IsEOF(err) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		count++
		avcodec.PacketUnref(pkt)
	}
	if count == 0 {
		t.Fatal("no packets read")
	}

	if err := SeekFrame(ctx, 0, 0, SeekFlagBackward); err != nil {
		t.Fatal(err)
	}
	if err := ReadFrame(ctx, pkt); err != nil {
		t.Fatalf("read after seek: %v", err)
	}
	avcodec.PacketUnref(pkt)
}

func TestVersion(t *testing.T) {
	skipIfNoFFmpeg(t)
	if bindings.AVFormatVersion() == 0 {
		t.Error("AVFormatVersion returned 0")
	}
}
