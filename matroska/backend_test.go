//go:build !ios && !android && (amd64 || arm64)

package matroska

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/gabriel-vasile/mimetype"
	"github.com/obinnaokechukwu/ffms"
	"github.com/obinnaokechukwu/ffms/internal/bindings"
	"github.com/obinnaokechukwu/ffms/lavf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestVideo(t *testing.T) string {
	t.Helper()
	if err := bindings.Load(); err != nil {
		t.Skipf("FFmpeg not available: %v", err)
	}
	testFile := filepath.Join(t.TempDir(), "test.mkv")
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "testsrc=duration=2:size=160x120:rate=25",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=2:sample_rate=48000",
		"-c:v", "mpeg4", "-g", "12", "-bf", "0",
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

func TestProbe(t *testing.T) {
	b := New()
	assert.True(t, b.Probe("clip.MKV", nil))
	assert.True(t, b.Probe("clip.webm", nil))
	assert.False(t, b.Probe("clip.mp4", nil))
	assert.True(t, b.Probe("clip.bin", mimetype.Lookup("video/x-matroska")))
	assert.False(t, b.Probe("clip.bin", mimetype.Lookup("video/mp4")))
	assert.Equal(t, ffms.DecoderMatroska, b.ID())
	assert.Equal(t, ffms.Capabilities{ResyncAfterSeek: true}, b.Capabilities())
}

func TestIndexMatchesLavf(t *testing.T) {
	path := createTestVideo(t)
	ctx := context.Background()

	reg := ffms.NewDecoderRegistry(New(), lavf.New())
	idx, err := ffms.NewIndexer(reg, ffms.WithAudioTracks(-1)).Run(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, ffms.DecoderMatroska, idx.Decoder)

	ref, err := ffms.NewIndexer(ffms.NewDecoderRegistry(lavf.New()), ffms.WithAudioTracks(-1)).Run(ctx, path)
	require.NoError(t, err)

	require.Equal(t, ref.NumTracks(), idx.NumTracks())
	assert.Equal(t, 50, idx.Tracks[0].Len())
	assert.Equal(t, ref.Tracks[0].KeyFrames(), idx.Tracks[0].KeyFrames())
	assert.Equal(t, int64(96000), idx.Tracks[1].NumSamples())
}

func TestDecodeFromIndex(t *testing.T) {
	path := createTestVideo(t)
	reg := ffms.NewDecoderRegistry(New())
	idx, err := ffms.NewIndexer(reg, ffms.WithAudioTracks(-1)).Run(context.Background(), path)
	require.NoError(t, err)

	sc, err := ffms.OpenSourceContext(reg, path, idx)
	require.NoError(t, err)
	defer sc.Close()

	v, err := ffms.NewVideoSource(sc, 0)
	require.NoError(t, err)
	defer v.Close()
	for _, n := range []int{30, 5, 49, 12} {
		f, err := v.Frame(n)
		require.NoError(t, err)
		assert.Equal(t, n, f.Number)
		assert.Len(t, f.Data, 160*120*3/2)
	}

	a, err := ffms.NewAudioSource(sc, 1)
	require.NoError(t, err)
	defer a.Close()
	whole := make([]byte, a.NumSamples()*2)
	require.NoError(t, a.GetAudio(whole, 0, a.NumSamples()))
	part := make([]byte, 1000*2)
	require.NoError(t, a.GetAudio(part, 70000, 1000))
	assert.Equal(t, whole[70000*2:71000*2], part)
}
