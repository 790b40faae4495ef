package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/fatih/color"
	"github.com/obinnaokechukwu/ffms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	old := configDir
	configDir = t.TempDir()
	t.Cleanup(func() { configDir = old })
	color.NoColor = true
	return configDir
}

func parse(t *testing.T, args ...string) (*config, error) {
	t.Helper()
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags(args))
	return loadConfig(newViper(), cmd)
}

func TestConfigDefaults(t *testing.T) {
	isolate(t)
	cfg, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, &config{Errors: "ignore", Backend: "auto"}, cfg)
}

func TestConfigFlags(t *testing.T) {
	isolate(t)
	cfg, err := parse(t, "-f", "-t", "-1", "-d", "6", "-a", "out", "-e", "stop", "-c", "-k", "-b", "matroska", "--cache", "-v")
	require.NoError(t, err)
	assert.Equal(t, &config{
		Force:     true,
		TrackMask: -1,
		DumpMask:  6,
		AudioName: "out",
		Errors:    "stop",
		Timecodes: true,
		Keyframes: true,
		Backend:   "matroska",
		Cache:     true,
		Verbose:   true,
	}, cfg)
}

func TestConfigFileAndEnvironment(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("errors: clear\nkeyframes: true\ntrack-mask: 1\n"), 0o644))
	t.Setenv("FFMS_TRACK_MASK", "3")

	cfg, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, "clear", cfg.Errors)
	assert.True(t, cfg.Keyframes)
	assert.Equal(t, int64(3), cfg.TrackMask, "environment wins over the config file")

	cfg, err = parse(t, "-t", "5")
	require.NoError(t, err)
	assert.Equal(t, int64(5), cfg.TrackMask, "flags win over the environment")
}

func TestConfigRejectsUnknownBackend(t *testing.T) {
	isolate(t)
	_, err := parse(t, "-b", "ogg")
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	p, err := outputPath(&config{}, []string{"in.mkv", "out.idx"})
	require.NoError(t, err)
	assert.Equal(t, "out.idx", p)

	p, err = outputPath(&config{}, []string{filepath.Join("media", "in.mkv")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("media", "in.mkv.ffindex"), p)

	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	p, err = outputPath(&config{Cache: true}, []string{filepath.Join("media", "in.mkv")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, "ffms", "in.mkv.ffindex"), p)
	assert.DirExists(t, filepath.Join(cache, "ffms"))
}

func TestRefusesToOverwrite(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mkv")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(input+".ffindex", []byte("old"), 0o644))

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{input})
	err := cmd.Execute()
	assert.Equal(t, errIndexExists, err)
	assert.Contains(t, out.String(), "use -f if you are sure")

	old, err := os.ReadFile(input + ".ffindex")
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
}

func TestInfo(t *testing.T) {
	isolate(t)
	video := ffms.NewTrackIndex(ffms.TrackTypeVideo, ffms.TimeBase{Num: 1, Den: 1})
	for i := 0; i < 3; i++ {
		video.Records = append(video.Records, ffms.FrameRecord{DTS: int64(i * 40), FilePos: int64(i * 100), Size: 10, KeyFrame: i == 0})
	}
	audio := ffms.NewTrackIndex(ffms.TrackTypeAudio, ffms.TimeBase{Num: 1, Den: 1})
	for i := 0; i < 2; i++ {
		audio.Records = append(audio.Records, ffms.FrameRecord{DTS: int64(i * 21), SampleStart: int64(i * 1024), HasSampleStart: true, SampleCount: 1024, FilePos: int64(50 + i*100), Size: 4, KeyFrame: true})
	}
	idx := &ffms.MediaIndex{Decoder: ffms.DecoderMatroska, FileSize: 1234, Tracks: []*ffms.TrackIndex{video, audio}}
	path := filepath.Join(t.TempDir(), "in.ffindex")
	require.NoError(t, idx.Write(path))

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"info", path})
	require.NoError(t, cmd.Execute())

	s := out.String()
	assert.Contains(t, s, "backend:   matroska")
	assert.Contains(t, s, "file size: 1234")
	assert.Contains(t, s, "tracks:    2")
	assert.Contains(t, s, "frames:    3")
	assert.Contains(t, s, "keyframes: 1")
	assert.Contains(t, s, "duration:  80.00 ms")
	assert.Contains(t, s, "samples:   2048")
}

func TestInfoRejectsOtherFiles(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(path, []byte("not an index file"), 0o644))
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"info", path})
	assert.Error(t, cmd.Execute())
}

func TestProgressWithoutSpinner(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	p := newProgress(&out, false)
	assert.True(t, p.update(50, 100))
	assert.Equal(t, int64(50), p.percent)
	assert.True(t, p.update(1, 0))
	p.done("Indexing complete")
	assert.Equal(t, "  ✓ Indexing complete\n", out.String())
}
