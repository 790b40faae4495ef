//go:build !ios && !android && (amd64 || arm64)

// Package bindings loads the FFmpeg shared libraries used by the lavf and
// matroska backends through purego.
package bindings

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/ffms/internal/platform"
	"github.com/pkg/errors"
)

// ErrNotLoaded is returned when an FFmpeg function is used before Load.
var ErrNotLoaded = errors.New("ffms: FFmpeg libraries not loaded")

// ErrLibraryNotFound is returned when a required library cannot be found.
var ErrLibraryNotFound = errors.New("ffms: FFmpeg library not found")

// Supported major versions, newest first.
var (
	AVUtilVersions   = []int{59, 58, 57, 56}
	AVCodecVersions  = []int{61, 60, 59, 58}
	AVFormatVersions = []int{61, 60, 59, 58}
)

var (
	libAVUtil   uintptr
	libAVCodec  uintptr
	libAVFormat uintptr

	loaded   bool
	loadOnce sync.Once
	loadErr  error

	avutilVersion   func() uint32
	avcodecVersion  func() uint32
	avformatVersion func() uint32
)

// IsLoaded reports whether Load succeeded.
func IsLoaded() bool {
	return loaded
}

// Load opens libavutil, libavcodec and libavformat. It is safe to call more
// than once; only the first call does any work.
func Load() error {
	loadOnce.Do(func() {
		loadErr = doLoad()
		if loadErr == nil {
			loaded = true
		}
	})
	return loadErr
}

func doLoad() error {
	// Dependency order: avcodec and avformat resolve symbols from avutil.
	var err error
	if libAVUtil, err = loadLibrary("avutil", AVUtilVersions); err != nil {
		return errors.Wrap(err, "loading libavutil")
	}
	if libAVCodec, err = loadLibrary("avcodec", AVCodecVersions); err != nil {
		return errors.Wrap(err, "loading libavcodec")
	}
	if libAVFormat, err = loadLibrary("avformat", AVFormatVersions); err != nil {
		return errors.Wrap(err, "loading libavformat")
	}

	purego.RegisterLibFunc(&avutilVersion, libAVUtil, "avutil_version")
	purego.RegisterLibFunc(&avcodecVersion, libAVCodec, "avcodec_version")
	purego.RegisterLibFunc(&avformatVersion, libAVFormat, "avformat_version")
	return nil
}

// loadLibrary tries the versioned names on every search path, then lets the
// dynamic loader look.
func loadLibrary(name string, versions []int) (uintptr, error) {
	for _, dir := range LibrarySearchPaths() {
		for _, ver := range versions {
			if lib, err := tryOpen(filepath.Join(dir, platform.FormatLibraryName(name, ver))); err == nil {
				return lib, nil
			}
		}
		if lib, err := tryOpen(filepath.Join(dir, platform.FormatLibraryName(name, 0))); err == nil {
			return lib, nil
		}
	}
	for _, ver := range versions {
		if lib, err := tryOpen(platform.FormatLibraryName(name, ver)); err == nil {
			return lib, nil
		}
	}
	if lib, err := tryOpen(platform.FormatLibraryName(name, 0)); err == nil {
		return lib, nil
	}
	return 0, errors.Wrap(ErrLibraryNotFound, name)
}

// tryOpen needs RTLD_GLOBAL: the FFmpeg libraries reference each other.
func tryOpen(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

// FindLibrary returns the path of the first matching library file.
func FindLibrary(name string, versions []int) (string, error) {
	for _, dir := range LibrarySearchPaths() {
		for _, ver := range versions {
			p := filepath.Join(dir, platform.FormatLibraryName(name, ver))
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
		p := filepath.Join(dir, platform.FormatLibraryName(name, 0))
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.Wrap(ErrLibraryNotFound, name)
}

// LibrarySearchPaths returns the directories searched for FFmpeg, with the
// loader environment variable first.
func LibrarySearchPaths() []string {
	var paths []string
	switch runtime.GOOS {
	case "linux", "freebsd":
		if ld := os.Getenv("LD_LIBRARY_PATH"); ld != "" {
			paths = append(paths, filepath.SplitList(ld)...)
		}
		paths = append(paths,
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib/aarch64-linux-gnu",
			"/usr/local/lib",
			"/usr/lib",
			"/lib/x86_64-linux-gnu",
			"/lib",
		)
	case "darwin":
		if dyld := os.Getenv("DYLD_LIBRARY_PATH"); dyld != "" {
			paths = append(paths, filepath.SplitList(dyld)...)
		}
		paths = append(paths,
			"/opt/homebrew/lib",
			"/usr/local/lib",
			"/opt/homebrew/opt/ffmpeg/lib",
			"/usr/local/opt/ffmpeg/lib",
		)
	case "windows":
		if p := os.Getenv("PATH"); p != "" {
			paths = append(paths, filepath.SplitList(p)...)
		}
		if exe, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Dir(exe))
		}
		paths = append(paths, `C:\ffmpeg\bin`, `C:\Program Files\ffmpeg\bin`)
	}
	return paths
}

// AVUtilVersion returns the libavutil version, or 0 when not loaded.
func AVUtilVersion() uint32 {
	if !loaded {
		return 0
	}
	return avutilVersion()
}

// AVCodecVersion returns the libavcodec version, or 0 when not loaded.
func AVCodecVersion() uint32 {
	if !loaded {
		return 0
	}
	return avcodecVersion()
}

// AVFormatVersion returns the libavformat version, or 0 when not loaded.
func AVFormatVersion() uint32 {
	if !loaded {
		return 0
	}
	return avformatVersion()
}

// LibAVUtil returns the libavutil handle.
func LibAVUtil() uintptr { return libAVUtil }

// LibAVCodec returns the libavcodec handle.
func LibAVCodec() uintptr { return libAVCodec }

// LibAVFormat returns the libavformat handle.
func LibAVFormat() uintptr { return libAVFormat }

// VersionString formats a packed FFmpeg version as major.minor.micro.
func VersionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>16, v>>8&0xff, v&0xff)
}
