//go:build !ios && !android && (amd64 || arm64)

// Package platform names shared libraries for the host operating system.
package platform

import (
	"fmt"
	"runtime"
)

// LibraryExtension is the shared library suffix of the host.
var LibraryExtension string

// LibraryPrefix is the shared library prefix of the host.
var LibraryPrefix string

func init() {
	switch runtime.GOOS {
	case "darwin":
		LibraryExtension, LibraryPrefix = ".dylib", "lib"
	case "windows":
		LibraryExtension, LibraryPrefix = ".dll", ""
	default:
		LibraryExtension, LibraryPrefix = ".so", "lib"
	}
}

// FormatLibraryName returns the file name of library name at major version
// version, or the unversioned name when version is 0.
//
//   - Linux:   FormatLibraryName("avcodec", 60) -> "libavcodec.so.60"
//   - macOS:   FormatLibraryName("avcodec", 60) -> "libavcodec.60.dylib"
//   - Windows: FormatLibraryName("avcodec", 60) -> "avcodec-60.dll"
func FormatLibraryName(name string, version int) string {
	if version <= 0 {
		return LibraryPrefix + name + LibraryExtension
	}
	switch runtime.GOOS {
	case "darwin":
		return fmt.Sprintf("%s%s.%d%s", LibraryPrefix, name, version, LibraryExtension)
	case "windows":
		return fmt.Sprintf("%s%s-%d%s", LibraryPrefix, name, version, LibraryExtension)
	default:
		return fmt.Sprintf("%s%s%s.%d", LibraryPrefix, name, LibraryExtension, version)
	}
}
