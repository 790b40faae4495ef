// Package ffms indexes audio/video containers and gives frame-accurate video
// and sample-accurate audio access on top of the index.
//
// An Indexer reads a file once and produces a MediaIndex: one TrackIndex per
// stream holding the decode timestamp, byte position and key-frame flag of
// every packet, plus cumulative sample positions for decoded audio tracks.
// The index can be written to disk and read back with ReadIndex.
//
// A SourceContext opens the file again through the backend that built the
// index. VideoSource returns frames by number, seeking to key frames as its
// SeekMode allows; AudioSource returns arbitrary sample ranges, keeping
// decoded blocks in a SampleCache.
//
// Demuxing and decoding are supplied by Backend implementations collected in
// a DecoderRegistry. The lavf package wraps FFmpeg, the matroska package
// parses Matroska/WebM natively and decodes through FFmpeg.
package ffms

// Version is the library version.
const Version = "0.1.0"
