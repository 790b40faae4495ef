//go:build !ios && !android && (amd64 || arm64)

package avcodec

// CodecID is an AVCodecID value.
type CodecID int32

const (
	CodecIDNone       CodecID = 0
	CodecIDMPEG1VIDEO CodecID = 1
	CodecIDMPEG2VIDEO CodecID = 2
	CodecIDMJPEG      CodecID = 7
	CodecIDMPEG4      CodecID = 12
	CodecIDRAWVIDEO   CodecID = 13
	CodecIDH264       CodecID = 27
	CodecIDTHEORA     CodecID = 30
	CodecIDVP8        CodecID = 139
	CodecIDVP9        CodecID = 167
	CodecIDHEVC       CodecID = 173
	CodecIDAV1        CodecID = 226

	CodecIDPCMS16LE CodecID = 65536
	CodecIDPCMS16BE CodecID = 65537
	CodecIDPCMU8    CodecID = 65541
	CodecIDPCMF32LE CodecID = 65557

	CodecIDMP2    CodecID = 86016
	CodecIDMP3    CodecID = 86017
	CodecIDAAC    CodecID = 86018
	CodecIDAC3    CodecID = 86019
	CodecIDDTS    CodecID = 86020
	CodecIDVORBIS CodecID = 86021
	CodecIDFLAC   CodecID = 86028
	CodecIDALAC   CodecID = 86032
	CodecIDEAC3   CodecID = 86056
	CodecIDOPUS   CodecID = 86076

	codecIDFirstSubtitle CodecID = 94208
)

var codecNames = map[CodecID]string{
	CodecIDNone:       "none",
	CodecIDMPEG1VIDEO: "mpeg1video",
	CodecIDMPEG2VIDEO: "mpeg2video",
	CodecIDMJPEG:      "mjpeg",
	CodecIDMPEG4:      "mpeg4",
	CodecIDRAWVIDEO:   "rawvideo",
	CodecIDH264:       "h264",
	CodecIDTHEORA:     "theora",
	CodecIDVP8:        "vp8",
	CodecIDVP9:        "vp9",
	CodecIDHEVC:       "hevc",
	CodecIDAV1:        "av1",
	CodecIDPCMS16LE:   "pcm_s16le",
	CodecIDPCMS16BE:   "pcm_s16be",
	CodecIDPCMU8:      "pcm_u8",
	CodecIDPCMF32LE:   "pcm_f32le",
	CodecIDMP2:        "mp2",
	CodecIDMP3:        "mp3",
	CodecIDAAC:        "aac",
	CodecIDAC3:        "ac3",
	CodecIDDTS:        "dca",
	CodecIDVORBIS:     "vorbis",
	CodecIDFLAC:       "flac",
	CodecIDALAC:       "alac",
	CodecIDEAC3:       "eac3",
	CodecIDOPUS:       "opus",
}

// String returns the FFmpeg decoder name for id, or "unknown".
func (id CodecID) String() string {
	if name, ok := codecNames[id]; ok {
		return name
	}
	return "unknown"
}

// IsVideo reports whether id is a video codec.
func (id CodecID) IsVideo() bool {
	return id > 0 && id < CodecIDPCMS16LE
}

// IsAudio reports whether id is an audio codec.
func (id CodecID) IsAudio() bool {
	return id >= CodecIDPCMS16LE && id < codecIDFirstSubtitle
}
