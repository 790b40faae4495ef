package matroska

import (
	"strings"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/pkg/errors"
)

var videoCodecs = map[string]string{
	"V_MPEG4/ISO/AVC":  "h264",
	"V_MPEGH/ISO/HEVC": "hevc",
	"V_MPEG4/ISO/ASP":  "mpeg4",
	"V_MPEG4/ISO/SP":   "mpeg4",
	"V_MPEG4/ISO/AP":   "mpeg4",
	"V_MPEG1":          "mpeg1video",
	"V_MPEG2":          "mpeg2video",
	"V_VP8":            "vp8",
	"V_VP9":            "vp9",
	"V_AV1":            "av1",
	"V_THEORA":         "theora",
	"V_MJPEG":          "mjpeg",
}

var audioCodecs = map[string]string{
	"A_MPEG/L2": "mp2",
	"A_MPEG/L3": "mp3",
	"A_AC3":     "ac3",
	"A_EAC3":    "eac3",
	"A_DTS":     "dca",
	"A_VORBIS":  "vorbis",
	"A_OPUS":    "opus",
	"A_FLAC":    "flac",
	"A_ALAC":    "alac",
}

// decoderName returns the FFmpeg decoder for a track.
func decoderName(t *trackEntry) (string, error) {
	if name, ok := videoCodecs[t.CodecID]; ok {
		return name, nil
	}
	if name, ok := audioCodecs[t.CodecID]; ok {
		return name, nil
	}
	if t.CodecID == "A_AAC" || strings.HasPrefix(t.CodecID, "A_AAC/") {
		return "aac", nil
	}
	if strings.HasPrefix(t.CodecID, "A_PCM/") {
		return pcmDecoder(t)
	}
	return "", errors.Errorf("unsupported codec %s", t.CodecID)
}

func pcmDecoder(t *trackEntry) (string, error) {
	depth := uint64(16)
	if t.Audio != nil && t.Audio.BitDepth > 0 {
		depth = t.Audio.BitDepth
	}
	switch {
	case t.CodecID == "A_PCM/INT/LIT" && depth == 8:
		return "pcm_u8", nil
	case t.CodecID == "A_PCM/INT/LIT" && depth == 16:
		return "pcm_s16le", nil
	case t.CodecID == "A_PCM/INT/LIT" && depth == 24:
		return "pcm_s24le", nil
	case t.CodecID == "A_PCM/INT/LIT" && depth == 32:
		return "pcm_s32le", nil
	case t.CodecID == "A_PCM/INT/BIG" && depth == 16:
		return "pcm_s16be", nil
	case t.CodecID == "A_PCM/INT/BIG" && depth == 24:
		return "pcm_s24be", nil
	case t.CodecID == "A_PCM/INT/BIG" && depth == 32:
		return "pcm_s32be", nil
	case t.CodecID == "A_PCM/FLOAT/IEEE" && depth == 32:
		return "pcm_f32le", nil
	case t.CodecID == "A_PCM/FLOAT/IEEE" && depth == 64:
		return "pcm_f64le", nil
	}
	return "", errors.Errorf("unsupported PCM layout %s with %d bits", t.CodecID, depth)
}

// aacLowComplexity is the MPEG-4 audio object type of AAC LC.
const aacLowComplexity = 2

// aacConfig returns the AudioSpecificConfig for an AAC track. Old files use
// codec IDs like A_AAC/MPEG4/LC without private data; a config is built
// from the container values for those.
func aacConfig(t *trackEntry) (*mpeg4audio.AudioSpecificConfig, []byte, error) {
	var conf mpeg4audio.AudioSpecificConfig
	if len(t.CodecPrivate) > 0 {
		if err := conf.Unmarshal(t.CodecPrivate); err != nil {
			return nil, nil, errors.Wrap(err, "bad AAC private data")
		}
		return &conf, t.CodecPrivate, nil
	}
	if t.Audio == nil || t.Audio.SamplingFrequency <= 0 || t.Audio.Channels == 0 {
		return nil, nil, errors.New("AAC track without private data or audio settings")
	}
	conf = mpeg4audio.AudioSpecificConfig{
		Type:         aacLowComplexity,
		SampleRate:   int(t.Audio.SamplingFrequency),
		ChannelCount: int(t.Audio.Channels),
	}
	raw, err := conf.Marshal()
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot build AAC config")
	}
	return &conf, raw, nil
}

// avcLengthSize returns the NAL unit length field size from an avcC record,
// or 0 when the record is unusable.
func avcLengthSize(codecPrivate []byte) int {
	if len(codecPrivate) < 5 || codecPrivate[0] != 1 {
		return 0
	}
	return int(codecPrivate[4]&0x03) + 1
}

// containsIDR reports whether a length-prefixed H.264 access unit carries
// an IDR slice.
func containsIDR(au []byte) bool {
	var nalus h264.AVCC
	if err := nalus.Unmarshal(au); err != nil {
		return false
	}
	for _, n := range nalus {
		if len(n) > 0 && h264.NALUType(n[0]&0x1F) == h264.NALUTypeIDR {
			return true
		}
	}
	return false
}
