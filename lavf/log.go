//go:build !ios && !android && (amd64 || arm64)

package lavf

import (
	"github.com/obinnaokechukwu/ffms/avutil"
	"github.com/sirupsen/logrus"
)

// LogLevel is an FFmpeg AV_LOG_* level.
type LogLevel int32

const (
	LogQuiet   = LogLevel(avutil.LogQuiet)
	LogPanic   = LogLevel(avutil.LogPanic)
	LogFatal   = LogLevel(avutil.LogFatal)
	LogError   = LogLevel(avutil.LogError)
	LogWarning = LogLevel(avutil.LogWarning)
	LogInfo    = LogLevel(avutil.LogInfo)
	LogVerbose = LogLevel(avutil.LogVerbose)
	LogDebug   = LogLevel(avutil.LogDebug)
	LogTrace   = LogLevel(avutil.LogTrace)
)

func (l LogLevel) String() string {
	switch {
	case l <= LogQuiet:
		return "quiet"
	case l <= LogPanic:
		return "panic"
	case l <= LogFatal:
		return "fatal"
	case l <= LogError:
		return "error"
	case l <= LogWarning:
		return "warning"
	case l <= LogInfo:
		return "info"
	case l <= LogVerbose:
		return "verbose"
	case l <= LogDebug:
		return "debug"
	default:
		return "trace"
	}
}

// SetLogLevel sets FFmpeg's own console verbosity.
func SetLogLevel(level LogLevel) error {
	return avutil.LogSetLevel(int32(level))
}

// GetLogLevel returns FFmpeg's console verbosity.
func GetLogLevel() LogLevel {
	return LogLevel(avutil.LogGetLevel())
}

// LevelFor maps a logrus level to the FFmpeg level that prints the same
// class of messages.
func LevelFor(l logrus.Level) LogLevel {
	switch l {
	case logrus.PanicLevel:
		return LogPanic
	case logrus.FatalLevel:
		return LogFatal
	case logrus.ErrorLevel:
		return LogError
	case logrus.WarnLevel:
		return LogWarning
	case logrus.InfoLevel:
		return LogInfo
	case logrus.DebugLevel:
		return LogDebug
	default:
		return LogTrace
	}
}
