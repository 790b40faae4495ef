//go:build !ios && !android && (amd64 || arm64)

package avutil

import (
	"fmt"
	"syscall"

	"github.com/pkg/errors"
)

// AVERROR values returned by the codec and format calls.
const (
	AVERROR_EOF               int32 = -541478725
	AVERROR_EAGAIN            int32 = -int32(syscall.EAGAIN)
	AVERROR_EINVAL            int32 = -int32(syscall.EINVAL)
	AVERROR_ENOMEM            int32 = -int32(syscall.ENOMEM)
	AVERROR_DECODER_NOT_FOUND int32 = -1128613112
	AVERROR_DEMUXER_NOT_FOUND int32 = -1296385272
	AVERROR_INVALIDDATA       int32 = -1094995529
)

// Error is a negative FFmpeg return code with the call that produced it.
type Error struct {
	Code    int32
	Message string
	Op      string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ffmpeg %s: %s (code %d)", e.Op, e.Message, e.Code)
}

// NewError returns nil for a non-negative code.
func NewError(code int32, op string) error {
	if code >= 0 {
		return nil
	}
	return &Error{Code: code, Message: ErrorString(code), Op: op}
}

// Code returns the FFmpeg code inside err, or 0.
func Code(err error) int32 {
	var ffErr *Error
	if errors.As(err, &ffErr) {
		return ffErr.Code
	}
	return 0
}

// IsEOF reports whether err is AVERROR_EOF.
func IsEOF(err error) bool { return err != nil && Code(err) == AVERROR_EOF }

// IsAgain reports whether the codec wants more input (EAGAIN).
func IsAgain(err error) bool { return err != nil && Code(err) == AVERROR_EAGAIN }

// IsInvalidData reports whether err is AVERROR_INVALIDDATA.
func IsInvalidData(err error) bool { return err != nil && Code(err) == AVERROR_INVALIDDATA }
