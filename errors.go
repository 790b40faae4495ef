package ffms

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies every failure returned by this package.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindOpen: the file is missing, unreadable or not a container.
	KindOpen
	// KindNoFrames: a requested track has no usable records.
	KindNoFrames
	// KindDecode: a packet failed to decode. Absorbed inside reads.
	KindDecode
	// KindFrameAccurateSeekImpossible: the post-seek timestamp did not map to a
	// known frame under a strict seek mode.
	KindFrameAccurateSeekImpossible
	// KindNonLinearAccessDenied: the seek mode forbids the requested direction.
	KindNonLinearAccessDenied
	// KindIO: index file read or write failure.
	KindIO
	// KindDecoderMismatch: the index was produced by a different backend.
	KindDecoderMismatch
	// KindVersionMismatch: the index file format tag is not ours.
	KindVersionMismatch
	// KindDemux: the container could not be parsed or seeked.
	KindDemux
	// KindCancelled: indexing was stopped by the caller.
	KindCancelled
	// KindInvalidArgument: bad track number, range or option.
	KindInvalidArgument
	// KindUnsupported: codec or stream layout the engine cannot handle.
	KindUnsupported
	// KindFileMismatch: the index does not describe the given source file.
	KindFileMismatch
)

var kindNames = map[ErrorKind]string{
	KindUnknown:                     "unknown",
	KindOpen:                        "open",
	KindNoFrames:                    "no frames",
	KindDecode:                      "decode",
	KindFrameAccurateSeekImpossible: "frame accurate seek impossible",
	KindNonLinearAccessDenied:       "non-linear access denied",
	KindIO:                          "io",
	KindDecoderMismatch:             "decoder mismatch",
	KindVersionMismatch:             "version mismatch",
	KindDemux:                       "demux",
	KindCancelled:                   "cancelled",
	KindInvalidArgument:             "invalid argument",
	KindUnsupported:                 "unsupported",
	KindFileMismatch:                "file mismatch",
}

// String returns the kind name.
func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single error type of the engine.
type Error struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "ReadIndex"
	Msg  string // human readable message
	Err  error  // underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("ffms: %s: %s: %v", e.Op, msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("ffms: %s: %s", e.Op, msg)
	case e.Err != nil:
		return fmt.Sprintf("ffms: %s: %v", msg, e.Err)
	default:
		return "ffms: " + msg
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel of the same kind.
// Sentinels are Errors without Op, Msg or Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrOpen                        = &Error{Kind: KindOpen}
	ErrNoFrames                    = &Error{Kind: KindNoFrames}
	ErrDecode                      = &Error{Kind: KindDecode}
	ErrFrameAccurateSeekImpossible = &Error{Kind: KindFrameAccurateSeekImpossible}
	ErrNonLinearAccessDenied       = &Error{Kind: KindNonLinearAccessDenied}
	ErrIO                          = &Error{Kind: KindIO}
	ErrDecoderMismatch             = &Error{Kind: KindDecoderMismatch}
	ErrVersionMismatch             = &Error{Kind: KindVersionMismatch}
	ErrDemux                       = &Error{Kind: KindDemux}
	ErrCancelled                   = &Error{Kind: KindCancelled}
	ErrInvalidArgument             = &Error{Kind: KindInvalidArgument}
	ErrUnsupported                 = &Error{Kind: KindUnsupported}
	ErrFileMismatch                = &Error{Kind: KindFileMismatch}
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind ErrorKind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func newErrorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// wrapError keeps an existing *Error untouched so kinds assigned deeper in a
// backend survive propagation.
func wrapError(kind ErrorKind, op string, err error, msg string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// NewError builds an *Error for backends living outside this package.
func NewError(kind ErrorKind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}
