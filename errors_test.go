package ffms

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := newError(KindNoFrames, "Index", "no frames found")
	assert.True(t, errors.Is(err, ErrNoFrames))
	assert.False(t, errors.Is(err, ErrDecode))

	wrapped := errors.Wrap(err, "outer")
	assert.True(t, errors.Is(wrapped, ErrNoFrames))
	assert.Equal(t, KindNoFrames, KindOf(wrapped))
}

func TestWrapErrorKeepsInnerKind(t *testing.T) {
	inner := newError(KindFrameAccurateSeekImpossible, "Frame", "x")
	err := wrapError(KindDemux, "outer", inner, "")
	assert.Equal(t, KindFrameAccurateSeekImpossible, KindOf(err))

	err = wrapError(KindIO, "ReadIndex", io.ErrUnexpectedEOF, "truncated index")
	assert.Equal(t, KindIO, KindOf(err))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, "ffms: ReadIndex: truncated index: unexpected EOF", err.Error())

	assert.NoError(t, wrapError(KindIO, "x", nil, ""))
	assert.Equal(t, KindUnknown, KindOf(io.EOF))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "ffms: cancelled", (&Error{Kind: KindCancelled}).Error())
	assert.Equal(t, "ffms: Index: cancelled by user", newError(KindCancelled, "Index", "cancelled by user").Error())
	assert.Equal(t, "kind(99)", ErrorKind(99).String())
}
