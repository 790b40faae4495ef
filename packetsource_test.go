package ffms

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScratchBufferGrowsOnly(t *testing.T) {
	var b ScratchBuffer
	p := b.Resize(10)
	assert.Len(t, p, 10)
	copy(p, "0123456789")
	c := b.Cap()

	p = b.Resize(4)
	assert.Equal(t, "0123", string(p))
	assert.Equal(t, c, b.Cap(), "shrinking keeps the allocation")

	p = b.Resize(40)
	assert.Len(t, p, 40)
	assert.Equal(t, "0123", string(p[:4]))
	assert.GreaterOrEqual(t, b.Cap(), 40)

	b.Reset()
	assert.Zero(t, b.Len())
	b.Append([]byte("ab"))
	b.Append([]byte("cd"))
	assert.Equal(t, "abcd", string(b.Bytes()))
}

func TestRawPacketSource(t *testing.T) {
	src := NewRawPacketSource(bytes.NewReader([]byte("headerPAYLOADtrailer")))
	var buf ScratchBuffer
	p, err := src.ReadFrame(6, 7, &buf)
	require.NoError(t, err)
	assert.Equal(t, "PAYLOAD", string(p))

	_, err = src.ReadFrame(15, 10, &buf)
	assert.Equal(t, KindDemux, KindOf(err))

	_, err = src.ReadFrame(-1, 2, &buf)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestCompressedPacketSourceZlib(t *testing.T) {
	frame := bytes.Repeat([]byte("frame data "), 50)
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, err := zw.Write(frame)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	file := append([]byte("xx"), z.Bytes()...)
	src, err := NewCompressedPacketSource(bytes.NewReader(file), CompressionZlib, nil)
	require.NoError(t, err)

	var buf ScratchBuffer
	p, err := src.ReadFrame(2, z.Len(), &buf)
	require.NoError(t, err)
	assert.Equal(t, frame, p)

	_, err = src.ReadFrame(0, 2, &buf)
	assert.Equal(t, KindDecode, KindOf(err))
}

func TestCompressedPacketSourceHeaderStrip(t *testing.T) {
	src, err := NewCompressedPacketSource(bytes.NewReader([]byte("..body")), CompressionHeaderStrip, []byte{0, 0, 1})
	require.NoError(t, err)
	var buf ScratchBuffer
	p, err := src.ReadFrame(2, 4, &buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 1, 'b', 'o', 'd', 'y'}, p)

	_, err = NewCompressedPacketSource(bytes.NewReader(nil), CompressionAlgorithm(1), nil)
	assert.Equal(t, KindUnsupported, KindOf(err))
}
