package derive

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeFrame(t *testing.T, id ChannelID, number uint16, data []byte, isLast bool) []byte {
	t.Helper()
	out := make([]byte, 0, frameHeaderSize+len(data)+1)
	out = append(out, id[:]...)
	var numBuf [2]byte
	binary.BigEndian.PutUint16(numBuf[:], number)
	out = append(out, numBuf[:]...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	out = append(out, lenBuf[:]...)
	out = append(out, data...)
	if isLast {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return out
}

func TestParseFramesSingleFrame(t *testing.T) {
	id := ChannelID{0x01}
	frameBytes := encodeFrame(t, id, 0, []byte("hello"), true)
	data := append([]byte{derivationVersion0}, frameBytes...)

	frames := ParseFrames(data)
	require.Len(t, frames, 1)
	assert.Equal(t, id, frames[0].ID)
	assert.Equal(t, uint16(0), frames[0].Number)
	assert.Equal(t, []byte("hello"), frames[0].Data)
	assert.True(t, frames[0].IsLast)
}

func TestParseFramesMultipleFramesInOneTx(t *testing.T) {
	id := ChannelID{0x02}
	var data []byte
	data = append(data, derivationVersion0)
	data = append(data, encodeFrame(t, id, 0, []byte("abc"), false)...)
	data = append(data, encodeFrame(t, id, 1, []byte("def"), true)...)

	frames := ParseFrames(data)
	require.Len(t, frames, 2)
	assert.Equal(t, []byte("abc"), frames[0].Data)
	assert.False(t, frames[0].IsLast)
	assert.Equal(t, []byte("def"), frames[1].Data)
	assert.True(t, frames[1].IsLast)
}

func TestParseFramesUnknownVersion(t *testing.T) {
	id := ChannelID{0x03}
	data := append([]byte{0x7f}, encodeFrame(t, id, 0, []byte("x"), true)...)
	assert.Nil(t, ParseFrames(data))
}

func TestParseFramesEmptyInput(t *testing.T) {
	assert.Nil(t, ParseFrames(nil))
	assert.Nil(t, ParseFrames([]byte{}))
}

func TestParseFramesTruncatedHeader(t *testing.T) {
	data := []byte{derivationVersion0, 0x01, 0x02, 0x03}
	assert.Nil(t, ParseFrames(data))
}

func TestParseFramesLengthOverrunsBuffer(t *testing.T) {
	id := ChannelID{0x04}
	frameBytes := encodeFrame(t, id, 0, []byte("short"), true)
	// Corrupt the length field to claim more data than is present.
	binary.BigEndian.PutUint32(frameBytes[18:22], 1000)
	data := append([]byte{derivationVersion0}, frameBytes...)
	assert.Nil(t, ParseFrames(data))
}

func TestFrameSize(t *testing.T) {
	f := Frame{Data: []byte("0123456789")}
	assert.Equal(t, uint64(10), f.Size())
}
