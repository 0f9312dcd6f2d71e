package derive

import (
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelBankDrainsOldestReadyChannel(t *testing.T) {
	b := NewChannelBank(log.New(), 1_000_000, 1000)
	id1 := ChannelID{0x01}
	id2 := ChannelID{0x02}

	// id1 is created first but closes last, so both channels are ready
	// without a frame ever arriving while the head channel is ready.
	b.LoadFrames([]Frame{
		{ID: id1, Number: 0, Data: []byte("fir")},
	}, blockID(1))
	b.LoadFrames([]Frame{
		{ID: id2, Number: 0, Data: []byte("second"), IsLast: true},
		{ID: id1, Number: 1, Data: []byte("st"), IsLast: true},
	}, blockID(2))

	data := b.GetChannelData()
	require.NotNil(t, data)
	assert.Equal(t, []byte("first"), data)

	data = b.GetChannelData()
	require.NotNil(t, data)
	assert.Equal(t, []byte("second"), data)

	assert.Nil(t, b.GetChannelData())
}

func TestChannelBankNotReadyReturnsNilWithoutSkipping(t *testing.T) {
	b := NewChannelBank(log.New(), 1_000_000, 1000)
	id1 := ChannelID{0x01}
	id2 := ChannelID{0x02}

	// id1's channel never closes; id2's does, but ordering is strict so
	// id2's data must not be returned ahead of id1.
	b.LoadFrames([]Frame{
		{ID: id1, Number: 0, Data: []byte("stuck")},
	}, blockID(1))
	b.LoadFrames([]Frame{
		{ID: id2, Number: 0, Data: []byte("ready"), IsLast: true},
	}, blockID(1))

	assert.Nil(t, b.GetChannelData())
}

func TestChannelBankPrunesOverCapacity(t *testing.T) {
	b := NewChannelBank(log.New(), 5, 1000)
	id1 := ChannelID{0x01}
	id2 := ChannelID{0x02}

	// id1's channel stays open (no last frame), consuming its size budget.
	b.LoadFrames([]Frame{
		{ID: id1, Number: 0, Data: []byte("abcde")},
	}, blockID(1))
	require.Contains(t, b.channels, id1)

	// Loading id2's frames pushes total size over maxSize, pruning id1.
	b.LoadFrames([]Frame{
		{ID: id2, Number: 0, Data: []byte("fghij")},
	}, blockID(2))

	assert.NotContains(t, b.channels, id1)
	assert.Contains(t, b.channels, id2)
}

func TestChannelBankDropsTimedOutChannelSilently(t *testing.T) {
	b := NewChannelBank(log.New(), 1_000_000, 10)
	id := ChannelID{0x01}

	b.LoadFrames([]Frame{
		{ID: id, Number: 0, Data: []byte("part")},
	}, blockID(1))
	b.LoadFrames([]Frame{
		{ID: id, Number: 1, Data: []byte("late"), IsLast: true},
	}, blockID(20))

	assert.Nil(t, b.GetChannelData())
}

func TestChannelBankPanicsIfDrainedOutOfOrder(t *testing.T) {
	b := NewChannelBank(log.New(), 1_000_000, 1000)
	id := ChannelID{0x01}
	b.LoadFrames([]Frame{
		{ID: id, Number: 0, Data: []byte("x"), IsLast: true},
	}, blockID(1))

	assert.Panics(t, func() {
		b.LoadFrames([]Frame{
			{ID: ChannelID{0x02}, Number: 0, Data: []byte("y")},
		}, blockID(2))
	})
}
