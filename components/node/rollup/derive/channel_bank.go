package derive

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/trianglesphere/gonode/components/node/eth"
)

// ChannelBank reassembles the frames arriving from successive L1 blocks
// into channels, draining the oldest ready channel as soon as it closes so
// that memory stays bounded by maxSize regardless of how adversarial the
// frame stream is.
type ChannelBank struct {
	log            log.Logger
	channels       map[ChannelID]*Channel
	creationOrder  []ChannelID
	maxSize        uint64
	channelTimeout uint64
}

// NewChannelBank builds an empty bank enforcing the given size cap and
// per-channel timeout (both are chain-config values — see rollup.Config).
// logger is handed down to every channel it creates, for Trace-level
// diagnostics on ignored/evicted frames.
func NewChannelBank(logger log.Logger, maxSize, channelTimeout uint64) *ChannelBank {
	return &ChannelBank{
		log:            logger,
		channels:       make(map[ChannelID]*Channel),
		maxSize:        maxSize,
		channelTimeout: channelTimeout,
	}
}

func (b *ChannelBank) totalSize() uint64 {
	var total uint64
	for _, c := range b.channels {
		total += c.size
	}
	return total
}

// peek returns the channel at the front of creationOrder, if any.
func (b *ChannelBank) peek() *Channel {
	if len(b.creationOrder) == 0 {
		return nil
	}
	return b.channels[b.creationOrder[0]]
}

// removeHead pops and deletes the channel at the front of creationOrder.
func (b *ChannelBank) removeHead() *Channel {
	if len(b.creationOrder) == 0 {
		return nil
	}
	id := b.creationOrder[0]
	b.creationOrder = b.creationOrder[1:]
	c := b.channels[id]
	delete(b.channels, id)
	return c
}

func (b *ChannelBank) prune() {
	for b.totalSize() > b.maxSize {
		if b.removeHead() == nil {
			return
		}
	}
}

// LoadFrames ingests every frame observed in l1Block, in order.
func (b *ChannelBank) LoadFrames(frames []Frame, l1Block eth.BlockID) {
	for _, frame := range frames {
		b.loadFrame(frame, l1Block)
	}
}

func (b *ChannelBank) loadFrame(frame Frame, l1Block eth.BlockID) {
	if head := b.peek(); head != nil && head.IsReady() {
		panic("derive: must drain channel data before loading more frames into the channel bank")
	}

	c, ok := b.channels[frame.ID]
	if !ok {
		c = newChannel(b.log, frame.ID, l1Block)
		b.channels[frame.ID] = c
		b.creationOrder = append(b.creationOrder, frame.ID)
	}
	c.LoadFrame(frame, l1Block)
	b.prune()
}

// GetChannelData returns the payload of the oldest channel if it is ready,
// draining it from the bank either way: a timed-out ready channel is
// dropped silently rather than returned. A channel that isn't ready yet
// yields nothing, and nothing is skipped ahead of it — ordering is strict.
func (b *ChannelBank) GetChannelData() []byte {
	head := b.peek()
	if head == nil || !head.IsReady() {
		return nil
	}
	c := b.removeHead()
	if c.IsTimedOut(b.channelTimeout) {
		return nil
	}
	return c.Data()
}
