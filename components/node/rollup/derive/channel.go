package derive

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/trianglesphere/gonode/components/node/eth"
)

// Channel reassembles the frames of a single channel id into its closed,
// concatenated payload. A channel is open until a frame with IsLast is
// accepted, at which point it is closed; the open → closed transition is
// one-shot.
type Channel struct {
	log log.Logger
	id  ChannelID

	frames             map[uint16]Frame
	size               uint64
	highestFrameNumber uint16
	endFrameNumber     *uint16

	lowestL1Block  eth.BlockID
	highestL1Block eth.BlockID
}

func newChannel(logger log.Logger, id ChannelID, l1Block eth.BlockID) *Channel {
	return &Channel{
		log:            logger,
		id:             id,
		frames:         make(map[uint16]Frame),
		lowestL1Block:  l1Block,
		highestL1Block: l1Block,
	}
}

func (c *Channel) closed() bool {
	return c.endFrameNumber != nil
}

// LoadFrame admits a frame into the channel, or silently ignores it if it
// doesn't belong here, is a duplicate, or arrives after the channel has
// already been closed by an earlier last-frame. These checks are part of
// the wire contract and cannot change without a coordinated hard fork.
func (c *Channel) LoadFrame(frame Frame, l1Block eth.BlockID) {
	if frame.ID != c.id {
		c.log.Trace("ignoring frame for another channel", "frame_channel", frame.ID, "channel", c.id)
		return
	}
	if c.closed() && frame.IsLast {
		c.log.Trace("ignoring duplicate last frame on a closed channel", "channel", c.id, "frame_number", frame.Number)
		return
	}
	if _, exists := c.frames[frame.Number]; exists {
		c.log.Trace("ignoring duplicate frame", "channel", c.id, "frame_number", frame.Number)
		return
	}
	if c.closed() && frame.Number > c.highestFrameNumber {
		c.log.Trace("ignoring frame arriving after channel close", "channel", c.id, "frame_number", frame.Number, "highest_frame_number", c.highestFrameNumber)
		return
	}

	// Past this point the frame is always accepted.
	if frame.IsLast {
		n := frame.Number
		c.endFrameNumber = &n
		// A last frame with a lower number than we've already seen
		// retroactively truncates the channel: every higher frame we
		// were holding turns out to be garbage.
		for k, v := range c.frames {
			if k > frame.Number {
				c.log.Trace("evicting frame retroactively truncated by an earlier last frame", "channel", c.id, "frame_number", k, "end_frame_number", frame.Number)
				c.size -= v.Size()
				delete(c.frames, k)
			}
		}
	}

	if frame.Number > c.highestFrameNumber {
		c.highestFrameNumber = frame.Number
	}
	if l1Block.Number > c.highestL1Block.Number {
		c.highestL1Block = l1Block
	}
	c.size += frame.Size()
	c.frames[frame.Number] = frame
}

// IsReady is true iff the channel is closed and every frame number in
// [0, endFrameNumber] has been received.
func (c *Channel) IsReady() bool {
	if c.endFrameNumber == nil {
		return false
	}
	for i := 0; i <= int(*c.endFrameNumber); i++ {
		if _, ok := c.frames[uint16(i)]; !ok {
			return false
		}
	}
	return true
}

// Data returns the channel's decompressed-input payload: the concatenation
// of every frame's data in order, consuming them. Panics if IsReady is
// false.
func (c *Channel) Data() []byte {
	if !c.IsReady() {
		panic("derive: Data called on a channel that is not ready")
	}
	var out []byte
	for i := 0; i <= int(*c.endFrameNumber); i++ {
		f := c.frames[uint16(i)]
		out = append(out, f.Data...)
		delete(c.frames, uint16(i))
	}
	return out
}

// IsTimedOut is true iff the channel has been open for more than timeout
// L1 blocks, measured between the first and last L1 block any frame of it
// arrived in.
func (c *Channel) IsTimedOut(timeout uint64) bool {
	return c.highestL1Block.Number-c.lowestL1Block.Number > timeout
}
