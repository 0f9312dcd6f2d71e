package derive

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
)

// Batch is a sequencer-signed proposal of L2 block contents for a specific
// L2 timestamp. ParentHash and EpochNumber are carried through opaquely —
// this core never validates them (see rollup Non-goals on sequencing
// windows and parent-hash rules).
type Batch struct {
	ParentHash   [32]byte
	EpochNumber  uint64
	Timestamp    uint64
	Transactions [][]byte
}

// batchesFromChannelBytes turns a channel's decompressed-input payload
// into the batches it carries. The payload is a zlib-compressed
// concatenation of RLP strings, each of which, once peeled off by its
// encoded size, RLP-decodes into a Batch. A malformed inner batch is
// silently dropped; an error decoding the outer string marks the rest of
// the buffer as tail padding and stops the loop (not an error — the
// caller's channel may be larger than its useful payload due to zlib
// framing).
func batchesFromChannelBytes(data []byte) []Batch {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	buf, err := io.ReadAll(zr)
	if err != nil {
		return nil
	}

	var batches []Batch
	for len(buf) > 0 {
		content, rest, err := rlp.SplitString(buf)
		if err != nil {
			break
		}
		buf = rest

		var b Batch
		if err := rlp.DecodeBytes(content, &b); err != nil {
			continue
		}
		batches = append(batches, b)
	}
	return batches
}
