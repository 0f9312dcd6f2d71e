// Package eth holds the small, dependency-light value types the derivation
// pipeline and its external collaborators pass between each other: block
// identifiers, references, and the system config embedded in genesis.
package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Bytes32 is a 32 byte blob, used for opaque system-config values
// (overhead, scalar) that are never interpreted by the core.
type Bytes32 [32]byte

// BlockID uniquely identifies an L1 or L2 block by hash and number.
type BlockID struct {
	Hash   common.Hash `json:"hash"`
	Number uint64      `json:"number"`
}

func (id BlockID) String() string {
	return fmt.Sprintf("%s:%d", id.Hash, id.Number)
}

// L1BlockRef is a BlockID plus the parent hash and timestamp, as handed to
// the derivation pipeline on ingestion.
type L1BlockRef struct {
	Hash       common.Hash `json:"hash"`
	Number     uint64      `json:"number"`
	ParentHash common.Hash `json:"parentHash"`
	Time       uint64      `json:"timestamp"`
}

func (r L1BlockRef) ID() BlockID {
	return BlockID{Hash: r.Hash, Number: r.Number}
}

func (r L1BlockRef) String() string {
	return fmt.Sprintf("%s:%d", r.Hash, r.Number)
}

// L2BlockRef is the current L2 head as supplied by the caller of
// NextL2Attributes; the pipeline never constructs one itself.
type L2BlockRef struct {
	Hash       common.Hash `json:"hash"`
	Number     uint64      `json:"number"`
	ParentHash common.Hash `json:"parentHash"`
	Time       uint64      `json:"timestamp"`
	L1Origin   BlockID     `json:"l1origin"`
}

func (r L2BlockRef) ID() BlockID {
	return BlockID{Hash: r.Hash, Number: r.Number}
}

func (r L2BlockRef) String() string {
	return fmt.Sprintf("%s:%d", r.Hash, r.Number)
}

// SystemConfig carries the batcher address and fee-scalar parameters
// committed to at genesis (and, in a full derivation, updated by L1 log
// events the core does not process — see spec Non-goals).
type SystemConfig struct {
	BatcherAddr common.Address `json:"batcherAddr"`
	Overhead    Bytes32        `json:"overhead"`
	Scalar      Bytes32        `json:"scalar"`
	GasLimit    uint64         `json:"gasLimit"`
}

// Header is the subset of an L1 block header the pipeline and its MPT
// verification code need: the two roots to authenticate transactions and
// receipts against, plus enough identity to build an L1BlockRef.
type Header struct {
	Hash             common.Hash `json:"hash"`
	ParentHash       common.Hash `json:"parentHash"`
	Number           uint64      `json:"number"`
	Time             uint64      `json:"timestamp"`
	TransactionsRoot common.Hash `json:"transactionsRoot"`
	ReceiptsRoot     common.Hash `json:"receiptsRoot"`
}

func (h Header) BlockRef() L1BlockRef {
	return L1BlockRef{
		Hash:       h.Hash,
		Number:     h.Number,
		ParentHash: h.ParentHash,
		Time:       h.Time,
	}
}

// SyncStatus is a trimmed status snapshot, kept for the driver's
// diagnostics surface; it only reports what the core actually tracks.
type SyncStatus struct {
	CurrentL1 L1BlockRef `json:"current_l1"`
	HeadL1    L1BlockRef `json:"head_l1"`
	UnsafeL2  L2BlockRef `json:"unsafe_l2"`
	SafeL2    L2BlockRef `json:"safe_l2"`
}
