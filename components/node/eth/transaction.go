package eth

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Transaction is the subset of an RPC-returned L1 transaction the
// derivation pipeline needs to find and parse batcher frames: the address
// that sent it (sources.L1Client recovers it from the signature) and its
// calldata.
type Transaction struct {
	From  common.Address `json:"from"`
	Hash  common.Hash    `json:"hash"`
	Input []byte         `json:"input"`
}

// Receipt is the subset of an RPC-returned transaction receipt a full
// derivation would read to track system-config updates (see rollup
// Non-goals); kept here so the L1Fetcher contract has somewhere to put it.
type Receipt struct {
	Status uint64           `json:"status"`
	Logs   []*gethtypes.Log `json:"logs"`
}
