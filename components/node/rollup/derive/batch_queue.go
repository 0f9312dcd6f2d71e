package derive

import (
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/trianglesphere/gonode/components/node/eth"
)

// L2BlockCandidate is a tentative next L2 block built from the head of the
// batch queue; the pipeline retains nothing about it once returned.
type L2BlockCandidate struct {
	Number       uint64
	Timestamp    uint64
	Transactions []*types.Transaction
}

// BatchQueue buffers batches keyed by their L2 timestamp and emits one
// L2BlockCandidate at a time as the caller's L2 head advances.
//
// Selection policy (current): the first batch received for a given
// timestamp wins; anything else queued behind it is discarded unread when
// the entry is consumed. A full derivation would instead rank batches by
// sequencing-window validity against l1Blocks; that rule is not
// implemented here (see rollup Non-goals).
type BatchQueue struct {
	l2BlockTime uint64

	l1Blocks []eth.L1BlockRef
	batches  map[uint64][]Batch
}

// NewBatchQueue returns an empty batch queue producing candidates spaced
// l2BlockTime seconds apart (the chain's configured L2 block time).
func NewBatchQueue(l2BlockTime uint64) *BatchQueue {
	return &BatchQueue{l2BlockTime: l2BlockTime, batches: make(map[uint64][]Batch)}
}

// LoadBatches records l1Origin (sequencing-window bookkeeping) and appends
// every batch to the queue keyed by its timestamp.
func (q *BatchQueue) LoadBatches(batches []Batch, l1Origin eth.L1BlockRef) {
	q.l1Blocks = append(q.l1Blocks, l1Origin)
	for _, b := range batches {
		q.batches[b.Timestamp] = append(q.batches[b.Timestamp], b)
	}
}

// GetBlockCandidate returns the next L2 block candidate built from the
// queue head timed l2Head.Time + l2BlockTime, or nil if no batch is queued
// for that timestamp.
func (q *BatchQueue) GetBlockCandidate(l2Head eth.L2BlockRef) *L2BlockCandidate {
	nextTimestamp := l2Head.Time + q.l2BlockTime
	queued, ok := q.batches[nextTimestamp]
	if !ok || len(queued) == 0 {
		return nil
	}
	batch := queued[0]
	delete(q.batches, nextTimestamp)

	txs := make([]*types.Transaction, 0, len(batch.Transactions))
	for _, raw := range batch.Transactions {
		var tx types.Transaction
		if err := rlp.DecodeBytes(raw, &tx); err != nil {
			continue
		}
		txs = append(txs, &tx)
	}

	return &L2BlockCandidate{
		Number:       l2Head.Number + 1,
		Timestamp:    nextTimestamp,
		Transactions: txs,
	}
}
