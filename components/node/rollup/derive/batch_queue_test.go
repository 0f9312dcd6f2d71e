package derive

import (
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trianglesphere/gonode/components/node/eth"
)

const l2BlockTime = 2

func encodedLegacyTx(t *testing.T, nonce uint64) []byte {
	t.Helper()
	tx := types.NewTx(&types.LegacyTx{Nonce: nonce, Gas: 21000, Value: nil})
	enc, err := tx.MarshalBinary()
	require.NoError(t, err)
	// LegacyTx marshals as a plain RLP list, matching what a raw
	// transaction looks like on the wire inside a Batch.
	return enc
}

func TestBatchQueueReturnsNilWhenEmpty(t *testing.T) {
	q := NewBatchQueue(l2BlockTime)
	head := eth.L2BlockRef{Number: 10, Time: 1000}
	assert.Nil(t, q.GetBlockCandidate(head))
}

func TestBatchQueueReturnsCandidateAtNextTimestamp(t *testing.T) {
	q := NewBatchQueue(l2BlockTime)
	head := eth.L2BlockRef{Number: 10, Time: 1000}

	q.LoadBatches([]Batch{
		{Timestamp: 1000 + l2BlockTime, Transactions: [][]byte{encodedLegacyTx(t, 0)}},
	}, eth.L1BlockRef{Number: 5})

	candidate := q.GetBlockCandidate(head)
	require.NotNil(t, candidate)
	assert.Equal(t, uint64(11), candidate.Number)
	assert.Equal(t, uint64(1000+l2BlockTime), candidate.Timestamp)
	require.Len(t, candidate.Transactions, 1)
	assert.Equal(t, uint64(0), candidate.Transactions[0].Nonce())
}

func TestBatchQueueFirstBatchWins(t *testing.T) {
	q := NewBatchQueue(l2BlockTime)
	head := eth.L2BlockRef{Number: 10, Time: 1000}
	ts := 1000 + uint64(l2BlockTime)

	q.LoadBatches([]Batch{
		{Timestamp: ts, Transactions: [][]byte{encodedLegacyTx(t, 1)}},
		{Timestamp: ts, Transactions: [][]byte{encodedLegacyTx(t, 2)}},
	}, eth.L1BlockRef{Number: 5})

	candidate := q.GetBlockCandidate(head)
	require.NotNil(t, candidate)
	require.Len(t, candidate.Transactions, 1)
	assert.Equal(t, uint64(1), candidate.Transactions[0].Nonce())

	// The queue is drained for that timestamp; a second call yields nothing.
	assert.Nil(t, q.GetBlockCandidate(head))
}

func TestBatchQueueSkipsUndecodableTransaction(t *testing.T) {
	q := NewBatchQueue(l2BlockTime)
	head := eth.L2BlockRef{Number: 10, Time: 1000}
	ts := 1000 + uint64(l2BlockTime)

	garbage, err := rlp.EncodeToBytes([]byte{0x01, 0x02})
	require.NoError(t, err)

	q.LoadBatches([]Batch{
		{Timestamp: ts, Transactions: [][]byte{garbage, encodedLegacyTx(t, 9)}},
	}, eth.L1BlockRef{Number: 5})

	candidate := q.GetBlockCandidate(head)
	require.NotNil(t, candidate)
	require.Len(t, candidate.Transactions, 1)
	assert.Equal(t, uint64(9), candidate.Transactions[0].Nonce())
}
