package derive

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressBatches(t *testing.T, batches []Batch) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	for _, b := range batches {
		enc, err := rlp.EncodeToBytes(b)
		require.NoError(t, err)
		// Each batch travels inside an outer RLP string.
		enc, err = rlp.EncodeToBytes(enc)
		require.NoError(t, err)
		_, err = w.Write(enc)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestBatchesFromChannelBytesRoundTrip(t *testing.T) {
	batches := []Batch{
		{Timestamp: 100, Transactions: [][]byte{{0x01, 0x02}}},
		{Timestamp: 102, Transactions: [][]byte{{0x03}}},
	}
	data := compressBatches(t, batches)

	decoded := batchesFromChannelBytes(data)
	require.Len(t, decoded, 2)
	assert.Equal(t, uint64(100), decoded[0].Timestamp)
	assert.Equal(t, uint64(102), decoded[1].Timestamp)
}

func TestBatchesFromChannelBytesNotZlib(t *testing.T) {
	assert.Nil(t, batchesFromChannelBytes([]byte("not zlib data")))
}

func TestBatchesFromChannelBytesSkipsMalformedInnerBatch(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	// A valid RLP string whose content does not RLP-decode into a Batch.
	garbage, err := rlp.EncodeToBytes([]byte{0xff})
	require.NoError(t, err)
	_, err = w.Write(garbage)
	require.NoError(t, err)

	good, err := rlp.EncodeToBytes(Batch{Timestamp: 7})
	require.NoError(t, err)
	good, err = rlp.EncodeToBytes(good)
	require.NoError(t, err)
	_, err = w.Write(good)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	decoded := batchesFromChannelBytes(buf.Bytes())
	require.Len(t, decoded, 1)
	assert.Equal(t, uint64(7), decoded[0].Timestamp)
}

func TestBatchesFromChannelBytesEmptyPayload(t *testing.T) {
	data := compressBatches(t, nil)
	assert.Nil(t, batchesFromChannelBytes(data))
}
