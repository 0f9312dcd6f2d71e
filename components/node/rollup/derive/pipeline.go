package derive

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/trianglesphere/gonode/components/node/eth"
	"github.com/trianglesphere/gonode/components/node/rollup"
)

// maxChannelBankSize bounds the total size, in bytes, of frame data the
// channel bank will hold across all open channels before it starts pruning
// the oldest one (spec.md's MAX_CHANNEL_BANK_SIZE, process-wide rather than
// a chain config field).
const maxChannelBankSize = 100_000_000

// L1Fetcher is the data source the pipeline ingests from: one L1 block at
// a time, fetched by number so Step can enforce strictly monotone
// ingestion.
type L1Fetcher interface {
	L1BlockRefByNumber(ctx context.Context, num uint64) (eth.L1BlockRef, error)
	InfoAndTxsByNumber(ctx context.Context, num uint64) (eth.L1BlockRef, []eth.Transaction, error)
	ReceiptsByNumber(ctx context.Context, num uint64) ([]eth.Receipt, error)
}

// Engine is the boundary to L2 block building and execution, which this
// pipeline does not implement (see rollup Non-goals): it reports the
// current unsafe L2 head the next candidate is built on top of, and
// accepts produced candidates for whatever the caller does with them.
type Engine interface {
	UnsafeL2Head() eth.L2BlockRef
	InsertL2Candidate(ctx context.Context, candidate *L2BlockCandidate) error
}

// Metrics records the pipeline's step-loop observability counters.
type Metrics interface {
	RecordL1Ref(name string, ref eth.L1BlockRef)
	RecordL2Ref(name string, ref eth.L2BlockRef)
	SetDerivationIdle(idle bool)
	RecordPipelineReset()
}

// Derivation is the core L1-to-L2 derivation pipeline: a single-threaded,
// synchronous state machine that turns a push of L1 blocks into a pull of
// L2 block candidates, by way of a channel bank and a batch queue.
type Derivation struct {
	log    log.Logger
	config *rollup.Config

	l1      L1Fetcher
	engine  Engine
	metrics Metrics

	channelBank *ChannelBank
	batchQueue  *BatchQueue

	origin eth.L1BlockRef
}

// NewDerivation builds a pipeline anchored at config's L1 genesis.
func NewDerivation(logger log.Logger, config *rollup.Config, l1 L1Fetcher, engine Engine, metrics Metrics) *Derivation {
	d := &Derivation{
		log:     logger,
		config:  config,
		l1:      l1,
		engine:  engine,
		metrics: metrics,
	}
	d.Reset()
	return d
}

// Reset discards all buffered channel and batch state and rewinds the
// pipeline's L1 origin back to genesis. The driver calls this at startup,
// when Step reports ErrReset, and on a forced reset.
func (d *Derivation) Reset() {
	d.channelBank = NewChannelBank(d.log, maxChannelBankSize, d.config.ChannelTimeout)
	d.batchQueue = NewBatchQueue(d.config.BlockTime)
	d.origin = eth.L1BlockRef{Hash: d.config.Genesis.L1.Hash, Number: d.config.Genesis.L1.Number}
	if d.metrics != nil {
		d.metrics.RecordPipelineReset()
	}
}

// Origin is the highest L1 block the pipeline has ingested via Step (the
// genesis L1 block after a reset).
func (d *Derivation) Origin() eth.L1BlockRef {
	return d.origin
}

// LoadL1Data is the pipeline's ingestion entrypoint: it extracts batcher
// frames from l1Block's transactions, feeds them to the channel bank, and
// hands every batch produced by a channel closing this round to the batch
// queue. Calls must be strictly monotone in l1Block.Number; the pipeline
// does not reorder or buffer out-of-order blocks.
func (d *Derivation) LoadL1Data(l1Block eth.L1BlockRef, txs []eth.Transaction, _ []eth.Receipt) {
	frames := framesFromTransactions(d.config.BatchInboxAddress, txs)

	// Drain after every frame: the channel bank refuses new frames while its
	// head channel is ready.
	var batches []Batch
	for _, frame := range frames {
		d.channelBank.LoadFrames([]Frame{frame}, l1Block.ID())
		for {
			data := d.channelBank.GetChannelData()
			if data == nil {
				break
			}
			batches = append(batches, batchesFromChannelBytes(data)...)
		}
	}
	d.batchQueue.LoadBatches(batches, l1Block)
}

// NextL2Attributes is the pipeline's consumption entrypoint: it returns the
// next L2 block candidate built on top of l2Head, or nil if none is
// buffered yet for l2Head.Time + the chain's block time.
func (d *Derivation) NextL2Attributes(l2Head eth.L2BlockRef) *L2BlockCandidate {
	return d.batchQueue.GetBlockCandidate(l2Head)
}

// Step advances the pipeline by one unit of work for a driver's event loop:
// fetch the next L1 block, ingest it, and try to hand one L2 candidate to
// the engine. It returns:
//   - NotEnoughData if fetching the next block's ref fails for any reason
//     (typically the L1 source doesn't have it yet) — the driver should
//     retry without backing off, since the block is expected to show up on
//     its own as L1 advances;
//   - ErrReset if the fetched block's parent doesn't match the pipeline's
//     current origin, meaning L1 has reorged out from under it;
//   - ErrTemporary, with the underlying error's message (not wrapped), if
//     fetching the block's transactions or receipts fails, or if the engine
//     rejects the candidate;
//   - io.EOF if the L1 block was ingested successfully but no L2 candidate
//     was ready to hand off this round;
//   - nil once a candidate has been produced and accepted by the engine.
func (d *Derivation) Step(ctx context.Context) error {
	nextNum := d.origin.Number + 1

	ref, err := d.l1.L1BlockRefByNumber(ctx, nextNum)
	if err != nil {
		return fmt.Errorf("%w: fetching L1 block %d: %v", NotEnoughData, nextNum, err)
	}
	if ref.ParentHash != d.origin.Hash {
		return fmt.Errorf("%w: L1 block %d's parent %s does not match current origin %s", ErrReset, nextNum, ref.ParentHash, d.origin.Hash)
	}

	_, txs, err := d.l1.InfoAndTxsByNumber(ctx, nextNum)
	if err != nil {
		return fmt.Errorf("%w: fetching transactions for L1 block %d: %v", ErrTemporary, nextNum, err)
	}
	receipts, err := d.l1.ReceiptsByNumber(ctx, nextNum)
	if err != nil {
		return fmt.Errorf("%w: fetching receipts for L1 block %d: %v", ErrTemporary, nextNum, err)
	}

	d.LoadL1Data(ref, txs, receipts)
	d.origin = ref
	if d.metrics != nil {
		d.metrics.RecordL1Ref("derivation_origin", ref)
	}

	head := d.engine.UnsafeL2Head()
	candidate := d.NextL2Attributes(head)
	if candidate == nil {
		if d.metrics != nil {
			d.metrics.SetDerivationIdle(true)
		}
		return io.EOF
	}
	if err := d.engine.InsertL2Candidate(ctx, candidate); err != nil {
		return fmt.Errorf("%w: inserting L2 candidate: %v", ErrTemporary, err)
	}
	if d.metrics != nil {
		d.metrics.SetDerivationIdle(false)
		d.metrics.RecordL2Ref("unsafe_l2", head)
	}
	return nil
}

func framesFromTransactions(batcherAddr common.Address, txs []eth.Transaction) []Frame {
	var frames []Frame
	for _, tx := range txs {
		if tx.From != batcherAddr {
			continue
		}
		frames = append(frames, ParseFrames(tx.Input)...)
	}
	return frames
}
