// Package engine provides a placeholder derive.Engine: a stand-in for
// the L2 execution engine that would otherwise receive derived block
// candidates over Engine API and execute them. Actually executing or
// validating L2 transactions is out of scope here; LoggingEngine exists
// so the derivation pipeline has somewhere real to hand its output.
package engine

import (
	"context"
	gosync "sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/trianglesphere/gonode/components/node/eth"
	"github.com/trianglesphere/gonode/components/node/rollup/derive"
)

// LoggingEngine implements derive.Engine by tracking an in-memory L2
// head and logging every candidate it's handed, rather than executing
// it against any L2 state.
type LoggingEngine struct {
	log log.Logger

	mu   gosync.Mutex
	head eth.L2BlockRef
}

var _ derive.Engine = (*LoggingEngine)(nil)

// NewLoggingEngine starts the engine at genesis's L2 ref.
func NewLoggingEngine(logger log.Logger, genesis eth.L2BlockRef) *LoggingEngine {
	return &LoggingEngine{log: logger, head: genesis}
}

func (e *LoggingEngine) UnsafeL2Head() eth.L2BlockRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.head
}

// InsertL2Candidate accepts every candidate handed to it: there is no L2
// state to validate it against. It advances the tracked head and logs
// the candidate's contents.
func (e *LoggingEngine) InsertL2Candidate(ctx context.Context, candidate *derive.L2BlockCandidate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Info("inserting L2 candidate", "number", candidate.Number, "timestamp", candidate.Timestamp, "txs", len(candidate.Transactions))

	e.head = eth.L2BlockRef{
		Number: candidate.Number,
		Time:   candidate.Timestamp,
	}
	return nil
}
