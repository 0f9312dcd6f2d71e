package driver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	gosync "sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/trianglesphere/gonode/components/node/eth"
	"github.com/trianglesphere/gonode/components/node/rollup"
	"github.com/trianglesphere/gonode/components/node/rollup/derive"
	"github.com/trianglesphere/gonode/utils/service/backoff"
)

// Pipeline is the subset of *derive.Derivation the driver depends on: a
// single-step advance, a way to discard buffered state, and the highest L1
// block ingested so far. It is satisfied directly by *derive.Derivation;
// the interface only exists so a test can swap in a fake.
type Pipeline interface {
	Step(ctx context.Context) error
	Reset()
	Origin() eth.L1BlockRef
}

// Driver runs the derivation pipeline's step loop against a stream of L1
// head signals, retrying on temporary failure with backoff and resetting
// on reorg, until told to stop.
type Driver struct {
	derivation Pipeline

	// Requests to block the event loop for synchronous execution, to
	// avoid reading an inconsistent status mid-step.
	stateReq chan chan struct{}

	// Upon receiving a channel here, the derivation pipeline is forced to
	// reset. The caller is told the reset occurred by the channel closing.
	forceReset chan chan struct{}

	l1HeadSig chan eth.L1BlockRef
	l1Head    eth.L1BlockRef

	config *rollup.Config

	metrics     derive.Metrics
	log         log.Logger
	snapshotLog log.Logger
	done        chan struct{}

	wg gosync.WaitGroup
}

// NewDriver wires a Driver around an already-constructed derivation
// pipeline.
func NewDriver(logger, snapshotLog log.Logger, config *rollup.Config, derivation Pipeline, metrics derive.Metrics) *Driver {
	return &Driver{
		derivation:  derivation,
		stateReq:    make(chan chan struct{}),
		forceReset:  make(chan chan struct{}),
		l1HeadSig:   make(chan eth.L1BlockRef, 10),
		config:      config,
		metrics:     metrics,
		log:         logger,
		snapshotLog: snapshotLog,
		done:        make(chan struct{}),
	}
}

// Start starts up the event loop. The loop will have started iff err is nil.
func (s *Driver) Start() error {
	s.derivation.Reset()

	s.wg.Add(1)
	go s.eventLoop()

	return nil
}

func (s *Driver) Close() error {
	close(s.done)
	s.wg.Wait()
	return nil
}

// OnL1Head signals the driver that the L1 chain's head (the "unsafe" or
// "latest" block) has changed.
//
// Not all L1 blocks, or all changes, have to be signaled: the derivation
// process traverses the chain and handles reorgs as necessary, the driver
// just needs to be aware of the *latest* signal enough to not lag behind
// actionable data.
func (s *Driver) OnL1Head(ctx context.Context, head eth.L1BlockRef) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.l1HeadSig <- head:
		return nil
	}
}

// eventLoop responds to L1 head signals and internal timers to step the
// derivation pipeline forward.
func (s *Driver) eventLoop() {
	defer s.wg.Done()
	s.log.Info("State loop started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// stepReqCh is used to request that the driver attempts to step
	// forward by one L1 block.
	stepReqCh := make(chan struct{}, 1)

	// channel, nil by default (not firing), but used to schedule
	// re-attempts with delay.
	var delayedStepReq <-chan time.Time

	// keep track of consecutive failed attempts, to adjust the backoff
	// time accordingly.
	bOffStrategy := backoff.Exponential()
	stepAttempts := 0

	// step requests a derivation step to be taken. Won't deadlock if the
	// channel is full.
	step := func() {
		select {
		case stepReqCh <- struct{}{}:
		default:
		}
	}

	// reqStep requests a derivation step nicely, with a delay if this is
	// a reattempt, or not at all if a reattempt is already scheduled.
	reqStep := func() {
		if stepAttempts > 0 {
			if delayedStepReq == nil {
				delay := bOffStrategy.Duration(stepAttempts)
				s.log.Debug("scheduling re-attempt with delay", "attempts", stepAttempts, "delay", delay)
				delayedStepReq = time.After(delay)
			} else {
				s.log.Debug("ignoring step request, already scheduled re-attempt after previous failure", "attempts", stepAttempts)
			}
		} else {
			step()
		}
	}

	// We call reqStep right away to finish syncing to the tip of the
	// chain if we're behind. reqStep will also be triggered when the L1
	// head moves forward or there was a reorg we need to handle.
	reqStep()

	for {
		select {
		case newL1Head := <-s.l1HeadSig:
			s.l1Head = newL1Head
			s.snapshot("New L1 head")
			reqStep() // a new L1 head may mean we have the data to not get NotEnoughData again.
		case <-delayedStepReq:
			delayedStepReq = nil
			step()
		case <-stepReqCh:
			s.metrics.SetDerivationIdle(false)
			s.log.Debug("Derivation process step", "onto_origin", s.derivation.Origin(), "attempts", stepAttempts)
			err := s.derivation.Step(ctx)
			stepAttempts++ // count as attempt by default; reset to 0 on healthy progress.
			switch {
			case errors.Is(err, io.EOF):
				s.log.Debug("Derivation process went idle", "progress", s.derivation.Origin())
				stepAttempts = 0
				s.metrics.SetDerivationIdle(true)
			case errors.Is(err, derive.ErrReset):
				s.log.Warn("Derivation pipeline is reset", "err", err)
				s.derivation.Reset()
				s.metrics.RecordPipelineReset()
			case errors.Is(err, derive.ErrTemporary):
				s.log.Warn("Derivation process temporary error", "attempts", stepAttempts, "err", err)
				reqStep()
			case errors.Is(err, derive.ErrCritical):
				s.log.Error("Derivation process critical error", "err", err)
				return
			case errors.Is(err, derive.NotEnoughData):
				stepAttempts = 0 // don't back off for this error
				reqStep()
			case err != nil:
				s.log.Error("Derivation process error", "attempts", stepAttempts, "err", err)
				reqStep()
			default:
				stepAttempts = 0
				reqStep() // continue with the next step if we can
			}
		case respCh := <-s.stateReq:
			respCh <- struct{}{}
		case respCh := <-s.forceReset:
			s.log.Warn("Derivation pipeline is manually reset")
			s.derivation.Reset()
			s.metrics.RecordPipelineReset()
			close(respCh)
		case <-s.done:
			return
		}
	}
}

// ResetDerivationPipeline forces a reset of the derivation pipeline and
// waits for it to occur, rather than fully cancelling the request if ctx
// expires.
func (s *Driver) ResetDerivationPipeline(ctx context.Context) error {
	respCh := make(chan struct{}, 1)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.forceReset <- respCh:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-respCh:
			return nil
		}
	}
}

// syncStatus returns the current sync status, and should only be called
// synchronously with the driver event loop to avoid an inconsistent read.
func (s *Driver) syncStatus() *eth.SyncStatus {
	return &eth.SyncStatus{
		CurrentL1: s.derivation.Origin(),
		HeadL1:    s.l1Head,
	}
}

// SyncStatus blocks the driver event loop and captures the syncing
// status. If the event loop is too busy and ctx expires, a context error
// is returned.
func (s *Driver) SyncStatus(ctx context.Context) (*eth.SyncStatus, error) {
	wait := make(chan struct{})
	select {
	case s.stateReq <- wait:
		resp := s.syncStatus()
		<-wait
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deferJSONString helps avoid a JSON-encoding performance hit if the
// snapshot logger does not run.
type deferJSONString struct {
	x any
}

func (v deferJSONString) String() string {
	out, _ := json.Marshal(v.x)
	return string(out)
}

func (s *Driver) snapshot(event string) {
	s.snapshotLog.Info("Rollup State Snapshot",
		"event", event,
		"l1Head", deferJSONString{s.l1Head},
		"l1Current", deferJSONString{s.derivation.Origin()})
}
