// Package testutils holds hand-rolled test doubles shared across the
// rollup packages' test files, grounded in the same simple field-backed
// mock style used throughout the rollup config tests.
package testutils

import (
	"context"
	"errors"
	gosync "sync"

	"github.com/trianglesphere/gonode/components/node/eth"
	"github.com/trianglesphere/gonode/components/node/rollup/derive"
)

// MockL1Source is a canned derive.L1Fetcher keyed by L1 block number.
type MockL1Source struct {
	Refs     map[uint64]eth.L1BlockRef
	Txs      map[uint64][]eth.Transaction
	Receipts map[uint64][]eth.Receipt
}

// NewMockL1Source returns an empty source; populate its maps before use.
func NewMockL1Source() *MockL1Source {
	return &MockL1Source{
		Refs:     make(map[uint64]eth.L1BlockRef),
		Txs:      make(map[uint64][]eth.Transaction),
		Receipts: make(map[uint64][]eth.Receipt),
	}
}

func (m *MockL1Source) L1BlockRefByNumber(_ context.Context, num uint64) (eth.L1BlockRef, error) {
	ref, ok := m.Refs[num]
	if !ok {
		return eth.L1BlockRef{}, errors.New("testutils: no L1 block at that number")
	}
	return ref, nil
}

func (m *MockL1Source) InfoAndTxsByNumber(_ context.Context, num uint64) (eth.L1BlockRef, []eth.Transaction, error) {
	ref, ok := m.Refs[num]
	if !ok {
		return eth.L1BlockRef{}, nil, errors.New("testutils: no L1 block at that number")
	}
	return ref, m.Txs[num], nil
}

func (m *MockL1Source) ReceiptsByNumber(_ context.Context, num uint64) ([]eth.Receipt, error) {
	if _, ok := m.Refs[num]; !ok {
		return nil, errors.New("testutils: no L1 block at that number")
	}
	return m.Receipts[num], nil
}

// MockEngine is a canned derive.Engine tracking a single unsafe L2 head and
// recording every candidate handed to it.
type MockEngine struct {
	Head       eth.L2BlockRef
	Candidates []*derive.L2BlockCandidate
	InsertErr  error
}

func (m *MockEngine) UnsafeL2Head() eth.L2BlockRef {
	return m.Head
}

func (m *MockEngine) InsertL2Candidate(_ context.Context, candidate *derive.L2BlockCandidate) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.Candidates = append(m.Candidates, candidate)
	return nil
}

// TestDerivationMetrics is a no-op derive.Metrics that records the last
// value of each observation for assertions.
type TestDerivationMetrics struct {
	Idle       bool
	ResetCount int
	LastL1Ref  map[string]eth.L1BlockRef
	LastL2Ref  map[string]eth.L2BlockRef
}

func NewTestDerivationMetrics() *TestDerivationMetrics {
	return &TestDerivationMetrics{
		LastL1Ref: make(map[string]eth.L1BlockRef),
		LastL2Ref: make(map[string]eth.L2BlockRef),
	}
}

func (m *TestDerivationMetrics) RecordL1Ref(name string, ref eth.L1BlockRef) {
	m.LastL1Ref[name] = ref
}

func (m *TestDerivationMetrics) RecordL2Ref(name string, ref eth.L2BlockRef) {
	m.LastL2Ref[name] = ref
}

func (m *TestDerivationMetrics) SetDerivationIdle(idle bool) {
	m.Idle = idle
}

func (m *TestDerivationMetrics) RecordPipelineReset() {
	m.ResetCount++
}

// FakePipeline is a driver.Pipeline double that replays a scripted
// sequence of Step errors, one per call, and counts how many times Reset
// is called. Step returns errExhausted if driven past the end of Steps,
// so a test that over-steps fails loudly rather than silently looping.
type FakePipeline struct {
	mu gosync.Mutex

	Steps      []error
	stepCalls  int
	ResetCalls int
	origin     eth.L1BlockRef
}

// NewFakePipeline returns a pipeline that yields steps in order, then
// errExhausted forever after.
func NewFakePipeline(steps ...error) *FakePipeline {
	return &FakePipeline{Steps: steps}
}

var errExhausted = errors.New("testutils: fake pipeline ran out of scripted steps")

func (p *FakePipeline) Step(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stepCalls >= len(p.Steps) {
		p.stepCalls++
		return errExhausted
	}
	err := p.Steps[p.stepCalls]
	p.stepCalls++
	return err
}

func (p *FakePipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ResetCalls++
}

func (p *FakePipeline) Origin() eth.L1BlockRef {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.origin
}

// StepCalls reports how many times Step has been called so far.
func (p *FakePipeline) StepCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stepCalls
}
