// Package rollup holds the chain configuration consumed by the derivation
// pipeline: protocol constants (block time, channel timeout, sequencing
// window size), genesis anchors, and the system config committed to at
// genesis.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trianglesphere/gonode/components/node/eth"
)

// Genesis anchors the L1 and L2 chains the rollup started from, along with
// the system config (batcher address, fee scalars) active at that point.
type Genesis struct {
	L1           eth.BlockID      `json:"l1"`
	L2           eth.BlockID      `json:"l2"`
	L2Time       uint64           `json:"l2_time"`
	SystemConfig eth.SystemConfig `json:"system_config"`
}

// Config is the chain configuration of a single rollup instance. Every
// protocol constant spec.md fixes (MAX_CHANNEL_BANK_SIZE excepted, which is
// process-wide rather than per-chain) is a field here instead of a
// hardcoded constant, so a chain config file can set it per network.
type Config struct {
	Genesis Genesis `json:"genesis"`

	// BlockTime is the L2 block time in seconds (spec.md's L2_BLOCK_TIME).
	BlockTime uint64 `json:"block_time"`
	// MaxProposerDrift bounds how far a batch's timestamp may lag the L1
	// origin's timestamp before the batch would be rejected by a full
	// validity check (bookkeeping only; the core batch queue doesn't
	// enforce it, see spec.md Open Question 4).
	MaxProposerDrift uint64 `json:"max_proposer_drift"`
	// ProposerWindowSize is the sequencing window size in L1 blocks
	// (spec.md's SEQ_WINDOW_SIZE).
	ProposerWindowSize uint64 `json:"seq_window_size"`
	// ChannelTimeout is the number of L1 blocks a channel may remain open
	// for before being dropped (spec.md's CHANNEL_TIMEOUT).
	ChannelTimeout uint64 `json:"channel_timeout"`

	L1ChainID *big.Int `json:"l1_chain_id"`
	L2ChainID *big.Int `json:"l2_chain_id"`

	// BatchInboxAddress is the well-known batcher address frames are
	// filtered by (spec.md §4.1).
	BatchInboxAddress common.Address `json:"batch_inbox_address"`
	// DepositContractAddress and L1SystemConfigAddress are acknowledged
	// per spec.md §1 ("the hooks are acknowledged") but never read by the
	// core; they exist so a full derivation pipeline built on top of this
	// one has somewhere to keep them.
	DepositContractAddress common.Address `json:"deposit_contract_address"`
	L1SystemConfigAddress  common.Address `json:"l1_system_config_address"`
}

var (
	ErrBlockTimeZero                 = errors.New("block time cannot be 0")
	ErrMissingChannelTimeout         = errors.New("channel timeout must be set, this should be longer than any L1 RPC is expected to be down for")
	ErrInvalidProposerWindowSize     = errors.New("proposer window size must at least be 2")
	ErrMissingGenesisL1Hash          = errors.New("genesis L1 hash cannot be empty")
	ErrMissingGenesisL2Hash          = errors.New("genesis L2 hash cannot be empty")
	ErrGenesisHashesSame             = errors.New("achievement get! genesis L1 and L2 hashes are the same")
	ErrMissingGenesisL2Time          = errors.New("missing L2 genesis time")
	ErrMissingBatcherAddr            = errors.New("missing genesis system config batcher address")
	ErrMissingOverhead               = errors.New("missing genesis system config overhead")
	ErrMissingScalar                 = errors.New("missing genesis system config scalar")
	ErrMissingGasLimit               = errors.New("missing genesis system config gas limit")
	ErrMissingBatchInboxAddress      = errors.New("missing batch inbox address")
	ErrMissingDepositContractAddress = errors.New("missing deposit contract address")
	ErrMissingL1ChainID              = errors.New("L1 chain ID must not be nil")
	ErrMissingL2ChainID              = errors.New("L2 chain ID must not be nil")
	ErrChainIDsSame                  = errors.New("L1 and L2 chain IDs must be different")
	ErrL1ChainIDNotPositive          = errors.New("L1 chain ID must be non-zero and positive")
	ErrL2ChainIDNotPositive          = errors.New("L2 chain ID must be non-zero and positive")
)

// Check validates the config for sanity. It does not make any network
// calls; use ValidateL1Config / ValidateL2Config for that.
func (cfg *Config) Check() error {
	if cfg.BlockTime == 0 {
		return ErrBlockTimeZero
	}
	if cfg.ChannelTimeout == 0 {
		return ErrMissingChannelTimeout
	}
	if cfg.ProposerWindowSize < 2 {
		return ErrInvalidProposerWindowSize
	}
	if cfg.Genesis.L1.Hash == (common.Hash{}) {
		return ErrMissingGenesisL1Hash
	}
	if cfg.Genesis.L2.Hash == (common.Hash{}) {
		return ErrMissingGenesisL2Hash
	}
	if cfg.Genesis.L1.Hash == cfg.Genesis.L2.Hash {
		return ErrGenesisHashesSame
	}
	if cfg.Genesis.L2Time == 0 {
		return ErrMissingGenesisL2Time
	}
	if cfg.Genesis.SystemConfig.BatcherAddr == (common.Address{}) {
		return ErrMissingBatcherAddr
	}
	if cfg.Genesis.SystemConfig.Overhead == (eth.Bytes32{}) {
		return ErrMissingOverhead
	}
	if cfg.Genesis.SystemConfig.Scalar == (eth.Bytes32{}) {
		return ErrMissingScalar
	}
	if cfg.Genesis.SystemConfig.GasLimit == 0 {
		return ErrMissingGasLimit
	}
	if cfg.BatchInboxAddress == (common.Address{}) {
		return ErrMissingBatchInboxAddress
	}
	if cfg.DepositContractAddress == (common.Address{}) {
		return ErrMissingDepositContractAddress
	}
	if cfg.L1ChainID == nil {
		return ErrMissingL1ChainID
	}
	if cfg.L2ChainID == nil {
		return ErrMissingL2ChainID
	}
	if cfg.L1ChainID.Cmp(cfg.L2ChainID) == 0 {
		return ErrChainIDsSame
	}
	if cfg.L1ChainID.Sign() <= 0 {
		return ErrL1ChainIDNotPositive
	}
	if cfg.L2ChainID.Sign() <= 0 {
		return ErrL2ChainIDNotPositive
	}
	return nil
}

// L1Client is the subset of an L1 RPC client needed to validate a Config
// against the live L1 chain it claims to follow.
type L1Client interface {
	ChainID(context.Context) (*big.Int, error)
	L1BlockRefByNumber(ctx context.Context, num uint64) (eth.L1BlockRef, error)
}

// L2Client is the L2 analogue of L1Client.
type L2Client interface {
	ChainID(context.Context) (*big.Int, error)
	L2BlockRefByNumber(ctx context.Context, num uint64) (eth.L2BlockRef, error)
}

// CheckL1ChainID checks that the configured L1 chain ID matches the given
// client's.
func (cfg *Config) CheckL1ChainID(ctx context.Context, client L1Client) error {
	id, err := client.ChainID(ctx)
	if err != nil {
		return err
	}
	if cfg.L1ChainID.Cmp(id) != 0 {
		return fmt.Errorf("incorrect L1 RPC chain id %d, expected %d", id, cfg.L1ChainID)
	}
	return nil
}

// CheckL2ChainID checks that the configured L2 chain ID matches the given
// client's.
func (cfg *Config) CheckL2ChainID(ctx context.Context, client L2Client) error {
	id, err := client.ChainID(ctx)
	if err != nil {
		return err
	}
	if cfg.L2ChainID.Cmp(id) != 0 {
		return fmt.Errorf("incorrect L2 RPC chain id %d, expected %d", id, cfg.L2ChainID)
	}
	return nil
}

// CheckL1GenesisBlockHash checks that the L1 genesis block hash the config
// claims matches what the given client reports for that block number.
func (cfg *Config) CheckL1GenesisBlockHash(ctx context.Context, client L1Client) error {
	ref, err := client.L1BlockRefByNumber(ctx, cfg.Genesis.L1.Number)
	if err != nil {
		return fmt.Errorf("failed to fetch L1 genesis block %d: %w", cfg.Genesis.L1.Number, err)
	}
	if ref.Hash != cfg.Genesis.L1.Hash {
		return fmt.Errorf("incorrect L1 genesis block hash %s, expected %s", ref.Hash, cfg.Genesis.L1.Hash)
	}
	return nil
}

// CheckL2GenesisBlockHash is the L2 analogue of CheckL1GenesisBlockHash.
func (cfg *Config) CheckL2GenesisBlockHash(ctx context.Context, client L2Client) error {
	ref, err := client.L2BlockRefByNumber(ctx, cfg.Genesis.L2.Number)
	if err != nil {
		return fmt.Errorf("failed to fetch L2 genesis block %d: %w", cfg.Genesis.L2.Number, err)
	}
	if ref.Hash != cfg.Genesis.L2.Hash {
		return fmt.Errorf("incorrect L2 genesis block hash %s, expected %s", ref.Hash, cfg.Genesis.L2.Hash)
	}
	return nil
}

// ValidateL1Config checks the L1 chain ID and genesis block hash against a
// live L1 client.
func (cfg *Config) ValidateL1Config(ctx context.Context, client L1Client) error {
	if err := cfg.CheckL1ChainID(ctx, client); err != nil {
		return err
	}
	return cfg.CheckL1GenesisBlockHash(ctx, client)
}

// ValidateL2Config is the L2 analogue of ValidateL1Config.
func (cfg *Config) ValidateL2Config(ctx context.Context, client L2Client) error {
	if err := cfg.CheckL2ChainID(ctx, client); err != nil {
		return err
	}
	return cfg.CheckL2GenesisBlockHash(ctx, client)
}
