package monitor

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/blockHandler"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// IModuleReader is the read side of the on-chain caller.
type IModuleReader interface {
	BalanceOf(ctx context.Context, token common.Address, account common.Address) (*big.Int, error)
	GetOwners(ctx context.Context, wallet common.Address) ([]common.Address, error)
	GetThreshold(ctx context.Context, wallet common.Address) (uint64, error)
	IsModuleEnabled(ctx context.Context, wallet common.Address, module common.Address) (bool, error)
}

type Config struct {
	TokenAsset        common.Address
	ControllingWallet common.Address
	Module            common.Address
	// CheckEvery re-reads state on every n-th block. Defaults to 1.
	CheckEvery uint64
}

// ModuleMonitor keeps a per-block snapshot of the wallet's owners, threshold, balance and
// whether the module is still enabled. Withdrawals never read it.
type ModuleMonitor struct {
	cfg    Config
	reader IModuleReader
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	status *types.ModuleStatus
}

func NewModuleMonitor(cfg *Config, reader IModuleReader, logger *zap.Logger) (*ModuleMonitor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("monitor config cannot be nil")
	}
	if reader == nil {
		return nil, fmt.Errorf("module reader cannot be nil")
	}
	if cfg.Module == (common.Address{}) {
		return nil, fmt.Errorf("module address cannot be the zero address")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := *cfg
	if c.CheckEvery == 0 {
		c.CheckEvery = 1
	}
	return &ModuleMonitor{cfg: c, reader: reader, logger: logger, now: time.Now}, nil
}

// Status returns a copy of the latest snapshot, or nil before the first check.
func (m *ModuleMonitor) Status() *types.ModuleStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == nil {
		return nil
	}
	s := *m.status
	s.Owners = append([]string(nil), m.status.Owners...)
	return &s
}

// Refresh reads the module's standing at blockNumber. A read failure is recorded in the
// snapshot's Error field and returned.
func (m *ModuleMonitor) Refresh(ctx context.Context, blockNumber uint64) (*types.ModuleStatus, error) {
	status, err := m.read(ctx)
	status.BlockNumber = blockNumber
	status.CheckedAt = m.now().Unix()
	if err != nil {
		status.Error = err.Error()
	}

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	switch {
	case err != nil:
		m.logger.Sugar().Warnw("Failed to refresh module status", "block", blockNumber, "error", err)
	case !status.ModuleEnabled && (previous == nil || previous.ModuleEnabled):
		m.logger.Sugar().Warnw("Withdrawal module is not enabled on the controlling wallet",
			"wallet", m.cfg.ControllingWallet.Hex(),
			"module", m.cfg.Module.Hex(),
			"block", blockNumber,
		)
	case status.ModuleEnabled && previous != nil && !previous.ModuleEnabled:
		m.logger.Sugar().Infow("Withdrawal module enabled", "block", blockNumber)
	}
	return m.Status(), err
}

func (m *ModuleMonitor) read(ctx context.Context) (*types.ModuleStatus, error) {
	status := &types.ModuleStatus{Owners: []string{}}

	enabled, err := m.reader.IsModuleEnabled(ctx, m.cfg.ControllingWallet, m.cfg.Module)
	if err != nil {
		return status, err
	}
	status.ModuleEnabled = enabled

	owners, err := m.reader.GetOwners(ctx, m.cfg.ControllingWallet)
	if err != nil {
		return status, err
	}
	for _, o := range owners {
		status.Owners = append(status.Owners, o.Hex())
	}

	if status.Threshold, err = m.reader.GetThreshold(ctx, m.cfg.ControllingWallet); err != nil {
		return status, err
	}

	balance, err := m.reader.BalanceOf(ctx, m.cfg.TokenAsset, m.cfg.ControllingWallet)
	if err != nil {
		return status, err
	}
	status.Balance = balance.String()
	return status, nil
}

func (m *ModuleMonitor) onBlock(ctx context.Context, block *ethereum.EthereumBlock) {
	n := block.Number.Value()
	if m.Status() != nil && n%m.cfg.CheckEvery != 0 {
		return
	}
	_, _ = m.Refresh(ctx, n)
}

// Run refreshes on blocks delivered to bh until ctx is done.
func (m *ModuleMonitor) Run(ctx context.Context, bh blockHandler.IBlockHandler) {
	bh.ListenToChannel(ctx, func(block *ethereum.EthereumBlock) {
		m.onBlock(ctx, block)
	})
}
