// Package ledger is an in-process host for the withdrawal module: a token ledger and
// Safe-style wallets executing on a single serialized "chain". It backs the simulate
// command and the engine tests.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/withdrawal"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Chain serializes every state transition through one lock, the way a block orders
// transactions. Reads do not take the transaction lock.
type Chain struct {
	txMu sync.Mutex

	mu     sync.RWMutex
	tokens map[common.Address]*TokenLedger
	safes  map[common.Address]*SafeWallet

	logger *zap.Logger
}

func NewChain(logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		tokens: make(map[common.Address]*TokenLedger),
		safes:  make(map[common.Address]*SafeWallet),
		logger: logger,
	}
}

// Atomically runs fn as a single transaction. fn must not call back into exported
// mutators of the chain, its tokens or its wallets.
func (c *Chain) Atomically(fn func() error) error {
	c.txMu.Lock()
	defer c.txMu.Unlock()
	return fn()
}

func (c *Chain) DeployToken(address common.Address) (*TokenLedger, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("token address cannot be the zero address")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.occupiedLocked(address) {
		return nil, fmt.Errorf("address %s already has code", address.Hex())
	}
	token := newTokenLedger(c, address)
	c.tokens[address] = token

	c.logger.Sugar().Debugw("Deployed token", "address", address.Hex())
	return token, nil
}

func (c *Chain) DeploySafe(address common.Address, owners []common.Address, threshold uint64) (*SafeWallet, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("safe address cannot be the zero address")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.occupiedLocked(address) {
		return nil, fmt.Errorf("address %s already has code", address.Hex())
	}
	safe, err := newSafeWallet(c, address, owners, threshold, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy safe: %w", err)
	}
	c.safes[address] = safe

	c.logger.Sugar().Debugw("Deployed safe",
		"address", address.Hex(),
		"owners", len(owners),
		"threshold", threshold,
	)
	return safe, nil
}

func (c *Chain) Token(address common.Address) (*TokenLedger, bool) {
	return c.token(address)
}

func (c *Chain) Safe(address common.Address) (*SafeWallet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.safes[address]
	return s, ok
}

func (c *Chain) token(address common.Address) (*TokenLedger, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tokens[address]
	return t, ok
}

func (c *Chain) occupiedLocked(address common.Address) bool {
	_, isToken := c.tokens[address]
	_, isSafe := c.safes[address]
	return isToken || isSafe
}

// AssetRegistry exposes token balances to the engine.
func (c *Chain) AssetRegistry() withdrawal.IAssetRegistry {
	return &assetRegistry{chain: c}
}

// WalletFor exposes wallets to the engine, executing as the given module address.
func (c *Chain) WalletFor(module common.Address) withdrawal.IControllingWallet {
	return &moduleWallet{chain: c, module: module}
}

// HostedModule runs a withdrawal module on the chain.
type HostedModule struct {
	chain   *Chain
	address common.Address
	module  *withdrawal.Module
}

// DeployModule builds a withdrawal module bound to the chain's capabilities. The module
// only works once an owner-approved transaction enables address on the wallet.
func (c *Chain) DeployModule(address common.Address, cfg *withdrawal.ModuleConfig, logger *zap.Logger) (*HostedModule, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("module address cannot be the zero address")
	}
	if cfg == nil {
		return nil, fmt.Errorf("module config cannot be nil")
	}
	moduleCfg := *cfg
	moduleCfg.AssetRegistry = c.AssetRegistry()
	moduleCfg.Wallet = c.WalletFor(address)

	module, err := withdrawal.NewModule(&moduleCfg, logger)
	if err != nil {
		return nil, err
	}
	return &HostedModule{chain: c, address: address, module: module}, nil
}

func (h *HostedModule) Address() common.Address {
	return h.address
}

func (h *HostedModule) Module() *withdrawal.Module {
	return h.module
}

func (h *HostedModule) TokenAsset() common.Address {
	return h.module.TokenAsset()
}

func (h *HostedModule) ControllingWallet() common.Address {
	return h.module.ControllingWallet()
}

// Withdraw runs the engine as one chain transaction, so concurrent claims observe each
// other's balance changes.
func (h *HostedModule) Withdraw(ctx context.Context, claim *types.WithdrawalClaim) (*types.WithdrawalReceipt, error) {
	var receipt *types.WithdrawalReceipt
	err := h.chain.Atomically(func() error {
		var err error
		receipt, err = h.module.Withdraw(ctx, claim)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
