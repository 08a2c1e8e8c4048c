package contractCaller

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/withdrawal"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// OnChainAssetRegistry reads token balances from the chain.
type OnChainAssetRegistry struct {
	caller IContractCaller
}

func NewOnChainAssetRegistry(caller IContractCaller) *OnChainAssetRegistry {
	return &OnChainAssetRegistry{caller: caller}
}

func (r *OnChainAssetRegistry) BalanceOf(ctx context.Context, token common.Address, account common.Address) (*big.Int, error) {
	return r.caller.BalanceOf(ctx, token, account)
}

// OnChainWallet drives a deployed Safe through its module interface.
type OnChainWallet struct {
	caller IContractCaller
	logger *zap.Logger
}

func NewOnChainWallet(caller IContractCaller, logger *zap.Logger) *OnChainWallet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnChainWallet{caller: caller, logger: logger}
}

func (w *OnChainWallet) IsOwner(ctx context.Context, wallet common.Address, addr common.Address) (bool, error) {
	return w.caller.IsOwner(ctx, wallet, addr)
}

func (w *OnChainWallet) ExecTransactionFromModule(
	ctx context.Context,
	wallet common.Address,
	to common.Address,
	value *big.Int,
	data []byte,
	operation types.Operation,
) (bool, error) {
	result, err := w.caller.ExecTransactionFromModule(ctx, wallet, to, value, data, operation)
	if err != nil {
		return false, err
	}
	if result.Receipt != nil && !result.Success {
		w.logger.Sugar().Warnw("Safe reported module execution failure",
			"wallet", wallet.Hex(),
			"txHash", result.Receipt.TxHash.Hex(),
			"status", result.Receipt.Status,
		)
	}
	return result.Success, nil
}

var (
	_ withdrawal.IAssetRegistry     = (*OnChainAssetRegistry)(nil)
	_ withdrawal.IControllingWallet = (*OnChainWallet)(nil)
)

// OnChainModule serializes withdrawals against a deployed Safe. A claim's balance check
// and its module transaction run under one lock, so a concurrent claim sees the prior
// transfer and the module account never races itself for a nonce.
type OnChainModule struct {
	module *withdrawal.Module
	mu     sync.Mutex
}

// NewOnChainModule builds a withdrawal module whose capabilities are backed by caller.
// Any AssetRegistry or Wallet already set on cfg is replaced.
func NewOnChainModule(cfg *withdrawal.ModuleConfig, caller IContractCaller, logger *zap.Logger) (*OnChainModule, error) {
	if cfg == nil {
		return nil, fmt.Errorf("module config cannot be nil")
	}
	if caller == nil {
		return nil, fmt.Errorf("contract caller cannot be nil")
	}
	moduleCfg := *cfg
	moduleCfg.AssetRegistry = NewOnChainAssetRegistry(caller)
	moduleCfg.Wallet = NewOnChainWallet(caller, logger)
	module, err := withdrawal.NewModule(&moduleCfg, logger)
	if err != nil {
		return nil, err
	}
	return &OnChainModule{module: module}, nil
}

func (m *OnChainModule) Module() *withdrawal.Module {
	return m.module
}

func (m *OnChainModule) Withdraw(ctx context.Context, claim *types.WithdrawalClaim) (*types.WithdrawalReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.module.Withdraw(ctx, claim)
}

// CheckModuleEnabled returns an error if the caller's module address is not enabled on
// wallet. Withdrawals would otherwise fail with ExecutionFailed.
func CheckModuleEnabled(ctx context.Context, caller IContractCaller, wallet common.Address) error {
	module := caller.ModuleAddress()
	enabled, err := caller.IsModuleEnabled(ctx, wallet, module)
	if err != nil {
		return err
	}
	if !enabled {
		return fmt.Errorf("module %s is not enabled on safe %s", module.Hex(), wallet.Hex())
	}
	return nil
}
