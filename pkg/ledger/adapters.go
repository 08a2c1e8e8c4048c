package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

type assetRegistry struct {
	chain *Chain
}

func (a *assetRegistry) BalanceOf(ctx context.Context, token common.Address, account common.Address) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := a.chain.token(token)
	if !ok {
		return nil, fmt.Errorf("no token deployed at %s", token.Hex())
	}
	return t.BalanceOf(account), nil
}

type moduleWallet struct {
	chain  *Chain
	module common.Address
}

func (w *moduleWallet) IsOwner(ctx context.Context, wallet common.Address, addr common.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	safe, ok := w.chain.Safe(wallet)
	if !ok {
		return false, fmt.Errorf("no safe deployed at %s", wallet.Hex())
	}
	return safe.IsOwner(addr), nil
}

// ExecTransactionFromModule must be called inside Chain.Atomically, which HostedModule does.
func (w *moduleWallet) ExecTransactionFromModule(
	ctx context.Context,
	wallet common.Address,
	to common.Address,
	value *big.Int,
	data []byte,
	operation types.Operation,
) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	safe, ok := w.chain.Safe(wallet)
	if !ok {
		return false, fmt.Errorf("no safe deployed at %s", wallet.Hex())
	}
	return safe.execTransactionFromModule(w.module, to, value, data, operation)
}
