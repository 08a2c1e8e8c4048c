package contractCaller

import (
	"context"
	"math/big"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

type IContractCaller interface {
	// ModuleAddress is the address module transactions are sent from.
	ModuleAddress() common.Address

	BalanceOf(ctx context.Context, token common.Address, account common.Address) (*big.Int, error)

	IsOwner(ctx context.Context, wallet common.Address, addr common.Address) (bool, error)

	GetOwners(ctx context.Context, wallet common.Address) ([]common.Address, error)

	GetThreshold(ctx context.Context, wallet common.Address) (uint64, error)

	IsModuleEnabled(ctx context.Context, wallet common.Address, module common.Address) (bool, error)

	ExecTransactionFromModule(
		ctx context.Context,
		wallet common.Address,
		to common.Address,
		value *big.Int,
		data []byte,
		operation types.Operation,
	) (*caller.ModuleExecution, error)
}

var _ IContractCaller = (*caller.ContractCaller)(nil)
