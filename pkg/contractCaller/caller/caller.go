package caller

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/middleware-bindings/IERC20"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/middleware-bindings/ISafe"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ContractCaller reads ERC20 balances and Safe state and sends module transactions
// through a transaction signer. The signer's address is the module address.
type ContractCaller struct {
	ethclient bind.ContractBackend
	signer    transactionSigner.ITransactionSigner
	logger    *zap.Logger

	safeAbi *abi.ABI
}

// NewContractCallerFromEthereumClient dials the client's RPC endpoint for contract calls.
func NewContractCallerFromEthereumClient(
	ethClient *ethereum.EthereumClient,
	signer transactionSigner.ITransactionSigner,
	logger *zap.Logger,
) (*ContractCaller, error) {
	client, err := ethClient.GetEthereumContractCaller()
	if err != nil {
		return nil, err
	}

	return NewContractCaller(client, signer, logger)
}

// NewContractCaller builds a caller over any contract backend. signer may be nil for a
// read-only caller.
func NewContractCaller(
	ethclient bind.ContractBackend,
	signer transactionSigner.ITransactionSigner,
	logger *zap.Logger,
) (*ContractCaller, error) {
	if ethclient == nil {
		return nil, fmt.Errorf("ethereum client cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	safeAbi, err := ISafe.ISafeMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("failed to parse safe ABI: %w", err)
	}

	return &ContractCaller{
		ethclient: ethclient,
		signer:    signer,
		logger:    logger,
		safeAbi:   safeAbi,
	}, nil
}

// ModuleAddress is the address module transactions are sent from, or the zero address
// for a read-only caller.
func (cc *ContractCaller) ModuleAddress() common.Address {
	if cc.signer == nil {
		return common.Address{}
	}
	return cc.signer.GetFromAddress()
}

func (cc *ContractCaller) safe(wallet common.Address) (*ISafe.ISafe, error) {
	safe, err := ISafe.NewISafe(wallet, cc.ethclient)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to bind safe at %s", wallet.Hex())
	}
	return safe, nil
}

func (cc *ContractCaller) BalanceOf(ctx context.Context, token common.Address, account common.Address) (*big.Int, error) {
	erc20, err := IERC20.NewIERC20Caller(token, cc.ethclient)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to bind token at %s", token.Hex())
	}
	balance, err := erc20.BalanceOf(&bind.CallOpts{Context: ctx}, account)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get balance of %s on token %s", account.Hex(), token.Hex())
	}
	return balance, nil
}

func (cc *ContractCaller) IsOwner(ctx context.Context, wallet common.Address, addr common.Address) (bool, error) {
	safe, err := cc.safe(wallet)
	if err != nil {
		return false, err
	}
	isOwner, err := safe.IsOwner(&bind.CallOpts{Context: ctx}, addr)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check owner %s on safe %s", addr.Hex(), wallet.Hex())
	}
	return isOwner, nil
}

func (cc *ContractCaller) GetOwners(ctx context.Context, wallet common.Address) ([]common.Address, error) {
	safe, err := cc.safe(wallet)
	if err != nil {
		return nil, err
	}
	owners, err := safe.GetOwners(&bind.CallOpts{Context: ctx})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get owners of safe %s", wallet.Hex())
	}
	return owners, nil
}

func (cc *ContractCaller) GetThreshold(ctx context.Context, wallet common.Address) (uint64, error) {
	safe, err := cc.safe(wallet)
	if err != nil {
		return 0, err
	}
	threshold, err := safe.GetThreshold(&bind.CallOpts{Context: ctx})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get threshold of safe %s", wallet.Hex())
	}
	return threshold.Uint64(), nil
}

func (cc *ContractCaller) IsModuleEnabled(ctx context.Context, wallet common.Address, module common.Address) (bool, error) {
	safe, err := cc.safe(wallet)
	if err != nil {
		return false, err
	}
	enabled, err := safe.IsModuleEnabled(&bind.CallOpts{Context: ctx}, module)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check module %s on safe %s", module.Hex(), wallet.Hex())
	}
	return enabled, nil
}
