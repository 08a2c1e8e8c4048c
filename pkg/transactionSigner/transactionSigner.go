package transactionSigner

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/clients/web3signer"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/config"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ErrTransactionReverted is returned alongside the receipt when a mined transaction has
// status 0.
var ErrTransactionReverted = errors.New("transaction reverted")

// ITransactionSigner provides methods for signing Ethereum transactions
type ITransactionSigner interface {
	// GetTransactOpts returns transaction options for creating unsigned transactions
	GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error)

	// SignAndSendTransaction re-prices, signs and sends tx, then waits for it to be mined.
	// A reverted transaction returns its receipt together with ErrTransactionReverted.
	SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

	// GetFromAddress returns the address that will be used for signing
	GetFromAddress() common.Address

	// EstimateGasPriceAndLimit returns the maxFeePerGas and buffered gas limit tx would be
	// sent with.
	EstimateGasPriceAndLimit(ctx context.Context, tx *types.Transaction) (*big.Int, uint64, error)
}

// EthBackend is the part of *ethclient.Client the signers use.
type EthBackend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

type SignerConfig struct {
	PrivateKey   string                     `json:"privateKey" yaml:"privateKey"`
	RemoteSigner *config.RemoteSignerConfig `json:"remoteSigner,omitempty" yaml:"remoteSigner,omitempty"`
}

// NewTransactionSigner returns a Web3Signer backed signer when a remote signer is
// configured and a private key signer otherwise.
func NewTransactionSigner(cfg *SignerConfig, ethClient EthBackend, logger *zap.Logger) (ITransactionSigner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("signer config cannot be nil")
	}
	if cfg.RemoteSigner != nil {
		if err := cfg.RemoteSigner.Validate(); err != nil {
			return nil, fmt.Errorf("invalid remote signer config: %w", err)
		}
		client, err := web3signer.NewWeb3SignerClientFromRemoteSignerConfig(cfg.RemoteSigner, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create web3signer client: %w", err)
		}
		return NewWeb3TransactionSigner(client, common.HexToAddress(cfg.RemoteSigner.FromAddress), ethClient, logger)
	}

	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key cannot be empty")
	}
	return NewPrivateKeySigner(cfg.PrivateKey, ethClient, logger)
}
