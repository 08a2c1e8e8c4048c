package transactionSigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/config"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// PrivateKeySigner signs transactions with an in-process key.
type PrivateKeySigner struct {
	ethClient   EthBackend
	logger      *zap.Logger
	chainID     *big.Int
	feePolicy   *config.FeePolicy
	privateKey  *ecdsa.PrivateKey
	fromAddress common.Address

	// sendMu holds the account nonce from pricing until the transaction is mined.
	sendMu sync.Mutex
}

func NewPrivateKeySigner(privateKeyHex string, ethClient EthBackend, logger *zap.Logger) (*PrivateKeySigner, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	chainID, err := ethClient.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &PrivateKeySigner{
		ethClient:   ethClient,
		logger:      logger,
		chainID:     chainID,
		feePolicy:   config.GetFeePolicyForChain(config.ChainId(chainID.Uint64())),
		privateKey:  privateKey,
		fromAddress: crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

func (pks *PrivateKeySigner) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return passthroughTransactOpts(ctx, pks.fromAddress), nil
}

func (pks *PrivateKeySigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	pks.sendMu.Lock()
	defer pks.sendMu.Unlock()

	priced, err := priceTransaction(ctx, pks.ethClient, pks.feePolicy, pks.fromAddress, tx, pks.logger)
	if err != nil {
		return nil, err
	}

	pks.logger.Info("SignAndSendTransaction: sending transaction",
		zap.String("to", priced.to.Hex()),
		zap.String("maxPriorityFeePerGas", priced.gasTipCap.String()),
		zap.String("maxFeePerGas", priced.gasFeeCap.String()),
		zap.Uint64("gasLimit", priced.gasLimit),
		zap.Uint64("nonce", priced.nonce),
	)

	signedTx, err := types.SignTx(priced.toDynamicFeeTx(pks.chainID), types.LatestSignerForChainID(pks.chainID), pks.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return sendAndWait(ctx, pks.ethClient, signedTx, pks.logger)
}

func (pks *PrivateKeySigner) GetFromAddress() common.Address {
	return pks.fromAddress
}

func (pks *PrivateKeySigner) EstimateGasPriceAndLimit(ctx context.Context, tx *types.Transaction) (*big.Int, uint64, error) {
	priced, err := priceTransaction(ctx, pks.ethClient, pks.feePolicy, pks.fromAddress, tx, pks.logger)
	if err != nil {
		return nil, 0, err
	}
	return priced.gasFeeCap, priced.gasLimit, nil
}
