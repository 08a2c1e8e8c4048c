package transactionSigner

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/clients/web3signer"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/config"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Web3TransactionSigner implements ITransactionSigner with a key held by Web3Signer.
type Web3TransactionSigner struct {
	ethClient        EthBackend
	logger           *zap.Logger
	chainID          *big.Int
	feePolicy        *config.FeePolicy
	web3SignerClient web3signer.IWeb3Signer
	fromAddress      common.Address

	sendMu sync.Mutex
}

func NewWeb3TransactionSigner(web3SignerClient web3signer.IWeb3Signer, fromAddress common.Address, ethClient EthBackend, logger *zap.Logger) (*Web3TransactionSigner, error) {
	chainID, err := ethClient.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &Web3TransactionSigner{
		ethClient:        ethClient,
		logger:           logger,
		chainID:          chainID,
		feePolicy:        config.GetFeePolicyForChain(config.ChainId(chainID.Uint64())),
		web3SignerClient: web3SignerClient,
		fromAddress:      fromAddress,
	}, nil
}

func (w3s *Web3TransactionSigner) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return passthroughTransactOpts(ctx, w3s.fromAddress), nil
}

func (w3s *Web3TransactionSigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	w3s.sendMu.Lock()
	defer w3s.sendMu.Unlock()

	priced, err := priceTransaction(ctx, w3s.ethClient, w3s.feePolicy, w3s.fromAddress, tx, w3s.logger)
	if err != nil {
		return nil, err
	}

	txData := map[string]interface{}{
		"to":                   priced.to.Hex(),
		"value":                hexutil.EncodeBig(priced.value),
		"gas":                  hexutil.EncodeUint64(priced.gasLimit),
		"maxPriorityFeePerGas": hexutil.EncodeBig(priced.gasTipCap),
		"maxFeePerGas":         hexutil.EncodeBig(priced.gasFeeCap),
		"nonce":                hexutil.EncodeUint64(priced.nonce),
		"data":                 hexutil.Encode(priced.data),
		"type":                 "0x2",
		"chainId":              hexutil.EncodeUint64(w3s.chainID.Uint64()),
	}

	w3s.logger.Info("SignAndSendTransaction: sending transaction",
		zap.String("to", priced.to.Hex()),
		zap.String("maxPriorityFeePerGas", priced.gasTipCap.String()),
		zap.String("maxFeePerGas", priced.gasFeeCap.String()),
		zap.String("baseFee", priced.baseFee.String()),
		zap.Uint64("gasLimit", priced.gasLimit),
		zap.Uint64("nonce", priced.nonce),
	)

	signedTxHex, err := w3s.web3SignerClient.EthSignTransaction(ctx, w3s.fromAddress.Hex(), txData)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction with Web3Signer: %w", err)
	}

	signedTxBytes, err := hexutil.Decode(signedTxHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signed transaction: %w", err)
	}

	var signedTx types.Transaction
	if err := signedTx.UnmarshalBinary(signedTxBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signed transaction: %w", err)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(w3s.chainID), &signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender of signed transaction: %w", err)
	}
	if sender != w3s.fromAddress {
		return nil, fmt.Errorf("web3signer signed with %s, expected %s", sender.Hex(), w3s.fromAddress.Hex())
	}

	return sendAndWait(ctx, w3s.ethClient, &signedTx, w3s.logger)
}

func (w3s *Web3TransactionSigner) GetFromAddress() common.Address {
	return w3s.fromAddress
}

func (w3s *Web3TransactionSigner) EstimateGasPriceAndLimit(ctx context.Context, tx *types.Transaction) (*big.Int, uint64, error) {
	priced, err := priceTransaction(ctx, w3s.ethClient, w3s.feePolicy, w3s.fromAddress, tx, w3s.logger)
	if err != nil {
		return nil, 0, err
	}
	return priced.gasFeeCap, priced.gasLimit, nil
}
