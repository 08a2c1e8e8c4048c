package transactionSigner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/config"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// pricedTransaction carries everything needed to sign an EIP-1559 transaction.
type pricedTransaction struct {
	to        common.Address
	value     *big.Int
	data      []byte
	gasTipCap *big.Int
	gasFeeCap *big.Int
	baseFee   *big.Int
	gasLimit  uint64
	nonce     uint64
}

// addGasBuffer adds 20% to an estimated gas limit.
func addGasBuffer(gasLimit uint64) uint64 {
	return gasLimit * 12 / 10
}

// priceTransaction prices tx for sending from `from`. The nonce is always fetched from the
// network since tx.Nonce() == 0 is indistinguishable from "unset".
func priceTransaction(
	ctx context.Context,
	backend EthBackend,
	policy *config.FeePolicy,
	from common.Address,
	tx *types.Transaction,
	logger *zap.Logger,
) (*pricedTransaction, error) {
	if tx.To() == nil {
		return nil, fmt.Errorf("contract creation is not supported")
	}

	gasTipCap, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		// backend may not support eth_maxPriorityFeePerGas
		logger.Sugar().Warnw("Cannot get gasTipCap, using fallback",
			zap.Error(err),
		)
		gasTipCap = new(big.Int).Set(policy.FallbackGasTipCap)
	}

	header, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block header: %w", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}

	maxFeePerGas := new(big.Int).Add(
		new(big.Int).Mul(baseFee, big.NewInt(policy.BaseFeeMultiplier)),
		gasTipCap,
	)

	value := tx.Value()
	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      from,
		To:        tx.To(),
		GasTipCap: gasTipCap,
		GasFeeCap: maxFeePerGas,
		Value:     value,
		Data:      tx.Data(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	return &pricedTransaction{
		to:        *tx.To(),
		value:     value,
		data:      tx.Data(),
		gasTipCap: gasTipCap,
		gasFeeCap: maxFeePerGas,
		baseFee:   baseFee,
		gasLimit:  addGasBuffer(gasLimit),
		nonce:     nonce,
	}, nil
}

func (p *pricedTransaction) toDynamicFeeTx(chainID *big.Int) *types.Transaction {
	to := p.to
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     p.nonce,
		GasTipCap: p.gasTipCap,
		GasFeeCap: p.gasFeeCap,
		Gas:       p.gasLimit,
		To:        &to,
		Value:     p.value,
		Data:      p.data,
	})
}

// sendAndWait broadcasts a signed transaction and blocks until it is mined.
func sendAndWait(ctx context.Context, backend EthBackend, signedTx *types.Transaction, logger *zap.Logger) (*types.Receipt, error) {
	if err := backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	logger.Info("SignAndSendTransaction: transaction sent",
		zap.String("txHash", signedTx.Hash().Hex()),
	)

	_, isPending, err := backend.TransactionByHash(ctx, signedTx.Hash())
	if err != nil {
		logger.Warn("Could not verify transaction in mempool",
			zap.Error(err),
			zap.String("txHash", signedTx.Hash().Hex()),
		)
	} else {
		logger.Debug("Transaction verified in mempool",
			zap.Bool("isPending", isPending),
			zap.String("txHash", signedTx.Hash().Hex()),
		)
	}

	receipt, err := bind.WaitMined(ctx, backend, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction receipt: %w", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		logger.Error("SignAndSendTransaction: transaction failed",
			zap.String("txHash", receipt.TxHash.Hex()),
			zap.Uint64("status", receipt.Status),
			zap.Uint64("gasUsed", receipt.GasUsed),
		)
		return receipt, fmt.Errorf("transaction %s failed with status %d: %w", receipt.TxHash.Hex(), receipt.Status, ErrTransactionReverted)
	}

	blockNumber := uint64(0)
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}
	logger.Info("SignAndSendTransaction: transaction succeeded",
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.Uint64("gasUsed", receipt.GasUsed),
		zap.Uint64("blockNumber", blockNumber),
	)
	return receipt, nil
}

// passthroughTransactOpts returns opts that build but neither sign nor send; signing
// happens in SignAndSendTransaction.
func passthroughTransactOpts(ctx context.Context, from common.Address) *bind.TransactOpts {
	return &bind.TransactOpts{
		From:    from,
		Context: ctx,
		NoSend:  true,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			return tx, nil
		},
	}
}
