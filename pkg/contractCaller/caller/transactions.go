package caller

import (
	"context"
	"math/big"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/middleware-bindings/ISafe"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/transactionSigner"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	goEthereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ModuleExecution is the outcome of an execTransactionFromModule call.
type ModuleExecution struct {
	// Success is true when the Safe reported the inner call as successful.
	Success bool
	// Simulated is true when the call was never sent because eth_call returned false.
	Simulated bool
	// Receipt is nil for simulated executions.
	Receipt *ethereumTypes.Receipt
}

func (cc *ContractCaller) buildTransactionOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return cc.signer.GetTransactOpts(ctx)
}

func (cc *ContractCaller) signAndSendTransaction(ctx context.Context, tx *ethereumTypes.Transaction, operation string) (*ethereumTypes.Receipt, error) {
	cc.logger.Sugar().Infow("Signing and sending transaction",
		zap.String("operation", operation),
		zap.String("from", cc.signer.GetFromAddress().Hex()),
		zap.String("to", tx.To().Hex()),
	)

	return cc.signer.SignAndSendTransaction(ctx, tx)
}

// ExecTransactionFromModule asks wallet to perform a call from its own account, with the
// signer's address as the calling module. The call is simulated first and not sent if
// the simulation returns false. A simulation revert (e.g. the module is not enabled) is
// returned as an error.
func (cc *ContractCaller) ExecTransactionFromModule(
	ctx context.Context,
	wallet common.Address,
	to common.Address,
	value *big.Int,
	data []byte,
	operation types.Operation,
) (*ModuleExecution, error) {
	if cc.signer == nil {
		return nil, errors.New("contract caller has no transaction signer")
	}
	if value == nil {
		value = big.NewInt(0)
	}
	module := cc.signer.GetFromAddress()

	ok, err := cc.simulateExecTransactionFromModule(ctx, module, wallet, to, value, data, operation)
	if err != nil {
		return nil, err
	}
	if !ok {
		cc.logger.Sugar().Infow("Module transaction simulation returned false, not sending",
			zap.String("wallet", wallet.Hex()),
			zap.String("module", module.Hex()),
			zap.String("to", to.Hex()),
		)
		return &ModuleExecution{Success: false, Simulated: true}, nil
	}

	safe, err := cc.safe(wallet)
	if err != nil {
		return nil, err
	}
	opts, err := cc.buildTransactionOpts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build transaction options")
	}
	tx, err := safe.ExecTransactionFromModule(opts, to, value, data, uint8(operation))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build execTransactionFromModule transaction for safe %s", wallet.Hex())
	}

	receipt, err := cc.signAndSendTransaction(ctx, tx, "execTransactionFromModule")
	if err != nil {
		if errors.Is(err, transactionSigner.ErrTransactionReverted) && receipt != nil {
			return &ModuleExecution{Success: false, Receipt: receipt}, nil
		}
		return nil, errors.Wrapf(err, "failed to send execTransactionFromModule to safe %s", wallet.Hex())
	}

	success := cc.moduleExecutionSucceeded(safe, wallet, module, receipt)
	cc.logger.Sugar().Infow("Module transaction mined",
		zap.String("wallet", wallet.Hex()),
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.Bool("success", success),
	)
	return &ModuleExecution{Success: success, Receipt: receipt}, nil
}

func (cc *ContractCaller) simulateExecTransactionFromModule(
	ctx context.Context,
	module common.Address,
	wallet common.Address,
	to common.Address,
	value *big.Int,
	data []byte,
	operation types.Operation,
) (bool, error) {
	calldata, err := cc.safeAbi.Pack("execTransactionFromModule", to, value, data, uint8(operation))
	if err != nil {
		return false, errors.Wrap(err, "failed to pack execTransactionFromModule")
	}
	out, err := cc.ethclient.CallContract(ctx, goEthereum.CallMsg{
		From: module,
		To:   &wallet,
		Data: calldata,
	}, nil)
	if err != nil {
		return false, errors.Wrapf(err, "simulated execTransactionFromModule on safe %s reverted", wallet.Hex())
	}
	results, err := cc.safeAbi.Unpack("execTransactionFromModule", out)
	if err != nil {
		return false, errors.Wrap(err, "failed to unpack execTransactionFromModule result")
	}
	if len(results) != 1 {
		return false, errors.Errorf("unexpected execTransactionFromModule result count %d", len(results))
	}
	ok, isBool := results[0].(bool)
	if !isBool {
		return false, errors.Errorf("unexpected execTransactionFromModule result type %T", results[0])
	}
	return ok, nil
}

// moduleExecutionSucceeded looks for the Safe's ExecutionFromModuleSuccess event for this
// module. A mined transaction without it means the inner call failed.
func (cc *ContractCaller) moduleExecutionSucceeded(safe *ISafe.ISafe, wallet common.Address, module common.Address, receipt *ethereumTypes.Receipt) bool {
	successTopic := cc.safeAbi.Events["ExecutionFromModuleSuccess"].ID
	for _, log := range receipt.Logs {
		if log == nil || log.Address != wallet || len(log.Topics) == 0 || log.Topics[0] != successTopic {
			continue
		}
		event, err := safe.ParseExecutionFromModuleSuccess(*log)
		if err != nil {
			cc.logger.Sugar().Warnw("Failed to parse ExecutionFromModuleSuccess", "error", err)
			continue
		}
		if event.Module == module {
			return true
		}
	}
	return false
}
