package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

/*
Withdrawal flow

  redeemer -> Withdraw(recipient, amount, signature, messageDigest)
    1. BalanceOf(tokenAsset, controllingWallet) >= amount > 0     else InsufficientBalance
    2. signer = recover(personal envelope of messageDigest, sig)  else MalformedSignature
    3. IsOwner(controllingWallet, signer)                          else UnauthorizedSigner
    4. ExecTransactionFromModule(controllingWallet,
         to=tokenAsset, value=0, data=transfer(recipient, amount), op=Call)
                                                                   else ExecutionFailed
    5. publish WithdrawalCompleted

Steps 1-3 are reads against live state. Owner membership is never cached, so an owner
removed from the wallet stops authorizing withdrawals on the next call.

Known gaps, kept deliberately:
  - messageDigest is caller supplied and is not recomputed from recipient/amount. A
    signature over "transfer 10 coins to bob" authorizes any (recipient, amount) pair.
  - there is no consumed-digest set. The same (signature, digest) redeems repeatedly for as
    long as the wallet holds funds and the signer stays an owner.
*/

// IAssetRegistry is the read side of the token ledger.
type IAssetRegistry interface {
	BalanceOf(ctx context.Context, token common.Address, account common.Address) (*big.Int, error)
}

// IControllingWallet is the multi-owner wallet whose owners authorize withdrawals.
type IControllingWallet interface {
	// IsOwner reports current owner membership.
	IsOwner(ctx context.Context, wallet common.Address, addr common.Address) (bool, error)

	// ExecTransactionFromModule asks the wallet to perform a call from its own account.
	// The wallet only honours it for enabled modules; false means the wallet rejected or
	// the inner call failed.
	ExecTransactionFromModule(
		ctx context.Context,
		wallet common.Address,
		to common.Address,
		value *big.Int,
		data []byte,
		operation types.Operation,
	) (bool, error)
}

type ModuleConfig struct {
	TokenAsset        common.Address
	ControllingWallet common.Address

	AssetRegistry IAssetRegistry
	Wallet        IControllingWallet

	// Recoverer defaults to the personal-message scheme.
	Recoverer signature.IRecoverer

	// EventSink is optional.
	EventSink IEventSink

	// Now defaults to time.Now.
	Now func() time.Time
}

// Module is the withdrawal authorization engine. It is immutable after construction.
type Module struct {
	tokenAsset        common.Address
	controllingWallet common.Address

	assetRegistry IAssetRegistry
	wallet        IControllingWallet
	recoverer     signature.IRecoverer
	eventSink     IEventSink
	now           func() time.Time

	logger *zap.Logger
}

func NewModule(cfg *ModuleConfig, logger *zap.Logger) (*Module, error) {
	if cfg == nil {
		return nil, fmt.Errorf("module config cannot be nil")
	}
	if cfg.TokenAsset == (common.Address{}) {
		return nil, fmt.Errorf("token asset address cannot be the zero address")
	}
	if cfg.ControllingWallet == (common.Address{}) {
		return nil, fmt.Errorf("controlling wallet address cannot be the zero address")
	}
	if cfg.AssetRegistry == nil {
		return nil, fmt.Errorf("asset registry is required")
	}
	if cfg.Wallet == nil {
		return nil, fmt.Errorf("controlling wallet capability is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	recoverer := cfg.Recoverer
	if recoverer == nil {
		recoverer = &signature.PersonalMessageRecoverer{}
	}
	var sink IEventSink = noopEventSink{}
	if cfg.EventSink != nil {
		sink = cfg.EventSink
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Module{
		tokenAsset:        cfg.TokenAsset,
		controllingWallet: cfg.ControllingWallet,
		assetRegistry:     cfg.AssetRegistry,
		wallet:            cfg.Wallet,
		recoverer:         recoverer,
		eventSink:         sink,
		now:               now,
		logger:            logger,
	}, nil
}

func (m *Module) TokenAsset() common.Address {
	return m.tokenAsset
}

func (m *Module) ControllingWallet() common.Address {
	return m.controllingWallet
}

func (m *Module) SignatureScheme() signature.Scheme {
	return m.recoverer.Scheme()
}

// Withdraw moves claim.Amount of the token from the controlling wallet to claim.Recipient
// if claim.Signature over claim.MessageDigest was produced by a current wallet owner.
// Rejections are *WithdrawalError values; failures to evaluate a claim (e.g. a balance
// lookup that errored) are returned as plain wrapped errors.
func (m *Module) Withdraw(ctx context.Context, claim *types.WithdrawalClaim) (*types.WithdrawalReceipt, error) {
	if claim == nil {
		return nil, fmt.Errorf("withdrawal claim cannot be nil")
	}

	if err := m.checkBalance(ctx, claim.Amount); err != nil {
		return nil, err
	}

	signer, err := m.authorize(ctx, claim)
	if err != nil {
		return nil, err
	}

	if err := m.execute(ctx, claim); err != nil {
		return nil, err
	}

	receipt := &types.WithdrawalReceipt{
		EventID:           uuid.New().String(),
		TokenAsset:        m.tokenAsset,
		ControllingWallet: m.controllingWallet,
		Recipient:         claim.Recipient,
		Amount:            new(big.Int).Set(claim.Amount),
		Signer:            signer,
		MessageDigest:     claim.MessageDigest,
		CompletedAt:       m.now(),
	}

	m.logger.Sugar().Debugw("Withdrawal completed",
		"eventId", receipt.EventID,
		"recipient", receipt.Recipient.Hex(),
		"amount", receipt.Amount.String(),
		"signer", signer.Hex(),
	)

	// the transfer already happened; a failing sink must not turn it into an error
	if err := m.eventSink.PublishWithdrawal(ctx, types.EventFromReceipt(receipt)); err != nil {
		m.logger.Sugar().Warnw("Failed to publish withdrawal event",
			"eventId", receipt.EventID,
			"error", err,
		)
	}

	return receipt, nil
}

func (m *Module) checkBalance(ctx context.Context, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return newError(KindInsufficientBalance, nil, "amount must be positive")
	}

	balance, err := m.assetRegistry.BalanceOf(ctx, m.tokenAsset, m.controllingWallet)
	if err != nil {
		return fmt.Errorf("failed to query balance of %s: %w", m.controllingWallet.Hex(), err)
	}
	if balance == nil || amount.Cmp(balance) > 0 {
		return newError(KindInsufficientBalance, nil, "requested %s, wallet holds %s", amount.String(), bigString(balance))
	}
	return nil
}

func (m *Module) authorize(ctx context.Context, claim *types.WithdrawalClaim) (common.Address, error) {
	signer, err := m.recoverer.RecoverSigner(claim.MessageDigest, claim.Signature)
	if err != nil {
		if errors.Is(err, signature.ErrMalformedSignature) {
			return common.Address{}, newError(KindMalformedSignature, err, "cannot recover signer")
		}
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}

	isOwner, err := m.wallet.IsOwner(ctx, m.controllingWallet, signer)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to query owners of %s: %w", m.controllingWallet.Hex(), err)
	}
	if !isOwner {
		m.logger.Sugar().Debugw("Rejected withdrawal from non-owner", "signer", signer.Hex())
		return common.Address{}, newError(KindUnauthorizedSigner, nil, "%s is not an owner of %s", signer.Hex(), m.controllingWallet.Hex())
	}
	return signer, nil
}

func (m *Module) execute(ctx context.Context, claim *types.WithdrawalClaim) error {
	data, err := util.EncodeERC20Transfer(claim.Recipient, claim.Amount)
	if err != nil {
		return fmt.Errorf("failed to encode transfer: %w", err)
	}

	ok, err := m.wallet.ExecTransactionFromModule(ctx, m.controllingWallet, m.tokenAsset, big.NewInt(0), data, types.OperationCall)
	if err != nil {
		return newError(KindExecutionFailed, err, "delegated execution errored")
	}
	if !ok {
		return newError(KindExecutionFailed, nil, "wallet %s rejected module transaction", m.controllingWallet.Hex())
	}
	return nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
