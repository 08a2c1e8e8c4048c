package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Operation is the Safe execution kind passed to execTransactionFromModule.
type Operation uint8

const (
	OperationCall         Operation = 0
	OperationDelegateCall Operation = 1
)

func (o Operation) String() string {
	switch o {
	case OperationCall:
		return "call"
	case OperationDelegateCall:
		return "delegatecall"
	default:
		return "unknown"
	}
}

// WithdrawalClaim is a single redemption request. It only lives for the duration of one
// Withdraw call and is never stored.
type WithdrawalClaim struct {
	Recipient     common.Address
	Amount        *big.Int
	Signature     []byte
	MessageDigest common.Hash
}

// WithdrawalReceipt is returned by a successful withdrawal.
type WithdrawalReceipt struct {
	EventID           string
	TokenAsset        common.Address
	ControllingWallet common.Address
	Recipient         common.Address
	Amount            *big.Int
	Signer            common.Address
	MessageDigest     common.Hash
	CompletedAt       time.Time
}

// WithdrawalEvent is the withdrawal-completed notification kept for audit and indexing.
// Sequence is assigned by the event store on save.
type WithdrawalEvent struct {
	ID                string         `cbor:"1,keyasint" json:"id"`
	Sequence          uint64         `cbor:"2,keyasint" json:"sequence"`
	TokenAsset        common.Address `cbor:"3,keyasint" json:"tokenAsset"`
	ControllingWallet common.Address `cbor:"4,keyasint" json:"controllingWallet"`
	Recipient         common.Address `cbor:"5,keyasint" json:"recipient"`
	Amount            *big.Int       `cbor:"6,keyasint" json:"amount"`
	Signer            common.Address `cbor:"7,keyasint" json:"signer"`
	MessageDigest     common.Hash    `cbor:"8,keyasint" json:"messageDigest"`
	Timestamp         int64          `cbor:"9,keyasint" json:"timestamp"`
}

// EventFromReceipt builds the audit event for a completed withdrawal.
func EventFromReceipt(r *WithdrawalReceipt) *WithdrawalEvent {
	return &WithdrawalEvent{
		ID:                r.EventID,
		TokenAsset:        r.TokenAsset,
		ControllingWallet: r.ControllingWallet,
		Recipient:         r.Recipient,
		Amount:            new(big.Int).Set(r.Amount),
		Signer:            r.Signer,
		MessageDigest:     r.MessageDigest,
		Timestamp:         r.CompletedAt.Unix(),
	}
}

// Copy returns a deep copy of the event.
func (e *WithdrawalEvent) Copy() *WithdrawalEvent {
	if e == nil {
		return nil
	}
	c := *e
	if e.Amount != nil {
		c.Amount = new(big.Int).Set(e.Amount)
	}
	return &c
}
