package types

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestEventFromReceipt(t *testing.T) {
	receipt := &WithdrawalReceipt{
		EventID:           "evt-1",
		TokenAsset:        common.HexToAddress("0x01"),
		ControllingWallet: common.HexToAddress("0x02"),
		Recipient:         common.HexToAddress("0x03"),
		Amount:            big.NewInt(10),
		Signer:            common.HexToAddress("0x04"),
		MessageDigest:     common.HexToHash("0xabcd"),
		CompletedAt:       time.Unix(1700000000, 0),
	}

	event := EventFromReceipt(receipt)
	assert.Equal(t, "evt-1", event.ID)
	assert.Equal(t, receipt.Recipient, event.Recipient)
	assert.Equal(t, int64(1700000000), event.Timestamp)

	// amount must not alias the receipt's value
	receipt.Amount.SetInt64(99)
	assert.Equal(t, int64(10), event.Amount.Int64())
}

func TestWithdrawalEvent_Copy(t *testing.T) {
	var nilEvent *WithdrawalEvent
	assert.Nil(t, nilEvent.Copy())

	e := &WithdrawalEvent{ID: "a", Amount: big.NewInt(5)}
	c := e.Copy()
	c.Amount.SetInt64(6)
	assert.Equal(t, int64(5), e.Amount.Int64())
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "call", OperationCall.String())
	assert.Equal(t, "delegatecall", OperationDelegateCall.String())
	assert.Equal(t, "unknown", Operation(7).String())
}
