package persistence

import (
	"math/big"
	"testing"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() *types.WithdrawalEvent {
	amount, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	return &types.WithdrawalEvent{
		ID:                "0d6f8a5e-7b1c-4a7e-9d2f-1f4b3c6a8e90",
		Sequence:          7,
		TokenAsset:        common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		ControllingWallet: common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
		Recipient:         common.HexToAddress("0x976EA74026E726554dB657fA54763abd0C3a0aa9"),
		Amount:            amount,
		Signer:            common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		MessageDigest:     common.HexToHash("0x01"),
		Timestamp:         1700000000,
	}
}

func TestMarshalUnmarshalWithdrawalEvent_RoundTrip(t *testing.T) {
	original := sampleEvent()

	data, err := MarshalWithdrawalEvent(original)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := UnmarshalWithdrawalEvent(data)
	require.NoError(t, err)

	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.Sequence, restored.Sequence)
	assert.Equal(t, original.Recipient, restored.Recipient)
	assert.Equal(t, original.Signer, restored.Signer)
	assert.Equal(t, original.MessageDigest, restored.MessageDigest)
	assert.Equal(t, 0, original.Amount.Cmp(restored.Amount))
	assert.Equal(t, original.Timestamp, restored.Timestamp)
}

func TestMarshalWithdrawalEvent_Deterministic(t *testing.T) {
	a, err := MarshalWithdrawalEvent(sampleEvent())
	require.NoError(t, err)
	b, err := MarshalWithdrawalEvent(sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMarshalWithdrawalEvent_NilInput(t *testing.T) {
	_, err := MarshalWithdrawalEvent(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil WithdrawalEvent")
}

func TestUnmarshalWithdrawalEvent_Invalid(t *testing.T) {
	_, err := UnmarshalWithdrawalEvent(nil)
	require.Error(t, err)

	_, err = UnmarshalWithdrawalEvent([]byte{0xff, 0x00, 0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestValidateEvent(t *testing.T) {
	require.Error(t, ValidateEvent(nil))

	e := sampleEvent()
	e.ID = ""
	require.Error(t, ValidateEvent(e))

	e = sampleEvent()
	e.Amount = nil
	require.Error(t, ValidateEvent(e))

	require.NoError(t, ValidateEvent(sampleEvent()))
}
