package util

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
)

func TestERC20TransferSelector(t *testing.T) {
	require.Equal(t, "0xa9059cbb", hexutil.Encode(ERC20TransferSelector))
}

func TestEncodeERC20Transfer(t *testing.T) {
	to := common.HexToAddress("0x1234567890123456789012345678901234567890")

	data, err := EncodeERC20Transfer(to, big.NewInt(10))
	require.NoError(t, err)
	require.Len(t, data, 4+32+32)

	gotTo, gotAmount, err := DecodeERC20Transfer(data)
	require.NoError(t, err)
	require.Equal(t, to, gotTo)
	require.Equal(t, int64(10), gotAmount.Int64())

	_, err = EncodeERC20Transfer(to, nil)
	require.Error(t, err)

	_, err = EncodeERC20Transfer(to, big.NewInt(-1))
	require.Error(t, err)
}

func TestDecodeERC20Transfer_Invalid(t *testing.T) {
	_, _, err := DecodeERC20Transfer([]byte{0xa9, 0x05})
	require.Error(t, err)

	_, _, err = DecodeERC20Transfer([]byte{0xde, 0xad, 0xbe, 0xef, 0x00})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported selector")

	_, _, err = DecodeERC20Transfer(append(append([]byte{}, ERC20TransferSelector...), 0x01))
	require.Error(t, err)
}
