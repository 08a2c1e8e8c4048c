package util

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func FuzzEncodeStringRoundTrip(f *testing.F) {
	f.Add("")
	f.Add("hello")
	f.Add("transfer 10 coins to bob")

	stringType, _ := abi.NewType("string", "", nil)
	args := abi.Arguments{{Type: stringType}}

	f.Fuzz(func(t *testing.T, s string) {
		if len(s) > 4096 {
			s = s[:4096]
		}

		encoded, err := EncodeString(s)
		require.NoError(t, err)

		out, err := args.Unpack(encoded)
		require.NoError(t, err)
		require.Len(t, out, 1)

		decoded, ok := out[0].(string)
		require.True(t, ok)
		require.Equal(t, s, decoded)
	})
}

func FuzzERC20TransferRoundTrip(f *testing.F) {
	f.Add([]byte{0x01}, uint64(0))
	f.Add([]byte("recipient-address!!!"), uint64(50))

	f.Fuzz(func(t *testing.T, addr []byte, amount uint64) {
		to := common.BytesToAddress(addr)
		value := new(big.Int).SetUint64(amount)

		data, err := EncodeERC20Transfer(to, value)
		require.NoError(t, err)

		gotTo, gotAmount, err := DecodeERC20Transfer(data)
		require.NoError(t, err)
		require.Equal(t, to, gotTo)
		require.Zero(t, value.Cmp(gotAmount))
	})
}
