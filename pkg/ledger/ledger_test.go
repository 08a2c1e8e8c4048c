package ledger_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/ledger"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/testutil"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTokenLedger_MintAndTransfer(t *testing.T) {
	chain := ledger.NewChain(zaptest.NewLogger(t))
	token, err := chain.DeployToken(testutil.TokenAddress)
	require.NoError(t, err)

	alice := common.HexToAddress("0xa11ce")
	bob := common.HexToAddress("0xb0b")

	require.NoError(t, token.Mint(alice, big.NewInt(100)))
	require.NoError(t, token.Transfer(alice, bob, big.NewInt(30)))

	assert.Equal(t, int64(70), token.BalanceOf(alice).Int64())
	assert.Equal(t, int64(30), token.BalanceOf(bob).Int64())
	assert.Equal(t, int64(100), token.TotalSupply().Int64())

	err = token.Transfer(bob, alice, big.NewInt(31))
	require.ErrorIs(t, err, ledger.ErrInsufficientTokenBalance)
	assert.Equal(t, int64(30), token.BalanceOf(bob).Int64())

	transfers := token.Transfers()
	require.Len(t, transfers, 2)
	assert.Equal(t, alice, transfers[1].From)
	assert.Equal(t, bob, transfers[1].To)
}

func TestTokenLedger_BalanceIsCopy(t *testing.T) {
	chain := ledger.NewChain(nil)
	token, err := chain.DeployToken(testutil.TokenAddress)
	require.NoError(t, err)

	alice := common.HexToAddress("0xa11ce")
	require.NoError(t, token.Mint(alice, big.NewInt(5)))

	b := token.BalanceOf(alice)
	b.SetInt64(1000)
	assert.Equal(t, int64(5), token.BalanceOf(alice).Int64())
}

func TestChain_DeployCollision(t *testing.T) {
	chain := ledger.NewChain(nil)
	_, err := chain.DeployToken(testutil.TokenAddress)
	require.NoError(t, err)

	_, err = chain.DeploySafe(testutil.TokenAddress, []common.Address{common.HexToAddress("0x1")}, 1)
	require.Error(t, err)

	_, err = chain.DeployToken(common.Address{})
	require.Error(t, err)
}

func TestChain_DeploySafeValidation(t *testing.T) {
	chain := ledger.NewChain(nil)
	owner := common.HexToAddress("0x1")

	_, err := chain.DeploySafe(testutil.SafeAddress, nil, 1)
	require.Error(t, err)

	_, err = chain.DeploySafe(testutil.SafeAddress, []common.Address{owner}, 2)
	require.ErrorIs(t, err, ledger.ErrInvalidThreshold)

	_, err = chain.DeploySafe(testutil.SafeAddress, []common.Address{owner, owner}, 1)
	require.ErrorIs(t, err, ledger.ErrOwnerAlreadyExists)

	_, err = chain.DeploySafe(testutil.SafeAddress, []common.Address{{}}, 1)
	require.ErrorIs(t, err, ledger.ErrInvalidOwner)
}

func TestSafeWallet_ExecTransactionRequiresThreshold(t *testing.T) {
	f := testutil.NewWithdrawalFixture(t, zaptest.NewLogger(t))
	nonce := f.Safe.Nonce()
	data := testutil.SafeCalldata(t, "changeThreshold", big.NewInt(1))

	hash, err := f.Safe.TransactionHash(testutil.SafeAddress, big.NewInt(0), data, types.OperationCall, nonce)
	require.NoError(t, err)

	sign := func(i int) []byte {
		sig, err := signature.SignRawDigest(f.OwnerKeys[i], hash)
		require.NoError(t, err)
		return sig
	}

	t.Run("one approval is not enough", func(t *testing.T) {
		_, err := f.Safe.ExecTransaction(testutil.SafeAddress, big.NewInt(0), data, types.OperationCall, [][]byte{sign(0)})
		require.ErrorIs(t, err, ledger.ErrThresholdNotMet)
	})

	t.Run("duplicate approvals rejected", func(t *testing.T) {
		_, err := f.Safe.ExecTransaction(testutil.SafeAddress, big.NewInt(0), data, types.OperationCall, [][]byte{sign(0), sign(0)})
		require.ErrorIs(t, err, ledger.ErrDuplicateOwnerSig)
	})

	t.Run("outsider approval rejected", func(t *testing.T) {
		outsiderSig, err := signature.SignRawDigest(f.Outsider, hash)
		require.NoError(t, err)
		_, err = f.Safe.ExecTransaction(testutil.SafeAddress, big.NewInt(0), data, types.OperationCall, [][]byte{sign(0), outsiderSig})
		require.ErrorIs(t, err, ledger.ErrInvalidOwnerSig)
	})

	assert.Equal(t, nonce, f.Safe.Nonce())
	assert.Equal(t, uint64(testutil.FixtureThreshold), f.Safe.Threshold())

	t.Run("threshold approvals execute", func(t *testing.T) {
		ok, err := f.Safe.ExecTransaction(testutil.SafeAddress, big.NewInt(0), data, types.OperationCall, [][]byte{sign(2), sign(1)})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, nonce+1, f.Safe.Nonce())
		assert.Equal(t, uint64(1), f.Safe.Threshold())
	})

	t.Run("approvals do not replay at the next nonce", func(t *testing.T) {
		_, err := f.Safe.ExecTransaction(testutil.SafeAddress, big.NewInt(0), data, types.OperationCall, [][]byte{sign(2), sign(1)})
		require.Error(t, err)
	})
}

func TestSafeWallet_OwnerTransferViaThreshold(t *testing.T) {
	f := testutil.NewWithdrawalFixture(t, zaptest.NewLogger(t))
	to := common.HexToAddress("0xdead")

	data, err := util.EncodeERC20Transfer(to, big.NewInt(20))
	require.NoError(t, err)
	ok := testutil.ExecBySigners(t, f.Safe, testutil.TokenAddress, data, f.OwnerKeys[0], f.OwnerKeys[2])
	require.True(t, ok)

	assert.Equal(t, int64(30), f.SafeBalance().Int64())
	assert.Equal(t, int64(20), f.Token.BalanceOf(to).Int64())

	// an overdraft consumes the nonce but fails
	data, err = util.EncodeERC20Transfer(to, big.NewInt(31))
	require.NoError(t, err)
	nonce := f.Safe.Nonce()
	ok = testutil.ExecBySigners(t, f.Safe, testutil.TokenAddress, data, f.OwnerKeys[0], f.OwnerKeys[2])
	assert.False(t, ok)
	assert.Equal(t, nonce+1, f.Safe.Nonce())
	assert.Equal(t, int64(30), f.SafeBalance().Int64())

	events := f.Safe.Events()
	assert.Equal(t, ledger.EventExecutionFailure, events[len(events)-1].Name)
}

func TestSafeWallet_OwnerAdministration(t *testing.T) {
	f := testutil.NewWithdrawalFixture(t, zaptest.NewLogger(t))
	newOwner := crypto.PubkeyToAddress(f.Outsider.PublicKey)

	require.NoError(t, f.Safe.AddOwner(newOwner, 3))
	assert.True(t, f.Safe.IsOwner(newOwner))
	assert.Len(t, f.Safe.Owners(), 4)
	assert.Equal(t, uint64(3), f.Safe.Threshold())

	require.ErrorIs(t, f.Safe.AddOwner(newOwner, 3), ledger.ErrOwnerAlreadyExists)
	require.ErrorIs(t, f.Safe.RemoveOwner(newOwner, 4), ledger.ErrInvalidThreshold)

	require.NoError(t, f.Safe.RemoveOwner(newOwner, 2))
	assert.False(t, f.Safe.IsOwner(newOwner))
	require.ErrorIs(t, f.Safe.RemoveOwner(newOwner, 2), ledger.ErrNotAnOwner)

	require.ErrorIs(t, f.Safe.ChangeThreshold(0), ledger.ErrInvalidThreshold)
	require.NoError(t, f.Safe.ChangeThreshold(3))
	assert.Equal(t, uint64(3), f.Safe.Threshold())
}

func TestSafeWallet_ModuleExecution(t *testing.T) {
	f := testutil.NewWithdrawalFixture(t, zaptest.NewLogger(t))
	ctx := context.Background()
	to := common.HexToAddress("0xdead")
	data, err := util.EncodeERC20Transfer(to, big.NewInt(5))
	require.NoError(t, err)

	t.Run("enabled module moves wallet funds", func(t *testing.T) {
		ok, err := execAtomically(f.Chain, testutil.ModuleAddress, data, types.OperationCall)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(45), f.SafeBalance().Int64())
	})

	t.Run("delegatecall is refused", func(t *testing.T) {
		ok, err := execAtomically(f.Chain, testutil.ModuleAddress, data, types.OperationDelegateCall)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(45), f.SafeBalance().Int64())
	})

	t.Run("unknown module reverts", func(t *testing.T) {
		_, err := execAtomically(f.Chain, common.HexToAddress("0xbad"), data, types.OperationCall)
		require.ErrorIs(t, err, ledger.ErrModuleNotEnabled)
	})

	t.Run("disabled module reverts", func(t *testing.T) {
		f.DisableModule(t, f.OwnerKeys[1], f.OwnerKeys[2])
		assert.False(t, f.Safe.IsModuleEnabled(testutil.ModuleAddress))

		_, err := execAtomically(f.Chain, testutil.ModuleAddress, data, types.OperationCall)
		require.ErrorIs(t, err, ledger.ErrModuleNotEnabled)
	})

	t.Run("adapters reject cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := f.Chain.AssetRegistry().BalanceOf(cctx, testutil.TokenAddress, testutil.SafeAddress)
		require.ErrorIs(t, err, context.Canceled)
	})

	names := make([]string, 0)
	for _, e := range f.Safe.Events() {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, ledger.EventEnabledModule)
	assert.Contains(t, names, ledger.EventExecutionFromModuleSuccess)
	assert.Contains(t, names, ledger.EventExecutionFromModuleFailure)
	assert.Contains(t, names, ledger.EventDisabledModule)
}

func TestAssetRegistry_UnknownToken(t *testing.T) {
	chain := ledger.NewChain(nil)
	_, err := chain.AssetRegistry().BalanceOf(context.Background(), testutil.TokenAddress, testutil.SafeAddress)
	require.Error(t, err)

	_, err = chain.WalletFor(testutil.ModuleAddress).IsOwner(context.Background(), testutil.SafeAddress, common.Address{})
	require.Error(t, err)
}

func execAtomically(chain *ledger.Chain, module common.Address, data []byte, op types.Operation) (bool, error) {
	var ok bool
	err := chain.Atomically(func() error {
		var err error
		ok, err = chain.WalletFor(module).ExecTransactionFromModule(
			context.Background(), testutil.SafeAddress, testutil.TokenAddress, big.NewInt(0), data, op,
		)
		return err
	})
	return ok, err
}

func TestSafeWallet_SimulateTransactionFromModule(t *testing.T) {
	f := testutil.NewWithdrawalFixture(t, zaptest.NewLogger(t))
	to := common.HexToAddress("0xdead")

	within, err := util.EncodeERC20Transfer(to, big.NewInt(testutil.FixtureBalance))
	require.NoError(t, err)
	over, err := util.EncodeERC20Transfer(to, big.NewInt(testutil.FixtureBalance+1))
	require.NoError(t, err)

	ok, err := f.Safe.SimulateTransactionFromModule(testutil.ModuleAddress, testutil.TokenAddress, big.NewInt(0), within, types.OperationCall)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Safe.SimulateTransactionFromModule(testutil.ModuleAddress, testutil.TokenAddress, big.NewInt(0), over, types.OperationCall)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.Safe.SimulateTransactionFromModule(testutil.ModuleAddress, testutil.TokenAddress, big.NewInt(0), within, types.OperationDelegateCall)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.Safe.SimulateTransactionFromModule(common.HexToAddress("0xbad"), testutil.TokenAddress, big.NewInt(0), within, types.OperationCall)
	require.ErrorIs(t, err, ledger.ErrModuleNotEnabled)

	// nothing moved
	assert.Equal(t, int64(testutil.FixtureBalance), f.SafeBalance().Int64())
}

func TestSafeWallet_OversizedThresholdRejected(t *testing.T) {
	f := testutil.NewWithdrawalFixture(t, zaptest.NewLogger(t))
	// low 64 bits are 1, which would be a valid threshold if truncated
	oversized := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1))

	data := testutil.SafeCalldata(t, "changeThreshold", oversized)
	ok := testutil.ExecBySigners(t, f.Safe, testutil.SafeAddress, data, f.OwnerKeys[0], f.OwnerKeys[1])
	assert.False(t, ok)
	assert.Equal(t, uint64(testutil.FixtureThreshold), f.Safe.Threshold())

	removed := f.Owners()[2]
	data = testutil.SafeCalldata(t, "removeOwner", f.Owners()[1], removed, oversized)
	ok = testutil.ExecBySigners(t, f.Safe, testutil.SafeAddress, data, f.OwnerKeys[0], f.OwnerKeys[1])
	assert.False(t, ok)
	assert.True(t, f.Safe.IsOwner(removed))

	newOwner := crypto.PubkeyToAddress(f.Outsider.PublicKey)
	data = testutil.SafeCalldata(t, "addOwnerWithThreshold", newOwner, oversized)
	ok = testutil.ExecBySigners(t, f.Safe, testutil.SafeAddress, data, f.OwnerKeys[0], f.OwnerKeys[1])
	assert.False(t, ok)
	assert.False(t, f.Safe.IsOwner(newOwner))
}
