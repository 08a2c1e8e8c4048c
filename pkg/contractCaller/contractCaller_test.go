package contractCaller

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/testutil"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/transactionSigner"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/util"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/withdrawal"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type onChainHarness struct {
	fixture *testutil.WithdrawalFixture
	backend *testutil.ChainBackend
	caller  *caller.ContractCaller
}

func newOnChainHarness(t *testing.T, enable bool) *onChainHarness {
	t.Helper()
	l := zaptest.NewLogger(t)

	f := testutil.NewWithdrawalFixture(t, l)
	backend := testutil.NewChainBackend(f.Chain)

	key := testutil.DevKey(t, testutil.ModuleKeyIndex)
	signer, err := transactionSigner.NewPrivateKeySigner(hexutil.Encode(crypto.FromECDSA(key)), backend, l)
	require.NoError(t, err)

	if enable {
		f.EnableModule(t, signer.GetFromAddress(), f.OwnerKeys[0], f.OwnerKeys[1])
	}

	cc, err := caller.NewContractCaller(backend, signer, l)
	require.NoError(t, err)

	return &onChainHarness{fixture: f, backend: backend, caller: cc}
}

func transferCalldata(t *testing.T, amount int64) []byte {
	t.Helper()
	data, err := util.EncodeERC20Transfer(testutil.Recipient, big.NewInt(amount))
	require.NoError(t, err)
	return data
}

func Test_ContractCaller_Reads(t *testing.T) {
	h := newOnChainHarness(t, true)
	ctx := context.Background()

	balance, err := h.caller.BalanceOf(ctx, testutil.TokenAddress, testutil.SafeAddress)
	require.NoError(t, err)
	assert.Equal(t, int64(testutil.FixtureBalance), balance.Int64())

	isOwner, err := h.caller.IsOwner(ctx, testutil.SafeAddress, h.fixture.Owners()[0])
	require.NoError(t, err)
	assert.True(t, isOwner)

	isOwner, err = h.caller.IsOwner(ctx, testutil.SafeAddress, crypto.PubkeyToAddress(h.fixture.Outsider.PublicKey))
	require.NoError(t, err)
	assert.False(t, isOwner)

	owners, err := h.caller.GetOwners(ctx, testutil.SafeAddress)
	require.NoError(t, err)
	assert.ElementsMatch(t, h.fixture.Owners(), owners)

	threshold, err := h.caller.GetThreshold(ctx, testutil.SafeAddress)
	require.NoError(t, err)
	assert.Equal(t, uint64(testutil.FixtureThreshold), threshold)

	enabled, err := h.caller.IsModuleEnabled(ctx, testutil.SafeAddress, h.caller.ModuleAddress())
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, CheckModuleEnabled(ctx, h.caller, testutil.SafeAddress))
}

func Test_ContractCaller_ReadOnly(t *testing.T) {
	h := newOnChainHarness(t, false)

	readOnly, err := caller.NewContractCaller(h.backend, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, readOnly.ModuleAddress())

	_, err = readOnly.ExecTransactionFromModule(context.Background(), testutil.SafeAddress, testutil.TokenAddress, nil, transferCalldata(t, 1), types.OperationCall)
	require.Error(t, err)

	_, err = caller.NewContractCaller(nil, nil, zaptest.NewLogger(t))
	require.Error(t, err)
}

func Test_ContractCaller_ExecTransactionFromModule(t *testing.T) {
	t.Run("successful transfer", func(t *testing.T) {
		h := newOnChainHarness(t, true)

		result, err := h.caller.ExecTransactionFromModule(context.Background(), testutil.SafeAddress, testutil.TokenAddress, big.NewInt(0), transferCalldata(t, 10), types.OperationCall)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.False(t, result.Simulated)
		require.NotNil(t, result.Receipt)
		assert.Equal(t, ethTypes.ReceiptStatusSuccessful, result.Receipt.Status)

		assert.Equal(t, int64(10), h.fixture.Token.BalanceOf(testutil.Recipient).Int64())
		assert.Equal(t, int64(testutil.FixtureBalance-10), h.fixture.SafeBalance().Int64())
		assert.Len(t, h.backend.Sent(), 1)
	})

	t.Run("simulation failure is not sent", func(t *testing.T) {
		h := newOnChainHarness(t, true)

		result, err := h.caller.ExecTransactionFromModule(context.Background(), testutil.SafeAddress, testutil.TokenAddress, big.NewInt(0), transferCalldata(t, testutil.FixtureBalance+1), types.OperationCall)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.True(t, result.Simulated)
		assert.Nil(t, result.Receipt)
		assert.Empty(t, h.backend.Sent())
		assert.Equal(t, int64(testutil.FixtureBalance), h.fixture.SafeBalance().Int64())
	})

	t.Run("module not enabled", func(t *testing.T) {
		h := newOnChainHarness(t, false)

		_, err := h.caller.ExecTransactionFromModule(context.Background(), testutil.SafeAddress, testutil.TokenAddress, big.NewInt(0), transferCalldata(t, 10), types.OperationCall)
		require.Error(t, err)
		assert.Empty(t, h.backend.Sent())
		require.Error(t, CheckModuleEnabled(context.Background(), h.caller, testutil.SafeAddress))
	})

	t.Run("inner call fails after simulation", func(t *testing.T) {
		h := newOnChainHarness(t, true)
		outsider := crypto.PubkeyToAddress(h.fixture.Outsider.PublicKey)
		h.backend.OnSend = func(tx *ethTypes.Transaction) {
			require.NoError(t, h.fixture.Token.Transfer(testutil.SafeAddress, outsider, big.NewInt(testutil.FixtureBalance)))
		}

		result, err := h.caller.ExecTransactionFromModule(context.Background(), testutil.SafeAddress, testutil.TokenAddress, big.NewInt(0), transferCalldata(t, 10), types.OperationCall)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.False(t, result.Simulated)
		require.NotNil(t, result.Receipt)
		assert.Equal(t, ethTypes.ReceiptStatusSuccessful, result.Receipt.Status)
		assert.Equal(t, int64(0), h.fixture.Token.BalanceOf(testutil.Recipient).Int64())
	})
}

func Test_OnChainModule_Withdraw(t *testing.T) {
	h := newOnChainHarness(t, true)
	l := zaptest.NewLogger(t)
	ctx := context.Background()

	module, err := NewOnChainModule(&withdrawal.ModuleConfig{
		TokenAsset:        testutil.TokenAddress,
		ControllingWallet: testutil.SafeAddress,
	}, h.caller, l)
	require.NoError(t, err)
	assert.Equal(t, testutil.SafeAddress, module.Module().ControllingWallet())

	claim := testutil.SignedClaim(t, h.fixture.OwnerKeys[0], testutil.Recipient, 10, "transfer 10 coins")
	receipt, err := module.Withdraw(ctx, claim)
	require.NoError(t, err)
	assert.Equal(t, h.fixture.Owners()[0], receipt.Signer)
	assert.Equal(t, int64(10), h.fixture.Token.BalanceOf(testutil.Recipient).Int64())

	outsiderClaim := testutil.SignedClaim(t, h.fixture.Outsider, testutil.Recipient, 10, "transfer 10 coins")
	_, err = module.Withdraw(ctx, outsiderClaim)
	require.ErrorIs(t, err, withdrawal.ErrUnauthorizedSigner)

	overdraft := testutil.SignedClaim(t, h.fixture.OwnerKeys[1], testutil.Recipient, testutil.FixtureBalance, "too much")
	_, err = module.Withdraw(ctx, overdraft)
	require.ErrorIs(t, err, withdrawal.ErrInsufficientBalance)

	assert.Len(t, h.backend.Sent(), 1)
}

func Test_OnChainModule_ExecutionFailed(t *testing.T) {
	h := newOnChainHarness(t, true)
	outsider := crypto.PubkeyToAddress(h.fixture.Outsider.PublicKey)
	h.backend.OnSend = func(tx *ethTypes.Transaction) {
		require.NoError(t, h.fixture.Token.Transfer(testutil.SafeAddress, outsider, big.NewInt(testutil.FixtureBalance)))
	}

	module, err := NewOnChainModule(&withdrawal.ModuleConfig{
		TokenAsset:        testutil.TokenAddress,
		ControllingWallet: testutil.SafeAddress,
	}, h.caller, zaptest.NewLogger(t))
	require.NoError(t, err)

	claim := testutil.SignedClaim(t, h.fixture.OwnerKeys[0], testutil.Recipient, 10, "transfer 10 coins")
	_, err = module.Withdraw(context.Background(), claim)
	require.ErrorIs(t, err, withdrawal.ErrExecutionFailed)
}

func Test_NewOnChainModule_Validation(t *testing.T) {
	l := zaptest.NewLogger(t)
	stub := NewTestableContractCallerStub(testutil.ModuleAddress)

	_, err := NewOnChainModule(nil, stub, l)
	require.Error(t, err)

	_, err = NewOnChainModule(&withdrawal.ModuleConfig{TokenAsset: testutil.TokenAddress, ControllingWallet: testutil.SafeAddress}, nil, l)
	require.Error(t, err)

	_, err = NewOnChainModule(&withdrawal.ModuleConfig{ControllingWallet: testutil.SafeAddress}, stub, l)
	require.Error(t, err)
}

func Test_OnChainModule_WithStub(t *testing.T) {
	l := zaptest.NewLogger(t)
	owner := testutil.DevKey(t, 0)

	stub := NewTestableContractCallerStub(testutil.ModuleAddress)
	stub.SetBalance(testutil.SafeAddress, big.NewInt(100))
	stub.AddOwner(crypto.PubkeyToAddress(owner.PublicKey))

	module, err := NewOnChainModule(&withdrawal.ModuleConfig{
		TokenAsset:        testutil.TokenAddress,
		ControllingWallet: testutil.SafeAddress,
	}, stub, l)
	require.NoError(t, err)

	claim := testutil.SignedClaim(t, owner, testutil.Recipient, 25, "hello")
	_, err = module.Withdraw(context.Background(), claim)
	require.NoError(t, err)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, testutil.SafeAddress, calls[0].Wallet)
	assert.Equal(t, testutil.TokenAddress, calls[0].To)
	assert.Equal(t, types.OperationCall, calls[0].Operation)
	assert.Equal(t, transferCalldata(t, 25), calls[0].Data)

	stub.SetExecResult(false, nil)
	_, err = module.Withdraw(context.Background(), claim)
	require.ErrorIs(t, err, withdrawal.ErrExecutionFailed)

	stub.SetExecResult(false, errors.New("rpc unavailable"))
	_, err = module.Withdraw(context.Background(), claim)
	require.ErrorIs(t, err, withdrawal.ErrExecutionFailed)
}

func Test_NewContractCallerFromEthereumClient(t *testing.T) {
	l := zaptest.NewLogger(t)

	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   "http://localhost:8545",
		BlockType: ethereum.BlockType_Latest,
	}, l)
	cc, err := caller.NewContractCallerFromEthereumClient(ethClient, nil, l)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, cc.ModuleAddress())

	badClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl: "ftp://localhost:8545",
	}, l)
	_, err = caller.NewContractCallerFromEthereumClient(badClient, nil, l)
	require.Error(t, err)
}

func Test_ContractCaller_ConcurrentModuleTransactions(t *testing.T) {
	h := newOnChainHarness(t, true)
	h.backend.NonceDelay = 20 * time.Millisecond

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := h.caller.ExecTransactionFromModule(context.Background(), testutil.SafeAddress, testutil.TokenAddress, big.NewInt(0), transferCalldata(t, 5), types.OperationCall)
			if err == nil && !result.Success {
				err = errors.New("module transaction reported failure")
			}
			errs[i] = err
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	sent := h.backend.Sent()
	require.Len(t, sent, 4)
	for i, tx := range sent {
		assert.Equal(t, uint64(i), tx.Nonce())
	}
	assert.Equal(t, int64(20), h.fixture.Token.BalanceOf(testutil.Recipient).Int64())
}

func Test_OnChainModule_ConcurrentClaims(t *testing.T) {
	t.Run("every valid claim succeeds", func(t *testing.T) {
		h := newOnChainHarness(t, true)
		h.backend.NonceDelay = 20 * time.Millisecond

		module, err := NewOnChainModule(&withdrawal.ModuleConfig{
			TokenAsset:        testutil.TokenAddress,
			ControllingWallet: testutil.SafeAddress,
		}, h.caller, zaptest.NewLogger(t))
		require.NoError(t, err)

		claim := testutil.SignedClaim(t, h.fixture.OwnerKeys[0], testutil.Recipient, 5, "transfer 5 coins")
		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = module.Withdraw(context.Background(), claim)
			}()
		}
		wg.Wait()

		for _, err := range errs {
			assert.NoError(t, err)
		}
		assert.Len(t, h.backend.Sent(), 4)
		assert.Equal(t, int64(testutil.FixtureBalance-20), h.fixture.SafeBalance().Int64())
	})

	t.Run("losing claims fail on balance", func(t *testing.T) {
		h := newOnChainHarness(t, true)
		h.backend.NonceDelay = 5 * time.Millisecond

		module, err := NewOnChainModule(&withdrawal.ModuleConfig{
			TokenAsset:        testutil.TokenAddress,
			ControllingWallet: testutil.SafeAddress,
		}, h.caller, zaptest.NewLogger(t))
		require.NoError(t, err)

		claim := testutil.SignedClaim(t, h.fixture.OwnerKeys[1], testutil.Recipient, 20, "transfer 20 coins")
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			rejected  int
		)
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := module.Withdraw(context.Background(), claim)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					succeeded++
				} else if errors.Is(err, withdrawal.ErrInsufficientBalance) {
					rejected++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 2, succeeded)
		assert.Equal(t, 4, rejected)
		assert.Len(t, h.backend.Sent(), 2)
		assert.Equal(t, int64(10), h.fixture.SafeBalance().Int64())
	})
}

func Test_OnChainModule_SendFailure(t *testing.T) {
	h := newOnChainHarness(t, true)
	h.backend.SendErr = errors.New("connection refused")

	module, err := NewOnChainModule(&withdrawal.ModuleConfig{
		TokenAsset:        testutil.TokenAddress,
		ControllingWallet: testutil.SafeAddress,
	}, h.caller, zaptest.NewLogger(t))
	require.NoError(t, err)

	claim := testutil.SignedClaim(t, h.fixture.OwnerKeys[0], testutil.Recipient, 10, "transfer 10 coins")
	_, err = module.Withdraw(context.Background(), claim)
	require.ErrorIs(t, err, withdrawal.ErrExecutionFailed)
	kind, ok := withdrawal.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, withdrawal.KindExecutionFailed, kind)

	assert.Empty(t, h.backend.Sent())
	assert.Equal(t, int64(testutil.FixtureBalance), h.fixture.SafeBalance().Int64())
}
