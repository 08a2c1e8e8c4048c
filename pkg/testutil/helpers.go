package testutil

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/ledger"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/middleware-bindings/ISafe"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/withdrawal"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Well-known anvil/hardhat development keys.
var devKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
	"47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a",
}

var (
	TokenAddress  = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	SafeAddress   = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	ModuleAddress = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	Recipient     = common.HexToAddress("0x976EA74026E726554dB657fA54763abd0C3a0aa9")
)

// ModuleKeyIndex is the dev key used as an externally owned module address by the
// on-chain caller tests.
const ModuleKeyIndex = 4

const (
	FixtureBalance   = 50
	FixtureOwners    = 3
	FixtureThreshold = 2
)

// DevKey returns the i-th development private key.
func DevKey(t testing.TB, i int) *ecdsa.PrivateKey {
	t.Helper()
	require.Less(t, i, len(devKeys), "only %d dev keys available", len(devKeys))
	key, err := crypto.HexToECDSA(devKeys[i])
	require.NoError(t, err)
	return key
}

func GenerateKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

// WithdrawalFixture is a funded wallet with three owners, threshold two, and the withdrawal
// module enabled through an owner-approved transaction.
type WithdrawalFixture struct {
	Chain  *ledger.Chain
	Token  *ledger.TokenLedger
	Safe   *ledger.SafeWallet
	Module *ledger.HostedModule

	OwnerKeys []*ecdsa.PrivateKey
	Outsider  *ecdsa.PrivateKey
}

type FixtureOption func(cfg *withdrawal.ModuleConfig)

func WithEventSink(sink withdrawal.IEventSink) FixtureOption {
	return func(cfg *withdrawal.ModuleConfig) {
		cfg.EventSink = sink
	}
}

func NewWithdrawalFixture(t testing.TB, logger *zap.Logger, opts ...FixtureOption) *WithdrawalFixture {
	t.Helper()

	f := &WithdrawalFixture{
		Chain:    ledger.NewChain(logger),
		Outsider: DevKey(t, FixtureOwners),
	}
	for i := 0; i < FixtureOwners; i++ {
		f.OwnerKeys = append(f.OwnerKeys, DevKey(t, i))
	}

	var err error
	f.Token, err = f.Chain.DeployToken(TokenAddress)
	require.NoError(t, err)

	f.Safe, err = f.Chain.DeploySafe(SafeAddress, f.Owners(), FixtureThreshold)
	require.NoError(t, err)

	require.NoError(t, f.Token.Mint(SafeAddress, big.NewInt(FixtureBalance)))

	cfg := &withdrawal.ModuleConfig{
		TokenAsset:        TokenAddress,
		ControllingWallet: SafeAddress,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	f.Module, err = f.Chain.DeployModule(ModuleAddress, cfg, logger)
	require.NoError(t, err)

	data, err := safeCalldata("enableModule", ModuleAddress)
	require.NoError(t, err)
	ok := ExecBySigners(t, f.Safe, SafeAddress, data, f.OwnerKeys[0], f.OwnerKeys[1])
	require.True(t, ok, "enableModule should succeed")
	require.True(t, f.Safe.IsModuleEnabled(ModuleAddress))

	return f
}

func (f *WithdrawalFixture) Owners() []common.Address {
	owners := make([]common.Address, len(f.OwnerKeys))
	for i, k := range f.OwnerKeys {
		owners[i] = crypto.PubkeyToAddress(k.PublicKey)
	}
	return owners
}

func (f *WithdrawalFixture) SafeBalance() *big.Int {
	return f.Token.BalanceOf(SafeAddress)
}

// RemoveOwner removes an owner through an owner-approved transaction, keeping the threshold.
func (f *WithdrawalFixture) RemoveOwner(t testing.TB, owner common.Address, approvers ...*ecdsa.PrivateKey) {
	t.Helper()
	data, err := safeCalldata("removeOwner", common.Address{}, owner, big.NewInt(int64(f.Safe.Threshold())))
	require.NoError(t, err)
	require.True(t, ExecBySigners(t, f.Safe, SafeAddress, data, approvers...))
}

// EnableModule enables module on the wallet through an owner-approved transaction.
func (f *WithdrawalFixture) EnableModule(t testing.TB, module common.Address, approvers ...*ecdsa.PrivateKey) {
	t.Helper()
	data, err := safeCalldata("enableModule", module)
	require.NoError(t, err)
	require.True(t, ExecBySigners(t, f.Safe, SafeAddress, data, approvers...))
}

// DisableModule disables the withdrawal module through an owner-approved transaction.
func (f *WithdrawalFixture) DisableModule(t testing.TB, approvers ...*ecdsa.PrivateKey) {
	t.Helper()
	data, err := safeCalldata("disableModule", common.Address{}, ModuleAddress)
	require.NoError(t, err)
	require.True(t, ExecBySigners(t, f.Safe, SafeAddress, data, approvers...))
}

// ExecBySigners approves and executes a wallet call with the given owner keys.
func ExecBySigners(t testing.TB, safe *ledger.SafeWallet, to common.Address, data []byte, keys ...*ecdsa.PrivateKey) bool {
	t.Helper()
	hash, err := safe.TransactionHash(to, big.NewInt(0), data, types.OperationCall, safe.Nonce())
	require.NoError(t, err)

	sigs := make([][]byte, 0, len(keys))
	for _, key := range keys {
		sig, err := signature.SignRawDigest(key, hash)
		require.NoError(t, err)
		sigs = append(sigs, sig)
	}

	ok, err := safe.ExecTransaction(to, big.NewInt(0), data, types.OperationCall, sigs)
	require.NoError(t, err)
	return ok
}

// SignedClaim builds a claim signed by key over keccak256(message).
func SignedClaim(t testing.TB, key *ecdsa.PrivateKey, recipient common.Address, amount int64, message string) *types.WithdrawalClaim {
	t.Helper()
	digest := signature.MessageDigest(message)
	sig, err := signature.SignPersonalMessage(key, digest)
	require.NoError(t, err)
	return &types.WithdrawalClaim{
		Recipient:     recipient,
		Amount:        big.NewInt(amount),
		Signature:     sig,
		MessageDigest: digest,
	}
}

func safeCalldata(method string, args ...interface{}) ([]byte, error) {
	parsed, err := ISafe.ISafeMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return parsed.Pack(method, args...)
}

// SafeCalldata packs a call to one of the wallet's administrative methods.
func SafeCalldata(t testing.TB, method string, args ...interface{}) []byte {
	t.Helper()
	data, err := safeCalldata(method, args...)
	require.NoError(t, err)
	return data
}
