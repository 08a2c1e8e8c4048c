package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/ledger"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/middleware-bindings/IERC20"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/middleware-bindings/ISafe"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
)

// AnvilChainID is the chain ID reported by ChainBackend.
var AnvilChainID = big.NewInt(31337)

var (
	safeABI  = mustABI(ISafe.ISafeMetaData)
	erc20ABI = mustABI(IERC20.IERC20MetaData)
)

func mustABI(md interface{ GetAbi() (*abi.ABI, error) }) *abi.ABI {
	parsed, err := md.GetAbi()
	if err != nil {
		panic(err)
	}
	return parsed
}

// ChainBackend answers JSON-RPC shaped calls (the methods of *ethclient.Client used by the
// signers and the contract caller) from an in-process ledger.Chain. Every sent transaction
// is mined immediately in its own block.
type ChainBackend struct {
	chain *ledger.Chain

	// OnSend runs after a transaction is accepted and before it executes.
	OnSend func(tx *ethTypes.Transaction)
	// TipCapErr makes SuggestGasTipCap fail.
	TipCapErr error
	// SendErr makes SendTransaction fail before the transaction is accepted.
	SendErr error
	// NonceDelay stalls PendingNonceAt after the nonce is read, like a slow RPC.
	NonceDelay time.Duration

	mu       sync.Mutex
	block    uint64
	baseFee  *big.Int
	nonces   map[common.Address]uint64
	txs      map[common.Hash]*ethTypes.Transaction
	receipts map[common.Hash]*ethTypes.Receipt
	sent     []*ethTypes.Transaction
}

func NewChainBackend(chain *ledger.Chain) *ChainBackend {
	return &ChainBackend{
		chain:    chain,
		block:    1,
		baseFee:  big.NewInt(1000000000),
		nonces:   make(map[common.Address]uint64),
		txs:      make(map[common.Hash]*ethTypes.Transaction),
		receipts: make(map[common.Hash]*ethTypes.Receipt),
	}
}

// Sent returns every transaction accepted by SendTransaction.
func (b *ChainBackend) Sent() []*ethTypes.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*ethTypes.Transaction(nil), b.sent...)
}

func (b *ChainBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(AnvilChainID), nil
}

func (b *ChainBackend) hasCode(account common.Address) bool {
	if _, ok := b.chain.Safe(account); ok {
		return true
	}
	_, ok := b.chain.Token(account)
	return ok
}

func (b *ChainBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if b.hasCode(account) {
		return []byte{0x60, 0x80}, nil
	}
	return nil, nil
}

func (b *ChainBackend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return b.CodeAt(ctx, account, nil)
}

func (b *ChainBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if call.To == nil {
		return nil, fmt.Errorf("contract creation is not supported")
	}
	if len(call.Data) < 4 {
		return nil, nil
	}
	if safe, ok := b.chain.Safe(*call.To); ok {
		return b.callSafe(safe, call)
	}
	if token, ok := b.chain.Token(*call.To); ok {
		return b.callToken(token, call)
	}
	return nil, nil
}

func (b *ChainBackend) callSafe(safe *ledger.SafeWallet, call ethereum.CallMsg) ([]byte, error) {
	method, args, err := unpackCall(safeABI, call.Data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "isOwner":
		return method.Outputs.Pack(safe.IsOwner(args[0].(common.Address)))
	case "getOwners":
		return method.Outputs.Pack(safe.Owners())
	case "getThreshold":
		return method.Outputs.Pack(new(big.Int).SetUint64(safe.Threshold()))
	case "nonce":
		return method.Outputs.Pack(new(big.Int).SetUint64(safe.Nonce()))
	case "isModuleEnabled":
		return method.Outputs.Pack(safe.IsModuleEnabled(args[0].(common.Address)))
	case "execTransactionFromModule":
		ok, err := safe.SimulateTransactionFromModule(
			call.From,
			args[0].(common.Address),
			args[1].(*big.Int),
			args[2].([]byte),
			types.Operation(args[3].(uint8)),
		)
		if err != nil {
			return nil, fmt.Errorf("execution reverted: %w", err)
		}
		return method.Outputs.Pack(ok)
	default:
		return nil, fmt.Errorf("execution reverted: %s is not callable", method.Name)
	}
}

func (b *ChainBackend) callToken(token *ledger.TokenLedger, call ethereum.CallMsg) ([]byte, error) {
	method, args, err := unpackCall(erc20ABI, call.Data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "balanceOf":
		return method.Outputs.Pack(token.BalanceOf(args[0].(common.Address)))
	case "totalSupply":
		return method.Outputs.Pack(token.TotalSupply())
	case "allowance":
		return method.Outputs.Pack(big.NewInt(0))
	default:
		return nil, fmt.Errorf("execution reverted: %s is not callable", method.Name)
	}
}

func unpackCall(parsed *abi.ABI, data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("execution reverted: calldata too short")
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, nil, fmt.Errorf("execution reverted: %w", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("execution reverted: %w", err)
	}
	return method, args, nil
}

func (b *ChainBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*ethTypes.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &ethTypes.Header{
		Number:  new(big.Int).SetUint64(b.block),
		BaseFee: new(big.Int).Set(b.baseFee),
	}, nil
}

// MineBlock advances the head by one empty block.
func (b *ChainBackend) MineBlock() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.block++
	return b.block
}

func (b *ChainBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	nonce := b.nonces[account]
	b.mu.Unlock()
	if b.NonceDelay > 0 {
		time.Sleep(b.NonceDelay)
	}
	return nonce, nil
}

func (b *ChainBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2000000000), nil
}

func (b *ChainBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if b.TipCapErr != nil {
		return nil, b.TipCapErr
	}
	return big.NewInt(1000000000), nil
}

func (b *ChainBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if len(call.Data) == 0 {
		return 21000, nil
	}
	return 100000, nil
}

func (b *ChainBackend) SendTransaction(ctx context.Context, tx *ethTypes.Transaction) error {
	if b.SendErr != nil {
		return b.SendErr
	}
	sender, err := ethTypes.Sender(ethTypes.LatestSignerForChainID(AnvilChainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	b.mu.Lock()
	if tx.Nonce() != b.nonces[sender] {
		b.mu.Unlock()
		return fmt.Errorf("nonce too low: have %d, want %d", tx.Nonce(), b.nonces[sender])
	}
	b.nonces[sender]++
	b.block++
	blockNumber := b.block
	b.txs[tx.Hash()] = tx
	b.sent = append(b.sent, tx)
	b.mu.Unlock()

	if b.OnSend != nil {
		b.OnSend(tx)
	}

	receipt := &ethTypes.Receipt{
		Type:        tx.Type(),
		Status:      ethTypes.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		GasUsed:     21000,
		BlockNumber: new(big.Int).SetUint64(blockNumber),
		Logs:        []*ethTypes.Log{},
	}
	if tx.To() != nil {
		if _, ok := b.chain.Safe(*tx.To()); ok {
			b.executeOnSafe(ctx, sender, tx, receipt)
		}
	}

	b.mu.Lock()
	b.receipts[tx.Hash()] = receipt
	b.mu.Unlock()
	return nil
}

func (b *ChainBackend) executeOnSafe(ctx context.Context, sender common.Address, tx *ethTypes.Transaction, receipt *ethTypes.Receipt) {
	wallet := *tx.To()
	receipt.GasUsed = 80000

	method, args, err := unpackCall(safeABI, tx.Data())
	if err != nil || method.Name != "execTransactionFromModule" {
		receipt.Status = ethTypes.ReceiptStatusFailed
		return
	}

	var success bool
	err = b.chain.Atomically(func() error {
		var err error
		success, err = b.chain.WalletFor(sender).ExecTransactionFromModule(
			ctx,
			wallet,
			args[0].(common.Address),
			args[1].(*big.Int),
			args[2].([]byte),
			types.Operation(args[3].(uint8)),
		)
		return err
	})
	if err != nil {
		receipt.Status = ethTypes.ReceiptStatusFailed
		return
	}

	event := safeABI.Events["ExecutionFromModuleSuccess"]
	if !success {
		event = safeABI.Events["ExecutionFromModuleFailure"]
	}
	receipt.Logs = append(receipt.Logs, &ethTypes.Log{
		Address:     wallet,
		Topics:      []common.Hash{event.ID, common.BytesToHash(sender.Bytes())},
		Data:        []byte{},
		BlockNumber: receipt.BlockNumber.Uint64(),
		TxHash:      tx.Hash(),
	})
}

func (b *ChainBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethTypes.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	receipt, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (b *ChainBackend) TransactionByHash(ctx context.Context, hash common.Hash) (*ethTypes.Transaction, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, ok := b.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, false, nil
}

func (b *ChainBackend) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethTypes.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	logs := make([]ethTypes.Log, 0)
	for _, receipt := range b.receipts {
		for _, l := range receipt.Logs {
			if len(query.Addresses) > 0 && !containsAddress(query.Addresses, l.Address) {
				continue
			}
			logs = append(logs, *l)
		}
	}
	return logs, nil
}

func (b *ChainBackend) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- ethTypes.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions are not supported")
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}
