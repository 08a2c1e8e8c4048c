package contractCaller

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
)

// MockContractCallerStub provides a minimal stub implementation of IContractCaller for testing
type MockContractCallerStub struct{}

func (m *MockContractCallerStub) ModuleAddress() common.Address {
	return common.Address{}
}

func (m *MockContractCallerStub) BalanceOf(ctx context.Context, token common.Address, account common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (m *MockContractCallerStub) IsOwner(ctx context.Context, wallet common.Address, addr common.Address) (bool, error) {
	return false, nil
}

func (m *MockContractCallerStub) GetOwners(ctx context.Context, wallet common.Address) ([]common.Address, error) {
	return nil, nil
}

func (m *MockContractCallerStub) GetThreshold(ctx context.Context, wallet common.Address) (uint64, error) {
	return 0, nil
}

func (m *MockContractCallerStub) IsModuleEnabled(ctx context.Context, wallet common.Address, module common.Address) (bool, error) {
	return false, nil
}

func (m *MockContractCallerStub) ExecTransactionFromModule(ctx context.Context, wallet common.Address, to common.Address, value *big.Int, data []byte, operation types.Operation) (*caller.ModuleExecution, error) {
	return &caller.ModuleExecution{Success: true, Receipt: &ethTypes.Receipt{Status: 1}}, nil
}

// ModuleCall records an ExecTransactionFromModule invocation.
type ModuleCall struct {
	Wallet    common.Address
	To        common.Address
	Value     *big.Int
	Data      []byte
	Operation types.Operation
}

// TestableContractCallerStub extends MockContractCallerStub with configurable balances,
// owners and module execution results.
type TestableContractCallerStub struct {
	MockContractCallerStub

	mu       sync.RWMutex
	module   common.Address
	balances map[common.Address]*big.Int
	owners   map[common.Address]bool
	execErr  error
	execOK   bool
	calls    []ModuleCall
}

func NewTestableContractCallerStub(module common.Address) *TestableContractCallerStub {
	return &TestableContractCallerStub{
		module:   module,
		balances: make(map[common.Address]*big.Int),
		owners:   make(map[common.Address]bool),
		execOK:   true,
	}
}

func (m *TestableContractCallerStub) SetBalance(account common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = new(big.Int).Set(amount)
}

func (m *TestableContractCallerStub) AddOwner(owner common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[owner] = true
}

// SetExecResult sets what ExecTransactionFromModule returns.
func (m *TestableContractCallerStub) SetExecResult(ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execOK = ok
	m.execErr = err
}

func (m *TestableContractCallerStub) Calls() []ModuleCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ModuleCall(nil), m.calls...)
}

func (m *TestableContractCallerStub) ModuleAddress() common.Address {
	return m.module
}

func (m *TestableContractCallerStub) BalanceOf(ctx context.Context, token common.Address, account common.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (m *TestableContractCallerStub) IsOwner(ctx context.Context, wallet common.Address, addr common.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.owners[addr], nil
}

func (m *TestableContractCallerStub) IsModuleEnabled(ctx context.Context, wallet common.Address, module common.Address) (bool, error) {
	return module == m.module, nil
}

func (m *TestableContractCallerStub) ExecTransactionFromModule(ctx context.Context, wallet common.Address, to common.Address, value *big.Int, data []byte, operation types.Operation) (*caller.ModuleExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, ModuleCall{Wallet: wallet, To: to, Value: value, Data: data, Operation: operation})
	if m.execErr != nil {
		return nil, fmt.Errorf("exec failed: %w", m.execErr)
	}
	return &caller.ModuleExecution{Success: m.execOK, Receipt: &ethTypes.Receipt{Status: 1}}, nil
}

var (
	_ IContractCaller = (*MockContractCallerStub)(nil)
	_ IContractCaller = (*TestableContractCallerStub)(nil)
)
