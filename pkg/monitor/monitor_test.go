package monitor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/blockHandler"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/testutil"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func monitorConfig() *Config {
	return &Config{
		TokenAsset:        testutil.TokenAddress,
		ControllingWallet: testutil.SafeAddress,
		Module:            testutil.ModuleAddress,
	}
}

func Test_ModuleMonitor_FollowsChain(t *testing.T) {
	l := zaptest.NewLogger(t)
	f := testutil.NewWithdrawalFixture(t, l)
	backend := testutil.NewChainBackend(f.Chain)

	reader, err := caller.NewContractCaller(backend, nil, l)
	require.NoError(t, err)

	m, err := NewModuleMonitor(monitorConfig(), reader, l)
	require.NoError(t, err)
	assert.Nil(t, m.Status())

	bh := blockHandler.NewBlockHandler(l)
	poller, err := NewHeaderPoller(backend, time.Hour, []blockHandler.IBlockHandler{bh}, l)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx, bh)

	require.NoError(t, poller.Poll(ctx))
	require.Eventually(t, func() bool { return m.Status() != nil }, 2*time.Second, 10*time.Millisecond)

	status := m.Status()
	assert.True(t, status.ModuleEnabled)
	assert.Equal(t, uint64(testutil.FixtureThreshold), status.Threshold)
	assert.Len(t, status.Owners, testutil.FixtureOwners)
	assert.Equal(t, "50", status.Balance)
	assert.Empty(t, status.Error)

	f.DisableModule(t, f.OwnerKeys[0], f.OwnerKeys[1])

	// same head: nothing new is emitted
	require.NoError(t, poller.Poll(ctx))
	head := backend.MineBlock()
	require.NoError(t, poller.Poll(ctx))

	require.Eventually(t, func() bool {
		s := m.Status()
		return s != nil && s.BlockNumber == head
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, m.Status().ModuleEnabled)
	assert.Equal(t, head, bh.LatestBlock())
}

type countingReader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingReader) BalanceOf(ctx context.Context, token common.Address, account common.Address) (*big.Int, error) {
	return big.NewInt(7), nil
}

func (c *countingReader) GetOwners(ctx context.Context, wallet common.Address) ([]common.Address, error) {
	return []common.Address{testutil.Recipient}, nil
}

func (c *countingReader) GetThreshold(ctx context.Context, wallet common.Address) (uint64, error) {
	return 1, nil
}

func (c *countingReader) IsModuleEnabled(ctx context.Context, wallet common.Address, module common.Address) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return true, c.err
}

func (c *countingReader) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func Test_ModuleMonitor_CheckEvery(t *testing.T) {
	l := zaptest.NewLogger(t)
	reader := &countingReader{}

	cfg := monitorConfig()
	cfg.CheckEvery = 2
	m, err := NewModuleMonitor(cfg, reader, l)
	require.NoError(t, err)

	bh := blockHandler.NewBlockHandler(l)
	poller := testutil.NewMockChainPoller([]blockHandler.IBlockHandler{bh}, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, poller.Start(ctx))
	defer poller.Stop()
	go m.Run(ctx, bh)

	// block 1 is the first check, block 2 the next multiple of two, block 3 is skipped
	for i := 0; i < 4; i++ {
		poller.EmitBlock()
	}
	require.Eventually(t, func() bool {
		s := m.Status()
		return s != nil && s.BlockNumber == 4
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, reader.Calls())

	status := m.Status()
	assert.Equal(t, "7", status.Balance)
	assert.Equal(t, []string{testutil.Recipient.Hex()}, status.Owners)
}

func Test_ModuleMonitor_RecordsErrors(t *testing.T) {
	reader := &countingReader{err: errors.New("rpc down")}
	m, err := NewModuleMonitor(monitorConfig(), reader, zaptest.NewLogger(t))
	require.NoError(t, err)

	status, err := m.Refresh(context.Background(), 9)
	require.Error(t, err)
	assert.Equal(t, "rpc down", status.Error)
	assert.Equal(t, uint64(9), status.BlockNumber)

	// snapshots are copies
	status.Owners = append(status.Owners, "x")
	assert.NotEqual(t, status.Owners, m.Status().Owners)
}

func Test_NewModuleMonitor_Validation(t *testing.T) {
	l := zaptest.NewLogger(t)
	_, err := NewModuleMonitor(nil, &countingReader{}, l)
	require.Error(t, err)
	_, err = NewModuleMonitor(monitorConfig(), nil, l)
	require.Error(t, err)
	_, err = NewModuleMonitor(&Config{}, &countingReader{}, l)
	require.Error(t, err)

	_, err = NewHeaderPoller(nil, time.Second, nil, l)
	require.Error(t, err)
	_, err = NewHeaderPoller(testutil.NewChainBackend(nil), 0, nil, l)
	require.Error(t, err)
}

var _ interface{ Status() *types.ModuleStatus } = (*ModuleMonitor)(nil)
