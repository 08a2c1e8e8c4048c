package testutil

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/blockHandler"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// MockChainPoller pushes synthetic blocks to handlers on demand instead of polling a node.
type MockChainPoller struct {
	blockHandlers []blockHandler.IBlockHandler
	logger        *zap.Logger
	currentBlock  uint64
	ctx           context.Context
	cancel        context.CancelFunc
	mu            sync.Mutex
}

func NewMockChainPoller(blockHandlers []blockHandler.IBlockHandler, logger *zap.Logger) *MockChainPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockChainPoller{
		blockHandlers: blockHandlers,
		logger:        logger,
	}
}

// Start arms the poller. Blocks are only emitted by EmitBlock.
func (m *MockChainPoller) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	return nil
}

func (m *MockChainPoller) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

// EmitBlock emits the next block number to every handler. It is a no-op before Start.
func (m *MockChainPoller) EmitBlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return
	}

	m.currentBlock++
	block := &ethereum.EthereumBlock{
		Number:       ethereum.EthereumQuantity(m.currentBlock),
		Hash:         ethereum.EthereumHexString(blockHash(m.currentBlock).Hex()),
		ParentHash:   ethereum.EthereumHexString(blockHash(m.currentBlock - 1).Hex()),
		Timestamp:    ethereum.EthereumQuantity(time.Now().Unix()),
		Transactions: []*ethereum.EthereumTransaction{},
	}
	for _, h := range m.blockHandlers {
		if err := h.HandleBlock(m.ctx, block); err != nil {
			m.logger.Sugar().Warnw("Handler rejected block", "number", m.currentBlock, "error", err)
		}
	}
}

func (m *MockChainPoller) CurrentBlock() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentBlock
}

func blockHash(n uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(n))
}
