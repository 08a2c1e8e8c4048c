package blockHandler

import (
	"context"
	"sync/atomic"

	chainPoller "github.com/Layr-Labs/chain-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"go.uber.org/zap"
)

// IBlockHandler receives blocks from a poller and hands them to one listener.
type IBlockHandler interface {
	chainPoller.IBlockHandler
	ListenToChannel(ctx context.Context, handleFunc func(*ethereum.EthereumBlock))
	LatestBlock() uint64
}

const blockChannelSize = 100

type BlockHandler struct {
	BlockChannel chan *ethereum.EthereumBlock
	latest       atomic.Uint64
	logger       *zap.Logger
}

func NewBlockHandler(logger *zap.Logger) *BlockHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockHandler{
		BlockChannel: make(chan *ethereum.EthereumBlock, blockChannelSize),
		logger:       logger,
	}
}

// ListenToChannel calls handleFunc for each block until ctx is done.
func (h *BlockHandler) ListenToChannel(ctx context.Context, handleFunc func(*ethereum.EthereumBlock)) {
	for {
		select {
		case block := <-h.BlockChannel:
			h.logger.Sugar().Debugw("Handling block", "number", block.Number.Value())
			handleFunc(block)
		case <-ctx.Done():
			h.logger.Sugar().Debug("Block listener exiting")
			return
		}
	}
}

// HandleBlock never blocks the poller; a full channel drops the block.
func (h *BlockHandler) HandleBlock(ctx context.Context, block *ethereum.EthereumBlock) error {
	if block == nil {
		return nil
	}
	if n := block.Number.Value(); n > h.latest.Load() {
		h.latest.Store(n)
	}
	select {
	case h.BlockChannel <- block:
	case <-ctx.Done():
		h.logger.Sugar().Warnw("Context done before queueing block", "number", block.Number.Value())
	default:
		h.logger.Sugar().Warnw("Block channel is full, dropping block", "number", block.Number.Value())
	}
	return nil
}

// HandleLog ignores logs; module state is re-read per block instead.
func (h *BlockHandler) HandleLog(ctx context.Context, logWithBlock *chainPoller.LogWithBlock) error {
	return nil
}

func (h *BlockHandler) HandleReorgBlock(ctx context.Context, blockNumber uint64) {
	h.logger.Sugar().Debugw("Ignoring reorg", "number", blockNumber)
}

// LatestBlock is the highest block number seen, or zero.
func (h *BlockHandler) LatestBlock() uint64 {
	return h.latest.Load()
}

var _ IBlockHandler = (*BlockHandler)(nil)
