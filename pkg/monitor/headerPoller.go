package monitor

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/blockHandler"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

type IHeaderSource interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethTypes.Header, error)
}

// HeaderPoller follows the chain head and emits each new head to its handlers. Skipped
// heights are not backfilled.
type HeaderPoller struct {
	source   IHeaderSource
	interval time.Duration
	handlers []blockHandler.IBlockHandler
	logger   *zap.Logger

	mu   sync.Mutex
	seen bool
	last uint64
}

func NewHeaderPoller(source IHeaderSource, interval time.Duration, handlers []blockHandler.IBlockHandler, logger *zap.Logger) (*HeaderPoller, error) {
	if source == nil {
		return nil, fmt.Errorf("header source cannot be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeaderPoller{source: source, interval: interval, handlers: handlers, logger: logger}, nil
}

// Start polls in the background until ctx is done.
func (p *HeaderPoller) Start(ctx context.Context) error {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			if err := p.Poll(ctx); err != nil {
				p.logger.Sugar().Warnw("Failed to poll chain head", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

// Poll fetches the head once and emits it if it is new.
func (p *HeaderPoller) Poll(ctx context.Context) error {
	header, err := p.source.HeaderByNumber(ctx, nil)
	if err != nil {
		return err
	}
	if header == nil || header.Number == nil {
		return fmt.Errorf("node returned an empty header")
	}
	n := header.Number.Uint64()

	p.mu.Lock()
	if p.seen && n <= p.last {
		p.mu.Unlock()
		return nil
	}
	p.seen = true
	p.last = n
	p.mu.Unlock()

	block := &ethereum.EthereumBlock{
		Number:     ethereum.EthereumQuantity(n),
		Hash:       ethereum.EthereumHexString(header.Hash().Hex()),
		ParentHash: ethereum.EthereumHexString(header.ParentHash.Hex()),
		Timestamp:  ethereum.EthereumQuantity(header.Time),
	}
	for _, h := range p.handlers {
		if err := h.HandleBlock(ctx, block); err != nil {
			p.logger.Sugar().Warnw("Handler rejected block", "number", n, "error", err)
		}
	}
	return nil
}
