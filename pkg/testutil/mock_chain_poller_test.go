package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/blockHandler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMockChainPoller(t *testing.T) {
	l := zaptest.NewLogger(t)
	bh := blockHandler.NewBlockHandler(l)
	poller := NewMockChainPoller([]blockHandler.IBlockHandler{bh}, l)

	poller.EmitBlock()
	assert.Equal(t, uint64(0), poller.CurrentBlock(), "emitting before start is a no-op")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, poller.Start(ctx))
	defer poller.Stop()

	received := make(chan uint64, 10)
	go bh.ListenToChannel(ctx, func(block *ethereum.EthereumBlock) {
		received <- block.Number.Value()
	})

	for want := uint64(1); want <= 2; want++ {
		poller.EmitBlock()
		select {
		case got := <-received:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for block %d", want)
		}
	}
	assert.Equal(t, uint64(2), poller.CurrentBlock())
	assert.Equal(t, uint64(2), bh.LatestBlock())
}
