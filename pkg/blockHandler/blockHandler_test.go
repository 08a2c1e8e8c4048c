package blockHandler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func block(n uint64) *ethereum.EthereumBlock {
	return &ethereum.EthereumBlock{
		Number:    ethereum.EthereumQuantity(n),
		Hash:      ethereum.EthereumHexString("0x123"),
		Timestamp: ethereum.EthereumQuantity(time.Now().Unix()),
	}
}

func Test_BlockHandler(t *testing.T) {
	t.Run("delivers blocks in order", func(t *testing.T) {
		bh := NewBlockHandler(zaptest.NewLogger(t))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var (
			mu       sync.Mutex
			received []uint64
		)
		go bh.ListenToChannel(ctx, func(b *ethereum.EthereumBlock) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, b.Number.Value())
		})

		want := []uint64{1, 2, 5, 10, 15}
		for _, n := range want {
			require.NoError(t, bh.HandleBlock(ctx, block(n)))
		}

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(received) == len(want)
		}, 2*time.Second, 10*time.Millisecond)

		mu.Lock()
		assert.Equal(t, want, received)
		mu.Unlock()
		assert.Equal(t, uint64(15), bh.LatestBlock())
	})

	t.Run("full channel drops without blocking", func(t *testing.T) {
		bh := NewBlockHandler(zaptest.NewLogger(t))
		ctx := context.Background()

		for i := 0; i < blockChannelSize+10; i++ {
			require.NoError(t, bh.HandleBlock(ctx, block(uint64(i+1))))
		}
		assert.Len(t, bh.BlockChannel, blockChannelSize)
		assert.Equal(t, uint64(blockChannelSize+10), bh.LatestBlock())
	})

	t.Run("listener stops on cancel", func(t *testing.T) {
		bh := NewBlockHandler(zaptest.NewLogger(t))
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan struct{})
		go func() {
			bh.ListenToChannel(ctx, func(*ethereum.EthereumBlock) {})
			close(done)
		}()
		cancel()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("listener did not exit")
		}
	})

	t.Run("logs and reorgs are ignored", func(t *testing.T) {
		bh := NewBlockHandler(zaptest.NewLogger(t))
		require.NoError(t, bh.HandleLog(context.Background(), nil))
		bh.HandleReorgBlock(context.Background(), 10)
		assert.Len(t, bh.BlockChannel, 0)
		require.NoError(t, bh.HandleBlock(context.Background(), nil))
	})
}
