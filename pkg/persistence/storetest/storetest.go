// Package storetest holds the behaviour every IWithdrawalEventStore backend must share.
package storetest

import (
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	Alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	Bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

// NewEvent builds an unsaved event with a fresh ID.
func NewEvent(recipient common.Address, amount int64) *types.WithdrawalEvent {
	return &types.WithdrawalEvent{
		ID:                uuid.New().String(),
		TokenAsset:        common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		ControllingWallet: common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
		Recipient:         recipient,
		Amount:            big.NewInt(amount),
		Signer:            common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		MessageDigest:     common.BigToHash(big.NewInt(amount)),
		Timestamp:         1700000000 + amount,
	}
}

// Run exercises a store created by newStore. Every subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) persistence.IWithdrawalEventStore) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		event := NewEvent(Alice, 10)
		require.NoError(t, store.SaveEvent(event))
		assert.Equal(t, uint64(1), event.Sequence)

		loaded, err := store.LoadEvent(event.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, event.ID, loaded.ID)
		assert.Equal(t, uint64(1), loaded.Sequence)
		assert.Equal(t, Alice, loaded.Recipient)
		assert.Equal(t, int64(10), loaded.Amount.Int64())
		assert.Equal(t, event.MessageDigest, loaded.MessageDigest)
	})

	t.Run("LoadMissing", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		loaded, err := store.LoadEvent("does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SequenceIsMonotonic", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		for i := 1; i <= 5; i++ {
			e := NewEvent(Alice, int64(i))
			require.NoError(t, store.SaveEvent(e))
			assert.Equal(t, uint64(i), e.Sequence)
		}

		events, err := store.ListEvents()
		require.NoError(t, err)
		require.Len(t, events, 5)
		for i, e := range events {
			assert.Equal(t, uint64(i+1), e.Sequence)
			assert.Equal(t, int64(i+1), e.Amount.Int64())
		}
	})

	t.Run("SaveIsIdempotent", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		event := NewEvent(Alice, 10)
		require.NoError(t, store.SaveEvent(event))

		again := event.Copy()
		again.Sequence = 0
		require.NoError(t, store.SaveEvent(again))
		assert.Equal(t, event.Sequence, again.Sequence)

		events, err := store.ListEvents()
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("ListByRecipient", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		require.NoError(t, store.SaveEvent(NewEvent(Alice, 1)))
		require.NoError(t, store.SaveEvent(NewEvent(Bob, 2)))
		require.NoError(t, store.SaveEvent(NewEvent(Alice, 3)))

		aliceEvents, err := store.ListEventsByRecipient(Alice)
		require.NoError(t, err)
		require.Len(t, aliceEvents, 2)
		assert.Equal(t, int64(1), aliceEvents[0].Amount.Int64())
		assert.Equal(t, int64(3), aliceEvents[1].Amount.Int64())

		none, err := store.ListEventsByRecipient(common.HexToAddress("0x1234"))
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		event := NewEvent(Alice, 10)
		require.NoError(t, store.SaveEvent(event))
		event.Amount.SetInt64(999)

		loaded, err := store.LoadEvent(event.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), loaded.Amount.Int64())

		loaded.Amount.SetInt64(555)
		reloaded, err := store.LoadEvent(event.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), reloaded.Amount.Int64())
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		require.Error(t, store.SaveEvent(nil))
		e := NewEvent(Alice, 1)
		e.ID = ""
		require.Error(t, store.SaveEvent(e))
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := store.SaveEvent(NewEvent(Bob, int64(i+1))); err != nil {
					errs <- fmt.Errorf("save %d: %w", i, err)
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		events, err := store.ListEvents()
		require.NoError(t, err)
		require.Len(t, events, n)
		seen := make(map[uint64]bool, n)
		for _, e := range events {
			assert.False(t, seen[e.Sequence], "duplicate sequence %d", e.Sequence)
			seen[e.Sequence] = true
		}
		assert.True(t, seen[1])
		assert.True(t, seen[n])
	})

	t.Run("HealthCheckAndClose", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.HealthCheck())
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		require.Error(t, store.HealthCheck())
		require.Error(t, store.SaveEvent(NewEvent(Alice, 1)))
		_, err := store.LoadEvent("x")
		require.Error(t, err)
		_, err = store.ListEvents()
		require.Error(t, err)
	})
}
