package badger

import (
	"testing"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/logger"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence/storetest"
	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerPersistence(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.IWithdrawalEventStore {
		testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
		bp, err := NewBadgerPersistence(t.TempDir(), testLogger)
		require.NoError(t, err)
		return bp
	})
}

func TestBadgerPersistence_SurvivesRestart(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bp, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)

	first := storetest.NewEvent(storetest.Alice, 10)
	second := storetest.NewEvent(storetest.Bob, 20)
	require.NoError(t, bp.SaveEvent(first))
	require.NoError(t, bp.SaveEvent(second))
	require.NoError(t, bp.Close())

	bp, err = NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)
	defer func() { _ = bp.Close() }()

	events, err := bp.ListEvents()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)

	// the sequence counter continues where it left off
	third := storetest.NewEvent(storetest.Alice, 30)
	require.NoError(t, bp.SaveEvent(third))
	assert.Equal(t, uint64(3), third.Sequence)

	aliceEvents, err := bp.ListEventsByRecipient(storetest.Alice)
	require.NoError(t, err)
	require.Len(t, aliceEvents, 2)
	assert.Equal(t, uint64(1), aliceEvents[0].Sequence)
	assert.Equal(t, uint64(3), aliceEvents[1].Sequence)
}

func TestBadgerPersistence_RejectsUnknownSchema(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	opts := badgerdb.DefaultOptions(tmpDir)
	opts.Logger = nil
	db, err := badgerdb.Open(opts)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keySchemaVersion), []byte("v0"))
	}))
	require.NoError(t, db.Close())

	_, err = NewBadgerPersistence(tmpDir, testLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version")
}

func TestBadgerPersistence_ImplementsInterface(t *testing.T) {
	var _ persistence.IWithdrawalEventStore = (*BadgerPersistence)(nil)
}
