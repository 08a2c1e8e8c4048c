package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixEvent     = "withdrawal:event:"
	keyPrefixSequence  = "withdrawal:seq:"
	keyPrefixRecipient = "withdrawal:recipient:"
	keyLastSequence    = "metadata:last_sequence"
	keySchemaVersion   = "metadata:schema_version"
)

// BadgerPersistence is a disk-backed IWithdrawalEventStore.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup

	// writeMu serializes SaveEvent so sequence allocation never conflicts
	writeMu sync.Mutex

	mu     sync.RWMutex
	closed bool
}

// NewBadgerPersistence opens the database at dataPath with SyncWrites enabled and starts
// background value log GC.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(persistence.CurrentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != persistence.CurrentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, persistence.CurrentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func eventKey(id string) []byte {
	return []byte(keyPrefixEvent + id)
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, len(keyPrefixSequence)+8)
	copy(key, keyPrefixSequence)
	binary.BigEndian.PutUint64(key[len(keyPrefixSequence):], seq)
	return key
}

func recipientPrefix(recipient common.Address) []byte {
	return []byte(keyPrefixRecipient + strings.ToLower(recipient.Hex()) + ":")
}

func recipientKey(recipient common.Address, seq uint64) []byte {
	prefix := recipientPrefix(recipient)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

func (b *BadgerPersistence) SaveEvent(event *types.WithdrawalEvent) error {
	if err := persistence.ValidateEvent(event); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	var assigned uint64
	err := b.db.Update(func(txn *badgerdb.Txn) error {
		existing, err := getEvent(txn, event.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			assigned = existing.Sequence
			return nil
		}

		last, err := getUint64(txn, []byte(keyLastSequence))
		if err != nil {
			return err
		}
		assigned = last + 1

		record := event.Copy()
		record.Sequence = assigned
		data, err := persistence.MarshalWithdrawalEvent(record)
		if err != nil {
			return err
		}

		seqBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(seqBytes, assigned)

		if err := txn.Set(eventKey(record.ID), data); err != nil {
			return err
		}
		if err := txn.Set(sequenceKey(assigned), []byte(record.ID)); err != nil {
			return err
		}
		if err := txn.Set(recipientKey(record.Recipient, assigned), []byte(record.ID)); err != nil {
			return err
		}
		return txn.Set([]byte(keyLastSequence), seqBytes)
	})
	if err != nil {
		return fmt.Errorf("failed to save WithdrawalEvent: %w", err)
	}

	event.Sequence = assigned
	return nil
}

func (b *BadgerPersistence) LoadEvent(id string) (*types.WithdrawalEvent, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	var event *types.WithdrawalEvent
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		event, err = getEvent(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load WithdrawalEvent: %w", err)
	}
	return event, nil
}

func (b *BadgerPersistence) ListEvents() ([]*types.WithdrawalEvent, error) {
	return b.listByIndex([]byte(keyPrefixSequence))
}

func (b *BadgerPersistence) ListEventsByRecipient(recipient common.Address) ([]*types.WithdrawalEvent, error) {
	return b.listByIndex(recipientPrefix(recipient))
}

// listByIndex walks an index whose keys end in a big-endian sequence and whose values are
// event IDs, so iteration order is sequence order.
func (b *BadgerPersistence) listByIndex(prefix []byte) ([]*types.WithdrawalEvent, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	events := make([]*types.WithdrawalEvent, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var id string
			if err := item.Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return fmt.Errorf("failed to read index value: %w", err)
			}

			event, err := getEvent(txn, id)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to read indexed WithdrawalEvent, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}
			if event == nil {
				b.logger.Sugar().Warnw("Dangling withdrawal index entry", "key", string(item.Key()), "id", id)
				continue
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list WithdrawalEvents: %w", err)
	}

	persistence.SortBySequence(events)
	return events, nil
}

func getEvent(txn *badgerdb.Txn, id string) (*types.WithdrawalEvent, error) {
	item, err := txn.Get(eventKey(id))
	if err == badgerdb.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data []byte
	if err := item.Value(func(val []byte) error {
		data = append([]byte{}, val...)
		return nil
	}); err != nil {
		return nil, err
	}
	return persistence.UnmarshalWithdrawalEvent(data)
}

func getUint64(txn *badgerdb.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if err == badgerdb.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var v uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("invalid counter length %d", len(val))
		}
		v = binary.BigEndian.Uint64(val)
		return nil
	})
	return v, err
}

// Close shuts down the persistence layer
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
