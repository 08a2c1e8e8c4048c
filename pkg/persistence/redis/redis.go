package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixEvent     = "withdrawal:event:"
	keyPrefixRecipient = "withdrawal:recipient:"
	keyLastSequence    = "withdrawal:metadata:last_sequence"
	keySchemaVersion   = "withdrawal:metadata:schema_version"

	// sorted set of event IDs scored by sequence
	keyEventIndex = "withdrawal:events:index"
)

// RedisPersistence is a Redis-backed IWithdrawalEventStore, suitable when several API
// replicas share one audit index.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address  string
	Password string
	DB       int
	// KeyPrefix is prepended to every key, e.g. "tenant-a:" gives
	// "tenant-a:withdrawal:event:<id>".
	KeyPrefix string
}

func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized",
		"address", cfg.Address,
		"db", cfg.DB,
		"key_prefix", cfg.KeyPrefix,
	)
	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) recipientKey(recipient common.Address) string {
	return r.prefixKey(keyPrefixRecipient + strings.ToLower(recipient.Hex()))
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	ok, err := r.client.SetNX(ctx, schemaKey, persistence.CurrentSchemaVersion, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to initialize schema version: %w", err)
	}
	if ok {
		return nil
	}

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existingVersion != persistence.CurrentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, persistence.CurrentSchemaVersion)
	}
	return nil
}

// SaveEvent allocates a sequence with INCR and claims the event key with SETNX. Two
// replicas racing on one ID both succeed, one of them leaving an unused sequence number.
func (r *RedisPersistence) SaveEvent(event *types.WithdrawalEvent) error {
	if err := persistence.ValidateEvent(event); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	eventKey := r.prefixKey(keyPrefixEvent + event.ID)

	existing, err := r.loadEvent(ctx, eventKey)
	if err != nil {
		return err
	}
	if existing != nil {
		event.Sequence = existing.Sequence
		return nil
	}

	seq, err := r.client.Incr(ctx, r.prefixKey(keyLastSequence)).Uint64()
	if err != nil {
		return fmt.Errorf("failed to allocate sequence: %w", err)
	}

	record := event.Copy()
	record.Sequence = seq
	data, err := persistence.MarshalWithdrawalEvent(record)
	if err != nil {
		return fmt.Errorf("failed to marshal WithdrawalEvent: %w", err)
	}

	claimed, err := r.client.SetNX(ctx, eventKey, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save WithdrawalEvent: %w", err)
	}
	if !claimed {
		existing, err := r.loadEvent(ctx, eventKey)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("withdrawal event %s vanished during save", event.ID)
		}
		event.Sequence = existing.Sequence
		return nil
	}

	member := redis.Z{Score: float64(seq), Member: record.ID}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, r.prefixKey(keyEventIndex), member)
		pipe.ZAdd(ctx, r.recipientKey(record.Recipient), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index WithdrawalEvent: %w", err)
	}

	event.Sequence = seq
	return nil
}

func (r *RedisPersistence) LoadEvent(id string) (*types.WithdrawalEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}
	return r.loadEvent(context.Background(), r.prefixKey(keyPrefixEvent+id))
}

func (r *RedisPersistence) loadEvent(ctx context.Context, key string) (*types.WithdrawalEvent, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load WithdrawalEvent: %w", err)
	}

	event, err := persistence.UnmarshalWithdrawalEvent(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal WithdrawalEvent: %w", err)
	}
	return event, nil
}

func (r *RedisPersistence) ListEvents() ([]*types.WithdrawalEvent, error) {
	return r.listByIndex(r.prefixKey(keyEventIndex))
}

func (r *RedisPersistence) ListEventsByRecipient(recipient common.Address) ([]*types.WithdrawalEvent, error) {
	return r.listByIndex(r.recipientKey(recipient))
}

func (r *RedisPersistence) listByIndex(indexKey string) ([]*types.WithdrawalEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()

	ids, err := r.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list WithdrawalEvent ids: %w", err)
	}
	events := make([]*types.WithdrawalEvent, 0, len(ids))
	if len(ids) == 0 {
		return events, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.prefixKey(keyPrefixEvent + id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch WithdrawalEvents: %w", err)
	}

	for i, val := range values {
		if val == nil {
			// indexed but missing, clean up the index
			r.client.ZRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for WithdrawalEvent", "key", keys[i])
			continue
		}

		event, err := persistence.UnmarshalWithdrawalEvent([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal WithdrawalEvent, skipping",
				"key", keys[i], "error", err)
			continue
		}
		events = append(events, event)
	}

	persistence.SortBySequence(events)
	return events, nil
}

func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck pings Redis and verifies the schema key
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}
