package redis

import (
	"os"
	"testing"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/logger"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence/storetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getTestRedisAddress uses REDIS_TEST_ADDRESS if set, otherwise localhost:6379.
func getTestRedisAddress() string {
	if addr := os.Getenv("REDIS_TEST_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// requireRedis skips the test when Redis is not reachable. Every call gets its own key
// prefix so tests never see each other's data.
func requireRedis(t *testing.T) *RedisPersistence {
	t.Helper()

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	cfg := &RedisConfig{
		Address:   getTestRedisAddress(),
		DB:        15,
		KeyPrefix: "test-" + uuid.New().String() + ":",
	}

	rp, err := NewRedisPersistence(cfg, testLogger)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", cfg.Address, err)
		return nil
	}
	return rp
}

func TestRedisPersistence(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.IWithdrawalEventStore {
		return requireRedis(t)
	})
}

func TestRedisPersistence_KeyPrefix(t *testing.T) {
	rp := requireRedis(t)
	defer func() { _ = rp.Close() }()

	assert.Equal(t, rp.keyPrefix+keyPrefixEvent+"abc", rp.prefixKey(keyPrefixEvent+"abc"))

	event := storetest.NewEvent(storetest.Alice, 5)
	require.NoError(t, rp.SaveEvent(event))

	other := requireRedis(t)
	defer func() { _ = other.Close() }()

	loaded, err := other.LoadEvent(event.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded, "a different prefix must not see the event")
}

func TestNewRedisPersistence_InvalidConfig(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	_, err := NewRedisPersistence(nil, testLogger)
	require.Error(t, err)

	_, err = NewRedisPersistence(&RedisConfig{}, testLogger)
	require.Error(t, err)
}

func TestRedisPersistence_ImplementsInterface(t *testing.T) {
	var _ persistence.IWithdrawalEventStore = (*RedisPersistence)(nil)
}
