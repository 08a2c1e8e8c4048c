package memory

import (
	"testing"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence/storetest"
	"go.uber.org/zap/zaptest"
)

func TestMemoryPersistence(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.IWithdrawalEventStore {
		return NewMemoryPersistence(zaptest.NewLogger(t))
	})
}

func TestMemoryPersistence_ImplementsInterface(t *testing.T) {
	var _ persistence.IWithdrawalEventStore = (*MemoryPersistence)(nil)
}
