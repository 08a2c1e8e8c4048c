package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// MemoryPersistence is an in-memory IWithdrawalEventStore.
// This implementation is intended for TESTING ONLY.
//
// All data is lost when the process exits. Events are deep copied on the way in and out.
type MemoryPersistence struct {
	mu sync.RWMutex

	// id -> event
	events map[string]*types.WithdrawalEvent

	// ids in sequence order
	order []string

	closed bool
}

func NewMemoryPersistence(logger *zap.Logger) *MemoryPersistence {
	if logger != nil {
		logger.Sugar().Warnw("Using in-memory persistence, all withdrawal events will be lost on restart",
			"hint", "set WITHDRAWAL_PERSISTENCE=badger for production",
		)
	}
	return &MemoryPersistence{
		events: make(map[string]*types.WithdrawalEvent),
	}
}

func (m *MemoryPersistence) SaveEvent(event *types.WithdrawalEvent) error {
	if err := persistence.ValidateEvent(event); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	if existing, ok := m.events[event.ID]; ok {
		event.Sequence = existing.Sequence
		return nil
	}

	event.Sequence = uint64(len(m.order)) + 1
	m.events[event.ID] = event.Copy()
	m.order = append(m.order, event.ID)
	return nil
}

func (m *MemoryPersistence) LoadEvent(id string) (*types.WithdrawalEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	event, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	return event.Copy(), nil
}

func (m *MemoryPersistence) ListEvents() ([]*types.WithdrawalEvent, error) {
	return m.list(func(*types.WithdrawalEvent) bool { return true })
}

func (m *MemoryPersistence) ListEventsByRecipient(recipient common.Address) ([]*types.WithdrawalEvent, error) {
	return m.list(func(e *types.WithdrawalEvent) bool { return e.Recipient == recipient })
}

func (m *MemoryPersistence) list(keep func(*types.WithdrawalEvent) bool) ([]*types.WithdrawalEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]*types.WithdrawalEvent, 0, len(m.order))
	for _, id := range m.order {
		if e := m.events[id]; keep(e) {
			result = append(result, e.Copy())
		}
	}
	return result, nil
}

func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	return nil
}
