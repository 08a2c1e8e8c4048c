package persistence

import (
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// IWithdrawalEventStore records completed withdrawals for audit and indexing.
// All implementations must be thread-safe.
//
// The store is an index only. It is never consulted when authorizing a withdrawal, so it
// does not act as a consumed-digest set.
type IWithdrawalEventStore interface {
	// SaveEvent persists an event and assigns it the next sequence number, writing the
	// assigned value back into event.Sequence. Saving an ID that already exists is a
	// no-op that reports the stored sequence.
	SaveEvent(event *types.WithdrawalEvent) error

	// LoadEvent returns nil if the event doesn't exist, error only on storage failure.
	LoadEvent(id string) (*types.WithdrawalEvent, error)

	// ListEvents returns all events sorted by sequence (ascending).
	ListEvents() ([]*types.WithdrawalEvent, error)

	// ListEventsByRecipient returns the recipient's events sorted by sequence.
	ListEventsByRecipient(recipient common.Address) ([]*types.WithdrawalEvent, error)

	Close() error

	HealthCheck() error
}
