package persistence

import (
	"fmt"
	"sort"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/fxamacker/cbor/v2"
)

// CurrentSchemaVersion tags the on-disk record layout of every backend.
const CurrentSchemaVersion = "v1"

var encMode = mustEncMode()

// Core deterministic encoding, so equal events always produce equal bytes.
func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to build cbor encoder: %v", err))
	}
	return em
}

// MarshalWithdrawalEvent serializes an event to CBOR.
func MarshalWithdrawalEvent(event *types.WithdrawalEvent) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("cannot marshal nil WithdrawalEvent")
	}

	data, err := encMode.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal WithdrawalEvent to CBOR: %w", err)
	}
	return data, nil
}

// UnmarshalWithdrawalEvent deserializes an event from CBOR.
func UnmarshalWithdrawalEvent(data []byte) (*types.WithdrawalEvent, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var event types.WithdrawalEvent
	if err := cbor.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal CBOR to WithdrawalEvent: %w", err)
	}
	return &event, nil
}

// ValidateEvent rejects events a store cannot index.
func ValidateEvent(event *types.WithdrawalEvent) error {
	if event == nil {
		return fmt.Errorf("cannot save nil WithdrawalEvent")
	}
	if event.ID == "" {
		return fmt.Errorf("withdrawal event ID cannot be empty")
	}
	if event.Amount == nil {
		return fmt.Errorf("withdrawal event %s has no amount", event.ID)
	}
	return nil
}

// SortBySequence orders events by ascending sequence in place.
func SortBySequence(events []*types.WithdrawalEvent) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].Sequence < events[j].Sequence
	})
}
