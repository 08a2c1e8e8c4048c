package withdrawal

import (
	"context"
	"errors"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
)

// IEventSink receives withdrawal-completed notifications.
type IEventSink interface {
	PublishWithdrawal(ctx context.Context, event *types.WithdrawalEvent) error
}

type noopEventSink struct{}

func (noopEventSink) PublishWithdrawal(context.Context, *types.WithdrawalEvent) error {
	return nil
}

// MultiEventSink fans an event out to every sink, joining their errors.
type MultiEventSink []IEventSink

func (m MultiEventSink) PublishWithdrawal(ctx context.Context, event *types.WithdrawalEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PublishWithdrawal(ctx, event.Copy()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EventSinkFunc adapts a function to IEventSink.
type EventSinkFunc func(ctx context.Context, event *types.WithdrawalEvent) error

func (f EventSinkFunc) PublishWithdrawal(ctx context.Context, event *types.WithdrawalEvent) error {
	return f(ctx, event)
}
