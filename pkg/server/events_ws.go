package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/persistence"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/withdrawal"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	subscriberBuffer = 64
	writeWait        = 10 * time.Second
	pingInterval     = 30 * time.Second
)

// EventPublisher is the module's event sink. It stores each event, then pushes it to
// websocket subscribers.
type EventPublisher struct {
	store  persistence.IWithdrawalEventStore
	logger *zap.Logger

	mu          sync.Mutex
	subscribers map[chan *types.WithdrawalEvent]struct{}
}

func NewEventPublisher(store persistence.IWithdrawalEventStore, logger *zap.Logger) (*EventPublisher, error) {
	if store == nil {
		return nil, fmt.Errorf("event store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{
		store:       store,
		logger:      logger,
		subscribers: make(map[chan *types.WithdrawalEvent]struct{}),
	}, nil
}

func (p *EventPublisher) Store() persistence.IWithdrawalEventStore {
	return p.store
}

// PublishWithdrawal saves the event and broadcasts it. Subscribers see the event even if
// saving failed; the transfer already happened.
func (p *EventPublisher) PublishWithdrawal(ctx context.Context, event *types.WithdrawalEvent) error {
	saveErr := p.store.SaveEvent(event)
	if saveErr != nil {
		saveErr = fmt.Errorf("failed to save withdrawal event %s: %w", event.ID, saveErr)
	}
	p.broadcast(event)
	return saveErr
}

func (p *EventPublisher) broadcast(event *types.WithdrawalEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subscribers {
		select {
		case ch <- event.Copy():
		default:
			p.logger.Sugar().Warnw("Dropping event for slow subscriber", "eventId", event.ID)
		}
	}
}

func (p *EventPublisher) subscribe() chan *types.WithdrawalEvent {
	ch := make(chan *types.WithdrawalEvent, subscriberBuffer)
	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()
	return ch
}

func (p *EventPublisher) unsubscribe(ch chan *types.WithdrawalEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subscribers[ch]; ok {
		delete(p.subscribers, ch)
		close(ch)
	}
}

// SubscriberCount is the number of live websocket feeds.
func (p *EventPublisher) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

var _ withdrawal.IEventSink = (*EventPublisher)(nil)

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	// subscribe before the handshake completes so no event published after the client
	// connects is missed
	events := s.publisher.subscribe()
	defer s.publisher.unsubscribe(events)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Sugar().Debugw("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				s.logger.Sugar().Debugw("Websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
