package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

/*
Server exposes the withdrawal module to redeemers and indexers.

  POST /withdraw        { recipient, amount, signature, messageDigest }
                          200 receipt
                          400 malformed request
                          403 UnauthorizedSigner / MalformedSignature
                          409 InsufficientBalance
                          429 rate limited
                          502 ExecutionFailed
  GET  /events          all withdrawal events in sequence order, ?recipient=0x.. filters
  GET  /events/ws       websocket push of new events. Browsers are held to the server's
                        own origin plus Config.AllowedOrigins; clients without an Origin
                        header are always accepted
  GET  /audit/root      merkle root over stored events
  GET  /audit/proof     inclusion proof, ?id=<eventId>
  GET  /health          event store health
  GET  /status          latest on-chain module status, when a monitor is attached

The event store is an audit index. It is never read when authorizing a withdrawal, so a
(signature, digest) pair may be redeemed more than once.
*/

// IWithdrawer runs one withdrawal claim. *withdrawal.Module, *ledger.HostedModule and
// *contractCaller.OnChainModule implement it. The server calls it concurrently.
type IWithdrawer interface {
	Withdraw(ctx context.Context, claim *types.WithdrawalClaim) (*types.WithdrawalReceipt, error)
}

// IStatusProvider reports the module's on-chain standing. *monitor.ModuleMonitor
// implements it.
type IStatusProvider interface {
	Status() *types.ModuleStatus
}

type Config struct {
	Port int
	// RateLimit is the sustained POST /withdraw rate per second. Zero disables limiting.
	RateLimit float64
	RateBurst int
	// AllowedOrigins are extra Origin values accepted on /events/ws. "*" accepts any.
	AllowedOrigins []string
}

type Server struct {
	withdrawer IWithdrawer
	publisher  *EventPublisher
	status     IStatusProvider
	limiter    *rate.Limiter
	upgrader   websocket.Upgrader
	httpServer *http.Server
	logger     *zap.Logger
}

func NewServer(cfg *Config, withdrawer IWithdrawer, publisher *EventPublisher, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server config cannot be nil")
	}
	if withdrawer == nil {
		return nil, fmt.Errorf("withdrawer cannot be nil")
	}
	if publisher == nil {
		return nil, fmt.Errorf("event publisher cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		withdrawer: withdrawer,
		publisher:  publisher,
		logger:     logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      checkOrigin(cfg.AllowedOrigins),
		},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/withdraw", s.handleWithdraw)
	mux.HandleFunc("/events", s.handleListEvents)
	mux.HandleFunc("/events/ws", s.handleEventsWS)
	mux.HandleFunc("/audit/root", s.handleAuditRoot)
	mux.HandleFunc("/audit/proof", s.handleAuditProof)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// checkOrigin accepts requests without an Origin header, same-origin requests and the
// listed origins.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(r *http.Request) bool { return true }
		}
		origins[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		_, ok := origins[strings.TrimRight(strings.ToLower(origin), "/")]
		return ok
	}
}

// SetStatusProvider attaches a module monitor. Call before Start.
func (s *Server) SetStatusProvider(p IStatusProvider) {
	s.status = p
}

// Start serves in the background until Stop or Shutdown.
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

func (s *Server) Stop() error {
	return s.httpServer.Close()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
