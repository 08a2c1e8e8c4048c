package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/merkle"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/withdrawal"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const maxRequestBytes = 1 << 16

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind string, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: kind, Message: message})
}

// statusForError maps an engine rejection to its HTTP status.
func statusForError(err error) (int, string) {
	kind, ok := withdrawal.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, "InternalError"
	}
	switch kind {
	case withdrawal.KindInsufficientBalance:
		return http.StatusConflict, string(kind)
	case withdrawal.KindUnauthorizedSigner, withdrawal.KindMalformedSignature:
		return http.StatusForbidden, string(kind)
	case withdrawal.KindExecutionFailed:
		return http.StatusBadGateway, string(kind)
	default:
		return http.StatusInternalServerError, string(kind)
	}
}

// parseClaim validates encoding only. Amount sign, signature shape and ownership are the
// engine's to judge.
func parseClaim(req *types.WithdrawRequest) (*types.WithdrawalClaim, error) {
	if !common.IsHexAddress(req.Recipient) {
		return nil, fmt.Errorf("recipient must be a hex address")
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("amount must be a base-10 integer")
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		return nil, fmt.Errorf("signature must be 0x-prefixed hex: %v", err)
	}
	digest, err := hexutil.Decode(req.MessageDigest)
	if err != nil || len(digest) != common.HashLength {
		return nil, fmt.Errorf("messageDigest must be 32 bytes of 0x-prefixed hex")
	}
	return &types.WithdrawalClaim{
		Recipient:     common.HexToAddress(req.Recipient),
		Amount:        amount,
		Signature:     sig,
		MessageDigest: common.BytesToHash(digest),
	}, nil
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "RateLimited", "too many withdrawal requests")
		return
	}

	var req types.WithdrawRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", fmt.Sprintf("failed to parse request: %v", err))
		return
	}
	claim, err := parseClaim(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	receipt, err := s.withdrawer.Withdraw(r.Context(), claim)
	if err != nil {
		status, kind := statusForError(err)
		if status == http.StatusInternalServerError || status == http.StatusBadGateway {
			s.logger.Sugar().Errorw("Withdrawal failed", "recipient", claim.Recipient.Hex(), "error", err)
		} else {
			s.logger.Sugar().Infow("Withdrawal rejected", "recipient", claim.Recipient.Hex(), "kind", kind)
		}
		writeError(w, status, kind, err.Error())
		return
	}

	s.logger.Sugar().Infow("Withdrawal completed",
		"eventId", receipt.EventID,
		"recipient", receipt.Recipient.Hex(),
		"amount", receipt.Amount.String(),
	)
	writeJSON(w, http.StatusOK, types.WithdrawResponse{
		EventID:       receipt.EventID,
		Recipient:     receipt.Recipient.Hex(),
		Amount:        receipt.Amount.String(),
		Signer:        receipt.Signer.Hex(),
		MessageDigest: receipt.MessageDigest.Hex(),
		CompletedAt:   receipt.CompletedAt.Unix(),
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		events []*types.WithdrawalEvent
		err    error
	)
	if recipient := r.URL.Query().Get("recipient"); recipient != "" {
		if !common.IsHexAddress(recipient) {
			writeError(w, http.StatusBadRequest, "BadRequest", "recipient must be a hex address")
			return
		}
		events, err = s.publisher.Store().ListEventsByRecipient(common.HexToAddress(recipient))
	} else {
		events, err = s.publisher.Store().ListEvents()
	}
	if err != nil {
		s.logger.Sugar().Errorw("Failed to list events", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to list events")
		return
	}
	if events == nil {
		events = []*types.WithdrawalEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

var errNoEvents = errors.New("no withdrawal events")

func (s *Server) auditTree() (*merkle.MerkleTree, error) {
	events, err := s.publisher.Store().ListEvents()
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, errNoEvents
	}
	return merkle.BuildMerkleTree(events)
}

func (s *Server) handleAuditRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tree, err := s.auditTree()
	if errors.Is(err, errNoEvents) {
		writeJSON(w, http.StatusOK, types.AuditRootResponse{Root: common.Hash{}.Hex(), EventCount: 0})
		return
	}
	if err != nil {
		s.logger.Sugar().Errorw("Failed to build audit tree", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to build audit tree")
		return
	}
	writeJSON(w, http.StatusOK, types.AuditRootResponse{
		Root:       common.Hash(tree.Root).Hex(),
		EventCount: len(tree.Leaves),
	})
}

func (s *Server) handleAuditProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "BadRequest", "id is required")
		return
	}

	tree, err := s.auditTree()
	if errors.Is(err, errNoEvents) {
		writeError(w, http.StatusNotFound, "NotFound", fmt.Sprintf("event %s not found", id))
		return
	}
	if err != nil {
		s.logger.Sugar().Errorw("Failed to build audit tree", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to build audit tree")
		return
	}

	index := tree.IndexOf(id)
	if index < 0 {
		writeError(w, http.StatusNotFound, "NotFound", fmt.Sprintf("event %s not found", id))
		return
	}
	proof, err := tree.GenerateProof(index)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalError", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.AuditProofResponse{
		EventID:   id,
		LeafIndex: proof.LeafIndex,
		Leaf:      common.Hash(proof.Leaf).Hex(),
		Proof:     merkle.ProofHex(proof),
		Root:      common.Hash(tree.Root).Hex(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.publisher.Store().HealthCheck(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusNotFound, "NotFound", "module monitor is not running")
		return
	}
	status := s.status.Status()
	if status == nil {
		writeError(w, http.StatusServiceUnavailable, "Unavailable", "module status not yet available")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
