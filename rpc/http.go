package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"epochpay/core"
	"epochpay/core/state"
	"epochpay/native/distribution"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codePhaseError     = -32030
	codeReplay         = -32031
	codeClaimRejected  = -32032
)

type Server struct {
	node      *core.Node
	authToken string
	logger    *slog.Logger
}

// NewServer wires the JSON-RPC surface over the node. An empty auth token
// leaves the mutating namespace open; production deployments must set one.
func NewServer(node *core.Node, authToken string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{node: node, authToken: strings.TrimSpace(authToken), logger: logger}
}

// Router builds the HTTP surface: the JSON-RPC endpoint at /, a liveness
// probe, and the Prometheus scrape endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves the router on addr, blocking until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	return http.ListenAndServe(addr, s.Router())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// writeEngineError maps engine sentinels onto stable RPC codes so clients can
// branch without string matching.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, distribution.ErrNotPermitted),
		errors.Is(err, distribution.ErrNotFundingSource):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, distribution.ErrIntervalNotElapsed),
		errors.Is(err, distribution.ErrDistributionActive),
		errors.Is(err, distribution.ErrWrongPhase),
		errors.Is(err, distribution.ErrNoActiveCycle):
		writeError(w, http.StatusConflict, id, codePhaseError, err.Error(), nil)
	case errors.Is(err, distribution.ErrSnapshotReplay):
		writeError(w, http.StatusConflict, id, codeReplay, err.Error(), nil)
	case errors.Is(err, distribution.ErrAlreadyClaimed),
		errors.Is(err, distribution.ErrBelowThreshold),
		errors.Is(err, distribution.ErrNothingToClaim),
		errors.Is(err, distribution.ErrReentrancy),
		errors.Is(err, state.ErrTransferBlocked):
		writeError(w, http.StatusConflict, id, codeClaimRejected, err.Error(), nil)
	case errors.Is(err, distribution.ErrZeroDeposit):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
	}
}

type authError struct {
	Code    int
	Message string
	Data    interface{}
}

func (s *Server) requireAuth(r *http.Request) *authError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &authError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) != 1 {
		return &authError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")
	requestID := uuid.NewString()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	s.logger.Debug("rpc request", slog.String("request_id", requestID), slog.String("method", req.Method))

	switch req.Method {
	case "distribution_deposit":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleDeposit(w, r, req)
	case "distribution_advanceEpoch":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleAdvanceEpoch(w, r, req)
	case "distribution_distributeAuto":
		s.handleDistributeAuto(w, r, req)
	case "distribution_claim":
		s.handleClaimManual(w, r, req)
	case "distribution_flush":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleFlush(w, r, req)
	case "distribution_closeCycle":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleCloseCycle(w, r, req)
	case "distribution_forceReset":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleForceReset(w, r, req)
	case "distribution_releaseClaimGuard":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleReleaseClaimGuard(w, r, req)
	case "distribution_setParams":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetParams(w, r, req)
	case "distribution_params":
		s.handleGetParams(w, r, req)
	case "distribution_status":
		s.handleStatus(w, r, req)
	case "distribution_cycle":
		s.handleGetCycle(w, r, req)
	case "distribution_pools":
		s.handleGetPools(w, r, req)
	case "distribution_claimable":
		s.handleClaimable(w, r, req)
	case "distribution_claimStatus":
		s.handleClaimStatus(w, r, req)
	case "distribution_snapshotProgress":
		s.handleSnapshotProgress(w, r, req)
	case "distribution_snapshotTotals":
		s.handleSnapshotTotals(w, r, req)
	case "distribution_pending":
		s.handlePending(w, r, req)
	case "distribution_timeRemaining":
		s.handleTimeRemaining(w, r, req)
	case "distribution_lifetime":
		s.handleLifetime(w, r, req)
	case "registry_setHolder":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleRegistrySetHolder(w, r, req)
	case "registry_removeHolder":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleRegistryRemoveHolder(w, r, req)
	case "registry_setThreshold":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleRegistrySetThreshold(w, r, req)
	case "registry_info":
		s.handleRegistryInfo(w, r, req)
	case "registry_holderAt":
		s.handleRegistryHolderAt(w, r, req)
	case "bank_getAccount":
		s.handleGetAccount(w, r, req)
	case "bank_setFrozen":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetFrozen(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}
