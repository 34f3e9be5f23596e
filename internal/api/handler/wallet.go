// internal/api/handler/wallet.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"propshare-wallet/internal/engine"
	"propshare-wallet/internal/util"
)

// DefaultTimeout bounds request handling time at the router level.
const DefaultTimeout = 15 * time.Second

// ownerHeader carries the authenticated owner identity resolved by the (out
// of scope) auth layer in front of this service.
const ownerHeader = "X-Owner-ID"

// WalletHandler handles HTTP requests for the simulated-wallet engine.
type WalletHandler struct {
	engines *engine.Registry
	logger  *slog.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(engines *engine.Registry, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{engines: engines, logger: logger}
}

func (h *WalletHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func (h *WalletHandler) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput), util.IsError(err, util.ErrInvalidAddress):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired
		message = "Insufficient funds"
	case util.IsError(err, util.ErrNotFound), util.IsError(err, util.ErrNotConnected):
		statusCode = http.StatusNotFound
		message = "Wallet not connected"
	case util.IsError(err, util.ErrBusy), util.IsError(err, util.ErrVersionConflict):
		statusCode = http.StatusConflict
		message = err.Error()
	case util.IsError(err, util.ErrUnavailable):
		statusCode = http.StatusServiceUnavailable
		message = "Durable store unavailable"
	default:
		h.logger.Error("unhandled engine error", "error", err)
	}

	h.respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// acquire resolves the owner identity and its engine, or writes a 400.
func (h *WalletHandler) acquire(w http.ResponseWriter, r *http.Request) (*engine.Engine, bool) {
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		h.respondWithError(w, util.ErrInvalidInput)
		return nil, false
	}
	return h.engines.Acquire(r.Context(), ownerID), true
}

// walletState is the read-only engine surface exposed to display components.
type walletState struct {
	IsConnected  bool            `json:"is_connected"`
	Address      string          `json:"address"`
	BalanceUnits decimal.Decimal `json:"balance_units"`
	IsLoading    bool            `json:"is_loading"`
	Error        string          `json:"error,omitempty"`
}

func stateOf(e *engine.Engine) walletState {
	s := walletState{
		IsConnected:  e.IsConnected(),
		Address:      e.Address(),
		BalanceUnits: e.BalanceUnits(),
		IsLoading:    e.IsLoading(),
	}
	if err := e.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}

// ConnectRequest is the request body for connect.
type ConnectRequest struct {
	Address         string          `json:"address"`
	BalanceUnits    decimal.Decimal `json:"balance_units"`
	StrikePriceUSD  decimal.Decimal `json:"strike_price_usd"`
	InitialValueUSD decimal.Decimal `json:"initial_value_usd"`
	DisplayName     string          `json:"display_name"`
}

// Connect handles POST /wallet/connect.
func (h *WalletHandler) Connect(w http.ResponseWriter, r *http.Request) {
	e, ok := h.acquire(w, r)
	if !ok {
		return
	}

	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}
	if req.BalanceUnits.IsNegative() {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	err := e.Connect(r.Context(), engine.ConnectParams{
		Address:         req.Address,
		BalanceUnits:    req.BalanceUnits,
		StrikePriceUSD:  req.StrikePriceUSD,
		InitialValueUSD: req.InitialValueUSD,
		DisplayName:     req.DisplayName,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, stateOf(e))
}

// Disconnect handles POST /wallet/disconnect.
func (h *WalletHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	e, ok := h.acquire(w, r)
	if !ok {
		return
	}

	report, err := e.Disconnect(r.Context())
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	failed := report.Failed()
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"state":              stateOf(e),
		"cleanup_incomplete": len(failed) > 0,
		"failed_collections": failed,
	})
}

// Refresh handles POST /wallet/refresh.
func (h *WalletHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	e, ok := h.acquire(w, r)
	if !ok {
		return
	}
	if err := e.Refresh(r.Context()); err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, stateOf(e))
}

// AmountRequest is the request body for credit and debit.
type AmountRequest struct {
	Units decimal.Decimal `json:"units"`
}

// Credit handles POST /wallet/credit.
func (h *WalletHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.applyAmount(w, r, func(e *engine.Engine, units decimal.Decimal) error {
		return e.Credit(r.Context(), units)
	})
}

// Debit handles POST /wallet/debit.
func (h *WalletHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.applyAmount(w, r, func(e *engine.Engine, units decimal.Decimal) error {
		return e.Debit(r.Context(), units)
	})
}

func (h *WalletHandler) applyAmount(w http.ResponseWriter, r *http.Request, op func(*engine.Engine, decimal.Decimal) error) {
	e, ok := h.acquire(w, r)
	if !ok {
		return
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}
	if req.Units.LessThanOrEqual(decimal.Zero) {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	if err := op(e, req.Units); err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, stateOf(e))
}

// GetWallet handles GET /wallet.
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	e, ok := h.acquire(w, r)
	if !ok {
		return
	}
	h.respondWithJSON(w, http.StatusOK, stateOf(e))
}

// GetValuation handles GET /wallet/valuation.
func (h *WalletHandler) GetValuation(w http.ResponseWriter, r *http.Request) {
	e, ok := h.acquire(w, r)
	if !ok {
		return
	}
	snap, err := e.Valuation(r.Context())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, snap)
}
