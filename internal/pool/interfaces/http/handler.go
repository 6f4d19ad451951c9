package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	apihttp "energy-subsidy/internal/api/http"
	"energy-subsidy/internal/audit"
	"energy-subsidy/internal/auth"
	"energy-subsidy/internal/identity"
	poolapp "energy-subsidy/internal/pool/application"
)

// Handler serves pool account endpoints.
type Handler struct {
	service     *poolapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *poolapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("pool handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes pool requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/pool")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.handleStatus(w, r)
	case path == "can-withdraw" && r.Method == http.MethodGet:
		h.handleCanWithdraw(w, r)
	case path == "deposits" && r.Method == http.MethodPost:
		h.handleDeposit(w, r)
	case len(parts) == 2 && parts[0] == "deposits" && r.Method == http.MethodGet:
		h.handleDepositOf(w, r, parts[1])
	case path == "withdrawals" && r.Method == http.MethodPost:
		h.handleWithdraw(w, r)
	case path == "transfers" && r.Method == http.MethodPost:
		h.handleTransfer(w, r)
	case path == "governance-withdrawals" && r.Method == http.MethodPost:
		h.handleGovernanceWithdraw(w, r)
	case path == "freeze" && r.Method == http.MethodPost:
		h.handleFreeze(w, r)
	case path == "unfreeze" && r.Method == http.MethodPost:
		h.handleUnfreeze(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context())
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleCanWithdraw(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseUint(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		http.Error(w, "amount must be an unsigned integer", http.StatusBadRequest)
		return
	}
	ok, err := h.service.CanWithdraw(r.Context(), amount)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{"amount": amount, "can_withdraw": ok})
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	depositor := auth.AddressFromContext(r.Context())
	if err := h.service.Deposit(r.Context(), depositor, req.Amount); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusCreated, map[string]any{"depositor": depositor, "amount": req.Amount})
	h.logAudit(r, "pool.deposit", depositor.String(), map[string]any{"amount": req.Amount})
}

func (h *Handler) handleDepositOf(w http.ResponseWriter, r *http.Request, raw string) {
	addr, err := identity.Parse(raw)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	record, err := h.service.DepositOf(r.Context(), addr)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{
		"depositor":              record.Depositor,
		"amount":                 record.Amount,
		"deposited_at_height":    record.DepositedAtHeight,
		"last_withdrawal_height": record.LastWithdrawalHeight,
	})
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	depositor := auth.AddressFromContext(r.Context())
	if err := h.service.WithdrawDeposit(r.Context(), depositor, req.Amount); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{"depositor": depositor, "amount": req.Amount})
	h.logAudit(r, "pool.withdraw", depositor.String(), map[string]any{"amount": req.Amount})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InstallationID uint64 `json:"installation_id"`
		Amount         uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.service.TransferToPayout(r.Context(), req.InstallationID, req.Amount); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{"installation_id": req.InstallationID, "amount": req.Amount})
	h.logAudit(r, "pool.transfer", "", map[string]any{"installation_id": req.InstallationID, "amount": req.Amount})
}

func (h *Handler) handleGovernanceWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount    uint64 `json:"amount"`
		Recipient string `json:"recipient"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	recipient, err := identity.Parse(req.Recipient)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	if err := h.service.GovernanceWithdraw(r.Context(), req.Amount, recipient); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{"amount": req.Amount, "recipient": recipient})
	h.logAudit(r, "pool.governance_withdraw", recipient.String(), map[string]any{"amount": req.Amount})
}

func (h *Handler) handleFreeze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emergency bool `json:"emergency"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	if err := h.service.Freeze(r.Context(), req.Emergency); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{"frozen": true, "emergency": req.Emergency})
	h.logAudit(r, "pool.freeze", "", map[string]any{"emergency": req.Emergency})
}

func (h *Handler) handleUnfreeze(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unfreeze(r.Context()); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{"frozen": false})
	h.logAudit(r, "pool.unfreeze", "", nil)
}

func (h *Handler) logAudit(r *http.Request, action, resourceID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.AddressFromContext(r.Context()).String(),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "pool",
		ResourceID:   resourceID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
