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
	payoutapp "energy-subsidy/internal/payout/application"
	payout "energy-subsidy/internal/payout/domain"
)

// Handler serves installation and claim endpoints.
type Handler struct {
	service     *payoutapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *payoutapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("payout handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes installation, claim, and rate requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/subsidy/rate" && r.Method == http.MethodPut:
		h.handleSetRate(w, r)
	case r.URL.Path == "/api/v1/subsidy" && r.Method == http.MethodGet,
		r.URL.Path == "/api/v1/subsidy/rate" && r.Method == http.MethodGet:
		h.handleSubsidyStatus(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/installations"):
		h.routeInstallations(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) routeInstallations(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/installations")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "" && r.Method == http.MethodPost:
		h.handleRegister(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGet(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "claims" && r.Method == http.MethodPost:
		h.handleClaim(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "claims" && r.Method == http.MethodGet:
		h.handleClaimStatus(w, r, parts[0], parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CapacityKw uint64 `json:"capacity_kw"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	owner := auth.AddressFromContext(r.Context())
	installation, err := h.service.RegisterInstallation(r.Context(), owner, req.CapacityKw)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusCreated, installationBody(installation))
	h.logAudit(r, "installation.register", strconv.FormatUint(installation.ID, 10), map[string]any{
		"capacity_kw": req.CapacityKw,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	installation, err := h.service.Installation(r.Context(), id)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, installationBody(installation))
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	caller := auth.AddressFromContext(r.Context())
	result, err := h.service.ClaimSubsidy(r.Context(), caller, id)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusCreated, result)
	h.logAudit(r, "claim.settle", rawID, map[string]any{
		"period_height": result.PeriodHeight,
		"amount_paid":   result.AmountPaid,
		"output_delta":  result.OutputDelta,
	})
}

func (h *Handler) handleClaimStatus(w http.ResponseWriter, r *http.Request, rawID, rawPeriod string) {
	id, err := parseID(rawID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	period, err := parseID(rawPeriod)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	record, claimed, err := h.service.ClaimStatus(r.Context(), id, period)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	body := map[string]any{"installation_id": id, "period_height": period, "claimed": claimed}
	if claimed {
		body["amount_paid"] = record.AmountPaid
		body["output_delta"] = record.OutputDelta
		body["recipient"] = record.Recipient
		body["claimed_at_height"] = record.ClaimedAtHeight
	}
	apihttp.WriteJSON(w, http.StatusOK, body)
}

func (h *Handler) handleSetRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RatePerKwh uint64 `json:"rate_per_kwh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.service.SetRate(r.Context(), req.RatePerKwh); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{"rate_per_kwh": req.RatePerKwh})
	h.logAudit(r, "subsidy.rate.set", "", map[string]any{"rate_per_kwh": req.RatePerKwh})
}

func (h *Handler) handleSubsidyStatus(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.service.LedgerStatus(r.Context())
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{
		"rate_per_kwh":            ledger.RatePerKwh,
		"total_subsidized_output": ledger.TotalSubsidizedOutput,
		"pool_balance":            ledger.PoolBalance,
	})
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
		ResourceType: "installation",
		ResourceID:   resourceID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func installationBody(i *payout.Installation) map[string]any {
	return map[string]any{
		"id":                    i.ID,
		"owner":                 i.Owner,
		"capacity_kw":           i.CapacityKw,
		"last_claimed_output":   i.LastClaimedOutput,
		"total_measured_output": i.TotalMeasuredOutput,
		"verified":              i.Verified,
		"registered_at_height":  i.RegisteredAtHeight,
	}
}

func parseID(raw string) (uint64, error) {
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("id must be an unsigned integer")
	}
	return value, nil
}
