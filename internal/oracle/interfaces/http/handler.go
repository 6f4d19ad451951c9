package http

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	apihttp "energy-subsidy/internal/api/http"
	"energy-subsidy/internal/audit"
	"energy-subsidy/internal/auth"
	"energy-subsidy/internal/identity"
	oracleapp "energy-subsidy/internal/oracle/application"
)

// Handler serves oracle endpoints.
type Handler struct {
	service     *oracleapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *oracleapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("oracle handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes oracle requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/oracle")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.handleStatus(w, r)
	case path == "reports" && r.Method == http.MethodPost:
		h.handleSubmitReport(w, r)
	case path == "reports" && r.Method == http.MethodGet:
		h.handleGetReport(w, r)
	case path == "signers" && r.Method == http.MethodPost:
		h.handleAddSigner(w, r)
	case len(parts) == 2 && parts[0] == "signers" && r.Method == http.MethodDelete:
		h.handleRemoveSigner(w, r, parts[1])
	case path == "pause" && r.Method == http.MethodPost:
		h.handlePause(w, r)
	case path == "unpause" && r.Method == http.MethodPost:
		h.handleUnpause(w, r)
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
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{
		"paused":            status.Paused,
		"total_reports":     status.TotalReports,
		"last_report_block": status.LastReportBlock,
	})
}

func (h *Handler) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InstallationID     uint64 `json:"installation_id"`
		TargetPeriodHeight uint64 `json:"target_period_height"`
		MicroUnitsProduced uint64 `json:"micro_units_produced"`
		Signer             string `json:"signer"`
		Signature          string `json:"signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	signer, err := identity.Parse(req.Signer)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	sig, err := hex.DecodeString(req.Signature)
	if err != nil {
		http.Error(w, "signature must be hex", http.StatusBadRequest)
		return
	}
	err = h.service.SubmitReport(r.Context(), oracleapp.Report{
		InstallationID:     req.InstallationID,
		TargetPeriodHeight: req.TargetPeriodHeight,
		MicroUnitsProduced: req.MicroUnitsProduced,
		Signer:             signer,
		Signature:          sig,
	})
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusCreated, map[string]any{
		"installation_id": req.InstallationID,
		"period_height":   req.TargetPeriodHeight,
	})
	h.logAudit(r, "oracle.report.submit", strconv.FormatUint(req.InstallationID, 10), map[string]any{
		"period_height": req.TargetPeriodHeight,
		"micro_units":   req.MicroUnitsProduced,
		"signer":        req.Signer,
	})
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	installationID, err := parseUintQuery(r, "installation_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	periodHeight, err := parseUintQuery(r, "period_height")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	report, err := h.service.Report(r.Context(), installationID, periodHeight)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{
		"installation_id":    report.InstallationID,
		"period_height":      report.PeriodHeight,
		"micro_units":        report.MicroUnits,
		"kwh_produced":       report.KwhProduced,
		"reported_at_height": report.ReportedAtHeight,
		"reporter":           report.Reporter,
		"verified":           report.Verified,
	})
}

func (h *Handler) handleAddSigner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	addr, err := identity.Parse(req.Address)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	if err := h.service.AddSigner(r.Context(), addr); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusCreated, map[string]any{"address": addr})
	h.logAudit(r, "oracle.signer.add", addr.String(), nil)
}

func (h *Handler) handleRemoveSigner(w http.ResponseWriter, r *http.Request, raw string) {
	addr, err := identity.Parse(raw)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	if err := h.service.RemoveSigner(r.Context(), addr); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{"address": addr})
	h.logAudit(r, "oracle.signer.remove", addr.String(), nil)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Pause(r.Context()); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{"paused": true})
	h.logAudit(r, "oracle.pause", "", nil)
}

func (h *Handler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unpause(r.Context()); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]any{"paused": false})
	h.logAudit(r, "oracle.unpause", "", nil)
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
		ResourceType: "oracle",
		ResourceID:   resourceID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func parseUintQuery(r *http.Request, key string) (uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, errors.New(key + " is required")
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New(key + " must be an unsigned integer")
	}
	return value, nil
}
