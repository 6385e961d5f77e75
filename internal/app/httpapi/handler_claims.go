package httpapi

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/providerdesk/backoffice/internal/app/services/billing"
	apperrors "github.com/providerdesk/backoffice/internal/errors"
	"github.com/providerdesk/backoffice/internal/middleware"
)

type claimPayload struct {
	TransactionIDs []string `json:"transaction_ids"`
}

func (h *handler) handleClaims(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/claims"), "/")
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			list, err := h.app.Claims.List(ctx, orgID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			var payload claimPayload
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			created, err := h.app.Claims.Create(ctx, orgID, payload.TransactionIDs)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)
		default:
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		}
		return
	}

	parts := strings.Split(rest, "/")
	id := parts[0]

	existing, err := h.app.Claims.Get(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if !h.sameOrg(w, ctx, existing.OrgID) {
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		writeJSON(w, http.StatusOK, existing)
		return
	}

	switch parts[1] {
	case "transactions":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		list, err := h.app.Claims.Transactions(ctx, id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case "export":
		h.handleClaimExport(w, r, id)
	case "import":
		h.handleClaimImport(w, r, id)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown claim action"))
	}
}

// handleClaimExport streams the claim's transactions as the fixed-column
// CSV the funding portal ingests.
func (h *handler) handleClaimExport(w http.ResponseWriter, r *http.Request, claimID string) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	// Validate before committing headers so failures still return JSON.
	var buf strings.Builder
	exported, err := h.app.Claims.ExportCSV(r.Context(), claimID, &buf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exported.Reference+".csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(buf.String()))
}

// handleClaimImport reconciles an uploaded remittance CSV against the
// claim's transactions.
func (h *handler) handleClaimImport(w http.ResponseWriter, r *http.Request, claimID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	result, err := h.app.Claims.ImportCSV(r.Context(), claimID, r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- automation ---

type automationPayload struct {
	Enabled        *bool   `json:"enabled"`
	CatchUpEnabled *bool   `json:"catch_up_enabled"`
	RunHourUTC     *int    `json:"run_hour_utc"`
	NotifyEmail    *string `json:"notify_email"`
}

func (h *handler) handleAutomationSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	switch r.Method {
	case http.MethodGet:
		settings, err := h.app.Billing.GetSettings(ctx, orgID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPatch:
		var payload automationPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		settings, err := h.app.Billing.UpdateSettings(ctx, orgID, payload.Enabled, payload.CatchUpEnabled, payload.RunHourUTC, payload.NotifyEmail)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

// handleAutomationRun triggers a drawdown run for the caller's own
// organization, independent of the nightly schedule.
func (h *handler) handleAutomationRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	ctx := r.Context()
	if !h.requireAdmin(w, ctx) {
		return
	}
	result, err := h.app.Billing.RunOrg(ctx, middleware.GetOrgID(ctx), billing.TriggerManual)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCronBilling is invoked by the external scheduler. It bypasses JWT
// auth; callers authenticate with the shared X-Cron-Secret header.
func (h *handler) handleCronBilling(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	if h.cronSecret == "" {
		writeError(w, http.StatusNotFound, errors.New("cron endpoint disabled"))
		return
	}
	secret := r.Header.Get("X-Cron-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.cronSecret)) != 1 {
		h.log.LogSecurityEvent(r.Context(), "cron_secret_mismatch", map[string]interface{}{
			"remote_addr": r.RemoteAddr,
		})
		writeError(w, http.StatusUnauthorized, apperrors.Unauthorized("Invalid cron secret"))
		return
	}

	summary, err := h.app.Billing.Run(r.Context(), billing.TriggerCron)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// --- dashboard / notifications / audit ---

func (h *handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	stats, err := h.app.Dashboard.Stats(r.Context(), middleware.GetOrgID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	list, err := h.app.Notifications.List(r.Context(), middleware.GetOrgID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	if !h.requireAdmin(w, r.Context()) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, apperrors.Validation("limit must be an integer"))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.audit.listOrg(middleware.GetOrgID(r.Context()), limit))
}
