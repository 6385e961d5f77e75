// Package httpapi exposes the back-office services over a JSON HTTP API.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/providerdesk/backoffice/internal/errors"
	"github.com/providerdesk/backoffice/internal/logging"
	"github.com/providerdesk/backoffice/internal/middleware"

	"github.com/providerdesk/backoffice/internal/app"
	"github.com/providerdesk/backoffice/internal/app/domain/user"
	"github.com/providerdesk/backoffice/internal/app/metrics"
)

// Options tunes handler construction.
type Options struct {
	// CronSecret guards POST /api/cron/billing. Requests must present it
	// in the X-Cron-Secret header. Empty disables the endpoint.
	CronSecret string

	// AuditPath, when set, appends audit entries as JSON lines to the
	// given file in addition to the in-memory ring.
	AuditPath string

	// AuditMax bounds the in-memory audit ring. Defaults to 200.
	AuditMax int
}

type handler struct {
	app        *app.Application
	cronSecret string
	audit      *auditLog
	log        *logging.Logger
}

// NewHandler wires every API route onto a ServeMux and returns it wrapped
// with audit recording for mutating requests.
func NewHandler(application *app.Application, opts Options) (http.Handler, error) {
	sink, err := newFileAuditSink(opts.AuditPath)
	if err != nil {
		return nil, err
	}

	h := &handler{
		app:        application,
		cronSecret: opts.CronSecret,
		audit:      newAuditLog(opts.AuditMax, sink),
		log:        application.Log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/auth/", h.handleAuth)
	mux.HandleFunc("/api/orgs", h.handleOrgs)
	mux.HandleFunc("/api/orgs/", h.handleOrgs)
	mux.HandleFunc("/api/users", h.handleUsers)
	mux.HandleFunc("/api/users/", h.handleUsers)
	mux.HandleFunc("/api/houses", h.handleHouses)
	mux.HandleFunc("/api/houses/", h.handleHouses)
	mux.HandleFunc("/api/residents", h.handleResidents)
	mux.HandleFunc("/api/residents/", h.handleResidents)
	mux.HandleFunc("/api/contracts", h.handleContracts)
	mux.HandleFunc("/api/contracts/", h.handleContracts)
	mux.HandleFunc("/api/transactions", h.handleTransactions)
	mux.HandleFunc("/api/transactions/", h.handleTransactions)
	mux.HandleFunc("/api/claims", h.handleClaims)
	mux.HandleFunc("/api/claims/", h.handleClaims)
	mux.HandleFunc("/api/automation/settings", h.handleAutomationSettings)
	mux.HandleFunc("/api/automation/run", h.handleAutomationRun)
	mux.HandleFunc("/api/cron/billing", h.handleCronBilling)
	mux.HandleFunc("/api/documents/", h.handleDocuments)
	mux.HandleFunc("/api/dashboard", h.handleDashboard)
	mux.HandleFunc("/api/dashboard/stats", h.handleDashboard)
	mux.HandleFunc("/api/notifications", h.handleNotifications)
	mux.HandleFunc("/api/audit", h.handleAudit)

	return h.withAudit(mux), nil
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withAudit records mutating API requests and invalidates the caller's
// dashboard cache after successful writes.
func (h *handler) withAudit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		rec := &auditRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		ctx := r.Context()
		resource, resourceID, action := describeRequest(r.Method, r.URL.Path)
		h.audit.add(auditEntry{
			Time:       time.Now().UTC(),
			User:       middleware.GetUserID(ctx),
			Role:       middleware.GetUserRole(ctx),
			Org:        middleware.GetOrgID(ctx),
			Resource:   resource,
			ResourceID: resourceID,
			Action:     action,
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
		})

		if rec.status < 300 && h.app.Dashboard != nil {
			if org := middleware.GetOrgID(ctx); org != "" {
				h.app.Dashboard.Invalidate(ctx, org)
			}
		}
	})
}

type auditRecorder struct {
	http.ResponseWriter
	status int
}

func (r *auditRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// --- auth ---

type signupPayload struct {
	OrgID    string `json:"org_id"`
	OrgName  string `json:"org_name"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) handleAuth(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/auth"), "/")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	switch action {
	case "signup":
		h.handleSignup(w, r)
	case "login":
		h.handleLogin(w, r)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown auth action"))
	}
}

func (h *handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var payload signupPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	orgID := payload.OrgID
	role := user.RoleMember
	if orgID == "" {
		if payload.OrgName == "" {
			writeError(w, http.StatusBadRequest, errors.New("org_id or org_name is required"))
			return
		}
		created, err := h.app.Orgs.Create(ctx, payload.OrgName, "", payload.Email, nil)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		orgID = created.ID
		role = user.RoleAdmin
	}

	u, err := h.app.Users.Signup(ctx, orgID, payload.Email, payload.Name, payload.Password, role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, token, err := h.app.Users.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  u,
	})
}

// --- organizations ---

type orgPayload struct {
	Name         *string           `json:"name"`
	ABN          *string           `json:"abn"`
	ContactEmail *string           `json:"contact_email"`
	Metadata     map[string]string `json:"metadata"`
}

func (h *handler) handleOrgs(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/orgs"), "/")
	ctx := r.Context()

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			// Tenants only ever see their own organization.
			o, err := h.app.Orgs.Get(ctx, middleware.GetOrgID(ctx))
			if err != nil {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeJSON(w, http.StatusOK, []interface{}{o})
		case http.MethodPost:
			var payload orgPayload
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			o, err := h.app.Orgs.Create(ctx, strVal(payload.Name), strVal(payload.ABN), strVal(payload.ContactEmail), payload.Metadata)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusCreated, o)
		default:
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		}
		return
	}

	id := rest
	if !h.sameOrg(w, ctx, id) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		o, err := h.app.Orgs.Get(ctx, id)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	case http.MethodPatch:
		var payload orgPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		o, err := h.app.Orgs.Update(ctx, id, payload.Name, payload.ABN, payload.ContactEmail, payload.Metadata)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	case http.MethodDelete:
		if !h.requireAdmin(w, ctx) {
			return
		}
		if err := h.app.Orgs.Delete(ctx, id); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

// --- users ---

func (h *handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/users"), "/")
	ctx := r.Context()

	if rest == "" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		users, err := h.app.Users.List(ctx, middleware.GetOrgID(ctx))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	u, err := h.app.Users.Get(ctx, rest)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if !h.sameOrg(w, ctx, u.OrgID) {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- houses ---

type housePayload struct {
	Name           *string `json:"name"`
	Address        *string `json:"address"`
	DesignCategory *string `json:"design_category"`
	Capacity       *int    `json:"capacity"`
	Active         *bool   `json:"active"`
}

func (h *handler) handleHouses(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/houses"), "/")
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			list, err := h.app.Houses.List(ctx, orgID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			var payload housePayload
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			created, err := h.app.Houses.Create(ctx, orgID, strVal(payload.Name), strVal(payload.Address), strVal(payload.DesignCategory), intVal(payload.Capacity))
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

	id := rest
	existing, err := h.app.Houses.Get(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if !h.sameOrg(w, ctx, existing.OrgID) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, existing)
	case http.MethodPatch:
		var payload housePayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Houses.Update(ctx, id, payload.Name, payload.Address, payload.DesignCategory, payload.Capacity, payload.Active)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if !h.requireAdmin(w, ctx) {
			return
		}
		if err := h.app.Houses.Delete(ctx, id); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

// --- residents ---

type residentPayload struct {
	HouseID     *string `json:"house_id"`
	Name        *string `json:"name"`
	NDISNumber  *string `json:"ndis_number"`
	DateOfBirth *string `json:"date_of_birth"`
	Active      *bool   `json:"active"`
}

func (h *handler) handleResidents(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/residents"), "/")
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			if houseID := r.URL.Query().Get("house_id"); houseID != "" {
				house, err := h.app.Houses.Get(ctx, houseID)
				if err != nil {
					writeError(w, http.StatusNotFound, err)
					return
				}
				if !h.sameOrg(w, ctx, house.OrgID) {
					return
				}
				list, err := h.app.Residents.ListByHouse(ctx, houseID)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err)
					return
				}
				writeJSON(w, http.StatusOK, list)
				return
			}
			list, err := h.app.Residents.List(ctx, orgID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			var payload residentPayload
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			dob, err := parseDateOptional(strVal(payload.DateOfBirth))
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			created, err := h.app.Residents.Create(ctx, orgID, strVal(payload.HouseID), strVal(payload.Name), strVal(payload.NDISNumber), dob)
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

	id := rest
	existing, err := h.app.Residents.Get(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if !h.sameOrg(w, ctx, existing.OrgID) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, existing)
	case http.MethodPatch:
		var payload residentPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Residents.Update(ctx, id, payload.Name, payload.NDISNumber, payload.HouseID, payload.Active)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

// --- shared helpers ---

// sameOrg enforces tenant scoping: the authenticated caller may only touch
// resources belonging to their own organization.
func (h *handler) sameOrg(w http.ResponseWriter, ctx context.Context, resourceOrg string) bool {
	caller := middleware.GetOrgID(ctx)
	if caller == "" || caller != resourceOrg {
		h.log.LogSecurityEvent(ctx, "cross_tenant_access_denied", map[string]interface{}{
			"resource_org": resourceOrg,
		})
		writeError(w, http.StatusForbidden, apperrors.Forbidden("Access to this resource is not permitted"))
		return false
	}
	return true
}

func (h *handler) requireAdmin(w http.ResponseWriter, ctx context.Context) bool {
	if middleware.GetUserRole(ctx) != string(user.RoleAdmin) {
		writeError(w, http.StatusForbidden, apperrors.Forbidden("Admin role required"))
		return false
	}
	return true
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func intVal(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, apperrors.Validation("dates must be formatted YYYY-MM-DD")
	}
	return t, nil
}

func parseDateOptional(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return parseDate(value)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Validation("invalid request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError maps service errors onto their HTTP status; fallback applies
// to plain errors.
func writeError(w http.ResponseWriter, fallback int, err error) {
	status := fallback
	body := map[string]interface{}{"error": err.Error()}

	if svcErr := apperrors.GetServiceError(err); svcErr != nil {
		status = svcErr.HTTPStatus
		body["error"] = svcErr.Message
		body["code"] = string(svcErr.Code)
		if len(svcErr.Details) > 0 {
			body["details"] = svcErr.Details
		}
	} else if errors.Is(err, sql.ErrNoRows) {
		status = http.StatusNotFound
		body["error"] = "resource not found"
	}

	writeJSON(w, status, body)
}
