package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/providerdesk/backoffice/internal/middleware"

	"github.com/providerdesk/backoffice/internal/app/domain/contract"
	svccontracts "github.com/providerdesk/backoffice/internal/app/services/contracts"
)

type contractPayload struct {
	ResidentID *string          `json:"resident_id"`
	HouseID    *string          `json:"house_id"`
	Frequency  *string          `json:"frequency"`
	Amount     *decimal.Decimal `json:"amount"`
	StartDate  *string          `json:"start_date"`
	EndDate    *string          `json:"end_date"`
}

type transitionPayload struct {
	Status string `json:"status"`
}

type renewPayload struct {
	Amount    *decimal.Decimal `json:"amount"`
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
}

func (h *handler) handleContracts(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/contracts"), "/")
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			list, err := h.app.Contracts.List(ctx, orgID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			h.handleContractCreate(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		}
		return
	}

	parts := strings.Split(rest, "/")
	id := parts[0]

	existing, err := h.app.Contracts.Get(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if !h.sameOrg(w, ctx, existing.OrgID) {
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, existing)
		case http.MethodPatch:
			h.handleContractUpdate(w, r, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		}
		return
	}

	switch parts[1] {
	case "transition":
		h.handleContractTransition(w, r, id)
	case "renew":
		h.handleContractRenew(w, r, id)
	case "preview":
		h.handleContractPreview(w, r, existing)
	case "transactions":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		list, err := h.app.Transactions.ListByContract(ctx, id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case "documents":
		h.handleContractDocuments(w, r, id)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown contract action"))
	}
}

func (h *handler) handleContractCreate(w http.ResponseWriter, r *http.Request) {
	var payload contractPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start, err := parseDateOptional(strVal(payload.StartDate))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	end, err := parseDateOptional(strVal(payload.EndDate))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var amount decimal.Decimal
	if payload.Amount != nil {
		amount = *payload.Amount
	}

	created, err := h.app.Contracts.Create(r.Context(), middleware.GetOrgID(r.Context()), strVal(payload.ResidentID), strVal(payload.HouseID), contract.Frequency(strVal(payload.Frequency)), amount, start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) handleContractUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var payload contractPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var freq *contract.Frequency
	if payload.Frequency != nil {
		f := contract.Frequency(*payload.Frequency)
		freq = &f
	}
	var start, end *time.Time
	if payload.StartDate != nil {
		t, err := parseDate(*payload.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start = &t
	}
	if payload.EndDate != nil {
		t, err := parseDate(*payload.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		end = &t
	}

	updated, err := h.app.Contracts.Update(r.Context(), id, freq, payload.Amount, start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) handleContractTransition(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	var payload transitionPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updated, err := h.app.Contracts.Transition(r.Context(), id, contract.Status(payload.Status))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) handleContractRenew(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	var payload renewPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	start, err := parseDate(payload.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	end, err := parseDate(payload.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	successor, err := h.app.Contracts.Renew(r.Context(), id, payload.Amount, start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, successor)
}

// handleContractPreview projects upcoming drawdowns without writing any
// transactions. Range comes from from/to query params, defaulting to the
// next fortnight.
func (h *handler) handleContractPreview(w http.ResponseWriter, r *http.Request, c contract.Contract) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	now := time.Now().UTC()
	from, to := now, now.AddDate(0, 0, 13)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		to = t
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contract_id": c.ID,
		"daily_rate":  svccontracts.DailyRate(c),
		"days":        svccontracts.Preview(c, from, to),
	})
}

func (h *handler) handleContractDocuments(w http.ResponseWriter, r *http.Request, contractID string) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		list, err := h.app.Documents.ListByContract(ctx, contractID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		result, err := h.app.Documents.Render(ctx, contractID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (h *handler) handleDocuments(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/documents"), "/")
	ctx := r.Context()

	if rest == "" || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, errors.New("unknown document route"))
		return
	}

	parts := strings.Split(rest, "/")
	doc, err := h.app.Documents.Get(ctx, parts[0])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if !h.sameOrg(w, ctx, doc.OrgID) {
		return
	}

	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, doc)
		return
	}
	if len(parts) == 2 && parts[1] == "url" {
		url, err := h.app.Documents.SignedURL(ctx, doc.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"document_id": doc.ID, "url": url})
		return
	}
	if len(parts) == 2 && parts[1] == "content" {
		_, data, err := h.app.Documents.Download(ctx, doc.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.ID+".pdf"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	writeError(w, http.StatusNotFound, errors.New("unknown document route"))
}

// --- transactions ---

type transactionPayload struct {
	ContractID  string          `json:"contract_id"`
	ServiceDate string          `json:"service_date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/transactions"), "/")
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			list, err := h.app.Transactions.List(ctx, orgID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			var payload transactionPayload
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			serviceDate, err := parseDate(payload.ServiceDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			created, err := h.app.Transactions.Create(ctx, orgID, payload.ContractID, middleware.GetUserID(ctx), serviceDate, payload.Amount, payload.Description)
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

	existing, err := h.app.Transactions.Get(ctx, id)
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

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	var updated interface{}
	switch parts[1] {
	case "post":
		updated, err = h.app.Transactions.Post(ctx, id)
	case "void":
		updated, err = h.app.Transactions.Void(ctx, id)
	case "pickup":
		updated, err = h.app.Transactions.Pickup(ctx, id)
	case "release":
		updated, err = h.app.Transactions.Release(ctx, id)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown transaction action"))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
