package httpapi

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/providerdesk/backoffice/internal/logging"
	"github.com/providerdesk/backoffice/internal/middleware"

	"github.com/providerdesk/backoffice/internal/app"
)

const testCronSecret = "cron-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := logging.New("test", "error", io.Discard)

	auth := middleware.NewAuthMiddleware("test-jwt-secret", log, []string{
		"/healthz", "/metrics", "/api/auth/login", "/api/auth/signup", "/api/cron/billing",
	})

	application, err := app.New(app.Stores{}, app.Dependencies{
		TokenIssuer: auth,
		TokenTTL:    time.Hour,
	}, log)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}

	handler, err := NewHandler(application, Options{CronSecret: testCronSecret})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}

	srv := httptest.NewServer(auth.Handler(handler))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	out := map[string]interface{}{}
	if len(data) > 0 && strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(data, &out); err != nil {
			// Array responses land under a synthetic key.
			var arr []interface{}
			if err := json.Unmarshal(data, &arr); err == nil {
				out["items"] = arr
			}
		}
	}
	if out == nil {
		// Unmarshaling a JSON null leaves the map nil.
		out = map[string]interface{}{}
	}
	out["_raw"] = string(data)
	return resp, out
}

func signupAndLogin(t *testing.T, srv *httptest.Server, orgName, email string) (string, string) {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/signup", "", map[string]string{
		"org_name": orgName,
		"email":    email,
		"name":     "Test User",
		"password": "correct horse battery",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup: status %d body %v", resp.StatusCode, body["_raw"])
	}
	orgID, _ := body["OrgID"].(string)
	if orgID == "" {
		t.Fatalf("signup response missing org: %v", body["_raw"])
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "correct horse battery",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d body %v", resp.StatusCode, body["_raw"])
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("login returned no token")
	}
	return token, orgID
}

func TestAPI_EndToEnd(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signupAndLogin(t, srv, "Sunrise Care", "admin@sunrise.example")

	// House
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/houses", token, map[string]interface{}{
		"name":            "Acacia House",
		"address":         "12 Acacia St",
		"design_category": "High Physical Support",
		"capacity":        3,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create house: %d %v", resp.StatusCode, body["_raw"])
	}
	houseID := body["ID"].(string)

	// Resident
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/residents", token, map[string]interface{}{
		"house_id":    houseID,
		"name":        "Alex Rivers",
		"ndis_number": "430111222",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create resident: %d %v", resp.StatusCode, body["_raw"])
	}
	residentID := body["ID"].(string)

	// Contract: weekly 700 => 100/day
	start := time.Now().UTC().AddDate(0, 0, -5).Format("2006-01-02")
	end := time.Now().UTC().AddDate(0, 6, 0).Format("2006-01-02")
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/contracts", token, map[string]interface{}{
		"resident_id": residentID,
		"house_id":    houseID,
		"frequency":   "weekly",
		"amount":      "700",
		"start_date":  start,
		"end_date":    end,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create contract: %d %v", resp.StatusCode, body["_raw"])
	}
	contractID := body["ID"].(string)
	if body["Status"] != "Draft" {
		t.Fatalf("contract should start Draft, got %v", body["Status"])
	}

	// Activate
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/contracts/"+contractID+"/transition", token, map[string]string{"status": "Active"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate: %d %v", resp.StatusCode, body["_raw"])
	}
	if body["CurrentBalance"] != "700" {
		t.Fatalf("activation should seed the balance, got %v", body["CurrentBalance"])
	}

	// Preview
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/contracts/"+contractID+"/preview", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview: %d %v", resp.StatusCode, body["_raw"])
	}
	if body["daily_rate"] != "100" {
		t.Fatalf("unexpected daily rate: %v", body["daily_rate"])
	}

	// Enable automation and run the cron endpoint.
	resp, body = doJSON(t, http.MethodPatch, srv.URL+"/api/automation/settings", token, map[string]interface{}{
		"enabled":          true,
		"catch_up_enabled": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("automation settings: %d %v", resp.StatusCode, body["_raw"])
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/cron/billing", nil)
	req.Header.Set("X-Cron-Secret", testCronSecret)
	cronResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("cron: %v", err)
	}
	cronBody, _ := io.ReadAll(cronResp.Body)
	cronResp.Body.Close()
	if cronResp.StatusCode != http.StatusOK {
		t.Fatalf("cron run: %d %s", cronResp.StatusCode, cronBody)
	}
	var summary struct {
		Transactions int `json:"transactions"`
	}
	if err := json.Unmarshal(cronBody, &summary); err != nil {
		t.Fatalf("parse summary: %v", err)
	}
	if summary.Transactions == 0 {
		t.Fatal("cron run should have generated drawdowns")
	}

	// Pick up every generated transaction for claiming.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/transactions", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list transactions: %d", resp.StatusCode)
	}
	items, _ := body["items"].([]interface{})
	if len(items) != summary.Transactions {
		t.Fatalf("expected %d transactions, got %d", summary.Transactions, len(items))
	}
	var txIDs []string
	for _, item := range items {
		tx := item.(map[string]interface{})
		id := tx["ID"].(string)
		resp, pb := doJSON(t, http.MethodPost, srv.URL+"/api/transactions/"+id+"/pickup", token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("pickup: %d %v", resp.StatusCode, pb["_raw"])
		}
		txIDs = append(txIDs, id)
	}

	// Claim and export.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/claims", token, map[string]interface{}{"transaction_ids": txIDs})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create claim: %d %v", resp.StatusCode, body["_raw"])
	}
	claimID := body["ID"].(string)

	expReq, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/claims/"+claimID+"/export", nil)
	expReq.Header.Set("Authorization", "Bearer "+token)
	expResp, err := http.DefaultClient.Do(expReq)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	expBody, _ := io.ReadAll(expResp.Body)
	expResp.Body.Close()
	if expResp.StatusCode != http.StatusOK {
		t.Fatalf("export: %d %s", expResp.StatusCode, expBody)
	}
	if ct := expResp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("export content type: %s", ct)
	}
	records, err := csv.NewReader(bytes.NewReader(expBody)).ReadAll()
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(records) != summary.Transactions+1 {
		t.Fatalf("expected %d CSV lines, got %d", summary.Transactions+1, len(records))
	}
	if records[0][0] != "Claim ID" || records[0][9] != "Exported At" {
		t.Fatalf("unexpected CSV header: %v", records[0])
	}

	// Reconcile everything as paid.
	for _, row := range records[1:] {
		row[7] = "paid"
	}
	var remittance bytes.Buffer
	if err := csv.NewWriter(&remittance).WriteAll(records); err != nil {
		t.Fatalf("rebuild remittance: %v", err)
	}
	impReq, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/claims/"+claimID+"/import", &remittance)
	impReq.Header.Set("Authorization", "Bearer "+token)
	impResp, err := http.DefaultClient.Do(impReq)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	impBody, _ := io.ReadAll(impResp.Body)
	impResp.Body.Close()
	if impResp.StatusCode != http.StatusOK {
		t.Fatalf("import: %d %s", impResp.StatusCode, impBody)
	}
	var importResult struct {
		Paid  int `json:"paid"`
		Claim struct {
			Status string `json:"Status"`
		} `json:"claim"`
	}
	if err := json.Unmarshal(impBody, &importResult); err != nil {
		t.Fatalf("parse import result: %v", err)
	}
	if importResult.Paid != summary.Transactions {
		t.Fatalf("all rows should reconcile paid, got %d", importResult.Paid)
	}
	if importResult.Claim.Status != "paid" {
		t.Fatalf("claim should finish paid, got %s", importResult.Claim.Status)
	}

	// Dashboard reflects the activity.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/dashboard", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard: %d %v", resp.StatusCode, body["_raw"])
	}
	if body["houses"].(float64) != 1 || body["active_contracts"].(float64) != 1 {
		t.Fatalf("unexpected dashboard stats: %v", body["_raw"])
	}

	// Audit trail recorded the mutations.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/audit", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit: %d %v", resp.StatusCode, body["_raw"])
	}
	if items, _ := body["items"].([]interface{}); len(items) == 0 {
		t.Fatal("audit log should not be empty")
	}
}

func TestAPI_TenantIsolation(t *testing.T) {
	srv := newTestServer(t)
	tokenA, _ := signupAndLogin(t, srv, "Org A", "a@example.com")
	tokenB, _ := signupAndLogin(t, srv, "Org B", "b@example.com")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/houses", tokenA, map[string]interface{}{
		"name": "House A", "address": "1 A St", "capacity": 2,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create house: %d %v", resp.StatusCode, body["_raw"])
	}
	houseID := body["ID"].(string)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/houses/"+houseID, tokenB, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-tenant read should be forbidden, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/houses", tokenB, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list own houses: %d", resp.StatusCode)
	}
	if items, _ := body["items"].([]interface{}); len(items) != 0 {
		t.Fatalf("org B should see no houses, got %d", len(items))
	}
}

func TestAPI_AuditScopedToOrg(t *testing.T) {
	srv := newTestServer(t)
	tokenA, orgA := signupAndLogin(t, srv, "Org A", "a@example.com")
	tokenB, _ := signupAndLogin(t, srv, "Org B", "b@example.com")

	for _, tok := range []string{tokenA, tokenB} {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/houses", tok, map[string]interface{}{
			"name": "House", "address": "1 St", "capacity": 2,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create house: %d %v", resp.StatusCode, body["_raw"])
		}
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/audit", tokenA, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit: %d %v", resp.StatusCode, body["_raw"])
	}
	items, _ := body["items"].([]interface{})
	if len(items) == 0 {
		t.Fatal("org A should see its own audit entries")
	}
	for _, it := range items {
		entry, _ := it.(map[string]interface{})
		if entry["org"] != orgA {
			t.Fatalf("audit entry leaked across tenants: %v", entry)
		}
	}
}

func TestAPI_AuthRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/houses", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request should fail, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health check must stay open, got %d", resp.StatusCode)
	}
}

func TestAPI_CronSecretEnforced(t *testing.T) {
	srv := newTestServer(t)

	for _, secret := range []string{"", "wrong"} {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/cron/billing", nil)
		if secret != "" {
			req.Header.Set("X-Cron-Secret", secret)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("cron request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("secret %q should be rejected, got %d", secret, resp.StatusCode)
		}
	}
}

func TestAPI_ValidationErrorsSurfaceDetails(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signupAndLogin(t, srv, "Org V", "v@example.com")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/contracts", token, map[string]interface{}{
		"resident_id": "missing",
		"frequency":   "weekly",
		"amount":      "700",
		"start_date":  "2024-03-01",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown resident should 404, got %d %v", resp.StatusCode, body["_raw"])
	}
	if body["code"] != "NOT_FOUND" {
		t.Fatalf("error code missing from response: %v", body["_raw"])
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/houses", token, map[string]interface{}{
		"name": "X", "unknown_field": true,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown JSON fields should be rejected, got %d %v", resp.StatusCode, body["_raw"])
	}
}

func TestAPI_SignupRequiresOrg(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/auth/signup", "", map[string]string{
		"email": fmt.Sprintf("noorg-%d@example.com", time.Now().UnixNano()), "name": "N", "password": "pw123456",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("signup without org must fail, got %d", resp.StatusCode)
	}
}
