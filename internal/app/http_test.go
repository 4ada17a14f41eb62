package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"copilot/api/internal/workspace"

	"github.com/rs/zerolog"
)

type apiClient struct {
	t     *testing.T
	srv   *httptest.Server
	token string
}

func newAPI(t *testing.T, h *harness) *apiClient {
	t.Helper()
	srv := httptest.NewServer(NewHTTPServer(h.svc, "*", zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return &apiClient{t: t, srv: srv}
}

func (c *apiClient) do(method, path string, body any) (*http.Response, map[string]any) {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	payload := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(resp.Body).Decode(&payload)
	}
	return resp, payload
}

func (c *apiClient) expect(status int, method, path string, body any) map[string]any {
	c.t.Helper()
	resp, payload := c.do(method, path, body)
	if resp.StatusCode != status {
		c.t.Fatalf("%s %s = %d, want %d (%v)", method, path, resp.StatusCode, status, payload)
	}
	return payload
}

func (c *apiClient) login(role string) map[string]any {
	c.t.Helper()
	payload := c.expect(http.StatusCreated, http.MethodPost, "/api/session", map[string]any{"role": role})
	c.token, _ = payload["token"].(string)
	return payload
}

func (c *apiClient) switchRole(role string) {
	c.t.Helper()
	payload := c.expect(http.StatusOK, http.MethodPut, "/api/session/role", map[string]any{"role": role})
	c.token, _ = payload["token"].(string)
}

type pingFailStore struct {
	*workspace.MemoryStore
}

func (pingFailStore) Ping(context.Context) error { return errors.New("redis unreachable") }

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)

	payload := api.expect(http.StatusOK, http.MethodGet, "/api/health", nil)
	if payload["ok"] != true {
		t.Errorf("health = %v", payload)
	}
	payload = api.expect(http.StatusOK, http.MethodGet, "/api/ready", nil)
	if payload["status"] != "ready" {
		t.Errorf("ready = %v", payload)
	}

	failing := New(testConfig(), Deps{Store: pingFailStore{workspace.NewMemoryStore(0)}, Logger: zerolog.Nop()})
	defer failing.Close()
	srv := httptest.NewServer(NewHTTPServer(failing, "*", zerolog.Nop()).Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/api/ready")
	if err != nil {
		t.Fatalf("GET /api/ready: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready with failing store = %d", resp.StatusCode)
	}
}

func TestCORSPreflightAndRequestID(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)

	req, _ := http.NewRequest(http.MethodOptions, api.srv.URL+"/api/workspace", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" || resp.Header.Get("X-Request-ID") != "req-123" {
		t.Errorf("headers = %v", resp.Header)
	}
}

func TestWorkspaceRequiresToken(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)

	payload := api.expect(http.StatusUnauthorized, http.MethodGet, "/api/workspace", nil)
	if payload["code"] != "UNAUTHORIZED" {
		t.Errorf("payload = %v", payload)
	}
	api.token = "not-a-jwt"
	api.expect(http.StatusUnauthorized, http.MethodPost, "/api/workspace/lead/ingest", nil)
	api.expect(http.StatusNotFound, http.MethodGet, "/api/nope", nil)
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)
	api.login("sales_rep")

	codes := []struct {
		method, path string
		body         any
		status       int
		code         string
	}{
		{http.MethodPost, "/api/workspace/proposal/generate", nil, http.StatusConflict, "NO_LEAD"},
		{http.MethodPost, "/api/workspace/messages", map[string]any{"text": "  "}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{http.MethodPost, "/api/workspace/lead/ingest", nil, http.StatusOK, ""},
		{http.MethodPost, "/api/workspace/lead/ingest", nil, http.StatusConflict, "LEAD_ALREADY_INGESTED"},
		{http.MethodPatch, "/api/workspace/proposal", map[string]any{"field": "pricing", "value": "x"}, http.StatusUnprocessableEntity, "UNKNOWN_FIELD"},
		{http.MethodPost, "/api/workspace/approval", map[string]any{}, http.StatusUnprocessableEntity, "EMPTY_PRICING"},
		{http.MethodPost, "/api/workspace/proposal/items/9/quantity", map[string]any{"delta": 1}, http.StatusNotFound, "NOT_FOUND"},
		{http.MethodPost, "/api/workspace/proposal/items/1/quantity", map[string]any{}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{http.MethodPost, "/api/workspace/approval/decision", map[string]any{"decision": "maybe"}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{http.MethodPost, "/api/workspace/approval/decision", map[string]any{"decision": "approve"}, http.StatusForbidden, "FORBIDDEN"},
		{http.MethodGet, "/api/workspace/export?format=pdf", nil, http.StatusConflict, "NOT_FINALIZED"},
		{http.MethodGet, "/api/workspace/export?format=odt", nil, http.StatusBadRequest, "UNSUPPORTED_FORMAT"},
		{http.MethodPut, "/api/workspace/email", map[string]any{"subject": "x"}, http.StatusConflict, "COMPOSER_CLOSED"},
		{http.MethodPost, "/api/workspace/templates", map[string]any{"name": ""}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{http.MethodPut, "/api/session/role", map[string]any{"role": "ceo"}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	}
	for _, tc := range codes {
		payload := api.expect(tc.status, tc.method, tc.path, tc.body)
		if tc.code != "" && payload["code"] != tc.code {
			t.Errorf("%s %s code = %v, want %s", tc.method, tc.path, payload["code"], tc.code)
		}
	}

	resp, _ := api.do(http.MethodPost, "/api/workspace/messages", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("empty body status = %d", resp.StatusCode)
	}
	req, _ := http.NewRequest(http.MethodPost, api.srv.URL+"/api/workspace/messages", strings.NewReader("{bad"))
	req.Header.Set("Authorization", "Bearer "+api.token)
	bad, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST bad json: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json status = %d", bad.StatusCode)
	}
}

func TestAcmeProposalFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)

	session := api.login("")
	if session["role"] != "sales_rep" || session["workspaceId"] == "" {
		t.Fatalf("session = %v", session)
	}

	api.expect(http.StatusOK, http.MethodPost, "/api/workspace/lead/ingest", nil)
	view := api.expect(http.StatusOK, http.MethodPost, "/api/workspace/proposal/generate", nil)
	proposal := view["proposal"].(map[string]any)
	if proposal["executiveSummary"] != "Generated summary for Acme." {
		t.Fatalf("summary = %v", proposal["executiveSummary"])
	}

	// three robotic arms unlock the volume discount
	view = api.expect(http.StatusOK, http.MethodPost, "/api/workspace/proposal/items/1/quantity", map[string]any{"delta": 2})
	display := view["pricingDisplay"].(map[string]any)
	if display["subtotal"] != "$61,000.00" || display["volumeDiscount"] != "-$3,050.00" || display["total"] != "$57,950.00" {
		t.Fatalf("pricing = %v", display)
	}

	api.expect(http.StatusOK, http.MethodPatch, "/api/workspace/proposal", map[string]any{"field": "timeline", "value": "4-6 weeks"})
	h.timers.fire()
	versions := api.expect(http.StatusOK, http.MethodGet, "/api/workspace/versions", nil)["versions"].([]any)
	if len(versions) != 2 || versions[0].(map[string]any)["label"] != "Manual Revision" {
		t.Fatalf("versions = %v", versions)
	}

	view = api.expect(http.StatusOK, http.MethodPost, "/api/workspace/approval", map[string]any{"note": "Strategic account", "requestedDiscount": 10})
	if view["approvalStatus"] != "Pending Approval" {
		t.Fatalf("status = %v", view["approvalStatus"])
	}

	api.switchRole("manager")
	view = api.expect(http.StatusOK, http.MethodPost, "/api/workspace/approval/decision", map[string]any{"decision": "approve", "note": "Approved for Q3"})
	if view["canFinalize"] != true || view["roleLabel"] != "Manager" {
		t.Fatalf("view = %v", view)
	}
	display = view["pricingDisplay"].(map[string]any)
	if display["manualDiscount"] != "-$6,100.00" || display["total"] != "$51,850.00" {
		t.Fatalf("pricing after approval = %v", display)
	}

	resp, err := func() (*http.Response, error) {
		req, _ := http.NewRequest(http.MethodGet, api.srv.URL+"/api/workspace/export?format=pdf", nil)
		req.Header.Set("Authorization", "Bearer "+api.token)
		return http.DefaultClient.Do(req)
	}()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/pdf" || buf.String() != "%PDF-fake" {
		t.Fatalf("export status=%d type=%s body=%q", resp.StatusCode, resp.Header.Get("Content-Type"), buf.String())
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "Proposal_Automation_1700000000000.pdf") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	api.switchRole("sales_rep")
	view = api.expect(http.StatusOK, http.MethodPost, "/api/workspace/email/compose", nil)
	draft := view["email"].(map[string]any)
	if draft["to"] != "riya.sharma@acme-mfg.co.in" || draft["attachment"] != "proposal_factory_automation.pdf" {
		t.Fatalf("email draft = %v", draft)
	}
	sent := api.expect(http.StatusOK, http.MethodPost, "/api/workspace/email/send", nil)
	if sent["delivery"].(map[string]any)["simulated"] != true {
		t.Errorf("delivery = %v", sent["delivery"])
	}
	if sent["workspace"].(map[string]any)["email"] != nil {
		t.Error("composer should be closed after send")
	}

	messages := api.expect(http.StatusOK, http.MethodGet, "/api/workspace/messages", nil)["messages"].([]any)
	last := messages[len(messages)-1].(map[string]any)
	if last["content"] != "Email sent successfully to Riya Sharma <riya.sharma@acme-mfg.co.in>." {
		t.Errorf("last message = %v", last)
	}
}

func TestTemplateRoutes(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)
	api.login("sales_rep")
	api.expect(http.StatusOK, http.MethodPost, "/api/workspace/lead/ingest", nil)

	view := api.expect(http.StatusCreated, http.MethodPost, "/api/workspace/templates", map[string]any{"name": "Standard"})
	templates := view["templates"].([]any)
	id := templates[0].(map[string]any)["id"].(string)

	api.expect(http.StatusOK, http.MethodPatch, "/api/workspace/proposal", map[string]any{"field": "terms", "value": "Net 60"})
	view = api.expect(http.StatusOK, http.MethodPost, "/api/workspace/templates/"+id+"/apply", nil)
	if view["proposal"].(map[string]any)["terms"] == "Net 60" {
		t.Error("template should overwrite terms")
	}
	listed := api.expect(http.StatusOK, http.MethodGet, "/api/workspace/templates", nil)["templates"].([]any)
	if len(listed) != 1 {
		t.Errorf("templates = %v", listed)
	}
	api.expect(http.StatusNotFound, http.MethodPost, "/api/workspace/templates/tpl_missing/apply", nil)
}

func TestDiscardEmailRoute(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)
	session := h.approved(t, 0)
	api.token = session.Token

	api.expect(http.StatusOK, http.MethodPost, "/api/workspace/email/compose", nil)
	view := api.expect(http.StatusOK, http.MethodDelete, "/api/workspace/email", nil)
	if view["email"] != nil {
		t.Errorf("email = %v", view["email"])
	}
	api.expect(http.StatusConflict, http.MethodDelete, "/api/workspace/email", nil)
	if len(h.mailer.sent) != 0 {
		t.Error("discard must not send")
	}
}
