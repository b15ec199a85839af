package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"claimiq.io/internal/audit"
	"claimiq.io/internal/auth"
	"claimiq.io/internal/claims"
)

// fakeValidator accepts exactly the tokens it was seeded with.
type fakeValidator struct {
	tokens map[string]*auth.ClaimSet
	calls  int
}

func (f *fakeValidator) Validate(_ context.Context, token string) (*auth.ClaimSet, bool) {
	f.calls++
	cs, ok := f.tokens[token]
	return cs, ok
}

type recordingSink struct{ events []audit.Event }

func (s *recordingSink) Append(_ context.Context, e audit.Event) error {
	s.events = append(s.events, e)
	return nil
}

type fakeStore struct {
	byID    map[string]*claims.Claim
	finds   int
	updates []string
	reviews []string
	err     error
}

func (s *fakeStore) Find(_ context.Context, tenantID, claimID string) (*claims.Claim, error) {
	s.finds++
	if s.err != nil {
		return nil, s.err
	}
	c, ok := s.byID[claimID]
	if !ok || c.TenantID != tenantID {
		return nil, claims.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) List(_ context.Context, tenantID string) ([]*claims.Claim, error) {
	if s.err != nil {
		return nil, s.err
	}
	var res []*claims.Claim
	for _, c := range s.byID {
		if c.TenantID == tenantID {
			res = append(res, c)
		}
	}
	return res, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, tenantID, claimID, status string) error {
	if s.err != nil {
		return s.err
	}
	if c, ok := s.byID[claimID]; !ok || c.TenantID != tenantID {
		return claims.ErrNotFound
	}
	s.updates = append(s.updates, claimID+":"+status)
	return nil
}

func (s *fakeStore) MarkManualReview(_ context.Context, tenantID, claimID, errorMessage string) error {
	if s.err != nil {
		return s.err
	}
	if c, ok := s.byID[claimID]; !ok || c.TenantID != tenantID {
		return claims.ErrNotFound
	}
	s.reviews = append(s.reviews, claimID+":"+errorMessage)
	return nil
}

type testAPI struct {
	baseURL   string
	client    *http.Client
	validator *fakeValidator
	sink      *recordingSink
	store     *fakeStore
	t         *testing.T
}

func validClaims(tenant string) *auth.ClaimSet {
	return &auth.ClaimSet{
		TenantID:   tenant,
		HospitalID: "h1",
		Role:       "biller",
		Username:   "jordan",
		Email:      "jordan@example.org",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "user-1",
		},
	}
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	validator := &fakeValidator{tokens: map[string]*auth.ClaimSet{
		"good-token": validClaims("t1"),
	}}
	sink := &recordingSink{}
	store := &fakeStore{byID: map[string]*claims.Claim{
		"c1": {ID: "c1", TenantID: "t1", HospitalID: "h1", Status: claims.StatusUploaded},
		"c2": {ID: "c2", TenantID: "t2", HospitalID: "h9", Status: claims.StatusProcessing},
	}}

	api := New(ReadyProbe{}, "test", validator, sink, store)
	api.rateBurst = 100
	api.ratePerSec = 100

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &testAPI{
		baseURL:   srv.URL,
		client:    srv.Client(),
		validator: validator,
		sink:      sink,
		store:     store,
		t:         t,
	}
}

func (c *testAPI) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealthzEnvelope(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodGet, "/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("expected success envelope: %v", body)
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["status"] != "ok" || data["service"] != "claimiq-api" {
		t.Fatalf("unexpected data: %v", body["data"])
	}
}

func TestReadyz(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodGet, "/readyz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnknownPathEnvelope(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodGet, "/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["success"] != false {
		t.Fatalf("expected error envelope: %v", body)
	}
	if rid, _ := body["request_id"].(string); rid == "" {
		t.Fatalf("expected request_id in error body: %v", body)
	}
}

func TestResponseCarriesRequestID(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodGet, "/healthz", nil, map[string]string{"X-Request-Id": "given-id"})
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-Id"); got != "given-id" {
		t.Fatalf("expected supplied request id echoed, got %q", got)
	}
}
