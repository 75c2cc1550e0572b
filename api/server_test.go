package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stockdeck/stockdeck/internal/auth"
	"github.com/stockdeck/stockdeck/internal/config"
	"github.com/stockdeck/stockdeck/internal/market"
	"github.com/stockdeck/stockdeck/internal/newsfeed"
)

// newTestServer builds a server with offline providers: the news chain
// has no credentials so every refresh lands on sample data, and market
// requests go to the supplied upstream (or an unreachable default).
func newTestServer(t *testing.T, marketURL string) *Server {
	t.Helper()

	store, err := auth.OpenStore(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{}
	cfg.News.WireLimit = 20
	cfg.Market.HistoryDays = 90

	opts := []market.Option{}
	if marketURL != "" {
		opts = append(opts, market.WithBaseURL(marketURL))
	}

	srv := &Server{
		cfg: cfg,
		engine: newsfeed.NewEngine([]newsfeed.Provider{
			newsfeed.NewAlphaVantageClient(""),
			newsfeed.NewNewsAPIClient(""),
		}, newsfeed.NewSampleSource()),
		market:  market.NewClient(opts...),
		auth:    auth.NewService(store, []byte("test-secret")),
		serveUI: false,
	}
	srv.router = srv.buildRouter()
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any, token string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	var resp APIResponse
	if strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
		}
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, "")

	rec, resp := doJSON(t, srv, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if !resp.Success {
		t.Fatalf("expected success, got: %s", resp.Error)
	}
}

func TestNewsRefreshFallsBackToSamples(t *testing.T) {
	srv := newTestServer(t, "")

	rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/news/refresh", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}

	data, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	var state newsfeed.State
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}

	if state.Phase != "degraded" {
		t.Fatalf("phase: %q", state.Phase)
	}
	if state.ErrorMessage != newsfeed.DegradedMessage {
		t.Fatalf("error message: %q", state.ErrorMessage)
	}
	if len(state.Items) == 0 {
		t.Fatal("expected sample items")
	}
}

func TestNewsCategoryValidation(t *testing.T) {
	srv := newTestServer(t, "")

	rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/news/category",
		CategoryRequest{Category: "astrology"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
	if resp.Success {
		t.Fatal("expected failure envelope")
	}
}

func TestQuoteEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteResponse":{"result":[{
			"symbol":"AAPL","longName":"Apple Inc.",
			"regularMarketPrice":190.5,"regularMarketChange":1.5,
			"regularMarketChangePercent":0.79,"regularMarketTime":1700000000
		}],"error":null}}`)
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/quote/aapl", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d\nbody: %s", rec.Code, rec.Body.String())
	}

	quote, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data shape: %T", resp.Data)
	}
	if quote["symbol"] != "AAPL" {
		t.Fatalf("symbol: %v", quote["symbol"])
	}
	if quote["name"] != "Apple Inc." {
		t.Fatalf("name: %v", quote["name"])
	}
}

func TestQuoteEndpointUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/quote/AAPL", nil, "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status: %d", rec.Code)
	}
	if resp.Success {
		t.Fatal("expected failure envelope")
	}
}

func TestHistoryRejectsBadDays(t *testing.T) {
	srv := newTestServer(t, "")

	rec, _ := doJSON(t, srv, http.MethodGet, "/api/v1/history/AAPL?days=zero", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestSignupLoginMe(t *testing.T) {
	srv := newTestServer(t, "")

	// Signup issues a session.
	rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/auth/signup",
		SignupRequest{Email: "frank@example.com", Password: "password123"}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status: %d, error: %s", rec.Code, resp.Error)
	}

	var session SessionResponse
	data, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(data, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Token == "" {
		t.Fatal("no token issued")
	}
	if session.User.Email != "frank@example.com" {
		t.Fatalf("email: %q", session.User.Email)
	}

	// The token authenticates /auth/me.
	rec, resp = doJSON(t, srv, http.MethodGet, "/api/v1/auth/me", nil, session.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status: %d, error: %s", rec.Code, resp.Error)
	}

	// Without a token the endpoint rejects.
	rec, _ = doJSON(t, srv, http.MethodGet, "/api/v1/auth/me", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status: %d", rec.Code)
	}

	// Login with the created credentials.
	rec, resp = doJSON(t, srv, http.MethodPost, "/api/v1/auth/login",
		LoginRequest{Email: "FRANK@example.com", Password: "password123"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status: %d, error: %s", rec.Code, resp.Error)
	}
}

func TestSignupValidationErrors(t *testing.T) {
	srv := newTestServer(t, "")

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/auth/signup",
		SignupRequest{Email: "not-an-email", Password: "password123"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad email status: %d", rec.Code)
	}

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/v1/auth/signup",
		SignupRequest{Email: "gina@example.com", Password: "short"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("weak password status: %d", rec.Code)
	}

	doJSON(t, srv, http.MethodPost, "/api/v1/auth/signup",
		SignupRequest{Email: "gina@example.com", Password: "password123"}, "")
	rec, _ = doJSON(t, srv, http.MethodPost, "/api/v1/auth/signup",
		SignupRequest{Email: "gina@example.com", Password: "password456"}, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status: %d", rec.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv := newTestServer(t, "")

	doJSON(t, srv, http.MethodPost, "/api/v1/auth/signup",
		SignupRequest{Email: "hank@example.com", Password: "password123"}, "")

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login",
		LoginRequest{Email: "hank@example.com", Password: "wrong-password"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestAuthCookieFallback(t *testing.T) {
	srv := newTestServer(t, "")

	token, err := srv.auth.IssueToken(1)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	// User 1 does not exist, but the middleware should accept the cookie
	// and the handler report the stale account.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusUnauthorized || resp.Error != "account no longer exists" {
		t.Fatalf("status %d, error %q", rec.Code, resp.Error)
	}
}

func TestChatUnavailableWithoutBackend(t *testing.T) {
	srv := newTestServer(t, "")

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/chat",
		ChatRequest{Message: "hello"}, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("chat status: %d", rec.Code)
	}

	rec2 := httptest.NewRecorder()
	srv.router.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/api/v1/ws/chat", nil))
	if rec2.Code != http.StatusServiceUnavailable {
		t.Fatalf("ws status: %d", rec2.Code)
	}
}

func TestWireDisabled(t *testing.T) {
	srv := newTestServer(t, "")

	rec, _ := doJSON(t, srv, http.MethodGet, "/api/v1/wire", nil, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestChartReturnsSVG(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{
			"timestamp":[1700000000,1700086400,1700172800],
			"indicators":{"quote":[{
				"open":[1,2,3],"high":[1,2,3],"low":[1,2,3],
				"close":[1.0,2.0,3.0],"volume":[10,20,30]
			}]}
		}],"error":null}}`)
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chart/AAPL", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d\nbody: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Fatalf("content type: %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<svg") {
		t.Fatal("body is not SVG")
	}
}
