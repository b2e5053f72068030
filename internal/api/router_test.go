package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/greatway/greatway/internal/api/handler"
	"github.com/greatway/greatway/internal/core/service"
	"github.com/greatway/greatway/internal/infrastructure/db/sqlite"
	"github.com/greatway/greatway/internal/infrastructure/upstream"
)

const (
	adminUser     = "root"
	adminPassword = "root-password"
)

type recordedRequest struct {
	method string
	uri    string
	host   string
	header http.Header
	body   string
}

// upstreamRecorder is an in-process upstream that remembers what it received.
type upstreamRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (u *upstreamRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	u.mu.Lock()
	u.requests = append(u.requests, recordedRequest{
		method: r.Method,
		uri:    r.URL.RequestURI(),
		host:   r.Host,
		header: r.Header.Clone(),
		body:   string(b),
	})
	u.mu.Unlock()

	w.Header().Set("X-Upstream", "orders")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"order":42}`))
}

func (u *upstreamRecorder) calls() []recordedRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]recordedRequest(nil), u.requests...)
}

type gateway struct {
	e      *echo.Echo
	tokens *service.TokenService
}

func newGateway(t *testing.T, upstreamURL string) *gateway {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "users.db"), MaxConns: 4})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := zerolog.Nop()
	tokens := service.NewTokenService("test-secret", time.Hour)
	auth := service.NewAuthService(store, tokens, log)
	if _, err := auth.SeedAdmin(ctx, adminUser, adminPassword, nil); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	fwd, err := upstream.NewForwarder(upstreamURL, upstream.NewClient(upstream.ClientConfig{Timeout: 2 * time.Second}), log)
	if err != nil {
		t.Fatalf("forwarder: %v", err)
	}

	e := NewRouter(Deps{
		Auth:         auth,
		Tokens:       tokens,
		Forwarder:    fwd,
		HealthChecks: map[string]handler.PingFunc{"store": store.Ping},
		Version:      "test",
		Log:          log,
		Registry:     prometheus.NewRegistry(),
	})
	return &gateway{e: e, tokens: tokens}
}

func (g *gateway) do(method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, vv := range header {
		req.Header[k] = vv
	}
	rec := httptest.NewRecorder()
	g.e.ServeHTTP(rec, req)
	return rec
}

func (g *gateway) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := g.do(http.MethodPost, "/auth/login",
		`{"username":"`+username+`","password":"`+password+`"}`,
		http.Header{echo.HeaderContentType: {echo.MIMEApplicationJSON}})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login response %q: %v", rec.Body.String(), err)
	}
	return resp.Token
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected error envelope, got %q", rec.Body.String())
	}
	return resp.Error
}

func TestRouter_RegisterThenLogin(t *testing.T) {
	up := &upstreamRecorder{}
	srv := httptest.NewServer(up)
	defer srv.Close()
	g := newGateway(t, srv.URL)

	rec := g.do(http.MethodPost, "/auth/register", `{"username":"alice","password":"secret123"}`,
		http.Header{echo.HeaderContentType: {echo.MIMEApplicationJSON}})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	var user struct {
		ID       string   `json:"id"`
		Username string   `json:"username"`
		Roles    []string `json:"roles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("register response: %v", err)
	}
	if user.ID == "" || user.Username != "alice" {
		t.Fatalf("unexpected user %+v", user)
	}
	if len(user.Roles) != 1 || user.Roles[0] != "User" {
		t.Fatalf("expected default role User, got %v", user.Roles)
	}

	token := g.login(t, "alice", "secret123")
	claims, err := g.tokens.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("subject = %q", claims.Subject)
	}
}

func TestRouter_RegisterDuplicate(t *testing.T) {
	g := newGateway(t, "http://127.0.0.1:1")
	body := `{"username":"alice","password":"secret123"}`
	h := http.Header{echo.HeaderContentType: {echo.MIMEApplicationJSON}}

	if rec := g.do(http.MethodPost, "/auth/register", body, h); rec.Code != http.StatusOK {
		t.Fatalf("first register: %d", rec.Code)
	}
	rec := g.do(http.MethodPost, "/auth/register", body, h)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "user already exists" {
		t.Fatalf("error = %q", msg)
	}
}

func TestRouter_LoginWrongPassword(t *testing.T) {
	g := newGateway(t, "http://127.0.0.1:1")
	h := http.Header{echo.HeaderContentType: {echo.MIMEApplicationJSON}}

	wrong := g.do(http.MethodPost, "/auth/login", `{"username":"root","password":"nope-nope"}`, h)
	unknown := g.do(http.MethodPost, "/auth/login", `{"username":"ghost","password":"nope-nope"}`, h)

	for _, rec := range []*httptest.ResponseRecorder{wrong, unknown} {
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "$2") || strings.Contains(rec.Body.String(), "password") {
			t.Fatalf("response leaks detail: %s", rec.Body.String())
		}
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Fatalf("unknown user and wrong password must look the same: %q vs %q", wrong.Body.String(), unknown.Body.String())
	}
}

func TestRouter_ForwardsAdminRequest(t *testing.T) {
	up := &upstreamRecorder{}
	srv := httptest.NewServer(up)
	defer srv.Close()
	g := newGateway(t, srv.URL)

	token := g.login(t, adminUser, adminPassword)
	rec := g.do(http.MethodPut, "/orders/42?dry_run=1", `{"qty":3}`, http.Header{
		echo.HeaderAuthorization: {"Bearer " + token},
		echo.HeaderContentType:   {echo.MIMEApplicationJSON},
		"X-Trace":                {"abc"},
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected upstream status 202, got %d %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"order":42}` {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("X-Upstream") != "orders" {
		t.Fatalf("upstream headers not relayed")
	}

	calls := up.calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", len(calls))
	}
	got := calls[0]
	if got.method != http.MethodPut || got.uri != "/orders/42?dry_run=1" || got.body != `{"qty":3}` {
		t.Fatalf("unexpected upstream request %+v", got)
	}
	if got.header.Get("X-Trace") != "abc" || got.header.Get(echo.HeaderAuthorization) != "Bearer "+token {
		t.Fatalf("headers not forwarded: %v", got.header)
	}
	if got.host != strings.TrimPrefix(srv.URL, "http://") {
		t.Fatalf("upstream saw Host %q", got.host)
	}
}

func TestRouter_NonAdminIsForbidden(t *testing.T) {
	up := &upstreamRecorder{}
	srv := httptest.NewServer(up)
	defer srv.Close()
	g := newGateway(t, srv.URL)

	g.do(http.MethodPost, "/auth/register", `{"username":"alice","password":"secret123"}`,
		http.Header{echo.HeaderContentType: {echo.MIMEApplicationJSON}})
	token := g.login(t, "alice", "secret123")

	rec := g.do(http.MethodGet, "/orders/42", "", http.Header{echo.HeaderAuthorization: {"Bearer " + token}})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if len(up.calls()) != 0 {
		t.Fatalf("forbidden request reached the upstream")
	}
}

func TestRouter_MissingTokenNeverReachesUpstream(t *testing.T) {
	up := &upstreamRecorder{}
	srv := httptest.NewServer(up)
	defer srv.Close()
	g := newGateway(t, srv.URL)

	for _, target := range []string{"/", "/orders/42", "/admin/anything?x=1"} {
		rec := g.do(http.MethodGet, target, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", target, rec.Code)
		}
		if msg := decodeError(t, rec); msg != "unauthenticated" {
			t.Fatalf("%s: error = %q", target, msg)
		}
		if rec.Header().Get(echo.HeaderWWWAuthenticate) != "Bearer" {
			t.Fatalf("%s: missing WWW-Authenticate", target)
		}
	}
	if n := len(up.calls()); n != 0 {
		t.Fatalf("expected no upstream calls, got %d", n)
	}
}

func TestRouter_UnreachableUpstream(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	g := newGateway(t, "http://"+addr)
	token := g.login(t, adminUser, adminPassword)

	rec := g.do(http.MethodGet, "/orders/42", "", http.Header{echo.HeaderAuthorization: {"Bearer " + token}})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "upstream unreachable" {
		t.Fatalf("error = %q", msg)
	}
}

func TestRouter_PublicEndpoints(t *testing.T) {
	up := &upstreamRecorder{}
	srv := httptest.NewServer(up)
	defer srv.Close()
	g := newGateway(t, srv.URL)

	rec := g.do(http.MethodGet, "/version", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"version":"test"`) {
		t.Fatalf("version: %d %s", rec.Code, rec.Body.String())
	}
	if rec := g.do(http.MethodGet, "/_gateway/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	if rec := g.do(http.MethodGet, "/_gateway/health/ready", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("ready: %d %s", rec.Code, rec.Body.String())
	}
	if rec := g.do(http.MethodGet, MetricsPath, "", nil); rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	if len(up.calls()) != 0 {
		t.Fatalf("reserved paths must not be forwarded")
	}
}

func TestRouter_UpstreamHealthAndMetricsPathsAreForwarded(t *testing.T) {
	up := &upstreamRecorder{}
	srv := httptest.NewServer(up)
	defer srv.Close()
	g := newGateway(t, srv.URL)

	for _, target := range []string{"/health", "/health/ready", "/metrics", "/swagger/index.html"} {
		if rec := g.do(http.MethodGet, target, "", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: expected 401, got %d", target, rec.Code)
		}
	}

	token := g.login(t, adminUser, adminPassword)
	for _, target := range []string{"/health", "/metrics"} {
		rec := g.do(http.MethodGet, target, "", http.Header{echo.HeaderAuthorization: {"Bearer " + token}})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("%s: expected upstream status 202, got %d", target, rec.Code)
		}
	}
	calls := up.calls()
	if len(calls) != 2 || calls[0].uri != "/health" || calls[1].uri != "/metrics" {
		t.Fatalf("unexpected upstream calls %+v", calls)
	}
}

func TestRouter_RegisterMultibytePasswordOverBcryptLimit(t *testing.T) {
	g := newGateway(t, "http://127.0.0.1:1")

	// 40 runes, 80 bytes.
	body := `{"username":"alice","password":"` + strings.Repeat("é", 40) + `"}`
	rec := g.do(http.MethodPost, "/auth/register", body, http.Header{echo.HeaderContentType: {echo.MIMEApplicationJSON}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
}
