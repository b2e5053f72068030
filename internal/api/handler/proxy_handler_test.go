package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/greatway/greatway/internal/core/domain"
)

type stubForwarder struct {
	forwardFn func(w http.ResponseWriter, r *http.Request) error
}

func (s *stubForwarder) Forward(w http.ResponseWriter, r *http.Request) error {
	return s.forwardFn(w, r)
}

func TestProxyHandler_RelaysResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/things", nil), rec)

	fwd := &stubForwarder{forwardFn: func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
		return nil
	}}

	if err := NewProxyHandler(fwd, zerolog.Nop()).Forward(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusAccepted || rec.Body.String() != "ok" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestProxyHandler_UnreachableIsReturned(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/things", nil), httptest.NewRecorder())

	fwd := &stubForwarder{forwardFn: func(w http.ResponseWriter, r *http.Request) error {
		return fmt.Errorf("%w: dial tcp: refused", domain.ErrUpstreamUnreachable)
	}}

	if err := NewProxyHandler(fwd, zerolog.Nop()).Forward(c); !errors.Is(err, domain.ErrUpstreamUnreachable) {
		t.Fatalf("expected ErrUpstreamUnreachable, got %v", err)
	}
}

func TestProxyHandler_ErrorAfterCommitIsSwallowed(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/things", nil), rec)

	fwd := &stubForwarder{forwardFn: func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusOK)
		return errors.New("upstream reset mid-body")
	}}

	if err := NewProxyHandler(fwd, zerolog.Nop()).Forward(c); err != nil {
		t.Fatalf("nothing can be rendered after the status line, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected upstream status to stand, got %d", rec.Code)
	}
}
