package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/greatway/greatway/internal/api/metrics"
	"github.com/greatway/greatway/internal/core/domain"
	"github.com/greatway/greatway/internal/core/ports"
)

// ProxyHandler hands every authorized catch-all request to the forwarder.
type ProxyHandler struct {
	forwarder ports.Forwarder
	log       zerolog.Logger
}

func NewProxyHandler(forwarder ports.Forwarder, log zerolog.Logger) *ProxyHandler {
	return &ProxyHandler{forwarder: forwarder, log: log}
}

// Forward relays the request upstream. The upstream status, headers and body
// are returned unchanged.
//
// @Summary      Forward to upstream
// @Description  Any path not reserved by the gateway is relayed to the configured upstream. Requires the Admin role.
// @Tags         proxy
// @Security     BearerAuth
// @Success      200  "upstream response"
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /{path} [get]
func (h *ProxyHandler) Forward(c echo.Context) error {
	req := c.Request()
	start := time.Now()

	h.log.Debug().
		Str("method", req.Method).
		Str("uri", req.RequestURI).
		Str("subject", subjectOf(c)).
		Msg("forwarding")

	err := h.forwarder.Forward(c.Response(), req)
	metrics.UpstreamRequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

	if errors.Is(err, context.Canceled) && !c.Response().Committed {
		h.log.Debug().Str("uri", req.RequestURI).Msg("client went away before the upstream answered")
		return nil
	}
	if err != nil && !c.Response().Committed {
		if errors.Is(err, domain.ErrUpstreamUnreachable) {
			metrics.UpstreamErrorsTotal.Inc()
		}
		return err
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(req.Method, strconv.Itoa(c.Response().Status)).Inc()
	if err != nil {
		// Status line already sent; the client sees a truncated body.
		h.log.Warn().Err(err).Str("uri", req.RequestURI).Msg("upstream response interrupted")
	}
	return nil
}
