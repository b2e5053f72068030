package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/greatway/greatway/docs"
	"github.com/greatway/greatway/internal/api/handler"
	"github.com/greatway/greatway/internal/api/middleware"
	"github.com/greatway/greatway/internal/core/domain"
	"github.com/greatway/greatway/internal/core/ports"
)

// OpsPrefix groups the gateway's own health, metrics and docs endpoints.
const OpsPrefix = "/_gateway"

// MetricsPath is where Prometheus scrapes the gateway.
const MetricsPath = OpsPrefix + "/metrics"

// Deps are the collaborators the router wires into handlers. They are built
// once in main and shared by every request.
type Deps struct {
	Auth      ports.AuthService
	Tokens    ports.TokenVerifier
	Forwarder ports.Forwarder
	// HealthChecks are run by the readiness probe, keyed by dependency name.
	HealthChecks map[string]handler.PingFunc
	Version      string
	Log          zerolog.Logger
	// Registry receives the HTTP metrics and backs MetricsPath. Nil means the
	// Prometheus default registry.
	Registry *prometheus.Registry
}

// NewRouter builds the Echo instance. Routes registered here are served by
// the gateway itself; every other path goes through authentication, the
// Admin guard and the forwarder.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Registry != nil {
		registerer, gatherer = d.Registry, d.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "greatway",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == MetricsPath
		},
	}))
	e.Use(middleware.RequestLogger(d.Log))

	// --- Public routes ---
	authHandler := handler.NewAuthHandler(d.Auth)
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	e.GET("/version", handler.NewVersionHandler(d.Version).Version)

	// Operational endpoints live under their own prefix so they do not
	// shadow upstream paths such as /health or /metrics.
	ops := e.Group(OpsPrefix)
	healthHandler := handler.NewHealthHandler(d.HealthChecks)
	ops.GET("/health", healthHandler.Liveness)
	ops.GET("/health/ready", healthHandler.Readiness)
	ops.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	ops.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Everything else is proxied ---
	proxy := handler.NewProxyHandler(d.Forwarder, d.Log)
	e.Any("/*", proxy.Forward,
		middleware.Authenticate(d.Tokens, d.Log),
		middleware.RequireRoles(domain.RoleAdmin),
	)

	return e
}
