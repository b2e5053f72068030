package upstream

import (
	"net"
	"net/http"
	"time"
)

const (
	DefaultUserAgent           = "greatway/1.0"
	defaultTimeout             = 30 * time.Second
	defaultIdleConnTimeout     = 90 * time.Second
	defaultMaxIdleConnsPerHost = 100
)

// ClientConfig tunes the shared outbound client. Zero values take defaults.
type ClientConfig struct {
	Timeout             time.Duration
	IdleConnTimeout     time.Duration
	MaxIdleConnsPerHost int
}

// NewClient builds the single pooled client used for every forwarded request.
// It must be created once at startup and shared; it is safe for concurrent use.
func NewClient(cfg ClientConfig) *http.Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = defaultIdleConnTimeout
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConnsPerHost,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		// Bodies are relayed byte for byte.
		DisableCompression: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		// Redirects belong to the caller, not the gateway.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
