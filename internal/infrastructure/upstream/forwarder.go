// Package upstream forwards authorized requests to the single configured
// upstream service.
//
// The request leg is buffered: the inbound body is read completely before the
// outbound request is sent, so large uploads are held in memory. The response
// leg is streamed back chunk by chunk. This asymmetry is intentional.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/greatway/greatway/internal/core/domain"
)

const chunkSize = 32 * 1024

// Forwarder implements ports.Forwarder.
type Forwarder struct {
	base      string
	client    *http.Client
	userAgent string
	log       zerolog.Logger
}

// NewForwarder validates baseURL and returns a Forwarder sending through client.
func NewForwarder(baseURL string, client *http.Client, log zerolog.Logger) (*Forwarder, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("upstream url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("upstream url %q is not an absolute http(s) URL", baseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("upstream url %q must not carry a query or fragment", baseURL)
	}

	return &Forwarder{
		base:      strings.TrimRight(baseURL, "/"),
		client:    client,
		userAgent: DefaultUserAgent,
		log:       log,
	}, nil
}

// TargetURL is the upstream base joined with the inbound path and query.
func (f *Forwarder) TargetURL(r *http.Request) string {
	return f.base + r.URL.RequestURI()
}

// Forward relays r upstream and copies the response to w. A transport failure
// before any byte is written returns an error wrapping
// domain.ErrUpstreamUnreachable. Errors after the status line was written can
// only be logged by the caller.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrInvalidRequest, err)
	}

	target := f.TargetURL(r)
	out, err := http.NewRequestWithContext(r.Context(), r.Method, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build upstream request: %w", err)
	}
	copyRequestHeaders(out.Header, r.Header)
	out.Header.Set("Connection", "keep-alive")
	if out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(out)
	if err != nil {
		if ctxErr := r.Context().Err(); ctxErr != nil {
			// The caller went away; there is nobody to answer.
			return fmt.Errorf("forward %s %s: %w", r.Method, target, ctxErr)
		}
		return fmt.Errorf("%w: %s %s: %v", domain.ErrUpstreamUnreachable, r.Method, target, err)
	}
	defer resp.Body.Close()

	dst := w.Header()
	for k, vv := range resp.Header {
		dst[k] = append([]string(nil), vv...)
	}
	if _, ok := resp.Header["Content-Type"]; !ok {
		// A nil entry stops net/http from sniffing a type on the first Write.
		dst["Content-Type"] = nil
	}
	w.WriteHeader(resp.StatusCode)

	if err := stream(w, resp.Body); err != nil {
		f.log.Warn().Err(err).
			Str("method", r.Method).
			Str("target", target).
			Int("status", resp.StatusCode).
			Msg("upstream response stream aborted")
		return err
	}
	return nil
}

// copyRequestHeaders copies every inbound header except Host.
func copyRequestHeaders(dst, src http.Header) {
	for k, vv := range src {
		if http.CanonicalHeaderKey(k) == "Host" {
			continue
		}
		dst[k] = append([]string(nil), vv...)
	}
}

// stream copies src to w, flushing after every chunk so the client sees
// data as soon as the upstream produces it.
func stream(w http.ResponseWriter, src io.Reader) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, chunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("write to client: %w", err)
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return fmt.Errorf("flush to client: %w", err)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if errors.Is(readErr, context.Canceled) {
				return fmt.Errorf("client disconnected: %w", readErr)
			}
			return fmt.Errorf("read upstream body: %w", readErr)
		}
	}
}
