package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestLogger logs one line per request once the handler chain returns.
// Errors are handed to the echo error handler first so the logged status is
// the one the client saw.
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			ev := log.Info()
			if res.Status >= 500 {
				ev = log.Warn()
			}
			ev.Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Int64("bytes_out", res.Size).
				Float64("latency_ms", float64(time.Since(start).Microseconds())/1000).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			// Already rendered above.
			return nil
		}
	}
}
