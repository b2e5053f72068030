package handler

// errorResponse documents the envelope rendered by the API error handler on
// every 4xx/5xx response.
type errorResponse struct {
	Error string `json:"error" example:"unauthenticated"`
}
