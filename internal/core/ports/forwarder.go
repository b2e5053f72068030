package ports

import (
	"net/http"
)

// Forwarder relays an authorized request to the upstream and writes the
// upstream response to w.
type Forwarder interface {
	Forward(w http.ResponseWriter, r *http.Request) error
}
