package handlers

import "net/http"

// Health handles GET /health. It reports process liveness only and does not
// probe the calculadora backend.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
