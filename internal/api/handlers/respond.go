// Package handlers implements the HTTP API handlers.
package handlers

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes a JSON response with status code.
func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeDataMissing answers a read for a result that has never been
// computed. The HTTP layer succeeded, so the status is 200; the body
// says the pipeline has no data yet.
func writeDataMissing(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"overall_status": "data_missing",
		"detail":         detail,
	})
}
