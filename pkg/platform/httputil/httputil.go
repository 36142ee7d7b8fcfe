// Package httputil centralizes JSON response and error rendering for the
// transport layer.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "presentia/pkg/domain-errors"
)

// WriteJSON renders v with the given status. Encoding failures are silently
// dropped; the status line has already been written.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into a JSON error response. Internal
// and integrity faults omit the description so internals never leak to
// callers; everything else includes the domain message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal && code != dErrors.CodeIntegrity {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body["error_description"] = de.Message
		} else {
			body["error_description"] = err.Error()
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}
