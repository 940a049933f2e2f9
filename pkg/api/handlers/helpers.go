package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// maxBodyBytes bounds request bodies; the largest is a chat message.
const maxBodyBytes = 64 << 10

// decodeJSONBody decodes the request body into v. On failure it writes a
// 400 problem and returns false.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF):
		BadRequest(w, "Request body is empty")
	case errors.As(err, &tooLarge):
		WriteProblem(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "Request body exceeds 64KiB")
	default:
		BadRequest(w, "Invalid request body: "+err.Error())
	}
	return false
}

// requireEnabled writes 503 and returns false while the plugin is not
// enabled.
func requireEnabled(w http.ResponseWriter, rt Runtime) bool {
	state := rt.State()
	if state == "enabled" {
		return true
	}
	ServiceUnavailable(w, "plugin is "+state)
	return false
}
