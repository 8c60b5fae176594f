package receiver

import (
	"encoding/json"
	"net/http"
)

// apiError is a terminal request-path failure: a fixed status code and a
// tenant-safe message. Messages never carry key material, hashes, stack
// traces or store error strings.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string {
	return e.msg
}

func unauthorized(msg string) *apiError {
	return &apiError{status: http.StatusUnauthorized, msg: msg}
}

func badRequest(msg string) *apiError {
	return &apiError{status: http.StatusBadRequest, msg: msg}
}

func payloadTooLarge(msg string) *apiError {
	return &apiError{status: http.StatusRequestEntityTooLarge, msg: msg}
}

func unsupportedMediaType(msg string) *apiError {
	return &apiError{status: http.StatusUnsupportedMediaType, msg: msg}
}

func serviceUnavailable(msg string) *apiError {
	return &apiError{status: http.StatusServiceUnavailable, msg: msg}
}

// pipelineError pairs the terminal apiError with the counter label of the
// stage that failed.
type pipelineError struct {
	api  *apiError
	kind string
}

type errorBody struct {
	Error string `json:"error"`
}

func writeAPIError(w http.ResponseWriter, e *apiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: e.msg})
}
