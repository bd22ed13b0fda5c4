package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/hvcrate-core/internal/bridges/hv"
	"github.com/nerrad567/hvcrate-core/internal/param"
	"github.com/nerrad567/hvcrate-core/internal/registry"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Values of Error.Code.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeValidation   = "validation_error"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeDevice       = "device_error"
	ErrCodeUnavailable  = "unavailable"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// routerErrors maps the sentinel errors of the router, bridge and codec
// packages to a status and code. The first match wins.
var routerErrors = []struct {
	target error
	status int
	code   string
}{
	{hv.ErrMissingRef, http.StatusNotFound, ErrCodeNotFound},
	{registry.ErrUnknownToken, http.StatusNotFound, ErrCodeNotFound},
	{registry.ErrUnknownRecord, http.StatusNotFound, ErrCodeNotFound},
	{hv.ErrNotWritable, http.StatusConflict, ErrCodeConflict},
	{hv.ErrNotReadable, http.StatusConflict, ErrCodeConflict},
	{param.ErrInvalidValue, http.StatusBadRequest, ErrCodeValidation},
	{hv.ErrInvalidValue, http.StatusBadRequest, ErrCodeValidation},
	{param.ErrDeviceAccess, http.StatusBadGateway, ErrCodeDevice},
}

// writeRouterError answers with the mapping for err, or 500.
func writeRouterError(w http.ResponseWriter, err error) {
	for _, m := range routerErrors {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	writeInternalError(w, err.Error())
}
