package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/example/driver-hiring/internal/auth"
	"github.com/example/driver-hiring/internal/mirror"
	"github.com/example/driver-hiring/internal/payments"
	"github.com/example/driver-hiring/internal/storage"
)

const maxRequestBodySize = 1 << 20

const (
	codeUnauthorized     = "unauthorized"
	codeForbidden        = "forbidden"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
	codeInvalidRequest   = "invalid_request"
	codeDBError          = "db_error"
	codePaymentError     = "payment_error"
	codeRealtimeError    = "realtime_error"
)

var errForbidden = errors.New("admin role required")

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// requestError marks a malformed request body or parameter.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// classify maps a handler error to its status and error code.
func classify(err error) (int, string) {
	var reqErr *requestError
	var payErr *payments.Error
	var mirErr *mirror.Error
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, codeInvalidRequest
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, codeUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.As(err, &payErr):
		return http.StatusInternalServerError, codePaymentError
	case errors.As(err, &mirErr):
		return http.StatusInternalServerError, codeRealtimeError
	default:
		return http.StatusInternalServerError, codeDBError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := errorBody{Error: code}
	if code != codeNotFound {
		body.Details = err.Error()
	}
	respondJSON(w, status, body)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes a single JSON object. An empty body leaves dst untouched.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest("invalid JSON body: %v", err)
	}
	if dec.More() {
		return badRequest("body must contain a single JSON object")
	}
	return nil
}
