package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// errorBody is the envelope for every error response.
type errorBody struct {
	Error string           `json:"error"`
	Code  domain.ErrorCode `json:"code"`
}

// writeError sends a JSON error with an explicit status and code.
func writeError(w http.ResponseWriter, status int, code domain.ErrorCode, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// writeDomainError classifies err against the taxonomy and sends the
// matching status and machine code.
func writeDomainError(w http.ResponseWriter, err error) {
	code := domain.Classify(err)
	writeError(w, statusFor(code), code, err.Error())
}

// statusFor maps a taxonomy code to its stable HTTP status.
func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeMarketClosed:
		return http.StatusConflict
	case domain.CodeInvalidLevels:
		return http.StatusBadRequest
	case domain.CodeInsufficientMargin, domain.CodePositionLimitExceeded,
		domain.CodeOrderRejected, domain.CodeOrderNotFilled:
		return http.StatusUnprocessableEntity
	case domain.CodeMarketHalted:
		return http.StatusServiceUnavailable
	case domain.CodePriceUnavailable, domain.CodeLedgerUnavailable:
		return http.StatusBadGateway
	case domain.CodeCloseFailed:
		return http.StatusUnprocessableEntity
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// queryInt parses an integer query parameter, returning def when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
