package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

type ErrorResponse struct {
	Error   string                    `json:"error"`
	Message string                    `json:"message"`
	Fields  []usecase.ValidationError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeUseCaseError maps the use case error taxonomy onto HTTP statuses.
func writeUseCaseError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		fields    usecase.ValidationErrors
		field     usecase.ValidationError
		domain    *usecase.DomainError
		tech      *usecase.TechnicalError
		account   *usecase.AccountUnavailableError
		ambiguous *usecase.AmbiguousAccountError
		mismatch  *usecase.ReconciliationMismatch
		conflict  *usecase.ConcurrencyConflict
		exhausted *usecase.DispatchExhaustedError
		transport *usecase.DispatchTransportError
	)

	switch {
	case errors.As(err, &fields):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR", Message: err.Error(), Fields: fields})
	case errors.As(err, &field):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR", Message: err.Error(), Fields: []usecase.ValidationError{field}})
	case errors.As(err, &domain):
		writeErrorResponse(w, domainStatus(domain.Code), domain.Code, domain.Message)
	case errors.As(err, &ambiguous):
		writeErrorResponse(w, http.StatusConflict, "AMBIGUOUS_ACCOUNT", err.Error())
	case errors.As(err, &account):
		writeErrorResponse(w, http.StatusConflict, "ACCOUNT_UNAVAILABLE", err.Error())
	case errors.Is(err, usecase.ErrLeaseHeld):
		writeErrorResponse(w, http.StatusConflict, "LEASE_HELD", err.Error())
	case errors.As(err, &mismatch):
		writeErrorResponse(w, http.StatusUnprocessableEntity, "RECONCILIATION_MISMATCH", err.Error())
	case errors.As(err, &conflict):
		writeErrorResponse(w, http.StatusConflict, "CONCURRENCY_CONFLICT", err.Error())
	case errors.As(err, &exhausted):
		writeErrorResponse(w, http.StatusBadGateway, "DISPATCH_EXHAUSTED", err.Error())
	case errors.As(err, &transport):
		writeErrorResponse(w, http.StatusBadGateway, "DISPATCH_FAILED", err.Error())
	case errors.As(err, &tech):
		logger.Error("request failed", zap.String("code", tech.Code), zap.Error(err))
		writeErrorResponse(w, http.StatusInternalServerError, tech.Code, tech.Message)
	default:
		logger.Error("request failed", zap.Error(err))
		writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func domainStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "_NOT_FOUND"):
		return http.StatusNotFound
	case code == "VALIDATION_ERROR":
		return http.StatusBadRequest
	}
	return http.StatusConflict
}

// decodeOptional decodes a JSON body into dst; an empty body is fine.
func decodeOptional(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
