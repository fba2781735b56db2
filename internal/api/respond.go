package api

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

// errorResponse — единый формат ошибок внешнего API.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// httpStatusFor сопоставляет машинный код ошибки HTTP-статусу.
func httpStatusFor(code string) int {
	switch code {
	case domain.CodeUnauthorized:
		return http.StatusForbidden
	case domain.CodeOrderNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidState, domain.CodeStatusConflict:
		return http.StatusConflict
	case domain.CodeAddressResolution, domain.CodeNoShippingQuotes, domain.CodeBookingFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)
	message := err.Error()
	// Внутренние детали наружу не отдаём.
	if code == domain.CodeInternal {
		message = "internal error"
	}
	writeJSON(w, httpStatusFor(code), errorResponse{Error: errorBody{Code: code, Message: message}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "BAD_REQUEST", Message: message}})
}
