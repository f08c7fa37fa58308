package transport

import (
	"errors"
	"net/http"

	"jewel-store/internal/domain"
	"jewel-store/internal/middleware"
	"jewel-store/internal/repository"
	"jewel-store/internal/service"

	"go.uber.org/zap"
)

// statusFor maps service and domain errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCategoryNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownDimension),
		errors.Is(err, domain.ErrIncompleteSelection),
		errors.Is(err, domain.ErrInvalidOptionLabel),
		errors.Is(err, domain.ErrInvalidPricing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidWebhook):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrCategoryAlreadyExists),
		errors.Is(err, repository.ErrOrderAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPersistenceFailure):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrPaymentProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError writes the error envelope for err. Client errors carry
// the error text; server errors are logged and answered with fallback.
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(fallback, zap.Error(err), zap.Int("status", status))
		middleware.RespondWithError(w, status, fallback)
		return
	}
	logger.Debug("Request rejected", zap.Error(err), zap.Int("status", status))
	middleware.RespondWithError(w, status, err.Error())
}
