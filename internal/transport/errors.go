package transport

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/marketplace"
	"storefront/internal/middleware"
	"storefront/internal/mutation"

	"go.uber.org/zap"
)

// respondWithDomainError maps core errors onto HTTP responses
func respondWithDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var validationErr *domain.ValidationError
	var networkErr *domain.NetworkError

	switch {
	case errors.As(err, &validationErr):
		logger.Debug("Request rejected", zap.Error(err))
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, validationErr.Error(), map[string]interface{}{
			"field":  validationErr.Field,
			"reason": validationErr.Reason,
		})
	case errors.Is(err, domain.ErrNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "not found")
	case errors.Is(err, marketplace.ErrUnavailable):
		logger.Warn("Marketplace unavailable", zap.Error(err))
		middleware.RespondWithError(w, http.StatusServiceUnavailable, marketplace.ErrUnavailable.Error())
	case errors.As(err, &networkErr):
		logger.Warn("Upstream request failed", zap.Error(err))
		message := networkErr.Message
		if message == "" {
			message = "upstream request failed"
		}
		middleware.RespondWithErrorDetails(w, http.StatusBadGateway, message, map[string]interface{}{
			"operation": networkErr.Op,
			"outcome":   string(mutation.Outcome(err)),
		})
	default:
		logger.Error("Request failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decode reads and validates a JSON body, writing the error response itself
func decode(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	return decodeBody(w, r, logger, v, false)
}

// decodeOptional is decode for endpoints whose body may be omitted
func decodeOptional(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	return decodeBody(w, r, logger, v, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}, optional bool) bool {
	err := middleware.DecodeAndValidate(r, v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, middleware.ErrEmptyBody):
		if optional {
			return true
		}
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return false
	}

	logger.Debug("Request validation failed", zap.Error(err))
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return false
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
	return false
}

func parseKind(raw string) (domain.CatalogKind, error) {
	kind := domain.CatalogKind(raw)
	if !kind.Valid() {
		return "", &domain.ValidationError{Field: "kind", Reason: "must be new or used"}
	}
	return kind, nil
}
