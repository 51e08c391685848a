package handlers

import (
	"net/http"

	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

// domainErrorStatus maps DomainError codes to HTTP response statuses
var domainErrorStatus = map[string]int{
	services.ErrCodeValidation:             http.StatusBadRequest,
	services.ErrCodeInvalidStateTransition: http.StatusUnprocessableEntity,
	services.ErrCodeSystemOnlyField:        http.StatusForbidden,
	services.ErrCodeRegionImmutable:        http.StatusForbidden,
	services.ErrCodeConcurrencyConflict:    http.StatusConflict,
	services.ErrCodeNoEligibleDCA:          http.StatusUnprocessableEntity,
	services.ErrCodeNoCapacity:             http.StatusUnprocessableEntity,
	services.ErrCodeForbidden:              http.StatusForbidden,
	services.ErrCodeNotFound:               http.StatusNotFound,
}

// respondError writes a DomainError as its mapped status, everything
// else as a generic 500 without leaking internals.
func respondError(c echo.Context, err error) error {
	if de, ok := services.AsDomainError(err); ok {
		status, found := domainErrorStatus[de.Code]
		if !found {
			status = http.StatusBadRequest
		}
		return c.JSON(status, map[string]interface{}{"error": de})
	}

	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]string{
			"code":    "INTERNAL_ERROR",
			"message": "An unexpected error occurred",
		},
	})
}
