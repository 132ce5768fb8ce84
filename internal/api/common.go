package api

import (
	"net/http"

	"github.com/bjo163/wagate/internal/gateway"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
)

// ok renders the success envelope
func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// fail renders the error envelope. detail may be nil.
func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, map[string]interface{}{
		"success": false,
		"code":    code,
		"error":   message,
		"detail":  detail,
	})
}

// failFromError maps gateway error kinds onto HTTP responses
func failFromError(c echo.Context, err error) error {
	switch gateway.KindOf(err) {
	case gateway.KindValidation:
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case gateway.KindNotFound:
		return fail(c, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case gateway.KindNotConnected:
		return fail(c, http.StatusBadRequest, "INSTANCE_NOT_CONNECTED", err.Error(), nil)
	case gateway.KindLoggedOut:
		return fail(c, http.StatusConflict, "LOGGED_OUT", err.Error(), nil)
	case gateway.KindTransient:
		return fail(c, http.StatusGatewayTimeout, "PAIR_TIMEOUT", err.Error(), nil)
	case gateway.KindPersistence:
		return fail(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error(), nil)
	default:
		return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), nil)
	}
}

// parsePagination reads limit/offset query params with sane bounds
func parsePagination(c echo.Context) (limit, offset int) {
	limit = cast.ToInt(c.QueryParam("limit"))
	offset = cast.ToInt(c.QueryParam("offset"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
