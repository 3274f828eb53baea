package httppresentation

import (
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/stock-ledger/internal/application"
	"github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/Zhima-Mochi/stock-ledger/internal/domain/token"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability/logctx"
	"github.com/gin-gonic/gin"
)

// response is the envelope shared by every API route. Business rejections are
// 200 with success=false; only malformed input and system failures change the status.
type response struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, response{Success: true, Code: "OK", Data: data})
}

func rejected(c *gin.Context, code, message string, data any) {
	c.JSON(http.StatusOK, response{Success: false, Code: code, Message: message, Data: data})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response{Success: false, Code: "INVALID_ARGUMENT", Message: err.Error()})
}

// fail maps an error returned by a service to a response.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, application.ErrValidation),
		errors.Is(err, token.ErrInvalidKey),
		errors.Is(err, stock.ErrInvalidQuantity):
		badRequest(c, err)
	default:
		logctx.FromOr(c.Request.Context(), observability.NopLogger()).Error("http_request_failed",
			observability.F("route", c.FullPath()),
			observability.F("error", err),
		)
		c.JSON(http.StatusInternalServerError, response{Success: false, Code: "SYSTEM_ERROR", Message: "system error"})
	}
}
