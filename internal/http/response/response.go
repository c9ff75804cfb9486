package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	"github.com/yungbote/forfeit-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr picks the status from err. Unclassified errors are reported as a
// generic 500 so internals never reach the caller.
func RespondErr(c *gin.Context, err error) {
	var ae *apierr.Error
	switch {
	case errors.As(err, &ae) && ae.Status != 0:
		RespondError(c, ae.Status, ae.Code, err)
	case errors.Is(err, db.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", errors.New("not found"))
	default:
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, "internal_error", errors.New("internal error"))
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
