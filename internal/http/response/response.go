package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
)

type APIError struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Type    string         `json:"type,omitempty"`
	Details map[string]any `json:"details,omitempty"`
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

// RespondAPIError picks the status from the error kind and carries the tagged
// code and details through to the body.
func RespondAPIError(c *gin.Context, err error) {
	status := apierr.HTTPStatus(err)
	body := APIError{Message: "unknown error", Type: string(apierr.KindOf(err))}
	if err != nil {
		body.Message = err.Error()
	}
	if e, ok := apierr.As(err); ok {
		body.Code = e.Code
		body.Details = e.Details
	}
	c.JSON(status, ErrorEnvelope{Error: body})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
