package responses

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the error envelope returned to clients.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HandleError aborts with a 500 and the given message.
func HandleError(c *gin.Context, err error, message string) {
	HandleErrorWithStatus(c, http.StatusInternalServerError, err, message)
}

// HandleErrorWithStatus aborts with the given status and message. The
// underlying error goes to the gin error list for the logging middleware,
// never to the client.
func HandleErrorWithStatus(c *gin.Context, statusCode int, err error, message string) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error:     message,
		Message:   message,
		RequestID: c.GetString("X-Request-Id"),
	})
}
