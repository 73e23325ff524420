package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

// appError carries the application code written into the failure envelope.
type appError struct {
	code uint32
	msg  string
}

func (e *appError) Error() string { return e.msg }

func (e *appError) Code() uint32 { return e.code }

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error writes {code, message} with HTTP 200. Clients branch on code, 0 being
// success.
func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, http.StatusOK, &appError{code: uint32(code), msg: message})
}

// Abort writes the failure envelope and stops the handler chain.
func Abort(c *gin.Context, code int, message string) {
	Error(c, code, message)
	c.Abort()
}
