package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 响应业务码，0 表示成功，非 0 映射到固定的 HTTP 状态段
const (
	CodeOK           = 0
	CodeInvalidParam = 1001
	CodeNotFound     = 1002
	CodeRateLimited  = 1003
	CodeInternal     = 1004
)

// Result 统一响应信封
type Result struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Result{Code: CodeOK, Message: "success", Data: data})
}

func fail(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, Result{Code: code, Message: message})
}

func failWithData(c *gin.Context, httpStatus, code int, message string, data any) {
	c.JSON(httpStatus, Result{Code: code, Message: message, Data: data})
}
