// Package httpx 统一的 HTTP 响应格式与错误处理
package httpx

import (
	"errors"
	"net/http"

	"github.com/KOMKZ/go-yogan-consul/errcode"
	"github.com/KOMKZ/go-yogan-consul/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应格式
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// OkJson 成功响应
func OkJson(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Msg: "success", Data: data})
}

// HandleError 按错误类型返回状态码
// LayeredError 返回其自身的 HTTP 状态码、错误码和消息；其余错误一律 500
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	ctx := c.Request.Context()

	var le *errcode.LayeredError
	if errors.As(err, &le) {
		if le.HTTPStatus() >= http.StatusInternalServerError {
			logger.GetLogger("httpx").ErrorCtx(ctx, "request failed",
				zap.Int("error_code", le.Code()),
				zap.String("error_chain", le.String()))
		}
		c.AbortWithStatusJSON(le.HTTPStatus(), Response{
			Code: le.Code(),
			Msg:  err.Error(),
			Data: le.Data(),
		})
		return
	}

	logger.GetLogger("httpx").ErrorCtx(ctx, "request failed", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		Code: http.StatusInternalServerError,
		Msg:  err.Error(),
	})
}

// NoRouteHandler 404 统一响应
func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code: http.StatusNotFound,
			Msg:  "route not found: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// NoMethodHandler 405 统一响应
func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, Response{
			Code: http.StatusMethodNotAllowed,
			Msg:  "method not allowed: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}
