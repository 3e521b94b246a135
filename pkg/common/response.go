package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"usdtinr.com/pkg/logger"
	"usdtinr.com/pkg/xerr"
)

// 定义http返回格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:    xerr.OK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// FailFromErr 错误码 -> HTTP 状态码
// 对外只回 code + message，内部原因只进日志；服务端错误一律不透出细节
func FailFromErr(c *gin.Context, err error) {
	code := xerr.CodeOf(err)
	httpStatus, msg := mapCodeToHTTP(code, err)

	fields := []zap.Field{
		zap.String("request_id", RequestIDFromGin(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("biz_code", code),
		zap.Error(err),
	}
	if httpStatus >= http.StatusInternalServerError {
		logger.Error(c, "http error", fields...)
	} else {
		logger.Warn(c, "http error", fields...)
	}
	Fail(c, httpStatus, code, msg)
}

func mapCodeToHTTP(code int, err error) (int, string) {
	switch code {
	case xerr.RequestParamsError:
		return http.StatusBadRequest, publicMsg(err, code)
	case xerr.RecordNotFound:
		return http.StatusNotFound, publicMsg(err, code)
	case xerr.InsufficientFunds:
		return http.StatusUnprocessableEntity, publicMsg(err, code)
	case xerr.ExternalServiceError:
		return http.StatusServiceUnavailable, xerr.MapErrMsg(code)
	case xerr.IntegrityViolation:
		return http.StatusInternalServerError, xerr.MapErrMsg(code)
	default:
		return http.StatusInternalServerError, xerr.MapErrMsg(xerr.ServerCommonError)
	}
}

// publicMsg 客户端错误回业务给出的文案
func publicMsg(err error, code int) string {
	var ce *xerr.CodeError
	if errors.As(err, &ce) && ce.Msg != "" {
		return ce.Msg
	}
	return xerr.MapErrMsg(code)
}
