package xerr

import (
	"errors"
	"fmt"
)

// 常用错误码定义
const (
	OK                 = 200
	ServerCommonError  = 500
	RequestParamsError = 400 // 入参非法，变更开始前就拒绝
	DbError            = 501
	RecordNotFound     = 404

	// 资金相关
	InsufficientFunds    = 1001 // 可用余额不足，未做任何变更
	IntegrityViolation   = 1002 // 事后不变量校验失败，整个事务已回滚
	ExternalServiceError = 1003 // 链上索引服务不可用/超时，可重试
)

type CodeError struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	cause error
}

func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("ErrCode:%d, Msg:%s, Cause:%v", e.Code, e.Msg, e.cause)
	}
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func (e *CodeError) Unwrap() error { return e.cause }

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func Newf(code int, format string, args ...any) error {
	return &CodeError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// Wrap 保留底层错误，方便 errors.Is 判断 (context.DeadlineExceeded 等)
func Wrap(err error, code int, msg string) error {
	if err == nil {
		return nil
	}
	return &CodeError{Code: code, Msg: msg, cause: err}
}

// CodeOf 取错误链上第一个 CodeError 的错误码，没有则视为服务端错误
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ServerCommonError
}

func Is(err error, code int) bool {
	return err != nil && CodeOf(err) == code
}

func MapErrMsg(code int) string {
	switch code {
	case ServerCommonError:
		return "服务器开小差了"
	case RequestParamsError:
		return "参数错误"
	case DbError:
		return "数据库繁忙"
	case RecordNotFound:
		return "记录不存在"
	case InsufficientFunds:
		return "可用余额不足"
	case IntegrityViolation:
		return "internal error"
	case ExternalServiceError:
		return "链上服务繁忙，请稍后重试"
	default:
		return "未知错误"
	}
}
