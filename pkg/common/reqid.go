package common

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"usdtinr.com/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-Id"
	CtxKeyRequestID = logger.RequestIdKey

	maxRequestIDLen = 64
)

// RequestID 调用方带了合法的 id 就沿用，否则生成
// 外部传入的值会进日志和响应头，只接受 [0-9A-Za-z._:-]
func RequestID(header string) string {
	if validRequestID(header) {
		return header
	}
	return uuid.NewString()
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

func RequestIDFromGin(c *gin.Context) string {
	if v, ok := c.Get(CtxKeyRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// RequestIDFromContext service 层拿不到 gin.Context 时用
func RequestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(CtxKeyRequestID).(string)
	return s
}
