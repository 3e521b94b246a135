package xerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil 视为成功", nil, OK},
		{"普通错误视为服务端错误", errors.New("boom"), ServerCommonError},
		{"直接的 CodeError", New(InsufficientFunds, "余额不足"), InsufficientFunds},
		{"被 fmt 包装过", fmt.Errorf("lock: %w", NewErrCode(RecordNotFound)), RecordNotFound},
		{"Wrap 外部错误", Wrap(context.DeadlineExceeded, ExternalServiceError, "timeout"), ExternalServiceError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestWrap_KeepsCause(t *testing.T) {
	err := Wrap(context.DeadlineExceeded, ExternalServiceError, "indexer timeout")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, Is(err, ExternalServiceError))
	assert.Contains(t, err.Error(), "deadline exceeded")

	assert.Nil(t, Wrap(nil, DbError, "noop"))
}

func TestMapErrMsg_IntegrityIsOpaque(t *testing.T) {
	// 不变量错误对外只给通用文案，不能泄露余额
	assert.Equal(t, "internal error", MapErrMsg(IntegrityViolation))
	assert.Equal(t, "未知错误", MapErrMsg(99999))
}
