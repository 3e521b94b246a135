package service

import (
	"errors"
	"fmt"

	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/xerr"
)

// errSettled 充值条件更新命中 0 行：另一条路径已经处理，回滚本次入账
var errSettled = errors.New("deposit already settled")

func transitionErr(entity string, from, to fmt.Stringer) error {
	te := &domain.TransitionError{Entity: entity, From: from, To: to}
	return xerr.Wrap(te, xerr.RequestParamsError, te.Error())
}

// conflictErr 读到的状态在加锁前被别的请求改了
func conflictErr(entity string, id int64) error {
	return xerr.Newf(xerr.RequestParamsError, "%s %d was modified concurrently, retry", entity, id)
}
