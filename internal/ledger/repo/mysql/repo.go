package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/xerr"
)

type txKey struct{}

type Repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repo { return &Repo{db: db} }

var _ domain.LedgerStore = (*Repo)(nil)

// AutoMigrate 建表（生产环境由 DBA 执行 DDL，这里给本地/测试用）
func (r *Repo) AutoMigrate() error {
	return r.db.AutoMigrate(
		&domain.Wallet{},
		&domain.Deposit{},
		&domain.Withdrawal{},
		&domain.Ad{},
	)
}

// Transaction 事务放进 ctx，fn 里调用的仓储方法自动复用同一个 tx
// 已经在事务里时直接复用，不开嵌套事务
func (r *Repo) Transaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey{}, tx)
		return fn(txCtx)
	})
}

func inTx(ctx context.Context) bool {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok && tx != nil
}

func (r *Repo) getDb(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

// wrapErr gorm 错误转成统一错误码
func wrapErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return xerr.New(xerr.RecordNotFound, what+" not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, domain.ErrDuplicate)
	default:
		return xerr.Wrap(err, xerr.DbError, what+" query failed")
	}
}
