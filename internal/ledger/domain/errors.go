package domain

import "errors"

var (
	// ErrDuplicate 唯一键冲突 (tx_hash 已被提交过)
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotInTx 行锁读取必须在事务里
	ErrNotInTx = errors.New("row lock requested outside a transaction")
)
