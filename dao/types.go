package dao

import (
	"context"
)

// Querier 用于 `SELECT` 语句
type Querier[T any] interface {
	// 返回指针是允许在 AOP 的场景下修改返回值, 从而不引起数据拷贝
	Get(ctx context.Context) (*T, error)
	GetMulti(ctx context.Context) ([]*T, error)
}

// Executor 用于 `INSERT`, `UPDATE`, `DELETE` 语句
type Executor interface {
	Exec(ctx context.Context) Result
}

type QueryBuilder interface {
	Build() (*Statement, error)
}

// Statement 是构造好的 SQL 和参数
type Statement struct {
	SQL  string
	Args []any
}
