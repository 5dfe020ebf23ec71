package dao

import (
	"context"
)

var (
	_ Querier[any] = &RawQuerier[any]{}
	_ Executor     = &RawQuerier[any]{}
)

// RawQuerier 执行用户手写的 SQL, 占位符使用 ?, 会转换成方言的占位符
type RawQuerier[T any] struct {
	core
	sess Session
	sql  string
	args []any
}

func RawQuery[T any](sess Session, query string, args ...any) *RawQuerier[T] {
	return &RawQuerier[T]{
		sql:  query,
		args: args,
		sess: sess,
		core: sess.getCore(),
	}
}

func (r *RawQuerier[T]) Build() (*Statement, error) {
	return &Statement{
		SQL:  rebind(r.dialect, r.sql),
		Args: r.args,
	}, nil
}

func (r *RawQuerier[T]) Get(ctx context.Context) (*T, error) {
	mapRow, qc, err := r.prepare()
	if err != nil {
		return nil, err
	}
	res := r.run(ctx, qc, queryOneHandler[T](r.sess, mapRow))
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Result.(*T), nil
}

func (r *RawQuerier[T]) GetMulti(ctx context.Context) ([]*T, error) {
	mapRow, qc, err := r.prepare()
	if err != nil {
		return nil, err
	}
	res := r.run(ctx, qc, queryMultiHandler[T](r.sess, mapRow))
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Result.([]*T), nil
}

func (r *RawQuerier[T]) Exec(ctx context.Context) Result {
	return exec(ctx, r.sess, r.core, r.queryContext())
}

func (r *RawQuerier[T]) prepare() (rowMapper[T], *QueryContext, error) {
	mapRow, err := newRowMapper[T](r.core)
	if err != nil {
		return nil, nil, err
	}
	return mapRow, r.queryContext(), nil
}

func (r *RawQuerier[T]) queryContext() *QueryContext {
	qc := &QueryContext{
		Type:    "RAW",
		Builder: r,
	}
	// 标量结果, 比如 RawQuery[int64], 没有模型
	if !isScalar(reflectTypeOf[T]()) {
		qc.Model, _ = r.r.Get(new(T))
	}
	return qc
}
