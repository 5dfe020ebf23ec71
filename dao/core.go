package dao

import (
	"context"
	"database/sql"
	"iter"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/startdusk/go-dao/dao/internal/errs"
	"github.com/startdusk/go-dao/dao/internal/valuer"
	"github.com/startdusk/go-dao/dao/model"
	"go.uber.org/zap"
)

type core struct {
	model   *model.Model
	dialect Dialect
	creator valuer.Creator
	r       model.Registry
	logger  *zap.Logger

	mdls []Middleware
}

// run 按照注册的顺序套上中间件, 第一个中间件在最外层
func (c core) run(ctx context.Context, qc *QueryContext, root Handler) *QueryResult {
	for i := len(c.mdls) - 1; i >= 0; i-- {
		root = c.mdls[i](root)
	}
	return root(ctx, qc)
}

func exec(ctx context.Context, sess Session, c core, qc *QueryContext) Result {
	return resultOf(c.run(ctx, qc, execHandler(sess)))
}

// rowMapper 把当前行转换成 *T
type rowMapper[T any] func(rows *sql.Rows) (*T, error)

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// isScalar 判断是不是单列的结果, 比如 COUNT(*), 或者实现了 sql.Scanner 的类型
func isScalar(typ reflect.Type) bool {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return true
	}
	return typ == timeType || reflect.PointerTo(typ).Implements(scannerType)
}

func reflectTypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func newRowMapper[T any](c core) (rowMapper[T], error) {
	if isScalar(reflectTypeOf[T]()) {
		return func(rows *sql.Rows) (*T, error) {
			t := new(T)
			if err := rows.Scan(t); err != nil {
				return nil, err
			}
			return t, nil
		}, nil
	}
	m, err := c.r.Get(new(T))
	if err != nil {
		return nil, err
	}
	return func(rows *sql.Rows) (*T, error) {
		// 利用 columns 来解决 select 的列顺序 和 列字段类型的问题
		t := new(T)
		if err := c.creator(m, t).SetColumns(rows); err != nil {
			return nil, err
		}
		return t, nil
	}, nil
}

func queryOneHandler[T any](sess Session, mapRow rowMapper[T]) Handler {
	return func(ctx context.Context, qc *QueryContext) *QueryResult {
		q, err := qc.Builder.Build()
		if err != nil {
			return &QueryResult{Err: err}
		}
		rows, err := sessionOf(ctx, sess).queryContext(ctx, q.SQL, q.Args...)
		if err != nil {
			return &QueryResult{Err: errs.NewExecutionError(q.SQL, q.Args, err)}
		}
		defer func() {
			_ = rows.Close()
		}()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return &QueryResult{Err: errs.NewExecutionError(q.SQL, q.Args, err)}
			}
			// 返回要和sql包语义一致
			return &QueryResult{Err: ErrNoRows}
		}
		t, err := mapRow(rows)
		if err != nil {
			return &QueryResult{Err: err}
		}
		return &QueryResult{Result: t}
	}
}

func queryMultiHandler[T any](sess Session, mapRow rowMapper[T]) Handler {
	return func(ctx context.Context, qc *QueryContext) *QueryResult {
		q, err := qc.Builder.Build()
		if err != nil {
			return &QueryResult{Err: err}
		}
		rows, err := sessionOf(ctx, sess).queryContext(ctx, q.SQL, q.Args...)
		if err != nil {
			return &QueryResult{Err: errs.NewExecutionError(q.SQL, q.Args, err)}
		}
		defer func() {
			_ = rows.Close()
		}()

		res := make([]*T, 0, 8)
		for rows.Next() {
			t, err := mapRow(rows)
			if err != nil {
				return &QueryResult{Err: err}
			}
			res = append(res, t)
		}
		if err := rows.Err(); err != nil {
			return &QueryResult{Err: errs.NewExecutionError(q.SQL, q.Args, err)}
		}
		return &QueryResult{Result: res}
	}
}

func execHandler(sess Session) Handler {
	return func(ctx context.Context, qc *QueryContext) *QueryResult {
		q, err := qc.Builder.Build()
		if err != nil {
			return &QueryResult{Err: err, Result: Result{err: err}}
		}
		res, err := sessionOf(ctx, sess).execContext(ctx, q.SQL, q.Args...)
		err = errs.NewExecutionError(q.SQL, q.Args, err)
		return &QueryResult{Err: err, Result: Result{res: res, err: err}}
	}
}

// rowsHandler 把游标交给调用方, 由调用方负责关闭
func rowsHandler(sess Session) Handler {
	return func(ctx context.Context, qc *QueryContext) *QueryResult {
		q, err := qc.Builder.Build()
		if err != nil {
			return &QueryResult{Err: err}
		}
		rows, err := sessionOf(ctx, sess).queryContext(ctx, q.SQL, q.Args...)
		if err != nil {
			return &QueryResult{Err: errs.NewExecutionError(q.SQL, q.Args, err)}
		}
		return &QueryResult{Result: rows}
	}
}

// stream 只有开始遍历的时候才会发出查询
// 遍历结束, 提前 break 或者出错, 游标都会被关闭, 并且只关闭一次
func stream[T any](ctx context.Context, c core, sess Session, qc *QueryContext, mapRow rowMapper[T]) iter.Seq2[*T, error] {
	var used atomic.Bool
	return func(yield func(*T, error) bool) {
		if used.Swap(true) {
			yield(nil, errs.ErrStreamConsumed)
			return
		}
		res := c.run(ctx, qc, rowsHandler(sess))
		if res.Err != nil {
			yield(nil, res.Err)
			return
		}
		rows := res.Result.(*sql.Rows)
		defer func() {
			_ = rows.Close()
		}()
		for rows.Next() {
			t, err := mapRow(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(t, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			q, _ := qc.Builder.Build()
			if q == nil {
				q = &Statement{}
			}
			yield(nil, errs.NewExecutionError(q.SQL, q.Args, err))
		}
	}
}

// insertResult 是 RETURNING 拿到的自增主键
type insertResult struct {
	id int64
}

func (r insertResult) LastInsertId() (int64, error) {
	return r.id, nil
}

func (r insertResult) RowsAffected() (int64, error) {
	return 1, nil
}

// returningHandler 用于 PostgreSQL 这种不支持 LastInsertId 的驱动
func returningHandler(sess Session) Handler {
	return func(ctx context.Context, qc *QueryContext) *QueryResult {
		q, err := qc.Builder.Build()
		if err != nil {
			return &QueryResult{Err: err, Result: Result{err: err}}
		}
		var id int64
		rows, err := sessionOf(ctx, sess).queryContext(ctx, q.SQL, q.Args...)
		if err == nil {
			defer func() {
				_ = rows.Close()
			}()
			if rows.Next() {
				err = rows.Scan(&id)
			} else if err = rows.Err(); err == nil {
				err = sql.ErrNoRows
			}
		}
		err = errs.NewExecutionError(q.SQL, q.Args, err)
		return &QueryResult{Err: err, Result: Result{res: insertResult{id: id}, err: err}}
	}
}

// buildFunc 让普通函数也可以作为 QueryBuilder
type buildFunc func() (*Statement, error)

func (f buildFunc) Build() (*Statement, error) {
	return f()
}
