package dao

import (
	"context"
	"database/sql"
	"errors"

	"github.com/startdusk/go-dao/dao/internal/errs"
	"go.uber.org/zap"
)

type batchMode uint8

const (
	// 每一行的结果是影响的行数
	batchRowsAffected batchMode = iota
	// 每一行的结果是自增主键
	batchLastInsertID
	// 每一行的结果是 RETURNING 拿到的自增主键
	batchReturning
)

// BatchInsert 返回的结果和 ts 一一对应
// 有自增主键的时候是主键, 并且会回填到实体上, 否则是影响的行数
func (m *Mapper[T]) BatchInsert(ctx context.Context, ts []*T) ([]int64, error) {
	if err := m.bound(); err != nil {
		return nil, err
	}
	if len(ts) == 0 {
		return nil, errs.ErrEmptyBatch
	}
	rows := make([][]any, 0, len(ts))
	for _, t := range ts {
		args, err := m.insert.entityArgs(m.b.creator(m.b.model, t))
		if err != nil {
			return nil, err
		}
		rows = append(rows, args)
	}
	mode := batchRowsAffected
	switch {
	case m.returning:
		mode = batchReturning
	case m.autoID != nil:
		mode = batchLastInsertID
	}

	res, err := m.b.runBatch(ctx, "BatchInsert", m.insert, rows, mode)
	if m.autoID == nil {
		return res, err
	}
	// 失败的时候也要把已经插入的行回填
	done := res
	var pbe *errs.PartialBatchError
	if errors.As(err, &pbe) {
		done = append(append([]int64(nil), pbe.Completed...), pbe.ChunkCompleted...)
	}
	for i, id := range done {
		if ferr := m.b.creator(m.b.model, ts[i]).SetField(m.autoID.GoName, id); ferr != nil {
			return res, ferr
		}
	}
	return res, err
}

// BatchUpdate 返回每一行影响的行数
func (m *Mapper[T]) BatchUpdate(ctx context.Context, ts []*T) ([]int64, error) {
	if err := m.bound(); err != nil {
		return nil, err
	}
	if len(ts) == 0 {
		return nil, errs.ErrEmptyBatch
	}
	rows := make([][]any, 0, len(ts))
	for _, t := range ts {
		args, err := m.update.entityArgs(m.b.creator(m.b.model, t))
		if err != nil {
			return nil, err
		}
		rows = append(rows, args)
	}
	return m.b.runBatch(ctx, "BatchUpdate", m.update, rows, batchRowsAffected)
}

// BatchDeleteByIDs 不存在的主键返回 0, 不会报错
func (m *Mapper[T]) BatchDeleteByIDs(ctx context.Context, ids []any) ([]int64, error) {
	if err := m.bound(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errs.ErrEmptyBatch
	}
	rows := make([][]any, 0, len(ids))
	for _, id := range ids {
		args, err := idArgs(m.b.model, id)
		if err != nil {
			return nil, err
		}
		args, err = m.deleteByID.bindArgs(args)
		if err != nil {
			return nil, err
		}
		rows = append(rows, args)
	}
	return m.b.runBatch(ctx, "BatchDeleteByIDs", m.deleteByID, rows, batchRowsAffected)
}

// runBatch 按照 maxBatchSize 切分, 每个 chunk 走一遍中间件
// 某个 chunk 失败的时候返回之前完成的 chunk 的结果和 PartialBatchError
func (b *binding) runBatch(ctx context.Context, method string, stmt *boundStmt,
	rows [][]any, mode batchMode) ([]int64, error) {
	size := b.db.maxBatchSize
	res := make([]int64, 0, len(rows))
	for ci, start := 0, 0; start < len(rows); ci, start = ci+1, start+size {
		end := min(start+size, len(rows))
		chunk := rows[start:end]
		qc := b.queryContext(stmt.typ, method, batchCall{stmt: stmt, rows: chunk})
		r := b.run(ctx, qc, batchHandler(b.db, stmt, chunk, mode))
		done, _ := r.Result.([]int64)
		if r.Err == nil {
			res = append(res, done...)
			continue
		}
		if errors.Is(r.Err, errs.ErrUnsupportedOperation) {
			return res, r.Err
		}
		b.logger.Warn("dao: 批量操作失败",
			zap.String("dao", b.name),
			zap.String("method", method),
			zap.Int("chunk", ci),
			zap.Int("offset", start+len(done)),
			zap.Error(r.Err))
		return res, &errs.PartialBatchError{
			Op:             method,
			ChunkIndex:     ci,
			FailedIndex:    len(done),
			Offset:         start + len(done),
			Completed:      res,
			ChunkCompleted: done,
			Err:            r.Err,
		}
	}
	return res, nil
}

// batchHandler 一个 chunk 使用同一个预编译语句, 逐行执行
// 失败的时候 Result 是这个 chunk 里面已经成功的行
func batchHandler(sess Session, stmt *boundStmt, rows [][]any, mode batchMode) Handler {
	return func(ctx context.Context, qc *QueryContext) *QueryResult {
		ps, err := sessionOf(ctx, sess).prepareContext(ctx, stmt.sql)
		if err != nil {
			return &QueryResult{Err: errs.NewExecutionError(stmt.sql, nil, err)}
		}
		defer func() {
			_ = ps.Close()
		}()

		done := make([]int64, 0, len(rows))
		for _, args := range rows {
			n, err := execPrepared(ctx, ps, args, mode)
			if err != nil {
				return &QueryResult{Result: done, Err: errs.NewExecutionError(stmt.sql, args, err)}
			}
			done = append(done, n)
		}
		return &QueryResult{Result: done}
	}
}

func execPrepared(ctx context.Context, ps *sql.Stmt, args []any, mode batchMode) (int64, error) {
	if mode == batchReturning {
		var id int64
		err := ps.QueryRowContext(ctx, args...).Scan(&id)
		return id, err
	}
	res, err := ps.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	if mode == batchLastInsertID {
		return res.LastInsertId()
	}
	return res.RowsAffected()
}
