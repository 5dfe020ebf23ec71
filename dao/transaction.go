package dao

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/startdusk/go-dao/dao/internal/errs"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	_ Session = &Tx{}
)

type Session interface {
	getCore() core
	queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	execContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	prepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// txState 是同一个物理事务在各层嵌套之间共享的状态
type txState struct {
	id   string
	tx   *sql.Tx
	opts *sql.TxOptions

	mu           sync.Mutex
	finished     bool
	rollbackOnly bool
	afterCommit  []func()
}

func (s *txState) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.finished
}

func (s *txState) markRollbackOnly() {
	s.mu.Lock()
	s.rollbackOnly = true
	s.mu.Unlock()
}

func (s *txState) isRollbackOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbackOnly
}

func (s *txState) onCommit(fn func()) {
	s.mu.Lock()
	s.afterCommit = append(s.afterCommit, fn)
	s.mu.Unlock()
}

func (s *txState) commit() error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return sql.ErrTxDone
	}
	s.finished = true
	hooks := s.afterCommit
	s.afterCommit = nil
	s.mu.Unlock()

	if err := s.tx.Commit(); err != nil {
		return err
	}
	for _, fn := range hooks {
		fn()
	}
	return nil
}

func (s *txState) rollback() error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return sql.ErrTxDone
	}
	s.finished = true
	s.afterCommit = nil
	s.mu.Unlock()
	return s.tx.Rollback()
}

// Tx 是一个事务作用域, 嵌套加入的作用域共享同一个 txState
// state 为 nil 表示 SUPPORTS 传播下外面没有事务, 直接使用连接池
type Tx struct {
	id          string
	db          *DB
	state       *txState
	propagation Propagation
	depth       int

	committed bool
	done      bool

	// REQUIRES_NEW 挂起的外层事务
	suspended *Tx
}

func (t *Tx) ID() string {
	return t.id
}

func (t *Tx) Depth() int {
	return t.depth
}

func (t *Tx) Propagation() Propagation {
	return t.propagation
}

func (t *Tx) Committed() bool {
	return t.committed
}

func (t *Tx) Suspended() *Tx {
	return t.suspended
}

// Transactional 判断这个作用域是否真的开启了事务
func (t *Tx) Transactional() bool {
	return t.state != nil
}

func (t *Tx) Isolation() sql.IsolationLevel {
	if t.state == nil || t.state.opts == nil {
		return sql.LevelDefault
	}
	return t.state.opts.Isolation
}

func (t *Tx) active() bool {
	return t.state != nil && t.state.active()
}

func (t *Tx) getCore() core {
	return t.db.core
}

func (t *Tx) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if t.state == nil {
		return t.db.queryContext(ctx, query, args...)
	}
	return t.state.tx.QueryContext(ctx, query, args...)
}

func (t *Tx) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if t.state == nil {
		return t.db.execContext(ctx, query, args...)
	}
	return t.state.tx.ExecContext(ctx, query, args...)
}

func (t *Tx) prepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	if t.state == nil {
		return t.db.prepareContext(ctx, query)
	}
	return t.state.tx.PrepareContext(ctx, query)
}

func (t *Tx) stateError(op string, err error) error {
	return &errs.TransactionStateError{TxID: t.id, Op: op, Err: err}
}

// Commit 只有最外层才会真的提交, 嵌套的作用域只记录一下
func (t *Tx) Commit() error {
	if t.state == nil {
		return t.stateError("commit", errs.ErrNoTransaction)
	}
	if t.done {
		return t.stateError("commit", errs.ErrTxDone)
	}
	t.done = true
	if t.depth > 0 {
		t.committed = true
		t.db.logger.Debug("dao: 嵌套作用域提交, 等待最外层提交",
			zap.String("tx", t.id), zap.Int("depth", t.depth))
		return nil
	}
	defer t.resume()

	if t.state.isRollbackOnly() {
		err := t.stateError("commit", errs.ErrRollbackOnly)
		if rbErr := t.state.rollback(); rbErr != nil {
			err = multierr.Append(err, rbErr)
		}
		t.db.logger.Warn("dao: 事务已经被标记为只能回滚", zap.String("tx", t.id))
		return err
	}
	if err := t.state.commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return t.stateError("commit", errs.ErrTxDone)
		}
		return errs.NewExecutionError("COMMIT", nil, err)
	}
	t.committed = true
	t.db.logger.Debug("dao: 提交事务", zap.String("tx", t.id))
	return nil
}

// Rollback 在嵌套作用域里面只会把外层事务标记为只能回滚
func (t *Tx) Rollback() error {
	if t.state == nil {
		return t.stateError("rollback", errs.ErrNoTransaction)
	}
	if t.done {
		return t.stateError("rollback", errs.ErrTxDone)
	}
	return t.rollback()
}

// RollbackIfNotCommitted 可以放在 defer 里面无条件调用
// 已经提交, 已经回滚, 或者根本没有事务的时候什么都不做
func (t *Tx) RollbackIfNotCommitted() error {
	if t.state == nil || t.done {
		return nil
	}
	err := t.rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *Tx) rollback() error {
	t.done = true
	if t.depth > 0 {
		t.state.markRollbackOnly()
		t.db.logger.Debug("dao: 嵌套作用域没有提交, 外层事务只能回滚",
			zap.String("tx", t.id), zap.Int("depth", t.depth))
		return nil
	}
	defer t.resume()
	t.db.logger.Debug("dao: 回滚事务", zap.String("tx", t.id))
	return t.state.rollback()
}

func (t *Tx) resume() {
	if t.suspended != nil {
		t.db.logger.Debug("dao: 恢复被挂起的事务",
			zap.String("tx", t.suspended.id), zap.String("by", t.id))
	}
}
