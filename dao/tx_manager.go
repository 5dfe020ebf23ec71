package dao

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/startdusk/go-dao/dao/internal/errs"
	"go.uber.org/zap"
)

type Propagation uint8

const (
	// PropagationRequired 有事务就加入, 没有就开启一个新的
	PropagationRequired Propagation = iota
	// PropagationSupports 有事务就加入, 没有就不使用事务
	PropagationSupports
	// PropagationRequiresNew 总是开启新事务, 挂起外层事务, 使用新的连接
	PropagationRequiresNew
)

func (p Propagation) String() string {
	switch p {
	case PropagationRequired:
		return "REQUIRED"
	case PropagationSupports:
		return "SUPPORTS"
	case PropagationRequiresNew:
		return "REQUIRES_NEW"
	default:
		return fmt.Sprintf("Propagation(%d)", uint8(p))
	}
}

// txKey 带上 DB, 同一个 context 里面可以有多个数据库的事务
type txKey struct {
	db *DB
}

func txFromContext(ctx context.Context, db *DB) *Tx {
	tx, _ := ctx.Value(txKey{db: db}).(*Tx)
	return tx
}

// TxFromContext 返回 context 上绑定的事务作用域
func (db *DB) TxFromContext(ctx context.Context) (*Tx, bool) {
	tx := txFromContext(ctx, db)
	return tx, tx != nil
}

// sessionOf 优先使用 context 上活跃的事务
func sessionOf(ctx context.Context, sess Session) Session {
	db, ok := sess.(*DB)
	if !ok {
		return sess
	}
	if tx := txFromContext(ctx, db); tx != nil && tx.active() {
		return tx
	}
	return db
}

// Begin 按照传播行为开启一个事务作用域, 返回绑定了这个作用域的 context
// 后续的 Dao 调用使用返回的 context 就会参与到事务里面
// REQUIRES_NEW 结束之后, 继续使用原来的 context 就回到了被挂起的事务
func (db *DB) Begin(ctx context.Context, p Propagation, opts *sql.TxOptions) (context.Context, *Tx, error) {
	cur := txFromContext(ctx, db)
	if cur != nil && !cur.active() {
		cur = nil
	}

	var (
		tx  *Tx
		err error
	)
	switch p {
	case PropagationRequired, PropagationSupports:
		switch {
		case cur != nil:
			tx = &Tx{
				id:          cur.id,
				db:          db,
				state:       cur.state,
				propagation: p,
				depth:       cur.depth + 1,
			}
		case p == PropagationSupports:
			tx = &Tx{id: uuid.NewString(), db: db, propagation: p}
		default:
			tx, err = db.beginTx(ctx, p, opts)
		}
	case PropagationRequiresNew:
		tx, err = db.beginTx(ctx, p, opts)
		if err == nil {
			tx.suspended = cur
		}
	default:
		return ctx, nil, fmt.Errorf("dao: 未知的传播行为 %s", p)
	}
	if err != nil {
		return ctx, nil, err
	}

	db.logger.Debug("dao: 开启事务作用域",
		zap.String("tx", tx.id),
		zap.Stringer("propagation", p),
		zap.Int("depth", tx.depth),
		zap.Bool("transactional", tx.state != nil))
	return context.WithValue(ctx, txKey{db: db}, tx), tx, nil
}

// BeginTx 开启一个独立的事务, 不绑定到 context 上, 可以直接作为 Session 使用
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	return db.beginTx(ctx, PropagationRequiresNew, opts)
}

func (db *DB) beginTx(ctx context.Context, p Propagation, opts *sql.TxOptions) (*Tx, error) {
	sqlTx, err := db.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	return &Tx{
		id: id,
		db: db,
		state: &txState{
			id:   id,
			tx:   sqlTx,
			opts: opts,
		},
		propagation: p,
	}, nil
}

// DoTx 在事务作用域里面执行 fn
// fn 返回错误或者 panic 的时候回滚, 否则提交
func (db *DB) DoTx(ctx context.Context, p Propagation,
	fn func(ctx context.Context, tx *Tx) error, opts *sql.TxOptions) (err error) {
	txCtx, tx, err := db.Begin(ctx, p, opts)
	if err != nil {
		return err
	}

	panicked := true
	defer func() {
		if !tx.Transactional() {
			return
		}
		if panicked || err != nil {
			rbErr := tx.RollbackIfNotCommitted()
			err = errs.NewErrFailedToRollbackTx(err, rbErr, panicked)
		} else {
			err = tx.Commit()
		}
	}()
	err = fn(txCtx, tx)
	// 执行过程中没有发生panic, 则标志位置为false
	panicked = false
	return err
}
