package dao

import (
	"context"
	"errors"
	"iter"
	"reflect"
	"strings"

	"github.com/startdusk/go-dao/dao/internal/errs"
	"github.com/startdusk/go-dao/dao/model"
)

// Mapper 提供单个实体的 CRUD, 所有语句在绑定的时候生成
// 内嵌在 Dao 结构体里面, Dao 上的缓存, 访问模式等标记写在 Mapper 上
type Mapper[T any] struct {
	b      *binding
	mapRow rowMapper[T]

	getByID    *boundStmt
	exists     *boundStmt
	insert     *boundStmt
	update     *boundStmt
	deleteByID *boundStmt

	// 自增主键, 没有的话为 nil
	autoID *model.Field
	// 自增主键是不是用 RETURNING 拿
	returning bool
}

// NewMapper 创建一个只有 CRUD 的 Dao
func NewMapper[T any](db *DB, opts ...BindOption) (*Mapper[T], error) {
	m := &Mapper[T]{}
	cfg := bindConfig{name: reflectTypeOf[T]().Name() + "Mapper"}
	if _, err := m.bindMapper(db, "Mapper", "", cfg, opts); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mapper[T]) bindMapper(db *DB, field string, tag reflect.StructTag,
	cfg bindConfig, opts []BindOption) (*binding, error) {
	if err := parseBindTags(field, tag, &cfg, db.cacheDefaults); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	em, err := db.r.Get(new(T))
	if err != nil {
		return nil, err
	}
	if len(em.IDs) == 0 {
		return nil, errs.ErrNoIdentifier
	}
	b, err := newBinding(db, em, cfg)
	if err != nil {
		return nil, err
	}
	m.b = b
	m.autoID = em.AutoID()
	m.returning = m.autoID != nil && b.dialect.returning()

	if m.mapRow, err = newRowMapper[T](b.core); err != nil {
		return nil, err
	}
	if err = m.compile(); err != nil {
		return nil, err
	}
	return b, nil
}

// compile 用构造器生成命名参数的模板, 参数名就是字段名
func (m *Mapper[T]) compile() error {
	em := m.b.model
	where := make([]Predicate, 0, len(em.IDs))
	for _, fd := range em.IDs {
		where = append(where, C(fd.GoName).Eq(Param(fd.GoName)))
	}

	getByID := &selectBuilder{
		builder: newBuilder(m.b.core),
		columns: columnsOf(em),
		where:   where,
	}
	exists := &selectBuilder{
		builder: newBuilder(m.b.core),
		columns: []Selectable{Raw("1")},
		where:   where,
	}
	inserter := &Inserter[T]{builder: newBuilder(m.b.core), named: true}
	updater := &Updater[T]{builder: newBuilder(m.b.core), where: where}
	deleter := &Deleter[T]{builder: newBuilder(m.b.core), where: where}

	for _, t := range []struct {
		dst    **boundStmt
		method string
		typ    string
		build  func() (*Statement, error)
	}{
		{&m.getByID, "GetByID", "SELECT", getByID.buildSelect},
		{&m.exists, "Exists", "SELECT", exists.buildSelect},
		{&m.insert, "Insert", "INSERT", inserter.Build},
		{&m.update, "Update", "UPDATE", updater.Build},
		{&m.deleteByID, "DeleteByID", "DELETE", deleter.Build},
	} {
		q, err := t.build()
		if err != nil {
			return err
		}
		query := q.SQL
		if t.typ == "INSERT" && m.returning {
			query = m.withReturning(query)
		}
		st, err := compileStmt(m.b.dialect, t.method, t.typ, query, nil)
		if err != nil {
			return err
		}
		*t.dst = st
	}
	return nil
}

func (m *Mapper[T]) withReturning(query string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSuffix(query, ";"))
	sb.WriteString(" RETURNING ")
	q := m.b.dialect.quoter()
	sb.WriteByte(q)
	sb.WriteString(m.autoID.ColName)
	sb.WriteByte(q)
	sb.WriteByte(';')
	return sb.String()
}

func (m *Mapper[T]) bound() error {
	if m.b == nil {
		return errs.ErrUnbound
	}
	return nil
}

// Close 释放 Dao 的本地缓存
func (m *Mapper[T]) Close() error {
	if m.b == nil || m.b.cache == nil {
		return nil
	}
	return m.b.cache.close()
}

// CacheStats 没有缓存的时候返回零值
func (m *Mapper[T]) CacheStats() CacheStats {
	if m.b == nil || m.b.cache == nil {
		return CacheStats{}
	}
	return m.b.cache.stats()
}

// EntityIDOf 取出实体的主键
func (m *Mapper[T]) EntityIDOf(t *T) (EntityID, error) {
	if err := m.bound(); err != nil {
		return EntityID{}, err
	}
	val := m.b.creator(m.b.model, t)
	var id EntityID
	for _, fd := range m.b.model.IDs {
		v, err := val.Field(fd.GoName)
		if err != nil {
			return EntityID{}, err
		}
		id = id.And(fd.GoName, v)
	}
	return id, nil
}

// GetByID id 可以是主键的值, 联合主键使用 EntityID
func (m *Mapper[T]) GetByID(ctx context.Context, id any) (*T, error) {
	call, err := m.idCall(m.getByID, id)
	if err != nil {
		return nil, err
	}
	qc := m.b.readContext("GetByID", call, reflect.TypeOf((*T)(nil)))
	res := m.b.run(ctx, qc, queryOneHandler[T](m.b.db, m.mapRow))
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Result.(*T), nil
}

func (m *Mapper[T]) Exists(ctx context.Context, id any) (bool, error) {
	call, err := m.idCall(m.exists, id)
	if err != nil {
		return false, err
	}
	mapRow, err := newRowMapper[int64](m.b.core)
	if err != nil {
		return false, err
	}
	qc := m.b.readContext("Exists", call, reflect.TypeOf((*int64)(nil)))
	res := m.b.run(ctx, qc, queryOneHandler[int64](m.b.db, mapRow))
	if errors.Is(res.Err, ErrNoRows) {
		return false, nil
	}
	if res.Err != nil {
		return false, res.Err
	}
	return true, nil
}

// Count 没有条件的时候统计整张表
func (m *Mapper[T]) Count(ctx context.Context, where ...Predicate) (int64, error) {
	if err := m.bound(); err != nil {
		return 0, err
	}
	sb := &selectBuilder{
		builder: newBuilder(m.b.core),
		columns: []Selectable{Count("")},
		where:   where,
	}
	mapRow, err := newRowMapper[int64](m.b.core)
	if err != nil {
		return 0, err
	}
	qc := m.b.readContext("Count", buildFunc(sb.buildSelect), reflect.TypeOf((*int64)(nil)))
	res := m.b.run(ctx, qc, queryOneHandler[int64](m.b.db, mapRow))
	if res.Err != nil {
		return 0, res.Err
	}
	return *res.Result.(*int64), nil
}

func (m *Mapper[T]) FindAll(ctx context.Context) ([]*T, error) {
	return m.Find(ctx)
}

func (m *Mapper[T]) Find(ctx context.Context, where ...Predicate) ([]*T, error) {
	if err := m.bound(); err != nil {
		return nil, err
	}
	qc := m.b.readContext("Find", m.selector(where), reflect.TypeOf([]*T(nil)))
	res := m.b.run(ctx, qc, queryMultiHandler[T](m.b.db, m.mapRow))
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Result.([]*T), nil
}

// Stream 逐行读取, 适合数据量大的场景
func (m *Mapper[T]) Stream(ctx context.Context, where ...Predicate) iter.Seq2[*T, error] {
	if err := m.bound(); err != nil {
		return func(yield func(*T, error) bool) {
			yield(nil, err)
		}
	}
	qc := m.b.queryContext("SELECT", "Stream", m.selector(where))
	return stream[T](ctx, m.b.core, m.b.db, qc, m.mapRow)
}

func (m *Mapper[T]) selector(where []Predicate) QueryBuilder {
	sb := &selectBuilder{
		builder: newBuilder(m.b.core),
		columns: columnsOf(m.b.model),
		where:   where,
	}
	return buildFunc(sb.buildSelect)
}

// Insert 自增主键会回填到实体上
func (m *Mapper[T]) Insert(ctx context.Context, t *T) Result {
	if err := m.bound(); err != nil {
		return Result{err: err}
	}
	val := m.b.creator(m.b.model, t)
	args, err := m.insert.entityArgs(val)
	if err != nil {
		return Result{err: err}
	}
	qc := m.b.queryContext("INSERT", "Insert", boundCall{stmt: m.insert, args: args})
	var res Result
	if m.returning {
		res = resultOf(m.b.run(ctx, qc, returningHandler(m.b.db)))
	} else {
		res = exec(ctx, m.b.db, m.b.core, qc)
	}
	if res.Err() != nil || m.autoID == nil {
		return res
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Result{err: err, res: res.res}
	}
	if err = val.SetField(m.autoID.GoName, id); err != nil {
		return Result{err: err, res: res.res}
	}
	return res
}

// Update 按照主键更新所有可以更新的列
func (m *Mapper[T]) Update(ctx context.Context, t *T) Result {
	if err := m.bound(); err != nil {
		return Result{err: err}
	}
	args, err := m.update.entityArgs(m.b.creator(m.b.model, t))
	if err != nil {
		return Result{err: err}
	}
	qc := m.b.queryContext("UPDATE", "Update", boundCall{stmt: m.update, args: args})
	return exec(ctx, m.b.db, m.b.core, qc)
}

func (m *Mapper[T]) DeleteByID(ctx context.Context, id any) Result {
	call, err := m.idCall(m.deleteByID, id)
	if err != nil {
		return Result{err: err}
	}
	qc := m.b.queryContext("DELETE", "DeleteByID", call)
	return exec(ctx, m.b.db, m.b.core, qc)
}

func (m *Mapper[T]) idCall(stmt *boundStmt, id any) (boundCall, error) {
	if err := m.bound(); err != nil {
		return boundCall{}, err
	}
	args, err := idArgs(m.b.model, id)
	if err != nil {
		return boundCall{}, err
	}
	args, err = stmt.bindArgs(args)
	if err != nil {
		return boundCall{}, err
	}
	return boundCall{stmt: stmt, args: args}, nil
}

func resultOf(res *QueryResult) Result {
	r, _ := res.Result.(Result)
	if res.Err != nil {
		r.err = res.Err
	}
	return r
}
