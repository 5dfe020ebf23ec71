package dao

import (
	"context"
	"iter"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/startdusk/go-dao/cache"
	"github.com/startdusk/go-dao/dao/internal/errs"
	"github.com/startdusk/go-dao/dao/model"
	"go.uber.org/zap"
)

// 声明 SQL 的标签
const (
	tagSelect  = "select"
	tagInsert  = "insert"
	tagUpdate  = "update"
	tagDelete  = "delete"
	tagParams  = "params"
	tagRefresh = "refresh"
	tagCache   = "cache"
	tagAccess  = "access"
	tagPerf    = "perf"
)

type BindOption func(cfg *bindConfig)

type bindConfig struct {
	name    string
	access  AccessMode
	refresh bool
	perf    PerfConfig

	cache   *CacheConfig
	backend cache.Cache
}

// BindWithName 默认使用 Dao 结构体的名字, 缓存的前缀和日志里面用到
func BindWithName(name string) BindOption {
	return func(cfg *bindConfig) {
		cfg.name = name
	}
}

func BindWithAccess(mode AccessMode) BindOption {
	return func(cfg *bindConfig) {
		cfg.access = mode
	}
}

// BindWithRefresh 所有的写操作都会让缓存失效
func BindWithRefresh() BindOption {
	return func(cfg *bindConfig) {
		cfg.refresh = true
	}
}

func BindWithPerf(perf PerfConfig) BindOption {
	return func(cfg *bindConfig) {
		cfg.perf = perf
	}
}

func BindWithCache(c CacheConfig) BindOption {
	return func(cfg *bindConfig) {
		cfg.cache = &c
	}
}

// BindWithCacheBackend 使用自己的缓存, 比如 cache.RedisCache
func BindWithCacheBackend(backend cache.Cache) BindOption {
	return func(cfg *bindConfig) {
		cfg.backend = backend
	}
}

// binding 是一个 Dao 绑定之后的状态, Dao 里面所有的方法共享
type binding struct {
	// model 是 Dao 绑定的实体, mdls 是 Dao 自己的中间件加上 DB 的中间件
	core
	db      *DB
	name    string
	access  AccessMode
	refresh bool
	cache   *queryCache
}

func newBinding(db *DB, m *model.Model, cfg bindConfig) (*binding, error) {
	b := &binding{
		core:    db.core,
		db:      db,
		name:    cfg.name,
		access:  cfg.access,
		refresh: cfg.refresh,
	}
	b.model = m

	mdls := make([]Middleware, 0, len(db.mdls)+3)
	mdls = append(mdls, accessGuard(cfg.name, cfg.access))
	perf := cfg.perf
	if !perf.enabled() {
		perf = db.perfDefaults
	}
	if perf.enabled() {
		mdls = append(mdls, perfMiddleware(perf, db.perfHook))
	}
	if cfg.cache != nil || cfg.backend != nil {
		cc := db.cacheDefaults
		if cfg.cache != nil {
			cc = *cfg.cache
		}
		qc, err := newQueryCache(cfg.name, cc, cfg.backend, db.logger)
		if err != nil {
			return nil, err
		}
		b.cache = qc
		mdls = append(mdls, qc.middleware(db))
	}
	b.mdls = append(mdls, db.mdls...)
	return b, nil
}

func (b *binding) queryContext(typ string, method string, builder QueryBuilder) *QueryContext {
	return &QueryContext{
		Type:    typ,
		Builder: builder,
		Model:   b.model,
		Dao:     b.name,
		Method:  method,
		refresh: b.refresh,
	}
}

func (b *binding) readContext(method string, builder QueryBuilder, resultType reflect.Type) *QueryContext {
	qc := b.queryContext("SELECT", method, builder)
	qc.ResultType = resultType
	qc.cacheable = b.cache != nil
	return qc
}

// mapperBinder 由 Mapper 实现, 一个 Dao 必须有且只有一个
type mapperBinder interface {
	bindMapper(db *DB, field string, tag reflect.StructTag, cfg bindConfig, opts []BindOption) (*binding, error)
}

// fieldBinder 由 Query 和 Exec 实现
type fieldBinder interface {
	bind(b *binding, field reflect.StructField) error
}

// Bind 解析 Dao 结构体上的声明, 编译好所有的语句
// 调用的时候不会再解析标签
//
//	type UserDao struct {
//		dao.Mapper[User] `cache:"capacity=128,evict=30s" refresh:"true"`
//		FindByName dao.Query[User] `select:"SELECT * FROM users WHERE name = :name"`
//	}
func Bind(db *DB, dao any, opts ...BindOption) error {
	val := reflect.ValueOf(dao)
	if val.Kind() != reflect.Pointer || val.IsNil() || val.Elem().Kind() != reflect.Struct {
		return errs.ErrDaoPointerOnly
	}
	elem := val.Elem()
	typ := elem.Type()

	var (
		b   *binding
		err error
	)
	cfg := bindConfig{name: typ.Name()}
	for i := 0; i < typ.NumField(); i++ {
		fd := typ.Field(i)
		if !fd.IsExported() {
			continue
		}
		mb, ok := elem.Field(i).Addr().Interface().(mapperBinder)
		if !ok {
			continue
		}
		if b != nil {
			return errs.NewErrInvalidMarker(fd.Name, "Mapper", "一个 Dao 只能有一个 Mapper")
		}
		b, err = mb.bindMapper(db, fd.Name, fd.Tag, cfg, opts)
		if err != nil {
			return err
		}
	}
	if b == nil {
		return errs.ErrMissingMapper
	}

	for i := 0; i < typ.NumField(); i++ {
		fd := typ.Field(i)
		if !fd.IsExported() {
			continue
		}
		fb, ok := elem.Field(i).Addr().Interface().(fieldBinder)
		if !ok {
			continue
		}
		if err := fb.bind(b, fd); err != nil {
			return err
		}
	}
	db.logger.Debug("dao: 绑定 Dao 完成", zap.String("dao", b.name))
	return nil
}

// parseBindTags 解析 Mapper 上的 cache, refresh, access 和 perf 标记
func parseBindTags(field string, tag reflect.StructTag, cfg *bindConfig, defaults CacheConfig) error {
	if v, ok := tag.Lookup(tagCache); ok {
		cc, err := parseCacheTag(field, v, defaults)
		if err != nil {
			return err
		}
		cfg.cache = &cc
	}
	if v, ok := tag.Lookup(tagRefresh); ok {
		refresh, err := strconv.ParseBool(v)
		if err != nil {
			return errs.NewErrInvalidMarker(field, tagRefresh, err.Error())
		}
		cfg.refresh = refresh
	}
	if v, ok := tag.Lookup(tagAccess); ok {
		mode, ok := parseAccessMode(v)
		if !ok {
			return errs.NewErrInvalidMarker(field, tagAccess, "只支持 rw, readonly 和 noupdate")
		}
		cfg.access = mode
	}
	if v, ok := tag.Lookup(tagPerf); ok {
		perf, err := parsePerfTag(field, v)
		if err != nil {
			return err
		}
		cfg.perf = perf
	}
	return nil
}

// cache:"capacity=128,evict=30s,transfer=clone,jitter=10s", cache:"true" 使用默认值
func parseCacheTag(field string, v string, defaults CacheConfig) (CacheConfig, error) {
	cc := defaults
	if v == "" || v == "true" {
		return cc, nil
	}
	for key, val := range splitPairs(v) {
		switch key {
		case "capacity":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return cc, errs.NewErrInvalidMarker(field, tagCache, "capacity 必须是正整数")
			}
			cc.Capacity = n
		case "evict":
			d, err := time.ParseDuration(val)
			if err != nil {
				return cc, errs.NewErrInvalidMarker(field, tagCache, err.Error())
			}
			cc.EvictDelay = d
		case "jitter":
			d, err := time.ParseDuration(val)
			if err != nil {
				return cc, errs.NewErrInvalidMarker(field, tagCache, err.Error())
			}
			cc.Jitter = d
		case "transfer":
			mode, ok := parseTransferMode(val)
			if !ok {
				return cc, errs.NewErrInvalidMarker(field, tagCache, "transfer 只支持 clone 和 none")
			}
			cc.Transfer = mode
		default:
			return cc, errs.NewErrInvalidMarker(field, tagCache, "未知配置 "+key)
		}
	}
	return cc, nil
}

// perf:"warn=100ms,error=1s"
func parsePerfTag(field string, v string) (PerfConfig, error) {
	var perf PerfConfig
	for key, val := range splitPairs(v) {
		d, err := time.ParseDuration(val)
		if err != nil {
			return perf, errs.NewErrInvalidMarker(field, tagPerf, err.Error())
		}
		switch key {
		case "warn":
			perf.Warn = d
		case "error":
			perf.Error = d
		default:
			return perf, errs.NewErrInvalidMarker(field, tagPerf, "未知配置 "+key)
		}
	}
	return perf, nil
}

func splitPairs(v string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range strings.Split(v, ",") {
			key, val, _ := strings.Cut(pair, "=")
			if !yield(strings.TrimSpace(key), strings.TrimSpace(val)) {
				return
			}
		}
	}
}

func splitParams(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	params := strings.Split(v, ",")
	for i := range params {
		params[i] = strings.TrimSpace(params[i])
	}
	return params
}

// Query 是一个声明了 SELECT 语句的方法
// T 可以是实体, 也可以是 int64, string, time.Time 这种单列的结果
type Query[T any] struct {
	b      *binding
	stmt   *boundStmt
	mapRow rowMapper[T]
}

func (q *Query[T]) bind(b *binding, field reflect.StructField) error {
	query := field.Tag.Get(tagSelect)
	if query == "" {
		return errs.NewErrInvalidMarker(field.Name, tagSelect, "SQL 不能为空")
	}
	stmt, err := compileStmt(b.dialect, field.Name, "SELECT", query, splitParams(field.Tag.Get(tagParams)))
	if err != nil {
		return err
	}
	mapRow, err := newRowMapper[T](b.core)
	if err != nil {
		return err
	}
	q.b = b
	q.stmt = stmt
	q.mapRow = mapRow
	return nil
}

func (q *Query[T]) call(args []any) (boundCall, error) {
	if q.stmt == nil {
		return boundCall{}, errs.ErrUnbound
	}
	bound, err := q.stmt.bindArgs(args)
	if err != nil {
		return boundCall{}, err
	}
	return boundCall{stmt: q.stmt, args: bound}, nil
}

// Get 没有数据的时候返回 ErrNoRows
func (q *Query[T]) Get(ctx context.Context, args ...any) (*T, error) {
	call, err := q.call(args)
	if err != nil {
		return nil, err
	}
	qc := q.b.readContext(q.stmt.method, call, reflect.TypeOf((*T)(nil)))
	res := q.b.run(ctx, qc, queryOneHandler[T](q.b.db, q.mapRow))
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Result.(*T), nil
}

func (q *Query[T]) List(ctx context.Context, args ...any) ([]*T, error) {
	call, err := q.call(args)
	if err != nil {
		return nil, err
	}
	qc := q.b.readContext(q.stmt.method, call, reflect.TypeOf([]*T(nil)))
	res := q.b.run(ctx, qc, queryMultiHandler[T](q.b.db, q.mapRow))
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Result.([]*T), nil
}

// Stream 不走缓存, 遍历的时候才发出查询
func (q *Query[T]) Stream(ctx context.Context, args ...any) iter.Seq2[*T, error] {
	call, err := q.call(args)
	if err != nil {
		return func(yield func(*T, error) bool) {
			yield(nil, err)
		}
	}
	qc := q.b.queryContext("SELECT", q.stmt.method, call)
	return stream[T](ctx, q.b.core, q.b.db, qc, q.mapRow)
}

// Exec 是一个声明了 INSERT, UPDATE 或者 DELETE 语句的方法
type Exec struct {
	b    *binding
	stmt *boundStmt
}

func (e *Exec) bind(b *binding, field reflect.StructField) error {
	var typ, query string
	for _, t := range []struct {
		tag string
		typ string
	}{{tagInsert, "INSERT"}, {tagUpdate, "UPDATE"}, {tagDelete, "DELETE"}} {
		v, ok := field.Tag.Lookup(t.tag)
		if !ok {
			continue
		}
		if typ != "" {
			return errs.NewErrInvalidMarker(field.Name, t.tag, "只能声明一条语句")
		}
		typ, query = t.typ, v
	}
	if query == "" {
		return errs.NewErrInvalidMarker(field.Name, "insert/update/delete", "SQL 不能为空")
	}
	stmt, err := compileStmt(b.dialect, field.Name, typ, query, splitParams(field.Tag.Get(tagParams)))
	if err != nil {
		return err
	}
	if v, ok := field.Tag.Lookup(tagRefresh); ok {
		stmt.refresh, err = strconv.ParseBool(v)
		if err != nil {
			return errs.NewErrInvalidMarker(field.Name, tagRefresh, err.Error())
		}
	}
	e.b = b
	e.stmt = stmt
	return nil
}

func (e *Exec) Exec(ctx context.Context, args ...any) Result {
	if e.stmt == nil {
		return Result{err: errs.ErrUnbound}
	}
	bound, err := e.stmt.bindArgs(args)
	if err != nil {
		return Result{err: err}
	}
	qc := e.b.queryContext(e.stmt.typ, e.stmt.method, boundCall{stmt: e.stmt, args: bound})
	qc.refresh = qc.refresh || e.stmt.refresh
	return exec(ctx, e.b.db, e.b.core, qc)
}
