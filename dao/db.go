package dao

import (
	"context"
	"database/sql"
	"time"

	"github.com/startdusk/go-dao/dao/internal/valuer"
	"github.com/startdusk/go-dao/dao/model"
	"go.uber.org/zap"
)

const defaultMaxBatchSize = 200

var (
	_ Session = &DB{}
)

type DBOption func(db *DB)

type DB struct {
	core
	db *sql.DB

	// 批量操作每个 chunk 的最大行数
	maxBatchSize int
	// Dao 上 cache 标记没有写的配置使用这里的默认值
	cacheDefaults CacheConfig
	perfDefaults  PerfConfig
	perfHook      PerfHook
}

func Open(driver string, dataSourceName string, opts ...DBOption) (*DB, error) {
	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, err
	}
	return OpenDB(db, opts...)
}

func OpenDB(db *sql.DB, opts ...DBOption) (*DB, error) {
	newDB := &DB{
		core: core{
			r:       model.NewRegistry(),
			creator: valuer.NewUnsafeValue,
			dialect: DialectMySQL,
			logger:  zap.NewNop(),
		},
		db:            db,
		maxBatchSize:  defaultMaxBatchSize,
		cacheDefaults: defaultCacheConfig,
	}
	newDB.perfHook = logPerfHook(newDB)

	for _, opt := range opts {
		opt(newDB)
	}
	return newDB, nil
}

func MustOpenDB(db *sql.DB, opts ...DBOption) *DB {
	newDB, err := OpenDB(db, opts...)
	if err != nil {
		panic(err)
	}
	return newDB
}

func MustOpen(driver string, dataSourceName string, opts ...DBOption) *DB {
	newDB, err := Open(driver, dataSourceName, opts...)
	if err != nil {
		panic(err)
	}
	return newDB
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

func (db *DB) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

func (db *DB) prepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return db.db.PrepareContext(ctx, query)
}

func (db *DB) getCore() core {
	return db.core
}

func DBUseReflect() DBOption {
	return func(db *DB) {
		db.creator = valuer.NewReflectValue
	}
}

func DBWithRegistry(r model.Registry) DBOption {
	return func(db *DB) {
		db.r = r
	}
}

func DBWithDialect(dialect Dialect) DBOption {
	return func(db *DB) {
		db.dialect = dialect
	}
}

func DBWithMiddlewares(mdls ...Middleware) DBOption {
	return func(db *DB) {
		db.mdls = append(db.mdls, mdls...)
	}
}

func DBWithLogger(logger *zap.Logger) DBOption {
	return func(db *DB) {
		db.logger = logger
	}
}

func DBWithMaxBatchSize(size int) DBOption {
	return func(db *DB) {
		if size > 0 {
			db.maxBatchSize = size
		}
	}
}

// DBWithPerfHook 替换 Dao 上 perf 标记触发之后的处理逻辑, 默认是打日志
func DBWithPerfHook(hook PerfHook) DBOption {
	return func(db *DB) {
		db.perfHook = hook
	}
}

// DBWithPerfDefaults 没有 perf 标记的 Dao 使用这个阈值
func DBWithPerfDefaults(perf PerfConfig) DBOption {
	return func(db *DB) {
		db.perfDefaults = perf
	}
}

func DBWithCacheDefaults(capacity int, evictDelay time.Duration) DBOption {
	return func(db *DB) {
		if capacity > 0 {
			db.cacheDefaults.Capacity = capacity
		}
		if evictDelay > 0 {
			db.cacheDefaults.EvictDelay = evictDelay
		}
	}
}
