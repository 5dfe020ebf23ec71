package dao

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

var memoryDBSeq atomic.Int64

// memoryDB 每次返回一个独立的 sqlite 内存库
func memoryDB(t *testing.T, opts ...DBOption) *DB {
	dsn := fmt.Sprintf("file:test_dao_%d?mode=memory&cache=shared", memoryDBSeq.Add(1))
	opts = append([]DBOption{DBWithDialect(DialectSQLite)}, opts...)
	db, err := Open("sqlite3", dsn, opts...)
	require.NoError(t, err)
	// 共享缓存的内存库在最后一个连接关闭之后就没了
	db.db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func mustExec(t *testing.T, db *DB, query string) {
	_, err := db.db.Exec(query)
	require.NoError(t, err)
}

type TestModel struct {
	ID        int64
	FirstName string
	Age       int8
	LastName  *sql.NullString
}

// fileDB 事务的测试需要多个连接, 内存库做不到
func fileDB(t *testing.T, opts ...DBOption) *DB {
	dsn := "file:" + filepath.Join(t.TempDir(), "dao.db") + "?_busy_timeout=5000"
	opts = append([]DBOption{DBWithDialect(DialectSQLite)}, opts...)
	db, err := Open("sqlite3", dsn, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

const testSchema = `
CREATE TABLE IF NOT EXISTS author (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS article (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	author_id INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS profile (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	author_id INTEGER NOT NULL,
	bio TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS membership (
	group_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	role TEXT NOT NULL,
	PRIMARY KEY (group_id, user_id)
);
`

func createSchema(t *testing.T, db *DB) {
	mustExec(t, db, testSchema)
}

type Author struct {
	ID   int64 `orm:"id=auto"`
	Name string

	Articles []*Article `orm:"join=ID,ref=AuthorID"`
	Profile  *Profile   `orm:"join=ID,ref=AuthorID"`
}

type Article struct {
	ID        int64 `orm:"id=auto"`
	Title     string
	AuthorID  int64
	CreatedAt time.Time `orm:"readonly=true"`
}

type Profile struct {
	ID       int64 `orm:"id=auto"`
	AuthorID int64
	Bio      string
}

type Membership struct {
	GroupID int64 `orm:"id=true"`
	UserID  int64 `orm:"id=true"`
	Role    string
}

// countingMiddleware 统计某一类方法发出的查询次数
func countingMiddleware(match func(qc *QueryContext) bool) (Middleware, *atomic.Int64) {
	cnt := &atomic.Int64{}
	return func(next Handler) Handler {
		return func(ctx context.Context, qc *QueryContext) *QueryResult {
			if match(qc) {
				cnt.Add(1)
			}
			return next(ctx, qc)
		}
	}, cnt
}
