package querylog

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/startdusk/go-dao/dao"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestQueryLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := NewMiddlewareBuilder(zap.New(core)).LogArgs()

	db, err := dao.Open("sqlite3", "file:test_dao_querylog?cache=shared&mode=memory",
		dao.DBWithDialect(dao.DialectSQLite),
		dao.DBWithMiddlewares(m.Build()))
	require.NoError(t, err)
	defer db.Close()

	_, _ = dao.NewSelector[TestModel](db).Where(dao.C("ID").Eq(12)).Get(context.Background())
	_ = dao.NewInserter[TestModel](db).Values(&TestModel{ID: 18}).Columns("ID").Exec(context.Background())

	entries := logs.FilterMessage("dao: 执行 SQL").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "SELECT * FROM `test_model` WHERE `id` = ?;", entries[0].ContextMap()["sql"])
	assert.Equal(t, []any{12}, entries[0].ContextMap()["args"])
	assert.Equal(t, "INSERT INTO `test_model`(`id`) VALUES (?);", entries[1].ContextMap()["sql"])
	assert.Equal(t, []any{int64(18)}, entries[1].ContextMap()["args"])
	assert.Equal(t, "INSERT", entries[1].ContextMap()["type"])
}

func TestQueryLog_NoArgs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := NewMiddlewareBuilder(zap.New(core))

	db, err := dao.Open("sqlite3", "file:test_dao_querylog_noargs?cache=shared&mode=memory",
		dao.DBWithDialect(dao.DialectSQLite),
		dao.DBWithMiddlewares(m.Build()))
	require.NoError(t, err)
	defer db.Close()

	_, _ = dao.NewSelector[TestModel](db).Where(dao.C("ID").Eq(12)).Get(context.Background())
	entries := logs.All()
	require.Len(t, entries, 1)
	_, ok := entries[0].ContextMap()["args"]
	assert.False(t, ok)
}

type TestModel struct {
	ID        int64
	FirstName string
	Age       int8
	LastName  *sql.NullString
}
