package readonly

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/startdusk/go-dao/dao"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadOnly(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := dao.MustOpenDB(mockDB, dao.DBWithMiddlewares(NewMiddlewareBuilder().Build()))
	ctx := context.Background()

	cases := []struct {
		name string
		exec func() error
	}{
		{
			name: "insert",
			exec: func() error {
				return dao.NewInserter[TestModel](db).Values(&TestModel{ID: 1}).Exec(ctx).Err()
			},
		},
		{
			name: "update",
			exec: func() error {
				return dao.NewUpdater[TestModel](db).Set(dao.Assign("Name", "Tom")).Exec(ctx).Err()
			},
		},
		{
			name: "delete",
			exec: func() error {
				return dao.NewDeleter[TestModel](db).Where(dao.C("ID").Eq(1)).Exec(ctx).Err()
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.exec()
			assert.ErrorIs(t, err, dao.ErrUnsupportedOperation)
			var uoe *dao.UnsupportedOperationError
			require.ErrorAs(t, err, &uoe)
			assert.Equal(t, "readonly", uoe.Mode)
		})
	}

	mock.ExpectQuery("SELECT .*").WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Tom"))
	got, err := dao.NewSelector[TestModel](db).Where(dao.C("ID").Eq(1)).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Tom", got.Name)
	// 被拒绝的写操作没有发出 SQL
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoDelete(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := dao.MustOpenDB(mockDB, dao.DBWithMiddlewares(NewMiddlewareBuilder("DELETE").Build()))
	ctx := context.Background()

	mock.ExpectExec("UPDATE .*").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, dao.NewUpdater[TestModel](db).Set(dao.Assign("Name", "Tom")).Exec(ctx).Err())
	assert.ErrorIs(t, dao.NewDeleter[TestModel](db).Exec(ctx).Err(), dao.ErrUnsupportedOperation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type TestModel struct {
	ID   int64
	Name string
}
