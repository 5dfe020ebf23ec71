package safedml

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/startdusk/go-dao/dao"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeDML(t *testing.T) {
	cases := []struct {
		name        string
		checkSelect bool
		mock        func(mock sqlmock.Sqlmock)
		exec        func(db *dao.DB) error
		wantErr     bool
	}{
		{
			name: "delete without where",
			exec: func(db *dao.DB) error {
				return dao.NewDeleter[TestModel](db).Exec(context.Background()).Err()
			},
			wantErr: true,
		},
		{
			name: "update without where",
			exec: func(db *dao.DB) error {
				return dao.NewUpdater[TestModel](db).Set(dao.Assign("Name", "a")).Exec(context.Background()).Err()
			},
			wantErr: true,
		},
		{
			name: "delete with where",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE .*").WillReturnResult(sqlmock.NewResult(0, 1))
			},
			exec: func(db *dao.DB) error {
				return dao.NewDeleter[TestModel](db).Where(dao.C("ID").Eq(1)).Exec(context.Background()).Err()
			},
		},
		{
			name: "select without where",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT .*").WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			exec: func(db *dao.DB) error {
				_, err := dao.NewSelector[TestModel](db).GetMulti(context.Background())
				return err
			},
		},
		{
			name:        "check select",
			checkSelect: true,
			exec: func(db *dao.DB) error {
				_, err := dao.NewSelector[TestModel](db).GetMulti(context.Background())
				return err
			},
			wantErr: true,
		},
		{
			name: "insert",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT .*").WillReturnResult(sqlmock.NewResult(1, 1))
			},
			exec: func(db *dao.DB) error {
				return dao.NewInserter[TestModel](db).Values(&TestModel{Name: "a"}).Exec(context.Background()).Err()
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mockDB, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer mockDB.Close()

			m := NewMiddlewareBuilder()
			if c.checkSelect {
				m = m.CheckSelect()
			}
			db := dao.MustOpenDB(mockDB, dao.DBWithMiddlewares(m.Build()))
			if c.mock != nil {
				c.mock(mock)
			}
			err = c.exec(db)
			if c.wantErr {
				assert.ErrorContains(t, err, "WHERE")
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

type TestModel struct {
	ID   int64
	Name string
}
