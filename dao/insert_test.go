package dao

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/startdusk/go-dao/dao/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInserter_SQLite_Upsert(t *testing.T) {
	db := memoryDB(t)
	cases := []struct {
		name      string
		i         QueryBuilder
		wantErr   error
		wantQuery *Statement
	}{
		{
			name: "upsert",
			i: NewInserter[TestModel](db).Values(&TestModel{
				ID:        1,
				FirstName: "Tom",
				Age:       18,
				LastName:  &sql.NullString{String: "Jerry", Valid: true},
			}).Upsert().ConflictColumns("ID").Update(Assign("FirstName", "Ben"), Assign("Age", 17)),
			wantQuery: &Statement{
				SQL: "INSERT INTO `test_model`(`id`,`first_name`,`age`,`last_name`) VALUES (?,?,?,?) ON CONFLICT(`id`) DO UPDATE SET `first_name`=?,`age`=?;",
				Args: []any{
					int64(1), "Tom", int8(18), &sql.NullString{String: "Jerry", Valid: true},
					"Ben", 17,
				},
			},
		},
		{
			name: "upsert use insert value",
			i: NewInserter[TestModel](db).Values(&TestModel{
				ID:        1,
				FirstName: "Tom",
				Age:       18,
				LastName:  &sql.NullString{String: "Jerry", Valid: true},
			}).Upsert().ConflictColumns("ID").Update(C("FirstName"), C("Age")),
			wantQuery: &Statement{
				SQL: "INSERT INTO `test_model`(`id`,`first_name`,`age`,`last_name`) VALUES (?,?,?,?) ON CONFLICT(`id`) DO UPDATE SET `first_name`=excluded.`first_name`,`age`=excluded.`age`;",
				Args: []any{
					int64(1), "Tom", int8(18), &sql.NullString{String: "Jerry", Valid: true},
				},
			},
		},
		{
			name: "upsert unknown conflict column",
			i: NewInserter[TestModel](db).Values(&TestModel{ID: 1}).
				Upsert().ConflictColumns("Invalid").Update(C("Age")),
			wantErr: errs.NewErrUnknownField("Invalid"),
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			q, err := c.i.Build()
			assert.Equal(t, c.wantErr, err)
			if err != nil {
				return
			}
			assert.Equal(t, c.wantQuery, q)
		})
	}
}

func TestInserter_Build(t *testing.T) {
	db := memoryDB(t, DBWithDialect(DialectMySQL))
	cases := []struct {
		name      string
		i         QueryBuilder
		wantErr   error
		wantQuery *Statement
	}{
		{
			name:    "insert zero row",
			i:       NewInserter[TestModel](db).Values(),
			wantErr: errs.ErrInsertZeroRows,
		},
		{
			name: "insert row with unknown field",
			i: NewInserter[TestModel](db).Values(&TestModel{
				ID: 1,
			}).Columns("unknown"),
			wantErr: errs.NewErrUnknownField("unknown"),
		},
		{
			name:    "insert readonly field",
			i:       NewInserter[Article](db).Values(&Article{Title: "a"}).Columns("Title", "CreatedAt"),
			wantErr: errs.NewErrReadOnlyField("CreatedAt"),
		},
		{
			name: "skip auto id and readonly field",
			i:    NewInserter[Article](db).Values(&Article{ID: 9, Title: "a", AuthorID: 3}),
			wantQuery: &Statement{
				SQL:  "INSERT INTO `article`(`title`,`author_id`) VALUES (?,?);",
				Args: []any{"a", int64(3)},
			},
		},
		{
			name: "upsert",
			i: NewInserter[TestModel](db).Values(&TestModel{
				ID:        1,
				FirstName: "Tom",
				Age:       18,
				LastName:  &sql.NullString{String: "Jerry", Valid: true},
			}).Upsert().Update(Assign("FirstName", "Ben"), Assign("Age", 17)),
			wantQuery: &Statement{
				SQL: "INSERT INTO `test_model`(`id`,`first_name`,`age`,`last_name`) VALUES (?,?,?,?) ON DUPLICATE KEY UPDATE `first_name`=?,`age`=?;",
				Args: []any{
					int64(1), "Tom", int8(18), &sql.NullString{String: "Jerry", Valid: true},
					"Ben", 17,
				},
			},
		},
		{
			name: "insert single columns row",
			i: NewInserter[TestModel](db).Values(&TestModel{
				ID:        1,
				FirstName: "Tom",
				Age:       18,
			}).Columns("ID", "FirstName"),
			wantQuery: &Statement{
				SQL:  "INSERT INTO `test_model`(`id`,`first_name`) VALUES (?,?);",
				Args: []any{int64(1), "Tom"},
			},
		},
		{
			name: "insert multiple columns row",
			i: NewInserter[TestModel](db).Values(
				&TestModel{ID: 1, FirstName: "Tom"},
				&TestModel{ID: 2, FirstName: "Tom1"},
			).Columns("ID", "FirstName"),
			wantQuery: &Statement{
				SQL: "INSERT INTO `test_model`(`id`,`first_name`) VALUES (?,?),(?,?);",
				Args: []any{
					int64(1), "Tom",
					int64(2), "Tom1",
				},
			},
		},
		{
			name: "insert multiple row",
			i: NewInserter[TestModel](db).Values(&TestModel{
				ID:        1,
				FirstName: "Tom",
				Age:       18,
				LastName:  &sql.NullString{String: "Jerry", Valid: true},
			}, &TestModel{
				ID:        2,
				FirstName: "Tom1",
				Age:       19,
				LastName:  &sql.NullString{String: "Jerry1", Valid: true},
			}),
			wantQuery: &Statement{
				SQL: "INSERT INTO `test_model`(`id`,`first_name`,`age`,`last_name`) VALUES (?,?,?,?),(?,?,?,?);",
				Args: []any{
					int64(1), "Tom", int8(18), &sql.NullString{String: "Jerry", Valid: true},
					int64(2), "Tom1", int8(19), &sql.NullString{String: "Jerry1", Valid: true},
				},
			},
		},
		{
			name: "upsert-update multiple row",
			i: NewInserter[TestModel](db).Values(
				&TestModel{ID: 1, FirstName: "Tom", Age: 18},
				&TestModel{ID: 2, FirstName: "Tom1", Age: 19},
			).Columns("ID", "FirstName", "Age").Upsert().Update(C("FirstName"), C("Age")),
			wantQuery: &Statement{
				SQL: "INSERT INTO `test_model`(`id`,`first_name`,`age`) VALUES (?,?,?),(?,?,?) ON DUPLICATE KEY UPDATE `first_name`=VALUES(`first_name`),`age`=VALUES(`age`);",
				Args: []any{
					int64(1), "Tom", int8(18),
					int64(2), "Tom1", int8(19),
				},
			},
		},
		{
			name: "named template",
			i:    NewInserter[Article](db).Named(),
			wantQuery: &Statement{
				SQL: "INSERT INTO `article`(`title`,`author_id`) VALUES (:Title,:AuthorID);",
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			q, err := c.i.Build()
			assert.Equal(t, c.wantErr, err)
			if err != nil {
				return
			}
			assert.Equal(t, c.wantQuery, q)
		})
	}
}

func TestInserter_Exec(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := MustOpenDB(mockDB, DBWithDialect(DialectMySQL))

	dbErr := errors.New("db error")
	cases := []struct {
		name     string
		i        *Inserter[TestModel]
		wantErr  error
		affected int64
	}{
		{
			name: "db error",
			i: func() *Inserter[TestModel] {
				mock.ExpectExec("INSERT INTO .*").WillReturnError(dbErr)
				return NewInserter[TestModel](db).Values(&TestModel{})
			}(),
			wantErr: dbErr,
		},
		{
			name: "query error",
			i: func() *Inserter[TestModel] {
				return NewInserter[TestModel](db).Values(&TestModel{}).Columns("Invalid")
			}(),
			wantErr: errs.NewErrUnknownField("Invalid"),
		},
		{
			name: "exec",
			i: func() *Inserter[TestModel] {
				res := driver.RowsAffected(1)
				mock.ExpectExec("INSERT INTO .*").WillReturnResult(res)
				return NewInserter[TestModel](db).Values(&TestModel{})
			}(),
			affected: 1,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := c.i.Exec(context.Background())
			affected, err := res.RowsAffected()
			if c.wantErr != nil {
				assert.ErrorContains(t, err, c.wantErr.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.affected, affected)
		})
	}
}
