package slowquery

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/startdusk/go-dao/dao"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSlowQuery(t *testing.T) {
	cases := []struct {
		name      string
		threshold time.Duration
		delay     time.Duration
		wantLogs  int
	}{
		{
			name:      "slow",
			threshold: time.Millisecond,
			delay:     20 * time.Millisecond,
			wantLogs:  1,
		},
		{
			name:      "fast",
			threshold: time.Hour,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mockDB, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer mockDB.Close()

			core, logs := observer.New(zapcore.WarnLevel)
			m := NewMiddlewareBuilder(c.threshold, zap.New(core))
			db := dao.MustOpenDB(mockDB, dao.DBWithMiddlewares(m.Build()))

			mock.ExpectQuery("SELECT .*").
				WillDelayFor(c.delay).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			_, err = dao.NewSelector[TestModel](db).Where(dao.C("ID").Eq(1)).Get(context.Background())
			require.NoError(t, err)

			entries := logs.FilterMessage("dao: 慢查询").All()
			require.Len(t, entries, c.wantLogs)
			if c.wantLogs > 0 {
				assert.Equal(t, "SELECT * FROM `test_model` WHERE `id` = ?;", entries[0].ContextMap()["sql"])
			}
		})
	}
}

type TestModel struct {
	ID int64
}
