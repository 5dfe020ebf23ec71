package safedml

import (
	"context"
	"fmt"
	"strings"

	"github.com/startdusk/go-dao/dao"
)

// 强制要执行的SQL语句
// 1.SELECT, UPDATE, DELETE必须带WHERE
// 2.或者UPDATE, DELETE必须带WHERE(SELECT要不要带自己抉择)
type MiddlewareBuilder struct {
	checkSelect bool
}

func NewMiddlewareBuilder() *MiddlewareBuilder {
	return &MiddlewareBuilder{}
}

// CheckSelect SELECT 也必须带 WHERE
func (m *MiddlewareBuilder) CheckSelect() *MiddlewareBuilder {
	m.checkSelect = true
	return m
}

func (m MiddlewareBuilder) Build() dao.Middleware {
	return func(next dao.Handler) dao.Handler {
		return func(ctx context.Context, qc *dao.QueryContext) *dao.QueryResult {
			switch qc.Type {
			case "UPDATE", "DELETE":
			case "SELECT":
				if !m.checkSelect {
					return next(ctx, qc)
				}
			default:
				return next(ctx, qc)
			}
			q, err := qc.Builder.Build()
			if err != nil {
				return &dao.QueryResult{
					Err: err,
				}
			}
			if !strings.Contains(strings.ToUpper(q.SQL), "WHERE") {
				return &dao.QueryResult{
					Err: fmt.Errorf("dao: 禁止执行没有WHERE的 %s 语句", qc.Type),
				}
			}
			return next(ctx, qc)
		}
	}
}
