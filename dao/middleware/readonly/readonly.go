package readonly

import (
	"context"

	"github.com/startdusk/go-dao/dao"
)

// MiddlewareBuilder 整个 DB 禁用某些写操作, 比如只读副本禁用所有写操作
// 和 Dao 上的 access 标记一样, 在发出 SQL 之前就返回错误
type MiddlewareBuilder struct {
	denied map[string]struct{}
}

// NewMiddlewareBuilder 默认禁用 INSERT, UPDATE 和 DELETE
func NewMiddlewareBuilder(ops ...string) *MiddlewareBuilder {
	if len(ops) == 0 {
		ops = []string{"INSERT", "UPDATE", "DELETE"}
	}
	denied := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		denied[op] = struct{}{}
	}
	return &MiddlewareBuilder{
		denied: denied,
	}
}

func (m MiddlewareBuilder) Build() dao.Middleware {
	return func(next dao.Handler) dao.Handler {
		return func(ctx context.Context, qc *dao.QueryContext) *dao.QueryResult {
			if _, ok := m.denied[qc.Type]; !ok {
				return next(ctx, qc)
			}
			return &dao.QueryResult{
				Err: &dao.UnsupportedOperationError{
					Dao:    qc.Dao,
					Method: qc.Method,
					Op:     qc.Type,
					Mode:   "readonly",
				},
			}
		}
	}
}
