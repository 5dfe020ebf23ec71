package querylog

import (
	"context"

	"github.com/startdusk/go-dao/dao"
	"go.uber.org/zap"
)

type MiddlewareBuilder struct {
	logger *zap.Logger
	// SQL参数存在敏感数据不应该被打印出来, 默认不打印
	logArgs bool
}

func NewMiddlewareBuilder(logger *zap.Logger) *MiddlewareBuilder {
	return &MiddlewareBuilder{
		logger: logger,
	}
}

// LogArgs 同时打印参数
func (m *MiddlewareBuilder) LogArgs() *MiddlewareBuilder {
	m.logArgs = true
	return m
}

func (m MiddlewareBuilder) Build() dao.Middleware {
	return func(next dao.Handler) dao.Handler {
		return func(ctx context.Context, qc *dao.QueryContext) *dao.QueryResult {
			q, err := qc.Builder.Build()
			if err != nil {
				return &dao.QueryResult{
					Err: err,
				}
			}
			fields := make([]zap.Field, 0, 4)
			fields = append(fields, zap.String("type", qc.Type), zap.String("sql", q.SQL))
			if m.logArgs {
				fields = append(fields, zap.Any("args", q.Args))
			}
			if qc.Dao != "" {
				fields = append(fields, zap.String("dao", qc.Dao), zap.String("method", qc.Method))
			}
			m.logger.Debug("dao: 执行 SQL", fields...)
			return next(ctx, qc)
		}
	}
}
