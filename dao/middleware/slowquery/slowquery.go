package slowquery

import (
	"context"
	"time"

	"github.com/startdusk/go-dao/dao"
	"go.uber.org/zap"
)

// MiddlewareBuilder 是整个 DB 的慢查询日志
// Dao 上的 perf 标记只对一个 Dao 生效
type MiddlewareBuilder struct {
	logger *zap.Logger

	// 慢查询阈值, 设置需要考虑公司实际情况, 如100ms
	threshold time.Duration
}

func NewMiddlewareBuilder(threshold time.Duration, logger *zap.Logger) *MiddlewareBuilder {
	return &MiddlewareBuilder{
		logger:    logger,
		threshold: threshold,
	}
}

func (m MiddlewareBuilder) Build() dao.Middleware {
	return func(next dao.Handler) dao.Handler {
		return func(ctx context.Context, qc *dao.QueryContext) *dao.QueryResult {
			startTime := time.Now()
			defer func() {
				duration := time.Since(startTime)
				// 不是慢查询
				if duration <= m.threshold {
					return
				}

				// 是慢查询, 记录一下, 不处理错误(如果错误了, 证明SQL都没构造出来)
				q, err := qc.Builder.Build()
				if err == nil {
					// SQL参数存在敏感数据不应该被打印出来
					m.logger.Warn("dao: 慢查询",
						zap.String("sql", q.SQL),
						zap.Duration("duration", duration),
						zap.String("dao", qc.Dao),
						zap.String("method", qc.Method))
				}
			}()

			// 不调用next就是dry run
			return next(ctx, qc)
		}
	}
}
