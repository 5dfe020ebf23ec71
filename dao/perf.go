package dao

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type PerfLevel uint8

const (
	PerfWarn PerfLevel = iota + 1
	PerfError
)

func (l PerfLevel) String() string {
	switch l {
	case PerfWarn:
		return "warn"
	case PerfError:
		return "error"
	default:
		return "none"
	}
}

// PerfConfig 是 Dao 上 perf 标记的阈值, 0 表示不检查
type PerfConfig struct {
	Warn  time.Duration
	Error time.Duration
}

func (c PerfConfig) level(d time.Duration) PerfLevel {
	switch {
	case c.Error > 0 && d >= c.Error:
		return PerfError
	case c.Warn > 0 && d >= c.Warn:
		return PerfWarn
	default:
		return 0
	}
}

func (c PerfConfig) enabled() bool {
	return c.Warn > 0 || c.Error > 0
}

type PerfEvent struct {
	Dao      string
	Method   string
	Type     string
	SQL      string
	Args     []any
	Duration time.Duration
	Level    PerfLevel
	Err      error
}

// PerfHook 在 Dao 方法执行时间超过阈值的时候被调用
type PerfHook func(ctx context.Context, evt PerfEvent)

// logPerfHook 每次都读取 db.logger, 所以 DBWithLogger 的顺序无所谓
func logPerfHook(db *DB) PerfHook {
	return func(ctx context.Context, evt PerfEvent) {
		fields := []zap.Field{
			zap.String("dao", evt.Dao),
			zap.String("method", evt.Method),
			zap.String("sql", evt.SQL),
			zap.Any("args", evt.Args),
			zap.Duration("duration", evt.Duration),
		}
		if evt.Err != nil {
			fields = append(fields, zap.Error(evt.Err))
		}
		if evt.Level == PerfError {
			db.logger.Error("dao: 慢查询", fields...)
			return
		}
		db.logger.Warn("dao: 慢查询", fields...)
	}
}

func perfMiddleware(cfg PerfConfig, hook PerfHook) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, qc *QueryContext) *QueryResult {
			start := time.Now()
			res := next(ctx, qc)
			duration := time.Since(start)
			lvl := cfg.level(duration)
			if lvl == 0 || hook == nil {
				return res
			}
			evt := PerfEvent{
				Dao:      qc.Dao,
				Method:   qc.Method,
				Type:     qc.Type,
				Duration: duration,
				Level:    lvl,
				Err:      res.Err,
			}
			if q, err := qc.Builder.Build(); err == nil {
				evt.SQL = q.SQL
				evt.Args = q.Args
			}
			hook(ctx, evt)
			return res
		}
	}
}
