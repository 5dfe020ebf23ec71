package prometheus

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/startdusk/go-dao/dao"
)

type MiddlewareBuilder struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string

	// 为空的时候使用 prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

func (m MiddlewareBuilder) Build() dao.Middleware {
	vector := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:      m.Name,
		Subsystem: m.Subsystem,
		Namespace: m.Namespace,
		Help:      m.Help,

		// 设置指标 如 0.5: 0.01 0.5是一个指标，0.01是一个误差值，表示0.5上下0.01 即误差范围为 0.49-0.51
		Objectives: map[float64]float64{
			0.5:   0.01,
			0.75:  0.01,
			0.90:  0.01,
			0.99:  0.001,
			0.999: 0.0001,
		},
	}, []string{
		"type",  // SELECT, INSERT, UPDATE, DELETE, RAW
		"table", // 表名
	})
	errCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      m.Name + "_errors",
		Subsystem: m.Subsystem,
		Namespace: m.Namespace,
		Help:      m.Help,
	}, []string{"type", "table"})

	reg := m.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(vector, errCounter)

	return func(next dao.Handler) dao.Handler {
		return func(ctx context.Context, qc *dao.QueryContext) *dao.QueryResult {
			startTime := time.Now()
			res := next(ctx, qc)
			table := ""
			if qc.Model != nil {
				table = qc.Model.TableName
			}
			// 记录执行时间
			vector.WithLabelValues(qc.Type, table).Observe(float64(time.Since(startTime).Milliseconds()))
			if res.Err != nil && res.Err != dao.ErrNoRows {
				errCounter.WithLabelValues(qc.Type, table).Inc()
			}
			return res
		}
	}
}
