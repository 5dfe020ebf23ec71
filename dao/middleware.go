package dao

import (
	"context"
	"reflect"

	"github.com/startdusk/go-dao/dao/model"
)

type QueryContext struct {
	// Type 声明查询类型 即 SELECT, UPDATE, DELETE 和 INSERT
	Type string

	// Builder 使用的时候, 大多数情况下你需要转换到具体的类型才能篡改查询
	Builder QueryBuilder

	Model *model.Model

	// Dao 和 Method 只有通过 Dao 分发的调用才有
	Dao    string
	Method string

	// ResultType 是 QueryResult.Result 的类型, 缓存反序列化的时候需要
	ResultType reflect.Type

	cacheable bool
	refresh   bool
}

type Middleware func(next Handler) Handler

type Handler func(ctx context.Context, qc *QueryContext) *QueryResult

type QueryResult struct {
	// Result 在不同的查询里面, 类型是不同的
	// Get 里面, 这会是单个结果 *T
	// List 里面, 这会是一个切片 []*T
	// 批量操作里面是 []int64
	// 其他情况下, 它是Result类型
	Result any
	Err    error
}
