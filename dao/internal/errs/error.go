package errs

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var (
	ErrPointerOnly    = errors.New("dao: 只支持指向结构体的一级指针")
	ErrNoRows         = errors.New("dao: 没有数据")
	ErrInsertZeroRows = errors.New("dao: 插入0行数据")
	ErrEmptyBatch     = errors.New("dao: 批量操作的数据不能为空")
	ErrEmptyInList    = errors.New("dao: IN 查询的参数不能为空")
	ErrNoIdentifier   = errors.New("dao: 实体没有主键字段")
	ErrUnbound        = errors.New("dao: Dao 方法还没有绑定, 请先调用 Bind")
	ErrDaoPointerOnly = errors.New("dao: Bind 只支持指向结构体的指针")
	ErrMissingMapper  = errors.New("dao: Dao 结构体必须内嵌 dao.Mapper")
	ErrMixedParams    = errors.New("dao: SQL 模板不能同时使用 ? 和 :name 两种占位符")
	ErrStreamConsumed = errors.New("dao: 流式结果只能遍历一次")

	ErrUnsupportedOperation = errors.New("dao: 不支持的操作")
	ErrPartialBatch         = errors.New("dao: 批量操作部分失败")

	// 事务相关
	ErrNoTransaction = errors.New("dao: 当前没有活跃的事务")
	ErrRollbackOnly  = errors.New("dao: 事务已经被标记为只能回滚")
	ErrTxDone        = errors.New("dao: 事务已经结束")
)

func NewErrUnsupportedExpressionType(expr any) error {
	return fmt.Errorf("dao: 不支持的表达式 %v", expr)
}

func NewErrUnknownField(name string) error {
	return fmt.Errorf("dao: 未知字段 %s", name)
}

func NewErrUnknownColumn(name string) error {
	return fmt.Errorf("dao: 未知数据库列名 %s", name)
}

func NewErrInvalidTagContent(pair string) error {
	return fmt.Errorf("dao: 非法标签值 %s", pair)
}

func NewErrUnsupportedAssignable(expr any) error {
	return fmt.Errorf("dao: 不支持的赋值表达式类型 %v", expr)
}

func NewErrUnsupportedTable(table any) error {
	return fmt.Errorf("dao: 不支持的表类型 %v", table)
}

func NewErrReadOnlyField(name string) error {
	return fmt.Errorf("dao: 字段 %s 是只读字段或者主键, 不能写入", name)
}

func NewErrInvalidJoin(field string, reason string) error {
	return fmt.Errorf("dao: 关联字段 %s 定义错误, %s", field, reason)
}

func NewErrUnknownRelation(name string) error {
	return fmt.Errorf("dao: 未知关联字段 %s", name)
}

func NewErrArgsCount(method string, want, got int) error {
	return fmt.Errorf("dao: 方法 %s 需要 %d 个参数, 实际传入 %d 个", method, want, got)
}

func NewErrUnknownParam(method string, name string) error {
	return fmt.Errorf("dao: 方法 %s 的 SQL 引用了未声明的参数 %s", method, name)
}

func NewErrInvalidMarker(field string, marker string, reason string) error {
	return fmt.Errorf("dao: 字段 %s 的 %s 标记不合法, %s", field, marker, reason)
}

func NewErrInvalidEntityID(reason string) error {
	return fmt.Errorf("dao: 非法的主键, %s", reason)
}

func NewErrUnsupportedDialect(name string) error {
	return fmt.Errorf("dao: 不支持的方言 %s", name)
}

func NewErrScalarColumns(n int) error {
	return fmt.Errorf("dao: 标量结果只能有一列, 实际返回 %d 列", n)
}

// NewErrFailedToRollbackTx 把业务错误和回滚错误合并起来
func NewErrFailedToRollbackTx(bizErr error, rbErr error, panicked bool) error {
	if rbErr == nil {
		if panicked && bizErr == nil {
			return errors.New("dao: 事务执行过程中发生 panic, 已回滚")
		}
		return bizErr
	}
	return multierr.Append(bizErr,
		fmt.Errorf("dao: 回滚事务失败, 是否发生 panic: %t, 原因: %w", panicked, rbErr))
}
