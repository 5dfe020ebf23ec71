package errs

import (
	"fmt"
	"strings"
)

// UnsupportedOperationError 表示 Dao 的访问模式不允许这个操作
type UnsupportedOperationError struct {
	Dao    string
	Method string
	Op     string
	Mode   string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("dao: %s 的访问模式是 %s, 不允许在 %s 中执行 %s", e.Dao, e.Mode, e.Method, e.Op)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}

// ExecutionError 包装数据库驱动返回的错误, 保留出错的 SQL
type ExecutionError struct {
	SQL  string
	Args []any
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("dao: 执行 SQL 失败 [%s], 原因: %s", e.SQL, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError 在 err 为 nil 或者已经是 ExecutionError 的时候原样返回
func NewExecutionError(query string, args []any, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*ExecutionError); ok {
		return err
	}
	return &ExecutionError{SQL: query, Args: args, Err: err}
}

// PartialBatchError 表示批量操作在某个 chunk 中途失败
// Completed 是之前已经完成的 chunk 的结果, ChunkCompleted 是失败 chunk 里面已经执行成功的行
type PartialBatchError struct {
	Op             string
	ChunkIndex     int
	FailedIndex    int
	Offset         int
	Completed      []int64
	ChunkCompleted []int64
	Err            error
}

func (e *PartialBatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "dao: 批量 %s 在第 %d 个 chunk 的第 %d 行失败(全局第 %d 行)",
		e.Op, e.ChunkIndex, e.FailedIndex, e.Offset)
	fmt.Fprintf(&sb, ", 已完成 %d 行, 原因: %s", len(e.Completed)+len(e.ChunkCompleted), e.Err)
	return sb.String()
}

func (e *PartialBatchError) Unwrap() error {
	return e.Err
}

func (e *PartialBatchError) Is(target error) bool {
	return target == ErrPartialBatch
}

// TransactionStateError 表示在错误的事务状态下调用了 Commit 或者 Rollback
type TransactionStateError struct {
	TxID string
	Op   string
	Err  error
}

func (e *TransactionStateError) Error() string {
	return fmt.Sprintf("dao: 事务 %s 无法 %s, 原因: %s", e.TxID, e.Op, e.Err)
}

func (e *TransactionStateError) Unwrap() error {
	return e.Err
}
