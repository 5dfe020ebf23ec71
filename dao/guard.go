package dao

import (
	"context"

	"github.com/startdusk/go-dao/dao/internal/errs"
)

// AccessMode 限制 Dao 可以执行的写操作
type AccessMode uint8

const (
	AccessReadWrite AccessMode = iota
	// AccessReadOnly 不允许 INSERT, UPDATE 和 DELETE
	AccessReadOnly
	// AccessNoUpdate 允许 INSERT, 不允许 UPDATE 和 DELETE
	AccessNoUpdate
)

func (a AccessMode) String() string {
	switch a {
	case AccessReadOnly:
		return "readonly"
	case AccessNoUpdate:
		return "noupdate"
	default:
		return "rw"
	}
}

func parseAccessMode(s string) (AccessMode, bool) {
	switch s {
	case "", "rw":
		return AccessReadWrite, true
	case "readonly":
		return AccessReadOnly, true
	case "noupdate":
		return AccessNoUpdate, true
	}
	return 0, false
}

func (a AccessMode) allows(typ string) bool {
	switch a {
	case AccessReadOnly:
		return !isWrite(typ)
	case AccessNoUpdate:
		return typ != "UPDATE" && typ != "DELETE"
	default:
		return true
	}
}

func isWrite(typ string) bool {
	return typ == "INSERT" || typ == "UPDATE" || typ == "DELETE"
}

// accessGuard 在发出任何 SQL 之前拒绝不允许的写操作
func accessGuard(dao string, mode AccessMode) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, qc *QueryContext) *QueryResult {
			if !mode.allows(qc.Type) {
				err := &errs.UnsupportedOperationError{
					Dao:    dao,
					Method: qc.Method,
					Op:     qc.Type,
					Mode:   mode.String(),
				}
				return &QueryResult{Err: err, Result: Result{err: err}}
			}
			return next(ctx, qc)
		}
	}
}
