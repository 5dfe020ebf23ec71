package valuer

import (
	"database/sql"
	"reflect"
	"unsafe"

	"github.com/startdusk/go-dao/dao/internal/errs"
	"github.com/startdusk/go-dao/dao/model"
)

type unsafeValue struct {
	model *model.Model

	// 结构体的起始地址
	address unsafe.Pointer
}

// 确保类型变更 我们能得到通知
var _ Creator = NewUnsafeValue

func NewUnsafeValue(model *model.Model, val any) Value {
	return unsafeValue{
		model:   model,
		address: reflect.ValueOf(val).UnsafePointer(),
	}
}

// fieldAt 字段地址 = 起始地址 + 偏移量
func (u unsafeValue) fieldAt(fd *model.Field) reflect.Value {
	fdAddress := unsafe.Pointer(uintptr(u.address) + fd.Offset)
	return reflect.NewAt(fd.Type, fdAddress).Elem()
}

func (u unsafeValue) Field(name string) (any, error) {
	fd, ok := u.model.FieldMap[name]
	if !ok {
		return nil, errs.NewErrUnknownField(name)
	}
	return u.fieldAt(fd).Interface(), nil
}

func (u unsafeValue) SetField(name string, val any) error {
	fd, ok := u.model.FieldMap[name]
	if !ok {
		return errs.NewErrUnknownField(name)
	}
	return assign(u.fieldAt(fd), val)
}

func (u unsafeValue) SetColumns(rows *sql.Rows) error {
	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	fields, err := resolveColumns(u.model, columns)
	if err != nil {
		return err
	}

	// 直接在字段的地址上扫描, 不需要再拷贝一次
	vals := make([]any, 0, len(columns))
	for _, fd := range fields {
		vals = append(vals, scanTarget(fd, u.fieldAt(fd)))
	}

	if err := rows.Scan(vals...); err != nil {
		return err
	}
	if err := applyTransforms(fields, vals, u.fieldAt); err != nil {
		return err
	}
	return rows.Err()
}
