package valuer

import (
	"database/sql"
	"reflect"

	"github.com/startdusk/go-dao/dao/internal/errs"
	"github.com/startdusk/go-dao/dao/model"
)

type reflectValue struct {
	model *model.Model

	// val 对应 泛型 T 的指针
	val reflect.Value
}

// 确保类型变更 我们能得到通知
var _ Creator = NewReflectValue

func NewReflectValue(model *model.Model, val any) Value {
	return reflectValue{
		model: model,
		val:   reflect.ValueOf(val).Elem(),
	}
}

func (r reflectValue) Field(name string) (any, error) {
	fd, ok := r.model.FieldMap[name]
	if !ok {
		return nil, errs.NewErrUnknownField(name)
	}
	return r.val.Field(fd.Index).Interface(), nil
}

func (r reflectValue) SetField(name string, val any) error {
	fd, ok := r.model.FieldMap[name]
	if !ok {
		return errs.NewErrUnknownField(name)
	}
	return assign(r.val.Field(fd.Index), val)
}

func (r reflectValue) SetColumns(rows *sql.Rows) error {
	// 利用 columns 来解决 select 的列顺序 和 列字段类型的问题
	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	fields, err := resolveColumns(r.model, columns)
	if err != nil {
		return err
	}

	// 反射创建字段类型的实例, 扫描完成之后再设置回结构体
	vals := make([]any, 0, len(columns))
	valElems := make([]reflect.Value, 0, len(columns))
	for _, fd := range fields {
		val := reflect.New(fd.Type)
		valElems = append(valElems, val.Elem())
		vals = append(vals, scanTarget(fd, val.Elem()))
	}

	if err := rows.Scan(vals...); err != nil {
		return err
	}

	for i, fd := range fields {
		if fd.Transform != nil {
			continue
		}
		r.val.Field(fd.Index).Set(valElems[i])
	}
	if err := applyTransforms(fields, vals, func(fd *model.Field) reflect.Value {
		return r.val.Field(fd.Index)
	}); err != nil {
		return err
	}
	return rows.Err()
}
