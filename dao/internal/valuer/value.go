package valuer

import (
	"database/sql"
	"fmt"
	"reflect"

	"github.com/startdusk/go-dao/dao/internal/errs"
	"github.com/startdusk/go-dao/dao/model"
)

// Value 是对结构体实例的内部抽象
type Value interface {
	// Field 返回字段对应的值
	Field(name string) (any, error)
	// SetField 给字段赋值, 类型不一致的时候会尝试转换
	SetField(name string, val any) error
	// SetColumns 把当前行的数据写到结构体里
	SetColumns(rows *sql.Rows) error
}

type Creator func(model *model.Model, entity any) Value

// resolveColumns 先按列名匹配字段, 匹配不上的列(比如表达式列)按位置匹配
func resolveColumns(m *model.Model, columns []string) ([]*model.Field, error) {
	fields := make([]*model.Field, len(columns))
	used := make(map[*model.Field]struct{}, len(columns))
	for i, col := range columns {
		if fd, ok := m.ColumnMap[col]; ok {
			fields[i] = fd
			used[fd] = struct{}{}
		}
	}
	for i, col := range columns {
		if fields[i] != nil {
			continue
		}
		if i >= len(m.Fields) {
			return nil, errs.NewErrUnknownColumn(col)
		}
		fd := m.Fields[i]
		if _, ok := used[fd]; ok {
			return nil, errs.NewErrUnknownColumn(col)
		}
		fields[i] = fd
		used[fd] = struct{}{}
	}
	return fields, nil
}

// scanTarget 返回 Scan 的目标, 有 Transform 的字段先扫描到 any 里面
func scanTarget(fd *model.Field, dst reflect.Value) any {
	if fd.Transform != nil {
		return new(any)
	}
	return dst.Addr().Interface()
}

func applyTransforms(fields []*model.Field, targets []any, dst func(fd *model.Field) reflect.Value) error {
	for i, fd := range fields {
		if fd.Transform == nil {
			continue
		}
		raw := *(targets[i].(*any))
		val, err := fd.Transform(raw)
		if err != nil {
			return fmt.Errorf("dao: 转换字段 %s 失败, 原因: %w", fd.GoName, err)
		}
		if err := assign(dst(fd), val); err != nil {
			return err
		}
	}
	return nil
}

func assign(dst reflect.Value, val any) error {
	if val == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	v := reflect.ValueOf(val)
	if v.Type().AssignableTo(dst.Type()) {
		dst.Set(v)
		return nil
	}
	// 整数转字符串在 Go 里面是合法的, 但是语义不对
	if dst.Kind() == reflect.String && v.Kind() != reflect.String {
		return fmt.Errorf("dao: 无法把 %T 赋值给 %s", val, dst.Type())
	}
	if v.Type().ConvertibleTo(dst.Type()) {
		dst.Set(v.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("dao: 无法把 %T 赋值给 %s", val, dst.Type())
}
