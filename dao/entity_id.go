package dao

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"

	"github.com/startdusk/go-dao/dao/internal/errs"
	"github.com/startdusk/go-dao/dao/model"
)

// EntityID 是有序的 主键字段 -> 值
// 字段可以用 Go 字段名, 也可以用列名
type EntityID struct {
	keys []string
	vals []any
}

// ID 创建只有一个字段的主键, 联合主键继续调用 And
//
//	dao.ID("UserID", 1).And("OrderID", 2)
func ID(key string, val any) EntityID {
	return EntityID{
		keys: []string{key},
		vals: []any{val},
	}
}

// And 返回一个新的 EntityID, 不会修改原来的
func (id EntityID) And(key string, val any) EntityID {
	keys := make([]string, len(id.keys), len(id.keys)+1)
	copy(keys, id.keys)
	vals := make([]any, len(id.vals), len(id.vals)+1)
	copy(vals, id.vals)
	return EntityID{
		keys: append(keys, key),
		vals: append(vals, val),
	}
}

func (id EntityID) Len() int {
	return len(id.keys)
}

func (id EntityID) Keys() []string {
	return append([]string(nil), id.keys...)
}

func (id EntityID) Values() []any {
	return append([]any(nil), id.vals...)
}

func (id EntityID) Get(key string) (any, bool) {
	for i, k := range id.keys {
		if k == key {
			return id.vals[i], true
		}
	}
	return nil, false
}

// Equal 字段和值都要一样, 并且顺序也要一样
// 值会先归一化, int(1) 和 int64(1) 是相等的
func (id EntityID) Equal(other EntityID) bool {
	if len(id.keys) != len(other.keys) {
		return false
	}
	for i := range id.keys {
		if id.keys[i] != other.keys[i] {
			return false
		}
		if !reflect.DeepEqual(normalizeKey(id.vals[i]), normalizeKey(other.vals[i])) {
			return false
		}
	}
	return true
}

func (id EntityID) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range id.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %v", k, id.vals[i])
	}
	sb.WriteByte('}')
	return sb.String()
}

// idArgs 按照模型里面主键的顺序取出主键的值
// 只有一个主键的时候可以直接传值
func idArgs(m *model.Model, id any) ([]any, error) {
	eid, ok := id.(EntityID)
	if !ok {
		if len(m.IDs) != 1 {
			return nil, errs.NewErrInvalidEntityID(fmt.Sprintf("%s 是联合主键, 需要使用 EntityID", m.TableName))
		}
		return []any{id}, nil
	}
	if eid.Len() != len(m.IDs) {
		return nil, errs.NewErrInvalidEntityID(fmt.Sprintf("需要 %d 个字段, 实际 %d 个", len(m.IDs), eid.Len()))
	}
	args := make([]any, 0, len(m.IDs))
	for _, fd := range m.IDs {
		val, ok := eid.Get(fd.GoName)
		if !ok {
			val, ok = eid.Get(fd.ColName)
		}
		if !ok {
			return nil, errs.NewErrInvalidEntityID("缺少字段 " + fd.GoName)
		}
		args = append(args, val)
	}
	return args, nil
}

// normalizeKey 把不同类型但是值相同的键变成同一个, 用来做 map 的键
// nil 返回 nil
func normalizeKey(v any) any {
	if v == nil {
		return nil
	}
	if valuer, ok := v.(driver.Valuer); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		dv, err := valuer.Value()
		if err != nil {
			return fmt.Sprint(v)
		}
		return normalizeKey(dv)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return normalizeKey(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u <= 1<<63-1 {
			return int64(u)
		}
		return u
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
	}
	if !rv.Type().Comparable() {
		return fmt.Sprint(v)
	}
	return v
}
