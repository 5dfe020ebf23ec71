package dao

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONColumn 把任意类型以 JSON 的形式存进一列
// Valid 为 false 的时候存的是 NULL
type JSONColumn[T any] struct {
	Val T

	// 处理NULL的问题
	Valid bool
}

func (j JSONColumn[T]) Value() (driver.Value, error) {
	if !j.Valid {
		return nil, nil
	}
	bs, err := json.Marshal(j.Val)
	if err != nil {
		return nil, err
	}
	// 用字符串, postgres 的驱动会把 []byte 当成 bytea
	return string(bs), nil
}

func (j *JSONColumn[T]) Scan(src any) error {
	var bs []byte
	switch data := src.(type) {
	case string:
		bs = []byte(data)
	case []byte:
		bs = data
	case nil:
		// 说明数据库里面存的就是 NULL
		var zero T
		j.Val, j.Valid = zero, false
		return nil
	default:
		return fmt.Errorf("dao: JSONColumn 不支持类型 %T", src)
	}
	if err := json.Unmarshal(bs, &j.Val); err != nil {
		return err
	}
	// 代表有数据 不为 NULL
	j.Valid = true
	return nil
}
