package dao

// Assignable 用于 UPDATE 的 SET 部分和 upsert
// Column 表示使用实体(或者命名参数)上的值, Assignment 表示指定值
type Assignable interface {
	assign()
}

type Assignment struct {
	col string
	val any
}

func (a Assignment) assign() {}

func Assign(col string, val any) Assignment {
	return Assignment{
		col: col,
		val: val,
	}
}
