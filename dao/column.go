package dao

// Column 代表列, name 是结构体的字段名
// 避免用户直接使用数据库列名, 同时也可以避免列名存在 SQL 注入问题
type Column struct {
	table TableReference
	name  string
	alias string
}

func C(name string) Column {
	return Column{name: name}
}

func (c Column) selectable() {}

func (c Column) expr() {}

func (c Column) assign() {}

// As 只在 SELECT 的列里面生效
func (c Column) As(alias string) Column {
	return Column{
		table: c.table,
		name:  c.name,
		alias: alias,
	}
}

func (c Column) compare(o op, arg any) Predicate {
	return Predicate{
		left:  c,
		op:    o,
		right: valueOf(arg),
	}
}

func (c Column) Eq(arg any) Predicate {
	return c.compare(opEq, arg)
}

func (c Column) NotEq(arg any) Predicate {
	return c.compare(opNotEq, arg)
}

func (c Column) Lt(arg any) Predicate {
	return c.compare(opLt, arg)
}

func (c Column) LtEq(arg any) Predicate {
	return c.compare(opLtEq, arg)
}

func (c Column) Gt(arg any) Predicate {
	return c.compare(opGt, arg)
}

func (c Column) GtEq(arg any) Predicate {
	return c.compare(opGtEq, arg)
}

func (c Column) Like(pattern string) Predicate {
	return c.compare(opLike, pattern)
}

func (c Column) In(vals ...any) Predicate {
	return Predicate{
		left:  c,
		op:    opIn,
		right: values{vals: vals},
	}
}

func (c Column) IsNull() Predicate {
	return Predicate{
		left: c,
		op:   opIsNull,
	}
}

func (c Column) IsNotNull() Predicate {
	return Predicate{
		left: c,
		op:   opIsNotNull,
	}
}

// OrderBy 排序
type OrderBy struct {
	col   string
	order string
}

func Asc(col string) OrderBy {
	return OrderBy{col: col, order: "ASC"}
}

func Desc(col string) OrderBy {
	return OrderBy{col: col, order: "DESC"}
}
