package dao

// TableReference 代表 FROM 后面的部分, 普通表或者 JOIN
type TableReference interface {
	table()
}

// TableOf 用实体声明一张表, 表名和列名都从实体的模型里面取
func TableOf(entity any) Table {
	return Table{
		entity: entity,
	}
}

// Table 普通表, 它也是Join查询的起点
type Table struct {
	entity any
	alias  string
}

func (t Table) As(alias string) Table {
	t.alias = alias
	return t
}

// C 返回属于这张表的列
func (t Table) C(name string) Column {
	return Column{
		table: t,
		name:  name,
	}
}

func (t Table) Join(right TableReference) *JoinBuilder {
	return joinOf(t, right, "JOIN")
}

func (t Table) LeftJoin(right TableReference) *JoinBuilder {
	return joinOf(t, right, "LEFT JOIN")
}

func (t Table) RightJoin(right TableReference) *JoinBuilder {
	return joinOf(t, right, "RIGHT JOIN")
}

func (Table) table() {}

// Join 可以继续 Join, 构造的时候从左往右
//
//	a := TableOf(&Author{})
//	b := TableOf(&Article{})
//	a.Join(b).On(a.C("ID").Eq(b.C("AuthorID")))
type Join struct {
	left  TableReference
	right TableReference
	typ   string
	on    []Predicate
	using []string
}

func (j Join) Join(right TableReference) *JoinBuilder {
	return joinOf(j, right, "JOIN")
}

func (j Join) LeftJoin(right TableReference) *JoinBuilder {
	return joinOf(j, right, "LEFT JOIN")
}

func (j Join) RightJoin(right TableReference) *JoinBuilder {
	return joinOf(j, right, "RIGHT JOIN")
}

func (Join) table() {}

// JoinBuilder 必须以 On 或者 Using 结束
type JoinBuilder struct {
	j Join
}

func joinOf(left, right TableReference, typ string) *JoinBuilder {
	return &JoinBuilder{j: Join{left: left, right: right, typ: typ}}
}

func (b *JoinBuilder) On(ps ...Predicate) Join {
	j := b.j
	j.on = ps
	return j
}

func (b *JoinBuilder) Using(cols ...string) Join {
	j := b.j
	j.using = cols
	return j
}
