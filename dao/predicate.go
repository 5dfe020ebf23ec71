package dao

type op string

const (
	opEq        op = "="
	opNotEq     op = "<>"
	opLt        op = "<"
	opLtEq      op = "<="
	opGt        op = ">"
	opGtEq      op = ">="
	opLike      op = "LIKE"
	opIn        op = "IN"
	opIsNull    op = "IS NULL"
	opIsNotNull op = "IS NOT NULL"
	opNot       op = "NOT"
	opAnd       op = "AND"
	opOr        op = "OR"
)

func (o op) String() string {
	return string(o)
}

// Predicate 是查询条件树的节点
// 比较: left 是列, right 是值或者表达式
// 组合: left 和 right 都是 Predicate
type Predicate struct {
	left  Expression
	op    op
	right Expression
}

func (Predicate) expr() {}

func Not(p Predicate) Predicate {
	return Predicate{
		op:    opNot,
		right: p,
	}
}

// C("id").Eq(12).And(C("name").Eq("Tom")) => id = 12 AND name = "Tom"
func (left Predicate) And(right Predicate) Predicate {
	return Predicate{
		left:  left,
		op:    opAnd,
		right: right,
	}
}

// C("id").Eq(12).Or(C("name").Eq("Tom")) => id = 12 OR name = "Tom"
func (left Predicate) Or(right Predicate) Predicate {
	return Predicate{
		left:  left,
		op:    opOr,
		right: right,
	}
}

// True 永远为真的条件
func True() Predicate {
	return Raw("1 = 1").AsPredicate()
}

// And 从左到右组合, 没有条件的时候返回 True
func And(ps ...Predicate) Predicate {
	return fold(opAnd, ps)
}

func Or(ps ...Predicate) Predicate {
	return fold(opOr, ps)
}

func fold(o op, ps []Predicate) Predicate {
	if len(ps) == 0 {
		return True()
	}
	p := ps[0]
	for i := 1; i < len(ps); i++ {
		p = Predicate{left: p, op: o, right: ps[i]}
	}
	return p
}
