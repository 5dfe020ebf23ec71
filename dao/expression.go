package dao

// Expression 是一个标记接口, 代表表达式
type Expression interface {
	expr()
}

// RawExpr 代表的是原生表达式
// 用户的 SQL 过于复杂的时候的兜底方式, 原样拼接到 SQL 里面, 不做任何转义
type RawExpr struct {
	raw  string
	args []any
}

func Raw(expr string, args ...any) RawExpr {
	return RawExpr{
		raw:  expr,
		args: args,
	}
}

func (r RawExpr) AsPredicate() Predicate {
	return Predicate{
		left: r,
	}
}

func (r RawExpr) selectable() {}
func (r RawExpr) expr()       {}

// NamedParam 是命名参数, 渲染成 :name, 在 Bind 阶段替换成方言的占位符
type NamedParam struct {
	name string
}

func Param(name string) NamedParam {
	return NamedParam{name: name}
}

func (n NamedParam) expr() {}

type value struct {
	val any
}

func (v value) expr() {}

// values 是 IN 查询的参数列表
type values struct {
	vals []any
}

func (v values) expr() {}

func valueOf(arg any) Expression {
	if exp, ok := arg.(Expression); ok {
		return exp
	}
	return value{val: arg}
}
