package dao

import (
	"strings"

	"github.com/startdusk/go-dao/dao/internal/errs"
)

type builder struct {
	core
	sb     strings.Builder
	args   []any
	quoter byte
}

func newBuilder(c core) builder {
	return builder{
		core:   c,
		quoter: c.dialect.quoter(),
	}
}

// reset 让 Build 可以被重复调用, 中间件里面经常会再 Build 一次
func (b *builder) reset() {
	b.sb.Reset()
	b.args = nil
}

func (b *builder) statement() *Statement {
	return &Statement{
		SQL:  rebind(b.dialect, b.sb.String()),
		Args: b.args,
	}
}

// buildColumn 构造列, 不处理别名
func (b *builder) buildColumn(col Column) error {
	switch table := col.table.(type) {
	case nil:
		fd, ok := b.model.FieldMap[col.name]
		if !ok {
			return errs.NewErrUnknownField(col.name)
		}
		b.quote(fd.ColName)
	case Table:
		m, err := b.r.Get(table.entity)
		if err != nil {
			return err
		}
		fd, ok := m.FieldMap[col.name]
		if !ok {
			return errs.NewErrUnknownField(col.name)
		}
		if table.alias != "" {
			b.quote(table.alias)
		} else {
			b.quote(m.TableName)
		}
		b.sb.WriteByte('.')
		b.quote(fd.ColName)
	default:
		return errs.NewErrUnsupportedTable(table)
	}
	return nil
}

func (b *builder) buildTable(table TableReference) error {
	switch tab := table.(type) {
	case nil:
		b.quote(b.model.TableName)
	case Table:
		m, err := b.r.Get(tab.entity)
		if err != nil {
			return err
		}
		b.quote(m.TableName)
		if tab.alias != "" {
			b.sb.WriteString(" AS ")
			b.quote(tab.alias)
		}
	case Join:
		b.sb.WriteByte('(')
		if err := b.buildTable(tab.left); err != nil {
			return err
		}
		b.sb.WriteByte(' ')
		b.sb.WriteString(tab.typ)
		b.sb.WriteByte(' ')
		if err := b.buildTable(tab.right); err != nil {
			return err
		}
		if len(tab.using) > 0 {
			b.sb.WriteString(" USING (")
			for i, col := range tab.using {
				if i > 0 {
					b.sb.WriteByte(',')
				}
				if err := b.buildColumn(C(col)); err != nil {
					return err
				}
			}
			b.sb.WriteByte(')')
		}
		if len(tab.on) > 0 {
			b.sb.WriteString(" ON ")
			if err := b.buildPredicates(tab.on); err != nil {
				return err
			}
		}
		b.sb.WriteByte(')')
	default:
		return errs.NewErrUnsupportedTable(tab)
	}
	return nil
}

func (b *builder) buildPredicates(ps []Predicate) error {
	return b.buildExpression(And(ps...))
}

func (b *builder) buildExpression(expr Expression) error {
	switch exp := expr.(type) {
	case Predicate: // 代表一个查询条件
		// 空格不一定处理的完美, 宁多勿少, 反正数据库能解析
		_, lok := exp.left.(Predicate)
		if lok {
			b.sb.WriteByte('(')
		}
		if err := b.buildExpression(exp.left); err != nil {
			return err
		}
		if lok {
			b.sb.WriteByte(')')
		}

		if exp.op != "" {
			if exp.left != nil {
				b.sb.WriteByte(' ')
			}
			b.sb.WriteString(exp.op.String())
		}

		if exp.right == nil {
			return nil
		}
		b.sb.WriteByte(' ')
		_, rok := exp.right.(Predicate)
		if rok {
			b.sb.WriteByte('(')
		}
		if err := b.buildExpression(exp.right); err != nil {
			return err
		}
		if rok {
			b.sb.WriteByte(')')
		}
	case Column: // 代表列名, 直接拼接列名
		return b.buildColumn(exp)
	case RawExpr:
		b.sb.WriteByte('(')
		b.sb.WriteString(exp.raw)
		b.addArgs(exp.args...)
		b.sb.WriteByte(')')
	case value: // 代表参数, 加入参数列表
		b.sb.WriteByte('?')
		b.addArgs(exp.val)
	case values:
		if len(exp.vals) == 0 {
			return errs.ErrEmptyInList
		}
		b.sb.WriteByte('(')
		for i := range exp.vals {
			if i > 0 {
				b.sb.WriteByte(',')
			}
			b.sb.WriteByte('?')
		}
		b.sb.WriteByte(')')
		b.addArgs(exp.vals...)
	case NamedParam:
		b.sb.WriteByte(':')
		b.sb.WriteString(exp.name)
	case nil:
		return nil
	default:
		return errs.NewErrUnsupportedExpressionType(expr)
	}
	return nil
}

func (b *builder) quote(name string) {
	b.sb.WriteByte(b.quoter)
	b.sb.WriteString(name)
	b.sb.WriteByte(b.quoter)
}

func (b *builder) addArgs(args ...any) {
	if len(args) == 0 {
		return
	}
	if b.args == nil {
		// 很少有查询能够超过8个参数
		// INSERT除外
		b.args = make([]any, 0, 8)
	}
	b.args = append(b.args, args...)
}
