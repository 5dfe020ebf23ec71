package dao

import (
	"context"

	"github.com/startdusk/go-dao/dao/internal/errs"
	"github.com/startdusk/go-dao/dao/model"
)

// Selectable select 指定列
// 避免用户使用数据库列 存在耦合问题(用户应该使用Go结构体的字段名, 就能与数据库表字段解耦)
// 使用Go的结构体字段名同时也可以避免传入的SQL列名存在SQL注入问题
type Selectable interface {
	selectable()
}

// selectBuilder 是不依赖泛型的 SELECT 构造过程, 关联查询也用它
type selectBuilder struct {
	builder
	table   TableReference
	columns []Selectable
	where   []Predicate
	orderBy []OrderBy
	limit   int
	offset  int
}

func (s *selectBuilder) buildSelect() (*Statement, error) {
	s.reset()
	s.sb.WriteString("SELECT ")
	if err := s.buildSelectColumns(); err != nil {
		return nil, err
	}
	s.sb.WriteString(" FROM ")
	if err := s.buildTable(s.table); err != nil {
		return nil, err
	}

	if len(s.where) > 0 {
		s.sb.WriteString(" WHERE ")
		if err := s.buildPredicates(s.where); err != nil {
			return nil, err
		}
	}

	if len(s.orderBy) > 0 {
		s.sb.WriteString(" ORDER BY ")
		for i, ob := range s.orderBy {
			if i > 0 {
				s.sb.WriteByte(',')
			}
			if err := s.buildColumn(C(ob.col)); err != nil {
				return nil, err
			}
			s.sb.WriteByte(' ')
			s.sb.WriteString(ob.order)
		}
	}

	if s.limit > 0 {
		s.sb.WriteString(" LIMIT ?")
		s.addArgs(s.limit)
	}
	if s.offset > 0 {
		s.sb.WriteString(" OFFSET ?")
		s.addArgs(s.offset)
	}

	s.sb.WriteByte(';')
	return s.statement(), nil
}

// buildSelectColumns 构建 SELECT 的列
func (s *selectBuilder) buildSelectColumns() error {
	if len(s.columns) == 0 {
		// 没有指定列
		s.sb.WriteByte('*')
		return nil
	}
	for i, col := range s.columns {
		if i > 0 {
			s.sb.WriteString(",")
		}
		switch c := col.(type) {
		case Column:
			if err := s.buildColumn(c); err != nil {
				return err
			}
			s.buildAlias(c.alias)
		case Aggregate:
			// 聚合函数名
			s.sb.WriteString(c.fn)
			s.sb.WriteByte('(')
			if c.arg == "" {
				s.sb.WriteByte('*')
			} else if err := s.buildColumn(C(c.arg)); err != nil {
				return err
			}
			s.sb.WriteByte(')')
			s.buildAlias(c.alias)
		case RawExpr:
			// 用户输入SQL
			s.sb.WriteString(c.raw)
			s.addArgs(c.args...)
		default:
			return errs.NewErrUnsupportedExpressionType(col)
		}
	}
	return nil
}

func (s *selectBuilder) buildAlias(alias string) {
	if alias == "" {
		return
	}
	s.sb.WriteString(" AS ")
	s.quote(alias)
}

// columnsOf 返回模型的全部列, 关联字段不在里面
func columnsOf(m *model.Model) []Selectable {
	cols := make([]Selectable, 0, len(m.Fields))
	for _, fd := range m.Fields {
		cols = append(cols, C(fd.GoName))
	}
	return cols
}

type Selector[T any] struct {
	selectBuilder
	sess Session
}

func NewSelector[T any](sess Session) *Selector[T] {
	return &Selector[T]{
		selectBuilder: selectBuilder{
			builder: newBuilder(sess.getCore()),
		},
		sess: sess,
	}
}

func (s *Selector[T]) Select(cols ...Selectable) *Selector[T] {
	s.columns = cols
	return s
}

// From 不调用的时候使用 T 对应的表
func (s *Selector[T]) From(table TableReference) *Selector[T] {
	s.table = table
	return s
}

func (s *Selector[T]) Where(where ...Predicate) *Selector[T] {
	s.where = where
	return s
}

func (s *Selector[T]) OrderBy(orderBy ...OrderBy) *Selector[T] {
	s.orderBy = orderBy
	return s
}

func (s *Selector[T]) Limit(limit int) *Selector[T] {
	s.limit = limit
	return s
}

func (s *Selector[T]) Offset(offset int) *Selector[T] {
	s.offset = offset
	return s
}

func (s *Selector[T]) Build() (*Statement, error) {
	if err := s.resolveModel(); err != nil {
		return nil, err
	}
	return s.buildSelect()
}

// resolveModel 标量结果比如 Selector[int64] 没有自己的模型, 使用 From 里面最左边的表
func (s *Selector[T]) resolveModel() error {
	if s.model != nil {
		return nil
	}
	var entity any = new(T)
	if isScalar(reflectTypeOf[T]()) {
		entity = leftmostEntity(s.table)
		if entity == nil {
			return errs.NewErrUnsupportedTable(s.table)
		}
	}
	m, err := s.r.Get(entity)
	if err != nil {
		return err
	}
	s.model = m
	return nil
}

func leftmostEntity(ref TableReference) any {
	switch tab := ref.(type) {
	case Table:
		return tab.entity
	case Join:
		return leftmostEntity(tab.left)
	default:
		return nil
	}
}

func (s *Selector[T]) Get(ctx context.Context) (*T, error) {
	mapRow, qc, err := s.prepare()
	if err != nil {
		return nil, err
	}
	res := s.run(ctx, qc, queryOneHandler[T](s.sess, mapRow))
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Result.(*T), nil
}

func (s *Selector[T]) GetMulti(ctx context.Context) ([]*T, error) {
	mapRow, qc, err := s.prepare()
	if err != nil {
		return nil, err
	}
	res := s.run(ctx, qc, queryMultiHandler[T](s.sess, mapRow))
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Result.([]*T), nil
}

func (s *Selector[T]) prepare() (rowMapper[T], *QueryContext, error) {
	if err := s.resolveModel(); err != nil {
		return nil, nil, err
	}
	mapRow, err := newRowMapper[T](s.core)
	if err != nil {
		return nil, nil, err
	}
	return mapRow, &QueryContext{
		Type:    "SELECT",
		Builder: s,
		Model:   s.model,
	}, nil
}
