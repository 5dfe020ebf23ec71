package dao

import (
	"context"

	"github.com/startdusk/go-dao/dao/internal/errs"
	"github.com/startdusk/go-dao/dao/model"
)

type UpsertBuilder[T any] struct {
	i               *Inserter[T]
	conflictColumns []string
}

type Upsert struct {
	assigns         []Assignable
	conflictColumns []string
}

// ConflictColumns 只有 ON CONFLICT 的方言需要
func (o *UpsertBuilder[T]) ConflictColumns(cols ...string) *UpsertBuilder[T] {
	o.conflictColumns = cols
	return o
}

func (o *UpsertBuilder[T]) Update(assigns ...Assignable) *Inserter[T] {
	o.i.upsert = &Upsert{
		assigns:         assigns,
		conflictColumns: o.conflictColumns,
	}
	return o.i
}

type Inserter[T any] struct {
	builder

	// INSERT 语句要插入的值的结构体的列表
	values []*T

	// INSERT 语句要插入的指定的列
	columns []string

	// named 为 true 的时候不需要 values, 生成 :FieldName 占位符
	named bool

	upsert *Upsert

	sess Session
}

func NewInserter[T any](sess Session) *Inserter[T] {
	return &Inserter[T]{
		builder: newBuilder(sess.getCore()),
		sess:    sess,
	}
}

func (i *Inserter[T]) Upsert() *UpsertBuilder[T] {
	return &UpsertBuilder[T]{
		i: i,
	}
}

// Columns 指定插入的列
func (i *Inserter[T]) Columns(cols ...string) *Inserter[T] {
	i.columns = cols
	return i
}

// Values 指定插入的数据
func (i *Inserter[T]) Values(vals ...*T) *Inserter[T] {
	i.values = vals
	return i
}

// Named 生成 INSERT 模板, 每个值都是以字段名命名的参数
func (i *Inserter[T]) Named() *Inserter[T] {
	i.named = true
	return i
}

func (i *Inserter[T]) Build() (*Statement, error) {
	if len(i.values) == 0 && !i.named {
		return nil, errs.ErrInsertZeroRows
	}
	i.reset()
	if i.model == nil {
		m, err := i.r.Get(new(T))
		if err != nil {
			return nil, err
		}
		i.model = m
	}
	m := i.model

	i.sb.WriteString("INSERT INTO ")
	i.quote(m.TableName)

	fields, err := i.insertFields(m)
	if err != nil {
		return nil, err
	}

	// 一定要显式指定列的顺序, 不然我们不知道数据库中默认的顺序
	i.sb.WriteByte('(')
	for idx, field := range fields {
		if idx > 0 {
			i.sb.WriteByte(',')
		}
		i.quote(field.ColName)
	}
	i.sb.WriteByte(')')
	i.sb.WriteString(" VALUES ")

	if i.named {
		i.sb.WriteByte('(')
		for idx, field := range fields {
			if idx > 0 {
				i.sb.WriteByte(',')
			}
			i.sb.WriteByte(':')
			i.sb.WriteString(field.GoName)
		}
		i.sb.WriteByte(')')
	} else {
		i.args = make([]any, 0, len(i.values)*len(fields))
		for valIdx := range i.values {
			if valIdx > 0 {
				i.sb.WriteByte(',')
			}
			i.sb.WriteByte('(')
			val := i.creator(m, i.values[valIdx])
			for idx, field := range fields {
				if idx > 0 {
					i.sb.WriteByte(',')
				}
				i.sb.WriteByte('?')
				// 读取结构体的参数
				arg, err := val.Field(field.GoName)
				if err != nil {
					return nil, err
				}
				i.addArgs(arg)
			}
			i.sb.WriteByte(')')
		}
	}

	if i.upsert != nil {
		if err := i.dialect.buildUpsert(&i.builder, i.upsert); err != nil {
			return nil, err
		}
	}

	i.sb.WriteByte(';')
	return i.statement(), nil
}

// insertFields 默认插入所有可写的列, 只读列和自增主键不插入
func (i *Inserter[T]) insertFields(m *model.Model) ([]*model.Field, error) {
	if len(i.columns) == 0 {
		fields := make([]*model.Field, 0, len(m.Fields))
		for _, fd := range m.Fields {
			if fd.Insertable() {
				fields = append(fields, fd)
			}
		}
		return fields, nil
	}
	fields := make([]*model.Field, 0, len(i.columns))
	for _, name := range i.columns {
		fd, ok := m.FieldMap[name]
		if !ok {
			return nil, errs.NewErrUnknownField(name)
		}
		if fd.Kind == model.KindReadOnly {
			return nil, errs.NewErrReadOnlyField(name)
		}
		fields = append(fields, fd)
	}
	return fields, nil
}

func (i *Inserter[T]) Exec(ctx context.Context) Result {
	var err error
	i.model, err = i.r.Get(new(T))
	if err != nil {
		return Result{err: err}
	}
	return exec(ctx, i.sess, i.core, &QueryContext{
		Type:    "INSERT",
		Builder: i,
		Model:   i.model,
	})
}
