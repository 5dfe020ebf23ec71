package dao

import (
	"context"

	"github.com/startdusk/go-dao/dao/internal/errs"
	"github.com/startdusk/go-dao/dao/model"
)

type Updater[T any] struct {
	builder
	val     *T
	assigns []Assignable
	where   []Predicate
	sess    Session
}

func NewUpdater[T any](sess Session) *Updater[T] {
	return &Updater[T]{
		builder: newBuilder(sess.getCore()),
		sess:    sess,
	}
}

// Update 指定实体, Set 里面的 Column 从实体上取值
func (u *Updater[T]) Update(t *T) *Updater[T] {
	u.val = t
	return u
}

// Set 指定更新的列
// 没有指定实体的时候, Column 会渲染成以字段名命名的参数
func (u *Updater[T]) Set(assigns ...Assignable) *Updater[T] {
	u.assigns = assigns
	return u
}

func (u *Updater[T]) Where(ps ...Predicate) *Updater[T] {
	u.where = ps
	return u
}

func (u *Updater[T]) Build() (*Statement, error) {
	u.reset()
	if u.model == nil {
		m, err := u.r.Get(new(T))
		if err != nil {
			return nil, err
		}
		u.model = m
	}
	m := u.model

	assigns := u.assigns
	if len(assigns) == 0 {
		// 默认更新所有可以更新的列
		for _, fd := range m.Fields {
			if fd.Updatable() {
				assigns = append(assigns, C(fd.GoName))
			}
		}
	}

	u.sb.WriteString("UPDATE ")
	u.quote(m.TableName)
	u.sb.WriteString(" SET ")
	for idx, assign := range assigns {
		if idx > 0 {
			u.sb.WriteByte(',')
		}
		switch a := assign.(type) {
		case Column:
			fd, err := u.updatableField(m, a.name)
			if err != nil {
				return nil, err
			}
			u.quote(fd.ColName)
			if u.val == nil {
				u.sb.WriteString("=:")
				u.sb.WriteString(fd.GoName)
				continue
			}
			arg, err := u.creator(m, u.val).Field(fd.GoName)
			if err != nil {
				return nil, err
			}
			u.sb.WriteString("=?")
			u.addArgs(arg)
		case Assignment:
			fd, err := u.updatableField(m, a.col)
			if err != nil {
				return nil, err
			}
			u.quote(fd.ColName)
			u.sb.WriteByte('=')
			if err := u.buildExpression(valueOf(a.val)); err != nil {
				return nil, err
			}
		default:
			return nil, errs.NewErrUnsupportedAssignable(assign)
		}
	}

	if len(u.where) > 0 {
		u.sb.WriteString(" WHERE ")
		if err := u.buildPredicates(u.where); err != nil {
			return nil, err
		}
	}
	u.sb.WriteByte(';')
	return u.statement(), nil
}

// 主键和只读列不能出现在 SET 里面
func (u *Updater[T]) updatableField(m *model.Model, name string) (*model.Field, error) {
	fd, ok := m.FieldMap[name]
	if !ok {
		return nil, errs.NewErrUnknownField(name)
	}
	if !fd.Updatable() {
		return nil, errs.NewErrReadOnlyField(name)
	}
	return fd, nil
}

func (u *Updater[T]) Exec(ctx context.Context) Result {
	var err error
	u.model, err = u.r.Get(new(T))
	if err != nil {
		return Result{err: err}
	}
	return exec(ctx, u.sess, u.core, &QueryContext{
		Type:    "UPDATE",
		Builder: u,
		Model:   u.model,
	})
}
