package dao

import (
	"context"
)

type Deleter[T any] struct {
	builder
	where []Predicate
	sess  Session
}

func NewDeleter[T any](sess Session) *Deleter[T] {
	return &Deleter[T]{
		builder: newBuilder(sess.getCore()),
		sess:    sess,
	}
}

func (d *Deleter[T]) Where(ps ...Predicate) *Deleter[T] {
	d.where = ps
	return d
}

func (d *Deleter[T]) Build() (*Statement, error) {
	d.reset()
	if d.model == nil {
		m, err := d.r.Get(new(T))
		if err != nil {
			return nil, err
		}
		d.model = m
	}
	d.sb.WriteString("DELETE FROM ")
	d.quote(d.model.TableName)
	if len(d.where) > 0 {
		d.sb.WriteString(" WHERE ")
		if err := d.buildPredicates(d.where); err != nil {
			return nil, err
		}
	}
	d.sb.WriteByte(';')
	return d.statement(), nil
}

func (d *Deleter[T]) Exec(ctx context.Context) Result {
	var err error
	d.model, err = d.r.Get(new(T))
	if err != nil {
		return Result{err: err}
	}
	return exec(ctx, d.sess, d.core, &QueryContext{
		Type:    "DELETE",
		Builder: d,
		Model:   d.model,
	})
}
