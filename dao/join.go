package dao

import (
	"context"
	"database/sql"
	"reflect"

	"github.com/startdusk/go-dao/dao/internal/errs"
	"github.com/startdusk/go-dao/dao/model"
)

type JoinOption func(cfg *joinConfig)

type joinConfig struct {
	fields []string
	ifNull bool
}

// JoinFields 只加载指定的关联字段, 默认加载全部
func JoinFields(names ...string) JoinOption {
	return func(cfg *joinConfig) {
		cfg.fields = names
	}
}

// JoinIfNull 只加载还是 nil 的关联字段
// 空切片表示已经加载过并且没有数据, 不会再查询
func JoinIfNull() JoinOption {
	return func(cfg *joinConfig) {
		cfg.ifNull = true
	}
}

// LoadJoins 加载一个实体的关联字段
func (m *Mapper[T]) LoadJoins(ctx context.Context, t *T, opts ...JoinOption) error {
	if t == nil {
		return nil
	}
	return m.LoadJoinsBatch(ctx, []*T{t}, opts...)
}

// LoadJoinsBatch 每个关联字段只发一次查询(超过 maxBatchSize 个键的时候按 chunk 查询)
// 用 IN 把所有实体的键一起查出来, 再按照键分配回去
func (m *Mapper[T]) LoadJoinsBatch(ctx context.Context, ts []*T, opts ...JoinOption) error {
	if err := m.bound(); err != nil {
		return err
	}
	owners := make([]reflect.Value, 0, len(ts))
	for _, t := range ts {
		if t != nil {
			owners = append(owners, reflect.ValueOf(t))
		}
	}
	if len(owners) == 0 {
		return nil
	}
	return m.b.loadJoins(ctx, owners, opts)
}

func (b *binding) loadJoins(ctx context.Context, owners []reflect.Value, opts []JoinOption) error {
	var cfg joinConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	rels := b.model.Relations
	if len(cfg.fields) > 0 {
		rels = make([]*model.Relation, 0, len(cfg.fields))
		for _, name := range cfg.fields {
			rel, ok := b.model.RelationMap[name]
			if !ok {
				return errs.NewErrUnknownRelation(name)
			}
			rels = append(rels, rel)
		}
	}
	for _, rel := range rels {
		if err := b.loadRelation(ctx, rel, owners, cfg.ifNull); err != nil {
			return err
		}
	}
	return nil
}

func (b *binding) loadRelation(ctx context.Context, rel *model.Relation, owners []reflect.Value, ifNull bool) error {
	target, err := b.r.Get(reflect.New(rel.Target).Interface())
	if err != nil {
		return err
	}
	ref, ok := target.FieldByName(rel.TargetField)
	if !ok {
		return errs.NewErrInvalidJoin(rel.Name, "ref 指向的字段 "+rel.TargetField+" 不存在")
	}

	pending := make([]reflect.Value, 0, len(owners))
	for _, o := range owners {
		if ifNull && !o.Elem().Field(rel.Index).IsNil() {
			continue
		}
		pending = append(pending, o)
	}
	if len(pending) == 0 {
		return nil
	}

	// 去重, 保持第一次出现的顺序
	ownerKeys := make([]any, len(pending))
	keys := make([]any, 0, len(pending))
	seen := make(map[any]struct{}, len(pending))
	for i, o := range pending {
		k, err := b.creator(b.model, o.Interface()).Field(rel.OwnerField.GoName)
		if err != nil {
			return err
		}
		nk := normalizeKey(k)
		ownerKeys[i] = nk
		if nk == nil {
			continue
		}
		if _, ok := seen[nk]; ok {
			continue
		}
		seen[nk] = struct{}{}
		keys = append(keys, nk)
	}

	groups := make(map[any][]reflect.Value, len(keys))
	size := b.db.maxBatchSize
	for start := 0; start < len(keys); start += size {
		chunk := keys[start:min(start+size, len(keys))]
		matched, err := b.queryRelation(ctx, rel, target, ref, chunk)
		if err != nil {
			return err
		}
		for _, v := range matched {
			k, err := b.creator(target, v.Interface()).Field(ref.GoName)
			if err != nil {
				return err
			}
			nk := normalizeKey(k)
			groups[nk] = append(groups[nk], v)
		}
	}

	for i, o := range pending {
		var matches []reflect.Value
		if ownerKeys[i] != nil {
			matches = groups[ownerKeys[i]]
		}
		field := o.Elem().Field(rel.Index)
		switch rel.Cardinality {
		case model.Many:
			s := reflect.MakeSlice(rel.Type, 0, len(matches))
			for _, v := range matches {
				if rel.ElemPtr {
					s = reflect.Append(s, v)
				} else {
					s = reflect.Append(s, v.Elem())
				}
			}
			field.Set(s)
		case model.One:
			if len(matches) > 0 {
				field.Set(matches[0])
			} else {
				field.Set(reflect.Zero(rel.Type))
			}
		}
	}
	return nil
}

// queryRelation 一个键用 =, 多个键用 IN, 按照主键排序保证结果稳定
func (b *binding) queryRelation(ctx context.Context, rel *model.Relation,
	target *model.Model, ref *model.Field, keys []any) ([]reflect.Value, error) {
	c := b.core
	c.model = target
	sb := &selectBuilder{
		builder: newBuilder(c),
		columns: columnsOf(target),
	}
	if len(keys) == 1 {
		sb.where = []Predicate{C(ref.GoName).Eq(keys[0])}
	} else {
		sb.where = []Predicate{C(ref.GoName).In(keys...)}
	}
	for _, fd := range target.IDs {
		sb.orderBy = append(sb.orderBy, Asc(fd.GoName))
	}

	qc := &QueryContext{
		Type:    "SELECT",
		Builder: buildFunc(sb.buildSelect),
		Model:   target,
		Dao:     b.name,
		Method:  "LoadJoins." + rel.Name,
	}
	res := c.run(ctx, qc, queryEntitiesHandler(b.db, c, rel.Target))
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Result.([]reflect.Value), nil
}

// queryEntitiesHandler 和 queryMultiHandler 一样, 只是类型在运行期才知道
func queryEntitiesHandler(sess Session, c core, typ reflect.Type) Handler {
	return func(ctx context.Context, qc *QueryContext) *QueryResult {
		q, err := qc.Builder.Build()
		if err != nil {
			return &QueryResult{Err: err}
		}
		rows, err := sessionOf(ctx, sess).queryContext(ctx, q.SQL, q.Args...)
		if err != nil {
			return &QueryResult{Err: errs.NewExecutionError(q.SQL, q.Args, err)}
		}
		defer func() {
			_ = rows.Close()
		}()
		res, err := scanEntities(rows, c, qc.Model, typ)
		if err != nil {
			return &QueryResult{Err: err}
		}
		if err := rows.Err(); err != nil {
			return &QueryResult{Err: errs.NewExecutionError(q.SQL, q.Args, err)}
		}
		return &QueryResult{Result: res}
	}
}

func scanEntities(rows *sql.Rows, c core, m *model.Model, typ reflect.Type) ([]reflect.Value, error) {
	res := make([]reflect.Value, 0, 8)
	for rows.Next() {
		v := reflect.New(typ)
		if err := c.creator(m, v.Interface()).SetColumns(rows); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}
