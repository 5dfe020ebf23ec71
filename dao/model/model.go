package model

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/startdusk/go-dao/dao/internal/errs"
)

const (
	tagColumn   = "column"
	tagID       = "id"
	tagReadOnly = "readonly"
	tagJoin     = "join"
	tagRef      = "ref"
)

// TableName 用户实现这个接口来返回自定义的表名
type TableName interface {
	TableName() string
}

type Kind uint8

const (
	// KindRegular 普通列, 可以读写
	KindRegular Kind = iota
	// KindID 主键列, 只出现在 WHERE 里面, 不会出现在 UPDATE 的 SET 里面
	KindID
	// KindReadOnly 只读列, 比如数据库默认值 created_at, 只参与查询
	KindReadOnly
)

// Transform 在扫描结果之后转换数据库的原始值
type Transform func(src any) (any, error)

type Field struct {
	// 列名
	ColName string
	// 字段名
	GoName string
	// 字段类型
	Type reflect.Type
	// 字段相对于结构体本身的偏移量
	Offset uintptr
	// 字段在结构体里的下标
	Index int

	Kind Kind
	// Auto 表示自增主键, INSERT 的时候不插入, 插入之后回填
	Auto bool

	Transform Transform
}

// Insertable 判断 INSERT 语句默认是否包含这个字段
func (f *Field) Insertable() bool {
	return f.Kind == KindRegular || (f.Kind == KindID && !f.Auto)
}

// Updatable 判断 UPDATE 语句的 SET 部分是否可以包含这个字段
func (f *Field) Updatable() bool {
	return f.Kind == KindRegular
}

type Cardinality uint8

const (
	One Cardinality = iota
	Many
)

// Relation 描述了一个关联字段
// 例如 User.Orders []*Order `orm:"join=ID,ref=UserID"`
// 表示用 User.ID 去匹配 Order.UserID
type Relation struct {
	// 持有关联数据的字段名
	Name  string
	Index int
	// 字段本身的类型, 如 []*Order, *Profile
	Type reflect.Type
	// 关联实体的结构体类型, 如 Order
	Target reflect.Type
	// 切片元素是否为指针
	ElemPtr bool

	Cardinality Cardinality

	// 当前实体上用来匹配的字段
	OwnerField *Field
	// 关联实体上用来匹配的字段名, 关联实体的元数据在加载时才解析
	TargetField string
}

type Model struct {
	TableName string
	// Fields 按照结构体定义的顺序排列
	Fields []*Field
	// 字段名 -> 字段
	FieldMap map[string]*Field
	// 列名 -> 字段
	ColumnMap map[string]*Field
	IDs       []*Field

	Relations   []*Relation
	RelationMap map[string]*Relation
}

// FieldByName 支持字段名和列名两种写法
func (m *Model) FieldByName(name string) (*Field, bool) {
	if fd, ok := m.FieldMap[name]; ok {
		return fd, true
	}
	fd, ok := m.ColumnMap[name]
	return fd, ok
}

// AutoID 返回自增主键, 没有的话返回 nil
func (m *Model) AutoID() *Field {
	for _, fd := range m.IDs {
		if fd.Auto {
			return fd
		}
	}
	return nil
}

type ModelOption func(m *Model) error

func ModelWithTableName(tableName string) ModelOption {
	return func(m *Model) error {
		m.TableName = tableName
		return nil
	}
}

func ModelWithColumnName(field string, colName string) ModelOption {
	return func(m *Model) error {
		fd, ok := m.FieldMap[field]
		if !ok {
			return errs.NewErrUnknownField(field)
		}
		delete(m.ColumnMap, fd.ColName)
		fd.ColName = colName
		m.ColumnMap[colName] = fd
		return nil
	}
}

func ModelWithTransform(field string, fn Transform) ModelOption {
	return func(m *Model) error {
		fd, ok := m.FieldMap[field]
		if !ok {
			return errs.NewErrUnknownField(field)
		}
		fd.Transform = fn
		return nil
	}
}

// Registry 代表元数据的注册中心
type Registry interface {
	Get(val any) (*Model, error)
	Register(val any, opts ...ModelOption) (*Model, error)
}

type registry struct {
	// 同名结构体可能对应不同的表
	// 如: buyer下的User 和 seller下的User
	// 所以用 reflect.Type 作为 key
	models map[reflect.Type]*Model

	// 使用严格的读写锁, 采用 double check 的写法就没有覆盖的问题
	lock sync.RWMutex
}

func NewRegistry() Registry {
	return &registry{
		// 一个项目如果超过64张表, 说明需要拆分了
		models: make(map[reflect.Type]*Model, 64),
	}
}

func (r *registry) Get(val any) (*Model, error) {
	typ := reflect.TypeOf(val)
	r.lock.RLock()
	m, ok := r.models[typ]
	r.lock.RUnlock()
	if ok {
		return m, nil
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	// double check 写法, 保证不重复创建对象
	m, ok = r.models[typ]
	if ok {
		return m, nil
	}

	m, err := r.parseModel(val)
	if err != nil {
		return nil, err
	}
	r.models[typ] = m
	return m, nil
}

func (r *registry) Register(val any, opts ...ModelOption) (*Model, error) {
	m, err := r.parseModel(val)
	if err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.models[reflect.TypeOf(val)] = m
	return m, nil
}

// 只支持输入指针类型的结构体
func (r *registry) parseModel(entity any) (*Model, error) {
	typ := reflect.TypeOf(entity)
	if typ == nil || typ.Kind() != reflect.Pointer || typ.Elem().Kind() != reflect.Struct {
		return nil, errs.ErrPointerOnly
	}
	typ = typ.Elem()
	numField := typ.NumField()
	m := &Model{
		Fields:    make([]*Field, 0, numField),
		FieldMap:  make(map[string]*Field, numField),
		ColumnMap: make(map[string]*Field, numField),
	}

	type pending struct {
		fd   reflect.StructField
		join string
		ref  string
	}
	var joins []pending
	for i := 0; i < numField; i++ {
		fd := typ.Field(i)
		if !fd.IsExported() {
			continue
		}
		pair, err := r.parseTag(fd.Tag)
		if err != nil {
			return nil, err
		}
		if _, skip := pair["-"]; skip {
			continue
		}
		if join, ok := pair[tagJoin]; ok {
			joins = append(joins, pending{fd: fd, join: join, ref: pair[tagRef]})
			continue
		}

		colName := pair[tagColumn]
		if colName == "" {
			colName = underscoreName(fd.Name)
		}
		field := &Field{
			ColName: colName,
			GoName:  fd.Name,
			Type:    fd.Type,
			Offset:  fd.Offset,
			Index:   i,
		}
		switch pair[tagID] {
		case "true":
			field.Kind = KindID
		case "auto":
			field.Kind = KindID
			field.Auto = true
		case "":
		default:
			return nil, errs.NewErrInvalidTagContent(tagID + "=" + pair[tagID])
		}
		if pair[tagReadOnly] == "true" {
			if field.Kind == KindID {
				return nil, errs.NewErrInvalidTagContent(tagReadOnly + "=true")
			}
			field.Kind = KindReadOnly
		}
		if field.Kind == KindID {
			m.IDs = append(m.IDs, field)
		}
		m.Fields = append(m.Fields, field)
		m.FieldMap[field.GoName] = field
		m.ColumnMap[field.ColName] = field
	}

	// 没有显式声明主键的时候, 约定 ID 字段就是主键
	if len(m.IDs) == 0 {
		if fd, ok := m.FieldMap["ID"]; ok && fd.Kind == KindRegular {
			fd.Kind = KindID
			m.IDs = append(m.IDs, fd)
		}
	}

	for _, j := range joins {
		rel, err := parseRelation(m, j.fd, j.join, j.ref)
		if err != nil {
			return nil, err
		}
		if m.RelationMap == nil {
			m.RelationMap = make(map[string]*Relation, len(joins))
		}
		m.Relations = append(m.Relations, rel)
		m.RelationMap[rel.Name] = rel
	}

	if tn, ok := entity.(TableName); ok {
		m.TableName = tn.TableName()
	}
	if m.TableName == "" {
		m.TableName = underscoreName(typ.Name())
	}
	return m, nil
}

func parseRelation(m *Model, fd reflect.StructField, join string, ref string) (*Relation, error) {
	owner, ok := m.FieldMap[join]
	if !ok {
		return nil, errs.NewErrInvalidJoin(fd.Name, "join 指向的字段 "+join+" 不存在")
	}
	if ref == "" {
		return nil, errs.NewErrInvalidJoin(fd.Name, "缺少 ref")
	}
	rel := &Relation{
		Name:        fd.Name,
		Index:       fd.Index[0],
		Type:        fd.Type,
		OwnerField:  owner,
		TargetField: ref,
	}
	typ := fd.Type
	switch {
	case typ.Kind() == reflect.Slice:
		rel.Cardinality = Many
		elem := typ.Elem()
		if elem.Kind() == reflect.Pointer {
			rel.ElemPtr = true
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			return nil, errs.NewErrInvalidJoin(fd.Name, "切片元素必须是结构体或者结构体指针")
		}
		rel.Target = elem
	case typ.Kind() == reflect.Pointer && typ.Elem().Kind() == reflect.Struct:
		rel.Cardinality = One
		rel.Target = typ.Elem()
	default:
		return nil, errs.NewErrInvalidJoin(fd.Name, "只支持结构体指针或者切片")
	}
	return rel, nil
}

func (r *registry) parseTag(tag reflect.StructTag) (map[string]string, error) {
	ormTag, ok := tag.Lookup("orm")
	if !ok {
		return map[string]string{}, nil
	}
	if ormTag == "-" {
		return map[string]string{"-": ""}, nil
	}
	pairs := strings.Split(ormTag, ",")
	tags := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		segs := strings.Split(pair, "=")
		if len(segs) != 2 {
			return nil, errs.NewErrInvalidTagContent(pair)
		}
		tags[strings.TrimSpace(segs[0])] = strings.TrimSpace(segs[1])
	}
	return tags, nil
}

// 驼峰名字符串转下划线命名, 连续的大写字母视为一个单词
// UserID => user_id, HTTPServer => http_server
func underscoreName(name string) string {
	runes := []rune(name)
	buf := make([]rune, 0, len(runes)+4)
	for i, v := range runes {
		if unicode.IsUpper(v) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				buf = append(buf, '_')
			}
			buf = append(buf, unicode.ToLower(v))
			continue
		}
		buf = append(buf, v)
	}
	return string(buf)
}
