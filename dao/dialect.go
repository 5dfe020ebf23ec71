package dao

import (
	"strconv"

	"github.com/startdusk/go-dao/dao/internal/errs"
)

var (
	DialectMySQL      Dialect = &mysqlDialect{}
	DialectPostgreSQL Dialect = &postgreDialect{}
	DialectSQLite     Dialect = &sqliteDialect{}
)

type Dialect interface {
	// quoter 就是为了解决引号问题
	// MySQL 反引号 `
	// PostgreSQL 是双引号
	quoter() byte

	// placeholder 返回第 n 个参数的占位符, n 从 1 开始
	placeholder(n int) string

	buildUpsert(b *builder, odk *Upsert) error

	// returning 为 true 的时候自增主键用 RETURNING 拿, 驱动不支持 LastInsertId
	returning() bool
}

// DialectFor 根据驱动名找到方言
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "mysql":
		return DialectMySQL, nil
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgreSQL, nil
	default:
		return nil, errs.NewErrUnsupportedDialect(name)
	}
}

type standardSQL struct{}

func (d standardSQL) quoter() byte {
	return '"'
}

func (d standardSQL) placeholder(n int) string {
	return "?"
}

func (d standardSQL) returning() bool {
	return false
}

func (d standardSQL) buildUpsert(b *builder, odk *Upsert) error {
	return buildConflictUpsert(b, odk)
}

type mysqlDialect struct {
	standardSQL
}

func (d mysqlDialect) quoter() byte {
	return '`'
}

func (d mysqlDialect) buildUpsert(b *builder, odk *Upsert) error {
	b.sb.WriteString(" ON DUPLICATE KEY UPDATE ")
	for idx, assign := range odk.assigns {
		if idx > 0 {
			b.sb.WriteByte(',')
		}
		switch a := assign.(type) {
		case Assignment:
			fd, ok := b.model.FieldMap[a.col]
			if !ok {
				return errs.NewErrUnknownField(a.col)
			}
			b.quote(fd.ColName)
			b.sb.WriteString("=?")
			b.addArgs(a.val)
		case Column:
			fd, ok := b.model.FieldMap[a.name]
			if !ok {
				return errs.NewErrUnknownField(a.name)
			}
			b.quote(fd.ColName)
			b.sb.WriteString("=VALUES(")
			b.quote(fd.ColName)
			b.sb.WriteByte(')')
		default:
			return errs.NewErrUnsupportedAssignable(assign)
		}
	}
	return nil
}

type sqliteDialect struct {
	standardSQL
}

func (d sqliteDialect) quoter() byte {
	return '`'
}

type postgreDialect struct {
	standardSQL
}

func (d postgreDialect) placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (d postgreDialect) returning() bool {
	return true
}

// buildConflictUpsert SQLite 和 PostgreSQL 都是 ON CONFLICT 的写法
func buildConflictUpsert(b *builder, odk *Upsert) error {
	b.sb.WriteString(" ON CONFLICT(")
	for i, col := range odk.conflictColumns {
		if i > 0 {
			b.sb.WriteByte(',')
		}
		if err := b.buildColumn(C(col)); err != nil {
			return err
		}
	}
	b.sb.WriteString(") DO UPDATE SET ")
	for idx, assign := range odk.assigns {
		if idx > 0 {
			b.sb.WriteByte(',')
		}
		switch a := assign.(type) {
		case Assignment:
			fd, ok := b.model.FieldMap[a.col]
			if !ok {
				return errs.NewErrUnknownField(a.col)
			}
			b.quote(fd.ColName)
			b.sb.WriteString("=?")
			b.addArgs(a.val)
		case Column:
			fd, ok := b.model.FieldMap[a.name]
			if !ok {
				return errs.NewErrUnknownField(a.name)
			}
			b.quote(fd.ColName)
			b.sb.WriteString("=excluded.")
			b.quote(fd.ColName)
		default:
			return errs.NewErrUnsupportedAssignable(assign)
		}
	}
	return nil
}
