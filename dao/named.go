package dao

import (
	"strings"

	"github.com/startdusk/go-dao/dao/internal/errs"
)

// template 是编译之后的 SQL 模板
type template struct {
	// sql 里面的占位符已经替换成方言的占位符
	sql string
	// slots 按顺序记录每个占位符对应的参数名, 位置参数为空字符串
	slots      []string
	positional bool
}

// compileTemplate 把 :name 和 ? 两种占位符都替换成方言的占位符
// 引号里面的内容和 PostgreSQL 的 :: 类型转换不处理
func compileTemplate(d Dialect, query string) (template, error) {
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	var (
		slots             []string
		named, positional bool
		quote             byte
	)
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if quote != 0 {
			sb.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			quote = ch
			sb.WriteByte(ch)
		case '?':
			positional = true
			slots = append(slots, "")
			sb.WriteString(d.placeholder(len(slots)))
		case ':':
			if i+1 < len(query) && query[i+1] == ':' {
				sb.WriteString("::")
				i++
				continue
			}
			j := i + 1
			for j < len(query) && isIdentByte(query[j]) {
				j++
			}
			if j == i+1 {
				sb.WriteByte(ch)
				continue
			}
			named = true
			slots = append(slots, query[i+1:j])
			sb.WriteString(d.placeholder(len(slots)))
			i = j - 1
		default:
			sb.WriteByte(ch)
		}
	}
	if named && positional {
		return template{}, errs.ErrMixedParams
	}
	return template{
		sql:        sb.String(),
		slots:      slots,
		positional: positional,
	}, nil
}

// rebind 把构造器生成的 ? 转换成方言的占位符
func rebind(d Dialect, query string) string {
	if d.placeholder(1) == "?" || strings.IndexByte(query, '?') < 0 {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	var quote byte
	n := 0
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			sb.WriteByte(ch)
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
			sb.WriteByte(ch)
		case ch == '?':
			n++
			sb.WriteString(d.placeholder(n))
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}

func isIdentByte(ch byte) bool {
	return ch == '_' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}
