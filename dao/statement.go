package dao

import (
	"github.com/startdusk/go-dao/dao/internal/errs"
	"github.com/startdusk/go-dao/dao/internal/valuer"
)

// boundStmt 是 Bind 阶段编译好的语句, 调用的时候只替换参数
type boundStmt struct {
	method string
	typ    string
	sql    string
	// slots[i] 是第 i 个占位符的参数名, 位置参数为空字符串
	slots []string
	// argIdx[i] 表示第 i 个占位符取第几个方法参数
	argIdx []int
	nargs  int

	refresh bool
}

// compileStmt 编译 SQL 模板
// params 是方法参数的名字, 按照声明的顺序, 为空的时候按照占位符第一次出现的顺序
func compileStmt(d Dialect, method, typ, query string, params []string) (*boundStmt, error) {
	tpl, err := compileTemplate(d, query)
	if err != nil {
		return nil, err
	}
	st := &boundStmt{
		method: method,
		typ:    typ,
		sql:    tpl.sql,
		slots:  tpl.slots,
		argIdx: make([]int, len(tpl.slots)),
	}

	if tpl.positional {
		if len(params) > 0 && len(params) != len(tpl.slots) {
			return nil, errs.NewErrArgsCount(method, len(tpl.slots), len(params))
		}
		for i := range st.argIdx {
			st.argIdx[i] = i
		}
		st.nargs = len(tpl.slots)
		return st, nil
	}

	if len(params) == 0 {
		seen := make(map[string]struct{}, len(tpl.slots))
		for _, name := range tpl.slots {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			params = append(params, name)
		}
	}
	idx := make(map[string]int, len(params))
	for i, name := range params {
		idx[name] = i
	}
	for i, name := range tpl.slots {
		pos, ok := idx[name]
		if !ok {
			return nil, errs.NewErrUnknownParam(method, name)
		}
		st.argIdx[i] = pos
	}
	st.nargs = len(params)
	return st, nil
}

// bindArgs 把方法参数按照占位符的顺序排好
func (s *boundStmt) bindArgs(args []any) ([]any, error) {
	if len(args) != s.nargs {
		return nil, errs.NewErrArgsCount(s.method, s.nargs, len(args))
	}
	out := make([]any, len(s.argIdx))
	for i, pos := range s.argIdx {
		out[i] = args[pos]
	}
	return out, nil
}

// entityArgs 用于生成的 CRUD 语句, 占位符的名字就是字段名
func (s *boundStmt) entityArgs(val valuer.Value) ([]any, error) {
	out := make([]any, len(s.slots))
	for i, name := range s.slots {
		arg, err := val.Field(name)
		if err != nil {
			return nil, err
		}
		out[i] = arg
	}
	return out, nil
}

// boundCall 是一次调用, 中间件可以通过 Build 看到 SQL 和参数
type boundCall struct {
	stmt *boundStmt
	args []any
}

func (c boundCall) Build() (*Statement, error) {
	return &Statement{
		SQL:  c.stmt.sql,
		Args: c.args,
	}, nil
}

// batchCall 是批量操作的一个 chunk, Args 是所有行的参数拼起来
type batchCall struct {
	stmt *boundStmt
	rows [][]any
}

func (c batchCall) Build() (*Statement, error) {
	n := 0
	for _, row := range c.rows {
		n += len(row)
	}
	args := make([]any, 0, n)
	for _, row := range c.rows {
		args = append(args, row...)
	}
	return &Statement{
		SQL:  c.stmt.sql,
		Args: args,
	}, nil
}

// Rows 返回 chunk 里面每一行的参数
func (c batchCall) Rows() [][]any {
	return c.rows
}
