package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUndefinedVariable 严格模式下变量未定义
var ErrUndefinedVariable = errors.New("undefined variable")

// Lookup 变量查找
// found=false 表示未定义；err 非 nil 时中断替换
type Lookup interface {
	Lookup(key string) (value string, found bool, err error)
}

// LookupFunc 函数适配 Lookup
type LookupFunc func(key string) (string, bool, error)

// Lookup 实现 Lookup 接口
func (f LookupFunc) Lookup(key string) (string, bool, error) {
	return f(key)
}

// Substitutor 展开 ${name} 与 ${name:-default}
//   - $${name} 转义为字面量 ${name}
//   - 严格模式下未定义且无默认值的变量返回 ErrUndefinedVariable
//   - 非严格模式下原样保留 ${name}
//   - 开启变量内替换后，${a_${b}} 先展开内层再查找
type Substitutor struct {
	lookup      Lookup
	strict      bool
	inVariables bool
}

// SubstitutorOption 替换器选项
type SubstitutorOption func(*Substitutor)

// WithStrict 严格模式
func WithStrict(strict bool) SubstitutorOption {
	return func(s *Substitutor) { s.strict = strict }
}

// WithSubstitutionInVariables 允许变量名内嵌套替换
func WithSubstitutionInVariables(enabled bool) SubstitutorOption {
	return func(s *Substitutor) { s.inVariables = enabled }
}

// NewSubstitutor 创建替换器
func NewSubstitutor(lookup Lookup, opts ...SubstitutorOption) *Substitutor {
	s := &Substitutor{lookup: lookup}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strict 是否严格模式
func (s *Substitutor) Strict() bool { return s.strict }

// Replace 替换字符串中的所有变量
func (s *Substitutor) Replace(input string) (string, error) {
	if !strings.Contains(input, "${") {
		return input, nil
	}

	var out strings.Builder
	for i := 0; i < len(input); {
		// $${ 转义
		if strings.HasPrefix(input[i:], "$${") {
			end := matchingBrace(input, i+3)
			if end < 0 {
				out.WriteString(input[i:])
				break
			}
			out.WriteString(input[i+1 : end+1])
			i = end + 1
			continue
		}

		if !strings.HasPrefix(input[i:], "${") {
			out.WriteByte(input[i])
			i++
			continue
		}

		end := matchingBrace(input, i+2)
		if end < 0 {
			// 未闭合，按字面量处理
			out.WriteString(input[i:])
			break
		}

		expr := input[i+2 : end]
		value, err := s.resolve(expr)
		if err != nil {
			return "", err
		}
		out.WriteString(value)
		i = end + 1
	}
	return out.String(), nil
}

// resolve 解析单个表达式（不含 ${ }）
func (s *Substitutor) resolve(expr string) (string, error) {
	if s.inVariables && strings.Contains(expr, "${") {
		inner, err := s.Replace(expr)
		if err != nil {
			return "", err
		}
		expr = inner
	}

	name, def, hasDefault := strings.Cut(expr, ":-")

	value, found, err := s.lookup.Lookup(name)
	if err != nil {
		if hasDefault && errors.Is(err, ErrUndefinedVariable) {
			return def, nil
		}
		return "", err
	}
	if found {
		return value, nil
	}
	if hasDefault {
		return def, nil
	}
	if s.strict {
		return "", fmt.Errorf("%w: the variable '%s' is not defined; could not substitute the expression '${%s}'",
			ErrUndefinedVariable, name, expr)
	}
	return "${" + expr + "}", nil
}

// matchingBrace 返回与 start 之前 "${" 配对的 "}" 下标，考虑嵌套
func matchingBrace(s string, start int) int {
	depth := 1
	for i := start; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "${"):
			depth++
			i++
		case s[i] == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
