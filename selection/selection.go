// Package selection 实现事件选择（cut）表达式，基于 CEL (Common Expression Language)。
//
// 表达式只能引用 schema 中声明的变量与 spectator，不能引用标签，
// 因此对信号与本底的作用完全一致，不会引入类别间的选择偏差。
//
// 语法示例：
//   - `jetsL_number >= 6 && jetsL_HT > 500.0`
//   - `abs(var1) < 0.5 && abs(var2 - 0.5) < 1.0`
//   - `row["weird-name"] > 0.0`（字段名不是合法标识符时用 row 访问）
package selection

import (
	"fmt"
	"math"
	"regexp"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/rushteam/mvakit/core"
)

// Predicate 判断一行事件是否通过选择。
type Predicate interface {
	Match(fields map[string]float64) (bool, error)
	String() string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Expr 是编译好的 CEL 选择表达式。Program 线程安全，可在多个 goroutine 中复用。
type Expr struct {
	src    string
	fields []string
	prg    cel.Program
}

// Compile 针对 schema 编译表达式。空表达式返回 (nil, nil)，表示不做选择。
func Compile(expr string, schema core.FeatureSchema) (*Expr, error) {
	if expr == "" {
		return nil, nil
	}
	fields := schema.Fields()

	opts := []cel.EnvOption{
		cel.CrossTypeNumericComparisons(true),
		cel.Variable("row", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Function("abs",
			cel.Overload("abs_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
				cel.UnaryBinding(func(v ref.Val) ref.Val {
					return types.Double(math.Abs(float64(v.(types.Double))))
				}),
			),
		),
	}
	for _, name := range fields {
		if identRe.MatchString(name) && name != "row" {
			opts = append(opts, cel.Variable(name, cel.DoubleType))
		}
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleSelection, core.ErrorCodeInternalError, "selection: build env", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, core.WrapDomainError(core.ModuleSelection, core.ErrorCodeInvalidInput,
			fmt.Sprintf("selection: compile %q", expr), issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, core.NewDomainError(core.ModuleSelection, core.ErrorCodeInvalidInput,
			fmt.Sprintf("selection: %q must return bool, got %s", expr, ast.OutputType()))
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleSelection, core.ErrorCodeInternalError,
			fmt.Sprintf("selection: program %q", expr), err)
	}
	return &Expr{src: expr, fields: fields, prg: prg}, nil
}

// MustCompile 同 Compile，失败时 panic。仅用于测试与常量表达式。
func MustCompile(expr string, schema core.FeatureSchema) *Expr {
	e, err := Compile(expr, schema)
	if err != nil {
		panic(err)
	}
	return e
}

// Match 对一行事件求值。nil 表达式匹配所有行。
func (e *Expr) Match(fields map[string]float64) (bool, error) {
	if e == nil {
		return true, nil
	}
	input := make(map[string]any, len(e.fields)+1)
	for _, name := range e.fields {
		if identRe.MatchString(name) && name != "row" {
			input[name] = fields[name]
		}
	}
	input["row"] = fields

	out, _, err := e.prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("selection: eval %q: %w", e.src, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("selection: %q returned %T, want bool", e.src, out.Value())
	}
	return ok, nil
}

func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.src
}
