package celengine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
)

var ErrNotBool = errors.New("celengine: expression must evaluate to bool")

// Predicate is a compiled boolean CEL expression. It is safe for concurrent
// use.
type Predicate struct {
	expr string
	prg  cel.Program
}

// NewEnv declares one variable per entry in vars.
func NewEnv(vars map[string]*cel.Type) (*cel.Env, error) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		opts = append(opts, cel.Variable(name, vars[name]))
	}

	return cel.NewEnv(opts...)
}

// Compile type-checks expr against env and requires a bool result.
func Compile(env *cel.Env, expr string) (*Predicate, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("celengine: compile %q: %w", expr, issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w, got %s", ErrNotBool, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("celengine: program: %w", err)
	}

	return &Predicate{expr: expr, prg: prg}, nil
}

func (p *Predicate) String() string {
	return p.expr
}

func (p *Predicate) Eval(attrs map[string]any) (bool, error) {
	out, _, err := p.prg.Eval(attrs)
	if err != nil {
		return false, fmt.Errorf("celengine: eval: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, ErrNotBool
	}
	return result, nil
}
