package modkit

import (
	"errors"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

var errEmptyExpression = errors.New("expression must not be empty")

// ExprEngine compiles getters with github.com/expr-lang/expr. Unknown
// identifiers evaluate to nil.
type ExprEngine struct {
	Cache ProgramCache
}

func (ExprEngine) Name() string { return "expr" }

func (e ExprEngine) Compile(source string) (Program, error) {
	if source == "" {
		return nil, errEmptyExpression
	}
	program, err := cached(e.Cache, cacheKey(e.Name(), source), func() (*exprvm.Program, error) {
		return exprlang.Compile(source,
			exprlang.Env(map[string]any{}),
			exprlang.AllowUndefinedVariables(),
		)
	})
	if err != nil {
		return nil, err
	}
	return exprProgram{program: program}, nil
}

type exprProgram struct {
	program *exprvm.Program
}

func (p exprProgram) Run(env GetterEnv) (any, error) {
	return exprlang.Run(p.program, env.vars())
}
