package modkit

import (
	"slices"
	"strings"

	celgo "github.com/google/cel-go/cel"
)

// CELEngine compiles getters with github.com/google/cel-go. CEL needs every
// variable declared, so the checked program depends on which state keys are
// bound; one program is kept per key set.
type CELEngine struct {
	Cache ProgramCache
}

func (CELEngine) Name() string { return "cel" }

// Compile parses source against the fixed getter variables so syntax errors
// surface at build time. Type checking happens per key set at run time.
func (e CELEngine) Compile(source string) (Program, error) {
	if source == "" {
		return nil, errEmptyExpression
	}
	env, err := celEnv(getterVars)
	if err != nil {
		return nil, err
	}
	if _, issues := env.Parse(source); issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return celProgram{cache: e.Cache, source: source}, nil
}

type celProgram struct {
	cache  ProgramCache
	source string
}

func (p celProgram) Run(env GetterEnv) (any, error) {
	vars := env.vars()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.Sort(names)

	key := cacheKey("cel", p.source) + "|" + strings.Join(names, ",")
	program, err := cached(p.cache, key, func() (celgo.Program, error) {
		celenv, err := celEnv(names)
		if err != nil {
			return nil, err
		}
		ast, issues := celenv.Compile(p.source)
		if issues != nil && issues.Err() != nil {
			return nil, issues.Err()
		}
		return celenv.Program(ast)
	})
	if err != nil {
		return nil, err
	}
	out, _, err := program.Eval(vars)
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

func celEnv(names []string) (*celgo.Env, error) {
	opts := make([]celgo.EnvOption, 0, len(names))
	for _, name := range names {
		if name == "now" {
			opts = append(opts, celgo.Variable(name, celgo.TimestampType))
			continue
		}
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}
