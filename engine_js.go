//go:build js_eval

package modkit

import (
	"github.com/dop251/goja"
)

// JSAvailable reports whether JSEngine can compile programs.
const JSAvailable = true

// JSEngine compiles getters as JavaScript expressions with goja.
type JSEngine struct {
	Cache ProgramCache
}

func (JSEngine) Name() string { return "js" }

func (e JSEngine) Compile(source string) (Program, error) {
	if source == "" {
		return nil, errEmptyExpression
	}
	program, err := cached(e.Cache, cacheKey(e.Name(), source), func() (*goja.Program, error) {
		return goja.Compile("getter", "(function(){ return ("+source+"); })()", true)
	})
	if err != nil {
		return nil, err
	}
	return jsProgram{program: program}, nil
}

type jsProgram struct {
	program *goja.Program
}

// Run uses a fresh runtime per call since goja runtimes are not goroutine
// safe.
func (p jsProgram) Run(env GetterEnv) (any, error) {
	vm := goja.New()
	for name, value := range env.vars() {
		if err := vm.Set(name, value); err != nil {
			return nil, err
		}
	}
	value, err := vm.RunProgram(p.program)
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}
