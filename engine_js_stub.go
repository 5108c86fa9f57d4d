//go:build !js_eval

package modkit

// JSAvailable reports whether JSEngine can compile programs.
const JSAvailable = false

// JSEngine needs the js_eval build tag. Without it every Compile fails with
// ErrEngineUnavailable.
type JSEngine struct {
	Cache ProgramCache
}

func (JSEngine) Name() string { return "js" }

func (JSEngine) Compile(string) (Program, error) {
	return nil, ErrEngineUnavailable
}
