package modkit

import (
	"sync"
	"time"
)

// GetterEnv holds the arguments a getter received, as seen by an expression.
type GetterEnv struct {
	State       any
	Getters     map[string]any
	RootState   any
	RootGetters map[string]any
	Services    any
	Now         time.Time
}

// getterVars are the names every engine binds. A map state key with one of
// these names is only reachable through state.
var getterVars = []string{"state", "getters", "rootState", "rootGetters", "services", "now"}

// vars flattens env into expression variables. Keys of a map[string]any state
// are also bound at the top level.
func (env GetterEnv) vars() map[string]any {
	now := env.Now
	if now.IsZero() {
		now = time.Now()
	}
	getters := env.Getters
	if getters == nil {
		getters = map[string]any{}
	}
	rootGetters := env.RootGetters
	if rootGetters == nil {
		rootGetters = map[string]any{}
	}

	state, _ := env.State.(map[string]any)
	vars := make(map[string]any, len(getterVars)+len(state))
	for key, value := range state {
		vars[key] = value
	}
	vars["state"] = env.State
	vars["getters"] = getters
	vars["rootState"] = env.RootState
	vars["rootGetters"] = rootGetters
	vars["services"] = env.Services
	vars["now"] = now
	return vars
}

// Engine compiles getter expressions.
type Engine interface {
	Name() string
	Compile(source string) (Program, error)
}

// Program is a compiled expression, safe to run from several getters.
type Program interface {
	Run(env GetterEnv) (any, error)
}

// ProgramCache keeps compiled programs keyed by engine and source.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// NewProgramCache returns a ProgramCache safe for concurrent use.
func NewProgramCache() ProgramCache {
	return &syncProgramCache{}
}

type syncProgramCache struct {
	programs sync.Map
}

func (c *syncProgramCache) Get(key string) (any, bool) {
	return c.programs.Load(key)
}

func (c *syncProgramCache) Set(key string, value any) {
	c.programs.Store(key, value)
}

func cacheKey(engine, source string) string {
	return engine + ":" + source
}

// cached returns the program stored under key or compiles and stores it.
func cached[P any](cache ProgramCache, key string, compile func() (P, error)) (P, error) {
	if cache != nil {
		if hit, ok := cache.Get(key); ok {
			if program, ok := hit.(P); ok {
				return program, nil
			}
		}
	}
	program, err := compile()
	if err != nil {
		return program, err
	}
	if cache != nil {
		cache.Set(key, program)
	}
	return program, nil
}

// WithEngine selects the engine used by GetterExpr. The default is
// ExprEngine.
func WithEngine(engine Engine) Option {
	return func(cfg *builderConfig) {
		cfg.engine = engine
	}
}

// WithProgramCache gives the default engine a shared program cache.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *builderConfig) {
		cfg.programCache = cache
	}
}

func (cfg builderConfig) expressionEngine() Engine {
	if cfg.engine != nil {
		return cfg.engine
	}
	return ExprEngine{Cache: cfg.programCache}
}

// GetterExpr mixes in a getter computed from source by the configured
// engine. A compile error is recorded on the builder and returned by Create.
// When the program fails at run time the getter yields nil and the failure
// goes to the expression logger.
func (b *Builder[S, V]) GetterExpr(name, source string) *Builder[S, V] {
	engine := b.cfg.expressionEngine()
	program, err := engine.Compile(source)
	if err != nil {
		b.fail(newExpressionError(engine.Name(), source, name, err))
		return b
	}

	logger := b.cfg.expressionLogger()
	getter := func(state S, getters map[string]any, rootState any, rootGetters map[string]any, services V) any {
		start := time.Now()
		value, err := program.Run(GetterEnv{
			State:       state,
			Getters:     getters,
			RootState:   rootState,
			RootGetters: rootGetters,
			Services:    services,
			Now:         start,
		})
		if err != nil {
			err = newExpressionError(engine.Name(), source, name, err)
			value = nil
		}
		logger.LogExpression(ExpressionEvent{
			Engine:   engine.Name(),
			Source:   source,
			Getter:   name,
			Duration: time.Since(start),
			Err:      err,
		})
		return value
	}
	return b.Mixin(Partial[S, V]{Getters: map[string]GetterHandler[S, V]{name: getter}}, WithLabel("expr:"+name))
}
