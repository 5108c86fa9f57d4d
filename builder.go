package modkit

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-modkit/mixing"
	"github.com/goliatone/go-modkit/pkg/activity"
)

// Builder accumulates mixin entries and services and produces a Descriptor.
// A builder is owned by one caller; use Clone before sharing it.
type Builder[S, V any] struct {
	id       string
	cfg      builderConfig
	entries  []MixinEntry[S, V]
	services *ServiceRegistry
	bundle   V
	err      error
}

// Option configures a Builder.
type Option func(*builderConfig)

type builderConfig struct {
	name            string
	stateStrategy   mixing.Strategy
	logger          BuildLogger
	exprLogger      ExpressionLogger
	tracer          trace.Tracer
	trace           bool
	engine          Engine
	programCache    ProgramCache
	activityHooks   activity.Hooks
	activityChannel string
}

func applyOptions(opts []Option) builderConfig {
	cfg := builderConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithName labels the builder in logs, spans and activity events.
func WithName(name string) Option {
	return func(cfg *builderConfig) {
		cfg.name = name
	}
}

// WithStateStrategy sets the state strategy used by mixins that do not pick
// one explicitly.
func WithStateStrategy(strategy mixing.Strategy) Option {
	return func(cfg *builderConfig) {
		cfg.stateStrategy = strategy
	}
}

// New constructs an empty builder.
func New[S, V any](opts ...Option) *Builder[S, V] {
	return &Builder[S, V]{
		id:       uuid.NewString(),
		cfg:      applyOptions(opts),
		services: NewServiceRegistry(),
	}
}

// From constructs a builder seeded with base as its first mixin.
func From[S, V any](base Partial[S, V], opts ...Option) *Builder[S, V] {
	return New[S, V](opts...).Mixin(base, WithLabel("base"))
}

func (*Builder[S, V]) isModule() {}

// ID returns the builder's unique identifier.
func (b *Builder[S, V]) ID() string {
	if b == nil {
		return ""
	}
	return b.id
}

// Name returns the name configured with WithName.
func (b *Builder[S, V]) Name() string {
	if b == nil {
		return ""
	}
	return b.cfg.name
}

// Len returns the number of accepted mixin entries.
func (b *Builder[S, V]) Len() int {
	return len(b.entries)
}

// Entries returns a copy of the accepted mixin entries in fold order.
func (b *Builder[S, V]) Entries() []MixinEntry[S, V] {
	out := make([]MixinEntry[S, V], len(b.entries))
	for i, entry := range b.entries {
		out[i] = MixinEntry[S, V]{Partial: clonePartial(entry.Partial), Options: entry.Options}
	}
	return out
}

// Err returns the errors recorded while accumulating entries.
func (b *Builder[S, V]) Err() error {
	return b.err
}

// ClearErr returns the recorded errors and forgets them, so a caller that
// handled a rejected entry can keep using the builder. Rejected entries were
// never stored and stay out of the fold.
func (b *Builder[S, V]) ClearErr() error {
	err := b.err
	b.err = nil
	return err
}

// Mixin appends p to the builder. An entry whose modules reference the
// builder itself is rejected: it is not stored, and the error stays on the
// builder so every later Create fails with it until ClearErr is called.
func (b *Builder[S, V]) Mixin(p Partial[S, V], opts ...MixinOption) *Builder[S, V] {
	options := MixinOptions{State: b.cfg.stateStrategy}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	if key, found := findSelfReference(p.Modules, b); found {
		err := &SelfReferenceError{Key: key, BuilderID: b.id}
		b.fail(err)
		b.logger().LogBuild(BuildEvent{
			Builder: b.id,
			Stage:   "mixin.rejected",
			Label:   options.Label,
			Entries: len(b.entries),
			Err:     err,
		})
		return b
	}

	b.entries = append(b.entries, MixinEntry[S, V]{Partial: clonePartial(p), Options: options})
	b.logger().LogBuild(BuildEvent{
		Builder: b.id,
		Stage:   "mixin",
		Label:   options.Label,
		Entries: len(b.entries),
	})
	return b
}

// State mixes in a state source, shallow unless a strategy is given.
func (b *Builder[S, V]) State(source *StateSource[S], strategy ...mixing.Strategy) *Builder[S, V] {
	if source == nil {
		var zero S
		source = Literal(zero)
	}
	var opts []MixinOption
	if len(strategy) > 0 {
		opts = append(opts, WithStrategy(strategy[0]))
	}
	return b.Mixin(Partial[S, V]{State: source}, opts...)
}

// Namespaced mixes in the namespaced flag.
func (b *Builder[S, V]) Namespaced(namespaced bool) *Builder[S, V] {
	return b.Mixin(Partial[S, V]{Namespaced: Bool(namespaced)})
}

// Action mixes in a single action.
func (b *Builder[S, V]) Action(name string, action Action[S, V]) *Builder[S, V] {
	return b.Mixin(Partial[S, V]{Actions: map[string]Action[S, V]{name: action}})
}

// Actions mixes in a set of actions.
func (b *Builder[S, V]) Actions(actions map[string]Action[S, V]) *Builder[S, V] {
	if actions == nil {
		actions = map[string]Action[S, V]{}
	}
	return b.Mixin(Partial[S, V]{Actions: actions})
}

// Mutation mixes in a single mutation.
func (b *Builder[S, V]) Mutation(name string, mutation MutationHandler[S, V]) *Builder[S, V] {
	return b.Mixin(Partial[S, V]{Mutations: map[string]MutationHandler[S, V]{name: mutation}})
}

// Mutations mixes in a set of mutations.
func (b *Builder[S, V]) Mutations(mutations map[string]MutationHandler[S, V]) *Builder[S, V] {
	if mutations == nil {
		mutations = map[string]MutationHandler[S, V]{}
	}
	return b.Mixin(Partial[S, V]{Mutations: mutations})
}

// Getter mixes in a single getter.
func (b *Builder[S, V]) Getter(name string, getter GetterHandler[S, V]) *Builder[S, V] {
	return b.Mixin(Partial[S, V]{Getters: map[string]GetterHandler[S, V]{name: getter}})
}

// Getters mixes in a set of getters.
func (b *Builder[S, V]) Getters(getters map[string]GetterHandler[S, V]) *Builder[S, V] {
	if getters == nil {
		getters = map[string]GetterHandler[S, V]{}
	}
	return b.Mixin(Partial[S, V]{Getters: getters})
}

// Module mixes in a single sub-module.
func (b *Builder[S, V]) Module(name string, module Module) *Builder[S, V] {
	return b.Mixin(Partial[S, V]{Modules: map[string]Module{name: module}})
}

// Modules mixes in a set of sub-modules.
func (b *Builder[S, V]) Modules(modules map[string]Module) *Builder[S, V] {
	if modules == nil {
		modules = map[string]Module{}
	}
	return b.Mixin(Partial[S, V]{Modules: modules})
}

// Service registers value under name. The latest registration wins.
func (b *Builder[S, V]) Service(name string, value any) *Builder[S, V] {
	if err := b.services.Register(name, value); err != nil {
		b.fail(err)
	}
	return b
}

// Services registers every entry of services.
func (b *Builder[S, V]) Services(services map[string]any) *Builder[S, V] {
	for _, name := range sortedKeys(services) {
		b.Service(name, services[name])
	}
	return b
}

// Bundle sets the typed services bundle that registered services are bound
// into.
func (b *Builder[S, V]) Bundle(bundle V) *Builder[S, V] {
	b.bundle = bundle
	return b
}

// Clone returns an independent builder with a new ID holding the same
// entries, services and options.
func (b *Builder[S, V]) Clone() *Builder[S, V] {
	return &Builder[S, V]{
		id:       uuid.NewString(),
		cfg:      b.cfg,
		entries:  b.Entries(),
		services: b.services.Clone(),
		bundle:   b.bundle,
		err:      b.err,
	}
}

// Create folds the entries, injects services and resolves nested builders.
func (b *Builder[S, V]) Create() (*Descriptor[S], error) {
	return b.CreateContext(context.Background())
}

// CreateContext is Create with a context for cancellation and tracing.
func (b *Builder[S, V]) CreateContext(ctx context.Context) (*Descriptor[S], error) {
	if b == nil {
		return nil, fmt.Errorf("modkit: builder is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return b.create(ctx, []frame{{id: b.id}})
}

func (b *Builder[S, V]) createModule(ctx context.Context, chain []frame) (Module, error) {
	desc, err := b.create(ctx, chain)
	if err != nil {
		return nil, err
	}
	return desc, nil
}

func (b *Builder[S, V]) create(ctx context.Context, chain []frame) (*Descriptor[S], error) {
	start := time.Now()
	ctx, span := startCreateSpan(ctx, b.cfg, b.id, len(b.entries), len(chain)-1)
	desc, err := b.build(ctx, chain)
	endCreateSpan(span, desc, err)

	b.logger().LogBuild(BuildEvent{
		Builder:  b.id,
		Stage:    "create",
		Label:    b.cfg.name,
		Entries:  len(b.entries),
		Duration: time.Since(start),
		Err:      err,
	})
	if emitErr := b.emitActivity(ctx, desc, err); emitErr != nil {
		b.logger().LogBuild(BuildEvent{Builder: b.id, Stage: "activity", Label: b.cfg.name, Err: emitErr})
	}
	return desc, err
}

func (b *Builder[S, V]) build(ctx context.Context, chain []frame) (*Descriptor[S], error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := fold(b.entries)
	services, err := bindServices(b.bundle, b.services)
	if err != nil {
		return nil, wrapBuildError("services", b.cfg.name, err)
	}
	desc := finalize(d, services)

	modules, err := resolveModules(ctx, d.modules, chain)
	if err != nil {
		return nil, err
	}
	desc.Modules = modules
	return desc, nil
}

func (b *Builder[S, V]) fail(err error) {
	if b.err == nil {
		b.err = err
		return
	}
	b.err = errors.Join(b.err, err)
}

func (b *Builder[S, V]) logger() BuildLogger {
	if b.cfg.logger != nil {
		return b.cfg.logger
	}
	return noopLogger{}
}

func clonePartial[S, V any](p Partial[S, V]) Partial[S, V] {
	out := p
	if p.Namespaced != nil {
		out.Namespaced = Bool(*p.Namespaced)
	}
	out.Actions = maps.Clone(p.Actions)
	out.Mutations = maps.Clone(p.Mutations)
	out.Getters = maps.Clone(p.Getters)
	out.Modules = maps.Clone(p.Modules)
	return out
}
