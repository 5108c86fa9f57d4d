package modkit

import (
	"context"

	"github.com/goliatone/go-modkit/mixing"
)

// ActionContext is the context the host store passes to an action handler.
type ActionContext[S any] struct {
	Context     context.Context
	State       S
	Getters     map[string]any
	RootState   any
	RootGetters map[string]any
	Commit      func(mutation string, payload any) error
	Dispatch    func(action string, payload any) (any, error)
}

// ActionHandler is an action as authored, receiving the services bundle.
type ActionHandler[S, V any] func(ctx ActionContext[S], payload any, services V) (any, error)

// MutationHandler is a mutation as authored, receiving the services bundle.
type MutationHandler[S, V any] func(state S, payload any, services V)

// GetterHandler is a getter as authored, receiving the services bundle.
type GetterHandler[S, V any] func(state S, getters map[string]any, rootState any, rootGetters map[string]any, services V) any

// ActionFunc is a finalized action in the host calling convention. The
// trailing slot is reserved by the host and never read.
type ActionFunc[S any] func(ctx ActionContext[S], payload any, slot any) (any, error)

// MutationFunc is a finalized mutation in the host calling convention.
type MutationFunc[S any] func(state S, payload any)

// GetterFunc is a finalized getter in the host calling convention.
type GetterFunc[S any] func(state S, getters map[string]any, rootState any, rootGetters map[string]any) any

// StateSource is either a literal state value or a producer invoked on every
// fold. Construct it with Literal or Producer.
type StateSource[S any] struct {
	value    S
	producer func() S
}

// Literal returns a state source holding value.
func Literal[S any](value S) *StateSource[S] {
	return &StateSource[S]{value: value}
}

// Producer returns a state source that calls fn each time state is resolved.
func Producer[S any](fn func() S) *StateSource[S] {
	return &StateSource[S]{producer: fn}
}

// IsProducer reports whether the source is backed by a producer.
func (s *StateSource[S]) IsProducer() bool {
	return s != nil && s.producer != nil
}

// Extract resolves the source into a concrete value. Producers are not
// memoized.
func (s *StateSource[S]) Extract() S {
	if s == nil {
		var zero S
		return zero
	}
	if s.producer != nil {
		return s.producer()
	}
	return s.value
}

// Action is a plain handler or a handler carrying options. Construct it with
// Handle or HandleWithOptions.
type Action[S, V any] struct {
	handler     ActionHandler[S, V]
	root        bool
	withOptions bool
}

// Handle wraps a plain action handler.
func Handle[S, V any](handler ActionHandler[S, V]) Action[S, V] {
	return Action[S, V]{handler: handler}
}

// HandleWithOptions wraps an action handler with a root flag. Root actions are
// registered by the host in the global namespace.
func HandleWithOptions[S, V any](handler ActionHandler[S, V], root bool) Action[S, V] {
	return Action[S, V]{handler: handler, root: root, withOptions: true}
}

// Handler returns the wrapped handler.
func (a Action[S, V]) Handler() ActionHandler[S, V] {
	return a.handler
}

// Root reports the root flag. Plain handlers are never root.
func (a Action[S, V]) Root() bool {
	return a.root
}

// HasOptions reports whether the action was built with HandleWithOptions.
func (a Action[S, V]) HasOptions() bool {
	return a.withOptions
}

// Partial is one mixin's contribution. A field is owned when it is non-nil:
// an empty non-nil map is owned and still participates in the fold.
type Partial[S, V any] struct {
	State      *StateSource[S]
	Namespaced *bool
	Actions    map[string]Action[S, V]
	Mutations  map[string]MutationHandler[S, V]
	Getters    map[string]GetterHandler[S, V]
	Modules    map[string]Module
}

// Owns reports whether p declares field.
func (p Partial[S, V]) Owns(field Field) bool {
	switch field {
	case FieldState:
		return p.State != nil
	case FieldNamespaced:
		return p.Namespaced != nil
	case FieldActions:
		return p.Actions != nil
	case FieldMutations:
		return p.Mutations != nil
	case FieldGetters:
		return p.Getters != nil
	case FieldModules:
		return p.Modules != nil
	default:
		return false
	}
}

// keys returns the handler or module names declared for field.
func (p Partial[S, V]) keys(field Field) []string {
	switch field {
	case FieldActions:
		return sortedKeys(p.Actions)
	case FieldMutations:
		return sortedKeys(p.Mutations)
	case FieldGetters:
		return sortedKeys(p.Getters)
	case FieldModules:
		return sortedKeys(p.Modules)
	default:
		return nil
	}
}

// Bool returns a pointer to v, for Partial.Namespaced.
func Bool(v bool) *bool {
	return &v
}

// Field names one of the descriptor fields taking part in the fold.
type Field string

const (
	FieldState      Field = "state"
	FieldNamespaced Field = "namespaced"
	FieldActions    Field = "actions"
	FieldMutations  Field = "mutations"
	FieldGetters    Field = "getters"
	FieldModules    Field = "modules"
)

// Fields lists every descriptor field in fold order.
func Fields() []Field {
	return []Field{FieldState, FieldNamespaced, FieldActions, FieldMutations, FieldGetters, FieldModules}
}

// MixinOptions configures one mixin entry.
type MixinOptions struct {
	State mixing.Strategy
	Label string

	stateSet bool
}

// MixinOption configures a mixin entry.
type MixinOption func(*MixinOptions)

// WithStrategy selects the merge strategy for the entry's state.
func WithStrategy(strategy mixing.Strategy) MixinOption {
	return func(opts *MixinOptions) {
		opts.State = strategy
		opts.stateSet = true
	}
}

// WithLabel names the entry in traces and logs.
func WithLabel(label string) MixinOption {
	return func(opts *MixinOptions) {
		opts.Label = label
	}
}

// MixinEntry is one accumulated partial with its options.
type MixinEntry[S, V any] struct {
	Partial Partial[S, V]
	Options MixinOptions
}

// Module is a value allowed under a descriptor's modules field: a finished
// *Descriptor or an unfinished *Builder.
type Module interface {
	isModule()
}

// Creator is an unfinished module resolved into a descriptor at Create.
type Creator interface {
	Module
	ID() string
	createModule(ctx context.Context, chain []frame) (Module, error)
}

// ActionDef is a finalized action with its root flag.
type ActionDef[S any] struct {
	Handler ActionFunc[S]
	Root    bool
}

// Descriptor is the finished module handed to the host store. Nil maps and a
// false HasState mean the field was never owned by any mixin.
type Descriptor[S any] struct {
	State      S
	HasState   bool
	Namespaced *bool
	Actions    map[string]ActionDef[S]
	Mutations  map[string]MutationFunc[S]
	Getters    map[string]GetterFunc[S]
	Modules    map[string]Module
}

func (*Descriptor[S]) isModule() {}

// IsEmpty reports whether no field is present.
func (d *Descriptor[S]) IsEmpty() bool {
	if d == nil {
		return true
	}
	return !d.HasState &&
		d.Namespaced == nil &&
		d.Actions == nil &&
		d.Mutations == nil &&
		d.Getters == nil &&
		d.Modules == nil
}

// IsNamespaced reports the namespaced flag, false when absent.
func (d *Descriptor[S]) IsNamespaced() bool {
	return d != nil && d.Namespaced != nil && *d.Namespaced
}
