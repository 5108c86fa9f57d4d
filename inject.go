package modkit

import (
	"context"
	"sort"
)

// injectAction binds services into the trailing slot the host reserves for
// actions.
func injectAction[S, V any](handler ActionHandler[S, V], services V) ActionFunc[S] {
	if handler == nil {
		return nil
	}
	return func(ctx ActionContext[S], payload any, _ any) (any, error) {
		return handler(ctx, payload, services)
	}
}

// injectMutation appends services after the host arguments.
func injectMutation[S, V any](handler MutationHandler[S, V], services V) MutationFunc[S] {
	if handler == nil {
		return nil
	}
	return func(state S, payload any) {
		handler(state, payload, services)
	}
}

// injectGetter appends services after the host arguments.
func injectGetter[S, V any](handler GetterHandler[S, V], services V) GetterFunc[S] {
	if handler == nil {
		return nil
	}
	return func(state S, getters map[string]any, rootState any, rootGetters map[string]any) any {
		return handler(state, getters, rootState, rootGetters, services)
	}
}

// finalize turns a draft into a descriptor. The draft's handler maps are
// never mutated, so the same draft may be finalized again.
func finalize[S, V any](d draft[S, V], services V) *Descriptor[S] {
	desc := &Descriptor[S]{
		State:    d.state,
		HasState: d.hasState,
	}
	if d.namespaced != nil {
		namespaced := *d.namespaced
		desc.Namespaced = &namespaced
	}
	if d.actions != nil {
		desc.Actions = make(map[string]ActionDef[S], len(d.actions))
		for name, action := range d.actions {
			desc.Actions[name] = ActionDef[S]{
				Handler: injectAction(action.Handler(), services),
				Root:    action.Root(),
			}
		}
	}
	if d.mutations != nil {
		desc.Mutations = make(map[string]MutationFunc[S], len(d.mutations))
		for name, mutation := range d.mutations {
			desc.Mutations[name] = injectMutation(mutation, services)
		}
	}
	if d.getters != nil {
		desc.Getters = make(map[string]GetterFunc[S], len(d.getters))
		for name, getter := range d.getters {
			desc.Getters[name] = injectGetter(getter, services)
		}
	}
	return desc
}

// frame is one builder on the current Create call chain.
type frame struct {
	id  string
	key string
}

// resolveModules replaces every Creator under modules with its descriptor.
// Keys are resolved in sorted order so the first failure is deterministic.
func resolveModules(ctx context.Context, modules map[string]Module, chain []frame) (map[string]Module, error) {
	if modules == nil {
		return nil, nil
	}
	resolved := make(map[string]Module, len(modules))
	keys := sortedKeys(modules)
	for _, key := range keys {
		module := modules[key]
		creator, ok := module.(Creator)
		if !ok {
			resolved[key] = module
			continue
		}
		if cycle := findCycle(chain, creator.ID(), key); cycle != nil {
			return nil, cycle
		}
		next := make([]frame, len(chain), len(chain)+1)
		copy(next, chain)
		next = append(next, frame{id: creator.ID(), key: key})
		desc, err := creator.createModule(ctx, next)
		if err != nil {
			return nil, wrapBuildError("module", key, err)
		}
		resolved[key] = desc
	}
	return resolved, nil
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
