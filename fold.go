package modkit

import (
	"github.com/goliatone/go-modkit/mixing"
)

// draft is the folded, not yet finalized module. Handlers still take the
// services bundle and modules may still hold builders.
type draft[S, V any] struct {
	state      S
	hasState   bool
	namespaced *bool
	actions    map[string]Action[S, V]
	mutations  map[string]MutationHandler[S, V]
	getters    map[string]GetterHandler[S, V]
	modules    map[string]Module
}

// fold merges entries in order into a draft. Only state honours the entry
// strategy; every other field merges shallowly. Fields no entry owns stay
// absent.
func fold[S, V any](entries []MixinEntry[S, V]) draft[S, V] {
	var out draft[S, V]
	for _, entry := range entries {
		source := entry.Partial
		if source.State != nil {
			value := source.State.Extract()
			if out.hasState {
				out.state = mixing.MixAs(out.state, value, entry.Options.State)
			} else {
				out.state = mixing.Clone(value)
				out.hasState = true
			}
		}
		if source.Namespaced != nil {
			namespaced := *source.Namespaced
			out.namespaced = &namespaced
		}
		if source.Actions != nil {
			out.actions = mixing.ShallowMap(out.actions, source.Actions)
		}
		if source.Mutations != nil {
			out.mutations = mixing.ShallowMap(out.mutations, source.Mutations)
		}
		if source.Getters != nil {
			out.getters = mixing.ShallowMap(out.getters, source.Getters)
		}
		if source.Modules != nil {
			out.modules = mixing.ShallowMap(out.modules, source.Modules)
		}
	}
	return out
}
