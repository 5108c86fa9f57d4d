package modkit

import (
	"context"

	"github.com/goliatone/go-modkit/pkg/activity"
)

// WithActivityHooks notifies hooks after every Create with a module.created
// or module.failed event. Nil hooks are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	hooks = hooks.Compact()
	return func(cfg *builderConfig) {
		cfg.activityHooks = hooks
	}
}

// ActivityHooks returns a copy of the hooks configured on the builder.
func (b *Builder[S, V]) ActivityHooks() activity.Hooks {
	if b == nil {
		return nil
	}
	return b.cfg.activityHooks.Compact()
}

func (b *Builder[S, V]) emitActivity(ctx context.Context, desc *Descriptor[S], buildErr error) error {
	dispatcher := activity.NewDispatcher(b.cfg.activityChannel, b.cfg.activityHooks)
	if !dispatcher.Enabled() {
		return nil
	}
	event := activity.Event{
		ModuleID: b.id,
		Name:     b.cfg.name,
		Entries:  len(b.entries),
	}
	if buildErr != nil {
		return dispatcher.Dispatch(ctx, activity.Failed(event, buildErr))
	}
	event.Fields = presentFields(desc)
	event.Namespaced = desc.IsNamespaced()
	event.Counts = map[string]int{}
	for _, field := range []Field{FieldActions, FieldMutations, FieldGetters, FieldModules} {
		if count := desc.count(field); count > 0 {
			event.Counts[string(field)] = count
		}
	}
	return dispatcher.Dispatch(ctx, activity.Created(event))
}

func presentFields[S any](desc *Descriptor[S]) []string {
	var fields []string
	if desc.HasState {
		fields = append(fields, string(FieldState))
	}
	if desc.Namespaced != nil {
		fields = append(fields, string(FieldNamespaced))
	}
	if desc.Actions != nil {
		fields = append(fields, string(FieldActions))
	}
	if desc.Mutations != nil {
		fields = append(fields, string(FieldMutations))
	}
	if desc.Getters != nil {
		fields = append(fields, string(FieldGetters))
	}
	if desc.Modules != nil {
		fields = append(fields, string(FieldModules))
	}
	return fields
}
