package modkit

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-modkit/mixing"
)

type testServices struct {
	Greeting string
	Counter  *int
}

func TestCreateWithoutEntriesIsEmpty(t *testing.T) {
	desc, err := New[any, any]().Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !desc.IsEmpty() {
		t.Fatalf("expected empty descriptor, got %+v", desc)
	}
	if desc.Actions != nil || desc.Mutations != nil || desc.Getters != nil || desc.Modules != nil {
		t.Fatalf("expected no handler maps, got %+v", desc)
	}
}

func TestOwnedEmptyMapsArePresent(t *testing.T) {
	desc, err := New[any, any]().Actions(nil).Getters(map[string]GetterHandler[any, any]{}).Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if desc.Actions == nil || len(desc.Actions) != 0 {
		t.Fatalf("expected empty but present actions, got %#v", desc.Actions)
	}
	if desc.Getters == nil {
		t.Fatalf("expected getters present")
	}
	if desc.Mutations != nil {
		t.Fatalf("expected mutations absent")
	}
	if desc.IsEmpty() {
		t.Fatalf("descriptor with owned fields must not be empty")
	}
}

func TestStateFold(t *testing.T) {
	base := map[string]any{"a": map[string]any{"a": map[string]any{"a": 1}}}
	cases := []struct {
		name   string
		build  func() *Builder[any, any]
		expect any
	}{
		{
			name: "scalar replaced by container",
			build: func() *Builder[any, any] {
				return New[any, any]().State(Literal[any](1)).State(Literal[any](map[string]any{}))
			},
			expect: map[string]any{},
		},
		{
			name: "shallow replaces nested containers",
			build: func() *Builder[any, any] {
				return New[any, any]().State(Literal[any](base)).State(Literal[any](map[string]any{"a": 2}))
			},
			expect: map[string]any{"a": 2},
		},
		{
			name: "deep merges nested containers",
			build: func() *Builder[any, any] {
				return New[any, any]().
					State(Literal[any](base)).
					Mixin(Partial[any, any]{State: Literal[any](map[string]any{"a": map[string]any{"a": 2, "b": 1}})}, WithStrategy(mixing.Deep))
			},
			expect: map[string]any{"a": map[string]any{"a": 2, "b": 1}},
		},
		{
			name: "deep concatenates slices",
			build: func() *Builder[any, any] {
				return New[any, any]().
					State(Literal[any](map[string]any{"array": []any{1}})).
					State(Literal[any](map[string]any{"array": []any{2}}), mixing.Deep)
			},
			expect: map[string]any{"array": []any{1, 2}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			desc, err := tc.build().Create()
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if !desc.HasState {
				t.Fatalf("expected state present")
			}
			if diff := cmp.Diff(tc.expect, desc.State); diff != "" {
				t.Fatalf("state mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeepStateReplacesLeafValues(t *testing.T) {
	first := regexp.MustCompile("a")
	second := regexp.MustCompile("b")
	desc, err := New[any, any]().
		State(Literal[any](first)).
		State(Literal[any](second), mixing.Deep).
		Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if desc.State != second {
		t.Fatalf("expected second regexp, got %v", desc.State)
	}

	earlier := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	dates, err := New[time.Time, any]().
		State(Literal(earlier)).
		State(Literal(later), mixing.Deep).
		Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !dates.State.Equal(later) {
		t.Fatalf("expected later date, got %v", dates.State)
	}
}

func TestFromSeedsBaseEntry(t *testing.T) {
	b := From(Partial[map[string]any, any]{State: Literal(map[string]any{"ready": true})})
	if b.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", b.Len())
	}
	if label := b.Entries()[0].Options.Label; label != "base" {
		t.Fatalf("expected base label, got %q", label)
	}
	desc, err := b.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if desc.State["ready"] != true {
		t.Fatalf("expected base state, got %v", desc.State)
	}
}

func TestHandlerMapsFoldShallowlyInOrder(t *testing.T) {
	first := func(map[string]any, any, any) { t.Fatalf("replaced mutation must not run") }
	var ran []string
	second := func(map[string]any, any, any) { ran = append(ran, "second") }
	other := func(map[string]any, any, any) { ran = append(ran, "other") }

	desc, err := New[map[string]any, any]().
		Mutation("set", first).
		Mutations(map[string]MutationHandler[map[string]any, any]{"set": second, "other": other}).
		Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(desc.Mutations) != 2 {
		t.Fatalf("expected 2 mutations, got %d", len(desc.Mutations))
	}
	desc.Mutations["set"](nil, nil)
	desc.Mutations["other"](nil, nil)
	if diff := cmp.Diff([]string{"second", "other"}, ran); diff != "" {
		t.Fatalf("mutation order mismatch (-want +got):\n%s", diff)
	}
}

func TestNamespacedLastWriteWins(t *testing.T) {
	desc, err := New[any, any]().Namespaced(true).Namespaced(false).Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if desc.Namespaced == nil || desc.IsNamespaced() {
		t.Fatalf("expected namespaced present and false, got %v", desc.Namespaced)
	}
}

func TestActionReceivesServicesInTrailingSlot(t *testing.T) {
	counter := 0
	var gotPayload any
	var gotServices testServices
	var gotState map[string]any

	desc, err := New[map[string]any, testServices]().
		Bundle(testServices{Greeting: "hi", Counter: &counter}).
		Action("greet", Handle[map[string]any, testServices](func(ctx ActionContext[map[string]any], payload any, services testServices) (any, error) {
			gotState = ctx.State
			gotPayload = payload
			gotServices = services
			*services.Counter++
			return services.Greeting, nil
		})).
		Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := desc.Actions["greet"].Handler(ActionContext[map[string]any]{State: map[string]any{"n": 1}}, "payload", "host slot")
	if err != nil {
		t.Fatalf("action: %v", err)
	}
	if result != "hi" {
		t.Fatalf("expected greeting, got %v", result)
	}
	if gotPayload != "payload" {
		t.Fatalf("expected payload to pass through, got %v", gotPayload)
	}
	if gotState["n"] != 1 {
		t.Fatalf("expected state to pass through, got %v", gotState)
	}
	if gotServices.Greeting != "hi" || counter != 1 {
		t.Fatalf("expected services in trailing slot, got %+v counter=%d", gotServices, counter)
	}
}

func TestMutationAndGetterReceiveServicesAppended(t *testing.T) {
	var mutated []any
	desc, err := New[map[string]any, map[string]any]().
		Service("prefix", "item:").
		Mutation("add", func(state map[string]any, payload any, services map[string]any) {
			mutated = append(mutated, services["prefix"].(string)+payload.(string))
		}).
		Getter("label", func(state map[string]any, getters map[string]any, rootState any, rootGetters map[string]any, services map[string]any) any {
			return services["prefix"].(string) + state["name"].(string) + rootState.(string)
		}).
		Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	desc.Mutations["add"](map[string]any{}, "apple")
	if diff := cmp.Diff([]any{"item:apple"}, mutated); diff != "" {
		t.Fatalf("mutation mismatch (-want +got):\n%s", diff)
	}

	label := desc.Getters["label"](map[string]any{"name": "pear"}, nil, "!", nil)
	if label != "item:pear!" {
		t.Fatalf("expected getter to see services, got %v", label)
	}
}

func TestRootFlagSurvivesFinalize(t *testing.T) {
	handler := func(ActionContext[any], any, any) (any, error) { return "ok", nil }
	desc, err := New[any, any]().
		Action("plain", Handle[any, any](handler)).
		Action("global", HandleWithOptions[any, any](handler, true)).
		Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if desc.Actions["plain"].Root {
		t.Fatalf("plain action must not be root")
	}
	if !desc.Actions["global"].Root {
		t.Fatalf("expected root flag preserved")
	}
	if out, _ := desc.Actions["global"].Handler(ActionContext[any]{}, nil, nil); out != "ok" {
		t.Fatalf("expected handler to run, got %v", out)
	}
}

func TestSelfReferenceIsRejected(t *testing.T) {
	b := New[any, any]().State(Literal[any](1))
	b.Mixin(Partial[any, any]{
		State:   Literal[any](2),
		Modules: map[string]Module{"self": b},
	})

	if b.Len() != 1 {
		t.Fatalf("expected rejected entry to leave 1 entry, got %d", b.Len())
	}
	var selfErr *SelfReferenceError
	if !errors.As(b.Err(), &selfErr) || selfErr.Key != "self" {
		t.Fatalf("expected self reference error naming the key, got %v", b.Err())
	}

	_, err := b.Create()
	if !errors.Is(err, ErrSelfReference) {
		t.Fatalf("expected Create to surface self reference, got %v", err)
	}
}

func TestClearErrRecoversBuilder(t *testing.T) {
	b := New[any, any]().State(Literal[any](1))
	b.Mixin(Partial[any, any]{Modules: map[string]Module{"self": b}})

	if err := b.ClearErr(); !errors.Is(err, ErrSelfReference) {
		t.Fatalf("expected cleared self reference error, got %v", err)
	}
	if b.Err() != nil {
		t.Fatalf("expected no recorded error after clear, got %v", b.Err())
	}

	desc, err := b.State(Literal[any](2)).Create()
	if err != nil {
		t.Fatalf("create after clear: %v", err)
	}
	if desc.State != 2 || b.Len() != 2 {
		t.Fatalf("expected rejected entry to stay out, got state %v with %d entries", desc.State, b.Len())
	}
}

type treeNode struct {
	Name   string
	Kids   []*treeNode
	Parent *treeNode
}

func newTree(name string, kids ...string) *treeNode {
	root := &treeNode{Name: name}
	for _, kid := range kids {
		root.Kids = append(root.Kids, &treeNode{Name: kid, Parent: root})
	}
	return root
}

func TestCreateWithCyclicState(t *testing.T) {
	for _, strategy := range []mixing.Strategy{mixing.Shallow, mixing.Deep} {
		t.Run(strategy.String(), func(t *testing.T) {
			desc, err := New[*treeNode, any]().
				State(Literal(newTree("root", "a"))).
				State(Literal(newTree("root", "b")), strategy).
				Create()
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			root := desc.State
			if len(root.Kids) == 0 {
				t.Fatalf("expected children, got %+v", root)
			}
			for _, kid := range root.Kids {
				if kid.Parent == nil || kid.Parent.Name != "root" {
					t.Fatalf("expected back pointer to a root, got %+v", kid.Parent)
				}
			}
		})
	}

	self := map[string]any{"name": "loop"}
	self["self"] = self
	desc, err := New[map[string]any, any]().State(Literal(self)).Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	copied := desc.State["self"].(map[string]any)
	if copied["name"] != "loop" {
		t.Fatalf("expected self reference to survive, got %v", copied)
	}
}

func TestNestedBuilderIsResolved(t *testing.T) {
	child := New[map[string]any, any]().
		State(Literal(map[string]any{"items": []any{}})).
		Namespaced(true)
	parent := New[map[string]any, any]().Module("cart", child)

	desc, err := parent.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	resolved, ok := desc.Modules["cart"].(*Descriptor[map[string]any])
	if !ok {
		t.Fatalf("expected resolved descriptor, got %T", desc.Modules["cart"])
	}
	if !resolved.IsNamespaced() || !resolved.HasState {
		t.Fatalf("unexpected nested descriptor %+v", resolved)
	}
}

func TestFinishedDescriptorModulePassesThrough(t *testing.T) {
	finished := &Descriptor[int]{State: 3, HasState: true}
	desc, err := New[any, any]().Module("done", finished).Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if desc.Modules["done"] != Module(finished) {
		t.Fatalf("expected descriptor to pass through unchanged")
	}
}

func TestIndirectCycleIsDetected(t *testing.T) {
	a := New[any, any](WithName("a"))
	b := New[any, any](WithName("b"))
	a.Module("child", b)
	b.Module("parent", a)

	_, err := a.Create()
	var cycle *ModuleCycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected module cycle error, got %v", err)
	}
	if diff := cmp.Diff([]string{"child", "parent"}, cycle.Path); diff != "" {
		t.Fatalf("cycle path mismatch (-want +got):\n%s", diff)
	}
	if cycle.BuilderID != a.ID() {
		t.Fatalf("expected cycle to name builder a")
	}
	if !errors.Is(err, ErrModuleCycle) {
		t.Fatalf("expected errors.Is ErrModuleCycle")
	}
}

func TestSharedChildIsNotACycle(t *testing.T) {
	shared := New[any, any]().State(Literal[any]("shared"))
	left := New[any, any]().Module("shared", shared)
	desc, err := New[any, any]().Module("left", left).Module("right", shared).Create()
	if err != nil {
		t.Fatalf("expected diamond to resolve, got %v", err)
	}
	if len(desc.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(desc.Modules))
	}
}

func TestNestedFailureNamesModule(t *testing.T) {
	broken := New[any, map[string]any]().Bundle(map[string]any{})
	broken.Service("", 1)
	_, err := New[any, any]().Module("broken", broken).Create()
	var buildErr *BuildError
	if !errors.As(err, &buildErr) || buildErr.Module != "broken" || buildErr.Stage != "module" {
		t.Fatalf("expected module build error, got %v", err)
	}
}

func TestRepeatedCreateDoesNotDoubleWrap(t *testing.T) {
	calls := 0
	b := New[any, int]().
		Bundle(7).
		Getter("services", func(any, map[string]any, any, map[string]any, int) any {
			calls++
			return calls
		}).
		Action("services", Handle[any, int](func(_ ActionContext[any], _ any, services int) (any, error) {
			return services, nil
		}))

	for i := 0; i < 2; i++ {
		desc, err := b.Create()
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		out, err := desc.Actions["services"].Handler(ActionContext[any]{}, nil, nil)
		if err != nil || out != 7 {
			t.Fatalf("create %d: expected services bundle once, got %v err=%v", i, out, err)
		}
	}
}

func TestProducerRunsOnEveryCreate(t *testing.T) {
	calls := 0
	b := New[map[string]any, any]().State(Producer(func() map[string]any {
		calls++
		return map[string]any{"calls": calls}
	}))

	first, err := b.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := b.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.State["calls"] != 1 || second.State["calls"] != 2 {
		t.Fatalf("expected fresh state per create, got %v and %v", first.State, second.State)
	}
}

func TestCreateDoesNotAliasLiteralState(t *testing.T) {
	literal := map[string]any{"items": []any{"a"}}
	b := New[map[string]any, any]().State(Literal(literal))

	desc, err := b.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	desc.State["items"] = append(desc.State["items"].([]any), "b")
	desc.State["extra"] = true

	again, err := b.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"items": []any{"a"}}, again.State); diff != "" {
		t.Fatalf("literal leaked mutation (-want +got):\n%s", diff)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := New[any, map[string]any](WithName("orig")).
		State(Literal[any](1)).
		Service("db", "primary")
	clone := b.Clone().State(Literal[any](2)).Service("db", "replica")

	if clone.ID() == b.ID() {
		t.Fatalf("expected clone to get a new id")
	}
	if clone.Name() != "orig" {
		t.Fatalf("expected clone to keep options")
	}
	if b.Len() != 1 || clone.Len() != 2 {
		t.Fatalf("expected independent entries, got %d and %d", b.Len(), clone.Len())
	}

	var seen string
	getter := func(_ any, _ map[string]any, _ any, _ map[string]any, services map[string]any) any {
		seen = services["db"].(string)
		return nil
	}
	desc, err := b.Getter("db", getter).Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	desc.Getters["db"](nil, nil, nil, nil)
	if seen != "primary" {
		t.Fatalf("expected original services untouched, got %q", seen)
	}
}

func TestDefaultStateStrategyOption(t *testing.T) {
	desc, err := New[any, any](WithStateStrategy(mixing.Deep)).
		State(Literal[any](map[string]any{"a": map[string]any{"x": 1}})).
		State(Literal[any](map[string]any{"a": map[string]any{"y": 2}})).
		Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"a": map[string]any{"x": 1, "y": 2}}, desc.State); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}

	shallow, err := New[any, any](WithStateStrategy(mixing.Deep)).
		State(Literal[any](map[string]any{"a": map[string]any{"x": 1}})).
		State(Literal[any](map[string]any{"a": map[string]any{"y": 2}}), mixing.Shallow).
		Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"a": map[string]any{"y": 2}}, shallow.State); diff != "" {
		t.Fatalf("explicit strategy must win (-want +got):\n%s", diff)
	}
}

func TestCreateContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New[any, any]().State(Literal[any](1)).CreateContext(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestEntriesReturnsCopies(t *testing.T) {
	b := New[any, any]().Mutations(map[string]MutationHandler[any, any]{"a": func(any, any, any) {}})
	entries := b.Entries()
	entries[0].Partial.Mutations["b"] = func(any, any, any) {}

	desc, err := b.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := desc.Mutations["b"]; ok {
		t.Fatalf("expected Entries to return a copy")
	}
}
