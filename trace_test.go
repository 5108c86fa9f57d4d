package modkit

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-modkit/mixing"
)

func TestTraceReportsOwnership(t *testing.T) {
	b := New[map[string]any, any]().
		Mixin(Partial[map[string]any, any]{State: Literal(map[string]any{"a": 1})}, WithLabel("base")).
		Getter("count", func(map[string]any, map[string]any, any, map[string]any, any) any { return 0 }).
		Mixin(Partial[map[string]any, any]{
			State: Producer(func() map[string]any { return nil }),
			Getters: map[string]GetterHandler[map[string]any, any]{
				"b": nil,
				"a": nil,
			},
		}, WithStrategy(mixing.Deep), WithLabel("extra"))

	state := b.Trace(FieldState)
	want := Trace{
		Builder: b.ID(),
		Field:   FieldState,
		Entries: []Provenance{
			{Index: 0, Label: "base", Owned: true, Strategy: "shallow"},
			{Index: 1, Owned: false},
			{Index: 2, Label: "extra", Owned: true, Strategy: "deep", Producer: true},
		},
	}
	if diff := cmp.Diff(want, state); diff != "" {
		t.Fatalf("state trace mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 2}, state.Owners()); diff != "" {
		t.Fatalf("owners mismatch (-want +got):\n%s", diff)
	}

	getters := b.Trace(FieldGetters)
	if diff := cmp.Diff([]string{"a", "b"}, getters.Entries[2].Keys); diff != "" {
		t.Fatalf("getter keys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2}, getters.Owners()); diff != "" {
		t.Fatalf("getter owners mismatch (-want +got):\n%s", diff)
	}

	if owners := b.Trace(FieldModules).Owners(); owners != nil {
		t.Fatalf("expected no module owners, got %v", owners)
	}
}

func TestTraceJSONRoundTrip(t *testing.T) {
	b := New[any, any]().Namespaced(true).Mutation("set", func(any, any, any) {})
	trace := b.Trace(FieldMutations)

	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if diff := cmp.Diff(trace, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	if _, err := TraceFromJSON([]byte("{")); err == nil {
		t.Fatalf("expected malformed payload to fail")
	}
}
