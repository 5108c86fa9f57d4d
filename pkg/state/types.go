package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	modkit "github.com/goliatone/go-modkit"
	"github.com/goliatone/go-modkit/mixing"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// ErrNoSnapshots is returned by Resolve when no scope holds a snapshot.
var ErrNoSnapshots = errors.New("state: no snapshots found")

const (
	ScopePrioritySystem = 100
	ScopePriorityTenant = 200
	ScopePriorityOrg    = 300
	ScopePriorityTeam   = 400
	ScopePriorityUser   = 500
)

// Scope is one level of ownership for persisted state. Higher priority
// scopes override lower ones when snapshots are resolved together.
type Scope struct {
	Name     string `json:"name"`
	ID       string `json:"id,omitempty"`
	Priority int    `json:"priority"`
}

// System returns the system scope.
func System() Scope {
	return Scope{Name: "system", Priority: ScopePrioritySystem}
}

func Tenant(id string) Scope {
	return Scope{Name: "tenant", ID: id, Priority: ScopePriorityTenant}
}

func Org(id string) Scope {
	return Scope{Name: "org", ID: id, Priority: ScopePriorityOrg}
}

func Team(id string) Scope {
	return Scope{Name: "team", ID: id, Priority: ScopePriorityTeam}
}

func User(id string) Scope {
	return Scope{Name: "user", ID: id, Priority: ScopePriorityUser}
}

// Ref identifies one persisted snapshot of one module's state.
type Ref struct {
	Module string
	Scope  Scope
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one snapshot for a single reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Deleter is implemented by stores that can remove a snapshot.
type Deleter interface {
	Delete(ctx context.Context, ref Ref) error
}

// Resolver loads scoped snapshots and merges them into module state.
type Resolver[T any] struct {
	Store Store[T]
	// Now stamps UpdatedAt on save. Defaults to time.Now.
	Now func() time.Time
}

type Mutator[T any] func(*T) error

// Layer is a snapshot loaded for one scope.
type Layer[T any] struct {
	Scope    Scope
	Snapshot T
	Meta     Meta
}

func (r Ref) Identifier() (string, error) {
	if r.Module == "" {
		return "", fmt.Errorf("state: module is required")
	}
	switch r.Scope.Name {
	case "system":
		return fmt.Sprintf("system/%s", r.Module), nil
	case "tenant", "org", "team", "user":
		if r.Scope.ID == "" {
			return "", fmt.Errorf("state: missing id for scope %q", r.Scope.Name)
		}
		return fmt.Sprintf("%s/%s/%s", r.Scope.Name, r.Scope.ID, r.Module), nil
	default:
		return "", fmt.Errorf("state: unsupported scope name %q", r.Scope.Name)
	}
}

// Load returns the snapshots present for module, ordered from lowest to
// highest priority.
func (r Resolver[T]) Load(ctx context.Context, module string, scopes ...Scope) ([]Layer[T], error) {
	if r.Store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if module == "" {
		return nil, fmt.Errorf("state: module is required")
	}

	ordered := append([]Scope(nil), scopes...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	layers := make([]Layer[T], 0, len(ordered))
	for _, scope := range ordered {
		snapshot, meta, ok, err := r.Store.Load(ctx, Ref{Module: module, Scope: scope})
		if err != nil {
			return nil, fmt.Errorf("state: load %q for scope %q: %w", module, scope.Name, err)
		}
		if !ok {
			continue
		}
		layers = append(layers, Layer[T]{Scope: scope, Snapshot: snapshot, Meta: meta})
	}
	return layers, nil
}

// Resolve deep-merges the snapshots found for module and returns the result
// as a literal state source.
func (r Resolver[T]) Resolve(ctx context.Context, module string, scopes ...Scope) (*modkit.StateSource[T], error) {
	if len(scopes) == 0 {
		return nil, fmt.Errorf("state: at least one scope is required")
	}
	layers, err := r.Load(ctx, module, scopes...)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w for module %q", ErrNoSnapshots, module)
	}
	return modkit.Literal(mergeLayers(layers)), nil
}

// ResolveWithDefaults is Resolve with defaults underneath every scope. It
// never fails for lack of snapshots.
func (r Resolver[T]) ResolveWithDefaults(ctx context.Context, module string, defaults T, scopes ...Scope) (*modkit.StateSource[T], error) {
	for _, scope := range scopes {
		if scope.Name == "defaults" {
			return nil, fmt.Errorf("state: scope name %q is reserved", "defaults")
		}
	}
	layers, err := r.Load(ctx, module, scopes...)
	if err != nil {
		return nil, err
	}
	all := make([]Layer[T], 0, len(layers)+1)
	all = append(all, Layer[T]{Scope: Scope{Name: "defaults"}, Snapshot: defaults})
	all = append(all, layers...)
	return modkit.Literal(mergeLayers(all)), nil
}

// Save persists the state of desc under ref. A descriptor without state is
// rejected. When meta carries an ETag it must match the stored one.
func (r Resolver[T]) Save(ctx context.Context, ref Ref, desc *modkit.Descriptor[T], meta Meta) (Meta, error) {
	if desc == nil || !desc.HasState {
		return Meta{}, fmt.Errorf("state: descriptor for %q has no state", ref.Module)
	}
	return r.Mutate(ctx, ref, meta, func(snapshot *T) error {
		*snapshot = mixing.Clone(desc.State)
		return nil
	})
}

// Mutate loads one snapshot, applies fn, validates and saves it. Snapshots
// implementing Validate() error are rejected before saving when invalid.
func (r Resolver[T]) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator[T]) (Meta, error) {
	if r.Store == nil {
		return Meta{}, fmt.Errorf("state: store is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return Meta{}, err
	}
	if fn == nil {
		return Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return Meta{}, fmt.Errorf("state: load %q for scope %q: %w", ref.Module, ref.Scope.Name, err)
	}
	if !ok {
		var zero T
		snapshot = zero
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&snapshot); err != nil {
		return loadedMeta, err
	}
	if v, ok := any(snapshot).(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return loadedMeta, err
		}
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	saveMeta.SnapshotID = uuid.NewString()
	saveMeta.ETag = uuid.NewString()
	saveMeta.UpdatedAt = r.now()

	savedMeta, err := r.Store.Save(ctx, ref, snapshot, saveMeta)
	if err != nil {
		return loadedMeta, fmt.Errorf("state: save %q for scope %q: %w", ref.Module, ref.Scope.Name, err)
	}
	return savedMeta, nil
}

// Reset removes the snapshot for ref so the next Resolve falls back to lower
// priority scopes. The store must implement Deleter.
func (r Resolver[T]) Reset(ctx context.Context, ref Ref) error {
	if r.Store == nil {
		return fmt.Errorf("state: store is required")
	}
	deleter, ok := r.Store.(Deleter)
	if !ok {
		return fmt.Errorf("state: store %T cannot delete snapshots", r.Store)
	}
	if err := deleter.Delete(ctx, ref); err != nil {
		return fmt.Errorf("state: reset %q for scope %q: %w", ref.Module, ref.Scope.Name, err)
	}
	return nil
}

// Apply resolves the persisted state of module and mixes it into b with the
// shallow strategy: every top-level key of the resolved snapshot replaces the
// same key of the builder's state, and keys it does not name are kept. Since
// Save stores a descriptor's full state, a Save then Apply round trip yields
// the saved state again instead of growing its slices.
func Apply[T, V any](ctx context.Context, r Resolver[T], b *modkit.Builder[T, V], module string, scopes ...Scope) (*modkit.Builder[T, V], error) {
	source, err := r.Resolve(ctx, module, scopes...)
	if err != nil {
		return b, err
	}
	return b.Mixin(modkit.Partial[T, V]{State: source},
		modkit.WithStrategy(mixing.Shallow),
		modkit.WithLabel("persisted:"+module),
	), nil
}

func (r Resolver[T]) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func mergeLayers[T any](layers []Layer[T]) T {
	out := mixing.Clone(layers[0].Snapshot)
	for _, layer := range layers[1:] {
		out = mixing.MixAs(out, layer.Snapshot, mixing.Deep)
	}
	return out
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
