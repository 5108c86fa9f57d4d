// Package hydrate turns loosely typed snapshots (parsed YAML, HCL or stored
// JSON) into a module's typed state.
package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goliatone/go-modkit/mixing"
)

// Origin identifies where a snapshot came from. It only feeds error messages
// and stage callbacks.
type Origin struct {
	Name   string
	Format string
}

func (o Origin) String() string {
	if o.Format == "" {
		return o.Name
	}
	return o.Format + ":" + o.Name
}

// Stage names the step of Decode that failed.
type Stage string

const (
	StageParse     Stage = "parse"
	StageNormalize Stage = "normalize"
	StageDecode    Stage = "decode"
	StageCheck     Stage = "check"
)

// Error reports a failed Decode.
type Error struct {
	Origin Origin
	Stage  Stage
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hydrate %s %q: %v", e.Stage, e.Origin.String(), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNilSnapshot is returned for a nil payload.
var ErrNilSnapshot = errors.New("snapshot is nil")

// Normalizer rewrites a raw snapshot before it is decoded. It receives a
// private copy and may return it modified or return a new map.
type Normalizer func(Origin, map[string]any) (map[string]any, error)

// Check inspects or adjusts the decoded state.
type Check[T any] func(Origin, *T) error

// Option configures a Decoder.
type Option[T any] func(*Decoder[T])

// Decoder converts snapshots into T by re-encoding them as JSON, so state
// types only need json tags.
type Decoder[T any] struct {
	normalizers []Normalizer
	checks      []Check[T]
	strict      bool
	numbers     bool
	direct      func(Origin, map[string]any) (T, error)
}

func Normalize[T any](fn Normalizer) Option[T] {
	return func(d *Decoder[T]) {
		if fn != nil {
			d.normalizers = append(d.normalizers, fn)
		}
	}
}

func WithCheck[T any](fn Check[T]) Option[T] {
	return func(d *Decoder[T]) {
		if fn != nil {
			d.checks = append(d.checks, fn)
		}
	}
}

// Strict rejects snapshot keys that have no matching field in T.
func Strict[T any]() Option[T] {
	return func(d *Decoder[T]) { d.strict = true }
}

// KeepNumbers leaves numbers in untyped fields as json.Number instead of
// float64.
func KeepNumbers[T any]() Option[T] {
	return func(d *Decoder[T]) { d.numbers = true }
}

// Direct bypasses the JSON step. Normalizers and checks still run.
func Direct[T any](fn func(Origin, map[string]any) (T, error)) Option[T] {
	return func(d *Decoder[T]) { d.direct = fn }
}

func New[T any](opts ...Option[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode hydrates snapshot into T. snapshot itself is never modified.
func (d *Decoder[T]) Decode(origin Origin, snapshot map[string]any) (T, error) {
	var zero T
	if snapshot == nil {
		return zero, &Error{Origin: origin, Stage: StageParse, Err: ErrNilSnapshot}
	}

	current := mixing.Clone(snapshot)
	for _, normalize := range d.normalizers {
		next, err := normalize(origin, current)
		if err != nil {
			return zero, &Error{Origin: origin, Stage: StageNormalize, Err: err}
		}
		if next != nil {
			current = next
		}
	}

	out, err := d.convert(origin, current)
	if err != nil {
		return zero, &Error{Origin: origin, Stage: StageDecode, Err: err}
	}

	for _, check := range d.checks {
		if err := check(origin, &out); err != nil {
			return zero, &Error{Origin: origin, Stage: StageCheck, Err: err}
		}
	}
	return out, nil
}

// DecodeJSON parses raw as a JSON object and hydrates it.
func (d *Decoder[T]) DecodeJSON(origin Origin, raw []byte) (T, error) {
	var snapshot map[string]any
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		var zero T
		return zero, &Error{Origin: origin, Stage: StageParse, Err: err}
	}
	return d.Decode(origin, snapshot)
}

func (d *Decoder[T]) convert(origin Origin, snapshot map[string]any) (T, error) {
	if d.direct != nil {
		return d.direct(origin, snapshot)
	}
	var out T
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return out, err
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	if d.strict {
		dec.DisallowUnknownFields()
	}
	if d.numbers {
		dec.UseNumber()
	}
	err = dec.Decode(&out)
	return out, err
}
