package modkit

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSelfReference is returned when a mixin embeds the builder it is
	// being mixed into.
	ErrSelfReference = errors.New("modkit: module references its own builder")
	// ErrModuleCycle is returned when nested builders embed each other.
	ErrModuleCycle = errors.New("modkit: module cycle detected")
	// ErrUnknownService is returned when a registered service has no matching
	// slot in the services bundle.
	ErrUnknownService = errors.New("modkit: unknown service")
	// ErrServiceType is returned when a registered service cannot be assigned
	// to its slot in the services bundle.
	ErrServiceType = errors.New("modkit: service type mismatch")
	// ErrEngineUnavailable is returned by engines not compiled into the
	// binary.
	ErrEngineUnavailable = errors.New("modkit: expression engine unavailable")
)

// SelfReferenceError names the module key that pointed back at the builder.
type SelfReferenceError struct {
	Key       string
	BuilderID string
}

func (e *SelfReferenceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("modkit: module %q references its own builder %s", e.Key, e.BuilderID)
}

func (e *SelfReferenceError) Unwrap() error {
	return ErrSelfReference
}

// ModuleCycleError lists the module keys leading back to a builder that is
// already being created.
type ModuleCycleError struct {
	Path      []string
	BuilderID string
}

func (e *ModuleCycleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("modkit: module cycle at %s (builder %s)", describePath(e.Path), e.BuilderID)
}

func (e *ModuleCycleError) Unwrap() error {
	return ErrModuleCycle
}

// BuildError captures the stage and module where Create failed.
type BuildError struct {
	Stage  string
	Module string
	Err    error
}

func (e *BuildError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Module == "" {
		return fmt.Sprintf("modkit: %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("modkit: %s %q: %v", e.Stage, e.Module, e.Err)
}

func (e *BuildError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExpressionError ties an expression failure to the getter it backs.
type ExpressionError struct {
	Engine string
	Source string
	Getter string
	Err    error
}

func (e *ExpressionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("modkit: getter %q (%s %q): %v", e.Getter, e.Engine, e.Source, e.Err)
}

func (e *ExpressionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// newExpressionError wraps err unless it already is an ExpressionError.
func newExpressionError(engine, source, getter string, err error) error {
	var exprErr *ExpressionError
	if errors.As(err, &exprErr) {
		return err
	}
	return &ExpressionError{Engine: engine, Source: source, Getter: getter, Err: err}
}

func describePath(path []string) string {
	if len(path) == 0 {
		return "<root>"
	}
	return strings.Join(path, ".")
}

func wrapBuildError(stage, module string, err error) error {
	if err == nil {
		return nil
	}
	var cycle *ModuleCycleError
	if errors.As(err, &cycle) {
		return err
	}
	return &BuildError{Stage: stage, Module: module, Err: err}
}
