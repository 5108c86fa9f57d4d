// Package state persists module state snapshots per scope and feeds them
// back into builders.
//
// A Store loads and saves one snapshot for one Ref. The Resolver loads the
// snapshots of several scopes for a module and deep-merges them in priority
// order, so a user snapshot overrides its tenant and system counterparts key
// by key. The result is a state source ready for Builder.State, or can be
// mixed straight into a builder with Apply, which replaces the top-level keys
// the snapshot names.
//
// Data flow:
//
//	Store -> Resolver.Resolve -> *modkit.StateSource[T] -> Builder.State
//
// Keys:
//
//	Ref.Identifier() yields `system/<module>` for the system scope and
//	`<scope>/<id>/<module>` for tenant, org, team and user scopes.
package state
