// Package activity reports module builds to audit sinks. The builder emits
// one Event per Create call, carrying a summary of the finished module or the
// error that stopped it.
package activity

import (
	"maps"
	"slices"
	"strings"
	"time"
)

const (
	VerbModuleCreated = "module.created"
	VerbModuleFailed  = "module.failed"

	// ObjectTypeModule is the object type sinks record for module events.
	ObjectTypeModule = "module"
)

// Event summarizes one Create call.
type Event struct {
	Verb       string
	ModuleID   string
	Name       string
	ActorID    string
	TenantID   string
	Channel    string
	Entries    int
	Fields     []string
	Counts     map[string]int
	Namespaced bool
	Error      string
	Extra      map[string]any
	OccurredAt time.Time
}

// Created marks e as a successful build.
func Created(e Event) Event {
	e.Verb = VerbModuleCreated
	e.Error = ""
	return e
}

// Failed marks e as a failed build caused by err.
func Failed(e Event, err error) Event {
	e.Verb = VerbModuleFailed
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Valid reports whether e names a verb and a module.
func (e Event) Valid() bool {
	return strings.TrimSpace(e.Verb) != "" && e.objectID() != ""
}

// ObjectID is the module ID, or the module name when the ID is unset.
func (e Event) ObjectID() string {
	return e.objectID()
}

func (e Event) objectID() string {
	if id := strings.TrimSpace(e.ModuleID); id != "" {
		return id
	}
	return strings.TrimSpace(e.Name)
}

// Data flattens the summary into a metadata map. Summary keys win over Extra.
func (e Event) Data() map[string]any {
	data := make(map[string]any, len(e.Extra)+len(e.Counts)+5)
	maps.Copy(data, e.Extra)
	data["entries"] = e.Entries
	if e.Name != "" {
		data["name"] = e.Name
	}
	if len(e.Fields) > 0 {
		data["fields"] = slices.Clone(e.Fields)
	}
	for field, count := range e.Counts {
		data[field+"_count"] = count
	}
	if e.Namespaced {
		data["namespaced"] = true
	}
	if e.Error != "" {
		data["error"] = e.Error
	}
	return data
}

// normalize trims identifiers, copies the slices and maps it holds and stamps
// OccurredAt with now when unset.
func (e Event) normalize(now func() time.Time) Event {
	e.Verb = strings.TrimSpace(e.Verb)
	e.ModuleID = e.objectID()
	e.Name = strings.TrimSpace(e.Name)
	e.ActorID = strings.TrimSpace(e.ActorID)
	e.TenantID = strings.TrimSpace(e.TenantID)
	e.Channel = strings.TrimSpace(e.Channel)
	e.Fields = slices.Clone(e.Fields)
	e.Counts = maps.Clone(e.Counts)
	e.Extra = maps.Clone(e.Extra)
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now()
	}
	return e
}
