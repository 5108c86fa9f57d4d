package modkit

import (
	"encoding/json"
)

// Trace lists how each mixin entry contributed to one descriptor field.
type Trace struct {
	Builder string       `json:"builder"`
	Field   Field        `json:"field"`
	Entries []Provenance `json:"entries"`
}

// Provenance details one entry's contribution to a traced field.
type Provenance struct {
	Index    int      `json:"index"`
	Label    string   `json:"label,omitempty"`
	Owned    bool     `json:"owned"`
	Strategy string   `json:"strategy,omitempty"`
	Producer bool     `json:"producer,omitempty"`
	Keys     []string `json:"keys,omitempty"`
}

// Trace reports, per accepted entry in fold order, whether it owned field.
func (b *Builder[S, V]) Trace(field Field) Trace {
	trace := Trace{
		Builder: b.id,
		Field:   field,
		Entries: make([]Provenance, 0, len(b.entries)),
	}
	for i, entry := range b.entries {
		provenance := Provenance{
			Index: i,
			Label: entry.Options.Label,
			Owned: entry.Partial.Owns(field),
		}
		if provenance.Owned {
			switch field {
			case FieldState:
				provenance.Strategy = entry.Options.State.String()
				provenance.Producer = entry.Partial.State.IsProducer()
			default:
				provenance.Keys = entry.Partial.keys(field)
			}
		}
		trace.Entries = append(trace.Entries, provenance)
	}
	return trace
}

// Owners returns the indexes of entries that owned the field.
func (t Trace) Owners() []int {
	var owners []int
	for _, entry := range t.Entries {
		if entry.Owned {
			owners = append(owners, entry.Index)
		}
	}
	return owners
}

// ToJSON serialises the trace for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
