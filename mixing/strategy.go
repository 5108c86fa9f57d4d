package mixing

import "strings"

// Strategy selects how two mixable values are combined.
type Strategy int

const (
	// Shallow replaces keys one level deep: nested containers under a shared
	// key are replaced wholesale.
	Shallow Strategy = iota
	// Deep merges nested containers recursively and concatenates slices.
	// Struct fields holding a nil map, slice, pointer or interface in the
	// later value keep the earlier field; zero scalars replace it.
	Deep
)

func (s Strategy) String() string {
	switch s {
	case Shallow:
		return "shallow"
	case Deep:
		return "deep"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a string representation into a Strategy. Unknown
// values report false and fall back to Shallow.
func ParseStrategy(value string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "shallow", "":
		return Shallow, true
	case "deep":
		return Deep, true
	default:
		return Shallow, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown values decode to
// Shallow.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, _ := ParseStrategy(string(text))
	*s = parsed
	return nil
}
