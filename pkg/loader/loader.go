// Package loader reads module state from YAML, HCL and JSON documents and
// returns it as state sources ready for Builder.State or Partial.State.
//
// Documents are decoded into a map first and then hydrated into the state
// type through its JSON tags, so the same struct works for every format.
// Numbers in map[string]any state come out as float64.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"

	modkit "github.com/goliatone/go-modkit"
	"github.com/goliatone/go-modkit/internal/hydrate"
)

// Format identifies a state document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
	FormatJSON Format = "json"
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("loader: unsupported state file extension %q", filepath.Ext(path))
	}
}

// Decode parses data in format and hydrates it into S.
func Decode[S any](format Format, name string, data []byte) (S, error) {
	var zero S
	payload, err := parse(format, name, data)
	if err != nil {
		return zero, err
	}
	state, err := hydrate.New[S]().Decode(hydrate.Origin{Name: name, Format: string(format)}, payload)
	if err != nil {
		return zero, fmt.Errorf("loader: %w", err)
	}
	return state, nil
}

// File reads path once and returns its state as a literal source.
func File[S any](path string) (*modkit.StateSource[S], error) {
	state, err := readFile[S](path)
	if err != nil {
		return nil, err
	}
	return modkit.Literal(state), nil
}

// Watch returns a producer that re-reads path on every fold. When the file
// cannot be read or decoded the producer returns fallback and passes the
// error to onError, if set.
func Watch[S any](path string, fallback S, onError func(error)) *modkit.StateSource[S] {
	return modkit.Producer(func() S {
		state, err := readFile[S](path)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return fallback
		}
		return state
	})
}

func readFile[S any](path string) (S, error) {
	var zero S
	format, err := FormatFromPath(path)
	if err != nil {
		return zero, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("loader: read %s: %w", path, err)
	}
	return Decode[S](format, filepath.Base(path), data)
}

func parse(format Format, name string, data []byte) (map[string]any, error) {
	switch format {
	case FormatYAML:
		return parseYAML(name, data)
	case FormatHCL:
		return parseHCL(name, data)
	case FormatJSON:
		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("loader: parse json %s: %w", name, err)
		}
		return ensurePayload(payload), nil
	default:
		return nil, fmt.Errorf("loader: unsupported format %q", format)
	}
}

func parseYAML(name string, data []byte) (map[string]any, error) {
	var payload map[string]any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("loader: parse yaml %s: %w", name, err)
	}
	return ensurePayload(payload), nil
}

// parseHCL reads top level attributes only; blocks are rejected.
func parseHCL(name string, data []byte) (map[string]any, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, name)
	if diags.HasErrors() {
		return nil, fmt.Errorf("loader: parse hcl %s: %w", name, diags)
	}
	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("loader: hcl %s: %w", name, diags)
	}

	payload := make(map[string]any, len(attrs))
	for key, attr := range attrs {
		value, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("loader: hcl %s attribute %q: %w", name, key, diags)
		}
		raw, err := ctyjson.Marshal(value, value.Type())
		if err != nil {
			return nil, fmt.Errorf("loader: hcl %s attribute %q: %w", name, key, err)
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("loader: hcl %s attribute %q: %w", name, key, err)
		}
		payload[key] = decoded
	}
	return payload, nil
}

func ensurePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	return payload
}
