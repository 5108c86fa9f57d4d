// Package openapi describes a finished module tree as an OpenAPI document:
// one state schema component per module plus an operation for every action,
// mutation and getter.
//
// Paths follow the module nesting (`/cart/items/getters/count`). Operation IDs
// follow host registration rules: names inside namespaced modules are
// prefixed with the namespace path, names inside non-namespaced modules are
// global, and root actions are always global. Two handlers registered under
// the same global name make Generate fail.
package openapi

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	modkit "github.com/goliatone/go-modkit"
)

// Generator renders modkit.Schema values as OpenAPI documents.
type Generator struct {
	config settings
}

// NewGenerator constructs an OpenAPI generator.
func NewGenerator(opts ...GeneratorOption) Generator {
	cfg := defaultSettings()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return Generator{config: cfg}
}

// Generate builds the document for schema, the schema of the root module.
func (g Generator) Generate(schema modkit.Schema) (map[string]any, error) {
	b := &documentBuilder{
		config:     g.config,
		paths:      map[string]any{},
		components: map[string]any{},
		operations: map[string]string{},
	}
	if err := b.module(schema, nil, nil); err != nil {
		return nil, err
	}

	document := map[string]any{
		"openapi": g.config.version,
		"info":    b.info(),
		"paths":   b.paths,
	}
	if len(b.components) > 0 {
		document["components"] = map[string]any{"schemas": b.components}
	}
	if len(g.config.servers) > 0 {
		servers := make([]any, 0, len(g.config.servers))
		for _, url := range g.config.servers {
			servers = append(servers, map[string]any{"url": url})
		}
		document["servers"] = servers
	}
	return document, nil
}

// Describe is a shortcut for NewGenerator(opts...).Generate(desc.Schema()).
func Describe[S any](desc *modkit.Descriptor[S], opts ...GeneratorOption) (map[string]any, error) {
	if desc == nil {
		return nil, fmt.Errorf("openapi: descriptor cannot be nil")
	}
	return NewGenerator(opts...).Generate(desc.Schema())
}

type documentBuilder struct {
	config     settings
	paths      map[string]any
	components map[string]any
	// operations maps operationId to the path that claimed it.
	operations map[string]string
}

func (b *documentBuilder) info() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

// module registers schema found at path. namespace holds the segments of the
// namespaced ancestors, including this module when it is namespaced.
func (b *documentBuilder) module(schema modkit.Schema, path, namespace []string) error {
	if len(path) > 0 && schema.Namespaced {
		namespace = append(append([]string(nil), namespace...), path[len(path)-1])
	}
	prefix := b.config.basePath + joinSegments(path)

	component := componentName(path)
	if len(schema.State) > 0 {
		b.components[component] = stateSchema(schema.State)
		stateRef := ref(component)
		b.paths[prefix+"/state"] = map[string]any{
			"get": b.operation(path, stateOperationID(path), "200", stateRef),
		}
	}

	root := make(map[string]struct{}, len(schema.RootActions))
	for _, name := range schema.RootActions {
		root[name] = struct{}{}
	}
	for _, name := range schema.Actions {
		id := qualify(namespace, name)
		actionPath := prefix + "/actions/" + name
		if _, ok := root[name]; ok {
			id = name
			actionPath = b.config.basePath + "/actions/" + name
		}
		if err := b.claim(id, actionPath); err != nil {
			return err
		}
		op := b.operation(path, id, "200", map[string]any{})
		op["requestBody"] = b.payload()
		if _, ok := root[name]; ok {
			op["x-modkit-root"] = true
		}
		b.paths[actionPath] = map[string]any{"post": op}
	}
	for _, name := range schema.Mutations {
		id := qualify(namespace, name)
		mutationPath := prefix + "/mutations/" + name
		if err := b.claim("mutation:"+id, mutationPath); err != nil {
			return err
		}
		op := b.operation(path, "mutation:"+id, "204", nil)
		op["requestBody"] = b.payload()
		b.paths[mutationPath] = map[string]any{"post": op}
	}
	for _, name := range schema.Getters {
		id := qualify(namespace, name)
		getterPath := prefix + "/getters/" + name
		if err := b.claim("getter:"+id, getterPath); err != nil {
			return err
		}
		b.paths[getterPath] = map[string]any{"get": b.operation(path, "getter:"+id, "200", map[string]any{})}
	}

	names := make([]string, 0, len(schema.Modules))
	for name := range schema.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		child := append(append([]string(nil), path...), name)
		if err := b.module(schema.Modules[name], child, namespace); err != nil {
			return err
		}
	}
	return nil
}

func (b *documentBuilder) claim(id, path string) error {
	if existing, ok := b.operations[id]; ok {
		return fmt.Errorf("openapi: operationId %q registered by %s and %s", id, existing, path)
	}
	b.operations[id] = path
	return nil
}

func (b *documentBuilder) operation(path []string, id, status string, result map[string]any) map[string]any {
	response := map[string]any{"description": "OK"}
	if result != nil {
		response["content"] = map[string]any{
			b.config.mediaType: map[string]any{"schema": result},
		}
	}
	op := map[string]any{
		"operationId": id,
		"responses":   map[string]any{status: response},
	}
	if b.config.moduleTags {
		op["tags"] = []any{moduleTag(path)}
	}
	return op
}

func (b *documentBuilder) payload() map[string]any {
	return map[string]any{
		"required": false,
		"content": map[string]any{
			b.config.mediaType: map[string]any{"schema": map[string]any{}},
		},
	}
}

// stateSchema rebuilds the nested object shape from flattened field paths.
func stateSchema(fields []modkit.FieldDescriptor) map[string]any {
	if len(fields) == 1 && fields[0].Path == "" {
		return typeSchema(fields[0].Type)
	}
	root := objectSchema()
	for _, field := range fields {
		node := root
		segments := strings.Split(field.Path, ".")
		for _, segment := range segments[:len(segments)-1] {
			properties := node["properties"].(map[string]any)
			next, ok := properties[segment].(map[string]any)
			if !ok || next["type"] != "object" || next["properties"] == nil {
				next = objectSchema()
				properties[segment] = next
			}
			node = next
		}
		node["properties"].(map[string]any)[segments[len(segments)-1]] = typeSchema(field.Type)
	}
	return root
}

func objectSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// typeSchema maps a Go type name, as reported by modkit.Schema, to a schema.
func typeSchema(goType string) map[string]any {
	switch {
	case goType == "nil":
		return map[string]any{"nullable": true}
	case strings.HasPrefix(goType, "interface"):
		return map[string]any{}
	case goType == "bool":
		return map[string]any{"type": "boolean"}
	case goType == "string":
		return map[string]any{"type": "string"}
	case goType == "time.Time":
		return map[string]any{"type": "string", "format": "date-time"}
	case goType == "[]uint8":
		return map[string]any{"type": "string", "format": "byte"}
	case strings.HasPrefix(goType, "int"), strings.HasPrefix(goType, "uint"):
		return map[string]any{"type": "integer"}
	case strings.HasPrefix(goType, "float"):
		return map[string]any{"type": "number"}
	case strings.HasPrefix(goType, "[]"):
		return map[string]any{"type": "array", "items": typeSchema(strings.TrimPrefix(goType, "[]"))}
	case strings.HasPrefix(goType, "map["):
		return map[string]any{"type": "object"}
	default:
		return map[string]any{"type": "string", "format": "go:" + goType}
	}
}

func ref(component string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + component}
}

func componentName(path []string) string {
	if len(path) == 0 {
		return "RootState"
	}
	var name strings.Builder
	for _, segment := range path {
		upper := true
		for _, r := range segment {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				upper = true
				continue
			}
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			name.WriteRune(r)
		}
	}
	name.WriteString("State")
	return name.String()
}

func stateOperationID(path []string) string {
	if len(path) == 0 {
		return "state"
	}
	return "state:" + strings.Join(path, "/")
}

func qualify(namespace []string, name string) string {
	if len(namespace) == 0 {
		return name
	}
	return strings.Join(namespace, "/") + "/" + name
}

func moduleTag(path []string) string {
	if len(path) == 0 {
		return "root"
	}
	return strings.Join(path, "/")
}

func joinSegments(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return "/" + strings.Join(path, "/")
}
