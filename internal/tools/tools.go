// Package tools implements status checks that are unrelated to devices or
// raw points, exposing their outcomes as structured result bundles that
// comparisons can key into.
package tools

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tool runs one status check and produces a result bundle.
//
// The variant set is closed: all implementations live in this package and
// serialize as a tagged union.
type Tool interface {
	Name() string
	// CacheKey identifies the tool plus its settings for fetch dedup: two
	// tools with equal keys are interchangeable.
	CacheKey() string
	// CheckResultKey validates a result key up front, before any run.
	CheckResultKey(key string) error
	Run(ctx context.Context) (any, error)
}

// ErrKeyNotFound marks a result key missing from an acquired bundle. This is
// a recoverable, leaf-local failure.
var ErrKeyNotFound = errors.New("result key not found")

// LookupResultKey retrieves the value named by the (optionally dotted) key
// from a result bundle. Struct fields are addressed by their json tag, maps
// by key and slices by numeric index.
func LookupResultKey(bundle any, key string) (any, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: no key provided", ErrKeyNotFound)
	}

	item := reflect.ValueOf(bundle)
	var path []string
	for _, part := range strings.Split(key, ".") {
		path = append(path, part)

		for item.Kind() == reflect.Pointer || item.Kind() == reflect.Interface {
			if item.IsNil() {
				return nil, fmt.Errorf("%w: %s is nil at %q", ErrKeyNotFound, strings.Join(path, "."), part)
			}
			item = item.Elem()
		}

		switch item.Kind() {
		case reflect.Map:
			entry := item.MapIndex(reflect.ValueOf(part))
			if !entry.IsValid() {
				return nil, fmt.Errorf("%w: %q (%s)", ErrKeyNotFound, part, strings.Join(path, "."))
			}
			item = entry
		case reflect.Slice, reflect.Array:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= item.Len() {
				return nil, fmt.Errorf("%w: index %q (%s)", ErrKeyNotFound, part, strings.Join(path, "."))
			}
			item = item.Index(idx)
		case reflect.Struct:
			field, ok := fieldByKey(item.Type(), part)
			if !ok {
				return nil, fmt.Errorf("%w: %q (%s)", ErrKeyNotFound, part, strings.Join(path, "."))
			}
			item = item.FieldByIndex(field.Index)
		default:
			return nil, fmt.Errorf("%w: %q has no sub-keys (%s)", ErrKeyNotFound, part, strings.Join(path, "."))
		}
	}

	if !item.CanInterface() {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return item.Interface(), nil
}

// checkResultKey validates a dotted key against a bundle prototype: the top
// level must exist as a field and sub-keys require an indexable field.
func checkResultKey(tool Tool, prototype any, key string) error {
	top, rest, hasSub := strings.Cut(key, ".")

	typ := reflect.TypeOf(prototype)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	field, ok := fieldByKey(typ, top)
	if !ok {
		return fmt.Errorf(
			"invalid result key %q for tool %s; valid keys are: %s",
			top, tool.Name(), strings.Join(resultKeys(typ), ", "),
		)
	}

	if hasSub && rest != "" {
		switch field.Type.Kind() {
		case reflect.Map, reflect.Slice, reflect.Array:
		default:
			return fmt.Errorf(
				"invalid result key for tool %s: %q does not have sub-keys (type %s)",
				tool.Name(), top, field.Type,
			)
		}
	}
	return nil
}

func fieldByKey(typ reflect.Type, key string) (reflect.StructField, bool) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if tag == key || (tag == "" && strings.EqualFold(field.Name, key)) {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

func resultKeys(typ reflect.Type) []string {
	keys := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		tag, _, _ := strings.Cut(typ.Field(i).Tag.Get("json"), ",")
		if tag == "" {
			tag = strings.ToLower(typ.Field(i).Name)
		}
		keys = append(keys, tag)
	}
	sort.Strings(keys)
	return keys
}

var constructors = map[string]func() Tool{
	"ping": func() Tool { return NewPing(nil) },
}

// Decode builds a tool from its tagged-union node, e.g. {ping: {hosts: [..]}}.
func Decode(node *yaml.Node) (Tool, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, fmt.Errorf("line %d: tool must be a single-key mapping", node.Line)
	}
	tag := node.Content[0].Value
	construct, ok := constructors[tag]
	if !ok {
		return nil, fmt.Errorf("line %d: unknown tool: %q", node.Line, tag)
	}
	tool := construct()
	if err := node.Content[1].Decode(tool); err != nil {
		return nil, fmt.Errorf("decoding %s tool: %w", tag, err)
	}
	return tool, nil
}

// Encode renders a tool back into tagged-union form.
func Encode(tool Tool) (any, error) {
	switch tool.(type) {
	case *Ping:
		return map[string]Tool{"ping": tool}, nil
	}
	return nil, fmt.Errorf("unregistered tool type %T", tool)
}
