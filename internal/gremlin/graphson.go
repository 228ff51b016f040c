package gremlin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Typed is a GraphSON v2 typed value, {"@type": ..., "@value": ...}.
type Typed struct {
	Type  string `json:"@type"`
	Value any    `json:"@value"`
}

// Date binds t as a g:Date.
func Date(t time.Time) Typed {
	return Typed{Type: "g:Date", Value: t.UnixMilli()}
}

func Int32(n int32) Typed {
	return Typed{Type: "g:Int32", Value: n}
}

func Int64(n int64) Typed {
	return Typed{Type: "g:Int64", Value: n}
}

// Element is a vertex or an edge reduced to its identity.
type Element struct {
	ID    any
	Label string
}

// Unwrap decodes a GraphSON v2 document into plain Go values. Lists and sets
// become []any, maps become map[any]any, numbers become int64 or float64 and
// dates become time.Time.
func Unwrap(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("gremlin: decode graphson: %w", err)
	}
	return unwrap(raw)
}

func unwrap(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		return number(t)
	case []any:
		return unwrapList(t)
	case map[string]any:
		typ, typed := t["@type"].(string)
		val, hasValue := t["@value"]
		if typed && hasValue {
			return unwrapTyped(typ, val)
		}
		out := make(map[string]any, len(t))
		for k, item := range t {
			u, err := unwrap(item)
			if err != nil {
				return nil, err
			}
			out[k] = u
		}
		return out, nil
	default:
		return v, nil
	}
}

func unwrapList(items []any) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		u, err := unwrap(item)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func unwrapTyped(typ string, val any) (any, error) {
	switch typ {
	case "g:List", "g:Set":
		items, ok := val.([]any)
		if !ok {
			return nil, fmt.Errorf("gremlin: %s value is not a list", typ)
		}
		return unwrapList(items)

	case "g:Map":
		items, ok := val.([]any)
		if !ok || len(items)%2 != 0 {
			return nil, fmt.Errorf("gremlin: malformed g:Map")
		}
		out := make(map[any]any, len(items)/2)
		for i := 0; i < len(items); i += 2 {
			k, err := unwrap(items[i])
			if err != nil {
				return nil, err
			}
			v, err := unwrap(items[i+1])
			if err != nil {
				return nil, err
			}
			out[mapKey(k)] = v
		}
		return out, nil

	case "g:Int32", "g:Int64", "g:Float", "g:Double":
		n, ok := val.(json.Number)
		if !ok {
			return nil, fmt.Errorf("gremlin: %s value is not a number", typ)
		}
		if typ == "g:Float" || typ == "g:Double" {
			return n.Float64()
		}
		return n.Int64()

	case "g:Date", "g:Timestamp":
		n, ok := val.(json.Number)
		if !ok {
			return nil, fmt.Errorf("gremlin: %s value is not a number", typ)
		}
		ms, err := n.Int64()
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(ms).UTC(), nil

	case "g:Vertex", "g:Edge":
		obj, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("gremlin: malformed %s", typ)
		}
		id, err := unwrap(obj["id"])
		if err != nil {
			return nil, err
		}
		label, _ := obj["label"].(string)
		return Element{ID: id, Label: label}, nil

	case "g:VertexProperty", "g:Property":
		obj, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("gremlin: malformed %s", typ)
		}
		return unwrap(obj["value"])

	case "g:Path":
		obj, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("gremlin: malformed g:Path")
		}
		return unwrap(obj["objects"])

	default:
		// g:UUID, g:T, g:Direction and anything unknown keep their payload
		return unwrap(val)
	}
}

func number(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	return n.Float64()
}

// mapKey turns keys that cannot index a Go map, such as nested maps or lists,
// into their printed form.
func mapKey(k any) any {
	if k == nil || reflect.TypeOf(k).Comparable() {
		return k
	}
	return fmt.Sprint(k)
}
