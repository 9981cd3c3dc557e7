// Package envelope absorbs the backend's unstable response wrapping. The same
// logical list endpoint may answer with a bare array, {data:[...]},
// {<collection>:[...]} or {data:{<collection>:[...]}}; single-record endpoints
// may answer with {data:{...}} or the bare record.
package envelope

import (
	"bytes"
	"encoding/json"
)

// Shape names the envelope form a payload matched.
type Shape string

const (
	ShapeNone      Shape = ""
	ShapeArray     Shape = "array"
	ShapeData      Shape = "data"
	ShapeNamed     Shape = "named"
	ShapeDataNamed Shape = "data.named"
)

type matcher struct {
	shape Shape
	match func(raw json.RawMessage, collection string) ([]json.RawMessage, bool)
}

// matchers are tried in order; the first hit wins.
var matchers = []matcher{
	{ShapeArray, func(raw json.RawMessage, _ string) ([]json.RawMessage, bool) {
		return asArray(raw)
	}},
	{ShapeData, func(raw json.RawMessage, _ string) ([]json.RawMessage, bool) {
		return asArray(Field(raw, "data"))
	}},
	{ShapeNamed, func(raw json.RawMessage, collection string) ([]json.RawMessage, bool) {
		if collection == "" {
			return nil, false
		}
		return asArray(Field(raw, collection))
	}},
	{ShapeDataNamed, func(raw json.RawMessage, collection string) ([]json.RawMessage, bool) {
		if collection == "" {
			return nil, false
		}
		return asArray(Field(raw, "data", collection))
	}},
}

// Match returns the collection elements of raw and the shape that produced
// them. When nothing matches the result is an empty, non-nil slice and
// ShapeNone. Match never fails: malformed payloads are treated as "no match".
func Match(raw []byte, collection string) ([]json.RawMessage, Shape) {
	for _, m := range matchers {
		if items, ok := m.match(raw, collection); ok {
			return items, m.shape
		}
	}
	return []json.RawMessage{}, ShapeNone
}

// Items is Match without the shape.
func Items(raw []byte, collection string) []json.RawMessage {
	items, _ := Match(raw, collection)
	return items
}

// Decode unmarshals each collection element into T. Elements that do not
// decode are skipped and counted.
func Decode[T any](raw []byte, collection string) (out []T, skipped int) {
	items := Items(raw, collection)
	out = make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped
}

// Record extracts a single record: an object under "data" wins, otherwise the
// payload itself when it carries "_id" or "id".
func Record(raw []byte) (json.RawMessage, bool) {
	if data := Field(raw, "data"); isObject(data) {
		return data, true
	}
	if !isObject(raw) {
		return nil, false
	}
	if Field(raw, "_id") != nil || Field(raw, "id") != nil {
		return raw, true
	}
	return nil, false
}

// Field walks object keys and returns the raw value at path, or nil. A JSON
// null at the end of the path is reported as nil.
func Field(raw []byte, path ...string) json.RawMessage {
	cur := json.RawMessage(raw)
	for _, key := range path {
		if !isObject(cur) {
			return nil
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil {
			return nil
		}
		next, ok := obj[key]
		if !ok {
			return nil
		}
		cur = next
	}
	if isNull(cur) {
		return nil
	}
	return cur
}

func asArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	if firstByte(raw) != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, true
}

func isObject(raw []byte) bool {
	return firstByte(raw) == '{'
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func firstByte(raw []byte) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
