// Package ids reduces the backend's identifier encodings to one canonical
// string. Foreign keys may arrive as plain strings, as document-store
// extended ids ({"$oid": "..."}), or as partial embedded objects carrying
// "_id" or "id", possibly nested.
package ids

import (
	"encoding/json"
	"strings"
)

// keys are tried in order on object values.
var keys = []string{"$oid", "_id", "id"}

// maxDepth bounds recursion into nested id objects.
const maxDepth = 4

// Normalize returns the canonical id carried by v. It accepts the shapes
// produced by encoding/json (string, map[string]any) and never panics.
func Normalize(v any) (string, bool) {
	return normalize(v, 0)
}

func normalize(v any, depth int) (string, bool) {
	if depth > maxDepth {
		return "", false
	}
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return "", false
		}
		return t, true
	case map[string]any:
		for _, k := range keys {
			inner, ok := t[k]
			if !ok {
				continue
			}
			if id, ok := normalize(inner, depth+1); ok {
				return id, true
			}
		}
	}
	return "", false
}

// FromRaw decodes raw JSON and normalizes it.
func FromRaw(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return Normalize(v)
}

// First returns the first candidate that normalizes.
func First(candidates ...json.RawMessage) (string, bool) {
	for _, c := range candidates {
		if id, ok := FromRaw(c); ok {
			return id, true
		}
	}
	return "", false
}

// Raw encodes a canonical id back into JSON string form.
func Raw(id string) json.RawMessage {
	b, _ := json.Marshal(id)
	return b
}
