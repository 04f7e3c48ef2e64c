// Package util holds small shared helpers.
package util

import "reflect"

// DeepCopy clones a YAML/JSON-shaped value: nested map[string]interface{},
// []interface{}, and scalars. It is safe for cyclic structures. Values of
// other types are returned as-is, which is correct for immutable scalars
// and acceptable for the scenario runtime, whose states only ever contain
// decoded YAML data.
func DeepCopy(src interface{}) interface{} {
	if src == nil {
		return nil
	}
	seen := make(map[uintptr]interface{})
	return deepCopy(src, seen)
}

// deepCopy walks the value. seen maps the address of an original map or
// slice to its copy so shared references and cycles are preserved instead
// of looping forever.
func deepCopy(src interface{}, seen map[uintptr]interface{}) interface{} {
	switch v := src.(type) {
	case map[string]interface{}:
		addr := reflect.ValueOf(v).Pointer()
		if cpy, ok := seen[addr]; ok {
			return cpy
		}
		cpy := make(map[string]interface{}, len(v))
		seen[addr] = cpy
		for key, value := range v {
			cpy[key] = deepCopy(value, seen)
		}
		return cpy

	case []interface{}:
		addr := reflect.ValueOf(v).Pointer()
		if cpy, ok := seen[addr]; ok {
			return cpy
		}
		cpy := make([]interface{}, len(v))
		seen[addr] = cpy
		for i, value := range v {
			cpy[i] = deepCopy(value, seen)
		}
		return cpy

	case map[interface{}]interface{}:
		// Older YAML decoders produce interface-keyed maps.
		addr := reflect.ValueOf(v).Pointer()
		if cpy, ok := seen[addr]; ok {
			return cpy
		}
		cpy := make(map[interface{}]interface{}, len(v))
		seen[addr] = cpy
		for key, value := range v {
			cpy[key] = deepCopy(value, seen)
		}
		return cpy

	default:
		return v
	}
}

// DeepCopyStringMap is a convenience wrapper for the common top-level shape.
func DeepCopyStringMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	cpy, _ := DeepCopy(src).(map[string]interface{})
	return cpy
}
