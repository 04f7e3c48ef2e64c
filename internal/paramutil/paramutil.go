// Package paramutil validates and extracts typed values from the
// free-form parameter maps carried by scenario actions. YAML decoding
// produces interface{} shapes; the helpers here normalize them.
package paramutil

import (
	"fmt"
	"time"

	rexerrors "github.com/pelagornis/go-rex/pkg/rex/v1/errors"
)

// GetRequiredString returns the string stored under key, or a
// ValidationError when the key is absent or holds a non-string.
func GetRequiredString(params map[string]interface{}, key string) (string, error) {
	value, exists := params[key]
	if !exists {
		return "", rexerrors.NewValidationError(fmt.Sprintf("missing required parameter '%s'", key), nil)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", rexerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a string, got %T", key, value), nil)
	}
	return strValue, nil
}

// GetRequiredValue returns the raw value stored under key. Any YAML
// shape is acceptable; only the key's presence is validated.
func GetRequiredValue(params map[string]interface{}, key string) (interface{}, error) {
	value, exists := params[key]
	if !exists {
		return nil, rexerrors.NewValidationError(fmt.Sprintf("missing required parameter '%s'", key), nil)
	}
	return value, nil
}

// GetOptionalString returns the string under key and whether it was
// present. A present non-string value is a ValidationError.
func GetOptionalString(params map[string]interface{}, key string) (string, bool, error) {
	value, exists := params[key]
	if !exists {
		return "", false, nil
	}
	strValue, ok := value.(string)
	if !ok {
		return "", false, rexerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a string, got %T", key, value), nil)
	}
	return strValue, true, nil
}

// GetOptionalInt returns the integer under key, coercing from the
// numeric types YAML decoding can produce. Non-whole floats and values
// that overflow int are rejected.
func GetOptionalInt(params map[string]interface{}, key string) (int, bool, error) {
	value, exists := params[key]
	if !exists {
		return 0, false, nil
	}
	switch v := value.(type) {
	case int:
		return v, true, nil
	case int32:
		return int(v), true, nil
	case int64:
		intValue := int(v)
		if int64(intValue) != v {
			return 0, false, rexerrors.NewValidationError(fmt.Sprintf("parameter '%s' value %v overflows int", key, v), nil)
		}
		return intValue, true, nil
	case float64:
		if v == float64(int(v)) {
			return int(v), true, nil
		}
		return 0, false, rexerrors.NewValidationError(fmt.Sprintf("parameter '%s' is a non-integer number (%v)", key, v), nil)
	default:
		return 0, false, rexerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be an integer, got %T", key, value), nil)
	}
}

// GetOptionalBool returns the boolean under key and whether it was present.
func GetOptionalBool(params map[string]interface{}, key string) (bool, bool, error) {
	value, exists := params[key]
	if !exists {
		return false, false, nil
	}
	boolValue, ok := value.(bool)
	if !ok {
		return false, false, rexerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a boolean, got %T", key, value), nil)
	}
	return boolValue, true, nil
}

// GetOptionalMap returns the string-keyed map under key, converting
// from map[interface{}]interface{} when the YAML decoder produced one.
func GetOptionalMap(params map[string]interface{}, key string) (map[string]interface{}, bool, error) {
	value, exists := params[key]
	if !exists {
		return nil, false, nil
	}
	if mapValue, ok := value.(map[string]interface{}); ok {
		return mapValue, true, nil
	}
	if genericMap, ok := value.(map[interface{}]interface{}); ok {
		converted := make(map[string]interface{}, len(genericMap))
		for k, v := range genericMap {
			strKey, ok := k.(string)
			if !ok {
				return nil, false, rexerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a map with string keys, found key of type %T", key, k), nil)
			}
			converted[strKey] = v
		}
		return converted, true, nil
	}
	return nil, false, rexerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a map, got %T", key, value), nil)
}

// GetOptionalDuration parses a Go duration string ("250ms", "2s") stored
// under key.
func GetOptionalDuration(params map[string]interface{}, key string) (time.Duration, bool, error) {
	raw, found, err := GetOptionalString(params, key)
	if err != nil || !found {
		return 0, found, err
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, rexerrors.NewValidationError(fmt.Sprintf("parameter '%s' is not a valid duration: %v", key, err), nil)
	}
	if d < 0 {
		return 0, false, rexerrors.NewValidationError(fmt.Sprintf("parameter '%s' must not be negative", key), nil)
	}
	return d, true, nil
}

// CheckAllowed rejects params containing keys outside the allowed list.
// An empty allowed list imposes no restriction.
func CheckAllowed(params map[string]interface{}, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, key := range allowed {
		allowedSet[key] = struct{}{}
	}
	for key := range params {
		if _, ok := allowedSet[key]; !ok {
			return rexerrors.NewValidationError(fmt.Sprintf("unknown parameter '%s' provided", key), nil)
		}
	}
	return nil
}
