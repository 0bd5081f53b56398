// Decoded-payload field access.
//
// A payload decoded from JSON carries numbers as float64; the same payload
// decoded from MessagePack carries them as sized integers. These helpers
// normalize both so entry handlers are codec-agnostic.
package entries

import (
	"molt-accel/accelerr"
)

func asMap(payload any) (map[string]any, error) {
	switch m := payload.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		// Some msgpack encoders produce interface-keyed maps.
		out := make(map[string]any, len(m))
		for k, v := range m {
			s, ok := k.(string)
			if !ok {
				return nil, accelerr.New(accelerr.KindInvalidInput, "payload keys must be strings")
			}
			out[s] = v
		}
		return out, nil
	default:
		return nil, accelerr.New(accelerr.KindInvalidInput, "payload must be an object")
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	case float32:
		if float64(n) == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		if i, ok := asInt64(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}

func intField(m map[string]any, name string, required bool, def int64) (int64, error) {
	v, present := m[name]
	if !present || v == nil {
		if required {
			return 0, accelerr.Newf(accelerr.KindInvalidInput, "missing required field %q", name)
		}
		return def, nil
	}
	n, ok := asInt64(v)
	if !ok {
		return 0, accelerr.Newf(accelerr.KindInvalidInput, "field %q must be an integer", name)
	}
	return n, nil
}

func floatFieldOr(m map[string]any, name string, def float64) float64 {
	v, present := m[name]
	if !present || v == nil {
		return def
	}
	if x, ok := asFloat64(v); ok {
		return x
	}
	return def
}

func floatListField(m map[string]any, name string) ([]float64, error) {
	v, present := m[name]
	if !present || v == nil {
		return nil, accelerr.Newf(accelerr.KindInvalidInput, "missing required field %q", name)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, accelerr.Newf(accelerr.KindInvalidInput, "field %q must be a list of numbers", name)
	}
	values := make([]float64, len(list))
	for i, item := range list {
		x, ok := asFloat64(item)
		if !ok {
			return nil, accelerr.Newf(accelerr.KindInvalidInput, "field %q must be a list of numbers", name)
		}
		values[i] = x
	}
	return values, nil
}

func stringField(m map[string]any, name string) string {
	if v, present := m[name]; present {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
