// Package contract validates and coerces untyped string-keyed input (query
// parameters, form fields) into a typed payload for an offload entry.
//
// A Builder is pure and deterministic: the same input map always yields the
// same payload or the same InvalidInput error naming the same field. It
// performs no I/O and keeps no state across calls, so one Builder is safely
// shared by concurrent handlers.
package contract

import (
	"strconv"
	"strings"

	"molt-accel/accelerr"
)

// Kind is the target type a field is coerced to.
type Kind uint8

const (
	String Kind = iota
	Int
	Float
	Bool
	// FloatList parses a comma-separated list of numbers, e.g. "1,2.5,3".
	FloatList
)

// Field declares one input field of an entry's contract.
type Field struct {
	Name     string
	Kind     Kind
	Required bool

	// Default is used when the field is absent and not required.
	// A nil Default on an optional field means the field is omitted from the
	// payload entirely when absent.
	Default any

	// Min/Max bound Int fields when HasRange is set.
	HasRange bool
	Min, Max int64
}

// Builder holds the declared contract for one entry.
type Builder struct {
	fields []Field
}

// NewBuilder declares a contract over the given fields.
func NewBuilder(fields ...Field) *Builder {
	return &Builder{fields: fields}
}

// Build coerces input into a typed payload.
// Every failure is an InvalidInput error naming the offending field.
func (b *Builder) Build(input map[string]string) (map[string]any, error) {
	payload := make(map[string]any, len(b.fields))
	for _, f := range b.fields {
		raw, present := input[f.Name]
		if !present || raw == "" {
			if f.Required {
				return nil, accelerr.Newf(accelerr.KindInvalidInput, "missing required field %q", f.Name)
			}
			if f.Default != nil {
				payload[f.Name] = f.Default
			}
			continue
		}

		value, err := coerce(f, raw)
		if err != nil {
			return nil, err
		}
		payload[f.Name] = value
	}
	return payload, nil
}

func coerce(f Field, raw string) (any, error) {
	switch f.Kind {
	case String:
		return raw, nil

	case Int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, accelerr.Newf(accelerr.KindInvalidInput, "field %q must be an integer", f.Name)
		}
		if f.HasRange && (n < f.Min || n > f.Max) {
			return nil, accelerr.Newf(accelerr.KindInvalidInput,
				"field %q must be between %d and %d", f.Name, f.Min, f.Max)
		}
		return n, nil

	case Float:
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, accelerr.Newf(accelerr.KindInvalidInput, "field %q must be a number", f.Name)
		}
		return x, nil

	case Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, accelerr.Newf(accelerr.KindInvalidInput, "field %q must be a boolean", f.Name)
		}
		return v, nil

	case FloatList:
		parts := strings.Split(raw, ",")
		values := make([]float64, 0, len(parts))
		for _, p := range parts {
			x, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, accelerr.Newf(accelerr.KindInvalidInput,
					"field %q must be a comma-separated list of numbers", f.Name)
			}
			values = append(values, x)
		}
		return values, nil

	default:
		return nil, accelerr.Newf(accelerr.KindInvalidInput, "field %q has an unsupported kind", f.Name)
	}
}
