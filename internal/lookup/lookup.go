// Package lookup builds identifier maps that tolerate the zero-padding
// and casing differences between the payroll system, the attendance
// software and the terminal firmware for the same business code.
package lookup

import "strings"

// Map indexes values under an identifier plus its defensive variants.
type Map[T any] map[string]T

// Put writes the canonical key unconditionally and the derived variants
// (zero-stripped, upper-cased, zero-stripped upper-cased) only when free,
// so an explicit record always beats a variant of another one. Blank keys
// are ignored.
func Put[T any](m Map[T], key string, value T) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	m[key] = value

	trimmed := strings.TrimLeft(key, "0")
	if trimmed != "" && trimmed != key {
		PutDefault(m, trimmed, value)
	}
	PutDefault(m, strings.ToUpper(key), value)
	if trimmed != "" {
		PutDefault(m, strings.ToUpper(trimmed), value)
	}
}

// PutDefault writes value only when key is not already taken.
func PutDefault[T any](m Map[T], key string, value T) {
	if _, exists := m[key]; !exists {
		m[key] = value
	}
}

// Find resolves an identifier through its accepted variants: as given,
// upper-cased, zero-stripped and zero-stripped upper-cased, in that
// order.
func Find[T any](m Map[T], identifier string) (T, bool) {
	var zero T
	candidate := strings.TrimSpace(identifier)
	if candidate == "" {
		return zero, false
	}

	variants := []string{candidate, strings.ToUpper(candidate)}
	if trimmed := strings.TrimLeft(candidate, "0"); trimmed != "" {
		variants = append(variants, trimmed, strings.ToUpper(trimmed))
	}
	for _, key := range variants {
		if value, ok := m[key]; ok {
			return value, true
		}
	}
	return zero, false
}
