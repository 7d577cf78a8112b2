package employee

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// fieldAliases maps each canonical field onto the spellings seen across
// import files and external feeds. Matching is case-insensitive; keep the
// entries lower-case.
var fieldAliases = map[string][]string{
	"uid":        {"uid", "id", "identificador"},
	"name":       {"name", "nombre"},
	"user_id":    {"user_id", "user id", "userid", "id usuario", "idusuario"},
	"card":       {"card", "tarjeta", "num tarjeta"},
	"privilege":  {"privilege", "privilegio"},
	"group_id":   {"group_id", "group id", "grupo", "id grupo", "grupo id"},
	"biometrics": {"biometrics", "biometria", "biometría", "biometricas", "plantillas"},
}

// Normalize maps a raw imported row onto the canonical schema. Field lookup
// tries the exact key, its lower- and upper-cased forms, then the alias set;
// the first hit wins. Missing fields become empty strings (empty list for
// biometrics) so downstream code never sees absent keys.
func Normalize(raw map[string]any) Employee {
	lowered := make(map[string]any, len(raw))
	for key, value := range raw {
		lowered[strings.ToLower(strings.TrimSpace(key))] = value
	}

	resolve := func(field string) any {
		candidates := []string{field, strings.ToLower(field), strings.ToUpper(field)}
		candidates = append(candidates, fieldAliases[field]...)
		for _, candidate := range candidates {
			if value, ok := raw[candidate]; ok {
				return value
			}
			if value, ok := lowered[strings.ToLower(strings.TrimSpace(candidate))]; ok {
				return value
			}
		}
		return nil
	}

	return Employee{
		UID:        stringify(resolve("uid")),
		Name:       stringify(resolve("name")),
		UserID:     stringify(resolve("user_id")),
		Card:       stringify(resolve("card")),
		Privilege:  stringify(resolve("privilege")),
		GroupID:    stringify(resolve("group_id")),
		Biometrics: normalizeBiometrics(resolve("biometrics")),
	}
}

// normalizeBiometrics accepts a list of objects (non-objects dropped) or a
// JSON-encoded string of such a list. Anything else, including malformed
// JSON, becomes an empty list.
func normalizeBiometrics(value any) []map[string]any {
	switch v := value.(type) {
	case []map[string]any:
		return filterBiometricItems(anySlice(v))
	case []any:
		return filterBiometricItems(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return []map[string]any{}
		}
		var parsed []any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			return []map[string]any{}
		}
		return filterBiometricItems(parsed)
	default:
		return []map[string]any{}
	}
}

func anySlice(items []map[string]any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

func filterBiometricItems(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// stringify renders an imported cell value. Spreadsheet cells arrive as
// floats even for integer ids, so whole floats drop the fraction.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
