// Package employee defines the canonical employee record shared by the
// terminal, import/export and external-lookup layers.
package employee

import (
	"strconv"
	"strings"
)

// Terminal privilege levels as the firmware encodes them.
const (
	PrivilegeDefault  = 0
	PrivilegeEnroller = 2
	PrivilegeAdmin    = 14
)

// Employee is the canonical record. UID is the terminal-local identifier
// (numeric when sourced from a device); UserID is the business identifier
// used to join against external systems.
type Employee struct {
	UID        string           `json:"uid"`
	Name       string           `json:"name"`
	UserID     string           `json:"user_id"`
	Card       string           `json:"card"`
	Privilege  string           `json:"privilege"`
	GroupID    string           `json:"group_id"`
	Biometrics []map[string]any `json:"biometrics"`

	// Enrichment from external sources. Never written back to a device.
	DNI              string `json:"dni,omitempty"`
	ContractFrom     string `json:"contract_from,omitempty"`
	MedicalLeaveFrom string `json:"medical_leave_from,omitempty"`
	VacationStatus   string `json:"vacation_status,omitempty"`
	LastSeen         string `json:"last_seen,omitempty"`
}

// NormalizeCard returns the card number in canonical form, or "" when the
// value means "no card". Empty, "0", "none", "null" and any numeric zero
// (e.g. "000") all count as absent.
func NormalizeCard(value string) string {
	s := strings.TrimSpace(value)
	switch strings.ToLower(s) {
	case "", "0", "none", "null":
		return ""
	}
	if n, err := strconv.Atoi(s); err == nil && n == 0 {
		return ""
	}
	return s
}

// HasCard reports whether the record carries a usable card number.
func HasCard(e Employee) bool {
	return NormalizeCard(e.Card) != ""
}

// CoercePrivilege maps tolerant textual or numeric input onto a firmware
// privilege level, falling back to the default level for anything it does
// not recognize. The terminal has no separate superadmin level, so that
// label maps to admin.
func CoercePrivilege(value string) int {
	text := strings.TrimSpace(value)
	if text == "" {
		return PrivilegeDefault
	}
	switch strings.ToLower(text) {
	case "admin", "superadmin":
		return PrivilegeAdmin
	case "enroller":
		return PrivilegeEnroller
	case "user", "default":
		return PrivilegeDefault
	}
	numeric, err := strconv.Atoi(text)
	if err != nil {
		return PrivilegeDefault
	}
	switch numeric {
	case PrivilegeDefault, PrivilegeEnroller, PrivilegeAdmin:
		return numeric
	}
	return PrivilegeDefault
}

// PrivilegeLabel renders a firmware privilege level for display.
func PrivilegeLabel(privilege int) string {
	switch privilege {
	case PrivilegeAdmin:
		return "admin"
	case PrivilegeEnroller:
		return "enroller"
	default:
		return "user"
	}
}
