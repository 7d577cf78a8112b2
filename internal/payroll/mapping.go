package payroll

import (
	"strings"

	"github.com/karlutxo/zk-tools/internal/employee"
	"github.com/karlutxo/zk-tools/internal/lookup"
)

// Details is the enrichment payload attached to an employee after a
// successful lookup.
type Details struct {
	DNI              string `json:"dni"`
	Name             string `json:"name"`
	Center           string `json:"center"`
	ContractFrom     string `json:"contract_from"`
	MedicalLeaveFrom string `json:"medical_leave_from"`
	Vacation         string `json:"vacation"`
	LastSeen         string `json:"last_seen"`
}

// Map indexes payroll details under an identifier plus its defensive
// variants, so an entry is reachable however the caller spells the code.
type Map = lookup.Map[Details]

// MapByCode indexes records by their terminal user code.
func MapByCode(records []Record) Map {
	mapping := make(Map, len(records))
	for _, record := range records {
		lookup.Put(mapping, record.Code, detailsOf(record))
	}
	return mapping
}

// MapByDNI indexes records by DNI; only the exact and upper-cased forms
// apply (zero-stripping a DNI would corrupt it).
func MapByDNI(records []Record) Map {
	mapping := make(Map, len(records))
	for _, record := range records {
		dni := strings.TrimSpace(record.DNI)
		if dni == "" {
			continue
		}
		details := detailsOf(record)
		lookup.PutDefault(mapping, dni, details)
		lookup.PutDefault(mapping, strings.ToUpper(dni), details)
	}
	return mapping
}

// Lookup resolves an identifier through its accepted variants.
func Lookup(identifier string, mapping Map) (Details, bool) {
	return lookup.Find(mapping, identifier)
}

// ToEmployee adapts a feed record to the canonical employee shape used by
// the cache. The payroll code serves as both uid and user_id; the
// last-seen value stays the raw feed timestamp.
func ToEmployee(record Record) employee.Employee {
	code := strings.TrimSpace(record.Code)
	return employee.Employee{
		UID:              code,
		Name:             strings.TrimSpace(record.Name),
		UserID:           code,
		GroupID:          strings.TrimSpace(record.Center),
		DNI:              strings.TrimSpace(record.DNI),
		ContractFrom:     strings.TrimSpace(record.ContractFrom),
		MedicalLeaveFrom: strings.TrimSpace(record.MedicalLeaveFrom),
		VacationStatus:   strings.TrimSpace(record.Vacation),
		LastSeen:         record.LastSeen,
	}
}

func detailsOf(record Record) Details {
	return Details{
		DNI:              strings.TrimSpace(record.DNI),
		Name:             strings.TrimSpace(record.Name),
		Center:           strings.TrimSpace(record.Center),
		ContractFrom:     strings.TrimSpace(record.ContractFrom),
		MedicalLeaveFrom: strings.TrimSpace(record.MedicalLeaveFrom),
		Vacation:         strings.TrimSpace(record.Vacation),
		LastSeen:         record.LastSeen,
	}
}
