// Package cache holds the per-source employee lists and checkbox
// selections. Sources are terminal addresses or the fixed virtual keys for
// the external feeds. One coarse lock guards both maps: the tool is built
// for a single interactive operator and every write is a full replace.
package cache

import (
	"sync"

	"github.com/karlutxo/zk-tools/internal/employee"
)

// Fixed virtual source keys for the non-terminal data feeds.
const (
	SourcePayroll    = "payroll:db"
	SourceAttendance = "attendance:db"
)

// IsVirtualSource reports whether key names an external feed rather than a
// terminal address.
func IsVirtualSource(key string) bool {
	return key == SourcePayroll || key == SourceAttendance
}

type Store struct {
	mu        sync.RWMutex
	employees map[string][]employee.Employee
	selected  map[string]map[string]struct{}
}

func New() *Store {
	return &Store{
		employees: make(map[string][]employee.Employee),
		selected:  make(map[string]map[string]struct{}),
	}
}

// Employees returns the cached list for a source, empty when unknown.
func (s *Store) Employees(key string) []employee.Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached := s.employees[key]
	out := make([]employee.Employee, len(cached))
	copy(out, cached)
	return out
}

// SetEmployees replaces the cached list wholesale.
func (s *Store) SetEmployees(key string, employees []employee.Employee) {
	cached := make([]employee.Employee, len(employees))
	copy(cached, employees)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[key] = cached
}

// Selected returns a copy of the selected uid set, empty when unknown.
func (s *Store) Selected(key string) map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.selected[key]))
	for uid := range s.selected[key] {
		out[uid] = struct{}{}
	}
	return out
}

// SetSelected replaces the selection wholesale.
func (s *Store) SetSelected(key string, uids map[string]struct{}) {
	selected := make(map[string]struct{}, len(uids))
	for uid := range uids {
		selected[uid] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected[key] = selected
}

// RemoveSelected drops the given uids from the selection. No-op for an
// unknown source.
func (s *Store) RemoveSelected(key string, uids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.selected[key]
	if !ok {
		return
	}
	for _, uid := range uids {
		delete(existing, uid)
	}
}

// Clear pops and returns the cached employees for one source, dropping its
// selection too.
func (s *Store) Clear(key string) []employee.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.employees[key]
	delete(s.employees, key)
	delete(s.selected, key)
	if removed == nil {
		return []employee.Employee{}
	}
	return removed
}

// ClearAll empties both maps entirely.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees = make(map[string][]employee.Employee)
	s.selected = make(map[string]map[string]struct{})
}
