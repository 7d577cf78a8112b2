package employee

import "strings"

// FindDuplicates returns every employee whose trimmed, case-folded name is
// shared with at least one other record carrying a different user_id. The
// result preserves input order and includes all members of each duplicate
// group, first occurrence included. Empty names never form a group.
func FindDuplicates(employees []Employee) []Employee {
	userIDsByName := make(map[string]map[string]struct{})
	names := make([]string, len(employees))

	for i, emp := range employees {
		name := strings.ToLower(strings.TrimSpace(emp.Name))
		names[i] = name
		userID := strings.TrimSpace(emp.UserID)
		if userIDsByName[name] == nil {
			userIDsByName[name] = make(map[string]struct{})
		}
		userIDsByName[name][userID] = struct{}{}
	}

	duplicates := make([]Employee, 0)
	for i, emp := range employees {
		name := names[i]
		if name == "" {
			continue
		}
		if len(userIDsByName[name]) > 1 {
			duplicates = append(duplicates, emp)
		}
	}
	return duplicates
}
