package terminal

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// KnownTerminal is one entry of the operator-maintained terminal list.
type KnownTerminal struct {
	Label string `json:"label"`
	IP    string `json:"ip"`
}

// LoadKnownTerminals reads the terminal list file. Lines are either
// "label,ip", "label ip" or a bare ip; blank lines and #-comments are
// skipped and duplicate ips keep their first entry. A missing file is not
// an error: the list is a convenience, not a requirement.
func LoadKnownTerminals(path string) ([]KnownTerminal, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open terminal list: %w", err)
	}
	defer file.Close()

	var terminals []KnownTerminal
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		entry := strings.TrimSpace(scanner.Text())
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}

		label, ip := "", entry
		if comma := strings.Index(entry, ","); comma >= 0 {
			label = strings.TrimSpace(entry[:comma])
			if rest := strings.TrimSpace(entry[comma+1:]); rest != "" {
				ip = rest
			}
		} else if strings.ContainsAny(entry, " \t") {
			fields := strings.Fields(entry)
			ip = fields[len(fields)-1]
			label = strings.TrimSpace(strings.TrimSuffix(entry, ip))
		}

		if ip == "" {
			continue
		}
		if _, dup := seen[ip]; dup {
			continue
		}
		seen[ip] = struct{}{}
		terminals = append(terminals, KnownTerminal{Label: label, IP: ip})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read terminal list: %w", err)
	}
	return terminals, nil
}
