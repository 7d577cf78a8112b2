// Package enrich joins cached employee records with the external data
// sources for display and export.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/karlutxo/zk-tools/internal/attendance"
	"github.com/karlutxo/zk-tools/internal/employee"
	"github.com/karlutxo/zk-tools/internal/lookup"
	"github.com/karlutxo/zk-tools/internal/payroll"
)

// Service annotates employee lists with payroll and attendance data.
type Service struct {
	payroll    *payroll.Client
	attendance *attendance.Store
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Service)

// WithAttendance enables card backfill from the attendance database.
func WithAttendance(store *attendance.Store) Option {
	return func(s *Service) { s.attendance = store }
}

func New(client *payroll.Client, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{payroll: client, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply returns a copy of the employees annotated with external data. The
// last-seen timestamp joins by user_id; the expanded details join by the
// name field, which on some terminals carries the DNI instead of a name.
// A payroll failure degrades to unannotated records unless expanded
// details were explicitly requested.
func (s *Service) Apply(ctx context.Context, employees []employee.Employee, expand bool) ([]employee.Employee, error) {
	if len(employees) == 0 {
		return employees, nil
	}

	var (
		records []payroll.Record
		people  []attendance.Person
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loaded, err := s.payroll.Load(gctx, false)
		if err != nil {
			return fmt.Errorf("load payroll feed: %w", err)
		}
		records = loaded
		return nil
	})
	if s.attendance != nil {
		g.Go(func() error {
			loaded, err := s.attendance.People(gctx)
			if err != nil {
				// Card backfill is cosmetic; never fail enrichment over it.
				s.logger.WarnContext(gctx, "attendance lookup skipped", "error", err.Error())
				return nil
			}
			people = loaded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if expand {
			return employees, err
		}
		s.logger.ErrorContext(ctx, "payroll enrichment skipped", "error", err.Error())
	}

	codes := payroll.MapByCode(records)
	var byDNI payroll.Map
	if expand {
		byDNI = payroll.MapByDNI(records)
	}
	cards := attendance.MapByCode(people)

	now := s.now()
	enriched := make([]employee.Employee, len(employees))
	for i, emp := range employees {
		if details, ok := payroll.Lookup(emp.UserID, codes); ok {
			emp.LastSeen = RelativeTime(details.LastSeen, now)
			if emp.DNI == "" {
				emp.DNI = details.DNI
			}
			if emp.GroupID == "" {
				emp.GroupID = details.Center
			}
		}
		if expand {
			if details, ok := payroll.Lookup(emp.Name, byDNI); ok {
				emp.DNI = details.DNI
				emp.ContractFrom = details.ContractFrom
				emp.MedicalLeaveFrom = details.MedicalLeaveFrom
				emp.VacationStatus = details.Vacation
			}
		}
		if emp.Card == "" {
			if person, ok := lookup.Find(cards, emp.UserID); ok {
				emp.Card = employee.NormalizeCard(person.Card)
			}
		}
		enriched[i] = emp
	}
	return enriched, nil
}

const relativeDefault = "N/A"

var relativeUnits = []struct {
	seconds float64
	name    string
}{
	{365 * 24 * 3600, "year"},
	{30 * 24 * 3600, "month"},
	{7 * 24 * 3600, "week"},
	{24 * 3600, "day"},
	{3600, "hour"},
	{60, "minute"},
}

// RelativeTime renders an ISO timestamp or plain date as text relative to
// now ("3 days ago", "in 2 hours", "just now"). Unparseable input yields
// "N/A". Timestamps without a zone are taken as UTC.
func RelativeTime(value string, now time.Time) string {
	parsed, ok := parseTimestamp(value)
	if !ok {
		return relativeDefault
	}

	seconds := now.Sub(parsed).Seconds()
	if math.Abs(seconds) < 60 {
		return "just now"
	}
	future := seconds < 0
	seconds = math.Abs(seconds)

	for _, unit := range relativeUnits {
		if seconds >= unit.seconds {
			count := int(seconds / unit.seconds)
			text := fmt.Sprintf("%d %s", count, unit.name)
			if count != 1 {
				text += "s"
			}
			if future {
				return "in " + text
			}
			return text + " ago"
		}
	}
	return relativeDefault
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
