// Package admin orchestrates the terminal and external-source operations
// behind the HTTP API: it resolves sources, drives the device and lookup
// clients and keeps the per-source cache and selection state consistent.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/karlutxo/zk-tools/internal/attendance"
	"github.com/karlutxo/zk-tools/internal/audit"
	"github.com/karlutxo/zk-tools/internal/employee"
	"github.com/karlutxo/zk-tools/internal/employee/cache"
	"github.com/karlutxo/zk-tools/internal/enrich"
	"github.com/karlutxo/zk-tools/internal/exchange"
	"github.com/karlutxo/zk-tools/internal/lookup"
	"github.com/karlutxo/zk-tools/internal/payroll"
	"github.com/karlutxo/zk-tools/internal/platform/middleware"
	"github.com/karlutxo/zk-tools/internal/terminal"
	dErrors "github.com/karlutxo/zk-tools/pkg/domain-errors"
)

// Source is a resolved source argument: a normalized terminal address or
// one of the virtual feed keys.
type Source struct {
	Key     string
	Host    string
	Port    int
	Virtual bool
}

// Service drives every admin operation. Device work goes through the
// terminal service; the external feeds through their clients; results land
// in the shared cache keyed by source.
type Service struct {
	terminals  *terminal.Service
	cache      *cache.Store
	payroll    *payroll.Client
	attendance *attendance.Store
	enrich     *enrich.Service
	audit      *audit.Publisher
	logger     *slog.Logger
	known      []terminal.KnownTerminal
	webhookURL string
}

type Option func(*Service)

// WithAttendance enables the attendance virtual source and card sync.
func WithAttendance(store *attendance.Store) Option {
	return func(s *Service) { s.attendance = store }
}

func WithAudit(publisher *audit.Publisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func WithKnownTerminals(known []terminal.KnownTerminal) Option {
	return func(s *Service) { s.known = known }
}

// WithCardWebhook sets the payroll webhook notified after card updates.
func WithCardWebhook(url string) Option {
	return func(s *Service) { s.webhookURL = url }
}

func NewService(
	terminals *terminal.Service,
	store *cache.Store,
	payrollClient *payroll.Client,
	enrichService *enrich.Service,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		terminals: terminals,
		cache:     store,
		payroll:   payrollClient,
		enrich:    enrichService,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveSource validates a raw source value. Terminal addresses come back
// normalized so the cache key is stable however the operator typed them.
func (s *Service) ResolveSource(value string) (Source, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Source{}, dErrors.New(dErrors.CodeBadRequest, "a source is required")
	}
	if cache.IsVirtualSource(trimmed) {
		return Source{Key: trimmed, Virtual: true}, nil
	}
	host, port := terminal.ParseAddress(trimmed)
	if host == "" {
		return Source{}, dErrors.New(dErrors.CodeBadRequest, "a terminal address is required")
	}
	return Source{Key: terminal.FormatAddress(host, port), Host: host, Port: port}, nil
}

// KnownTerminals lists the operator-maintained terminal registry.
func (s *Service) KnownTerminals() []terminal.KnownTerminal {
	return s.known
}

// Fetch pulls the current employee list from the source and replaces the
// cache entry wholesale.
func (s *Service) Fetch(ctx context.Context, src Source, forceRefresh bool) ([]employee.Employee, error) {
	var (
		employees []employee.Employee
		err       error
	)
	switch src.Key {
	case cache.SourcePayroll:
		var records []payroll.Record
		records, err = s.payroll.Load(ctx, forceRefresh)
		if err == nil {
			employees = make([]employee.Employee, 0, len(records))
			for _, record := range records {
				if emp := payroll.ToEmployee(record); emp.UID != "" {
					employees = append(employees, emp)
				}
			}
		}
	case cache.SourceAttendance:
		if s.attendance == nil {
			return nil, dErrors.New(dErrors.CodeUnavailable, "attendance database is not configured")
		}
		employees, err = s.attendance.Employees(ctx)
	default:
		employees, err = s.terminals.Fetch(ctx, src.Host, src.Port)
	}
	if err != nil {
		return nil, err
	}

	s.cache.SetEmployees(src.Key, employees)
	s.logger.InfoContext(ctx, "employees fetched", "source", src.Key, "count", len(employees))
	return employees, nil
}

// Import parses an uploaded employee file into the cache of the source.
// Validation happens before any cache mutation.
func (s *Service) Import(ctx context.Context, src Source, filename string, payload []byte) ([]employee.Employee, error) {
	if src.Virtual {
		return nil, dErrors.New(dErrors.CodeBadRequest, "virtual sources are read-only")
	}
	employees, err := exchange.ParseFile(filename, payload)
	if err != nil {
		return nil, err
	}
	s.cache.SetEmployees(src.Key, employees)
	s.cache.SetSelected(src.Key, nil)
	s.logger.InfoContext(ctx, "employees imported", "source", src.Key, "file", filename, "count", len(employees))
	return employees, nil
}

// View returns the cached employees of a source together with the current
// selection. Reading narrows the selection to uids still present and
// writes the narrowed set back, which is how stale selections are purged.
// With expand set, records come back annotated with the expanded payroll
// details.
func (s *Service) View(ctx context.Context, src Source, expand bool) ([]employee.Employee, []string, error) {
	employees, selected := s.snapshot(src.Key)
	if s.enrich != nil && len(employees) > 0 {
		enriched, err := s.enrich.Apply(ctx, employees, expand)
		if err != nil {
			return nil, nil, dErrors.Wrap(dErrors.CodeUnavailable, "could not load the expanded employee details", err)
		}
		employees = enriched
	}
	return employees, selected, nil
}

// snapshot narrows the selection to uids still present in the cached
// list and writes the narrowed set back before returning it.
func (s *Service) snapshot(key string) ([]employee.Employee, []string) {
	employees := s.cache.Employees(key)
	selected := s.cache.Selected(key)

	present := make(map[string]struct{}, len(employees))
	for _, emp := range employees {
		present[emp.UID] = struct{}{}
	}
	narrowed := make(map[string]struct{}, len(selected))
	for uid := range selected {
		if _, ok := present[uid]; ok {
			narrowed[uid] = struct{}{}
		}
	}
	if len(narrowed) != len(selected) {
		s.cache.SetSelected(key, narrowed)
	}

	uids := make([]string, 0, len(narrowed))
	for uid := range narrowed {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return employees, uids
}

// Select replaces the selection for a source.
func (s *Service) Select(src Source, uids []string) {
	selected := make(map[string]struct{}, len(uids))
	for _, uid := range uids {
		selected[strings.TrimSpace(uid)] = struct{}{}
	}
	delete(selected, "")
	s.cache.SetSelected(src.Key, selected)
}

// Duplicates lists cached employees sharing a name but not a user id.
func (s *Service) Duplicates(src Source) []employee.Employee {
	employees, _ := s.snapshot(src.Key)
	return employee.FindDuplicates(employees)
}

// Push uploads the chosen cached employees to the terminal. The selection
// is remembered so the operator sees the same checkboxes after the push.
func (s *Service) Push(ctx context.Context, src Source, uids []string) (uploaded []string, opErrors []terminal.OpError, err error) {
	if src.Virtual {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, "employees can only be pushed to a terminal")
	}
	chosen, err := s.chooseCached(src.Key, uids)
	if err != nil {
		return nil, nil, err
	}
	s.Select(src, uids)

	uploaded, opErrors, err = s.terminals.Upload(ctx, src.Host, src.Port, chosen)
	s.publishAudit(ctx, "push", src.Key, len(uploaded), len(opErrors), err)
	return uploaded, opErrors, err
}

// Delete removes the chosen cached employees from the terminal. Deleted
// uids leave the selection; the cached list itself stays until the next
// fetch, matching what the device now holds only after a refresh.
func (s *Service) Delete(ctx context.Context, src Source, uids []string) (deleted []string, opErrors []terminal.OpError, err error) {
	if src.Virtual {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, "employees can only be deleted from a terminal")
	}
	chosen, err := s.chooseCached(src.Key, uids)
	if err != nil {
		return nil, nil, err
	}

	deleted, opErrors, err = s.terminals.Delete(ctx, src.Host, src.Port, chosen)
	if len(deleted) > 0 {
		s.cache.RemoveSelected(src.Key, deleted)
	}
	s.publishAudit(ctx, "delete", src.Key, len(deleted), len(opErrors), err)
	return deleted, opErrors, err
}

// Export serializes the chosen cached employees for download and records
// the choice as the current selection.
func (s *Service) Export(ctx context.Context, src Source, uids []string, format exchange.Format) (*exchange.File, error) {
	chosen, err := s.chooseCached(src.Key, uids)
	if err != nil {
		return nil, err
	}
	s.Select(src, uids)

	file, err := exchange.Export(src.Key, chosen, format)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "employees exported", "source", src.Key, "file", file.Name, "count", len(chosen))
	return file, nil
}

// Clear drops the cache entry of one source and reports how many records
// were held.
func (s *Service) Clear(ctx context.Context, src Source) int {
	removed := s.cache.Clear(src.Key)
	s.logger.InfoContext(ctx, "cache cleared", "source", src.Key, "count", len(removed))
	return len(removed)
}

// ClearAll drops every cache entry.
func (s *Service) ClearAll(ctx context.Context) {
	s.cache.ClearAll()
	s.logger.InfoContext(ctx, "cache cleared for all sources")
}

// Status reports device metadata for a terminal source.
func (s *Service) Status(ctx context.Context, src Source) (*terminal.StatusReport, error) {
	if src.Virtual {
		return nil, dErrors.New(dErrors.CodeBadRequest, "status is only available for terminals")
	}
	return s.terminals.Status(ctx, src.Host, src.Port)
}

// SyncClock synchronizes (or with readOnly just measures) one terminal
// clock.
func (s *Service) SyncClock(ctx context.Context, src Source, readOnly bool) (terminal.ClockReport, error) {
	if src.Virtual {
		return terminal.ClockReport{}, dErrors.New(dErrors.CodeBadRequest, "clock sync is only available for terminals")
	}
	report, err := s.terminals.SyncClock(ctx, src.Host, src.Port, readOnly)
	s.publishAudit(ctx, "sync_clock", src.Key, 1, 0, err)
	return report, err
}

// SyncAllClocks sweeps the known-terminal registry.
func (s *Service) SyncAllClocks(ctx context.Context, readOnly bool) ([]terminal.ClockReport, error) {
	if len(s.known) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no known terminals are configured")
	}
	reports := s.terminals.SyncAllClocks(ctx, s.known, terminal.DefaultPort, readOnly)
	failures := 0
	for _, report := range reports {
		if report.Error != "" {
			failures++
		}
	}
	s.publishAudit(ctx, "sync_all_clocks", "registry", len(reports), failures, nil)
	return reports, nil
}

// CopyCards copies card numbers between two terminals, matching by
// user_id.
func (s *Service) CopyCards(ctx context.Context, src, dst Source) (int, error) {
	if src.Virtual || dst.Virtual {
		return 0, dErrors.New(dErrors.CodeBadRequest, "cards can only be copied between terminals")
	}
	if src.Key == dst.Key {
		return 0, dErrors.New(dErrors.CodeBadRequest, "source and destination are the same terminal")
	}
	updated, err := s.terminals.CopyCards(ctx, src.Host, src.Port, dst.Host, dst.Port)
	s.publishAudit(ctx, "copy_cards", fmt.Sprintf("%s->%s", src.Key, dst.Key), updated, 0, err)
	return updated, err
}

// UpdateCard rewrites one user's card on a terminal and notifies the
// payroll webhook when the card actually changed. Webhook failures are
// reported but do not undo the device write.
func (s *Service) UpdateCard(ctx context.Context, src Source, userID, card string) (changed bool, opErrors []terminal.OpError, err error) {
	if src.Virtual {
		return false, nil, dErrors.New(dErrors.CodeBadRequest, "card updates target a terminal")
	}
	userID = strings.TrimSpace(userID)
	card = employee.NormalizeCard(card)
	if userID == "" || card == "" {
		return false, nil, dErrors.New(dErrors.CodeBadRequest, "a user id and a card number are required")
	}

	changed, err = s.terminals.UpdateCard(ctx, src.Host, src.Port, userID, card)
	if err != nil {
		s.publishAudit(ctx, "update_card", src.Key, 0, 1, err)
		return false, nil, err
	}
	if changed && s.webhookURL != "" {
		if webhookErr := s.payroll.RegisterCard(ctx, s.webhookURL, userID, card); webhookErr != nil {
			s.logger.ErrorContext(ctx, "card webhook failed", "user_id", userID, "error", webhookErr.Error())
			opErrors = append(opErrors, terminal.OpError{Label: userID, Message: "card updated, but the payroll webhook failed"})
		}
	}
	s.publishAudit(ctx, "update_card", src.Key, boolToCount(changed), len(opErrors), nil)
	return changed, opErrors, nil
}

// PushCards writes the chosen cached employees' card numbers into the
// attendance database, matching rows by business code. The database
// update is transactional; webhook notifications afterwards are
// best-effort per card.
func (s *Service) PushCards(ctx context.Context, src Source, uids []string) (updated int, opErrors []terminal.OpError, err error) {
	if s.attendance == nil {
		return 0, nil, dErrors.New(dErrors.CodeUnavailable, "attendance database is not configured")
	}
	chosen, err := s.chooseCached(src.Key, uids)
	if err != nil {
		return 0, nil, err
	}

	people, err := s.attendance.People(ctx)
	if err != nil {
		return 0, nil, err
	}
	mapping := attendance.MapByCode(people)

	var (
		updates  []attendance.CardUpdate
		notified []string
	)
	for _, emp := range chosen {
		card := employee.NormalizeCard(emp.Card)
		if card == "" {
			continue
		}
		person, ok := lookup.Find(mapping, emp.UserID)
		if !ok {
			opErrors = append(opErrors, terminal.OpError{Label: emp.UID, Message: "no matching employee in the attendance database"})
			continue
		}
		if employee.NormalizeCard(person.Card) == card {
			continue
		}
		updates = append(updates, attendance.CardUpdate{ID: person.ID, Card: card})
		notified = append(notified, emp.UserID)
	}

	if err = s.attendance.UpdateCards(ctx, updates); err != nil {
		s.publishAudit(ctx, "push_cards", src.Key, 0, len(opErrors)+1, err)
		return 0, opErrors, err
	}
	updated = len(updates)

	if s.webhookURL != "" {
		for i, userID := range notified {
			if webhookErr := s.payroll.RegisterCard(ctx, s.webhookURL, userID, updates[i].Card); webhookErr != nil {
				s.logger.ErrorContext(ctx, "card webhook failed", "user_id", userID, "error", webhookErr.Error())
				opErrors = append(opErrors, terminal.OpError{Label: userID, Message: "card stored, but the payroll webhook failed"})
			}
		}
	}
	s.publishAudit(ctx, "push_cards", src.Key, updated, len(opErrors), nil)
	return updated, opErrors, nil
}

// chooseCached picks the cached employees matching uids. An empty cache or
// an empty match is a caller error: fetch or select first.
func (s *Service) chooseCached(key string, uids []string) ([]employee.Employee, error) {
	cached := s.cache.Employees(key)
	if len(cached) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no employees are cached for this source, fetch or import first")
	}
	if len(uids) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no employees were selected")
	}
	wanted := make(map[string]struct{}, len(uids))
	for _, uid := range uids {
		wanted[strings.TrimSpace(uid)] = struct{}{}
	}
	chosen := make([]employee.Employee, 0, len(uids))
	for _, emp := range cached {
		if _, ok := wanted[emp.UID]; ok {
			chosen = append(chosen, emp)
		}
	}
	if len(chosen) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "the selected employees are no longer cached, fetch again")
	}
	return chosen, nil
}

func (s *Service) publishAudit(ctx context.Context, action, source string, count, failures int, err error) {
	event := audit.Event{
		Actor:  middleware.GetUser(ctx),
		Action: action,
		Source: source,
		Count:  count,
		Errors: failures,
	}
	if err != nil {
		event.Detail = err.Error()
	}
	s.audit.Publish(ctx, event)
}

func boolToCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
