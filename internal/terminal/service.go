package terminal

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/karlutxo/zk-tools/internal/employee"
	"github.com/karlutxo/zk-tools/internal/platform/metrics"
)

// OpError records one failed record inside a batch operation.
type OpError struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// StatusField is one labelled line of the terminal status report. A slice
// keeps the display order stable.
type StatusField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// StatusReport aggregates device metadata; per-field failures land in
// Errors instead of failing the whole report.
type StatusReport struct {
	Fields []StatusField `json:"fields"`
	Errors []string      `json:"errors"`
}

// ClockReport captures a clock read or sync against one terminal.
type ClockReport struct {
	Terminal string        `json:"terminal"`
	Before   time.Time     `json:"before"`
	After    time.Time     `json:"after,omitempty"`
	Drift    time.Duration `json:"drift"`
	Synced   bool          `json:"synced"`
	Error    string        `json:"error,omitempty"`
}

// Service implements the employee-level operations against terminals. Each
// operation opens a fresh connection and unconditionally closes it, even on
// error paths.
type Service struct {
	connector *Connector
	logger    *slog.Logger
	metrics   *metrics.Metrics
	driftWarn time.Duration
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDriftWarn sets the clock drift above which sync results are logged
// at warn level.
func WithDriftWarn(d time.Duration) Option {
	return func(s *Service) { s.driftWarn = d }
}

func NewService(connector *Connector, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{connector: connector, logger: logger, driftWarn: time.Minute}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// disconnect is best-effort cleanup: a failure is logged, never allowed to
// mask the primary operation's outcome.
func (s *Service) disconnect(ctx context.Context, conn Conn, host string) {
	if err := conn.Disconnect(); err != nil {
		s.logger.ErrorContext(ctx, "terminal disconnect failed", "host", host, "error", err.Error())
	}
}

// Fetch lists the terminal's users together with their biometric template
// descriptors. A template listing failure degrades to users without
// biometrics rather than failing the fetch.
func (s *Service) Fetch(ctx context.Context, host string, port int) ([]employee.Employee, error) {
	start := time.Now()
	employees, err := s.fetch(ctx, host, port)
	s.metrics.ObserveDeviceOp("fetch", start, err)
	return employees, err
}

func (s *Service) fetch(ctx context.Context, host string, port int) ([]employee.Employee, error) {
	conn, err := s.connector.Connect(ctx, host, port)
	if err != nil {
		return nil, err
	}
	defer s.disconnect(ctx, conn, host)

	users, err := conn.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	templates, err := conn.Templates(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "could not read biometric templates", "host", host, "error", err.Error())
		templates = nil
	}
	templatesByUID := make(map[int][]map[string]any)
	for _, tpl := range templates {
		templatesByUID[tpl.UID] = append(templatesByUID[tpl.UID], map[string]any{
			"fid":   tpl.FID,
			"type":  tpl.Type,
			"valid": tpl.Valid,
			"size":  tpl.Size,
		})
	}

	employees := make([]employee.Employee, 0, len(users))
	for _, user := range users {
		biometrics := templatesByUID[user.UID]
		if biometrics == nil {
			biometrics = []map[string]any{}
		}
		employees = append(employees, employee.Employee{
			UID:        strconv.Itoa(user.UID),
			Name:       user.Name,
			UserID:     user.UserID,
			Card:       user.Card,
			Privilege:  strconv.Itoa(user.Privilege),
			GroupID:    user.GroupID,
			Biometrics: biometrics,
		})
	}
	return employees, nil
}

// Delete removes the given employees from the terminal. Per-record failures
// are collected and the batch continues; records without any usable
// identifier are reported without touching the device.
func (s *Service) Delete(ctx context.Context, host string, port int, employees []employee.Employee) (deleted []string, opErrors []OpError, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDeviceOp("delete", start, err) }()

	conn, err := s.connector.Connect(ctx, host, port)
	if err != nil {
		return nil, nil, err
	}
	defer s.disconnect(ctx, conn, host)

	for _, emp := range employees {
		uid, uidErr := strconv.Atoi(strings.TrimSpace(emp.UID))
		if uidErr != nil {
			uid = 0
		}
		userID := strings.TrimSpace(emp.UserID)
		if uid == 0 && userID == "" {
			opErrors = append(opErrors, OpError{Label: emp.UID, Message: "record has no usable identifier"})
			continue
		}
		if delErr := conn.DeleteUser(ctx, uid, userID); delErr != nil {
			opErrors = append(opErrors, OpError{Label: emp.UID, Message: delErr.Error()})
			continue
		}
		deleted = append(deleted, emp.UID)
		if s.metrics != nil {
			s.metrics.EmployeesDeleted.Inc()
		}
	}
	return deleted, opErrors, nil
}

// Upload pushes employees onto the terminal, allocating fresh device uids.
// The device is disabled for the duration (best effort) and re-enabled in
// cleanup no matter how the batch went. Running out of free uids aborts the
// remaining batch; any other per-record failure just moves on.
func (s *Service) Upload(ctx context.Context, host string, port int, employees []employee.Employee) (uploaded []string, opErrors []OpError, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDeviceOp("upload", start, err) }()

	conn, err := s.connector.Connect(ctx, host, port)
	if err != nil {
		return nil, nil, err
	}
	defer s.disconnect(ctx, conn, host)
	defer func() {
		if enableErr := conn.Enable(ctx); enableErr != nil {
			s.logger.ErrorContext(ctx, "could not re-enable terminal", "host", host, "error", enableErr.Error())
		}
	}()

	if disableErr := conn.Disable(ctx); disableErr != nil {
		s.logger.WarnContext(ctx, "could not disable terminal before upload", "host", host, "error", disableErr.Error())
	}

	existing, usersErr := conn.Users(ctx)
	if usersErr != nil {
		s.logger.WarnContext(ctx, "could not read existing users before upload", "host", host, "error", usersErr.Error())
		existing = nil
	}
	used := make(map[int]struct{}, len(existing))
	for _, user := range existing {
		used[user.UID] = struct{}{}
	}
	allocator := newUIDAllocator(used)

	for _, emp := range employees {
		uidLabel := strings.TrimSpace(emp.UID)
		userID := strings.TrimSpace(emp.UserID)
		label := uidLabel
		if label == "" {
			label = userID
		}
		if label == "" {
			opErrors = append(opErrors, OpError{Label: "(no identifier)", Message: "record has no uid or user id"})
			continue
		}

		uid, allocErr := allocator.allocate()
		if allocErr != nil {
			opErrors = append(opErrors, OpError{Label: label, Message: allocErr.Error()})
			break
		}

		user := DeviceUser{
			UID:       uid,
			Name:      strings.TrimSpace(emp.Name),
			Privilege: employee.CoercePrivilege(emp.Privilege),
			Password:  "",
			GroupID:   strings.TrimSpace(emp.GroupID),
			UserID:    userID,
			// An absent card stays empty so the device keeps its own
			// default instead of storing a literal zero.
			Card: employee.NormalizeCard(emp.Card),
		}
		if setErr := conn.SetUser(ctx, user); setErr != nil {
			opErrors = append(opErrors, OpError{Label: label, Message: setErr.Error()})
			continue
		}
		if uidLabel != "" {
			uploaded = append(uploaded, uidLabel)
		} else {
			uploaded = append(uploaded, strconv.Itoa(uid))
		}
		if s.metrics != nil {
			s.metrics.EmployeesPushed.Inc()
		}
	}
	return uploaded, opErrors, nil
}

// Status gathers general device information for display. Individual query
// failures are reported per field.
func (s *Service) Status(ctx context.Context, host string, port int) (report *StatusReport, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDeviceOp("status", start, err) }()

	conn, err := s.connector.Connect(ctx, host, port)
	if err != nil {
		return nil, err
	}
	defer s.disconnect(ctx, conn, host)

	report = &StatusReport{
		Fields: []StatusField{
			{Label: "Dirección IP", Value: host},
			{Label: "Puerto", Value: strconv.Itoa(port)},
		},
	}
	add := func(label string, query func(context.Context) (string, error)) {
		value, queryErr := query(ctx)
		if queryErr != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("could not read %s: %v", label, queryErr))
			return
		}
		if value != "" {
			report.Fields = append(report.Fields, StatusField{Label: label, Value: value})
		}
	}

	add("Número de serie", conn.SerialNumber)
	add("Nombre del dispositivo", conn.DeviceName)
	add("Modelo", conn.Model)
	add("Plataforma", conn.Platform)
	add("Versión de firmware", conn.FirmwareVersion)
	add("Dirección MAC", conn.MAC)
	add("Fecha y hora", func(ctx context.Context) (string, error) {
		clock, clockErr := conn.Clock(ctx)
		if clockErr != nil {
			return "", clockErr
		}
		return clock.Format("2006-01-02 15:04:05"), nil
	})

	if users, usersErr := conn.Users(ctx); usersErr != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("could not list users: %v", usersErr))
	} else {
		report.Fields = append(report.Fields, StatusField{Label: "Usuarios en memoria", Value: strconv.Itoa(len(users))})
	}
	if count, countErr := conn.AttendanceCount(ctx); countErr != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("could not read attendance count: %v", countErr))
	} else {
		report.Fields = append(report.Fields, StatusField{Label: "Marcajes en memoria", Value: strconv.Itoa(count)})
	}
	return report, nil
}

// SyncClock sets the terminal clock to the local wall clock, reporting the
// drift before and after. With readOnly it only measures.
func (s *Service) SyncClock(ctx context.Context, host string, port int, readOnly bool) (report ClockReport, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDeviceOp("sync_clock", start, err) }()

	report.Terminal = FormatAddress(host, port)
	conn, err := s.connector.Connect(ctx, host, port)
	if err != nil {
		return report, err
	}
	defer s.disconnect(ctx, conn, host)

	before, err := conn.Clock(ctx)
	if err != nil {
		return report, fmt.Errorf("read clock: %w", err)
	}
	now := time.Now()
	report.Before = before
	report.Drift = absDuration(now.Sub(before))
	s.logDrift(ctx, host, "clock before sync", before, report.Drift)

	if readOnly {
		return report, nil
	}

	// The firmware refuses clock writes while in work mode.
	if enableErr := conn.Enable(ctx); enableErr != nil {
		s.logger.WarnContext(ctx, "could not enable terminal before clock sync", "host", host, "error", enableErr.Error())
	}
	if err = conn.SetClock(ctx, now); err != nil {
		return report, fmt.Errorf("set clock: %w", err)
	}
	after, afterErr := conn.Clock(ctx)
	if afterErr != nil {
		s.logger.WarnContext(ctx, "could not read clock after sync", "host", host, "error", afterErr.Error())
	} else {
		report.After = after
		report.Drift = absDuration(after.Sub(now))
		s.logDrift(ctx, host, "clock after sync", after, report.Drift)
	}
	report.Synced = true
	return report, nil
}

// SyncAllClocks walks the known-terminal list, syncing (or only reading)
// each clock. Per-terminal failures are reported in the result, never
// aborting the sweep.
func (s *Service) SyncAllClocks(ctx context.Context, terminals []KnownTerminal, port int, readOnly bool) []ClockReport {
	reports := make([]ClockReport, 0, len(terminals))
	for _, term := range terminals {
		report, err := s.SyncClock(ctx, term.IP, port, readOnly)
		if err != nil {
			report.Error = err.Error()
			s.logger.ErrorContext(ctx, "clock sync failed", "terminal", term.IP, "label", term.Label, "error", err.Error())
		}
		reports = append(reports, report)
	}
	return reports
}

// CopyCards copies card numbers from the source terminal onto the
// destination, matching users by user_id and leaving every other
// destination field untouched. Source users without a valid card are
// skipped.
func (s *Service) CopyCards(ctx context.Context, srcHost string, srcPort int, dstHost string, dstPort int) (updated int, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDeviceOp("copy_cards", start, err) }()

	src, err := s.connector.Connect(ctx, srcHost, srcPort)
	if err != nil {
		return 0, err
	}
	defer s.disconnect(ctx, src, srcHost)

	dst, err := s.connector.Connect(ctx, dstHost, dstPort)
	if err != nil {
		return 0, err
	}
	defer s.disconnect(ctx, dst, dstHost)

	srcUsers, err := src.Users(ctx)
	if err != nil {
		return 0, fmt.Errorf("list source users: %w", err)
	}
	dstUsers, err := dst.Users(ctx)
	if err != nil {
		return 0, fmt.Errorf("list destination users: %w", err)
	}
	dstByUserID := make(map[string]DeviceUser, len(dstUsers))
	for _, user := range dstUsers {
		dstByUserID[user.UserID] = user
	}

	for _, srcUser := range srcUsers {
		card := employee.NormalizeCard(srcUser.Card)
		if card == "" || srcUser.UserID == "" {
			continue
		}
		dstUser, ok := dstByUserID[srcUser.UserID]
		if !ok {
			continue
		}
		dstUser.Card = card
		if setErr := dst.SetUser(ctx, dstUser); setErr != nil {
			return updated, fmt.Errorf("update card for user %s: %w", srcUser.UserID, setErr)
		}
		updated++
	}
	return updated, nil
}

// UpdateCard finds a user by user_id and rewrites its card number. Returns
// false when the user is missing or the card already matches.
func (s *Service) UpdateCard(ctx context.Context, host string, port int, userID, card string) (changed bool, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDeviceOp("update_card", start, err) }()

	conn, err := s.connector.Connect(ctx, host, port)
	if err != nil {
		return false, err
	}
	defer s.disconnect(ctx, conn, host)

	users, err := conn.Users(ctx)
	if err != nil {
		return false, fmt.Errorf("list users: %w", err)
	}
	for _, user := range users {
		if user.UserID != userID {
			continue
		}
		if user.Card == card {
			return false, nil
		}
		user.Card = card
		if err = conn.SetUser(ctx, user); err != nil {
			return false, fmt.Errorf("set card: %w", err)
		}
		return true, nil
	}
	return false, nil
}

func (s *Service) logDrift(ctx context.Context, host, message string, clock time.Time, drift time.Duration) {
	attrs := []any{"host", host, "clock", clock.Format("2006-01-02 15:04:05"), "drift", drift.String()}
	if drift > s.driftWarn {
		s.logger.WarnContext(ctx, message, attrs...)
		return
	}
	s.logger.InfoContext(ctx, message, attrs...)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
