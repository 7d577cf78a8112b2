// Package attendance reads employee rows from the attendance software's
// database and pushes card-number updates back into it. The attendance
// system owns the schema; this store only touches the employee table.
package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/karlutxo/zk-tools/internal/employee"
	"github.com/karlutxo/zk-tools/internal/lookup"
	"github.com/karlutxo/zk-tools/internal/platform/metrics"
)

// Person is one employee row as the attendance database stores it. ID is
// the numeric row identifier and the only update key; Code is the
// business code the terminals carry as user_id.
type Person struct {
	ID   int64
	Code string
	Name string
	Card string
}

// CardUpdate assigns a card number to a row by its numeric identifier.
type CardUpdate struct {
	ID   int64
	Card string
}

// Store gives read and card-update access to the attendance database.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Store)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Open connects to the attendance database and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open attendance database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping attendance database: %w", err)
	}
	return db, nil
}

func New(db *sql.DB, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{db: db, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// People returns every employee row with its card assignment.
func (s *Store) People(ctx context.Context) ([]Person, error) {
	query := `
		SELECT id, codigo, nombre, tarjeta
		FROM empleados
		ORDER BY nombre, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.observeRefresh("error")
		return nil, fmt.Errorf("query attendance employees: %w", err)
	}
	defer rows.Close()

	var people []Person
	for rows.Next() {
		var (
			person Person
			code   sql.NullString
			name   sql.NullString
			card   sql.NullString
		)
		if err := rows.Scan(&person.ID, &code, &name, &card); err != nil {
			s.observeRefresh("error")
			return nil, fmt.Errorf("scan attendance employee: %w", err)
		}
		person.Code = strings.TrimSpace(code.String)
		person.Name = strings.TrimSpace(name.String)
		person.Card = card.String
		people = append(people, person)
	}
	if err := rows.Err(); err != nil {
		s.observeRefresh("error")
		return nil, fmt.Errorf("iterate attendance employees: %w", err)
	}
	s.observeRefresh("ok")
	return people, nil
}

// Employees adapts the rows to the canonical record shape used by the
// cache: the row id becomes the uid, the business code the user_id.
func (s *Store) Employees(ctx context.Context) ([]employee.Employee, error) {
	people, err := s.People(ctx)
	if err != nil {
		return nil, err
	}
	employees := make([]employee.Employee, 0, len(people))
	for _, person := range people {
		employees = append(employees, ToEmployee(person))
	}
	return employees, nil
}

func ToEmployee(person Person) employee.Employee {
	return employee.Employee{
		UID:    strconv.FormatInt(person.ID, 10),
		Name:   person.Name,
		UserID: person.Code,
		Card:   employee.NormalizeCard(person.Card),
	}
}

// MapByCode indexes people by their business code under the usual
// identifier variants.
func MapByCode(people []Person) lookup.Map[Person] {
	mapping := make(lookup.Map[Person], len(people))
	for _, person := range people {
		lookup.Put(mapping, person.Code, person)
	}
	return mapping
}

// UpdateCards applies the card assignments inside one transaction; either
// every row updates or none does.
func (s *Store) UpdateCards(ctx context.Context, updates []CardUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin card update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE empleados SET tarjeta = $1 WHERE id = $2`)
	if err != nil {
		return fmt.Errorf("prepare card update: %w", err)
	}
	defer stmt.Close()

	for _, update := range updates {
		card := employee.NormalizeCard(update.Card)
		if card == "" {
			return fmt.Errorf("employee %d: a card number is required", update.ID)
		}
		result, err := stmt.ExecContext(ctx, card, update.ID)
		if err != nil {
			return fmt.Errorf("update card for employee %d: %w", update.ID, err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("employee %d not found in attendance database", update.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit card updates: %w", err)
	}
	s.logger.InfoContext(ctx, "attendance cards updated", "count", len(updates))
	return nil
}

func (s *Store) observeRefresh(outcome string) {
	if s.metrics != nil {
		s.metrics.LookupRefreshes.WithLabelValues("attendance", outcome).Inc()
	}
}
