package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"waterz/internal/domain"
	"waterz/internal/models"
)

// DB is the checkout ledger: one row per created booking, tracking its payment state.
type DB struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	// Создаем директорию для БД, если её нет
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("checkout ledger initialized")
	return &DB{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS checkout_sessions (
            id TEXT PRIMARY KEY,
            draft_id TEXT NOT NULL DEFAULT '',
            booking_id TEXT UNIQUE NOT NULL,
            order_id TEXT NOT NULL,
            package_amount REAL NOT NULL DEFAULT 0,
            addon_cost REAL NOT NULL DEFAULT 0,
            gst_amount REAL NOT NULL DEFAULT 0,
            total_amount REAL NOT NULL DEFAULT 0,
            discount REAL NOT NULL DEFAULT 0,
            discount_type TEXT NOT NULL DEFAULT '',
            promo_code TEXT NOT NULL DEFAULT '',
            state TEXT NOT NULL,
            payment_id TEXT NOT NULL DEFAULT '',
            location TEXT NOT NULL DEFAULT '',
            start_time DATETIME,
            customer_name TEXT NOT NULL DEFAULT '',
            customer_email TEXT NOT NULL DEFAULT '',
            customer_phone TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_checkout_sessions_state ON checkout_sessions(state)`,
		`CREATE INDEX IF NOT EXISTS idx_checkout_sessions_updated_at ON checkout_sessions(updated_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

const sessionColumns = `id, draft_id, booking_id, order_id, package_amount, addon_cost, gst_amount, total_amount,
        discount, discount_type, promo_code, state, payment_id, location, start_time,
        customer_name, customer_email, customer_phone, created_at, updated_at`

// CreateSession сохраняет новую сессию оплаты
func (db *DB) CreateSession(ctx context.Context, s *models.CheckoutSession) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	query := `INSERT INTO checkout_sessions (` + sessionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.db.ExecContext(ctx, query,
		s.ID, s.DraftID, s.BookingID, s.OrderID,
		s.Breakdown.PackageAmount, s.Breakdown.AddonCost, s.Breakdown.GSTAmount, s.Breakdown.TotalAmount,
		s.Discount, s.DiscountType, s.PromoCode, s.State, s.PaymentID, s.Location, nullTime(s.StartTime),
		s.Customer.Name, s.Customer.Email, s.Customer.Phone, s.CreatedAt.UTC(), s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}
	return nil
}

func (db *DB) GetSession(ctx context.Context, id string) (*models.CheckoutSession, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM checkout_sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (db *DB) GetSessionByBooking(ctx context.Context, bookingID string) (*models.CheckoutSession, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM checkout_sessions WHERE booking_id = ?`, bookingID)
	return scanSession(row)
}

// UpdateSession writes the session only if the stored state still matches expectedState.
func (db *DB) UpdateSession(ctx context.Context, s *models.CheckoutSession, expectedState string) error {
	s.UpdatedAt = time.Now().UTC()

	query := `
        UPDATE checkout_sessions
        SET order_id = ?, discount = ?, discount_type = ?, promo_code = ?, state = ?, payment_id = ?,
            customer_name = ?, customer_email = ?, customer_phone = ?, updated_at = ?
        WHERE id = ? AND state = ?
    `
	res, err := db.db.ExecContext(ctx, query,
		s.OrderID, s.Discount, s.DiscountType, s.PromoCode, s.State, s.PaymentID,
		s.Customer.Name, s.Customer.Email, s.Customer.Phone, s.UpdatedAt,
		s.ID, expectedState,
	)
	if err != nil {
		return fmt.Errorf("update checkout session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update checkout session: %w", err)
	}
	if affected == 0 {
		if _, err := db.GetSession(ctx, s.ID); err != nil {
			return err
		}
		return fmt.Errorf("session %s is not in state %s: %w", s.ID, expectedState, domain.ErrInvalidTransition)
	}
	return nil
}

// ListSessionsByState возвращает сессии в указанном состоянии, обновленные после since
func (db *DB) ListSessionsByState(ctx context.Context, state string, since time.Time) ([]*models.CheckoutSession, error) {
	return db.listSessions(ctx,
		`SELECT `+sessionColumns+` FROM checkout_sessions WHERE state = ? AND updated_at >= ? ORDER BY updated_at`,
		state, since.UTC())
}

// ListSessionsUpdatedBefore returns sessions in state whose last update is older than before.
func (db *DB) ListSessionsUpdatedBefore(ctx context.Context, state string, before time.Time) ([]*models.CheckoutSession, error) {
	return db.listSessions(ctx,
		`SELECT `+sessionColumns+` FROM checkout_sessions WHERE state = ? AND updated_at < ? ORDER BY updated_at`,
		state, before.UTC())
}

func (db *DB) listSessions(ctx context.Context, query string, args ...interface{}) ([]*models.CheckoutSession, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkout sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.CheckoutSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CountByState returns the number of sessions per state.
func (db *DB) CountByState(ctx context.Context) (map[string]int, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM checkout_sessions GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count checkout sessions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.CheckoutSession, error) {
	var s models.CheckoutSession
	var start sql.NullTime
	err := row.Scan(
		&s.ID, &s.DraftID, &s.BookingID, &s.OrderID,
		&s.Breakdown.PackageAmount, &s.Breakdown.AddonCost, &s.Breakdown.GSTAmount, &s.Breakdown.TotalAmount,
		&s.Discount, &s.DiscountType, &s.PromoCode, &s.State, &s.PaymentID, &s.Location, &start,
		&s.Customer.Name, &s.Customer.Email, &s.Customer.Phone, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan checkout session: %w", err)
	}
	if start.Valid {
		s.StartTime = start.Time
	}
	return &s, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
