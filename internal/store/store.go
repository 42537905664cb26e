// Package store persists admins, one-time codes, reset grants and public
// submissions in a relational database. SQLite backs development and tests;
// PostgreSQL and MySQL are supported for production.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/oakdental/frontdesk/internal/config"
	"github.com/oakdental/frontdesk/internal/model"
)

// Store is the relational store shared by every service. It is safe for
// concurrent use; there is no in-process caching.
type Store struct {
	db      *sqlx.DB
	dialect string
}

// NewStore opens a store for the given driver and DSN and runs migrations.
// An empty SQLite DSN opens a private in-memory database.
func NewStore(driver, dsn string) (*Store, error) {
	return Open(config.DatabaseConfig{Driver: driver, DSN: dsn})
}

// Open opens the store described by cfg and runs migrations.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.InferDriver(cfg.DSN)
	}

	var (
		sqlDriver string
		dsn       string
	)
	switch driver {
	case config.DriverSQLite:
		sqlDriver, dsn = "sqlite", sqliteDSN(cfg.DSN)
	case config.DriverPostgres:
		sqlDriver, dsn = "pgx", cfg.DSN
	case config.DriverMySQL:
		var err error
		sqlDriver = "mysql"
		if dsn, err = mysqlDSN(cfg.DSN); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == config.DriverSQLite {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	s := &Store{db: db, dialect: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s database: %w", driver, err)
	}
	return s, nil
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = ":memory:"
	}
	if strings.Contains(dsn, "?") {
		return dsn
	}
	// Fixed-width UTC timestamps keep text comparison and ORDER BY correct.
	return dsn + "?_time_format=sqlite&_pragma=busy_timeout(5000)"
}

func mysqlDSN(dsn string) (string, error) {
	mc, err := mysql.ParseDSN(strings.TrimPrefix(dsn, "mysql://"))
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN(), nil
}

// Dialect returns the configured driver name (sqlite, postgres or mysql).
func (s *Store) Dialect() string {
	return s.dialect
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// insert runs a named INSERT and returns the generated id. PostgreSQL has no
// LastInsertId, so the id is read back with RETURNING there.
func (s *Store) insert(ctx context.Context, q string, arg interface{}) (int64, error) {
	if s.dialect == config.DriverPostgres {
		bound, args, err := s.db.BindNamed(q+" RETURNING id", arg)
		if err != nil {
			return 0, err
		}
		var id int64
		if err := s.db.QueryRowxContext(ctx, bound, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := s.db.NamedExecContext(ctx, q, arg)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// execOne runs a statement that must touch exactly one row; zero rows map to
// ErrNotFound.
func (s *Store) execOne(ctx context.Context, what, q string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) get(ctx context.Context, what string, dest interface{}, q string, args ...interface{}) error {
	if err := s.db.GetContext(ctx, dest, s.db.Rebind(q), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Admins
// ---------------------------------------------------------------------------

const adminColumns = "id, name, email, phone, password_hash, created_at, updated_at"

// CreateAdmin inserts a new admin account. The ID, CreatedAt, and UpdatedAt
// fields are populated after a successful insert. A taken email yields
// ErrDuplicate.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	const q = `INSERT INTO admins
		(name, email, phone, password_hash, created_at, updated_at)
		VALUES
		(:name, :email, :phone, :password_hash, :created_at, :updated_at)`

	id, err := s.insert(ctx, q, admin)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert admin: %w", err)
	}
	admin.ID = id
	return nil
}

// GetAdminByEmail returns an admin by email address.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	if err := s.get(ctx, "get admin by email", &admin,
		"SELECT "+adminColumns+" FROM admins WHERE email = ?", email); err != nil {
		return nil, err
	}
	return &admin, nil
}

// GetAdmin returns an admin by ID.
func (s *Store) GetAdmin(ctx context.Context, id int64) (*model.Admin, error) {
	var admin model.Admin
	if err := s.get(ctx, "get admin", &admin,
		"SELECT "+adminColumns+" FROM admins WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &admin, nil
}

// ListAdmins returns all admin accounts.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	admins := []model.Admin{}
	if err := s.db.SelectContext(ctx, &admins, "SELECT "+adminColumns+" FROM admins ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin account exists. This is used
// for first-run detection.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// UpdateAdminPassword overwrites the password hash of the admin with the
// given email.
func (s *Store) UpdateAdminPassword(ctx context.Context, email, passwordHash string) error {
	return s.execOne(ctx, "update admin password",
		"UPDATE admins SET password_hash = ?, updated_at = ? WHERE email = ?",
		passwordHash, time.Now().UTC(), email)
}

// ---------------------------------------------------------------------------
// One-time codes
// ---------------------------------------------------------------------------

const otpColumns = "id, email, code, created_at, expires_at"

// CreateOTP stores a reset code. CreatedAt and ExpiresAt must be set by the
// caller, which owns the clock.
func (s *Store) CreateOTP(ctx context.Context, otp *model.OTP) error {
	otp.CreatedAt = otp.CreatedAt.UTC()
	otp.ExpiresAt = otp.ExpiresAt.UTC()

	const q = `INSERT INTO otps (email, code, created_at, expires_at)
		VALUES (:email, :code, :created_at, :expires_at)`

	id, err := s.insert(ctx, q, otp)
	if err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}
	otp.ID = id
	return nil
}

// FindOTPs returns every stored code matching the literal (email, code) pair,
// expired or not. Expiry is judged by the caller.
func (s *Store) FindOTPs(ctx context.Context, email, code string) ([]model.OTP, error) {
	otps := []model.OTP{}
	q := s.db.Rebind("SELECT " + otpColumns + " FROM otps WHERE email = ? AND code = ? ORDER BY expires_at DESC")
	if err := s.db.SelectContext(ctx, &otps, q, email, code); err != nil {
		return nil, fmt.Errorf("find otps: %w", err)
	}
	return otps, nil
}

// DeleteOTPsByEmail removes every outstanding code for email and returns how
// many were removed.
func (s *Store) DeleteOTPsByEmail(ctx context.Context, email string) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM otps WHERE email = ?"), email)
	if err != nil {
		return 0, fmt.Errorf("delete otps: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpiredOTPs removes codes whose expiry is at or before now.
func (s *Store) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM otps WHERE expires_at <= ?"), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}
	return result.RowsAffected()
}

// ---------------------------------------------------------------------------
// Reset grants
// ---------------------------------------------------------------------------

const grantColumns = "id, email, token_hash, created_at, expires_at"

// CreateResetGrant stores a hashed reset grant.
func (s *Store) CreateResetGrant(ctx context.Context, grant *model.ResetGrant) error {
	grant.CreatedAt = grant.CreatedAt.UTC()
	grant.ExpiresAt = grant.ExpiresAt.UTC()

	const q = `INSERT INTO reset_grants (email, token_hash, created_at, expires_at)
		VALUES (:email, :token_hash, :created_at, :expires_at)`

	id, err := s.insert(ctx, q, grant)
	if err != nil {
		return fmt.Errorf("insert reset grant: %w", err)
	}
	grant.ID = id
	return nil
}

// GetResetGrantByHash looks up a reset grant by the SHA-256 of its token.
func (s *Store) GetResetGrantByHash(ctx context.Context, tokenHash string) (*model.ResetGrant, error) {
	var grant model.ResetGrant
	if err := s.get(ctx, "get reset grant", &grant,
		"SELECT "+grantColumns+" FROM reset_grants WHERE token_hash = ?", tokenHash); err != nil {
		return nil, err
	}
	return &grant, nil
}

// DeleteResetGrant consumes a grant. ErrNotFound means it was already used.
func (s *Store) DeleteResetGrant(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete reset grant", "DELETE FROM reset_grants WHERE id = ?", id)
}

// DeleteExpiredResetGrants removes grants whose expiry is at or before now.
func (s *Store) DeleteExpiredResetGrants(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM reset_grants WHERE expires_at <= ?"), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired reset grants: %w", err)
	}
	return result.RowsAffected()
}

// ---------------------------------------------------------------------------
// Appointments
// ---------------------------------------------------------------------------

const appointmentColumns = "id, name, email, phone, date, message, status, reason, created_at"

// CreateAppointment inserts a new appointment request. Status defaults to
// pending when unset.
func (s *Store) CreateAppointment(ctx context.Context, appt *model.Appointment) error {
	appt.CreatedAt = time.Now().UTC()
	if appt.Status == "" {
		appt.Status = model.StatusPending
	}

	const q = `INSERT INTO appointments
		(name, email, phone, date, message, status, reason, created_at)
		VALUES
		(:name, :email, :phone, :date, :message, :status, :reason, :created_at)`

	id, err := s.insert(ctx, q, appt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	appt.ID = id
	return nil
}

// GetAppointment returns an appointment by ID.
func (s *Store) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	var appt model.Appointment
	if err := s.get(ctx, "get appointment", &appt,
		"SELECT "+appointmentColumns+" FROM appointments WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &appt, nil
}

// ListAppointments returns appointments newest first. A non-empty status
// restricts the result to that status.
func (s *Store) ListAppointments(ctx context.Context, status string) ([]model.Appointment, error) {
	appts := []model.Appointment{}
	q := "SELECT " + appointmentColumns + " FROM appointments"
	var args []interface{}
	if status != "" {
		q += " WHERE status = ?"
		args = append(args, status)
	}
	q += " ORDER BY created_at DESC, id DESC"
	if err := s.db.SelectContext(ctx, &appts, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// UpdateAppointmentStatus sets the status and reason of an appointment. A nil
// reason clears any previous one.
func (s *Store) UpdateAppointmentStatus(ctx context.Context, id int64, status string, reason *string) error {
	return s.execOne(ctx, "update appointment status",
		"UPDATE appointments SET status = ?, reason = ? WHERE id = ?", status, reason, id)
}

// DeleteAppointment hard-deletes an appointment.
func (s *Store) DeleteAppointment(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete appointment", "DELETE FROM appointments WHERE id = ?", id)
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

const messageColumns = "id, full_name, email, message, created_at"

// CreateMessage inserts a contact message.
func (s *Store) CreateMessage(ctx context.Context, msg *model.Message) error {
	msg.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO messages (full_name, email, message, created_at)
		VALUES (:full_name, :email, :message, :created_at)`

	id, err := s.insert(ctx, q, msg)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	msg.ID = id
	return nil
}

// GetMessage returns a message by ID.
func (s *Store) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	var msg model.Message
	if err := s.get(ctx, "get message", &msg,
		"SELECT "+messageColumns+" FROM messages WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages returns messages newest first.
func (s *Store) ListMessages(ctx context.Context) ([]model.Message, error) {
	msgs := []model.Message{}
	if err := s.db.SelectContext(ctx, &msgs,
		"SELECT "+messageColumns+" FROM messages ORDER BY created_at DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// DeleteMessage hard-deletes a message.
func (s *Store) DeleteMessage(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete message", "DELETE FROM messages WHERE id = ?", id)
}

// ---------------------------------------------------------------------------
// Subscribers
// ---------------------------------------------------------------------------

// AddSubscriber inserts email unless it is already subscribed. It reports
// whether a new row was created.
func (s *Store) AddSubscriber(ctx context.Context, email string) (bool, error) {
	q := "INSERT INTO subscribers (email, subscribed_on) VALUES (?, ?) ON CONFLICT (email) DO NOTHING"
	if s.dialect == config.DriverMySQL {
		q = "INSERT IGNORE INTO subscribers (email, subscribed_on) VALUES (?, ?)"
	}
	result, err := s.db.ExecContext(ctx, s.db.Rebind(q), email, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("insert subscriber: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert subscriber rows affected: %w", err)
	}
	return n > 0, nil
}

// ListSubscribers returns subscribers newest first.
func (s *Store) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	subs := []model.Subscriber{}
	if err := s.db.SelectContext(ctx, &subs,
		"SELECT id, email, subscribed_on FROM subscribers ORDER BY subscribed_on DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return subs, nil
}
