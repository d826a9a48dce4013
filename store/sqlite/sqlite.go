/*
Package sqlite provides the SQLite-backed duty.Repository.

PURPOSE:
  Persists the roster one row per user. The attendance ledger and monthly
  history are stored as JSON columns, preserving the whole-record-per-user
  update semantics of the flat document this system replaces, while the
  version column closes the lost-update race: every UPDATE is guarded by
  the version the caller read.

KEY TABLE:
  users:
    id            TEXT PRIMARY KEY
    username      TEXT UNIQUE
    salary_rate   TEXT        decimal, exact
    career_total  TEXT        decimal, exact
    attendance    TEXT        JSON array of shift records
    monthly       TEXT        JSON array of monthly entries
    version       INTEGER     optimistic concurrency token

CONCURRENCY:
  UPDATE ... WHERE id = ? AND version = ?; zero rows affected means either
  a concurrent writer won (ErrConcurrentModification) or the record is gone
  (ErrUserNotFound). A sync.RWMutex additionally serializes access to the
  single SQLite handle.

WAL MODE:
  Opened with WAL so readers don't block during writes and crash recovery
  is cheap.

USAGE:
  store, err := sqlite.New("./data/dutyclock.db")   // ":memory:" for tests
  defer store.Close()

SEE ALSO:
  - duty/repository.go: Interface definition and contract
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/lssd/dutyclock/duty"
)

// Store implements duty.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ duty.Repository = (*Store)(nil)

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		display_name  TEXT NOT NULL,
		position      TEXT NOT NULL DEFAULT '',
		rank_title    TEXT NOT NULL DEFAULT '',
		avatar        TEXT NOT NULL DEFAULT '',
		salary_rate   TEXT NOT NULL,
		career_total  TEXT NOT NULL DEFAULT '0',
		attendance    TEXT NOT NULL DEFAULT '[]',
		monthly       TEXT NOT NULL DEFAULT '[]',
		version       INTEGER NOT NULL DEFAULT 1,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REPOSITORY IMPLEMENTATION
// =============================================================================

const userColumns = `id, username, password_hash, role, display_name, position,
	rank_title, avatar, salary_rate, career_total, attendance, monthly, version`

func (s *Store) GetUser(ctx context.Context, id string) (*duty.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*duty.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]*duty.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*duty.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, u *duty.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attendance, monthly, err := marshalLedgers(u)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	u.Version = 1

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, display_name,
			position, rank_title, avatar, salary_rate, career_total, attendance,
			monthly, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, string(u.Role), u.DisplayName,
		u.Position, u.Rank, u.Avatar, u.SalaryRate.String(),
		u.CareerTotal.String(), attendance, monthly, u.Version, now, now)
	return err
}

func (s *Store) UpdateUser(ctx context.Context, u *duty.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attendance, monthly, err := marshalLedgers(u)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = ?, password_hash = ?, role = ?, display_name = ?,
			position = ?, rank_title = ?, avatar = ?, salary_rate = ?,
			career_total = ?, attendance = ?, monthly = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		u.Username, u.PasswordHash, string(u.Role), u.DisplayName,
		u.Position, u.Rank, u.Avatar, u.SalaryRate.String(),
		u.CareerTotal.String(), attendance, monthly,
		time.Now().UTC().Format(time.RFC3339),
		u.ID, u.Version)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either a concurrent writer bumped the version or the row is gone.
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM users WHERE id = ?`, u.ID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return duty.ErrUserNotFound
		}
		return duty.ErrConcurrentModification
	}

	u.Version++
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return duty.ErrUserNotFound
	}
	return nil
}

// =============================================================================
// ROW MAPPING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*duty.User, error) {
	var (
		u          duty.User
		role       string
		rate       string
		career     string
		attendance string
		monthly    string
	)

	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.DisplayName,
		&u.Position, &u.Rank, &u.Avatar, &rate, &career, &attendance,
		&monthly, &u.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, duty.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	u.Role = duty.Role(role)
	if u.SalaryRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("corrupt salary_rate for user %s: %w", u.ID, err)
	}
	if u.CareerTotal, err = decimal.NewFromString(career); err != nil {
		return nil, fmt.Errorf("corrupt career_total for user %s: %w", u.ID, err)
	}
	if err := json.Unmarshal([]byte(attendance), &u.Attendance); err != nil {
		return nil, fmt.Errorf("corrupt attendance for user %s: %w", u.ID, err)
	}
	if err := json.Unmarshal([]byte(monthly), &u.MonthlyHistory); err != nil {
		return nil, fmt.Errorf("corrupt monthly history for user %s: %w", u.ID, err)
	}
	return &u, nil
}

func marshalLedgers(u *duty.User) (attendance, monthly string, err error) {
	a, err := json.Marshal(u.Attendance)
	if err != nil {
		return "", "", err
	}
	m, err := json.Marshal(u.MonthlyHistory)
	if err != nil {
		return "", "", err
	}
	return string(a), string(m), nil
}
