package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"gagyebu/internal/core"
)

// SQLiteRepository implements RecordStore, GoalStore and UserStore on a single pooled
// database handle that lives as long as the process.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ RecordStore = (*SQLiteRepository)(nil)
	_ GoalStore   = (*SQLiteRepository)(nil)
	_ UserStore   = (*SQLiteRepository)(nil)
)

const transactionColumns = `id, user_id, date, type, amount, category, content`

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations before the pool is opened
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Insert implements RecordStore
func (r *SQLiteRepository) Insert(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, date, year, month, day, type, amount, category, content)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Date.String(), t.Date.Year(), t.Date.Month(), t.Date.Day(),
		string(t.Type), t.Amount.String(), t.Category, t.Content,
	)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"user_id", t.UserID,
		"date", t.Date.String(),
		"type", t.Type,
		"amount", t.Amount.String())

	return id, nil
}

// ListByMonth implements RecordStore
func (r *SQLiteRepository) ListByMonth(ctx context.Context, userID int64, year, month int) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = ? AND year = ? AND month = ?
		 ORDER BY date ASC, id ASC`,
		userID, year, month)
}

// ListByYear implements RecordStore
func (r *SQLiteRepository) ListByYear(ctx context.Context, userID int64, year int) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = ? AND year = ?
		 ORDER BY date ASC, id ASC`,
		userID, year)
}

// ListByDate implements RecordStore
func (r *SQLiteRepository) ListByDate(ctx context.Context, userID int64, date core.Date) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = ? AND date = ?
		 ORDER BY id ASC`,
		userID, date.String())
}

// Delete implements RecordStore
func (r *SQLiteRepository) Delete(ctx context.Context, userID, id int64) (core.Transaction, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin delete: %w", err)
	}
	defer dbTx.Rollback()

	row := dbTx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load transaction %d: %w", id, err)
	}

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if err := dbTx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit delete: %w", err)
	}
	return t, nil
}

// InsertGoal implements GoalStore. Uniqueness is enforced by the
// ux_goals_period index, so there is no check-then-insert window.
func (r *SQLiteRepository) InsertGoal(ctx context.Context, g core.Goal) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (user_id, type, category, year, month, target_amount)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		g.UserID, string(g.Type), g.Category, g.Year, g.Month, g.Target.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateGoal
		}
		return 0, fmt.Errorf("insert goal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("goal id: %w", err)
	}
	return id, nil
}

// ListGoals implements GoalStore
func (r *SQLiteRepository) ListGoals(ctx context.Context, userID int64, year, month int) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, category, year, month, target_amount FROM goals
		 WHERE user_id = ? AND year = ? AND month = ?
		 ORDER BY type DESC, category ASC, id ASC`,
		userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		var (
			g      core.Goal
			typ    string
			target string
		)
		if err := rows.Scan(&g.ID, &g.UserID, &typ, &g.Category, &g.Year, &g.Month, &target); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.Type = core.TxType(typ)
		if g.Target, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("goal %d target %q: %w", g.ID, target, err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// CreateUser implements UserStore. ux_users_username is NOCASE, so "Minsu"
// and "minsu" collide.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		u.Username, u.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateUser
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user id: %w", err)
	}
	return id, nil
}

// UserByName implements UserStore
func (r *SQLiteRepository) UserByName(ctx context.Context, username string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanTransaction turns a row into a Transaction. The stored date string is
// parsed here, once, into its structured form.
func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t      core.Transaction
		date   string
		typ    string
		amount string
	)
	if err := s.Scan(&t.ID, &t.UserID, &date, &typ, &amount, &t.Category, &t.Content); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	t.Date = d
	t.Type = core.TxType(typ)
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d amount %q: %w", t.ID, amount, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE"))
	}
	return false
}
