package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"gagyebu/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustInsert(t *testing.T, repo *SQLiteRepository, userID int64, date string, typ core.TxType, amount, category string) int64 {
	t.Helper()
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	id, err := repo.Insert(context.Background(), core.Transaction{
		UserID:   userID,
		Date:     d,
		Type:     typ,
		Amount:   decimal.RequireFromString(amount),
		Category: category,
		Content:  "memo",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}

func TestSQLiteRepository_Transactions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first := mustInsert(t, repo, 1, "2025-10-05", core.Expense, "10000", "식비")
	mustInsert(t, repo, 1, "2025-10-12", core.Expense, "5000.25", "교통")
	mustInsert(t, repo, 1, "2025-10-01", core.Income, "300000", "근로 소득")
	mustInsert(t, repo, 1, "2025-11-01", core.Expense, "7", "기타")
	mustInsert(t, repo, 2, "2025-10-05", core.Expense, "999", "식비")

	month, err := repo.ListByMonth(ctx, 1, 2025, 10)
	if err != nil {
		t.Fatalf("list by month: %v", err)
	}
	if len(month) != 3 {
		t.Fatalf("expected 3 records for user 1 in october, got %d", len(month))
	}
	if month[0].Date.Day() != 1 || month[2].Date.Day() != 12 {
		t.Fatalf("expected date order, got %v", month)
	}
	if !month[2].Amount.Equal(decimal.RequireFromString("5000.25")) {
		t.Fatalf("amount not preserved exactly: %s", month[2].Amount)
	}

	year, err := repo.ListByYear(ctx, 1, 2025)
	if err != nil || len(year) != 4 {
		t.Fatalf("list by year: %d records, err=%v", len(year), err)
	}

	day, err := repo.ListByDate(ctx, 1, core.NewDate(2025, 10, 5))
	if err != nil || len(day) != 1 || day[0].ID != first {
		t.Fatalf("list by date: %v err=%v", day, err)
	}

	if _, err := repo.Delete(ctx, 2, first); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleting another user's record must report not found, got %v", err)
	}
	deleted, err := repo.Delete(ctx, 1, first)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.Category != "식비" || !deleted.Date.In(2025, 10) {
		t.Fatalf("unexpected deleted record: %+v", deleted)
	}
	if _, err := repo.Delete(ctx, 1, first); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should report not found, got %v", err)
	}
}

func TestSQLiteRepository_GoalUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	g := core.Goal{UserID: 1, Type: core.Expense, Year: 2025, Month: 10, Target: decimal.NewFromInt(20000)}
	if _, err := repo.InsertGoal(ctx, g); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := repo.InsertGoal(ctx, g); !errors.Is(err, ErrDuplicateGoal) {
		t.Fatalf("expected ErrDuplicateGoal, got %v", err)
	}

	// Different category, type or user is a different goal.
	variants := []core.Goal{g, g, g}
	variants[0].Category = "식비"
	variants[1].Type = core.Income
	variants[2].UserID = 2
	for i, v := range variants {
		if _, err := repo.InsertGoal(ctx, v); err != nil {
			t.Fatalf("variant %d: %v", i, err)
		}
	}

	goals, err := repo.ListGoals(ctx, 1, 2025, 10)
	if err != nil {
		t.Fatalf("list goals: %v", err)
	}
	if len(goals) != 3 {
		t.Fatalf("expected 3 goals for user 1, got %d", len(goals))
	}
	for _, got := range goals {
		if got.ID == 0 || got.Target.IsZero() {
			t.Fatalf("incomplete goal: %+v", got)
		}
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
}

func TestSQLiteRepository_Users(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.CreateUser(ctx, core.User{Username: "Minsu", PasswordHash: "hash-1"})
	if err != nil || id <= 0 {
		t.Fatalf("create: id=%d err=%v", id, err)
	}
	if _, err := repo.CreateUser(ctx, core.User{Username: "minsu", PasswordHash: "hash-2"}); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("usernames differing only in case must collide, got %v", err)
	}

	u, err := repo.UserByName(ctx, "MINSU")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if u.ID != id || u.Username != "Minsu" || u.PasswordHash != "hash-1" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, err := repo.UserByName(ctx, "jiyoung"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
