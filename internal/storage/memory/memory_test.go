package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"gagyebu/internal/core"
	"gagyebu/internal/storage"
)

func TestStoreInsertAndList(t *testing.T) {
	ctx := context.Background()
	s := New()

	add := func(userID int64, d core.Date, amount int64) int64 {
		t.Helper()
		id, err := s.Insert(ctx, core.Transaction{
			UserID: userID, Date: d, Type: core.Expense,
			Amount: decimal.NewFromInt(amount), Category: "식비", Content: "x",
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		return id
	}
	add(1, core.NewDate(2025, 10, 20), 1)
	id := add(1, core.NewDate(2025, 10, 3), 2)
	add(2, core.NewDate(2025, 10, 3), 3)
	add(1, core.NewDate(2025, 9, 3), 4)

	month, _ := s.ListByMonth(ctx, 1, 2025, 10)
	if len(month) != 2 || month[0].ID != id {
		t.Fatalf("unexpected month list: %+v", month)
	}
	day, _ := s.ListByDate(ctx, 1, core.NewDate(2025, 10, 3))
	if len(day) != 1 {
		t.Fatalf("unexpected day list: %+v", day)
	}
	year, _ := s.ListByYear(ctx, 1, 2025)
	if len(year) != 3 {
		t.Fatalf("unexpected year list: %+v", year)
	}

	if _, err := s.Delete(ctx, 2, id); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for wrong user, got %v", err)
	}
	if _, err := s.Delete(ctx, 1, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if month, _ = s.ListByMonth(ctx, 1, 2025, 10); len(month) != 1 {
		t.Fatalf("expected 1 record after delete, got %d", len(month))
	}
}

func TestStoreRejectsInvalidTransaction(t *testing.T) {
	_, err := New().Insert(context.Background(), core.Transaction{UserID: 1})
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStoreGoalUniquenessUnderConcurrency(t *testing.T) {
	s := New()
	g := core.Goal{UserID: 1, Type: core.Expense, Year: 2025, Month: 10, Target: decimal.NewFromInt(1)}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, dupes int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.InsertGoal(context.Background(), g)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, storage.ErrDuplicateGoal):
				dupes++
			}
		}()
	}
	wg.Wait()
	if ok != 1 || dupes != 19 {
		t.Fatalf("expected 1 success and 19 duplicates, got %d/%d", ok, dupes)
	}
	goals, _ := s.ListGoals(context.Background(), 1, 2025, 10)
	if len(goals) != 1 {
		t.Fatalf("expected one stored goal, got %d", len(goals))
	}
}

func TestStoreUsers(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, err := s.CreateUser(ctx, core.User{Username: "Jiyoung", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateUser(ctx, core.User{Username: "JIYOUNG"}); !errors.Is(err, storage.ErrDuplicateUser) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	u, err := s.UserByName(ctx, "jiyoung")
	if err != nil || u.ID != id || u.Username != "Jiyoung" {
		t.Fatalf("lookup: %+v %v", u, err)
	}
	if _, err := s.UserByName(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
