package storage

import (
	"context"
	"errors"

	"gagyebu/internal/core"
)

var (
	// ErrDuplicateGoal is returned when a goal already exists for the same
	// user, type, category and period.
	ErrDuplicateGoal = errors.New("goal already exists for this period")
	ErrNotFound      = errors.New("record not found")
	// ErrDuplicateUser is returned when the username is taken, ignoring case.
	ErrDuplicateUser = errors.New("username already taken")
)

// Ports for the persistence collaborators. Implementations filter by user;
// the aggregation layer never sees another user's records.
type (
	RecordStore interface {
		ListByMonth(ctx context.Context, userID int64, year, month int) ([]core.Transaction, error)
		ListByYear(ctx context.Context, userID int64, year int) ([]core.Transaction, error)
		ListByDate(ctx context.Context, userID int64, date core.Date) ([]core.Transaction, error)
		// Insert stores t and returns the assigned id.
		Insert(ctx context.Context, t core.Transaction) (int64, error)
		// Delete removes the user's record and returns it, or ErrNotFound.
		Delete(ctx context.Context, userID, id int64) (core.Transaction, error)
	}

	GoalStore interface {
		// InsertGoal stores g and returns the assigned id, or ErrDuplicateGoal.
		InsertGoal(ctx context.Context, g core.Goal) (int64, error)
		ListGoals(ctx context.Context, userID int64, year, month int) ([]core.Goal, error)
	}

	UserStore interface {
		// CreateUser stores u and returns the assigned id, or ErrDuplicateUser.
		CreateUser(ctx context.Context, u core.User) (int64, error)
		// UserByName looks a user up ignoring case, or returns ErrNotFound.
		UserByName(ctx context.Context, username string) (core.User, error)
	}
)
