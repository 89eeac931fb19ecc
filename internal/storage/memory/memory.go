// Package memory is an in-process RecordStore, GoalStore and UserStore used for local
// runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"gagyebu/internal/core"
	"gagyebu/internal/storage"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Transaction
	goals  []core.Goal
	users  map[string]core.User // keyed by lower-cased username
}

var (
	_ storage.RecordStore = (*Store)(nil)
	_ storage.GoalStore   = (*Store)(nil)
	_ storage.UserStore   = (*Store)(nil)
)

func New() *Store {
	return &Store{users: make(map[string]core.User)}
}

// Insert stores the transaction under a fresh id.
func (s *Store) Insert(_ context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	s.items = append(s.items, t)
	return t.ID, nil
}

func (s *Store) ListByMonth(_ context.Context, userID int64, year, month int) ([]core.Transaction, error) {
	return s.filter(func(t core.Transaction) bool {
		return t.UserID == userID && t.Date.In(year, month)
	}), nil
}

func (s *Store) ListByYear(_ context.Context, userID int64, year int) ([]core.Transaction, error) {
	return s.filter(func(t core.Transaction) bool {
		return t.UserID == userID && t.Date.Year() == year
	}), nil
}

func (s *Store) ListByDate(_ context.Context, userID int64, date core.Date) ([]core.Transaction, error) {
	return s.filter(func(t core.Transaction) bool {
		return t.UserID == userID && t.Date.Equal(date.Time)
	}), nil
}

func (s *Store) Delete(_ context.Context, userID, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.items {
		if t.ID == id && t.UserID == userID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return t, nil
		}
	}
	return core.Transaction{}, storage.ErrNotFound
}

// InsertGoal checks and inserts under one lock, so concurrent duplicates
// cannot both succeed.
func (s *Store) InsertGoal(_ context.Context, g core.Goal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.goals {
		if existing.UserID == g.UserID && existing.Type == g.Type && existing.Category == g.Category &&
			existing.Year == g.Year && existing.Month == g.Month {
			return 0, storage.ErrDuplicateGoal
		}
	}
	s.nextID++
	g.ID = s.nextID
	s.goals = append(s.goals, g)
	return g.ID, nil
}

func (s *Store) ListGoals(_ context.Context, userID int64, year, month int) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Goal
	for _, g := range s.goals {
		if g.UserID == userID && g.Year == year && g.Month == month {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (int64, error) {
	key := strings.ToLower(u.Username)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[key]; ok {
		return 0, storage.ErrDuplicateUser
	}
	s.nextID++
	u.ID = s.nextID
	s.users[key] = u
	return u.ID, nil
}

func (s *Store) UserByName(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(username)]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return u, nil
}

// filter returns matches in insertion order, stable-sorted by date.
func (s *Store) filter(keep func(core.Transaction) bool) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.items {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out
}
