package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"gagyebu/internal/amqp"
	"gagyebu/internal/cache"
	"gagyebu/internal/core"
	"gagyebu/internal/log"
	"gagyebu/internal/storage"
)

// Publisher announces ledger changes. *amqp.Client satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// LedgerService answers the rendering layer's queries from the record and
// goal stores, and validates writes before they reach them.
//
// Reads never fail: a store error is logged and the read falls back to an
// empty list or zero-filled summary. Writes return typed errors.
type LedgerService struct {
	records   storage.RecordStore
	goals     storage.GoalStore
	vocab     core.Vocabulary
	cache     cache.Cache[[]core.Transaction]
	publisher Publisher
	logger    *log.Logger

	// gen counts writes. A load only caches its result when no write
	// happened while it ran, so a list read before an invalidation never
	// lands in the cache after it.
	genMu sync.Mutex
	gen   uint64
}

type Option func(*LedgerService)

// WithCache memoizes month and year transaction lists.
func WithCache(c cache.Cache[[]core.Transaction]) Option {
	return func(s *LedgerService) { s.cache = c }
}

// WithPublisher sends a LedgerEvent after each successful write.
func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = l.WithComponent(log.ComponentLedger) }
}

func NewLedgerService(records storage.RecordStore, goals storage.GoalStore, vocab core.Vocabulary, opts ...Option) *LedgerService {
	s := &LedgerService{
		records: records,
		goals:   goals,
		vocab:   vocab,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Vocabulary returns the category lists writes are checked against.
func (s *LedgerService) Vocabulary() core.Vocabulary {
	return s.vocab
}

// Transactions lists a user's records for a month, ordered by date. This is
// the list the export collaborator writes out unmodified.
func (s *LedgerService) Transactions(ctx context.Context, userID int64, year, month int) []core.Transaction {
	return s.monthRecords(ctx, userID, year, month)
}

// TransactionsOn lists a user's records for one day.
func (s *LedgerService) TransactionsOn(ctx context.Context, userID int64, date core.Date) []core.Transaction {
	txs, err := s.records.ListByDate(ctx, userID, date)
	if err != nil {
		s.readFailed(ctx, "list day", err, userID, date.Year(), date.Month())
		return nil
	}
	return txs
}

func (s *LedgerService) MonthlySummary(ctx context.Context, userID int64, year, month int) core.Totals {
	return core.MonthlySummary(s.monthRecords(ctx, userID, year, month), year, month)
}

func (s *LedgerService) CategorySummary(ctx context.Context, userID int64, year, month int, tt core.TxType) core.CategoryTotals {
	return core.CategorySummary(s.monthRecords(ctx, userID, year, month), year, month, tt)
}

func (s *LedgerService) YearlySummary(ctx context.Context, userID int64, year int) core.YearlySeries {
	return core.YearlySummary(s.yearRecords(ctx, userID, year), year)
}

func (s *LedgerService) DailyBins(ctx context.Context, userID int64, year, month int) core.DayBins {
	return core.DailyBins(s.monthRecords(ctx, userID, year, month), year, month)
}

// Goals lists a user's goals for a month.
func (s *LedgerService) Goals(ctx context.Context, userID int64, year, month int) []core.Goal {
	goals, err := s.goals.ListGoals(ctx, userID, year, month)
	if err != nil {
		s.readFailed(ctx, "list goals", err, userID, year, month)
		return nil
	}
	return goals
}

// CheckProgress is the amount counted against g from its owner's records.
func (s *LedgerService) CheckProgress(ctx context.Context, g core.Goal) decimal.Decimal {
	return core.CheckProgress(g, s.monthRecords(ctx, g.UserID, g.Year, g.Month))
}

// AchievementRate is progress as a percentage of g's target.
func (s *LedgerService) AchievementRate(ctx context.Context, g core.Goal) decimal.Decimal {
	return core.AchievementRate(g, s.monthRecords(ctx, g.UserID, g.Year, g.Month))
}

// GoalProgress evaluates every goal of the month against one fetch of records.
func (s *LedgerService) GoalProgress(ctx context.Context, userID int64, year, month int) []core.GoalProgress {
	goals := s.Goals(ctx, userID, year, month)
	if len(goals) == 0 {
		return []core.GoalProgress{}
	}
	txs := s.monthRecords(ctx, userID, year, month)
	out := make([]core.GoalProgress, 0, len(goals))
	for _, g := range goals {
		out = append(out, core.Evaluate(g, txs))
	}
	return out
}

// Overview is everything the dashboard shows for one month.
type Overview struct {
	Year     int                   `json:"year"`
	Month    int                   `json:"month"`
	Totals   core.Totals           `json:"totals"`
	Expense  []core.CategoryAmount `json:"expense_categories"`
	Income   []core.CategoryAmount `json:"income_categories"`
	Yearly   core.YearlySeries     `json:"yearly"`
	Calendar core.DayBins          `json:"calendar"`
	Goals    []core.GoalProgress   `json:"goals"`
}

// Overview fetches the month, the year and the goals concurrently, then
// computes every summary from those lists.
func (s *LedgerService) Overview(ctx context.Context, userID int64, year, month int) Overview {
	var (
		monthTxs []core.Transaction
		yearTxs  []core.Transaction
		goals    []core.Goal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monthTxs = s.monthRecords(gctx, userID, year, month)
		return nil
	})
	g.Go(func() error {
		yearTxs = s.yearRecords(gctx, userID, year)
		return nil
	})
	g.Go(func() error {
		goals = s.Goals(gctx, userID, year, month)
		return nil
	})
	_ = g.Wait() // fetchers degrade instead of failing

	ov := Overview{
		Year:     year,
		Month:    month,
		Totals:   core.MonthlySummary(monthTxs, year, month),
		Expense:  core.CategorySummary(monthTxs, year, month, core.Expense).Sorted(),
		Income:   core.CategorySummary(monthTxs, year, month, core.Income).Sorted(),
		Yearly:   core.YearlySummary(yearTxs, year),
		Calendar: core.DailyBins(monthTxs, year, month),
		Goals:    make([]core.GoalProgress, 0, len(goals)),
	}
	for _, goal := range goals {
		ov.Goals = append(ov.Goals, core.Evaluate(goal, monthTxs))
	}
	return ov
}

// NewTransaction is unvalidated user input. Amount is the raw text typed by
// the user; a zero Date means no day was selected.
type NewTransaction struct {
	UserID   int64
	Date     core.Date
	Type     core.TxType
	Amount   string
	Category string
	Content  string
}

// AddTransaction validates in and stores it. Validation failures are
// *core.ValidationError and never reach the store.
func (s *LedgerService) AddTransaction(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	t := core.Transaction{
		UserID:   in.UserID,
		Date:     in.Date,
		Type:     in.Type,
		Category: strings.TrimSpace(in.Category),
		Content:  strings.TrimSpace(in.Content),
	}
	if t.Category == "" {
		return core.Transaction{}, &core.ValidationError{Field: "category", Err: core.ErrEmptyCategory}
	}
	if t.Content == "" {
		return core.Transaction{}, &core.ValidationError{Field: "content", Err: core.ErrEmptyContent}
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}
	}
	t.Amount = amount
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if !s.vocab.Allows(t.Type, t.Category) {
		return core.Transaction{}, &core.ValidationError{Field: "category", Err: core.ErrUnknownCategory}
	}

	id, err := s.records.Insert(ctx, t)
	if err != nil {
		s.writeFailed(ctx, log.OpCreate, err, t.UserID, t.Date.Year(), t.Date.Month())
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}
	t.ID = id

	s.logger.InfoContext(ctx, "Transaction added", log.NewFields().
		WithOperation(log.OpCreate).
		WithPeriod(t.UserID, t.Date.Year(), t.Date.Month()).
		WithRecord(string(t.Type), t.Category, t.Amount.String()).
		ToSlice()...)

	s.changed(ctx, amqp.EventTransactionAdded, t.UserID, t.Date.Year(), t.Date.Month(), id)
	return t, nil
}

// DeleteTransaction removes one of the user's records. storage.ErrNotFound is
// returned unchanged when there is no such record.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id int64) error {
	t, err := s.records.Delete(ctx, userID, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.writeFailed(ctx, log.OpDelete, err, userID, 0, 0)
		}
		return err
	}

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldUserID, userID,
		log.FieldRecordID, id)

	s.changed(ctx, amqp.EventTransactionDeleted, userID, t.Date.Year(), t.Date.Month(), id)
	return nil
}

// NewGoal is unvalidated goal input. Target is the raw text typed by the user;
// a blank or "전체" category means a whole-type goal.
type NewGoal struct {
	UserID   int64
	Type     core.TxType
	Category string
	Year     int
	Month    int
	Target   string
}

// SetGoal creates a goal. A second goal for the same user, type, category and
// month fails with storage.ErrDuplicateGoal; there is no pre-check.
func (s *LedgerService) SetGoal(ctx context.Context, in NewGoal) (core.Goal, error) {
	target, err := core.ParseAmount(in.Target)
	if err != nil {
		return core.Goal{}, &core.ValidationError{Field: "target", Err: core.ErrInvalidTarget}
	}
	g := core.Goal{
		UserID:   in.UserID,
		Type:     in.Type,
		Category: core.NormalizeGoalCategory(in.Category),
		Year:     in.Year,
		Month:    in.Month,
		Target:   target,
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	if !g.WholeType() && !s.vocab.Allows(g.Type, g.Category) {
		return core.Goal{}, &core.ValidationError{Field: "category", Err: core.ErrUnknownCategory}
	}

	id, err := s.goals.InsertGoal(ctx, g)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateGoal) {
			s.logger.WarnContext(ctx, "Duplicate goal rejected", log.NewFields().
				WithPeriod(g.UserID, g.Year, g.Month).
				WithErrorType(log.ErrorTypeConflict).
				ToSlice()...)
			return core.Goal{}, err
		}
		s.writeFailed(ctx, log.OpCreate, err, g.UserID, g.Year, g.Month)
		return core.Goal{}, fmt.Errorf("set goal: %w", err)
	}
	g.ID = id

	s.logger.InfoContext(ctx, "Goal set",
		log.FieldUserID, g.UserID,
		log.FieldYear, g.Year,
		log.FieldMonth, g.Month,
		log.FieldTxType, g.Type,
		log.FieldCategory, g.CategoryLabel(),
		log.FieldAmount, g.Target.String())

	s.changed(ctx, amqp.EventGoalSet, g.UserID, g.Year, g.Month, id)
	return g, nil
}

func monthKey(userID int64, year, month int) string {
	return fmt.Sprintf("%d:%04d-%02d", userID, year, month)
}

func yearKey(userID int64, year int) string {
	return fmt.Sprintf("%d:%04d", userID, year)
}

func (s *LedgerService) monthRecords(ctx context.Context, userID int64, year, month int) []core.Transaction {
	return s.cached(monthKey(userID, year, month), func() ([]core.Transaction, error) {
		txs, err := s.records.ListByMonth(ctx, userID, year, month)
		if err != nil {
			s.readFailed(ctx, "list month", err, userID, year, month)
		}
		return txs, err
	})
}

func (s *LedgerService) yearRecords(ctx context.Context, userID int64, year int) []core.Transaction {
	return s.cached(yearKey(userID, year), func() ([]core.Transaction, error) {
		txs, err := s.records.ListByYear(ctx, userID, year)
		if err != nil {
			s.readFailed(ctx, "list year", err, userID, year, 0)
		}
		return txs, err
	})
}

// cached returns the list under key, loading it on a miss. Failed loads are
// not cached, and neither are loads that overlapped a write.
func (s *LedgerService) cached(key string, load func() ([]core.Transaction, error)) []core.Transaction {
	if s.cache == nil {
		txs, err := load()
		if err != nil {
			return nil
		}
		return txs
	}
	if txs, ok := s.cache.Get(key); ok {
		return txs
	}

	s.genMu.Lock()
	started := s.gen
	s.genMu.Unlock()

	txs, err := load()
	if err != nil {
		return nil
	}

	s.genMu.Lock()
	if s.gen == started {
		s.cache.Set(key, txs)
	}
	s.genMu.Unlock()
	return txs
}

// changed drops cached lists for the period and publishes the event.
// Publishing is best effort; the write already succeeded.
func (s *LedgerService) changed(ctx context.Context, kind amqp.EventKind, userID int64, year, month int, id int64) {
	if s.cache != nil {
		s.genMu.Lock()
		s.gen++
		s.cache.Delete(monthKey(userID, year, month), yearKey(userID, year))
		s.genMu.Unlock()
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, amqp.NewLedgerEvent(kind, userID, year, month, id)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger event", log.NewFields().
			WithOperation(log.OpPublish).
			WithPeriod(userID, year, month).
			WithError(err).
			ToSlice()...)
	}
}

func (s *LedgerService) readFailed(ctx context.Context, what string, err error, userID int64, year, month int) {
	s.logger.WarnContext(ctx, "Store read failed, using empty result", log.NewFields().
		WithOperation(what).
		WithPeriod(userID, year, month).
		WithErrorType(log.ErrorTypeDatabase).
		WithError(err).
		ToSlice()...)
}

func (s *LedgerService) writeFailed(ctx context.Context, op string, err error, userID int64, year, month int) {
	s.logger.ErrorContext(ctx, "Store write failed", log.NewFields().
		WithOperation(op).
		WithPeriod(userID, year, month).
		WithErrorType(log.ErrorTypeDatabase).
		WithError(err).
		ToSlice()...)
}
