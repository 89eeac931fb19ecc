package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gagyebu/internal/amqp"
	"gagyebu/internal/core"
	"gagyebu/internal/log"
	"gagyebu/internal/services"
)

// Consumer delivers ledger events until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

// Period names one user's month.
type Period struct {
	UserID int64
	Year   int
	Month  int
}

func (p Period) String() string {
	return fmt.Sprintf("%d:%04d-%02d", p.UserID, p.Year, p.Month)
}

// ExportWorker feeds ledger change events into the export processor, which
// rewrites the affected month in every configured spreadsheet.
type ExportWorker struct {
	events    Consumer
	processor *services.ExportProcessor
	logger    *log.Logger
}

func NewExportWorker(events Consumer, processor *services.ExportProcessor, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		events:    events,
		processor: processor,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent processes a single ledger event from AMQP
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	w.logger.DebugContext(ctx, "Processing ledger event", log.NewFields().
		WithPeriod(ev.UserID, ev.Year, ev.Month).
		ToSlice()...)
	if err := w.processor.HandleEvent(ctx, ev); err != nil {
		w.logger.WarnContext(ctx, "Ledger event rejected",
			log.FieldEventKind, ev.Kind,
			log.FieldError, err.Error())
		return err
	}
	return nil
}

// Backfill exports the given months immediately, without waiting for an
// event. This recovers months whose messages were lost while the worker was
// down.
func (w *ExportWorker) Backfill(ctx context.Context, periods []Period) error {
	if len(periods) == 0 {
		return nil
	}
	w.logger.InfoContext(ctx, "Backfilling months", "count", len(periods))

	var errs []error
	synced := 0
	for _, p := range periods {
		if err := w.processor.ExportMonth(ctx, p.UserID, p.Year, p.Month); err != nil {
			w.logger.ErrorContext(ctx, "Backfill failed", log.NewFields().
				WithOperation(log.OpExport).
				WithPeriod(p.UserID, p.Year, p.Month).
				WithError(err).
				ToSlice()...)
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Backfill completed",
		"total", len(periods),
		"synced", synced,
		"errors", len(errs))
	return errors.Join(errs...)
}

// Run starts the processor and consumes events until ctx is cancelled. The
// processor is stopped, flushing what is pending, before Run returns.
func (w *ExportWorker) Run(ctx context.Context) error {
	// The loop outlives ctx so Stop can flush the months already queued.
	if err := w.processor.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start export processor: %w", err)
	}
	defer func() {
		if err := w.processor.Stop(context.WithoutCancel(ctx)); err != nil {
			w.logger.Error("Failed to stop export processor", log.FieldError, err.Error())
		}
	}()

	err := w.events.Consume(ctx, w.HandleEvent)
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return nil
	}
	return err
}

// ParsePeriods reads a comma separated list of user:YYYY-MM entries.
func ParsePeriods(s string) ([]Period, error) {
	var out []Period
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		user, ym, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("period %q: want user:YYYY-MM", part)
		}
		userID, err := strconv.ParseInt(user, 10, 64)
		if err != nil || userID <= 0 {
			return nil, fmt.Errorf("period %q: invalid user id", part)
		}
		date, err := core.ParseDate(ym + "-01")
		if err != nil {
			return nil, fmt.Errorf("period %q: invalid month", part)
		}
		out = append(out, Period{UserID: userID, Year: date.Year(), Month: date.Month()})
	}
	return out, nil
}
