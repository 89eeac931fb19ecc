package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gagyebu/internal/amqp"
	"gagyebu/internal/core"
	"gagyebu/internal/log"
	"gagyebu/internal/sheets"
	"gagyebu/internal/storage"
)

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// FlushInterval is how often pending months are exported (default: 5s)
	FlushInterval time.Duration

	// BatchSize is the max number of months exported per flush (default: 10)
	BatchSize int

	// MaxRetries is how many failed exports a month gets before it is dropped (default: 3)
	MaxRetries int
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		FlushInterval: 5 * time.Second,
		BatchSize:     10,
		MaxRetries:    3,
	}
}

type periodKey struct {
	userID      int64
	year, month int
}

// ExportProcessor re-exports a user's month after it changes. Events for the
// same month that arrive between flushes collapse into one export.
type ExportProcessor struct {
	records   storage.RecordStore
	exporters []sheets.MonthExporter
	config    ExportProcessorConfig
	logger    *log.Logger

	pendingMu sync.Mutex
	pending   map[periodKey]int // failed attempts so far
	order     []periodKey

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportProcessor(records storage.RecordStore, config ExportProcessorConfig, logger *log.Logger, exporters ...sheets.MonthExporter) *ExportProcessor {
	if logger == nil {
		logger = log.Discard()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultExportProcessorConfig().BatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultExportProcessorConfig().FlushInterval
	}
	return &ExportProcessor{
		records:   records,
		exporters: exporters,
		config:    config,
		logger:    logger.WithComponent(log.ComponentExport),
		pending:   make(map[periodKey]int),
	}
}

// HandleEvent queues the event's month for export. It has the signature
// amqp.Client.Consume expects.
func (p *ExportProcessor) HandleEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	if ev.UserID <= 0 || !core.ValidPeriod(ev.Year, ev.Month) {
		return fmt.Errorf("event %s: invalid period %d-%d for user %d", ev.Kind, ev.Year, ev.Month, ev.UserID)
	}
	p.enqueue(periodKey{ev.UserID, ev.Year, ev.Month}, 0)
	return nil
}

func (p *ExportProcessor) enqueue(k periodKey, attempts int) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	if _, ok := p.pending[k]; ok {
		return
	}
	p.pending[k] = attempts
	p.order = append(p.order, k)
}

// Pending returns the number of months waiting for export.
func (p *ExportProcessor) Pending() int {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return len(p.order)
}

func (p *ExportProcessor) takeBatch() (map[periodKey]int, []periodKey) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	n := min(len(p.order), p.config.BatchSize)
	batch := p.order[:n:n]
	p.order = p.order[n:]
	attempts := make(map[periodKey]int, n)
	for _, k := range batch {
		attempts[k] = p.pending[k]
		delete(p.pending, k)
	}
	return attempts, batch
}

// Flush exports up to BatchSize pending months and returns how many
// succeeded. Failed months are requeued until MaxRetries is reached.
func (p *ExportProcessor) Flush(ctx context.Context) int {
	attempts, batch := p.takeBatch()
	done := 0
	for _, k := range batch {
		if ctx.Err() != nil {
			p.enqueue(k, attempts[k])
			continue
		}
		err := p.ExportMonth(ctx, k.userID, k.year, k.month)
		if err == nil {
			done++
			continue
		}
		tries := attempts[k] + 1
		fields := log.NewFields().
			WithOperation(log.OpExport).
			WithPeriod(k.userID, k.year, k.month).
			WithError(err)
		fields["attempt"] = tries
		if tries >= p.config.MaxRetries {
			p.logger.ErrorContext(ctx, "Export failed, giving up", fields.ToSlice()...)
			continue
		}
		p.logger.WarnContext(ctx, "Export failed, will retry", fields.ToSlice()...)
		p.enqueue(k, tries)
	}
	return done
}

// Drain flushes until nothing is pending or ctx ends. Every round exports a
// month or spends one of its retries, so months that keep failing are dropped
// after MaxRetries rounds.
func (p *ExportProcessor) Drain(ctx context.Context) int {
	done := 0
	for p.Pending() > 0 && ctx.Err() == nil {
		done += p.Flush(ctx)
	}
	return done
}

// ExportMonth writes the month to every exporter. All exporters are tried
// even when one fails.
func (p *ExportProcessor) ExportMonth(ctx context.Context, userID int64, year, month int) error {
	txs, err := p.records.ListByMonth(ctx, userID, year, month)
	if err != nil {
		return fmt.Errorf("load month: %w", err)
	}
	var errs []error
	for _, ex := range p.exporters {
		if err := ex.ExportMonth(ctx, userID, year, month, txs); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	p.logger.InfoContext(ctx, "Month exported", log.NewFields().
		WithOperation(log.OpExport).
		WithPeriod(userID, year, month).
		ToSlice()...)
	return nil
}

// Start begins the flush loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Export processor started",
		"flush_interval", p.config.FlushInterval,
		"batch_size", p.config.BatchSize,
		"exporters", len(p.exporters))
	return nil
}

// Stop drains every pending month, ends the loop and waits for it.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			p.Drain(context.WithoutCancel(ctx))
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}
