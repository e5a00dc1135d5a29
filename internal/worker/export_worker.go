// Package worker mirrors stored month records into an external sheet.
package worker

import (
	"context"
	"errors"
	"fmt"

	"budgetflow/internal/amqp"
	"budgetflow/internal/core"
	"budgetflow/internal/log"
	"budgetflow/internal/sheets"
	"budgetflow/internal/storage"
)

// ErrStaleRecord means the stored record is older than the event that
// announced it. The delivery is requeued until the write is visible.
var ErrStaleRecord = errors.New("stored month is older than the event")

// ExportWorker handles month.updated events.
type ExportWorker struct {
	records *storage.Records
	sheets  sheets.SummaryWriter
	logger  *log.Logger
}

func NewExportWorker(records *storage.Records, writer sheets.SummaryWriter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		records: records,
		sheets:  writer,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMonthUpdated exports the month named by msg. Cycle sentinels and
// deleted months are acknowledged without writing.
func (w *ExportWorker) HandleMonthUpdated(ctx context.Context, msg *amqp.MonthUpdatedMessage) error {
	w.logger.InfoContext(ctx, "Processing month update",
		log.FieldMonth, msg.Month,
		log.FieldVersion, msg.Version)

	m, err := core.ParseMonthKey(msg.Month)
	if err != nil {
		return err
	}
	rec, err := w.records.Month(ctx, m)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Month no longer stored, skipping export", log.FieldMonth, msg.Month)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load month %s: %w", msg.Month, err)
	}
	if rec.Version < msg.Version {
		return fmt.Errorf("%w: %s has version %d, event has %d", ErrStaleRecord, msg.Month, rec.Version, msg.Version)
	}
	return w.export(ctx, rec)
}

// ExportAll writes every stored month. It runs at startup to catch up on
// events missed while the worker was down.
func (w *ExportWorker) ExportAll(ctx context.Context) error {
	months, err := w.records.Months(ctx)
	if err != nil {
		return fmt.Errorf("list months: %w", err)
	}
	if len(months) == 0 {
		w.logger.InfoContext(ctx, "No stored months found on startup")
		return nil
	}

	successCount, errorCount, skipped := 0, 0, 0
	for _, m := range months {
		rec, err := w.records.Month(ctx, m)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to load month for startup export",
				log.FieldMonth, m.String(), log.FieldError, err.Error())
			errorCount++
			continue
		}
		if !rec.Valid() {
			skipped++
			continue
		}
		if err := w.export(ctx, rec); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export month during startup",
				log.FieldMonth, m.String(), log.FieldError, err.Error())
			errorCount++
			continue
		}
		successCount++
	}

	w.logger.InfoContext(ctx, "Startup export completed",
		"total", len(months),
		"exported", successCount,
		"skipped", skipped,
		"errors", errorCount)
	if errorCount > 0 && successCount == 0 {
		return fmt.Errorf("startup export failed for all %d months", errorCount)
	}
	return nil
}

func (w *ExportWorker) export(ctx context.Context, rec storage.MonthRecord) error {
	if !rec.Valid() {
		w.logger.InfoContext(ctx, "Month holds unresolved input, skipping export", log.FieldMonth, rec.Month)
		return nil
	}
	ref, err := w.sheets.WriteMonthSummary(ctx, SummaryOf(rec))
	if err != nil {
		return fmt.Errorf("write summary %s: %w", rec.Month, err)
	}
	w.logger.InfoContext(ctx, "Exported month summary",
		log.FieldMonth, rec.Month,
		log.FieldVersion, rec.Version,
		"sheets_ref", ref)
	return nil
}

// SummaryOf flattens a month record for export.
func SummaryOf(rec storage.MonthRecord) sheets.Summary {
	return sheets.Summary{
		Month:             rec.Month,
		Version:           rec.Version,
		TotalGrossIncome:  rec.TotalGrossIncome,
		TotalTax:          rec.TotalTax,
		TotalUsableIncome: rec.TotalUsableIncome,
		TotalExpenses:     rec.TotalExpenses,
		RemainingBalance:  rec.RemainingBalance,
		CategoryTotals:    rec.CategoryTotals,
		UpdatedAt:         rec.LastUpdated,
	}
}
