package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"travelx/internal/amqp"
	"travelx/internal/sheets"
	"travelx/internal/store"
)

// SyncWorker mirrors stored payments and expenses into the Sheets ledger.
type SyncWorker struct {
	records  store.RecordReader
	exporter sheets.LedgerExporter
}

func NewSyncWorker(records store.RecordReader, exporter sheets.LedgerExporter) *SyncWorker {
	return &SyncWorker{
		records:  records,
		exporter: exporter,
	}
}

// HandleRecordSync processes a single record sync message from AMQP.
// Records deleted before the message arrived are skipped so the message is
// acked instead of redelivered forever.
func (w *SyncWorker) HandleRecordSync(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"kind", msg.Kind,
		"id", msg.ID,
		"timestamp", msg.Timestamp)

	var (
		ref string
		err error
	)
	switch msg.Kind {
	case amqp.KindPayment:
		ref, err = w.syncPayment(ctx, msg)
	case amqp.KindExpense:
		ref, err = w.syncExpense(ctx, msg)
	default:
		return fmt.Errorf("unknown record kind %q", msg.Kind)
	}

	if errors.Is(err, store.ErrNotFound) {
		slog.WarnContext(ctx, "Record no longer exists, skipping", "kind", msg.Kind, "id", msg.ID)
		return nil
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Successfully synced record",
		"kind", msg.Kind,
		"id", msg.ID,
		"sheets_ref", ref)
	return nil
}

func (w *SyncWorker) syncPayment(ctx context.Context, msg *amqp.RecordSyncMessage) (string, error) {
	p, err := w.records.GetPayment(ctx, msg.ID)
	if err != nil {
		return "", fmt.Errorf("get payment from storage: %w", err)
	}
	c, err := w.records.GetClient(ctx, p.ClientID)
	if err != nil {
		return "", fmt.Errorf("get client from storage: %w", err)
	}
	ref, err := w.exporter.AppendPayment(ctx, p, c)
	if err != nil {
		return "", fmt.Errorf("append payment to sheets: %w", err)
	}
	return ref, nil
}

func (w *SyncWorker) syncExpense(ctx context.Context, msg *amqp.RecordSyncMessage) (string, error) {
	e, err := w.records.GetExpense(ctx, msg.ID)
	if err != nil {
		return "", fmt.Errorf("get expense from storage: %w", err)
	}
	ref, err := w.exporter.AppendExpense(ctx, e)
	if err != nil {
		return "", fmt.Errorf("append expense to sheets: %w", err)
	}
	return ref, nil
}
