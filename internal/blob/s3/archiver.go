package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/makwansoran/futrledger/internal/domain"
)

// Narrow store interfaces for the archiver: it only needs the time-ranged
// read each export calls, not the full store surface.

// OrderArchiveStore provides read access to the order log for archival.
type OrderArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Order, error)
}

// DepositArchiveStore provides read access to credited deposits for archival.
type DepositArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Deposit, error)
}

// TransactionArchiveStore provides read access to outbound transactions for
// archival.
type TransactionArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error)
}

// Archiver implements domain.Archiver by exporting aged ledger records as CSV
// statements to object storage. Every export is read back and size-checked
// before it is recorded in the audit log.
//
// Deletion of exported rows from the primary store is intentionally NOT done
// here; that is a separate, explicit step after the export is verified.
type Archiver struct {
	writer   domain.BlobWriter
	reader   domain.BlobReader
	orders   OrderArchiveStore
	deposits DepositArchiveStore
	txns     TransactionArchiveStore
	audit    domain.AuditStore
	logger   *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	orders OrderArchiveStore,
	deposits DepositArchiveStore,
	txns TransactionArchiveStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer:   writer,
		reader:   reader,
		orders:   orders,
		deposits: deposits,
		txns:     txns,
		audit:    audit,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveBefore exports every order, deposit, and transaction recorded before
// the cutoff. Each kind goes to its own monthly-partitioned CSV object.
func (a *Archiver) ArchiveBefore(ctx context.Context, cutoff time.Time) error {
	if err := a.archiveOrders(ctx, cutoff); err != nil {
		return err
	}
	if err := a.archiveDeposits(ctx, cutoff); err != nil {
		return err
	}
	if err := a.archiveTransactions(ctx, cutoff); err != nil {
		return err
	}

	keys, err := a.reader.List(ctx, "archive/")
	if err != nil {
		return fmt.Errorf("s3blob: list archive: %w", err)
	}
	a.logger.InfoContext(ctx, "archive run complete",
		slog.Time("cutoff", cutoff),
		slog.Int("objects", len(keys)),
	)
	return nil
}

func (a *Archiver) archiveOrders(ctx context.Context, before time.Time) error {
	orders, err := a.orders.ListBefore(ctx, before)
	if err != nil {
		return fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(orders) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, []string{
			o.ID, string(o.Identity), o.ContractID, string(o.Side),
			o.AmountUSD.String(), o.ContractsDelta.String(), o.PriceAtFill.String(),
			o.CreatedAt.Format(time.RFC3339),
		})
	}

	header := []string{"id", "identity", "contract_id", "side", "amount_usd", "contracts_delta", "price_at_fill", "created_at"}
	return a.upload(ctx, "orders", before, header, rows)
}

func (a *Archiver) archiveDeposits(ctx context.Context, before time.Time) error {
	deposits, err := a.deposits.ListBefore(ctx, before)
	if err != nil {
		return fmt.Errorf("s3blob: archive deposits query: %w", err)
	}
	if len(deposits) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(deposits))
	for _, dep := range deposits {
		rows = append(rows, []string{
			string(dep.Identity), dep.TxHash, string(dep.Asset),
			dep.Amount.String(), dep.AmountUSD.String(),
			strconv.FormatUint(dep.BlockNumber, 10),
			dep.Timestamp.Format(time.RFC3339),
		})
	}

	header := []string{"identity", "tx_hash", "asset", "amount", "amount_usd", "block_number", "timestamp"}
	return a.upload(ctx, "deposits", before, header, rows)
}

func (a *Archiver) archiveTransactions(ctx context.Context, before time.Time) error {
	txns, err := a.txns.ListBefore(ctx, before)
	if err != nil {
		return fmt.Errorf("s3blob: archive transactions query: %w", err)
	}
	if len(txns) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, []string{
			t.ID, string(t.Identity), string(t.Type), string(t.Asset),
			t.AmountUSD.String(), t.AmountCrypto.String(),
			t.FromAddress, t.ToAddress, t.TxHash, string(t.Status),
			t.CreatedAt.Format(time.RFC3339),
		})
	}

	header := []string{"id", "identity", "tx_type", "asset", "amount_usd", "amount_crypto", "from_address", "to_address", "tx_hash", "status", "created_at"}
	return a.upload(ctx, "transactions", before, header, rows)
}

// upload writes one CSV object, reads it back to verify the stored size,
// and records the export in the audit log. The audit row is the signal that
// exported rows may later be purged, so it must not be written for an
// export that did not land intact.
func (a *Archiver) upload(ctx context.Context, kind string, before time.Time, header []string, rows [][]string) error {
	buf, err := marshalCSV(header, rows)
	if err != nil {
		return fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := archivePath(kind, before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "text/csv"); err != nil {
		return fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}
	if err := a.verify(ctx, path, int64(len(buf))); err != nil {
		return fmt.Errorf("s3blob: archive %s: %w", kind, err)
	}

	if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
		"path":   path,
		"count":  len(rows),
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
	}

	a.logger.InfoContext(ctx, "archive exported",
		slog.String("kind", kind),
		slog.String("path", path),
		slog.Int("count", len(rows)),
	)
	return nil
}

// verify reads the object back and compares its size against what was
// uploaded.
func (a *Archiver) verify(ctx context.Context, path string, want int64) error {
	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	defer body.Close()

	got, err := io.Copy(io.Discard, body)
	if err != nil {
		return fmt.Errorf("verify %s: read back: %w", path, err)
	}
	if got != want {
		return fmt.Errorf("verify %s: stored %d bytes, expected %d", path, got, want)
	}
	return nil
}

// archivePath builds the object key, partitioned by the cutoff's year-month:
//
//	archive/orders/2026-08.csv
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.csv", kind, before.Format("2006-01"))
}

func marshalCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
