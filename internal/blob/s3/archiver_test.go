package s3blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makwansoran/futrledger/internal/domain"
	"github.com/makwansoran/futrledger/internal/store/memory"
)

// fakeBlobStore backs both the writer and reader side of the archiver.
type fakeBlobStore struct {
	objects map[string]string
	types   map[string]string

	// truncate drops the last byte of each stored object, simulating an
	// upload that did not land intact.
	truncate bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string]string{}, types: map[string]string{}}
}

func (s *fakeBlobStore) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if s.truncate && len(body) > 0 {
		body = body[:len(body)-1]
	}
	s.objects[path] = string(body)
	s.types[path] = contentType
	return nil
}

func (s *fakeBlobStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	body, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (s *fakeBlobStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func TestArchiver_ExportsAgedRecords(t *testing.T) {
	ctx := context.Background()
	st := memory.NewLedger().Stores()
	blobs := newFakeBlobStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	old := cutoff.AddDate(0, -2, 0)
	recent := cutoff.AddDate(0, 1, 0)

	require.NoError(t, st.Orders.Append(ctx, domain.Order{
		ID: "ord-old", Identity: "a@x.com", ContractID: "c1",
		Side: domain.OrderSideBuy, AmountUSD: decimal.NewFromInt(100),
		ContractsDelta: decimal.NewFromInt(100), PriceAtFill: decimal.NewFromInt(1),
		CreatedAt: old,
	}))
	require.NoError(t, st.Orders.Append(ctx, domain.Order{
		ID: "ord-new", Identity: "a@x.com", ContractID: "c1",
		Side: domain.OrderSideBuy, AmountUSD: decimal.NewFromInt(10),
		ContractsDelta: decimal.NewFromInt(10), PriceAtFill: decimal.NewFromInt(1),
		CreatedAt: recent,
	}))
	require.NoError(t, st.Deposits.Append(ctx, domain.Deposit{
		Identity: "a@x.com", TxHash: "0xdep", Asset: domain.AssetETH,
		Amount: decimal.NewFromInt(1), AmountUSD: decimal.NewFromInt(3000),
		BlockNumber: 42, Timestamp: old,
	}))
	require.NoError(t, st.Transactions.Create(ctx, domain.Transaction{
		ID: "txn-old", Identity: "a@x.com", Type: domain.TransactionWithdrawal,
		Asset: domain.AssetETH, AmountUSD: decimal.NewFromInt(300),
		AmountCrypto: decimal.RequireFromString("0.1"),
		FromAddress:  "0xfrom", ToAddress: "0xto", TxHash: "0xw",
		Status: domain.TxStatusConfirmed, CreatedAt: old,
	}))

	a := NewArchiver(blobs, blobs, st.Orders, st.Deposits, st.Transactions, st.Audit, logger)
	require.NoError(t, a.ArchiveBefore(ctx, cutoff))

	require.Len(t, blobs.objects, 3)

	orders := blobs.objects["archive/orders/2026-08.csv"]
	assert.Contains(t, orders, "id,identity,contract_id,side")
	assert.Contains(t, orders, "ord-old")
	assert.NotContains(t, orders, "ord-new")
	assert.Equal(t, "text/csv", blobs.types["archive/orders/2026-08.csv"])

	deposits := blobs.objects["archive/deposits/2026-08.csv"]
	assert.Contains(t, deposits, "0xdep")
	assert.Contains(t, deposits, "3000")

	txns := blobs.objects["archive/transactions/2026-08.csv"]
	assert.Contains(t, txns, "txn-old")
	assert.Equal(t, 2, strings.Count(txns, "\n")) // header line + one row
}

func TestArchiver_SkipsEmptyExports(t *testing.T) {
	ctx := context.Background()
	st := memory.NewLedger().Stores()
	blobs := newFakeBlobStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := NewArchiver(blobs, blobs, st.Orders, st.Deposits, st.Transactions, st.Audit, logger)
	require.NoError(t, a.ArchiveBefore(ctx, time.Now()))
	assert.Empty(t, blobs.objects)
}

func TestArchiver_FailsWhenReadBackMismatches(t *testing.T) {
	ctx := context.Background()
	st := memory.NewLedger().Stores()
	blobs := newFakeBlobStore()
	blobs.truncate = true
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.Orders.Append(ctx, domain.Order{
		ID: "ord-old", Identity: "a@x.com", ContractID: "c1",
		Side: domain.OrderSideBuy, AmountUSD: decimal.NewFromInt(100),
		ContractsDelta: decimal.NewFromInt(100), PriceAtFill: decimal.NewFromInt(1),
		CreatedAt: cutoff.AddDate(0, -1, 0),
	}))

	a := NewArchiver(blobs, blobs, st.Orders, st.Deposits, st.Transactions, st.Audit, logger)
	err := a.ArchiveBefore(ctx, cutoff)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify")

	// The export did not verify, so nothing may reach the audit log.
	entries, listErr := st.Audit.List(ctx, domain.ListOpts{})
	require.NoError(t, listErr)
	assert.Empty(t, entries)
}
