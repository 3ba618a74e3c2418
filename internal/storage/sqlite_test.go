package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/model"
	"github.com/anthonydavila469-creator/billdock/internal/service"
)

// Helper function to create migrated test storage.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)

	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func testExtraction(id, emailID string) *model.BillExtraction {
	amount := decimal.RequireFromString("420.13")
	return &model.BillExtraction{
		ID:         id,
		EmailID:    emailID,
		UserID:     "user-1",
		VendorName: "Chase",
		VendorKey:  "chase",
		Category:   "credit_card",
		AmountDue:  &amount,
		DueDate:    "2026-09-25",
		Currency:   "USD",
		Reason:     "Statement with balance due.",
		Decision:   model.DecisionBill,
		Route:      model.RouteNeedsReview,
		Status:     model.StatusNeedsReview,
		Evidence: model.Evidence{
			BillSignals: []string{"New Balance: $420.13"},
		},
		Confidence: 0.75,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndGetExtraction(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	want := testExtraction("ext-1", "email-1")
	require.NoError(t, store.SaveExtraction(ctx, want))

	got, err := store.GetExtraction(ctx, "ext-1")
	require.NoError(t, err)

	assert.Equal(t, want.EmailID, got.EmailID)
	assert.Equal(t, want.VendorName, got.VendorName)
	assert.Equal(t, model.RouteNeedsReview, got.Route)
	assert.Equal(t, model.StatusNeedsReview, got.Status)
	require.NotNil(t, got.AmountDue)
	assert.True(t, want.AmountDue.Equal(*got.AmountDue))
	assert.Equal(t, want.Evidence.BillSignals, got.Evidence.BillSignals)
	assert.InDelta(t, 0.75, got.Confidence, 0.0001)
}

func TestGetExtractionNotFound(t *testing.T) {
	store := createTestStorage(t)

	_, err := store.GetExtraction(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetExtractionByEmailID(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveExtraction(ctx, testExtraction("ext-1", "email-1")))

	got, err := store.GetExtractionByEmailID(ctx, "user-1", "email-1")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", got.ID)

	_, err = store.GetExtractionByEmailID(ctx, "user-2", "email-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveExtractionValidation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	err := store.SaveExtraction(ctx, nil)
	assert.Error(t, err)

	bad := testExtraction("ext-1", "email-1")
	bad.Confidence = 1.5
	assert.Error(t, store.SaveExtraction(ctx, bad))

	bad = testExtraction("ext-2", "email-2")
	bad.DueDate = "02/14/2026"
	assert.Error(t, store.SaveExtraction(ctx, bad))
}

func TestGetExtractionsFilter(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	first := testExtraction("ext-1", "email-1")
	require.NoError(t, store.SaveExtraction(ctx, first))

	second := testExtraction("ext-2", "email-2")
	second.Route = model.RouteAutoAccept
	second.Status = model.StatusAutoAccepted
	require.NoError(t, store.SaveExtraction(ctx, second))

	status := model.StatusAutoAccepted
	got, err := store.GetExtractions(ctx, "user-1", service.ExtractionFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ext-2", got[0].ID)

	got, err = store.GetExtractions(ctx, "user-1", service.ExtractionFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReviewQueueOrderAndUpdate(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	older := testExtraction("ext-1", "email-1")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.SaveExtraction(ctx, older))

	newer := testExtraction("ext-2", "email-2")
	require.NoError(t, store.SaveExtraction(ctx, newer))

	queue, err := store.GetReviewQueue(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "ext-1", queue[0].ID, "oldest first")

	require.NoError(t, store.UpdateExtractionStatus(ctx, "ext-1", model.StatusAccepted))

	queue, err = store.GetReviewQueue(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "ext-2", queue[0].ID)

	err = store.UpdateExtractionStatus(ctx, "missing", model.StatusRejected)
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = store.UpdateExtractionStatus(ctx, "ext-2", model.ExtractionStatus("bogus"))
	assert.ErrorIs(t, err, ErrInvalidStatusArg)
}

func TestSaveAndGetBills(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	amount := decimal.RequireFromString("89.99")
	bill := &model.Bill{
		ID:           "bill-1",
		UserID:       "user-1",
		VendorName:   "Comcast",
		VendorKey:    "comcast",
		Category:     "internet",
		Amount:       &amount,
		DueDate:      "2026-09-15",
		AccountLast4: "4821",
		Recurring:    true,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.SaveBill(ctx, bill))

	bills, err := store.GetBills(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, "Comcast", bills[0].VendorName)
	require.NotNil(t, bills[0].Amount)
	assert.True(t, amount.Equal(*bills[0].Amount))
	assert.True(t, bills[0].Recurring)

	bills, err = store.GetBills(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, bills)
}

func TestVendorRules(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	_, err := store.GetVendorRule(ctx, "chase")
	assert.ErrorIs(t, err, common.ErrNotFound)

	rule := &model.VendorRule{
		VendorKey:      "chase",
		AllowedDomains: []string{"chase.com", "payments.chase.com"},
	}
	require.NoError(t, store.SaveVendorRule(ctx, rule))

	got, err := store.GetVendorRule(ctx, "chase")
	require.NoError(t, err)
	assert.Equal(t, rule.AllowedDomains, got.AllowedDomains)

	// Replace semantics.
	rule.AllowedDomains = []string{"chase.com"}
	require.NoError(t, store.SaveVendorRule(ctx, rule))

	got, err = store.GetVendorRule(ctx, "chase")
	require.NoError(t, err)
	assert.Equal(t, []string{"chase.com"}, got.AllowedDomains)

	all, err := store.GetAllVendorRules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSyncLock(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	acquired, err := store.AcquireSyncLock(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = store.AcquireSyncLock(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, acquired, "a held lock is not reacquirable")

	acquired, err = store.AcquireSyncLock(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, acquired, "locks are per user")

	require.NoError(t, store.ReleaseSyncLock(ctx, "user-1"))

	acquired, err = store.AcquireSyncLock(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, acquired, "released lock is available again")
}

func TestStaleSyncLockIsStolen(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	stale := time.Now().UTC().Add(-time.Hour)
	_, err := store.db.ExecContext(ctx,
		`INSERT INTO sync_locks (user_id, acquired_at) VALUES (?, ?)`, "user-1", stale)
	require.NoError(t, err)

	acquired, err := store.AcquireSyncLock(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, acquired, "a lock older than the stale cutoff is taken over")
}

func TestSaveSyncLog(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	log := &service.SyncLog{
		UserID:       "user-1",
		StartedAt:    time.Now().UTC().Add(-time.Minute),
		FinishedAt:   time.Now().UTC(),
		Fetched:      10,
		Skipped:      4,
		Processed:    6,
		AutoAccepted: 2,
		NeedsReview:  3,
		Rejected:     1,
		Errors:       0,
	}
	require.NoError(t, store.SaveSyncLog(ctx, log))

	var count int
	require.NoError(t, store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_log WHERE user_id = ?`, "user-1").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := createTestStorage(t)
	require.NoError(t, store.Migrate(context.Background()))
}
