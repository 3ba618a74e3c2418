package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/extract"
	"github.com/anthonydavila469-creator/billdock/internal/llm"
	"github.com/anthonydavila469-creator/billdock/internal/model"
	"github.com/anthonydavila469-creator/billdock/internal/paylink"
	"github.com/anthonydavila469-creator/billdock/internal/service"
	"github.com/anthonydavila469-creator/billdock/internal/validate"
)

// memoryStorage is an in-memory service.Storage for engine tests.
type memoryStorage struct {
	mu          sync.Mutex
	extractions map[string]*model.BillExtraction
	bills       map[string]*model.Bill
	vendorRules map[string]*model.VendorRule
	locks       map[string]bool
	syncLogs    []*service.SyncLog
	lockDenied  bool
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		extractions: make(map[string]*model.BillExtraction),
		bills:       make(map[string]*model.Bill),
		vendorRules: make(map[string]*model.VendorRule),
		locks:       make(map[string]bool),
	}
}

func (s *memoryStorage) SaveExtraction(ctx context.Context, extraction *model.BillExtraction) error {
	// Writes fail on a canceled context, the way ExecContext does.
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *extraction
	s.extractions[extraction.ID] = &cp
	return nil
}

func (s *memoryStorage) GetExtraction(_ context.Context, id string) (*model.BillExtraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.extractions[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, common.ErrNotFound
}

func (s *memoryStorage) GetExtractionByEmailID(_ context.Context, userID, emailID string) (*model.BillExtraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.extractions {
		if e.UserID == userID && e.EmailID == emailID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *memoryStorage) GetExtractions(_ context.Context, userID string, _ service.ExtractionFilter) ([]model.BillExtraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BillExtraction
	for _, e := range s.extractions {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *memoryStorage) GetReviewQueue(_ context.Context, userID string) ([]model.BillExtraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BillExtraction
	for _, e := range s.extractions {
		if e.UserID == userID && e.Status == model.StatusNeedsReview {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *memoryStorage) UpdateExtractionStatus(_ context.Context, id string, status model.ExtractionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.extractions[id]
	if !ok {
		return common.ErrNotFound
	}
	e.Status = status
	return nil
}

func (s *memoryStorage) SaveBill(_ context.Context, bill *model.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *bill
	s.bills[bill.ID] = &cp
	return nil
}

func (s *memoryStorage) GetBills(_ context.Context, userID string) ([]model.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Bill
	for _, b := range s.bills {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *memoryStorage) GetVendorRule(_ context.Context, vendorKey string) (*model.VendorRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.vendorRules[vendorKey]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, common.ErrNotFound
}

func (s *memoryStorage) SaveVendorRule(_ context.Context, rule *model.VendorRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rule
	s.vendorRules[rule.VendorKey] = &cp
	return nil
}

func (s *memoryStorage) GetAllVendorRules(_ context.Context) ([]model.VendorRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.VendorRule
	for _, r := range s.vendorRules {
		out = append(out, *r)
	}
	return out, nil
}

func (s *memoryStorage) AcquireSyncLock(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockDenied || s.locks[userID] {
		return false, nil
	}
	s.locks[userID] = true
	return true, nil
}

func (s *memoryStorage) ReleaseSyncLock(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, userID)
	return nil
}

func (s *memoryStorage) SaveSyncLog(ctx context.Context, log *service.SyncLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *log
	s.syncLogs = append(s.syncLogs, &cp)
	return nil
}

func (s *memoryStorage) Migrate(_ context.Context) error { return nil }
func (s *memoryStorage) Close() error                    { return nil }

func (s *memoryStorage) extractionByEmail(emailID string) *model.BillExtraction {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.extractions {
		if e.EmailID == emailID {
			cp := *e
			return &cp
		}
	}
	return nil
}

// stubFetcher returns a fixed email list.
type stubFetcher struct {
	emails []model.RawEmail
	err    error
}

func (f *stubFetcher) FetchEmails(_ context.Context, _ string, _ time.Time) ([]model.RawEmail, error) {
	return f.emails, f.err
}

func newTestEngine(store *memoryStorage, fetcher service.MailboxFetcher, classifier Classifier) *Engine {
	cfg := DefaultConfig()
	cfg.WindowDelay = time.Millisecond
	return New(
		store,
		fetcher,
		classifier,
		extract.NewExtractor(extract.DefaultTables()),
		validate.New(validate.DefaultConfig(), slog.Default()),
		paylink.NewValidator(true),
		cfg,
		slog.Default(),
	)
}

const testUser = "user-1"

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func chaseStatementEmail() model.RawEmail {
	return model.RawEmail{
		ID:      "email-chase",
		From:    "Chase <no-reply@chase.com>",
		Subject: "Your Chase Ink Business statement is ready",
		Date:    time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
		BodyPlain: "Your statement is ready.\n" +
			"Statement Balance: $1,204.33\n" +
			"Due Date: 02/14/2026\n",
	}
}

func TestSyncStatementAutoAccepted(t *testing.T) {
	store := newMemoryStorage()
	classifier := NewMockClassifier()
	classifier.Script("email-chase", service.BillClassification{
		Decision:   model.DecisionBill,
		Confidence: 0.95,
		VendorName: "Chase Ink Business",
		VendorKey:  "chase",
		Category:   "credit_card",
		AmountDue:  "1204.33",
		DueDate:    "2026-02-14",
		Reason:     "Statement with balance due.",
	})

	e := newTestEngine(store, &stubFetcher{emails: []model.RawEmail{chaseStatementEmail()}}, classifier)

	stats, err := e.Sync(context.Background(), testUser, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Fetched)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.AutoAccepted)
	assert.Zero(t, stats.Errors)

	extraction := store.extractionByEmail("email-chase")
	require.NotNil(t, extraction)
	assert.Equal(t, model.RouteAutoAccept, extraction.Route)
	assert.Equal(t, model.StatusAutoAccepted, extraction.Status)
	assert.Equal(t, "Chase Ink Business", extraction.VendorName)
	assert.Equal(t, "credit_card", extraction.Category)
	require.NotNil(t, extraction.AmountDue)
	assert.Equal(t, "1204.33", extraction.AmountDue.StringFixed(2))
	assert.Equal(t, "2026-02-14", extraction.DueDate)
}

func TestSyncPromotionSkippedBeforeAICall(t *testing.T) {
	store := newMemoryStorage()
	classifier := NewMockClassifier()

	email := model.RawEmail{
		ID:        "email-promo",
		From:      "deals@shop.example.com",
		Subject:   "20% off your next order!",
		Date:      time.Now(),
		BodyPlain: "Shop now and save today on everything in the store.",
	}

	e := newTestEngine(store, &stubFetcher{emails: []model.RawEmail{email}}, classifier)

	stats, err := e.Sync(context.Background(), testUser, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Processed)
	assert.Empty(t, classifier.Calls(), "promotional email must never reach the model")
	assert.Nil(t, store.extractionByEmail("email-promo"))
}

func TestSyncPaymentConfirmationRejected(t *testing.T) {
	store := newMemoryStorage()
	classifier := NewMockClassifier()
	classifier.Script("email-receipt", service.BillClassification{
		Decision:      model.DecisionNotBill,
		Confidence:    0.9,
		PaymentStatus: "PAID",
		Reason:        "Payment confirmation, not a request for payment.",
	})

	// The subject avoids the deterministic skip phrasing so the email
	// reaches the model and exercises the NOT_BILL route.
	email := model.RawEmail{
		ID:        "email-receipt",
		From:      "billing@utilityco.com",
		Subject:   "About your recent payment",
		Date:      time.Now(),
		BodyPlain: "We have successfully charged $50.00 to your card on file. Amount due next cycle will follow.",
	}

	e := newTestEngine(store, &stubFetcher{emails: []model.RawEmail{email}}, classifier)

	stats, err := e.Sync(context.Background(), testUser, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Rejected)

	extraction := store.extractionByEmail("email-receipt")
	require.NotNil(t, extraction)
	assert.Equal(t, model.RouteReject, extraction.Route)
	assert.Equal(t, model.StatusRejected, extraction.Status)
	assert.Empty(t, extraction.PaymentURL)
}

func TestSyncShortenerLinkNeverExposed(t *testing.T) {
	store := newMemoryStorage()
	classifier := NewMockClassifier()
	classifier.Script("email-links", service.BillClassification{
		Decision:   model.DecisionBill,
		Confidence: 0.9,
		VendorName: "Acme Utilities",
		VendorKey:  "acme",
		AmountDue:  "60.00",
	})

	email := model.RawEmail{
		ID:        "email-links",
		From:      "billing@acmeutilities.com",
		Subject:   "Your bill is ready",
		Date:      time.Now(),
		BodyPlain: "Amount Due: $60.00",
		BodyHTML: `<html><body>
			<p>Amount Due: $60.00</p>
			<a href="https://acmeutilities.com/unsubscribe">Unsubscribe</a>
			<a href="https://bit.ly/xyz">Make a Payment</a>
		</body></html>`,
	}

	e := newTestEngine(store, &stubFetcher{emails: []model.RawEmail{email}}, classifier)

	_, err := e.Sync(context.Background(), testUser, time.Time{})
	require.NoError(t, err)

	extraction := store.extractionByEmail("email-links")
	require.NotNil(t, extraction)
	assert.Empty(t, extraction.PaymentURL, "junk and shortener links must be filtered out")
	assert.Empty(t, classifier.LinkCalls(), "no candidates survive, so no selection call")
}

func TestSyncDuplicateRejected(t *testing.T) {
	store := newMemoryStorage()
	amount := mustDecimal(t, "142.50")
	require.NoError(t, store.SaveBill(context.Background(), &model.Bill{
		ID:        "bill-existing",
		UserID:    testUser,
		VendorKey: "chase",
		Amount:    &amount,
		DueDate:   "2026-01-25",
	}))

	classifier := NewMockClassifier()
	classifier.Script("email-chase", service.BillClassification{
		Decision:   model.DecisionBill,
		Confidence: 0.95,
		VendorName: "Chase",
		VendorKey:  "chase",
		AmountDue:  "142.50",
		DueDate:    "2026-02-25",
	})

	email := chaseStatementEmail()
	email.BodyPlain = "Statement Balance: $142.50\nDue Date: 02/25/2026\n"

	e := newTestEngine(store, &stubFetcher{emails: []model.RawEmail{email}}, classifier)

	stats, err := e.Sync(context.Background(), testUser, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Duplicates)
	extraction := store.extractionByEmail("email-chase")
	require.NotNil(t, extraction)
	assert.True(t, extraction.Duplicate)
	assert.Equal(t, model.RouteReject, extraction.Route)
	assert.NotEqual(t, model.RouteAutoAccept, extraction.Route)
}

func TestSyncPerEmailFailureIsolated(t *testing.T) {
	store := newMemoryStorage()
	classifier := NewMockClassifier()
	classifier.ScriptError("email-bad", errors.New("provider unavailable"))
	classifier.Script("email-chase", service.BillClassification{
		Decision:   model.DecisionBill,
		Confidence: 0.95,
		VendorName: "Chase Ink Business",
		VendorKey:  "chase",
		AmountDue:  "1204.33",
		DueDate:    "2026-02-14",
	})

	bad := model.RawEmail{
		ID:        "email-bad",
		From:      "billing@powerco.com",
		Subject:   "Your bill is ready",
		Date:      time.Now(),
		BodyPlain: "Amount Due: $88.00",
	}

	e := newTestEngine(store, &stubFetcher{emails: []model.RawEmail{bad, chaseStatementEmail()}}, classifier)

	stats, err := e.Sync(context.Background(), testUser, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.Processed, "one failure never aborts the batch")
	assert.NotNil(t, store.extractionByEmail("email-chase"))
	assert.Nil(t, store.extractionByEmail("email-bad"))
}

func TestSyncLockContentionIsSkip(t *testing.T) {
	store := newMemoryStorage()
	store.lockDenied = true

	e := newTestEngine(store, &stubFetcher{}, NewMockClassifier())

	_, err := e.Sync(context.Background(), testUser, time.Time{})
	assert.ErrorIs(t, err, common.ErrSyncInProgress)
}

func TestSyncAlreadyProcessedEmailsSkipped(t *testing.T) {
	store := newMemoryStorage()
	classifier := NewMockClassifier()
	classifier.Script("email-chase", service.BillClassification{
		Decision:   model.DecisionBill,
		Confidence: 0.95,
		VendorName: "Chase Ink Business",
		VendorKey:  "chase",
		AmountDue:  "1204.33",
		DueDate:    "2026-02-14",
	})

	e := newTestEngine(store, &stubFetcher{emails: []model.RawEmail{chaseStatementEmail()}}, classifier)

	_, err := e.Sync(context.Background(), testUser, time.Time{})
	require.NoError(t, err)
	require.Len(t, classifier.Calls(), 1)

	stats, err := e.Sync(context.Background(), testUser, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Processed)
	assert.Len(t, classifier.Calls(), 1, "a rerun must not reclassify the same email")
}

func TestSyncCancellationStopsNewWindows(t *testing.T) {
	store := newMemoryStorage()
	classifier := NewMockClassifier()
	classifier.Default = service.BillClassification{
		Decision:   model.DecisionUncertain,
		Confidence: 0.5,
	}

	var emails []model.RawEmail
	for i := 0; i < 12; i++ {
		emails = append(emails, model.RawEmail{
			ID:        "email-" + string(rune('a'+i)),
			From:      "billing@powerco.com",
			Subject:   "Your bill is ready",
			Date:      time.Now(),
			BodyPlain: "Amount Due: $42.00",
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine(store, &stubFetcher{emails: emails}, classifier)

	stats, err := e.Sync(ctx, testUser, time.Time{})
	require.NoError(t, err)

	assert.Zero(t, stats.Processed, "a pre-canceled context must not start any window")
	assert.Equal(t, 12, stats.Fetched, "fetched work is still accounted for")
}

// cancelingClassifier cancels the sync's context during the first
// classification, then answers normally.
type cancelingClassifier struct {
	inner  *MockClassifier
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancelingClassifier) ClassifyBill(ctx context.Context, input llm.ClassifyInput) (service.BillClassification, error) {
	c.once.Do(c.cancel)
	return c.inner.ClassifyBill(ctx, input)
}

func (c *cancelingClassifier) SelectPaymentLink(ctx context.Context, input llm.SelectLinkInput) (service.LinkSelection, error) {
	return c.inner.SelectPaymentLink(ctx, input)
}

func TestSyncCancellationMidWindowRecordsFinishedWork(t *testing.T) {
	store := newMemoryStorage()
	inner := NewMockClassifier()
	inner.Default = service.BillClassification{
		Decision:   model.DecisionBill,
		Confidence: 0.95,
		VendorName: "PowerCo",
		VendorKey:  "powerco",
		AmountDue:  "42.00",
		DueDate:    "2026-02-01",
		Reason:     "Utility bill.",
	}

	var emails []model.RawEmail
	for i := 0; i < 7; i++ {
		emails = append(emails, model.RawEmail{
			ID:        "email-" + string(rune('a'+i)),
			From:      "billing@powerco.com",
			Subject:   "Your bill is ready",
			Date:      time.Now(),
			BodyPlain: "Amount Due: $42.00\nDue Date: 02/01/2026",
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	classifier := &cancelingClassifier{inner: inner, cancel: cancel}

	e := newTestEngine(store, &stubFetcher{emails: emails}, classifier)

	stats, err := e.Sync(ctx, testUser, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Processed, "the in-flight window must run to completion")
	assert.Zero(t, stats.Errors, "cancellation must not surface as per-email errors")
	assert.NotNil(t, store.extractionByEmail("email-a"), "finished work must be persisted")
	assert.Len(t, store.syncLogs, 1, "the sync log is written despite cancellation")
	assert.Len(t, inner.Calls(), 5, "no second window may start after cancellation")
}

func TestConfirmExtractionCreatesBill(t *testing.T) {
	store := newMemoryStorage()
	amount := mustDecimal(t, "89.99")
	extraction := &model.BillExtraction{
		ID:         "ext-1",
		EmailID:    "email-1",
		UserID:     testUser,
		VendorName: "Comcast",
		VendorKey:  "comcast",
		Category:   "internet",
		AmountDue:  &amount,
		DueDate:    "2026-09-15",
		Decision:   model.DecisionBill,
		Route:      model.RouteNeedsReview,
		Status:     model.StatusNeedsReview,
		Confidence: 0.7,
	}
	require.NoError(t, store.SaveExtraction(context.Background(), extraction))

	e := newTestEngine(store, &stubFetcher{}, NewMockClassifier())

	queue, err := e.ReviewQueue(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, queue, 1)

	bill, err := e.ConfirmExtraction(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "Comcast", bill.VendorName)
	assert.Equal(t, "89.99", bill.Amount.StringFixed(2))

	updated, err := store.GetExtraction(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, updated.Status)

	_, err = e.ConfirmExtraction(context.Background(), "ext-1")
	assert.Error(t, err, "accepted is terminal")
}

func TestRejectExtractionEnforcesStateMachine(t *testing.T) {
	store := newMemoryStorage()
	extraction := &model.BillExtraction{
		ID:         "ext-2",
		EmailID:    "email-2",
		UserID:     testUser,
		Decision:   model.DecisionUncertain,
		Route:      model.RouteNeedsReview,
		Status:     model.StatusNeedsReview,
		Confidence: 0.4,
	}
	require.NoError(t, store.SaveExtraction(context.Background(), extraction))

	e := newTestEngine(store, &stubFetcher{}, NewMockClassifier())

	require.NoError(t, e.RejectExtraction(context.Background(), "ext-2"))

	updated, err := store.GetExtraction(context.Background(), "ext-2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, updated.Status)

	err = e.RejectExtraction(context.Background(), "ext-2")
	assert.Error(t, err, "rejected is terminal")
}
