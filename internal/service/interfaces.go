// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/anthonydavila469-creator/billdock/internal/model"
)

// ExtractionFilter defines filtering options for extraction queries.
type ExtractionFilter struct {
	Status *model.ExtractionStatus
	Route  *model.Route
	Limit  int
	Offset int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Extraction operations
	SaveExtraction(ctx context.Context, extraction *model.BillExtraction) error
	GetExtraction(ctx context.Context, id string) (*model.BillExtraction, error)
	GetExtractionByEmailID(ctx context.Context, userID, emailID string) (*model.BillExtraction, error)
	GetExtractions(ctx context.Context, userID string, filter ExtractionFilter) ([]model.BillExtraction, error)
	GetReviewQueue(ctx context.Context, userID string) ([]model.BillExtraction, error)
	UpdateExtractionStatus(ctx context.Context, id string, status model.ExtractionStatus) error

	// Bill operations
	SaveBill(ctx context.Context, bill *model.Bill) error
	GetBills(ctx context.Context, userID string) ([]model.Bill, error)

	// Vendor payment-domain rules
	GetVendorRule(ctx context.Context, vendorKey string) (*model.VendorRule, error)
	SaveVendorRule(ctx context.Context, rule *model.VendorRule) error
	GetAllVendorRules(ctx context.Context) ([]model.VendorRule, error)

	// Sync advisory lock
	AcquireSyncLock(ctx context.Context, userID string) (bool, error)
	ReleaseSyncLock(ctx context.Context, userID string) error

	// Sync log
	SaveSyncLog(ctx context.Context, log *SyncLog) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// MailboxFetcher yields raw emails for a user within a date window,
// deduplicated by message id.
type MailboxFetcher interface {
	FetchEmails(ctx context.Context, userID string, since time.Time) ([]model.RawEmail, error)
}

// BillClassification is the normalized, fully-typed result of the AI
// classification call. The loosely-shaped model JSON never escapes the
// llm package.
type BillClassification struct {
	Decision      model.Decision
	VendorName    string
	VendorKey     string
	Category      string
	AmountDue     string
	DueDate       string
	Currency      string
	AccountHint   string
	PaymentStatus string
	PaymentLink   string
	Reason        string
	Evidence      model.Evidence
	Confidence    float64
	Recurring     bool
}

// LinkSelection is the AI payment-link selector result.
type LinkSelection struct {
	URL       string
	Rationale string
}

// SyncLog captures aggregate stats for one sync run.
type SyncLog struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	UserID       string
	Fetched      int
	Skipped      int
	Processed    int
	AutoAccepted int
	NeedsReview  int
	Rejected     int
	Duplicates   int
	Errors       int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
