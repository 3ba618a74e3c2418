// Package engine orchestrates the bill extraction pipeline: prefilter,
// preprocess, deterministic extraction, AI classification, validation, and
// persistence.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/extract"
	"github.com/anthonydavila469-creator/billdock/internal/llm"
	"github.com/anthonydavila469-creator/billdock/internal/model"
	"github.com/anthonydavila469-creator/billdock/internal/paylink"
	"github.com/anthonydavila469-creator/billdock/internal/preprocess"
	"github.com/anthonydavila469-creator/billdock/internal/service"
	"github.com/anthonydavila469-creator/billdock/internal/validate"
)

// Classifier is the AI boundary the engine depends on. Satisfied by
// llm.Classifier in production and by mocks in tests.
type Classifier interface {
	ClassifyBill(ctx context.Context, input llm.ClassifyInput) (service.BillClassification, error)
	SelectPaymentLink(ctx context.Context, input llm.SelectLinkInput) (service.LinkSelection, error)
}

// Config holds the engine's tunables.
type Config struct {
	// WindowSize is the number of emails classified concurrently per window.
	WindowSize int
	// WindowDelay is the pause between windows, a deliberate backpressure
	// measure against the AI provider's rate limits.
	WindowDelay time.Duration
	// PassUnknownSenders keeps the recall-over-cost policy: senders matching
	// neither the biller table nor any keyword list still get the full
	// pipeline. Disable to process known billers only.
	PassUnknownSenders bool
	// Preprocess bounds the text handed to extraction and classification.
	Preprocess preprocess.Options
	// Links configures payment-link candidate extraction.
	Links paylink.Options
	// OnItemDone, when set, is called after each email's result is
	// recorded. Drives progress output in the CLI.
	OnItemDone func()
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize:         5,
		WindowDelay:        time.Second,
		PassUnknownSenders: true,
		Preprocess:         preprocess.DefaultOptions(),
		Links:              paylink.DefaultOptions(),
	}
}

// Engine runs the extraction pipeline over batches of emails.
type Engine struct {
	storage       service.Storage
	fetcher       service.MailboxFetcher
	classifier    Classifier
	extractor     *extract.Extractor
	validator     *validate.Validator
	linkValidator *paylink.Validator
	logger        *slog.Logger
	cfg           Config
}

// New creates an engine with the given collaborators.
func New(storage service.Storage, fetcher service.MailboxFetcher, classifier Classifier, extractor *extract.Extractor, validator *validate.Validator, linkValidator *paylink.Validator, cfg Config, logger *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.WindowDelay <= 0 {
		cfg.WindowDelay = def.WindowDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		storage:       storage,
		fetcher:       fetcher,
		classifier:    classifier,
		extractor:     extractor,
		validator:     validator,
		linkValidator: linkValidator,
		logger:        logger,
		cfg:           cfg,
	}
}

// itemResult is the outcome of processing one email. Failures live here so
// one bad email never aborts its siblings.
type itemResult struct {
	err        error
	extraction *model.BillExtraction
	emailID    string
	skipReason string
	skipped    bool
}

// Sync fetches a user's recent emails and runs the pipeline over them in
// bounded windows. Only one sync may run per user; a held lock means
// another run is in progress, which is a skip, not a failure.
func (e *Engine) Sync(ctx context.Context, userID string, since time.Time) (*service.SyncLog, error) {
	acquired, err := e.storage.AcquireSyncLock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !acquired {
		e.logger.Info("sync already in progress, skipping this run", "user_id", userID)
		return nil, common.ErrSyncInProgress
	}
	defer func() {
		if relErr := e.storage.ReleaseSyncLock(context.WithoutCancel(ctx), userID); relErr != nil {
			e.logger.Error("failed to release sync lock", "user_id", userID, "error", relErr)
		}
	}()

	stats := &service.SyncLog{StartedAt: time.Now(), UserID: userID}

	emails, err := e.fetcher.FetchEmails(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMailboxConnection, err)
	}
	stats.Fetched = len(emails)

	pending := make([]model.RawEmail, 0, len(emails))
	for _, email := range emails {
		existing, lookupErr := e.storage.GetExtractionByEmailID(ctx, userID, email.ID)
		if lookupErr == nil && existing != nil {
			stats.Skipped++
			continue
		}
		pending = append(pending, email)
	}

	existingBills, err := e.storage.GetBills(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing bills: %w", err)
	}

	e.logger.Info("starting sync",
		"user_id", userID,
		"fetched", stats.Fetched,
		"to_process", len(pending),
		"window_size", e.cfg.WindowSize)

	// Cancellation only applies between windows. The in-flight window runs
	// on a detached context so its completed work is still persisted after
	// the caller gives up.
	windowCtx := context.WithoutCancel(ctx)

	for start := 0; start < len(pending); start += e.cfg.WindowSize {
		if ctx.Err() != nil {
			e.logger.Warn("sync canceled, stopping before next window",
				"processed_so_far", stats.Processed)
			break
		}

		end := min(start+e.cfg.WindowSize, len(pending))
		window := pending[start:end]

		results := make([]itemResult, len(window))
		var wg sync.WaitGroup
		for i, email := range window {
			wg.Add(1)
			go func(i int, email model.RawEmail) {
				defer wg.Done()
				results[i] = e.processEmail(windowCtx, userID, email, existingBills)
			}(i, email)
		}
		wg.Wait()

		for _, res := range results {
			e.record(windowCtx, res, stats)
			if e.cfg.OnItemDone != nil {
				e.cfg.OnItemDone()
			}
		}

		if end < len(pending) {
			select {
			case <-ctx.Done():
			case <-time.After(e.cfg.WindowDelay):
			}
		}
	}

	stats.FinishedAt = time.Now()
	if err := e.storage.SaveSyncLog(windowCtx, stats); err != nil {
		e.logger.Error("failed to save sync log", "user_id", userID, "error", err)
	}

	e.logger.Info("sync finished",
		"user_id", userID,
		"processed", stats.Processed,
		"auto_accepted", stats.AutoAccepted,
		"needs_review", stats.NeedsReview,
		"rejected", stats.Rejected,
		"duplicates", stats.Duplicates,
		"errors", stats.Errors,
		"duration", stats.FinishedAt.Sub(stats.StartedAt))

	return stats, nil
}

// record persists one item result and folds it into the aggregate stats.
// Persistence happens here, after the window completes, so the concurrent
// workers share no mutable state.
func (e *Engine) record(ctx context.Context, res itemResult, stats *service.SyncLog) {
	switch {
	case res.err != nil:
		stats.Errors++
		e.logger.Error("email processing failed",
			"email_id", res.emailID,
			"error", res.err)
	case res.skipped:
		stats.Skipped++
		e.logger.Debug("email skipped",
			"email_id", res.emailID,
			"reason", res.skipReason)
	default:
		if err := e.storage.SaveExtraction(ctx, res.extraction); err != nil {
			stats.Errors++
			e.logger.Error("failed to save extraction",
				"email_id", res.emailID,
				"error", err)
			return
		}
		stats.Processed++
		switch res.extraction.Route {
		case model.RouteAutoAccept:
			stats.AutoAccepted++
		case model.RouteNeedsReview:
			stats.NeedsReview++
		case model.RouteReject:
			stats.Rejected++
		}
		if res.extraction.Duplicate {
			stats.Duplicates++
		}
	}
}
