package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anthonydavila469-creator/billdock/internal/model"
)

// ReviewQueue returns the user's extractions waiting on a human decision.
func (e *Engine) ReviewQueue(ctx context.Context, userID string) ([]model.BillExtraction, error) {
	return e.storage.GetReviewQueue(ctx, userID)
}

// ConfirmExtraction moves a reviewed extraction to accepted and creates the
// real Bill from it. The state machine rejects confirmation of anything
// that is not sitting in review.
func (e *Engine) ConfirmExtraction(ctx context.Context, id string) (*model.Bill, error) {
	extraction, err := e.storage.GetExtraction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction %s: %w", id, err)
	}

	next, err := extraction.Status.TransitionTo(model.StatusAccepted)
	if err != nil {
		return nil, err
	}

	bill := &model.Bill{
		ID:             uuid.New().String(),
		UserID:         extraction.UserID,
		VendorName:     extraction.VendorName,
		VendorKey:      extraction.VendorKey,
		Category:       extraction.Category,
		Amount:         extraction.AmountDue,
		DueDate:        extraction.DueDate,
		AccountLast4:   extraction.AccountHint,
		PaymentURL:     extraction.PaymentURL,
		Recurring:      extraction.Recurring,
		RecurrenceDays: extraction.RecurrenceDays,
		CreatedAt:      time.Now(),
	}

	if err := e.storage.SaveBill(ctx, bill); err != nil {
		return nil, fmt.Errorf("failed to create bill: %w", err)
	}

	if err := e.storage.UpdateExtractionStatus(ctx, id, next); err != nil {
		return nil, fmt.Errorf("failed to update extraction status: %w", err)
	}

	e.logger.Info("extraction confirmed",
		"extraction_id", id,
		"bill_id", bill.ID,
		"vendor", bill.VendorName)

	return bill, nil
}

// RejectExtraction moves a reviewed extraction to rejected.
func (e *Engine) RejectExtraction(ctx context.Context, id string) error {
	extraction, err := e.storage.GetExtraction(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load extraction %s: %w", id, err)
	}

	next, err := extraction.Status.TransitionTo(model.StatusRejected)
	if err != nil {
		return err
	}

	if err := e.storage.UpdateExtractionStatus(ctx, id, next); err != nil {
		return fmt.Errorf("failed to update extraction status: %w", err)
	}

	e.logger.Info("extraction rejected", "extraction_id", id)
	return nil
}
