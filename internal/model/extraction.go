package model

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Decision is the classifier's verdict on whether an email is a payable bill.
type Decision string

const (
	// DecisionBill marks an email that represents a payable bill.
	DecisionBill Decision = "BILL"
	// DecisionNotBill marks an email that is not a bill.
	DecisionNotBill Decision = "NOT_BILL"
	// DecisionUncertain marks an email the classifier could not decide on.
	DecisionUncertain Decision = "UNCERTAIN"
)

// Route is the terminal disposition assigned by the validator.
type Route string

const (
	// RouteAutoAccept imports the extraction without human review.
	RouteAutoAccept Route = "auto_accept"
	// RouteNeedsReview queues the extraction for human review.
	RouteNeedsReview Route = "needs_review"
	// RouteReject discards the extraction.
	RouteReject Route = "reject"
)

// ExtractionStatus tracks the lifecycle of a BillExtraction record.
type ExtractionStatus string

const (
	// StatusPending is the initial state before routing.
	StatusPending ExtractionStatus = "pending"
	// StatusAutoAccepted means the pipeline imported the bill directly.
	StatusAutoAccepted ExtractionStatus = "auto_accepted"
	// StatusNeedsReview means a human must confirm or reject.
	StatusNeedsReview ExtractionStatus = "needs_review"
	// StatusAccepted means a human confirmed a reviewed extraction.
	StatusAccepted ExtractionStatus = "accepted"
	// StatusRejected means the extraction was discarded.
	StatusRejected ExtractionStatus = "rejected"
)

// validTransitions enumerates every legal status transition. Anything not
// listed here is rejected by TransitionTo.
var validTransitions = map[ExtractionStatus][]ExtractionStatus{
	StatusPending:      {StatusAutoAccepted, StatusNeedsReview, StatusRejected},
	StatusNeedsReview:  {StatusAccepted, StatusRejected},
	StatusAutoAccepted: {},
	StatusAccepted:     {},
	StatusRejected:     {},
}

// CanTransitionTo reports whether moving to the target status is legal.
func (s ExtractionStatus) CanTransitionTo(target ExtractionStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// TransitionTo returns the target status or an error for an illegal move.
func (s ExtractionStatus) TransitionTo(target ExtractionStatus) (ExtractionStatus, error) {
	if !s.CanTransitionTo(target) {
		return s, fmt.Errorf("invalid status transition %s -> %s", s, target)
	}
	return target, nil
}

// Evidence holds the snippets justifying a classification either way.
type Evidence struct {
	BillSignals    []string
	NotBillSignals []string
}

// BillExtraction is the persisted output of one pipeline run for one email.
type BillExtraction struct {
	CreatedAt      time.Time
	AmountDue      *decimal.Decimal
	ID             string
	EmailID        string
	UserID         string
	VendorName     string
	VendorKey      string
	Category       string
	DueDate        string
	Currency       string
	AccountHint    string
	PaymentURL     string
	Reason         string
	Decision       Decision
	Route          Route
	Status         ExtractionStatus
	Evidence       Evidence
	Confidence     float64
	RecurrenceDays int
	Recurring      bool
	Duplicate      bool
}

var dueDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Validate enforces the record invariants before persistence.
func (b *BillExtraction) Validate() error {
	if b.EmailID == "" {
		return fmt.Errorf("email id is required")
	}
	if b.Confidence < 0.0 || b.Confidence > 1.0 {
		return fmt.Errorf("confidence must be between 0.0 and 1.0, got %.2f", b.Confidence)
	}
	switch b.Decision {
	case DecisionBill, DecisionNotBill, DecisionUncertain:
	default:
		return fmt.Errorf("unknown decision %q", b.Decision)
	}
	switch b.Route {
	case RouteAutoAccept, RouteNeedsReview, RouteReject:
	default:
		return fmt.Errorf("unknown route %q", b.Route)
	}
	// A BILL decision is never routed straight to reject; low-confidence
	// bills go to review instead.
	if b.Decision == DecisionBill && b.Route == RouteReject && !b.Duplicate {
		return fmt.Errorf("a BILL decision cannot be routed to reject")
	}
	if b.DueDate != "" {
		if !dueDateRe.MatchString(b.DueDate) {
			return fmt.Errorf("due date %q is not YYYY-MM-DD", b.DueDate)
		}
		if _, err := time.Parse("2006-01-02", b.DueDate); err != nil {
			return fmt.Errorf("due date %q is not a real calendar date", b.DueDate)
		}
	}
	return nil
}

// ClampConfidence normalizes a raw confidence value onto [0,1]. Values on a
// 0-100 scale are rescaled first; out-of-range values are clamped, never
// propagated.
func ClampConfidence(raw float64) float64 {
	if raw != raw { // NaN
		return 0
	}
	if raw > 1.0 {
		raw /= 100.0
	}
	if raw < 0.0 {
		return 0.0
	}
	if raw > 1.0 {
		return 1.0
	}
	return raw
}
