package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthonydavila469-creator/billdock/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidBill      = errors.New("invalid bill")
	ErrInvalidRule      = errors.New("invalid vendor rule")
	ErrInvalidSyncLog   = errors.New("invalid sync log")
	ErrInvalidStatusArg = errors.New("invalid extraction status")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateExtraction validates an extraction before persistence, delegating
// the record invariants to the model.
func validateExtraction(extraction *model.BillExtraction) error {
	if extraction == nil {
		return fmt.Errorf("%w: extraction", ErrNilParameter)
	}
	if err := validateString(extraction.ID, "extraction.ID"); err != nil {
		return err
	}
	if err := validateString(extraction.UserID, "extraction.UserID"); err != nil {
		return err
	}
	return extraction.Validate()
}

// validateBill validates a bill before persistence.
func validateBill(bill *model.Bill) error {
	if bill == nil {
		return fmt.Errorf("%w: bill", ErrNilParameter)
	}
	if err := validateString(bill.ID, "bill.ID"); err != nil {
		return err
	}
	if err := validateString(bill.UserID, "bill.UserID"); err != nil {
		return err
	}
	if bill.VendorName == "" {
		return fmt.Errorf("%w: vendor name is required", ErrInvalidBill)
	}
	return nil
}

// validateVendorRule validates a rule before persistence.
func validateVendorRule(rule *model.VendorRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := validateString(rule.VendorKey, "rule.VendorKey"); err != nil {
		return err
	}
	for _, domain := range rule.AllowedDomains {
		if strings.TrimSpace(domain) == "" {
			return fmt.Errorf("%w: empty allowed domain", ErrInvalidRule)
		}
	}
	return nil
}

// validateStatus ensures a status string is one of the known states.
func validateStatus(status model.ExtractionStatus) error {
	switch status {
	case model.StatusPending, model.StatusAutoAccepted, model.StatusNeedsReview,
		model.StatusAccepted, model.StatusRejected:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatusArg, status)
	}
}
