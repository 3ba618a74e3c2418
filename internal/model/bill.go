package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill is an already-imported bill in the user's set, consulted for
// duplicate detection and created when a reviewed extraction is confirmed.
type Bill struct {
	CreatedAt      time.Time
	Amount         *decimal.Decimal
	ID             string
	UserID         string
	VendorName     string
	VendorKey      string
	Category       string
	DueDate        string
	AccountLast4   string
	PaymentURL     string
	RecurrenceDays int
	Recurring      bool
}

// VendorRule maps a vendor to the payment domains it is allowed to link to.
type VendorRule struct {
	VendorKey      string
	AllowedDomains []string
}
