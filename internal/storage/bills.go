package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/anthonydavila469-creator/billdock/internal/model"
)

// SaveBill inserts or replaces a bill.
func (s *SQLiteStorage) SaveBill(ctx context.Context, bill *model.Bill) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBill(bill); err != nil {
		return err
	}

	var amount sql.NullString
	if bill.Amount != nil {
		amount = sql.NullString{String: bill.Amount.String(), Valid: true}
	}

	query := `INSERT OR REPLACE INTO bills (
		id, user_id, vendor_name, vendor_key, category, amount, due_date,
		account_last4, payment_url, recurring, recurrence_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		bill.ID,
		bill.UserID,
		bill.VendorName,
		bill.VendorKey,
		bill.Category,
		amount,
		bill.DueDate,
		bill.AccountLast4,
		bill.PaymentURL,
		bill.Recurring,
		bill.RecurrenceDays,
		bill.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save bill: %w", err)
	}
	return nil
}

// GetBills returns all bills for a user.
func (s *SQLiteStorage) GetBills(ctx context.Context, userID string) ([]model.Bill, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, vendor_name, vendor_key, category, amount, due_date,
			account_last4, payment_url, recurring, recurrence_days, created_at
		FROM bills WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Bill
	for rows.Next() {
		var bill model.Bill
		var amount sql.NullString

		scanErr := rows.Scan(
			&bill.ID,
			&bill.UserID,
			&bill.VendorName,
			&bill.VendorKey,
			&bill.Category,
			&amount,
			&bill.DueDate,
			&bill.AccountLast4,
			&bill.PaymentURL,
			&bill.Recurring,
			&bill.RecurrenceDays,
			&bill.CreatedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", scanErr)
		}

		if amount.Valid {
			d, parseErr := decimal.NewFromString(amount.String)
			if parseErr != nil {
				return nil, fmt.Errorf("corrupt amount %q for bill %s: %w", amount.String, bill.ID, parseErr)
			}
			bill.Amount = &d
		}

		out = append(out, bill)
	}
	return out, rows.Err()
}
