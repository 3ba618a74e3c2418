package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/model"
	"github.com/anthonydavila469-creator/billdock/internal/service"
)

const extractionColumns = `id, email_id, user_id, vendor_name, vendor_key, category,
	amount_due, due_date, currency, account_hint, payment_url, reason,
	decision, route, status, evidence, confidence, recurrence_days,
	recurring, duplicate, created_at`

// SaveExtraction inserts or replaces an extraction record.
func (s *SQLiteStorage) SaveExtraction(ctx context.Context, extraction *model.BillExtraction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateExtraction(extraction); err != nil {
		return err
	}

	evidence, err := json.Marshal(extraction.Evidence)
	if err != nil {
		return fmt.Errorf("failed to encode evidence: %w", err)
	}

	var amount sql.NullString
	if extraction.AmountDue != nil {
		amount = sql.NullString{String: extraction.AmountDue.String(), Valid: true}
	}

	query := `INSERT OR REPLACE INTO bill_extractions (` + extractionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		extraction.ID,
		extraction.EmailID,
		extraction.UserID,
		extraction.VendorName,
		extraction.VendorKey,
		extraction.Category,
		amount,
		extraction.DueDate,
		extraction.Currency,
		extraction.AccountHint,
		extraction.PaymentURL,
		extraction.Reason,
		string(extraction.Decision),
		string(extraction.Route),
		string(extraction.Status),
		string(evidence),
		extraction.Confidence,
		extraction.RecurrenceDays,
		extraction.Recurring,
		extraction.Duplicate,
		extraction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save extraction: %w", err)
	}
	return nil
}

// GetExtraction returns one extraction by id.
func (s *SQLiteStorage) GetExtraction(ctx context.Context, id string) (*model.BillExtraction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+extractionColumns+` FROM bill_extractions WHERE id = ?`, id)
	return scanExtraction(row)
}

// GetExtractionByEmailID returns the extraction for a user's email, if any.
func (s *SQLiteStorage) GetExtractionByEmailID(ctx context.Context, userID, emailID string) (*model.BillExtraction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(emailID, "emailID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+extractionColumns+` FROM bill_extractions WHERE user_id = ? AND email_id = ?`,
		userID, emailID)
	return scanExtraction(row)
}

// GetExtractions returns a user's extractions, optionally filtered.
func (s *SQLiteStorage) GetExtractions(ctx context.Context, userID string, filter service.ExtractionFilter) ([]model.BillExtraction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	var conditions []string
	args := []any{userID}
	conditions = append(conditions, "user_id = ?")

	if filter.Status != nil {
		if err := validateStatus(*filter.Status); err != nil {
			return nil, err
		}
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Route != nil {
		conditions = append(conditions, "route = ?")
		args = append(args, string(*filter.Route))
	}

	query := `SELECT ` + extractionColumns + ` FROM bill_extractions WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query extractions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.BillExtraction
	for rows.Next() {
		extraction, scanErr := scanExtractionRows(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *extraction)
	}
	return out, rows.Err()
}

// GetReviewQueue returns the user's extractions awaiting human review,
// oldest first so the queue drains in arrival order.
func (s *SQLiteStorage) GetReviewQueue(ctx context.Context, userID string) ([]model.BillExtraction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+extractionColumns+` FROM bill_extractions
		WHERE user_id = ? AND status = ? ORDER BY created_at ASC`,
		userID, string(model.StatusNeedsReview))
	if err != nil {
		return nil, fmt.Errorf("failed to query review queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.BillExtraction
	for rows.Next() {
		extraction, scanErr := scanExtractionRows(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *extraction)
	}
	return out, rows.Err()
}

// UpdateExtractionStatus sets the status of one extraction. Callers are
// responsible for checking the transition first; this only guards against
// unknown statuses.
func (s *SQLiteStorage) UpdateExtractionStatus(ctx context.Context, id string, status model.ExtractionStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateStatus(status); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE bill_extractions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update extraction status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("extraction %s: %w", id, common.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row *sql.Row) (*model.BillExtraction, error) {
	extraction, err := scanExtractionRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return extraction, err
}

func scanExtractionRows(row rowScanner) (*model.BillExtraction, error) {
	var extraction model.BillExtraction
	var amount sql.NullString
	var evidence string
	var decision, route, status string

	err := row.Scan(
		&extraction.ID,
		&extraction.EmailID,
		&extraction.UserID,
		&extraction.VendorName,
		&extraction.VendorKey,
		&extraction.Category,
		&amount,
		&extraction.DueDate,
		&extraction.Currency,
		&extraction.AccountHint,
		&extraction.PaymentURL,
		&extraction.Reason,
		&decision,
		&route,
		&status,
		&evidence,
		&extraction.Confidence,
		&extraction.RecurrenceDays,
		&extraction.Recurring,
		&extraction.Duplicate,
		&extraction.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan extraction: %w", err)
	}

	extraction.Decision = model.Decision(decision)
	extraction.Route = model.Route(route)
	extraction.Status = model.ExtractionStatus(status)

	if amount.Valid {
		d, parseErr := decimal.NewFromString(amount.String)
		if parseErr != nil {
			return nil, fmt.Errorf("corrupt amount %q for extraction %s: %w", amount.String, extraction.ID, parseErr)
		}
		extraction.AmountDue = &d
	}

	if evidence != "" {
		if jsonErr := json.Unmarshal([]byte(evidence), &extraction.Evidence); jsonErr != nil {
			return nil, fmt.Errorf("corrupt evidence for extraction %s: %w", extraction.ID, jsonErr)
		}
	}

	return &extraction, nil
}
