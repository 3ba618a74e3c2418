package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/model"
)

// GetVendorRule returns the payment-domain allow-list for a vendor key.
func (s *SQLiteStorage) GetVendorRule(ctx context.Context, vendorKey string) (*model.VendorRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(vendorKey, "vendorKey"); err != nil {
		return nil, err
	}

	var domains string
	err := s.db.QueryRowContext(ctx,
		`SELECT allowed_domains FROM vendor_rules WHERE vendor_key = ?`, vendorKey).Scan(&domains)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vendor rule: %w", err)
	}

	rule := model.VendorRule{VendorKey: vendorKey}
	if jsonErr := json.Unmarshal([]byte(domains), &rule.AllowedDomains); jsonErr != nil {
		return nil, fmt.Errorf("corrupt allowed domains for vendor %s: %w", vendorKey, jsonErr)
	}
	return &rule, nil
}

// SaveVendorRule inserts or replaces a vendor rule.
func (s *SQLiteStorage) SaveVendorRule(ctx context.Context, rule *model.VendorRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateVendorRule(rule); err != nil {
		return err
	}

	domains, err := json.Marshal(rule.AllowedDomains)
	if err != nil {
		return fmt.Errorf("failed to encode allowed domains: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO vendor_rules (vendor_key, allowed_domains, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)`,
		rule.VendorKey, string(domains))
	if err != nil {
		return fmt.Errorf("failed to save vendor rule: %w", err)
	}
	return nil
}

// GetAllVendorRules returns every vendor rule.
func (s *SQLiteStorage) GetAllVendorRules(ctx context.Context) ([]model.VendorRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT vendor_key, allowed_domains FROM vendor_rules ORDER BY vendor_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vendor rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.VendorRule
	for rows.Next() {
		var rule model.VendorRule
		var domains string
		if scanErr := rows.Scan(&rule.VendorKey, &domains); scanErr != nil {
			return nil, fmt.Errorf("failed to scan vendor rule: %w", scanErr)
		}
		if jsonErr := json.Unmarshal([]byte(domains), &rule.AllowedDomains); jsonErr != nil {
			return nil, fmt.Errorf("corrupt allowed domains for vendor %s: %w", rule.VendorKey, jsonErr)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}
