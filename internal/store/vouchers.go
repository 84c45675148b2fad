package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"auto-order/internal/apperr"
	"auto-order/internal/models"
)

// GetVoucher retrieves a voucher by code, case-insensitively
func (s *Store) GetVoucher(ctx context.Context, code string) (*models.Voucher, error) {
	var v models.Voucher
	err := s.db.GetContext(ctx, &v, "SELECT * FROM vouchers WHERE LOWER(code) = LOWER($1)", strings.TrimSpace(code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound.New("voucher %s not found", models.NormalizeVoucherCode(code))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return &v, nil
}

// ListVouchers returns all vouchers
func (s *Store) ListVouchers(ctx context.Context) ([]models.Voucher, error) {
	var vouchers []models.Voucher
	if err := s.db.SelectContext(ctx, &vouchers, "SELECT * FROM vouchers ORDER BY code"); err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	return vouchers, nil
}

// CreateVoucher inserts a voucher; a duplicate code is a validation error
func (s *Store) CreateVoucher(ctx context.Context, v *models.Voucher) error {
	query := `
		INSERT INTO vouchers (code, discount_type, value, max_uses, expires_on)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, used_count, created_at`

	err := s.db.GetContext(ctx, v, query, v.Code, v.DiscountType, v.Value, v.MaxUses, v.ExpiresOn)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return apperr.Validation.New("voucher %s already exists", v.Code)
	}
	if err != nil {
		return fmt.Errorf("failed to create voucher: %w", err)
	}
	return nil
}

// DeleteVoucher removes a voucher by code
func (s *Store) DeleteVoucher(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM vouchers WHERE LOWER(code) = LOWER($1)", strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("failed to delete voucher: %w", err)
	}
	return expectRow(res, apperr.NotFound.New("voucher %s not found", models.NormalizeVoucherCode(code)))
}
