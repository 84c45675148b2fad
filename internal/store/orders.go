package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auto-order/internal/apperr"
	"auto-order/internal/models"
)

// OrderKey identifies an order by numeric id or by reference token.
type OrderKey struct {
	ID        int64
	Reference string
}

// ByID looks an order up by its numeric id
func ByID(id int64) OrderKey { return OrderKey{ID: id} }

// ByReference looks an order up by the token shared with the gateway
func ByReference(ref string) OrderKey { return OrderKey{Reference: ref} }

func (k OrderKey) where() (string, interface{}) {
	if k.Reference != "" {
		return "reference_id = $1", k.Reference
	}
	return "id = $1", k.ID
}

func (k OrderKey) notFound() error {
	if k.Reference != "" {
		return apperr.NotFound.New("order %s not found", k.Reference)
	}
	return apperr.NotFound.New("order #%d not found", k.ID)
}

// ReferenceFunc builds the reference token once the order id is known.
type ReferenceFunc func(order *models.Order) string

// CreateOrderTx inserts the order and redeems its voucher in one transaction.
// The voucher increment is guarded by the usage cap and expiry; when it
// matches no row the whole order is rolled back.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order, today time.Time, ref ReferenceFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if order.VoucherCode != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE vouchers SET used_count = used_count + 1
			WHERE LOWER(code) = LOWER($1)
			  AND (max_uses = 0 OR used_count < max_uses)
			  AND (expires_on IS NULL OR expires_on >= $2::date)`,
			*order.VoucherCode, today.Format("2006-01-02"))
		if err != nil {
			return fmt.Errorf("failed to redeem voucher: %w", err)
		}
		if err := expectRow(res, apperr.Validation.New("voucher %s can no longer be used", *order.VoucherCode)); err != nil {
			return err
		}
	}

	if err := tx.GetContext(ctx, &order.ID, "SELECT nextval(pg_get_serial_sequence('orders', 'id'))"); err != nil {
		return fmt.Errorf("failed to allocate order id: %w", err)
	}
	order.ReferenceID = ref(order)

	query := `
		INSERT INTO orders (id, user_id, username, product_id, product_name, unit_price, qty,
			subtotal, discount, fee, amount, note, payment_method, voucher_code, lane, status, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at`

	err = tx.GetContext(ctx, order, query,
		order.ID, order.UserID, order.Username, order.ProductID, order.ProductName, order.UnitPrice, order.Qty,
		order.Subtotal, order.Discount, order.Fee, order.Amount, order.Note, order.PaymentMethod,
		order.VoucherCode, order.Lane, order.Status, order.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

// UpdateOrderTx locks the order row, runs mutate on it and writes it back when
// mutate reports a change. This is the only place order rows change after
// creation, so concurrent signals for one order are serialized here.
func (s *Store) UpdateOrderTx(ctx context.Context, key OrderKey, mutate func(*models.Order) (bool, error)) (*models.Order, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cond, arg := key.where()
	var order models.Order
	err = tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE "+cond+" FOR UPDATE", arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, key.notFound()
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock order: %w", err)
	}

	changed, err := mutate(&order)
	if err != nil || !changed {
		return &order, false, err
	}

	err = tx.GetContext(ctx, &order.UpdatedAt, `
		UPDATE orders SET status = $1, proof_file_id = $2, proof_caption = $3, admin_note = $4,
			decided_at = $5, gateway_sid = $6, gateway_trx_id = $7, pay_url = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at`,
		order.Status, order.ProofFileID, order.ProofCaption, order.AdminNote,
		order.DecidedAt, order.GatewaySID, order.GatewayTrxID, order.PayURL, order.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit order update: %w", err)
	}
	return &order, true, nil
}

// GetOrder retrieves an order by id or reference
func (s *Store) GetOrder(ctx context.Context, key OrderKey) (*models.Order, error) {
	cond, arg := key.where()
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE "+cond, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, key.notFound()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// ListOrdersByUser retrieves the latest orders of a user
func (s *Store) ListOrdersByUser(ctx context.Context, userID int64, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY id DESC LIMIT $2", userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListRecentOrders retrieves the latest orders of all users
func (s *Store) ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, "SELECT * FROM orders ORDER BY id DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// LatestAwaitingProof returns the user's newest order still waiting for a transfer
func (s *Store) LatestAwaitingProof(ctx context.Context, userID int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE user_id = $1 AND status = $2 ORDER BY id DESC LIMIT 1",
		userID, models.StatusWaitingPayment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound.New("no order is waiting for a payment proof, add #<order id> to the photo caption")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order awaiting proof: %w", err)
	}
	return &order, nil
}
