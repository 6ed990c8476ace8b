package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TransactionService manages the sale transaction lifecycle. Status changes
// that cross the completed⇄cancelled boundary drive inventory side effects
// through StockService, atomically with the status change itself.
type TransactionService interface {
	// CreateSaleTransaction records a sale directly in 'completed' status,
	// consuming stock for every line item. Any item failure aborts the whole
	// creation: no transaction row, no items, no stock changes.
	CreateSaleTransaction(ctx context.Context, input CreateTransactionInput) (*SaleTransaction, error)
	// UpdateTransaction applies a partial update. A status change executes
	// the transition's inventory effects before any field persists; a failure
	// there aborts the whole update.
	UpdateTransaction(ctx context.Context, id int, patch TransactionPatch) (*SaleTransaction, error)

	GetTransaction(ctx context.Context, id int) (*SaleTransaction, error)
	GetTransactions(ctx context.Context, status *TransactionStatus) ([]SaleTransaction, error)
}

type transactionService struct {
	pool  *pgxpool.Pool
	stock StockService
}

func NewTransactionService(pool *pgxpool.Pool, stock StockService) TransactionService {
	return &transactionService{pool: pool, stock: stock}
}

func validateCreateInput(input CreateTransactionInput) error {
	if len(input.Items) == 0 {
		return &InvalidInputError{Field: "items", Reason: "must not be empty"}
	}
	for i, item := range input.Items {
		if item.Quantity <= 0 {
			return &InvalidInputError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be positive"}
		}
		if !item.UnitPrice.IsPositive() {
			return &InvalidInputError{Field: fmt.Sprintf("items[%d].unit_price", i), Reason: "must be positive"}
		}
	}
	if !input.TotalAmount.IsPositive() {
		return &InvalidInputError{Field: "total_amount", Reason: "must be positive"}
	}
	if input.DiscountAmount.IsNegative() {
		return &InvalidInputError{Field: "discount_amount", Reason: "must not be negative"}
	}
	if input.TotalAmount.Sub(input.DiscountAmount).IsNegative() {
		return &InvalidInputError{Field: "discount_amount", Reason: "exceeds total_amount"}
	}
	return nil
}

func (s *transactionService) CreateSaleTransaction(ctx context.Context, input CreateTransactionInput) (*SaleTransaction, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}
	finalAmount := input.TotalAmount.Sub(input.DiscountAmount)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &StorageError{Op: "begin sale tx", Err: err}
	}
	defer tx.Rollback(ctx)

	var txID int
	err = tx.QueryRow(ctx, `
		INSERT INTO transactions (customer_id, user_id, total_amount, discount_amount, final_amount, status, payment_method, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, input.CustomerID, input.UserID, input.TotalAmount, input.DiscountAmount, finalAmount,
		StatusCompleted, input.PaymentMethod, input.Notes).Scan(&txID)
	if err != nil {
		return nil, &StorageError{Op: "insert transaction", Err: err}
	}

	refType := RefTransaction
	for i, item := range input.Items {
		// Consume stock first: RecordMovementTx resolves and locks the
		// product, so a nonexistent product surfaces as NotFound and a
		// shortfall as InsufficientStock before the item row (with its FK on
		// products) is ever attempted. Any failure rolls everything back.
		refID := txID
		if _, err := s.stock.RecordMovementTx(ctx, tx, MovementInput{
			ProductID:     item.ProductID,
			Type:          MovementOut,
			Quantity:      item.Quantity,
			ReferenceType: &refType,
			ReferenceID:   &refID,
		}); err != nil {
			return nil, err
		}

		totalPrice := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		_, err = tx.Exec(ctx, `
			INSERT INTO transaction_items (transaction_id, product_id, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5)
		`, txID, item.ProductID, item.Quantity, item.UnitPrice, totalPrice)
		if err != nil {
			return nil, &StorageError{Op: fmt.Sprintf("insert transaction item %d", i+1), Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &StorageError{Op: "commit sale", Err: err}
	}

	return s.GetTransaction(ctx, txID)
}

func (s *transactionService) UpdateTransaction(ctx context.Context, id int, patch TransactionPatch) (*SaleTransaction, error) {
	if patch.Status != nil && !ValidStatus(*patch.Status) {
		return nil, &InvalidInputError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *patch.Status)}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &StorageError{Op: "begin update tx", Err: err}
	}
	defer tx.Rollback(ctx)

	// Lock the transaction row so concurrent status changes serialize.
	var stored SaleTransaction
	err = tx.QueryRow(ctx, `
		SELECT id, customer_id, user_id, total_amount, discount_amount, final_amount,
		       status, payment_method, notes
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&stored.ID, &stored.CustomerID, &stored.UserID, &stored.TotalAmount,
		&stored.DiscountAmount, &stored.FinalAmount, &stored.Status,
		&stored.PaymentMethod, &stored.Notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "transaction", ID: id}
		}
		return nil, &StorageError{Op: fmt.Sprintf("lock transaction %d", id), Err: err}
	}

	// Execute transition side effects before persisting any field change.
	if patch.Status != nil && *patch.Status != stored.Status {
		if err := s.applyTransitionTx(ctx, tx, id, stored.Status, *patch.Status); err != nil {
			return nil, err
		}
	}

	effectiveTotal := stored.TotalAmount
	if patch.TotalAmount != nil {
		if !patch.TotalAmount.IsPositive() {
			return nil, &InvalidInputError{Field: "total_amount", Reason: "must be positive"}
		}
		effectiveTotal = *patch.TotalAmount
	}
	effectiveDiscount := stored.DiscountAmount
	if patch.DiscountAmount != nil {
		if patch.DiscountAmount.IsNegative() {
			return nil, &InvalidInputError{Field: "discount_amount", Reason: "must not be negative"}
		}
		effectiveDiscount = *patch.DiscountAmount
	}

	set := "updated_at = NOW()"
	var args []any
	assign := func(column string, value any) {
		args = append(args, value)
		set += fmt.Sprintf(", %s = $%d", column, len(args))
	}
	if patch.CustomerID != nil {
		assign("customer_id", *patch.CustomerID)
	}
	if patch.TotalAmount != nil {
		assign("total_amount", effectiveTotal)
	}
	if patch.DiscountAmount != nil {
		assign("discount_amount", effectiveDiscount)
	}
	if patch.TotalAmount != nil || patch.DiscountAmount != nil {
		finalAmount := effectiveTotal.Sub(effectiveDiscount)
		if finalAmount.IsNegative() {
			return nil, &InvalidInputError{Field: "discount_amount", Reason: "exceeds total_amount"}
		}
		assign("final_amount", finalAmount)
	}
	if patch.Status != nil {
		assign("status", *patch.Status)
	}
	if patch.PaymentMethod != nil {
		assign("payment_method", *patch.PaymentMethod)
	}
	if patch.Notes != nil {
		assign("notes", *patch.Notes)
	}

	args = append(args, id)
	_, err = tx.Exec(ctx,
		fmt.Sprintf("UPDATE transactions SET %s WHERE id = $%d", set, len(args)),
		args...,
	)
	if err != nil {
		return nil, &StorageError{Op: fmt.Sprintf("update transaction %d", id), Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &StorageError{Op: fmt.Sprintf("commit update of transaction %d", id), Err: err}
	}

	return s.GetTransaction(ctx, id)
}

// applyTransitionTx generates the inventory movements a status transition
// requires, within the caller's transaction. Transitions that don't cross the
// completed⇄cancelled boundary are a no-op.
func (s *transactionService) applyTransitionTx(ctx context.Context, tx pgx.Tx, id int, from, to TransactionStatus) error {
	movementType, refType, ok := TransitionEffect(from, to)
	if !ok {
		return nil
	}

	items, err := fetchItemsQ(ctx, tx, id)
	if err != nil {
		return err
	}
	for _, item := range items {
		refID := id
		if _, err := s.stock.RecordMovementTx(ctx, tx, MovementInput{
			ProductID:     item.ProductID,
			Type:          movementType,
			Quantity:      item.Quantity,
			ReferenceType: &refType,
			ReferenceID:   &refID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *transactionService) GetTransaction(ctx context.Context, id int) (*SaleTransaction, error) {
	var t SaleTransaction
	err := s.pool.QueryRow(ctx, `
		SELECT id, customer_id, user_id, total_amount, discount_amount, final_amount,
		       status, payment_method, notes, created_at, updated_at
		FROM transactions
		WHERE id = $1
	`, id).Scan(
		&t.ID, &t.CustomerID, &t.UserID, &t.TotalAmount, &t.DiscountAmount,
		&t.FinalAmount, &t.Status, &t.PaymentMethod, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "transaction", ID: id}
		}
		return nil, &StorageError{Op: fmt.Sprintf("fetch transaction %d", id), Err: err}
	}

	items, err := fetchItemsQ(ctx, s.pool, id)
	if err != nil {
		return nil, err
	}
	t.Items = items
	return &t, nil
}

func (s *transactionService) GetTransactions(ctx context.Context, status *TransactionStatus) ([]SaleTransaction, error) {
	query := `
		SELECT id, customer_id, user_id, total_amount, discount_amount, final_amount,
		       status, payment_method, notes, created_at, updated_at
		FROM transactions`
	var args []any
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query transactions", Err: err}
	}
	defer rows.Close()

	var transactions []SaleTransaction
	for rows.Next() {
		var t SaleTransaction
		if err := rows.Scan(
			&t.ID, &t.CustomerID, &t.UserID, &t.TotalAmount, &t.DiscountAmount,
			&t.FinalAmount, &t.Status, &t.PaymentMethod, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, &StorageError{Op: "scan transaction", Err: err}
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate transactions", Err: err}
	}
	return transactions, nil
}

// pgxRowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers inside and outside a transaction.
type pgxRowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func fetchItemsQ(ctx context.Context, q pgxRowQuerier, transactionID int) ([]TransactionItem, error) {
	rows, err := q.Query(ctx, `
		SELECT ti.id, ti.transaction_id, ti.product_id, p.name,
		       ti.quantity, ti.unit_price, ti.total_price
		FROM transaction_items ti
		JOIN products p ON p.id = ti.product_id
		WHERE ti.transaction_id = $1
		ORDER BY ti.id
	`, transactionID)
	if err != nil {
		return nil, &StorageError{Op: fmt.Sprintf("query items of transaction %d", transactionID), Err: err}
	}
	defer rows.Close()

	var items []TransactionItem
	for rows.Next() {
		var item TransactionItem
		if err := rows.Scan(
			&item.ID, &item.TransactionID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice,
		); err != nil {
			return nil, &StorageError{Op: "scan transaction item", Err: err}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate transaction items", Err: err}
	}
	return items, nil
}
