package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockService is the only code path allowed to change a product's
// stock_quantity. Every change is applied together with its ledger entry, or
// not at all.
type StockService interface {
	// Standalone operations (manage their own transactions).
	RecordMovement(ctx context.Context, input MovementInput) (*InventoryMovement, error)
	// AdjustInventory records a manual signed correction with reference_type 'manual'.
	AdjustInventory(ctx context.Context, productID, quantity int, notes string) (*InventoryMovement, error)
	GetMovements(ctx context.Context, filter MovementFilter) ([]InventoryMovement, error)
	GetStockLevels(ctx context.Context) ([]StockLevel, error)
	GetProduct(ctx context.Context, productID int) (*Product, error)

	// RecordMovementTx works within a caller-provided transaction.
	// Used by TransactionService to keep inventory changes atomic with
	// sale creation and status transitions.
	RecordMovementTx(ctx context.Context, tx pgx.Tx, input MovementInput) (*InventoryMovement, error)
}

type stockService struct {
	pool *pgxpool.Pool
}

func NewStockService(pool *pgxpool.Pool) StockService {
	return &stockService{pool: pool}
}

// movementDelta computes the signed stock delta a movement applies. The ledger
// row stores exactly this value, so "out" rows are negative.
func movementDelta(t MovementType, quantity int) (int, error) {
	if quantity == 0 {
		return 0, &InvalidInputError{Field: "quantity", Reason: "must be non-zero"}
	}
	switch t {
	case MovementIn:
		if quantity < 0 {
			return 0, &InvalidInputError{Field: "quantity", Reason: "must be positive for 'in' movements"}
		}
		return quantity, nil
	case MovementOut:
		if quantity < 0 {
			quantity = -quantity
		}
		return -quantity, nil
	case MovementAdjustment:
		return quantity, nil
	}
	return 0, &InvalidInputError{Field: "movement_type", Reason: fmt.Sprintf("unknown type %q", t)}
}

func (s *stockService) RecordMovement(ctx context.Context, input MovementInput) (*InventoryMovement, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &StorageError{Op: "begin movement tx", Err: err}
	}
	defer tx.Rollback(ctx)

	m, err := s.RecordMovementTx(ctx, tx, input)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &StorageError{Op: fmt.Sprintf("commit movement for product %d", input.ProductID), Err: err}
	}
	return m, nil
}

func (s *stockService) RecordMovementTx(ctx context.Context, tx pgx.Tx, input MovementInput) (*InventoryMovement, error) {
	delta, err := movementDelta(input.Type, input.Quantity)
	if err != nil {
		return nil, err
	}

	// Lock the product row. This is the per-product serialization point:
	// concurrent movements against the same product queue up here and each
	// sees the previous one's resulting stock_quantity.
	var current int
	err = tx.QueryRow(ctx,
		"SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE",
		input.ProductID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "product", ID: input.ProductID}
		}
		return nil, &StorageError{Op: fmt.Sprintf("lock product %d", input.ProductID), Err: err}
	}

	newStock := current + delta
	if newStock < 0 {
		return nil, &InsufficientStockError{ProductID: input.ProductID, Current: current, Requested: delta}
	}

	m := InventoryMovement{
		ProductID:     input.ProductID,
		MovementType:  input.Type,
		Quantity:      delta,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		Notes:         input.Notes,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO inventory_movements (product_id, movement_type, quantity, reference_type, reference_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, input.ProductID, input.Type, delta, input.ReferenceType, input.ReferenceID, input.Notes).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, &StorageError{Op: fmt.Sprintf("insert movement for product %d", input.ProductID), Err: err}
	}

	_, err = tx.Exec(ctx,
		"UPDATE products SET stock_quantity = $1, updated_at = NOW() WHERE id = $2",
		newStock, input.ProductID,
	)
	if err != nil {
		return nil, &StorageError{Op: fmt.Sprintf("update stock for product %d", input.ProductID), Err: err}
	}

	return &m, nil
}

func (s *stockService) AdjustInventory(ctx context.Context, productID, quantity int, notes string) (*InventoryMovement, error) {
	ref := RefManual
	return s.RecordMovement(ctx, MovementInput{
		ProductID:     productID,
		Type:          MovementAdjustment,
		Quantity:      quantity,
		ReferenceType: &ref,
		Notes:         notes,
	})
}

func (s *stockService) GetMovements(ctx context.Context, filter MovementFilter) ([]InventoryMovement, error) {
	query := `
		SELECT im.id, im.product_id, p.name, im.movement_type, im.quantity,
		       im.reference_type, im.reference_id, COALESCE(im.notes, ''), im.created_at
		FROM inventory_movements im
		JOIN products p ON p.id = im.product_id
		WHERE 1=1`
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		query += fmt.Sprintf(" AND %s = $%d", clause, len(args))
	}
	if filter.ProductID != nil {
		add("im.product_id", *filter.ProductID)
	}
	if filter.Type != nil {
		add("im.movement_type", *filter.Type)
	}
	if filter.ReferenceType != nil {
		add("im.reference_type", *filter.ReferenceType)
	}
	if filter.ReferenceID != nil {
		add("im.reference_id", *filter.ReferenceID)
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND im.created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND im.created_at <= $%d", len(args))
	}

	sortBy := filter.SortBy
	switch sortBy {
	case "":
		sortBy = SortByCreatedAt
	case SortByCreatedAt, SortByQuantity:
	default:
		return nil, &InvalidInputError{Field: "sort", Reason: fmt.Sprintf("unknown sort key %q", sortBy)}
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	// Tiebreak on id so pagination is stable.
	query += fmt.Sprintf(" ORDER BY im.%s %s, im.id %s", sortBy, direction, direction)

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query movements", Err: err}
	}
	defer rows.Close()

	var movements []InventoryMovement
	for rows.Next() {
		var m InventoryMovement
		if err := rows.Scan(
			&m.ID, &m.ProductID, &m.ProductName, &m.MovementType, &m.Quantity,
			&m.ReferenceType, &m.ReferenceID, &m.Notes, &m.CreatedAt,
		); err != nil {
			return nil, &StorageError{Op: "scan movement", Err: err}
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate movements", Err: err}
	}
	return movements, nil
}

func (s *stockService) GetStockLevels(ctx context.Context) ([]StockLevel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, stock_quantity
		FROM products
		ORDER BY name, id
	`)
	if err != nil {
		return nil, &StorageError{Op: "query stock levels", Err: err}
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.ProductID, &sl.ProductName, &sl.StockQuantity); err != nil {
			return nil, &StorageError{Op: "scan stock level", Err: err}
		}
		levels = append(levels, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate stock levels", Err: err}
	}
	return levels, nil
}

func (s *stockService) GetProduct(ctx context.Context, productID int) (*Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, price, stock_quantity, created_at, updated_at
		FROM products
		WHERE id = $1
	`, productID).Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "product", ID: productID}
		}
		return nil, &StorageError{Op: fmt.Sprintf("fetch product %d", productID), Err: err}
	}
	return &p, nil
}
