package core_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"pos-backend/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// setupTestDB connects to the dedicated test database, wipes the core tables,
// and seeds one user, one customer, and three products. Integration tests skip
// when TEST_DATABASE_URL is not set. The schema itself is applied with
// cmd/migrate beforehand.
func setupTestDB(t *testing.T) (*pgxpool.Pool, context.Context) {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE inventory_movements, transaction_items, transactions, products, customers, users
		RESTART IDENTITY CASCADE;

		INSERT INTO users (username, role) VALUES ('cashier1', 'cashier');

		INSERT INTO customers (name, email) VALUES ('Walk-in Customer', 'walkin@example.com');

		INSERT INTO products (name, price, stock_quantity) VALUES
		('Espresso Beans 1kg', 18.50, 100),
		('Paper Cups 50pk',     5.25,  50),
		('Bottled Water',       1.10,   0);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool, ctx
}

// getStock is a helper to read a product's current stock_quantity.
func getStock(t *testing.T, ctx context.Context, pool *pgxpool.Pool, productID int) int {
	t.Helper()
	var qty int
	if err := pool.QueryRow(ctx, "SELECT stock_quantity FROM products WHERE id = $1", productID).Scan(&qty); err != nil {
		t.Fatalf("Failed to read stock for product %d: %v", productID, err)
	}
	return qty
}

// countMovements counts ledger entries for a product.
func countMovements(t *testing.T, ctx context.Context, pool *pgxpool.Pool, productID int) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM inventory_movements WHERE product_id = $1", productID).Scan(&n); err != nil {
		t.Fatalf("Failed to count movements for product %d: %v", productID, err)
	}
	return n
}

func TestStockService_SignConvention(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)

	// "in" stores a positive delta.
	m, err := svc.RecordMovement(ctx, core.MovementInput{ProductID: 1, Type: core.MovementIn, Quantity: 20})
	if err != nil {
		t.Fatalf("in movement failed: %v", err)
	}
	if m.Quantity != 20 {
		t.Errorf("in movement stored delta %d, want 20", m.Quantity)
	}
	if got := getStock(t, ctx, pool, 1); got != 120 {
		t.Errorf("stock after in = %d, want 120", got)
	}

	// "out" accepts a positive magnitude but stores a negative delta.
	m, err = svc.RecordMovement(ctx, core.MovementInput{ProductID: 1, Type: core.MovementOut, Quantity: 30})
	if err != nil {
		t.Fatalf("out movement failed: %v", err)
	}
	if m.Quantity != -30 {
		t.Errorf("out movement stored delta %d, want -30", m.Quantity)
	}
	if got := getStock(t, ctx, pool, 1); got != 90 {
		t.Errorf("stock after out = %d, want 90", got)
	}

	// "adjustment" stores the caller-signed value verbatim.
	m, err = svc.RecordMovement(ctx, core.MovementInput{ProductID: 1, Type: core.MovementAdjustment, Quantity: -15})
	if err != nil {
		t.Fatalf("adjustment movement failed: %v", err)
	}
	if m.Quantity != -15 {
		t.Errorf("adjustment stored delta %d, want -15", m.Quantity)
	}
	if got := getStock(t, ctx, pool, 1); got != 75 {
		t.Errorf("stock after adjustment = %d, want 75", got)
	}
}

func TestStockService_InsufficientStock(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)

	before := getStock(t, ctx, pool, 2) // 50
	_, err := svc.RecordMovement(ctx, core.MovementInput{ProductID: 2, Type: core.MovementOut, Quantity: 200})
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	var insufficientErr *core.InsufficientStockError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("expected *InsufficientStockError, got %T", err)
	}
	if insufficientErr.ProductID != 2 || insufficientErr.Current != 50 || insufficientErr.Requested != -200 {
		t.Errorf("error context = %+v, want product 2, current 50, requested -200", insufficientErr)
	}

	// Check-then-act is atomic: nothing changed, nothing was recorded.
	if got := getStock(t, ctx, pool, 2); got != before {
		t.Errorf("stock changed from %d to %d on rejected movement", before, got)
	}
	if n := countMovements(t, ctx, pool, 2); n != 0 {
		t.Errorf("rejected movement left %d ledger entries", n)
	}
}

func TestStockService_ProductNotFound(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)

	_, err := svc.RecordMovement(ctx, core.MovementInput{ProductID: 9999, Type: core.MovementIn, Quantity: 5})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var notFoundErr *core.NotFoundError
	if !errors.As(err, &notFoundErr) || notFoundErr.Entity != "product" || notFoundErr.ID != 9999 {
		t.Errorf("expected product 9999 in error context, got %v", err)
	}
}

func TestStockService_InvalidInput(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)

	tests := []struct {
		name  string
		input core.MovementInput
	}{
		{"zero quantity", core.MovementInput{ProductID: 1, Type: core.MovementIn, Quantity: 0}},
		{"negative in", core.MovementInput{ProductID: 1, Type: core.MovementIn, Quantity: -10}},
		{"unknown type", core.MovementInput{ProductID: 1, Type: "transfer", Quantity: 10}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.RecordMovement(ctx, tc.input); !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	if got := getStock(t, ctx, pool, 1); got != 100 {
		t.Errorf("stock changed to %d by rejected inputs, want 100", got)
	}
}

func TestStockService_AdjustInventory(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)

	m, err := svc.AdjustInventory(ctx, 1, -15, "damage")
	if err != nil {
		t.Fatalf("AdjustInventory failed: %v", err)
	}
	if m.MovementType != core.MovementAdjustment || m.Quantity != -15 {
		t.Errorf("adjustment = type %s delta %d, want adjustment/-15", m.MovementType, m.Quantity)
	}
	if m.ReferenceType == nil || *m.ReferenceType != core.RefManual {
		t.Errorf("adjustment reference_type = %v, want %q", m.ReferenceType, core.RefManual)
	}
	if m.Notes != "damage" {
		t.Errorf("adjustment notes = %q, want %q", m.Notes, "damage")
	}
	if got := getStock(t, ctx, pool, 1); got != 85 {
		t.Errorf("stock after adjustment = %d, want 85", got)
	}
}

func TestStockService_LedgerStockAgreement(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)

	initial := getStock(t, ctx, pool, 1)
	steps := []core.MovementInput{
		{ProductID: 1, Type: core.MovementIn, Quantity: 40},
		{ProductID: 1, Type: core.MovementOut, Quantity: 25},
		{ProductID: 1, Type: core.MovementAdjustment, Quantity: -7},
		{ProductID: 1, Type: core.MovementAdjustment, Quantity: 3},
		{ProductID: 1, Type: core.MovementOut, Quantity: 11},
	}
	for i, input := range steps {
		if _, err := svc.RecordMovement(ctx, input); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}

	// Summing applied deltas must reproduce the stock drift since seeding.
	var deltaSum int
	if err := pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(quantity), 0) FROM inventory_movements WHERE product_id = 1",
	).Scan(&deltaSum); err != nil {
		t.Fatalf("Failed to sum deltas: %v", err)
	}
	if got := getStock(t, ctx, pool, 1); got-initial != deltaSum {
		t.Errorf("ledger sum %d does not match stock drift %d", deltaSum, got-initial)
	}
}

func TestStockService_GetMovements(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)

	seed := []core.MovementInput{
		{ProductID: 1, Type: core.MovementIn, Quantity: 10},
		{ProductID: 1, Type: core.MovementOut, Quantity: 4},
		{ProductID: 2, Type: core.MovementIn, Quantity: 8},
		{ProductID: 1, Type: core.MovementAdjustment, Quantity: -2},
	}
	for i, input := range seed {
		if _, err := svc.RecordMovement(ctx, input); err != nil {
			t.Fatalf("seed movement %d failed: %v", i, err)
		}
	}

	productID := 1
	byProduct, err := svc.GetMovements(ctx, core.MovementFilter{ProductID: &productID})
	if err != nil {
		t.Fatalf("GetMovements by product failed: %v", err)
	}
	if len(byProduct) != 3 {
		t.Fatalf("movements for product 1 = %d, want 3", len(byProduct))
	}
	for _, m := range byProduct {
		if m.ProductID != 1 {
			t.Errorf("filter leaked product %d", m.ProductID)
		}
		if m.ProductName != "Espresso Beans 1kg" {
			t.Errorf("joined product name = %q", m.ProductName)
		}
	}

	movementType := core.MovementIn
	byType, err := svc.GetMovements(ctx, core.MovementFilter{Type: &movementType})
	if err != nil {
		t.Fatalf("GetMovements by type failed: %v", err)
	}
	if len(byType) != 2 {
		t.Errorf("in movements = %d, want 2", len(byType))
	}

	// Ordering by quantity descending: +10, +8, -2, -4.
	sorted, err := svc.GetMovements(ctx, core.MovementFilter{SortBy: core.SortByQuantity, SortDesc: true})
	if err != nil {
		t.Fatalf("GetMovements sorted failed: %v", err)
	}
	want := []int{10, 8, -2, -4}
	if len(sorted) != len(want) {
		t.Fatalf("sorted movements = %d, want %d", len(sorted), len(want))
	}
	for i, m := range sorted {
		if m.Quantity != want[i] {
			t.Errorf("sorted[%d].Quantity = %d, want %d", i, m.Quantity, want[i])
		}
	}

	// Pagination is stable across calls absent writes.
	page1, err := svc.GetMovements(ctx, core.MovementFilter{Limit: 2})
	if err != nil {
		t.Fatalf("GetMovements page 1 failed: %v", err)
	}
	page1Again, err := svc.GetMovements(ctx, core.MovementFilter{Limit: 2})
	if err != nil {
		t.Fatalf("GetMovements page 1 retry failed: %v", err)
	}
	if len(page1) != 2 || len(page1Again) != 2 {
		t.Fatalf("page sizes = %d, %d, want 2, 2", len(page1), len(page1Again))
	}
	for i := range page1 {
		if page1[i].ID != page1Again[i].ID {
			t.Errorf("repeated listing differs at %d: %d vs %d", i, page1[i].ID, page1Again[i].ID)
		}
	}

	if _, err := svc.GetMovements(ctx, core.MovementFilter{SortBy: "price"}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown sort key, got %v", err)
	}
}

// Concurrent out movements against one product must serialize on the product
// row: each contender sees the previous one's resulting stock, grants never
// exceed what is on hand, and stock never goes negative.
func TestStockService_ConcurrentMovementsSerialize(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)

	// Product 2 starts at 50; 10 contenders want 12 each, so at most 4 can win.
	const (
		contenders = 10
		qty        = 12
		initial    = 50
	)

	var wg sync.WaitGroup
	var granted, rejected atomic.Int64
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordMovement(ctx, core.MovementInput{ProductID: 2, Type: core.MovementOut, Quantity: qty})
			switch {
			case err == nil:
				granted.Add(1)
			case errors.Is(err, core.ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if granted.Load() != 4 || rejected.Load() != contenders-4 {
		t.Errorf("granted = %d, rejected = %d, want 4 and %d", granted.Load(), rejected.Load(), contenders-4)
	}
	final := getStock(t, ctx, pool, 2)
	if final != initial-int(granted.Load())*qty {
		t.Errorf("final stock = %d, want %d", final, initial-int(granted.Load())*qty)
	}
	if final < 0 {
		t.Errorf("stock went negative: %d", final)
	}

	// Only winners left ledger entries, and their deltas reproduce the drift.
	if n := countMovements(t, ctx, pool, 2); n != int(granted.Load()) {
		t.Errorf("ledger entries = %d, want %d", n, granted.Load())
	}
	var deltaSum int
	if err := pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(quantity), 0) FROM inventory_movements WHERE product_id = 2",
	).Scan(&deltaSum); err != nil {
		t.Fatalf("Failed to sum deltas: %v", err)
	}
	if final-initial != deltaSum {
		t.Errorf("ledger sum %d does not match stock drift %d", deltaSum, final-initial)
	}
}

func TestStockService_GetStockLevels(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)

	levels, err := svc.GetStockLevels(ctx)
	if err != nil {
		t.Fatalf("GetStockLevels failed: %v", err)
	}
	if len(levels) != 3 {
		t.Fatalf("stock levels = %d, want 3", len(levels))
	}
	byName := make(map[string]int)
	for _, sl := range levels {
		byName[sl.ProductName] = sl.StockQuantity
	}
	if byName["Espresso Beans 1kg"] != 100 || byName["Paper Cups 50pk"] != 50 || byName["Bottled Water"] != 0 {
		t.Errorf("unexpected stock levels: %v", byName)
	}
}
