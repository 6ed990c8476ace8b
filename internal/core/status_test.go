package core_test

import (
	"errors"
	"testing"

	"pos-backend/internal/core"
)

func TestTransitionEffect(t *testing.T) {
	tests := []struct {
		name     string
		from, to core.TransactionStatus
		wantType core.MovementType
		wantRef  string
		wantOK   bool
	}{
		{"completed to cancelled restores stock",
			core.StatusCompleted, core.StatusCancelled, core.MovementIn, core.RefTransactionCancellation, true},
		{"cancelled to completed re-consumes stock",
			core.StatusCancelled, core.StatusCompleted, core.MovementOut, core.RefTransactionCompletion, true},
		{"pending to completed is administrative",
			core.StatusPending, core.StatusCompleted, "", "", false},
		{"completed to pending is administrative",
			core.StatusCompleted, core.StatusPending, "", "", false},
		{"pending to cancelled is administrative",
			core.StatusPending, core.StatusCancelled, "", "", false},
		{"cancelled to pending is administrative",
			core.StatusCancelled, core.StatusPending, "", "", false},
		{"unchanged status is a no-op",
			core.StatusCompleted, core.StatusCompleted, "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			movementType, refType, ok := core.TransitionEffect(tc.from, tc.to)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if movementType != tc.wantType || refType != tc.wantRef {
				t.Errorf("effect = (%s, %s), want (%s, %s)", movementType, refType, tc.wantType, tc.wantRef)
			}
		})
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []core.TransactionStatus{core.StatusPending, core.StatusCompleted, core.StatusCancelled} {
		if !core.ValidStatus(s) {
			t.Errorf("ValidStatus(%s) = false", s)
		}
	}
	for _, s := range []core.TransactionStatus{"", "COMPLETED", "refunded"} {
		if core.ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = true", s)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	notFound := &core.NotFoundError{Entity: "product", ID: 7}
	if !errors.Is(notFound, core.ErrNotFound) {
		t.Error("NotFoundError does not match ErrNotFound")
	}

	insufficient := &core.InsufficientStockError{ProductID: 7, Current: 5, Requested: -10}
	if !errors.Is(insufficient, core.ErrInsufficientStock) {
		t.Error("InsufficientStockError does not match ErrInsufficientStock")
	}
	var asInsufficient *core.InsufficientStockError
	if !errors.As(error(insufficient), &asInsufficient) || asInsufficient.Current != 5 {
		t.Error("errors.As did not recover InsufficientStockError context")
	}

	invalid := &core.InvalidInputError{Field: "quantity", Reason: "must be non-zero"}
	if !errors.Is(invalid, core.ErrInvalidInput) {
		t.Error("InvalidInputError does not match ErrInvalidInput")
	}

	storage := &core.StorageError{Op: "commit", Err: errors.New("connection reset")}
	if !errors.Is(storage, core.ErrStorage) {
		t.Error("StorageError does not match ErrStorage")
	}

	// Retry policy: only storage failures are retryable; everything else is
	// the caller's problem.
	if core.IsRetryable(notFound) || core.IsRetryable(insufficient) || core.IsRetryable(invalid) {
		t.Error("business-rule rejection reported as retryable")
	}
	if !core.IsRetryable(storage) {
		t.Error("storage failure not reported as retryable")
	}
	if !core.IsClientError(notFound) || !core.IsClientError(insufficient) || !core.IsClientError(invalid) {
		t.Error("client error not reported as such")
	}
	if core.IsClientError(storage) {
		t.Error("storage failure reported as client error")
	}
}
