package workflow_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/kitchen_backend/workflow"
)

func TestBeginIdempotency(t *testing.T) {
	db := openTestDB(t)
	const scope, handler = "instance-a", "order-events-push"

	skip, err := workflow.BeginIdempotency(db, scope, handler, "m1")
	if err != nil || skip {
		t.Fatalf("first delivery: expected (false, nil), got (%v, %v)", skip, err)
	}
	if _, err := workflow.BeginIdempotency(db, scope, handler, "m1"); !errors.Is(err, workflow.ErrIdempotencyInProgress) {
		t.Fatalf("concurrent redelivery: expected ErrIdempotencyInProgress, got %v", err)
	}

	// another instance keeps its own record
	if skip, err := workflow.BeginIdempotency(db, "instance-b", handler, "m1"); err != nil || skip {
		t.Fatalf("other scope: expected (false, nil), got (%v, %v)", skip, err)
	}

	if err := workflow.MarkIdempotencySucceeded(db, scope, handler, "m1"); err != nil {
		t.Fatalf("MarkIdempotencySucceeded: %v", err)
	}
	skip, err = workflow.BeginIdempotency(db, scope, handler, "m1")
	if err != nil || !skip {
		t.Fatalf("after success: expected (true, nil), got (%v, %v)", skip, err)
	}

	if _, err := workflow.BeginIdempotency(db, scope, handler, "m2"); err != nil {
		t.Fatalf("BeginIdempotency m2: %v", err)
	}
	if err := workflow.MarkIdempotencyFailed(db, scope, handler, "m2", errors.New("socket gone")); err != nil {
		t.Fatalf("MarkIdempotencyFailed: %v", err)
	}
	skip, err = workflow.BeginIdempotency(db, scope, handler, "m2")
	if err != nil || skip {
		t.Fatalf("after failure: expected a retry (false, nil), got (%v, %v)", skip, err)
	}
}
