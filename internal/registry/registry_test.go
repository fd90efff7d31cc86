package registry

import (
	"testing"
	"time"
)

func TestInsertThenGet(t *testing.T) {
	r, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	deadline := time.Now().Add(time.Hour)
	r.Insert("req-1", []byte("tx1"), deadline)

	rec, err := r.Get("req-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.FulfillmentStatus != Requested || rec.ExecutionStatus != Unexecuted {
		t.Fatalf("unexpected initial record: %+v", rec)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	r, _ := New(4)
	if _, err := r.Get("missing"); err != ErrNotFound {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateMonotoneTransitions(t *testing.T) {
	r, _ := New(4)
	r.Insert("req-1", nil, time.Now())

	if err := r.Update("req-1", func(rec *Record) { rec.FulfillmentStatus = Assigned }); err != nil {
		t.Fatalf("Requested->Assigned: %v", err)
	}
	if err := r.Update("req-1", func(rec *Record) { rec.FulfillmentStatus = Fulfilled }); err != nil {
		t.Fatalf("Assigned->Fulfilled: %v", err)
	}

	// Terminal: any change of FulfillmentStatus away from Fulfilled must be
	// rejected.
	if err := r.Update("req-1", func(rec *Record) { rec.FulfillmentStatus = Unfulfillable }); err != ErrRegressed {
		t.Fatalf("Fulfilled->Unfulfillable error = %v, want ErrRegressed", err)
	}

	rec, _ := r.Get("req-1")
	if rec.FulfillmentStatus != Fulfilled {
		t.Fatalf("status regressed: %v", rec.FulfillmentStatus)
	}
}

func TestUpdateRejectsRegression(t *testing.T) {
	r, _ := New(4)
	r.Insert("req-1", nil, time.Now())
	r.Update("req-1", func(rec *Record) { rec.FulfillmentStatus = Assigned })

	if err := r.Update("req-1", func(rec *Record) { rec.FulfillmentStatus = Requested }); err != ErrRegressed {
		t.Fatalf("Assigned->Requested error = %v, want ErrRegressed", err)
	}
}

func TestUpdateAllowsNonStatusFieldsFreely(t *testing.T) {
	r, _ := New(4)
	r.Insert("req-1", nil, time.Now())
	err := r.Update("req-1", func(rec *Record) {
		rec.ExecutionStatus = Executed
		rec.FulfillmentStatus = Assigned
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	rec, _ := r.Get("req-1")
	if rec.ExecutionStatus != Executed {
		t.Fatalf("ExecutionStatus not updated: %v", rec.ExecutionStatus)
	}
}
