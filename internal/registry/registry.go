// Package registry implements the per-request status record: insertion on
// admission, atomic mutation funnelled through Update, and snapshot reads
// for the status service. Direct field writes from outside the registry
// lock are not possible; all mutation goes through Update.
package registry

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ExecutionStatus tracks whether the program has run yet and whether it
// stayed within its cycle/gas budget.
type ExecutionStatus int

const (
	Unexecuted ExecutionStatus = iota
	Executed
	Unexecutable
)

func (s ExecutionStatus) String() string {
	switch s {
	case Unexecuted:
		return "unexecuted"
	case Executed:
		return "executed"
	case Unexecutable:
		return "unexecutable"
	default:
		return "unknown"
	}
}

// FulfillmentStatus is the coarse lifecycle state of a request. It may only
// advance Requested -> Assigned -> {Fulfilled, Unfulfillable}; Fulfilled and
// Unfulfillable are terminal.
type FulfillmentStatus int

const (
	Requested FulfillmentStatus = iota
	Assigned
	Fulfilled
	Unfulfillable
)

func (s FulfillmentStatus) String() string {
	switch s {
	case Requested:
		return "requested"
	case Assigned:
		return "assigned"
	case Fulfilled:
		return "fulfilled"
	case Unfulfillable:
		return "unfulfillable"
	default:
		return "unknown"
	}
}

// terminal reports whether s cannot advance further.
func (s FulfillmentStatus) terminal() bool {
	return s == Fulfilled || s == Unfulfillable
}

// rank gives the total order Requested < Assigned < {Fulfilled,Unfulfillable}
// used to reject regressions in Update.
func (s FulfillmentStatus) rank() int {
	switch s {
	case Requested:
		return 0
	case Assigned:
		return 1
	case Fulfilled, Unfulfillable:
		return 2
	default:
		return -1
	}
}

// Record is the mutable per-request status record keyed by request id.
type Record struct {
	RequestTxHash     []byte
	ExecutionStatus   ExecutionStatus
	FulfillmentStatus FulfillmentStatus
	FulfillTxHash     []byte
	ProofURI          string
	Deadline          time.Time
}

// snapshot returns a value copy safe to hand to callers outside the lock.
func (r Record) snapshot() Record { return r }

// ErrRegressed is returned by Update when a mutator tries to move
// FulfillmentStatus backwards or past a terminal state.
var ErrRegressed = fmt.Errorf("registry: fulfillment status may not regress")

// ErrNotFound is returned by Get/Update when no record exists for the id.
var ErrNotFound = fmt.Errorf("registry: no record for request id")

// Registry is the capacity-bounded, LRU-evicted table of request records.
// A Record exists iff the coordination network has acknowledged the
// request; Registry never invents one.
type Registry struct {
	mu      sync.Mutex
	records *lru.Cache[string, *Record]
}

// DefaultCapacity bounds how many request records are retained before the
// oldest are evicted.
const DefaultCapacity = 256

// New constructs a Registry with the given capacity (<=0 uses
// DefaultCapacity).
func New(capacity int) (*Registry, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	records, err := lru.New[string, *Record](capacity)
	if err != nil {
		return nil, err
	}
	return &Registry{records: records}, nil
}

// Insert creates the initial record for id: (Unexecuted, Requested). id is
// the network's request_id, never a locally minted one.
func (r *Registry) Insert(id string, txHash []byte, deadline time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records.Add(id, &Record{
		RequestTxHash:     txHash,
		ExecutionStatus:   Unexecuted,
		FulfillmentStatus: Requested,
		Deadline:          deadline,
	})
}

// Get returns a snapshot of the record for id.
func (r *Registry) Get(id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records.Get(id)
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.snapshot(), nil
}

// Mutator mutates a Record in place under the registry lock. It must not
// retain rec beyond the call.
type Mutator func(rec *Record)

// Update applies mutator atomically under the registry lock. It refuses to
// let FulfillmentStatus move backwards or away from a terminal state. A
// refused update returns ErrRegressed and applies none of the mutator's
// changes; an update that leaves FulfillmentStatus unchanged may set
// ExecutionStatus, tx hashes, and proof_uri freely.
func (r *Registry) Update(id string, mutator Mutator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records.Get(id)
	if !ok {
		return ErrNotFound
	}
	before := rec.FulfillmentStatus
	working := *rec
	mutator(&working)

	if working.FulfillmentStatus != before {
		if before.terminal() {
			return ErrRegressed
		}
		if working.FulfillmentStatus.rank() < before.rank() {
			return ErrRegressed
		}
	}
	*rec = working
	return nil
}
