package netclient

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Fake is an in-process Client used by tests and local development so the
// whole admit -> execute -> prove -> commit lifecycle can be exercised
// without a live coordination network, the same role MockProver plays for
// the GPU prover.
type Fake struct {
	mu               sync.Mutex
	nextRequestID    uint64
	nextNonce        uint64
	programs         map[[32]byte]Program
	fulfilled        map[string][]byte // request id -> tx hash, set exactly once
	failed           map[string][]byte
	fulfillProofCall int32
	failCall         int32
}

var _ Client = (*Fake)(nil)

// NewFake returns an empty Fake coordination-network client.
func NewFake() *Fake {
	return &Fake{
		programs:  make(map[[32]byte]Program),
		fulfilled: make(map[string][]byte),
		failed:    make(map[string][]byte),
	}
}

// RegisterProgram pre-seeds the fake network's program registry, as if an
// earlier CreateProgram had already run.
func (f *Fake) RegisterProgram(vkHash [32]byte, uri string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.programs[vkHash] = Program{VKHash: vkHash, ProgramURI: uri}
}

func (f *Fake) CreateProgram(_ context.Context, programURI string) (Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var vk [32]byte
	copy(vk[:], []byte(programURI))
	p := Program{VKHash: vk, ProgramURI: programURI}
	f.programs[vk] = p
	return p, nil
}

func (f *Fake) GetProgram(_ context.Context, vkHash [32]byte) (Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.programs[vkHash]
	if !ok {
		return Program{}, fmt.Errorf("netclient/fake: program %x not registered", vkHash)
	}
	return p, nil
}

func (f *Fake) GetNonce(_ context.Context, _ []byte) (Nonce, error) {
	n := atomic.AddUint64(&f.nextNonce, 1)
	return Nonce{Value: n}, nil
}

func (f *Fake) RequestProof(_ context.Context, body RequestProofBody) (RequestProofResult, error) {
	n := atomic.AddUint64(&f.nextRequestID, 1)
	return RequestProofResult{
		TxHash:    []byte(fmt.Sprintf("tx-%d", n)),
		RequestID: fmt.Sprintf("req-%d", n),
	}, nil
}

func (f *Fake) GetProofRequestStatus(_ context.Context, requestID string) (FulfillResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx, ok := f.fulfilled[requestID]; ok {
		return FulfillResult{TxHash: tx}, nil
	}
	if tx, ok := f.failed[requestID]; ok {
		return FulfillResult{TxHash: tx}, nil
	}
	return FulfillResult{}, fmt.Errorf("netclient/fake: unknown request id %s", requestID)
}

// FulfillProof records at most one acceptance per request id, the same
// dedup the real network applies.
func (f *Fake) FulfillProof(_ context.Context, body FulfillProofBody, _ []byte) (FulfillResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, already := f.fulfilled[body.RequestID]; already {
		return FulfillResult{}, fmt.Errorf("netclient/fake: request %s already fulfilled", body.RequestID)
	}
	atomic.AddInt32(&f.fulfillProofCall, 1)
	tx := []byte(fmt.Sprintf("fulfill-tx-%s", body.RequestID))
	f.fulfilled[body.RequestID] = tx
	return FulfillResult{TxHash: tx}, nil
}

func (f *Fake) FailFulfillment(_ context.Context, body FailFulfillmentBody, _ []byte) (FulfillResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, already := f.failed[body.RequestID]; already {
		return FulfillResult{}, fmt.Errorf("netclient/fake: request %s already failed", body.RequestID)
	}
	atomic.AddInt32(&f.failCall, 1)
	tx := []byte(fmt.Sprintf("fail-tx-%s", body.RequestID))
	f.failed[body.RequestID] = tx
	return FulfillResult{TxHash: tx}, nil
}

func (f *Fake) Close() error { return nil }

// FulfillProofCalls reports how many FulfillProof calls were accepted.
func (f *Fake) FulfillProofCalls() int { return int(atomic.LoadInt32(&f.fulfillProofCall)) }

// FailFulfillmentCalls reports how many FailFulfillment calls were accepted.
func (f *Fake) FailFulfillmentCalls() int { return int(atomic.LoadInt32(&f.failCall)) }
