package status

import (
	"testing"
	"time"

	"github.com/succinctlabs/sp1-tee-private-proving/internal/key"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/prover"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/registry"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/store"
)

func TestGetProofRequestStatusUnfulfilledHasNoDownloadURL(t *testing.T) {
	r, err := registry.New(8)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	s, err := store.New(8, 4, nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	r.Insert("req-1", []byte("tx"), time.Now().Add(time.Hour))

	svc := New("https://tee.example.com", r, s)
	out, err := svc.GetProofRequestStatus("req-1")
	if err != nil {
		t.Fatalf("GetProofRequestStatus: %v", err)
	}
	if out.FulfillmentStatus != registry.Requested {
		t.Fatalf("FulfillmentStatus = %v, want Requested", out.FulfillmentStatus)
	}
	if out.DownloadURL != "" {
		t.Fatalf("DownloadURL = %q, want empty", out.DownloadURL)
	}
}

func TestGetProofRequestStatusFulfilledSynthesisesDownloadURL(t *testing.T) {
	r, err := registry.New(8)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	s, err := store.New(8, 4, nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	r.Insert("req-2", []byte("tx"), time.Now().Add(time.Hour))

	proofKey := key.Generate(key.TypeProof)
	proofURI := proofKey.AsPresignedURL("https://tee.example.com")
	s.InsertArtifact(proofKey, store.Artifact{Proof: &prover.Proof{EncodedProof: []byte("proof")}})

	if err := r.Update("req-2", func(rec *registry.Record) {
		rec.FulfillmentStatus = registry.Assigned
	}); err != nil {
		t.Fatalf("Update to Assigned: %v", err)
	}
	if err := r.Update("req-2", func(rec *registry.Record) {
		rec.FulfillmentStatus = registry.Fulfilled
		rec.FulfillTxHash = []byte("fulfill-tx")
		rec.ProofURI = proofURI
	}); err != nil {
		t.Fatalf("Update to Fulfilled: %v", err)
	}

	svc := New("https://tee.example.com", r, s)
	out, err := svc.GetProofRequestStatus("req-2")
	if err != nil {
		t.Fatalf("GetProofRequestStatus: %v", err)
	}
	if out.DownloadURL == "" {
		t.Fatal("expected a synthesised download URL for a fulfilled, still-cached proof")
	}
}

func TestGetProofRequestStatusFulfilledButEvictedHasNoDownloadURL(t *testing.T) {
	r, err := registry.New(8)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	s, err := store.New(8, 4, nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	r.Insert("req-3", []byte("tx"), time.Now().Add(time.Hour))
	proofKey := key.Generate(key.TypeProof)
	proofURI := proofKey.AsPresignedURL("https://tee.example.com")
	// The proof is never inserted into the store, modelling an LRU
	// eviction that happened after fulfillment.
	if err := r.Update("req-3", func(rec *registry.Record) {
		rec.FulfillmentStatus = registry.Assigned
	}); err != nil {
		t.Fatalf("Update to Assigned: %v", err)
	}
	if err := r.Update("req-3", func(rec *registry.Record) {
		rec.FulfillmentStatus = registry.Fulfilled
		rec.ProofURI = proofURI
	}); err != nil {
		t.Fatalf("Update to Fulfilled: %v", err)
	}

	svc := New("https://tee.example.com", r, s)
	out, err := svc.GetProofRequestStatus("req-3")
	if err != nil {
		t.Fatalf("GetProofRequestStatus: %v", err)
	}
	if out.FulfillmentStatus != registry.Fulfilled {
		t.Fatalf("FulfillmentStatus = %v, want Fulfilled", out.FulfillmentStatus)
	}
	if out.DownloadURL != "" {
		t.Fatal("expected no download URL once the proof has been evicted")
	}
}

func TestGetProofRequestStatusMissingReturnsNotFound(t *testing.T) {
	r, err := registry.New(8)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	s, err := store.New(8, 4, nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	svc := New("https://tee.example.com", r, s)
	if _, err := svc.GetProofRequestStatus("does-not-exist"); err != registry.ErrNotFound {
		t.Fatalf("GetProofRequestStatus() error = %v, want ErrNotFound", err)
	}
}
