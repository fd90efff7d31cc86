// Package status implements the status service: a pure read-only view
// composing the request registry and the artifact store, synthesising a
// presigned download URL when a proof is both Fulfilled and still cached.
// The two collaborators are locked independently and never at the same
// time.
package status

import (
	"time"

	"github.com/succinctlabs/sp1-tee-private-proving/internal/key"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/registry"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/store"
)

// ProofRequestStatus mirrors GetProofRequestStatus's response shape:
// execution_status, fulfillment_status, request_tx_hash, deadline,
// fulfill_tx_hash and proof_uri returned verbatim from the record, plus a
// freshly-synthesised presigned download URL when the proof is still
// cached.
type ProofRequestStatus struct {
	ExecutionStatus   registry.ExecutionStatus
	FulfillmentStatus registry.FulfillmentStatus
	RequestTxHash     []byte
	Deadline          time.Time
	FulfillTxHash     []byte
	ProofURI          string
	DownloadURL       string
}

// Service answers GetProofRequestStatus queries. It never mutates either
// of its two collaborators.
type Service struct {
	hostname string
	registry *registry.Registry
	store    *store.Store
}

// New constructs a status Service. hostname is used to render presigned
// download URLs, matching the host prefix the ingress service signs
// artifact URIs with.
func New(hostname string, r *registry.Registry, s *store.Store) *Service {
	return &Service{hostname: hostname, registry: r, store: s}
}

// GetProofRequestStatus reads the registry record for id; if it is
// Fulfilled and the proof artifact is still cached, it synthesises a
// presigned download URL from the record's proof_uri.
func (s *Service) GetProofRequestStatus(id string) (ProofRequestStatus, error) {
	rec, err := s.registry.Get(id)
	if err != nil {
		return ProofRequestStatus{}, err
	}

	out := ProofRequestStatus{
		ExecutionStatus:   rec.ExecutionStatus,
		FulfillmentStatus: rec.FulfillmentStatus,
		RequestTxHash:     rec.RequestTxHash,
		Deadline:          rec.Deadline,
		FulfillTxHash:     rec.FulfillTxHash,
		ProofURI:          rec.ProofURI,
	}

	if rec.FulfillmentStatus == registry.Fulfilled && rec.ProofURI != "" {
		if k, err := key.FromURI(rec.ProofURI); err == nil {
			if _, ok := s.store.GetProof(k); ok {
				out.DownloadURL = k.AsPresignedURL(s.hostname)
			}
		}
	}

	return out, nil
}
