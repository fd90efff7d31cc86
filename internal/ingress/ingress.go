// Package ingress implements the ingress service: mints artifact
// authorisations and presigned URLs, deserialises and stores uploaded
// bodies, forwards program/nonce/proof-request traffic to the coordination
// network, and admits accepted requests into the registry and pending
// queue. The operations are plain Go methods; the HTTP/gRPC router that
// exposes them to the outside world lives elsewhere.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/succinctlabs/sp1-tee-private-proving/internal/blocking"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/key"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/netclient"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/prover"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/queue"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/registry"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/store"
)

// Typed client-input errors; the HTTP/gRPC layer is responsible for
// mapping these to status codes (401/500/404/InvalidArgument etc).
var (
	ErrUnauthorized    = errors.New("ingress: artifact not authorised for upload")
	ErrUnsupportedType = errors.New("ingress: unsupported artifact type for this operation")
	ErrDeserialize     = errors.New("ingress: failed to deserialize artifact body")
	ErrMissingStdin    = errors.New("ingress: stdin_uri does not resolve to a known artifact")
	ErrNotFound        = errors.New("ingress: artifact not found")
)

// Service wires the artifact store, request registry, pending queue and
// network client behind the ingress operations.
type Service struct {
	hostname string
	store    *store.Store
	registry *registry.Registry
	queue    *queue.Queue
	network  netclient.Client
	blocking *blocking.Pool
	log      *logrus.Entry
}

// New constructs an ingress Service. blockingPoolSize bounds how many
// concurrent deserialisation jobs may run off the async path.
func New(hostname string, s *store.Store, r *registry.Registry, q *queue.Queue, nc netclient.Client, blockingPoolSize int, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		hostname: hostname,
		store:    s,
		registry: r,
		queue:    q,
		network:  nc,
		blocking: blocking.NewPool(blockingPoolSize),
		log:      log.WithField("component", "ingress"),
	}
}

// CreatedArtifact is the response to CreateArtifact: the opaque URI and
// the presigned upload URL derived from it.
type CreatedArtifact struct {
	URI          string
	PresignedURL string
}

// CreateArtifact mints a fresh Key and authorises exactly one future
// upload to it. Programs are stored externally on the public object
// store, so a Program request is forwarded to the coordination network
// and its presigned URL returned unchanged.
func (s *Service) CreateArtifact(ctx context.Context, t key.ArtifactType) (CreatedArtifact, error) {
	if t == key.TypeProgram {
		p, err := s.network.CreateProgram(ctx, "")
		if err != nil {
			return CreatedArtifact{}, fmt.Errorf("ingress: CreateProgram: %w", err)
		}
		return CreatedArtifact{URI: p.ProgramURI, PresignedURL: p.ProgramURI}, nil
	}

	k := key.Generate(t)
	s.store.InsertArtifactRequest(k)
	return CreatedArtifact{
		URI:          k.AsURI(),
		PresignedURL: k.AsPresignedURL(s.hostname),
	}, nil
}

// UploadArtifact consumes the authorisation for (t, id) and, on success,
// stores body. Stdin bodies are deserialised on the blocking pool before
// storing; Program (ELF) bodies are stored as raw bytes; every other
// artifact type is rejected with ErrUnsupportedType.
func (s *Service) UploadArtifact(ctx context.Context, t key.ArtifactType, id string, body []byte) error {
	k := key.New(t, id)
	if !s.store.ConsumeArtifactRequest(k) {
		return ErrUnauthorized
	}

	switch t {
	case key.TypeStdin:
		stdin, err := blocking.Run(ctx, s.blocking, func() ([]byte, error) {
			return deserializeStdin(body)
		})
		if err != nil {
			s.log.WithError(err).WithField("key", k.String()).Error("failed to deserialize stdin artifact")
			return fmt.Errorf("%w: %v", ErrDeserialize, err)
		}
		s.store.InsertArtifact(k, store.Artifact{Stdin: stdin})
		return nil
	case key.TypeProgram:
		elf, err := blocking.Run(ctx, s.blocking, func() ([]byte, error) {
			return body, nil
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeserialize, err)
		}
		s.store.InsertArtifact(k, store.Artifact{Program: elf})
		return nil
	default:
		return ErrUnsupportedType
	}
}

// deserializeStdin validates and returns the stdin body. The prover treats
// stdin as opaque bytes, so validation here stops at rejecting an empty
// body; a structured envelope decode would slot in at this point.
func deserializeStdin(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty stdin body")
	}
	return body, nil
}

// DownloadArtifact serves Proof artifacts only; stdin and program bodies
// are never readable back out.
func (s *Service) DownloadArtifact(t key.ArtifactType, id string) ([]byte, error) {
	if t != key.TypeProof {
		return nil, ErrUnsupportedType
	}
	k := key.New(t, id)
	p, ok := s.store.GetProof(k)
	if !ok {
		return nil, ErrNotFound
	}
	return encodeProof(p), nil
}

// encodeProof is the canonical binary encoding of a Proof as served to
// downloaders: the mode byte followed by public values and the encoded
// proof. The proof blob itself is already in the prover's wire format.
func encodeProof(p *prover.Proof) []byte {
	out := make([]byte, 0, len(p.PublicValues)+len(p.EncodedProof)+1)
	out = append(out, byte(p.Mode))
	out = append(out, p.PublicValues...)
	out = append(out, p.EncodedProof...)
	return out
}

// CreateProgram is forwarded verbatim to the coordination network.
func (s *Service) CreateProgram(ctx context.Context, elfURI string) (netclient.Program, error) {
	return s.network.CreateProgram(ctx, elfURI)
}

// GetProgram is forwarded verbatim.
func (s *Service) GetProgram(ctx context.Context, vkHash [32]byte) (netclient.Program, error) {
	return s.network.GetProgram(ctx, vkHash)
}

// GetNonce is forwarded verbatim.
func (s *Service) GetNonce(ctx context.Context, address []byte) (netclient.Nonce, error) {
	return s.network.GetNonce(ctx, address)
}

// RequestProofInput is the caller-supplied shape for RequestProof.
type RequestProofInput struct {
	VKHash     [32]byte
	StdinURI   string
	Mode       int
	CycleLimit uint64
	GasLimit   uint64
	Deadline   time.Time
	Signature  []byte
}

// RequestProofOutput echoes the network's acknowledgement.
type RequestProofOutput struct {
	TxHash    []byte
	RequestID string
}

// RequestProof forwards the signed body to the network first, then
// resolves the stdin reference locally and admits the request to the
// registry and pending queue, echoing the network's (tx_hash, request_id) back to the
// caller. The stdin lookup happens only after the network has admitted
// the request; a missing stdin artifact leaves nothing enqueued, and the
// network times the orphaned request out on its own.
func (s *Service) RequestProof(ctx context.Context, in RequestProofInput) (RequestProofOutput, error) {
	result, err := s.network.RequestProof(ctx, netclient.RequestProofBody{
		VKHash:     in.VKHash,
		StdinURI:   in.StdinURI,
		Mode:       in.Mode,
		CycleLimit: in.CycleLimit,
		GasLimit:   in.GasLimit,
		Deadline:   in.Deadline.Unix(),
		Signature:  in.Signature,
	})
	if err != nil {
		return RequestProofOutput{}, fmt.Errorf("ingress: RequestProof forward: %w", err)
	}

	k, err := key.FromURI(in.StdinURI)
	if err != nil {
		return RequestProofOutput{}, fmt.Errorf("%w: %v", ErrMissingStdin, err)
	}
	if _, ok := s.store.GetStdin(k); !ok {
		return RequestProofOutput{}, ErrMissingStdin
	}

	// The registry is keyed on the network's request id, never a locally
	// minted one.
	s.registry.Insert(result.RequestID, result.TxHash, in.Deadline)
	s.queue.Push(queue.PendingRequest{
		ID:            result.RequestID,
		VKHash:        in.VKHash,
		Mode:          in.Mode,
		StdinRef:      k.String(),
		CycleLimit:    in.CycleLimit,
		GasLimit:      in.GasLimit,
		Deadline:      in.Deadline.Unix(),
		RequestTxHash: result.TxHash,
	})

	return RequestProofOutput{TxHash: result.TxHash, RequestID: result.RequestID}, nil
}
