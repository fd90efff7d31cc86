// Package fulfill implements the fulfiller worker: one per GPU device,
// taking a single PendingRequest from Requested through Assigned to a
// terminal Fulfilled/Unfulfillable state. Each request moves through six
// steps: mark Assigned, resolve the proving key, execute under the
// cycle/gas caps, prove, fetch a nonce, sign and commit the outcome to the
// coordination network.
package fulfill

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/succinctlabs/sp1-tee-private-proving/internal/blocking"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/key"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/netclient"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/prover"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/queue"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/registry"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/signer"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/store"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/telemetry"
)

// elfFetchTimeout bounds the object-store GET issued while resolving a
// proving key, the same generous-but-bounded timeout the attestation
// reporter uses for its own single-shot HTTP calls.
const elfFetchTimeout = 30 * time.Second

// elfClient is shared across every Worker's setup path; object-store
// fetches are infrequent (one per distinct vk_hash) so a single client with
// its own connection pool is sufficient.
var elfClient = &http.Client{Timeout: elfFetchTimeout}

// Worker owns one GPU device and drives requests handed to it from
// Requested to a terminal fulfillment state. A Worker is never shared
// across goroutines; the dispatcher hands it one request at a time.
type Worker struct {
	deviceID int
	prover   prover.Prover
	store    *store.Store
	registry *registry.Registry
	network  netclient.Client
	signer   *signer.Signer
	hostname string
	setupCPU *blocking.Pool
	log      *zap.Logger
	metrics  *telemetry.Telemetry
}

// NewWorker constructs a Worker pinned to deviceID. tel may be nil, in
// which case the worker runs without updating Prometheus metrics.
func NewWorker(deviceID int, p prover.Prover, s *store.Store, r *registry.Registry, nc netclient.Client, sg *signer.Signer, hostname string, setupCPU *blocking.Pool, zlog *zap.Logger, tel *telemetry.Telemetry) *Worker {
	if zlog == nil {
		zlog, _ = zap.NewProduction()
	}
	return &Worker{
		deviceID: deviceID,
		prover:   p,
		store:    s,
		registry: r,
		network:  nc,
		signer:   sg,
		hostname: hostname,
		setupCPU: setupCPU,
		log:      zlog.With(zap.Int("gpu_id", deviceID)),
		metrics:  tel,
	}
}

// Run pulls requests off reqs until it is closed, processing each to a
// terminal state before taking the next. One Worker == one GPU device, so
// requests handled by the same Worker are strictly sequential even though
// multiple Workers run concurrently; there is no ordering across workers.
func (w *Worker) Run(ctx context.Context, reqs <-chan queue.PendingRequest) {
	for {
		select {
		case req, ok := <-reqs:
			if !ok {
				return
			}
			w.process(ctx, req)
		case <-ctx.Done():
			return
		}
	}
}

// process drives one request through the full state machine. A panic is
// recovered and converted to Unfulfillable so the worker is released and
// the network is never left waiting on a result this process will not
// deliver.
func (w *Worker) process(ctx context.Context, req queue.PendingRequest) {
	log := w.log.With(zap.String("request_id", req.ID))

	if w.metrics != nil {
		w.metrics.WorkersBusy.Inc()
		defer w.metrics.WorkersBusy.Dec()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while fulfilling request", zap.Any("panic", r))
			w.markUnfulfillable(req.ID, nil)
		}
	}()

	// Step 1: mark Assigned.
	if err := w.registry.Update(req.ID, func(rec *registry.Record) {
		rec.FulfillmentStatus = registry.Assigned
	}); err != nil {
		log.Error("failed to mark request assigned", zap.Error(err))
		return
	}

	// Step 2: proving-key resolution.
	pk, err := w.resolveProvingKey(ctx, req, log)
	if err != nil {
		log.Error("proving key resolution failed", zap.Error(err))
		w.markUnfulfillable(req.ID, nil)
		return
	}

	stdinKey, err := parseStoredRef(req.StdinRef)
	if err != nil {
		log.Error("malformed stdin reference in pending request", zap.Error(err))
		w.markUnfulfillable(req.ID, nil)
		return
	}
	stdin, ok := w.store.GetStdin(stdinKey)
	if !ok {
		log.Error("stdin artifact missing at fulfillment time")
		w.markUnfulfillable(req.ID, nil)
		return
	}

	// Step 3: execution (admission).
	report, err := w.prover.Execute(ctx, pk.ELF, stdin, req.CycleLimit)
	if err != nil {
		log.Warn("execution failed", zap.Error(err))
		w.registry.Update(req.ID, func(rec *registry.Record) {
			rec.ExecutionStatus = registry.Unexecutable
		})
		w.failFulfillment(ctx, req, log, "execution failed")
		return
	}
	if report.GasUsed > req.GasLimit {
		log.Warn("gas limit exceeded", zap.Uint64("gas_used", report.GasUsed), zap.Uint64("gas_limit", req.GasLimit))
		w.registry.Update(req.ID, func(rec *registry.Record) {
			rec.ExecutionStatus = registry.Unexecutable
		})
		w.failFulfillment(ctx, req, log, "gas limit exceeded")
		return
	}
	w.registry.Update(req.ID, func(rec *registry.Record) {
		rec.ExecutionStatus = registry.Executed
	})

	// Step 4: proving.
	proof, proveErr := w.prover.Prove(ctx, pk, stdin, prover.Mode(req.Mode))

	// Step 5: commit. A fresh nonce is fetched regardless of prove
	// outcome; both FulfillProof and FailFulfillment consume one.
	nonce, err := w.network.GetNonce(ctx, w.signer.Address())
	if err != nil {
		log.Error("failed to fetch nonce", zap.Error(err))
		w.markUnfulfillable(req.ID, nil)
		return
	}

	if proveErr != nil {
		log.Warn("proving failed", zap.Error(proveErr))
		w.failFulfillmentWithNonce(ctx, req, nonce, proveErr.Error(), log)
		return
	}

	log.Info("proving successful")
	w.commitProof(ctx, req, nonce, proof, log)
}

// parseStoredRef parses the canonical "{type}/{id}" form PendingRequest.StdinRef
// is stored in (key.Key.String(), not a full URI).
func parseStoredRef(ref string) (key.Key, error) {
	return key.FromURI("artifacts://" + ref)
}

func (w *Worker) resolveProvingKey(ctx context.Context, req queue.PendingRequest, log *zap.Logger) (*prover.ProvingKey, error) {
	if pk, ok := w.store.GetProvingKey(req.VKHash); ok {
		return pk, nil
	}

	log.Debug("proving key cache miss, running setup")
	program, err := w.network.GetProgram(ctx, req.VKHash)
	if err != nil {
		return nil, fmt.Errorf("fulfill: GetProgram: %w", err)
	}

	elf, err := blocking.Run(ctx, w.setupCPU, func() ([]byte, error) {
		return fetchELF(program.ProgramURI)
	})
	if err != nil {
		return nil, fmt.Errorf("fulfill: download elf: %w", err)
	}

	pk, err := blocking.Run(ctx, w.setupCPU, func() (*prover.ProvingKey, error) {
		return w.prover.Setup(ctx, elf)
	})
	if err != nil {
		return nil, fmt.Errorf("fulfill: setup: %w", err)
	}

	// Last-writer-wins: this may race with another worker setting up the
	// same vk_hash concurrently. Both are permitted to complete; the cache
	// keeps exactly one of the interchangeable results.
	w.store.InsertProvingKey(req.VKHash, pk)
	return pk, nil
}

// fetchELF downloads program bytes from the URI GetProgram advertised for
// the public object store.
func fetchELF(uri string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("fulfill: build elf request: %w", err)
	}
	resp, err := elfClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fulfill: fetch elf from %q: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("fulfill: elf endpoint %q returned %d: %s", uri, resp.StatusCode, string(b))
	}
	elf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fulfill: read elf body from %q: %w", uri, err)
	}
	return elf, nil
}

func (w *Worker) markUnfulfillable(requestID string, txHash []byte) {
	err := w.registry.Update(requestID, func(rec *registry.Record) {
		rec.FulfillmentStatus = registry.Unfulfillable
		if txHash != nil {
			rec.FulfillTxHash = txHash
		}
	})
	if err == nil && w.metrics != nil {
		w.metrics.Unfulfillable.Inc()
	}
}

func (w *Worker) failFulfillment(ctx context.Context, req queue.PendingRequest, log *zap.Logger, reason string) {
	nonce, err := w.network.GetNonce(ctx, w.signer.Address())
	if err != nil {
		log.Error("failed to fetch nonce while failing fulfillment", zap.Error(err))
		w.markUnfulfillable(req.ID, nil)
		return
	}
	w.failFulfillmentWithNonce(ctx, req, nonce, reason, log)
}

func (w *Worker) failFulfillmentWithNonce(ctx context.Context, req queue.PendingRequest, nonce netclient.Nonce, reason string, log *zap.Logger) {
	body := netclient.FailFulfillmentBody{Nonce: nonce.Value, RequestID: req.ID, Error: reason}
	sig, err := signer.SignEnvelope(w.signer, body)
	if err != nil {
		log.Error("failed to sign FailFulfillment", zap.Error(err))
		w.markUnfulfillable(req.ID, nil)
		return
	}

	resp, err := w.network.FailFulfillment(ctx, body, sig)
	if err != nil {
		log.Error("FailFulfillment rejected by network", zap.Error(err))
		w.markUnfulfillable(req.ID, nil)
		return
	}
	w.markUnfulfillable(req.ID, resp.TxHash)
}

func (w *Worker) commitProof(ctx context.Context, req queue.PendingRequest, nonce netclient.Nonce, proof *prover.Proof, log *zap.Logger) {
	body := netclient.FulfillProofBody{
		Nonce:     nonce.Value,
		RequestID: req.ID,
		Proof:     proof.EncodedProof,
	}
	sig, err := signer.SignEnvelope(w.signer, body)
	if err != nil {
		log.Error("failed to sign FulfillProof", zap.Error(err))
		w.markUnfulfillable(req.ID, nil)
		return
	}

	resp, err := w.network.FulfillProof(ctx, body, sig)
	if err != nil {
		log.Error("FulfillProof rejected by network", zap.Error(err))
		w.markUnfulfillable(req.ID, nil)
		return
	}

	proofKey := key.Generate(key.TypeProof)
	proofURI := proofKey.AsPresignedURL(w.hostname)

	// Registry first, then the artifact: observers that read the record
	// before the proof lands will find it on the next lookup.
	err = w.registry.Update(req.ID, func(rec *registry.Record) {
		rec.FulfillmentStatus = registry.Fulfilled
		rec.FulfillTxHash = resp.TxHash
		rec.ProofURI = proofURI
	})
	if err != nil {
		log.Error("failed to record fulfilled status", zap.Error(err))
		return
	}
	w.store.InsertArtifact(proofKey, store.Artifact{Proof: proof})
	if w.metrics != nil {
		w.metrics.Fulfilled.Inc()
	}
}
