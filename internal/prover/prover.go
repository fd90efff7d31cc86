// Package prover defines the Prover capability: the opaque GPU/CPU proving
// backend that internal/fulfill drives. Concrete implementations are
// CudaProver (production, talks to the per-GPU proving sidecar) and
// MockProver (tests and local development); the backend is chosen once at
// startup and workers are parameterised over it.
package prover

import "context"

// Mode selects which proof system backs a single request.
type Mode int

const (
	ModeCore Mode = iota
	ModeCompressed
	ModePlonk
	ModeGroth16
)

// ExecutionReport carries the outcome of a dry-run execution: the cycle and
// gas cost actually consumed, independent of whether proving is attempted.
type ExecutionReport struct {
	CyclesUsed uint64
	GasUsed    uint64
}

// ProvingKey is the artifact produced by Setup from an ELF. It is far
// larger than the ELF it derives from, which is why it is cached separately
// (internal/store) keyed by vk_hash rather than by the originating Key.
type ProvingKey struct {
	ELF []byte
	// Opaque is the backend-specific serialised setup output (verification
	// key material, preprocessed tables, ...). The fulfiller treats it as
	// a black box and only ever round-trips it through the cache.
	Opaque []byte
}

// Proof is a completed proof. EncodedProof alone is what is committed to
// the coordination network; DownloadArtifact serves the requester the mode,
// PublicValues and EncodedProof together.
type Proof struct {
	Mode         Mode
	PublicValues []byte
	EncodedProof []byte
}

// Prover is the capability every fulfiller worker is parameterised over.
// All three operations are long-running and CPU/GPU-bound. internal/fulfill
// runs Setup on the blocking pool and calls Execute and Prove directly on
// the worker's own goroutine.
type Prover interface {
	// Setup derives a ProvingKey from an ELF. CPU-bound; may be called
	// concurrently for the same ELF by racing workers; duplicate work is
	// permitted, the cache keeps only one winner.
	Setup(ctx context.Context, elf []byte) (*ProvingKey, error)

	// Execute runs the program against stdin under a cycle cap, reporting
	// gas usage without producing a proof. maxCycles <= 0 means unbounded.
	Execute(ctx context.Context, elf, stdin []byte, maxCycles uint64) (ExecutionReport, error)

	// Prove produces a full proof for the given proving key, stdin and
	// mode. Seconds to minutes; blocks the device the worker owns.
	Prove(ctx context.Context, pk *ProvingKey, stdin []byte, mode Mode) (*Proof, error)
}
