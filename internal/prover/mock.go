package prover

import (
	"context"
	"crypto/sha256"
)

// MockProver is a deterministic, in-process Prover used in tests and local
// development. It never touches a GPU: Setup hashes the ELF into a fake
// proving key, Execute reports a fixed cost, Prove returns a proof whose
// bytes are a hash of the inputs. It lets the whole lifecycle run without
// real hardware.
type MockProver struct {
	// CyclesPerRequest and GasPerRequest let tests drive the admission
	// decision in internal/fulfill (gas-exceeded vs. executed) without a
	// real VM.
	CyclesPerRequest uint64
	GasPerRequest    uint64
}

var _ Prover = (*MockProver)(nil)

// NewMockProver returns a MockProver with sane, low defaults.
func NewMockProver() *MockProver {
	return &MockProver{CyclesPerRequest: 1000, GasPerRequest: 1000}
}

func (m *MockProver) Setup(_ context.Context, elf []byte) (*ProvingKey, error) {
	sum := sha256.Sum256(elf)
	return &ProvingKey{ELF: elf, Opaque: sum[:]}, nil
}

func (m *MockProver) Execute(_ context.Context, _, _ []byte, maxCycles uint64) (ExecutionReport, error) {
	report := ExecutionReport{CyclesUsed: m.CyclesPerRequest, GasUsed: m.GasPerRequest}
	if maxCycles > 0 && report.CyclesUsed > maxCycles {
		return report, errCycleLimitExceeded
	}
	return report, nil
}

func (m *MockProver) Prove(_ context.Context, pk *ProvingKey, stdin []byte, mode Mode) (*Proof, error) {
	h := sha256.New()
	h.Write(pk.Opaque)
	h.Write(stdin)
	sum := h.Sum(nil)
	return &Proof{Mode: mode, PublicValues: sum[:16], EncodedProof: sum}, nil
}

var errCycleLimitExceeded = &cycleLimitError{}

type cycleLimitError struct{}

func (*cycleLimitError) Error() string { return "prover: cycle limit exceeded" }

// IsCycleLimitExceeded reports whether err was returned by Execute because
// the program exceeded its cycle cap.
func IsCycleLimitExceeded(err error) bool {
	_, ok := err.(*cycleLimitError)
	return ok
}
