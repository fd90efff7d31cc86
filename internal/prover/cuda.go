package prover

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// CudaProver talks to the local proving sidecar bound to a single GPU
// device. Each worker in internal/fulfill is pinned to device i, whose
// sidecar listens on port 3000+i.
//
// CudaProver holds the device's sidecar URL and an HTTP client but sends
// no requests: Setup, Execute and Prove each return an error reporting
// that the sidecar is not wired. Tests use MockProver instead.
type CudaProver struct {
	deviceID int
	baseURL  string
	client   *http.Client
}

var _ Prover = (*CudaProver)(nil)

// NewCudaProver builds a CudaProver pinned to deviceID, targeting the
// sidecar at 127.0.0.1:3000+deviceID. It opens no connection.
func NewCudaProver(deviceID int, timeout time.Duration) *CudaProver {
	port := 3000 + deviceID
	return &CudaProver{
		deviceID: deviceID,
		baseURL:  fmt.Sprintf("http://127.0.0.1:%d/twirp/", port),
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *CudaProver) Setup(ctx context.Context, elf []byte) (*ProvingKey, error) {
	return nil, fmt.Errorf("prover: cuda sidecar setup not wired in this environment (device %d)", c.deviceID)
}

func (c *CudaProver) Execute(ctx context.Context, elf, stdin []byte, maxCycles uint64) (ExecutionReport, error) {
	return ExecutionReport{}, fmt.Errorf("prover: cuda sidecar execute not wired in this environment (device %d)", c.deviceID)
}

func (c *CudaProver) Prove(ctx context.Context, pk *ProvingKey, stdin []byte, mode Mode) (*Proof, error) {
	return nil, fmt.Errorf("prover: cuda sidecar prove not wired in this environment (device %d)", c.deviceID)
}
