// Command fulfiller wires the proof-fulfillment core into a running
// process: load configuration, build the store/registry/queue, dial the
// coordination network, start one fulfiller worker per configured device
// behind the dispatcher, and serve the /health and /metrics operational
// endpoints. The server layer that accepts uploads and proof requests
// from the outside world is deployed separately and is not started here.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/succinctlabs/sp1-tee-private-proving/internal/blocking"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/config"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/dispatch"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/fulfill"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/ingress"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/netclient"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/prover"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/queue"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/registry"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/signer"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/status"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/store"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/telemetry"
)

// newProver selects the Prover backend each device-pinned worker runs,
// per PROVER_BACKEND. "mock" is only meant for local development.
func newProver(backend string, deviceID int) prover.Prover {
	if backend == "mock" {
		return prover.NewMockProver()
	}
	return prover.NewCudaProver(deviceID, 0)
}

func main() {
	var workerCountFlag int
	var proverBackendFlag string

	root := &cobra.Command{
		Use:   "fulfiller",
		Short: "run the TEE proof-fulfillment worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("worker-count") {
				cfg.WorkerCount = workerCountFlag
			}
			if cmd.Flags().Changed("prover-backend") {
				cfg.ProverBackend = proverBackendFlag
			}
			return run(cfg)
		},
	}
	root.Flags().IntVar(&workerCountFlag, "worker-count", 0, "override WORKER_COUNT")
	root.Flags().StringVar(&proverBackendFlag, "prover-backend", "", "override PROVER_BACKEND (cuda|mock)")

	if err := root.Execute(); err != nil {
		logrus.Fatalf("fulfiller: %v", err)
	}
}

func run(cfg config.Config) error {
	tel, promReg, err := telemetry.New(logrus.InfoLevel)
	if err != nil {
		return fmt.Errorf("fulfiller: telemetry: %w", err)
	}

	sg, err := signer.New(cfg.NetworkPrivateKey)
	if err != nil {
		return fmt.Errorf("fulfiller: signer: %w", err)
	}

	s, err := store.New(store.DefaultArtifactCapacity, store.DefaultProvingKeyCapacity, tel.Log)
	if err != nil {
		return fmt.Errorf("fulfiller: store: %w", err)
	}
	r, err := registry.New(registry.DefaultCapacity)
	if err != nil {
		return fmt.Errorf("fulfiller: registry: %w", err)
	}
	q := queue.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nc, err := netclient.Dial(ctx, cfg.NetworkRPCURL, sg)
	if err != nil {
		return fmt.Errorf("fulfiller: dial coordination network: %w", err)
	}
	defer nc.Close()

	// Ingress and status are constructed here for the server layer that
	// fronts this process; nothing in this binary calls them directly.
	_ = ingress.New(cfg.Hostname, s, r, q, nc, cfg.WorkerCount, tel.Log)
	_ = status.New(cfg.Hostname, r, s)

	setupPool := blocking.NewPool(cfg.WorkerCount)
	workers := make([]*fulfill.Worker, cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		workers[i] = fulfill.NewWorker(i, newProver(cfg.ProverBackend, i), s, r, nc, sg, cfg.Hostname, setupPool, tel.ZLog, tel)
	}

	d := dispatch.New(q, workers, tel.Log, tel)

	// Operational surface only: /health reports the pending queue depth and
	// /metrics exposes the Prometheus registry. The artifact upload and
	// proof-request endpoints live in the external wiring layer.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"queued_proof_request_count":%d}`, q.Len())
	})
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	opsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	opsErr := make(chan error, 1)
	go func() { opsErr <- opsSrv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		tel.Log.Info("fulfiller: shutdown signal received")
		cancel()
	}()

	tel.Log.WithField("worker_count", cfg.WorkerCount).Info("fulfiller starting")

	runDone := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(runDone)
	}()

	select {
	case err := <-opsErr:
		// A port-bind failure is fatal; anything after Shutdown is a
		// normal close.
		cancel()
		<-runDone
		return fmt.Errorf("fulfiller: ops server: %w", err)
	case <-runDone:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = opsSrv.Shutdown(shutdownCtx)

	tel.Log.Info("fulfiller stopped")
	return nil
}
