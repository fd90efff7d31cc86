// Package config loads the service's environment-driven configuration:
// viper over the process environment, optionally seeded by a local .env
// file, populating one typed struct. CLI flags layer on top of this in
// the binaries, never instead of it.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full set of environment/CLI-driven knobs.
type Config struct {
	Hostname          string
	NetworkRPCURL     string
	NetworkPrivateKey string
	ProgramsS3Region  string
	Port              int
	ArtifactsPort     int
	WorkerCount       int
	// ProverBackend selects which Prover implementation each worker is
	// constructed with: "cuda" dials the per-device proving sidecar at
	// port 3000+i, "mock" runs the deterministic in-process prover used
	// for local development and tests.
	ProverBackend string
}

// Load reads configuration from the environment, optionally seeded by a
// local .env file (godotenv.Load silently no-ops if the file is absent).
// WorkerCount defaults to 1.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetDefault("WORKER_COUNT", 1)
	v.SetDefault("PORT", 8080)
	v.SetDefault("ARTIFACTS_PORT", 8081)
	v.SetDefault("PROVER_BACKEND", "cuda")

	cfg := Config{
		Hostname:          v.GetString("HOSTNAME"),
		NetworkRPCURL:     v.GetString("NETWORK_RPC_URL"),
		NetworkPrivateKey: v.GetString("NETWORK_PRIVATE_KEY"),
		ProgramsS3Region:  v.GetString("PROGRAMS_S3_REGION"),
		Port:              v.GetInt("PORT"),
		ArtifactsPort:     v.GetInt("ARTIFACTS_PORT"),
		WorkerCount:       v.GetInt("WORKER_COUNT"),
		ProverBackend:     v.GetString("PROVER_BACKEND"),
	}

	if cfg.Hostname == "" {
		return Config{}, fmt.Errorf("config: HOSTNAME is required")
	}
	if cfg.NetworkRPCURL == "" {
		return Config{}, fmt.Errorf("config: NETWORK_RPC_URL is required")
	}
	if cfg.NetworkPrivateKey == "" {
		return Config{}, fmt.Errorf("config: NETWORK_PRIVATE_KEY is required")
	}
	if cfg.WorkerCount <= 0 {
		return Config{}, fmt.Errorf("config: WORKER_COUNT must be positive, got %d", cfg.WorkerCount)
	}
	return cfg, nil
}
