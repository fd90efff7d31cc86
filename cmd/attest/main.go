// Command attest is the operator-facing attestation tool: it fetches the
// enclave's DCAP quote from its well-known endpoint, submits it to a
// remote verifier, and prints the resulting rtmr3 measurement so it can be
// compared against the expected enclave build out of band. It is never on
// the request path.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/succinctlabs/sp1-tee-private-proving/internal/attest"
)

func main() {
	var quoteURL, verifierURL string
	var timeout time.Duration

	root := &cobra.Command{
		Use:   "attest",
		Short: "fetch the enclave quote, verify it remotely, print rtmr3",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			r := attest.New(quoteURL, verifierURL, nil)
			report, err := r.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Println(report.RTMR3)
			return nil
		},
	}
	root.Flags().StringVar(&quoteURL, "quote-url", "http://localhost:8090/attestation/quote", "enclave quote endpoint")
	root.Flags().StringVar(&verifierURL, "verifier-url", "", "remote attestation verifier endpoint")
	root.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall deadline for the fetch+verify round trip")
	root.MarkFlagRequired("verifier-url")

	if err := root.Execute(); err != nil {
		logrus.Fatalf("attest: %v", err)
	}
}
