// Package attest implements the attestation reporter: a single-shot
// client, not on the request path, that fetches the enclave's DCAP quote
// from a well-known HTTPS endpoint, posts it to a remote verifier, and
// returns the resulting runtime measurement register (rtmr3).
package attest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// defaultTimeout bounds both the quote fetch and the verifier POST; the
// reporter runs once at operator discretion, never on a request's
// critical path, so a generous timeout is preferable to a tight one.
const defaultTimeout = 30 * time.Second

// Report is the verifier's response to a submitted quote: the runtime
// measurement register the caller is expected to compare against an
// expected enclave measurement out of band.
type Report struct {
	RTMR3 string `json:"rtmr3"`
}

// Reporter fetches a DCAP quote and submits it to a verifier.
type Reporter struct {
	client      *http.Client
	quoteURL    string
	verifierURL string
	log         *logrus.Entry
}

// New constructs a Reporter. quoteURL is the enclave's well-known
// quote-serving endpoint; verifierURL is the remote attestation verifier
// that accepts a POSTed quote and returns a Report.
func New(quoteURL, verifierURL string, log *logrus.Logger) *Reporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reporter{
		client:      &http.Client{Timeout: defaultTimeout},
		quoteURL:    quoteURL,
		verifierURL: verifierURL,
		log:         log.WithField("component", "attest"),
	}
}

// Run performs one fetch-quote, verify-quote round trip and returns the
// verifier's Report. It is meant to be invoked by an operator tool, not
// scheduled on a request path.
func (r *Reporter) Run(ctx context.Context) (Report, error) {
	quote, err := r.fetchQuote(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("attest: fetch quote: %w", err)
	}

	report, err := r.verifyQuote(ctx, quote)
	if err != nil {
		return Report{}, fmt.Errorf("attest: verify quote: %w", err)
	}

	r.log.WithField("rtmr3", report.RTMR3).Info("attestation verified")
	return report, nil
}

func (r *Reporter) fetchQuote(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.quoteURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("quote endpoint %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

func (r *Reporter) verifyQuote(ctx context.Context, quote []byte) (Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.verifierURL, bytes.NewReader(quote))
	if err != nil {
		return Report{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := r.client.Do(req)
	if err != nil {
		return Report{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Report{}, fmt.Errorf("verifier %d: %s", resp.StatusCode, string(b))
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return Report{}, fmt.Errorf("decode verifier response: %w", err)
	}
	return report, nil
}
