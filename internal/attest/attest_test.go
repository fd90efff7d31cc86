package attest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRunFetchesAndVerifiesQuote(t *testing.T) {
	quoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("fake-dcap-quote"))
	}))
	defer quoteSrv.Close()

	verifierSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		if string(body) != "fake-dcap-quote" {
			t.Errorf("verifier received %q, want the fetched quote", body)
		}
		json.NewEncoder(w).Encode(Report{RTMR3: "deadbeef"})
	}))
	defer verifierSrv.Close()

	r := New(quoteSrv.URL, verifierSrv.URL, nil)
	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RTMR3 != "deadbeef" {
		t.Fatalf("RTMR3 = %q, want %q", report.RTMR3, "deadbeef")
	}
}

func TestRunSurfacesQuoteEndpointFailure(t *testing.T) {
	quoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer quoteSrv.Close()

	r := New(quoteSrv.URL, "http://unused.invalid", nil)
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected an error when the quote endpoint fails")
	}
}

func TestRunSurfacesVerifierFailure(t *testing.T) {
	quoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("quote"))
	}))
	defer quoteSrv.Close()
	verifierSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer verifierSrv.Close()

	r := New(quoteSrv.URL, verifierSrv.URL, nil)
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected an error when the verifier rejects the quote")
	}
}
