package ingress

import (
	"context"
	"testing"
	"time"

	"github.com/succinctlabs/sp1-tee-private-proving/internal/key"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/netclient"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/queue"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/registry"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store, *registry.Registry, *queue.Queue, *netclient.Fake) {
	t.Helper()
	s, err := store.New(8, 4, nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	r, err := registry.New(8)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	q := queue.New()
	nc := netclient.NewFake()
	svc := New("https://tee.example.com", s, r, q, nc, 2, nil)
	return svc, s, r, q, nc
}

func TestHappyPathCreateUploadRequest(t *testing.T) {
	svc, _, r, q, nc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateArtifact(ctx, key.TypeStdin)
	if err != nil {
		t.Fatalf("CreateArtifact: %v", err)
	}

	if err := svc.UploadArtifact(ctx, key.TypeStdin, uriID(t, created.URI), []byte("stdin-bytes")); err != nil {
		t.Fatalf("UploadArtifact: %v", err)
	}

	vk := [32]byte{1, 2, 3}
	out, err := svc.RequestProof(ctx, RequestProofInput{
		VKHash:     vk,
		StdinURI:   created.URI,
		Mode:       0,
		CycleLimit: 1_000_000,
		GasLimit:   1_000_000_000,
		Deadline:   time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("RequestProof: %v", err)
	}
	if out.RequestID == "" || len(out.TxHash) == 0 {
		t.Fatalf("unexpected RequestProof output: %+v", out)
	}

	rec, err := r.Get(out.RequestID)
	if err != nil {
		t.Fatalf("registry.Get: %v", err)
	}
	if rec.FulfillmentStatus != registry.Requested {
		t.Fatalf("unexpected initial fulfillment status: %v", rec.FulfillmentStatus)
	}
	if q.Len() != 1 {
		t.Fatalf("queue.Len() = %d, want 1", q.Len())
	}
	_ = nc
}

func TestUploadWithoutAuthorizationFails(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	k := key.Generate(key.TypeStdin)
	err := svc.UploadArtifact(context.Background(), key.TypeStdin, k.ID, []byte("x"))
	if err != ErrUnauthorized {
		t.Fatalf("UploadArtifact() error = %v, want ErrUnauthorized", err)
	}
}

func TestUploadEmptyBodyFailsDeserialization(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()
	created, _ := svc.CreateArtifact(ctx, key.TypeStdin)

	err := svc.UploadArtifact(ctx, key.TypeStdin, uriID(t, created.URI), nil)
	if err == nil {
		t.Fatal("expected deserialization failure for empty body")
	}
}

func TestRequestProofWithUnknownStdinFails(t *testing.T) {
	svc, _, _, q, _ := newTestService(t)
	_, err := svc.RequestProof(context.Background(), RequestProofInput{
		StdinURI: "artifacts://stdins/does-not-exist",
		Deadline: time.Now().Add(time.Hour),
	})
	if err != ErrMissingStdin {
		t.Fatalf("RequestProof() error = %v, want ErrMissingStdin", err)
	}
	if q.Len() != 0 {
		t.Fatal("expected nothing to be enqueued on failure")
	}
}

// TestDuplicateAuthorisationsAreIndependent: two CreateArtifact calls mint
// two different keys, and uploading to each consumes only its own
// authorisation.
func TestDuplicateAuthorisationsAreIndependent(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateArtifact(ctx, key.TypeStdin)
	if err != nil {
		t.Fatalf("first CreateArtifact: %v", err)
	}
	second, err := svc.CreateArtifact(ctx, key.TypeStdin)
	if err != nil {
		t.Fatalf("second CreateArtifact: %v", err)
	}
	if first.URI == second.URI {
		t.Fatalf("expected distinct keys, both were %q", first.URI)
	}

	if err := svc.UploadArtifact(ctx, key.TypeStdin, uriID(t, first.URI), []byte("one")); err != nil {
		t.Fatalf("upload to first key: %v", err)
	}
	if err := svc.UploadArtifact(ctx, key.TypeStdin, uriID(t, second.URI), []byte("two")); err != nil {
		t.Fatalf("upload to second key: %v", err)
	}
	// Re-uploading to a consumed key requires a fresh CreateArtifact.
	if err := svc.UploadArtifact(ctx, key.TypeStdin, uriID(t, first.URI), []byte("again")); err != ErrUnauthorized {
		t.Fatalf("second upload to first key error = %v, want ErrUnauthorized", err)
	}
}

func TestDownloadArtifactForbidsNonProofTypes(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	if _, err := svc.DownloadArtifact(key.TypeStdin, "whatever"); err != ErrUnsupportedType {
		t.Fatalf("DownloadArtifact() error = %v, want ErrUnsupportedType", err)
	}
}

func TestDownloadArtifactNotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	if _, err := svc.DownloadArtifact(key.TypeProof, "missing"); err != ErrNotFound {
		t.Fatalf("DownloadArtifact() error = %v, want ErrNotFound", err)
	}
}

// uriID extracts the bare id portion of a Key's URI for use as the
// UploadArtifact id argument, as an HTTP router would after parsing
// PUT /artifacts/{type}/{id}.
func uriID(t *testing.T, uri string) string {
	t.Helper()
	k, err := key.FromURI(uri)
	if err != nil {
		t.Fatalf("FromURI(%q): %v", uri, err)
	}
	return k.ID
}
