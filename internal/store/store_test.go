package store

import (
	"testing"

	"github.com/succinctlabs/sp1-tee-private-proving/internal/key"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/prover"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(4, 2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestConsumeArtifactRequestRequiresPriorCreate(t *testing.T) {
	s := newTestStore(t)
	k := key.Generate(key.TypeStdin)

	if s.ConsumeArtifactRequest(k) {
		t.Fatal("expected consume to fail without a prior authorisation")
	}

	s.InsertArtifactRequest(k)
	if !s.ConsumeArtifactRequest(k) {
		t.Fatal("expected consume to succeed after CreateArtifact")
	}
	if s.ConsumeArtifactRequest(k) {
		t.Fatal("expected second consume of the same key to fail")
	}
}

func TestGetStdinTypeChecked(t *testing.T) {
	s := newTestStore(t)
	k := key.Generate(key.TypeStdin)
	s.InsertArtifact(k, Artifact{Stdin: []byte("hello")})

	got, ok := s.GetStdin(k)
	if !ok || string(got) != "hello" {
		t.Fatalf("GetStdin() = (%q, %v), want (%q, true)", got, ok, "hello")
	}

	proofKey := key.New(key.TypeProof, k.ID)
	if _, ok := s.GetStdin(proofKey); ok {
		t.Fatal("GetStdin on a proof-typed key should not succeed")
	}
}

func TestArtifactEvictionPreservesOtherData(t *testing.T) {
	s := newTestStore(t)
	keys := make([]key.Key, 5)
	for i := range keys {
		keys[i] = key.Generate(key.TypeStdin)
		s.InsertArtifact(keys[i], Artifact{Stdin: []byte{byte(i)}})
	}

	// Capacity is 4, so the first inserted key should have been evicted.
	if _, ok := s.GetStdin(keys[0]); ok {
		t.Fatal("expected oldest artifact to be evicted")
	}
	for i := 1; i < len(keys); i++ {
		if _, ok := s.GetStdin(keys[i]); !ok {
			t.Fatalf("expected artifact %d to survive eviction", i)
		}
	}
}

func TestProvingKeyCacheLastWriterWins(t *testing.T) {
	s := newTestStore(t)
	var vk VKHash
	vk[0] = 1

	first := &prover.ProvingKey{Opaque: []byte("first")}
	second := &prover.ProvingKey{Opaque: []byte("second")}

	s.InsertProvingKey(vk, first)
	s.InsertProvingKey(vk, second)

	got, ok := s.GetProvingKey(vk)
	if !ok {
		t.Fatal("expected proving key to be present after insert")
	}
	if string(got.Opaque) != "second" {
		t.Fatalf("expected last writer (second) to win, got %q", got.Opaque)
	}
}
