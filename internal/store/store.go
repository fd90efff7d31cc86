// Package store implements the capacity-bounded artifact store: a keyed
// mapping from key.Key to artifact payloads, plus the separate, smaller
// proving-key cache keyed on vk_hash. Everything is in-memory and
// LRU-bounded; nothing survives a restart.
package store

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/succinctlabs/sp1-tee-private-proving/internal/key"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/prover"
)

// Default cache capacities. The proving-key cache is much smaller because
// proving keys dwarf every other artifact.
const (
	DefaultArtifactCapacity   = 1024
	DefaultProvingKeyCapacity = 64
)

// Artifact is the tagged payload stored under a Key. Exactly one of the
// fields is populated, selected by the Key's ArtifactType.
type Artifact struct {
	Stdin   []byte
	Program []byte
	Proof   *prover.Proof
}

// VKHash is the 32-byte opaque verification-key hash identifying a program,
// independent of the Key any particular upload of that program's ELF was
// stored under.
type VKHash [32]byte

// Store is the capacity-bounded artifact store plus proving-key cache. All
// methods are safe for concurrent use; each of the two caches lives behind
// its own mutex and no method ever holds both.
type Store struct {
	log *logrus.Entry

	authMu sync.Mutex
	auth   map[key.Key]struct{}

	artifactMu sync.Mutex
	artifacts  *lru.Cache[key.Key, Artifact]

	pkMu        sync.Mutex
	provingKeys *lru.Cache[VKHash, *prover.ProvingKey]
}

// New constructs a Store with the given capacities. Capacities <= 0 fall
// back to the defaults above.
func New(artifactCapacity, provingKeyCapacity int, log *logrus.Logger) (*Store, error) {
	if artifactCapacity <= 0 {
		artifactCapacity = DefaultArtifactCapacity
	}
	if provingKeyCapacity <= 0 {
		provingKeyCapacity = DefaultProvingKeyCapacity
	}
	artifacts, err := lru.New[key.Key, Artifact](artifactCapacity)
	if err != nil {
		return nil, err
	}
	pks, err := lru.New[VKHash, *prover.ProvingKey](provingKeyCapacity)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithFields(logrus.Fields{
		"component":       "store",
		"artifact_cap":    artifactCapacity,
		"proving_key_cap": provingKeyCapacity,
	})
	entry.Info("artifact store initialised")
	return &Store{
		log:         entry,
		auth:        make(map[key.Key]struct{}),
		artifacts:   artifacts,
		provingKeys: pks,
	}, nil
}

// InsertArtifactRequest authorises exactly one future upload to k. It is
// the only gate checked by the unauthenticated PUT /artifacts/{type}/{id}
// endpoint.
func (s *Store) InsertArtifactRequest(k key.Key) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	s.auth[k] = struct{}{}
}

// ConsumeArtifactRequest atomically removes and reports whether k had a
// pending authorisation. Returns false if no matching authorisation
// exists, the only negative outcome the upload endpoint need check.
func (s *Store) ConsumeArtifactRequest(k key.Key) bool {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	if _, ok := s.auth[k]; !ok {
		return false
	}
	delete(s.auth, k)
	return true
}

// InsertArtifact unconditionally stores a, evicting the least-recently-used
// entry on overflow.
func (s *Store) InsertArtifact(k key.Key, a Artifact) {
	s.artifactMu.Lock()
	defer s.artifactMu.Unlock()
	s.artifacts.Add(k, a)
}

// GetStdin returns the stdin payload for k, or ok=false if absent or k does
// not name a Stdin artifact.
func (s *Store) GetStdin(k key.Key) (stdin []byte, ok bool) {
	if k.Type != key.TypeStdin {
		return nil, false
	}
	s.artifactMu.Lock()
	defer s.artifactMu.Unlock()
	a, ok := s.artifacts.Get(k)
	if !ok {
		return nil, false
	}
	return a.Stdin, true
}

// GetProof returns the proof for k, or ok=false if absent or k does not
// name a Proof artifact. Once the entry has been LRU-evicted this returns
// false even though the owning request record still reports Fulfilled;
// the proof was already delivered to the network.
func (s *Store) GetProof(k key.Key) (p *prover.Proof, ok bool) {
	if k.Type != key.TypeProof {
		return nil, false
	}
	s.artifactMu.Lock()
	defer s.artifactMu.Unlock()
	a, ok := s.artifacts.Get(k)
	if !ok || a.Proof == nil {
		return nil, false
	}
	return a.Proof, true
}

// GetProvingKey returns the cached proving key for vkHash, if any.
func (s *Store) GetProvingKey(vkHash VKHash) (*prover.ProvingKey, bool) {
	s.pkMu.Lock()
	defer s.pkMu.Unlock()
	return s.provingKeys.Get(vkHash)
}

// InsertProvingKey inserts pk for vkHash. Last-writer-wins: if another
// worker raced to set up the same vk_hash and inserted first, this call
// still overwrites it. By the time two workers reach this call their
// results are interchangeable, so preserving the first writer buys
// nothing.
func (s *Store) InsertProvingKey(vkHash VKHash, pk *prover.ProvingKey) {
	s.pkMu.Lock()
	defer s.pkMu.Unlock()
	s.provingKeys.Add(vkHash, pk)
}
