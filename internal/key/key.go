// Package key implements the opaque artifact identifier: a (type, id)
// pair with URI and presigned-URL projections.
//
// Ids are minted from a UUIDv7 generator so that keys sort by creation
// time without a central counter.
package key

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ArtifactType identifies which of the three artifact kinds a Key names.
type ArtifactType string

// The three artifact kinds the store ever holds, named with the plural
// forms used in artifact URLs.
const (
	TypeProgram ArtifactType = "programs"
	TypeStdin   ArtifactType = "stdins"
	TypeProof   ArtifactType = "proofs"
)

// Valid reports whether t is one of the three recognised artifact types.
func (t ArtifactType) Valid() bool {
	switch t {
	case TypeProgram, TypeStdin, TypeProof:
		return true
	default:
		return false
	}
}

// Key is the opaque, comparable identifier for a single artifact. It is
// intentionally a plain struct of comparable fields so it can be used
// directly as a map key without a canonicalisation step.
type Key struct {
	Type ArtifactType
	ID   string
}

// New builds a Key from an already-known type and id, e.g. after stripping
// a URI prefix.
func New(t ArtifactType, id string) Key {
	return Key{Type: t, ID: id}
}

// Generate mints a fresh Key with a time-ordered, globally unique id. Ids
// never repeat within a process; uuid.NewV7 sorts lexicographically by
// creation time.
func Generate(t ArtifactType) Key {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the system clock/rand source is
		// broken; fall back to a random v4 rather than panic the
		// request path.
		id = uuid.New()
	}
	return Key{Type: t, ID: id.String()}
}

// FromURI parses either projection back into a Key: the opaque
// "artifacts://{type}/{id}" URI, or a presigned "{hostname}/artifacts/{type}/{id}"
// URL. Both reduce to the same canonical "{type}/{id}" suffix, so
// FromURI(k.AsURI()) == k and FromURI(k.AsPresignedURL(h)) == k for any key
// k and hostname h.
func FromURI(uri string) (Key, error) {
	trimmed := strings.TrimPrefix(uri, "artifacts://")
	if idx := strings.Index(trimmed, "/artifacts/"); idx != -1 {
		trimmed = trimmed[idx+len("/artifacts/"):]
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Key{}, fmt.Errorf("key: malformed uri %q", uri)
	}
	t := ArtifactType(parts[0])
	if !t.Valid() {
		return Key{}, fmt.Errorf("key: unknown artifact type %q", parts[0])
	}
	return Key{Type: t, ID: parts[1]}, nil
}

// String renders the canonical "{type}/{id}" projection used as the URL
// path component and as the queued StdinRef.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Type, k.ID)
}

// AsURI renders the opaque "artifacts://{type}/{id}" form handed back to
// external clients.
func (k Key) AsURI() string {
	return "artifacts://" + k.String()
}

// AsPresignedURL renders "{hostname}/artifacts/{type}/{id}", identical to
// AsURI save for the scheme/host prefix.
func (k Key) AsPresignedURL(hostname string) string {
	hostname = strings.TrimSuffix(hostname, "/")
	return fmt.Sprintf("%s/artifacts/%s", hostname, k.String())
}
