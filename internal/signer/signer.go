// Package signer wraps the operator's long-lived private key and the
// Signable envelope applied to every outgoing fulfilment message: encode
// the message to canonical bytes, then sign those bytes with the
// operator's Ed25519 key.
package signer

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// Signer holds the operator's keypair used on every outgoing fulfilment
// message (FulfillProof, FailFulfillment). It never leaves the enclave.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// New derives a Signer from a hex-encoded seed or full private key, as
// loaded from NETWORK_PRIVATE_KEY.
func New(hexKey string) (*Signer, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("signer: decode private key: %w", err)
	}
	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
	default:
		return nil, fmt.Errorf("signer: private key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// Address returns the signer's public identity, the value fulfill workers
// present to GetNonce.
func (s *Signer) Address() []byte {
	return append([]byte(nil), s.pub...)
}

// Sign produces a detached signature over msg.
func (s *Signer) Sign(msg []byte) []byte {
	return ed25519.Sign(s.priv, msg)
}

// Signable is any outgoing request body that can be canonically encoded to
// bytes before signing. Both netclient.FulfillProofBody and
// netclient.FailFulfillmentBody implement it.
type Signable interface {
	EncodeToBytes() ([]byte, error)
}

// SignEnvelope encodes msg and signs the resulting bytes.
func SignEnvelope(s *Signer, msg Signable) ([]byte, error) {
	encoded, err := msg.EncodeToBytes()
	if err != nil {
		return nil, fmt.Errorf("signer: encode message: %w", err)
	}
	return s.Sign(encoded), nil
}
