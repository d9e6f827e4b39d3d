// Package signer provides the hashing, signing, and identifier primitives
// for the memory store: SHA-256 content hashes, Ed25519 signatures framed
// through the codec, and self-describing public keys.
package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/rcliao/soul-memory/internal/codec"
)

// ed25519PubPrefix is the multicodec tag for an Ed25519 public key.
var ed25519PubPrefix = []byte{0xed, 0x01}

// Hash returns the canonical content hash of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Sign returns the multibase-encoded Ed25519 signature over data.
func Sign(data []byte, key ed25519.PrivateKey) string {
	return codec.Encode(ed25519.Sign(key, data))
}

// Verify reports whether sig is a valid signature over data by pub.
// Any failure — bad prefix, undecodable string, wrong signature — is
// false, never an error: invalid signatures are an expected outcome of
// integrity scans.
func Verify(data []byte, sig string, pub ed25519.PublicKey) bool {
	raw, err := codec.Decode(sig)
	if err != nil || len(raw) != ed25519.SignatureSize || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, data, raw)
}

// GenerateID mints a memory id: a base36 millisecond timestamp for rough
// ordering plus 8 random bytes to avoid same-instant collision.
func GenerateID() string {
	suffix := make([]byte, 8)
	rand.Read(suffix)
	return fmt.Sprintf("mem_%s_%s",
		strconv.FormatInt(time.Now().UnixMilli(), 36),
		codec.Encode(suffix))
}

// GenerateKeys creates a new Ed25519 keypair.
func GenerateKeys() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate keypair: %w", err)
	}
	return pub, priv, nil
}

// EncodePublicKey frames pub with the Ed25519 multicodec tag and encodes
// it, so a bare key string is self-describing.
func EncodePublicKey(pub ed25519.PublicKey) string {
	framed := make([]byte, 0, len(ed25519PubPrefix)+len(pub))
	framed = append(framed, ed25519PubPrefix...)
	framed = append(framed, pub...)
	return codec.Encode(framed)
}

// DecodePublicKey reverses EncodePublicKey.
func DecodePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := codec.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) < len(ed25519PubPrefix) || raw[0] != ed25519PubPrefix[0] || raw[1] != ed25519PubPrefix[1] {
		return nil, fmt.Errorf("decode public key: missing ed25519 multicodec prefix")
	}
	key := raw[len(ed25519PubPrefix):]
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("decode public key: got %d bytes, want %d", len(key), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(key), nil
}

// Soul derives the owning identity string for a public key.
func Soul(pub ed25519.PublicKey) string {
	return "did:soul:" + codec.Encode(pub)
}
