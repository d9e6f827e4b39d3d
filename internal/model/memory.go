// Package model defines the signed memory data types and the canonical
// serialization they are signed over.
package model

import (
	"encoding/json"
	"time"
)

// TimeLayout is RFC 3339 with fixed-width nanoseconds, always UTC.
// Fixed width keeps lexicographic comparison of timestamps equivalent to
// chronological comparison, which recall's filtering and sorting rely on.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Now returns the current time formatted with TimeLayout.
func Now() string {
	return time.Now().UTC().Format(TimeLayout)
}

// SignatureType is the algorithm tag recorded on every signature.
const SignatureType = "Ed25519Signature2020"

// ProtocolVersion is the store format version recorded on new identities.
const ProtocolVersion = "1.0"

// Signature is the proof attached to every stored object.
type Signature struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofValue         string `json:"proofValue"`
}

// MemoryObject is the unit of stored knowledge. Every mutation re-signs
// the object; previousHash is set once at creation and never recomputed.
type MemoryObject struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Content       map[string]any `json:"content"`
	Created       string         `json:"created"`
	Updated       string         `json:"updated"`
	Soul          string         `json:"soul"`
	Tags          []string       `json:"tags"`
	Confidence    float64        `json:"confidence"`
	Source        string         `json:"source"`
	Expires       string         `json:"expires,omitempty"`
	Deleted       bool           `json:"deleted"`
	DeletedAt     string         `json:"deletedAt,omitempty"`
	DeletedReason string         `json:"deletedReason,omitempty"`
	PreviousHash  string         `json:"previousHash,omitempty"`
	Signature     *Signature     `json:"signature,omitempty"`
}

// Identity is the single owning record of a store.
type Identity struct {
	Soul            string `json:"soul"`
	Name            string `json:"name"`
	Created         string `json:"created"`
	ProtocolVersion string `json:"protocolVersion"`
	PublicKey       string `json:"publicKey"`
	ChainHead       string `json:"chainHead,omitempty"`
}

// Manifest describes an export bundle. Its signature is computed over the
// manifest itself with the signature field blanked.
type Manifest struct {
	Soul        string            `json:"soul"`
	Created     string            `json:"created"`
	Files       map[string]string `json:"files"`
	ChainHead   string            `json:"chainHead,omitempty"`
	MemoryCount int               `json:"memoryCount"`
	Signature   *Signature        `json:"signature,omitempty"`
}

// ValidTypes are the allowed memory types.
var ValidTypes = map[string]bool{
	"fact":         true,
	"lesson":       true,
	"relationship": true,
	"decision":     true,
	"event":        true,
	"preference":   true,
	"skill":        true,
}

// ValidSources are the allowed memory sources.
var ValidSources = map[string]bool{
	"experience": true,
	"told":       true,
	"inferred":   true,
}

// DefaultSource is applied when a creation request omits source.
const DefaultSource = "experience"

// DefaultConfidence is applied when a creation request omits confidence.
const DefaultConfidence = 1.0

// CanonicalBytes returns the single byte form of v used for signing,
// verification, and chain hashing: JSON with lexicographically sorted
// keys at every nesting level and the signature field removed. Every
// implementation of the format must produce these exact bytes or
// cross-platform verification breaks.
func CanonicalBytes(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	delete(m, "signature")
	// encoding/json writes map keys in sorted order at every level.
	return json.Marshal(m)
}
