package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rcliao/soul-memory/internal/model"
	"github.com/rcliao/soul-memory/internal/signer"
)

// Bundle is a self-contained export: the full audit trail (active and
// deleted memories), the identity document, and a signed manifest a
// recipient can check the whole bundle against.
type Bundle struct {
	Manifest *model.Manifest      `json:"manifest"`
	Identity *model.Identity      `json:"identity"`
	Memories []model.MemoryObject `json:"memories"`
}

// Export snapshots every memory plus the identity and signs a manifest
// over the artifact hashes. The bundle is returned, not persisted.
func (s *Store) Export(ctx context.Context) (*Bundle, error) {
	memories := make([]model.MemoryObject, 0, len(s.order))
	for _, id := range s.order {
		memories = append(memories, *clone(s.memories[id]))
	}

	memBytes, err := json.Marshal(memories)
	if err != nil {
		return nil, fmt.Errorf("serialize memories: %w", err)
	}
	ident := *s.identity
	identBytes, err := json.Marshal(&ident)
	if err != nil {
		return nil, fmt.Errorf("serialize identity: %w", err)
	}

	manifest := &model.Manifest{
		Soul:    s.identity.Soul,
		Created: model.Now(),
		Files: map[string]string{
			"memories": signer.Hash(memBytes),
			"identity": signer.Hash(identBytes),
		},
		ChainHead:   s.identity.ChainHead,
		MemoryCount: len(memories),
	}
	// The manifest signs itself with the signature field blanked.
	b, err := model.CanonicalBytes(manifest)
	if err != nil {
		return nil, fmt.Errorf("canonicalize manifest: %w", err)
	}
	manifest.Signature = &model.Signature{
		Type:               model.SignatureType,
		Created:            manifest.Created,
		VerificationMethod: s.identity.Soul + "#keys-1",
		ProofValue:         signer.Sign(b, s.signKey),
	}

	return &Bundle{Manifest: manifest, Identity: &ident, Memories: memories}, nil
}

// Import restores memories from a bundle exported by the same identity.
// The manifest signature must verify; records whose id is already present
// are skipped. Returns the number of memories inserted.
func (s *Store) Import(ctx context.Context, b *Bundle) (int, error) {
	if b == nil || b.Manifest == nil || b.Identity == nil {
		return 0, &ValidationError{Field: "bundle", Reason: "missing manifest or identity"}
	}
	if b.Identity.Soul != s.identity.Soul {
		return 0, &ValidationError{Field: "soul", Reason: "bundle belongs to a different identity"}
	}
	if b.Manifest.Signature == nil {
		return 0, &ValidationError{Field: "manifest", Reason: "missing signature"}
	}
	canonical, err := model.CanonicalBytes(b.Manifest)
	if err != nil {
		return 0, fmt.Errorf("canonicalize manifest: %w", err)
	}
	if !signer.Verify(canonical, b.Manifest.Signature.ProofValue, s.pubKey) {
		return 0, &ValidationError{Field: "manifest", Reason: "signature does not verify"}
	}

	wasEmpty := len(s.memories) == 0
	var inserted []string
	for i := range b.Memories {
		m := b.Memories[i]
		if _, exists := s.memories[m.ID]; exists {
			continue
		}
		s.memories[m.ID] = clone(&m)
		s.order = append(s.order, m.ID)
		inserted = append(inserted, m.ID)
	}
	if len(inserted) == 0 {
		return 0, nil
	}
	s.resort()

	prevHead := s.identity.ChainHead
	if wasEmpty && b.Manifest.ChainHead != "" {
		s.identity.ChainHead = b.Manifest.ChainHead
	}

	if err := s.persist(); err != nil {
		for _, id := range inserted {
			delete(s.memories, id)
		}
		s.order = make([]string, 0, len(s.memories))
		for id := range s.memories {
			s.order = append(s.order, id)
		}
		s.resort()
		s.identity.ChainHead = prevHead
		return 0, err
	}
	return len(inserted), nil
}
