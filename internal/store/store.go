// Package store implements the signed memory store engine: it owns the
// identity record and the in-memory index of memory objects, and mediates
// every mutation through canonical serialization and signing.
package store

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/rcliao/soul-memory/internal/model"
	"github.com/rcliao/soul-memory/internal/signer"
)

// ValidationError reports a structurally invalid request. The store state
// is unchanged when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Store is the single owner of one memory directory. It is not safe for
// concurrent use; callers must serialize access externally.
type Store struct {
	backend  Backend
	logger   *slog.Logger
	identity *model.Identity
	signKey  ed25519.PrivateKey
	pubKey   ed25519.PublicKey
	memories map[string]*model.MemoryObject
	order    []string // ids in creation order; recall's tie-break and the chain walk rely on it
}

type options struct {
	logger  *slog.Logger
	backend Backend
	name    string
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger used to report load warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBackend overrides the default file backend.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithName sets the identity name recorded when a new store is created.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Open loads the store rooted at dir, creating a fresh identity and
// keypair when none exists yet. Unparseable persisted records are skipped
// and reported; loading still succeeds with the remaining valid records.
func Open(dir string, opts ...Option) (*Store, error) {
	o := options{logger: slog.Default(), name: "agent"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.backend == nil {
		o.backend = NewFileBackend(dir)
	}

	ident, key, err := o.backend.LoadIdentity()
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if ident == nil {
		pub, priv, err := signer.GenerateKeys()
		if err != nil {
			return nil, err
		}
		ident = &model.Identity{
			Soul:            signer.Soul(pub),
			Name:            o.name,
			Created:         model.Now(),
			ProtocolVersion: model.ProtocolVersion,
			PublicKey:       signer.EncodePublicKey(pub),
		}
		key = priv
		if err := o.backend.SaveIdentity(ident, key); err != nil {
			return nil, fmt.Errorf("save identity: %w", err)
		}
	}

	pub, err := signer.DecodePublicKey(ident.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("identity public key: %w", err)
	}

	objs, skipped, err := o.backend.LoadMemories()
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	for _, bad := range skipped {
		o.logger.Warn("skipping unreadable memory record", "line", bad.Line, "error", bad.Err)
	}

	s := &Store{
		backend:  o.backend,
		logger:   o.logger,
		identity: ident,
		signKey:  key,
		pubKey:   pub,
		memories: make(map[string]*model.MemoryObject, len(objs)),
	}
	for _, m := range objs {
		if _, dup := s.memories[m.ID]; dup {
			o.logger.Warn("skipping duplicate memory id", "id", m.ID)
			continue
		}
		s.memories[m.ID] = m
		s.order = append(s.order, m.ID)
	}
	return s, nil
}

// Identity returns a copy of the store's identity record.
func (s *Store) Identity() model.Identity {
	return *s.identity
}

// Close releases the persistence backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// RememberParams holds a memory creation request.
type RememberParams struct {
	Type       string
	Content    map[string]any
	Tags       []string
	Confidence *float64 // nil means the default of 1.0
	Source     string
	Expires    string
}

// Remember creates, signs, and persists a new memory object, advancing the
// chain head to it.
func (s *Store) Remember(ctx context.Context, p RememberParams) (*model.MemoryObject, error) {
	if !model.ValidTypes[p.Type] {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown memory type %q", p.Type)}
	}
	source := p.Source
	if source == "" {
		source = model.DefaultSource
	}
	if !model.ValidSources[source] {
		return nil, &ValidationError{Field: "source", Reason: fmt.Sprintf("unknown source %q", p.Source)}
	}
	confidence := model.DefaultConfidence
	if p.Confidence != nil {
		confidence = *p.Confidence
	}
	if confidence < 0 || confidence > 1 {
		return nil, &ValidationError{Field: "confidence", Reason: fmt.Sprintf("%v is outside [0,1]", confidence)}
	}

	// The new object records the hash of the current head as it is stored
	// right now; that anchor is never recomputed afterwards.
	var prevHash string
	if head, ok := s.memories[s.identity.ChainHead]; ok {
		b, err := model.CanonicalBytes(head)
		if err != nil {
			return nil, fmt.Errorf("hash chain head: %w", err)
		}
		prevHash = signer.Hash(b)
	}

	content := make(map[string]any, len(p.Content))
	for k, v := range p.Content {
		content[k] = v
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	now := model.Now()
	obj := &model.MemoryObject{
		ID:           signer.GenerateID(),
		Type:         p.Type,
		Content:      content,
		Created:      now,
		Updated:      now,
		Soul:         s.identity.Soul,
		Tags:         slices.Clone(tags),
		Confidence:   confidence,
		Source:       source,
		Expires:      p.Expires,
		PreviousHash: prevHash,
	}
	if err := s.sign(obj); err != nil {
		return nil, err
	}

	prevHead := s.identity.ChainHead
	s.memories[obj.ID] = obj
	s.order = append(s.order, obj.ID)
	s.identity.ChainHead = obj.ID

	if err := s.persist(); err != nil {
		delete(s.memories, obj.ID)
		s.order = s.order[:len(s.order)-1]
		s.identity.ChainHead = prevHead
		return nil, err
	}
	return clone(obj), nil
}

// Get returns the memory with the given id, or nil for an unknown id.
func (s *Store) Get(ctx context.Context, id string) *model.MemoryObject {
	m, ok := s.memories[id]
	if !ok {
		return nil
	}
	return clone(m)
}

// Forget soft-deletes a memory: the record stays in the store and remains
// reachable through an include-deleted recall. Returns nil for an unknown
// id.
func (s *Store) Forget(ctx context.Context, id, reason string) (*model.MemoryObject, error) {
	m, ok := s.memories[id]
	if !ok {
		return nil, nil
	}

	orig := clone(m)
	now := model.Now()
	m.Deleted = true
	m.DeletedAt = now
	m.DeletedReason = reason
	m.Updated = now
	if err := s.sign(m); err != nil {
		*m = *orig
		return nil, err
	}
	if err := s.persist(); err != nil {
		*m = *orig
		return nil, err
	}
	return clone(m), nil
}

// UpdateParams holds a partial update. Content merges shallowly at the top
// level; Tags and Confidence replace only when supplied.
type UpdateParams struct {
	Content    map[string]any
	Tags       []string // nil keeps existing tags
	Confidence *float64 // nil keeps existing confidence
}

// Update applies a partial update and re-signs the object. Returns nil for
// an unknown id or a deleted object; updates never resurrect records.
func (s *Store) Update(ctx context.Context, id string, p UpdateParams) (*model.MemoryObject, error) {
	m, ok := s.memories[id]
	if !ok || m.Deleted {
		return nil, nil
	}
	if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 1) {
		return nil, &ValidationError{Field: "confidence", Reason: fmt.Sprintf("%v is outside [0,1]", *p.Confidence)}
	}

	orig := clone(m)
	if m.Content == nil {
		m.Content = map[string]any{}
	}
	for k, v := range p.Content {
		m.Content[k] = v
	}
	if p.Tags != nil {
		m.Tags = slices.Clone(p.Tags)
	}
	if p.Confidence != nil {
		m.Confidence = *p.Confidence
	}
	m.Updated = model.Now()
	if err := s.sign(m); err != nil {
		*m = *orig
		return nil, err
	}
	if err := s.persist(); err != nil {
		*m = *orig
		return nil, err
	}
	return clone(m), nil
}

// sign recomputes the object's signature from its canonical serialization.
func (s *Store) sign(m *model.MemoryObject) error {
	m.Signature = nil
	b, err := model.CanonicalBytes(m)
	if err != nil {
		return fmt.Errorf("canonicalize %s: %w", m.ID, err)
	}
	m.Signature = &model.Signature{
		Type:               model.SignatureType,
		Created:            model.Now(),
		VerificationMethod: s.identity.Soul + "#keys-1",
		ProofValue:         signer.Sign(b, s.signKey),
	}
	return nil
}

// persist writes the identity document and the full memory log.
func (s *Store) persist() error {
	if err := s.backend.SaveIdentity(s.identity, s.signKey); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	if err := s.backend.SaveMemories(s.snapshot()); err != nil {
		return fmt.Errorf("save memories: %w", err)
	}
	return nil
}

// snapshot returns the index contents in creation order.
func (s *Store) snapshot() []*model.MemoryObject {
	objs := make([]*model.MemoryObject, 0, len(s.order))
	for _, id := range s.order {
		objs = append(objs, s.memories[id])
	}
	return objs
}

// resort restores creation order after an import interleaves records.
func (s *Store) resort() {
	sort.SliceStable(s.order, func(i, j int) bool {
		return s.memories[s.order[i]].Created < s.memories[s.order[j]].Created
	})
}

// clone copies an object so callers cannot reach into the index. Content
// is copied at the top level, the grain updates merge at.
func clone(m *model.MemoryObject) *model.MemoryObject {
	c := *m
	c.Content = make(map[string]any, len(m.Content))
	for k, v := range m.Content {
		c.Content[k] = v
	}
	c.Tags = slices.Clone(m.Tags)
	if m.Signature != nil {
		sig := *m.Signature
		c.Signature = &sig
	}
	return &c
}
