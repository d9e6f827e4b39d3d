package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/rcliao/soul-memory/internal/model"
	"github.com/rcliao/soul-memory/internal/signer"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return openTestStore(t, t.TempDir())
}

func openTestStore(t *testing.T, dir string, opts ...Option) *Store {
	t.Helper()
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s, err := Open(dir, opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustRemember(t *testing.T, s *Store, p RememberParams) *model.MemoryObject {
	t.Helper()
	m, err := s.Remember(context.Background(), p)
	if err != nil {
		t.Fatalf("remember: %v", err)
	}
	return m
}

func TestRememberAndRecall(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := mustRemember(t, s, RememberParams{
		Type:    "fact",
		Content: map[string]any{"subject": "Adam", "property": "timezone", "value": "MST"},
	})
	if mem.ID == "" {
		t.Error("expected non-empty id")
	}
	if mem.Signature == nil || mem.Signature.ProofValue == "" {
		t.Fatal("expected a signature on the returned object")
	}

	got := s.Recall(ctx, RecallParams{Type: "fact"})
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	m := got[0]
	if m.Content["value"] != "MST" || m.Content["subject"] != "Adam" {
		t.Errorf("unexpected content %v", m.Content)
	}
	if len(m.Tags) != 0 {
		t.Errorf("expected empty tags, got %v", m.Tags)
	}
	if m.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %v", m.Confidence)
	}
	if m.Source != "experience" {
		t.Errorf("expected source 'experience', got %q", m.Source)
	}
	if m.PreviousHash != "" {
		t.Errorf("first object should have no previousHash, got %q", m.PreviousHash)
	}
}

func TestRememberSignatureVerifies(t *testing.T) {
	s := newTestStore(t)
	mem := mustRemember(t, s, RememberParams{Type: "lesson", Content: map[string]any{"text": "check twice"}})

	b, err := model.CanonicalBytes(mem)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if !signer.Verify(b, mem.Signature.ProofValue, s.pubKey) {
		t.Error("returned object's signature does not verify")
	}
	if mem.Signature.VerificationMethod != s.identity.Soul+"#keys-1" {
		t.Errorf("unexpected verification method %q", mem.Signature.VerificationMethod)
	}
}

func TestRememberValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bad := []RememberParams{
		{Type: "opinion"},
		{Type: ""},
		{Type: "fact", Source: "rumor"},
		{Type: "fact", Confidence: floatPtr(1.5)},
		{Type: "fact", Confidence: floatPtr(-0.1)},
	}
	for _, p := range bad {
		_, err := s.Remember(ctx, p)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Remember(%+v): expected *ValidationError, got %v", p, err)
		}
	}

	// Failed requests leave the store untouched.
	if st := s.Stats(); st.Total != 0 {
		t.Errorf("expected empty store after failed remembers, got %d", st.Total)
	}
	if s.identity.ChainHead != "" {
		t.Errorf("chain head moved on failure: %q", s.identity.ChainHead)
	}
}

func TestChainAdvancesOnRemember(t *testing.T) {
	s := newTestStore(t)

	first := mustRemember(t, s, RememberParams{Type: "fact", Content: map[string]any{"n": 1}})
	if s.identity.ChainHead != first.ID {
		t.Errorf("chain head = %q, want %q", s.identity.ChainHead, first.ID)
	}

	second := mustRemember(t, s, RememberParams{Type: "fact", Content: map[string]any{"n": 2}})
	if s.identity.ChainHead != second.ID {
		t.Errorf("chain head = %q, want %q", s.identity.ChainHead, second.ID)
	}

	b, _ := model.CanonicalBytes(s.memories[first.ID])
	if second.PreviousHash != signer.Hash(b) {
		t.Error("previousHash does not anchor the prior head")
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := mustRemember(t, s, RememberParams{Type: "event", Content: map[string]any{"what": "launch"}})
	got := s.Get(ctx, mem.ID)
	if got == nil || got.ID != mem.ID {
		t.Fatalf("Get(%q) = %v", mem.ID, got)
	}

	// Unknown ids are a normal outcome, not an error.
	if s.Get(ctx, "mem_unknown_z1") != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := mustRemember(t, s, RememberParams{Type: "fact", Content: map[string]any{"v": 1}})
	gone, err := s.Forget(ctx, mem.ID, "superseded")
	if err != nil {
		t.Fatalf("forget: %v", err)
	}
	if !gone.Deleted || gone.DeletedAt == "" {
		t.Errorf("expected deleted=true with deletedAt, got %+v", gone)
	}
	if gone.DeletedReason != "superseded" {
		t.Errorf("expected reason recorded, got %q", gone.DeletedReason)
	}
	if gone.Updated != gone.DeletedAt {
		t.Errorf("updated %q != deletedAt %q", gone.Updated, gone.DeletedAt)
	}

	if res := s.Recall(ctx, RecallParams{}); len(res) != 0 {
		t.Errorf("default recall returned %d deleted objects", len(res))
	}
	aud := s.Recall(ctx, RecallParams{IncludeDeleted: true})
	if len(aud) != 1 || !aud[0].Deleted {
		t.Errorf("include-deleted recall = %v", aud)
	}

	// The record is never physically removed.
	if s.Get(ctx, mem.ID) == nil {
		t.Error("deleted object vanished from the index")
	}
}

func TestForgetUnknownIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mem := mustRemember(t, s, RememberParams{Type: "fact"})

	gone, err := s.Forget(ctx, "mem_unknown_z1", "")
	if err != nil {
		t.Fatalf("forget unknown: %v", err)
	}
	if gone != nil {
		t.Errorf("expected absent result, got %+v", gone)
	}
	if s.identity.ChainHead != mem.ID {
		t.Error("chain head changed on a no-op forget")
	}
	if st := s.Stats(); st.Total != 1 || st.Deleted != 0 {
		t.Errorf("index changed on a no-op forget: %+v", st)
	}
}

func TestForgetKeepsPreviousHash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustRemember(t, s, RememberParams{Type: "fact", Content: map[string]any{"n": 1}})
	second := mustRemember(t, s, RememberParams{Type: "fact", Content: map[string]any{"n": 2}})

	gone, err := s.Forget(ctx, second.ID, "")
	if err != nil {
		t.Fatalf("forget: %v", err)
	}
	if gone.PreviousHash != second.PreviousHash {
		t.Error("forget recomputed previousHash")
	}
	if gone.Signature.ProofValue == second.Signature.ProofValue {
		t.Error("forget did not re-sign the object")
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := mustRemember(t, s, RememberParams{
		Type:    "preference",
		Content: map[string]any{"theme": "dark", "editor": "vim"},
		Tags:    []string{"ui"},
	})

	updated, err := s.Update(ctx, mem.ID, UpdateParams{
		Content:    map[string]any{"theme": "light", "font": "mono"},
		Confidence: floatPtr(0.8),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	// Content merges shallowly: overridden, added, and retained keys.
	if updated.Content["theme"] != "light" || updated.Content["font"] != "mono" || updated.Content["editor"] != "vim" {
		t.Errorf("unexpected merged content %v", updated.Content)
	}
	// Tags were not supplied, so they are retained.
	if len(updated.Tags) != 1 || updated.Tags[0] != "ui" {
		t.Errorf("tags changed without being supplied: %v", updated.Tags)
	}
	if updated.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", updated.Confidence)
	}
	if updated.Created != mem.Created {
		t.Error("update changed created")
	}
	if updated.Updated <= mem.Updated {
		t.Error("update did not bump updated")
	}
	if updated.PreviousHash != mem.PreviousHash {
		t.Error("update recomputed previousHash")
	}
	if updated.Signature.ProofValue == mem.Signature.ProofValue {
		t.Error("update did not re-sign the object")
	}

	replaced, err := s.Update(ctx, mem.ID, UpdateParams{Tags: []string{"style", "display"}})
	if err != nil {
		t.Fatalf("update tags: %v", err)
	}
	if len(replaced.Tags) != 2 {
		t.Errorf("tags not replaced: %v", replaced.Tags)
	}
}

func TestUpdateUnknownAndDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if got, err := s.Update(ctx, "mem_unknown_z1", UpdateParams{}); err != nil || got != nil {
		t.Errorf("update unknown = (%v, %v), want absent", got, err)
	}

	mem := mustRemember(t, s, RememberParams{Type: "fact", Content: map[string]any{"v": 1}})
	if _, err := s.Forget(ctx, mem.ID, ""); err != nil {
		t.Fatalf("forget: %v", err)
	}
	before := s.Get(ctx, mem.ID)

	// Updates never resurrect or touch deleted records.
	got, err := s.Update(ctx, mem.ID, UpdateParams{Content: map[string]any{"v": 2}})
	if err != nil || got != nil {
		t.Errorf("update deleted = (%v, %v), want absent", got, err)
	}
	after := s.Get(ctx, mem.ID)
	if after.Updated != before.Updated || after.Content["v"] != before.Content["v"] {
		t.Error("deleted object changed after rejected update")
	}
}

func TestUpdateValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mem := mustRemember(t, s, RememberParams{Type: "fact"})

	_, err := s.Update(ctx, mem.ID, UpdateParams{Confidence: floatPtr(2.0)})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected *ValidationError, got %v", err)
	}
	if got := s.Get(ctx, mem.ID); got.Confidence != 1.0 {
		t.Error("confidence changed after rejected update")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustRemember(t, s, RememberParams{Type: "fact"})
	mustRemember(t, s, RememberParams{Type: "fact"})
	mustRemember(t, s, RememberParams{Type: "lesson"})
	gone := mustRemember(t, s, RememberParams{Type: "event"})
	s.Forget(ctx, gone.ID, "")

	st := s.Stats()
	if st.Total != 4 || st.Active != 3 || st.Deleted != 1 {
		t.Errorf("counts = %+v", st)
	}
	if st.ByType["fact"] != 2 || st.ByType["lesson"] != 1 {
		t.Errorf("byType = %v", st.ByType)
	}
	// Deleted records do not count toward type totals.
	if st.ByType["event"] != 0 {
		t.Errorf("deleted record counted in byType: %v", st.ByType)
	}
	if st.Soul != s.identity.Soul {
		t.Errorf("soul = %q", st.Soul)
	}
}

func floatPtr(f float64) *float64 { return &f }
