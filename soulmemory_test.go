package soulmemory_test

import (
	"context"
	"testing"

	soulmemory "github.com/rcliao/soul-memory"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := soulmemory.Open(dir, soulmemory.WithName("tester"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	mem, err := s.Remember(ctx, soulmemory.RememberParams{
		Type:    "fact",
		Content: map[string]any{"subject": "Adam", "property": "timezone", "value": "MST"},
	})
	if err != nil {
		t.Fatalf("remember: %v", err)
	}
	if mem.Signature == nil {
		t.Fatal("expected a signed object")
	}

	got := s.Recall(ctx, soulmemory.RecallParams{Type: "fact"})
	if len(got) != 1 || got[0].Content["value"] != "MST" {
		t.Fatalf("recall = %v", got)
	}

	if r := s.Verify(ctx); !r.Valid {
		t.Fatalf("fresh store does not verify: %+v", r)
	}
	if st := s.Stats(); st.Active != 1 || st.ByType["fact"] != 1 {
		t.Fatalf("stats = %+v", st)
	}
}
