package signer

import (
	"strings"
	"testing"
)

func TestHash(t *testing.T) {
	got := Hash([]byte("hello"))
	want := "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("Hash = %q, want %q", got, want)
	}
	if Hash([]byte("hello")) != got {
		t.Error("hash is not deterministic")
	}
	if Hash([]byte("hello.")) == got {
		t.Error("different inputs hashed equal")
	}
}

func TestSignVerify(t *testing.T) {
	pub, priv, err := GenerateKeys()
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}

	data := []byte(`{"content":{"value":"MST"},"type":"fact"}`)
	sig := Sign(data, priv)
	if !strings.HasPrefix(sig, "z") {
		t.Errorf("signature %q lacks multibase prefix", sig)
	}
	if !Verify(data, sig, pub) {
		t.Error("valid signature did not verify")
	}
	if Verify([]byte("tampered"), sig, pub) {
		t.Error("signature verified against different data")
	}

	otherPub, _, _ := GenerateKeys()
	if Verify(data, sig, otherPub) {
		t.Error("signature verified against wrong key")
	}
}

func TestVerifyMalformedSignature(t *testing.T) {
	pub, priv, _ := GenerateKeys()
	data := []byte("data")

	// Malformed inputs are false, never a panic or an error.
	for _, sig := range []string{"", "notmultibase", "z0invalid", "zabc"} {
		if Verify(data, sig, pub) {
			t.Errorf("Verify(%q) = true", sig)
		}
	}
	if Verify(data, Sign(data, priv), pub[:16]) {
		t.Error("verified against truncated key")
	}
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	if !strings.HasPrefix(id, "mem_") {
		t.Errorf("id %q lacks mem_ prefix", id)
	}
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		t.Fatalf("id %q: expected 3 parts, got %d", id, len(parts))
	}
	if !strings.HasPrefix(parts[2], "z") {
		t.Errorf("random suffix %q lacks multibase prefix", parts[2])
	}

	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := GenerateID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestPublicKeyRoundTrip(t *testing.T) {
	pub, _, _ := GenerateKeys()
	encoded := EncodePublicKey(pub)
	if !strings.HasPrefix(encoded, "z") {
		t.Errorf("encoded key %q lacks multibase prefix", encoded)
	}

	decoded, err := DecodePublicKey(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != string(pub) {
		t.Error("round trip changed the key")
	}
}

func TestDecodePublicKeyErrors(t *testing.T) {
	pub, _, _ := GenerateKeys()
	// A bare key without the multicodec frame must be rejected.
	if _, err := DecodePublicKey(EncodePublicKey(pub)[:10]); err == nil {
		t.Error("expected error for truncated key")
	}
	if _, err := DecodePublicKey("z2NEpo7TZRRrLZSi2U"); err == nil {
		t.Error("expected error for unframed bytes")
	}
	if _, err := DecodePublicKey("not-multibase"); err == nil {
		t.Error("expected error for missing prefix")
	}
}

func TestSoul(t *testing.T) {
	pub, _, _ := GenerateKeys()
	soul := Soul(pub)
	if !strings.HasPrefix(soul, "did:soul:z") {
		t.Errorf("soul %q has unexpected shape", soul)
	}
	otherPub, _, _ := GenerateKeys()
	if Soul(otherPub) == soul {
		t.Error("different keys derived the same soul")
	}
}
