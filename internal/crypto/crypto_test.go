package crypto

import (
	"bytes"
	"testing"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestNewSigner_RejectsShortSecret(t *testing.T) {
	if _, err := NewSigner([]byte("too-short")); err == nil {
		t.Fatal("expected error for short secret")
	}
	if _, err := NewSigner(testSecret); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCanonicalize_FixedOrder(t *testing.T) {
	a, err := Canonicalize(map[string]string{"contact": "c@x.com", "owner": "o@x.com", "usage": "invitation"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Canonicalize(map[string]string{"usage": "invitation", "owner": "o@x.com", "contact": "c@x.com"})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("encoding depends on insertion order:\n%x\n%x", a, b)
	}

	// owner (5) < usage (5, bytewise after owner) < contact (7)
	iOwner := bytes.Index(a, []byte("owner"))
	iUsage := bytes.Index(a, []byte("usage"))
	iContact := bytes.Index(a, []byte("contact"))
	if !(iOwner < iUsage && iUsage < iContact) {
		t.Errorf("unexpected key order: owner=%d usage=%d contact=%d", iOwner, iUsage, iContact)
	}
}

func TestCanonicalize_RoundTrip(t *testing.T) {
	in := map[string]string{"sub": "a@x.com", "nbf": "1", "exp": "2"}
	data, err := Canonicalize(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decanonicalize(data)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range in {
		if out[k] != v {
			t.Errorf("field %q: got %q, want %q", k, out[k], v)
		}
	}
	if _, err := Canonicalize(nil); err == nil {
		t.Error("expected error for empty field set")
	}
	if _, err := Decanonicalize([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestSigner_SignVerify(t *testing.T) {
	s, err := NewSigner(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("payload")
	sig := s.Sign(payload)

	if !s.Verify(payload, sig) {
		t.Fatal("valid signature rejected")
	}
	if s.Verify([]byte("payload2"), sig) {
		t.Error("signature accepted for different payload")
	}

	for i := 0; i < len(sig)*8; i++ {
		flipped := make([]byte, len(sig))
		copy(flipped, sig)
		flipped[i/8] ^= 1 << (i % 8)
		if s.Verify(payload, flipped) {
			t.Fatalf("bit %d flip accepted", i)
		}
	}

	other, _ := NewSigner([]byte("fedcba9876543210fedcba9876543210"))
	if other.Verify(payload, sig) {
		t.Error("signature accepted under a different secret")
	}
}

func TestSigner_DeriveKey(t *testing.T) {
	s, _ := NewSigner(testSecret)
	k1, err := s.DeriveKey("session", 32)
	if err != nil {
		t.Fatal(err)
	}
	k2, _ := s.DeriveKey("session", 32)
	k3, _ := s.DeriveKey("other", 32)
	if !bytes.Equal(k1, k2) {
		t.Error("derivation is not deterministic")
	}
	if bytes.Equal(k1, k3) {
		t.Error("different purposes produced the same key")
	}
	if bytes.Equal(k1, testSecret) {
		t.Error("derived key equals the shared secret")
	}
}
