package security

import (
	"testing"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" || hash == "secret123" {
		t.Fatalf("Hash returned %q", hash)
	}
	if !h.Verify("secret123", hash) {
		t.Fatal("Verify should accept the original password")
	}
}

func TestHasher_VerifyWrongPassword(t *testing.T) {
	h := NewHasher(4)
	hash, _ := h.Hash("secret123")
	if h.Verify("wrong", hash) {
		t.Fatal("Verify with wrong password should fail")
	}
}

func TestHasher_VerifyInvalidDigest(t *testing.T) {
	h := NewHasher(4)
	if h.Verify("secret123", "not-a-bcrypt-hash") {
		t.Fatal("Verify with invalid digest should fail")
	}
	if h.Verify("secret123", "") {
		t.Fatal("Verify with empty digest should fail")
	}
}

func TestHasher_HashEmpty(t *testing.T) {
	h := NewHasher(4)
	if _, err := h.Hash(""); err != ErrEmptyPassword {
		t.Errorf("Hash(\"\") err = %v, want ErrEmptyPassword", err)
	}
}

func TestHasher_Cost(t *testing.T) {
	h := NewHasher(12)
	if h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	h0 := NewHasher(0)
	if h0.Cost < 4 {
		t.Errorf("zero cost should be clamped to at least MinCost, got %d", h0.Cost)
	}
	if hi := NewHasher(99); hi.Cost != 31 {
		t.Errorf("cost above max should clamp to 31, got %d", hi.Cost)
	}
}
