package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestOfIsDeterministic(t *testing.T) {
	b := []byte("some canonical op bytes")
	d1 := Of(b)
	d2 := Of(b)
	if d1 != d2 {
		t.Fatalf("digest of identical bytes differed: %s vs %s", d1, d2)
	}
	sum := sha256.Sum256(b)
	want := "sha256:" + hex.EncodeToString(sum[:])
	if string(d1) != want {
		t.Fatalf("digest = %s, want %s", d1, want)
	}
}

func TestOfDiffers(t *testing.T) {
	if Of([]byte("a")) == Of([]byte("b")) {
		t.Fatal("expected distinct digests for distinct inputs")
	}
}

func TestValidate(t *testing.T) {
	d := Of([]byte("x"))
	if err := Validate(d); err != nil {
		t.Fatalf("Validate(%s) = %v, want nil", d, err)
	}
	if err := Validate(Digest("not-a-digest")); err == nil {
		t.Fatal("expected error for malformed digest")
	}
}
