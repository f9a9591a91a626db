package algo

import (
	"bytes"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"randomx", KindRandomX, false},
		{"RandomX", KindRandomX, false},
		{"cryptonight-v7", KindCryptoNightV7, false},
		{"cnv7", KindCryptoNightV7, false},
		{"cryptonight-r", KindCryptoNightR, false},
		{"cnr", KindCryptoNightR, false},
		{"scrypt", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseKind(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestKind_String_RoundTrip(t *testing.T) {
	for _, kind := range []Kind{KindRandomX, KindCryptoNightV7, KindCryptoNightR} {
		parsed, err := ParseKind(kind.String())
		if err != nil {
			t.Fatalf("ParseKind(%q) failed: %v", kind.String(), err)
		}
		if parsed != kind {
			t.Errorf("round trip %v -> %q -> %v", kind, kind.String(), parsed)
		}
	}
}

func TestBelowTarget(t *testing.T) {
	// Target with top byte zero; digests one below, equal, and one above.
	target := make([]byte, 32)
	target[0] = 0x00
	for i := 1; i < 32; i++ {
		target[i] = 0xff
	}

	var equal [32]byte
	copy(equal[:], target)

	var below [32]byte
	copy(below[:], target)
	below[31] = 0xfe

	var above [32]byte
	copy(above[:], target)
	above[0] = 0x01

	if !BelowTarget(below, target) {
		t.Error("digest one below target must pass")
	}
	if BelowTarget(equal, target) {
		t.Error("digest equal to target must not pass")
	}
	if BelowTarget(above, target) {
		t.Error("digest above target must not pass")
	}
}

func TestHashInput(t *testing.T) {
	blob := []byte{0xab, 0xcd}
	input := HashInput(blob, 1)

	want := []byte{0xab, 0xcd, 0x01, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(input, want) {
		t.Errorf("HashInput = %x, want %x", input, want)
	}
}

func TestSHA256d_Deterministic(t *testing.T) {
	h := NewSHA256d(KindRandomX)

	d1, err := h.Hash([]byte("blob"), 7)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	d2, err := h.Hash([]byte("blob"), 7)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if d1 != d2 {
		t.Error("expected deterministic digests for identical input")
	}

	d3, _ := h.Hash([]byte("blob"), 8)
	if d1 == d3 {
		t.Error("expected different digests for different nonces")
	}
}

func TestSHA256d_Verify(t *testing.T) {
	h := NewSHA256d(KindRandomX)
	blob := []byte{0x01, 0x02, 0x03}

	digest, err := h.Hash(blob, 42)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	// Target equal to the digest: strict comparison must fail.
	ok, err := h.Verify(blob, 42, digest[:])
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Error("Verify must be false when digest equals target")
	}

	// Target one above the digest: strictly below, must pass.
	bumped := make([]byte, 32)
	copy(bumped, digest[:])
	for i := 31; i >= 0; i-- {
		bumped[i]++
		if bumped[i] != 0 {
			break
		}
	}
	ok, err = h.Verify(blob, 42, bumped)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Error("Verify must be true when digest is below target")
	}
}

func TestRegistry(t *testing.T) {
	RegisterDevBackends()

	for _, kind := range []Kind{KindRandomX, KindCryptoNightV7, KindCryptoNightR} {
		a, err := New(kind, Options{})
		if err != nil {
			t.Fatalf("New(%v) failed: %v", kind, err)
		}
		if a.Kind() != kind {
			t.Errorf("New(%v).Kind() = %v", kind, a.Kind())
		}
	}
}
