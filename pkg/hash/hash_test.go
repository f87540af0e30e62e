package hash

import (
	"strings"
	"testing"
)

func TestSHA256Hex(t *testing.T) {
	// Known vector: SHA256("abc")
	got := SHA256Hex("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("SHA256Hex(abc) = %s, want %s", got, want)
	}
}

func TestIteratedSHA256_Deterministic(t *testing.T) {
	a := IteratedSHA256("input", 1000)
	b := IteratedSHA256("input", 1000)
	if a != b {
		t.Error("same input should produce same hash")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64", len(a))
	}
}

func TestIteratedSHA256_IterationsMatter(t *testing.T) {
	a := IteratedSHA256("input", 1)
	b := IteratedSHA256("input", 2)
	if a == b {
		t.Error("different iteration counts should produce different hashes")
	}
	if IteratedSHA256("input", 1) != SHA256Hex("input") {
		t.Error("one iteration should equal plain SHA256")
	}
}

func TestDeviceFingerprint_Stable(t *testing.T) {
	a := DeviceFingerprint("salt", "203.0.113.9", "Mozilla/5.0", "en-US")
	b := DeviceFingerprint("salt", "203.0.113.9", "Mozilla/5.0", "en-US")
	if a != b {
		t.Error("identical signals should produce an identical fingerprint")
	}
}

func TestDeviceFingerprint_SignalSensitivity(t *testing.T) {
	base := DeviceFingerprint("salt", "203.0.113.9", "Mozilla/5.0", "en-US")

	cases := map[string]string{
		"salt":     DeviceFingerprint("other", "203.0.113.9", "Mozilla/5.0", "en-US"),
		"ip":       DeviceFingerprint("salt", "203.0.113.10", "Mozilla/5.0", "en-US"),
		"ua":       DeviceFingerprint("salt", "203.0.113.9", "curl/8.0", "en-US"),
		"language": DeviceFingerprint("salt", "203.0.113.9", "Mozilla/5.0", "fr-FR"),
	}
	for name, got := range cases {
		if got == base {
			t.Errorf("changing %s should change the fingerprint", name)
		}
	}
}

func TestDeviceFingerprint_DelimiterInjection(t *testing.T) {
	// "a|b"+"c" and "a"+"b|c" must not collide.
	a := DeviceFingerprint("s", "a|b", "c", "d")
	b := DeviceFingerprint("s", "a", "b|c", "d")
	if a == b {
		t.Error("fingerprint fields must not be collapsible across the delimiter")
	}
}

func TestShortHash(t *testing.T) {
	got := ShortHash("abc", 12)
	if len(got) != 12 {
		t.Errorf("ShortHash length = %d, want 12", len(got))
	}
	if !strings.HasPrefix(SHA256Hex("abc"), got) {
		t.Error("ShortHash should be a prefix of the full hash")
	}
	if ShortHash("abc", 100) != SHA256Hex("abc") {
		t.Error("oversized n should return the full hash")
	}
}
