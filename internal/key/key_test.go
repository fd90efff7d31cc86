package key

import "testing"

func TestRoundTripURI(t *testing.T) {
	k := Generate(TypeStdin)

	got, err := FromURI(k.AsURI())
	if err != nil {
		t.Fatalf("FromURI: %v", err)
	}
	if got != k {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, k)
	}
}

func TestRoundTripPresignedURL(t *testing.T) {
	k := Generate(TypeProof)
	url := k.AsPresignedURL("https://tee.example.com")

	got, err := FromURI(url)
	if err != nil {
		t.Fatalf("FromURI: %v", err)
	}
	if got != k {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, k)
	}
}

func TestFromURIRejectsUnknownType(t *testing.T) {
	if _, err := FromURI("artifacts://bogus/abc"); err == nil {
		t.Fatal("expected error for unknown artifact type")
	}
}

func TestFromURIRejectsMalformed(t *testing.T) {
	cases := []string{"artifacts://", "artifacts://stdins", ""}
	for _, c := range cases {
		if _, err := FromURI(c); err == nil {
			t.Fatalf("expected error for malformed uri %q", c)
		}
	}
}

func TestGenerateNeverReuses(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		k := Generate(TypeProgram)
		if seen[k.ID] {
			t.Fatalf("duplicate id generated: %s", k.ID)
		}
		seen[k.ID] = true
	}
}

func TestAsURIFormat(t *testing.T) {
	k := New(TypeStdin, "abc-123")
	if got, want := k.AsURI(), "artifacts://stdins/abc-123"; got != want {
		t.Fatalf("AsURI() = %q, want %q", got, want)
	}
	if got, want := k.AsPresignedURL("http://host:8080"), "http://host:8080/artifacts/stdins/abc-123"; got != want {
		t.Fatalf("AsPresignedURL() = %q, want %q", got, want)
	}
}
