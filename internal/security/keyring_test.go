package security

import "testing"

func TestMaskKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"sk-1234567890abcdef", "sk-...cdef"},
		{"short", "****"},
		{"", "****"},
	}
	for _, c := range cases {
		if got := MaskKey(c.in); got != c.want {
			t.Errorf("MaskKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestResolvePassesLiteralsThrough(t *testing.T) {
	ks := NewKeyStore()
	got, err := ks.Resolve("sk-literal-key")
	if err != nil {
		t.Fatal(err)
	}
	if got != "sk-literal-key" {
		t.Fatalf("expected literal passthrough, got %q", got)
	}
}

func TestResolveFallsBackToEnv(t *testing.T) {
	t.Setenv("TASKCHAT_TEST_SECRET", "from-env")

	ks := NewKeyStore()
	got, err := ks.Resolve("keyring:test_secret")
	if err != nil {
		t.Fatal(err)
	}
	if got != "from-env" {
		t.Fatalf("expected env fallback, got %q", got)
	}
}
