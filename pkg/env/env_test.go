package env

import "testing"

func TestLookupPrefersFirstSetKey(t *testing.T) {
	t.Setenv("SHOPDESK_TEST_A", "")
	t.Setenv("SHOPDESK_TEST_B", " console ")
	t.Setenv("SHOPDESK_TEST_C", "json")

	if got := Lookup("fallback", "SHOPDESK_TEST_A", "SHOPDESK_TEST_B", "SHOPDESK_TEST_C"); got != "console" {
		t.Fatalf("got %q", got)
	}
	if got := Lookup("fallback", "SHOPDESK_TEST_MISSING"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
}
