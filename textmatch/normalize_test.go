package textmatch

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"TERRA DATES", "terra dates"},
		{"5523795 TERRA DATES $9.49", "5523795 terra dates 9 49"},
		{"Café  Olé!!", "caf ol"},
		{"a\tb\nc", "a b c"},
		{"Org@nic--Kale (bunch)", "org nic kale bunch"},
	}
	for _, c := range cases {
		got := Normalize(c.in)
		if got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"5523795 TERRA DATES $9.49",
		"Café  Olé!!",
		"already normalized text",
		"  MIXED   Case\twith\tTABS ",
		"ümlaut ärger",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestExtractStoreLineCode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"typical receipt line", "5523795 TERRA DATES $9.49", "5523795"},
		{"alphanumeric code", "ab12cd ORGANIC KALE", "ab12cd"},
		{"single token", "5523795", ""},
		{"code too short", "123 MILK", ""},
		{"code too long", "12345678901234567 MILK", ""},
		{"no digit in code", "abcd MILK", ""},
		{"purely numeric remainder", "5523795 9.49", ""},
		{"empty", "", ""},
		{"quantity price line", "2 4.98", ""},
	}
	for _, c := range cases {
		got := ExtractStoreLineCode(c.in)
		if got != c.want {
			t.Fatalf("%s: ExtractStoreLineCode(%q) = %q, want %q", c.name, c.in, got, c.want)
		}
	}
}
