package textmatch

import (
	"math"
	"testing"
)

func TestDiceSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"equal", "Acme Produce", "Acme Produce", 1},
		{"equal after normalize", "ACME  Produce!", "acme produce", 1},
		{"left empty", "", "Acme Produce", 1},
		{"right empty", "Acme Produce", "", 1},
		{"classic night nacht", "night", "nacht", 0.25},
	}
	for _, c := range cases {
		got := DiceSimilarity(c.a, c.b)
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("%s: DiceSimilarity(%q, %q) = %v, want %v", c.name, c.a, c.b, got, c.want)
		}
	}
}

func TestDiceSimilarity_Ranges(t *testing.T) {
	// A suffix should not tank similarity.
	if got := DiceSimilarity("Acme Produce", "Acme Produce LLC"); got <= 0.7 {
		t.Fatalf("suffix similarity = %v, want > 0.7", got)
	}
	// Unrelated vendors stay clearly below the mismatch threshold.
	if got := DiceSimilarity("Acme Produce", "Fresh Farms Ltd"); got >= 0.3 {
		t.Fatalf("unrelated similarity = %v, want < 0.3", got)
	}
}
