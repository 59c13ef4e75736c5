package fuzzycache_test

import (
	"math"
	"testing"

	"github.com/calvinalkan/fuzzycache/pkg/fuzzycache"
)

func Test_Similarity_Returns_Normalized_Score_When_Comparing_Strings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "both empty", a: "", b: "", want: 1},
		{name: "identical", a: "apple", b: "apple", want: 1},
		{name: "one deletion", a: "aple", b: "apple", want: 0.8},
		{name: "adjacent transposition", a: "ab", b: "ba", want: 0.5},
		{name: "transposition in longer word", a: "appel", b: "apple", want: 0.8},
		{name: "one side empty", a: "abc", b: "", want: 0},
		{name: "nothing in common", a: "abc", b: "xyz", want: 0},
		{name: "kitten sitting", a: "kitten", b: "sitting", want: 1 - 3.0/7.0},
		{name: "runes not bytes", a: "über", b: "uber", want: 0.75},
		{name: "case sensitive", a: "Apple", b: "apple", want: 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := fuzzycache.Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Similarity(%q, %q)=%v, want=%v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func Test_Similarity_Is_Symmetric_And_Bounded_When_Arguments_Swap(t *testing.T) {
	t.Parallel()

	words := []string{"", "a", "apple", "aple", "apply", "banana", "bandana", "ananab", "日本語", "日本"}

	for _, a := range words {
		for _, b := range words {
			ab := fuzzycache.Similarity(a, b)
			ba := fuzzycache.Similarity(b, a)

			if ab != ba {
				t.Fatalf("Similarity(%q, %q)=%v but Similarity(%q, %q)=%v", a, b, ab, b, a, ba)
			}

			if ab < 0 || ab > 1 {
				t.Fatalf("Similarity(%q, %q)=%v, want in [0, 1]", a, b, ab)
			}

			if (ab == 1) != (a == b) {
				t.Fatalf("Similarity(%q, %q)=%v, want 1 only for equal strings", a, b, ab)
			}
		}
	}
}

func Test_NormalizeKey_Lowercases_When_Key_Has_Mixed_Case(t *testing.T) {
	t.Parallel()

	if got := fuzzycache.NormalizeKey("ApPLE"); got != "apple" {
		t.Fatalf("NormalizeKey=%q, want=%q", got, "apple")
	}

	if got := fuzzycache.KeyOf(42); got != "42" {
		t.Fatalf("KeyOf(42)=%q, want=%q", got, "42")
	}
}
