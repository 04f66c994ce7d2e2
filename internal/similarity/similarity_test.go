package similarity

import (
	"math"
	"slices"
	"testing"
)

func approx(got, want float64) bool {
	return math.Abs(got-want) < 0.01
}

func TestScore_Properties(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		candidate string
		want      float64
	}{
		{"identity", "The quick brown fox", "The quick brown fox", 100},
		{"both empty", "", "", 100},
		{"empty reference", "", "x", 0},
		{"empty candidate", "hello", "", 0},
		{"case insensitive", "HELLO World", "hello world", 100},
		{"truncated sentence", "the quick brown fox", "the quick brown", 88.235},
		{"shifted window", "abcd", "bcde", 75},
		{"one substitution", "I think this is right", "i sink this is right", 92.683},
		{"unrelated", "hello", "world", 20},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.reference, tc.candidate)
			if !approx(got, tc.want) {
				t.Errorf("Score(%q, %q) = %.4f, want %.4f", tc.reference, tc.candidate, got, tc.want)
			}
		})
	}
}

func TestScore_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"the quick brown fox", "the quick brown"},
		{"she sells sea shells", "see shells sea sells"},
		{"abab", "baba"},
		{"tomato", "potato"},
		{"", "anything"},
	}
	for _, p := range pairs {
		if a, b := Score(p[0], p[1]), Score(p[1], p[0]); a != b {
			t.Errorf("Score(%q,%q)=%v but Score(%q,%q)=%v", p[0], p[1], a, p[1], p[0], b)
		}
	}
}

func TestScore_Range(t *testing.T) {
	inputs := []string{"", "a", "abc", "The rain in Spain", "ünïcödé", "12345"}
	for _, a := range inputs {
		for _, b := range inputs {
			got := Score(a, b)
			if got < 0 || got > 100 {
				t.Errorf("Score(%q, %q) = %v out of range", a, b, got)
			}
		}
	}
}

func TestMatchingBlocks(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want []Block
	}{
		{"split match", "abxcd", "abcd", []Block{{0, 0, 2}, {3, 2, 2}}},
		{"tie prefers earliest in a", "ab", "ba", []Block{{0, 1, 1}}},
		{"no overlap", "abc", "xyz", nil},
		{"full", "same", "same", []Block{{0, 0, 4}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MatchingBlocks([]rune(tc.a), []rune(tc.b))
			if !slices.Equal(got, tc.want) {
				t.Errorf("MatchingBlocks(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestMatchingBlocks_MergesAdjacent(t *testing.T) {
	a := []string{"a", "b", "c"}
	got := MatchingBlocks(a, a)
	if len(got) != 1 || got[0] != (Block{0, 0, 3}) {
		t.Errorf("got %v, want single merged block", got)
	}
}

func TestRatio_Words(t *testing.T) {
	got := Ratio([]string{"the", "quick", "brown", "fox"}, []string{"the", "quick", "fox"})
	// M = 3, T = 7
	if !approx(got, 600.0/7) {
		t.Errorf("Ratio = %v, want %v", got, 600.0/7)
	}
}
