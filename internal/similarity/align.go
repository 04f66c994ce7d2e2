package similarity

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// Op classifies one step of a word alignment.
type Op string

const (
	// OpEqual marks words spoken exactly as written.
	OpEqual Op = "equal"
	// OpReplace marks reference words that were spoken as different words.
	OpReplace Op = "replace"
	// OpDelete marks reference words missing from the transcript.
	OpDelete Op = "delete"
	// OpInsert marks transcript words absent from the reference.
	OpInsert Op = "insert"
)

// soundsAlikeThreshold is the Jaro-Winkler similarity at or above which two
// substituted words are reported as sounding alike.
const soundsAlikeThreshold = 0.85

// Edit is one contiguous step of a word alignment.
type Edit struct {
	Op Op

	// Reference holds the reference words covered by this step. Empty for
	// OpInsert.
	Reference []string

	// Spoken holds the transcript words covered by this step. Empty for
	// OpDelete.
	Spoken []string

	// Pairs lines up substituted words position by position. Only set for
	// OpReplace; surplus words on the longer side are left unpaired.
	Pairs []Substitution
}

// Substitution is a single reference word heard as a different word.
type Substitution struct {
	Reference string
	Spoken    string

	// SoundsAlike reports that the two words share a Double Metaphone code or
	// are near-identical in spelling, which usually points to a
	// pronunciation slip rather than a wrong word.
	SoundsAlike bool
}

// Alignment is the word-level diff between a reference text and a transcript.
type Alignment struct {
	Edits []Edit
}

// AlignWords tokenizes both texts into case-folded words with surrounding
// punctuation stripped and returns the edit script that turns the reference
// into the transcript.
func AlignWords(reference, transcript string) Alignment {
	a := Words(reference)
	b := Words(transcript)

	var (
		edits  []Edit
		ai, bi int
	)
	emit := func(aEnd, bEnd int) {
		switch {
		case ai < aEnd && bi < bEnd:
			edits = append(edits, Edit{
				Op:        OpReplace,
				Reference: a[ai:aEnd],
				Spoken:    b[bi:bEnd],
				Pairs:     pairWords(a[ai:aEnd], b[bi:bEnd]),
			})
		case ai < aEnd:
			edits = append(edits, Edit{Op: OpDelete, Reference: a[ai:aEnd]})
		case bi < bEnd:
			edits = append(edits, Edit{Op: OpInsert, Spoken: b[bi:bEnd]})
		}
	}

	for _, blk := range MatchingBlocks(a, b) {
		emit(blk.A, blk.B)
		edits = append(edits, Edit{
			Op:        OpEqual,
			Reference: a[blk.A : blk.A+blk.Size],
			Spoken:    b[blk.B : blk.B+blk.Size],
		})
		ai, bi = blk.A+blk.Size, blk.B+blk.Size
	}
	emit(len(a), len(b))

	return Alignment{Edits: edits}
}

// Words splits text into lower-case word tokens. Letters, digits and inner
// apostrophes are kept; everything else separates words.
func Words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '’'
	})
	words := fields[:0]
	for _, f := range fields {
		if w := strings.Trim(f, "'’"); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// SoundsAlike reports whether two words are likely confusable when spoken.
func SoundsAlike(x, y string) bool {
	if x == y {
		return true
	}
	xp, xs := matchr.DoubleMetaphone(strings.ToUpper(x))
	yp, ys := matchr.DoubleMetaphone(strings.ToUpper(y))
	for _, cx := range []string{xp, xs} {
		if cx == "" {
			continue
		}
		if cx == yp || cx == ys {
			return true
		}
	}
	return matchr.JaroWinkler(x, y, false) >= soundsAlikeThreshold
}

func pairWords(ref, spoken []string) []Substitution {
	n := min(len(ref), len(spoken))
	pairs := make([]Substitution, n)
	for i := range n {
		pairs[i] = Substitution{
			Reference:   ref[i],
			Spoken:      spoken[i],
			SoundsAlike: SoundsAlike(ref[i], spoken[i]),
		}
	}
	return pairs
}

// Missing returns the reference words that were not spoken at all.
func (al Alignment) Missing() []string {
	var out []string
	for _, e := range al.Edits {
		if e.Op == OpDelete {
			out = append(out, e.Reference...)
		}
	}
	return out
}

// Added returns transcript words that have no counterpart in the reference.
func (al Alignment) Added() []string {
	var out []string
	for _, e := range al.Edits {
		if e.Op == OpInsert {
			out = append(out, e.Spoken...)
		}
	}
	return out
}

// Substitutions returns every position-paired word substitution in order.
func (al Alignment) Substitutions() []Substitution {
	var out []Substitution
	for _, e := range al.Edits {
		out = append(out, e.Pairs...)
	}
	return out
}

// Exact reports whether every reference word was spoken verbatim and nothing
// else was said.
func (al Alignment) Exact() bool {
	for _, e := range al.Edits {
		if e.Op != OpEqual {
			return false
		}
	}
	return true
}
