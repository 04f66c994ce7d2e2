// Package similarity measures how closely a spoken transcript follows the
// reference text.
//
// The score is the classic longest-matching-block ratio: find the longest
// common contiguous block, recurse on the unmatched remainders to either side,
// and report 2*M/T scaled to [0, 100], where M is the number of matched
// elements and T the combined length of both inputs. The same block matcher
// drives word-level alignment (see [AlignWords]).
//
// All functions are pure and safe for concurrent use.
package similarity

import "strings"

// Block is a maximal run of equal elements: a[A:A+Size] == b[B:B+Size].
type Block struct {
	A, B, Size int
}

// Score returns the textual similarity of candidate to reference in [0, 100].
//
// Comparison is case-insensitive and runs over Unicode code points. Two empty
// strings score 100; exactly one empty string scores 0.
//
// The greedy block search can settle on a different alignment depending on
// argument order when several longest blocks tie, so Score evaluates both
// orders and keeps the larger ratio. Score(a, b) == Score(b, a) always holds.
func Score(reference, candidate string) float64 {
	a := []rune(strings.ToLower(reference))
	b := []rune(strings.ToLower(candidate))
	return max(Ratio(a, b), Ratio(b, a))
}

// Ratio returns 2*M/T*100 for the matching blocks of a and b. Two empty
// sequences have ratio 100.
func Ratio[T comparable](a, b []T) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	matched := 0
	for _, blk := range MatchingBlocks(a, b) {
		matched += blk.Size
	}
	return 200 * float64(matched) / float64(total)
}

// MatchingBlocks returns the non-overlapping matching blocks of a and b in
// increasing order of A (and B). Adjacent blocks are merged. No elements are
// treated as junk.
func MatchingBlocks[T comparable](a, b []T) []Block {
	type span struct{ alo, ahi, blo, bhi int }

	var found []Block
	queue := []span{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		blk := longestMatch(a, b, s.alo, s.ahi, s.blo, s.bhi)
		if blk.Size == 0 {
			continue
		}
		found = append(found, blk)
		if s.alo < blk.A && s.blo < blk.B {
			queue = append(queue, span{s.alo, blk.A, s.blo, blk.B})
		}
		if blk.A+blk.Size < s.ahi && blk.B+blk.Size < s.bhi {
			queue = append(queue, span{blk.A + blk.Size, s.ahi, blk.B + blk.Size, s.bhi})
		}
	}

	sortBlocks(found)

	merged := found[:0]
	for _, blk := range found {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.A+last.Size == blk.A && last.B+last.Size == blk.B {
				last.Size += blk.Size
				continue
			}
		}
		merged = append(merged, blk)
	}
	return merged
}

// longestMatch finds the longest block with a[alo:ahi] and b[blo:bhi].
// Ties go to the block starting earliest in a, then earliest in b.
func longestMatch[T comparable](a, b []T, alo, ahi, blo, bhi int) Block {
	best := Block{A: alo, B: blo}
	width := bhi - blo
	if width <= 0 || ahi <= alo {
		return best
	}

	// prev[k+1] is the length of the match ending at a[i-1], b[blo+k].
	prev := make([]int, width+1)
	cur := make([]int, width+1)
	for i := alo; i < ahi; i++ {
		for k := range width {
			j := blo + k
			if a[i] != b[j] {
				cur[k+1] = 0
				continue
			}
			n := prev[k] + 1
			cur[k+1] = n
			if n > best.Size {
				best = Block{A: i - n + 1, B: j - n + 1, Size: n}
			}
		}
		prev, cur = cur, prev
	}
	return best
}

// sortBlocks orders blocks by A then B. Block lists are short, so insertion
// sort keeps this allocation-free.
func sortBlocks(blocks []Block) {
	for i := 1; i < len(blocks); i++ {
		for j := i; j > 0 && less(blocks[j], blocks[j-1]); j-- {
			blocks[j], blocks[j-1] = blocks[j-1], blocks[j]
		}
	}
}

func less(x, y Block) bool {
	if x.A != y.A {
		return x.A < y.A
	}
	return x.B < y.B
}
