package codec

import (
	"encoding/binary"
	"math/bits"
)

const (
	minMatch = 4

	hashBits  = 15
	tableSize = 1 << hashBits
	shift     = 32 - hashBits
	// tableMask is redundant, but helps the compiler eliminate bounds
	// checks.
	tableMask = tableSize - 1

	hashMul32 = 0x1e35a7bd
)

// match is one parsed LZ77 unit: a run of unmatched literal bytes followed
// by a back-reference of length bytes at distance. A trailing match may have
// length 0 when the block ends in literals.
type match struct {
	unmatched int
	length    int
	distance  int
}

// levelParams maps a compression level to match-finder effort: how many
// hash-chain candidates to examine per position, and how far back a match
// may reach. Levels change nothing about the encoded format.
func levelParams(level int) (searchLen, maxDistance int) {
	switch level {
	case 1:
		return 1, 8 << 10
	case 2:
		return 2, 16 << 10
	case 4:
		return 8, 64 << 10
	case 5:
		return 16, 128 << 10
	default:
		return 4, 32 << 10
	}
}

// hashChain finds repeated substrings using a hash table of most recent
// positions plus per-position chains of earlier candidates.
type hashChain struct {
	table   [tableSize]int32
	chain   []int32
	matches []match
}

// findMatches runs a greedy parse over src and returns the chosen matches.
// The table and chain are rebuilt from scratch for every block; no state
// crosses block boundaries, which is what keeps blocks independently
// decodable in any order.
func (q *hashChain) findMatches(src []byte, level int) []match {
	searchLen, maxDistance := levelParams(level)

	q.table = [tableSize]int32{}
	chain := q.chain[:0]
	for i := 0; i+minMatch <= len(src); i++ {
		h := hash4(binary.LittleEndian.Uint32(src[i:])) & tableMask
		candidate := q.table[h]
		q.table[h] = int32(i)
		if candidate == 0 || i-int(candidate) > maxDistance {
			chain = append(chain, 0)
		} else {
			chain = append(chain, int32(i)-candidate)
		}
	}
	q.chain = chain

	dst := q.matches[:0]
	s := 0
	nextEmit := 0
	for s < len(src) {
		start, end, matchPos := q.search(src, s, nextEmit, searchLen, maxDistance)
		if end-start < minMatch {
			s++
			continue
		}
		dst = append(dst, match{
			unmatched: start - nextEmit,
			length:    end - start,
			distance:  start - matchPos,
		})
		nextEmit = end
		s = end
	}
	if nextEmit < len(src) {
		dst = append(dst, match{unmatched: len(src) - nextEmit})
	}
	q.matches = dst
	return dst
}

// search walks the hash chain at pos and returns the longest match found.
// Start may extend backward as far as min (the first byte not yet emitted).
// A zero-length result (start == end) means no match of at least minMatch.
func (q *hashChain) search(src []byte, pos, min, searchLen, maxDistance int) (start, end, matchPos int) {
	start, end, matchPos = pos, pos, pos
	if pos >= len(q.chain) || pos+minMatch > len(src) {
		return
	}
	seq := binary.LittleEndian.Uint32(src[pos:])

	var length int
	candidate := pos
	for i := 0; i < searchLen; i++ {
		d := q.chain[candidate]
		if d == 0 {
			break
		}
		candidate -= int(d)
		if candidate < 0 || pos-candidate > maxDistance {
			break
		}
		if binary.LittleEndian.Uint32(src[candidate:]) != seq {
			continue
		}

		newEnd := extendMatch(src, candidate+minMatch, pos+minMatch)

		// Extend the match backward as far as possible.
		newStart := pos
		newMatch := candidate
		for newStart > min && newMatch > 0 && src[newStart-1] == src[newMatch-1] {
			newStart--
			newMatch--
		}

		if newEnd-newStart > length {
			start, end, matchPos = newStart, newEnd, newMatch
			length = newEnd - newStart
		}
	}
	return
}

func hash4(u uint32) uint32 {
	return (u * hashMul32) >> shift
}

// extendMatch returns the largest k such that k <= len(src) and that
// src[i:i+k-j] and src[j:k] have the same contents.
//
// It assumes that:
//
//	0 <= i && i < j && j <= len(src)
func extendMatch(src []byte, i, j int) int {
	// Compare 8 bytes at a time; i < j, so i+8 is in bounds whenever j+8 is.
	for j+8 <= len(src) {
		iBytes := binary.LittleEndian.Uint64(src[i:])
		jBytes := binary.LittleEndian.Uint64(src[j:])
		if iBytes != jBytes {
			return j + bits.TrailingZeros64(iBytes^jBytes)>>3
		}
		i, j = i+8, j+8
	}
	for ; j < len(src) && src[i] == src[j]; i, j = i+1, j+1 {
	}
	return j
}
