// Package codec implements the zxc block compression format: a block-local
// LZ77 codec with a byte-oriented token encoding.
//
// Each block is compressed independently. A compressed payload is a sequence
// of groups:
//
//	token (1 byte)   literal length (high 4 bits) | match code (low 4 bits)
//	[uvarint]        extra literal length, present iff the field is 15
//	literal bytes
//	[uvarint]        match offset (>= 1), absent in a final group whose
//	                 literals alone complete the block
//	[uvarint]        extra match length, present iff the match code is 15
//
// Match length is match code + 4. Offsets refer to bytes previously produced
// within the same block, never to earlier blocks, so any block can be decoded
// in isolation and in any order. The compression level changes only how hard
// the encoder searches for matches; the format is identical across levels and
// any level can decode any other level's output.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Compression levels. Out-of-range levels fall back to the default effort.
const (
	MinLevel     = 1
	DefaultLevel = 3
	MaxLevel     = 5
)

// ErrMalformed is returned by Decode when a payload cannot expand to exactly
// the declared original length, or when a match references bytes outside
// what the block has produced so far.
var ErrMalformed = errors.New("zxc: malformed block")

// An Encoder holds reusable match-finder state. The zero value is ready to
// use. An Encoder is not safe for concurrent use; the streaming engine gives
// each worker its own.
type Encoder struct {
	hc hashChain
}

// Encode compresses src into dst (which is truncated first) and reports
// whether the block was stored verbatim instead. Encode never fails: when
// the LZ encoding does not shrink the block, or the block is too short to
// contain a match, it falls back to copying src unchanged and returns
// stored == true. A zero-length block encodes to a zero-length stored block.
func (e *Encoder) Encode(dst, src []byte, level int) ([]byte, bool) {
	dst = dst[:0]
	if len(src) == 0 {
		return dst, true
	}
	if len(src) >= minMatch {
		matches := e.hc.findMatches(src, level)
		dst = emitGroups(dst, src, matches)
		if len(dst) < len(src) {
			return dst, false
		}
	}
	return append(dst[:0], src...), true
}

// Encode is a convenience wrapper around a throwaway Encoder.
func Encode(dst, src []byte, level int) ([]byte, bool) {
	var e Encoder
	return e.Encode(dst, src, level)
}

func emitGroups(dst, src []byte, matches []match) []byte {
	pos := 0
	for _, m := range matches {
		lit := m.unmatched
		token := byte(min(lit, 15)) << 4
		mcode := 0
		if m.length > 0 {
			mcode = min(m.length-minMatch, 15)
		}
		dst = append(dst, token|byte(mcode))
		if lit >= 15 {
			dst = binary.AppendUvarint(dst, uint64(lit-15))
		}
		dst = append(dst, src[pos:pos+lit]...)
		pos += lit
		if m.length > 0 {
			dst = binary.AppendUvarint(dst, uint64(m.distance))
			if mcode == 15 {
				dst = binary.AppendUvarint(dst, uint64(m.length-minMatch-15))
			}
			pos += m.length
		}
	}
	return dst
}

// Decode appends the decompressed form of src to dst and returns the
// extended slice. The payload must expand to exactly originalLen bytes;
// anything else is ErrMalformed. On error dst is returned with its original
// length. Back-references are resolved against bytes produced within this
// call only, so dst may already hold output from earlier blocks.
func Decode(dst, src []byte, originalLen int) ([]byte, error) {
	if originalLen < 0 {
		return dst, fmt.Errorf("negative original length %d: %w", originalLen, ErrMalformed)
	}
	base := len(dst)
	if cap(dst)-base < originalLen {
		grown := make([]byte, base, base+originalLen)
		copy(grown, dst)
		dst = grown
	}

	p := 0
	for len(dst)-base < originalLen {
		if p >= len(src) {
			return dst[:base], fmt.Errorf("payload ends after %d of %d bytes: %w",
				len(dst)-base, originalLen, ErrMalformed)
		}
		token := src[p]
		p++

		lit := int(token >> 4)
		if lit == 15 {
			v, n := binary.Uvarint(src[p:])
			if n <= 0 || v > uint64(originalLen) {
				return dst[:base], fmt.Errorf("bad literal length: %w", ErrMalformed)
			}
			p += n
			lit += int(v)
		}
		if lit > 0 {
			if p+lit > len(src) || lit > originalLen-(len(dst)-base) {
				return dst[:base], fmt.Errorf("literal run of %d out of range: %w", lit, ErrMalformed)
			}
			dst = append(dst, src[p:p+lit]...)
			p += lit
		}

		produced := len(dst) - base
		if produced == originalLen {
			break
		}

		off, n := binary.Uvarint(src[p:])
		if n <= 0 {
			return dst[:base], fmt.Errorf("bad match offset: %w", ErrMalformed)
		}
		p += n
		length := int(token&0x0F) + minMatch
		if token&0x0F == 15 {
			v, n := binary.Uvarint(src[p:])
			if n <= 0 || v > uint64(originalLen) {
				return dst[:base], fmt.Errorf("bad match length: %w", ErrMalformed)
			}
			p += n
			length += int(v)
		}
		if off == 0 || off > uint64(produced) {
			return dst[:base], fmt.Errorf("match offset %d at output position %d: %w",
				off, produced, ErrMalformed)
		}
		if length > originalLen-produced {
			return dst[:base], fmt.Errorf("match of %d overruns block: %w", length, ErrMalformed)
		}

		// Byte-at-a-time so overlapping copies (offset < length) replicate.
		start := len(dst) - int(off)
		for i := 0; i < length; i++ {
			dst = append(dst, dst[start+i])
		}
	}

	if p != len(src) {
		return dst[:base], fmt.Errorf("%d trailing bytes after block end: %w", len(src)-p, ErrMalformed)
	}
	return dst, nil
}
