package zxc

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/zxclib/zxc/codec"
)

// CompressBound returns the worst-case frame size for n input bytes at the
// default block size: every block falls back to its stored payload and all
// checksum fields are present. Compress output never exceeds it, so callers
// can size destination buffers up front.
func CompressBound(n int) int {
	return compressBound(n, DefaultBlockSize)
}

func compressBound(n, blockSize int) int {
	blocks := n / blockSize
	if n%blockSize != 0 {
		blocks++
	}
	return headerMaxSize + blocks*recordMaxOverhead + n + trailerMaxSize
}

// Compress compresses src into a complete frame, sequentially and without
// goroutines. It fails only on invalid options: no input can fail block
// encoding, which degrades to stored payloads instead.
func Compress(src []byte, opts ...Option) ([]byte, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, compressBound(len(src), cfg.BlockSize))
	out = appendHeader(out, cfg.Checksum, cfg.BlockSize)

	var frameSum *xxhash.Digest
	if cfg.Checksum {
		frameSum = xxhash.New()
	}
	var enc codec.Encoder
	scratch := make([]byte, 0, cfg.BlockSize)
	for off := 0; off < len(src); off += cfg.BlockSize {
		chunk := src[off:min(off+cfg.BlockSize, len(src))]
		payload, stored := enc.Encode(scratch, chunk, cfg.Level)
		rec := blockRecord{
			stored:      stored,
			originalLen: len(chunk),
			encodedLen:  len(payload),
			payload:     payload,
		}
		if cfg.Checksum {
			rec.checksum = digest(payload)
			frameSum.Write(chunk)
		}
		out = appendRecord(out, rec, cfg.Checksum)
		scratch = payload[:0]
	}

	var sum uint64
	if cfg.Checksum {
		sum = frameSum.Sum64()
	}
	return appendTrailer(out, cfg.Checksum, sum), nil
}

// Decompress expands a complete in-memory frame. The format records no
// cumulative total length, so the caller supplies the expected original
// size up front (the compressor's caller knows it; archival formats wrap it).
// If the frame's blocks declare more than expectedSize bytes the result is
// ErrDestinationTooSmall. When the frame carries digests they are always
// verified. Bytes past the end of the frame are ignored.
func Decompress(src []byte, expectedSize int, opts ...Option) ([]byte, error) {
	if expectedSize < 0 {
		return nil, fmt.Errorf("zxc: negative expected size %d", expectedSize)
	}
	// Options are validated for interface symmetry with Compress, but decode
	// behavior is governed by the frame header.
	if _, err := newConfig(opts); err != nil {
		return nil, err
	}

	r := bytes.NewReader(src)
	withChecksum, blockSizeHint, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, expectedSize)
	var frameSum *xxhash.Digest
	if withChecksum {
		frameSum = xxhash.New()
	}
	buf := make([]byte, 0, min(blockSizeHint, len(src)))
	var seq int64
	for {
		rec, last, err := readRecord(r, withChecksum, buf)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", seq, err)
		}
		if last {
			break
		}
		if rec.originalLen > expectedSize-len(out) {
			return nil, fmt.Errorf("block %d: %d bytes exceed expected size %d: %w",
				seq, len(out)+rec.originalLen, expectedSize, ErrDestinationTooSmall)
		}
		if withChecksum {
			if err := verifyDigest(seq, rec.checksum, rec.payload); err != nil {
				return nil, err
			}
		}
		blockStart := len(out)
		if rec.stored {
			out = append(out, rec.payload...)
		} else {
			out, err = codec.Decode(out, rec.payload, rec.originalLen)
			if err != nil {
				return nil, fmt.Errorf("block %d: %w", seq, err)
			}
		}
		if withChecksum {
			frameSum.Write(out[blockStart:])
		}
		buf = rec.payload
		seq++
	}

	if withChecksum {
		want, err := readTrailerDigest(r)
		if err != nil {
			return nil, err
		}
		if err := verifyTrailer(want, frameSum.Sum64()); err != nil {
			return nil, err
		}
	}
	return out, nil
}
