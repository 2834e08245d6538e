package zxc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame layout, version 1. Integers are little-endian; lengths are uvarints.
//
//	header:   magic "ZXC\x01" | version (1B) | flags (1B)
//	          | nominal block size (uvarint)
//	record*:  tag (1B: 0x00 compressed, 0x01 stored)
//	          | original length (uvarint) | encoded length (uvarint)
//	          | XXH64 of encoded payload (8B, iff flags bit 0)
//	          | payload (encoded length bytes)
//	end:      tag 0xFF
//	trailer:  XXH64 of whole original payload (8B, iff flags bit 0)
//
// The nominal block size records what the encoder split with; decoders use
// it only to preallocate. A record's own original length is authoritative.

const (
	frameMagic   = "ZXC\x01"
	frameVersion = 1

	flagChecksum = 1 << 0 // remaining bits are reserved and ignored on decode

	tagCompressed = 0x00
	tagStored     = 0x01
	tagEnd        = 0xFF

	digestSize = 8

	headerMaxSize     = len(frameMagic) + 2 + binary.MaxVarintLen64
	recordMaxOverhead = 1 + 2*binary.MaxVarintLen64 + digestSize
	trailerMaxSize    = 1 + digestSize
)

// blockRecord is one compressed unit as it appears on the wire. For stored
// blocks the payload is the original bytes and encodedLen == originalLen.
type blockRecord struct {
	stored      bool
	originalLen int
	encodedLen  int
	checksum    uint64
	payload     []byte
}

func appendHeader(buf []byte, checksum bool, blockSize int) []byte {
	buf = append(buf, frameMagic...)
	buf = append(buf, frameVersion)
	var flags byte
	if checksum {
		flags |= flagChecksum
	}
	buf = append(buf, flags)
	return binary.AppendUvarint(buf, uint64(blockSize))
}

func appendRecord(buf []byte, rec blockRecord, withChecksum bool) []byte {
	tag := byte(tagCompressed)
	if rec.stored {
		tag = tagStored
	}
	buf = append(buf, tag)
	buf = binary.AppendUvarint(buf, uint64(rec.originalLen))
	buf = binary.AppendUvarint(buf, uint64(rec.encodedLen))
	if withChecksum {
		buf = binary.LittleEndian.AppendUint64(buf, rec.checksum)
	}
	return append(buf, rec.payload...)
}

// appendTrailer closes the frame: end marker, then the whole-payload digest
// when checksums are on.
func appendTrailer(buf []byte, checksum bool, sum uint64) []byte {
	buf = append(buf, tagEnd)
	if checksum {
		buf = binary.LittleEndian.AppendUint64(buf, sum)
	}
	return buf
}

// frameReader is what frame parsing needs from its source. bufio.Reader and
// bytes.Reader both satisfy it.
type frameReader interface {
	io.Reader
	io.ByteReader
}

// readHeader parses and validates the frame header. The returned block size
// is a preallocation hint only: decoders never trust it for correctness, so
// out-of-range values are clamped rather than rejected.
func readHeader(r frameReader) (checksum bool, blockSize int, err error) {
	var magic [len(frameMagic)]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return false, 0, fmt.Errorf("frame header: %w", mapEOF(err))
	}
	if string(magic[:]) != frameMagic {
		return false, 0, ErrBadMagic
	}
	version, err := r.ReadByte()
	if err != nil {
		return false, 0, fmt.Errorf("frame version: %w", mapEOF(err))
	}
	if version > frameVersion {
		return false, 0, fmt.Errorf("frame version %d: %w", version, ErrUnsupportedVersion)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return false, 0, fmt.Errorf("frame flags: %w", mapEOF(err))
	}
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return false, 0, fmt.Errorf("nominal block size: %w", mapEOF(err))
	}
	blockSize = int(min(size, MaxBlockSize))
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	return flags&flagChecksum != 0, blockSize, nil
}

// readRecord parses the next block record. last == true means the end marker
// was reached and rec is zero. buf, when large enough, backs the payload.
func readRecord(r frameReader, withChecksum bool, buf []byte) (rec blockRecord, last bool, err error) {
	tag, err := r.ReadByte()
	if err != nil {
		return rec, false, fmt.Errorf("record tag: %w", mapEOF(err))
	}
	switch tag {
	case tagEnd:
		return rec, true, nil
	case tagStored:
		rec.stored = true
	case tagCompressed:
	default:
		return rec, false, fmt.Errorf("unknown record tag 0x%02x: %w", tag, ErrMalformedBlock)
	}

	orig, err := binary.ReadUvarint(r)
	if err != nil {
		return rec, false, fmt.Errorf("original length: %w", mapEOF(err))
	}
	enc, err := binary.ReadUvarint(r)
	if err != nil {
		return rec, false, fmt.Errorf("encoded length: %w", mapEOF(err))
	}
	if orig > MaxBlockSize || enc > MaxBlockSize {
		return rec, false, fmt.Errorf("record declares %d/%d bytes: %w", orig, enc, ErrMalformedBlock)
	}
	if rec.stored && orig != enc {
		return rec, false, fmt.Errorf("stored record with %d != %d bytes: %w", orig, enc, ErrMalformedBlock)
	}
	rec.originalLen = int(orig)
	rec.encodedLen = int(enc)

	if withChecksum {
		var sum [digestSize]byte
		if _, err := io.ReadFull(r, sum[:]); err != nil {
			return rec, false, fmt.Errorf("record digest: %w", mapEOF(err))
		}
		rec.checksum = binary.LittleEndian.Uint64(sum[:])
	}

	if cap(buf) < rec.encodedLen {
		buf = make([]byte, rec.encodedLen)
	}
	buf = buf[:rec.encodedLen]
	if _, err := io.ReadFull(r, buf); err != nil {
		return rec, false, fmt.Errorf("record payload: %w", mapEOF(err))
	}
	rec.payload = buf
	return rec, false, nil
}

func readTrailerDigest(r frameReader) (uint64, error) {
	var b [digestSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("frame digest: %w", mapEOF(err))
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// mapEOF folds the io EOF family into ErrTruncated. Genuine transport errors
// pass through so callers see the underlying failure.
func mapEOF(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
