package zxc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	for _, checksum := range []bool{false, true} {
		for _, blockSize := range []int{MinBlockSize, DefaultBlockSize, MaxBlockSize} {
			buf := appendHeader(nil, checksum, blockSize)
			require.LessOrEqual(t, len(buf), headerMaxSize)

			gotChecksum, gotSize, err := readHeader(bytes.NewReader(buf))
			require.NoError(t, err)
			require.Equal(t, checksum, gotChecksum)
			require.Equal(t, blockSize, gotSize)
		}
	}
}

func TestHeaderBadMagic(t *testing.T) {
	_, _, err := readHeader(bytes.NewReader([]byte("NOPE-not-a-frame")))
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestHeaderTruncated(t *testing.T) {
	full := appendHeader(nil, true, DefaultBlockSize)
	for i := 0; i < len(full); i++ {
		_, _, err := readHeader(bytes.NewReader(full[:i]))
		require.ErrorIs(t, err, ErrTruncated, "cut at %d", i)
	}
}

func TestHeaderUnsupportedVersion(t *testing.T) {
	buf := appendHeader(nil, false, DefaultBlockSize)
	buf[len(frameMagic)] = frameVersion + 1
	_, _, err := readHeader(bytes.NewReader(buf))
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestHeaderIgnoresReservedFlags(t *testing.T) {
	buf := appendHeader(nil, true, DefaultBlockSize)
	buf[len(frameMagic)+1] |= 0x80
	checksum, _, err := readHeader(bytes.NewReader(buf))
	require.NoError(t, err)
	require.True(t, checksum)
}

func TestRecordRoundTrip(t *testing.T) {
	payload := []byte("encoded bytes go here")
	for _, withChecksum := range []bool{false, true} {
		rec := blockRecord{
			stored:      false,
			originalLen: 100,
			encodedLen:  len(payload),
			checksum:    0xDEADBEEFCAFEF00D,
			payload:     payload,
		}
		buf := appendRecord(nil, rec, withChecksum)

		got, last, err := readRecord(bytes.NewReader(buf), withChecksum, nil)
		require.NoError(t, err)
		require.False(t, last)
		require.Equal(t, rec.stored, got.stored)
		require.Equal(t, rec.originalLen, got.originalLen)
		require.Equal(t, rec.encodedLen, got.encodedLen)
		require.Equal(t, payload, got.payload)
		if withChecksum {
			require.Equal(t, rec.checksum, got.checksum)
		}
	}
}

func TestRecordEndMarker(t *testing.T) {
	_, last, err := readRecord(bytes.NewReader([]byte{tagEnd}), false, nil)
	require.NoError(t, err)
	require.True(t, last)
}

func TestRecordUnknownTag(t *testing.T) {
	_, _, err := readRecord(bytes.NewReader([]byte{0x7B, 0x00, 0x00}), false, nil)
	require.ErrorIs(t, err, ErrMalformedBlock)
}

func TestRecordStoredLengthMismatch(t *testing.T) {
	rec := blockRecord{stored: true, originalLen: 3, encodedLen: 2, payload: []byte("ab")}
	buf := appendRecord(nil, rec, false)
	_, _, err := readRecord(bytes.NewReader(buf), false, nil)
	require.ErrorIs(t, err, ErrMalformedBlock)
}

func TestRecordTruncated(t *testing.T) {
	rec := blockRecord{
		stored:      true,
		originalLen: 5,
		encodedLen:  5,
		checksum:    42,
		payload:     []byte("hello"),
	}
	buf := appendRecord(nil, rec, true)
	for i := 0; i < len(buf); i++ {
		_, _, err := readRecord(bytes.NewReader(buf[:i]), true, nil)
		require.ErrorIs(t, err, ErrTruncated, "cut at %d", i)
	}
}
