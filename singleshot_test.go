package zxc

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mixedPayload(t testing.TB, size int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(size)))
	out := make([]byte, 0, size)
	for len(out) < size {
		if rng.Intn(2) == 0 {
			out = append(out, []byte(strings.Repeat("compressible text run ", 40))...)
		} else {
			chunk := make([]byte, 512)
			rng.Read(chunk)
			out = append(out, chunk...)
		}
	}
	return out[:size]
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":       {},
		"tiny":        []byte("AAAAAAAAAA"),
		"text":        []byte(strings.Repeat("round and round the data goes ", 1000)),
		"multi block": mixedPayload(t, 3*DefaultBlockSize+12345),
	}
	for name, src := range payloads {
		for level := 1; level <= 5; level++ {
			for _, checksum := range []bool{false, true} {
				t.Run(name, func(t *testing.T) {
					frame, err := Compress(src, WithLevel(level), WithChecksum(checksum))
					require.NoError(t, err)
					require.LessOrEqual(t, len(frame), CompressBound(len(src)))

					out, err := Decompress(frame, len(src), WithChecksum(checksum))
					require.NoError(t, err)
					require.Equal(t, src, out)
				})
			}
		}
	}
}

func TestCompressSingleBlockScenario(t *testing.T) {
	// 10 bytes at level 3 without checksums: exactly one record with
	// original length 10, then the end marker.
	src := []byte("AAAAAAAAAA")
	frame, err := Compress(src, WithLevel(3))
	require.NoError(t, err)

	r := bytes.NewReader(frame)
	withChecksum, _, err := readHeader(r)
	require.NoError(t, err)
	require.False(t, withChecksum)

	rec, last, err := readRecord(r, false, nil)
	require.NoError(t, err)
	require.False(t, last)
	require.Equal(t, 10, rec.originalLen)

	_, last, err = readRecord(r, false, nil)
	require.NoError(t, err)
	require.True(t, last)

	out, err := Decompress(frame, 10)
	require.NoError(t, err)
	require.Equal(t, src, out)
}

func TestCompressEmptyInput(t *testing.T) {
	frame, err := Compress(nil)
	require.NoError(t, err)

	r := bytes.NewReader(frame)
	_, _, err = readHeader(r)
	require.NoError(t, err)
	_, last, err := readRecord(r, false, nil)
	require.NoError(t, err)
	require.True(t, last, "empty input must produce zero block records")

	out, err := Decompress(frame, 0)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestStoredFallbackOnRandomInput(t *testing.T) {
	src := make([]byte, 4<<10)
	rand.New(rand.NewSource(99)).Read(src)

	for level := 1; level <= 5; level++ {
		frame, err := Compress(src, WithLevel(level))
		require.NoError(t, err)

		r := bytes.NewReader(frame)
		_, _, err = readHeader(r)
		require.NoError(t, err)
		rec, last, err := readRecord(r, false, nil)
		require.NoError(t, err)
		require.False(t, last)
		require.True(t, rec.stored)
		require.Equal(t, rec.originalLen, rec.encodedLen)
		require.Equal(t, src, rec.payload)
	}
}

func TestCompressBoundHolds(t *testing.T) {
	for _, n := range []int{0, 1, 10, 1000, DefaultBlockSize, DefaultBlockSize + 1, 1<<20} {
		src := make([]byte, n)
		rand.New(rand.NewSource(int64(n))).Read(src)
		frame, err := Compress(src, WithChecksum(true))
		require.NoError(t, err)
		require.LessOrEqual(t, len(frame), CompressBound(n), "n=%d", n)
	}
}

func TestDecompressDestinationTooSmall(t *testing.T) {
	src := mixedPayload(t, 1000)
	frame, err := Compress(src)
	require.NoError(t, err)

	_, err = Decompress(frame, 999)
	require.ErrorIs(t, err, ErrDestinationTooSmall)

	_, err = Decompress(frame, 0)
	require.ErrorIs(t, err, ErrDestinationTooSmall)
}

func TestDecompressChecksumDetectsFlippedByte(t *testing.T) {
	src := mixedPayload(t, 10<<10)
	frame, err := Compress(src, WithChecksum(true))
	require.NoError(t, err)

	// Middle of the frame is always inside some block's payload.
	flipped := append([]byte(nil), frame...)
	flipped[len(flipped)/2] ^= 0x01
	_, err = Decompress(flipped, len(src))
	require.ErrorIs(t, err, ErrChecksumMismatch)

	// Last byte is inside the whole-payload trailer digest.
	flipped = append([]byte(nil), frame...)
	flipped[len(flipped)-1] ^= 0x01
	_, err = Decompress(flipped, len(src))
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDecompressTruncatedAtEveryOffset(t *testing.T) {
	src := mixedPayload(t, 4<<10)
	for _, checksum := range []bool{false, true} {
		frame, err := Compress(src, WithChecksum(checksum), WithBlockSize(MinBlockSize))
		require.NoError(t, err)
		for i := 0; i < len(frame); i++ {
			_, err := Decompress(frame[:i], len(src))
			require.ErrorIs(t, err, ErrTruncated, "checksum=%v cut at %d", checksum, i)
		}
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	_, err := Decompress([]byte("this is definitely not a zxc frame"), 100)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestSmallBlockSizeSplitsFrame(t *testing.T) {
	src := mixedPayload(t, 10<<10)
	frame, err := Compress(src, WithBlockSize(MinBlockSize))
	require.NoError(t, err)

	r := bytes.NewReader(frame)
	_, _, err = readHeader(r)
	require.NoError(t, err)
	records := 0
	for {
		_, last, err := readRecord(r, false, nil)
		require.NoError(t, err)
		if last {
			break
		}
		records++
	}
	require.Equal(t, 10, records)

	out, err := Decompress(frame, len(src))
	require.NoError(t, err)
	require.Equal(t, src, out)
}

func TestOptionValidation(t *testing.T) {
	_, err := Compress([]byte("x"), WithLevel(0))
	require.Error(t, err)
	_, err = Compress([]byte("x"), WithLevel(6))
	require.Error(t, err)
	_, err = Compress([]byte("x"), WithBlockSize(100))
	require.Error(t, err)
	_, err = Compress([]byte("x"), WithThreads(-1))
	require.Error(t, err)
	_, err = Decompress([]byte("x"), -1)
	require.Error(t, err)
}
