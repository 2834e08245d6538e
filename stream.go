package zxc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/zxclib/zxc/codec"
)

// workItem carries one block through the streaming pipeline. The sequence
// number is assigned by the single reader in input order and is the only
// mechanism that restores output order after parallel processing. Between
// dequeue and handoff to the collector a worker has exclusive use of the
// item's buffers; nothing is shared for concurrent mutation.
type workItem struct {
	seq int64
	raw []byte      // original bytes: input on compress, output on decompress
	rec blockRecord // wire form: output on compress, input on decompress
}

// countingWriter counts bytes written. With a nil destination it only
// counts, which backs the measure-only mode used by benchmarking callers.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.w == nil {
		c.n += int64(len(p))
		return len(p), nil
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil {
		return n, fmt.Errorf("zxc: write: %w", err)
	}
	return n, nil
}

// StreamCompress reads src to exhaustion, compresses it block by block and
// writes a complete frame to dst, returning the number of frame bytes
// written. A nil dst measures the frame size without writing anywhere.
//
// Blocks are compressed by a fixed pool of workers and emitted strictly in
// input order, so the frame bytes are identical for any thread count. The
// first failure stops dispatch, discards buffered not-yet-emitted blocks and
// is returned; partial output already written to dst is not retracted.
func StreamCompress(src io.Reader, dst io.Writer, opts ...Option) (int64, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return 0, err
	}
	cw := &countingWriter{w: dst}

	hdr := appendHeader(make([]byte, 0, headerMaxSize), cfg.Checksum, cfg.BlockSize)
	if _, err := cw.Write(hdr); err != nil {
		return cw.n, err
	}

	var frameSum *xxhash.Digest
	if cfg.Checksum {
		frameSum = xxhash.New()
	}

	workers := cfg.workers()
	log.Debug("stream compress",
		"workers", workers, "level", cfg.Level,
		"block_size", cfg.BlockSize, "checksum", cfg.Checksum)

	if workers == 1 {
		err = compressSequential(src, cw, cfg, frameSum)
	} else {
		err = compressParallel(src, cw, cfg, workers, frameSum)
	}
	if err != nil {
		return cw.n, err
	}

	var sum uint64
	if cfg.Checksum {
		sum = frameSum.Sum64()
	}
	if _, err := cw.Write(appendTrailer(make([]byte, 0, trailerMaxSize), cfg.Checksum, sum)); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// StreamDecompress reads one complete frame from src, decompresses it and
// writes the original bytes to dst, returning the number of bytes written.
// A nil dst measures the original size without writing. Digests, when the
// frame carries them, are always verified: per block before decoding, and
// the whole-payload trailer after the last block. Output order matches a
// single-threaded run for any thread count.
func StreamDecompress(src io.Reader, dst io.Writer, opts ...Option) (int64, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return 0, err
	}
	br := bufio.NewReaderSize(src, 64<<10)
	withChecksum, blockSizeHint, err := readHeader(br)
	if err != nil {
		return 0, err
	}
	cw := &countingWriter{w: dst}

	var frameSum *xxhash.Digest
	if withChecksum {
		frameSum = xxhash.New()
	}

	workers := cfg.workers()
	log.Debug("stream decompress",
		"workers", workers, "block_size", blockSizeHint, "checksum", withChecksum)

	if workers == 1 {
		err = decompressSequential(br, cw, withChecksum, blockSizeHint, frameSum)
	} else {
		err = decompressParallel(br, cw, withChecksum, blockSizeHint, workers, frameSum)
	}
	if err != nil {
		return cw.n, err
	}

	if withChecksum {
		want, err := readTrailerDigest(br)
		if err != nil {
			return cw.n, err
		}
		if err := verifyTrailer(want, frameSum.Sum64()); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

func compressSequential(src io.Reader, cw *countingWriter, cfg config, frameSum *xxhash.Digest) error {
	var enc codec.Encoder
	raw := make([]byte, cfg.BlockSize)
	scratch := make([]byte, 0, cfg.BlockSize)
	out := make([]byte, 0, cfg.BlockSize+recordMaxOverhead)
	for {
		n, err := io.ReadFull(src, raw)
		if n > 0 {
			chunk := raw[:n]
			if frameSum != nil {
				frameSum.Write(chunk)
			}
			payload, stored := enc.Encode(scratch, chunk, cfg.Level)
			rec := blockRecord{
				stored:      stored,
				originalLen: n,
				encodedLen:  len(payload),
				payload:     payload,
			}
			if cfg.Checksum {
				rec.checksum = digest(payload)
			}
			out = appendRecord(out[:0], rec, cfg.Checksum)
			if _, werr := cw.Write(out); werr != nil {
				return werr
			}
			scratch = payload[:0]
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("zxc: read: %w", err)
		}
	}
}

func compressParallel(src io.Reader, cw *countingWriter, cfg config, workers int, frameSum *xxhash.Digest) error {
	// The jobs queue is the backpressure bound: once it fills, the reader
	// blocks instead of racing ahead of slow workers, capping peak memory at
	// a small multiple of workers * block size.
	queueDepth := workers * 2
	jobs := make(chan *workItem, queueDepth)
	results := make(chan *workItem, queueDepth)
	rawPool := newBufferPool(queueDepth+workers, cfg.BlockSize)
	encPool := newBufferPool(queueDepth+workers, cfg.BlockSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// Reader: chunking and sequence numbering stay sequential; input order
	// defines output order.
	g.Go(func() error {
		defer close(jobs)
		var seq int64
		for {
			buf := rawPool.get()
			n, err := io.ReadFull(src, buf)
			if n > 0 {
				if frameSum != nil {
					frameSum.Write(buf[:n])
				}
				it := &workItem{seq: seq, raw: buf[:n]}
				select {
				case jobs <- it:
				case <-ctx.Done():
					return ctx.Err()
				}
				seq++
			} else {
				rawPool.put(buf)
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("zxc: read: %w", err)
			}
		}
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			var enc codec.Encoder
			for it := range jobs {
				payload, stored := enc.Encode(encPool.get()[:0], it.raw, cfg.Level)
				it.rec = blockRecord{
					stored:      stored,
					originalLen: len(it.raw),
					encodedLen:  len(payload),
					payload:     payload,
				}
				if cfg.Checksum {
					it.rec.checksum = digest(payload)
				}
				rawPool.put(it.raw)
				it.raw = nil
				select {
				case results <- it:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	// Collector: the only stage that writes. It reorders completed items by
	// sequence number and emits them strictly in order, so compression of
	// block k+1 can proceed while block k is still being written.
	var collectErr error
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		pending := make(map[int64]*workItem, queueDepth)
		next := int64(0)
		out := make([]byte, 0, cfg.BlockSize+recordMaxOverhead)
		for it := range results {
			if collectErr != nil {
				encPool.put(it.rec.payload)
				continue // keep draining so no worker blocks
			}
			pending[it.seq] = it
			for {
				rdy, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				out = appendRecord(out[:0], rdy.rec, cfg.Checksum)
				_, err := cw.Write(out)
				encPool.put(rdy.rec.payload)
				if err != nil {
					collectErr = err
					cancel()
					break
				}
				next++
			}
		}
	}()

	err := g.Wait()
	close(results)
	<-collectDone
	if collectErr != nil {
		return collectErr
	}
	return err
}

func decompressSequential(br frameReader, cw *countingWriter, withChecksum bool, blockSizeHint int, frameSum *xxhash.Digest) error {
	buf := make([]byte, 0, blockSizeHint)
	out := make([]byte, 0, blockSizeHint)
	var seq int64
	for {
		rec, last, err := readRecord(br, withChecksum, buf)
		if err != nil {
			return fmt.Errorf("block %d: %w", seq, err)
		}
		if last {
			return nil
		}
		if withChecksum {
			if err := verifyDigest(seq, rec.checksum, rec.payload); err != nil {
				return err
			}
		}
		raw := rec.payload
		if !rec.stored {
			out, err = codec.Decode(out[:0], rec.payload, rec.originalLen)
			if err != nil {
				return fmt.Errorf("block %d: %w", seq, err)
			}
			raw = out
		}
		if frameSum != nil {
			frameSum.Write(raw)
		}
		if _, err := cw.Write(raw); err != nil {
			return err
		}
		buf = rec.payload
		seq++
	}
}

func decompressParallel(br frameReader, cw *countingWriter, withChecksum bool, blockSizeHint, workers int, frameSum *xxhash.Digest) error {
	queueDepth := workers * 2
	jobs := make(chan *workItem, queueDepth)
	results := make(chan *workItem, queueDepth)
	encPool := newBufferPool(queueDepth+workers, blockSizeHint)
	rawPool := newBufferPool(queueDepth+workers, blockSizeHint)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// Reader: record parsing is ordered and cheap; only block decoding is
	// farmed out.
	g.Go(func() error {
		defer close(jobs)
		var seq int64
		for {
			rec, last, err := readRecord(br, withChecksum, encPool.get())
			if err != nil {
				return fmt.Errorf("block %d: %w", seq, err)
			}
			if last {
				return nil
			}
			it := &workItem{seq: seq, rec: rec}
			select {
			case jobs <- it:
			case <-ctx.Done():
				return ctx.Err()
			}
			seq++
		}
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for it := range jobs {
				if withChecksum {
					if err := verifyDigest(it.seq, it.rec.checksum, it.rec.payload); err != nil {
						return err
					}
				}
				if it.rec.stored {
					// The payload already is the original bytes; hand its
					// buffer straight through.
					it.raw = it.rec.payload
				} else {
					raw, err := codec.Decode(rawPool.get()[:0], it.rec.payload, it.rec.originalLen)
					if err != nil {
						return fmt.Errorf("block %d: %w", it.seq, err)
					}
					it.raw = raw
					encPool.put(it.rec.payload)
				}
				it.rec.payload = nil
				select {
				case results <- it:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	var collectErr error
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		pending := make(map[int64]*workItem, queueDepth)
		next := int64(0)
		for it := range results {
			if collectErr != nil {
				rawPool.put(it.raw)
				continue
			}
			pending[it.seq] = it
			for {
				rdy, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if frameSum != nil {
					frameSum.Write(rdy.raw)
				}
				_, err := cw.Write(rdy.raw)
				rawPool.put(rdy.raw)
				if err != nil {
					collectErr = err
					cancel()
					break
				}
				next++
			}
		}
	}()

	err := g.Wait()
	close(results)
	<-collectDone
	if collectErr != nil {
		return collectErr
	}
	return err
}
