// Package zxc is a general-purpose lossless compressor built around
// independently compressed blocks.
//
// A frame is a self-describing container: a small header, a sequence of
// block records, an end marker and an optional whole-payload digest. Because
// blocks never reference each other, streaming operations can farm them out
// to a fixed pool of workers and reassemble the results in input order; the
// output bytes are identical for any thread count.
//
// Two surfaces are exposed. Compress and Decompress work on in-memory
// buffers and are purely sequential. StreamCompress and StreamDecompress
// work on open byte streams and parallelize block processing across a
// bounded worker pool. All tunables are per-call functional options.
package zxc

// Block size limits for WithBlockSize. The default matches the widest match
// window the codec uses at the highest level; larger blocks trade memory for
// ratio, smaller ones for parallelism on short inputs.
const (
	DefaultBlockSize = 128 << 10
	MinBlockSize     = 1 << 10
	MaxBlockSize     = 1 << 27
)
