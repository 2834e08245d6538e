package zxc

import (
	"fmt"
	"runtime"

	"github.com/zxclib/zxc/codec"
)

// config holds the tunables for one compress/decompress operation. It is
// built fresh per call; the engine keeps no process-wide mutable state, so
// operations with different settings can run concurrently.
type config struct {
	Level     int
	Threads   int
	Checksum  bool
	BlockSize int
}

// Option configures a single operation.
type Option interface {
	apply(*config)
}

// funcOpt wraps a function as an Option
type funcOpt func(*config)

func (f funcOpt) apply(c *config) {
	f(c)
}

// WithLevel sets the compression level, 1 (fastest) to 5 (best ratio),
// default 3. The level changes only how hard the encoder searches for
// matches; frames are decodable regardless of the level that produced them.
// Decompression ignores it.
func WithLevel(level int) Option {
	return funcOpt(func(c *config) {
		c.Level = level
	})
}

// WithThreads sets the worker count for streaming operations (default: 0 =
// one worker per available CPU). The count is fixed for the lifetime of one
// stream operation. Single-shot operations are always sequential.
func WithThreads(n int) Option {
	return funcOpt(func(c *config) {
		c.Threads = n
	})
}

// WithChecksum enables XXH64 integrity digests (default: off). When
// compressing, every block record carries a digest of its encoded payload
// and the frame ends with a digest of the whole original payload. When a
// frame carries digests, decompression always verifies them; this option has
// no effect on decode, where the frame header is authoritative.
func WithChecksum(enabled bool) Option {
	return funcOpt(func(c *config) {
		c.Checksum = enabled
	})
}

// WithBlockSize sets the nominal block size used to split input during
// compression (default: 128 KiB). The size used is recorded in the frame
// header; decoders treat it only as a preallocation hint.
func WithBlockSize(size int) Option {
	return funcOpt(func(c *config) {
		c.BlockSize = size
	})
}

func defaultConfig() config {
	return config{
		Level:     codec.DefaultLevel,
		Threads:   0, // auto
		Checksum:  false,
		BlockSize: DefaultBlockSize,
	}
}

func newConfig(opts []Option) (config, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(&cfg)
	}
	return cfg, cfg.validate()
}

func (c *config) validate() error {
	if c.Level < codec.MinLevel || c.Level > codec.MaxLevel {
		return fmt.Errorf("zxc: level %d out of range [%d, %d]", c.Level, codec.MinLevel, codec.MaxLevel)
	}
	if c.Threads < 0 {
		return fmt.Errorf("zxc: negative thread count %d", c.Threads)
	}
	if c.BlockSize < MinBlockSize || c.BlockSize > MaxBlockSize {
		return fmt.Errorf("zxc: block size %d out of range [%d, %d]", c.BlockSize, MinBlockSize, MaxBlockSize)
	}
	return nil
}

// workers resolves the requested thread count: 0 means one worker per
// available execution context, and the result is always at least 1.
func (c *config) workers() int {
	n := c.Threads
	if n == 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return max(n, 1)
}
