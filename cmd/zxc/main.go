// Command zxc compresses and decompresses files in the zxc frame format.
//
// By default it compresses FILE to FILE.xc and removes the input; with no
// file (or "-") it filters stdin to stdout. The b mode benchmarks the codec
// in memory without disk I/O.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/zxclib/zxc"
)

const version = "1.0.0"

const suffix = ".xc"

type options struct {
	decompress bool
	bench      bool
	iterations int
	level      int
	threads    int
	checksum   bool
	keep       bool
	force      bool
	toStdout   bool
	verbose    bool
	quiet      bool
}

func main() {
	var opt options
	var compressMode, noChecksum, showVersion bool

	flag.BoolVarP(&compressMode, "compress", "z", false, "compress FILE (default)")
	flag.BoolVarP(&opt.decompress, "decompress", "d", false, "decompress FILE (or stdin -> stdout)")
	flag.BoolVarP(&opt.bench, "bench", "b", false, "benchmark in-memory")
	flag.IntVarP(&opt.iterations, "iterations", "i", 5, "benchmark iterations")
	flag.IntVarP(&opt.level, "level", "l", 3, "compression level 1..5")
	flag.IntVarP(&opt.threads, "threads", "T", 0, "number of threads (0=auto)")
	flag.BoolVarP(&opt.checksum, "checksum", "C", false, "enable checksum")
	flag.BoolVarP(&noChecksum, "no-checksum", "N", false, "disable checksum")
	flag.BoolVarP(&opt.keep, "keep", "k", false, "keep input file")
	flag.BoolVarP(&opt.force, "force", "f", false, "force overwrite")
	flag.BoolVarP(&opt.toStdout, "stdout", "c", false, "write to stdout")
	flag.BoolVarP(&opt.verbose, "verbose", "v", false, "verbose mode")
	flag.BoolVarP(&opt.quiet, "quiet", "q", false, "quiet mode")
	flag.BoolVarP(&showVersion, "version", "V", false, "show version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("zxc %s (%s-%s)\n", version, runtime.GOARCH, runtime.GOOS)
		return
	}
	if noChecksum {
		opt.checksum = false
	}

	args := flag.Args()
	// Positional mode words, getopt style: "zxc z file", "zxc d file".
	if len(args) > 0 {
		switch args[0] {
		case "z":
			args = args[1:]
		case "d":
			opt.decompress = true
			args = args[1:]
		case "b":
			opt.bench = true
			args = args[1:]
		}
	}

	if opt.verbose && !opt.quiet {
		zxc.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	var err error
	if opt.bench {
		err = runBench(opt, args)
	} else {
		err = runFile(opt, args)
	}
	if err != nil {
		if !opt.quiet {
			fmt.Fprintf(os.Stderr, "zxc: %v\n", err)
		}
		os.Exit(1)
	}
}

func coreOptions(opt options) []zxc.Option {
	return []zxc.Option{
		zxc.WithLevel(opt.level),
		zxc.WithThreads(opt.threads),
		zxc.WithChecksum(opt.checksum),
	}
}

// runFile handles the standard compress/decompress modes, including the
// stdin/stdout cases and output path derivation.
func runFile(opt options, args []string) error {
	inPath := ""
	if len(args) > 0 && args[0] != "-" {
		inPath = args[0]
		args = args[1:]
	}

	var in io.Reader = os.Stdin
	useStdin := inPath == ""
	if !useStdin {
		st, err := os.Stat(inPath)
		if err != nil {
			return fmt.Errorf("invalid input file %q: %w", inPath, err)
		}
		if !st.Mode().IsRegular() {
			return fmt.Errorf("invalid input file %q: not a regular file", inPath)
		}
		f, err := os.Open(inPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	outPath := ""
	useStdout := useStdin || opt.toStdout
	switch {
	case len(args) > 0:
		outPath = args[0]
		useStdout = false
	case useStdout:
	case opt.decompress:
		outPath = strings.TrimSuffix(inPath, suffix)
		if outPath == inPath {
			return fmt.Errorf("input %q has no %s suffix; specify an output file", inPath, suffix)
		}
	default:
		outPath = inPath + suffix
	}

	if !useStdout && outPath == inPath {
		return fmt.Errorf("input and output filenames are identical")
	}
	if useStdout && !opt.decompress && !opt.force && term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("refusing to write compressed data to a terminal (use -f to force)")
	}

	var out io.Writer = os.Stdout
	if !useStdout {
		if !opt.force {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("output %q exists (use -f to overwrite)", outPath)
			}
		}
		f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	br := bufio.NewReaderSize(in, 1<<20)
	bw := bufio.NewWriterSize(out, 1<<20)

	start := time.Now()
	var n int64
	var err error
	if opt.decompress {
		n, err = zxc.StreamDecompress(br, bw, coreOptions(opt)...)
	} else {
		n, err = zxc.StreamCompress(br, bw, coreOptions(opt)...)
	}
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		return err
	}

	if opt.verbose && !opt.quiet {
		fmt.Fprintf(os.Stderr, "processed %s in %.3fs\n",
			humanize.IBytes(uint64(n)), time.Since(start).Seconds())
	}
	if !useStdin && !useStdout && !opt.keep {
		return os.Remove(inPath)
	}
	return nil
}

// runBench loads the whole input into RAM and measures raw engine throughput
// without disk I/O: measure-only stream compression, one real compression
// for the ratio, then measure-only decompression of that frame.
func runBench(opt options, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("benchmark requires an input file")
	}
	iterations := opt.iterations
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("bad iteration count %q", args[1])
		}
		iterations = n
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("input %q is empty", args[0])
	}
	fmt.Printf("Input: %s (%s)\n", args[0], humanize.IBytes(uint64(len(data))))
	fmt.Printf("Running %d iterations (threads: %d, level: %d)...\n",
		iterations, opt.threads, opt.level)

	start := time.Now()
	for i := 0; i < iterations; i++ {
		if _, err := zxc.StreamCompress(bytes.NewReader(data), nil, coreOptions(opt)...); err != nil {
			return err
		}
	}
	compressTime := time.Since(start)

	frame := &bytes.Buffer{}
	frame.Grow(zxc.CompressBound(len(data)))
	compressed, err := zxc.StreamCompress(bytes.NewReader(data), frame, coreOptions(opt)...)
	if err != nil {
		return err
	}

	start = time.Now()
	for i := 0; i < iterations; i++ {
		if _, err := zxc.StreamDecompress(bytes.NewReader(frame.Bytes()), nil, coreOptions(opt)...); err != nil {
			return err
		}
	}
	decompressTime := time.Since(start)

	total := float64(len(data)) * float64(iterations) / (1 << 20)
	fmt.Printf("Compressed: %s (ratio %.3f)\n",
		humanize.IBytes(uint64(compressed)), float64(len(data))/float64(compressed))
	fmt.Printf("Avg Compress  : %.3f MiB/s\n", total/compressTime.Seconds())
	fmt.Printf("Avg Decompress: %.3f MiB/s\n", total/decompressTime.Seconds())
	return nil
}
