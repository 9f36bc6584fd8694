// rxhash computes and verifies RandomX hashes and inspects the programs
// behind them.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	randomx "github.com/colorfulnotion/randomx"
	"github.com/colorfulnotion/randomx/common"
	log "github.com/colorfulnotion/randomx/log"
	"github.com/colorfulnotion/randomx/program"
	"github.com/colorfulnotion/randomx/rxerrors"
	"github.com/colorfulnotion/randomx/vm"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

var (
	Version = "dev"
	Commit  = "none"
)

type rootFlags struct {
	logLevel      string
	logModules    string
	full          bool
	workers       int
	cacheDir      string
	cacheSize     int
	traceEndpoint string
}

func (f *rootFlags) config() randomx.Config {
	cfg := randomx.DefaultConfig()
	cfg.FullMem = f.full
	cfg.Workers = f.workers
	cfg.CacheDir = f.cacheDir
	cfg.CacheSize = f.cacheSize
	return cfg
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	var shutdown func()

	rootCmd := &cobra.Command{
		Use:          "rxhash",
		Short:        "RandomX proof-of-work hasher",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := log.InitLogger(flags.logLevel); err != nil {
				return err
			}
			log.EnableModules(flags.logModules)
			var err error
			shutdown, err = initTracing(cmd.Context(), flags.traceEndpoint)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if shutdown != nil {
				shutdown()
			}
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error, crit)")
	pf.StringVar(&flags.logModules, "log-modules", "", "comma separated modules with trace/debug output, or \"all\"")
	pf.BoolVar(&flags.full, "full", false, "build the full dataset (about 2 GiB) instead of computing items on demand")
	pf.IntVar(&flags.workers, "workers", runtime.NumCPU(), "goroutines used to build the full dataset")
	pf.StringVar(&flags.cacheDir, "cache-dir", "", "directory persisting Argon2 caches between runs")
	pf.IntVar(&flags.cacheSize, "cache-size", 2, "number of keys kept in memory")
	pf.StringVar(&flags.traceEndpoint, "trace-endpoint", "", "OTLP/HTTP collector host:port; tracing is off when empty")

	rootCmd.AddCommand(
		newHashCmd(flags),
		newVerifyCmd(flags),
		newBenchCmd(flags),
		newSuperscalarCmd(),
		newDisasmCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

type inputFlags struct {
	key   string
	input string
	isHex bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.key, "key", "", "cache key")
	cmd.Flags().StringVar(&f.input, "input", "", "hash input")
	cmd.Flags().BoolVar(&f.isHex, "hex", false, "key and input are hex encoded")
	cmd.MarkFlagRequired("key")
}

func (f *inputFlags) decode() (key, input []byte, err error) {
	if key, err = common.DecodeInput(f.key, f.isHex); err != nil {
		return nil, nil, fmt.Errorf("key: %w", err)
	}
	if input, err = common.DecodeInput(f.input, f.isHex); err != nil {
		return nil, nil, fmt.Errorf("input: %w", err)
	}
	return key, input, nil
}

func withHasher(flags *rootFlags, fn func(h *randomx.Hasher) error) error {
	h, err := randomx.NewHasher(flags.config())
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(h)
}

func newHashCmd(flags *rootFlags) *cobra.Command {
	in := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the hash of an input under a key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, input, err := in.decode()
			if err != nil {
				return err
			}
			return withHasher(flags, func(h *randomx.Hasher) error {
				out, err := h.Hash(cmd.Context(), key, input)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out.Plain())
				return nil
			})
		},
	}
	in.register(cmd)
	return cmd
}

func newVerifyCmd(flags *rootFlags) *cobra.Command {
	in := &inputFlags{}
	var expected string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an input against an expected hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, input, err := in.decode()
			if err != nil {
				return err
			}
			want := common.FromHex(expected)
			if len(want) != 32 {
				return fmt.Errorf("expected hash must be 32 bytes, got %d", len(want))
			}
			return withHasher(flags, func(h *randomx.Hasher) error {
				if err := h.VerifyHash(cmd.Context(), key, input, common.BytesToHash(want)); err != nil {
					log.Error(log.HasherMonitoring, "verify failed", "code", rxerrors.GetErrorCodeWithName(err), "err", err)
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&expected, "expected", "", "expected hash, hex")
	cmd.MarkFlagRequired("expected")
	return cmd
}

func newBenchCmd(flags *rootFlags) *cobra.Command {
	var (
		key     string
		count   int
		threads int
		seed    uint64
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Hash random nonces and report the hash rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 || threads < 1 {
				return fmt.Errorf("count and threads must be positive")
			}
			return withHasher(flags, func(h *randomx.Hasher) error {
				ctx := cmd.Context()
				// warm the cache outside the timed section
				if _, err := h.Hash(ctx, []byte(key), nil); err != nil {
					return err
				}
				base := make([]byte, 76)
				r := rand.New(rand.NewSource(seed))
				for i := range base {
					base[i] = byte(r.Uint32())
				}

				var next atomic.Int64
				var acc [32]byte
				results := make([]common.Hash, threads)
				start := time.Now()
				g, gctx := errgroup.WithContext(ctx)
				for t := 0; t < threads; t++ {
					g.Go(func() error {
						input := append([]byte(nil), base...)
						for {
							n := next.Add(1) - 1
							if n >= int64(count) {
								return nil
							}
							binary.LittleEndian.PutUint32(input[39:], uint32(n))
							out, err := h.Hash(gctx, []byte(key), input)
							if err != nil {
								return err
							}
							for i := range out {
								results[t][i] ^= out[i]
							}
						}
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}
				elapsed := time.Since(start)
				for _, res := range results {
					for i := range acc {
						acc[i] ^= res[i]
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "hashes=%d threads=%d elapsed=%s rate=%.2f H/s xor=%x\n",
					count, threads, elapsed.Round(time.Millisecond), float64(count)/elapsed.Seconds(), acc)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "test key 000", "cache key")
	cmd.Flags().IntVar(&count, "count", 100, "number of hashes")
	cmd.Flags().IntVar(&threads, "threads", 1, "concurrent hashing goroutines")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "seed of the random block template")
	return cmd
}

func newSuperscalarCmd() *cobra.Command {
	var (
		key   string
		index int
	)
	cmd := &cobra.Command{
		Use:   "superscalar",
		Short: "Dump the dataset programs generated from a key",
		RunE: func(cmd *cobra.Command, args []string) error {
			progs, err := randomx.SuperscalarPrograms([]byte(key))
			if err != nil {
				return err
			}
			if index >= len(progs) {
				return fmt.Errorf("index %d out of range [0, %d)", index, len(progs))
			}
			w := cmd.OutOrStdout()
			for i, p := range progs {
				if index >= 0 && i != index {
					continue
				}
				fmt.Fprintf(w, "program %d: %s\n%s\n", i, p.Metrics, p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "cache key")
	cmd.Flags().IntVar(&index, "index", -1, "program to dump; all when negative")
	cmd.MarkFlagRequired("key")
	return cmd
}

func newDisasmCmd() *cobra.Command {
	var (
		input string
		isHex bool
	)
	cmd := &cobra.Command{
		Use:   "disasm",
		Short: "Disassemble the first program run for an input",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := common.DecodeInput(input, isHex)
			if err != nil {
				return err
			}
			p := randomx.FirstProgram(data)
			cfg, err := vm.NewConfiguration(p.EntropyWords())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "ma=%#08x mx=%#08x readReg=%v datasetOffset=%d emask=%#016x,%#016x\n",
				cfg.Ma, cfg.Mx, cfg.ReadReg, cfg.DatasetOffset, cfg.EMask[0], cfg.EMask[1])
			fmt.Fprint(w, p)
			stats := p.Analyze()
			fmt.Fprintf(w, "integer=%d float=%d control=%d store=%d branches=%d\n",
				stats.Groups[program.GroupInteger], stats.Groups[program.GroupFloat],
				stats.Groups[program.GroupControl], stats.Groups[program.GroupStore], stats.Branches)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "hash input")
	cmd.Flags().BoolVar(&isHex, "hex", false, "input is hex encoded")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			commit := Commit
			if commit == "none" {
				commit = common.GetCommitHash()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rxhash %s (commit %s, %s)\n", Version, commit, runtime.Version())
		},
	}
}
