// Command pagestream keeps a bounded history of its standard input.
//
// Input is appended to a disk backed stream that rotates every page-size
// bytes, so at most about two pages are kept no matter how much is read.
// When the input ends, or on SIGINT/SIGTERM, the retained window is written
// to standard output.
//
//	some-noisy-command | pagestream --page-size 1MiB > last-output.log
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lanrat/pagestream"
)

// readBufferSize is the largest single append made from the input.
var readBufferSize = 1 << 16

type options struct {
	configPath  string
	pageSize    int64
	dir         string
	name        string
	from        int64
	metricsAddr string
	logLevel    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "pagestream",
		Short:         "Keep a bounded, disk backed history of stdin",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &opts, &config)

			level, err := parseLevel(config.LogLevel)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, stop, config, opts.from, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flags.Int64VarP(&opts.pageSize, "page-size", "p", 0, "rotate to a new page every N bytes")
	flags.StringVarP(&opts.dir, "dir", "d", "", "directory for backing files")
	flags.StringVar(&opts.name, "name", "", "stream name used in logs and metrics")
	flags.Int64Var(&opts.from, "from", 0, "first offset to write out, clamped to the retained window")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while reading")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

// applyFlags overrides config with the flags set on the command line.
func applyFlags(cmd *cobra.Command, opts *options, config *fileConfig) {
	flags := cmd.Flags()
	if flags.Changed("page-size") {
		config.Stream.PageSize = opts.pageSize
	}
	if flags.Changed("dir") {
		config.Stream.TempFilesDir = opts.dir
	}
	if flags.Changed("name") {
		config.Stream.Name = opts.name
	}
	if flags.Changed("metrics-addr") {
		config.MetricsAddr = opts.metricsAddr
	}
	if flags.Changed("log-level") {
		config.LogLevel = opts.logLevel
	}
}

// run copies in into a bounded stream until in ends or ctx is done, then
// writes the retained window starting at from to out. stop is called once
// reading is over so a second signal interrupts the final write.
func run(ctx context.Context, stop context.CancelFunc, config fileConfig, from int64, in io.Reader, out io.Writer, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	streamConfig := config.Stream
	streamConfig.Logger = logger
	streamConfig.Metrics = pagestream.NewMetrics(reg)

	s, err := pagestream.New(&streamConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("close stream", slog.Any("error", err))
		}
	}()
	b, err := pagestream.NewBounded(s, streamConfig.PageSize)
	if err != nil {
		return err
	}

	readCtx, cancelRead := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(readCtx)
	chunks, readErrs := readChunks(gctx, in)

	g.Go(func() error {
		defer cancelRead()
		return ingest(gctx, b, chunks, readErrs)
	})
	if config.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, config.MetricsAddr, reg, logger)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	stop()
	if ctx.Err() != nil {
		logger.Info("interrupted, writing retained history")
	}

	if from < b.Tail() {
		from = b.Tail()
	}
	if from > b.Head() {
		from = b.Head()
	}
	logger.Info("writing history",
		slog.Int64("from", from),
		slog.Int64("head", b.Head()),
		slog.Int64("evicted", b.Tail()-streamConfig.BaseOffset))
	return b.WriteContents(context.WithoutCancel(ctx), out, from)
}

// readChunks reads in on its own goroutine until it fails or ctx is done.
// A read that is blocked when ctx ends is abandoned.
func readChunks(ctx context.Context, in io.Reader) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, readBufferSize)
			n, err := in.Read(buf)
			if n > 0 {
				select {
				case chunks <- buf[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					errs <- err
				}
				return
			}
		}
	}()
	return chunks, errs
}

// ingest appends chunks to s until the input ends. Cancellation of ctx is
// not an error: whatever was read so far is kept.
func ingest(ctx context.Context, s pagestream.Stream, chunks <-chan []byte, readErrs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-chunks:
			if !ok {
				select {
				case err := <-readErrs:
					return fmt.Errorf("read input: %w", err)
				default:
					return nil
				}
			}
			if _, err := s.Append(chunk); err != nil {
				return err
			}
		}
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", slog.String("addr", addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
