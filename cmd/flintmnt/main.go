//go:build linux

// Command flintmnt mounts a passthrough filesystem: a source directory is
// mirrored at the mountpoint, with all requests answered in userspace.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof" // anonymous import to get the pprof handler registered

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/mitchellh/go-homedir"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flintfs/flint/fuse"
	"github.com/flintfs/flint/internal/cmdutil"
	"github.com/flintfs/flint/server"
)

func main() {
	var (
		ll         cmdutil.LogLevel
		configPath string
	)

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.Var(&ll, "log.level", "Level to display logs at")
	fs.StringVar(&configPath, "config", defaultConfigPath, "Path to an optional config file")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %s\n", err.Error())
		os.Exit(1)
	}

	if len(fs.Args()) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] [source] [mountpoint]\n", os.Args[0])
		os.Exit(1)
	}

	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	l = level.NewFilter(l, ll.FilterOption())
	l = log.With(l, "ts", log.DefaultTimestamp, "caller", log.DefaultCaller, "program", "flintmnt")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		level.Error(l).Log("msg", "failed to load config", "err", err)
		os.Exit(1)
	}

	if err := runMain(l, cfg, fs.Arg(0), fs.Arg(1)); err != nil {
		level.Error(l).Log("msg", "error during run", "err", err)
		os.Exit(1)
	}
}

func runMain(l log.Logger, cfg Config, sourcePath, mountPath string) error {
	sourcePath, err := homedir.Expand(sourcePath)
	if err != nil {
		return fmt.Errorf("invalid source path: %w", err)
	}
	mountPath, err = homedir.Expand(mountPath)
	if err != nil {
		return fmt.Errorf("invalid mountpoint: %w", err)
	}

	var group run.Group

	// Information server worker
	{
		lis, err := net.Listen("tcp", cfg.HTTPListenAddr)
		if err != nil {
			return fmt.Errorf("failed to create listener for HTTP server: %w", err)
		}

		r := mux.NewRouter()
		r.Handle("/metrics", promhttp.Handler())
		r.PathPrefix("/debug/pprof").Handler(http.DefaultServeMux)
		srv := http.Server{Handler: r}

		group.Add(func() error {
			level.Debug(l).Log("msg", "listening for http traffic", "addr", lis.Addr())
			err := srv.Serve(lis)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}, func(_ error) {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
			}
		})
	}

	// FUSE worker
	{
		if err := os.MkdirAll(mountPath, 0770); err != nil {
			return fmt.Errorf("creating mount path: %w", err)
		}
		transport, err := fuse.Mount(l, mountPath, mountOptions(cfg.Mount)...)
		if err != nil {
			return fmt.Errorf("failed to create mount: %w", err)
		}

		middleware := []server.Middleware{
			server.NewMetricsMiddleware(prometheus.DefaultRegisterer),
		}
		if cfg.LogRequests {
			middleware = append(middleware, server.NewLoggingMiddleware(l))
		}

		srv, err := server.New(l, server.Options{
			ConcurrencyLimit: cfg.ConcurrencyLimit,
			RequestTimeout:   cfg.RequestTimeout,
			Transport:        transport,
			Handler:          server.Passthrough(l, sourcePath),
			Middleware:       middleware,
			OnNegotiated: func(ci server.ConnInfo) {
				level.Info(l).Log("msg", "session established", "version", ci.Version, "max_write", ci.MaxWrite)
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create userspace driver: %w", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		group.Add(func() error {
			level.Debug(l).Log("msg", "serving FUSE traffic", "dir", mountPath)
			return srv.Serve(ctx)
		}, func(_ error) {
			cancel()
		})
	}

	// signal worker
	{
		ctx, cancel := context.WithCancel(context.Background())

		group.Add(func() error {
			ch := make(chan os.Signal, 2)
			signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(ch)

			select {
			case <-ch:
				level.Info(l).Log("msg", "received shutdown signal")
			case <-ctx.Done():
			}
			return nil
		}, func(_ error) {
			cancel()
		})
	}

	level.Info(l).Log("msg", "flintmnt running in foreground, waiting for interrupt or error")
	return group.Run()
}

func mountOptions(mc MountConfig) []fuse.MountOption {
	var opts []fuse.MountOption
	if mc.FSName != "" {
		opts = append(opts, fuse.FSName(mc.FSName))
	}
	if mc.Subtype != "" {
		opts = append(opts, fuse.Subtype(mc.Subtype))
	}
	if mc.AllowOther {
		opts = append(opts, fuse.AllowOther())
	}
	if mc.AllowDev {
		opts = append(opts, fuse.AllowDev())
	}
	if mc.AllowSUID {
		opts = append(opts, fuse.AllowSUID())
	}
	if mc.DefaultPermissions {
		opts = append(opts, fuse.DefaultPermissions())
	}
	if mc.ReadOnly {
		opts = append(opts, fuse.ReadOnly())
	}
	if mc.AllowNonEmpty {
		opts = append(opts, fuse.AllowNonEmptyMount())
	}
	return opts
}
