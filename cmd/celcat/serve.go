package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/celestial-catalog/internal/catalog"
	"github.com/signalsfoundry/celestial-catalog/internal/config"
	"github.com/signalsfoundry/celestial-catalog/internal/httpapi"
	"github.com/signalsfoundry/celestial-catalog/internal/logging"
	"github.com/signalsfoundry/celestial-catalog/internal/observability"
	"github.com/signalsfoundry/celestial-catalog/internal/session"
	"github.com/signalsfoundry/celestial-catalog/kernel"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog over gRPC and HTTP",
	Long: `serve furnishes the configured kernels, tracks the solar system and
exposes the session through the gRPC catalog service and the JSON API,
with Prometheus metrics on /metrics. With --watch, kernels are reloaded
when their files change.`,
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("grpc-addr", "", "TCP address the catalog gRPC server listens on (default :50061)")
	flags.String("http-addr", "", "HTTP address for the JSON API and /metrics (default :9091)")
	flags.Bool("watch", false, "reload kernels when their files change")
	flags.Bool("tracing", false, "enable OpenTelemetry tracing")

	_ = viper.BindPFlag("serve.grpc_addr", flags.Lookup("grpc-addr"))
	_ = viper.BindPFlag("serve.http_addr", flags.Lookup("http-addr"))
	_ = viper.BindPFlag("watch", flags.Lookup("watch"))
	_ = viper.BindPFlag("tracing.enabled", flags.Lookup("tracing"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	grpcLis, err := net.Listen("tcp", cfg.Serve.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen for gRPC on %s: %w", cfg.Serve.GRPCAddr, err)
	}
	httpLis, err := net.Listen("tcp", cfg.Serve.HTTPAddr)
	if err != nil {
		grpcLis.Close()
		return fmt.Errorf("listen for HTTP on %s: %w", cfg.Serve.HTTPAddr, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, cfg, log, grpcLis, httpLis)
}

// run serves the catalog on the given listeners until ctx is done.
func run(ctx context.Context, cfg config.Config, log logging.Logger, grpcLis, httpLis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	sess, err := openSession(ctx, cfg, log, collector)
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.LoadSolarSystem(ctx, false); err != nil {
		return err
	}

	grpcSrv := catalog.NewServer(catalog.NewService(sess, log), collector, log)
	httpSrv := &http.Server{
		Handler:           httpapi.NewHandler(sess, log).Router(collector.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting catalog gRPC server", logging.String("addr", grpcLis.Addr().String()))
		if err := grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logging.String("addr", httpLis.Addr().String()))
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	if cfg.Watch {
		if err := watchKernels(gctx, g, sess, log); err != nil {
			grpcSrv.Stop()
			_ = httpSrv.Close()
			_ = g.Wait()
			return err
		}
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down catalog servers")
		grpcSrv.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// watchKernels reloads the session whenever one of its kernel files
// changes. After a successful reload the watch set follows the files the
// session now holds, so kernels a metakernel gains are watched too.
func watchKernels(ctx context.Context, g *errgroup.Group, sess *session.Session, log logging.Logger) error {
	files := sess.KernelFiles()
	w, err := kernel.NewWatcher(files)
	if err != nil {
		return fmt.Errorf("watch kernels: %w", err)
	}
	log.Info(ctx, "watching kernel files", logging.Int("files", len(files)))
	g.Go(func() error {
		err := w.Run(ctx,
			func(path string) {
				log.Info(ctx, "kernel file changed", logging.String("path", path))
				// Reload logs its own failure.
				if sess.Reload(ctx) != nil {
					return
				}
				if err := w.SetFiles(sess.KernelFiles()); err != nil {
					log.Warn(ctx, "update kernel watch set", logging.Err(err))
				}
			},
			func(err error) {
				log.Warn(ctx, "kernel watch error", logging.Err(err))
			},
		)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return nil
}
