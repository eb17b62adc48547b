// Command spa-ctl exercises the control-message codec end to end over
// a real AF_UNIX socket: "serve" accepts one or more peers and decodes
// their command streams, "send" builds a demo sequence and writes it
// to a listening peer. It plays the same role cmd/can-server plays
// relative to the teacher's internal/* packages: a thin CLI shell
// around the domain logic, not a home for codec behavior itself.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kstaniek/spa-control/internal/control"
	"github.com/kstaniek/spa-control/internal/logging"
	"github.com/kstaniek/spa-control/internal/metrics"
	"github.com/kstaniek/spa-control/internal/registry"
	"github.com/kstaniek/spa-control/internal/transport"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("spa-ctl %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	if cfg.mode == "send" {
		if err := runSend(cfg, l); err != nil {
			l.Error("send_error", "error", err)
			os.Exit(1)
		}
		return
	}

	runServe(cfg, l)
}

func runServe(cfg *appConfig, l *slog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	reg := registry.New()
	reg.OutBufSize = cfg.registryBuffer
	if cfg.registryPolicy == "kick" {
		reg.Policy = registry.PolicyKick
	}

	startMetricsLogger(ctx, cfg.logMetricsEvery, logging.L(), &wg)

	sockType := transport.SockSeqpacket()
	if cfg.sockType == "stream" {
		sockType = transport.SockStream()
	}

	srv := transport.NewServer(
		transport.WithPath(cfg.socketPath),
		transport.WithRegistry(reg),
		transport.WithSockType(sockType),
		transport.WithMaxClients(cfg.maxClients),
		transport.WithMaxFrameBytes(cfg.maxFrameBytes),
		transport.WithLogger(logging.L()),
		transport.WithDispatch(func(peer *transport.Peer, tag control.Tag, value interface{}) {
			l.Info("command_received", "peer", peer.ID, "tag", tag.String())
		}),
	)

	go func() {
		if err := srv.Serve(ctx); err != nil {
			l.Error("serve_error", "error", err)
			cancel()
		}
	}()

	metrics.SetReadinessFunc(func() bool {
		select {
		case <-srv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Warn("shutdown_error", "error", err)
	}
	wg.Wait()
}
