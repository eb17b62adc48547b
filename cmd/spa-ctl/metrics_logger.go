package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/spa-control/internal/metrics"
)

// startMetricsLogger periodically logs the local metrics mirror, for
// deployments that don't run a Prometheus scraper against
// --metrics-addr. Mirrors the teacher's metrics_logger.go.
func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"commands_built", snap.CommandsBuilt,
					"commands_parsed", snap.CommandsParsed,
					"malformed", snap.Malformed,
					"bytes_rx", snap.BytesRx,
					"bytes_tx", snap.BytesTx,
					"fds_rx", snap.FdsRx,
					"fds_tx", snap.FdsTx,
					"errors", snap.Errors,
					"subscribers", snap.Subscribers,
					"dropped", snap.Dropped,
					"kicked", snap.Kicked,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
