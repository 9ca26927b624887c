package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"callrate/pkg/config"
	"callrate/pkg/logger"
	"callrate/pkg/metrics"
	"callrate/pkg/ratelimit"
)

// gateOptions translates the gate section of the config.
func gateOptions(cfg *config.Config, log logger.Logger) []ratelimit.Option {
	opts := []ratelimit.Option{
		ratelimit.WithName("callrate"),
		ratelimit.WithLogger(log),
	}
	if cfg.Gate.RPS != nil {
		opts = append(opts, ratelimit.WithRPS(*cfg.Gate.RPS))
	}
	if cfg.Gate.Delay != nil {
		opts = append(opts, ratelimit.WithDelay(*cfg.Gate.Delay))
	}
	if cfg.Gate.Retention > 0 {
		opts = append(opts, ratelimit.WithRetention(cfg.Gate.Retention, cfg.Gate.SweepInterval))
	}
	return opts
}

// newGate builds the gate and, when metrics are enabled, starts serving
// them. The returned stop function shuts the metrics server down.
func newGate(cfg *config.Config, log logger.Logger) (*ratelimit.Gate, func(), error) {
	opts := gateOptions(cfg, log)
	stop := func() {}

	var recorder *metrics.Recorder
	reg := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		var err error
		recorder, err = metrics.NewRecorder(cfg.Metrics.Namespace, reg)
		if err != nil {
			return nil, stop, fmt.Errorf("failed to register metrics: %w", err)
		}
		opts = append(opts, ratelimit.WithObserver(recorder))
	}

	gate, err := ratelimit.New(opts...)
	if err != nil {
		return nil, stop, err
	}

	if recorder != nil {
		if err := recorder.TrackGate(gate); err != nil {
			return nil, stop, fmt.Errorf("failed to register metrics: %w", err)
		}
		stop = serveMetrics(cfg.Metrics.Address, reg, log)
	}
	return gate, stop, nil
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func serveMetrics(addr string, reg *prometheus.Registry, log logger.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsHandler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.InfoWithFields("Serving metrics", map[string]interface{}{"address": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// defaultPolicy is the policy built from --rps/--delay or the config file.
func defaultPolicy(gate *ratelimit.Gate) (ratelimit.Policy, error) {
	policy, err := gate.Default()
	if err != nil {
		return policy, fmt.Errorf("%w (pass --rps or --delay, or set gate.rps or gate.delay)", err)
	}
	return policy, nil
}
