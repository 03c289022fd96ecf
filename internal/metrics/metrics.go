// Package metrics exposes Prometheus counters for the command runtime.
package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	inboundMsgs = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bangbot_inbound_total", Help: "Inbound messages seen"}, []string{"transport"})
	ignored     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bangbot_ignored_total", Help: "Inbound messages dropped before dispatch"}, []string{"reason"})
	dispatches  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bangbot_dispatch_total", Help: "Descriptor invocations"}, []string{"identifier", "outcome"})
	validation  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bangbot_validation_failures_total", Help: "Validation failures reported to users"}, []string{"identifier"})
	sendErrors  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bangbot_send_errors_total", Help: "Transport send errors"}, []string{"transport"})
	dispatchDur = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "bangbot_dispatch_seconds", Help: "Time spent dispatching one message", Buckets: prometheus.DefBuckets})
)

func init() {
	prometheus.MustRegister(inboundMsgs, ignored, dispatches, validation, sendErrors, dispatchDur)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Start runs a Prometheus handler on the given listen addr.
func Start(ctx context.Context, listen string, log *slog.Logger) error {
	if listen == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: listen, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", slog.String("err", err.Error()))
			}
		}
	}()
	return nil
}

func IncInbound(transport string) { inboundMsgs.WithLabelValues(transport).Inc() }

// IncIgnored counts a dropped message; reason is one of "sender", "rate",
// "duplicate", "no_prefix", "malformed".
func IncIgnored(reason string) { ignored.WithLabelValues(reason).Inc() }

// IncDispatch counts one descriptor invocation; outcome is "ok", "rejected"
// or "error".
func IncDispatch(identifier, outcome string) { dispatches.WithLabelValues(identifier, outcome).Inc() }

func AddValidationFailures(identifier string, n int) {
	if n > 0 {
		validation.WithLabelValues(identifier).Add(float64(n))
	}
}

func IncSendError(transport string) { sendErrors.WithLabelValues(transport).Inc() }

func ObserveDispatch(seconds float64) { dispatchDur.Observe(seconds) }
