package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mondb-dev/x402-wp/internal/paywall"
	"github.com/mondb-dev/x402-wp/internal/x402"
)

var (
	paymentsVerified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_verified_total",
		Help: "The total number of verified payments",
	})
	paymentsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "The total number of rejected payments by failure kind",
	}, []string{"kind"})
	sessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_issued_total",
		Help: "The total number of access sessions issued",
	})
	requirementsServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "requirements_served_total",
		Help: "The total number of 402 responses carrying payment requirements",
	})
	contentServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "content_served_total",
		Help: "The total number of gated resources delivered",
	})
	facilitatorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "facilitator_duration_seconds",
		Help: "Latency of facilitator verify and settle calls in seconds.",
	}, []string{"outcome"})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_response_duration_seconds",
		Help: "Latency of requests in second.",
	}, []string{"path"})
)

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Label by route pattern so resource ids don't explode cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		httpDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	})
}

// recordOutcome updates the payment counters for a handled request.
func recordOutcome(res *paywall.Result) {
	switch res.Outcome {
	case paywall.OutcomePaid:
		paymentsVerified.Inc()
		sessionsIssued.Inc()
	case paywall.OutcomeFailed:
		kind := x402.KindUnexpectedError
		if res.Error != nil {
			kind = res.Error.Kind
		}
		paymentsFailed.WithLabelValues(string(kind)).Inc()
	case paywall.OutcomePaymentRequired, paywall.OutcomePaywall:
		requirementsServed.Inc()
	}
}

// timedFacilitator observes the latency of every facilitator call.
type timedFacilitator struct {
	next verifier
}

func (f timedFacilitator) VerifyAndSettle(ctx context.Context, req x402.PaymentRequirements, p *x402.PaymentPayload) (*x402.SettlementResult, error) {
	outcome := "ok"
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		facilitatorDuration.WithLabelValues(outcome).Observe(v)
	}))
	defer timer.ObserveDuration()

	res, err := f.next.VerifyAndSettle(ctx, req, p)
	if err != nil {
		outcome = "error"
	}
	return res, err
}
