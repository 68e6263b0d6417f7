package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the engine and HTTP collectors. A nil *Recorder records
// nothing, so services can be built without metrics in tests.
type Recorder struct {
	transfers        *prometheus.CounterVec
	intents          *prometheus.CounterVec
	paylinks         *prometheus.CounterVec
	sweptIntents     prometheus.Counter
	txDuration       *prometheus.HistogramVec
	httpInFlight     prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	rateLimitRejects prometheus.Counter
}

func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corebank_transfers_total",
			Help: "Transfers by outcome.",
		}, []string{"outcome"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corebank_intent_transitions_total",
			Help: "Payment intent transitions by target status.",
		}, []string{"status"}),
		paylinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corebank_paylinks_issued_total",
			Help: "Paylinks issued by kind.",
		}, []string{"kind"}),
		sweptIntents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corebank_swept_intents_total",
			Help: "Intents canceled after their paylink expired.",
		}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corebank_tx_duration_seconds",
			Help:    "Duration of balance-affecting database transactions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		rateLimitRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the public rate limiter.",
		}),
	}

	reg.MustRegister(
		r.transfers, r.intents, r.paylinks, r.sweptIntents, r.txDuration,
		r.httpInFlight, r.httpRequests, r.httpDuration, r.rateLimitRejects,
	)
	return r
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (r *Recorder) TransferOutcome(outcome string) {
	if r == nil {
		return
	}
	r.transfers.WithLabelValues(outcome).Inc()
}

func (r *Recorder) IntentTransition(status string) {
	if r == nil {
		return
	}
	r.intents.WithLabelValues(status).Inc()
}

func (r *Recorder) PaylinkIssued(kind string) {
	if r == nil {
		return
	}
	r.paylinks.WithLabelValues(kind).Inc()
}

func (r *Recorder) IntentsSwept(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.sweptIntents.Add(float64(n))
}

// ObserveTx records how long a balance-affecting transaction took, from
// begin to commit or rollback.
func (r *Recorder) ObserveTx(op string, started time.Time) {
	if r == nil {
		return
	}
	r.txDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (r *Recorder) RateLimited() {
	if r == nil {
		return
	}
	r.rateLimitRejects.Inc()
}

func (r *Recorder) Instrument(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.httpInFlight.Inc()
		defer r.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, req)

		path := CanonicalPath(req.URL.Path)
		status := strconv.Itoa(sw.code)
		r.httpDuration.WithLabelValues(req.Method, path, status).Observe(time.Since(start).Seconds())
		r.httpRequests.WithLabelValues(req.Method, path, status).Inc()
	})
}

// CanonicalPath collapses identifiers in known routes so label cardinality
// stays bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}

	parts := strings.Split(strings.Trim(p, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "pay":
		return "/pay/:slug"
	case len(parts) >= 4 && parts[0] == "api" && parts[1] == "v1":
		switch parts[2] {
		case "accounts", "payment-intents", "paylinks":
			parts[3] = ":id"
		}
		return "/" + strings.Join(parts, "/")
	}
	return p
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
