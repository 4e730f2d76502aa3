package rpc

import (
	"bufio"
	"net"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "velotype_http_requests_total",
		Help: "HTTP requests served, by method and status code.",
	}, []string{"method", "code"})
	accountsRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "velotype_accounts_registered_total",
		Help: "Accounts created through the registration endpoint.",
	})
	accountsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "velotype_accounts_deleted_total",
		Help: "Accounts erased through the profile endpoint.",
	})
)

// instrument counts every routed request by method and final status code.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps the websocket upgrade working behind the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
