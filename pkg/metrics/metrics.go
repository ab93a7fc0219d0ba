// пакет metrics содержит счетчики Prometheus сервиса.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// исход операции с комментарием.
const (
	OutcomeCreated  = "created"
	OutcomeRejected = "rejected"
	OutcomeUpdated  = "updated"
	OutcomeDeleted  = "deleted"
	OutcomeNotFound = "not_found"
)

// Metrics - счетчики сервиса, зарегистрированные в своем реестре.
type Metrics struct {
	registry *prometheus.Registry

	Comments *prometheus.CounterVec
	Requests *prometheus.CounterVec
	Logins   *prometheus.CounterVec
}

// New создает и регистрирует счетчики.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Comments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsroom",
			Name:      "comments_total",
			Help:      "Comment operations by outcome.",
		}, []string{"outcome"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsroom",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsroom",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.Comments,
		m.Requests,
		m.Logins,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Comment учитывает операцию с комментарием.
func (m *Metrics) Comment(outcome string) {
	m.Comments.WithLabelValues(outcome).Inc()
}

// Request учитывает обработанный запрос.
func (m *Metrics) Request(method string, code int) {
	m.Requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// Login учитывает попытку входа.
func (m *Metrics) Login(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	m.Logins.WithLabelValues(result).Inc()
}

// Handler отдает метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
