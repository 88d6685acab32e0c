package mdpress

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	pagesRendered     *prometheus.CounterVec
	stylesheetSeconds prometheus.Histogram
	buildsTotal       *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		pagesRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdpress",
			Name:      "pages_rendered_total",
			Help:      "Pages rendered, by kind.",
		}, []string{"kind"}),
		stylesheetSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mdpress",
			Name:      "stylesheet_compile_seconds",
			Help:      "Time spent compiling the theme stylesheet.",
			Buckets:   prometheus.DefBuckets,
		}),
		buildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdpress",
			Name:      "builds_total",
			Help:      "Static builds run, by status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.pagesRendered, m.stylesheetSeconds, m.buildsTotal)
	return m
}

func (a *App) metricsHandler() echo.HandlerFunc {
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: a.Registry,
	})
}
