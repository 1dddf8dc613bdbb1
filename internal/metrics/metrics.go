package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BuzzLyutic/task-list/internal/model"
)

// Collector tracks task counts. It is fed through a store observer.
type Collector struct {
	registry      *prometheus.Registry
	tasks         *prometheus.GaugeVec
	notifications prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tasks",
				Help: "Number of tasks in the store by state",
			},
			[]string{"state"},
		),
		notifications: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "task_store_notifications_total",
				Help: "Snapshots published by the task store",
			},
		),
	}

	c.registry.MustRegister(c.tasks, c.notifications)
	c.registry.MustRegister(collectors.NewGoCollector())
	return c
}

// Observe has the store observer signature.
func (c *Collector) Observe(tasks []model.Task) {
	st := model.StatsOf(tasks)

	c.tasks.WithLabelValues("total").Set(float64(st.Total))
	c.tasks.WithLabelValues("completed").Set(float64(st.Completed))
	c.tasks.WithLabelValues("pending").Set(float64(st.Pending))
	c.notifications.Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
