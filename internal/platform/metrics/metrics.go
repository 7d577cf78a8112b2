// Package metrics registers the Prometheus instruments used across the
// service. Device operations are the interesting signal here: a stalled
// terminal shows up as a long duration, a flaky one as failures.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DeviceOps        *prometheus.CounterVec
	DeviceOpDuration *prometheus.HistogramVec
	EmployeesPushed  prometheus.Counter
	EmployeesDeleted prometheus.Counter
	LookupRefreshes  *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		DeviceOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zk_tools_device_operations_total",
			Help: "Terminal operations by action and outcome.",
		}, []string{"action", "outcome"}),
		DeviceOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zk_tools_device_operation_seconds",
			Help:    "Duration of terminal operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		EmployeesPushed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zk_tools_employees_pushed_total",
			Help: "Employees successfully written to a terminal.",
		}),
		EmployeesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zk_tools_employees_deleted_total",
			Help: "Employees successfully deleted from a terminal.",
		}),
		LookupRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zk_tools_external_lookup_refreshes_total",
			Help: "External lookup refreshes by source and outcome.",
		}, []string{"source", "outcome"}),
	}
}

// ObserveDeviceOp records one terminal operation.
func (m *Metrics) ObserveDeviceOp(action string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.DeviceOps.WithLabelValues(action, outcome).Inc()
	m.DeviceOpDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
}
