package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is a consistent view of the profiler taken for one scrape.
type Snapshot struct {
	Active    bool
	Ticks     int64
	TotalTime float64
	Successes int64
	Failures  int64
	Functions []FunctionMetrics
}

// Collector exposes the current session as prometheus metrics. The snapshot
// function is called once per scrape and is responsible for any locking.
type Collector struct {
	snapshot func() Snapshot

	functionCalls    *prometheus.Desc
	functionCPU      *prometheus.Desc
	functionSelfCPU  *prometheus.Desc
	functionFailures *prometheus.Desc
	sessionActive    *prometheus.Desc
	sessionTicks     *prometheus.Desc
	sessionCPU       *prometheus.Desc
	sessionOutcomes  *prometheus.Desc
}

func NewCollector(snapshot func() Snapshot) *Collector {
	fn := []string{"function"}
	return &Collector{
		snapshot:         snapshot,
		functionCalls:    prometheus.NewDesc("tickprof_function_calls_total", "Calls recorded per function in the current session.", fn, nil),
		functionCPU:      prometheus.NewDesc("tickprof_function_cpu_total", "Inclusive CPU recorded per function in the current session.", fn, nil),
		functionSelfCPU:  prometheus.NewDesc("tickprof_function_self_cpu_total", "Exclusive CPU recorded per function in the current session.", fn, nil),
		functionFailures: prometheus.NewDesc("tickprof_function_failures_total", "Failed billable actions per function in the current session.", fn, nil),
		sessionActive:    prometheus.NewDesc("tickprof_session_active", "Whether a profiling session is recording.", nil, nil),
		sessionTicks:     prometheus.NewDesc("tickprof_session_ticks", "Slices elapsed in the current session.", nil, nil),
		sessionCPU:       prometheus.NewDesc("tickprof_session_cpu_total", "CPU used by all recorded slices.", nil, nil),
		sessionOutcomes:  prometheus.NewDesc("tickprof_session_actions_total", "Billable action outcomes in the current session.", []string{"outcome"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.functionCalls
	ch <- c.functionCPU
	ch <- c.functionSelfCPU
	ch <- c.functionFailures
	ch <- c.sessionActive
	ch <- c.sessionTicks
	ch <- c.sessionCPU
	ch <- c.sessionOutcomes
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()

	active := 0.0
	if s.Active {
		active = 1
	}
	ch <- prometheus.MustNewConstMetric(c.sessionActive, prometheus.GaugeValue, active)
	ch <- prometheus.MustNewConstMetric(c.sessionTicks, prometheus.GaugeValue, float64(s.Ticks))
	ch <- prometheus.MustNewConstMetric(c.sessionCPU, prometheus.CounterValue, s.TotalTime)
	ch <- prometheus.MustNewConstMetric(c.sessionOutcomes, prometheus.CounterValue, float64(s.Successes), "success")
	ch <- prometheus.MustNewConstMetric(c.sessionOutcomes, prometheus.CounterValue, float64(s.Failures), "failure")

	for _, f := range s.Functions {
		ch <- prometheus.MustNewConstMetric(c.functionCalls, prometheus.CounterValue, float64(f.Calls), f.Name)
		ch <- prometheus.MustNewConstMetric(c.functionCPU, prometheus.CounterValue, f.Sum, f.Name)
		ch <- prometheus.MustNewConstMetric(c.functionSelfCPU, prometheus.CounterValue, f.Self, f.Name)
		ch <- prometheus.MustNewConstMetric(c.functionFailures, prometheus.CounterValue, float64(f.Failures), f.Name)
	}
}

var _ prometheus.Collector = (*Collector)(nil)
