package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

// Metrics publishes cluster accounting as Prometheus gauges. The
// gauges are not wired to the ledgers: call Observe to refresh them,
// typically from a ticker next to the metrics endpoint.
type Metrics struct {
	nodes prometheus.Gauge

	memoryCapacity  *prometheus.GaugeVec
	memoryAvailable *prometheus.GaugeVec
	memoryUsed      *prometheus.GaugeVec
	coresCapacity   *prometheus.GaugeVec
	coresAvailable  *prometheus.GaugeVec
	coresUsed       *prometheus.GaugeVec
	containers      *prometheus.GaugeVec
	reserved        *prometheus.GaugeVec
}

func nodeGauge(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "quartermaster",
		Subsystem: "node",
		Name:      name,
		Help:      help,
	}, []string{"node"})
}

// NewMetrics creates the gauge set and registers it on the registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quartermaster",
			Subsystem: "cluster",
			Name:      "nodes",
			Help:      "number of nodes registered in the cluster",
		}),

		memoryCapacity:  nodeGauge("memory_capacity_bytes", "total memory capacity of the node"),
		memoryAvailable: nodeGauge("memory_available_bytes", "memory currently free on the node"),
		memoryUsed:      nodeGauge("memory_used_bytes", "memory currently consumed by running containers"),
		coresCapacity:   nodeGauge("cores_capacity", "total core capacity of the node"),
		coresAvailable:  nodeGauge("cores_available", "cores currently free on the node"),
		coresUsed:       nodeGauge("cores_used", "cores currently consumed by running containers"),
		containers:      nodeGauge("running_containers", "number of containers running on the node"),
		reserved:        nodeGauge("reserved", "whether an application attempt holds the node's reservation"),
	}

	registry.MustRegister(
		m.nodes,
		m.memoryCapacity, m.memoryAvailable, m.memoryUsed,
		m.coresCapacity, m.coresAvailable, m.coresUsed,
		m.containers, m.reserved,
	)
	return m
}

// Observe refreshes every gauge from the cluster's current state.
func (m *Metrics) Observe(c *Cluster) {
	for _, vec := range []*prometheus.GaugeVec{
		m.memoryCapacity, m.memoryAvailable, m.memoryUsed,
		m.coresCapacity, m.coresAvailable, m.coresUsed,
		m.containers, m.reserved,
	} {
		vec.Reset()
	}

	for _, node := range c.Nodes() {
		name := string(node.Name())
		capacity := node.Capacity()
		usage := node.Usage()

		m.memoryCapacity.WithLabelValues(name).Set(float64(capacity.Memory))
		m.memoryAvailable.WithLabelValues(name).Set(float64(usage.Available.Memory))
		m.memoryUsed.WithLabelValues(name).Set(float64(usage.Used.Memory))
		m.coresCapacity.WithLabelValues(name).Set(float64(capacity.Cores) / 1000)
		m.coresAvailable.WithLabelValues(name).Set(float64(usage.Available.Cores) / 1000)
		m.coresUsed.WithLabelValues(name).Set(float64(usage.Used.Cores) / 1000)
		m.containers.WithLabelValues(name).Set(float64(usage.Containers))
		m.reserved.WithLabelValues(name).Set(lo.Ternary(usage.Reserved != nil, 1.0, 0.0))
	}

	m.nodes.Set(float64(c.Size()))
}
