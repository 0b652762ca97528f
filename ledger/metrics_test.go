package ledger

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gammadia/quartermaster/resource"
)

func gaugeValue(t *testing.T, families []*dto.MetricFamily, name, node string) float64 {
	t.Helper()
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if node == "" && len(metric.GetLabel()) == 0 {
				return metric.GetGauge().GetValue()
			}
			for _, label := range metric.GetLabel() {
				if label.GetName() == "node" && label.GetValue() == node {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("no gauge %s for node %q", name, node)
	return 0
}

func TestMetricsObserve(t *testing.T) {
	c := newTestCluster()
	n1 := addTestNode(t, c, "worker-1:8041", resource.New(8<<30, 8000))
	addTestNode(t, c, "worker-2:8041", resource.New(16<<30, 4000))

	attempt := testAttempt(1, 1)
	n1.Allocate(testContainer(attempt, 1, n1.Name(), resource.New(2<<30, 2000)))
	require.NoError(t, n1.Reserve(attempt, 10, testContainer(attempt, 2, n1.Name(), resource.New(1<<30, 1000))))

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.Observe(c)

	families, err := registry.Gather()
	require.NoError(t, err)

	assert.Equal(t, 2.0, gaugeValue(t, families, "quartermaster_cluster_nodes", ""))

	assert.Equal(t, float64(8<<30), gaugeValue(t, families, "quartermaster_node_memory_capacity_bytes", "worker-1:8041"))
	assert.Equal(t, float64(6<<30), gaugeValue(t, families, "quartermaster_node_memory_available_bytes", "worker-1:8041"))
	assert.Equal(t, float64(2<<30), gaugeValue(t, families, "quartermaster_node_memory_used_bytes", "worker-1:8041"))
	assert.Equal(t, 6.0, gaugeValue(t, families, "quartermaster_node_cores_available", "worker-1:8041"))
	assert.Equal(t, 2.0, gaugeValue(t, families, "quartermaster_node_cores_used", "worker-1:8041"))
	assert.Equal(t, 1.0, gaugeValue(t, families, "quartermaster_node_running_containers", "worker-1:8041"))
	assert.Equal(t, 1.0, gaugeValue(t, families, "quartermaster_node_reserved", "worker-1:8041"))

	assert.Equal(t, float64(16<<30), gaugeValue(t, families, "quartermaster_node_memory_available_bytes", "worker-2:8041"))
	assert.Equal(t, 0.0, gaugeValue(t, families, "quartermaster_node_reserved", "worker-2:8041"))
}

func TestMetricsObserveForgetsRemovedNodes(t *testing.T) {
	c := newTestCluster()
	addTestNode(t, c, "worker-1:8041", resource.New(8<<30, 8000))
	addTestNode(t, c, "worker-2:8041", resource.New(8<<30, 8000))

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.Observe(c)

	require.NoError(t, c.RemoveNode("worker-2:8041"))
	metrics.Observe(c)

	families, err := registry.Gather()
	require.NoError(t, err)

	assert.Equal(t, 1.0, gaugeValue(t, families, "quartermaster_cluster_nodes", ""))
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "node" {
					assert.NotEqual(t, "worker-2:8041", label.GetValue(),
						"metric %s should drop series for removed nodes", family.GetName())
				}
			}
		}
	}
}
