package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gammadia/quartermaster/resource"
)

func TestNewStaticNodeDefaults(t *testing.T) {
	node, err := NewStaticNode(StaticNodeConfig{
		Name:     "worker-1:8041",
		Capacity: resource.New(8<<30, 8000),
	})
	require.NoError(t, err)

	assert.Equal(t, NodeName("worker-1:8041"), node.Name())
	assert.Equal(t, "worker-1", node.Hostname())
	assert.Equal(t, DefaultRack, node.RackName())
	assert.Equal(t, "worker-1:8042", node.HTTPAddress())
	assert.Equal(t, resource.New(8<<30, 8000), node.Capacity())
	assert.Equal(t, "worker-1:8041", node.String())
}

func TestNewStaticNodeExplicit(t *testing.T) {
	node, err := NewStaticNode(StaticNodeConfig{
		Name:        "worker-2:8041",
		Hostname:    "worker-2.internal",
		Rack:        "/rack-b",
		HTTPAddress: "worker-2.internal:9999",
		Capacity:    resource.New(16<<30, 4000),
	})
	require.NoError(t, err)

	assert.Equal(t, "worker-2.internal", node.Hostname())
	assert.Equal(t, "/rack-b", node.RackName())
	assert.Equal(t, "worker-2.internal:9999", node.HTTPAddress())
}

func TestNewStaticNodeRejectsMissingName(t *testing.T) {
	_, err := NewStaticNode(StaticNodeConfig{Capacity: resource.New(1<<30, 1000)})
	assert.EqualError(t, err, "node name is required")
}

func TestNewStaticNodeRejectsInvalidCapacity(t *testing.T) {
	_, err := NewStaticNode(StaticNodeConfig{
		Name:     "worker-1:8041",
		Capacity: resource.New(-1, 1000),
	})
	assert.EqualError(t, err, "node 'worker-1:8041' has an invalid capacity")
}

func TestProbe(t *testing.T) {
	node, err := Probe(8041)
	require.NoError(t, err)

	assert.NotEmpty(t, node.Hostname())
	assert.Equal(t, NodeName(node.Hostname()+":8041"), node.Name())
	assert.True(t, node.Capacity().IsValid())
	assert.False(t, node.Capacity().IsZero())
	assert.GreaterOrEqual(t, node.Capacity().Cores, int64(1000))
}
