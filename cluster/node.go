package cluster

import (
	"fmt"
	"strings"

	"github.com/gammadia/quartermaster/resource"
)

// DefaultRack is the rack assigned to nodes whose inventory entry does
// not name one.
const DefaultRack = "/default-rack"

// defaultHTTPPort is where a node's status endpoint is assumed to
// listen when the inventory does not say otherwise.
const defaultHTTPPort = 8042

// Node describes a worker machine as known to the cluster: its
// identity, location and total capacity. Descriptors are read-only;
// implementations must be safe for concurrent use.
type Node interface {
	fmt.Stringer

	// Name returns the node's unique "host:port" identity.
	Name() NodeName
	// Hostname returns the host part of the node's name.
	Hostname() string
	// RackName returns the rack the node is mounted in.
	RackName() string
	// HTTPAddress returns the address of the node's status endpoint.
	HTTPAddress() string
	// Capacity returns the node's total resource capacity.
	Capacity() resource.Vector
}

// StaticNodeConfig is the configuration for a fixed node descriptor.
type StaticNodeConfig struct {
	// Name is the node's unique "host:port" identity.
	Name NodeName
	// Hostname of the machine. Defaults to the host part of Name.
	Hostname string
	// Rack the node is mounted in. Defaults to DefaultRack.
	Rack string
	// HTTPAddress of the node's status endpoint. Defaults to the
	// hostname on port 8042.
	HTTPAddress string
	// Capacity is the node's total resource capacity.
	Capacity resource.Vector
}

// StaticNode is a fixed node descriptor, as loaded from an inventory
// file or probed from the local machine.
type StaticNode struct {
	name        NodeName
	hostname    string
	rack        string
	httpAddress string
	capacity    resource.Vector
}

var _ Node = StaticNode{}

// NewStaticNode builds a node descriptor from the given configuration,
// filling in defaults for the optional fields.
func NewStaticNode(config StaticNodeConfig) (StaticNode, error) {
	if config.Name == "" {
		return StaticNode{}, fmt.Errorf("node name is required")
	}
	if !config.Capacity.IsValid() {
		return StaticNode{}, fmt.Errorf("node '%s' has an invalid capacity", config.Name)
	}

	node := StaticNode{
		name:        config.Name,
		hostname:    config.Hostname,
		rack:        config.Rack,
		httpAddress: config.HTTPAddress,
		capacity:    config.Capacity,
	}
	if node.hostname == "" {
		node.hostname, _, _ = strings.Cut(string(config.Name), ":")
	}
	if node.rack == "" {
		node.rack = DefaultRack
	}
	if node.httpAddress == "" {
		node.httpAddress = fmt.Sprintf("%s:%d", node.hostname, defaultHTTPPort)
	}

	return node, nil
}

func (n StaticNode) Name() NodeName {
	return n.name
}

func (n StaticNode) Hostname() string {
	return n.hostname
}

func (n StaticNode) RackName() string {
	return n.rack
}

func (n StaticNode) HTTPAddress() string {
	return n.httpAddress
}

func (n StaticNode) Capacity() resource.Vector {
	return n.capacity
}

func (n StaticNode) String() string {
	return string(n.name)
}
