package ledger

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/gammadia/quartermaster/cluster"
	"github.com/gammadia/quartermaster/namegen"
	"github.com/gammadia/quartermaster/resource"
)

// eventBufferSize is the queue depth of each subscriber channel.
const eventBufferSize = 1024

// Cluster is the registry of node ledgers: one Node per worker
// machine, indexed by name. It aggregates capacity across nodes and
// fans accounting events out to subscribers. Nodes mutate
// independently; the cluster never serializes operations across them.
type Cluster struct {
	name namegen.ID
	log  *slog.Logger

	mu    sync.RWMutex
	nodes map[cluster.NodeName]*Node

	listenersMu sync.RWMutex
	listeners   map[chan Event]struct{}
}

// NewCluster creates an empty cluster registry.
func NewCluster(config Config) *Cluster {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := namegen.Get()

	return &Cluster{
		name: name,
		log:  logger.With("cluster", name),

		nodes:     map[cluster.NodeName]*Node{},
		listeners: map[chan Event]struct{}{},
	}
}

// Name returns the cluster's generated name.
func (c *Cluster) Name() namegen.ID {
	return c.name
}

// AddNode registers a worker node and returns its freshly seeded
// ledger. Node names are unique: registering a name twice is an error.
func (c *Cluster) AddNode(desc cluster.Node) (*Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := desc.Name()
	if _, exists := c.nodes[name]; exists {
		return nil, fmt.Errorf("node '%s' is already registered", name)
	}

	node := NewNode(desc, Config{Logger: c.log})
	node.emit = c.broadcast
	c.nodes[name] = node

	c.log.Info("Node added", "node", name, "capacity", desc.Capacity())
	c.broadcast(EventNodeAdded{Node: name, Capacity: desc.Capacity()})
	return node, nil
}

// RemoveNode drops a node from the registry, together with whatever
// its ledger was tracking.
func (c *Cluster) RemoveNode(name cluster.NodeName) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.nodes[name]; !exists {
		return fmt.Errorf("unknown node '%s'", name)
	}
	delete(c.nodes, name)

	c.log.Info("Node removed", "node", name)
	c.broadcast(EventNodeRemoved{Node: name})
	return nil
}

// Node returns the ledger of the named node, or nil when the node is
// not registered.
func (c *Cluster) Node(name cluster.NodeName) *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodes[name]
}

// Nodes returns every registered ledger, sorted by node name.
func (c *Cluster) Nodes() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()

	nodes := lo.Values(c.nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name() < nodes[j].Name() })
	return nodes
}

// Size returns the number of registered nodes.
func (c *Cluster) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}

// TotalCapacity sums the declared capacity of every node.
func (c *Cluster) TotalCapacity() resource.Vector {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := resource.Zero
	for _, node := range c.nodes {
		total = total.Add(node.Capacity())
	}
	return total
}

// TotalAvailable sums the currently free capacity of every node.
func (c *Cluster) TotalAvailable() resource.Vector {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := resource.Zero
	for _, node := range c.nodes {
		total = total.Add(node.AvailableResource())
	}
	return total
}

// TotalUsed sums the currently consumed capacity of every node.
func (c *Cluster) TotalUsed() resource.Vector {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := resource.Zero
	for _, node := range c.nodes {
		total = total.Add(node.UsedResource())
	}
	return total
}

// Subscribe registers a listener for cluster events. The returned
// cancel function must be called when the listener is done, otherwise
// it leaks and keeps receiving events forever.
func (c *Cluster) Subscribe() (<-chan Event, func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	c.log.Debug("Added listener")
	channel := make(chan Event, eventBufferSize)
	c.listeners[channel] = struct{}{}

	return channel, func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()

		c.log.Debug("Removed listener")
		delete(c.listeners, channel)
	}
}

func (c *Cluster) broadcast(event Event) {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()

	for channel := range c.listeners {
		select {
		case channel <- event:
		default:
			c.log.Debug("Listener queue full, dropping event")
		}
	}
}
