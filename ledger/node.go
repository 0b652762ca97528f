package ledger

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/btree"

	"github.com/gammadia/quartermaster/cluster"
	"github.com/gammadia/quartermaster/resource"
)

type Config struct {
	// Logger receives accounting diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Node is the resource ledger of one worker node. It accounts for the
// capacity consumed by running containers and arbitrates the node's
// single reservation slot.
//
// All methods are safe for concurrent use. The whole mutable state is
// guarded by one lock, so every mutation and every snapshot read is
// atomic with respect to the others. Nodes are independent: no
// operation ever locks more than one node.
type Node struct {
	desc cluster.Node
	log  *slog.Logger

	mu          sync.Mutex
	available   resource.Vector
	used        resource.Vector
	running     *btree.BTreeG[*cluster.Container]
	reservation *Reservation

	// emit forwards events to the owning cluster, nil for a standalone node.
	emit func(Event)
}

// Reservation is a provisional hold on the node's future capacity for
// one application attempt.
type Reservation struct {
	Owner     cluster.AttemptID
	Priority  int32
	Container *cluster.Container
}

// Node delegates identity accessors to its descriptor
var _ cluster.Node = (*Node)(nil)

// NewNode creates the ledger for a node, seeded empty: the node's full
// capacity available and nothing running.
func NewNode(desc cluster.Node, config Config) *Node {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Node{
		desc: desc,
		log:  logger.With("node", desc.Name()),

		available: desc.Capacity(),
		used:      resource.Zero,
		running: btree.NewG(16, func(a, b *cluster.Container) bool {
			return a.ID.Less(b.ID)
		}),
	}
}

// Allocate charges a container's footprint to the node: the resources
// move from available to used, and the container joins the running
// set. A container that is nil, carries a negative footprint or is
// already tracked leaves the ledger untouched: the problem is reported
// and absorbed.
func (n *Node) Allocate(container *cluster.Container) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if container == nil {
		n.log.Error("Invalid allocation of nil container")
		return
	}
	if !container.Resources.IsValid() {
		n.log.Error("Invalid allocation of negative resources", "container", container)
		return
	}
	if n.running.Has(container) {
		n.log.Error("Container is already allocated", "container", container)
		return
	}

	n.available = n.available.Sub(container.Resources)
	n.used = n.used.Add(container.Resources)
	n.running.ReplaceOrInsert(container)

	n.log.Info("Assigned container", "container", container, "capacity", container.Resources,
		"containers", n.running.Len(), "used", n.used, "available", n.available)
	n.notify(EventContainerAllocated{Node: n.desc.Name(), Container: container.ID, Resources: container.Resources})
}

// Release returns a finished container's footprint to the node,
// reversing its allocation exactly. Only containers currently tracked
// are honored: releasing an unknown or already released one is
// reported and ignored.
func (n *Node) Release(container *cluster.Container) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if container == nil {
		n.log.Error("Invalid release of nil container")
		return
	}

	tracked, found := n.running.Delete(container)
	if !found {
		n.log.Error("Invalid container released", "container", container)
		return
	}

	n.available = n.available.Add(tracked.Resources)
	n.used = n.used.Sub(tracked.Resources)

	n.log.Info("Released container", "container", tracked, "capacity", tracked.Resources,
		"containers", n.running.Len(), "used", n.used, "available", n.available)
	n.notify(EventContainerReleased{Node: n.desc.Name(), Container: tracked.ID, Resources: tracked.Resources})
}

// Reserve places, or updates, the node's single reservation on behalf
// of an application attempt. A free node accepts any reservation. A
// node already reserved only accepts an update from the attempt that
// holds it, for a container targeting this node; anything else is a
// protocol violation returned as a *StateError, and the held
// reservation stands.
func (n *Node) Reserve(attempt cluster.AttemptID, priority int32, container *cluster.Container) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if container == nil {
		n.log.Error("Invalid reservation of nil container", "attempt", attempt)
		return nil
	}

	if n.reservation != nil {
		if container.Node != n.desc.Name() {
			return &StateError{
				Node:      n.desc.Name(),
				Op:        "reserve",
				Reason:    ReasonWrongNode,
				Container: container.ID,
				Target:    container.Node,
			}
		}
		if attempt != n.reservation.Owner {
			return &StateError{
				Node:      n.desc.Name(),
				Op:        "reserve",
				Reason:    ReasonReservationConflict,
				Container: container.ID,
				Requested: attempt,
				Held:      n.reservation.Owner,
			}
		}
	}

	n.reservation = &Reservation{Owner: attempt, Priority: priority, Container: container}

	n.log.Info("Reserved container", "container", container, "attempt", attempt, "priority", priority)
	n.notify(EventContainerReserved{Node: n.desc.Name(), Container: container.ID, Attempt: attempt})
	return nil
}

// Unreserve clears the reservation on behalf of the attempt holding
// it. Clearing a node that holds no reservation is reported and
// ignored; clearing another attempt's reservation is a protocol
// violation returned as a *StateError.
func (n *Node) Unreserve(attempt cluster.AttemptID) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.reservation == nil {
		n.log.Warn("No reservation to clear", "attempt", attempt)
		return nil
	}
	if attempt != n.reservation.Owner {
		return &StateError{
			Node:      n.desc.Name(),
			Op:        "unreserve",
			Reason:    ReasonNotOwner,
			Requested: attempt,
			Held:      n.reservation.Owner,
		}
	}

	container := n.reservation.Container
	n.reservation = nil

	n.log.Info("Unreserved container", "container", container, "attempt", attempt)
	n.notify(EventContainerUnreserved{Node: n.desc.Name(), Attempt: attempt})
	return nil
}

// AvailableResource returns a snapshot of the capacity still free.
func (n *Node) AvailableResource() resource.Vector {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.available
}

// UsedResource returns a snapshot of the capacity currently consumed.
func (n *Node) UsedResource() resource.Vector {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.used
}

// NumContainers returns how many containers are running on the node.
func (n *Node) NumContainers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running.Len()
}

// RunningContainers returns the running containers in container id
// order. The slice is the caller's own copy.
func (n *Node) RunningContainers() []*cluster.Container {
	n.mu.Lock()
	defer n.mu.Unlock()

	containers := make([]*cluster.Container, 0, n.running.Len())
	n.running.Ascend(func(container *cluster.Container) bool {
		containers = append(containers, container)
		return true
	})
	return containers
}

// ReservedContainer returns the container currently reserved on the
// node, or nil when the node holds no reservation.
func (n *Node) ReservedContainer() *cluster.Container {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.reservation == nil {
		return nil
	}
	return n.reservation.Container
}

// Reservation returns a copy of the current reservation, or nil when
// the node holds none.
func (n *Node) Reservation() *Reservation {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.reservation == nil {
		return nil
	}
	reservation := *n.reservation
	return &reservation
}

// Usage is a consistent point-in-time view of a node's accounting.
type Usage struct {
	Available  resource.Vector
	Used       resource.Vector
	Containers int
	Reserved   *cluster.Container
}

// Usage reads available, used, the running count and the reservation
// in one critical section, so the fields are consistent with each
// other.
func (n *Node) Usage() Usage {
	n.mu.Lock()
	defer n.mu.Unlock()

	usage := Usage{
		Available:  n.available,
		Used:       n.used,
		Containers: n.running.Len(),
	}
	if n.reservation != nil {
		usage.Reserved = n.reservation.Container
	}
	return usage
}

// Name returns the node's unique "host:port" identity.
func (n *Node) Name() cluster.NodeName {
	return n.desc.Name()
}

// Hostname returns the host part of the node's name.
func (n *Node) Hostname() string {
	return n.desc.Hostname()
}

// RackName returns the rack the node is mounted in.
func (n *Node) RackName() string {
	return n.desc.RackName()
}

// HTTPAddress returns the address of the node's status endpoint.
func (n *Node) HTTPAddress() string {
	return n.desc.HTTPAddress()
}

// Capacity returns the node's total capacity, fixed at creation.
func (n *Node) Capacity() resource.Vector {
	return n.desc.Capacity()
}

// Descriptor returns the underlying node descriptor.
func (n *Node) Descriptor() cluster.Node {
	return n.desc
}

func (n *Node) String() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fmt.Sprintf("host: %s #containers=%d available=%s used=%s",
		n.desc.Name(), n.running.Len(), n.available, n.used)
}

func (n *Node) notify(event Event) {
	if n.emit != nil {
		n.emit(event)
	}
}
