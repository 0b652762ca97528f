package ledger

import (
	"github.com/gammadia/quartermaster/cluster"
	"github.com/gammadia/quartermaster/resource"
)

type Event interface{}

// Nodes

type EventNodeAdded struct {
	Node     cluster.NodeName
	Capacity resource.Vector
}

type EventNodeRemoved struct {
	Node cluster.NodeName
}

// Containers

type EventContainerAllocated struct {
	Node      cluster.NodeName
	Container cluster.ContainerID
	Resources resource.Vector
}

type EventContainerReleased struct {
	Node      cluster.NodeName
	Container cluster.ContainerID
	Resources resource.Vector
}

// Reservations

type EventContainerReserved struct {
	Node      cluster.NodeName
	Container cluster.ContainerID
	Attempt   cluster.AttemptID
}

type EventContainerUnreserved struct {
	Node    cluster.NodeName
	Attempt cluster.AttemptID
}
