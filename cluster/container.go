package cluster

import "github.com/gammadia/quartermaster/resource"

// Container is one resource lease granted (or asked for) on a node.
// Containers are minted by the scheduler and never mutated afterwards,
// so they are safe to share across goroutines.
type Container struct {
	ID        ContainerID
	Node      NodeName // target node, or AnyHost for unplaced requests
	Resources resource.Vector
	Priority  int32
}

// Attempt returns the application attempt that owns the container.
func (c *Container) Attempt() AttemptID {
	return c.ID.Attempt
}

func (c *Container) String() string {
	return c.ID.String()
}
