package ledger

import (
	"errors"
	"fmt"

	"github.com/gammadia/quartermaster/cluster"
)

// Reason classifies how an operation broke the reservation protocol.
type Reason string

const (
	// ReasonWrongNode flags a reservation for a container that targets
	// another node.
	ReasonWrongNode Reason = "wrong-node"
	// ReasonReservationConflict flags a reservation requested while
	// another application attempt holds the node.
	ReasonReservationConflict Reason = "reservation-conflict"
	// ReasonNotOwner flags an unreserve by an application attempt that
	// does not hold the reservation.
	ReasonNotOwner Reason = "not-owner"
)

// StateError reports a reservation protocol violation. It always
// indicates a bug in the calling scheduler, never a condition the node
// recovers from: the in-progress placement must be abandoned.
type StateError struct {
	Node   cluster.NodeName
	Op     string
	Reason Reason

	Container cluster.ContainerID
	Target    cluster.NodeName
	Requested cluster.AttemptID
	Held      cluster.AttemptID
}

func (e *StateError) Error() string {
	switch e.Reason {
	case ReasonWrongNode:
		return fmt.Sprintf("trying to reserve container %s on node %s when it targets node %s",
			e.Container, e.Node, e.Target)
	case ReasonReservationConflict:
		return fmt.Sprintf("trying to reserve container %s for %s on node %s already reserved by %s",
			e.Container, e.Requested, e.Node, e.Held)
	case ReasonNotOwner:
		return fmt.Sprintf("trying to unreserve node %s for %s when the reservation is held by %s",
			e.Node, e.Requested, e.Held)
	default:
		return fmt.Sprintf("invalid %s on node %s", e.Op, e.Node)
	}
}

// IsStateError reports whether err is a protocol violation, as opposed
// to an ordinary error.
func IsStateError(err error) bool {
	var stateError *StateError
	return errors.As(err, &stateError)
}
