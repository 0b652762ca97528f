package cluster

import "fmt"

// AnyHost is the locality wildcard used by placement requests that do
// not target a specific node.
const AnyHost = "*"

// NodeName identifies a worker node as "host:port".
type NodeName string

func (n NodeName) String() string {
	return string(n)
}

// ApplicationID identifies one application submitted to the cluster:
// the cluster epoch (start time in unix milliseconds) plus a sequence
// number handed out in submission order.
type ApplicationID struct {
	Epoch    int64
	Sequence int32
}

func (id ApplicationID) String() string {
	return fmt.Sprintf("application_%d_%04d", id.Epoch, id.Sequence)
}

// Compare orders applications by epoch, then sequence.
func (id ApplicationID) Compare(o ApplicationID) int {
	switch {
	case id.Epoch != o.Epoch:
		if id.Epoch < o.Epoch {
			return -1
		}
		return 1
	case id.Sequence != o.Sequence:
		if id.Sequence < o.Sequence {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// AttemptID identifies one attempt at running an application. It is
// the owning identity recorded on containers and reservations, and the
// identity reservation conflict checks compare.
type AttemptID struct {
	App     ApplicationID
	Attempt int32
}

func (id AttemptID) String() string {
	return fmt.Sprintf("appattempt_%d_%04d_%06d", id.App.Epoch, id.App.Sequence, id.Attempt)
}

func (id AttemptID) Compare(o AttemptID) int {
	if c := id.App.Compare(o.App); c != 0 {
		return c
	}
	switch {
	case id.Attempt < o.Attempt:
		return -1
	case id.Attempt > o.Attempt:
		return 1
	default:
		return 0
	}
}

// ContainerID identifies one container: the attempt that owns it plus
// a per-attempt sequence number. Natural order (application, attempt,
// then sequence) is the deterministic enumeration order of a node's
// running containers.
type ContainerID struct {
	Attempt  AttemptID
	Sequence int32
}

func (id ContainerID) String() string {
	return fmt.Sprintf("container_%d_%04d_%02d_%06d",
		id.Attempt.App.Epoch, id.Attempt.App.Sequence, id.Attempt.Attempt, id.Sequence)
}

func (id ContainerID) Compare(o ContainerID) int {
	if c := id.Attempt.Compare(o.Attempt); c != 0 {
		return c
	}
	switch {
	case id.Sequence < o.Sequence:
		return -1
	case id.Sequence > o.Sequence:
		return 1
	default:
		return 0
	}
}

// Less reports whether id sorts before o in natural order.
func (id ContainerID) Less(o ContainerID) bool {
	return id.Compare(o) < 0
}
