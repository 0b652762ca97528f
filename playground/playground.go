package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/samber/lo"

	"github.com/gammadia/quartermaster/cluster"
	"github.com/gammadia/quartermaster/ledger"
	"github.com/gammadia/quartermaster/resource"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := ledger.NewCluster(ledger.Config{Logger: logger})
	events, unsubscribe := c.Subscribe()

	var nodes []*ledger.Node
	for i, capacity := range []resource.Vector{
		resource.New(8<<30, 8000),
		resource.New(16<<30, 4000),
	} {
		descriptor := lo.Must(cluster.NewStaticNode(cluster.StaticNodeConfig{
			Name:     cluster.NodeName(fmt.Sprintf("node-%d:8041", i+1)),
			Capacity: capacity,
		}))
		nodes = append(nodes, lo.Must(c.AddNode(descriptor)))
	}

	epoch := time.Now().UnixMilli()
	frontend := cluster.AttemptID{App: cluster.ApplicationID{Epoch: epoch, Sequence: 1}, Attempt: 1}
	batch := cluster.AttemptID{App: cluster.ApplicationID{Epoch: epoch, Sequence: 2}, Attempt: 1}

	web := &cluster.Container{
		ID:        cluster.ContainerID{Attempt: frontend, Sequence: 1},
		Node:      nodes[0].Name(),
		Resources: resource.New(2<<30, 2000),
		Priority:  5,
	}
	worker := &cluster.Container{
		ID:        cluster.ContainerID{Attempt: frontend, Sequence: 2},
		Node:      nodes[0].Name(),
		Resources: resource.New(3<<30, 1000),
		Priority:  5,
	}

	nodes[0].Allocate(web)
	nodes[0].Allocate(worker)
	fmt.Println(nodes[0])

	// Too big for what's left of node-1, park it in a reservation
	crunch := &cluster.Container{
		ID:        cluster.ContainerID{Attempt: batch, Sequence: 1},
		Node:      nodes[0].Name(),
		Resources: resource.New(6<<30, 6000),
		Priority:  1,
	}
	lo.Must0(nodes[0].Reserve(batch, 1, crunch))

	// A competing application loses the arbitration
	err := nodes[0].Reserve(frontend, 5, &cluster.Container{
		ID:        cluster.ContainerID{Attempt: frontend, Sequence: 3},
		Node:      nodes[0].Name(),
		Resources: resource.New(4<<30, 2000),
		Priority:  5,
	})
	if ledger.IsStateError(err) {
		fmt.Println("rejected:", err)
	}

	// Releasing a container the node never saw is absorbed with a log line
	nodes[1].Release(web)

	// Enough capacity freed, promote the reservation
	nodes[0].Release(web)
	nodes[0].Release(worker)
	lo.Must0(nodes[0].Unreserve(batch))
	nodes[0].Allocate(crunch)
	fmt.Println(nodes[0])

	nodes[0].Release(crunch)
	fmt.Println("available:", c.TotalAvailable(), "used:", c.TotalUsed())

	// Replay the event journal
	unsubscribe()
	fmt.Println()
	for len(events) > 0 {
		fmt.Printf("%#v\n", <-events)
	}
}
