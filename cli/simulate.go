package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gammadia/quartermaster/cli/ui"
	"github.com/gammadia/quartermaster/cluster"
	"github.com/gammadia/quartermaster/ledger"
	"github.com/gammadia/quartermaster/namegen"
	"github.com/gammadia/quartermaster/resource"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a synthetic scheduling workload against an in-memory cluster",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		seed := lo.Must(cmd.Flags().GetInt64("seed"))
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		var descriptors []cluster.StaticNode
		var err error
		if inventoryFile := lo.Must(cmd.Flags().GetString("inventory")); inventoryFile != "" {
			if descriptors, err = cluster.ReadInventory(inventoryFile); err != nil {
				return fmt.Errorf("invalid inventory '%s': %w", inventoryFile, err)
			}
		} else if descriptors, err = syntheticNodes(cmd.Flags()); err != nil {
			return err
		}

		top := lo.Must(cmd.Flags().GetBool("top"))
		logger := log
		if top {
			// The dashboard owns the terminal
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}

		c := ledger.NewCluster(ledger.Config{Logger: logger})
		for _, descriptor := range descriptors {
			if _, err := c.AddNode(descriptor); err != nil {
				return err
			}
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if duration := lo.Must(cmd.Flags().GetDuration("duration")); duration > 0 {
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}

		if address := lo.Must(cmd.Flags().GetString("metrics-listen")); address != "" {
			registry := prometheus.NewRegistry()
			metrics := ledger.NewMetrics(registry)

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			server := &http.Server{Addr: address, Handler: mux}
			defer server.Close()

			go func() {
				logger.Info("Metrics listening", "address", address)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("Metrics server failed", "error", err)
				}
			}()
			go func() {
				ticker := time.NewTicker(2 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						metrics.Observe(c)
					}
				}
			}()
		}

		sim := newSimulation(c, logger, simulationOptions{
			Apps:       lo.Must(cmd.Flags().GetInt("apps")),
			Containers: lo.Must(cmd.Flags().GetInt("containers")),
			Producers:  lo.Must(cmd.Flags().GetInt("workers")),
			Seed:       seed,
		})

		logger.Info("Simulation starting",
			"cluster", c.Name(), "nodes", c.Size(), "capacity", c.TotalCapacity(),
			"apps", len(sim.apps), "containers", sim.opts.Containers, "seed", seed)

		if top {
			done := make(chan struct{})
			go func() {
				defer close(done)
				sim.run(ctx)
			}()
			if err := runDashboard(cancel, sim, done); err != nil {
				return err
			}
			<-done
		} else {
			sim.run(ctx)
		}

		return sim.report(cmd)
	},
}

func init() {
	simulateCmd.Flags().String("inventory", "", "inventory file describing the cluster (defaults to a synthetic cluster)")
	simulateCmd.Flags().Int("nodes", 4, "number of synthetic nodes (ignored with --inventory)")
	simulateCmd.Flags().String("node-memory", "16GiB", "memory capacity of each synthetic node")
	simulateCmd.Flags().String("node-cores", "8", "core capacity of each synthetic node")
	simulateCmd.Flags().Int("apps", 8, "number of simulated applications")
	simulateCmd.Flags().Int("containers", 200, "total number of containers to schedule")
	simulateCmd.Flags().Int("workers", 4, "number of concurrent workload producers")
	simulateCmd.Flags().Int64("seed", 0, "workload random seed (0 picks one)")
	simulateCmd.Flags().Duration("duration", 0, "stop the simulation after this much time (0 runs to completion)")
	simulateCmd.Flags().String("metrics-listen", "", "expose prometheus metrics on this address (e.g. ':9090')")
	simulateCmd.Flags().Bool("top", false, "show a live dashboard instead of logs")
}

// syntheticNodes builds node descriptors from the synthetic cluster flags.
func syntheticNodes(flags *flag.FlagSet) ([]cluster.StaticNode, error) {
	memory, err := resource.ParseMemory(lo.Must(flags.GetString("node-memory")))
	if err != nil {
		return nil, fmt.Errorf("invalid node memory: %w", err)
	}
	cores, err := resource.ParseCores(lo.Must(flags.GetString("node-cores")))
	if err != nil {
		return nil, fmt.Errorf("invalid node cores: %w", err)
	}

	var nodes []cluster.StaticNode
	for i := 0; i < lo.Must(flags.GetInt("nodes")); i++ {
		node, err := cluster.NewStaticNode(cluster.StaticNodeConfig{
			Name:     cluster.NodeName(fmt.Sprintf("node-%02d:8041", i+1)),
			Capacity: resource.New(memory, cores),
		})
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

type simulationOptions struct {
	Apps       int
	Containers int
	Producers  int
	Seed       int64
}

type simApp struct {
	name    namegen.ID
	attempt cluster.AttemptID
	next    int32 // container sequence, owned by the producer loop
	placed  int   // owned by the arbiter loop
}

// A simRequest is one container the workload wants placed. The sequence is
// minted by the producer so the container keeps its identity across retries.
type simRequest struct {
	app       *simApp
	sequence  int32
	priority  int32
	resources resource.Vector
	hold      time.Duration
}

type pendingRequest struct {
	req       simRequest
	node      *ledger.Node       // nil when parked without a reservation
	container *cluster.Container // minted when the reservation was taken
}

type simulation struct {
	cluster *ledger.Cluster
	log     *slog.Logger
	opts    simulationOptions

	apps         []*simApp
	maxFootprint resource.Vector
	started      time.Time

	requests chan simRequest
	releases chan cluster.NodeName
	pending  []pendingRequest

	elapsed      time.Duration
	placed       int
	released     int
	reservations int
	conflicts    int

	memorySamples []float64
	coreSamples   []float64
}

func newSimulation(c *ledger.Cluster, logger *slog.Logger, opts simulationOptions) *simulation {
	opts.Apps = max(opts.Apps, 1)
	opts.Producers = min(max(opts.Producers, 1), opts.Apps)
	opts.Containers = max(opts.Containers, 0)

	s := &simulation{
		cluster:  c,
		log:      logger.With("component", "simulate"),
		opts:     opts,
		started:  time.Now(),
		requests: make(chan simRequest),
		releases: make(chan cluster.NodeName, opts.Containers),
	}

	epoch := time.Now().UnixMilli()
	for i := 0; i < opts.Apps; i++ {
		s.apps = append(s.apps, &simApp{
			name: namegen.Prefixed("app"),
			attempt: cluster.AttemptID{
				App:     cluster.ApplicationID{Epoch: epoch, Sequence: int32(i + 1)},
				Attempt: 1,
			},
		})
	}

	for _, node := range c.Nodes() {
		capacity := node.Capacity()
		s.maxFootprint.Memory = max(s.maxFootprint.Memory, capacity.Memory/2)
		s.maxFootprint.Cores = max(s.maxFootprint.Cores, capacity.Cores/2)
	}

	return s
}

func (s *simulation) run(ctx context.Context) {
	events, unsubscribe := s.cluster.Subscribe()
	stop, sampled := make(chan struct{}), make(chan struct{})
	go s.sample(events, stop, sampled)

	var producers sync.WaitGroup
	for w := 0; w < s.opts.Producers; w++ {
		producers.Add(1)
		go s.produce(ctx, w, &producers)
	}
	go func() {
		producers.Wait()
		close(s.requests)
	}()

	s.arbitrate(ctx)
	s.elapsed = time.Since(s.started)

	unsubscribe()
	close(stop)
	<-sampled
}

// produce mints this producer's share of container requests and feeds them
// to the arbiter, pacing arrivals with a small jitter.
func (s *simulation) produce(ctx context.Context, w int, wg *sync.WaitGroup) {
	defer wg.Done()

	src := exprand.NewSource(uint64(s.opts.Seed) + uint64(w))
	rng := exprand.New(src)
	// Beta(2, 2) concentrates footprints around half of the maximum
	footprint := distuv.Beta{Alpha: 2, Beta: 2, Src: src}

	var owned []*simApp
	for i := w; i < len(s.apps); i += s.opts.Producers {
		owned = append(owned, s.apps[i])
	}

	count := s.opts.Containers / s.opts.Producers
	if w < s.opts.Containers%s.opts.Producers {
		count++
	}

	for i := 0; i < count; i++ {
		app := owned[rng.Intn(len(owned))]
		app.next++

		req := simRequest{
			app:      app,
			sequence: app.next,
			priority: int32(rng.Intn(10)),
			resources: resource.New(
				max(int64(footprint.Rand()*float64(s.maxFootprint.Memory)), 256<<20),
				max(int64(footprint.Rand()*float64(s.maxFootprint.Cores)), 250),
			),
			hold: time.Duration(100+rng.Intn(300)) * time.Millisecond,
		}

		select {
		case s.requests <- req:
		case <-ctx.Done():
			return
		}

		select {
		case <-time.After(time.Duration(rng.Intn(20)) * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}
}

// arbitrate is the placement loop. It owns all allocation, reservation, and
// retry decisions; only the release timers touch the ledger concurrently.
func (s *simulation) arbitrate(ctx context.Context) {
	requests := s.requests
	interrupt := ctx.Done()
	draining := false

	for {
		if draining && s.released == s.placed {
			return
		}
		if requests == nil && len(s.pending) == 0 && s.released == s.placed {
			return
		}

		select {
		case req, ok := <-requests:
			if !ok {
				requests = nil
				continue
			}
			if draining {
				continue
			}
			s.place(req)

		case <-s.releases:
			s.released++
			s.retry()

		case <-interrupt:
			interrupt = nil
			draining = true
			s.log.Info("Interrupted, draining running containers", "running", s.placed-s.released)
			for _, p := range s.pending {
				if p.node != nil {
					if err := p.node.Unreserve(p.req.app.attempt); err != nil {
						s.log.Error("Failed to clear reservation", "error", err)
					}
				}
			}
			s.pending = nil
		}
	}
}

// place runs one first-fit pass for a request, falling back to a reservation
// on the least loaded node able to run it.
func (s *simulation) place(req simRequest) {
	nodes := s.cluster.Nodes()

	for _, node := range nodes {
		if node.Reservation() == nil && node.AvailableResource().Fits(req.resources) {
			s.start(node, s.mint(req, node), req)
			return
		}
	}

	var target *ledger.Node
	for _, node := range nodes {
		if !node.Capacity().Fits(req.resources) {
			continue
		}
		if target == nil || node.AvailableResource().Memory > target.AvailableResource().Memory {
			target = node
		}
	}
	if target == nil {
		// No amount of waiting makes this one schedulable
		s.log.Warn("No node can fit container, dropping request", "app", req.app.name, "resources", req.resources)
		return
	}

	container := s.mint(req, target)
	if err := target.Reserve(req.app.attempt, req.priority, container); err != nil {
		s.conflicts++
		s.log.Debug("Reservation rejected", "container", container, "error", err)
		s.pending = append(s.pending, pendingRequest{req: req})
		return
	}
	s.reservations++
	s.pending = append(s.pending, pendingRequest{req: req, node: target, container: container})
}

// retry revisits every parked request after a release freed capacity.
func (s *simulation) retry() {
	pending := s.pending
	s.pending = nil

	for _, p := range pending {
		switch {
		case p.node == nil:
			s.place(p.req)
		case p.node.AvailableResource().Fits(p.req.resources):
			if err := p.node.Unreserve(p.req.app.attempt); err != nil {
				s.log.Error("Failed to clear reservation", "error", err)
			}
			s.start(p.node, p.container, p.req)
		default:
			s.pending = append(s.pending, p)
		}
	}
}

func (s *simulation) start(node *ledger.Node, container *cluster.Container, req simRequest) {
	node.Allocate(container)
	s.placed++
	req.app.placed++

	time.AfterFunc(req.hold, func() {
		node.Release(container)
		s.releases <- container.Node
	})
}

func (s *simulation) mint(req simRequest, node *ledger.Node) *cluster.Container {
	return &cluster.Container{
		ID:        cluster.ContainerID{Attempt: req.app.attempt, Sequence: req.sequence},
		Node:      node.Name(),
		Resources: req.resources,
		Priority:  req.priority,
	}
}

// sample records cluster utilization on every allocation and release.
func (s *simulation) sample(events <-chan ledger.Event, stop, sampled chan struct{}) {
	defer close(sampled)

	observe := func(event ledger.Event) {
		switch event.(type) {
		case ledger.EventContainerAllocated, ledger.EventContainerReleased:
			capacity := s.cluster.TotalCapacity()
			used := s.cluster.TotalUsed()
			s.memorySamples = append(s.memorySamples, float64(used.Memory)/float64(capacity.Memory))
			s.coreSamples = append(s.coreSamples, float64(used.Cores)/float64(capacity.Cores))
		}
	}

	for {
		select {
		case event := <-events:
			observe(event)
		case <-stop:
			for {
				select {
				case event := <-events:
					observe(event)
				default:
					return
				}
			}
		}
	}
}

func (s *simulation) report(cmd *cobra.Command) error {
	cmd.Println()
	cmd.Println(ui.SectionHeaderColor.Sprint("  Simulation  "))
	cmd.Printf("  Cluster:       %s, %d nodes, %s\n", s.cluster.Name(), s.cluster.Size(), s.cluster.TotalCapacity())
	cmd.Printf("  Elapsed:       %s\n", s.elapsed.Truncate(time.Millisecond))
	cmd.Printf("  Containers:    %d placed, %d released\n", s.placed, s.released)
	cmd.Printf("  Reservations:  %d taken, %d rejected\n", s.reservations, s.conflicts)
	if len(s.memorySamples) > 1 {
		cmd.Printf("  Memory usage:  mean %.0f%%, stddev %.0f%%, peak %.0f%%\n",
			100*stat.Mean(s.memorySamples, nil), 100*stat.StdDev(s.memorySamples, nil), 100*floats.Max(s.memorySamples))
		cmd.Printf("  Cores usage:   mean %.0f%%, stddev %.0f%%, peak %.0f%%\n",
			100*stat.Mean(s.coreSamples, nil), 100*stat.StdDev(s.coreSamples, nil), 100*floats.Max(s.coreSamples))
	}

	cmd.Println()
	cmd.Println(ui.SectionHeaderColor.Sprint("  Applications  "))
	for _, app := range s.apps {
		cmd.Printf("  %s  %s  %d containers\n", app.attempt.App, color.HiCyanString("%-24s", app.name), app.placed)
	}

	cmd.Println()
	for _, node := range s.cluster.Nodes() {
		usage := node.Usage()
		if usage.Available.Add(usage.Used) != node.Capacity() {
			cmd.PrintErrln(color.HiRedString("Ledger for node %s does not balance: %s available, %s used, %s capacity",
				node.Name(), usage.Available, usage.Used, node.Capacity()))
			return fmt.Errorf("ledger out of balance")
		}
	}
	cmd.PrintErrln(color.HiGreenString("All node ledgers balance (available + used == capacity)"))
	return nil
}
