package cluster

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/gammadia/quartermaster/resource"
)

// Probe builds a descriptor for the local machine, with capacity
// detected from the host: total physical memory, and one thousand
// milli-cores per logical CPU.
func Probe(port int) (StaticNode, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return StaticNode{}, fmt.Errorf("hostname: %w", err)
	}

	cores, err := cpu.Counts(true)
	if err != nil {
		return StaticNode{}, fmt.Errorf("count cpus: %w", err)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return StaticNode{}, fmt.Errorf("read memory: %w", err)
	}

	return NewStaticNode(StaticNodeConfig{
		Name:     NodeName(fmt.Sprintf("%s:%d", hostname, port)),
		Capacity: resource.New(int64(vm.Total), int64(cores)*1000),
	})
}
