package cluster

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/gammadia/quartermaster/resource"
)

const InventoryVersion = "1"

// Inventory is the on-disk description of a cluster's worker nodes.
type Inventory struct {
	Version string
	// Rack is the default rack for nodes that do not name one.
	Rack  string
	Nodes []InventoryNode
}

type InventoryNode struct {
	Name     string
	Hostname string
	Rack     string
	HTTP     string
	Capacity resource.Vector
}

var nodeNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.-]*(:[0-9]+)?$`)
var rackNameRegex = regexp.MustCompile(`^/[a-zA-Z0-9/_-]+$`)

func (inventory Inventory) Validate() error {
	if inventory.Version != InventoryVersion {
		return fmt.Errorf("unsupported version '%s'", inventory.Version)
	}

	if inventory.Rack != "" && !rackNameRegex.MatchString(inventory.Rack) {
		return fmt.Errorf("rack must be a /-prefixed path")
	}

	if len(inventory.Nodes) < 1 {
		return fmt.Errorf("at least one node is required")
	}

	for i, node := range inventory.Nodes {
		if !nodeNameRegex.MatchString(node.Name) {
			return fmt.Errorf("nodes[%d].name must be a valid 'host' or 'host:port'", i)
		}
		if node.Rack != "" && !rackNameRegex.MatchString(node.Rack) {
			return fmt.Errorf("nodes[%d].rack must be a /-prefixed path", i)
		}
		if node.Capacity.IsZero() {
			return fmt.Errorf("nodes[%d].capacity is required", i)
		}
		if !node.Capacity.IsValid() {
			return fmt.Errorf("nodes[%d].capacity must not be negative", i)
		}
	}

	duplicates := lo.FindDuplicatesBy(inventory.Nodes, func(node InventoryNode) string { return node.Name })
	if len(duplicates) > 0 {
		return fmt.Errorf("nodes must have unique names, '%s' appears more than once", duplicates[0].Name)
	}

	return nil
}

// ReadInventory loads and validates an inventory file, returning one
// node descriptor per entry with the inventory defaults applied.
// The file runs through a template before unmarshalling, so node names
// and capacities can derive from the environment.
func ReadInventory(file string) ([]StaticNode, error) {
	buf, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	source, err := evaluateTemplate(string(buf))
	if err != nil {
		return nil, fmt.Errorf("evaluate template: %w", err)
	}

	var inventory Inventory
	if err = yaml.Unmarshal([]byte(source), &inventory); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if err = inventory.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	nodes := make([]StaticNode, 0, len(inventory.Nodes))
	for _, entry := range inventory.Nodes {
		node, err := NewStaticNode(StaticNodeConfig{
			Name:        NodeName(entry.Name),
			Hostname:    entry.Hostname,
			Rack:        lo.Ternary(entry.Rack != "", entry.Rack, inventory.Rack),
			HTTPAddress: entry.HTTP,
			Capacity:    entry.Capacity,
		})
		if err != nil {
			return nil, fmt.Errorf("nodes[%s]: %w", entry.Name, err)
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}

type templateData struct {
	Env map[string]string
}

func evaluateTemplate(source string) (string, error) {
	tmpl, err := template.New("inventory").Funcs(sprig.TxtFuncMap()).Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	data := templateData{
		Env: lo.SliceToMap(os.Environ(), func(env string) (key, val string) { key, val, _ = strings.Cut(env, "="); return }),
	}

	var output strings.Builder
	if err := tmpl.Execute(&output, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return output.String(), nil
}
