package cluster

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gammadia/quartermaster/resource"
)

var inventoryTests = []struct {
	name     string
	source   string
	expected string
}{
	{
		"valid_minimalist",
		`
version: "1"
nodes:
  - name: worker-1:8041
    capacity: { memory: 8GiB, cores: 8 }
`,
		"",
	},
	{
		"valid_full_featured",
		`
version: "1"
rack: /rack-a
nodes:
  - name: worker-1:8041
    hostname: worker-1.internal
    rack: /rack-b
    http: worker-1.internal:8042
    capacity: { memory: 8GiB, cores: 8 }
  - name: worker-2:8041
    capacity: { memory: 16GiB, cores: 4.5 }
`,
		"",
	},

	{"invalid_missing_version", `nodes: [{ name: a, capacity: { memory: 1GiB, cores: 1 } }]`, "unsupported version ''"},
	{"invalid_version", `{ version: "42", nodes: [{ name: a, capacity: { memory: 1GiB, cores: 1 } }] }`, "unsupported version '42'"},
	{"invalid_no_nodes", `version: "1"`, "at least one node is required"},
	{
		"invalid_rack",
		`{ version: "1", rack: rack-a, nodes: [{ name: a, capacity: { memory: 1GiB, cores: 1 } }] }`,
		"rack must be a /-prefixed path",
	},
	{
		"invalid_node_name",
		`{ version: "1", nodes: [{ name: "worker 1", capacity: { memory: 1GiB, cores: 1 } }] }`,
		"nodes[0].name must be a valid 'host' or 'host:port'",
	},
	{
		"invalid_node_rack",
		`{ version: "1", nodes: [{ name: a, rack: b, capacity: { memory: 1GiB, cores: 1 } }] }`,
		"nodes[0].rack must be a /-prefixed path",
	},
	{
		"invalid_missing_capacity",
		`{ version: "1", nodes: [{ name: a }] }`,
		"nodes[0].capacity is required",
	},
	{
		"invalid_duplicate_names",
		`
version: "1"
nodes:
  - name: worker-1:8041
    capacity: { memory: 8GiB, cores: 8 }
  - name: worker-1:8041
    capacity: { memory: 8GiB, cores: 8 }
`,
		"nodes must have unique names, 'worker-1:8041' appears more than once",
	},
}

func TestInventoryValidate(t *testing.T) {
	for _, tt := range inventoryTests {
		t.Run(tt.name, func(t *testing.T) {
			var inventory Inventory
			if err := yaml.Unmarshal([]byte(tt.source), &inventory); err != nil {
				assert.Equal(t, tt.expected, err.Error())
				return
			}
			if err := inventory.Validate(); err != nil {
				assert.Equal(t, tt.expected, err.Error())
				return
			}

			assert.Equal(t, "", tt.expected)
		})
	}
}

func TestReadInventory(t *testing.T) {
	file := path.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
version: "1"
rack: /rack-a
nodes:
  - name: worker-1:8041
    capacity: { memory: 8GiB, cores: 8 }
  - name: worker-2:8041
    rack: /rack-b
    capacity: { memory: 16GiB, cores: 1500m }
`), 0o644))

	nodes, err := ReadInventory(file)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	assert.Equal(t, NodeName("worker-1:8041"), nodes[0].Name())
	assert.Equal(t, "worker-1", nodes[0].Hostname())
	assert.Equal(t, "/rack-a", nodes[0].RackName())
	assert.Equal(t, "worker-1:8042", nodes[0].HTTPAddress())
	assert.Equal(t, resource.New(8<<30, 8000), nodes[0].Capacity())

	assert.Equal(t, "/rack-b", nodes[1].RackName())
	assert.Equal(t, resource.New(16<<30, 1500), nodes[1].Capacity())
}

func TestReadInventoryTemplate(t *testing.T) {
	t.Setenv("QM_TEST_RACK", "/staging")
	t.Setenv("QM_TEST_MEMORY", "4GiB")

	file := path.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
version: "1"
rack: {{ env "QM_TEST_RACK" }}
nodes:
  - name: worker-1:8041
    capacity: { memory: {{ .Env.QM_TEST_MEMORY }}, cores: {{ env "QM_TEST_CORES" | default "2" }} }
`), 0o644))

	nodes, err := ReadInventory(file)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	assert.Equal(t, "/staging", nodes[0].RackName())
	assert.Equal(t, resource.New(4<<30, 2000), nodes[0].Capacity())
}

func TestReadInventoryBadTemplate(t *testing.T) {
	file := path.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`version: {{ bogus }}`), 0o644))

	_, err := ReadInventory(file)
	require.Error(t, err)
	assert.ErrorContains(t, err, "evaluate template")
}

func TestReadInventoryMissingFile(t *testing.T) {
	_, err := ReadInventory(path.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "read file")
}
