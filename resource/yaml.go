package resource

import (
	units "github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// vectorDoc is the on-disk form of a Vector, as found in inventory
// files: human-readable quantities rather than raw integers.
type vectorDoc struct {
	Memory string
	Cores  string
}

func (v *Vector) UnmarshalYAML(node *yaml.Node) error {
	var doc vectorDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}

	memory, err := ParseMemory(doc.Memory)
	if err != nil {
		return err
	}
	cores, err := ParseCores(doc.Cores)
	if err != nil {
		return err
	}

	v.Memory, v.Cores = memory, cores
	return nil
}

func (v Vector) MarshalYAML() (any, error) {
	return vectorDoc{
		Memory: units.BytesSize(float64(v.Memory)),
		Cores:  FormatCores(v.Cores),
	}, nil
}
