package launch

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var defaultCatalogue []byte

// Instance describes an EC2 instance type
type Instance struct {
	Price float64 `yaml:"price"`
	VCPU  int     `yaml:"vCPU"`
}

// NParallel returns the number of parallel workers run on the instance,
// one per two virtual CPUs
func (i Instance) NParallel() int {
	if n := i.VCPU / 2; n > 0 {
		return n
	}
	return 1
}

// KubeCPU returns the number of CPUs requested for a pod scheduled on
// the instance
func (i Instance) KubeCPU() int {
	return int(float64(i.VCPU) * 0.75)
}

// Subnet describes an EC2 subnet
type Subnet struct {
	SubnetID string   `yaml:"SubnetID"`
	Groups   []string `yaml:"Groups"`
}

// Catalogue holds the instance types and subnets jobs can be submitted
// to
type Catalogue struct {
	Instances map[string]Instance `yaml:"instances"`
	Subnets   map[string]Subnet   `yaml:"subnets"`
}

// DefaultCatalogue returns the catalogue compiled into the binary
func DefaultCatalogue() (Catalogue, error) {
	return parseCatalogue(defaultCatalogue)
}

// LoadCatalogue reads a catalogue from a YAML file
func LoadCatalogue(path string) (Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalogue{}, fmt.Errorf("loadCatalogue: %w", err)
	}
	return parseCatalogue(data)
}

func parseCatalogue(data []byte) (Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalogue{}, fmt.Errorf("parseCatalogue: %w", err)
	}
	return c, nil
}

// Instance returns the instance type named name
func (c Catalogue) Instance(name string) (Instance, error) {
	i, ok := c.Instances[name]
	if !ok {
		return Instance{}, fmt.Errorf("instance: unknown instance type %q",
			name)
	}
	return i, nil
}

// Subnet returns the subnet named name
func (c Catalogue) Subnet(name string) (Subnet, error) {
	s, ok := c.Subnets[name]
	if !ok {
		return Subnet{}, fmt.Errorf("subnet: unknown subnet %q", name)
	}
	return s, nil
}
