package mockapi

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/gateway/memory"
)

// Seed is the fixture loaded into the sandbox at startup.
type Seed struct {
	Technicians []SeedTechnician        `yaml:"technicians"`
	Customers   []customers.CreateInput `yaml:"customers"`
}

// SeedTechnician is a technician entry of a seed file.
type SeedTechnician struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &seed, nil
}

// ParseTechnicians reads "id:name,id:name" pairs. A bare name gets a generated id.
func ParseTechnicians(raw string) []SeedTechnician {
	var out []SeedTechnician
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, name, ok := strings.Cut(part, ":")
		if !ok {
			out = append(out, SeedTechnician{Name: part})
			continue
		}
		out = append(out, SeedTechnician{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)})
	}
	return out
}

// Apply loads the seed into backend.
func (s *Seed) Apply(ctx context.Context, backend *memory.Backend) error {
	if s == nil {
		return nil
	}
	for _, t := range s.Technicians {
		backend.AddTechnician(t.ID, t.Name)
	}
	for i, c := range s.Customers {
		if _, err := backend.CreateCustomer(ctx, c); err != nil {
			return fmt.Errorf("seed customer %d: %w", i, err)
		}
	}
	return nil
}
