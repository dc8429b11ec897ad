package policy

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_policy.yaml
var defaultPolicy []byte

// File represents the structure of a policy YAML file
type File struct {
	Roles []RoleConfig `yaml:"roles"`
}

// RoleConfig represents a single role in the YAML file
type RoleConfig struct {
	Role           string   `yaml:"role"`
	Helper         string   `yaml:"helper"`
	Administrative bool     `yaml:"administrative"`
	Permissions    []string `yaml:"permissions"`
}

// LoadTable reads and parses a policy file
func LoadTable(filePath string) (*Table, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return ParseTable(data)
}

// ParseTable parses policy YAML into a validated Table
func ParseTable(data []byte) (*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	entries := make([]Entry, 0, len(f.Roles))
	for _, rc := range f.Roles {
		entries = append(entries, Entry{
			Role:           Role(rc.Role),
			Helper:         HelperID(rc.Helper),
			Administrative: rc.Administrative,
			Permissions:    rc.Permissions,
		})
	}

	t, err := NewTable(entries...)
	if err != nil {
		return nil, fmt.Errorf("building policy table: %w", err)
	}
	return t, nil
}

// DefaultTable returns the table embedded in the binary
func DefaultTable() *Table {
	t, err := ParseTable(defaultPolicy)
	if err != nil {
		panic(fmt.Sprintf("embedded policy is invalid: %v", err))
	}
	return t
}
