package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentware/maestro/pkg/contract"
)

// PolicyFile is the on-disk shape of a policies.yaml.
type PolicyFile struct {
	Profiles map[string]contract.PolicyProfile `yaml:"profiles"`
}

// LoadPolicies reads named policy profiles from a yaml file. Profile names
// in the map win over an inline Name field. A missing path returns an
// empty, usable map.
func LoadPolicies(path string) (map[string]contract.PolicyProfile, error) {
	if path == "" {
		return map[string]contract.PolicyProfile{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]contract.PolicyProfile{}, nil
		}
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	profiles := make(map[string]contract.PolicyProfile, len(file.Profiles))
	for name, profile := range file.Profiles {
		profile.Name = name
		profiles[name] = profile
	}
	return profiles, nil
}
