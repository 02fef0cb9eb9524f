package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the gantry.yaml file at path into a Config. Environment
// references of the form ${VAR} and ${VAR:-default} are expanded before
// parsing, so tokens can stay out of the file itself. The result has no
// defaults applied and is not validated; callers layer flag overrides on
// top first.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
