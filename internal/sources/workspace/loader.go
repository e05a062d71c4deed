package workspace

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of a workspace file
type Loader struct {
	filePath string
}

// NewLoader creates a new workspace loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads, expands and validates the workspace file
func (l *Loader) Load() (*Config, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace file: %w", err)
	}

	// ${VAR} references are expanded from the environment
	data = []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse workspace yaml: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks names, urls and the focus index
func (c *Config) Validate() error {
	if err := validateGroups(c.Groups, ""); err != nil {
		return err
	}
	for i, tab := range c.Tabs {
		if strings.TrimSpace(tab.URL) == "" {
			return fmt.Errorf("tab %d has no url", i+1)
		}
	}
	if c.Focus < 0 || c.Focus > len(c.Tabs) {
		return fmt.Errorf("focus %d out of range (1..%d)", c.Focus, len(c.Tabs))
	}
	return nil
}

func validateGroups(groups []GroupEntry, parent string) error {
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		name := strings.TrimSpace(g.Name)
		if name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("invalid group name %q under %q", g.Name, parent)
		}
		if seen[name] {
			return fmt.Errorf("duplicate group %q under %q", name, parent)
		}
		seen[name] = true
		if err := validateGroups(g.Groups, join(parent, name)); err != nil {
			return err
		}
	}
	return nil
}

func join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
