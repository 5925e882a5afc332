// Package specfile loads the YAML spec file named in spec section 6:
// a declarative list of syncs plus optional remote endpoint hostnames,
// grounded on rclone's own yaml.v2-based config/test-plan loading (see
// fstest/test_all/config.go). It is intentionally thin - no defaults
// cascade, no validation UI - those are cmd/rjrssync's job.
package specfile

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// Sync is one source/destination pair with its own optional filter
// rule list, overriding nothing from Doc - each sync is independent.
type Sync struct {
	Src    string   `yaml:"src"`
	Dest   string   `yaml:"dest"`
	Filter []string `yaml:"filter,omitempty"`
}

// Doc is the top-level shape of a spec file. A blank hostname/username
// means that endpoint of every Sync is local.
type Doc struct {
	SrcHostname  string `yaml:"src_hostname,omitempty"`
	SrcUsername  string `yaml:"src_username,omitempty"`
	DestHostname string `yaml:"dest_hostname,omitempty"`
	DestUsername string `yaml:"dest_username,omitempty"`
	Syncs        []Sync `yaml:"syncs"`
}

// Load reads and parses a spec file at path.
func Load(path string) (*Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("specfile: read %s: %w", path, err)
	}
	var doc Doc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("specfile: parse %s: %w", path, err)
	}
	if len(doc.Syncs) == 0 {
		return nil, fmt.Errorf("specfile: %s declares no syncs", path)
	}
	return &doc, nil
}
