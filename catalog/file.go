package catalog

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/chatwright/chatwright/model"
	"gopkg.in/yaml.v3"
)

// LoadDir reads YAML flow definitions from a directory, one flow per
// file. Used to seed the catalog at boot.
func LoadDir(dir string) ([]model.FlowDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var defs []model.FlowDefinition
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var def model.FlowDefinition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
