package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Aliases maps an operator-friendly DH name to the host:port[:proto] or
// device-path DHName it actually resolves to — the operational
// equivalent of the teacher's tocalls.yaml vendor/model lookup table,
// repurposed from "packet radio device identifier" to "DH alias".
type Aliases map[string]string

// LoadAliases reads filename (searched via the same candidate paths as
// the JSON configs) as YAML of the form `alias: dhname`. A missing file
// yields an empty table, not an error.
func LoadAliases(filename string) (Aliases, error) {
	f, _ := openFirst(searchPaths(filename))
	if f == nil {
		return Aliases{}, nil
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}

	if raw == nil {
		raw = map[string]string{}
	}

	return Aliases(raw), nil
}

// Resolve returns the DHName alias maps to, or name unchanged if it is
// not an alias (callers treat any unresolved string as a literal
// DHName).
func (a Aliases) Resolve(name string) string {
	if resolved, ok := a[name]; ok {
		return resolved
	}

	return name
}
