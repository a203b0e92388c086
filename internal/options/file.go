package options

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// File is the parsed YAML structure for the options file:
// options: {server-port: 25565, gamemode: survival, ...}
type File struct {
	Options map[string]any `yaml:"options"`
}

// LoadFile parses a YAML options file, merges it over the schema defaults and
// validates every value. An empty path yields the defaults.
func LoadFile(path string) (map[string]string, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read options file: %w", err)
	}
	return Parse(data)
}

// Parse decodes options YAML and validates it against the schema.
func Parse(data []byte) (map[string]string, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse options file: %w", err)
	}

	values := Defaults()
	names := make([]string, 0, len(f.Options))
	for name := range f.Options {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("option %q: unknown option", name)
		}
		raw, err := scalar(name, f.Options[name])
		if err != nil {
			return nil, err
		}
		normalized, err := def.Validate(raw)
		if err != nil {
			return nil, err
		}
		values[name] = normalized
	}

	return values, nil
}

func scalar(name string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(v), nil
	case nil:
		return "", fmt.Errorf("option %q: value is required", name)
	default:
		return "", fmt.Errorf("option %q: must be a scalar value", name)
	}
}
