package sources

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// file is the on-disk layout of a sources file.
type file struct {
	Sources []map[string]any `yaml:"sources"`
}

// Load reads source definitions from a YAML file, applies defaults, and
// validates each entry.
func Load(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}
	if len(f.Sources) == 0 {
		return nil, ErrNoSources
	}

	sources := make([]Source, 0, len(f.Sources))
	for i, raw := range f.Sources {
		var src Source
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result: &src,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build source decoder: %w", err)
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, fmt.Errorf("failed to decode source %d: %w", i, err)
		}

		src.applyDefaults()
		if err := src.Validate(); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	return sources, nil
}

// Find returns the source with the given ID.
func Find(all []Source, id string) (*Source, error) {
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
}

// Enabled filters to the sources marked enabled.
func Enabled(all []Source) []Source {
	out := make([]Source, 0, len(all))
	for _, s := range all {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}
