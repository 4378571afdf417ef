package analyst

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hedgeline/engine/pkg/api"
)

type (
	// Manifest declares the scripted analysts loaded at startup
	Manifest struct {
		Analysts []*ManifestEntry `yaml:"analysts"`
	}

	// ManifestEntry describes one scripted analyst
	ManifestEntry struct {
		Key         string `yaml:"key"`
		DisplayName string `yaml:"display_name"`
		Order       int    `yaml:"order"`
		Script      string `yaml:"script"`
	}
)

var (
	ErrManifestKeyMissing    = errors.New("manifest entry has no key")
	ErrManifestScriptMissing = errors.New("manifest entry has no script")
)

// LoadManifest reads and parses a scripted analyst manifest
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// RegisterManifest compiles every manifest entry and registers the
// resulting analysts, replacing any built-in registered under the same key
func (r *Registry) RegisterManifest(env *LuaEnv, m *Manifest) error {
	for _, entry := range m.Analysts {
		key := api.SanitizeKey(api.AnalystKey(entry.Key))
		if key == "" {
			return fmt.Errorf("%w: %q", ErrManifestKeyMissing, entry.Key)
		}
		if entry.Script == "" {
			return fmt.Errorf("%w: %s", ErrManifestScriptMissing, key)
		}
		node, err := NewScriptedAgent(env, key, entry.Script)
		if err != nil {
			return err
		}
		display := entry.DisplayName
		if display == "" {
			display = string(key)
		}
		r.Register(&Analyst{
			Key:         key,
			DisplayName: display,
			Order:       entry.Order,
			Node:        node,
		})
	}
	return nil
}
