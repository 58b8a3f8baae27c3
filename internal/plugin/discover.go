package plugin

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// manifestFile names the per-plugin metadata file inside its directory.
const manifestFile = "plugin.yaml"

// manifest is the on-disk form of Metadata, following the same
// yaml.v3-via-struct-tags convention internal/config uses for the daemon's
// own configuration file.
type manifest struct {
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	APIVersion int    `yaml:"api_version"`
	Author     string `yaml:"author"`
}

// DiscoverPlugins scans dir for one subdirectory per plugin, each holding
// a plugin.yaml manifest plus either a compiled module.fzb or a
// module.fz source script. Missing dir is not an error: a daemon with no
// plugins configured yet simply has nothing to discover.
func DiscoverPlugins(dir string) ([]Plugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("plugin: scan %s: %w", dir, err)
	}

	var plugins []Plugin
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := LoadPluginDir(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

// LoadPluginDir loads one plugin from a directory holding plugin.yaml and
// either module.fzb (compiled) or module.fz (source script); module.fzb
// is used when present, module.fz otherwise.
func LoadPluginDir(dir string) (Plugin, error) {
	manifestPath := filepath.Join(dir, manifestFile)
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return Plugin{}, fmt.Errorf("plugin: read %s: %w", manifestPath, err)
	}
	var man manifest
	if err := yaml.Unmarshal(raw, &man); err != nil {
		return Plugin{}, fmt.Errorf("plugin: parse %s: %w", manifestPath, err)
	}

	module, err := loadModuleFile(dir)
	if err != nil {
		return Plugin{}, err
	}

	return Plugin{
		Meta: Metadata{
			Name:       man.Name,
			Version:    man.Version,
			APIVersion: man.APIVersion,
			Author:     man.Author,
		},
		Module: module,
	}, nil
}

func loadModuleFile(dir string) (*Module, error) {
	compiledPath := filepath.Join(dir, "module.fzb")
	if data, err := os.ReadFile(compiledPath); err == nil {
		m, err := LoadCompiled(data)
		if err != nil {
			return nil, fmt.Errorf("plugin: load %s: %w", compiledPath, err)
		}
		return m, nil
	}

	scriptPath := filepath.Join(dir, "module.fz")
	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("plugin: neither module.fzb nor module.fz found in %s", dir)
	}
	m, err := LoadScript(string(src))
	if err != nil {
		return nil, fmt.Errorf("plugin: load %s: %w", scriptPath, err)
	}
	return m, nil
}
