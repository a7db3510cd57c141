package extract

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the project config file looked up in the working
// directory. Flags override anything set here.
const ConfigFileName = "rustle.yaml"

// FileConfig is the subset of extraction settings readable from rustle.yaml.
type FileConfig struct {
	Src         string   `yaml:"src"`
	Output      string   `yaml:"output"`
	SourceLang  string   `yaml:"sourceLang"`
	TargetLangs []string `yaml:"targetLangs"`
	Include     []string `yaml:"include"`
	Exclude     []string `yaml:"exclude"`
	Model       string   `yaml:"model"`
	APIURL      string   `yaml:"apiUrl"`
}

// LoadFileConfig reads a project config file. A missing file is not an
// error; it returns nil so callers fall through to flag defaults.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Merge overlays file-config values onto cfg wherever cfg still holds the
// given defaults, so explicit flags keep precedence.
func (f *FileConfig) Merge(cfg *Config, defaults Config) {
	if f == nil {
		return
	}
	if f.Src != "" && cfg.SrcDir == defaults.SrcDir {
		cfg.SrcDir = f.Src
	}
	if f.Output != "" && cfg.OutputDir == defaults.OutputDir {
		cfg.OutputDir = f.Output
	}
	if f.SourceLang != "" && cfg.SourceLang == defaults.SourceLang {
		cfg.SourceLang = f.SourceLang
	}
	if len(f.TargetLangs) > 0 && equalStrings(cfg.TargetLangs, defaults.TargetLangs) {
		cfg.TargetLangs = f.TargetLangs
	}
	if len(f.Include) > 0 && len(cfg.Include) == 0 {
		cfg.Include = f.Include
	}
	if len(f.Exclude) > 0 && len(cfg.Exclude) == 0 {
		cfg.Exclude = f.Exclude
	}
	if f.Model != "" && cfg.Model == "" {
		cfg.Model = f.Model
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
