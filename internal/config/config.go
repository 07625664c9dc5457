// Package config handles the exporter settings ("scs globals").
package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Output types of the model file.
const (
	OutputLegacy = "5"   // PIM format version 5
	OutputDef    = "def" // PIM format version 1, type "def"
	OutputEF     = "ef"  // PIM format version 1, extended format
)

// Config holds all exporter settings.
type Config struct {
	Project ProjectConfig `yaml:"project"`
	Export  ExportConfig  `yaml:"export"`
	Presets PresetsConfig `yaml:"presets"`
	Logging LoggingConfig `yaml:"logging"`
}

// ProjectConfig locates the game data the assets belong to.
type ProjectConfig struct {
	BasePath       string   `yaml:"base_path"`        // Project base, root of "/"-prefixed paths
	SiiIncludeDirs []string `yaml:"sii_include_dirs"` // Searched in order for @include
}

// ExportConfig selects which files are written and how.
type ExportConfig struct {
	Scale                float32 `yaml:"scale"`
	OutputType           string  `yaml:"output_type"`
	Indent               string  `yaml:"indent"`
	AnimStep             int     `yaml:"anim_step"`
	PIM                  bool    `yaml:"pim"`
	PIC                  bool    `yaml:"pic"`
	PIP                  bool    `yaml:"pip"`
	PIT                  bool    `yaml:"pit"`
	PIS                  bool    `yaml:"pis"`
	PIA                  bool    `yaml:"pia"`
	IncludeSubdirsForPIA bool    `yaml:"include_subdirs_for_pia"`
}

// PresetsConfig points at the shader preset library.
type PresetsConfig struct {
	Path string `yaml:"path"` // Empty uses the built-in library
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	LogFile   string `yaml:"log_file"`
	DumpLevel int    `yaml:"dump_level"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			Scale:      1.0,
			OutputType: OutputLegacy,
			Indent:     "    ",
			AnimStep:   1,
			PIM:        true,
			PIC:        true,
			PIP:        true,
			PIT:        true,
			PIS:        true,
			PIA:        true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			DumpLevel: 2,
		},
	}
}

// Validate reports settings the builders cannot work with.
func (c *Config) Validate() error {
	switch c.Export.OutputType {
	case OutputLegacy, OutputDef, OutputEF:
	default:
		return fmt.Errorf("%w: output_type %q", ErrInvalid, c.Export.OutputType)
	}
	if c.Export.Scale <= 0 {
		return fmt.Errorf("%w: scale must be positive, got %v", ErrInvalid, c.Export.Scale)
	}
	if c.Export.AnimStep < 1 {
		return fmt.Errorf("%w: anim_step must be at least 1, got %d", ErrInvalid, c.Export.AnimStep)
	}
	return nil
}

// Debug reports whether verbose dumps are requested.
func (c *Config) Debug() bool {
	return c.Logging.DumpLevel > 2
}
