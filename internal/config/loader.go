package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Causes carried by ConfigSourceError.
var (
	ErrBothSources = errors.New("both a parsed document and an input file were passed")
	ErrNoSource    = errors.New("neither a parsed document nor an input file was passed")
)

// ConfigSourceError is returned when the configuration source is ambiguous
// or missing. It is raised before any file is opened.
type ConfigSourceError struct {
	Cause error
}

func (e *ConfigSourceError) Error() string {
	return "configuration source: " + e.Cause.Error()
}

func (e *ConfigSourceError) Unwrap() error {
	return e.Cause
}

// Source selects where the run description comes from. Exactly one of
// Document and Path must be set.
type Source struct {
	Document map[string]any
	Path     string
}

func (s Source) check() error {
	switch {
	case s.Document != nil && s.Path != "":
		return &ConfigSourceError{Cause: ErrBothSources}
	case s.Document == nil && s.Path == "":
		return &ConfigSourceError{Cause: ErrNoSource}
	}
	return nil
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"output-dir":  "file.output.path_to_output",
	"print-level": "log.print_level",
	"print-step":  "log.print_step",
	"history-db":  "file.output.history_db",
}

// Load assembles a Run from src. Layers, lowest to highest priority:
// defaults, the document or file, HWAVE_ environment variables, and flags
// that were explicitly set. flags may be nil.
func Load(src Source, flags *pflag.FlagSet) (*Run, error) {
	if err := src.check(); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	prov := Provenance{}

	merge := func(origin Origin, p koanf.Provider, parser koanf.Parser) error {
		layer := koanf.New(".")
		if err := layer.Load(p, parser); err != nil {
			return err
		}
		for _, key := range layer.Keys() {
			prov[key] = origin
		}
		return k.Merge(layer)
	}

	// 1. Defaults
	if err := merge(OriginDefault, confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Document or file
	if src.Path != "" {
		parser, err := parserFor(src.Path)
		if err != nil {
			return nil, err
		}
		if err := merge(OriginFile, file.Provider(src.Path), parser); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", src.Path, err)
		}
	} else {
		if err := merge(OriginDocument, confmap.Provider(src.Document, ""), nil); err != nil {
			return nil, fmt.Errorf("failed to load configuration document: %w", err)
		}
	}

	// 3. Environment: HWAVE_LOG__PRINT_LEVEL -> log.print_level
	if err := merge(OriginEnv, env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	if flags != nil {
		if err := merge(OriginFlag, posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var run Run
	if err := k.Unmarshal("", &run); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	run.Provenance = prov
	run.SourcePath = src.Path
	return &run, nil
}

// parserFor picks a parser from the file extension. TOML is assumed when the
// extension is not recognised.
func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml", ".tml", "":
		return toml.Parser(), nil
	case ".json":
		return nil, fmt.Errorf("unsupported config format %q: use TOML or YAML", filepath.Ext(path))
	default:
		return toml.Parser(), nil
	}
}
