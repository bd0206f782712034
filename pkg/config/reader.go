package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const logPrefix = "config:reader"

// ReadFile reads a YAML, TOML or JSON file into Params. ${VAR} references are
// expanded from the environment before parsing.
func ReadFile(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read %s: %w", logPrefix, path, err)
	}
	return Decode(filepath.Ext(path), data)
}

// Decode parses data according to ext (".yaml", ".yml", ".toml" or ".json").
func Decode(ext string, data []byte) (Params, error) {
	raw, err := decodeRaw(ext, []byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, err
	}
	return FromValue(raw), nil
}

func decodeRaw(ext string, data []byte) (map[string]any, error) {
	raw := map[string]any{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%s - failed to parse yaml: %w", logPrefix, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("%s - failed to parse toml: %w", logPrefix, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%s - failed to parse json: %w", logPrefix, err)
		}
	default:
		return nil, fmt.Errorf("%s - unsupported config format %q", logPrefix, ext)
	}
	return raw, nil
}
