// Package container builds components from configuration, wires their
// references and runs their lifecycle.
package container

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/locator"
)

const logPrefix = "container:config"

// ConfigFileEnv names the environment variable consulted by ReadConfig.
const ConfigFileEnv = "CONFIG_FILE"

//go:embed default.yaml
var defaultConfig []byte

// ComponentConfig describes one component: the locator it is created and
// registered under, and the parameters passed to Configure.
type ComponentConfig struct {
	Locator locator.Locator
	Params  config.Params
}

// Config lists components in wiring order.
type Config struct {
	Components []ComponentConfig
}

// ParseConfig reads a "components" list from params. Each entry names its
// locator under "locator" or "descriptor"; the remaining keys become its params.
func ParseConfig(params config.Params) (*Config, error) {
	cfg := &Config{}
	list := params.Section("components")
	for i := 0; ; i++ {
		section := list.Section(strconv.Itoa(i))
		if len(section) == 0 {
			break
		}
		raw := section.GetString("locator")
		if raw == "" {
			raw = section.GetString("descriptor")
		}
		if raw == "" {
			return nil, apperr.NewConfigError("", "NO_LOCATOR",
				fmt.Sprintf("Component %d has no locator", i)).
				WithDetails("index", i)
		}
		loc, err := locator.Parse(raw)
		if err != nil {
			return nil, err
		}
		delete(section, "locator")
		delete(section, "descriptor")
		cfg.Components = append(cfg.Components, ComponentConfig{Locator: loc, Params: section})
	}
	return cfg, nil
}

// ReadConfig loads the container config from the first readable path: the
// given paths, then $CONFIG_FILE, then config/components.yaml. When none
// exists the embedded default is used.
func ReadConfig(paths ...string) (*Config, error) {
	all := make([]string, 0, len(paths)+2)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, filepath.Join("config", "components.yaml"))

	for _, p := range all {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		params, err := config.ReadFile(p)
		if err != nil {
			return nil, err
		}
		cfg, err := ParseConfig(params)
		if err != nil {
			return nil, err
		}
		slog.Info(fmt.Sprintf("%s - loaded %d components from %s", logPrefix, len(cfg.Components), p))
		return cfg, nil
	}

	slog.Info(fmt.Sprintf("%s - using default container config", logPrefix))
	return DefaultConfig()
}

// DefaultConfig returns the embedded configuration.
func DefaultConfig() (*Config, error) {
	params, err := config.Decode(".yaml", defaultConfig)
	if err != nil {
		return nil, err
	}
	return ParseConfig(params)
}
