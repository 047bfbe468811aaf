// Package config loads the CLI flags and the YAML sensors file and
// validates them against the sensor definitions before anything runs.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lox/ouraview/internal/oura"
	"github.com/lox/ouraview/internal/reconcile"
)

// CLI is the kong command line surface.
type CLI struct {
	Config       string        `help:"Path to the sensors config file." default:"ouraview.yaml" env:"OURAVIEW_CONFIG"`
	Port         string        `help:"HTTP server port." default:"8080" env:"PORT"`
	ScanInterval time.Duration `help:"Interval between sensor update cycles." default:"5m" env:"OURAVIEW_SCAN_INTERVAL"`
	BaseURL      string        `help:"External base URL used to build the OAuth redirect." default:"http://localhost:8080" env:"OURAVIEW_BASE_URL"`
	TokenDir     string        `help:"Directory holding the token cache files." default:"." env:"OURAVIEW_TOKEN_DIR"`
	NoPoll       bool          `help:"Disable polling (server only, for local dev)."`
	Once         bool          `help:"Update all sensors once and exit."`
}

// File is the YAML sensors configuration.
type File struct {
	// AccessToken is a personal access token. When set, OAuth client
	// credentials are not used and no token cache files are written.
	AccessToken  string `yaml:"access_token"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	Sensors map[string]SensorConfig `yaml:"sensors"`
}

// SensorConfig configures one sensor instance. Zero fields fall back
// to the sensor definition's defaults.
type SensorConfig struct {
	Name               string   `yaml:"name"`
	MonitoredDates     []string `yaml:"monitored_dates"`
	MonitoredVariables []string `yaml:"monitored_variables"`
	MaxBackfill        *int     `yaml:"max_backfill"`
	AttributeState     string   `yaml:"attribute_state"`
}

// Load reads, parses and validates the sensors file.
func Load(path string, defs map[string]oura.SensorDef) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := f.Validate(defs); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate rejects configurations the core cannot run with: missing
// credentials, unknown sensor keys, unsupported monitored variables or
// state attributes, negative backfill.
func (f *File) Validate(defs map[string]oura.SensorDef) error {
	if f.AccessToken == "" && (f.ClientID == "" || f.ClientSecret == "") {
		return fmt.Errorf("config: either access_token or client_id and client_secret required")
	}
	if len(f.Sensors) == 0 {
		return fmt.Errorf("config: no sensors configured")
	}
	for key, sc := range f.Sensors {
		def, ok := defs[key]
		if !ok {
			return fmt.Errorf("config: unknown sensor %q", key)
		}
		for _, v := range sc.MonitoredVariables {
			if !def.Supports(strings.ToLower(v)) {
				return fmt.Errorf("config: sensor %q: unsupported monitored variable %q", key, v)
			}
		}
		if sc.AttributeState != "" && !def.Supports(strings.ToLower(sc.AttributeState)) {
			return fmt.Errorf("config: sensor %q: unsupported attribute_state %q", key, sc.AttributeState)
		}
		if sc.MaxBackfill != nil && *sc.MaxBackfill < 0 {
			return fmt.Errorf("config: sensor %q: max_backfill must not be negative", key)
		}
	}
	return nil
}

// Reconcile resolves a sensor's effective configuration, applying the
// definition's defaults for anything unset. Date and variable names
// are lowercased the way the config schema expects them.
func (sc SensorConfig) Reconcile(def oura.SensorDef) reconcile.Config {
	cfg := reconcile.Config{
		Name:               sc.Name,
		MonitoredDates:     lowerAll(sc.MonitoredDates),
		MonitoredVariables: lowerAll(sc.MonitoredVariables),
		StateAttribute:     strings.ToLower(sc.AttributeState),
	}
	if cfg.Name == "" {
		cfg.Name = def.DefaultName
	}
	if len(cfg.MonitoredDates) == 0 {
		cfg.MonitoredDates = []string{"yesterday"}
	}
	if len(cfg.MonitoredVariables) == 0 {
		cfg.MonitoredVariables = append([]string(nil), def.DefaultVariables...)
	}
	if cfg.StateAttribute == "" {
		cfg.StateAttribute = def.DefaultStateAttribute
	}
	if sc.MaxBackfill != nil {
		cfg.MaxBackfill = *sc.MaxBackfill
	}
	return cfg
}

func lowerAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
