package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"uat978/internal/protocol"
	"uat978/internal/uaterr"
)

// Listener is one configured TCP output: an address and which wire
// format it speaks.
type Listener struct {
	Addr   string
	Format string // "raw", "raw-legacy", "json"
}

// Config holds the application's fully resolved configuration: the CLI
// flags, layered over an optional YAML file (CLI always wins), covering
// the full input/output surface a UAT receiver needs.
type Config struct {
	// Input selection; exactly one of these must be set.
	Stdin     bool
	File      string
	SDR       string
	StratuxV3 string

	// Format is required for Stdin/File inputs; SDR and StratuxV3 have
	// a fixed, implied format.
	Format string

	// SDR options, used only when SDR != "".
	SDRGain           int
	SDRAutoGain       bool
	SDRPPM            int
	SDRAntenna        string
	SDRStreamSettings string
	SDRDeviceSettings string

	// Listener addresses; each flag is repeatable.
	RawPorts       []string
	RawLegacyPorts []string
	JSONPorts      []string

	RawStdout  bool
	JSONStdout bool

	MetricsPort string

	ConfigFile string
	Verbose    bool
	ShowVersion bool
}

// fileConfig mirrors the subset of Config that may come from a YAML
// file (--config). Only fields a user would reasonably template are
// exposed; SDR hardware selection and one-shot flags stay CLI-only.
type fileConfig struct {
	Format            string   `yaml:"format"`
	SDRGain           *int     `yaml:"sdr_gain"`
	SDRAutoGain       *bool    `yaml:"sdr_auto_gain"`
	SDRPPM            *int     `yaml:"sdr_ppm"`
	SDRAntenna        string   `yaml:"sdr_antenna"`
	SDRStreamSettings string   `yaml:"sdr_stream_settings"`
	SDRDeviceSettings string   `yaml:"sdr_device_settings"`
	RawPorts          []string `yaml:"raw_ports"`
	RawLegacyPorts    []string `yaml:"raw_legacy_ports"`
	JSONPorts         []string `yaml:"json_ports"`
	MetricsPort       string   `yaml:"metrics_port"`
}

// LoadFile layers YAML values from path onto c wherever the
// corresponding CLI flag was not explicitly set by the caller
// (changed reports a flag name's Changed state, matching cobra's
// Flags().Changed, so CLI flags always win over the file).
func (c *Config) LoadFile(path string, changed func(name string) bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return uaterr.Config("config: read "+path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return uaterr.Config("config: parse "+path, fmt.Errorf("%s: %w", path, err))
	}

	if fc.Format != "" && !changed("format") {
		c.Format = fc.Format
	}
	if fc.SDRGain != nil && !changed("sdr-gain") {
		c.SDRGain = *fc.SDRGain
	}
	if fc.SDRAutoGain != nil && !changed("sdr-auto-gain") {
		c.SDRAutoGain = *fc.SDRAutoGain
	}
	if fc.SDRPPM != nil && !changed("sdr-ppm") {
		c.SDRPPM = *fc.SDRPPM
	}
	if fc.SDRAntenna != "" && !changed("sdr-antenna") {
		c.SDRAntenna = fc.SDRAntenna
	}
	if fc.SDRStreamSettings != "" && !changed("sdr-stream-settings") {
		c.SDRStreamSettings = fc.SDRStreamSettings
	}
	if fc.SDRDeviceSettings != "" && !changed("sdr-device-settings") {
		c.SDRDeviceSettings = fc.SDRDeviceSettings
	}
	if len(fc.RawPorts) > 0 && !changed("raw-port") {
		c.RawPorts = fc.RawPorts
	}
	if len(fc.RawLegacyPorts) > 0 && !changed("raw-legacy-port") {
		c.RawLegacyPorts = fc.RawLegacyPorts
	}
	if len(fc.JSONPorts) > 0 && !changed("json-port") {
		c.JSONPorts = fc.JSONPorts
	}
	if fc.MetricsPort != "" && !changed("metrics-port") {
		c.MetricsPort = fc.MetricsPort
	}
	return nil
}

// Validate checks the CLI surface invariants: exactly one input
// source, a format required for file/stdin inputs, and a parseable
// sample format. Returns a KindConfig error (exit 64) on any
// violation.
func (c *Config) Validate() error {
	inputs := 0
	for _, set := range []bool{c.Stdin, c.File != "", c.SDR != "", c.StratuxV3 != ""} {
		if set {
			inputs++
		}
	}
	if inputs != 1 {
		return uaterr.Config("config", fmt.Errorf("exactly one of --stdin, --file, --sdr, --stratuxv3 must be set (got %d)", inputs))
	}

	if c.Stdin || c.File != "" {
		if c.Format == "" {
			return uaterr.Config("config", fmt.Errorf("--format is required for --stdin/--file input"))
		}
		if _, ok := protocol.ParseLayout(c.Format); !ok {
			return uaterr.Config("config", fmt.Errorf("unsupported --format %q", c.Format))
		}
	}

	if len(c.RawPorts) == 0 && len(c.RawLegacyPorts) == 0 && len(c.JSONPorts) == 0 &&
		!c.RawStdout && !c.JSONStdout {
		return uaterr.Config("config", fmt.Errorf("at least one output (a listener port or --raw-stdout/--json-stdout) must be configured"))
	}

	return nil
}

// Listeners expands the three repeatable port flags into a flat list
// of Listener descriptors for the application to bind.
func (c *Config) Listeners() []Listener {
	out := make([]Listener, 0, len(c.RawPorts)+len(c.RawLegacyPorts)+len(c.JSONPorts))
	for _, a := range c.RawPorts {
		out = append(out, Listener{Addr: a, Format: "raw"})
	}
	for _, a := range c.RawLegacyPorts {
		out = append(out, Listener{Addr: a, Format: "raw-legacy"})
	}
	for _, a := range c.JSONPorts {
		out = append(out, Listener{Addr: a, Format: "json"})
	}
	return out
}
