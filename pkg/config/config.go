package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes from YAML either as a human-readable string
// ("500ms", "1m30s") or as integer nanoseconds.
type Duration time.Duration

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML renders the duration in its human-readable form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts both forms.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return err
	}
	switch value := v.(type) {
	case int:
		*d = Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("config: invalid duration (yaml type %T)", v)
	}
}

var (
	_ yaml.Marshaler   = Duration(0)
	_ yaml.Unmarshaler = (*Duration)(nil)
)

// Config is the full configuration surface of the exporter. Values come
// from an optional YAML file overlaid by CLI flags; zero values fall
// back to defaults.
type Config struct {
	Listen      string   `yaml:"listen"`       // serve address for /metrics
	ProcRoot    string   `yaml:"proc_root"`    // process filesystem root
	CgroupMount string   `yaml:"cgroup_mount"` // cgroup mount for version detection
	HostRoot    string   `yaml:"host_root"`    // host / for hostname resolution, "" = own
	Interval    Duration `yaml:"interval"`     // CPU sampling window
	Timeout     Duration `yaml:"timeout"`      // per-scrape deadline
	MaxProcs    int      `yaml:"max_procs"`    // PIDs scanned per scrape
	TopN        int      `yaml:"top_n"`        // rows per ranking
	DiskIO      *bool    `yaml:"disk_io"`      // nil defaults to enabled
	Workers     int      `yaml:"workers"`      // parallel per-PID readers
	CacheFile   string   `yaml:"cache_file"`   // last-good snapshot, "" disables
	Labels      []string `yaml:"labels"`       // exposed label subset, empty = all
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Listen:      ":9105",
		ProcRoot:    "/proc",
		CgroupMount: "/sys/fs/cgroup",
		Interval:    Duration(500 * time.Millisecond),
		Timeout:     Duration(30 * time.Second),
		MaxProcs:    2000,
		TopN:        50,
		Workers:     8,
	}
}

// Load reads a YAML config file over the defaults. An empty path
// returns the defaults as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// DiskIOEnabled resolves the tri-state DiskIO flag; collection is on
// unless explicitly disabled.
func (c Config) DiskIOEnabled() bool {
	if c.DiskIO == nil {
		return true
	}
	return *c.DiskIO
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("config: interval must be > 0")
	}
	if c.Timeout > 0 && c.Timeout <= c.Interval {
		return fmt.Errorf("config: timeout must exceed the sampling interval")
	}
	if c.TopN <= 0 {
		return fmt.Errorf("config: top_n must be > 0")
	}
	if c.MaxProcs <= 0 {
		return fmt.Errorf("config: max_procs must be > 0")
	}
	return nil
}
