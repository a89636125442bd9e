package bcknd

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML-serializable subset of Config. Durations are
// strings ("20ms") so the file stays human-editable; NewConfig's defaults
// still apply to anything the file omits.
type fileConfig struct {
	MaxFrame    int `yaml:"max_frame"`
	MaxPatterns int `yaml:"max_patterns"`

	ReadBurst  int `yaml:"read_burst"`
	WriteBurst int `yaml:"write_burst"`
	ProcBurst  int `yaml:"proc_burst"`

	ConnInitDelay    string `yaml:"conn_init_delay"`
	WriteResumeDelay string `yaml:"write_resume_delay"`
	ProcDelay        string `yaml:"proc_delay"`

	SendBufSize int `yaml:"send_bufsz"`
	RecvBufSize int `yaml:"recv_bufsz"`
}

// LoadConfig reads tunables from a YAML file (spec.md §6.4) on top of the
// package defaults. Fields absent from the file, or the file itself being
// absent, fall back to defaultConfig()'s values — this is an optional
// convenience for operators who would rather edit a file than pass flags,
// mined from marmos91-dittofs's pkg/config YAML-backed Config.
func LoadConfig(path string, opts ...Option) (*Config, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bcknd: reading config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("bcknd: parsing config %s: %w", path, err)
	}

	if fc.MaxFrame > 0 {
		cfg.MaxFrame = fc.MaxFrame
	}
	if fc.MaxPatterns > 0 {
		cfg.MaxPatterns = fc.MaxPatterns
	}
	if fc.ReadBurst > 0 {
		cfg.ReadBurst = fc.ReadBurst
	}
	if fc.WriteBurst > 0 {
		cfg.WriteBurst = fc.WriteBurst
	}
	if fc.ProcBurst > 0 {
		cfg.ProcBurst = fc.ProcBurst
	}
	if d, err := parseDuration(fc.ConnInitDelay); err == nil && d > 0 {
		cfg.ConnInitDelay = d
	}
	if d, err := parseDuration(fc.WriteResumeDelay); err == nil && d > 0 {
		cfg.WriteResumeDelay = d
	}
	if d, err := parseDuration(fc.ProcDelay); err == nil && d > 0 {
		cfg.ProcDelay = d
	}
	if fc.SendBufSize > 0 {
		cfg.SendBufSize = fc.SendBufSize
	}
	if fc.RecvBufSize > 0 {
		cfg.RecvBufSize = fc.RecvBufSize
	}
	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
