// Package config loads orchestrator settings from a YAML file with env
// overrides. Missing files fall back to defaults so the service runs with
// zero configuration in dev.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tdrlane/pkg/domain"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port      int    `yaml:"port"`
	StoreMode string `yaml:"storeMode"` // "memory" or "postgres"
	DBURL     string `yaml:"dbUrl"`

	MatchBaseURL string `yaml:"matchBaseUrl"`
	DocBaseURL   string `yaml:"docBaseUrl"`

	ComputeTimeout time.Duration `yaml:"computeTimeout"`

	RateRPS   float64 `yaml:"rateRps"`
	RateBurst int     `yaml:"rateBurst"`

	WorkflowsPath string `yaml:"workflowsPath"`
}

func Default() Config {
	return Config{
		Port:           8085,
		StoreMode:      "memory",
		MatchBaseURL:   "http://localhost:8090",
		DocBaseURL:     "http://localhost:8091",
		ComputeTimeout: 30 * time.Second,
		RateRPS:        20,
		RateBurst:      40,
		WorkflowsPath:  "configs/workflows.yaml",
	}
}

// LoadFromPath reads the YAML file at configPath, falling back to the
// default candidate paths when it is empty, then applies env overrides.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/orchestrator.yaml",
			"orchestrator.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		merged := cfg
		Merge(&merged, parsed)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src Config) {
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.StoreMode != "" {
		dst.StoreMode = src.StoreMode
	}
	if src.DBURL != "" {
		dst.DBURL = src.DBURL
	}
	if src.MatchBaseURL != "" {
		dst.MatchBaseURL = src.MatchBaseURL
	}
	if src.DocBaseURL != "" {
		dst.DocBaseURL = src.DocBaseURL
	}
	if src.ComputeTimeout != 0 {
		dst.ComputeTimeout = src.ComputeTimeout
	}
	if src.RateRPS != 0 {
		dst.RateRPS = src.RateRPS
	}
	if src.RateBurst != 0 {
		dst.RateBurst = src.RateBurst
	}
	if src.WorkflowsPath != "" {
		dst.WorkflowsPath = src.WorkflowsPath
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TDR_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("TDR_STORE_MODE")); v != "" {
		cfg.StoreMode = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DBURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TDR_MATCH_BASE_URL")); v != "" {
		cfg.MatchBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TDR_DOC_BASE_URL")); v != "" {
		cfg.DocBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TDR_COMPUTE_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ComputeTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("TDR_WORKFLOWS_PATH")); v != "" {
		cfg.WorkflowsPath = v
	}
}

type workflowsFile struct {
	Workflows map[string]domain.Capabilities `yaml:"workflows"`
}

// LoadCatalog merges the workflows file over the built-in capability table.
// A missing file is not an error; an unparsable one is.
func LoadCatalog(path string) (domain.Catalog, error) {
	catalog := domain.DefaultCatalog()
	if path == "" {
		return catalog, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return catalog, nil
		}
		return nil, err
	}
	var parsed workflowsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for name, caps := range parsed.Workflows {
		catalog[domain.Workflow(name)] = caps
	}
	return catalog, nil
}
