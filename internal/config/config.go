package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML configuration shape. Pointer fields tell
// unset apart from zero.
type FileConfig struct {
	Concurrency    *int    `yaml:"concurrency"`
	ResolveWorkers *int    `yaml:"resolve_workers"`
	CloneDepth     *int    `yaml:"clone_depth"`
	ScanTimeout    *string `yaml:"scan_timeout"`
	CloneTimeout   *string `yaml:"clone_timeout"`
	RequestTimeout *string `yaml:"request_timeout"`
	RequestDelay   *string `yaml:"request_delay"`
	MaxAttempts    *int    `yaml:"max_attempts"`
	BackoffBase    *string `yaml:"backoff_base"`
	BackoffMax     *string `yaml:"backoff_max"`
	MaxPages       *int    `yaml:"max_pages"`
	PerPage        *int    `yaml:"per_page"`

	HaltOnBestGuess   *bool   `yaml:"halt_on_best_guess"`
	PlatformHost      *string `yaml:"platform_host"`
	APIBaseURL        *string `yaml:"api_base_url"`
	WebBaseURL        *string `yaml:"web_base_url"`
	SearchURL         *string `yaml:"search_url"`
	HomepageQuery     *string `yaml:"homepage_query"`
	AccountQuery      *string `yaml:"account_query"`
	ProfileHomepageID *string `yaml:"profile_homepage_id"`
	UserAgent         *string `yaml:"user_agent"`

	Rules        *string  `yaml:"rules"`
	Scanner      *string  `yaml:"scanner"`
	ExcludePaths []string `yaml:"exclude_paths"`
	Report       *string  `yaml:"report"`
	WorkDir      *string  `yaml:"work_dir"`
	Cache        *string  `yaml:"cache"`
	AuditLog     *string  `yaml:"audit_log"`
	LogLevel     *string  `yaml:"log_level"`
	LogFormat    *string  `yaml:"log_format"`

	Gitleaks *GitleaksConfig `yaml:"gitleaks"`
}

// GitleaksConfig holds configuration for the gitleaks subprocess.
type GitleaksConfig struct {
	// Binary is an explicit path; empty means look it up on $PATH.
	Binary *string `yaml:"binary"`
	// Version is the minimum accepted release; empty means the built-in floor.
	Version *string `yaml:"version"`
}

// LoadFile reads a YAML config file from the provided path. Unknown keys
// are rejected.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LocalNames are searched in order by LoadLocal.
var LocalNames = []string{".leaktrace.yml", ".leaktrace.yaml", "leaktrace.yml", "leaktrace.yaml"}

// LoadLocal searches for a config file in dir.
func LoadLocal(dir string) (FileConfig, error) {
	for _, name := range LocalNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return FileConfig{}, ErrNoConfig
}

// ErrNoConfig is returned when a searched location has no config file.
var ErrNoConfig = errors.New("no config file")

// GlobalPath is $XDG_CONFIG_HOME/leaktrace/config.yml, falling back to
// ~/.config.
func GlobalPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home == "" {
			return "", errors.New("no config dir")
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "leaktrace", "config.yml"), nil
}

// LoadGlobal loads the global config file.
func LoadGlobal() (FileConfig, error) {
	p, err := GlobalPath()
	if err != nil {
		return FileConfig{}, err
	}
	if _, err := os.Stat(p); err != nil {
		return FileConfig{}, ErrNoConfig
	}
	return LoadFile(p)
}

// Config is the resolved configuration of a run.
type Config struct {
	Concurrency    int
	ResolveWorkers int
	CloneDepth     int
	ScanTimeout    time.Duration
	CloneTimeout   time.Duration
	RequestTimeout time.Duration
	RequestDelay   time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	MaxPages       int
	PerPage        int

	HaltOnBestGuess   bool
	PlatformHost      string
	APIBaseURL        string
	WebBaseURL        string
	SearchURL         string
	HomepageQuery     string
	AccountQuery      string
	ProfileHomepageID string
	UserAgent         string

	Rules        string
	Scanner      string
	ExcludePaths []string
	Report       string
	WorkDir      string
	Cache        string
	AuditLog     string
	LogLevel     string
	LogFormat    string

	GitleaksBinary  string
	GitleaksVersion string

	// Token is never read from files; it comes from GITHUB_TOKEN or --token.
	Token string
}

const (
	ScannerGitleaks = "gitleaks"
	ScannerNative   = "native"
)

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Concurrency:       4,
		ResolveWorkers:    4,
		CloneDepth:        0,
		ScanTimeout:       10 * time.Minute,
		CloneTimeout:      5 * time.Minute,
		RequestTimeout:    15 * time.Second,
		RequestDelay:      time.Second,
		MaxAttempts:       4,
		BackoffBase:       time.Second,
		BackoffMax:        30 * time.Second,
		MaxPages:          50,
		PerPage:           100,
		HaltOnBestGuess:   true,
		PlatformHost:      "github.com",
		APIBaseURL:        "https://api.github.com",
		SearchURL:         "https://html.duckduckgo.com/html/",
		HomepageQuery:     `"{name}" AI researcher homepage OR personal website`,
		AccountQuery:      `"{name}" site:{host}`,
		ProfileHomepageID: "homepage",
		Scanner:           ScannerGitleaks,
		Report:            "leaktrace_report.csv",
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

// Apply layers fc over c; set fields in fc win.
func (c Config) Apply(fc FileConfig) (Config, error) {
	var errs []error
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setStr := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	setDur := func(name string, dst *time.Duration, v *string) {
		if v == nil {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(*v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = d
	}

	setInt(&c.Concurrency, fc.Concurrency)
	setInt(&c.ResolveWorkers, fc.ResolveWorkers)
	setInt(&c.CloneDepth, fc.CloneDepth)
	setDur("scan_timeout", &c.ScanTimeout, fc.ScanTimeout)
	setDur("clone_timeout", &c.CloneTimeout, fc.CloneTimeout)
	setDur("request_timeout", &c.RequestTimeout, fc.RequestTimeout)
	setDur("request_delay", &c.RequestDelay, fc.RequestDelay)
	setInt(&c.MaxAttempts, fc.MaxAttempts)
	setDur("backoff_base", &c.BackoffBase, fc.BackoffBase)
	setDur("backoff_max", &c.BackoffMax, fc.BackoffMax)
	setInt(&c.MaxPages, fc.MaxPages)
	setInt(&c.PerPage, fc.PerPage)
	if fc.HaltOnBestGuess != nil {
		c.HaltOnBestGuess = *fc.HaltOnBestGuess
	}
	setStr(&c.PlatformHost, fc.PlatformHost)
	setStr(&c.APIBaseURL, fc.APIBaseURL)
	setStr(&c.WebBaseURL, fc.WebBaseURL)
	setStr(&c.SearchURL, fc.SearchURL)
	setStr(&c.HomepageQuery, fc.HomepageQuery)
	setStr(&c.AccountQuery, fc.AccountQuery)
	setStr(&c.ProfileHomepageID, fc.ProfileHomepageID)
	setStr(&c.UserAgent, fc.UserAgent)
	setStr(&c.Rules, fc.Rules)
	setStr(&c.Scanner, fc.Scanner)
	if fc.ExcludePaths != nil {
		c.ExcludePaths = append([]string(nil), fc.ExcludePaths...)
	}
	setStr(&c.Report, fc.Report)
	setStr(&c.WorkDir, fc.WorkDir)
	setStr(&c.Cache, fc.Cache)
	setStr(&c.AuditLog, fc.AuditLog)
	setStr(&c.LogLevel, fc.LogLevel)
	setStr(&c.LogFormat, fc.LogFormat)
	if g := fc.Gitleaks; g != nil {
		setStr(&c.GitleaksBinary, g.Binary)
		setStr(&c.GitleaksVersion, g.Version)
	}
	return c, errors.Join(errs...)
}

// Resolve layers global then local over the defaults.
func Resolve(global, local FileConfig) (Config, error) {
	c, err := Defaults().Apply(global)
	if err != nil {
		return c, fmt.Errorf("global config: %w", err)
	}
	c, err = c.Apply(local)
	if err != nil {
		return c, fmt.Errorf("local config: %w", err)
	}
	return c, nil
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.ResolveWorkers < 1 {
		errs = append(errs, fmt.Errorf("resolve_workers must be at least 1, got %d", c.ResolveWorkers))
	}
	if c.CloneDepth < 0 {
		errs = append(errs, fmt.Errorf("clone_depth must not be negative, got %d", c.CloneDepth))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.PerPage < 1 || c.PerPage > 100 {
		errs = append(errs, fmt.Errorf("per_page must be between 1 and 100, got %d", c.PerPage))
	}
	if c.BackoffMax < c.BackoffBase {
		errs = append(errs, fmt.Errorf("backoff_max %s is below backoff_base %s", c.BackoffMax, c.BackoffBase))
	}
	switch c.Scanner {
	case ScannerGitleaks, ScannerNative:
	default:
		errs = append(errs, fmt.Errorf("scanner must be %q or %q, got %q", ScannerGitleaks, ScannerNative, c.Scanner))
	}
	if c.Report == "" {
		errs = append(errs, errors.New("report path is empty"))
	}
	return errors.Join(errs...)
}
