package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultOutput            = "DL SushiScan"
	DefaultWorkers           = 3
	DefaultMaxAttempts       = 4
	DefaultRetryDelay        = 2 * time.Second
	DefaultCookieStaleAfter  = time.Hour
	DefaultCookieReviewAfter = 24 * time.Hour
)

type Config struct {
	Output         string `yaml:"output"`
	Workers        int    `yaml:"workers"`
	CBZ            bool   `yaml:"cbz"`
	WebPToJPG      bool   `yaml:"webp_to_jpg"`
	Debug          bool   `yaml:"debug"`
	ImpersonateTLS bool   `yaml:"impersonate_tls"`

	DefaultURL   string `yaml:"default_url"`
	DefaultRange string `yaml:"default_range"`
	DefaultList  string `yaml:"default_list"`

	// Cookies are keyed by domain variant ("fr", "net").
	Cookies         map[string]string    `yaml:"cookies,omitempty"`
	CookieUpdatedAt map[string]time.Time `yaml:"cookie_updated_at,omitempty"`
	CookieFile      string               `yaml:"cookie_file"`
	UserAgent       string               `yaml:"user_agent"`

	MaxAttempts       int           `yaml:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	CookieStaleAfter  time.Duration `yaml:"cookie_stale_after"`
	CookieReviewAfter time.Duration `yaml:"cookie_review_after"`
}

// Options holds command line values. Zero values leave the profile alone.
type Options struct {
	IgnoreConfig bool
	Debug        bool
	Output       string
	Workers      int
	DefaultURL   string
	DefaultRange string
	DefaultList  string
	CookieFile   string
	UserAgent    string
}

// Env is read from SUSHIDL_* variables.
type Env struct {
	CookieFR  string `envconfig:"COOKIE_FR"`
	CookieNET string `envconfig:"COOKIE_NET"`
	UserAgent string `envconfig:"USER_AGENT"`
	Output    string `envconfig:"OUTPUT"`
}

const envPrefix = "SUSHIDL"

func DefaultConfig() *Config {
	return &Config{
		Output:            DefaultOutput,
		Workers:           DefaultWorkers,
		CBZ:               true,
		WebPToJPG:         false,
		Debug:             false,
		ImpersonateTLS:    true,
		Cookies:           map[string]string{},
		CookieUpdatedAt:   map[string]time.Time{},
		MaxAttempts:       DefaultMaxAttempts,
		RetryDelay:        DefaultRetryDelay,
		CookieStaleAfter:  DefaultCookieStaleAfter,
		CookieReviewAfter: DefaultCookieReviewAfter,
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func LoadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadMerged builds the effective config: flags over environment over the
// active profile over defaults. The returned string describes where the
// profile came from.
func (s Store) LoadMerged(opts Options) (*Config, string, error) {
	cfg, used, err := s.loadProfile(opts.IgnoreConfig)
	if err != nil {
		return nil, "", err
	}

	var env Env
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return nil, "", fmt.Errorf("read environment: %w", err)
	}

	applyEnv(cfg, env)
	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, used, nil
}

func (s Store) loadProfile(ignore bool) (*Config, string, error) {
	if ignore {
		return DefaultConfig(), "(ignored config)", nil
	}

	path, err := s.ActivePath()
	if errors.Is(err, ErrNoConfig) {
		return DefaultConfig(), "(default config in memory)\nRun `sushidl config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := LoadYAML(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, path, nil
}

// LoadMerged uses the default store.
func LoadMerged(opts Options) (*Config, string, error) {
	return DefaultStore().LoadMerged(opts)
}

func applyEnv(c *Config, e Env) {
	if e.CookieFR != "" {
		c.setCookie("fr", e.CookieFR)
	}
	if e.CookieNET != "" {
		c.setCookie("net", e.CookieNET)
	}
	if e.UserAgent != "" {
		c.UserAgent = e.UserAgent
	}
	if e.Output != "" {
		c.Output = e.Output
	}
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.Workers != 0 {
		c.Workers = o.Workers
	}
	if o.Debug {
		c.Debug = true
	}
	if o.DefaultURL != "" {
		c.DefaultURL = o.DefaultURL
	}
	if o.DefaultRange != "" {
		c.DefaultRange = o.DefaultRange
	}
	if o.DefaultList != "" {
		c.DefaultList = o.DefaultList
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
}

func normalizeDefaults(c *Config) {
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.CookieStaleAfter <= 0 {
		c.CookieStaleAfter = DefaultCookieStaleAfter
	}
	if c.CookieReviewAfter <= 0 {
		c.CookieReviewAfter = DefaultCookieReviewAfter
	}
	if c.Cookies == nil {
		c.Cookies = map[string]string{}
	}
	if c.CookieUpdatedAt == nil {
		c.CookieUpdatedAt = map[string]time.Time{}
	}
}

func (c *Config) CookieFor(domain string) string {
	return c.Cookies[domain]
}

func (c *Config) setCookie(domain, value string) {
	if c.Cookies == nil {
		c.Cookies = map[string]string{}
	}
	c.Cookies[domain] = strings.TrimSpace(value)
}

// SetCookie stores value for domain and stamps it with now.
func (c *Config) SetCookie(domain, value string, now time.Time) {
	c.setCookie(domain, value)
	if c.CookieUpdatedAt == nil {
		c.CookieUpdatedAt = map[string]time.Time{}
	}
	c.CookieUpdatedAt[domain] = now.UTC()
}

type Freshness string

const (
	Fresh   Freshness = "fresh"
	Stale   Freshness = "stale"
	Review  Freshness = "review"
	Unknown Freshness = "unknown"
)

// CookieFreshness grades the stored cookie of domain by its age.
func (c *Config) CookieFreshness(domain string, now time.Time) Freshness {
	if c.CookieFor(domain) == "" {
		return Unknown
	}

	at, ok := c.CookieUpdatedAt[domain]
	if !ok || at.IsZero() {
		return Unknown
	}

	switch age := now.Sub(at); {
	case age >= c.CookieReviewAfter:
		return Review
	case age >= c.CookieStaleAfter:
		return Stale
	}
	return Fresh
}

func (c *Config) Print() {
	c.Fprint(os.Stdout)
}

func (c *Config) Fprint(w io.Writer) {
	fmt.Fprintf(w, " -output: %s\n", c.Output)
	fmt.Fprintf(w, " -workers: %d\n", c.Workers)
	fmt.Fprintf(w, " -cbz: %t\n", c.CBZ)
	if c.WebPToJPG {
		fmt.Fprintf(w, " -webp_to_jpg: %t\n", c.WebPToJPG)
	}
	if c.Debug {
		fmt.Fprintf(w, " -debug: %t\n", c.Debug)
	}
	fmt.Fprintf(w, " -impersonate_tls: %t\n", c.ImpersonateTLS)
	if c.DefaultURL != "" {
		fmt.Fprintf(w, " -url: %s\n", c.DefaultURL)
	}
	if c.DefaultRange != "" {
		fmt.Fprintf(w, " -range: %s\n", c.DefaultRange)
	}
	if c.DefaultList != "" {
		fmt.Fprintf(w, " -list: %s\n", c.DefaultList)
	}

	domains := make([]string, 0, len(c.Cookies))
	for d := range c.Cookies {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	for _, d := range domains {
		if c.Cookies[d] == "" {
			continue
		}
		fmt.Fprintf(w, " -cookie[%s]: %s\n", d, mask(c.Cookies[d]))
	}

	if c.CookieFile != "" {
		fmt.Fprintf(w, " -cookie_file: %s\n", c.CookieFile)
	}
	if c.UserAgent != "" {
		fmt.Fprintf(w, " -user_agent: %s\n", c.UserAgent)
	}
	fmt.Fprintf(w, " -max_attempts: %d\n", c.MaxAttempts)
	fmt.Fprintf(w, " -retry_delay: %s\n", c.RetryDelay)
}

// mask keeps the first characters of a secret.
func mask(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:6] + "..." + fmt.Sprintf("(%d chars)", len(s))
}
