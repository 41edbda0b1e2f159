package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

type GazetteConfig struct {
	BaseURL     string `yaml:"base_url"`
	SectionPath string `yaml:"section_path"`
}

type OpenAIConfig struct {
	ClassificationModel string `yaml:"classification_model"`
	SummaryModel        string `yaml:"summary_model"`
	RelevanceThreshold  int    `yaml:"relevance_threshold"`
}

type SMTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ReportConfig struct {
	Days int `yaml:"days"`
	Top  int `yaml:"top"`
}

type ScheduleConfig struct {
	Timezone string `yaml:"timezone"`
	Scrape   string `yaml:"scrape"`
	Report   string `yaml:"report"`
}

type Config struct {
	Gazette   GazetteConfig  `yaml:"gazette"`
	OpenAI    OpenAIConfig   `yaml:"openai"`
	SMTP      SMTPConfig     `yaml:"smtp"`
	Report    ReportConfig   `yaml:"report"`
	Schedule  ScheduleConfig `yaml:"schedule"`
	StorePath string         `yaml:"store_path"`

	// Secrets, resolved from the environment (never from the yaml file).
	OpenAIAPIKey  string `yaml:"-"`
	EmailFrom     string `yaml:"-"`
	EmailTo       string `yaml:"-"`
	EmailPassword string `yaml:"-"`
	TestMode      bool   `yaml:"-"`
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "boletin", "config.yaml")
}

// ExcelPath returns the configured store location, defaulting to the XDG
// data directory.
func (c *Config) ExcelPath() string {
	if c.StorePath != "" {
		return c.StorePath
	}
	return filepath.Join(xdg.DataHome, "boletin", "resoluciones_relevantes.xlsx")
}

func (c *Config) LogDir() string {
	return filepath.Join(xdg.StateHome, "boletin", "logs")
}

// SectionURL is the gazette listing page for the first section.
func (c *Config) SectionURL() string {
	return c.Gazette.BaseURL + c.Gazette.SectionPath
}

// RecipientsTo splits the comma-separated EMAIL_TO list, dropping blanks.
func (c *Config) RecipientsTo() []string {
	var out []string
	for _, addr := range strings.Split(c.EmailTo, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the yaml config (writing the embedded defaults on first run),
// then resolves secrets from the environment. A .env file in the working
// directory is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultConfigPath()
	}

	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Write defaults to config path on first run; non-fatal if it fails.
		_ = writeDefaults(path)
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.EmailFrom = os.Getenv("EMAIL_FROM")
	cfg.EmailTo = os.Getenv("EMAIL_TO")
	cfg.EmailPassword = os.Getenv("EMAIL_PASSWORD")
	cfg.TestMode = parseBool(os.Getenv("TEST_MODE"))

	return cfg, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Gazette.BaseURL)
	if err != nil {
		return fmt.Errorf("gazette base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gazette base_url scheme must be http or https, got %q", u.Scheme)
	}
	if cfg.OpenAI.RelevanceThreshold < 0 || cfg.OpenAI.RelevanceThreshold > 100 {
		return fmt.Errorf("relevance_threshold must be in [0,100], got %d", cfg.OpenAI.RelevanceThreshold)
	}
	if cfg.Report.Days <= 0 {
		return fmt.Errorf("report days must be positive, got %d", cfg.Report.Days)
	}
	return nil
}

// Validate checks that required credentials are present. Email settings are
// only required by the report path.
func (c *Config) Validate(requireEmail bool) error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if requireEmail {
		if c.EmailFrom == "" {
			return fmt.Errorf("EMAIL_FROM is required for sending emails")
		}
		if c.EmailPassword == "" {
			return fmt.Errorf("EMAIL_PASSWORD is required for sending emails")
		}
		if !c.TestMode && c.EmailTo == "" {
			return fmt.Errorf("EMAIL_TO is required when not in test mode")
		}
	}
	return nil
}
