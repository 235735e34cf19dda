package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		BaseURL string        `yaml:"base_url" validate:"required,url"`
		Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	} `yaml:"server"`
	Chat struct {
		Variant       string `yaml:"variant" validate:"oneof=current legacy"`
		SystemMessage string `yaml:"system_message"`
	} `yaml:"chat"`
	Files struct {
		PageSize   int      `yaml:"page_size" validate:"min=1,max=100"`
		Categories []string `yaml:"categories" validate:"min=1,dive,required"`
	} `yaml:"files"`
	Logging struct {
		File string `yaml:"file" validate:"required"`
		Mode string `yaml:"mode" validate:"oneof=dev prod"`
	} `yaml:"logging"`
}

var validate = validator.New()

// Dir returns the directory holding the config file and default log.
func Dir() string {
	return filepath.Join(os.Getenv("HOME"), ".docchat")
}

// Load loads configuration from file, then applies environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	configPath := filepath.Join(Dir(), "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// .env is optional; a missing file is not an error
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save saves configuration to file
func (c *Config) Save() error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filepath.Join(Dir(), "config.yaml"), data, 0644)
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Server.BaseURL = "http://localhost:8080"
	cfg.Server.Timeout = 5 * time.Minute
	cfg.Chat.Variant = "current"
	cfg.Files.PageSize = 10
	cfg.Files.Categories = []string{"매뉴얼", "가이드", "보고서", "기타"}
	cfg.Logging.File = filepath.Join(Dir(), "docchat.log")
	cfg.Logging.Mode = "dev"

	return cfg
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DOCCHAT_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("DOCCHAT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DOCCHAT_TIMEOUT: %w", err)
		}
		c.Server.Timeout = d
	}
	if v := os.Getenv("DOCCHAT_VARIANT"); v != "" {
		c.Chat.Variant = v
	}
	if v := os.Getenv("DOCCHAT_SYSTEM_MESSAGE"); v != "" {
		c.Chat.SystemMessage = v
	}
	if v := os.Getenv("DOCCHAT_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DOCCHAT_PAGE_SIZE: %w", err)
		}
		c.Files.PageSize = n
	}
	if v := os.Getenv("DOCCHAT_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("DOCCHAT_LOG_MODE"); v != "" {
		c.Logging.Mode = v
	}
	return nil
}
