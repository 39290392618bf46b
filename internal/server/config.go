package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/iwvelando/budget-optimizer/internal/config"
	"github.com/iwvelando/budget-optimizer/pkg/constants"
	"gopkg.in/yaml.v3"
)

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address        string               `yaml:"address"`
	MaxUploadSize  string               `yaml:"maxUploadSize"`
	RequestTimeout string               `yaml:"requestTimeout"`
	AppConfig      string               `yaml:"appConfig"`
	RateLimit      RateLimitConfig      `yaml:"rateLimit"`
	CORS           CORSConfig           `yaml:"cors"`
	Logging        config.LoggingConfig `yaml:"logging"`

	uploadSizeBytes int64
	requestTimeout  time.Duration
	rateLimitWindow time.Duration
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	Requests int    `yaml:"requests"`
	Window   string `yaml:"window"`
	Disabled bool   `yaml:"disabled"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// LoadConfig loads the server configuration from YAML. If the file does not exist,
// defaults are returned without error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Address:       constants.DefaultServerAddress,
		MaxUploadSize: fmt.Sprintf("%d", constants.DefaultMaxUploadSizeBytes),
		Logging:       config.LoggingConfig{},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read server config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse server config: %w", err)
			}
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UploadSizeBytes returns the configured upload size in bytes.
func (c *Config) UploadSizeBytes() int64 {
	return c.uploadSizeBytes
}

// RequestTimeoutDuration bounds a single request, including the server write timeout.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return c.requestTimeout
}

// RateLimitWindow returns the parsed rate limit window.
func (c *Config) RateLimitWindow() time.Duration {
	return c.rateLimitWindow
}

func (c *Config) normalize() error {
	if c.Address == "" {
		c.Address = constants.DefaultServerAddress
	}

	sizeStr := strings.TrimSpace(c.MaxUploadSize)
	if sizeStr == "" {
		c.uploadSizeBytes = constants.DefaultMaxUploadSizeBytes
		c.MaxUploadSize = fmt.Sprintf("%d", constants.DefaultMaxUploadSizeBytes)
	} else {
		bytes, err := ParseSize(sizeStr)
		if err != nil {
			return err
		}
		if bytes <= 0 {
			bytes = constants.DefaultMaxUploadSizeBytes
		}
		c.uploadSizeBytes = bytes
	}

	c.requestTimeout = constants.DefaultRequestTimeoutSeconds * time.Second
	if s := strings.TrimSpace(c.RequestTimeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid requestTimeout %q", c.RequestTimeout)
		}
		c.requestTimeout = d
	}

	if c.RateLimit.Requests <= 0 {
		c.RateLimit.Requests = constants.DefaultRateLimitRequests
	}
	c.rateLimitWindow = time.Minute
	if s := strings.TrimSpace(c.RateLimit.Window); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid rateLimit.window %q", c.RateLimit.Window)
		}
		c.rateLimitWindow = d
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	return nil
}

// ParseSize converts a human-friendly byte string (e.g., "256K", "10M") into bytes.
func ParseSize(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return constants.DefaultMaxUploadSizeBytes, nil
	}

	upper := strings.ToUpper(trimmed)
	idx := len(upper)
	for idx > 0 && !unicode.IsDigit(rune(upper[idx-1])) {
		idx--
	}
	if idx == 0 {
		return 0, fmt.Errorf("invalid size: %s", value)
	}
	numPart := strings.TrimSpace(upper[:idx])
	unitPart := strings.TrimSpace(upper[idx:])

	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", value, err)
	}

	var multiplier int64
	switch unitPart {
	case "", "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1024
	case "M", "MB":
		multiplier = 1024 * 1024
	case "G", "GB":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unsupported size unit %q", unitPart)
	}

	result := n * multiplier
	if result < 0 {
		return 0, fmt.Errorf("size overflow for value %s", value)
	}
	return result, nil
}
