package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"
)

const (
	DefaultEndpoint     = "http://localhost:8090/compare"
	DefaultGalleryDir   = "."
	DefaultStubAddr     = ":8090"
	DefaultMaxPrompts   = 2
	DefaultAspectWidth  = 4
	DefaultAspectHeight = 3
)

// Compare configures the comparison endpoint client.
type Compare struct {
	Endpoint   string        `yaml:"endpoint" validate:"required,url"`
	Timeout    time.Duration `yaml:"timeout" validate:"min=0"`
	AuthSecret string        `yaml:"authSecret"`
}

// Picker holds the request knobs shared by the gallery and the camera.
type Picker struct {
	AspectWidth  int     `yaml:"aspectWidth" validate:"min=1"`
	AspectHeight int     `yaml:"aspectHeight" validate:"min=1"`
	Quality      float64 `yaml:"quality" validate:"gt=0,lte=1"`
	TempDir      string  `yaml:"tempDir"`
}

type Gallery struct {
	Dir string `yaml:"dir" validate:"required"`
}

type Camera struct {
	Device int `yaml:"device" validate:"min=0"`
}

type Permissions struct {
	Store      string `yaml:"store" validate:"oneof=memory redis"`
	RedisAddr  string `yaml:"redisAddr"`
	MaxPrompts int    `yaml:"maxPrompts" validate:"min=1"`
}

type Stub struct {
	Addr       string `yaml:"addr" validate:"required"`
	AuthSecret string `yaml:"authSecret"`
}

// Config is the application configuration shared by the screen and the stub endpoint.
type Config struct {
	LogLevel    string      `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	Compare     Compare     `yaml:"compare"`
	Picker      Picker      `yaml:"picker"`
	Gallery     Gallery     `yaml:"gallery"`
	Camera      Camera      `yaml:"camera"`
	Permissions Permissions `yaml:"permissions"`
	Stub        Stub        `yaml:"stub"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Compare: Compare{
			Endpoint: DefaultEndpoint,
		},
		Picker: Picker{
			AspectWidth:  DefaultAspectWidth,
			AspectHeight: DefaultAspectHeight,
			Quality:      1,
		},
		Gallery: Gallery{Dir: DefaultGalleryDir},
		Permissions: Permissions{
			Store:      "memory",
			MaxPrompts: DefaultMaxPrompts,
		},
		Stub: Stub{Addr: DefaultStubAddr},
	}
}

// Load reads configPath on top of the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Permissions.Store == "redis" && c.Permissions.RedisAddr == "" {
		return errors.New("invalid configuration: permissions.redisAddr is required for the redis store")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Compare.Endpoint, "COMPARE_ENDPOINT")
	setString(&cfg.Compare.AuthSecret, "COMPARE_AUTH_SECRET")
	setString(&cfg.Gallery.Dir, "GALLERY_DIR")
	setString(&cfg.Permissions.Store, "PERMISSION_STORE")
	setString(&cfg.Permissions.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Stub.Addr, "STUB_ADDR")
	setString(&cfg.Stub.AuthSecret, "STUB_AUTH_SECRET")

	if v := os.Getenv("COMPARE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COMPARE_TIMEOUT %q: %w", v, err)
		}
		cfg.Compare.Timeout = d
	}
	if v := os.Getenv("CAMERA_DEVICE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CAMERA_DEVICE %q: %w", v, err)
		}
		cfg.Camera.Device = n
	}
	return nil
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}
