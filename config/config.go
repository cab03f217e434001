// Package config loads storefront settings with Viper from defaults, an
// optional YAML file and STOREFRONT_ prefixed environment variables such as
// STOREFRONT_SERVER_PORT.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "STOREFRONT"

type Config struct {
	Server      ServerConfig    `mapstructure:"server" yaml:"server"`
	Paths       PathsConfig     `mapstructure:"paths" yaml:"paths"`
	Cache       CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Session     SessionConfig   `mapstructure:"session" yaml:"session"`
	Upload      UploadConfig    `mapstructure:"upload" yaml:"upload"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Log         LogConfig       `mapstructure:"log" yaml:"log"`
	Shop        ShopConfig      `mapstructure:"shop" yaml:"shop"`
	Development bool            `mapstructure:"development" yaml:"development"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size" yaml:"max_body_size"`
	CertFile        string        `mapstructure:"cert_file" yaml:"cert_file"`
	KeyFile         string        `mapstructure:"key_file" yaml:"key_file"`
	HTTP3Port       int           `mapstructure:"http3_port" yaml:"http3_port"`
}

// Addr is host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HTTP3Addr is empty when HTTP/3 is disabled.
func (s ServerConfig) HTTP3Addr() string {
	if s.HTTP3Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", s.Host, s.HTTP3Port)
}

type PathsConfig struct {
	Views    string `mapstructure:"views" yaml:"views"`
	Public   string `mapstructure:"public" yaml:"public"`
	Images   string `mapstructure:"images" yaml:"images"`
	Products string `mapstructure:"products" yaml:"products"`
	Users    string `mapstructure:"users" yaml:"users"`
}

type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	PurgeInterval time.Duration `mapstructure:"purge_interval" yaml:"purge_interval"`
}

type SessionConfig struct {
	Secure bool          `mapstructure:"secure" yaml:"secure"`
	MaxAge time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

type UploadConfig struct {
	Backend string   `mapstructure:"backend" yaml:"backend"`
	MaxSize int64    `mapstructure:"max_size" yaml:"max_size"`
	S3      S3Config `mapstructure:"s3" yaml:"s3"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	PublicURL       string `mapstructure:"public_url" yaml:"public_url"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name" yaml:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure" yaml:"insecure"`
	Metrics      bool   `mapstructure:"metrics" yaml:"metrics"`
	MetricsPath  string `mapstructure:"metrics_path" yaml:"metrics_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ShopConfig is the storefront's presentation: name, locale used for prices
// and dates, and the about page text.
type ShopConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Description string `mapstructure:"description" yaml:"description"`
	Founded     int    `mapstructure:"founded" yaml:"founded"`
	Locale      string `mapstructure:"locale" yaml:"locale"`
	Currency    string `mapstructure:"currency" yaml:"currency"`
	Featured    int    `mapstructure:"featured" yaml:"featured"`
}

// SetDefaults registers every key so environment overrides resolve.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_size", 10<<20)
	v.SetDefault("server.cert_file", "")
	v.SetDefault("server.key_file", "")
	v.SetDefault("server.http3_port", 0)

	v.SetDefault("paths.views", "views")
	v.SetDefault("paths.public", "public")
	v.SetDefault("paths.images", "public/images")
	v.SetDefault("paths.products", "data/products.json")
	v.SetDefault("paths.users", "data/users.json")

	v.SetDefault("cache.ttl", 600*time.Second)
	v.SetDefault("cache.purge_interval", 120*time.Second)

	v.SetDefault("session.secure", false)
	v.SetDefault("session.max_age", 24*time.Hour)

	v.SetDefault("upload.backend", "disk")
	v.SetDefault("upload.max_size", 5<<20)
	v.SetDefault("upload.s3.bucket", "")
	v.SetDefault("upload.s3.region", "us-east-1")
	v.SetDefault("upload.s3.endpoint", "")
	v.SetDefault("upload.s3.prefix", "products/")
	v.SetDefault("upload.s3.public_url", "")
	v.SetDefault("upload.s3.access_key_id", "")
	v.SetDefault("upload.s3.secret_access_key", "")
	v.SetDefault("upload.s3.use_path_style", false)

	v.SetDefault("telemetry.service_name", "storefront")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.metrics", true)
	v.SetDefault("telemetry.metrics_path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("shop.name", "Storefront")
	v.SetDefault("shop.description", "A small shop for technology products.")
	v.SetDefault("shop.founded", 2020)
	v.SetDefault("shop.locale", "en")
	v.SetDefault("shop.currency", "$")
	v.SetDefault("shop.featured", 3)

	v.SetDefault("development", false)
}

// New returns a Viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// ReadFile merges a YAML file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Redacted returns a copy without secrets, for display.
func (c Config) Redacted() Config {
	if c.Upload.S3.SecretAccessKey != "" {
		c.Upload.S3.SecretAccessKey = "********"
	}
	return c
}
