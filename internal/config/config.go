package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	API    APIConfig    `mapstructure:"api"`
	Export ExportConfig `mapstructure:"export"`
	Fonts  FontsConfig  `mapstructure:"fonts"`
	Redis  RedisConfig  `mapstructure:"redis"`
	S3     S3Config     `mapstructure:"s3"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port    string        `mapstructure:"port"`
	Mode    string        `mapstructure:"mode"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type APIConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	ProxyURL string        `mapstructure:"proxy_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// DataDir, when set, serves compositions from local JSON files instead
	// of the API.
	DataDir string `mapstructure:"data_dir"`
}

type ExportConfig struct {
	Dir          string        `mapstructure:"dir"`
	Pause        time.Duration `mapstructure:"pause"`
	WaitCeiling  time.Duration `mapstructure:"wait_ceiling"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Sink         string        `mapstructure:"sink"`
}

type FontsConfig struct {
	Dir string `mapstructure:"dir"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	SinkDir = "dir"
	SinkS3  = "s3"
)

// keys lists every setting so env-only deployments still unmarshal.
var keys = []string{
	"server.port", "server.mode", "server.timeout",
	"api.base_url", "api.proxy_url", "api.timeout", "api.data_dir",
	"export.dir", "export.pause", "export.wait_ceiling", "export.poll_interval", "export.sink",
	"fonts.dir",
	"redis.addr", "redis.password", "redis.db", "redis.ttl",
	"s3.endpoint", "s3.region", "s3.bucket", "s3.access_key", "s3.secret_key", "s3.use_ssl",
	"log.level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("api.timeout", 12*time.Second)
	v.SetDefault("export.dir", "./exports")
	v.SetDefault("export.pause", 500*time.Millisecond)
	v.SetDefault("export.wait_ceiling", 10*time.Second)
	v.SetDefault("export.poll_interval", 100*time.Millisecond)
	v.SetDefault("export.sink", SinkDir)
	v.SetDefault("redis.ttl", time.Hour)
	v.SetDefault("log.level", "info")
}

// Load reads .env (when present), an optional config.yaml from ./config or
// the working directory, then environment variables such as API_BASE_URL.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return parse(v)
}

func parse(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.ProxyURL == "" && cfg.API.BaseURL != "" {
		cfg.API.ProxyURL = cfg.API.BaseURL + "/image-proxy"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Export.Sink {
	case SinkDir:
	case SinkS3:
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			return errors.New("config: export.sink=s3 needs s3.endpoint and s3.bucket")
		}
	default:
		return fmt.Errorf("config: unknown export.sink %q", c.Export.Sink)
	}
	if c.Export.Pause < 0 || c.Export.WaitCeiling < 0 || c.Export.PollInterval < 0 {
		return errors.New("config: export durations must not be negative")
	}
	return nil
}

func mask(s string) string {
	if s == "" {
		return "(empty)"
	}
	return "********"
}

func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  Server: port=%s mode=%s timeout=%s\n", c.Server.Port, c.Server.Mode, c.Server.Timeout)
	fmt.Fprintf(&sb, "  API: base=%s proxy=%s timeout=%s data=%s\n", c.API.BaseURL, c.API.ProxyURL, c.API.Timeout, c.API.DataDir)
	fmt.Fprintf(&sb, "  Export: sink=%s dir=%s pause=%s wait=%s poll=%s\n",
		c.Export.Sink, c.Export.Dir, c.Export.Pause, c.Export.WaitCeiling, c.Export.PollInterval)
	fmt.Fprintf(&sb, "  Fonts: dir=%s\n", c.Fonts.Dir)
	fmt.Fprintf(&sb, "  Redis: addr=%s db=%d ttl=%s password=%s\n", c.Redis.Addr, c.Redis.DB, c.Redis.TTL, mask(c.Redis.Password))
	fmt.Fprintf(&sb, "  S3: endpoint=%s region=%s bucket=%s ssl=%v access=%s secret=%s\n",
		c.S3.Endpoint, c.S3.Region, c.S3.Bucket, c.S3.UseSSL, mask(c.S3.AccessKey), mask(c.S3.SecretKey))
	fmt.Fprintf(&sb, "  Log: level=%s\n", c.Log.Level)
	return sb.String()
}
