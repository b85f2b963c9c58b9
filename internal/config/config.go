package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 主配置结构
type Config struct {
	App       App       `yaml:"app"`
	Server    Server    `yaml:"server"`
	Database  DB        `yaml:"database"`
	Cache     Cache     `yaml:"cache"`
	Log       Log       `yaml:"log"`
	ShortCode ShortCode `yaml:"shortcode"`
	RateLimit Limit     `yaml:"rate_limit"`
}

// 应用配置
type App struct {
	Name    string `yaml:"name"`
	Mode    string `yaml:"mode"`
	Version string `yaml:"version"`
	Swagger bool   `yaml:"swagger"`
}

// 服务器配置，超时单位为秒
type Server struct {
	Port            int      `yaml:"port"`
	ReadTimeout     int      `yaml:"read_timeout"`
	WriteTimeout    int      `yaml:"write_timeout"`
	ShutdownTimeout int      `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// 数据库配置
// Driver 为 mysql 或 sqlite；sqlite 时 Name 为数据库文件路径
// DSN 非空时直接使用，忽略其余连接字段
type DB struct {
	Driver       string `yaml:"driver"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	Charset      string `yaml:"charset"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// 缓存配置（Redis），Host 为空表示不启用
type Cache struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// 日志配置
type Log struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// 短码配置
type ShortCode struct {
	Length      int `yaml:"length"`
	MaxAttempts int `yaml:"max_attempts"`
}

// 限流配置
type Limit struct {
	Enabled   bool     `yaml:"enabled"`
	Requests  int64    `yaml:"requests_per_minute"`
	Burst     int64    `yaml:"burst"`
	SkipPaths []string `yaml:"skip_paths"`
}

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		App: App{
			Name:    "tinylink",
			Mode:    "development",
			Version: "1.0",
		},
		Server: Server{
			Port:            3000,
			ReadTimeout:     10,
			WriteTimeout:    10,
			ShutdownTimeout: 10,
			CORSOrigins:     []string{"*"},
		},
		Database: DB{
			Driver:       "sqlite",
			Host:         "127.0.0.1",
			Port:         3306,
			Name:         "data/tinylink.db",
			Charset:      "utf8mb4",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		Cache: Cache{
			Port: 6379,
		},
		Log: Log{
			Level:      "info",
			Path:       "./logs/app.log",
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
		},
		ShortCode: ShortCode{
			Length:      6,
			MaxAttempts: 5,
		},
		RateLimit: Limit{
			Requests:  600,
			Burst:     60,
			SkipPaths: []string{"/healthz"},
		},
	}
}

// Load 加载配置：默认值 <- YAML 文件 <- .env / 环境变量
// 配置文件不存在时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	// .env 不存在时忽略
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookup("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT 无效: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("APP_MODE"); ok {
		c.App.Mode = v
	}
	if v, ok := lookup("DATABASE_DRIVER"); ok {
		c.Database.Driver = v
	}
	if v, ok := lookup("DATABASE_DSN"); ok {
		c.Database.DSN = v
	}
	if v, ok := lookup("REDIS_HOST"); ok {
		c.Cache.Host = v
	}
	if v, ok := lookup("REDIS_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_PORT 无效: %w", err)
		}
		c.Cache.Port = port
	}
	if v, ok := lookup("REDIS_PASSWORD"); ok {
		c.Cache.Password = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port 超出范围: %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	if c.ShortCode.Length < 6 || c.ShortCode.Length > 8 {
		return fmt.Errorf("shortcode.length 必须在 6-8 之间: %d", c.ShortCode.Length)
	}
	if c.ShortCode.MaxAttempts < 1 {
		return fmt.Errorf("shortcode.max_attempts 必须大于 0: %d", c.ShortCode.MaxAttempts)
	}
	if c.RateLimit.Enabled && c.RateLimit.Requests <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute 必须大于 0")
	}
	return nil
}

// IsProduction 是否为生产模式
func (c *Config) IsProduction() bool {
	return c.App.Mode == "production"
}
