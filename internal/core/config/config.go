package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper
var cfg *Config

// Config App-wide configuration
type Config struct {
	Database    DatabaseConfig    `mapstructure:"-"`
	Redis       RedisConfig       `mapstructure:"-"`
	App         AppConfig         `mapstructure:"-"`
	JWT         JWTConfig         `mapstructure:"-"`
	Cache       CacheConfig       `mapstructure:"-"`
	Snowflake   SnowflakeConfig   `mapstructure:"-"`
	Logging     LoggingConfig     `mapstructure:"-"`
	Maintenance MaintenanceConfig `mapstructure:"-"`
	Security    SecurityConfig    `mapstructure:"-"`
}

// DatabaseConfig MySQL Database Configuration
type DatabaseConfig struct {
	Driver          string // mysql 或 sqlite
	Path            string // sqlite 数据库文件
	Host            string
	Port            int
	Username        string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// RedisConfig Redis Configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// AppConfig Application Configuration
type AppConfig struct {
	Host string
	Port int
	Mode string
}

// JWTConfig JWT Configuration
type JWTConfig struct {
	Secret string
	Expiry int // token 过期时间(秒)
}

// CacheConfig Cache Configuration
type CacheConfig struct {
	L1SizeMB int
	L2TTL    int
}

// SnowflakeConfig Snowflake Configuration
type SnowflakeConfig struct {
	WorkerID int64
}

// LoggingConfig Logging Configuration
type LoggingConfig struct {
	Level  string
	Output string
}

// SecurityConfig 管理接口访问控制
type SecurityConfig struct {
	AllowIPs  []string // 允许访问管理接口的 IP 或 CIDR，内网地址总是允许
	DenyIPs   []string
	RateLimit int // 每个 IP 每分钟请求数，0 表示不限制
}

// MaintenanceConfig 维护任务（重新统计）配置
type MaintenanceConfig struct {
	StepBudget     time.Duration // 单次请求的执行预算
	MinIncrement   int
	MaxIncrement   int
	JobTokenTTL    time.Duration // 续跑 token 有效期
	JobTokenIssuer string
}

// Init Initialize configuration with Viper
func Init(configPath string) error {
	v = viper.New()
	cfg = &Config{}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量覆盖
	v.SetEnvPrefix("FORUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs()

	return parseConfig()
}

// setDefaults 设置默认值
func setDefaults() {
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.mode", "release")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.name", "forum")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("cache.l1_size_mb", 16)
	v.SetDefault("cache.l2_ttl", 3600)

	v.SetDefault("snowflake.worker_id", 0)

	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiry", 86400)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("maintenance.step_budget", "3s")
	v.SetDefault("maintenance.min_increment", 50)
	v.SetDefault("maintenance.max_increment", 2000)
	v.SetDefault("maintenance.job_token_ttl", "1h")
	v.SetDefault("maintenance.job_token_issuer", "forum-maintenance")

	v.SetDefault("security.rate_limit", 120)
}

// bindEnvs 绑定环境变量
func bindEnvs() {
	v.BindEnv("database.host", "FORUM_DATABASE_HOST")
	v.BindEnv("database.port", "FORUM_DATABASE_PORT")
	v.BindEnv("database.username", "FORUM_DATABASE_USERNAME")
	v.BindEnv("database.password", "FORUM_DATABASE_PASSWORD")
	v.BindEnv("database.name", "FORUM_DATABASE_NAME")

	v.BindEnv("redis.host", "FORUM_REDIS_HOST")
	v.BindEnv("redis.port", "FORUM_REDIS_PORT")
	v.BindEnv("redis.password", "FORUM_REDIS_PASSWORD")

	v.BindEnv("jwt.secret", "FORUM_JWT_SECRET")
}

// parseConfig 解析配置到结构体
func parseConfig() error {
	cfg.Database.Driver = v.GetString("database.driver")
	cfg.Database.Path = v.GetString("database.path")
	cfg.Database.Host = v.GetString("database.host")
	cfg.Database.Port = v.GetInt("database.port")
	cfg.Database.Username = v.GetString("database.username")
	cfg.Database.Password = v.GetString("database.password")
	cfg.Database.Name = v.GetString("database.name")
	cfg.Database.MaxOpenConns = v.GetInt("database.max_open_conns")
	cfg.Database.MaxIdleConns = v.GetInt("database.max_idle_conns")
	cfg.Database.ConnMaxLifetime = v.GetInt("database.conn_max_lifetime")

	cfg.Redis.Host = v.GetString("redis.host")
	cfg.Redis.Port = v.GetInt("redis.port")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")
	cfg.Redis.PoolSize = v.GetInt("redis.pool_size")

	cfg.App.Host = v.GetString("app.host")
	cfg.App.Port = v.GetInt("app.port")
	cfg.App.Mode = v.GetString("app.mode")

	cfg.JWT.Secret = v.GetString("jwt.secret")
	cfg.JWT.Expiry = v.GetInt("jwt.expiry")

	cfg.Cache.L1SizeMB = v.GetInt("cache.l1_size_mb")
	cfg.Cache.L2TTL = v.GetInt("cache.l2_ttl")

	cfg.Snowflake.WorkerID = v.GetInt64("snowflake.worker_id")

	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Output = v.GetString("logging.output")

	cfg.Maintenance.StepBudget = v.GetDuration("maintenance.step_budget")
	cfg.Maintenance.MinIncrement = v.GetInt("maintenance.min_increment")
	cfg.Maintenance.MaxIncrement = v.GetInt("maintenance.max_increment")
	cfg.Maintenance.JobTokenTTL = v.GetDuration("maintenance.job_token_ttl")
	cfg.Maintenance.JobTokenIssuer = v.GetString("maintenance.job_token_issuer")

	cfg.Security.AllowIPs = v.GetStringSlice("security.allow_ips")
	cfg.Security.DenyIPs = v.GetStringSlice("security.deny_ips")
	cfg.Security.RateLimit = v.GetInt("security.rate_limit")

	if d := cfg.Database.Driver; d != "mysql" && d != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", d)
	}

	if cfg.Maintenance.MinIncrement <= 0 || cfg.Maintenance.MaxIncrement < cfg.Maintenance.MinIncrement {
		return fmt.Errorf("invalid maintenance increments: min=%d max=%d",
			cfg.Maintenance.MinIncrement, cfg.Maintenance.MaxIncrement)
	}

	return nil
}

// Get 获取配置实例
func Get() *Config {
	return cfg
}

// DefaultMaintenance 返回默认的维护配置（测试和 CLI 未加载配置文件时使用）
func DefaultMaintenance() MaintenanceConfig {
	return MaintenanceConfig{
		StepBudget:     3 * time.Second,
		MinIncrement:   50,
		MaxIncrement:   2000,
		JobTokenTTL:    time.Hour,
		JobTokenIssuer: "forum-maintenance",
	}
}

// GetDSN 按驱动生成 DSN
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", c.Path)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.Username, c.Password, c.Host, c.Port, c.Name)
}

// GetRedisAddr Get Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetServerAddr Get server address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
