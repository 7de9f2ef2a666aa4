package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Mail       MailConfig       `mapstructure:"mail"`
	Log        LogConfig        `mapstructure:"log"`
	Conference ConferenceConfig `mapstructure:"conference"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// MailConfig 邮件配置
// Provider: sendgrid | log（log 仅写日志，用于开发环境）
type MailConfig struct {
	Provider       string        `mapstructure:"provider"`
	SendgridAPIKey string        `mapstructure:"sendgrid_api_key"`
	From           string        `mapstructure:"from"`
	Nickname       string        `mapstructure:"nickname"`
	Templates      MailTemplates `mapstructure:"templates"`
}

// MailTemplates 通知邮件模板。缴费模板支持 {school} {reason}，
// 主席团报销模板支持 {name} {region} {trip}
type MailTemplates struct {
	PaymentSuccess            string `mapstructure:"payment_success"`
	PaymentFailure            string `mapstructure:"payment_failure"`
	PaymentSuccess2           string `mapstructure:"payment_success_2"`
	PaymentFailure2           string `mapstructure:"payment_failure_2"`
	DaisReimbursementComplete string `mapstructure:"dais_reimbursement_complete"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ConferenceConfig 会务流程配置
type ConferenceConfig struct {
	// MaxPaymentRound 允许提交缴费凭证的轮次上限（不含）
	MaxPaymentRound int `mapstructure:"max_payment_round"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8002)
	v.SetDefault("server.base_url", "http://localhost:8002")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "hwmun")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Shanghai")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// 无默认值的键也需注册，否则 AutomaticEnv 在 Unmarshal 时不生效
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "12h")

	v.SetDefault("mail.provider", "log")
	v.SetDefault("mail.sendgrid_api_key", "")
	v.SetDefault("mail.templates.payment_success", "")
	v.SetDefault("mail.templates.payment_failure", "")
	v.SetDefault("mail.templates.payment_success_2", "")
	v.SetDefault("mail.templates.payment_failure_2", "")
	v.SetDefault("mail.templates.dais_reimbursement_complete", "")
	v.SetDefault("mail.from", "noreply@hwmun.org")
	v.SetDefault("mail.nickname", "汇文国际模拟联合国大会组委会")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("conference.max_payment_round", 3)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("HWMUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	switch c.Mail.Provider {
	case "log":
	case "sendgrid":
		if c.Mail.SendgridAPIKey == "" {
			return fmt.Errorf("配置校验失败: mail.provider=sendgrid 时 mail.sendgrid_api_key 不能为空")
		}
	default:
		return fmt.Errorf("配置校验失败: 不支持的 mail.provider %q", c.Mail.Provider)
	}
	if c.Conference.MaxPaymentRound <= 0 {
		return fmt.Errorf("配置校验失败: conference.max_payment_round 必须为正数")
	}
	return nil
}
