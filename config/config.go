package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	OSS        OSSConfig        `mapstructure:"oss"`
	OAuth      OAuthConfig      `mapstructure:"oauth"`
	Email      EmailConfig      `mapstructure:"email"`
	Queue      QueueConfig      `mapstructure:"queue"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Credits    CreditsConfig    `mapstructure:"credits"`
	Conversion ConversionConfig `mapstructure:"conversion"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql, sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
	ReportPrefix    string `mapstructure:"report_prefix"`
}

type OAuthConfig struct {
	Github GithubOAuthConfig `mapstructure:"github"`
}

type GithubOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type QueueConfig struct {
	PaymentQueue   string `mapstructure:"payment_queue"`
	ReconcileQueue string `mapstructure:"reconcile_queue"`
	MaxWorkers     int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// CreditsConfig 积分发放策略
type CreditsConfig struct {
	SignupFree      int    `mapstructure:"signup_free"`       // 注册赠送免费积分
	MonthlyFree     int    `mapstructure:"monthly_free"`      // 每月免费积分额度
	ShareDays       int    `mapstructure:"share_days"`        // 共享有效天数
	DefaultPlanDays int    `mapstructure:"default_plan_days"` // 购买积分默认有效天数
	PlanCredits     int    `mapstructure:"plan_credits"`      // 默认套餐积分数
	DefaultPlan     string `mapstructure:"default_plan"`
}

// ConversionConfig 代码转换上游配置
type ConversionConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Cost           int           `mapstructure:"cost"`
	FreeLanguages  []string      `mapstructure:"free_languages"`
	PaidLanguages  []string      `mapstructure:"paid_languages"`
	MaxSourceBytes int           `mapstructure:"max_source_bytes"`
}

// LedgerConfig 账本执行参数
type LedgerConfig struct {
	DebitTimeout time.Duration `mapstructure:"debit_timeout"`
	SharedRetry  int           `mapstructure:"shared_retry"`
}

type RateLimitConfig struct {
	ConvertPerMinute int `mapstructure:"convert_per_minute"`
}

// AdminConfig 内部接口（支付回调、管理员充值）的访问令牌
type AdminConfig struct {
	Token string `mapstructure:"token"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultFreeLanguages 免费用户可用的语言
var DefaultFreeLanguages = []string{"python", "java", "javascript", "cpp", "c", "typescript"}

// ApplyDefaults 补全未配置项
func (c *Config) ApplyDefaults() {
	if c.Credits.SignupFree == 0 {
		c.Credits.SignupFree = 25
	}
	if c.Credits.MonthlyFree == 0 {
		c.Credits.MonthlyFree = 25
	}
	if c.Credits.ShareDays == 0 {
		c.Credits.ShareDays = 30
	}
	if c.Credits.DefaultPlanDays == 0 {
		c.Credits.DefaultPlanDays = 30
	}
	if c.Credits.PlanCredits == 0 {
		c.Credits.PlanCredits = 250
	}
	if c.Credits.DefaultPlan == "" {
		c.Credits.DefaultPlan = "monthly"
	}
	if c.Conversion.Cost == 0 {
		c.Conversion.Cost = 1
	}
	if c.Conversion.Timeout == 0 {
		c.Conversion.Timeout = 60 * time.Second
	}
	if len(c.Conversion.FreeLanguages) == 0 {
		c.Conversion.FreeLanguages = DefaultFreeLanguages
	}
	if c.Conversion.MaxSourceBytes == 0 {
		c.Conversion.MaxSourceBytes = 64 * 1024
	}
	if c.Ledger.DebitTimeout == 0 {
		c.Ledger.DebitTimeout = 5 * time.Second
	}
	if c.Ledger.SharedRetry == 0 {
		c.Ledger.SharedRetry = 3
	}
	if c.RateLimit.ConvertPerMinute == 0 {
		c.RateLimit.ConvertPerMinute = 5
	}
	if c.Queue.PaymentQueue == "" {
		c.Queue.PaymentQueue = "codemorph:payments"
	}
	if c.Queue.ReconcileQueue == "" {
		c.Queue.ReconcileQueue = "codemorph:reconcile"
	}
	if c.Queue.MaxWorkers == 0 {
		c.Queue.MaxWorkers = 2
	}
	if c.JWT.ExpireHours == 0 {
		c.JWT.ExpireHours = 24 * 7
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.OSS.ReportPrefix == "" {
		c.OSS.ReportPrefix = "reconcile"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 检查配置是否可用，一次返回全部问题
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.JWT.Secret == "" {
		result = multierror.Append(result, errors.New("jwt.secret is required"))
	}
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Host == "" || c.Database.Database == "" {
			result = multierror.Append(result, errors.New("database.host and database.database are required for mysql"))
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			result = multierror.Append(result, errors.New("database.sqlite_path is required for sqlite"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Conversion.Cost < 1 {
		result = multierror.Append(result, fmt.Errorf("conversion.cost must be positive, got %d", c.Conversion.Cost))
	}
	if c.Credits.ShareDays < 1 {
		result = multierror.Append(result, fmt.Errorf("credits.share_days must be positive, got %d", c.Credits.ShareDays))
	}
	for _, lang := range c.Conversion.PaidLanguages {
		if c.Conversion.IsFreeLanguage(lang) {
			result = multierror.Append(result, fmt.Errorf("language %q is listed as both free and paid", lang))
		}
	}

	return result.ErrorOrNil()
}

// IsFreeLanguage 判断语言是否对免费用户开放
func (c *ConversionConfig) IsFreeLanguage(lang string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	for _, l := range c.FreeLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
