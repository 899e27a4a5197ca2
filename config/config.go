package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config/config.yaml"

type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	MySQL  MySQLConfig  `yaml:"mysql"`
	Redis  RedisConfig  `yaml:"redis"`
	OSS    OSSConfig    `yaml:"oss"`
	MQ     MQConfig     `yaml:"mq"`
	JWT    JWTConfig    `yaml:"jwt"`
	Import ImportConfig `yaml:"import"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// gin运行模式: debug / release / test
	Mode string `yaml:"mode"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type OSSConfig struct {
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
	BucketName string `yaml:"bucket_name"`

	// 为空时使用默认凭证链（环境变量、ECS RAM角色等）
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`

	// 公共读bucket的访问前缀，例如 https://bucket.oss-cn-hangzhou.aliyuncs.com
	PublicBaseURL string        `yaml:"public_base_url"`
	PresignExpiry time.Duration `yaml:"presign_expiry"`
}

type MQConfig struct {
	NameServer string `yaml:"name_server"`
}

type JWTConfig struct {
	SecretKey string `yaml:"secret_key"`
}

type ImportConfig struct {
	MaxArchiveBytes int64 `yaml:"max_archive_bytes"`
	// 解压后所有文件的总大小上限
	MaxExtractedBytes int64         `yaml:"max_extracted_bytes"`
	ProgressTTL       time.Duration `yaml:"progress_ttl"`
	// 执行中的任务超过该时间未刷新心跳，可以被其他实例接管
	RunLease       time.Duration `yaml:"run_lease"`
	ArchivePrefix  string        `yaml:"archive_prefix"`
	DocumentPrefix string        `yaml:"document_prefix"`
}

// Cfg 全局配置
var Cfg = Default()

func init() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		return
	}

	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	Cfg = cfg
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
			Mode: "release",
		},
		Log: LogConfig{
			Level: "info",
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		OSS: OSSConfig{
			PresignExpiry: 15 * time.Minute,
		},
		MQ: MQConfig{
			NameServer: "127.0.0.1:9876",
		},
		Import: ImportConfig{
			MaxArchiveBytes:   512 << 20,
			MaxExtractedBytes: 2 << 30,
			ProgressTTL:       24 * time.Hour,
			RunLease:          2 * time.Minute,
			ArchivePrefix:     "imports",
			DocumentPrefix:    "associations",
		},
	}
}

// Load 读取yaml配置文件，未设置的字段保留默认值，随后应用环境变量覆盖
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %v", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %v", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"MYSQL_DSN", &c.MySQL.DSN},
		{"REDIS_ADDR", &c.Redis.Addr},
		{"OSS_ACCESS_KEY_ID", &c.OSS.AccessKeyID},
		{"OSS_ACCESS_KEY_SECRET", &c.OSS.AccessKeySecret},
		{"JWT_SECRET_KEY", &c.JWT.SecretKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// SlogLevel 将配置的日志级别转换为slog级别，无法识别时使用Info
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		slog.Warn("Unknown log level, falling back to info", "level", c.Log.Level)
		return slog.LevelInfo
	}
	return level
}
