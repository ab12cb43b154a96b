package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	Development = "development"
	Production  = "production"
	Testing     = "testing"
)

// envOverrides 环境变量优先级最高，未设置的字段保持配置文件中的值
type envOverrides struct {
	Env            string `env:"CHATBOT_ENV"`
	Host           string `env:"CHATBOT_HOST"`
	Port           int    `env:"CHATBOT_PORT"`
	LogLevel       string `env:"CHATBOT_LOG_LEVEL"`
	LogPath        string `env:"CHATBOT_LOG_PATH"`
	DataFile       string `env:"CHATBOT_DATA_FILE"`
	UpstreamUrl    string `env:"CHATBOT_UPSTREAM_URL"`
	UpstreamApiKey string `env:"CHATBOT_UPSTREAM_API_KEY"`
	MysqlPassword  string `env:"CHATBOT_MYSQL_PASSWORD"`
	RedisPassword  string `env:"CHATBOT_REDIS_PASSWORD"`
	TrainSecret    string `env:"CHATBOT_TRAIN_SECRET"`
}

func loadEnvOverrides() (envOverrides, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	var overrides envOverrides
	if _, err := env.UnmarshalFromEnviron(&overrides); err != nil {
		return envOverrides{}, fmt.Errorf("environment overrides: %w", err)
	}
	return overrides, nil
}

func (o envOverrides) apply(conf *Config) {
	if o.Host != "" {
		conf.MainConfig.Host = o.Host
	}
	if o.Port != 0 {
		conf.MainConfig.Port = o.Port
	}
	if o.LogLevel != "" {
		conf.LogConfig.Level = o.LogLevel
	}
	if o.LogPath != "" {
		conf.LogConfig.LogPath = o.LogPath
	}
	if o.DataFile != "" {
		conf.ChatbotConfig.DataFile = o.DataFile
	}
	if o.UpstreamUrl != "" {
		conf.UpstreamConfig.BaseUrl = o.UpstreamUrl
	}
	if o.UpstreamApiKey != "" {
		conf.UpstreamConfig.ApiKey = o.UpstreamApiKey
	}
	if o.MysqlPassword != "" {
		conf.MysqlConfig.Password = o.MysqlPassword
	}
	if o.RedisPassword != "" {
		conf.RedisConfig.Password = o.RedisPassword
	}
	if o.TrainSecret != "" {
		conf.SecurityConfig.TrainSecret = o.TrainSecret
	}
}

// applyProfile 按运行环境调整日志级别、CORS 与数据文件，配置文件中显式写出的字段不覆盖
func (c *Config) applyProfile(meta *toml.MetaData) error {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = Development
	}

	level, dataFile := "", ""
	var origins []string
	switch c.Env {
	case Development:
		level = "debug"
	case Production:
		level = "warn"
		origins = []string{}
	case Testing:
		level = "fatal"
		dataFile = "backend/data/test_chatbot_data.json"
	default:
		return fmt.Errorf("unknown environment %q", c.Env)
	}

	if level != "" && !meta.IsDefined("logConfig", "level") {
		c.LogConfig.Level = level
	}
	if origins != nil && !meta.IsDefined("securityConfig", "corsOrigins") {
		c.SecurityConfig.CorsOrigins = origins
	}
	if dataFile != "" && !meta.IsDefined("chatbotConfig", "dataFile") {
		c.ChatbotConfig.DataFile = dataFile
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Env == Development }
func (c *Config) IsProduction() bool  { return c.Env == Production }
func (c *Config) IsTesting() bool     { return c.Env == Testing }
