package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host" validate:"required"`
	Port    int    `toml:"port" validate:"min=1,max=65535"`
	Env     string `toml:"env"`
}

type LogConfig struct {
	LogPath    string `toml:"logPath"`
	Level      string `toml:"level"`
	MaxSize    int    `toml:"maxSize" validate:"gte=0"`
	MaxBackups int    `toml:"maxBackups" validate:"gte=0"`
	MaxAge     int    `toml:"maxAge" validate:"gte=0"`
}

type ChatbotConfig struct {
	DataFile            string  `toml:"dataFile" validate:"required"`
	DefaultDataFile     string  `toml:"defaultDataFile" validate:"required"`
	DefaultApplication  string  `toml:"defaultApplication" validate:"required"`
	ConfidenceThreshold float64 `toml:"confidenceThreshold" validate:"gte=0,lte=1"`
	MaxMessageLength    int     `toml:"maxMessageLength" validate:"gt=0"`
}

type UpstreamConfig struct {
	BaseUrl string        `toml:"baseUrl" validate:"omitempty,url"`
	ApiKey  string        `toml:"apiKey"`
	Timeout time.Duration `toml:"timeout"`
}

type MysqlConfig struct {
	Enable       bool   `toml:"enable"`
	Host         string `toml:"host" validate:"required_if=Enable true"`
	Port         int    `toml:"port"`
	User         string `toml:"user" validate:"required_if=Enable true"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName" validate:"required_if=Enable true"`
}

type RedisConfig struct {
	Enable   bool   `toml:"enable"`
	Host     string `toml:"host" validate:"required_if=Enable true"`
	Port     int    `toml:"port"`
	Password string `toml:"password"`
	Db       int    `toml:"db" validate:"gte=0"`
}

type SecurityConfig struct {
	CorsOrigins        []string `toml:"corsOrigins"`
	RateLimitPerMinute int      `toml:"rateLimitPerMinute" validate:"gte=0"`
	CertFile           string   `toml:"certFile"`
	KeyFile            string   `toml:"keyFile"`
	// TrainSecret 非空时 POST /api/train 需要携带 admin 角色的 JWT
	TrainSecret string        `toml:"trainSecret"`
	TokenTtl    time.Duration `toml:"tokenTtl"`
}

type BootstrapConfig struct {
	PythonBin     string        `toml:"pythonBin" validate:"required"`
	VenvDir       string        `toml:"venvDir" validate:"required"`
	Requirements  string        `toml:"requirements" validate:"required"`
	Directories   []string      `toml:"directories" validate:"dive,required"`
	CorpusBaseUrl string        `toml:"corpusBaseUrl" validate:"required,url"`
	// CorpusDir 为空时使用 <venvDir>/nltk_data
	CorpusDir     string        `toml:"corpusDir"`
	Corpora       []string      `toml:"corpora" validate:"dive,required"`
	Timeout       time.Duration `toml:"timeout"`
}

type Config struct {
	MainConfig      `toml:"mainConfig"`
	LogConfig       `toml:"logConfig"`
	ChatbotConfig   `toml:"chatbotConfig"`
	UpstreamConfig  `toml:"upstreamConfig"`
	MysqlConfig     `toml:"mysqlConfig"`
	RedisConfig     `toml:"redisConfig"`
	SecurityConfig  `toml:"securityConfig"`
	BootstrapConfig `toml:"bootstrapConfig"`
}

// DefaultConfigPaths 配置文件路径优先级：本地环境 -> 系统目录
var DefaultConfigPaths = []string{
	"configs/config.toml",
	"/etc/chatbot/config.toml",
}

// Default 返回内置默认配置，未在配置文件中出现的字段沿用这里的值
func Default() *Config {
	return &Config{
		MainConfig: MainConfig{
			AppName: "Multi-Purpose Chatbot",
			Host:    "0.0.0.0",
			Port:    5000,
			Env:     Development,
		},
		LogConfig: LogConfig{
			LogPath:    "backend/logs/chatbot.log",
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
		},
		ChatbotConfig: ChatbotConfig{
			DataFile:            "backend/data/chatbot_data.json",
			DefaultDataFile:     "config/default_data.json",
			DefaultApplication:  "customer_support",
			ConfidenceThreshold: 0.3,
			MaxMessageLength:    1000,
		},
		UpstreamConfig: UpstreamConfig{
			Timeout: 30 * time.Second,
		},
		MysqlConfig: MysqlConfig{
			Host: "127.0.0.1",
			Port: 3306,
		},
		RedisConfig: RedisConfig{
			Host: "127.0.0.1",
			Port: 6379,
		},
		SecurityConfig: SecurityConfig{
			CorsOrigins:        []string{"*"},
			RateLimitPerMinute: 100,
			TokenTtl:           24 * time.Hour,
		},
		BootstrapConfig: BootstrapConfig{
			PythonBin:     "python3",
			VenvDir:       "venv",
			Requirements:  "requirements.txt",
			Directories:   []string{"backend/data", "backend/logs", "backend/models", "tests/fixtures"},
			CorpusBaseUrl: "https://raw.githubusercontent.com/nltk/nltk_data/gh-pages/packages",
			Corpora:       []string{"tokenizers/punkt", "corpora/wordnet"},
			Timeout:       5 * time.Minute,
		},
	}
}

// LoadConfig 依次尝试候选路径，第一个存在的文件覆盖默认值；
// 随后按运行环境调整，最后应用环境变量
func LoadConfig(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = DefaultConfigPaths
	}
	conf := Default()

	var meta toml.MetaData
	loaded := false
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		md, err := toml.DecodeFile(path, conf)
		if err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
		meta = md
		log.Printf("Successfully loaded config from: %s", path)
		loaded = true
		break
	}
	if !loaded {
		log.Printf("No config file found in %v, using defaults", paths)
	}

	overrides, err := loadEnvOverrides()
	if err != nil {
		return nil, err
	}
	if overrides.Env != "" {
		conf.Env = overrides.Env
	}
	if err := conf.applyProfile(&meta); err != nil {
		return nil, err
	}
	overrides.apply(conf)
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

var validate = validator.New()

// Validate 检查字段取值范围，启用 MySQL/Redis 时要求连接参数完整
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr 服务监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.MainConfig.Host, c.MainConfig.Port)
}
