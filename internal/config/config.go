package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Download  DownloadConfig  `mapstructure:"download"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Session   SessionConfig   `mapstructure:"session"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// GeneratorConfig 描述远端梗图生成服务，BaseURL 必须可由外部配置
type GeneratorConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Path    string `mapstructure:"path"`
	// 0 表示不在客户端设置超时，沿用传输层默认行为
	Timeout time.Duration `mapstructure:"timeout"`
}

// Endpoint 返回完整的生成接口地址
func (g GeneratorConfig) Endpoint() string {
	path := g.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(g.BaseURL, "/") + path
}

type CatalogConfig struct {
	URL     string        `mapstructure:"url"`
	Limit   int           `mapstructure:"limit"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DownloadConfig struct {
	Filename string        `mapstructure:"filename"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"`
	DataDir   string `mapstructure:"data_dir"`
	CacheSize int    `mapstructure:"cache_size"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("generator.base_url", "http://127.0.0.1:8000")
	v.SetDefault("generator.path", "/generate_meme")
	v.SetDefault("generator.timeout", 0)

	v.SetDefault("catalog.url", "https://api.imgflip.com/get_memes")
	v.SetDefault("catalog.limit", 20)
	v.SetDefault("catalog.timeout", 15*time.Second)

	v.SetDefault("download.filename", "generated-meme.jpg")
	v.SetDefault("download.timeout", 30*time.Second)
	v.SetDefault("download.max_bytes", 20<<20)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept"})
	v.SetDefault("cors.exposed_headers", []string{})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.cleanup_interval", 10*time.Minute)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.cache_size", 100)
	v.SetDefault("storage.redis_addr", "127.0.0.1:6379")
	v.SetDefault("storage.redis_db", 0)
}

// Load 读取配置文件；文件不存在时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MEME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(configPath); !os.IsNotExist(statErr) {
				return nil, err
			}
		}
	}

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, err
	}

	// 兼容前端常用的环境变量名
	if os.Getenv("MEME_GENERATOR_BASE_URL") == "" {
		if baseURL := os.Getenv("GENERATOR_BASE_URL"); baseURL != "" {
			loaded.Generator.BaseURL = baseURL
		}
	}

	return loaded, nil
}
