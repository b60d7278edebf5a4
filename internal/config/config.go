package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type TikaConfig struct {
	Enable bool   `toml:"enable"`
	Host   string `toml:"host"`
	Port   int    `toml:"port"`
}

// SourceConfig configures one external metadata source.
type SourceConfig struct {
	Enable                 bool   `toml:"enable"`
	Url                    string `toml:"url"`
	MillisecondsPerRequest uint   `toml:"milliseconds_per_request"`
}

type HttpConfig struct {
	TimeoutMilliseconds uint   `toml:"timeout_ms"`
	UserAgent           string `toml:"user_agent"`
}

type CoverConfig struct {
	Probe               bool `toml:"probe"`
	TimeoutMilliseconds uint `toml:"timeout_ms"`
}

type CacheConfig struct {
	Backend       string `toml:"backend"`
	Path          string `toml:"path"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	File   string `toml:"file"`
	Format string `toml:"format"`
}

type advanced struct {
	ParallelSources              bool `toml:"parallel_sources"`
	MaxCharactersToSearchForIsbn uint `toml:"max_characters_to_search_for_isbn"`
}

type Config struct {
	OpenLibrary SourceConfig `toml:"openlibrary"`
	Google      SourceConfig `toml:"google"`
	Amazon      SourceConfig `toml:"amazon"`
	Http        HttpConfig   `toml:"http"`
	Cover       CoverConfig  `toml:"cover"`
	Cache       CacheConfig  `toml:"cache"`
	Tika        TikaConfig   `toml:"tika"`
	Server      ServerConfig `toml:"server"`
	Log         LogConfig    `toml:"log"`
	Advanced    advanced     `toml:"advanced"`
}

const (
	CacheBackendBolt   = "bolt"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

var Defaults = map[string]any{
	"tika.port": 9998,

	"openlibrary.url":                      "https://openlibrary.org",
	"openlibrary.milliseconds_per_request": 1000,

	"google.url":                      "https://www.googleapis.com/books/v1/volumes",
	"google.milliseconds_per_request": 1500,

	"amazon.url":                      "https://www.amazon.com",
	"amazon.milliseconds_per_request": 3000,

	"http.timeout_ms": 10000,
	"http.user_agent": "shelf/1.0 (+https://github.com/larkwiot/shelf)",

	"cover.timeout_ms": 5000,

	"cache.backend":    CacheBackendBolt,
	"cache.path":       "~/.cache/shelf/isbn.db",
	"cache.redis_addr": "localhost:6379",

	"server.listen": "127.0.0.1:8080",

	"log.level":  "info",
	"log.format": "text",

	"advanced.max_characters_to_search_for_isbn": 10000,
}

// Default is the configuration used when no file exists: every source
// enabled, cover probing on, bolt cache.
func Default() *Config {
	c := &Config{
		OpenLibrary: SourceConfig{Enable: true},
		Google:      SourceConfig{Enable: true},
		Amazon:      SourceConfig{Enable: true},
		Cover:       CoverConfig{Probe: true},
	}
	if err := c.Validate(); err != nil {
		panic(err)
	}
	return c
}

func NewConfig(configPath string) (*Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	return Parse(string(configData))
}

func Parse(data string) (*Config, error) {
	var config Config
	_, err := toml.Decode(data, &config)
	if err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

func defaultSource(c *SourceConfig, name string) {
	if len(c.Url) == 0 {
		c.Url = Defaults[name+".url"].(string)
	}
	if c.MillisecondsPerRequest == 0 {
		c.MillisecondsPerRequest = uint(Defaults[name+".milliseconds_per_request"].(int))
	}
}

func (c *Config) Validate() error {
	if c.Tika.Enable {
		errorMsg := "%s must be configured if tika is enabled"

		if len(c.Tika.Host) == 0 {
			return fmt.Errorf(errorMsg, "tika.host")
		}
		if c.Tika.Port == 0 {
			c.Tika.Port = Defaults["tika.port"].(int)
		}
	}

	if !c.OpenLibrary.Enable && !c.Google.Enable && !c.Amazon.Enable {
		return fmt.Errorf("at least one of openlibrary, google or amazon must be enabled")
	}
	defaultSource(&c.OpenLibrary, "openlibrary")
	defaultSource(&c.Google, "google")
	defaultSource(&c.Amazon, "amazon")

	if c.Http.TimeoutMilliseconds == 0 {
		c.Http.TimeoutMilliseconds = uint(Defaults["http.timeout_ms"].(int))
	}
	if len(c.Http.UserAgent) == 0 {
		c.Http.UserAgent = Defaults["http.user_agent"].(string)
	}

	if c.Cover.TimeoutMilliseconds == 0 {
		c.Cover.TimeoutMilliseconds = uint(Defaults["cover.timeout_ms"].(int))
	}

	if len(c.Cache.Backend) == 0 {
		c.Cache.Backend = Defaults["cache.backend"].(string)
	}
	switch c.Cache.Backend {
	case CacheBackendBolt:
		if len(c.Cache.Path) == 0 {
			c.Cache.Path = Defaults["cache.path"].(string)
		}
	case CacheBackendRedis:
		if len(c.Cache.RedisAddr) == 0 {
			c.Cache.RedisAddr = Defaults["cache.redis_addr"].(string)
		}
	case CacheBackendMemory:
	default:
		return fmt.Errorf("cache.backend must be one of %s, %s or %s, got %q", CacheBackendBolt, CacheBackendRedis, CacheBackendMemory, c.Cache.Backend)
	}

	if len(c.Server.Listen) == 0 {
		c.Server.Listen = Defaults["server.listen"].(string)
	}

	if len(c.Log.Level) == 0 {
		c.Log.Level = Defaults["log.level"].(string)
	}
	if len(c.Log.Format) == 0 {
		c.Log.Format = Defaults["log.format"].(string)
	}

	if c.Advanced.MaxCharactersToSearchForIsbn == 0 {
		c.Advanced.MaxCharactersToSearchForIsbn = uint(Defaults["advanced.max_characters_to_search_for_isbn"].(int))
	}

	return nil
}

func (c *Config) HttpTimeout() time.Duration {
	return time.Duration(c.Http.TimeoutMilliseconds) * time.Millisecond
}

func (c *Config) CoverTimeout() time.Duration {
	return time.Duration(c.Cover.TimeoutMilliseconds) * time.Millisecond
}

func (s *SourceConfig) Interval() time.Duration {
	return time.Duration(s.MillisecondsPerRequest) * time.Millisecond
}
