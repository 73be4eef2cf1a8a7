// 包 config 负责加载与校验应用配置（settings.yaml），
// 支持 .env 与环境变量覆盖，对外提供结构体 Config 及默认值/合法性校验。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 环境变量覆盖项（优先于 settings.yaml）。
const (
	EnvCacheDB   = "KEIBA_CACHE_DB"
	EnvCourse    = "KEIBA_COURSE"
	EnvLogLevel  = "KEIBA_LOG_LEVEL"
	EnvLogFormat = "KEIBA_LOG_FORMAT"
)

type Config struct {
	CacheDB   string `yaml:"CACHE_DB"`
	Course    string `yaml:"COURSE"`
	Source    Source `yaml:"SOURCE"`
	Proxy     Proxy  `yaml:"PROXY"`
	LogLevel  string `yaml:"LOG_LEVEL"`
	LogFormat string `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale string `yaml:"LOG_LOCALE"` // zh-CN|ja|en
	LogColor  string `yaml:"LOG_COLOR"`  // auto|always|never
}

// Source 为数据源站点配置。
type Source struct {
	// CalendarURL 为月历页模板，含 {year} 与 {month} 占位符
	CalendarURL     string        `yaml:"calendar_url"`
	Preset          string        `yaml:"preset"`
	Timeout         time.Duration `yaml:"timeout"`
	Retry           int           `yaml:"retry"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

// Load 读取 .env（可缺省）与 YAML，叠加环境变量覆盖后校验。
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Default 返回仅由环境变量与默认值构成的配置（无 settings.yaml 时使用）。
func Default() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.CacheDB, EnvCacheDB)
	set(&c.Course, EnvCourse)
	set(&c.LogLevel, EnvLogLevel)
	set(&c.LogFormat, EnvLogFormat)
}

func (c *Config) Validate() error {
	if c.Source.Retry < 0 {
		return errors.New("SOURCE.retry must be >= 0")
	}
	if c.Source.Timeout < 0 || c.Source.RetryDelay < 0 || c.Source.BreakerCooldown < 0 {
		return errors.New("SOURCE durations must be >= 0")
	}
	if c.Source.CalendarURL != "" &&
		(!strings.Contains(c.Source.CalendarURL, "{year}") || !strings.Contains(c.Source.CalendarURL, "{month}")) {
		return fmt.Errorf("SOURCE.calendar_url must contain {year} and {month}: %s", c.Source.CalendarURL)
	}
	switch c.LogFormat {
	case "":
		c.LogFormat = "pretty"
	case "pretty", "json", "text":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT: %s", c.LogFormat)
	}
	if c.CacheDB == "" {
		c.CacheDB = "data/cache.db"
	}
	if c.Course == "" {
		c.Course = "門別"
	}
	if c.Source.CalendarURL == "" {
		c.Source.CalendarURL = "https://www.jbis.or.jp/race/calendar/?year={year}&month={month}"
	}
	if c.Source.Preset == "" {
		c.Source.Preset = "jbis"
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 25 * time.Second
	}
	if c.Source.Retry == 0 {
		c.Source.Retry = 2
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}
