package dao

import (
	"os"
	"time"

	"github.com/startdusk/go-dao/dao/internal/errs"
	"gopkg.in/yaml.v3"
)

// Config 是配置文件的结构
//
//	dialect: mysql
//	max_batch_size: 200
//	use_reflect: false
//	cache:
//	  capacity: 512
//	  evict_delay: 5m
//	  transfer: clone
//	perf:
//	  warn: 100ms
//	  error: 1s
type Config struct {
	Dialect      string    `yaml:"dialect"`
	MaxBatchSize int       `yaml:"max_batch_size"`
	UseReflect   bool      `yaml:"use_reflect"`
	Cache        CacheYAML `yaml:"cache"`
	Perf         PerfYAML  `yaml:"perf"`
}

type CacheYAML struct {
	Capacity   int           `yaml:"capacity"`
	EvictDelay time.Duration `yaml:"evict_delay"`
	Transfer   string        `yaml:"transfer"`
	Jitter     time.Duration `yaml:"jitter"`
}

// PerfYAML 是 DB 级别的慢查询阈值, 没有 perf 标记的 Dao 使用
type PerfYAML struct {
	Warn  time.Duration `yaml:"warn"`
	Error time.Duration `yaml:"error"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Dialect != "" {
		if _, err := DialectFor(cfg.Dialect); err != nil {
			return nil, err
		}
	}
	if _, ok := parseTransferMode(cfg.Cache.Transfer); !ok {
		return nil, errs.NewErrInvalidTagContent("transfer=" + cfg.Cache.Transfer)
	}
	return cfg, nil
}

// DBWithConfig 只覆盖配置文件里面写了的部分
func DBWithConfig(cfg *Config) DBOption {
	return func(db *DB) {
		if d, err := DialectFor(cfg.Dialect); err == nil {
			db.dialect = d
		}
		if cfg.MaxBatchSize > 0 {
			db.maxBatchSize = cfg.MaxBatchSize
		}
		if cfg.UseReflect {
			DBUseReflect()(db)
		}
		DBWithCacheDefaults(cfg.Cache.Capacity, cfg.Cache.EvictDelay)(db)
		if mode, ok := parseTransferMode(cfg.Cache.Transfer); ok && cfg.Cache.Transfer != "" {
			db.cacheDefaults.Transfer = mode
		}
		if cfg.Cache.Jitter > 0 {
			db.cacheDefaults.Jitter = cfg.Cache.Jitter
		}
		if cfg.Perf.Warn > 0 || cfg.Perf.Error > 0 {
			db.perfDefaults = PerfConfig{Warn: cfg.Perf.Warn, Error: cfg.Perf.Error}
		}
	}
}
