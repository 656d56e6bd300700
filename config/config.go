package config

import (
	"errors"
	"log"
	"time"

	"taskmanager/pkg/config"
)

type Config struct {
	App      config.AppConfig      `yaml:"app"`
	DB       config.DBConfig       `yaml:"db"`
	Redis    config.RedisConfig    `yaml:"redis"`
	MQ       config.MQConfig       `yaml:"mq"`
	JWT      config.JWTConfig      `yaml:"jwt"`
	Server   config.ServerConfig   `yaml:"server"`
	Throttle config.ThrottleConfig `yaml:"throttle"`
}

// Load reads config/base.yaml plus the CONFIG_ENV overlay and applies
// environment overrides. It exits the process on an unusable configuration.
func Load() *Config {
	cfg, err := LoadFrom(config.GetConfigEnv(), config.DefaultDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func LoadFrom(env, dir string) (*Config, error) {
	var cfg Config
	if err := config.Load(env, dir, &cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖（生产环境使用）
	config.OverrideAppFromEnv(&cfg.App)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)

	applyDefaults(&cfg)

	if cfg.JWT.Secret == "" {
		return nil, errors.New("jwt secret is required (set JWT_SECRET)")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "Task Manager API"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "local"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":4000"
	}
	if cfg.JWT.TTL <= 0 {
		cfg.JWT.TTL = 7 * 24 * time.Hour
	}
	if cfg.Throttle.MaxFailures <= 0 {
		cfg.Throttle.MaxFailures = 10
	}
	if cfg.Throttle.Window <= 0 {
		cfg.Throttle.Window = 15 * time.Minute
	}
	if cfg.DB.MaxConns <= 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.DB.MinConns <= 0 {
		cfg.DB.MinConns = 2
	}
}
