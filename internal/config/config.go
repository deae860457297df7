package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Конфигурация движка затирания и сертификации
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Security  SecurityConfig  `yaml:"security"`
	Signing   SigningConfig   `yaml:"signing"`
	Reporting ReportingConfig `yaml:"reporting"`
	Logging   LoggingConfig   `yaml:"logging"`
	API       APIConfig       `yaml:"api"`
}

// EngineConfig параметры исполнителя затирания
type EngineConfig struct {
	MaxConcurrent  int     `yaml:"max_concurrent"`
	ChunkSize      int64   `yaml:"chunk_size"`
	MaxSpeedMBps   float64 `yaml:"max_speed_mbps"`
	SyncInterval   int64   `yaml:"sync_interval"`
	HashSampleSize int64   `yaml:"hash_sample_size"`
	MaxDuration    string  `yaml:"max_duration"`
}

// SecurityConfig политика допуска устройств
type SecurityConfig struct {
	ExcludedDevices    []string `yaml:"excluded_devices"`
	AllowSystemDevices bool     `yaml:"allow_system_devices"`
	RequireForce       bool     `yaml:"require_force"`
}

// SigningConfig параметры подписи сертификатов
type SigningConfig struct {
	KeysDir   string `yaml:"keys_dir"`
	Algorithm string `yaml:"algorithm"`
}

// ReportingConfig параметры сохранения отчётов и сертификатов
type ReportingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	LocalPath string `yaml:"local_path"`
	Format    string `yaml:"format"`
}

// LoggingConfig параметры логирования
type LoggingConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	Development bool   `yaml:"development"`
}

// APIConfig параметры HTTP интерфейса
type APIConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Listen       string  `yaml:"listen"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
	RateBurst    int     `yaml:"rate_burst"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxConcurrent:  2,
			ChunkSize:      4 * 1024 * 1024, // 4MB
			MaxSpeedMBps:   0,               // без лимита
			SyncInterval:   512 * 1024 * 1024,
			HashSampleSize: 1024 * 1024, // первый 1MB устройства
			MaxDuration:    "",
		},
		Security: SecurityConfig{
			ExcludedDevices:    []string{},
			AllowSystemDevices: false,
			RequireForce:       true,
		},
		Signing: SigningConfig{
			KeysDir:   "./keys",
			Algorithm: "RSA-PSS-SHA256",
		},
		Reporting: ReportingConfig{
			Enabled:   true,
			LocalPath: "./reports",
			Format:    "json",
		},
		Logging: LoggingConfig{
			Level:       "INFO",
			File:        "",
			Development: false,
		},
		API: APIConfig{
			Enabled:      false,
			Listen:       "127.0.0.1:8436",
			RateLimitRPS: 10,
			RateBurst:    20,
		},
	}
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Валидация конфигурации
	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate проверяет конфигурацию на валидность
func Validate(config *Config) error {
	if config.Engine.MaxConcurrent <= 0 || config.Engine.MaxConcurrent > 10 {
		return fmt.Errorf("max concurrent must be between 1 and 10, got %d", config.Engine.MaxConcurrent)
	}

	if config.Engine.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.Engine.ChunkSize)
	}
	if config.Engine.ChunkSize > 256*1024*1024 { // 256MB max
		return fmt.Errorf("chunk size too large (max 256MB), got %d", config.Engine.ChunkSize)
	}

	if config.Engine.MaxSpeedMBps < 0 {
		return fmt.Errorf("max speed cannot be negative, got %f", config.Engine.MaxSpeedMBps)
	}

	if config.Engine.HashSampleSize <= 0 {
		return fmt.Errorf("hash sample size must be positive, got %d", config.Engine.HashSampleSize)
	}

	if config.Engine.MaxDuration != "" {
		if _, err := time.ParseDuration(config.Engine.MaxDuration); err != nil {
			return fmt.Errorf("invalid max duration format: %s", config.Engine.MaxDuration)
		}
	}

	validLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}
	if !validLevels[config.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	if config.Signing.KeysDir == "" {
		return fmt.Errorf("keys dir must not be empty")
	}
	if config.Signing.Algorithm != "RSA-PSS-SHA256" {
		return fmt.Errorf("unsupported signing algorithm: %s", config.Signing.Algorithm)
	}

	if config.Reporting.Enabled && config.Reporting.LocalPath == "" {
		return fmt.Errorf("reporting enabled but local path is empty")
	}

	if config.API.Enabled {
		if config.API.Listen == "" {
			return fmt.Errorf("api enabled but listen address is empty")
		}
		if config.API.RateLimitRPS <= 0 {
			return fmt.Errorf("api rate limit must be positive, got %f", config.API.RateLimitRPS)
		}
	}

	return nil
}

// Save сохраняет конфигурацию в файл
func Save(config *Config, path string) error {
	// Валидация перед сохранением
	if err := Validate(config); err != nil {
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetMaxDuration возвращает максимальную длительность операции
func (config *Config) GetMaxDuration() time.Duration {
	if config.Engine.MaxDuration == "" {
		return 0 // Без лимита
	}

	duration, err := time.ParseDuration(config.Engine.MaxDuration)
	if err != nil {
		return 2 * time.Hour // Fallback
	}

	return duration
}
