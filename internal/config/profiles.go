package config

import (
	"fmt"
)

// ApplyProfile применяет профиль производительности к конфигурации
func ApplyProfile(cfg *Config, profile string) error {
	switch profile {
	case "safe":
		cfg.Engine.MaxSpeedMBps = 10
		cfg.Engine.ChunkSize = 1 * 1024 * 1024 // 1MB
		cfg.Engine.MaxConcurrent = 1
	case "balanced":
		cfg.Engine.MaxSpeedMBps = 50
		cfg.Engine.ChunkSize = 4 * 1024 * 1024 // 4MB
		cfg.Engine.MaxConcurrent = 2
	case "aggressive":
		cfg.Engine.MaxSpeedMBps = 0              // без лимита
		cfg.Engine.ChunkSize = 64 * 1024 * 1024 // 64MB
		cfg.Engine.MaxConcurrent = 4
	default:
		return fmt.Errorf("неизвестный профиль: %s", profile)
	}
	return nil
}
