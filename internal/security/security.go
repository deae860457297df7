package security

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"zerotrace/internal/config"
	"zerotrace/internal/device"
)

// Guard проверяет допустимость устройства перед затиранием.
// Системные тома и явно исключённые устройства отклоняются до
// любого деструктивного действия.
type Guard struct {
	cfg config.SecurityConfig
}

// NewGuard создаёт проверку политики допуска
func NewGuard(cfg config.SecurityConfig) *Guard {
	return &Guard{cfg: cfg}
}

// Check возвращает ошибку, если устройство затирать нельзя
func (g *Guard) Check(desc device.Descriptor, force bool) error {
	if desc.IsDemo() {
		return nil
	}

	for _, excluded := range g.cfg.ExcludedDevices {
		if matched, _ := filepath.Match(excluded, desc.Path); matched || excluded == desc.Path {
			return fmt.Errorf("device %s is excluded by policy", desc.Path)
		}
	}

	if !g.cfg.AllowSystemDevices && isSystemDevice(desc.Path) {
		return fmt.Errorf("device %s holds a mounted system volume", desc.Path)
	}

	if g.cfg.RequireForce && !force {
		return fmt.Errorf("wiping %s requires explicit confirmation (force flag)", desc.Path)
	}

	return nil
}

// isSystemDevice проверяет, смонтирован ли корень или /boot с
// этого устройства
func isSystemDevice(devicePath string) bool {
	mounts, err := os.Open("/proc/mounts")
	if err != nil {
		// Нет /proc (не Linux), проверка недоступна
		return false
	}
	defer mounts.Close()

	scanner := bufio.NewScanner(mounts)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		source, mountPoint := fields[0], fields[1]
		if !strings.HasPrefix(source, devicePath) {
			continue
		}
		if mountPoint == "/" || mountPoint == "/boot" || strings.HasPrefix(mountPoint, "/boot/") {
			return true
		}
	}
	return false
}
