package device

import (
	"fmt"
	"strings"
)

// MediumType тип носителя
type MediumType string

const (
	MediumHDD       MediumType = "hdd"
	MediumSSD       MediumType = "ssd"
	MediumNVMe      MediumType = "nvme"
	MediumRemovable MediumType = "removable"
	MediumUnknown   MediumType = "unknown"
)

// Descriptor неизменяемый снимок устройства на момент старта сессии.
// Движок не перечитывает параметры устройства во время работы.
type Descriptor struct {
	Path      string     `json:"path"`
	Type      MediumType `json:"type"`
	SizeBytes int64      `json:"size_bytes"`
	Model     string     `json:"model"`
	Serial    string     `json:"serial"`
	Removable bool       `json:"removable"`
}

// ParseMediumType разбирает тип носителя из строки
func ParseMediumType(s string) MediumType {
	switch strings.ToLower(s) {
	case "hdd":
		return MediumHDD
	case "ssd":
		return MediumSSD
	case "nvme":
		return MediumNVMe
	case "removable", "usb":
		return MediumRemovable
	default:
		return MediumUnknown
	}
}

// Validate проверяет дескриптор на пригодность к затиранию
func (d Descriptor) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("device path is empty")
	}
	if d.SizeBytes <= 0 {
		return fmt.Errorf("device %s has invalid size %d", d.Path, d.SizeBytes)
	}
	return nil
}

// IsDemo сообщает, что устройство симулируемое (demo:// схема)
func (d Descriptor) IsDemo() bool {
	return strings.HasPrefix(d.Path, DemoScheme)
}
