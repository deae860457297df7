//go:build linux

package device

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// listSystem перечисляет блочные устройства через /sys/block.
// Виртуальные устройства (loop, ram, dm) пропускаются.
func listSystem() []Descriptor {
	entries, err := os.ReadDir("/sys/block")
	if err != nil {
		return nil
	}

	var descs []Descriptor
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") ||
			strings.HasPrefix(name, "dm-") || strings.HasPrefix(name, "zram") {
			continue
		}

		sysPath := filepath.Join("/sys/block", name)
		descs = append(descs, Descriptor{
			Path:      "/dev/" + name,
			Type:      mediumTypeOf(sysPath, name),
			SizeBytes: sectorsToBytes(sysPath),
			Model:     sysAttr(sysPath, "device/model"),
			Serial:    sysAttr(sysPath, "device/serial"),
			Removable: sysAttr(sysPath, "removable") == "1",
		})
	}

	sort.Slice(descs, func(i, j int) bool { return descs[i].Path < descs[j].Path })
	return descs
}

// mediumTypeOf определяет тип носителя по sysfs
func mediumTypeOf(sysPath, name string) MediumType {
	if strings.HasPrefix(name, "nvme") {
		return MediumNVMe
	}
	if sysAttr(sysPath, "removable") == "1" {
		return MediumRemovable
	}
	switch sysAttr(sysPath, "queue/rotational") {
	case "1":
		return MediumHDD
	case "0":
		return MediumSSD
	}
	return MediumUnknown
}

// sectorsToBytes читает размер устройства (512-байтные секторы)
func sectorsToBytes(sysPath string) int64 {
	raw := sysAttr(sysPath, "size")
	sectors, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return sectors * 512
}

// sysAttr читает атрибут sysfs, пустая строка при ошибке
func sysAttr(sysPath, attr string) string {
	data, err := os.ReadFile(filepath.Join(sysPath, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
