package device

import (
	"fmt"
	"os"
	"strings"
)

// Resolve строит дескриптор устройства по пути. Демо-пути берутся
// из реестра симуляции, системные из перечисления блочных
// устройств, остальное открывается как обычный файл.
func Resolve(path string) (Descriptor, error) {
	if strings.HasPrefix(path, DemoScheme) {
		dev, ok := Demo().Lookup(path)
		if !ok {
			return Descriptor{}, fmt.Errorf("demo device %s is not registered", path)
		}
		return dev.Descriptor(), nil
	}

	for _, desc := range listSystem() {
		if desc.Path == path {
			return desc, nil
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("device %s is not accessible: %w", path, err)
	}

	desc := Descriptor{Path: path, Type: MediumUnknown}
	if info.Mode().IsRegular() {
		desc.SizeBytes = info.Size()
		return desc, nil
	}

	// Блочное устройство вне перечисления: размер через открытие
	target, err := OpenFileTarget(path)
	if err != nil {
		return Descriptor{}, err
	}
	defer target.Close()
	desc.SizeBytes = target.Size()
	return desc, nil
}

// List возвращает все известные устройства: демо-реестр и блочные
// устройства системы
func List() []Descriptor {
	descs := Demo().List()
	descs = append(descs, listSystem()...)
	return descs
}
