package device

import (
	"fmt"
	"io"
	"os"
)

// Target адресуемое пространство устройства или файла-цели.
// Стратегии затирания работают только через этот интерфейс.
type Target interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
	Sync() error
	Close() error
}

// FileTarget цель на основе обычного файла или блочного устройства
type FileTarget struct {
	file *os.File
	size int64
}

// OpenFileTarget открывает файл или блочное устройство на запись
func OpenFileTarget(path string) (*FileTarget, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	size, err := targetSize(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to determine size of %s: %w", path, err)
	}

	return &FileTarget{file: file, size: size}, nil
}

func (ft *FileTarget) ReadAt(p []byte, off int64) (int, error) {
	return ft.file.ReadAt(p, off)
}

func (ft *FileTarget) WriteAt(p []byte, off int64) (int, error) {
	return ft.file.WriteAt(p, off)
}

func (ft *FileTarget) Size() int64 {
	return ft.size
}

func (ft *FileTarget) Sync() error {
	return ft.file.Sync()
}

func (ft *FileTarget) Close() error {
	return ft.file.Close()
}

// Open открывает цель по дескриптору. Демо-устройства берутся из
// реестра симуляции, остальные пути открываются как файлы.
func Open(desc Descriptor) (Target, error) {
	if desc.IsDemo() {
		sim, ok := Demo().Lookup(desc.Path)
		if !ok {
			return nil, fmt.Errorf("demo device %s is not registered", desc.Path)
		}
		return sim.OpenTarget(), nil
	}
	return OpenFileTarget(desc.Path)
}
