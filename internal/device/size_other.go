//go:build !linux

package device

import (
	"io"
	"os"
)

// targetSize возвращает размер цели. Вне Linux для устройств
// используем seek в конец, для обычных файлов stat.
func targetSize(file *os.File) (int64, error) {
	info, err := file.Stat()
	if err != nil {
		return 0, err
	}

	if info.Mode()&os.ModeDevice == 0 {
		return info.Size(), nil
	}

	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	return size, nil
}
