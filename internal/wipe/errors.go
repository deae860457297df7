package wipe

import (
	"io/fs"
	"syscall"

	"github.com/cockroachdb/errors"
)

// Классификация ошибок устройства. Любая ошибка ввода-вывода
// немедленно прерывает стратегию; повторные попытки остаются
// на усмотрение вызывающей стороны.
var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrDeviceRemoved       = errors.New("device removed")
	ErrDeviceBusy          = errors.New("device busy")
	ErrIO                  = errors.New("i/o failure")
	ErrHardwareUnsupported = errors.New("hardware command unsupported")
	ErrHardwareFailed      = errors.New("hardware command failed")
	ErrVerificationFailed  = errors.New("post-wipe verification failed")
)

// ClassifyDeviceError помечает ошибку устройства одной из категорий
func ClassifyDeviceError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM):
		return errors.Mark(err, ErrPermissionDenied)
	case errors.Is(err, syscall.ENODEV) || errors.Is(err, syscall.ENXIO) || errors.Is(err, fs.ErrNotExist):
		return errors.Mark(err, ErrDeviceRemoved)
	case errors.Is(err, syscall.EBUSY):
		return errors.Mark(err, ErrDeviceBusy)
	default:
		return errors.Mark(err, ErrIO)
	}
}
