package wipe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"go.uber.org/zap"

	"zerotrace/internal/device"
	"zerotrace/internal/method"
)

// Eraser общий контракт стратегий затирания
type Eraser interface {
	Run(ctx context.Context, desc device.Descriptor, m method.WipeMethod, obs Observer) (*VerificationRecord, error)
}

// ForMethod выбирает стратегию для метода. Закрытое множество
// вариантов: программная перезапись либо аппаратная команда.
func ForMethod(m method.WipeMethod, native device.NativeEraser, opts Options, logger *zap.Logger) Eraser {
	if m.RequiresHardware {
		return NewHardwareEraser(native, logger)
	}
	return NewPatternEraser(opts, logger)
}

// hashSample вычисляет SHA-256 первой области цели
func hashSample(target device.Target, sampleSize int64) (string, error) {
	if sampleSize > target.Size() {
		sampleSize = target.Size()
	}

	buf := GetBuffer(int(sampleSize))
	defer PutBuffer(buf)

	n, err := target.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return "", ClassifyDeviceError(err)
	}

	sum := sha256.Sum256(buf[:n])
	return hex.EncodeToString(sum[:]), nil
}
