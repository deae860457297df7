package wipe

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"zerotrace/internal/device"
	"zerotrace/internal/method"
)

// HardwareEraser делегирует затирание контроллеру устройства
// (ATA Sanitize, NVMe Format, crypto-erase). Поддержка проверяется
// до любого деструктивного действия; тихого отката на программную
// перезапись нет.
type HardwareEraser struct {
	native device.NativeEraser
	logger *zap.Logger
}

// NewHardwareEraser создаёт стратегию аппаратного затирания
func NewHardwareEraser(native device.NativeEraser, logger *zap.Logger) *HardwareEraser {
	return &HardwareEraser{native: native, logger: logger}
}

// Run выполняет аппаратную команду затирания
func (he *HardwareEraser) Run(ctx context.Context, desc device.Descriptor, m method.WipeMethod, obs Observer) (*VerificationRecord, error) {
	op := device.NativeOp(m.HardwareOp)

	if he.native == nil || !he.native.Supports(desc, op) {
		err := errors.Newf("device %s does not support %s", desc.Path, op)
		return nil, errors.Mark(errors.Mark(err, ErrHardwareUnsupported), method.ErrMethodUnsupported)
	}

	he.logger.Info("Запуск аппаратного затирания",
		zap.String("device", desc.Path),
		zap.String("method", m.ID),
		zap.String("op", string(op)))

	obs.progress(5, "Issuing "+string(op)+" command...", 0)

	if err := he.native.Execute(ctx, desc, op); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errors.Mark(
			errors.Wrapf(err, "%s on %s", op, desc.Path),
			ErrHardwareFailed)
	}

	obs.progress(95, "Controller reported completion", 0)

	record := &VerificationRecord{
		Method:          m.ID,
		PassesCompleted: m.Passes,
		// Контроллер уничтожил данные (для crypto-erase через ключ)
		KeyDestroyed:  op == device.OpCryptoErase || op == device.OpNVMeFormat,
		DataDestroyed: true,
		VerifiedAt:    time.Now().UTC(),
	}

	obs.progress(100, "Wipe completed", 0)
	return record, nil
}
