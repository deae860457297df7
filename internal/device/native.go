package device

import (
	"context"
)

// NativeOp аппаратная команда стирания
type NativeOp string

const (
	OpSanitize    NativeOp = "sanitize"
	OpCryptoErase NativeOp = "crypto_erase"
	OpNVMeFormat  NativeOp = "nvme_format"
)

// NativeEraser абстракция над аппаратными командами устройства.
// Отсутствие поддержки команды считается ошибкой, а не поводом
// молча перейти на программную перезапись.
type NativeEraser interface {
	// Supports сообщает, доступна ли команда для устройства на этой платформе
	Supports(desc Descriptor, op NativeOp) bool

	// Execute выдаёт команду и ждёт её завершения устройством
	Execute(ctx context.Context, desc Descriptor, op NativeOp) error
}
