package device

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ExecEraser реализует аппаратные команды через системные утилиты
// (hdparm для ATA, nvme-cli для NVMe)
type ExecEraser struct {
	logger *zap.Logger

	// подменяется в тестах
	lookPath func(name string) (string, error)
}

// NewExecEraser создает новый ExecEraser
func NewExecEraser(logger *zap.Logger) *ExecEraser {
	return &ExecEraser{
		logger:   logger,
		lookPath: exec.LookPath,
	}
}

// Supports проверяет доступность команды для устройства
func (ne *ExecEraser) Supports(desc Descriptor, op NativeOp) bool {
	if desc.IsDemo() {
		return false
	}

	switch op {
	case OpNVMeFormat:
		if desc.Type != MediumNVMe {
			return false
		}
		_, err := ne.lookPath("nvme")
		return err == nil
	case OpSanitize:
		if desc.Type != MediumHDD && desc.Type != MediumSSD {
			return false
		}
		_, err := ne.lookPath("hdparm")
		return err == nil
	case OpCryptoErase:
		if desc.Type == MediumNVMe {
			_, err := ne.lookPath("nvme")
			return err == nil
		}
		if desc.Type == MediumHDD || desc.Type == MediumSSD {
			_, err := ne.lookPath("hdparm")
			return err == nil
		}
		return false
	default:
		return false
	}
}

// Execute выдаёт аппаратную команду и ждёт завершения
func (ne *ExecEraser) Execute(ctx context.Context, desc Descriptor, op NativeOp) error {
	ne.logger.Info("Выдача аппаратной команды",
		zap.String("device", desc.Path),
		zap.String("op", string(op)))

	switch op {
	case OpNVMeFormat:
		return ne.nvmeFormat(ctx, desc.Path)
	case OpSanitize:
		return ne.ataSanitize(ctx, desc.Path)
	case OpCryptoErase:
		if desc.Type == MediumNVMe {
			return ne.nvmeFormat(ctx, desc.Path)
		}
		return ne.ataSecurityErase(ctx, desc.Path)
	default:
		return fmt.Errorf("unknown native op: %s", op)
	}
}

// nvmeFormat выполняет nvme format с криптографическим стиранием (--ses=1)
func (ne *ExecEraser) nvmeFormat(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, "nvme", "format", path, "--ses=1", "--pi=0")
	output, err := cmd.CombinedOutput()
	if err != nil {
		ne.logger.Error("Ошибка nvme format", zap.String("device", path), zap.String("output", string(output)), zap.Error(err))
		return fmt.Errorf("nvme format failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	ne.logger.Info("NVMe format завершён", zap.String("device", path))
	return nil
}

// ataSecurityErase выполняет ATA security erase через hdparm.
// Устанавливаем одноразовый пароль и сразу выполняем erase.
func (ne *ExecEraser) ataSecurityErase(ctx context.Context, path string) error {
	password := randomPassword()

	cmd := exec.CommandContext(ctx, "hdparm", "--user-master", "u", "--security-set-pass", password, path)
	if output, err := cmd.CombinedOutput(); err != nil {
		ne.logger.Error("Ошибка установки ATA пароля", zap.String("device", path), zap.String("output", string(output)), zap.Error(err))
		return fmt.Errorf("ata security-set-pass failed: %w", err)
	}

	cmd = exec.CommandContext(ctx, "hdparm", "--security-erase", password, path)
	if output, err := cmd.CombinedOutput(); err != nil {
		ne.logger.Error("Ошибка ATA security erase", zap.String("device", path), zap.String("output", string(output)), zap.Error(err))
		return fmt.Errorf("ata security-erase failed: %w", err)
	}

	ne.logger.Info("ATA security erase завершён", zap.String("device", path))
	return nil
}

// ataSanitize выполняет ATA sanitize и опрашивает статус до завершения
func (ne *ExecEraser) ataSanitize(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, "hdparm", "--sanitize-crypto-scramble", path)
	if output, err := cmd.CombinedOutput(); err != nil {
		ne.logger.Error("Ошибка запуска ATA sanitize", zap.String("device", path), zap.String("output", string(output)), zap.Error(err))
		return fmt.Errorf("ata sanitize failed: %w", err)
	}

	// Опрос статуса команды
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}

		cmd := exec.CommandContext(ctx, "hdparm", "--sanitize-status", path)
		output, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("ata sanitize-status failed: %w", err)
		}

		status := string(output)
		if strings.Contains(status, "Sanitize complete") {
			ne.logger.Info("ATA sanitize завершён", zap.String("device", path))
			return nil
		}
		if strings.Contains(status, "Sanitize failed") {
			return fmt.Errorf("ata sanitize reported failure")
		}
	}
}

// randomPassword генерирует одноразовый пароль для ATA security
func randomPassword() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "zerotrace-erase"
	}
	return hex.EncodeToString(buf)
}
