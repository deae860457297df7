package wipe

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"zerotrace/internal/device"
	"zerotrace/internal/method"
)

// PatternEraser программная перезапись всего адресуемого диапазона
// паттернами метода. Проходы выполняются строго последовательно:
// проход N+1 не начинается, пока запись и sync прохода N не завершены.
type PatternEraser struct {
	opts   Options
	logger *zap.Logger
}

// NewPatternEraser создаёт стратегию программной перезаписи
func NewPatternEraser(opts Options, logger *zap.Logger) *PatternEraser {
	return &PatternEraser{opts: opts.withDefaults(), logger: logger}
}

// Run выполняет все проходы метода и возвращает запись верификации
func (pe *PatternEraser) Run(ctx context.Context, desc device.Descriptor, m method.WipeMethod, obs Observer) (*VerificationRecord, error) {
	target, err := device.Open(desc)
	if err != nil {
		return nil, ClassifyDeviceError(err)
	}
	defer target.Close()

	pe.logger.Info("Запуск программной перезаписи",
		zap.String("device", desc.Path),
		zap.String("method", m.ID),
		zap.Int("passes", len(m.Patterns)))

	var shaBefore string
	if m.Verify {
		shaBefore, err = hashSample(target, pe.opts.HashSampleSize)
		if err != nil {
			return nil, err
		}
	}

	record := &VerificationRecord{
		Method:       m.ID,
		SHA256Before: shaBefore,
	}

	totalBytes := target.Size() * int64(len(m.Patterns))
	writer := NewThrottledWriter(target, pe.opts.MaxSpeedMBps)
	var written int64

	for pass, pattern := range m.Patterns {
		message := fmt.Sprintf("Pass %d/%d: writing %s...", pass+1, len(m.Patterns), pattern.Label)
		obs.progress(clampPct(written, totalBytes), message, pass)

		writer.Seek(0)
		passWritten, err := pe.writePass(ctx, target, writer, pattern, pass, len(m.Patterns), written, totalBytes, obs)
		written += passWritten
		record.BytesWritten += uint64(passWritten)
		if err != nil {
			return record, errors.Wrapf(err, "pass %d/%d", pass+1, len(m.Patterns))
		}

		// Sync подтверждает завершение прохода перед следующим
		if err := writer.Sync(); err != nil {
			return record, ClassifyDeviceError(err)
		}
		record.PassesCompleted = pass + 1

		pe.logger.Info("Проход завершен",
			zap.String("device", desc.Path),
			zap.Int("pass", pass+1),
			zap.Int("total", len(m.Patterns)))
	}

	if m.Verify {
		obs.verifying()
		obs.progress(99, "Verifying wipe...", len(m.Patterns)-1)

		shaAfter, err := hashSample(target, pe.opts.HashSampleSize)
		if err != nil {
			return record, err
		}
		record.SHA256After = shaAfter
		record.DataDestroyed = shaAfter != shaBefore
		record.VerifiedAt = time.Now().UTC()

		// Совпадение хэшей после перезаписи означает остаточные
		// данные. Сессия завершается ошибкой.
		if !record.DataDestroyed {
			return record, errors.Mark(
				errors.Newf("device %s: sample hash unchanged after %d passes", desc.Path, record.PassesCompleted),
				ErrVerificationFailed)
		}
	} else {
		record.DataDestroyed = true
		record.VerifiedAt = time.Now().UTC()
	}

	obs.progress(100, "Wipe completed", len(m.Patterns)-1)
	return record, nil
}

// writePass записывает один паттерн по всему диапазону цели
func (pe *PatternEraser) writePass(ctx context.Context, target device.Target, writer *ThrottledWriter, pattern method.Pattern, pass, totalPasses int, baseWritten, totalBytes int64, obs Observer) (int64, error) {
	size := target.Size()
	chunkSize := pe.opts.ChunkSize
	if chunkSize > size {
		chunkSize = size
	}

	buf := GetBuffer(int(chunkSize))
	defer PutBuffer(buf)

	// Детерминированные паттерны заполняются один раз
	if pattern.Kind != method.PatternRandom {
		fillPattern(buf, pattern)
	}

	reportEvery := totalBytes / 200 // ~0.5% шаг
	if reportEvery < chunkSize {
		reportEvery = chunkSize
	}

	var written, lastSync, lastReport int64
	message := fmt.Sprintf("Pass %d/%d: writing %s...", pass+1, totalPasses, pattern.Label)

	for written < size {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		toWrite := chunkSize
		if remaining := size - written; remaining < toWrite {
			toWrite = remaining
		}

		chunk := buf[:toWrite]
		if pattern.Kind == method.PatternRandom {
			if err := FillRandom(chunk); err != nil {
				return written, fmt.Errorf("random fill failed: %w", err)
			}
		}

		off := 0
		for off < int(toWrite) {
			n, err := writer.Write(chunk[off:])
			if n > 0 {
				off += n
				written += int64(n)
			}
			if err != nil {
				return written, ClassifyDeviceError(err)
			}
			if n == 0 {
				return written, errors.Mark(errors.New("write returned 0 bytes without error"), ErrIO)
			}
		}

		// Периодический sync
		if pe.opts.SyncInterval > 0 && written-lastSync >= pe.opts.SyncInterval {
			if err := writer.Sync(); err != nil {
				return written, ClassifyDeviceError(err)
			}
			lastSync = written
		}

		if written-lastReport >= reportEvery {
			obs.progress(clampPct(baseWritten+written, totalBytes), message, pass)
			lastReport = written
		}
	}

	return written, nil
}

// fillPattern заполняет буфер детерминированным паттерном
func fillPattern(buf []byte, pattern method.Pattern) {
	switch pattern.Kind {
	case method.PatternZeros:
		for i := range buf {
			buf[i] = 0x00
		}
	case method.PatternOnes:
		for i := range buf {
			buf[i] = 0xFF
		}
	case method.PatternFixed:
		for i := range buf {
			buf[i] = pattern.Bytes[i%len(pattern.Bytes)]
		}
	}
}

// clampPct переводит байты в процент, не доходя до 100 до верификации
func clampPct(written, total int64) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(written) / float64(total) * 99
	if pct > 99 {
		pct = 99
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}
