package wipe

import (
	"sync"
	"time"

	"zerotrace/internal/device"
)

// ThrottledWriter последовательный писатель поверх цели с
// ограничением скорости (thread-safe)
type ThrottledWriter struct {
	target       device.Target
	offset       int64
	maxSpeedMBps float64
	lastWrite    time.Time
	mu           sync.Mutex
}

// NewThrottledWriter создает новый throttled writer
func NewThrottledWriter(target device.Target, maxSpeedMBps float64) *ThrottledWriter {
	return &ThrottledWriter{
		target:       target,
		maxSpeedMBps: maxSpeedMBps,
		lastWrite:    time.Now(),
	}
}

// Write записывает данные с текущего смещения с ограничением скорости
func (tw *ThrottledWriter) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.maxSpeedMBps > 0 {
		bytesPerSec := tw.maxSpeedMBps * 1024 * 1024
		expected := time.Duration(float64(len(data)) / bytesPerSec * float64(time.Second))
		actual := time.Since(tw.lastWrite)
		if actual < expected {
			time.Sleep(expected - actual)
		}
	}

	n, err := tw.target.WriteAt(data, tw.offset)
	tw.offset += int64(n)
	tw.lastWrite = time.Now()
	return n, err
}

// Seek переводит писатель на начало нового прохода
func (tw *ThrottledWriter) Seek(offset int64) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.offset = offset
}

// Offset возвращает текущее смещение
func (tw *ThrottledWriter) Offset() int64 {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.offset
}

// Sync синхронизирует данные на устройство
func (tw *ThrottledWriter) Sync() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.target.Sync()
}
