package wipe

import (
	"time"
)

// VerificationRecord результат затирания: хэши репрезентативной
// области до и после, либо факт уничтожения ключа для crypto-erase
type VerificationRecord struct {
	Method          string    `json:"method"`
	PassesCompleted int       `json:"passes_completed"`
	SHA256Before    string    `json:"sha256_before,omitempty"`
	SHA256After     string    `json:"sha256_after,omitempty"`
	KeyDestroyed    bool      `json:"key_destroyed,omitempty"`
	DataDestroyed   bool      `json:"data_destroyed"`
	BytesWritten    uint64    `json:"bytes_written"`
	VerifiedAt      time.Time `json:"verified_at"`
}

// Observer получает события исполнения стратегии. Колбэки обязаны
// быстро вернуть управление: передают снимок и не блокируются на I/O.
type Observer struct {
	// OnProgress вызывается с ограниченной частотой; процент
	// монотонно не убывает в пределах сессии
	OnProgress func(percentage float64, message string, passIndex int)

	// OnVerifying вызывается перед вычислением пост-хэшей
	OnVerifying func()
}

func (o Observer) progress(percentage float64, message string, passIndex int) {
	if o.OnProgress != nil {
		o.OnProgress(percentage, message, passIndex)
	}
}

func (o Observer) verifying() {
	if o.OnVerifying != nil {
		o.OnVerifying()
	}
}

// Options параметры исполнения стратегии
type Options struct {
	ChunkSize      int64
	MaxSpeedMBps   float64
	SyncInterval   int64
	HashSampleSize int64
}

// withDefaults заполняет незаданные параметры
func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 4 * 1024 * 1024
	}
	if o.SyncInterval <= 0 {
		o.SyncInterval = 512 * 1024 * 1024
	}
	if o.HashSampleSize <= 0 {
		o.HashSampleSize = 1024 * 1024
	}
	return o
}
