package session

import (
	"time"

	"zerotrace/internal/device"
	"zerotrace/internal/wipe"
)

// Status состояние сессии затирания
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusVerifying Status = "verifying"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal сообщает, является ли состояние поглощающим
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Session сессия затирания одного устройства. После перехода в
// терминальное состояние все поля только для чтения.
type Session struct {
	ID              string                   `json:"id"`
	Device          device.Descriptor        `json:"device"`
	Method          string                   `json:"method"`
	Passes          int                      `json:"passes"`
	Status          Status                   `json:"status"`
	CreatedAt       time.Time                `json:"created_at"`
	StartedAt       time.Time                `json:"started_at,omitempty"`
	EndedAt         time.Time                `json:"ended_at,omitempty"`
	DurationSeconds int64                    `json:"duration_seconds"`
	ErrorMessage    string                   `json:"error_message,omitempty"`
	CertificateID   string                   `json:"certificate_id,omitempty"`
	Verification    *wipe.VerificationRecord `json:"verification,omitempty"`
}

// snapshot возвращает копию для внешних читателей
func (s *Session) snapshot() Session {
	copied := *s
	if s.Verification != nil {
		rec := *s.Verification
		copied.Verification = &rec
	}
	return copied
}
