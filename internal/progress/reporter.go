package progress

import (
	"sync"
	"time"
)

// Snapshot моментальное состояние прогресса сессии
type Snapshot struct {
	SessionID     string    `json:"session_id"`
	Percentage    float64   `json:"percentage"`
	StatusMessage string    `json:"status_message"`
	PassIndex     int       `json:"pass_index"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Reporter потокобезопасное хранилище прогресса активных и
// завершённых сессий. Процент монотонно не убывает и обрезается
// в диапазон [0, 100]; терминальный снимок сохраняется для чтения
// после завершения сессии.
type Reporter struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewReporter создаёт пустой репортер
func NewReporter() *Reporter {
	return &Reporter{snapshots: make(map[string]Snapshot)}
}

// Update публикует новое состояние сессии. Регресс процента
// игнорируется, сам снимок (сообщение, проход) обновляется.
func (r *Reporter) Update(sessionID string, percentage float64, message string, passIndex int) {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.snapshots[sessionID]
	if ok && percentage < prev.Percentage {
		percentage = prev.Percentage
	}

	r.snapshots[sessionID] = Snapshot{
		SessionID:     sessionID,
		Percentage:    percentage,
		StatusMessage: message,
		PassIndex:     passIndex,
		UpdatedAt:     time.Now().UTC(),
	}
}

// Get возвращает последний снимок сессии
func (r *Reporter) Get(sessionID string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snapshots[sessionID]
	return snap, ok
}

// Forget удаляет снимок сессии
func (r *Reporter) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snapshots, sessionID)
}
