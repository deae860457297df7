package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"zerotrace/internal/certificate"
	"zerotrace/internal/config"
	"zerotrace/internal/device"
	"zerotrace/internal/method"
	"zerotrace/internal/progress"
	"zerotrace/internal/reporting"
	"zerotrace/internal/security"
	"zerotrace/internal/wipe"
)

// Ошибки операций над сессиями
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrCancelRefused   = errors.New("only queued sessions can be cancelled")
)

// ValidationError ошибка валидации запроса на затирание. Сессия
// при этом не создаётся.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// validationErrorf создаёт ValidationError с форматированием
func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// StartRequest запрос на запуск затирания
type StartRequest struct {
	Device   device.Descriptor `json:"device"`
	Method   string            `json:"method"`
	Passes   int               `json:"passes,omitempty"`
	Force    bool              `json:"force,omitempty"`
	Operator string            `json:"operator,omitempty"`
}

// Manager управляет жизненным циклом сессий: валидация запроса,
// очередь на ограниченный пул исполнителей, взаимное исключение
// по устройству, выпуск сертификата за успешную сессию.
type Manager struct {
	cfg      *config.Config
	logger   *zap.Logger
	guard    *security.Guard
	native   device.NativeEraser
	builder  *certificate.Builder
	store    *reporting.Store
	progress *progress.Reporter

	mu       sync.Mutex
	sessions map[string]*Session
	active   map[string]string // device path -> session ID
	cancels  map[string]context.CancelFunc
	slots    chan struct{}
	wg       sync.WaitGroup
}

// NewManager создаёт менеджер сессий
func NewManager(cfg *config.Config, native device.NativeEraser, builder *certificate.Builder, store *reporting.Store, logger *zap.Logger) *Manager {
	maxConcurrent := cfg.Engine.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}

	return &Manager{
		cfg:      cfg,
		logger:   logger,
		guard:    security.NewGuard(cfg.Security),
		native:   native,
		builder:  builder,
		store:    store,
		progress: progress.NewReporter(),
		sessions: make(map[string]*Session),
		active:   make(map[string]string),
		cancels:  make(map[string]context.CancelFunc),
		slots:    make(chan struct{}, maxConcurrent),
	}
}

// Start валидирует запрос и запускает затирание асинхронно.
// Идентификатор сессии возвращается синхронно.
func (mgr *Manager) Start(ctx context.Context, req StartRequest) (string, error) {
	if err := req.Device.Validate(); err != nil {
		return "", &ValidationError{Reason: err.Error()}
	}

	m, err := method.Resolve(req.Method)
	if err != nil {
		return "", &ValidationError{Reason: err.Error()}
	}
	m, err = m.WithPasses(req.Passes)
	if err != nil {
		return "", &ValidationError{Reason: err.Error()}
	}

	if err := mgr.guard.Check(req.Device, req.Force); err != nil {
		return "", &ValidationError{Reason: err.Error()}
	}

	mgr.mu.Lock()
	if activeID, busy := mgr.active[req.Device.Path]; busy {
		mgr.mu.Unlock()
		return "", validationErrorf("device %s is busy with session %s", req.Device.Path, activeID)
	}

	sess := &Session{
		ID:        uuid.New().String(),
		Device:    req.Device,
		Method:    m.ID,
		Passes:    m.Passes,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	// Время жизни сессии не привязано к контексту запроса
	base := context.WithoutCancel(ctx)
	var runCtx context.Context
	var cancel context.CancelFunc
	if maxDuration := mgr.cfg.GetMaxDuration(); maxDuration > 0 {
		runCtx, cancel = context.WithTimeout(base, maxDuration)
	} else {
		runCtx, cancel = context.WithCancel(base)
	}

	mgr.sessions[sess.ID] = sess
	mgr.active[req.Device.Path] = sess.ID
	mgr.cancels[sess.ID] = cancel
	mgr.mu.Unlock()

	mgr.progress.Update(sess.ID, 0, "Queued", 0)

	mgr.logger.Info("Сессия создана",
		zap.String("session_id", sess.ID),
		zap.String("device", req.Device.Path),
		zap.String("method", m.ID),
		zap.Int("passes", m.Passes))

	mgr.wg.Add(1)
	go mgr.run(runCtx, sess, m, req.Operator)

	return sess.ID, nil
}

// run ждёт слот исполнителя и проводит сессию до терминального
// состояния
func (mgr *Manager) run(ctx context.Context, sess *Session, m method.WipeMethod, operator string) {
	defer mgr.wg.Done()

	select {
	case mgr.slots <- struct{}{}:
		defer func() { <-mgr.slots }()
	case <-ctx.Done():
		// Отменена или истекла в очереди
		mgr.finish(sess, StatusCancelled, nil, ctx.Err())
		return
	}

	mgr.mu.Lock()
	if sess.Status.Terminal() {
		mgr.mu.Unlock()
		return
	}
	// Переход queued -> running и отмена сериализуются одним
	// мьютексом: отмена, успевшая до этой точки, видна здесь, а
	// после перехода Cancel уже откажет
	if ctx.Err() != nil {
		mgr.mu.Unlock()
		mgr.finish(sess, StatusCancelled, nil, ctx.Err())
		return
	}
	sess.Status = StatusRunning
	sess.StartedAt = time.Now().UTC()
	mgr.mu.Unlock()

	mgr.progress.Update(sess.ID, 0, "Starting wipe...", 0)

	obs := wipe.Observer{
		OnProgress: func(pct float64, message string, passIndex int) {
			mgr.progress.Update(sess.ID, pct, message, passIndex)
		},
		OnVerifying: func() {
			mgr.mu.Lock()
			if sess.Status == StatusRunning {
				sess.Status = StatusVerifying
			}
			mgr.mu.Unlock()
		},
	}

	opts := wipe.Options{
		ChunkSize:      mgr.cfg.Engine.ChunkSize,
		MaxSpeedMBps:   mgr.cfg.Engine.MaxSpeedMBps,
		SyncInterval:   mgr.cfg.Engine.SyncInterval,
		HashSampleSize: mgr.cfg.Engine.HashSampleSize,
	}

	eraser := wipe.ForMethod(m, mgr.native, opts, mgr.logger)
	record, err := eraser.Run(ctx, sess.Device, m, obs)
	if err != nil {
		mgr.logger.Error("Затирание завершилось ошибкой",
			zap.String("session_id", sess.ID),
			zap.String("device", sess.Device.Path),
			zap.Error(err))
		mgr.finish(sess, StatusFailed, record, err)
		return
	}

	certDoc, certErr := mgr.builder.Build(certificate.Input{
		SessionID:    sess.ID,
		Device:       sess.Device,
		Method:       m,
		StartedAt:    sess.StartedAt,
		CompletedAt:  time.Now().UTC(),
		Verification: *record,
		Operator:     operator,
	})
	if certErr != nil {
		mgr.logger.Error("Не удалось выпустить сертификат",
			zap.String("session_id", sess.ID),
			zap.Error(certErr))
		mgr.finish(sess, StatusFailed, record, certErr)
		return
	}

	if _, err := mgr.store.SaveCertificate(certDoc); err != nil {
		mgr.logger.Warn("Не удалось сохранить сертификат",
			zap.String("certificate_id", certDoc.Certificate.ID),
			zap.Error(err))
	}

	mgr.mu.Lock()
	sess.CertificateID = certDoc.Certificate.ID
	mgr.mu.Unlock()

	mgr.finish(sess, StatusCompleted, record, nil)
}

// finish переводит сессию в терминальное состояние и пишет отчёт
func (mgr *Manager) finish(sess *Session, status Status, record *wipe.VerificationRecord, cause error) {
	mgr.mu.Lock()
	if sess.Status.Terminal() {
		mgr.mu.Unlock()
		return
	}
	sess.Status = status
	sess.EndedAt = time.Now().UTC()
	if !sess.StartedAt.IsZero() {
		sess.DurationSeconds = int64(sess.EndedAt.Sub(sess.StartedAt).Seconds())
	}
	sess.Verification = record
	if cause != nil {
		sess.ErrorMessage = cause.Error()
	}
	delete(mgr.active, sess.Device.Path)
	if cancel, ok := mgr.cancels[sess.ID]; ok {
		cancel()
		delete(mgr.cancels, sess.ID)
	}
	summary := sess.snapshot()
	mgr.mu.Unlock()

	switch status {
	case StatusCompleted:
		mgr.progress.Update(sess.ID, 100, "Wipe completed", 0)
	case StatusCancelled:
		mgr.progress.Update(sess.ID, 0, "Cancelled", 0)
	default:
		snap, _ := mgr.progress.Get(sess.ID)
		mgr.progress.Update(sess.ID, snap.Percentage, "Failed: "+summary.ErrorMessage, snap.PassIndex)
	}

	report := &reporting.RunReport{
		SessionID:       summary.ID,
		DevicePath:      summary.Device.Path,
		Method:          summary.Method,
		Status:          string(summary.Status),
		StartedAt:       summary.StartedAt,
		EndedAt:         summary.EndedAt,
		DurationSeconds: summary.DurationSeconds,
		ErrorMessage:    summary.ErrorMessage,
		CertificateID:   summary.CertificateID,
		Verification:    summary.Verification,
	}
	if _, err := mgr.store.SaveRunReport(report); err != nil {
		mgr.logger.Warn("Не удалось сохранить отчет",
			zap.String("session_id", summary.ID),
			zap.Error(err))
	}

	mgr.logger.Info("Сессия завершена",
		zap.String("session_id", summary.ID),
		zap.String("device", summary.Device.Path),
		zap.String("status", string(summary.Status)),
		zap.Int64("duration_seconds", summary.DurationSeconds))
}

// Cancel отменяет сессию. Разрешено только в состоянии queued:
// запущенное затирание доводится до терминального состояния.
func (mgr *Manager) Cancel(sessionID string) error {
	mgr.mu.Lock()
	sess, ok := mgr.sessions[sessionID]
	if !ok {
		mgr.mu.Unlock()
		return errors.Wrapf(ErrSessionNotFound, "%q", sessionID)
	}
	if sess.Status != StatusQueued {
		mgr.mu.Unlock()
		return errors.Wrapf(ErrCancelRefused, "session %s is %s", sessionID, sess.Status)
	}
	// Контекст отменяется под мьютексом: сессия гарантированно ещё
	// queued, запущенную запись отмена прервать не может
	if cancel := mgr.cancels[sessionID]; cancel != nil {
		cancel()
	}
	mgr.mu.Unlock()
	return nil
}

// GetSession возвращает снимок сессии
func (mgr *Manager) GetSession(sessionID string) (Session, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	sess, ok := mgr.sessions[sessionID]
	if !ok {
		return Session{}, errors.Wrapf(ErrSessionNotFound, "%q", sessionID)
	}
	return sess.snapshot(), nil
}

// GetProgress возвращает последний снимок прогресса сессии.
// Для терминальной сессии снимок сохраняется (100 при успехе).
func (mgr *Manager) GetProgress(sessionID string) (progress.Snapshot, error) {
	mgr.mu.Lock()
	_, ok := mgr.sessions[sessionID]
	mgr.mu.Unlock()
	if !ok {
		return progress.Snapshot{}, errors.Wrapf(ErrSessionNotFound, "%q", sessionID)
	}

	snap, ok := mgr.progress.Get(sessionID)
	if !ok {
		return progress.Snapshot{SessionID: sessionID}, nil
	}
	return snap, nil
}

// List возвращает снимки всех сессий
func (mgr *Manager) List() []Session {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	sessions := make([]Session, 0, len(mgr.sessions))
	for _, sess := range mgr.sessions {
		sessions = append(sessions, sess.snapshot())
	}
	return sessions
}

// Wait блокируется до завершения всех запущенных сессий
func (mgr *Manager) Wait() {
	mgr.wg.Wait()
}
