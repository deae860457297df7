package session

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"zerotrace/internal/certificate"
	"zerotrace/internal/config"
	"zerotrace/internal/device"
	"zerotrace/internal/method"
	"zerotrace/internal/reporting"
)

const simSize = 256 * 1024

// testEnv собранный менеджер с зависимостями поверх временных
// директорий и демо-реестра
type testEnv struct {
	mgr     *Manager
	builder *certificate.Builder
	store   *reporting.Store
	cfg     *config.Config
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	device.Demo().Reset()
	t.Cleanup(device.Demo().Reset)

	cfg := config.Default()
	cfg.Signing.KeysDir = filepath.Join(t.TempDir(), "keys")
	cfg.Reporting.LocalPath = filepath.Join(t.TempDir(), "reports")
	cfg.Security.RequireForce = false
	cfg.Engine.ChunkSize = 64 * 1024
	cfg.Engine.HashSampleSize = 64 * 1024
	if mutate != nil {
		mutate(cfg)
	}

	logger := zaptest.NewLogger(t)
	signer, err := certificate.NewSigner(cfg.Signing.KeysDir, logger)
	require.NoError(t, err)

	builder := certificate.NewBuilder(signer, logger)
	store := reporting.NewStore(cfg.Reporting, logger)
	native := device.NewSimEraser(device.Demo())

	mgr := NewManager(cfg, native, builder, store, logger)
	t.Cleanup(mgr.Wait)

	return &testEnv{
		mgr:     mgr,
		builder: builder,
		store:   store,
		cfg:     cfg,
	}
}

func registerSim(t *testing.T, path string, mediumType device.MediumType) *device.SimDevice {
	t.Helper()
	sim := device.NewSimDevice(path, mediumType, simSize, "Test Drive", "T-0001")
	device.Demo().Register(sim)
	return sim
}

// waitTerminal опрашивает сессию до терминального состояния
func waitTerminal(t *testing.T, mgr *Manager, sessionID string) Session {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := mgr.GetSession(sessionID)
		require.NoError(t, err)
		if sess.Status.Terminal() {
			return sess
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s did not reach a terminal state", sessionID)
	return Session{}
}

func TestWipeSessionCompletes(t *testing.T) {
	env := newTestEnv(t, nil)
	sim := registerSim(t, "demo://drive0", device.MediumNVMe)

	id, err := env.mgr.Start(context.Background(), StartRequest{
		Device: sim.Descriptor(),
		Method: method.ThreePass,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sess := waitTerminal(t, env.mgr, id)
	assert.Equal(t, StatusCompleted, sess.Status)
	assert.NotEmpty(t, sess.CertificateID)
	require.NotNil(t, sess.Verification)
	assert.True(t, sess.Verification.DataDestroyed)
	assert.Equal(t, 3, sess.Verification.PassesCompleted)

	snap, err := env.mgr.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.Percentage)

	// Сертификат сохранён и подпись действительна
	doc, err := env.store.LoadCertificate(sess.CertificateID)
	require.NoError(t, err)
	assert.Equal(t, id, doc.WipeOperation.SessionID)
	result := env.builder.Verify(doc)
	assert.True(t, result.Valid, result.Error)
}

func TestCryptoEraseSession(t *testing.T) {
	env := newTestEnv(t, nil)
	sim := registerSim(t, "demo://nvme0", device.MediumNVMe)

	id, err := env.mgr.Start(context.Background(), StartRequest{
		Device: sim.Descriptor(),
		Method: "crypto-erase",
	})
	require.NoError(t, err)

	sess := waitTerminal(t, env.mgr, id)
	assert.Equal(t, StatusCompleted, sess.Status)
	require.NotNil(t, sess.Verification)
	assert.True(t, sess.Verification.KeyDestroyed)
	assert.True(t, sim.KeyDestroyed())
}

func TestHardwareUnsupportedFails(t *testing.T) {
	env := newTestEnv(t, nil)
	// HDD не поддерживает crypto_erase
	sim := registerSim(t, "demo://hdd0", device.MediumHDD)

	id, err := env.mgr.Start(context.Background(), StartRequest{
		Device: sim.Descriptor(),
		Method: method.CryptoErase,
	})
	require.NoError(t, err)

	sess := waitTerminal(t, env.mgr, id)
	assert.Equal(t, StatusFailed, sess.Status)
	assert.Contains(t, sess.ErrorMessage, "does not support")
	assert.Empty(t, sess.CertificateID)
	assert.False(t, sim.KeyDestroyed())
}

func TestWriteFailureFailsWithoutCertificate(t *testing.T) {
	env := newTestEnv(t, nil)
	sim := registerSim(t, "demo://failing", device.MediumSSD)
	sim.FailWritesAt(128*1024, syscall.EIO)

	id, err := env.mgr.Start(context.Background(), StartRequest{
		Device: sim.Descriptor(),
		Method: method.SinglePass,
	})
	require.NoError(t, err)

	sess := waitTerminal(t, env.mgr, id)
	assert.Equal(t, StatusFailed, sess.Status)
	assert.NotEmpty(t, sess.ErrorMessage)
	assert.Empty(t, sess.CertificateID)

	// Отчёт пишется и для неуспешной сессии
	reportPath := filepath.Join(env.cfg.Reporting.LocalPath, "reports", "wipe_report_"+id+".json")
	_, statErr := os.Stat(reportPath)
	assert.NoError(t, statErr)
}

func TestBusyDeviceRejected(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Engine.MaxSpeedMBps = 1 // замедляем, чтобы первая сессия шла заметное время
	})
	sim := registerSim(t, "demo://busy", device.MediumSSD)

	first, err := env.mgr.Start(context.Background(), StartRequest{
		Device: sim.Descriptor(),
		Method: method.SinglePass,
	})
	require.NoError(t, err)

	_, err = env.mgr.Start(context.Background(), StartRequest{
		Device: sim.Descriptor(),
		Method: method.SinglePass,
	})
	require.Error(t, err)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Contains(t, err.Error(), "busy")

	sess := waitTerminal(t, env.mgr, first)
	assert.Equal(t, StatusCompleted, sess.Status)

	// После завершения устройство снова доступно
	again, err := env.mgr.Start(context.Background(), StartRequest{
		Device: sim.Descriptor(),
		Method: method.SinglePass,
	})
	require.NoError(t, err)
	waitTerminal(t, env.mgr, again)
}

func TestCancelQueuedSession(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Engine.MaxConcurrent = 1
		cfg.Engine.MaxSpeedMBps = 1
	})
	busy := registerSim(t, "demo://slot", device.MediumSSD)
	queued := registerSim(t, "demo://queued", device.MediumSSD)

	running, err := env.mgr.Start(context.Background(), StartRequest{
		Device: busy.Descriptor(),
		Method: method.SinglePass,
	})
	require.NoError(t, err)

	// Ждём, пока первая сессия займёт единственный слот
	require.Eventually(t, func() bool {
		sess, err := env.mgr.GetSession(running)
		return err == nil && sess.Status == StatusRunning
	}, 5*time.Second, 5*time.Millisecond)

	queuedID, err := env.mgr.Start(context.Background(), StartRequest{
		Device: queued.Descriptor(),
		Method: method.SinglePass,
	})
	require.NoError(t, err)

	// Отмена из очереди разрешена
	require.NoError(t, env.mgr.Cancel(queuedID))
	sess := waitTerminal(t, env.mgr, queuedID)
	assert.Equal(t, StatusCancelled, sess.Status)

	// Отмена запущенной сессии запрещена
	err = env.mgr.Cancel(running)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelRefused))

	waitTerminal(t, env.mgr, running)
}

// Отмена, гонящаяся со стартом исполнителя, либо успевает до
// перехода в running (сессия cancelled), либо отказывается и
// затирание доводится до конца. Прерывание запущенной записи
// контекстом отмены недопустимо ни при каком интерливинге.
func TestCancelRacingStartup(t *testing.T) {
	env := newTestEnv(t, nil)
	sim := registerSim(t, "demo://race", device.MediumSSD)

	for i := 0; i < 25; i++ {
		id, err := env.mgr.Start(context.Background(), StartRequest{
			Device: sim.Descriptor(),
			Method: method.SinglePass,
		})
		require.NoError(t, err)

		cancelErr := make(chan error, 1)
		go func() { cancelErr <- env.mgr.Cancel(id) }()

		sess := waitTerminal(t, env.mgr, id)
		err = <-cancelErr

		if err == nil {
			assert.Equal(t, StatusCancelled, sess.Status)
			assert.True(t, sess.StartedAt.IsZero())
		} else {
			assert.True(t, errors.Is(err, ErrCancelRefused))
			assert.Equal(t, StatusCompleted, sess.Status)
		}
		assert.NotContains(t, sess.ErrorMessage, "context canceled")
	}
}

func TestCancelUnknownSession(t *testing.T) {
	env := newTestEnv(t, nil)
	err := env.mgr.Cancel("no-such-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestTerminalStateAbsorbing(t *testing.T) {
	env := newTestEnv(t, nil)
	sim := registerSim(t, "demo://done", device.MediumSSD)

	id, err := env.mgr.Start(context.Background(), StartRequest{
		Device: sim.Descriptor(),
		Method: method.SinglePass,
	})
	require.NoError(t, err)
	waitTerminal(t, env.mgr, id)

	// Отмена завершённой сессии отклоняется
	err = env.mgr.Cancel(id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelRefused))

	// Терминальный снимок прогресса сохраняется
	for i := 0; i < 3; i++ {
		snap, err := env.mgr.GetProgress(id)
		require.NoError(t, err)
		assert.Equal(t, 100.0, snap.Percentage)
	}
}

func TestStartValidation(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Security.ExcludedDevices = []string{"/dev/sda"}
	})
	sim := registerSim(t, "demo://valid", device.MediumSSD)

	tests := []struct {
		name string
		req  StartRequest
	}{
		{"unknown method", StartRequest{Device: sim.Descriptor(), Method: "quantum_erase"}},
		{"empty device path", StartRequest{Device: device.Descriptor{}, Method: method.SinglePass}},
		{"zero size", StartRequest{Device: device.Descriptor{Path: "/dev/sdz"}, Method: method.SinglePass}},
		{"excluded device", StartRequest{Device: device.Descriptor{Path: "/dev/sda", SizeBytes: 1024}, Method: method.SinglePass}},
		{"hardware passes override", StartRequest{Device: sim.Descriptor(), Method: method.CryptoErase, Passes: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.mgr.Start(context.Background(), tt.req)
			require.Error(t, err)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestGetUnknownSession(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.mgr.GetSession("missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	_, err = env.mgr.GetProgress("missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestListSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	a := registerSim(t, "demo://a", device.MediumSSD)
	b := registerSim(t, "demo://b", device.MediumSSD)

	idA, err := env.mgr.Start(context.Background(), StartRequest{Device: a.Descriptor(), Method: method.SinglePass})
	require.NoError(t, err)
	idB, err := env.mgr.Start(context.Background(), StartRequest{Device: b.Descriptor(), Method: method.SinglePass})
	require.NoError(t, err)

	waitTerminal(t, env.mgr, idA)
	waitTerminal(t, env.mgr, idB)

	sessions := env.mgr.List()
	assert.Len(t, sessions, 2)
}
