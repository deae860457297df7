package reporting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"zerotrace/internal/certificate"
	"zerotrace/internal/config"
	"zerotrace/internal/device"
	"zerotrace/internal/method"
	"zerotrace/internal/wipe"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := NewStore(config.ReportingConfig{
		Enabled:   true,
		LocalPath: dir,
		Format:    "json",
	}, zaptest.NewLogger(t))
	return store, dir
}

func buildTestCertificate(t *testing.T) *certificate.Document {
	t.Helper()

	signer, err := certificate.NewSigner(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	builder := certificate.NewBuilder(signer, zaptest.NewLogger(t))

	m, err := method.Resolve(method.SinglePass)
	require.NoError(t, err)

	started := time.Now().UTC().Add(-time.Minute)
	doc, err := builder.Build(certificate.Input{
		SessionID:   "sess-1",
		Device:      device.Descriptor{Path: "/dev/sdb", Type: device.MediumSSD, SizeBytes: 1024},
		Method:      m,
		StartedAt:   started,
		CompletedAt: started.Add(time.Minute),
		Verification: wipe.VerificationRecord{
			Method:          m.ID,
			PassesCompleted: 1,
			SHA256Before:    "aa",
			SHA256After:     "bb",
			DataDestroyed:   true,
		},
	})
	require.NoError(t, err)
	return doc
}

func TestSaveRunReport(t *testing.T) {
	store, dir := newTestStore(t)

	path, err := store.SaveRunReport(&RunReport{
		SessionID:  "sess-1",
		DevicePath: "/dev/sdb",
		Method:     "three_pass",
		Status:     "completed",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reports", "wipe_report_sess-1.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session_id": "sess-1"`)
	assert.Contains(t, string(data), `"generated_at"`)
}

func TestSaveDisabledIsNoop(t *testing.T) {
	store := NewStore(config.ReportingConfig{Enabled: false}, zaptest.NewLogger(t))

	path, err := store.SaveRunReport(&RunReport{SessionID: "x"})
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestCertificateRoundtrip(t *testing.T) {
	store, dir := newTestStore(t)
	doc := buildTestCertificate(t)

	path, err := store.SaveCertificate(doc)
	require.NoError(t, err)
	assert.Contains(t, path, doc.Certificate.ID)

	// Рядом лежит файл подписи
	sigPath := filepath.Join(dir, "certificates", "certificate_"+doc.Certificate.ID+".sig")
	_, err = os.Stat(sigPath)
	assert.NoError(t, err)

	loaded, err := store.LoadCertificate(doc.Certificate.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Certificate.ID, loaded.Certificate.ID)
	assert.Equal(t, doc.DigitalSignature.SignatureHash, loaded.DigitalSignature.SignatureHash)
	assert.Equal(t, doc.Verification.SHA256After, loaded.Verification.SHA256After)
}

func TestLoadCertificateNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.LoadCertificate("DEADBEEF00000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListCertificates(t *testing.T) {
	store, _ := newTestStore(t)

	ids, err := store.ListCertificates()
	require.NoError(t, err)
	assert.Empty(t, ids)

	doc := buildTestCertificate(t)
	_, err = store.SaveCertificate(doc)
	require.NoError(t, err)

	ids, err = store.ListCertificates()
	require.NoError(t, err)
	assert.Equal(t, []string{doc.Certificate.ID}, ids)
}
