package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"zerotrace/internal/certificate"
	"zerotrace/internal/config"
	"zerotrace/internal/wipe"
)

// RunReport итоговый отчёт о сессии затирания. Пишется для любого
// терминального исхода, в отличие от сертификата.
type RunReport struct {
	SessionID       string                   `json:"session_id"`
	DevicePath      string                   `json:"device_path"`
	Method          string                   `json:"method"`
	Status          string                   `json:"status"`
	StartedAt       time.Time                `json:"started_at"`
	EndedAt         time.Time                `json:"ended_at"`
	DurationSeconds int64                    `json:"duration_seconds"`
	ErrorMessage    string                   `json:"error_message,omitempty"`
	CertificateID   string                   `json:"certificate_id,omitempty"`
	Verification    *wipe.VerificationRecord `json:"verification,omitempty"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

// Store сохраняет отчёты и сертификаты на локальный диск
type Store struct {
	cfg    config.ReportingConfig
	logger *zap.Logger
}

// NewStore создаёт хранилище отчётов
func NewStore(cfg config.ReportingConfig, logger *zap.Logger) *Store {
	return &Store{cfg: cfg, logger: logger}
}

// SaveRunReport сохраняет отчёт сессии, возвращает путь файла
func (s *Store) SaveRunReport(report *RunReport) (string, error) {
	if !s.cfg.Enabled {
		return "", nil
	}

	dir := filepath.Join(s.cfg.LocalPath, "reports")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	report.GeneratedAt = time.Now().UTC()

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("wipe_report_%s.json", report.SessionID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	s.logger.Info("Отчет сохранен",
		zap.String("session_id", report.SessionID),
		zap.String("path", path))

	return path, nil
}

// SaveCertificate сохраняет подписанный сертификат и отдельный
// файл блока подписи
func (s *Store) SaveCertificate(doc *certificate.Document) (string, error) {
	if !s.cfg.Enabled {
		return "", nil
	}

	dir := filepath.Join(s.cfg.LocalPath, "certificates")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create certificates directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal certificate: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("certificate_%s.json", doc.Certificate.ID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write certificate: %w", err)
	}

	if doc.DigitalSignature != nil {
		sigData, err := json.MarshalIndent(doc.DigitalSignature, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal signature: %w", err)
		}
		sigPath := filepath.Join(dir, fmt.Sprintf("certificate_%s.sig", doc.Certificate.ID))
		if err := os.WriteFile(sigPath, sigData, 0644); err != nil {
			return "", fmt.Errorf("failed to write signature: %w", err)
		}
	}

	s.logger.Info("Сертификат сохранен",
		zap.String("certificate_id", doc.Certificate.ID),
		zap.String("path", path))

	return path, nil
}

// LoadCertificate загружает сертификат по идентификатору
func (s *Store) LoadCertificate(id string) (*certificate.Document, error) {
	path := filepath.Join(s.cfg.LocalPath, "certificates", fmt.Sprintf("certificate_%s.json", id))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("certificate %s not found", id)
		}
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}

	var doc certificate.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse certificate %s: %w", id, err)
	}
	return &doc, nil
}

// ListCertificates возвращает идентификаторы сохранённых сертификатов
func (s *Store) ListCertificates() ([]string, error) {
	dir := filepath.Join(s.cfg.LocalPath, "certificates")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		base := name[:len(name)-len(".json")]
		const prefix = "certificate_"
		if len(base) > len(prefix) && base[:len(prefix)] == prefix {
			ids = append(ids, base[len(prefix):])
		}
	}
	return ids, nil
}
