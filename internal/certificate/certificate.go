package certificate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"zerotrace/internal/device"
	"zerotrace/internal/method"
	"zerotrace/internal/wipe"
)

// Version движка, попадает в метаданные сертификата
const Version = "1.2.0"

// Document подписанный сертификат затирания. Секция
// digital_signature покрывает все остальные секции документа.
type Document struct {
	Certificate      Header                  `json:"certificate"`
	Device           DeviceSection           `json:"device"`
	WipeOperation    OperationInfo           `json:"wipe_operation"`
	Verification     wipe.VerificationRecord `json:"verification"`
	DigitalSignature *SignatureBlock         `json:"digital_signature,omitempty"`
	Compliance       ComplianceInfo          `json:"compliance"`
	Metadata         MetadataInfo            `json:"metadata"`
}

// Header идентификация сертификата
type Header struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Type     string `json:"type"`
	IssuedAt string `json:"issued_at"`
	Issuer   string `json:"issuer"`
	Status   string `json:"status"`
}

// DeviceSection сведения об устройстве
type DeviceSection struct {
	Path          string `json:"path"`
	Model         string `json:"model"`
	Serial        string `json:"serial"`
	Type          string `json:"type"`
	SizeBytes     int64  `json:"size_bytes"`
	SizeFormatted string `json:"size_formatted"`
}

// OperationInfo сведения об операции затирания
type OperationInfo struct {
	SessionID         string `json:"session_id"`
	Method            string `json:"method"`
	MethodDisplay     string `json:"method_display"`
	Passes            int    `json:"passes"`
	StartedAt         string `json:"started_at"`
	CompletedAt       string `json:"completed_at"`
	DurationSeconds   int64  `json:"duration_seconds"`
	DurationFormatted string `json:"duration_formatted"`
	Status            string `json:"status"`
	Success           bool   `json:"success"`
}

// ComplianceInfo соответствие стандартам
type ComplianceInfo struct {
	Standards             []string `json:"standards_met"`
	DataDestroyed         bool     `json:"data_destroyed"`
	VerificationPerformed bool     `json:"verification_performed"`
}

// MetadataInfo окружение выдачи сертификата
type MetadataInfo struct {
	Generator         string `json:"generator"`
	Hostname          string `json:"hostname"`
	Operator          string `json:"operator,omitempty"`
	CertificateFormat string `json:"certificate_format"`
}

// Input данные завершённой сессии для выпуска сертификата
type Input struct {
	SessionID    string
	Device       device.Descriptor
	Method       method.WipeMethod
	StartedAt    time.Time
	CompletedAt  time.Time
	Verification wipe.VerificationRecord
	Operator     string
}

// Builder выпускает и подписывает сертификаты затирания.
// Сертификат выдаётся только за успешно завершённую сессию.
type Builder struct {
	signer *Signer
	logger *zap.Logger
}

// NewBuilder создаёт сборщик сертификатов
func NewBuilder(signer *Signer, logger *zap.Logger) *Builder {
	return &Builder{signer: signer, logger: logger}
}

// Build собирает и подписывает сертификат
func (b *Builder) Build(in Input) (*Document, error) {
	if !in.Verification.DataDestroyed {
		return nil, fmt.Errorf("refusing to certify session %s: data destruction not confirmed", in.SessionID)
	}

	now := time.Now().UTC()
	hostname, _ := os.Hostname()

	doc := &Document{
		Certificate: Header{
			ID:       certID(in.Device.Path, in.StartedAt, now),
			Version:  "1.0",
			Type:     "Data Destruction Certificate",
			IssuedAt: now.Format(time.RFC3339),
			Issuer:   "ZeroTrace Wipe Engine",
			Status:   "valid",
		},
		Device: DeviceSection{
			Path:          in.Device.Path,
			Model:         in.Device.Model,
			Serial:        in.Device.Serial,
			Type:          string(in.Device.Type),
			SizeBytes:     in.Device.SizeBytes,
			SizeFormatted: formatSize(in.Device.SizeBytes),
		},
		WipeOperation: OperationInfo{
			SessionID:         in.SessionID,
			Method:            in.Method.ID,
			MethodDisplay:     in.Method.Name,
			Passes:            in.Method.Passes,
			StartedAt:         in.StartedAt.UTC().Format(time.RFC3339),
			CompletedAt:       in.CompletedAt.UTC().Format(time.RFC3339),
			DurationSeconds:   int64(in.CompletedAt.Sub(in.StartedAt).Seconds()),
			DurationFormatted: formatDuration(in.CompletedAt.Sub(in.StartedAt)),
			Status:            "completed",
			Success:           true,
		},
		Verification: in.Verification,
		Compliance: ComplianceInfo{
			Standards:             in.Method.Standards,
			DataDestroyed:         in.Verification.DataDestroyed,
			VerificationPerformed: in.Method.Verify || in.Verification.KeyDestroyed,
		},
		Metadata: MetadataInfo{
			Generator:         "ZeroTrace v" + Version,
			Hostname:          hostname,
			Operator:          in.Operator,
			CertificateFormat: "JSON",
		},
	}

	sig, err := b.signer.Sign(unsignedContent(doc))
	if err != nil {
		return nil, err
	}
	doc.DigitalSignature = sig

	b.logger.Info("Сертификат выпущен",
		zap.String("certificate_id", doc.Certificate.ID),
		zap.String("session_id", in.SessionID),
		zap.String("device", in.Device.Path))

	return doc, nil
}

// Verify проверяет подпись документа
func (b *Builder) Verify(doc *Document) VerifyResult {
	if doc.DigitalSignature == nil {
		return VerifyResult{Valid: false, Error: "certificate has no digital signature"}
	}
	return b.signer.Verify(unsignedContent(doc), *doc.DigitalSignature)
}

// unsignedContent возвращает копию документа без блока подписи:
// именно она покрывается подписью
func unsignedContent(doc *Document) Document {
	content := *doc
	content.DigitalSignature = nil
	return content
}

// certID детерминированный идентификатор сертификата
func certID(devicePath string, startedAt, issuedAt time.Time) string {
	seed := devicePath + startedAt.UTC().Format(time.RFC3339Nano) + issuedAt.Format(time.RFC3339Nano)
	sum := sha256.Sum256([]byte(seed))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:16])
}

// formatSize человекочитаемый размер
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration человекочитаемая длительность
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	s := d - m*time.Minute

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, int(s.Seconds()))
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, int(s.Seconds()))
	}
	return fmt.Sprintf("%ds", int(s.Seconds()))
}
