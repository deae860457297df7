package certificate

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	keyBits        = 2048
	privateKeyFile = "private_key.pem"
	publicKeyFile  = "public_key.pem"
)

// Signer подписывает сертификаты ключом RSA-2048 (PSS, SHA-256).
// Ключевая пара хранится в PEM-файлах и создаётся автоматически
// при первом использовании. Для проверки подписи достаточно одного
// публичного ключа: privateKey может отсутствовать.
type Signer struct {
	privateKey *rsa.PrivateKey
	verifyKey  *rsa.PublicKey
	publicPEM  []byte
	logger     *zap.Logger
}

// SignatureBlock блок цифровой подписи сертификата
type SignatureBlock struct {
	Algorithm            string `json:"algorithm"`
	SignatureHash        string `json:"signature_hash"`
	PublicKeyFingerprint string `json:"public_key_fingerprint"`
	SignatureTimestamp   string `json:"signature_timestamp"`
	TamperProof          bool   `json:"tamper_proof"`
}

// VerifyResult результат проверки подписи
type VerifyResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// NewSigner загружает ключи из keysDir. Если в каталоге лежит
// только публичный ключ, Signer работает в режиме проверки и не
// подписывает. Новая пара создаётся только когда нет ни одного
// ключа: уже распространённый публичный ключ не перезаписывается.
func NewSigner(keysDir string, logger *zap.Logger) (*Signer, error) {
	privPath := filepath.Join(keysDir, privateKeyFile)
	pubPath := filepath.Join(keysDir, publicKeyFile)

	privData, err := os.ReadFile(privPath)
	if os.IsNotExist(err) {
		pubPEM, pubErr := os.ReadFile(pubPath)
		if os.IsNotExist(pubErr) {
			return generateKeys(keysDir, logger)
		}
		if pubErr != nil {
			return nil, fmt.Errorf("failed to read public key: %w", pubErr)
		}
		verifyKey, parseErr := parsePublicKey(pubPEM)
		if parseErr != nil {
			return nil, parseErr
		}
		return &Signer{verifyKey: verifyKey, publicPEM: pubPEM, logger: logger}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	block, _ := pem.Decode(privData)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM in %s", privPath)
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	pubPEM, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	verifyKey, err := parsePublicKey(pubPEM)
	if err != nil {
		return nil, err
	}

	return &Signer{privateKey: key, verifyKey: verifyKey, publicPEM: pubPEM, logger: logger}, nil
}

// parsePublicKey разбирает публичный ключ RSA из PKIX PEM
func parsePublicKey(pubPEM []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pubPEM)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM in public key")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return key, nil
}

// generateKeys создаёт новую пару RSA-2048 и сохраняет её в PEM
func generateKeys(keysDir string, logger *zap.Logger) (*Signer, error) {
	if err := os.MkdirAll(keysDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keys directory: %w", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})

	privPath := filepath.Join(keysDir, privateKeyFile)
	if err := os.WriteFile(privPath, privPEM, 0600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}
	pubPath := filepath.Join(keysDir, publicKeyFile)
	if err := os.WriteFile(pubPath, pubPEM, 0644); err != nil {
		return nil, fmt.Errorf("failed to write public key: %w", err)
	}

	logger.Info("Создана новая ключевая пара подписи",
		zap.String("keys_dir", keysDir),
		zap.Int("bits", keyBits))

	return &Signer{privateKey: key, verifyKey: &key.PublicKey, publicPEM: pubPEM, logger: logger}, nil
}

// Sign подписывает канонический JSON содержимого и возвращает
// блок подписи
func (s *Signer) Sign(content interface{}) (*SignatureBlock, error) {
	if s.privateKey == nil {
		return nil, fmt.Errorf("no private key loaded: signer can only verify")
	}

	canonical, err := CanonicalJSON(content)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(canonical)
	sig, err := rsa.SignPSS(rand.Reader, s.privateKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign certificate: %w", err)
	}

	return &SignatureBlock{
		Algorithm:            "RSA-PSS-SHA256",
		SignatureHash:        base64.StdEncoding.EncodeToString(sig),
		PublicKeyFingerprint: s.Fingerprint(),
		SignatureTimestamp:   time.Now().UTC().Format(time.RFC3339),
		TamperProof:          true,
	}, nil
}

// Verify проверяет подпись над каноническим JSON содержимого
func (s *Signer) Verify(content interface{}, block SignatureBlock) VerifyResult {
	canonical, err := CanonicalJSON(content)
	if err != nil {
		return VerifyResult{Valid: false, Error: err.Error()}
	}

	sig, err := base64.StdEncoding.DecodeString(block.SignatureHash)
	if err != nil {
		return VerifyResult{Valid: false, Error: fmt.Sprintf("malformed signature: %v", err)}
	}

	digest := sha256.Sum256(canonical)
	err = rsa.VerifyPSS(s.verifyKey, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return VerifyResult{Valid: false, Error: "signature does not match certificate content"}
	}

	if block.PublicKeyFingerprint != "" && block.PublicKeyFingerprint != s.Fingerprint() {
		return VerifyResult{Valid: false, Error: "certificate was signed by a different key"}
	}

	return VerifyResult{Valid: true}
}

// Fingerprint возвращает отпечаток публичного ключа: первые 16
// символов SHA-256 от hex публичного PEM, в верхнем регистре
func (s *Signer) Fingerprint() string {
	pemHex := hex.EncodeToString(s.publicPEM)
	sum := sha256.Sum256([]byte(pemHex))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:16])
}

// PublicKeyPEM возвращает публичный ключ в PEM
func (s *Signer) PublicKeyPEM() []byte {
	return s.publicPEM
}
