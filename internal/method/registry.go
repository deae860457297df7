package method

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Идентификаторы методов затирания
const (
	SinglePass  = "single_pass"
	ThreePass   = "three_pass"
	DoD522022M  = "dod_5220_22_m"
	Gutmann     = "gutmann"
	NIST80088   = "nist_800_88"
	CryptoErase = "crypto_erase"
	ATASanitize = "ata_sanitize"
	NVMeFormat  = "nvme_format"
)

// Ошибки разрешения метода. Неизвестный идентификатор и известный,
// но неподдерживаемый на платформе метод различаются.
var (
	ErrUnknownMethod     = errors.New("unknown wipe method")
	ErrMethodUnsupported = errors.New("wipe method is not supported on this platform")
)

// PatternKind вид паттерна прохода
type PatternKind int

const (
	PatternZeros PatternKind = iota
	PatternOnes
	PatternRandom
	PatternFixed
)

// Pattern паттерн одного прохода перезаписи
type Pattern struct {
	Kind  PatternKind
	Bytes []byte // только для PatternFixed
	Label string
}

// WipeMethod описание метода затирания
type WipeMethod struct {
	ID               string
	Name             string
	Passes           int
	Patterns         []Pattern
	RequiresHardware bool
	HardwareOp       string // native операция для аппаратных методов
	Verify           bool   // вычислять хэши до/после
	Standards        []string
}

var (
	patternZeros  = Pattern{Kind: PatternZeros, Label: "zeros"}
	patternOnes   = Pattern{Kind: PatternOnes, Label: "ones"}
	patternRandom = Pattern{Kind: PatternRandom, Label: "random"}
)

// fixed создаёт фиксированный паттерн Гутмана
func fixed(label string, bytes ...byte) Pattern {
	return Pattern{Kind: PatternFixed, Bytes: bytes, Label: label}
}

// gutmannPatterns последовательность проходов метода Гутмана.
// Сокращённая каноническая последовательность: 4 случайных прохода,
// 27 детерминированных, 4 случайных.
func gutmannPatterns() []Pattern {
	patterns := []Pattern{patternRandom, patternRandom, patternRandom, patternRandom}
	deterministic := []Pattern{
		fixed("0x55", 0x55), fixed("0xAA", 0xAA),
		fixed("0x924924", 0x92, 0x49, 0x24), fixed("0x492492", 0x49, 0x24, 0x92), fixed("0x249249", 0x24, 0x92, 0x49),
		fixed("0x00", 0x00), fixed("0x11", 0x11), fixed("0x22", 0x22), fixed("0x33", 0x33),
		fixed("0x44", 0x44), fixed("0x55", 0x55), fixed("0x66", 0x66), fixed("0x77", 0x77),
		fixed("0x88", 0x88), fixed("0x99", 0x99), fixed("0xAA", 0xAA), fixed("0xBB", 0xBB),
		fixed("0xCC", 0xCC), fixed("0xDD", 0xDD), fixed("0xEE", 0xEE), fixed("0xFF", 0xFF),
		fixed("0x924924", 0x92, 0x49, 0x24), fixed("0x492492", 0x49, 0x24, 0x92), fixed("0x249249", 0x24, 0x92, 0x49),
		fixed("0x6DB6DB", 0x6D, 0xB6, 0xDB), fixed("0xB6DB6D", 0xB6, 0xDB, 0x6D), fixed("0xDB6DB6", 0xDB, 0x6D, 0xB6),
	}
	patterns = append(patterns, deterministic...)
	patterns = append(patterns, patternRandom, patternRandom, patternRandom, patternRandom)
	return patterns
}

// catalogue статический каталог методов
var catalogue = map[string]WipeMethod{
	SinglePass: {
		ID:        SinglePass,
		Name:      "Single Pass",
		Passes:    1,
		Patterns:  []Pattern{patternZeros},
		Verify:    true,
		Standards: []string{"NIST 800-88"},
	},
	ThreePass: {
		ID:        ThreePass,
		Name:      "Three Pass",
		Passes:    3,
		Patterns:  []Pattern{patternZeros, patternOnes, patternRandom},
		Verify:    true,
		Standards: []string{"NIST 800-88", "DoD 5220.22-M"},
	},
	DoD522022M: {
		ID:        DoD522022M,
		Name:      "DoD 5220.22-M",
		Passes:    3,
		Patterns:  []Pattern{patternZeros, patternOnes, patternRandom},
		Verify:    true,
		Standards: []string{"NIST 800-88", "DoD 5220.22-M"},
	},
	Gutmann: {
		ID:        Gutmann,
		Name:      "Gutmann",
		Passes:    35,
		Patterns:  gutmannPatterns(),
		Verify:    true,
		Standards: []string{"NIST 800-88", "Gutmann Method"},
	},
	NIST80088: {
		ID:        NIST80088,
		Name:      "NIST 800-88",
		Passes:    2,
		Patterns:  []Pattern{patternZeros, patternRandom},
		Verify:    true,
		Standards: []string{"NIST 800-88"},
	},
	CryptoErase: {
		ID:               CryptoErase,
		Name:             "Cryptographic Erase",
		Passes:           1,
		RequiresHardware: true,
		HardwareOp:       "crypto_erase",
		Standards:        []string{"NIST 800-88", "Cryptographic Erasure"},
	},
	ATASanitize: {
		ID:               ATASanitize,
		Name:             "ATA Sanitize",
		Passes:           1,
		RequiresHardware: true,
		HardwareOp:       "sanitize",
		Standards:        []string{"NIST 800-88", "ATA Sanitize"},
	},
	NVMeFormat: {
		ID:               NVMeFormat,
		Name:             "NVMe Format",
		Passes:           1,
		RequiresHardware: true,
		HardwareOp:       "nvme_format",
		Standards:        []string{"NIST 800-88", "NVMe Format"},
	},
}

// aliases устаревшие идентификаторы методов
var aliases = map[string]string{
	"shred":               ThreePass,
	"dd_zero":             SinglePass,
	"hdparm_secure_erase": ATASanitize,
	"pattern-overwrite":   ThreePass,
	"hardware-sanitize":   ATASanitize,
	"crypto-erase":        CryptoErase,
}

// Resolve разрешает идентификатор метода. Чистая функция без
// побочных эффектов.
func Resolve(methodID string) (WipeMethod, error) {
	if canonical, ok := aliases[methodID]; ok {
		methodID = canonical
	}

	m, ok := catalogue[methodID]
	if !ok {
		return WipeMethod{}, errors.Wrapf(ErrUnknownMethod, "%q", methodID)
	}
	return m, nil
}

// List возвращает все методы каталога в стабильном порядке
func List() []WipeMethod {
	order := []string{SinglePass, ThreePass, DoD522022M, Gutmann, NIST80088, CryptoErase, ATASanitize, NVMeFormat}
	methods := make([]WipeMethod, 0, len(order))
	for _, id := range order {
		methods = append(methods, catalogue[id])
	}
	return methods
}

// Standards возвращает стандарты соответствия для метода
func Standards(methodID string) []string {
	m, err := Resolve(methodID)
	if err != nil {
		return []string{"NIST 800-88"}
	}
	return m.Standards
}

// WithPasses подгоняет программный метод под запрошенное число
// проходов, циклически повторяя паттерны каталога. Для аппаратных
// методов число проходов фиксировано.
func (m WipeMethod) WithPasses(n int) (WipeMethod, error) {
	if n <= 0 || n == m.Passes {
		return m, nil
	}
	if m.RequiresHardware {
		return WipeMethod{}, fmt.Errorf("method %s: pass count is fixed at %d", m.ID, m.Passes)
	}

	patterns := make([]Pattern, 0, n)
	for i := 0; i < n; i++ {
		patterns = append(patterns, m.Patterns[i%len(m.Patterns)])
	}
	m.Passes = n
	m.Patterns = patterns
	return m, nil
}

// Validate проверяет инварианты метода
func (m WipeMethod) Validate() error {
	if m.Passes < 1 {
		return fmt.Errorf("method %s: pass count must be >= 1, got %d", m.ID, m.Passes)
	}
	if !m.RequiresHardware && len(m.Patterns) == 0 {
		return fmt.Errorf("method %s: software method has no patterns", m.ID)
	}
	return nil
}
